package value

import "bytes"

// Text is a top-level string handed across the boundary. It is stored
// with a trailing NUL terminator for cross-language consumers.
type Text struct {
	free func(buf []byte)
	buf  []byte
}

// NewText returns a Text that owns no memory of its own. Content after an
// embedded NUL is dropped, matching the terminator convention.
func NewText(s string) Text {
	if i := bytes.IndexByte([]byte(s), 0); i >= 0 {
		s = s[:i]
	}
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return Text{buf: buf}
}

// WithFree returns a copy of t carrying free as its capability.
func (t Text) WithFree(free func(buf []byte)) Text {
	t.free = free
	return t
}

// String returns the content without the terminator.
func (t Text) String() string {
	if len(t.buf) == 0 {
		return ""
	}
	return string(t.buf[:len(t.buf)-1])
}

// CString returns the terminated bytes, or nil for the zero sentinel.
func (t Text) CString() []byte { return t.buf }

// Len returns the content length in bytes, excluding the terminator.
func (t Text) Len() int {
	if len(t.buf) == 0 {
		return 0
	}
	return len(t.buf) - 1
}

// IsZero reports whether t is the zero sentinel.
func (t Text) IsZero() bool { return t.buf == nil && t.free == nil }

// HasFree reports whether t carries a free capability.
func (t Text) HasFree() bool { return t.free != nil }

// Release runs the free capability once and clears t.
func (t *Text) Release() {
	if t == nil {
		return
	}
	if free := t.free; free != nil {
		t.free = nil
		free(t.buf)
	}
	*t = Text{}
}

// List is a counted sequence returned across the boundary together with
// its free capability.
type List[T any] struct {
	free  func(items []T)
	items []T
}

// NewList returns a List over items that owns no memory of its own.
func NewList[T any](items []T) List[T] {
	if items == nil {
		items = []T{}
	}
	return List[T]{items: items}
}

// WithFree returns a copy of l carrying free as its capability.
func (l List[T]) WithFree(free func(items []T)) List[T] {
	l.free = free
	return l
}

// Items returns the elements.
func (l List[T]) Items() []T { return l.items }

// Len returns the element count.
func (l List[T]) Len() int { return len(l.items) }

// HasFree reports whether l carries a free capability.
func (l List[T]) HasFree() bool { return l.free != nil }

// Release runs the free capability once and clears l.
func (l *List[T]) Release() {
	if l == nil {
		return
	}
	if free := l.free; free != nil {
		l.free = nil
		free(l.items)
	}
	*l = List[T]{}
}
