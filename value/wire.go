package value

import (
	"encoding/json"
	"fmt"

	"github.com/reglet-dev/plughost/wireformat"
)

// ToWire converts v into its JSON wire form. Pointer values are
// process-local and cannot be encoded.
func ToWire(v Value) (wireformat.ValueWire, error) {
	w := wireformat.ValueWire{Kind: uint32(v.kind)}
	switch v.kind {
	case KindNull:
	case KindBool:
		b, _ := v.AsBool()
		w.Bool = &b
	case KindInt:
		i, _ := v.AsInt()
		w.Int = &i
	case KindUint:
		u := v.num
		w.Uint = &u
	case KindFloat:
		f, _ := v.AsFloat()
		w.Float = &f
	case KindString:
		s := string(v.data)
		w.String = &s
	case KindBuffer:
		w.Buffer = append([]byte{}, v.data...)
	case KindArray:
		w.Items = make([]wireformat.ValueWire, 0, len(v.items))
		for i, item := range v.items {
			iw, err := ToWire(item)
			if err != nil {
				return wireformat.ValueWire{}, fmt.Errorf("array item %d: %w", i, err)
			}
			w.Items = append(w.Items, iw)
		}
	case KindCustom:
		raw, err := customJSON(v.ref)
		if err != nil {
			return wireformat.ValueWire{}, err
		}
		w.Custom = raw
	default:
		return wireformat.ValueWire{}, fmt.Errorf("value kind %s cannot cross the wire", v.kind)
	}
	return w, nil
}

func customJSON(ref any) (json.RawMessage, error) {
	switch p := ref.(type) {
	case nil:
		return json.RawMessage("null"), nil
	case json.RawMessage:
		return p, nil
	case []byte:
		if !json.Valid(p) {
			return nil, fmt.Errorf("custom payload is not valid JSON")
		}
		return p, nil
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal custom payload: %w", err)
		}
		return raw, nil
	}
}

// FromWire rebuilds a Value from its wire form. The result owns no pooled
// memory.
func FromWire(w wireformat.ValueWire) (Value, error) {
	switch Kind(w.Kind) {
	case KindNull:
		return Null(), nil
	case KindBool:
		if w.Bool == nil {
			return Value{}, fmt.Errorf("bool value without payload")
		}
		return Bool(*w.Bool), nil
	case KindInt:
		if w.Int == nil {
			return Value{}, fmt.Errorf("int value without payload")
		}
		return Int(*w.Int), nil
	case KindUint:
		if w.Uint == nil {
			return Value{}, fmt.Errorf("uint value without payload")
		}
		return Uint(*w.Uint), nil
	case KindFloat:
		if w.Float == nil {
			return Value{}, fmt.Errorf("float value without payload")
		}
		return Float(*w.Float), nil
	case KindString:
		if w.String == nil {
			return String(""), nil
		}
		return String(*w.String), nil
	case KindBuffer:
		return Buffer(w.Buffer), nil
	case KindArray:
		items := make([]Value, 0, len(w.Items))
		for i, iw := range w.Items {
			item, err := FromWire(iw)
			if err != nil {
				return Value{}, fmt.Errorf("array item %d: %w", i, err)
			}
			items = append(items, item)
		}
		return Array(items...), nil
	case KindCustom:
		raw := append(json.RawMessage(nil), w.Custom...)
		return Custom(raw, len(raw)), nil
	default:
		return Value{}, fmt.Errorf("unsupported wire value kind %d", w.Kind)
	}
}
