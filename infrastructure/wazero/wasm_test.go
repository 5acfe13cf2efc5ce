package wazero

import "bytes"

// Value types and opcodes used by the hand-assembled test modules.
const (
	i32 byte = 0x7f
	i64 byte = 0x7e

	opCall     byte = 0x10
	opI32Const byte = 0x41
	opI64Const byte = 0x42
	opEnd      byte = 0x0b
)

type wasmFunc struct {
	name    string
	params  []byte
	results []byte
	body    []byte
}

type wasmImport struct {
	module, name    string
	params, results []byte
}

type wasmData struct {
	bytes  []byte
	offset int64
}

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v == 0 {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func sleb(v int64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			return append(out, b)
		}
		out = append(out, b|0x80)
	}
}

func vec(items ...[]byte) []byte {
	out := uleb(uint64(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func section(id byte, content []byte) []byte {
	return append(append([]byte{id}, uleb(uint64(len(content)))...), content...)
}

func funcType(params, results []byte) []byte {
	out := []byte{0x60}
	out = append(out, uleb(uint64(len(params)))...)
	out = append(out, params...)
	out = append(out, uleb(uint64(len(results)))...)
	return append(out, results...)
}

func i32Const(v int32) []byte { return append([]byte{opI32Const}, sleb(int64(v))...) }

func i64Const(v int64) []byte { return append([]byte{opI64Const}, sleb(v)...) }

// buildModule assembles a module with one exported memory page named
// "memory". Imported functions take the first function indices.
func buildModule(imports []wasmImport, funcs []wasmFunc, data []wasmData) []byte {
	var types, importEntries, funcIndices, exports, codes, segments [][]byte

	for _, im := range imports {
		typeIdx := uint64(len(types))
		types = append(types, funcType(im.params, im.results))
		entry := append(wasmName(im.module), wasmName(im.name)...)
		entry = append(entry, 0x00)
		importEntries = append(importEntries, append(entry, uleb(typeIdx)...))
	}
	for i, f := range funcs {
		typeIdx := uint64(len(types))
		types = append(types, funcType(f.params, f.results))
		funcIndices = append(funcIndices, uleb(typeIdx))

		export := append(wasmName(f.name), 0x00)
		exports = append(exports, append(export, uleb(uint64(len(imports)+i))...))

		body := append([]byte{0x00}, f.body...)
		body = append(body, opEnd)
		codes = append(codes, append(uleb(uint64(len(body))), body...))
	}
	exports = append(exports, append(wasmName("memory"), 0x02, 0x00))
	for _, d := range data {
		seg := []byte{0x00}
		seg = append(seg, opI32Const)
		seg = append(seg, sleb(d.offset)...)
		seg = append(seg, opEnd)
		seg = append(seg, uleb(uint64(len(d.bytes)))...)
		segments = append(segments, append(seg, d.bytes...))
	}

	var buf bytes.Buffer
	buf.Write([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00})
	buf.Write(section(1, vec(types...)))
	if len(importEntries) > 0 {
		buf.Write(section(2, vec(importEntries...)))
	}
	buf.Write(section(3, vec(funcIndices...)))
	buf.Write(section(5, vec([]byte{0x00, 0x01})))
	buf.Write(section(7, vec(exports...)))
	buf.Write(section(10, vec(codes...)))
	if len(segments) > 0 {
		buf.Write(section(11, vec(segments...)))
	}
	return buf.Bytes()
}
