package guestwasm

import "bytes"

// Value types used in function signatures. Only i32 appears in the waPC ABI.
const I32 byte = 0x7f

// Section IDs of the wasm binary format.
const (
	sectionType   byte = 1
	sectionImport byte = 2
	sectionFunc   byte = 3
	sectionMemory byte = 5
	sectionExport byte = 7
	sectionCode   byte = 10
	sectionData   byte = 11
)

// Export kinds.
const (
	kindFunc   byte = 0x00
	kindMemory byte = 0x02
)

// writeU32 appends v as unsigned LEB128.
func writeU32(w *bytes.Buffer, v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.WriteByte(b)
		if v == 0 {
			return
		}
	}
}

// writeS32 appends v as signed LEB128.
func writeS32(w *bytes.Buffer, v int32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && b&0x40 == 0) || (v == -1 && b&0x40 != 0) {
			w.WriteByte(b)
			return
		}
		w.WriteByte(b | 0x80)
	}
}

// writeName appends a length-prefixed UTF-8 name.
func writeName(w *bytes.Buffer, s string) {
	writeU32(w, uint32(len(s)))
	w.WriteString(s)
}

// Builder assembles a core wasm module section by section.
type Builder struct {
	types    [][]byte
	imports  [][]byte
	funcs    []uint32
	exports  [][]byte
	codes    [][]byte
	data     [][]byte
	memPages uint32
	hasMem   bool

	importedFuncs uint32
}

func NewBuilder() *Builder {
	return &Builder{}
}

// AddType registers a function signature and returns its type index.
func (b *Builder) AddType(params, results []byte) uint32 {
	var buf bytes.Buffer
	buf.WriteByte(0x60) // functype
	writeU32(&buf, uint32(len(params)))
	buf.Write(params)
	writeU32(&buf, uint32(len(results)))
	buf.Write(results)
	b.types = append(b.types, buf.Bytes())
	return uint32(len(b.types) - 1)
}

// ImportFunc declares a function import and returns its function index.
// All imports must be declared before AddFunc is first called.
func (b *Builder) ImportFunc(module, name string, typeIdx uint32) uint32 {
	var buf bytes.Buffer
	writeName(&buf, module)
	writeName(&buf, name)
	buf.WriteByte(kindFunc)
	writeU32(&buf, typeIdx)
	b.imports = append(b.imports, buf.Bytes())
	b.importedFuncs++
	return b.importedFuncs - 1
}

// AddFunc declares a module-local function with the given body and returns
// its function index.
func (b *Builder) AddFunc(typeIdx uint32, body []byte) uint32 {
	b.funcs = append(b.funcs, typeIdx)
	b.codes = append(b.codes, body)
	return b.importedFuncs + uint32(len(b.funcs)) - 1
}

// AddMemory declares a linear memory with the given minimum page count.
func (b *Builder) AddMemory(minPages uint32) {
	b.hasMem = true
	b.memPages = minPages
}

// ExportFunc exports the function at funcIdx under name.
func (b *Builder) ExportFunc(name string, funcIdx uint32) {
	var buf bytes.Buffer
	writeName(&buf, name)
	buf.WriteByte(kindFunc)
	writeU32(&buf, funcIdx)
	b.exports = append(b.exports, buf.Bytes())
}

// ExportMemory exports memory 0 under name.
func (b *Builder) ExportMemory(name string) {
	var buf bytes.Buffer
	writeName(&buf, name)
	buf.WriteByte(kindMemory)
	writeU32(&buf, 0)
	b.exports = append(b.exports, buf.Bytes())
}

// AddData places bytes at a fixed offset in memory 0 at instantiation.
func (b *Builder) AddData(offset uint32, data []byte) {
	var buf bytes.Buffer
	buf.WriteByte(0x00) // active segment, memory 0
	buf.WriteByte(0x41) // i32.const
	writeS32(&buf, int32(offset))
	buf.WriteByte(0x0b) // end of offset expression
	writeU32(&buf, uint32(len(data)))
	buf.Write(data)
	b.data = append(b.data, buf.Bytes())
}

func writeSection(out *bytes.Buffer, id byte, entries [][]byte) {
	var body bytes.Buffer
	writeU32(&body, uint32(len(entries)))
	for _, e := range entries {
		body.Write(e)
	}
	out.WriteByte(id)
	writeU32(out, uint32(body.Len()))
	out.Write(body.Bytes())
}

// Encode serializes the module.
func (b *Builder) Encode() []byte {
	var out bytes.Buffer
	out.Write([]byte{0x00, 0x61, 0x73, 0x6d}) // magic
	out.Write([]byte{0x01, 0x00, 0x00, 0x00}) // version

	if len(b.types) > 0 {
		writeSection(&out, sectionType, b.types)
	}
	if len(b.imports) > 0 {
		writeSection(&out, sectionImport, b.imports)
	}
	if len(b.funcs) > 0 {
		entries := make([][]byte, len(b.funcs))
		for i, typeIdx := range b.funcs {
			var buf bytes.Buffer
			writeU32(&buf, typeIdx)
			entries[i] = buf.Bytes()
		}
		writeSection(&out, sectionFunc, entries)
	}
	if b.hasMem {
		var buf bytes.Buffer
		buf.WriteByte(0x00) // limits: min only
		writeU32(&buf, b.memPages)
		writeSection(&out, sectionMemory, [][]byte{buf.Bytes()})
	}
	if len(b.exports) > 0 {
		writeSection(&out, sectionExport, b.exports)
	}
	if len(b.codes) > 0 {
		entries := make([][]byte, len(b.codes))
		for i, body := range b.codes {
			var buf bytes.Buffer
			writeU32(&buf, uint32(len(body)))
			buf.Write(body)
			entries[i] = buf.Bytes()
		}
		writeSection(&out, sectionCode, entries)
	}
	if len(b.data) > 0 {
		writeSection(&out, sectionData, b.data)
	}

	return out.Bytes()
}

// Code assembles one function body.
type Code struct {
	buf       bytes.Buffer
	i32Locals uint32
}

// NewCode starts a function body with the given number of extra i32 locals.
func NewCode(i32Locals uint32) *Code {
	return &Code{i32Locals: i32Locals}
}

func (c *Code) I32Const(v int32) *Code {
	c.buf.WriteByte(0x41)
	writeS32(&c.buf, v)
	return c
}

func (c *Code) LocalGet(idx uint32) *Code {
	c.buf.WriteByte(0x20)
	writeU32(&c.buf, idx)
	return c
}

func (c *Code) LocalSet(idx uint32) *Code {
	c.buf.WriteByte(0x21)
	writeU32(&c.buf, idx)
	return c
}

func (c *Code) Call(funcIdx uint32) *Code {
	c.buf.WriteByte(0x10)
	writeU32(&c.buf, funcIdx)
	return c
}

func (c *Code) Drop() *Code {
	c.buf.WriteByte(0x1a)
	return c
}

// I32Load8U loads an unsigned byte; align 1, static offset.
func (c *Code) I32Load8U(offset uint32) *Code {
	c.buf.WriteByte(0x2d)
	writeU32(&c.buf, 0) // align = 2^0
	writeU32(&c.buf, offset)
	return c
}

func (c *Code) I32Eq() *Code {
	c.buf.WriteByte(0x46)
	return c
}

// IfI32 opens an if block producing an i32.
func (c *Code) IfI32() *Code {
	c.buf.WriteByte(0x04)
	c.buf.WriteByte(I32)
	return c
}

func (c *Code) Else() *Code {
	c.buf.WriteByte(0x05)
	return c
}

func (c *Code) End() *Code {
	c.buf.WriteByte(0x0b)
	return c
}

// Finish returns the encoded body: locals vector, instructions, end opcode.
func (c *Code) Finish() []byte {
	var out bytes.Buffer
	if c.i32Locals > 0 {
		writeU32(&out, 1) // one locals entry
		writeU32(&out, c.i32Locals)
		out.WriteByte(I32)
	} else {
		writeU32(&out, 0)
	}
	out.Write(c.buf.Bytes())
	out.WriteByte(0x0b)
	return out.Bytes()
}
