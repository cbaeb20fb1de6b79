package biff

import (
	"encoding/binary"
	"math"
)

// LittleEndianInput reads primitives from a single bounded payload.
//
// It knows nothing about record boundaries; reads that would run past the
// end of the payload fail with a FormatError carrying the byte deficit.
type LittleEndianInput struct {
	buf []byte
	pos int
}

// NewLittleEndianInput creates a cursor over b.
func NewLittleEndianInput(b []byte) *LittleEndianInput {
	return &LittleEndianInput{buf: b}
}

// Available returns the number of unread bytes.
func (in *LittleEndianInput) Available() int {
	return len(in.buf) - in.pos
}

func (in *LittleEndianInput) need(n int) error {
	if avail := in.Available(); avail < n {
		return &FormatError{
			Offset:  -1,
			Deficit: n - avail,
			Message: "read past end of payload",
		}
	}
	return nil
}

// ReadInt8 reads a signed byte.
func (in *LittleEndianInput) ReadInt8() (int8, error) {
	v, err := in.ReadUByte()
	return int8(v), err
}

// ReadUByte reads an unsigned byte.
func (in *LittleEndianInput) ReadUByte() (uint8, error) {
	if err := in.need(1); err != nil {
		return 0, err
	}
	v := in.buf[in.pos]
	in.pos++
	return v, nil
}

// ReadShort reads a signed 16-bit value.
func (in *LittleEndianInput) ReadShort() (int16, error) {
	v, err := in.ReadUShort()
	return int16(v), err
}

// ReadUShort reads an unsigned 16-bit value.
func (in *LittleEndianInput) ReadUShort() (uint16, error) {
	if err := in.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(in.buf[in.pos:])
	in.pos += 2
	return v, nil
}

// ReadInt reads a signed 32-bit value.
func (in *LittleEndianInput) ReadInt() (int32, error) {
	v, err := in.ReadUInt()
	return int32(v), err
}

// ReadUInt reads an unsigned 32-bit value.
func (in *LittleEndianInput) ReadUInt() (uint32, error) {
	if err := in.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(in.buf[in.pos:])
	in.pos += 4
	return v, nil
}

// ReadLong reads a signed 64-bit value.
func (in *LittleEndianInput) ReadLong() (int64, error) {
	if err := in.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(in.buf[in.pos:])
	in.pos += 8
	return int64(v), nil
}

// ReadDouble reads an IEEE 754 double, keeping every bit including NaN payloads.
func (in *LittleEndianInput) ReadDouble() (float64, error) {
	v, err := in.ReadLong()
	return math.Float64frombits(uint64(v)), err
}

// ReadFully returns a copy of the next n bytes.
func (in *LittleEndianInput) ReadFully(n int) ([]byte, error) {
	if err := in.need(n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	copy(b, in.buf[in.pos:in.pos+n])
	in.pos += n
	return b, nil
}

// ReadCompressedString reads nChars single-byte characters.
func (in *LittleEndianInput) ReadCompressedString(nChars int) (string, error) {
	b, err := in.ReadFully(nChars)
	if err != nil {
		return "", err
	}
	return decodeCompressed(b), nil
}

// ReadUTF16LEString reads nChars two-byte characters.
func (in *LittleEndianInput) ReadUTF16LEString(nChars int) (string, error) {
	b, err := in.ReadFully(2 * nChars)
	if err != nil {
		return "", err
	}
	return decodeUTF16LE(b), nil
}

// LittleEndianOutput is a growable little-endian write buffer.
type LittleEndianOutput struct {
	buf []byte
}

// NewLittleEndianOutput creates an output buffer with the given initial capacity.
func NewLittleEndianOutput(capacity int) *LittleEndianOutput {
	return &LittleEndianOutput{buf: make([]byte, 0, capacity)}
}

// Len returns the number of bytes written.
func (out *LittleEndianOutput) Len() int {
	return len(out.buf)
}

// Bytes returns the written bytes. The slice aliases the buffer.
func (out *LittleEndianOutput) Bytes() []byte {
	return out.buf
}

// WriteUByte appends an unsigned byte.
func (out *LittleEndianOutput) WriteUByte(v uint8) {
	out.buf = append(out.buf, v)
}

// WriteInt8 appends a signed byte.
func (out *LittleEndianOutput) WriteInt8(v int8) {
	out.buf = append(out.buf, byte(v))
}

// WriteUShort appends an unsigned 16-bit value.
func (out *LittleEndianOutput) WriteUShort(v uint16) {
	out.buf = binary.LittleEndian.AppendUint16(out.buf, v)
}

// WriteShort appends a signed 16-bit value.
func (out *LittleEndianOutput) WriteShort(v int16) {
	out.WriteUShort(uint16(v))
}

// WriteUInt appends an unsigned 32-bit value.
func (out *LittleEndianOutput) WriteUInt(v uint32) {
	out.buf = binary.LittleEndian.AppendUint32(out.buf, v)
}

// WriteInt appends a signed 32-bit value.
func (out *LittleEndianOutput) WriteInt(v int32) {
	out.WriteUInt(uint32(v))
}

// WriteLong appends a signed 64-bit value.
func (out *LittleEndianOutput) WriteLong(v int64) {
	out.buf = binary.LittleEndian.AppendUint64(out.buf, uint64(v))
}

// WriteDouble appends the exact bit pattern of v.
func (out *LittleEndianOutput) WriteDouble(v float64) {
	out.WriteLong(int64(math.Float64bits(v)))
}

// WriteBytes appends b verbatim.
func (out *LittleEndianOutput) WriteBytes(b []byte) {
	out.buf = append(out.buf, b...)
}

// WriteStringData appends the characters of s without any header.
func (out *LittleEndianOutput) WriteStringData(s string, wide bool) {
	if !wide {
		if b, ok := encodeCompressed(s); ok {
			out.WriteBytes(b)
			return
		}
	}
	out.WriteBytes(encodeUTF16LE(s))
}

// WriteUnicodeString appends a 16-bit character count, the flag byte and the characters.
func (out *LittleEndianOutput) WriteUnicodeString(u XLUnicodeString) {
	out.WriteUShort(uint16(u.CharCount()))
	out.writeFlaggedChars(u)
}

// WriteShortUnicodeString appends an 8-bit character count, the flag byte and the characters.
func (out *LittleEndianOutput) WriteShortUnicodeString(u XLUnicodeString) {
	out.WriteUByte(uint8(u.CharCount()))
	out.writeFlaggedChars(u)
}

func (out *LittleEndianOutput) writeFlaggedChars(u XLUnicodeString) {
	wide := u.IsWide()
	if wide {
		out.WriteUByte(strFlagWide)
	} else {
		out.WriteUByte(0)
	}
	out.WriteStringData(u.Text, wide)
}

// patchUShort overwrites two bytes at pos.
func (out *LittleEndianOutput) patchUShort(pos int, v uint16) {
	binary.LittleEndian.PutUint16(out.buf[pos:], v)
}
