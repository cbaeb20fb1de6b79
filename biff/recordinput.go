package biff

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"unicode/utf16"

	"github.com/pkg/errors"
)

// RecordHeader is the fixed 4-byte prefix of every physical record.
type RecordHeader struct {
	Sid    uint16
	Length uint16
}

// recordSource pulls whole physical records off the underlying reader and
// applies decryption, if enabled, as payloads are loaded.
type recordSource struct {
	r      *bufio.Reader
	pos    int64
	cipher *rc4Cipher
}

func newRecordSource(r io.Reader) *recordSource {
	return &recordSource{r: bufio.NewReader(r)}
}

// peekHeader looks at the next header without consuming it.
func (s *recordSource) peekHeader() (RecordHeader, bool, error) {
	b, err := s.r.Peek(RecordHeaderSize)
	if len(b) < RecordHeaderSize {
		if err == nil || err == io.EOF {
			return RecordHeader{}, false, nil
		}
		return RecordHeader{}, false, errors.Wrap(err, "peek record header")
	}
	return RecordHeader{
		Sid:    binary.LittleEndian.Uint16(b),
		Length: binary.LittleEndian.Uint16(b[2:]),
	}, true, nil
}

// readRecord consumes one physical record and returns its header offset and payload.
func (s *recordSource) readRecord() (RecordHeader, int64, []byte, error) {
	var hb [RecordHeaderSize]byte
	offset := s.pos
	if _, err := io.ReadFull(s.r, hb[:]); err != nil {
		return RecordHeader{}, offset, nil, &FormatError{Offset: offset, Message: "truncated record header"}
	}
	h := RecordHeader{
		Sid:    binary.LittleEndian.Uint16(hb[:]),
		Length: binary.LittleEndian.Uint16(hb[2:]),
	}
	s.pos += RecordHeaderSize
	if h.Length > MaxRecordDataSize {
		return h, offset, nil, oversizedRecord(h, offset)
	}
	payload := make([]byte, h.Length)
	n, err := io.ReadFull(s.r, payload)
	s.pos += int64(n)
	if err != nil {
		return h, offset, nil, &FormatError{
			Sid:     h.Sid,
			Offset:  offset,
			Deficit: int(h.Length) - n,
			Message: "truncated record payload",
		}
	}
	if s.cipher != nil {
		cryptRecordPayload(s.cipher, h.Sid, payload, offset+RecordHeaderSize)
	}
	return h, offset, payload, nil
}

func oversizedRecord(h RecordHeader, offset int64) *FormatError {
	return &FormatError{
		Sid:     h.Sid,
		Offset:  offset,
		Message: fmt.Sprintf("record length %d exceeds the maximum of %d", h.Length, MaxRecordDataSize),
	}
}

// rest drains whatever follows the last record.
func (s *recordSource) rest() ([]byte, error) {
	b, err := io.ReadAll(s.r)
	s.pos += int64(len(b))
	return b, err
}

// RecordInputStream tracks the current physical record and lets record
// constructors read across Continue boundaries.
//
// Read methods do not return errors. The first failure is kept and every
// later read returns zero values; constructors check Err once at the end.
type RecordInputStream struct {
	src     *recordSource
	sid     uint16
	physSid uint16
	offset  int64
	data    *LittleEndianInput
	err     error
}

// NewRecordInputStream creates a tracker over r, positioned before the first header.
func NewRecordInputStream(r io.Reader) *RecordInputStream {
	return &RecordInputStream{src: newRecordSource(r), offset: -1}
}

// Sid returns the type tag of the record being read. While reading through
// Continue records it keeps returning the tag of the record they continue.
func (in *RecordInputStream) Sid() uint16 {
	return in.sid
}

// Offset returns the stream offset of the current physical record header.
func (in *RecordInputStream) Offset() int64 {
	return in.offset
}

// Remaining returns the unread bytes of the current physical record.
func (in *RecordInputStream) Remaining() int {
	if in.data == nil {
		return 0
	}
	return in.data.Available()
}

// Err returns the first read failure since the last NextRecord.
func (in *RecordInputStream) Err() error {
	return in.err
}

func (in *RecordInputStream) fail(err error) {
	if in.err == nil {
		in.err = err
	}
}

func (in *RecordInputStream) formatError(deficit int, format string, args ...interface{}) *FormatError {
	return &FormatError{
		Sid:     in.sid,
		Offset:  in.offset,
		Deficit: deficit,
		Message: fmt.Sprintf(format, args...),
	}
}

func (in *RecordInputStream) leftover() error {
	return in.formatError(0, "record left %d bytes unread", in.Remaining())
}

// HasNextRecord reports whether a complete header follows. It fails if the
// current record still has unread bytes.
func (in *RecordInputStream) HasNextRecord() (bool, error) {
	if in.Remaining() > 0 {
		return false, in.leftover()
	}
	_, ok, err := in.src.peekHeader()
	return ok, err
}

// NextSid peeks at the tag of the next physical record.
func (in *RecordInputStream) NextSid() (uint16, bool) {
	h, ok, err := in.src.peekHeader()
	if err != nil || !ok {
		return 0, false
	}
	return h.Sid, true
}

// IsContinueNext reports whether the next physical record is a Continue record.
func (in *RecordInputStream) IsContinueNext() bool {
	sid, ok := in.NextSid()
	return ok && sid == XL_CONTINUE
}

// NextRecord makes the next physical record current.
func (in *RecordInputStream) NextRecord() error {
	if in.Remaining() > 0 {
		return in.leftover()
	}
	h, offset, payload, err := in.src.readRecord()
	if err != nil {
		return err
	}
	in.sid = h.Sid
	in.physSid = h.Sid
	in.offset = offset
	in.data = NewLittleEndianInput(payload)
	in.err = nil
	return nil
}

// nextContinue hops into the following Continue record while keeping the owner's tag.
func (in *RecordInputStream) nextContinue() bool {
	if !in.IsContinueNext() {
		return false
	}
	h, offset, payload, err := in.src.readRecord()
	if err != nil {
		in.fail(err)
		return false
	}
	in.physSid = h.Sid
	in.offset = offset
	in.data = NewLittleEndianInput(payload)
	return true
}

// enableDecryption applies c to every payload loaded from now on.
func (in *RecordInputStream) enableDecryption(c *rc4Cipher) {
	in.src.cipher = c
}

// checkRecordPosition makes n bytes readable, hopping into a Continue record
// only when the current one is exactly exhausted.
func (in *RecordInputStream) checkRecordPosition(n int) bool {
	if in.err != nil {
		return false
	}
	if in.data == nil {
		in.fail(NewFormatError("read before the first record"))
		return false
	}
	avail := in.data.Available()
	if avail >= n {
		return true
	}
	if avail == 0 && in.nextContinue() {
		if avail = in.data.Available(); avail >= n {
			return true
		}
	}
	if in.err == nil {
		in.fail(in.formatError(n-avail, "not enough data (%d) to read requested (%d) bytes", avail, n))
	}
	return false
}

// ReadInt8 reads a signed byte.
func (in *RecordInputStream) ReadInt8() int8 {
	return int8(in.ReadUByte())
}

// ReadUByte reads an unsigned byte.
func (in *RecordInputStream) ReadUByte() uint8 {
	if !in.checkRecordPosition(1) {
		return 0
	}
	v, _ := in.data.ReadUByte()
	return v
}

// ReadShort reads a signed 16-bit value.
func (in *RecordInputStream) ReadShort() int16 {
	return int16(in.ReadUShort())
}

// ReadUShort reads an unsigned 16-bit value.
func (in *RecordInputStream) ReadUShort() uint16 {
	if !in.checkRecordPosition(2) {
		return 0
	}
	v, _ := in.data.ReadUShort()
	return v
}

// ReadInt reads a signed 32-bit value.
func (in *RecordInputStream) ReadInt() int32 {
	return int32(in.ReadUInt())
}

// ReadUInt reads an unsigned 32-bit value.
func (in *RecordInputStream) ReadUInt() uint32 {
	if !in.checkRecordPosition(4) {
		return 0
	}
	v, _ := in.data.ReadUInt()
	return v
}

// ReadLong reads a signed 64-bit value.
func (in *RecordInputStream) ReadLong() int64 {
	if !in.checkRecordPosition(8) {
		return 0
	}
	v, _ := in.data.ReadLong()
	return v
}

// ReadDouble reads a double without normalizing its bits.
func (in *RecordInputStream) ReadDouble() float64 {
	if !in.checkRecordPosition(8) {
		return 0
	}
	v, _ := in.data.ReadDouble()
	return v
}

// ReadFully reads n raw bytes, continuing into Continue records as needed.
// No flag byte is expected at the start of a continued fragment.
func (in *RecordInputStream) ReadFully(n int) []byte {
	out := make([]byte, 0, min(n, MaxRecordDataSize))
	for len(out) < n {
		if in.err != nil {
			return nil
		}
		avail := in.Remaining()
		if avail == 0 {
			if !in.nextContinue() {
				in.fail(in.formatError(n-len(out), "expected a Continue record to read remaining %d of %d bytes", n-len(out), n))
				return nil
			}
			continue
		}
		k := n - len(out)
		if k > avail {
			k = avail
		}
		b, _ := in.data.ReadFully(k)
		out = append(out, b...)
	}
	return out
}

// ReadRemainder returns the rest of the current physical record.
func (in *RecordInputStream) ReadRemainder() []byte {
	if in.data == nil || in.err != nil {
		return nil
	}
	b, _ := in.data.ReadFully(in.data.Available())
	return b
}

// SkipZeroPadding discards the rest of the current physical record and
// fails unless every discarded byte is zero.
func (in *RecordInputStream) SkipZeroPadding() (int, error) {
	rest := in.ReadRemainder()
	for i, b := range rest {
		if b != 0 {
			return 0, in.formatError(0, "non-zero byte 0x%02X in trailing padding at position %d", b, i)
		}
	}
	return len(rest), nil
}

// ReadStringChars reads nChars characters starting in the given encoding.
//
// When the characters spill into a Continue record, every new fragment starts
// with its own flag byte and may switch encoding. wide reports whether any
// fragment used the two-byte encoding.
func (in *RecordInputStream) ReadStringChars(nChars int, compressed bool) (text string, wide bool) {
	if nChars == 0 {
		return "", !compressed
	}
	units := make([]uint16, 0, min(nChars, MaxRecordDataSize))
	wide = !compressed
	for {
		if in.err != nil {
			return "", wide
		}
		avail := in.Remaining()
		if !compressed {
			avail /= 2
		}
		want := nChars - len(units)
		if want <= avail {
			units = append(units, in.readUnits(want, compressed)...)
			return string(utf16.Decode(units)), wide
		}
		units = append(units, in.readUnits(avail, compressed)...)
		if in.Remaining() != 0 {
			in.fail(in.formatError(0, "odd number of bytes (%d) left behind in a wide string", in.Remaining()))
			return "", wide
		}
		if !in.nextContinue() {
			in.fail(in.formatError(2*(nChars-len(units)),
				"expected a Continue record to read remaining %d of %d chars", nChars-len(units), nChars))
			return "", wide
		}
		flag, err := in.data.ReadUByte()
		if err != nil {
			in.fail(in.formatError(1, "Continue record has no string flag byte"))
			return "", wide
		}
		compressed = flag&strFlagWide == 0
		if !compressed {
			wide = true
		}
	}
}

func (in *RecordInputStream) readUnits(n int, compressed bool) []uint16 {
	if n == 0 {
		return nil
	}
	if compressed {
		b, _ := in.data.ReadFully(n)
		return compressedUnits(b)
	}
	b, _ := in.data.ReadFully(2 * n)
	return utf16Units(b)
}

// ReadCompressedUnicode reads nChars characters that start compressed.
func (in *RecordInputStream) ReadCompressedUnicode(nChars int) string {
	s, _ := in.ReadStringChars(nChars, true)
	return s
}

// ReadUnicodeLEString reads nChars characters that start wide.
func (in *RecordInputStream) ReadUnicodeLEString(nChars int) string {
	s, _ := in.ReadStringChars(nChars, false)
	return s
}

// ReadUnicodeStringOfLen reads the flag byte and nChars characters.
func (in *RecordInputStream) ReadUnicodeStringOfLen(nChars int) XLUnicodeString {
	flag := in.ReadUByte()
	text, wide := in.ReadStringChars(nChars, flag&strFlagWide == 0)
	return XLUnicodeString{Text: text, Wide: wide}
}

// ReadUnicodeString reads a 16-bit character count, the flag byte and the characters.
func (in *RecordInputStream) ReadUnicodeString() XLUnicodeString {
	n := in.ReadUShort()
	return in.ReadUnicodeStringOfLen(int(n))
}

// ReadShortUnicodeString reads an 8-bit character count, the flag byte and the characters.
func (in *RecordInputStream) ReadShortUnicodeString() XLUnicodeString {
	n := in.ReadUByte()
	return in.ReadUnicodeStringOfLen(int(n))
}
