package biff

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// WriteOptions configures an encode session.
type WriteOptions struct {
	// Password turns on RC4 encryption. A FILEPASS record is inserted after
	// the first BOF and everything after it is encrypted.
	Password string
	// Logger receives debug events. Nil disables logging.
	Logger *zerolog.Logger
	// Rand supplies the salt and verifier. Nil means crypto/rand.
	Rand io.Reader
}

// RecordWriter serializes logical records to a workbook stream.
type RecordWriter struct {
	w      *bufio.Writer
	opts   WriteOptions
	logger zerolog.Logger
	pos    int64
	cipher *rc4Cipher
	sawBOF bool
	err    error
}

// NewRecordWriter creates a writer on w.
func NewRecordWriter(w io.Writer, opts *WriteOptions) *RecordWriter {
	if opts == nil {
		opts = &WriteOptions{}
	}
	rw := &RecordWriter{
		w:      bufio.NewWriter(w),
		opts:   *opts,
		logger: zerolog.Nop(),
	}
	if opts.Logger != nil {
		rw.logger = *opts.Logger
	}
	if rw.opts.Rand == nil {
		rw.opts.Rand = rand.Reader
	}
	return rw
}

// Offset returns the number of bytes written so far.
func (w *RecordWriter) Offset() int64 {
	return w.pos
}

// Write serializes one record.
func (w *RecordWriter) Write(rec Record) error {
	if w.err != nil {
		return w.err
	}
	if rec.Sid() == XL_FILEPASS && w.opts.Password != "" {
		return NewFormatError("FILEPASS is generated by the writer when a password is set")
	}
	if err := w.checkLimits(rec); err != nil {
		return err
	}
	size := rec.RecordSize()
	out := NewLittleEndianOutput(size)
	rec.Serialize(out)
	b := out.Bytes()
	if len(b) != size {
		w.err = NewFormatError("record 0x%04X %s wrote %d bytes but reported a size of %d",
			rec.Sid(), RecordName(rec.Sid()), len(b), size)
		return w.err
	}
	if err := w.checkPhysical(rec.Sid(), b); err != nil {
		return err
	}
	if err := w.emit(b); err != nil {
		return err
	}
	if rec.Sid() == XL_BOF && !w.sawBOF {
		w.sawBOF = true
		if w.opts.Password != "" {
			return w.startEncryption()
		}
	}
	return nil
}

// limitedRecord is implemented by records with fields whose encoded
// counts are narrower than the values they describe.
type limitedRecord interface {
	checkLimits() error
}

// checkLimits rejects a record before anything is written.
func (w *RecordWriter) checkLimits(rec Record) error {
	if b, ok := rec.(standardBody); ok && b.dataSize() > MaxRecordDataSize {
		return w.limitError(rec.Sid(), "record length %d exceeds the maximum of %d", b.dataSize(), MaxRecordDataSize)
	}
	if l, ok := rec.(limitedRecord); ok {
		if err := l.checkLimits(); err != nil {
			return w.limitError(rec.Sid(), "%s", err.Error())
		}
	}
	return nil
}

// checkPhysical verifies that b is a run of physical records the decoder accepts.
func (w *RecordWriter) checkPhysical(sid uint16, b []byte) error {
	pos := 0
	for pos+RecordHeaderSize <= len(b) {
		n := int(binary.LittleEndian.Uint16(b[pos+2:]))
		if n > MaxRecordDataSize {
			return w.limitError(sid, "record length %d exceeds the maximum of %d", n, MaxRecordDataSize)
		}
		pos += RecordHeaderSize + n
	}
	if pos != len(b) {
		return w.limitError(sid, "serialized record does not split into whole physical records")
	}
	return nil
}

func (w *RecordWriter) limitError(sid uint16, format string, args ...interface{}) error {
	e := NewFormatError(format, args...)
	e.Sid = sid
	e.Offset = w.pos
	return e
}

func (w *RecordWriter) startEncryption() error {
	fp, c, err := newRC4FilePass(w.opts.Password, w.opts.Rand)
	if err != nil {
		w.err = err
		return err
	}
	out := NewLittleEndianOutput(fp.RecordSize())
	fp.Serialize(out)
	if err := w.emit(out.Bytes()); err != nil {
		return err
	}
	w.cipher = c
	w.logger.Debug().Int64("offset", w.pos).Msg("RC4 encryption started")
	return nil
}

// emit encrypts b if needed and writes it. b holds whole physical records.
func (w *RecordWriter) emit(b []byte) error {
	if w.cipher != nil {
		encryptRecords(w.cipher, b, w.pos)
	}
	n, err := w.w.Write(b)
	w.pos += int64(n)
	if err != nil {
		w.err = errors.Wrap(err, "write record")
		return w.err
	}
	return nil
}

// encryptRecords encrypts the payloads of the physical records in b, which
// starts at stream offset pos. Headers stay in the clear.
func encryptRecords(c *rc4Cipher, b []byte, pos int64) {
	for i := 0; i+RecordHeaderSize <= len(b); {
		sid := binary.LittleEndian.Uint16(b[i:])
		n := int(binary.LittleEndian.Uint16(b[i+2:]))
		start := i + RecordHeaderSize
		end := min(start+n, len(b))
		cryptRecordPayload(c, sid, b[start:end], pos+int64(start))
		i = end
	}
}

// Close flushes buffered output and drops any key material.
func (w *RecordWriter) Close() error {
	if w.cipher != nil {
		w.cipher.zero()
		w.cipher = nil
	}
	if err := w.w.Flush(); err != nil {
		return errors.Wrap(err, "flush records")
	}
	return w.err
}

// Encode writes records to w as a workbook stream.
func Encode(w io.Writer, records []Record, opts *WriteOptions) error {
	rw := NewRecordWriter(w, opts)
	for _, rec := range records {
		if err := rw.Write(rec); err != nil {
			rw.Close()
			return err
		}
	}
	return rw.Close()
}

// Serialize returns the bytes of a single record.
func Serialize(rec Record) []byte {
	out := NewLittleEndianOutput(rec.RecordSize())
	rec.Serialize(out)
	return out.Bytes()
}
