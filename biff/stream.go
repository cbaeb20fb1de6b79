package biff

import (
	"bytes"
	"io"
	"iter"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// TrailingPolicy decides what may follow the final EOF of a stream.
type TrailingPolicy int

const (
	// TrailingLenient ends the stream at the first non-BOF header after the
	// outermost EOF, whatever the remaining bytes are.
	TrailingLenient TrailingPolicy = iota
	// TrailingStrict also requires every remaining byte to be zero.
	TrailingStrict
)

func (p TrailingPolicy) String() string {
	if p == TrailingStrict {
		return "strict"
	}
	return "lenient"
}

// ParseTrailingPolicy accepts "lenient" and "strict".
func ParseTrailingPolicy(s string) (TrailingPolicy, error) {
	switch s {
	case "", "lenient":
		return TrailingLenient, nil
	case "strict":
		return TrailingStrict, nil
	}
	return TrailingLenient, errors.Errorf("unknown trailing policy %q", s)
}

// Options configures a decode session.
type Options struct {
	// Password unlocks RC4-encrypted streams. Empty means the default
	// write-protection password.
	Password string
	// Logger receives debug events for tolerated anomalies. Nil disables logging.
	Logger *zerolog.Logger
	// Registry overrides DefaultRegistry.
	Registry *Registry
	// TrailingPolicy controls bytes after the final EOF.
	TrailingPolicy TrailingPolicy
	// KeepRegenerable surfaces INDEX and DBCELL records instead of dropping them.
	KeepRegenerable bool
	// DetachFormulaStrings surfaces STRING records on their own instead of
	// attaching them to the preceding FORMULA.
	DetachFormulaStrings bool
	// CapacityHint preallocates the slice returned by ReadAll.
	CapacityHint int
	// MaxAggregateSize limits the merged size of a drawing aggregate. Zero means no limit.
	MaxAggregateSize int
}

// compound document signature
var ole2Signature = []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

// RecordStream pulls logical records from a workbook stream.
// It is not safe for concurrent use.
type RecordStream struct {
	in      *RecordInputStream
	factory *RecordFactory
	opts    Options
	logger  zerolog.Logger

	queue     []Record
	depth     int
	eofAtZero bool
	last      Record
	done      bool
	err       error

	filePass *FilePassRecord
	cipher   *rc4Cipher
}

// Open starts decoding the workbook stream read from r.
//
// The leading BOF, an optional WRITEPROTECT and FILEPASS are read ahead.
// When FILEPASS announces RC4 encryption the key is derived and checked
// here, so a wrong password fails before any record is returned.
func Open(r io.Reader, opts *Options) (*RecordStream, error) {
	if opts == nil {
		opts = &Options{}
	}
	s := &RecordStream{
		in:     NewRecordInputStream(r),
		opts:   *opts,
		logger: zerolog.Nop(),
	}
	if opts.Logger != nil {
		s.logger = *opts.Logger
	}
	s.factory = NewRecordFactory(opts.Registry, opts.KeepRegenerable, s.logger)

	if head, _ := s.in.src.r.Peek(len(ole2Signature)); bytes.Equal(head, ole2Signature) {
		return nil, ErrCompoundDocument
	}
	if err := s.readHeader(); err != nil {
		return nil, err
	}
	return s, nil
}

// readHeader queues the leading records and sets up decryption.
func (s *RecordStream) readHeader() error {
	want := []uint16{XL_BOF, XL_WRITEPROTECT, XL_FILEPASS}
	for _, sid := range want {
		next, ok := s.in.NextSid()
		if !ok {
			return nil
		}
		if next != sid {
			if sid == XL_WRITEPROTECT {
				continue
			}
			return nil
		}
		if err := s.in.NextRecord(); err != nil {
			return err
		}
		if sid == XL_FILEPASS {
			rec, err := readFilePassRecord(s.in)
			if err != nil {
				return err
			}
			if n := s.in.Remaining(); n > 0 {
				return s.in.formatError(0, "FILEPASS left %d bytes unread", n)
			}
			return s.unlock(rec.(*FilePassRecord))
		}
		rec, err := s.factory.CreateSingleRecord(s.in)
		if err != nil {
			return err
		}
		s.queue = append(s.queue, rec)
	}
	return nil
}

func (s *RecordStream) unlock(fp *FilePassRecord) error {
	c, err := unlockFilePass(fp, s.opts.Password)
	if err != nil {
		return errors.Wrapf(err, "unlock workbook stream at offset %d", s.in.Offset())
	}
	s.filePass = fp
	s.cipher = c
	s.in.enableDecryption(c)
	s.logger.Debug().
		Int64("offset", s.in.Offset()).
		Msg("stream is RC4 encrypted")
	return nil
}

// FilePass returns the FILEPASS record of an encrypted stream, or nil.
func (s *RecordStream) FilePass() *FilePassRecord {
	return s.filePass
}

// Depth returns the current BOF/EOF nesting depth.
func (s *RecordStream) Depth() int {
	return s.depth
}

// Next returns the next logical record, or io.EOF once the stream has ended.
// After an error every later call returns the same error.
func (s *RecordStream) Next() (Record, error) {
	if s.err != nil {
		return nil, s.err
	}
	rec, err := s.next()
	if err != nil {
		s.err = err
		return nil, err
	}
	s.track(rec)
	return rec, nil
}

func (s *RecordStream) next() (Record, error) {
	for {
		if len(s.queue) > 0 {
			rec := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			return rec, nil
		}
		if s.done {
			return nil, io.EOF
		}
		if s.eofAtZero {
			if sid, ok := s.in.NextSid(); !ok || sid != XL_BOF {
				return nil, s.finish()
			}
			s.eofAtZero = false
		}
		ok, err := s.in.HasNextRecord()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, s.finish()
		}
		if err := s.in.NextRecord(); err != nil {
			return nil, err
		}
		recs, err := s.readLogical()
		if err != nil {
			return nil, err
		}
		s.queue = append(s.queue, recs...)
	}
}

// track updates the nesting state for a record about to be surfaced.
func (s *RecordStream) track(rec Record) {
	switch rec.Sid() {
	case XL_BOF:
		s.depth++
	case XL_EOF:
		s.depth--
		if s.depth <= 0 {
			s.depth = 0
			s.eofAtZero = true
		}
	}
	s.last = rec
}

// finish ends the stream and applies the trailing policy to what is left.
func (s *RecordStream) finish() error {
	s.done = true
	rest, err := s.in.src.rest()
	if err != nil {
		return errors.Wrap(err, "read trailing bytes")
	}
	if len(rest) == 0 {
		return io.EOF
	}
	if s.opts.TrailingPolicy == TrailingStrict {
		for i, b := range rest {
			if b != 0 {
				return &FormatError{
					Offset:  s.in.src.pos - int64(len(rest)) + int64(i),
					Message: "non-zero byte after the end of the stream",
				}
			}
		}
	}
	s.logger.Debug().
		Int("bytes", len(rest)).
		Msg("ignored trailing bytes after the end of the stream")
	return io.EOF
}

// readLogical turns the current physical record into zero or more logical records.
func (s *RecordStream) readLogical() ([]Record, error) {
	switch s.in.Sid() {
	case XL_CONTINUE:
		rec, err := s.strayContinue()
		if err != nil {
			return nil, err
		}
		return []Record{rec}, nil
	case XL_FILEPASS:
		return nil, s.in.formatError(0, "FILEPASS record outside the stream header")
	}
	recs, err := s.factory.CreateRecords(s.in)
	if err != nil {
		return nil, err
	}
	if len(recs) != 1 {
		return recs, nil
	}
	switch r := recs[0].(type) {
	case *DrawingGroupRecord:
		err = s.absorb(&r.escherAggregate, XL_CONTINUE, XL_MSO_DRAWING_GROUP)
	case *DrawingRecord:
		err = s.absorb(&r.escherAggregate, XL_CONTINUE)
	case *FormulaRecord:
		var extra Record
		if extra, err = s.attachString(r); extra != nil {
			recs = append(recs, extra)
		}
	}
	if err != nil {
		return nil, err
	}
	return recs, nil
}

// absorb merges the following physical records with one of the given tags into agg.
func (s *RecordStream) absorb(agg *escherAggregate, sids ...uint16) error {
	for {
		next, ok := s.in.NextSid()
		if !ok || !containsSid(sids, next) {
			return nil
		}
		if err := s.in.NextRecord(); err != nil {
			return err
		}
		data := s.in.ReadRemainder()
		if limit := s.opts.MaxAggregateSize; limit > 0 && agg.dataLen()+len(data) > limit {
			return s.in.formatError(0, "drawing aggregate exceeds the limit of %d bytes", limit)
		}
		agg.appendFragment(next, data)
	}
}

func containsSid(sids []uint16, sid uint16) bool {
	for _, s := range sids {
		if s == sid {
			return true
		}
	}
	return false
}

// attachString moves a STRING record following a string-valued formula into it.
// A STRING that a custom registry decodes as another type is returned
// instead, to be surfaced right after the formula.
func (s *RecordStream) attachString(r *FormulaRecord) (Record, error) {
	if s.opts.DetachFormulaStrings || !r.Result.IsStringPending() {
		return nil, nil
	}
	if next, ok := s.in.NextSid(); !ok || next != XL_STRING {
		return nil, nil
	}
	if err := s.in.NextRecord(); err != nil {
		return nil, err
	}
	rec, err := s.factory.CreateSingleRecord(s.in)
	if err != nil {
		return nil, err
	}
	if str, ok := rec.(*StringRecord); ok {
		r.StringTail = str
		return nil, nil
	}
	return rec, nil
}

// strayContinue handles a CONTINUE that no preceding record absorbed.
func (s *RecordStream) strayContinue() (Record, error) {
	if !s.toleratesContinue() {
		owner := "start of stream"
		if s.last != nil {
			owner = s.factory.Registry().Name(s.last.Sid())
		}
		return nil, s.in.formatError(0, "unexpected CONTINUE record after %s", owner)
	}
	rec := &ContinueRecord{Data: s.in.ReadRemainder()}
	s.logger.Debug().
		Str("after", s.factory.Registry().Name(s.last.Sid())).
		Int64("offset", s.in.Offset()).
		Int("bytes", len(rec.Data)).
		Msg("passing through stray CONTINUE record")
	return rec, s.in.Err()
}

// toleratesContinue judges a CONTINUE by the last surfaced record. Dropped
// INDEX and DBCELL records never own a CONTINUE, so skipping them is safe.
func (s *RecordStream) toleratesContinue() bool {
	switch s.last.(type) {
	case nil:
		return false
	case *UnknownRecord, *ContinueRecord, *ObjRecord, *TextObjectRecord, *EOFRecord:
		return true
	}
	switch s.last.Sid() {
	case XL_OBJ, XL_TXO, XL_EOF:
		return true
	}
	return false
}

// Records iterates over the remaining logical records. Iteration stops
// after the first error, which is yielded with a nil record.
func (s *RecordStream) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		for {
			rec, err := s.Next()
			if err == io.EOF {
				return
			}
			if !yield(rec, err) || err != nil {
				return
			}
		}
	}
}

// ReadAll reads every remaining logical record.
func (s *RecordStream) ReadAll() ([]Record, error) {
	recs := make([]Record, 0, max(s.opts.CapacityHint, 0))
	for rec, err := range s.Records() {
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// Close ends the session and drops any key material.
func (s *RecordStream) Close() error {
	if s.cipher != nil {
		s.cipher.zero()
		s.cipher = nil
		s.in.enableDecryption(nil)
	}
	s.done = true
	s.queue = nil
	s.last = nil
	return nil
}

// ReadRecords decodes every logical record of a workbook stream.
func ReadRecords(r io.Reader, opts *Options) ([]Record, error) {
	s, err := Open(r, opts)
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.ReadAll()
}
