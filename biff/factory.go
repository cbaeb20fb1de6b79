package biff

import (
	"github.com/rs/zerolog"
)

// RecordFactory turns the current physical record of a tracker into
// logical records.
type RecordFactory struct {
	registry        *Registry
	keepRegenerable bool
	logger          zerolog.Logger
}

// NewRecordFactory creates a factory over reg. A nil reg means DefaultRegistry.
func NewRecordFactory(reg *Registry, keepRegenerable bool, logger zerolog.Logger) *RecordFactory {
	if reg == nil {
		reg = DefaultRegistry()
	}
	return &RecordFactory{registry: reg, keepRegenerable: keepRegenerable, logger: logger}
}

// Registry returns the registry used for dispatch.
func (f *RecordFactory) Registry() *Registry {
	return f.registry
}

// isPaddingTolerated reports whether sid is written with stray zero bytes by
// some known writers.
func isPaddingTolerated(sid uint16) bool {
	switch sid {
	case XL_EOF, XL_WRITEPROTECT, XL_INTERFACEEND:
		return true
	}
	return false
}

// isRegenerable reports whether sid only caches offsets that are recomputed on write.
func isRegenerable(sid uint16) bool {
	return sid == XL_DBCELL || sid == XL_INDEX
}

// CreateSingleRecord builds one record from the current physical record,
// without normalization. Unregistered tags become UnknownRecord.
func (f *RecordFactory) CreateSingleRecord(in *RecordInputStream) (Record, error) {
	sid := in.Sid()
	ctor, ok := f.registry.Lookup(sid)
	if !ok {
		ctor = readUnknownRecord
	}
	rec, err := ctor(in)
	if err != nil {
		return nil, err
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	if n := in.Remaining(); n > 0 {
		if !isPaddingTolerated(sid) {
			return nil, in.formatError(0, "%s constructor left %d bytes unread", f.registry.Name(sid), n)
		}
		if _, err := in.SkipZeroPadding(); err != nil {
			return nil, err
		}
		f.logger.Debug().
			Str("record", f.registry.Name(sid)).
			Int64("offset", in.Offset()).
			Int("bytes", n).
			Msg("discarded zero padding")
	}
	return rec, nil
}

// CreateRecords builds the records for the current physical record and
// applies normalization: MULRK and RK become NumberRecords, MULBLANK becomes
// BlankRecords, and regenerable records are dropped unless kept.
func (f *RecordFactory) CreateRecords(in *RecordInputStream) ([]Record, error) {
	rec, err := f.CreateSingleRecord(in)
	if err != nil {
		return nil, err
	}
	switch r := rec.(type) {
	case *MulRKRecord:
		return r.Numbers(), nil
	case *MulBlankRecord:
		return r.Blanks(), nil
	case *RKRecord:
		return []Record{r.Number()}, nil
	}
	if isRegenerable(rec.Sid()) && !f.keepRegenerable {
		f.logger.Debug().
			Str("record", f.registry.Name(rec.Sid())).
			Int64("offset", in.Offset()).
			Msg("dropped regenerable record")
		return nil, nil
	}
	return []Record{rec}, nil
}
