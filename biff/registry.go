package biff

import (
	"fmt"
	"sort"
	"sync"
)

// RecordConstructor builds a record from a tracker positioned just past the
// record header. It must consume the whole payload.
type RecordConstructor func(in *RecordInputStream) (Record, error)

// RegistryEntry binds a type tag to its constructor.
type RegistryEntry struct {
	Sid  uint16
	Name string
	New  RecordConstructor
}

// Registry maps type tags to constructors. It is immutable once built and
// safe to share between streams.
type Registry struct {
	entries map[uint16]RegistryEntry
}

// NewRegistry builds a registry. A tag registered twice is an error.
func NewRegistry(entries ...RegistryEntry) (*Registry, error) {
	r := &Registry{entries: make(map[uint16]RegistryEntry, len(entries))}
	if err := r.add(entries); err != nil {
		return nil, err
	}
	return r, nil
}

// MustNewRegistry is like NewRegistry but panics on a duplicate tag.
func MustNewRegistry(entries ...RegistryEntry) *Registry {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *Registry) add(entries []RegistryEntry) error {
	for _, e := range entries {
		if e.New == nil {
			return NewFormatError("registry entry 0x%04X %s has no constructor", e.Sid, e.Name)
		}
		if prev, ok := r.entries[e.Sid]; ok {
			return NewFormatError("duplicate registration of record 0x%04X (%s and %s)", e.Sid, prev.Name, e.Name)
		}
		r.entries[e.Sid] = e
	}
	return nil
}

// With returns a new registry holding r's entries plus the given ones.
func (r *Registry) With(entries ...RegistryEntry) (*Registry, error) {
	n := &Registry{entries: make(map[uint16]RegistryEntry, len(r.entries)+len(entries))}
	for sid, e := range r.entries {
		n.entries[sid] = e
	}
	if err := n.add(entries); err != nil {
		return nil, err
	}
	return n, nil
}

// Lookup returns the constructor registered for sid.
func (r *Registry) Lookup(sid uint16) (RecordConstructor, bool) {
	e, ok := r.entries[sid]
	return e.New, ok
}

// Name returns the registered name of sid, falling back to RecordName.
func (r *Registry) Name(sid uint16) string {
	if e, ok := r.entries[sid]; ok && e.Name != "" {
		return e.Name
	}
	return RecordName(sid)
}

// KnownSids returns every registered tag in increasing order.
func (r *Registry) KnownSids() []uint16 {
	sids := make([]uint16, 0, len(r.entries))
	for sid := range r.entries {
		sids = append(sids, sid)
	}
	sort.Slice(sids, func(i, j int) bool { return sids[i] < sids[j] })
	return sids
}

// DefaultEntries returns the constructors of every record type this package decodes.
func DefaultEntries() []RegistryEntry {
	return []RegistryEntry{
		{XL_BOF, "BOF", readBOFRecord},
		{XL_EOF, "EOF", readEOFRecord},
		{XL_FILEPASS, "FILEPASS", readFilePassRecord},
		{XL_WRITEPROTECT, "WRITEPROTECT", readWriteProtectRecord},
		{XL_INTERFACEHDR, "INTERFACEHDR", readInterfaceHdrRecord},
		{XL_INTERFACEEND, "INTERFACEEND", readInterfaceEndRecord},
		{XL_CODEPAGE, "CODEPAGE", readCodepageRecord},
		{XL_BOUNDSHEET, "BOUNDSHEET", readBoundSheetRecord},
		{XL_FONT, "FONT", readFontRecord},
		{XL_SST, "SST", readSSTRecord},
		{XL_EXTSST, "EXTSST", readExtSSTRecord},
		{XL_LABELSST, "LABELSST", readLabelSSTRecord},
		{XL_LABEL, "LABEL", readLabelRecord},
		{XL_NUMBER, "NUMBER", readNumberRecord},
		{XL_RK, "RK", readRKRecord},
		{XL_MULRK, "MULRK", readMulRKRecord},
		{XL_BLANK, "BLANK", readBlankRecord},
		{XL_MULBLANK, "MULBLANK", readMulBlankRecord},
		{XL_BOOLERR, "BOOLERR", readBoolErrRecord},
		{XL_FORMULA, "FORMULA", readFormulaRecord},
		{XL_STRING, "STRING", readStringRecord},
		{XL_ROW, "ROW", readRowRecord},
		{XL_INDEX, "INDEX", readIndexRecord},
		{XL_DBCELL, "DBCELL", readDBCellRecord},
		{XL_MSO_DRAWING_GROUP, "MSODRAWINGGROUP", readDrawingGroupRecord},
		{XL_MSO_DRAWING, "MSODRAWING", readDrawingRecord},
		{XL_OBJ, "OBJ", readObjRecord},
		{XL_TXO, "TXO", readTextObjectRecord},
	}
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the shared registry built from DefaultEntries.
// A duplicate tag in the table panics on first use.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		r, err := NewRegistry(DefaultEntries()...)
		if err != nil {
			panic(fmt.Sprintf("biff: default registry: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}
