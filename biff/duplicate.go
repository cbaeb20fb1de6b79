package biff

import (
	"bytes"
	"io"
)

// Cloner is implemented by records that can copy themselves field by field.
type Cloner interface {
	Clone() Record
}

// Duplicate returns an independent copy of r.
//
// Records implementing Cloner are copied directly. Aggregate records are
// copied by serializing them and decoding the bytes again with reg, or
// DefaultRegistry when reg is nil.
func Duplicate(r Record, reg *Registry) (Record, error) {
	if c, ok := r.(Cloner); ok {
		return c.Clone(), nil
	}
	s, err := Open(bytes.NewReader(Serialize(r)), &Options{Registry: reg, KeepRegenerable: true})
	if err != nil {
		return nil, err
	}
	defer s.Close()
	first, err := s.Next()
	if err != nil {
		if err == io.EOF {
			return nil, NewFormatError("record 0x%04X decoded to nothing", r.Sid())
		}
		return nil, err
	}
	if _, err := s.Next(); err != io.EOF {
		if err != nil {
			return nil, err
		}
		return nil, NewFormatError("record 0x%04X decoded to more than one record", r.Sid())
	}
	return first, nil
}
