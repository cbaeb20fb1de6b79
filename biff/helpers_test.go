package biff

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// physical builds one physical record.
func physical(sid uint16, payload ...byte) []byte {
	b := make([]byte, RecordHeaderSize, RecordHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(b, sid)
	binary.LittleEndian.PutUint16(b[2:], uint16(len(payload)))
	return append(b, payload...)
}

func le16(vs ...uint16) []byte {
	b := make([]byte, 0, 2*len(vs))
	for _, v := range vs {
		b = binary.LittleEndian.AppendUint16(b, v)
	}
	return b
}

func le32(v uint32) []byte {
	return binary.LittleEndian.AppendUint32(nil, v)
}

func join(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func bofBytes(streamType uint16) []byte {
	return Serialize(NewBOFRecord(streamType))
}

func eofBytes() []byte {
	return physical(XL_EOF)
}

func encodeRecords(t *testing.T, recs ...Record) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, recs, nil))
	return buf.Bytes()
}

func decodeBytes(t *testing.T, b []byte, opts *Options) []Record {
	t.Helper()
	recs, err := ReadRecords(bytes.NewReader(b), opts)
	require.NoError(t, err)
	return recs
}

func sids(recs []Record) []uint16 {
	out := make([]uint16, len(recs))
	for i, r := range recs {
		out[i] = r.Sid()
	}
	return out
}

// physicalSids lists the tags of the physical records in b.
func physicalSids(b []byte) []uint16 {
	var out []uint16
	for pos := 0; pos+RecordHeaderSize <= len(b); {
		out = append(out, binary.LittleEndian.Uint16(b[pos:]))
		pos += RecordHeaderSize + int(binary.LittleEndian.Uint16(b[pos+2:]))
	}
	return out
}

func newTracker(b []byte) *RecordInputStream {
	return NewRecordInputStream(bytes.NewReader(b))
}

func requireFormatError(t *testing.T, err error) *FormatError {
	t.Helper()
	var fe *FormatError
	require.ErrorAs(t, err, &fe)
	return fe
}
