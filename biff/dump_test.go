package biff

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberBytes() []byte {
	return physical(XL_NUMBER, join(le16(0, 0, 0), make([]byte, 8))...)
}

func TestDump(t *testing.T) {
	stream := join(bofBytes(XL_WORKSHEET), numberBytes(), eofBytes(), make([]byte, 8))

	var buf bytes.Buffer
	require.NoError(t, Dump(bytes.NewReader(stream), &buf, true))
	out := buf.String()
	assert.Contains(t, out, "0809 BOF len = 0010 (16)\n")
	assert.Contains(t, out, "0203 NUMBER len = 000e (14)\n")
	assert.Contains(t, out, "000a EOF len = 0000 (0)\n")
	assert.True(t, strings.HasSuffix(out, "---- 8 zero bytes skipped ----\n"), out)
	assert.NotContains(t, out, "Misc bytes")

	buf.Reset()
	require.NoError(t, Dump(bytes.NewReader(stream), &buf, false))
	assert.Contains(t, buf.String(), "       0 0809 BOF len = 0010 (16)\n")
	assert.Contains(t, buf.String(), "      42 ---- 8 zero bytes skipped ----\n")
}

func TestDumpMiscBytes(t *testing.T) {
	stream := join(bofBytes(XL_WORKSHEET), eofBytes(), []byte{1, 2})

	var buf bytes.Buffer
	require.NoError(t, Dump(bytes.NewReader(stream), &buf, true))
	assert.Contains(t, buf.String(), "---- Misc bytes at end ----\n")
	assert.Contains(t, buf.String(), "01 02")
}

func TestDumpTruncatedRecord(t *testing.T) {
	stream := join(le16(XL_NUMBER, 100), []byte{1, 2})

	var buf bytes.Buffer
	require.NoError(t, Dump(bytes.NewReader(stream), &buf, true))
	assert.Contains(t, buf.String(), "Last dumped record has length (98) that is too large\n")
}

func TestDumpUnknownRecord(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Dump(bytes.NewReader(physical(0x1234, 7)), &buf, true))
	assert.Contains(t, buf.String(), "1234 <UNKNOWN> len = 0001 (1)\n")
}

func TestTallyRecords(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKSHEET),
		numberBytes(),
		numberBytes(),
		make([]byte, RecordHeaderSize),
		physical(0x1234, 1),
		eofBytes(),
		make([]byte, 16),
	)

	counts, err := TallyRecords(bytes.NewReader(stream))
	require.NoError(t, err)
	assert.Equal(t, []RecordCount{
		{Name: "<Dummy (zero)>", Count: 1},
		{Name: "BOF", Count: 1},
		{Name: "EOF", Count: 1},
		{Name: "NUMBER", Count: 2},
		{Name: "Unknown_0x1234", Count: 1},
	}, counts)

	var buf bytes.Buffer
	require.NoError(t, CountRecords(bytes.NewReader(stream), &buf))
	assert.Contains(t, buf.String(), "       2 NUMBER\n")
}

func TestDumpRejectsCompoundDocument(t *testing.T) {
	doc := append(append([]byte{}, ole2Signature...), make([]byte, 24)...)

	assert.ErrorIs(t, Dump(bytes.NewReader(doc), &bytes.Buffer{}, true), ErrCompoundDocument)
	_, err := TallyRecords(bytes.NewReader(doc))
	assert.ErrorIs(t, err, ErrCompoundDocument)
}

func TestDumpRejectsOversizedRecord(t *testing.T) {
	stream := join(bofBytes(XL_WORKSHEET), le16(XL_NUMBER, MaxRecordDataSize+1), make([]byte, 16))

	var buf bytes.Buffer
	fe := requireFormatError(t, Dump(bytes.NewReader(stream), &buf, true))
	assert.Equal(t, uint16(XL_NUMBER), fe.Sid)
	assert.Equal(t, int64(20), fe.Offset)
	assert.Equal(t, "record length 8225 exceeds the maximum of 8224", fe.Message)
	assert.Contains(t, buf.String(), "0809 BOF len = 0010 (16)\n")
	assert.NotContains(t, buf.String(), "NUMBER")

	counts, err := TallyRecords(bytes.NewReader(stream))
	assert.Nil(t, counts)
	fe = requireFormatError(t, err)
	assert.Equal(t, uint16(XL_NUMBER), fe.Sid)
	assert.Equal(t, int64(20), fe.Offset)
}

func TestDumpAcceptsMaximalRecord(t *testing.T) {
	stream := join(physical(XL_MSO_DRAWING, make([]byte, MaxRecordDataSize)...), eofBytes())

	var buf bytes.Buffer
	require.NoError(t, Dump(bytes.NewReader(stream), &buf, true))
	assert.Contains(t, buf.String(), "len = 2020 (8224)\n")
	assert.NotContains(t, buf.String(), "too large")
}
