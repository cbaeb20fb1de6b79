package biff

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func zipWith(t *testing.T, names ...string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte("<x/>"))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestInspectFormat(t *testing.T) {
	testCases := []struct {
		name    string
		content []byte
		want    string
	}{
		{name: "workbook stream", content: join(bofBytes(XL_WORKBOOK_GLOBALS), eofBytes()), want: "biff"},
		{name: "compound document", content: append(append([]byte{}, ole2Signature...), make([]byte, 8)...), want: "xls"},
		{name: "xlsx", content: zipWith(t, "[Content_Types].xml", "xl/workbook.xml"), want: "xlsx"},
		{name: "xlsb with backslashes", content: zipWith(t, `xl\Workbook.bin`), want: "xlsb"},
		{name: "ods", content: zipWith(t, "mimetype", "content.xml"), want: "ods"},
		{name: "other zip", content: zipWith(t, "readme.txt"), want: "zip"},
		{name: "short", content: []byte{0x09, 0x08}, want: ""},
		{name: "text", content: []byte("hello, world"), want: ""},
		{name: "BOF too short", content: le16(XL_BOF, 4, 0, 0), want: ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := InspectFormat(tc.content)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Contains(t, FileFormatDescriptions, got)
		})
	}
}

func TestInspectFormatBrokenZip(t *testing.T) {
	_, err := InspectFormat(append([]byte("PK\x03\x04"), make([]byte, 16)...))
	assert.Error(t, err)
}

func TestInspectFile(t *testing.T) {
	dir := t.TempDir()
	write := func(name string, content []byte) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, content, 0o644))
		return path
	}

	got, err := InspectFile(write("book.bin", join(bofBytes(XL_WORKBOOK_GLOBALS), eofBytes())))
	require.NoError(t, err)
	assert.Equal(t, "biff", got)

	got, err = InspectFile(write("book.xlsx", zipWith(t, "xl/workbook.xml")))
	require.NoError(t, err)
	assert.Equal(t, "xlsx", got)

	got, err = InspectFile(write("tiny", []byte{1}))
	require.NoError(t, err)
	assert.Equal(t, "", got)

	_, err = InspectFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
