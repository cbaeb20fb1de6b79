package biff

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// FileFormatDescriptions describes the values returned by InspectFormat.
var FileFormatDescriptions = map[string]string{
	"biff": "BIFF8 workbook stream",
	"xls":  "Excel xls (OLE2 compound document)",
	"xlsb": "Excel 2007 xlsb file",
	"xlsx": "Excel xlsx file",
	"ods":  "Openoffice.org ODS file",
	"zip":  "Unknown ZIP file",
	"":     "Unknown file type",
}

var zipSignature = []byte("PK\x03\x04")

const peekSize = 8

// InspectFormat guesses the format of content. The result can be looked up
// in FileFormatDescriptions.
func InspectFormat(content []byte) (string, error) {
	if len(content) < RecordHeaderSize {
		return "", nil
	}
	if bytes.HasPrefix(content, ole2Signature) {
		return "xls", nil
	}
	if bytes.HasPrefix(content, zipSignature) {
		zf, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
		if err != nil {
			return "", errors.Wrap(err, "read zip directory")
		}
		return inspectZip(zf), nil
	}
	if looksLikeBOF(content) {
		return "biff", nil
	}
	return "", nil
}

// InspectFile is InspectFormat for a file path. A leading ~ is expanded.
func InspectFile(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = strings.Replace(path, "~", home, 1)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	peek := make([]byte, peekSize)
	n, err := io.ReadFull(f, peek)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", err
	}
	peek = peek[:n]
	if !bytes.HasPrefix(peek, zipSignature) {
		return InspectFormat(peek)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", errors.Wrapf(err, "open zip %s", path)
	}
	defer zr.Close()
	return inspectZip(&zr.Reader), nil
}

func inspectZip(zf *zip.Reader) string {
	// some third party writers use backslashes and odd case in member names
	names := make(map[string]bool, len(zf.File))
	for _, f := range zf.File {
		names[strings.ToLower(strings.ReplaceAll(f.Name, "\\", "/"))] = true
	}
	switch {
	case names["xl/workbook.xml"]:
		return "xlsx"
	case names["xl/workbook.bin"]:
		return "xlsb"
	case names["content.xml"]:
		return "ods"
	}
	return "zip"
}

func looksLikeBOF(b []byte) bool {
	sid := binary.LittleEndian.Uint16(b)
	length := binary.LittleEndian.Uint16(b[2:])
	return sid == XL_BOF && length >= 8 && length <= MaxRecordDataSize
}
