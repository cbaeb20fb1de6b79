package biff

import (
	"bytes"
	"strings"
	"testing"
)

func TestHexCharDump(t *testing.T) {
	var buf bytes.Buffer
	data := []byte("abc\x00e\x01")
	HexCharDump(data, 0, 6, 0, &buf, false)
	s := buf.String()

	if !strings.Contains(s, "61 62 63 00 65 01") {
		t.Errorf("HexCharDump output should contain '61 62 63 00 65 01', got: %s", s)
	}
	if !strings.Contains(s, "abc~e?") {
		t.Errorf("HexCharDump output should contain 'abc~e?', got: %s", s)
	}
	if !strings.HasPrefix(s, "    0: ") {
		t.Errorf("HexCharDump output should start with the offset, got: %s", s)
	}
}

func TestHexCharDumpRows(t *testing.T) {
	var buf bytes.Buffer
	HexCharDump(make([]byte, 40), 4, 100, 0x100, &buf, true)
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("HexCharDump wrote %d lines, want 3: %q", len(lines), buf.String())
	}
	if strings.Contains(lines[0], ":") {
		t.Errorf("unnumbered dump should not carry offsets, got: %s", lines[0])
	}
}

func TestBiffTextFromNum(t *testing.T) {
	tests := []struct {
		input    int
		expected string
	}{
		{0, "(not BIFF)"},
		{20, "2.0"},
		{21, "2.1"},
		{30, "3"},
		{40, "4S"},
		{45, "4W"},
		{50, "5"},
		{70, "7"},
		{80, "8"},
		{85, "8X"},
		{99, "Unknown(99)"},
	}

	for _, test := range tests {
		result := BiffTextFromNum(test.input)
		if result != test.expected {
			t.Errorf("BiffTextFromNum(%d) = %s, expected %s", test.input, result, test.expected)
		}
	}
}

func TestErrorTextFromCode(t *testing.T) {
	tests := []struct {
		code     byte
		expected string
	}{
		{0x00, "#NULL!"},
		{0x07, "#DIV/0!"},
		{0x0F, "#VALUE!"},
		{0x17, "#REF!"},
		{0x1D, "#NAME?"},
		{0x24, "#NUM!"},
		{0x2A, "#N/A"},
	}

	for _, test := range tests {
		result := ErrorTextFromCode[test.code]
		if result != test.expected {
			t.Errorf("ErrorTextFromCode[0x%02x] = %s, expected %s", test.code, result, test.expected)
		}
	}
}

func TestIsCellSid(t *testing.T) {
	tests := []struct {
		sid      uint16
		expected bool
	}{
		{XL_BOOLERR, true},
		{XL_FORMULA, true},
		{XL_LABELSST, true},
		{XL_NUMBER, true},
		{XL_RK, true},
		{XL_MULRK, true},
		{XL_BOF, false},
		{XL_EOF, false},
		{XL_STRING, false},
		{0xFFFF, false},
	}

	for _, test := range tests {
		result := IsCellSid(test.sid)
		if result != test.expected {
			t.Errorf("IsCellSid(0x%04x) = %v, expected %v", test.sid, result, test.expected)
		}
	}
}

func TestBiffVersion(t *testing.T) {
	tests := []struct {
		bof      BOFRecord
		expected int
	}{
		{BOFRecord{Version: 0x0600}, 80},
		{BOFRecord{Version: 0x0500, Year: 1993}, 50},
		{BOFRecord{Version: 0x0500, Year: 1995, Build: 2412}, 50},
		{BOFRecord{Version: 0x0500, Year: 1995, Build: 4000}, 70},
		{BOFRecord{Version: 0x0007}, 21},
		{BOFRecord{Version: 0x0300}, 0},
	}

	for _, test := range tests {
		result := test.bof.BiffVersion()
		if result != test.expected {
			t.Errorf("BiffVersion(%+v) = %d, expected %d", test.bof, result, test.expected)
		}
	}
	if !NewBOFRecord(XL_WORKBOOK_GLOBALS).IsWorkbookGlobals() {
		t.Error("globals BOF should report IsWorkbookGlobals")
	}
}

func TestFormatErrorMessage(t *testing.T) {
	e := &FormatError{Sid: XL_LABEL, Offset: 20, Deficit: 3, Message: "not enough data"}
	want := "not enough data (record 0x0204 LABEL at offset 20, short by 3 bytes)"
	if e.Error() != want {
		t.Errorf("FormatError.Error() = %q, expected %q", e.Error(), want)
	}
	if got := NewFormatError("free %d", 1).Error(); got != "free 1" {
		t.Errorf("NewFormatError().Error() = %q, expected %q", got, "free 1")
	}
}

func TestTypeNames(t *testing.T) {
	if got := NewBOFRecord(XL_CHART).TypeName(); got != "chart" {
		t.Errorf("TypeName() = %s, expected chart", got)
	}
	if got := StreamTypeName(XL_WORKSPACE); got != "workspace" {
		t.Errorf("StreamTypeName(XL_WORKSPACE) = %s, expected workspace", got)
	}
	if got := StreamTypeName(0x7); got != "Unknown(0x7)" {
		t.Errorf("StreamTypeName(0x7) = %s, expected Unknown(0x7)", got)
	}

	tests := []struct {
		sheetType uint8
		expected  string
	}{
		{XL_BOUNDSHEET_WORKSHEET, "worksheet"},
		{XL_BOUNDSHEET_MACROSHEET, "macro sheet"},
		{XL_BOUNDSHEET_CHART, "chart"},
		{XL_BOUNDSHEET_VB_MODULE, "VB module"},
		{0x09, "Unknown(0x9)"},
	}
	for _, test := range tests {
		r := &BoundSheetRecord{SheetType: test.sheetType}
		if got := r.SheetTypeName(); got != test.expected {
			t.Errorf("SheetTypeName(0x%02x) = %s, expected %s", test.sheetType, got, test.expected)
		}
	}
}
