package biff

import (
	"fmt"

	"github.com/pkg/errors"
)

// FormatError reports a structural violation of the record stream.
//
// Sid and Offset identify the physical record being read when the fault was
// detected; Offset is -1 when no record was current. Deficit is the number of
// bytes that were missing for the failed read, or 0 when not applicable.
type FormatError struct {
	Sid     uint16
	Offset  int64
	Deficit int
	Message string
}

func (e *FormatError) Error() string {
	if e.Offset < 0 {
		return e.Message
	}
	if e.Deficit > 0 {
		return fmt.Sprintf("%s (record 0x%04X %s at offset %d, short by %d bytes)",
			e.Message, e.Sid, RecordName(e.Sid), e.Offset, e.Deficit)
	}
	return fmt.Sprintf("%s (record 0x%04X %s at offset %d)", e.Message, e.Sid, RecordName(e.Sid), e.Offset)
}

// NewFormatError creates a new FormatError that is not tied to a record.
func NewFormatError(format string, args ...interface{}) *FormatError {
	return &FormatError{Offset: -1, Message: fmt.Sprintf(format, args...)}
}

// AuthError reports that the supplied password does not unlock an encrypted stream.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is(err, ErrWrongPassword) match.
func (e *AuthError) Unwrap() error {
	return ErrWrongPassword
}

// NewAuthError creates a new AuthError with the given message.
func NewAuthError(format string, args ...interface{}) *AuthError {
	return &AuthError{Message: fmt.Sprintf(format, args...)}
}

var (
	// ErrWrongPassword is matched by every AuthError.
	ErrWrongPassword = errors.New("biff: wrong password")
	// ErrUnsupportedEncryption is returned for FILEPASS variants other than BIFF8 RC4.
	ErrUnsupportedEncryption = errors.New("biff: unsupported encryption")
	// ErrCompoundDocument is returned when an OLE2 container is given instead of a workbook stream.
	ErrCompoundDocument = errors.New("biff: input is an OLE2 compound document, not a workbook stream")
)

// IsFormatError reports whether err carries a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// Limits of the physical record layout.
const (
	RecordHeaderSize  = 4
	MaxRecordDataSize = 8224
	MaxRecordSize     = RecordHeaderSize + MaxRecordDataSize
)

// BOF stream types
const (
	XL_WORKBOOK_GLOBALS = 0x5
	XL_VB_MODULE        = 0x6
	XL_WORKSHEET        = 0x10
	XL_CHART            = 0x20
	XL_MACROSHEET       = 0x40
	XL_WORKSPACE        = 0x100
)

var streamTypeNames = map[uint16]string{
	XL_WORKBOOK_GLOBALS: "workbook globals",
	XL_VB_MODULE:        "VB module",
	XL_WORKSHEET:        "worksheet",
	XL_CHART:            "chart",
	XL_MACROSHEET:       "macro sheet",
	XL_WORKSPACE:        "workspace",
}

// StreamTypeName names a BOF substream type.
func StreamTypeName(streamType uint16) string {
	if name, ok := streamTypeNames[streamType]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%X)", streamType)
}

// BOUNDSHEET sheet types
const (
	XL_BOUNDSHEET_WORKSHEET  = 0x00
	XL_BOUNDSHEET_MACROSHEET = 0x01
	XL_BOUNDSHEET_CHART      = 0x02
	XL_BOUNDSHEET_VB_MODULE  = 0x06
)

var sheetTypeNames = map[uint8]string{
	XL_BOUNDSHEET_WORKSHEET:  "worksheet",
	XL_BOUNDSHEET_MACROSHEET: "macro sheet",
	XL_BOUNDSHEET_CHART:      "chart",
	XL_BOUNDSHEET_VB_MODULE:  "VB module",
}

// SheetTypeName names a BOUNDSHEET sheet type.
func SheetTypeName(sheetType uint8) string {
	if name, ok := sheetTypeNames[sheetType]; ok {
		return name
	}
	return fmt.Sprintf("Unknown(0x%X)", sheetType)
}

var biffTextFromNum = map[int]string{
	0:  "(not BIFF)",
	20: "2.0",
	21: "2.1",
	30: "3",
	40: "4S",
	45: "4W",
	50: "5",
	70: "7",
	80: "8",
	85: "8X",
}

// BiffTextFromNum returns a text representation of a BIFF version number.
func BiffTextFromNum(num int) string {
	if text, ok := biffTextFromNum[num]; ok {
		return text
	}
	return fmt.Sprintf("Unknown(%d)", num)
}

// ErrorTextFromCode returns a text representation of an Excel error code.
var ErrorTextFromCode = map[byte]string{
	0x00: "#NULL!",  // Intersection of two cell ranges is empty
	0x07: "#DIV/0!", // Division by zero
	0x0F: "#VALUE!", // Wrong type of operand
	0x17: "#REF!",   // Illegal or deleted cell reference
	0x1D: "#NAME?",  // Wrong function or range name
	0x24: "#NUM!",   // Value range overflow
	0x2A: "#N/A",    // Argument or function not available
}

// BIFF8 record type constants
const (
	XL_ARRAY                 = 0x0221
	XL_BLANK                 = 0x0201
	XL_BOF                   = 0x0809
	XL_BOOLERR               = 0x0205
	XL_BOUNDSHEET            = 0x0085
	XL_CF                    = 0x01B1
	XL_CODEPAGE              = 0x0042
	XL_COLINFO               = 0x007D
	XL_CONDFMT               = 0x01B0
	XL_CONTINUE              = 0x003C
	XL_COUNTRY               = 0x008C
	XL_DATEMODE              = 0x0022
	XL_DBCELL                = 0x00D7
	XL_DEFAULTROWHEIGHT      = 0x0225
	XL_DEFCOLWIDTH           = 0x0055
	XL_DIMENSION             = 0x0200
	XL_EOF                   = 0x000A
	XL_EXTERNNAME            = 0x0023
	XL_EXTERNSHEET           = 0x0017
	XL_EXTSST                = 0x00FF
	XL_FEAT11                = 0x0872
	XL_FILELOCK              = 0x0195
	XL_FILEPASS              = 0x002F
	XL_FONT                  = 0x0031
	XL_FORMAT                = 0x041E
	XL_FORMULA               = 0x0006
	XL_GCW                   = 0x00AB
	XL_HLINK                 = 0x01B8
	XL_HORIZONTALPAGEBREAKS  = 0x001B
	XL_INDEX                 = 0x020B
	XL_INTERFACEEND          = 0x00E2
	XL_INTERFACEHDR          = 0x00E1
	XL_LABEL                 = 0x0204
	XL_LABELSST              = 0x00FD
	XL_MERGEDCELLS           = 0x00E5
	XL_MSO_DRAWING           = 0x00EC
	XL_MSO_DRAWING_GROUP     = 0x00EB
	XL_MSO_DRAWING_SELECTION = 0x00ED
	XL_MULBLANK              = 0x00BE
	XL_MULRK                 = 0x00BD
	XL_NAME                  = 0x0018
	XL_NOTE                  = 0x001C
	XL_NUMBER                = 0x0203
	XL_OBJ                   = 0x005D
	XL_PALETTE               = 0x0092
	XL_QUICKTIP              = 0x0800
	XL_RK                    = 0x027E
	XL_ROW                   = 0x0208
	XL_RRDHEAD               = 0x0138
	XL_RRDINFO               = 0x0196
	XL_SHRFMLA               = 0x04BC
	XL_SST                   = 0x00FC
	XL_STRING                = 0x0207
	XL_STYLE                 = 0x0293
	XL_SUPBOOK               = 0x01AE
	XL_TXO                   = 0x01B6
	XL_USREXCL               = 0x0194
	XL_VERTICALPAGEBREAKS    = 0x001A
	XL_WINDOW2               = 0x023E
	XL_WRITEACCESS           = 0x005C
	XL_WRITEPROTECT          = 0x0086
	XL_XF                    = 0x00E0
)

// recordNames backs RecordName for tags that have no registered plugin.
var recordNames = map[uint16]string{
	XL_ARRAY:                 "ARRAY",
	XL_BLANK:                 "BLANK",
	XL_BOF:                   "BOF",
	XL_BOOLERR:               "BOOLERR",
	XL_BOUNDSHEET:            "BOUNDSHEET",
	XL_CF:                    "CF",
	XL_CODEPAGE:              "CODEPAGE",
	XL_COLINFO:               "COLINFO",
	XL_CONDFMT:               "CONDFMT",
	XL_CONTINUE:              "CONTINUE",
	XL_COUNTRY:               "COUNTRY",
	XL_DATEMODE:              "DATEMODE",
	XL_DBCELL:                "DBCELL",
	XL_DEFAULTROWHEIGHT:      "DEFAULTROWHEIGHT",
	XL_DEFCOLWIDTH:           "DEFCOLWIDTH",
	XL_DIMENSION:             "DIMENSION",
	XL_EOF:                   "EOF",
	XL_EXTERNNAME:            "EXTERNNAME",
	XL_EXTERNSHEET:           "EXTERNSHEET",
	XL_EXTSST:                "EXTSST",
	XL_FEAT11:                "FEAT11",
	XL_FILELOCK:              "FILELOCK",
	XL_FILEPASS:              "FILEPASS",
	XL_FONT:                  "FONT",
	XL_FORMAT:                "FORMAT",
	XL_FORMULA:               "FORMULA",
	XL_GCW:                   "GCW",
	XL_HLINK:                 "HLINK",
	XL_HORIZONTALPAGEBREAKS:  "HORIZONTALPAGEBREAKS",
	XL_INDEX:                 "INDEX",
	XL_INTERFACEEND:          "INTERFACEEND",
	XL_INTERFACEHDR:          "INTERFACEHDR",
	XL_LABEL:                 "LABEL",
	XL_LABELSST:              "LABELSST",
	XL_MERGEDCELLS:           "MERGEDCELLS",
	XL_MSO_DRAWING:           "MSODRAWING",
	XL_MSO_DRAWING_GROUP:     "MSODRAWINGGROUP",
	XL_MSO_DRAWING_SELECTION: "MSODRAWINGSELECTION",
	XL_MULBLANK:              "MULBLANK",
	XL_MULRK:                 "MULRK",
	XL_NAME:                  "NAME",
	XL_NOTE:                  "NOTE",
	XL_NUMBER:                "NUMBER",
	XL_OBJ:                   "OBJ",
	XL_PALETTE:               "PALETTE",
	XL_QUICKTIP:              "QUICKTIP",
	XL_RK:                    "RK",
	XL_ROW:                   "ROW",
	XL_RRDHEAD:               "RRDHEAD",
	XL_RRDINFO:               "RRDINFO",
	XL_SHRFMLA:               "SHRFMLA",
	XL_SST:                   "SST",
	XL_STRING:                "STRING",
	XL_STYLE:                 "STYLE",
	XL_SUPBOOK:               "SUPBOOK",
	XL_TXO:                   "TXO",
	XL_USREXCL:               "USREXCL",
	XL_VERTICALPAGEBREAKS:    "VERTICALPAGEBREAKS",
	XL_WINDOW2:               "WINDOW2",
	XL_WRITEACCESS:           "WRITEACCESS",
	XL_WRITEPROTECT:          "WRITEPROTECT",
	XL_XF:                    "XF",
}

// RecordName returns the conventional name of a record type tag.
func RecordName(sid uint16) string {
	if name, ok := recordNames[sid]; ok {
		return name
	}
	return "UNKNOWN"
}

var cellSidSet = map[uint16]bool{
	XL_BLANK:    true,
	XL_BOOLERR:  true,
	XL_FORMULA:  true,
	XL_LABEL:    true,
	XL_LABELSST: true,
	XL_MULBLANK: true,
	XL_MULRK:    true,
	XL_NUMBER:   true,
	XL_RK:       true,
}

// IsCellSid checks if the given tag is a cell value record.
func IsCellSid(sid uint16) bool {
	return cellSidSet[sid]
}
