package biff

// BOF version fields
const (
	bofVersionBIFF8 = 0x0600
	bofVersionBIFF5 = 0x0500
)

// BOFRecord opens a workbook globals or sheet substream.
type BOFRecord struct {
	Version         uint16
	Type            uint16
	Build           uint16
	Year            uint16
	HistoryMask     uint32
	RequiredVersion uint32
	// Short is set for the 8-byte layout written by some older tools.
	Short bool
}

// NewBOFRecord creates a BIFF8 BOF for the given substream type.
func NewBOFRecord(streamType uint16) *BOFRecord {
	return &BOFRecord{
		Version:         bofVersionBIFF8,
		Type:            streamType,
		Build:           0x0DBB,
		Year:            0x07CC,
		HistoryMask:     0x000100C1,
		RequiredVersion: 0x00000406,
	}
}

func readBOFRecord(in *RecordInputStream) (Record, error) {
	r := &BOFRecord{
		Version: in.ReadUShort(),
		Type:    in.ReadUShort(),
		Build:   in.ReadUShort(),
		Year:    in.ReadUShort(),
	}
	if in.Err() == nil && in.Remaining() == 0 {
		r.Short = true
		return r, nil
	}
	r.HistoryMask = in.ReadUInt()
	r.RequiredVersion = in.ReadUInt()
	return r, in.Err()
}

// BiffVersion returns the BIFF version as 10 times the major version, or 0 if unknown.
func (r *BOFRecord) BiffVersion() int {
	switch r.Version {
	case bofVersionBIFF8:
		return 80
	case bofVersionBIFF5:
		if r.Year < 1994 || r.Build == 2412 || r.Build == 3218 || r.Build == 3321 {
			return 50
		}
		return 70
	case 0x0000, 0x0007:
		return 21
	}
	return 0
}

// IsWorkbookGlobals reports whether the BOF opens the workbook globals substream.
func (r *BOFRecord) IsWorkbookGlobals() bool {
	return r.Type == XL_WORKBOOK_GLOBALS
}

// TypeName names the substream the BOF opens.
func (r *BOFRecord) TypeName() string {
	return StreamTypeName(r.Type)
}

func (r *BOFRecord) Sid() uint16 { return XL_BOF }

func (r *BOFRecord) dataSize() int {
	if r.Short {
		return 8
	}
	return 16
}

func (r *BOFRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUShort(r.Version)
	out.WriteUShort(r.Type)
	out.WriteUShort(r.Build)
	out.WriteUShort(r.Year)
	if !r.Short {
		out.WriteUInt(r.HistoryMask)
		out.WriteUInt(r.RequiredVersion)
	}
}

func (r *BOFRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *BOFRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_BOF, r, out) }

func (r *BOFRecord) Clone() Record {
	c := *r
	return &c
}

// EOFRecord closes the current substream.
type EOFRecord struct{}

func readEOFRecord(in *RecordInputStream) (Record, error) {
	return &EOFRecord{}, nil
}

func (r *EOFRecord) Sid() uint16                           { return XL_EOF }
func (r *EOFRecord) dataSize() int                         { return 0 }
func (r *EOFRecord) serializeBody(out *LittleEndianOutput) {}
func (r *EOFRecord) RecordSize() int                       { return standardRecordSize(r) }
func (r *EOFRecord) Serialize(out *LittleEndianOutput)     { serializeStandard(XL_EOF, r, out) }
func (r *EOFRecord) Clone() Record                         { return &EOFRecord{} }

// WriteProtectRecord marks a workbook as write-protected.
type WriteProtectRecord struct{}

func readWriteProtectRecord(in *RecordInputStream) (Record, error) {
	return &WriteProtectRecord{}, nil
}

func (r *WriteProtectRecord) Sid() uint16                           { return XL_WRITEPROTECT }
func (r *WriteProtectRecord) dataSize() int                         { return 0 }
func (r *WriteProtectRecord) serializeBody(out *LittleEndianOutput) {}
func (r *WriteProtectRecord) RecordSize() int                       { return standardRecordSize(r) }
func (r *WriteProtectRecord) Serialize(out *LittleEndianOutput) {
	serializeStandard(XL_WRITEPROTECT, r, out)
}
func (r *WriteProtectRecord) Clone() Record { return &WriteProtectRecord{} }

// InterfaceHdrRecord starts the user interface section and names its code page.
type InterfaceHdrRecord struct {
	Codepage uint16
}

func readInterfaceHdrRecord(in *RecordInputStream) (Record, error) {
	return &InterfaceHdrRecord{Codepage: in.ReadUShort()}, in.Err()
}

func (r *InterfaceHdrRecord) Sid() uint16                           { return XL_INTERFACEHDR }
func (r *InterfaceHdrRecord) dataSize() int                         { return 2 }
func (r *InterfaceHdrRecord) serializeBody(out *LittleEndianOutput) { out.WriteUShort(r.Codepage) }
func (r *InterfaceHdrRecord) RecordSize() int                       { return standardRecordSize(r) }
func (r *InterfaceHdrRecord) Serialize(out *LittleEndianOutput) {
	serializeStandard(XL_INTERFACEHDR, r, out)
}
func (r *InterfaceHdrRecord) Clone() Record {
	c := *r
	return &c
}

// InterfaceEndRecord ends the user interface section.
type InterfaceEndRecord struct{}

func readInterfaceEndRecord(in *RecordInputStream) (Record, error) {
	return &InterfaceEndRecord{}, nil
}

func (r *InterfaceEndRecord) Sid() uint16                           { return XL_INTERFACEEND }
func (r *InterfaceEndRecord) dataSize() int                         { return 0 }
func (r *InterfaceEndRecord) serializeBody(out *LittleEndianOutput) {}
func (r *InterfaceEndRecord) RecordSize() int                       { return standardRecordSize(r) }
func (r *InterfaceEndRecord) Serialize(out *LittleEndianOutput) {
	serializeStandard(XL_INTERFACEEND, r, out)
}
func (r *InterfaceEndRecord) Clone() Record { return &InterfaceEndRecord{} }

// CodepageRecord names the code page of byte strings in the workbook.
type CodepageRecord struct {
	Codepage uint16
}

func readCodepageRecord(in *RecordInputStream) (Record, error) {
	return &CodepageRecord{Codepage: in.ReadUShort()}, in.Err()
}

func (r *CodepageRecord) Sid() uint16                           { return XL_CODEPAGE }
func (r *CodepageRecord) dataSize() int                         { return 2 }
func (r *CodepageRecord) serializeBody(out *LittleEndianOutput) { out.WriteUShort(r.Codepage) }
func (r *CodepageRecord) RecordSize() int                       { return standardRecordSize(r) }
func (r *CodepageRecord) Serialize(out *LittleEndianOutput)     { serializeStandard(XL_CODEPAGE, r, out) }
func (r *CodepageRecord) Clone() Record {
	c := *r
	return &c
}

// ContinueRecord is a Continue record that no preceding record absorbed.
type ContinueRecord struct {
	Data []byte
}

func (r *ContinueRecord) Sid() uint16 { return XL_CONTINUE }

func (r *ContinueRecord) RecordSize() int {
	return continuableSize(XL_CONTINUE, r.body)
}

func (r *ContinueRecord) Serialize(out *LittleEndianOutput) {
	serializeContinuable(XL_CONTINUE, out, r.body)
}

func (r *ContinueRecord) body(c *ContinuableRecordOutput) {
	c.WriteBytes(r.Data)
}

func (r *ContinueRecord) Clone() Record {
	return &ContinueRecord{Data: append([]byte(nil), r.Data...)}
}

// UnknownRecord keeps the payload of a record type with no registered
// constructor so it can be written back unchanged.
type UnknownRecord struct {
	Type uint16
	Data []byte
}

func readUnknownRecord(in *RecordInputStream) (Record, error) {
	return &UnknownRecord{Type: in.Sid(), Data: in.ReadRemainder()}, in.Err()
}

func (r *UnknownRecord) Sid() uint16 { return r.Type }

func (r *UnknownRecord) RecordSize() int {
	return continuableSize(r.Type, r.body)
}

func (r *UnknownRecord) Serialize(out *LittleEndianOutput) {
	serializeContinuable(r.Type, out, r.body)
}

func (r *UnknownRecord) body(c *ContinuableRecordOutput) {
	c.WriteBytes(r.Data)
}

func (r *UnknownRecord) Clone() Record {
	return &UnknownRecord{Type: r.Type, Data: append([]byte(nil), r.Data...)}
}
