package biff

import (
	"math"
	"strconv"
)

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// NumberRecord holds a floating point cell value.
type NumberRecord struct {
	cellHeader
	Value float64
}

// NewNumberRecord creates a number cell.
func NewNumberRecord(row, column, xfIndex uint16, v float64) *NumberRecord {
	return &NumberRecord{cellHeader: cellHeader{row, column, xfIndex}, Value: v}
}

func readNumberRecord(in *RecordInputStream) (Record, error) {
	return &NumberRecord{cellHeader: readCellHeader(in), Value: in.ReadDouble()}, in.Err()
}

func (r *NumberRecord) Sid() uint16   { return XL_NUMBER }
func (r *NumberRecord) dataSize() int { return 14 }
func (r *NumberRecord) serializeBody(out *LittleEndianOutput) {
	r.cellHeader.serialize(out)
	out.WriteDouble(r.Value)
}
func (r *NumberRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *NumberRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_NUMBER, r, out) }
func (r *NumberRecord) Clone() Record {
	c := *r
	return &c
}

// DecodeRK converts an RK-encoded number to a double.
func DecodeRK(rk uint32) float64 {
	var v float64
	if rk&0x02 != 0 {
		v = float64(int32(rk) >> 2)
	} else {
		v = math.Float64frombits(uint64(rk&0xFFFFFFFC) << 32)
	}
	if rk&0x01 != 0 {
		v /= 100
	}
	return v
}

// RKRecord holds a number in the compact RK encoding.
type RKRecord struct {
	cellHeader
	RK uint32
}

func readRKRecord(in *RecordInputStream) (Record, error) {
	return &RKRecord{cellHeader: readCellHeader(in), RK: in.ReadUInt()}, in.Err()
}

// Value returns the decoded number.
func (r *RKRecord) Value() float64 { return DecodeRK(r.RK) }

// Number returns the equivalent NumberRecord.
func (r *RKRecord) Number() *NumberRecord {
	return &NumberRecord{cellHeader: r.cellHeader, Value: r.Value()}
}

func (r *RKRecord) Sid() uint16   { return XL_RK }
func (r *RKRecord) dataSize() int { return 10 }
func (r *RKRecord) serializeBody(out *LittleEndianOutput) {
	r.cellHeader.serialize(out)
	out.WriteUInt(r.RK)
}
func (r *RKRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *RKRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_RK, r, out) }
func (r *RKRecord) Clone() Record {
	c := *r
	return &c
}

// RKCell is one column of a MULRK record.
type RKCell struct {
	XFIndex uint16
	RK      uint32
}

// MulRKRecord holds RK numbers for adjacent columns of one row.
type MulRKRecord struct {
	Row         uint16
	FirstColumn uint16
	Cells       []RKCell
}

func readMulRKRecord(in *RecordInputStream) (Record, error) {
	r := &MulRKRecord{Row: in.ReadUShort(), FirstColumn: in.ReadUShort()}
	if err := in.Err(); err != nil {
		return nil, err
	}
	body := in.Remaining() - 2
	if body < 6 || body%6 != 0 {
		return nil, in.formatError(0, "MULRK payload of %d bytes is not a whole number of cells", body+6)
	}
	n := body / 6
	r.Cells = make([]RKCell, 0, n)
	for i := 0; i < n; i++ {
		r.Cells = append(r.Cells, RKCell{XFIndex: in.ReadUShort(), RK: in.ReadUInt()})
	}
	last := in.ReadUShort()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if int(last) != int(r.FirstColumn)+n-1 {
		return nil, in.formatError(0, "MULRK last column %d does not match first column %d and %d cells", last, r.FirstColumn, n)
	}
	return r, nil
}

// LastColumn returns the column of the last cell.
func (r *MulRKRecord) LastColumn() uint16 {
	return r.FirstColumn + uint16(len(r.Cells)) - 1
}

// Numbers expands the record into one NumberRecord per column in increasing column order.
func (r *MulRKRecord) Numbers() []Record {
	recs := make([]Record, len(r.Cells))
	for i, c := range r.Cells {
		recs[i] = NewNumberRecord(r.Row, r.FirstColumn+uint16(i), c.XFIndex, DecodeRK(c.RK))
	}
	return recs
}

func (r *MulRKRecord) Sid() uint16   { return XL_MULRK }
func (r *MulRKRecord) dataSize() int { return 6 + 6*len(r.Cells) }
func (r *MulRKRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUShort(r.Row)
	out.WriteUShort(r.FirstColumn)
	for _, c := range r.Cells {
		out.WriteUShort(c.XFIndex)
		out.WriteUInt(c.RK)
	}
	out.WriteUShort(r.LastColumn())
}
func (r *MulRKRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *MulRKRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_MULRK, r, out) }
func (r *MulRKRecord) Clone() Record {
	c := *r
	c.Cells = append([]RKCell(nil), r.Cells...)
	return &c
}

// BlankRecord is an empty cell that carries only formatting.
type BlankRecord struct {
	cellHeader
}

// NewBlankRecord creates a blank cell.
func NewBlankRecord(row, column, xfIndex uint16) *BlankRecord {
	return &BlankRecord{cellHeader{row, column, xfIndex}}
}

func readBlankRecord(in *RecordInputStream) (Record, error) {
	return &BlankRecord{readCellHeader(in)}, in.Err()
}

func (r *BlankRecord) Sid() uint16                           { return XL_BLANK }
func (r *BlankRecord) dataSize() int                         { return 6 }
func (r *BlankRecord) serializeBody(out *LittleEndianOutput) { r.cellHeader.serialize(out) }
func (r *BlankRecord) RecordSize() int                       { return standardRecordSize(r) }
func (r *BlankRecord) Serialize(out *LittleEndianOutput)     { serializeStandard(XL_BLANK, r, out) }
func (r *BlankRecord) Clone() Record {
	c := *r
	return &c
}

// MulBlankRecord holds blank cells for adjacent columns of one row.
type MulBlankRecord struct {
	Row         uint16
	FirstColumn uint16
	XFIndexes   []uint16
}

func readMulBlankRecord(in *RecordInputStream) (Record, error) {
	r := &MulBlankRecord{Row: in.ReadUShort(), FirstColumn: in.ReadUShort()}
	if err := in.Err(); err != nil {
		return nil, err
	}
	body := in.Remaining() - 2
	if body < 2 || body%2 != 0 {
		return nil, in.formatError(0, "MULBLANK payload of %d bytes is not a whole number of cells", body+6)
	}
	n := body / 2
	r.XFIndexes = make([]uint16, n)
	for i := range r.XFIndexes {
		r.XFIndexes[i] = in.ReadUShort()
	}
	last := in.ReadUShort()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if int(last) != int(r.FirstColumn)+n-1 {
		return nil, in.formatError(0, "MULBLANK last column %d does not match first column %d and %d cells", last, r.FirstColumn, n)
	}
	return r, nil
}

// LastColumn returns the column of the last cell.
func (r *MulBlankRecord) LastColumn() uint16 {
	return r.FirstColumn + uint16(len(r.XFIndexes)) - 1
}

// Blanks expands the record into one BlankRecord per column in increasing column order.
func (r *MulBlankRecord) Blanks() []Record {
	recs := make([]Record, len(r.XFIndexes))
	for i, xf := range r.XFIndexes {
		recs[i] = NewBlankRecord(r.Row, r.FirstColumn+uint16(i), xf)
	}
	return recs
}

func (r *MulBlankRecord) Sid() uint16   { return XL_MULBLANK }
func (r *MulBlankRecord) dataSize() int { return 6 + 2*len(r.XFIndexes) }
func (r *MulBlankRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUShort(r.Row)
	out.WriteUShort(r.FirstColumn)
	for _, xf := range r.XFIndexes {
		out.WriteUShort(xf)
	}
	out.WriteUShort(r.LastColumn())
}
func (r *MulBlankRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *MulBlankRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_MULBLANK, r, out) }
func (r *MulBlankRecord) Clone() Record {
	c := *r
	c.XFIndexes = append([]uint16(nil), r.XFIndexes...)
	return &c
}

// BoolErrRecord holds a boolean or error-code cell.
type BoolErrRecord struct {
	cellHeader
	Value   uint8
	IsError bool
}

func readBoolErrRecord(in *RecordInputStream) (Record, error) {
	r := &BoolErrRecord{cellHeader: readCellHeader(in), Value: in.ReadUByte()}
	switch flag := in.ReadUByte(); flag {
	case 0:
	case 1:
		r.IsError = true
	default:
		if in.Err() == nil {
			return nil, in.formatError(0, "BOOLERR error flag has unexpected value %d", flag)
		}
	}
	return r, in.Err()
}

func (r *BoolErrRecord) Sid() uint16   { return XL_BOOLERR }
func (r *BoolErrRecord) dataSize() int { return 8 }
func (r *BoolErrRecord) serializeBody(out *LittleEndianOutput) {
	r.cellHeader.serialize(out)
	out.WriteUByte(r.Value)
	if r.IsError {
		out.WriteUByte(1)
	} else {
		out.WriteUByte(0)
	}
}
func (r *BoolErrRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *BoolErrRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_BOOLERR, r, out) }
func (r *BoolErrRecord) Clone() Record {
	c := *r
	return &c
}

// LabelSSTRecord is a string cell referring to the shared string table.
type LabelSSTRecord struct {
	cellHeader
	SSTIndex uint32
}

func readLabelSSTRecord(in *RecordInputStream) (Record, error) {
	return &LabelSSTRecord{cellHeader: readCellHeader(in), SSTIndex: in.ReadUInt()}, in.Err()
}

func (r *LabelSSTRecord) Sid() uint16   { return XL_LABELSST }
func (r *LabelSSTRecord) dataSize() int { return 10 }
func (r *LabelSSTRecord) serializeBody(out *LittleEndianOutput) {
	r.cellHeader.serialize(out)
	out.WriteUInt(r.SSTIndex)
}
func (r *LabelSSTRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *LabelSSTRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_LABELSST, r, out) }
func (r *LabelSSTRecord) Clone() Record {
	c := *r
	return &c
}

// LabelRecord is a string cell with inline text.
type LabelRecord struct {
	cellHeader
	Value XLUnicodeString
}

// NewLabelRecord creates a string cell.
func NewLabelRecord(row, column, xfIndex uint16, text string) *LabelRecord {
	return &LabelRecord{cellHeader: cellHeader{row, column, xfIndex}, Value: NewXLUnicodeString(text)}
}

func readLabelRecord(in *RecordInputStream) (Record, error) {
	return &LabelRecord{cellHeader: readCellHeader(in), Value: in.ReadUnicodeString()}, in.Err()
}

func (r *LabelRecord) Sid() uint16 { return XL_LABEL }

func (r *LabelRecord) body(c *ContinuableRecordOutput) {
	c.WriteUShort(r.Row)
	c.WriteUShort(r.Column)
	c.WriteUShort(r.XFIndex)
	c.WriteString(r.Value)
}

func (r *LabelRecord) RecordSize() int                   { return continuableSize(XL_LABEL, r.body) }
func (r *LabelRecord) Serialize(out *LittleEndianOutput) { serializeContinuable(XL_LABEL, out, r.body) }
func (r *LabelRecord) Clone() Record {
	c := *r
	return &c
}

// RowRecord describes one row.
type RowRecord struct {
	RowNumber   uint16
	FirstColumn uint16
	LastColumn  uint16
	Height      uint16
	Optimize    uint16
	Reserved    uint16
	Options     uint16
	XFIndex     uint16
}

func readRowRecord(in *RecordInputStream) (Record, error) {
	return &RowRecord{
		RowNumber:   in.ReadUShort(),
		FirstColumn: in.ReadUShort(),
		LastColumn:  in.ReadUShort(),
		Height:      in.ReadUShort(),
		Optimize:    in.ReadUShort(),
		Reserved:    in.ReadUShort(),
		Options:     in.ReadUShort(),
		XFIndex:     in.ReadUShort(),
	}, in.Err()
}

func (r *RowRecord) Sid() uint16   { return XL_ROW }
func (r *RowRecord) dataSize() int { return 16 }
func (r *RowRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUShort(r.RowNumber)
	out.WriteUShort(r.FirstColumn)
	out.WriteUShort(r.LastColumn)
	out.WriteUShort(r.Height)
	out.WriteUShort(r.Optimize)
	out.WriteUShort(r.Reserved)
	out.WriteUShort(r.Options)
	out.WriteUShort(r.XFIndex)
}
func (r *RowRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *RowRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_ROW, r, out) }
func (r *RowRecord) Clone() Record {
	c := *r
	return &c
}

// IndexRecord locates the DBCELL records of a sheet. It is regenerable.
type IndexRecord struct {
	Reserved     uint32
	FirstRow     uint32
	LastRowAdd1  uint32
	Reserved2    uint32
	DBCellOffset []uint32
}

func readIndexRecord(in *RecordInputStream) (Record, error) {
	r := &IndexRecord{
		Reserved:    in.ReadUInt(),
		FirstRow:    in.ReadUInt(),
		LastRowAdd1: in.ReadUInt(),
		Reserved2:   in.ReadUInt(),
	}
	if in.Err() == nil && in.Remaining()%4 != 0 {
		return nil, in.formatError(0, "INDEX offsets of %d bytes are not a whole number of entries", in.Remaining())
	}
	r.DBCellOffset = make([]uint32, in.Remaining()/4)
	for i := range r.DBCellOffset {
		r.DBCellOffset[i] = in.ReadUInt()
	}
	return r, in.Err()
}

func (r *IndexRecord) Sid() uint16   { return XL_INDEX }
func (r *IndexRecord) dataSize() int { return 16 + 4*len(r.DBCellOffset) }
func (r *IndexRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUInt(r.Reserved)
	out.WriteUInt(r.FirstRow)
	out.WriteUInt(r.LastRowAdd1)
	out.WriteUInt(r.Reserved2)
	for _, off := range r.DBCellOffset {
		out.WriteUInt(off)
	}
}
func (r *IndexRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *IndexRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_INDEX, r, out) }
func (r *IndexRecord) Clone() Record {
	c := *r
	c.DBCellOffset = append([]uint32(nil), r.DBCellOffset...)
	return &c
}

// DBCellRecord speeds up lookup of the cells of a row block. It is regenerable.
type DBCellRecord struct {
	RowOffset   uint32
	CellOffsets []uint16
}

func readDBCellRecord(in *RecordInputStream) (Record, error) {
	r := &DBCellRecord{RowOffset: in.ReadUInt()}
	if in.Err() == nil && in.Remaining()%2 != 0 {
		return nil, in.formatError(0, "DBCELL offsets of %d bytes are not a whole number of entries", in.Remaining())
	}
	r.CellOffsets = make([]uint16, in.Remaining()/2)
	for i := range r.CellOffsets {
		r.CellOffsets[i] = in.ReadUShort()
	}
	return r, in.Err()
}

func (r *DBCellRecord) Sid() uint16   { return XL_DBCELL }
func (r *DBCellRecord) dataSize() int { return 4 + 2*len(r.CellOffsets) }
func (r *DBCellRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUInt(r.RowOffset)
	for _, off := range r.CellOffsets {
		out.WriteUShort(off)
	}
}
func (r *DBCellRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *DBCellRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_DBCELL, r, out) }
func (r *DBCellRecord) Clone() Record {
	c := *r
	c.CellOffsets = append([]uint16(nil), r.CellOffsets...)
	return &c
}
