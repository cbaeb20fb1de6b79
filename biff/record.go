package biff

// Record is one logical record. Every record, including unknown ones,
// can write itself back out.
type Record interface {
	// Sid returns the type tag.
	Sid() uint16
	// RecordSize returns the number of bytes Serialize writes, headers included.
	RecordSize() int
	// Serialize writes the header, the payload and any Continue records.
	Serialize(out *LittleEndianOutput)
}

// standardBody is implemented by records whose payload always fits in a
// single physical record.
type standardBody interface {
	dataSize() int
	serializeBody(out *LittleEndianOutput)
}

func standardRecordSize(b standardBody) int {
	return RecordHeaderSize + b.dataSize()
}

func serializeStandard(sid uint16, b standardBody, out *LittleEndianOutput) {
	out.WriteUShort(sid)
	out.WriteUShort(uint16(b.dataSize()))
	b.serializeBody(out)
}

// cellHeader is the row, column and XF index every cell record starts with.
type cellHeader struct {
	Row     uint16
	Column  uint16
	XFIndex uint16
}

func readCellHeader(in *RecordInputStream) cellHeader {
	return cellHeader{
		Row:     in.ReadUShort(),
		Column:  in.ReadUShort(),
		XFIndex: in.ReadUShort(),
	}
}

func (h cellHeader) serialize(out *LittleEndianOutput) {
	out.WriteUShort(h.Row)
	out.WriteUShort(h.Column)
	out.WriteUShort(h.XFIndex)
}

// CellValueRecord is implemented by records that carry the value of a single cell.
type CellValueRecord interface {
	Record
	Cell() (row, column, xfIndex uint16)
}

// Cell returns the position and format index of the cell.
func (h cellHeader) Cell() (row, column, xfIndex uint16) {
	return h.Row, h.Column, h.XFIndex
}
