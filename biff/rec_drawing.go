package biff

// DrawingFragment is one physical record of a drawing aggregate.
type DrawingFragment struct {
	Sid  uint16
	Data []byte
}

// escherAggregate keeps the physical fragments of a drawing record so the
// record can be written back exactly as it was split.
type escherAggregate struct {
	Fragments []DrawingFragment
}

func splitEscherData(sid uint16, data []byte) []DrawingFragment {
	frags := []DrawingFragment{{Sid: sid}}
	for {
		n := min(len(data), MaxRecordDataSize)
		last := &frags[len(frags)-1]
		last.Data = append([]byte(nil), data[:n]...)
		data = data[n:]
		if len(data) == 0 {
			return frags
		}
		frags = append(frags, DrawingFragment{Sid: XL_CONTINUE})
	}
}

// Data returns the concatenated Escher bytes of all fragments.
func (a *escherAggregate) Data() []byte {
	var n int
	for _, f := range a.Fragments {
		n += len(f.Data)
	}
	b := make([]byte, 0, n)
	for _, f := range a.Fragments {
		b = append(b, f.Data...)
	}
	return b
}

func (a *escherAggregate) dataLen() int {
	n := 0
	for _, f := range a.Fragments {
		n += len(f.Data)
	}
	return n
}

func (a *escherAggregate) appendFragment(sid uint16, data []byte) {
	a.Fragments = append(a.Fragments, DrawingFragment{Sid: sid, Data: data})
}

func (a *escherAggregate) size() int {
	n := 0
	for _, f := range a.Fragments {
		n += continuableSize(f.Sid, func(c *ContinuableRecordOutput) { c.WriteBytes(f.Data) })
	}
	return n
}

func (a *escherAggregate) serialize(out *LittleEndianOutput) {
	for _, f := range a.Fragments {
		serializeContinuable(f.Sid, out, func(c *ContinuableRecordOutput) { c.WriteBytes(f.Data) })
	}
}

func (a *escherAggregate) clone() escherAggregate {
	c := escherAggregate{Fragments: make([]DrawingFragment, len(a.Fragments))}
	for i, f := range a.Fragments {
		c.Fragments[i] = DrawingFragment{Sid: f.Sid, Data: append([]byte(nil), f.Data...)}
	}
	return c
}

// DrawingGroupRecord (MSODRAWINGGROUP) holds the workbook-wide Escher data.
// Following MSODRAWINGGROUP and CONTINUE records are merged into it.
type DrawingGroupRecord struct {
	escherAggregate
}

// NewDrawingGroupRecord splits data into as many physical records as needed.
func NewDrawingGroupRecord(data []byte) *DrawingGroupRecord {
	return &DrawingGroupRecord{escherAggregate{splitEscherData(XL_MSO_DRAWING_GROUP, data)}}
}

func readDrawingGroupRecord(in *RecordInputStream) (Record, error) {
	r := &DrawingGroupRecord{}
	r.appendFragment(XL_MSO_DRAWING_GROUP, in.ReadRemainder())
	return r, in.Err()
}

func (r *DrawingGroupRecord) Sid() uint16                       { return XL_MSO_DRAWING_GROUP }
func (r *DrawingGroupRecord) RecordSize() int                   { return r.size() }
func (r *DrawingGroupRecord) Serialize(out *LittleEndianOutput) { r.serialize(out) }
func (r *DrawingGroupRecord) Clone() Record {
	return &DrawingGroupRecord{r.clone()}
}

// DrawingRecord (MSODRAWING) holds the Escher data of one sheet object.
// Following CONTINUE records are merged into it.
type DrawingRecord struct {
	escherAggregate
}

// NewDrawingRecord splits data into as many physical records as needed.
func NewDrawingRecord(data []byte) *DrawingRecord {
	return &DrawingRecord{escherAggregate{splitEscherData(XL_MSO_DRAWING, data)}}
}

func readDrawingRecord(in *RecordInputStream) (Record, error) {
	r := &DrawingRecord{}
	r.appendFragment(XL_MSO_DRAWING, in.ReadRemainder())
	return r, in.Err()
}

func (r *DrawingRecord) Sid() uint16                       { return XL_MSO_DRAWING }
func (r *DrawingRecord) RecordSize() int                   { return r.size() }
func (r *DrawingRecord) Serialize(out *LittleEndianOutput) { r.serialize(out) }
func (r *DrawingRecord) Clone() Record {
	return &DrawingRecord{r.clone()}
}

// OBJ sub-record types
const (
	ftEnd = 0x0000
	ftCmo = 0x0015
)

// ObjSubRecord is one sub-record of an OBJ record.
type ObjSubRecord struct {
	Type uint16
	Data []byte
}

// ObjRecord describes a drawing object. The terminating ftEnd sub-record
// is implicit. Payloads that do not parse as sub-records are kept in Raw.
type ObjRecord struct {
	SubRecords []ObjSubRecord
	// Padding counts zero bytes some writers leave after ftEnd.
	Padding int
	Raw     []byte
}

func readObjRecord(in *RecordInputStream) (Record, error) {
	payload := in.ReadRemainder()
	if err := in.Err(); err != nil {
		return nil, err
	}
	subs, padding, ok := parseObjSubRecords(payload)
	if !ok {
		return &ObjRecord{Raw: payload}, nil
	}
	return &ObjRecord{SubRecords: subs, Padding: padding}, nil
}

func parseObjSubRecords(b []byte) ([]ObjSubRecord, int, bool) {
	p := NewLittleEndianInput(b)
	var subs []ObjSubRecord
	for {
		ft, err := p.ReadUShort()
		if err != nil {
			return nil, 0, false
		}
		cb, err := p.ReadUShort()
		if err != nil {
			return nil, 0, false
		}
		if ft == ftEnd {
			if cb != 0 {
				return nil, 0, false
			}
			break
		}
		data, err := p.ReadFully(int(cb))
		if err != nil {
			return nil, 0, false
		}
		subs = append(subs, ObjSubRecord{Type: ft, Data: data})
	}
	rest, _ := p.ReadFully(p.Available())
	for _, c := range rest {
		if c != 0 {
			return nil, 0, false
		}
	}
	return subs, len(rest), true
}

// ObjectID returns the object id from the common object data sub-record.
func (r *ObjRecord) ObjectID() (uint16, bool) {
	for _, s := range r.SubRecords {
		if s.Type == ftCmo && len(s.Data) >= 4 {
			return uint16(s.Data[2]) | uint16(s.Data[3])<<8, true
		}
	}
	return 0, false
}

func (r *ObjRecord) Sid() uint16 { return XL_OBJ }

func (r *ObjRecord) dataSize() int {
	if r.Raw != nil {
		return len(r.Raw)
	}
	n := 4 + r.Padding
	for _, s := range r.SubRecords {
		n += 4 + len(s.Data)
	}
	return n
}

func (r *ObjRecord) serializeBody(out *LittleEndianOutput) {
	if r.Raw != nil {
		out.WriteBytes(r.Raw)
		return
	}
	for _, s := range r.SubRecords {
		out.WriteUShort(s.Type)
		out.WriteUShort(uint16(len(s.Data)))
		out.WriteBytes(s.Data)
	}
	out.WriteUShort(ftEnd)
	out.WriteUShort(0)
	out.WriteBytes(make([]byte, r.Padding))
}

func (r *ObjRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *ObjRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_OBJ, r, out) }

// TXORun is one formatting run of a text object.
type TXORun struct {
	CharIndex uint16
	FontIndex uint16
	Reserved  uint32
}

// TextObjectRecord (TXO) holds the text of a text box or comment. The text
// and its formatting runs follow in their own CONTINUE records.
type TextObjectRecord struct {
	Options   uint16
	Rotation  uint16
	Reserved4 uint16
	Reserved5 uint16
	Reserved6 uint16
	Reserved7 uint32
	// LinkFormula is the optional cell reference formula, kept raw.
	LinkFormula []byte
	Text        XLUnicodeString
	Runs        []TXORun
}

func readTextObjectRecord(in *RecordInputStream) (Record, error) {
	r := &TextObjectRecord{
		Options:   in.ReadUShort(),
		Rotation:  in.ReadUShort(),
		Reserved4: in.ReadUShort(),
		Reserved5: in.ReadUShort(),
		Reserved6: in.ReadUShort(),
	}
	nChars := int(in.ReadUShort())
	runBytes := int(in.ReadUShort())
	r.Reserved7 = in.ReadUInt()
	r.LinkFormula = in.ReadRemainder()
	if err := in.Err(); err != nil {
		return nil, err
	}
	if runBytes%8 != 0 {
		return nil, in.formatError(0, "TXO formatting run data of %d bytes is not a multiple of 8", runBytes)
	}
	if nChars > 0 {
		r.Text = in.ReadUnicodeStringOfLen(nChars)
	}
	if runBytes > 0 {
		r.Runs = make([]TXORun, runBytes/8)
		for i := range r.Runs {
			r.Runs[i] = TXORun{CharIndex: in.ReadUShort(), FontIndex: in.ReadUShort(), Reserved: in.ReadUInt()}
		}
	}
	return r, in.Err()
}

func (r *TextObjectRecord) Sid() uint16 { return XL_TXO }

func (r *TextObjectRecord) body(c *ContinuableRecordOutput) {
	nChars := r.Text.CharCount()
	c.WriteUShort(r.Options)
	c.WriteUShort(r.Rotation)
	c.WriteUShort(r.Reserved4)
	c.WriteUShort(r.Reserved5)
	c.WriteUShort(r.Reserved6)
	c.WriteUShort(uint16(nChars))
	c.WriteUShort(uint16(8 * len(r.Runs)))
	c.WriteUInt(r.Reserved7)
	c.WriteBytes(r.LinkFormula)
	if nChars > 0 {
		c.WriteContinue()
		c.WriteStringData(r.Text)
	}
	if len(r.Runs) > 0 {
		c.WriteContinue()
		for _, run := range r.Runs {
			c.WriteUShort(run.CharIndex)
			c.WriteUShort(run.FontIndex)
			c.WriteUInt(run.Reserved)
		}
	}
}

func (r *TextObjectRecord) RecordSize() int { return continuableSize(XL_TXO, r.body) }
func (r *TextObjectRecord) Serialize(out *LittleEndianOutput) {
	serializeContinuable(XL_TXO, out, r.body)
}
