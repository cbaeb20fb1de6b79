package biff

// BoundSheetRecord names a sheet and points at its BOF.
type BoundSheetRecord struct {
	// Position is the stream offset of the sheet's BOF. It is stored unencrypted.
	Position   uint32
	Visibility uint8
	SheetType  uint8
	Name       XLUnicodeString
}

func readBoundSheetRecord(in *RecordInputStream) (Record, error) {
	return &BoundSheetRecord{
		Position:   in.ReadUInt(),
		Visibility: in.ReadUByte(),
		SheetType:  in.ReadUByte(),
		Name:       in.ReadShortUnicodeString(),
	}, in.Err()
}

// SheetTypeName names the kind of sheet.
func (r *BoundSheetRecord) SheetTypeName() string {
	return SheetTypeName(r.SheetType)
}

func (r *BoundSheetRecord) Sid() uint16   { return XL_BOUNDSHEET }
func (r *BoundSheetRecord) dataSize() int { return 4 + 2 + 2 + r.Name.DataSize() }
func (r *BoundSheetRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUInt(r.Position)
	out.WriteUByte(r.Visibility)
	out.WriteUByte(r.SheetType)
	out.WriteShortUnicodeString(r.Name)
}
func (r *BoundSheetRecord) checkLimits() error { return checkShortString("sheet name", r.Name) }
func (r *BoundSheetRecord) RecordSize() int    { return standardRecordSize(r) }
func (r *BoundSheetRecord) Serialize(out *LittleEndianOutput) {
	serializeStandard(XL_BOUNDSHEET, r, out)
}
func (r *BoundSheetRecord) Clone() Record {
	c := *r
	return &c
}

// FontRecord describes one font.
type FontRecord struct {
	Height     uint16
	Options    uint16
	ColorIndex uint16
	Weight     uint16
	Escapement uint16
	Underline  uint8
	Family     uint8
	Charset    uint8
	Reserved   uint8
	Name       XLUnicodeString
}

func readFontRecord(in *RecordInputStream) (Record, error) {
	return &FontRecord{
		Height:     in.ReadUShort(),
		Options:    in.ReadUShort(),
		ColorIndex: in.ReadUShort(),
		Weight:     in.ReadUShort(),
		Escapement: in.ReadUShort(),
		Underline:  in.ReadUByte(),
		Family:     in.ReadUByte(),
		Charset:    in.ReadUByte(),
		Reserved:   in.ReadUByte(),
		Name:       in.ReadShortUnicodeString(),
	}, in.Err()
}

func (r *FontRecord) Sid() uint16   { return XL_FONT }
func (r *FontRecord) dataSize() int { return 14 + 2 + r.Name.DataSize() }
func (r *FontRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUShort(r.Height)
	out.WriteUShort(r.Options)
	out.WriteUShort(r.ColorIndex)
	out.WriteUShort(r.Weight)
	out.WriteUShort(r.Escapement)
	out.WriteUByte(r.Underline)
	out.WriteUByte(r.Family)
	out.WriteUByte(r.Charset)
	out.WriteUByte(r.Reserved)
	out.WriteShortUnicodeString(r.Name)
}
func (r *FontRecord) checkLimits() error                { return checkShortString("font name", r.Name) }
func (r *FontRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *FontRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_FONT, r, out) }
func (r *FontRecord) Clone() Record {
	c := *r
	return &c
}

// FormatRun applies a font from character index CharIndex onwards.
type FormatRun struct {
	CharIndex uint16
	FontIndex uint16
}

// UnicodeString is a shared string table entry: text plus optional
// rich-text runs and phonetic (ExtRst) data kept as raw bytes.
type UnicodeString struct {
	XLUnicodeString
	Runs   []FormatRun
	ExtRst []byte
}

func readUnicodeString(in *RecordInputStream) UnicodeString {
	nChars := int(in.ReadUShort())
	flags := in.ReadUByte()
	nRuns := 0
	if flags&strFlagRichText != 0 {
		nRuns = int(in.ReadUShort())
	}
	extSize := -1
	if flags&strFlagExtended != 0 {
		extSize = int(in.ReadInt())
		if extSize < 0 && in.Err() == nil {
			in.fail(in.formatError(0, "negative extended string data size %d", extSize))
		}
	}
	var s UnicodeString
	s.Text, s.Wide = in.ReadStringChars(nChars, flags&strFlagWide == 0)
	if nRuns > 0 {
		s.Runs = make([]FormatRun, nRuns)
		for i := range s.Runs {
			s.Runs[i] = FormatRun{CharIndex: in.ReadUShort(), FontIndex: in.ReadUShort()}
		}
	}
	if extSize >= 0 {
		s.ExtRst = in.ReadFully(extSize)
	}
	return s
}

func (s UnicodeString) serialize(c *ContinuableRecordOutput) {
	extSize := -1
	if s.ExtRst != nil {
		extSize = len(s.ExtRst)
	}
	c.writeStringHeader(s.XLUnicodeString, len(s.Runs), extSize)
	c.writeCharacterData(s.XLUnicodeString)
	for _, run := range s.Runs {
		c.WriteContinueIfRequired(4)
		c.WriteUShort(run.CharIndex)
		c.WriteUShort(run.FontIndex)
	}
	if s.ExtRst != nil {
		c.WriteBytes(s.ExtRst)
	}
}

func (s UnicodeString) clone() UnicodeString {
	c := s
	c.Runs = append([]FormatRun(nil), s.Runs...)
	if s.ExtRst != nil {
		c.ExtRst = append([]byte{}, s.ExtRst...)
	}
	return c
}

// SSTRecord is the shared string table.
type SSTRecord struct {
	// TotalRefs counts string cells in the workbook referring to the table.
	TotalRefs uint32
	Strings   []UnicodeString
}

func readSSTRecord(in *RecordInputStream) (Record, error) {
	r := &SSTRecord{TotalRefs: in.ReadUInt()}
	unique := in.ReadUInt()
	if err := in.Err(); err != nil {
		return nil, err
	}
	// cstUnique is untrusted; grow the slice as strings are read
	capHint := unique
	if capHint > 4096 {
		capHint = 4096
	}
	r.Strings = make([]UnicodeString, 0, capHint)
	for i := uint32(0); i < unique; i++ {
		s := readUnicodeString(in)
		if err := in.Err(); err != nil {
			return nil, err
		}
		r.Strings = append(r.Strings, s)
	}
	return r, nil
}

// AddString appends a string and returns its index.
func (r *SSTRecord) AddString(text string) uint32 {
	r.Strings = append(r.Strings, UnicodeString{XLUnicodeString: NewXLUnicodeString(text)})
	return uint32(len(r.Strings) - 1)
}

func (r *SSTRecord) Sid() uint16 { return XL_SST }

func (r *SSTRecord) body(c *ContinuableRecordOutput) {
	c.WriteUInt(r.TotalRefs)
	c.WriteUInt(uint32(len(r.Strings)))
	for _, s := range r.Strings {
		s.serialize(c)
	}
}

func (r *SSTRecord) RecordSize() int                   { return continuableSize(XL_SST, r.body) }
func (r *SSTRecord) Serialize(out *LittleEndianOutput) { serializeContinuable(XL_SST, out, r.body) }

func (r *SSTRecord) Clone() Record {
	c := &SSTRecord{TotalRefs: r.TotalRefs, Strings: make([]UnicodeString, len(r.Strings))}
	for i, s := range r.Strings {
		c.Strings[i] = s.clone()
	}
	return c
}

// ExtSSTBucket points at the first string of one SST bucket.
type ExtSSTBucket struct {
	StreamPos    uint32
	BucketOffset uint16
	Reserved     uint16
}

// ExtSSTRecord is the hash table over the shared string table.
type ExtSSTRecord struct {
	StringsPerBucket uint16
	Buckets          []ExtSSTBucket
}

func readExtSSTRecord(in *RecordInputStream) (Record, error) {
	r := &ExtSSTRecord{StringsPerBucket: in.ReadUShort()}
	if in.Err() == nil && in.Remaining()%8 != 0 {
		return nil, in.formatError(0, "EXTSST buckets of %d bytes are not a whole number of entries", in.Remaining())
	}
	r.Buckets = make([]ExtSSTBucket, in.Remaining()/8)
	for i := range r.Buckets {
		r.Buckets[i] = ExtSSTBucket{
			StreamPos:    in.ReadUInt(),
			BucketOffset: in.ReadUShort(),
			Reserved:     in.ReadUShort(),
		}
	}
	return r, in.Err()
}

func (r *ExtSSTRecord) Sid() uint16   { return XL_EXTSST }
func (r *ExtSSTRecord) dataSize() int { return 2 + 8*len(r.Buckets) }
func (r *ExtSSTRecord) serializeBody(out *LittleEndianOutput) {
	out.WriteUShort(r.StringsPerBucket)
	for _, b := range r.Buckets {
		out.WriteUInt(b.StreamPos)
		out.WriteUShort(b.BucketOffset)
		out.WriteUShort(b.Reserved)
	}
}
func (r *ExtSSTRecord) RecordSize() int                   { return standardRecordSize(r) }
func (r *ExtSSTRecord) Serialize(out *LittleEndianOutput) { serializeStandard(XL_EXTSST, r, out) }
func (r *ExtSSTRecord) Clone() Record {
	c := *r
	c.Buckets = append([]ExtSSTBucket(nil), r.Buckets...)
	return &c
}
