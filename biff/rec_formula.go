package biff

// FormulaRecord is a formula cell. The parsed token array is kept as raw bytes.
type FormulaRecord struct {
	cellHeader
	Result  CachedResult
	Options uint16
	// Reserved is the chn field, written back unchanged.
	Reserved uint32
	Tokens   []byte
	// Extra holds additional token data that follows the token array.
	Extra []byte
	// StringTail is the STRING record that carries a string result.
	StringTail *StringRecord
}

func readFormulaRecord(in *RecordInputStream) (Record, error) {
	r := &FormulaRecord{cellHeader: readCellHeader(in)}
	var raw [8]byte
	copy(raw[:], in.ReadFully(8))
	r.Options = in.ReadUShort()
	r.Reserved = in.ReadUInt()
	size := int(in.ReadUShort())
	if err := in.Err(); err != nil {
		return nil, err
	}
	r.Result = CachedResult{raw: raw}
	if !r.Result.valid() {
		return nil, in.formatError(0, "unknown cached result type %d", raw[0])
	}
	if size > in.Remaining() {
		return nil, in.formatError(size-in.Remaining(), "formula token array of %d bytes exceeds the record", size)
	}
	r.Tokens = in.ReadFully(size)
	r.Extra = in.ReadRemainder()
	return r, in.Err()
}

func (r *FormulaRecord) Sid() uint16 { return XL_FORMULA }

func (r *FormulaRecord) dataSize() int { return 22 + len(r.Tokens) + len(r.Extra) }

func (r *FormulaRecord) serializeBody(out *LittleEndianOutput) {
	r.cellHeader.serialize(out)
	raw := r.Result.Bytes()
	out.WriteBytes(raw[:])
	out.WriteUShort(r.Options)
	out.WriteUInt(r.Reserved)
	out.WriteUShort(uint16(len(r.Tokens)))
	out.WriteBytes(r.Tokens)
	out.WriteBytes(r.Extra)
}

// RecordSize includes the attached STRING record.
func (r *FormulaRecord) RecordSize() int {
	n := standardRecordSize(r)
	if r.StringTail != nil {
		n += r.StringTail.RecordSize()
	}
	return n
}

// Serialize writes the formula followed by its STRING record, if any.
func (r *FormulaRecord) Serialize(out *LittleEndianOutput) {
	serializeStandard(XL_FORMULA, r, out)
	if r.StringTail != nil {
		r.StringTail.Serialize(out)
	}
}

// StringValue returns the cached string result, if the formula has one.
func (r *FormulaRecord) StringValue() (string, bool) {
	if !r.Result.IsStringPending() || r.StringTail == nil {
		return "", false
	}
	return r.StringTail.Value.Text, true
}

// StringRecord holds the string result of the preceding formula.
type StringRecord struct {
	Value XLUnicodeString
}

func readStringRecord(in *RecordInputStream) (Record, error) {
	return &StringRecord{Value: in.ReadUnicodeString()}, in.Err()
}

func (r *StringRecord) Sid() uint16 { return XL_STRING }

func (r *StringRecord) body(c *ContinuableRecordOutput) {
	c.WriteString(r.Value)
}

func (r *StringRecord) RecordSize() int                   { return continuableSize(XL_STRING, r.body) }
func (r *StringRecord) Serialize(out *LittleEndianOutput) { serializeContinuable(XL_STRING, out, r.body) }
func (r *StringRecord) Clone() Record {
	c := *r
	return &c
}
