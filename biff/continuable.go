package biff

// ContinuableRecordOutput writes one logical record, opening Continue
// records whenever the current physical record is full.
//
// Primitives are never split. Character data is split on character
// boundaries and every continued fragment starts with its own flag byte.
type ContinuableRecordOutput struct {
	out     *LittleEndianOutput
	hdrPos  int
	dataLen int
	start   int
}

// NewContinuableRecordOutput starts a record with the given tag on out.
func NewContinuableRecordOutput(out *LittleEndianOutput, sid uint16) *ContinuableRecordOutput {
	c := &ContinuableRecordOutput{out: out, start: out.Len()}
	c.startRecord(sid)
	return c
}

func (c *ContinuableRecordOutput) startRecord(sid uint16) {
	c.hdrPos = c.out.Len()
	c.out.WriteUShort(sid)
	c.out.WriteUShort(0)
	c.dataLen = 0
}

// AvailableSpace returns the bytes left in the current physical record.
func (c *ContinuableRecordOutput) AvailableSpace() int {
	return MaxRecordDataSize - c.dataLen
}

// TotalSize returns the bytes written so far, headers included.
func (c *ContinuableRecordOutput) TotalSize() int {
	return c.out.Len() - c.start
}

// Terminate fixes up the length of the last physical record.
func (c *ContinuableRecordOutput) Terminate() {
	c.out.patchUShort(c.hdrPos+2, uint16(c.dataLen))
}

// WriteContinue closes the current physical record and opens a Continue record.
func (c *ContinuableRecordOutput) WriteContinue() {
	c.Terminate()
	c.startRecord(XL_CONTINUE)
}

// WriteContinueIfRequired opens a Continue record unless n more bytes fit.
func (c *ContinuableRecordOutput) WriteContinueIfRequired(n int) {
	if c.AvailableSpace() < n {
		c.WriteContinue()
	}
}

func (c *ContinuableRecordOutput) grow(n int) {
	c.WriteContinueIfRequired(n)
	c.dataLen += n
}

// WriteUByte writes an unsigned byte.
func (c *ContinuableRecordOutput) WriteUByte(v uint8) {
	c.grow(1)
	c.out.WriteUByte(v)
}

// WriteUShort writes an unsigned 16-bit value.
func (c *ContinuableRecordOutput) WriteUShort(v uint16) {
	c.grow(2)
	c.out.WriteUShort(v)
}

// WriteUInt writes an unsigned 32-bit value.
func (c *ContinuableRecordOutput) WriteUInt(v uint32) {
	c.grow(4)
	c.out.WriteUInt(v)
}

// WriteDouble writes the exact bit pattern of v.
func (c *ContinuableRecordOutput) WriteDouble(v float64) {
	c.grow(8)
	c.out.WriteDouble(v)
}

// WriteBytes writes raw bytes, splitting them wherever the record fills up.
func (c *ContinuableRecordOutput) WriteBytes(b []byte) {
	for len(b) > 0 {
		if c.AvailableSpace() == 0 {
			c.WriteContinue()
		}
		n := c.AvailableSpace()
		if n > len(b) {
			n = len(b)
		}
		c.out.WriteBytes(b[:n])
		c.dataLen += n
		b = b[n:]
	}
}

// WriteString writes a 16-bit character count, the flag byte and the characters.
func (c *ContinuableRecordOutput) WriteString(u XLUnicodeString) {
	c.writeStringHeader(u, 0, -1)
	c.writeCharacterData(u)
}

// WriteStringData writes the flag byte and the characters without a count.
func (c *ContinuableRecordOutput) WriteStringData(u XLUnicodeString) {
	flag := uint8(0)
	if u.IsWide() {
		flag = strFlagWide
	}
	// flag and first character stay together
	c.WriteContinueIfRequired(2)
	c.WriteUByte(flag)
	c.writeCharacterData(u)
}

// writeStringHeader writes the string header keeping it in one physical
// record with at least the first character. extSize < 0 means no extended data.
func (c *ContinuableRecordOutput) writeStringHeader(u XLUnicodeString, nRuns int, extSize int) {
	wide := u.IsWide()
	keepTogether := 2 + 1 + 1
	flags := uint8(0)
	if wide {
		flags |= strFlagWide
		keepTogether++
	}
	if nRuns > 0 {
		flags |= strFlagRichText
		keepTogether += 2
	}
	if extSize >= 0 {
		flags |= strFlagExtended
		keepTogether += 4
	}
	c.WriteContinueIfRequired(keepTogether)
	c.WriteUShort(uint16(u.CharCount()))
	c.WriteUByte(flags)
	if nRuns > 0 {
		c.WriteUShort(uint16(nRuns))
	}
	if extSize >= 0 {
		c.WriteUInt(uint32(extSize))
	}
}

func (c *ContinuableRecordOutput) writeCharacterData(u XLUnicodeString) {
	wide := u.IsWide()
	units := stringUnits(u.Text)
	width := 1
	flag := uint8(0)
	if wide {
		width = 2
		flag = strFlagWide
	}
	for {
		n := c.AvailableSpace() / width
		if n > len(units) {
			n = len(units)
		}
		for _, unit := range units[:n] {
			if wide {
				c.out.WriteUShort(unit)
			} else {
				c.out.WriteUByte(uint8(unit))
			}
		}
		c.dataLen += n * width
		units = units[n:]
		if len(units) == 0 {
			return
		}
		c.WriteContinue()
		c.WriteUByte(flag)
	}
}

// serializeContinuable writes a record through a ContinuableRecordOutput.
func serializeContinuable(sid uint16, out *LittleEndianOutput, body func(c *ContinuableRecordOutput)) {
	c := NewContinuableRecordOutput(out, sid)
	body(c)
	c.Terminate()
}

// continuableSize measures a record by writing it to a scratch buffer.
func continuableSize(sid uint16, body func(c *ContinuableRecordOutput)) int {
	out := NewLittleEndianOutput(64)
	serializeContinuable(sid, out, body)
	return out.Len()
}
