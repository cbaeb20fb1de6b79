package biff

import (
	"bytes"
	"io"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleWorkbook(t *testing.T) []Record {
	t.Helper()
	cmo := make([]byte, 18)
	cmo[0], cmo[2] = 0x19, 0x01
	sst := &SSTRecord{TotalRefs: 3}
	sst.AddString("plain")
	sst.AddString("語彙")
	sst.Strings = append(sst.Strings, UnicodeString{
		XLUnicodeString: NewXLUnicodeString("rich"),
		Runs:            []FormatRun{{CharIndex: 0, FontIndex: 1}, {CharIndex: 2, FontIndex: 5}},
		ExtRst:          []byte{1, 2, 3, 4},
	})
	boolResult := NewBoolResult(true)
	return []Record{
		NewBOFRecord(XL_WORKBOOK_GLOBALS),
		&WriteProtectRecord{},
		&InterfaceHdrRecord{Codepage: 1200},
		&InterfaceEndRecord{},
		&CodepageRecord{Codepage: 1200},
		&FontRecord{Height: 200, Weight: 400, Family: 2, Name: NewXLUnicodeString("Arial")},
		&BoundSheetRecord{Position: 0x1234, Name: NewXLUnicodeString("Sheet1")},
		NewDrawingGroupRecord(bytes.Repeat([]byte{0x0F, 0x00, 0x00, 0xF0}, 16)),
		sst,
		&ExtSSTRecord{StringsPerBucket: 8, Buckets: []ExtSSTBucket{{StreamPos: 100, BucketOffset: 12}}},
		&EOFRecord{},
		NewBOFRecord(XL_WORKSHEET),
		&RowRecord{RowNumber: 0, FirstColumn: 0, LastColumn: 6, Height: 255, Options: 0x100, XFIndex: 15},
		NewNumberRecord(0, 0, 15, 3.25),
		NewLabelRecord(0, 1, 15, "hello"),
		NewLabelRecord(0, 2, 15, "日本"),
		&LabelSSTRecord{cellHeader: cellHeader{0, 3, 15}, SSTIndex: 2},
		&BoolErrRecord{cellHeader: cellHeader{0, 4, 15}, Value: 0x07, IsError: true},
		NewBlankRecord(0, 5, 15),
		&FormulaRecord{
			cellHeader: cellHeader{0, 6, 15},
			Result:     NewStringResult(),
			Options:    0x02,
			Tokens:     []byte{0x17, 0x02, 0x00, 'o', 'k'},
			StringTail: &StringRecord{Value: NewXLUnicodeString("ok")},
		},
		&FormulaRecord{cellHeader: cellHeader{0, 7, 15}, Result: boolResult, Tokens: []byte{0x1D, 0x01}},
		NewDrawingRecord([]byte{0x0F, 0x00, 0x04, 0xF0, 0, 0, 0, 0}),
		&ObjRecord{SubRecords: []ObjSubRecord{{Type: ftCmo, Data: cmo}}},
		&TextObjectRecord{
			Options: 0x0212,
			Text:    NewXLUnicodeString("note"),
			Runs:    []TXORun{{CharIndex: 0}, {CharIndex: 4}},
		},
		&UnknownRecord{Type: 0x1234, Data: []byte{9, 8, 7}},
		&EOFRecord{},
	}
}

func TestRoundTrip(t *testing.T) {
	recs := sampleWorkbook(t)
	encoded := encodeRecords(t, recs...)

	decoded := decodeBytes(t, encoded, nil)
	assert.Equal(t, sids(recs), sids(decoded))
	assert.Equal(t, encoded, encodeRecords(t, decoded...))

	label, ok := decoded[15].(*LabelRecord)
	require.True(t, ok)
	assert.Equal(t, "日本", label.Value.Text)

	formula, ok := decoded[19].(*FormulaRecord)
	require.True(t, ok)
	text, ok := formula.StringValue()
	require.True(t, ok)
	assert.Equal(t, "ok", text)

	boolFormula := decoded[20].(*FormulaRecord)
	assert.Equal(t, ResultBool, boolFormula.Result.Kind())
	assert.True(t, boolFormula.Result.Bool())

	sst := decoded[8].(*SSTRecord)
	require.Len(t, sst.Strings, 3)
	assert.Equal(t, "語彙", sst.Strings[1].Text)
	assert.Equal(t, []FormatRun{{0, 1}, {2, 5}}, sst.Strings[2].Runs)
	assert.Equal(t, []byte{1, 2, 3, 4}, sst.Strings[2].ExtRst)

	obj := decoded[22].(*ObjRecord)
	id, ok := obj.ObjectID()
	require.True(t, ok)
	assert.Equal(t, uint16(1), id)

	txo := decoded[23].(*TextObjectRecord)
	assert.Equal(t, "note", txo.Text.Text)
	assert.Len(t, txo.Runs, 2)
}

func TestContinuationTransparency(t *testing.T) {
	testCases := []struct {
		name string
		rec  Record
		text func(Record) string
		want string
	}{
		{
			name: "wide label",
			rec:  NewLabelRecord(1, 2, 0, strings.Repeat("語", 20000)),
			text: func(r Record) string { return r.(*LabelRecord).Value.Text },
			want: strings.Repeat("語", 20000),
		},
		{
			name: "compressed string",
			rec:  &StringRecord{Value: NewXLUnicodeString(strings.Repeat("abc", 7000))},
			text: func(r Record) string { return r.(*StringRecord).Value.Text },
			want: strings.Repeat("abc", 7000),
		},
		{
			name: "text object",
			rec:  &TextObjectRecord{Text: NewXLUnicodeString(strings.Repeat("x語", 6000))},
			text: func(r Record) string { return r.(*TextObjectRecord).Text.Text },
			want: strings.Repeat("x語", 6000),
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encoded := encodeRecords(t, NewBOFRecord(XL_WORKSHEET), tc.rec, &EOFRecord{})
			continues := 0
			for _, sid := range physicalSids(encoded) {
				if sid == XL_CONTINUE {
					continues++
				}
			}
			assert.GreaterOrEqual(t, continues, 2)

			decoded := decodeBytes(t, encoded, nil)
			require.Len(t, decoded, 3)
			assert.Equal(t, tc.want, tc.text(decoded[1]))
			assert.Equal(t, encoded, encodeRecords(t, decoded...))
		})
	}
}

func TestSSTAcrossContinues(t *testing.T) {
	sst := &SSTRecord{}
	for i := 0; i < 3000; i++ {
		if i%3 == 0 {
			sst.AddString(strings.Repeat("語", i%17+1))
		} else {
			sst.AddString(strings.Repeat("s", i%23+1))
		}
	}
	sst.TotalRefs = uint32(len(sst.Strings))
	encoded := encodeRecords(t, NewBOFRecord(XL_WORKBOOK_GLOBALS), sst, &EOFRecord{})
	assert.Contains(t, physicalSids(encoded), uint16(XL_CONTINUE))

	decoded := decodeBytes(t, encoded, nil)
	require.Len(t, decoded, 3)
	got := decoded[1].(*SSTRecord)
	require.Len(t, got.Strings, len(sst.Strings))
	for i := range sst.Strings {
		require.Equal(t, sst.Strings[i].Text, got.Strings[i].Text, "string %d", i)
	}
	assert.Equal(t, encoded, encodeRecords(t, decoded...))
}

func TestUnknownRecordPassthrough(t *testing.T) {
	big := bytes.Repeat([]byte{0xAB}, 10000)
	encoded := join(
		bofBytes(XL_WORKSHEET),
		physical(0x1234, 1, 2, 3, 4, 5),
		encodeRecords(t, &UnknownRecord{Type: 0x4321, Data: big}),
		eofBytes(),
	)
	decoded := decodeBytes(t, encoded, nil)
	assert.Equal(t, []uint16{XL_BOF, 0x1234, 0x4321, XL_CONTINUE, XL_EOF}, sids(decoded))

	small := decoded[1].(*UnknownRecord)
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, small.Data)
	assert.Len(t, decoded[2].(*UnknownRecord).Data, MaxRecordDataSize)
	assert.Len(t, decoded[3].(*ContinueRecord).Data, 10000-MaxRecordDataSize)

	assert.Equal(t, encoded, encodeRecords(t, decoded...))
}

func TestMulRKExpansion(t *testing.T) {
	payload := le16(1, 3)
	for i := uint16(0); i < 5; i++ {
		payload = join(payload, le16(15+i), le32(uint32(10*(i+1))<<2|0x02))
	}
	payload = join(payload, le16(7))
	stream := join(bofBytes(XL_WORKSHEET), physical(XL_MULRK, payload...), eofBytes())

	decoded := decodeBytes(t, stream, nil)
	require.Len(t, decoded, 7)
	for i, rec := range decoded[1:6] {
		num, ok := rec.(*NumberRecord)
		require.True(t, ok, "record %d is %T", i, rec)
		row, col, xf := num.Cell()
		assert.Equal(t, uint16(1), row)
		assert.Equal(t, uint16(3+i), col)
		assert.Equal(t, uint16(15+i), xf)
		assert.Equal(t, float64(10*(i+1)), num.Value)
	}
}

func TestMulBlankAndRKNormalization(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKSHEET),
		physical(XL_MULBLANK, join(le16(2, 4), le16(20, 21, 22), le16(6))...),
		physical(XL_RK, join(le16(3, 0, 15), le32(0x3FF00000))...),
		physical(XL_RK, join(le16(3, 1, 15), le32(1234<<2|0x03))...),
		eofBytes(),
	)
	decoded := decodeBytes(t, stream, nil)
	require.Len(t, decoded, 7)
	for i := 0; i < 3; i++ {
		blank, ok := decoded[1+i].(*BlankRecord)
		require.True(t, ok)
		row, col, xf := blank.Cell()
		assert.Equal(t, uint16(2), row)
		assert.Equal(t, uint16(4+i), col)
		assert.Equal(t, uint16(20+i), xf)
	}
	assert.Equal(t, 1.0, decoded[4].(*NumberRecord).Value)
	assert.Equal(t, 12.34, decoded[5].(*NumberRecord).Value)
}

func TestRegenerableRecords(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKSHEET),
		encodeRecords(t, &IndexRecord{FirstRow: 0, LastRowAdd1: 1, DBCellOffset: []uint32{400}}),
		encodeRecords(t, &RowRecord{RowNumber: 0}),
		encodeRecords(t, &DBCellRecord{RowOffset: 20, CellOffsets: []uint16{0, 14}}),
		eofBytes(),
	)
	dropped := decodeBytes(t, stream, nil)
	assert.Equal(t, []uint16{XL_BOF, XL_ROW, XL_EOF}, sids(dropped))

	kept := decodeBytes(t, stream, &Options{KeepRegenerable: true})
	assert.Equal(t, []uint16{XL_BOF, XL_INDEX, XL_ROW, XL_DBCELL, XL_EOF}, sids(kept))
	assert.Equal(t, stream, encodeRecords(t, kept...))
}

func TestTrailingBytes(t *testing.T) {
	testCases := []struct {
		name    string
		stream  []byte
		policy  TrailingPolicy
		want    []uint16
		wantErr bool
	}{
		{
			name:   "zero padding after final EOF",
			stream: join(bofBytes(XL_WORKBOOK_GLOBALS), eofBytes(), make([]byte, 200)),
			want:   []uint16{XL_BOF, XL_EOF},
		},
		{
			name:   "zero padding under strict policy",
			stream: join(bofBytes(XL_WORKBOOK_GLOBALS), eofBytes(), make([]byte, 200)),
			policy: TrailingStrict,
			want:   []uint16{XL_BOF, XL_EOF},
		},
		{
			name: "another substream follows",
			stream: join(
				bofBytes(XL_WORKBOOK_GLOBALS), eofBytes(),
				bofBytes(XL_WORKSHEET), eofBytes(),
				make([]byte, 16),
			),
			want: []uint16{XL_BOF, XL_EOF, XL_BOF, XL_EOF},
		},
		{
			name:   "garbage is ignored when lenient",
			stream: join(bofBytes(XL_WORKBOOK_GLOBALS), eofBytes(), []byte{0, 0, 0, 0, 0x12, 0x34}),
			want:   []uint16{XL_BOF, XL_EOF},
		},
		{
			name:    "garbage is an error when strict",
			stream:  join(bofBytes(XL_WORKBOOK_GLOBALS), eofBytes(), []byte{0, 0, 0, 0, 0x12, 0x34}),
			policy:  TrailingStrict,
			wantErr: true,
		},
		{
			name:   "nothing after EOF",
			stream: join(bofBytes(XL_WORKBOOK_GLOBALS), eofBytes()),
			policy: TrailingStrict,
			want:   []uint16{XL_BOF, XL_EOF},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			recs, err := ReadRecords(bytes.NewReader(tc.stream), &Options{TrailingPolicy: tc.policy})
			if tc.wantErr {
				fe := requireFormatError(t, err)
				assert.Equal(t, int64(len(tc.stream)-2), fe.Offset)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, sids(recs))
		})
	}
}

func TestPaddedEOF(t *testing.T) {
	stream := join(bofBytes(XL_WORKSHEET), physical(XL_EOF, 0, 0, 0, 0))
	assert.Equal(t, []uint16{XL_BOF, XL_EOF}, sids(decodeBytes(t, stream, nil)))

	stream = join(bofBytes(XL_WORKSHEET), physical(XL_EOF, 0, 1))
	_, err := ReadRecords(bytes.NewReader(stream), nil)
	requireFormatError(t, err)
}

func TestLeftoverBytesRejected(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKSHEET),
		physical(XL_NUMBER, make([]byte, 15)...),
		eofBytes(),
	)
	_, err := ReadRecords(bytes.NewReader(stream), nil)
	fe := requireFormatError(t, err)
	assert.Equal(t, uint16(XL_NUMBER), fe.Sid)
	assert.Contains(t, fe.Message, "1 bytes unread")
}

func TestStrayContinue(t *testing.T) {
	testCases := []struct {
		name    string
		owner   []byte
		wantErr bool
	}{
		{name: "after OBJ", owner: encodeRecords(t, &ObjRecord{})},
		{name: "after unknown record", owner: physical(0x0999, 1)},
		{name: "after nested EOF", owner: join(bofBytes(XL_CHART), eofBytes())},
		{name: "after NUMBER", owner: encodeRecords(t, NewNumberRecord(0, 0, 0, 1)), wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			stream := join(
				bofBytes(XL_WORKSHEET),
				tc.owner,
				physical(XL_CONTINUE, 1, 2, 3),
				eofBytes(),
			)
			recs, err := ReadRecords(bytes.NewReader(stream), nil)
			if tc.wantErr {
				fe := requireFormatError(t, err)
				assert.Equal(t, uint16(XL_CONTINUE), fe.Sid)
				assert.Contains(t, fe.Message, "after NUMBER")
				return
			}
			require.NoError(t, err)
			var cont *ContinueRecord
			for _, r := range recs {
				if c, ok := r.(*ContinueRecord); ok {
					cont = c
				}
			}
			require.NotNil(t, cont)
			assert.Equal(t, []byte{1, 2, 3}, cont.Data)
			assert.Equal(t, stream, encodeRecords(t, recs...))
		})
	}
}

func TestStrayContinueAfterDroppedRecord(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKSHEET),
		encodeRecords(t, NewNumberRecord(0, 0, 0, 1)),
		physical(XL_DBCELL, le32(0)...),
		physical(XL_CONTINUE, 1),
		eofBytes(),
	)

	_, err := ReadRecords(bytes.NewReader(stream), nil)
	fe := requireFormatError(t, err)
	assert.Contains(t, fe.Message, "after NUMBER")

	_, err = ReadRecords(bytes.NewReader(stream), &Options{KeepRegenerable: true})
	fe = requireFormatError(t, err)
	assert.Contains(t, fe.Message, "after DBCELL")
}

func TestStrayContinueAtStart(t *testing.T) {
	_, err := ReadRecords(bytes.NewReader(physical(XL_CONTINUE, 1)), nil)
	fe := requireFormatError(t, err)
	assert.Contains(t, fe.Message, "start of stream")
}

func TestDrawingGroupMerge(t *testing.T) {
	data := make([]byte, 20000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	encoded := encodeRecords(t, NewBOFRecord(XL_WORKBOOK_GLOBALS), NewDrawingGroupRecord(data), &EOFRecord{})
	assert.Equal(t, []uint16{XL_BOF, XL_MSO_DRAWING_GROUP, XL_CONTINUE, XL_CONTINUE, XL_EOF}, physicalSids(encoded))

	decoded := decodeBytes(t, encoded, nil)
	require.Len(t, decoded, 3)
	group := decoded[1].(*DrawingGroupRecord)
	assert.Equal(t, data, group.Data())
	assert.Equal(t, encoded, encodeRecords(t, decoded...))
}

func TestDrawingGroupAbsorbsFollowingGroups(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKBOOK_GLOBALS),
		physical(XL_MSO_DRAWING_GROUP, 1, 2),
		physical(XL_MSO_DRAWING_GROUP, 3),
		physical(XL_CONTINUE, 4),
		eofBytes(),
	)
	decoded := decodeBytes(t, stream, nil)
	require.Len(t, decoded, 3)
	group := decoded[1].(*DrawingGroupRecord)
	assert.Equal(t, []byte{1, 2, 3, 4}, group.Data())
	assert.Len(t, group.Fragments, 3)
	assert.Equal(t, stream, encodeRecords(t, decoded...))
}

func TestDrawingMergesContinuesOnly(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKSHEET),
		physical(XL_MSO_DRAWING, 1),
		physical(XL_CONTINUE, 2),
		physical(XL_MSO_DRAWING, 3),
		eofBytes(),
	)
	decoded := decodeBytes(t, stream, nil)
	assert.Equal(t, []uint16{XL_BOF, XL_MSO_DRAWING, XL_MSO_DRAWING, XL_EOF}, sids(decoded))
	assert.Equal(t, []byte{1, 2}, decoded[1].(*DrawingRecord).Data())
	assert.Equal(t, []byte{3}, decoded[2].(*DrawingRecord).Data())
}

func TestDrawingAggregateLimit(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKSHEET),
		physical(XL_MSO_DRAWING, 1, 2, 3),
		physical(XL_CONTINUE, 4, 5, 6),
		eofBytes(),
	)
	_, err := ReadRecords(bytes.NewReader(stream), &Options{MaxAggregateSize: 4})
	fe := requireFormatError(t, err)
	assert.Contains(t, fe.Message, "limit of 4 bytes")
}

func TestFormulaStringAttachment(t *testing.T) {
	formula := &FormulaRecord{cellHeader: cellHeader{2, 3, 15}, Result: NewStringResult(), Tokens: []byte{0x1E, 1, 0}}
	str := &StringRecord{Value: NewXLUnicodeString("cached")}
	number, err := NewNumberResult(4)
	require.NoError(t, err)
	numFormula := &FormulaRecord{cellHeader: cellHeader{2, 4, 15}, Result: number, Tokens: []byte{0x1E, 4, 0}}
	stream := encodeRecords(t, NewBOFRecord(XL_WORKSHEET), formula, str, numFormula, &StringRecord{}, &EOFRecord{})

	attached := decodeBytes(t, stream, nil)
	assert.Equal(t, []uint16{XL_BOF, XL_FORMULA, XL_FORMULA, XL_STRING, XL_EOF}, sids(attached))
	text, ok := attached[1].(*FormulaRecord).StringValue()
	require.True(t, ok)
	assert.Equal(t, "cached", text)
	assert.Nil(t, attached[2].(*FormulaRecord).StringTail)
	assert.Equal(t, stream, encodeRecords(t, attached...))

	detached := decodeBytes(t, stream, &Options{DetachFormulaStrings: true})
	assert.Equal(t, []uint16{XL_BOF, XL_FORMULA, XL_STRING, XL_FORMULA, XL_STRING, XL_EOF}, sids(detached))
	assert.Nil(t, detached[1].(*FormulaRecord).StringTail)
}

func TestFormulaStringOverriddenByRegistry(t *testing.T) {
	entries := DefaultEntries()
	for i := range entries {
		if entries[i].Sid == XL_STRING {
			entries[i].New = readUnknownRecord
		}
	}
	reg, err := NewRegistry(entries...)
	require.NoError(t, err)

	formula := &FormulaRecord{Result: NewStringResult(), Tokens: []byte{0x1E, 1, 0}}
	stream := encodeRecords(t, NewBOFRecord(XL_WORKSHEET), formula, &StringRecord{Value: NewXLUnicodeString("x")}, &EOFRecord{})

	recs := decodeBytes(t, stream, &Options{Registry: reg})
	assert.Equal(t, []uint16{XL_BOF, XL_FORMULA, XL_STRING, XL_EOF}, sids(recs))
	assert.Nil(t, recs[1].(*FormulaRecord).StringTail)
	assert.IsType(t, &UnknownRecord{}, recs[2])
	assert.Equal(t, stream, encodeRecords(t, recs...))
}

func TestFormulaSentinelResults(t *testing.T) {
	quiet, err := NewNumberResult(math.Float64frombits(0x7FF8000000000001))
	require.NoError(t, err)
	testCases := []struct {
		name   string
		result CachedResult
		kind   ResultKind
		text   string
	}{
		{name: "bool", result: NewBoolResult(true), kind: ResultBool, text: "TRUE"},
		{name: "error", result: NewErrorResult(0x07), kind: ResultError, text: "#DIV/0!"},
		{name: "empty", result: NewEmptyResult(), kind: ResultEmpty, text: ""},
		{name: "NaN payload", result: quiet, kind: ResultNumber, text: "NaN"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &FormulaRecord{cellHeader: cellHeader{0, 0, 15}, Result: tc.result, Tokens: []byte{0x1D, 0x01}}
			stream := encodeRecords(t, NewBOFRecord(XL_WORKSHEET), rec, &EOFRecord{})
			decoded := decodeBytes(t, stream, nil)
			got := decoded[1].(*FormulaRecord).Result
			assert.Equal(t, tc.kind, got.Kind())
			assert.Equal(t, tc.text, got.String())
			assert.Equal(t, tc.result.Bytes(), got.Bytes())
		})
	}
}

func TestFormulaUnknownSentinel(t *testing.T) {
	payload := join(le16(0, 0, 15), []byte{0x09, 0, 0, 0, 0, 0, 0xFF, 0xFF}, le16(0), le32(0), le16(0))
	stream := join(bofBytes(XL_WORKSHEET), physical(XL_FORMULA, payload...), eofBytes())
	_, err := ReadRecords(bytes.NewReader(stream), nil)
	fe := requireFormatError(t, err)
	assert.Contains(t, fe.Message, "unknown cached result type 9")
}

func TestFilePassOutsideHeader(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKSHEET),
		encodeRecords(t, NewNumberRecord(0, 0, 0, 1)),
		physical(XL_FILEPASS, le16(0, 0x1234, 0x5678)...),
		eofBytes(),
	)
	_, err := ReadRecords(bytes.NewReader(stream), nil)
	fe := requireFormatError(t, err)
	assert.Contains(t, fe.Message, "outside the stream header")
}

func TestCompoundDocumentRejected(t *testing.T) {
	_, err := Open(bytes.NewReader(append(append([]byte(nil), ole2Signature...), make([]byte, 504)...)), nil)
	assert.ErrorIs(t, err, ErrCompoundDocument)
}

func TestOversizedRecordInStream(t *testing.T) {
	bad := physical(XL_LABEL)
	bad[2], bad[3] = 0x21, 0x20
	stream := join(bofBytes(XL_WORKSHEET), bad, make([]byte, 8225))
	_, err := ReadRecords(bytes.NewReader(stream), nil)
	fe := requireFormatError(t, err)
	assert.Equal(t, int64(len(bofBytes(XL_WORKSHEET))), fe.Offset)
}

func TestRecordStreamNext(t *testing.T) {
	stream := join(
		bofBytes(XL_WORKSHEET),
		bofBytes(XL_CHART),
		eofBytes(),
		encodeRecords(t, NewNumberRecord(0, 0, 0, 1)),
		eofBytes(),
	)
	s, err := Open(bytes.NewReader(stream), nil)
	require.NoError(t, err)
	defer s.Close()

	var depths []int
	for {
		_, err := s.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		depths = append(depths, s.Depth())
	}
	assert.Equal(t, []int{1, 2, 1, 1, 0}, depths)

	_, err = s.Next()
	assert.Equal(t, io.EOF, err)
}

func TestRecordsIterator(t *testing.T) {
	stream := encodeRecords(t,
		NewBOFRecord(XL_WORKSHEET),
		NewNumberRecord(0, 0, 0, 1),
		NewNumberRecord(0, 1, 0, 2),
		&EOFRecord{},
	)
	s, err := Open(bytes.NewReader(stream), nil)
	require.NoError(t, err)
	defer s.Close()

	n := 0
	for rec, err := range s.Records() {
		require.NoError(t, err)
		n++
		if rec.Sid() == XL_NUMBER {
			break
		}
	}
	assert.Equal(t, 2, n)

	rest, err := s.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []uint16{XL_NUMBER, XL_EOF}, sids(rest))
}

func TestStickyError(t *testing.T) {
	stream := join(bofBytes(XL_WORKSHEET), physical(XL_NUMBER, 1, 2), eofBytes())
	s, err := Open(bytes.NewReader(stream), nil)
	require.NoError(t, err)
	_, err = s.Next()
	require.NoError(t, err)

	_, first := s.Next()
	require.Error(t, first)
	_, second := s.Next()
	assert.Same(t, first, second)
}

func TestDebugLogging(t *testing.T) {
	var logs bytes.Buffer
	logger := zerolog.New(&logs).Level(zerolog.DebugLevel)
	stream := join(bofBytes(XL_WORKSHEET), physical(XL_EOF, 0, 0), make([]byte, 8))
	_, err := ReadRecords(bytes.NewReader(stream), &Options{Logger: &logger})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "discarded zero padding")
	assert.Contains(t, logs.String(), "ignored trailing bytes")
}

func TestParseTrailingPolicy(t *testing.T) {
	p, err := ParseTrailingPolicy("strict")
	require.NoError(t, err)
	assert.Equal(t, TrailingStrict, p)
	assert.Equal(t, "strict", p.String())

	p, err = ParseTrailingPolicy("")
	require.NoError(t, err)
	assert.Equal(t, TrailingLenient, p)

	_, err = ParseTrailingPolicy("loose")
	assert.Error(t, err)
}

// rawRecord writes its bytes verbatim, headers included.
type rawRecord struct{ b []byte }

func (r *rawRecord) Sid() uint16                       { return 0x0999 }
func (r *rawRecord) RecordSize() int                   { return len(r.b) }
func (r *rawRecord) Serialize(out *LittleEndianOutput) { out.WriteBytes(r.b) }

func TestEncodeRejectsOversizedRecords(t *testing.T) {
	testCases := []struct {
		name string
		rec  Record
		sid  uint16
		msg  string
	}{
		{
			name: "formula token array",
			rec:  &FormulaRecord{Result: NewBoolResult(true), Tokens: make([]byte, 9000)},
			sid:  XL_FORMULA,
			msg:  "record length 9022 exceeds the maximum of 8224",
		},
		{
			name: "payload past 16 bits",
			rec:  &FormulaRecord{Result: NewBoolResult(true), Tokens: make([]byte, 70000)},
			sid:  XL_FORMULA,
			msg:  "record length 70022 exceeds the maximum of 8224",
		},
		{
			name: "extsst buckets",
			rec:  &ExtSSTRecord{StringsPerBucket: 8, Buckets: make([]ExtSSTBucket, 1100)},
			sid:  XL_EXTSST,
			msg:  "exceeds the maximum of 8224",
		},
		{
			name: "sheet name",
			rec:  &BoundSheetRecord{Name: NewXLUnicodeString(strings.Repeat("s", 256))},
			sid:  XL_BOUNDSHEET,
			msg:  "sheet name has 256 characters, more than 255",
		},
		{
			name: "font name",
			rec:  &FontRecord{Name: NewXLUnicodeString(strings.Repeat("f", 300))},
			sid:  XL_FONT,
			msg:  "font name has 300 characters, more than 255",
		},
		{
			name: "raw oversized header",
			rec:  &rawRecord{b: join(le16(0x0999, 9000), make([]byte, 9000))},
			sid:  0x0999,
			msg:  "record length 9000 exceeds the maximum of 8224",
		},
		{
			name: "raw torn record",
			rec:  &rawRecord{b: join(le16(0x0999, 10), make([]byte, 4))},
			sid:  0x0999,
			msg:  "whole physical records",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Encode(&buf, []Record{NewBOFRecord(XL_WORKSHEET), tc.rec, &EOFRecord{}}, nil)
			fe := requireFormatError(t, err)
			assert.Equal(t, tc.sid, fe.Sid)
			assert.Equal(t, int64(20), fe.Offset)
			assert.Contains(t, fe.Message, tc.msg)
			assert.Equal(t, bofBytes(XL_WORKSHEET), buf.Bytes())
		})
	}
}

func TestEncodeAcceptsMaximalRecord(t *testing.T) {
	formula := &FormulaRecord{Result: NewBoolResult(true), Tokens: make([]byte, MaxRecordDataSize-22)}
	sheet := &BoundSheetRecord{Name: NewXLUnicodeString(strings.Repeat("s", 255))}
	stream := encodeRecords(t, NewBOFRecord(XL_WORKBOOK_GLOBALS), sheet, formula, &EOFRecord{})

	recs := decodeBytes(t, stream, nil)
	require.Len(t, recs, 4)
	assert.Equal(t, 255, recs[1].(*BoundSheetRecord).Name.CharCount())
	assert.Len(t, recs[2].(*FormulaRecord).Tokens, MaxRecordDataSize-22)
}
