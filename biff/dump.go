package biff

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
)

// HexCharDump writes data[ofs:ofs+dlen] as rows of 16 hex bytes followed by
// their characters. NUL shows as '~' and other non-printables as '?'.
func HexCharDump(data []byte, ofs, dlen int, base int64, w io.Writer, unnumbered bool) {
	endpos := min(ofs+dlen, len(data))
	for pos := ofs; pos < endpos; pos += 16 {
		endsub := min(pos+16, endpos)
		var hexd, chard bytes.Buffer
		for _, c := range data[pos:endsub] {
			fmt.Fprintf(&hexd, "%02x ", c)
			switch {
			case c == 0:
				chard.WriteByte('~')
			case c < ' ' || c > '~':
				chard.WriteByte('?')
			default:
				chard.WriteByte(c)
			}
		}
		prefix := ""
		if !unnumbered {
			prefix = fmt.Sprintf("%5x: ", base+int64(pos-ofs))
		}
		fmt.Fprintf(w, "%s     %-48s %s\n", prefix, hexd.String(), chard.String())
	}
}

// physicalRecord is one header met by walkRecords. ZeroRun is set instead
// of Header when only zero bytes remain from Offset on.
type physicalRecord struct {
	Offset  int
	Header  RecordHeader
	ZeroRun int
}

// walkRecords visits the physical records of mem and returns the position
// after the last one, which is past len(mem) when the final payload is
// short. A header longer than MaxRecordDataSize stops the walk.
func walkRecords(mem []byte, visit func(physicalRecord)) (int, error) {
	pos := 0
	for len(mem)-pos >= RecordHeaderSize {
		h := RecordHeader{
			Sid:    binary.LittleEndian.Uint16(mem[pos:]),
			Length: binary.LittleEndian.Uint16(mem[pos+2:]),
		}
		if h.Sid == 0 && h.Length == 0 && allZero(mem[pos:]) {
			visit(physicalRecord{Offset: pos, ZeroRun: len(mem) - pos})
			return len(mem), nil
		}
		if h.Length > MaxRecordDataSize {
			return pos, oversizedRecord(h, int64(pos))
		}
		visit(physicalRecord{Offset: pos, Header: h})
		pos += RecordHeaderSize + int(h.Length)
	}
	return pos, nil
}

func loadStream(r io.Reader) ([]byte, error) {
	mem, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if bytes.HasPrefix(mem, ole2Signature) {
		return nil, ErrCompoundDocument
	}
	return mem, nil
}

// Dump writes every physical record of a workbook stream in hex and
// character form. Runs of zero bytes are summarized. Encrypted payloads
// are shown as stored.
func Dump(r io.Reader, w io.Writer, unnumbered bool) error {
	mem, err := loadStream(r)
	if err != nil {
		return err
	}
	dummies, savpos := 0, 0
	pos, err := walkRecords(mem, func(rec physicalRecord) {
		h := rec.Header
		if rec.ZeroRun > 0 || (h.Sid == 0 && h.Length == 0) {
			if dummies == 0 {
				savpos = rec.Offset
			}
			dummies += max(rec.ZeroRun, RecordHeaderSize)
			return
		}
		if dummies > 0 {
			writeSkipped(w, savpos, dummies, unnumbered)
			dummies = 0
		}
		name := RecordName(h.Sid)
		if name == "UNKNOWN" {
			name = "<UNKNOWN>"
		}
		if unnumbered {
			fmt.Fprintf(w, "%04x %s len = %04x (%d)\n", h.Sid, name, h.Length, h.Length)
		} else {
			fmt.Fprintf(w, "%8d %04x %s len = %04x (%d)\n", rec.Offset, h.Sid, name, h.Length, h.Length)
		}
		body := rec.Offset + RecordHeaderSize
		HexCharDump(mem, body, int(h.Length), int64(body), w, unnumbered)
	})
	if dummies > 0 {
		writeSkipped(w, savpos, dummies, unnumbered)
	}
	if err != nil {
		return err
	}
	end := len(mem)
	if pos < end {
		if unnumbered {
			fmt.Fprintf(w, "---- Misc bytes at end ----\n")
		} else {
			fmt.Fprintf(w, "%8d ---- Misc bytes at end ----\n", pos)
		}
		HexCharDump(mem, pos, end-pos, int64(pos), w, unnumbered)
	} else if pos > end {
		fmt.Fprintf(w, "Last dumped record has length (%d) that is too large\n", pos-end)
	}
	return nil
}

func writeSkipped(w io.Writer, pos, n int, unnumbered bool) {
	if unnumbered {
		fmt.Fprintf(w, "---- %d zero bytes skipped ----\n", n)
	} else {
		fmt.Fprintf(w, "%8d ---- %d zero bytes skipped ----\n", pos, n)
	}
}

func allZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}

// RecordCount is the number of physical records with one name.
type RecordCount struct {
	Name  string
	Count int
}

// TallyRecords counts the physical records of a workbook stream by name,
// sorted by name.
func TallyRecords(r io.Reader) ([]RecordCount, error) {
	mem, err := loadStream(r)
	if err != nil {
		return nil, err
	}
	tally := make(map[string]int)
	_, err = walkRecords(mem, func(rec physicalRecord) {
		h := rec.Header
		switch {
		case rec.ZeroRun > 0:
			return
		case h.Sid == 0 && h.Length == 0:
			tally["<Dummy (zero)>"]++
		case RecordName(h.Sid) == "UNKNOWN":
			tally[fmt.Sprintf("Unknown_0x%04X", h.Sid)]++
		default:
			tally[RecordName(h.Sid)]++
		}
	})
	if err != nil {
		return nil, err
	}
	counts := make([]RecordCount, 0, len(tally))
	for name, n := range tally {
		counts = append(counts, RecordCount{Name: name, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Name < counts[j].Name })
	return counts, nil
}

// CountRecords writes a sorted summary of the stream's records to w.
func CountRecords(r io.Reader, w io.Writer) error {
	counts, err := TallyRecords(r)
	if err != nil {
		return err
	}
	for _, c := range counts {
		fmt.Fprintf(w, "%8d %s\n", c.Count, c.Name)
	}
	return nil
}
