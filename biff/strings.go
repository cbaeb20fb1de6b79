package biff

import (
	"encoding/binary"
	"unicode/utf16"

	"golang.org/x/text/encoding/charmap"
)

// Option flag bits of a BIFF8 string header.
const (
	strFlagWide     = 0x01
	strFlagExtended = 0x04
	strFlagRichText = 0x08
)

// XLUnicodeString is text together with the encoding it is stored in.
//
// Wide selects the 2-bytes-per-character encoding; a string holding any
// character above U+00FF is always written wide regardless of the flag.
type XLUnicodeString struct {
	Text string
	Wide bool
}

// NewXLUnicodeString picks the compact encoding whenever the text allows it.
func NewXLUnicodeString(s string) XLUnicodeString {
	return XLUnicodeString{Text: s, Wide: HasMultibyte(s)}
}

// IsWide reports the encoding that will actually be written.
func (u XLUnicodeString) IsWide() bool {
	return u.Wide || HasMultibyte(u.Text)
}

// CharCount returns the number of BIFF characters (UTF-16 code units).
func (u XLUnicodeString) CharCount() int {
	return charCount(u.Text)
}

// DataSize returns the size of the character data alone.
func (u XLUnicodeString) DataSize() int {
	if u.IsWide() {
		return 2 * u.CharCount()
	}
	return u.CharCount()
}

func (u XLUnicodeString) String() string {
	return u.Text
}

// HasMultibyte reports whether s needs the wide encoding.
func HasMultibyte(s string) bool {
	for _, r := range s {
		if r > 0xFF {
			return true
		}
	}
	return false
}

func charCount(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}

// decodeCompressed converts single-byte characters to a Go string.
func decodeCompressed(b []byte) string {
	utf8Bytes, err := charmap.ISO8859_1.NewDecoder().Bytes(b)
	if err != nil {
		// ISO 8859-1 maps every byte, this is unreachable in practice
		runes := make([]rune, len(b))
		for i, c := range b {
			runes[i] = rune(c)
		}
		return string(runes)
	}
	return string(utf8Bytes)
}

// encodeCompressed returns the single-byte form of s, or false if s has
// characters outside the compressed range.
func encodeCompressed(s string) ([]byte, bool) {
	if HasMultibyte(s) {
		return nil, false
	}
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, false
	}
	return b, true
}

func decodeUTF16LE(b []byte) string {
	return string(utf16.Decode(utf16Units(b)))
}

func utf16Units(b []byte) []uint16 {
	words := make([]uint16, len(b)/2)
	for i := range words {
		words[i] = binary.LittleEndian.Uint16(b[i*2:])
	}
	return words
}

func encodeUTF16LE(s string) []byte {
	words := utf16.Encode([]rune(s))
	b := make([]byte, 2*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint16(b[i*2:], w)
	}
	return b
}

// stringUnits returns the UTF-16 code units of s.
func stringUnits(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// compressedUnits widens single-byte characters into code units.
func compressedUnits(b []byte) []uint16 {
	return stringUnits(decodeCompressed(b))
}

// maxShortStringChars is the largest count an 8-bit length prefix holds.
const maxShortStringChars = 255

func checkShortString(field string, u XLUnicodeString) error {
	if n := u.CharCount(); n > maxShortStringChars {
		return NewFormatError("%s has %d characters, more than %d", field, n, maxShortStringChars)
	}
	return nil
}
