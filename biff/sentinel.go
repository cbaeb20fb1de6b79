package biff

import (
	"encoding/binary"
	"math"
)

// ResultKind is the type of a formula's cached result.
type ResultKind int

const (
	ResultNumber ResultKind = iota
	ResultString
	ResultBool
	ResultError
	ResultEmpty
)

var resultKindNames = map[ResultKind]string{
	ResultNumber: "number",
	ResultString: "string",
	ResultBool:   "bool",
	ResultError:  "error",
	ResultEmpty:  "empty",
}

func (k ResultKind) String() string {
	if name, ok := resultKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// A double whose top 16 bits are sentinelMarker holds a non-numeric result.
// Byte 0 selects the kind and byte 2 carries the boolean or error value.
const sentinelMarker = 0xFFFF

const (
	sentinelString = 0
	sentinelBool   = 1
	sentinelError  = 2
	sentinelEmpty  = 3
)

// CachedResult is the 8-byte cached value of a formula cell. The bytes are
// kept exactly as read.
type CachedResult struct {
	raw [8]byte
}

// ParseCachedResult validates 8 raw bytes.
func ParseCachedResult(raw [8]byte) (CachedResult, error) {
	r := CachedResult{raw: raw}
	if !r.valid() {
		return CachedResult{}, NewFormatError("unknown cached result type %d", r.raw[0])
	}
	return r, nil
}

func (r CachedResult) valid() bool {
	return !r.isSentinel() || r.raw[0] <= sentinelEmpty
}

// NewNumberResult wraps a literal double. NaN bit patterns that would read
// back as a sentinel are rejected.
func NewNumberResult(v float64) (CachedResult, error) {
	var r CachedResult
	binary.LittleEndian.PutUint64(r.raw[:], math.Float64bits(v))
	if r.isSentinel() {
		return CachedResult{}, NewFormatError("NaN bit pattern 0x%016X collides with the cached result marker", math.Float64bits(v))
	}
	return r, nil
}

func newSentinelResult(kind, value uint8) CachedResult {
	var r CachedResult
	r.raw[0] = kind
	r.raw[2] = value
	r.raw[6] = 0xFF
	r.raw[7] = 0xFF
	return r
}

// NewStringResult marks the result as a string held in a following STRING record.
func NewStringResult() CachedResult {
	return newSentinelResult(sentinelString, 0)
}

// NewBoolResult creates a boolean result.
func NewBoolResult(v bool) CachedResult {
	if v {
		return newSentinelResult(sentinelBool, 1)
	}
	return newSentinelResult(sentinelBool, 0)
}

// NewErrorResult creates an error-code result such as 0x07 for #DIV/0!.
func NewErrorResult(code uint8) CachedResult {
	return newSentinelResult(sentinelError, code)
}

// NewEmptyResult creates an empty-string result.
func NewEmptyResult() CachedResult {
	return newSentinelResult(sentinelEmpty, 0)
}

func (r CachedResult) isSentinel() bool {
	return binary.LittleEndian.Uint16(r.raw[6:]) == sentinelMarker
}

// Kind returns the type of the result.
func (r CachedResult) Kind() ResultKind {
	if !r.isSentinel() {
		return ResultNumber
	}
	switch r.raw[0] {
	case sentinelString:
		return ResultString
	case sentinelBool:
		return ResultBool
	case sentinelError:
		return ResultError
	}
	return ResultEmpty
}

// IsStringPending reports whether the string value follows in a STRING record.
func (r CachedResult) IsStringPending() bool {
	return r.Kind() == ResultString
}

// Number returns the literal double, including NaN payloads.
func (r CachedResult) Number() float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(r.raw[:]))
}

// Bool returns the boolean value of a ResultBool.
func (r CachedResult) Bool() bool {
	return r.raw[2] != 0
}

// ErrorCode returns the error code of a ResultError.
func (r CachedResult) ErrorCode() uint8 {
	return r.raw[2]
}

// Bytes returns the raw 8 bytes.
func (r CachedResult) Bytes() [8]byte {
	return r.raw
}

func (r CachedResult) String() string {
	switch r.Kind() {
	case ResultBool:
		if r.Bool() {
			return "TRUE"
		}
		return "FALSE"
	case ResultError:
		if text, ok := ErrorTextFromCode[r.ErrorCode()]; ok {
			return text
		}
		return "#ERR?"
	case ResultString, ResultEmpty:
		return ""
	}
	return formatNumber(r.Number())
}
