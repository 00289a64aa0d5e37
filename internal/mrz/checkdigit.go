package mrz

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidCharacter is returned by CheckDigit for characters outside the
// MRZ alphabet.
var ErrInvalidCharacter = errors.New("mrz: character outside MRZ alphabet")

var weights = [3]int{7, 3, 1}

// CheckDigit computes the ICAO 9303 check digit of s: characters map to
// 0-9 for digits, 10-35 for A-Z and 0 for the filler, are weighted 7,3,1
// cyclically, and the sum is taken modulo 10.
func CheckDigit(s string) (int, error) {
	sum := 0
	for i := 0; i < len(s); i++ {
		v, err := charValue(s[i])
		if err != nil {
			return 0, fmt.Errorf("position %d: %w", i, err)
		}
		sum += v * weights[i%3]
	}
	return sum % 10, nil
}

func charValue(c byte) (int, error) {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0'), nil
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10, nil
	case c == Filler:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidCharacter, c)
	}
}

// Verify reports whether declared is the check digit of s. A filler is never
// a check digit; see Validate for empty optional fields.
func Verify(s string, declared byte) bool {
	if declared < '0' || declared > '9' {
		return false
	}
	want, err := CheckDigit(s)
	if err != nil {
		return false
	}
	return want == int(declared-'0')
}

// Check is the outcome of validating one checksum-protected field.
type Check struct {
	Field    string `json:"field"`
	Data     string `json:"data"`
	Declared string `json:"declared"`
	Computed string `json:"computed"`
	Valid    bool   `json:"valid"`
}

func newCheck(name, data string, declared byte, valid bool) Check {
	c := Check{Field: name, Data: data, Declared: string(declared), Valid: valid}
	if d, err := CheckDigit(data); err == nil {
		c.Computed = string(rune('0' + d))
	}
	return c
}

// Validate recomputes every check digit of the normalized lines, including
// the composite, and marks the matching fields. Mismatches never fail the
// decode; they are returned as invalid checks. An empty optional field may
// carry a filler instead of a check digit.
func Validate(n Normalized, fields []Field) []Check {
	f := n.Format
	byName := make(map[string]int, len(fields))
	for i := range fields {
		byName[fields[i].Name] = i
	}

	var checks []Check
	for _, fs := range f.fields {
		if !fs.Protected() {
			continue
		}
		data := slice(n.Lines, fs.Span)
		declared := n.Lines[fs.Span.Line][fs.Check]

		if fs.Overflow != "" && declared == Filler {
			if ov, ok := f.Field(fs.Overflow); ok {
				if tail, digit, ok := overflowTail(slice(n.Lines, ov.Span)); ok {
					data += tail
					declared = digit
				}
			}
		}

		valid := Verify(data, declared) || (fs.Optional && declared == Filler && isFiller(data))
		c := newCheck(fs.Name, data, declared, valid)
		checks = append(checks, c)
		if i, ok := byName[fs.Name]; ok {
			fields[i].Checked = true
			fields[i].Valid = c.Valid
		}
	}

	var composite strings.Builder
	for _, s := range f.composite {
		composite.WriteString(slice(n.Lines, s))
	}
	data, declared := composite.String(), n.Lines[f.compCheck.Line][f.compCheck.Start]
	checks = append(checks, newCheck(FieldComposite, data, declared, Verify(data, declared)))
	return checks
}

// overflowTail splits the continuation of an over-long document number out
// of an optional data field: the characters before the first filler, whose
// last one is the check digit.
func overflowTail(optional string) (tail string, check byte, ok bool) {
	end := strings.IndexByte(optional, Filler)
	if end < 0 {
		end = len(optional)
	}
	if end < 2 {
		return "", 0, false
	}
	return optional[:end-1], optional[end-1], true
}

func isFiller(s string) bool {
	return strings.Trim(s, string(Filler)) == ""
}

func slice(lines []string, s Span) string {
	return lines[s.Line][s.Start:s.End]
}
