// Package mrz decodes and validates the Machine Readable Zone of ICAO 9303
// travel documents.
//
// Decoding runs in fixed stages: raw OCR lines are cleaned, classified into
// a TD1, TD2 or TD3 layout, normalized to the exact layout geometry, sliced
// into fields by a static table, checked against their check digits and
// assembled into a Record. Malformed or unrecognised input fails with a
// *DecodeError; check digit mismatches never fail and are reported on the
// Record instead.
//
// The package holds no mutable state and performs no I/O. All functions are
// safe for concurrent use.
package mrz

import (
	"iter"
	"slices"
	"strings"
)

// Decode detects the layout of lines and decodes them.
func Decode(lines []string) (Record, error) {
	cleaned := Clean(lines)
	if len(cleaned) < minLines {
		return Record{}, failf(StageNormalizing, ErrMalformedInput,
			"need at least %d non-empty lines, got %d", minLines, len(cleaned))
	}
	f, err := Classify(cleaned)
	if err != nil {
		return Record{}, err
	}
	return decodeCleaned(cleaned, f)
}

// DecodeAs decodes lines with a known layout, skipping classification.
func DecodeAs(f *Format, lines []string) (Record, error) {
	return decodeCleaned(Clean(lines), f)
}

// DecodeText splits OCR output into lines and decodes it.
func DecodeText(text string) (Record, error) {
	return Decode(SplitLines(text))
}

// DecodeSeq decodes lines produced lazily, e.g. by a line scanner.
func DecodeSeq(lines iter.Seq[string]) (Record, error) {
	return Decode(slices.Collect(lines))
}

// SplitLines splits text on LF, CRLF or CR line endings.
func SplitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

func decodeCleaned(cleaned []string, f *Format) (Record, error) {
	n, err := normalizeCleaned(cleaned, f)
	if err != nil {
		return Record{}, err
	}
	fields, err := DecodeFields(n)
	if err != nil {
		return Record{}, err
	}
	checks := Validate(n, fields)
	return Assemble(n, fields, checks), nil
}
