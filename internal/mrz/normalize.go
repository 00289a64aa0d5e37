package mrz

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Correction records one OCR-confusable substitution applied to a numeric
// position.
type Correction struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// Normalized is a set of lines padded to the exact geometry of Format.
type Normalized struct {
	Format      *Format
	Lines       []string
	Corrections []Correction
}

// unknownRune stands in for characters that cannot appear in an MRZ so that
// column offsets stay aligned with what OCR produced.
const unknownRune = '?'

var fillerVariants = strings.NewReplacer("«", "<<", "‹", "<", "〈", "<")

// Clean trims and uppercases raw OCR lines, folds full-width and accented
// characters to ASCII, removes blanks inside a line and drops lines that are
// empty afterwards.
func Clean(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if c := cleanLine(l); c != "" {
			out = append(out, c)
		}
	}
	return out
}

func cleanLine(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	s = fillerVariants.Replace(s)
	if !isASCII(s) {
		if folded, _, err := transform.String(newFolder(), s); err == nil {
			s = folded
		}
	}
	s = strings.ToUpper(s)
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return -1
		case r >= utf8.RuneSelf || !unicode.IsPrint(r):
			return unknownRune
		default:
			return r
		}
	}, s)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// newFolder builds a fresh transformer per call; chained transformers keep
// internal buffers and are not safe to share between goroutines.
func newFolder() transform.Transformer {
	return transform.Chain(width.Fold, norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
}

// Normalize cleans raw lines, keeps the last Lines() of them and pads or
// truncates each to the exact column count of f. Confusable letters are
// replaced by digits only where f expects a date or a check digit.
func Normalize(lines []string, f *Format) (Normalized, error) {
	return normalizeCleaned(Clean(lines), f)
}

func normalizeCleaned(cleaned []string, f *Format) (Normalized, error) {
	if len(cleaned) < f.lines {
		return Normalized{}, failf(StageNormalizing, ErrMalformedInput,
			"%s needs %d non-empty lines, got %d", f.id, f.lines, len(cleaned))
	}
	candidates := cleaned[len(cleaned)-f.lines:]

	n := Normalized{Format: f, Lines: make([]string, f.lines)}
	for i, line := range candidates {
		if !f.acceptsLength(i, len(line)) {
			return Normalized{}, failf(StageNormalizing, ErrMalformedInput,
				"line %d has %d characters, %s expects %d", i+1, len(line), f.id, f.columns)
		}
		fixed := []byte(fit(line, f.columns))
		for c, b := range fixed {
			if !f.numeric[i][c] {
				continue
			}
			if d, ok := confusableDigit(b); ok {
				n.Corrections = append(n.Corrections, Correction{Line: i, Column: c, From: string(b), To: string(d)})
				fixed[c] = d
			}
		}
		n.Lines[i] = string(fixed)
	}

	if len(n.Lines) != f.lines {
		return Normalized{}, failf(StageNormalizing, ErrMalformedInput, "line count mismatch")
	}
	for i, l := range n.Lines {
		if len(l) != f.columns {
			return Normalized{}, failf(StageNormalizing, ErrMalformedInput,
				"line %d normalized to %d characters", i+1, len(l))
		}
	}
	return n, nil
}

func fit(line string, columns int) string {
	if len(line) >= columns {
		return line[:columns]
	}
	return line + strings.Repeat(string(Filler), columns-len(line))
}

// confusableDigit maps letters that OCR commonly reads in place of digits.
func confusableDigit(b byte) (byte, bool) {
	switch b {
	case 'O', 'Q', 'D':
		return '0', true
	case 'I', 'L':
		return '1', true
	case 'Z':
		return '2', true
	case 'S':
		return '5', true
	case 'G':
		return '6', true
	case 'B':
		return '8', true
	default:
		return 0, false
	}
}
