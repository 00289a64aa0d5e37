package mrz

import (
	"fmt"
	"strings"
	"time"
)

// Field is one decoded slice of the MRZ. Checked and Valid are only set for
// checksum-protected fields, after Validate.
type Field struct {
	Name    string `json:"name"`
	Kind    Kind   `json:"-"`
	Raw     string `json:"raw"`
	Value   string `json:"value"`
	Date    Date   `json:"-"`
	Sex     Sex    `json:"-"`
	Checked bool   `json:"checked"`
	Valid   bool   `json:"valid"`
}

// Sex is the holder's sex as printed in the MRZ.
type Sex string

const (
	SexMale        Sex = "male"
	SexFemale      Sex = "female"
	SexUnspecified Sex = "unspecified"
)

// Code returns the single MRZ character for s.
func (s Sex) Code() string {
	switch s {
	case SexMale:
		return "M"
	case SexFemale:
		return "F"
	default:
		return "X"
	}
}

func parseSex(raw string) Sex {
	switch raw {
	case "M":
		return SexMale
	case "F":
		return SexFemale
	default:
		return SexUnspecified
	}
}

// CenturyPivot splits two-digit years: below it the year is in the 2000s,
// otherwise in the 1900s. Documents close to the boundary are ambiguous and
// nothing in the MRZ resolves that.
const CenturyPivot = 50

// Date is a calendar date from a YYMMDD field. The zero Date means the field
// did not hold a valid date.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

func (d Date) IsZero() bool { return d == Date{} }

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	if d.IsZero() {
		return time.Time{}
	}
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(dateLayout)
}

func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	t, err := time.Parse(dateLayout, string(b))
	if err != nil {
		return fmt.Errorf("mrz: parse date: %w", err)
	}
	*d = Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
	return nil
}

// ParseDate decodes a six-digit YYMMDD value using CenturyPivot.
func ParseDate(raw string) (Date, bool) {
	if len(raw) != 6 {
		return Date{}, false
	}
	var n [3]int
	for i := 0; i < 3; i++ {
		hi, lo := raw[2*i], raw[2*i+1]
		if !isDigit(hi) || !isDigit(lo) {
			return Date{}, false
		}
		n[i] = int(hi-'0')*10 + int(lo-'0')
	}
	year := 1900 + n[0]
	if n[0] < CenturyPivot {
		year = 2000 + n[0]
	}
	t := time.Date(year, time.Month(n[1]), n[2], 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != n[1] || t.Day() != n[2] {
		return Date{}, false
	}
	return Date{Year: year, Month: t.Month(), Day: n[2]}, true
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// SplitNames splits the primary identifier from the secondary identifiers
// at the first double filler. Without that delimiter the whole content is
// the surname.
func SplitNames(raw string) (surname, given string) {
	parts := strings.SplitN(raw, "<<", 2)
	surname = tidyName(parts[0])
	if len(parts) == 2 {
		given = tidyName(parts[1])
	}
	return surname, given
}

func tidyName(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, string(Filler), " ")), " ")
}

func stripFiller(s string) string {
	return strings.Trim(s, string(Filler))
}

// DecodeFields slices every field of the normalized lines and applies its
// decode rule. It only fails when a span falls outside the lines, which
// means the format table itself is inconsistent.
func DecodeFields(n Normalized) ([]Field, error) {
	f := n.Format
	if len(n.Lines) != f.lines {
		return nil, failf(StageDecoding, ErrDecodeFailure, "%d lines for %s", len(n.Lines), f.id)
	}

	fields := make([]Field, 0, len(f.fields)+1)
	for _, fs := range f.fields {
		s := fs.Span
		if len(n.Lines[s.Line]) < s.End {
			return nil, failf(StageDecoding, ErrDecodeFailure, "field %s span %+v exceeds line", fs.Name, s)
		}
		raw := slice(n.Lines, s)

		switch fs.Kind {
		case KindName:
			surname, given := SplitNames(raw)
			fields = append(fields,
				Field{Name: FieldSurname, Kind: KindName, Raw: raw, Value: surname},
				Field{Name: FieldGivenNames, Kind: KindName, Raw: raw, Value: given},
			)
		case KindDate:
			d, _ := ParseDate(raw)
			fields = append(fields, Field{Name: fs.Name, Kind: KindDate, Raw: raw, Value: d.String(), Date: d})
		case KindSex:
			sex := parseSex(raw)
			fields = append(fields, Field{Name: fs.Name, Kind: KindSex, Raw: raw, Value: string(sex), Sex: sex})
		default:
			fields = append(fields, Field{Name: fs.Name, Kind: fs.Kind, Raw: raw, Value: stripFiller(raw)})
		}
	}

	joinOverflow(n, fields)
	return fields, nil
}

// joinOverflow completes document numbers longer than nine characters. The
// continuation and its check digit are removed from the optional data.
func joinOverflow(n Normalized, fields []Field) {
	for _, fs := range n.Format.fields {
		if fs.Overflow == "" || n.Lines[fs.Span.Line][fs.Check] != Filler {
			continue
		}
		num, opt := indexOf(fields, fs.Name), indexOf(fields, fs.Overflow)
		if num < 0 || opt < 0 {
			continue
		}
		tail, _, ok := overflowTail(fields[opt].Raw)
		if !ok {
			continue
		}
		fields[num].Value = stripFiller(fields[num].Raw) + tail
		fields[opt].Value = stripFiller(fields[opt].Raw[len(tail)+1:])
	}
}

func indexOf(fields []Field, name string) int {
	for i := range fields {
		if fields[i].Name == name {
			return i
		}
	}
	return -1
}
