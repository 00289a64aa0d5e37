package mrz

import "fmt"

// Filler pads fields to their fixed width.
const Filler = '<'

// FormatID names an ICAO 9303 MRZ size variant.
type FormatID string

const (
	FormatTD1 FormatID = "TD1"
	FormatTD2 FormatID = "TD2"
	FormatTD3 FormatID = "TD3"
)

// Kind is the decode rule applied to a field.
type Kind int

const (
	KindCode Kind = iota
	KindName
	KindAlphanumeric
	KindDate
	KindSex
)

func (k Kind) String() string {
	switch k {
	case KindCode:
		return "code"
	case KindName:
		return "name"
	case KindAlphanumeric:
		return "alphanumeric"
	case KindDate:
		return "date"
	case KindSex:
		return "sex"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Span is a half-open column range on one MRZ line.
type Span struct {
	Line  int
	Start int
	End   int
}

func (s Span) width() int { return s.End - s.Start }

// Field names shared by every format.
const (
	FieldDocumentCode   = "document_code"
	FieldIssuingState   = "issuing_state"
	FieldNames          = "names"
	FieldSurname        = "surname"
	FieldGivenNames     = "given_names"
	FieldDocumentNumber = "document_number"
	FieldNationality    = "nationality"
	FieldBirthDate      = "birth_date"
	FieldSex            = "sex"
	FieldExpiryDate     = "expiry_date"
	FieldPersonalNumber = "personal_number"
	FieldOptionalData   = "optional_data"
	FieldOptionalData2  = "optional_data_2"
	FieldComposite      = "composite"
)

// FieldSpec describes one fixed-offset field. Check is the column of the
// check digit on the same line, or -1 when the field is not protected.
// Overflow names the field that carries the tail of an over-long document
// number. Optional fields may be left empty with a filler check digit.
type FieldSpec struct {
	Name     string
	Span     Span
	Kind     Kind
	Check    int
	Overflow string
	Optional bool
}

// Protected reports whether a check digit validates the field.
func (f FieldSpec) Protected() bool { return f.Check >= 0 }

// Format is a static MRZ layout table. Formats are built once at package
// initialisation and never modified.
type Format struct {
	id         FormatID
	lines      int
	columns    int
	minLengths []int
	fields     []FieldSpec
	composite  []Span
	compCheck  Span
	numeric    [][]bool
}

// ID is the layout identifier.
func (f *Format) ID() FormatID { return f.id }

// Lines is the number of MRZ lines.
func (f *Format) Lines() int { return f.lines }

// Columns is the fixed width of every line.
func (f *Format) Columns() int { return f.columns }

func (f *Format) String() string { return string(f.id) }

// Fields returns a copy of the field table.
func (f *Format) Fields() []FieldSpec {
	out := make([]FieldSpec, len(f.fields))
	copy(out, f.fields)
	return out
}

// Field looks up a field spec by name.
func (f *Format) Field(name string) (FieldSpec, bool) {
	for _, fs := range f.fields {
		if fs.Name == name {
			return fs, true
		}
	}
	return FieldSpec{}, false
}

// acceptsLength reports whether a cleaned line of length n can be padded or
// truncated into line i of the format.
func (f *Format) acceptsLength(i, n int) bool {
	return n >= f.minLengths[i] && n <= f.columns+maxOverrun
}

// maxOverrun is how many trailing characters beyond the column count are
// dropped as OCR noise.
const maxOverrun = 2

func field(name string, line, start, end int, kind Kind) FieldSpec {
	return FieldSpec{Name: name, Span: Span{line, start, end}, Kind: kind, Check: -1}
}

func checked(name string, line, start, end int, kind Kind) FieldSpec {
	return FieldSpec{Name: name, Span: Span{line, start, end}, Kind: kind, Check: end}
}

var (
	// TD3 is the two-line, 44-column passport layout.
	TD3 = mustFormat(&Format{
		id:         FormatTD3,
		lines:      2,
		columns:    44,
		minLengths: []int{6, 44},
		fields: []FieldSpec{
			field(FieldDocumentCode, 0, 0, 2, KindCode),
			field(FieldIssuingState, 0, 2, 5, KindCode),
			field(FieldNames, 0, 5, 44, KindName),
			checked(FieldDocumentNumber, 1, 0, 9, KindAlphanumeric),
			field(FieldNationality, 1, 10, 13, KindCode),
			checked(FieldBirthDate, 1, 13, 19, KindDate),
			field(FieldSex, 1, 20, 21, KindSex),
			checked(FieldExpiryDate, 1, 21, 27, KindDate),
			optional(checked(FieldPersonalNumber, 1, 28, 42, KindAlphanumeric)),
		},
		composite: []Span{{1, 0, 10}, {1, 13, 20}, {1, 21, 43}},
		compCheck: Span{1, 43, 44},
	})

	// TD2 is the two-line, 36-column travel document layout.
	TD2 = mustFormat(&Format{
		id:         FormatTD2,
		lines:      2,
		columns:    36,
		minLengths: []int{6, 36},
		fields: []FieldSpec{
			field(FieldDocumentCode, 0, 0, 2, KindCode),
			field(FieldIssuingState, 0, 2, 5, KindCode),
			field(FieldNames, 0, 5, 36, KindName),
			withOverflow(checked(FieldDocumentNumber, 1, 0, 9, KindAlphanumeric), FieldOptionalData),
			field(FieldNationality, 1, 10, 13, KindCode),
			checked(FieldBirthDate, 1, 13, 19, KindDate),
			field(FieldSex, 1, 20, 21, KindSex),
			checked(FieldExpiryDate, 1, 21, 27, KindDate),
			field(FieldOptionalData, 1, 28, 35, KindAlphanumeric),
		},
		composite: []Span{{1, 0, 10}, {1, 13, 20}, {1, 21, 35}},
		compCheck: Span{1, 35, 36},
	})

	// TD1 is the three-line, 30-column identity card layout.
	TD1 = mustFormat(&Format{
		id:         FormatTD1,
		lines:      3,
		columns:    30,
		minLengths: []int{15, 30, 2},
		fields: []FieldSpec{
			field(FieldDocumentCode, 0, 0, 2, KindCode),
			field(FieldIssuingState, 0, 2, 5, KindCode),
			withOverflow(checked(FieldDocumentNumber, 0, 5, 14, KindAlphanumeric), FieldOptionalData),
			field(FieldOptionalData, 0, 15, 30, KindAlphanumeric),
			checked(FieldBirthDate, 1, 0, 6, KindDate),
			field(FieldSex, 1, 7, 8, KindSex),
			checked(FieldExpiryDate, 1, 8, 14, KindDate),
			field(FieldNationality, 1, 15, 18, KindCode),
			field(FieldOptionalData2, 1, 18, 29, KindAlphanumeric),
			field(FieldNames, 2, 0, 30, KindName),
		},
		composite: []Span{{0, 5, 30}, {1, 0, 7}, {1, 8, 15}, {1, 18, 29}},
		compCheck: Span{1, 29, 30},
	})

	// classifyOrder tries the three-line layout first so that a stray line
	// above a two-line block is not mistaken for part of it.
	classifyOrder = []*Format{TD1, TD3, TD2}
)

// Formats returns the supported layouts.
func Formats() []*Format {
	return []*Format{TD1, TD2, TD3}
}

// FormatByID returns the layout with the given identifier.
func FormatByID(id FormatID) (*Format, bool) {
	for _, f := range Formats() {
		if f.id == id {
			return f, true
		}
	}
	return nil, false
}

func optional(fs FieldSpec) FieldSpec {
	fs.Optional = true
	return fs
}

func withOverflow(fs FieldSpec, into string) FieldSpec {
	fs.Overflow = into
	return fs
}

// mustFormat checks every span against the line geometry and precomputes
// the numeric-position mask used for OCR correction. It panics on an
// inconsistent table.
func mustFormat(f *Format) *Format {
	if len(f.minLengths) != f.lines {
		panic(fmt.Sprintf("mrz: %s: %d min lengths for %d lines", f.id, len(f.minLengths), f.lines))
	}
	inBounds := func(s Span) bool {
		return s.Line >= 0 && s.Line < f.lines && s.Start >= 0 && s.Start < s.End && s.End <= f.columns
	}

	f.numeric = make([][]bool, f.lines)
	for i := range f.numeric {
		f.numeric[i] = make([]bool, f.columns)
	}
	markDigits := func(s Span) {
		for c := s.Start; c < s.End; c++ {
			f.numeric[s.Line][c] = true
		}
	}

	names := make(map[string]bool, len(f.fields))
	for _, fs := range f.fields {
		if !inBounds(fs.Span) {
			panic(fmt.Sprintf("mrz: %s: field %s out of bounds %+v", f.id, fs.Name, fs.Span))
		}
		if fs.Protected() {
			cs := Span{fs.Span.Line, fs.Check, fs.Check + 1}
			if !inBounds(cs) {
				panic(fmt.Sprintf("mrz: %s: check digit of %s out of bounds", f.id, fs.Name))
			}
			markDigits(cs)
		}
		if fs.Kind == KindDate {
			markDigits(fs.Span)
		}
		names[fs.Name] = true
	}
	for _, fs := range f.fields {
		if fs.Overflow != "" && !names[fs.Overflow] {
			panic(fmt.Sprintf("mrz: %s: overflow field %s of %s missing", f.id, fs.Overflow, fs.Name))
		}
	}
	for _, s := range f.composite {
		if !inBounds(s) {
			panic(fmt.Sprintf("mrz: %s: composite span out of bounds %+v", f.id, s))
		}
	}
	if !inBounds(f.compCheck) || f.compCheck.width() != 1 {
		panic(fmt.Sprintf("mrz: %s: composite check digit out of bounds", f.id))
	}
	markDigits(f.compCheck)
	return f
}
