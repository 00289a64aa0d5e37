package mrz

// Record is the decoded, checksum-annotated content of one MRZ. Decode
// builds it in a single step and it is never modified afterwards; the
// slices it holds are not shared with any other Record.
type Record struct {
	Format         FormatID     `json:"format"`
	DocumentCode   string       `json:"document_code"`
	IssuingState   string       `json:"issuing_state"`
	Surname        string       `json:"surname"`
	GivenNames     string       `json:"given_names"`
	DocumentNumber string       `json:"document_number"`
	Nationality    string       `json:"nationality"`
	BirthDate      Date         `json:"birth_date"`
	Sex            Sex          `json:"sex"`
	ExpiryDate     Date         `json:"expiry_date"`
	PersonalNumber string       `json:"personal_number,omitempty"`
	OptionalData   string       `json:"optional_data,omitempty"`
	OptionalData2  string       `json:"optional_data_2,omitempty"`
	CompositeValid bool         `json:"composite_valid"`
	Checks         []Check      `json:"checks"`
	Corrections    []Correction `json:"corrections,omitempty"`
	Lines          []string     `json:"lines"`

	fields []Field
}

// Valid reports whether every check digit, including the composite, matched.
func (r Record) Valid() bool {
	for _, c := range r.Checks {
		if !c.Valid {
			return false
		}
	}
	return len(r.Checks) > 0
}

// FailedChecks returns the names of fields whose check digit did not match.
func (r Record) FailedChecks() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Valid {
			out = append(out, c.Field)
		}
	}
	return out
}

// Fields returns the record as field name to display value. Dates that could
// not be parsed fall back to their raw MRZ text.
func (r Record) Fields() map[string]string {
	out := make(map[string]string, len(r.fields))
	for _, f := range r.fields {
		v := f.Value
		if f.Kind == KindDate && v == "" {
			v = f.Raw
		}
		out[f.Name] = v
	}
	return out
}

// Validity returns field name to check-digit outcome for every protected
// field and the composite.
func (r Record) Validity() map[string]bool {
	out := make(map[string]bool, len(r.Checks))
	for _, c := range r.Checks {
		out[c.Field] = c.Valid
	}
	return out
}

// DecodedFields returns a copy of the per-field decode results.
func (r Record) DecodedFields() []Field {
	out := make([]Field, len(r.fields))
	copy(out, r.fields)
	return out
}

// Assemble merges decoded fields and check results into a Record. It does no
// validation of its own.
func Assemble(n Normalized, fields []Field, checks []Check) Record {
	r := Record{
		Format: n.Format.id,
		Sex:    SexUnspecified,
		Checks: append([]Check(nil), checks...),
		Lines:  append([]string(nil), n.Lines...),
		fields: append([]Field(nil), fields...),
	}
	if len(n.Corrections) > 0 {
		r.Corrections = append([]Correction(nil), n.Corrections...)
	}

	for _, f := range fields {
		switch f.Name {
		case FieldDocumentCode:
			r.DocumentCode = f.Value
		case FieldIssuingState:
			r.IssuingState = f.Value
		case FieldSurname:
			r.Surname = f.Value
		case FieldGivenNames:
			r.GivenNames = f.Value
		case FieldDocumentNumber:
			r.DocumentNumber = f.Value
		case FieldNationality:
			r.Nationality = f.Value
		case FieldBirthDate:
			r.BirthDate = f.Date
		case FieldSex:
			r.Sex = f.Sex
		case FieldExpiryDate:
			r.ExpiryDate = f.Date
		case FieldPersonalNumber:
			r.PersonalNumber = f.Value
		case FieldOptionalData:
			r.OptionalData = f.Value
		case FieldOptionalData2:
			r.OptionalData2 = f.Value
		}
	}
	for _, c := range checks {
		if c.Field == FieldComposite {
			r.CompositeValid = c.Valid
		}
	}
	return r
}
