package mrz_test

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mrzscan/mrzscan-backend/internal/mrz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ICAO 9303 specimen documents.
var (
	td3 = []string{
		pad("P<UTOERIKSSON<<ANNA<MARIA", 44),
		"L898902C36UTO7408122F1204159ZE184226B<<<<<10",
	}
	td2 = []string{
		pad("I<UTOERIKSSON<<ANNA<MARIA", 36),
		"D231458907UTO7408122F1204159<<<<<<<6",
	}
	td1 = []string{
		pad("I<UTOD231458907", 30),
		"7408122F1204159UTO<<<<<<<<<<<6",
		pad("ERIKSSON<<ANNA<MARIA", 30),
	}
)

func pad(s string, n int) string {
	return s + strings.Repeat("<", n-len(s))
}

func replaceAt(s string, i int, c byte) string {
	b := []byte(s)
	b[i] = c
	return string(b)
}

func TestDecode_TD3Specimen(t *testing.T) {
	rec, err := mrz.Decode(td3)
	require.NoError(t, err)

	assert.Equal(t, mrz.FormatTD3, rec.Format)
	assert.Equal(t, "P", rec.DocumentCode)
	assert.Equal(t, "UTO", rec.IssuingState)
	assert.Equal(t, "ERIKSSON", rec.Surname)
	assert.Equal(t, "ANNA MARIA", rec.GivenNames)
	assert.Equal(t, "L898902C3", rec.DocumentNumber)
	assert.Equal(t, "UTO", rec.Nationality)
	assert.Equal(t, mrz.Date{Year: 1974, Month: time.August, Day: 12}, rec.BirthDate)
	assert.Equal(t, mrz.SexFemale, rec.Sex)
	assert.Equal(t, mrz.Date{Year: 2012, Month: time.April, Day: 15}, rec.ExpiryDate)
	assert.Equal(t, "ZE184226B", rec.PersonalNumber)
	assert.True(t, rec.CompositeValid)
	assert.True(t, rec.Valid())
	assert.Empty(t, rec.Corrections)
	assert.Equal(t, td3, rec.Lines)
}

func TestDecode_TD3AllProtectedFieldsValid(t *testing.T) {
	rec, err := mrz.Decode(td3)
	require.NoError(t, err)

	assert.Equal(t, map[string]bool{
		mrz.FieldDocumentNumber: true,
		mrz.FieldBirthDate:      true,
		mrz.FieldExpiryDate:     true,
		mrz.FieldPersonalNumber: true,
		mrz.FieldComposite:      true,
	}, rec.Validity())
	assert.Empty(t, rec.FailedChecks())
}

func TestDecode_TD2Specimen(t *testing.T) {
	rec, err := mrz.Decode(td2)
	require.NoError(t, err)

	assert.Equal(t, mrz.FormatTD2, rec.Format)
	assert.Equal(t, "I", rec.DocumentCode)
	assert.Equal(t, "ERIKSSON", rec.Surname)
	assert.Equal(t, "ANNA MARIA", rec.GivenNames)
	assert.Equal(t, "D23145890", rec.DocumentNumber)
	assert.Equal(t, "", rec.OptionalData)
	assert.True(t, rec.Valid())
}

func TestDecode_TD1Specimen(t *testing.T) {
	rec, err := mrz.Decode(td1)
	require.NoError(t, err)

	assert.Equal(t, mrz.FormatTD1, rec.Format)
	assert.Equal(t, "I", rec.DocumentCode)
	assert.Equal(t, "UTO", rec.IssuingState)
	assert.Equal(t, "D23145890", rec.DocumentNumber)
	assert.Equal(t, "ERIKSSON", rec.Surname)
	assert.Equal(t, "ANNA MARIA", rec.GivenNames)
	assert.Equal(t, "1974-08-12", rec.BirthDate.String())
	assert.Equal(t, "2012-04-15", rec.ExpiryDate.String())
	assert.Equal(t, mrz.SexFemale, rec.Sex)
	assert.True(t, rec.CompositeValid)
	assert.True(t, rec.Valid())
}

func TestDecode_TD1DocumentNumberOverflow(t *testing.T) {
	lines := []string{
		pad("I<UTOD23145890<7349", 30),
		td1[1],
		td1[2],
	}

	rec, err := mrz.Decode(lines)
	require.NoError(t, err)

	assert.Equal(t, "D23145890734", rec.DocumentNumber)
	assert.Equal(t, "", rec.OptionalData)
	assert.True(t, rec.Validity()[mrz.FieldDocumentNumber])
	assert.True(t, rec.CompositeValid)
}

func TestDecode_SingleCharacterAlterationIsNonFatal(t *testing.T) {
	// Only digit-for-digit substitutions are used: weights 7, 3 and 1 are
	// coprime with 10, so each one must change the check digit.
	protected := map[string][2]int{
		mrz.FieldDocumentNumber: {0, 9},
		mrz.FieldBirthDate:      {13, 19},
		mrz.FieldExpiryDate:     {21, 27},
		mrz.FieldPersonalNumber: {28, 42},
	}

	for name, span := range protected {
		for pos := span[0]; pos < span[1]; pos++ {
			orig := td3[1][pos]
			if orig < '0' || orig > '9' {
				continue
			}
			repl := byte('0' + (orig-'0'+1)%10)
			lines := []string{td3[0], replaceAt(td3[1], pos, repl)}

			rec, err := mrz.Decode(lines)
			require.NoError(t, err, "%s pos %d", name, pos)
			assert.False(t, rec.Validity()[name], "%s pos %d", name, pos)
			assert.False(t, rec.Valid(), "%s pos %d", name, pos)
		}
	}
}

func TestDecode_AlteredCompositeDigit(t *testing.T) {
	lines := []string{td3[0], replaceAt(td3[1], 43, '1')}

	rec, err := mrz.Decode(lines)
	require.NoError(t, err)

	assert.False(t, rec.CompositeValid)
	assert.True(t, rec.Validity()[mrz.FieldDocumentNumber])
	assert.Equal(t, []string{mrz.FieldComposite}, rec.FailedChecks())
}

func TestDecode_FillerCheckDigitOnMandatoryFields(t *testing.T) {
	lines := []string{td3[0], "<<<<<<<<<<UTO<<<<<<<F<<<<<<<ZE184226B<<<<<12"}

	rec, err := mrz.Decode(lines)
	require.NoError(t, err)

	validity := rec.Validity()
	assert.False(t, validity[mrz.FieldDocumentNumber])
	assert.False(t, validity[mrz.FieldBirthDate])
	assert.False(t, validity[mrz.FieldExpiryDate])
	assert.True(t, validity[mrz.FieldPersonalNumber])
	assert.True(t, rec.CompositeValid)
	assert.False(t, rec.Valid())
	assert.ElementsMatch(t, []string{mrz.FieldDocumentNumber, mrz.FieldBirthDate, mrz.FieldExpiryDate}, rec.FailedChecks())
}

func TestDecode_EmptyPersonalNumberWithFillerCheck(t *testing.T) {
	lines := []string{td3[0], "L898902C36UTO7408122F1204159<<<<<<<<<<<<<<<8"}

	rec, err := mrz.Decode(lines)
	require.NoError(t, err)

	assert.Empty(t, rec.PersonalNumber)
	assert.True(t, rec.Validity()[mrz.FieldPersonalNumber])
	assert.True(t, rec.Valid())
}

func TestDecode_TooFewLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"nil", nil},
		{"one line", []string{td3[1]}},
		{"blank lines only", []string{"", "   ", "\t"}},
		{"one non-empty among blanks", []string{"", td3[0], "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mrz.Decode(tt.lines)
			require.Error(t, err)
			assert.True(t, errors.Is(err, mrz.ErrMalformedInput), "got %v", err)

			var de *mrz.DecodeError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, mrz.StageNormalizing, de.Stage)
		})
	}
}

func TestDecode_WrongLineLength(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
	}{
		{"data line one short", []string{td3[0], td3[1][:43]}},
		{"data line 40", []string{td3[0], td3[1][:40]}},
		{"data line 30", []string{td3[0], td3[1][:30]}},
		{"prose", []string{"hello world", "this is not a passport"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mrz.Decode(tt.lines)
			require.Error(t, err)
			assert.ErrorIs(t, err, mrz.ErrUnsupportedFormat)
		})
	}
}

func TestDecode_PadsDroppedTrailingFillers(t *testing.T) {
	lines := []string{"P<UTOERIKSSON<<ANNA<MARIA", td3[1]}

	rec, err := mrz.Decode(lines)
	require.NoError(t, err)

	assert.Equal(t, td3[0], rec.Lines[0])
	assert.Equal(t, "ERIKSSON", rec.Surname)
	assert.True(t, rec.Valid())
}

func TestDecode_TruncatesTrailingNoise(t *testing.T) {
	lines := []string{td3[0] + "<", td3[1] + "."}

	rec, err := mrz.Decode(lines)
	require.NoError(t, err)
	assert.Equal(t, td3, rec.Lines)
	assert.True(t, rec.Valid())
}

func TestDecode_SkipsLeadingGarbageAndBlankLines(t *testing.T) {
	lines := []string{
		"REPUBLIC OF UTOPIA",
		"",
		"PASSPORT  PASSEPORT",
		"   ",
		td3[0],
		"",
		td3[1],
		"",
	}

	rec, err := mrz.Decode(lines)
	require.NoError(t, err)
	assert.Equal(t, mrz.FormatTD3, rec.Format)
	assert.True(t, rec.Valid())
}

func TestDecode_OCRNoise(t *testing.T) {
	t.Run("lowercase and inner spaces", func(t *testing.T) {
		lines := []string{
			"  p<uto eriksson<<anna<maria  ",
			strings.ToLower(td3[1][:22]) + " " + td3[1][22:],
		}
		rec, err := mrz.Decode(lines)
		require.NoError(t, err)
		assert.Equal(t, td3, rec.Lines)
		assert.True(t, rec.Valid())
	})

	t.Run("full-width filler", func(t *testing.T) {
		lines := []string{strings.ReplaceAll(td3[0], "<", "＜"), td3[1]}
		rec, err := mrz.Decode(lines)
		require.NoError(t, err)
		assert.Equal(t, td3[0], rec.Lines[0])
	})

	t.Run("letters in dates are corrected", func(t *testing.T) {
		// 740812 -> 74O8I2, birth date check digit 2 -> z
		noisy := td3[1][:13] + "74O8I2" + "z" + td3[1][20:]
		rec, err := mrz.Decode([]string{td3[0], noisy})
		require.NoError(t, err)

		assert.Equal(t, td3[1], rec.Lines[1])
		assert.Equal(t, "1974-08-12", rec.BirthDate.String())
		assert.True(t, rec.Valid())
		assert.Len(t, rec.Corrections, 3)
		assert.Equal(t, []mrz.Correction{
			{Line: 1, Column: 15, From: "O", To: "0"},
			{Line: 1, Column: 17, From: "I", To: "1"},
			{Line: 1, Column: 19, From: "Z", To: "2"},
		}, rec.Corrections)
	})

	t.Run("names and document number are never corrected", func(t *testing.T) {
		rec, err := mrz.Decode(td3)
		require.NoError(t, err)
		assert.Equal(t, "L898902C3", rec.DocumentNumber)
		assert.Equal(t, "ERIKSSON", rec.Surname)
	})
}

func TestDecode_Idempotent(t *testing.T) {
	first, err := mrz.Decode(td3)
	require.NoError(t, err)
	second, err := mrz.Decode(first.Lines)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestDecode_Concurrent(t *testing.T) {
	want, err := mrz.Decode(td3)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]mrz.Record, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = mrz.Decode(td3)
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func TestDecodeText(t *testing.T) {
	rec, err := mrz.DecodeText("noise\r\n" + td3[0] + "\r\n" + td3[1] + "\n")
	require.NoError(t, err)
	assert.Equal(t, "ERIKSSON", rec.Surname)
}

func TestDecodeSeq(t *testing.T) {
	rec, err := mrz.DecodeSeq(slices.Values(td2))
	require.NoError(t, err)
	assert.Equal(t, mrz.FormatTD2, rec.Format)
}

func TestDecodeAs(t *testing.T) {
	t.Run("matching layout", func(t *testing.T) {
		rec, err := mrz.DecodeAs(mrz.TD3, td3)
		require.NoError(t, err)
		assert.True(t, rec.Valid())
	})

	t.Run("layout mismatch is malformed", func(t *testing.T) {
		_, err := mrz.DecodeAs(mrz.TD3, td1)
		assert.ErrorIs(t, err, mrz.ErrMalformedInput)
	})

	t.Run("too few lines", func(t *testing.T) {
		_, err := mrz.DecodeAs(mrz.TD1, td3)
		assert.ErrorIs(t, err, mrz.ErrMalformedInput)
	})
}

func TestRecord_Fields(t *testing.T) {
	rec, err := mrz.Decode(td3)
	require.NoError(t, err)

	fields := rec.Fields()
	tests := []struct {
		key  string
		want string
	}{
		{mrz.FieldDocumentCode, "P"},
		{mrz.FieldIssuingState, "UTO"},
		{mrz.FieldSurname, "ERIKSSON"},
		{mrz.FieldGivenNames, "ANNA MARIA"},
		{mrz.FieldDocumentNumber, "L898902C3"},
		{mrz.FieldNationality, "UTO"},
		{mrz.FieldBirthDate, "1974-08-12"},
		{mrz.FieldSex, "female"},
		{mrz.FieldExpiryDate, "2012-04-15"},
		{mrz.FieldPersonalNumber, "ZE184226B"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := fields[tt.key]
			require.True(t, ok, "field %q missing", tt.key)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecord_UnparseableDateKeepsRawText(t *testing.T) {
	lines := []string{td3[0], td3[1][:13] + "74<<<<" + td3[1][19:]}

	rec, err := mrz.Decode(lines)
	require.NoError(t, err)

	assert.True(t, rec.BirthDate.IsZero())
	assert.Equal(t, "74<<<<", rec.Fields()[mrz.FieldBirthDate])
	assert.False(t, rec.Validity()[mrz.FieldBirthDate])
}
