package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/mrz"
	"github.com/mrzscan/mrzscan-backend/pkg/i18n"
	"github.com/mrzscan/mrzscan-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainRenderer() *Renderer {
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return &Renderer{compress: false, now: func() time.Time { return fixed }}
}

func decoded(t *testing.T, lines []string) *domain.ExtractionResult {
	t.Helper()
	rec, err := mrz.Decode(lines)
	require.NoError(t, err)
	return domain.NewExtractionResult(domain.DocumentTypePassport, "mrz", rec)
}

func TestRender(t *testing.T) {
	out, err := plainRenderer().RenderBytes(decoded(t, testutil.TD3Lines), i18n.NewLocalizer(i18n.LocaleEnglish))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	for _, want := range []string{
		"(Extracted Information)",
		"(Document number)",
		"(L898902C3)",
		"(ERIKSSON)",
		"(1974-08-12)",
		"(valid)",
		"(Composite)",
		"(" + testutil.TD3Lines[1] + ")",
	} {
		assert.Contains(t, string(out), want)
	}
	assert.NotContains(t, string(out), "(invalid)")
}

func TestRender_InvalidCheckAndWarnings(t *testing.T) {
	result := decoded(t, testutil.TD3WithBadDocumentNumber)
	result.Warnings = []domain.Warning{domain.NewWarning("mrz.checksum_mismatch", nil)}

	out, err := plainRenderer().RenderBytes(result, i18n.NewLocalizer(i18n.LocaleEnglish))
	require.NoError(t, err)

	assert.Contains(t, string(out), "(invalid)")
	assert.Contains(t, string(out), "(document data may be unreliable)")
}

func TestRender_German(t *testing.T) {
	out, err := plainRenderer().RenderBytes(decoded(t, testutil.TD3Lines), i18n.NewLocalizer(i18n.LocaleGerman))
	require.NoError(t, err)

	assert.Contains(t, string(out), "(Extrahierte Informationen)")
	assert.Contains(t, string(out), "(Dokumentnummer)")
}

func TestRender_Compressed(t *testing.T) {
	out, err := NewRenderer().RenderBytes(decoded(t, testutil.TD3Lines), i18n.NewLocalizer(i18n.LocaleEnglish))
	require.NoError(t, err)

	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.NotContains(t, string(out), "(Extracted Information)")
}

func TestRows(t *testing.T) {
	rec, err := mrz.Decode(testutil.TD3Lines)
	require.NoError(t, err)

	got := rows(rec)
	require.NotEmpty(t, got)

	names := make([]string, len(got))
	for i, r := range got {
		names[i] = r.name
	}
	assert.Equal(t, []string{
		mrz.FieldDocumentCode,
		mrz.FieldIssuingState,
		mrz.FieldSurname,
		mrz.FieldGivenNames,
		mrz.FieldDocumentNumber,
		mrz.FieldNationality,
		mrz.FieldBirthDate,
		mrz.FieldSex,
		mrz.FieldExpiryDate,
		mrz.FieldPersonalNumber,
		mrz.FieldComposite,
	}, names)
	assert.True(t, got[len(got)-1].checked)
}
