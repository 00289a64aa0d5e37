package ocr

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mrzscan/mrzscan-backend/pkg/config"
	"github.com/mrzscan/mrzscan-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want MediaType
	}{
		{"jpeg", testutil.JPEGHeader, MediaJPEG},
		{"png", testutil.PNGHeader, MediaPNG},
		{"mrz text", []byte("P<UTOERIKSSON<<ANNA\nL898902C36UTO\n"), MediaText},
		{"binary", []byte{0x00, 0x01, 0x02, 0x03}, MediaUnknown},
		{"invalid utf-8", []byte{0xff, 0xfe, 'a'}, MediaUnknown},
		{"empty", nil, MediaUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sniff(tt.data))
		})
	}

	assert.True(t, MediaPNG.IsImage())
	assert.False(t, MediaText.IsImage())
}

func TestOCRSpace_Text(t *testing.T) {
	var gotKey, gotType, gotFile string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			return
		}
		gotKey = r.FormValue("apikey")
		gotType = r.FormValue("filetype")
		if files := r.MultipartForm.File["file"]; len(files) == 1 {
			gotFile = files[0].Filename
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"ParsedResults":[{"ParsedText":"P<UTOERIKSSON<<ANNA\r\n","FileParseExitCode":1}],"OCRExitCode":1,"IsErroredOnProcessing":false}`)
	}))
	defer server.Close()

	src := NewOCRSpace(server.URL, "K123", time.Second)
	text, err := src.Text(context.Background(), testutil.PNGHeader)

	require.NoError(t, err)
	assert.Equal(t, "P<UTOERIKSSON<<ANNA\r\n", text)
	assert.Equal(t, "K123", gotKey)
	assert.Equal(t, "PNG", gotType)
	assert.Equal(t, "document.png", gotFile)
	assert.Equal(t, "ocrspace", src.Name())
}

func TestOCRSpace_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "processing error list",
			status:  http.StatusOK,
			body:    `{"OCRExitCode":3,"IsErroredOnProcessing":true,"ErrorMessage":["File failed validation"]}`,
			wantMsg: "File failed validation",
		},
		{
			name:    "processing error string",
			status:  http.StatusOK,
			body:    `{"OCRExitCode":4,"IsErroredOnProcessing":true,"ErrorMessage":"Timed out"}`,
			wantMsg: "Timed out",
		},
		{
			name:    "empty text",
			status:  http.StatusOK,
			body:    `{"ParsedResults":[{"ParsedText":"  \r\n"}],"OCRExitCode":1}`,
			wantErr: ErrNoText,
		},
		{
			name:    "no results",
			status:  http.StatusOK,
			body:    `{"OCRExitCode":1}`,
			wantErr: ErrNoText,
		},
		{
			name:    "http failure",
			status:  http.StatusForbidden,
			body:    `The API key is invalid`,
			wantMsg: "403",
		},
		{
			name:    "not json",
			status:  http.StatusOK,
			body:    `<html>`,
			wantMsg: "parse response",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := NewOCRSpace(server.URL, "K123", time.Second).Text(context.Background(), testutil.JPEGHeader)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestOCRSpace_RejectsNonImage(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	_, err := NewOCRSpace(server.URL, "K123", time.Second).Text(context.Background(), []byte("plain text"))

	assert.ErrorIs(t, err, ErrUnsupportedImage)
	assert.False(t, called)
}

func TestOCRSpace_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewOCRSpace(server.URL, "K123", time.Second).Text(ctx, testutil.PNGHeader)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestFromConfig(t *testing.T) {
	sources, closer, err := FromConfig(config.OCRConfig{
		Providers: []string{config.ProviderOCRSpace},
		OCRSpace:  config.OCRSpaceConfig{APIKey: "K123"},
	})
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "ocrspace", sources[0].Name())
	assert.NoError(t, closer.Close())

	_, _, err = FromConfig(config.OCRConfig{Providers: []string{"abbyy"}})
	assert.ErrorContains(t, err, "unknown provider")
}
