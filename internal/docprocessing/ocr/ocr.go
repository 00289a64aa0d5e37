// Package ocr turns document images into raw text for the MRZ decoder.
//
// Two sources exist: the OCR.space HTTP API and a local Tesseract engine.
// Tesseract needs cgo and the tesseract libraries, so it is only compiled
// with the "ocr" build tag; without it NewTesseract returns ErrOCRNotEnabled.
package ocr

import (
	"bytes"
	"context"
	"errors"
	"unicode"
	"unicode/utf8"
)

var (
	// ErrOCRNotEnabled is returned by NewTesseract in builds without the ocr tag.
	ErrOCRNotEnabled = errors.New("ocr: tesseract support not compiled in (build with -tags ocr)")
	// ErrNoText is returned when a source recognised nothing.
	ErrNoText = errors.New("ocr: no text recognised")
	// ErrUnsupportedImage is returned for data that is neither JPEG nor PNG.
	ErrUnsupportedImage = errors.New("ocr: data is not a JPEG or PNG image")
)

// TextSource extracts text from an image.
type TextSource interface {
	// Name identifies the source in logs and audit rows
	Name() string
	// Text returns the recognised text. It must not retain image.
	Text(ctx context.Context, image []byte) (string, error)
}

// MediaType is the sniffed kind of an upload
type MediaType string

const (
	MediaJPEG    MediaType = "image/jpeg"
	MediaPNG     MediaType = "image/png"
	MediaText    MediaType = "text/plain"
	MediaUnknown MediaType = "application/octet-stream"
)

// IsImage reports whether m needs OCR before decoding
func (m MediaType) IsImage() bool {
	return m == MediaJPEG || m == MediaPNG
}

// JPEG and PNG magic bytes for image detection
var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47}
)

// Sniff classifies data by its magic bytes. Data without a known image
// header is treated as text when it is valid UTF-8 made only of printable
// characters and whitespace.
func Sniff(data []byte) MediaType {
	switch {
	case bytes.HasPrefix(data, jpegMagic):
		return MediaJPEG
	case bytes.HasPrefix(data, pngMagic):
		return MediaPNG
	case isText(data):
		return MediaText
	default:
		return MediaUnknown
	}
}

func isText(data []byte) bool {
	if len(data) == 0 || !utf8.Valid(data) {
		return false
	}
	for _, r := range string(data) {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return false
		}
	}
	return true
}

// fileType is the extension OCR.space expects for a sniffed image
func fileType(m MediaType) string {
	switch m {
	case MediaJPEG:
		return "JPG"
	case MediaPNG:
		return "PNG"
	}
	return ""
}
