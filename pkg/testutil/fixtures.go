package testutil

import "strings"

// ICAO 9303 specimen MRZs. Every check digit in them is valid.
var (
	TD3Lines = []string{
		"P<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<<<<<<<<<",
		"L898902C36UTO7408122F1204159ZE184226B<<<<<10",
	}
	TD2Lines = []string{
		"I<UTOERIKSSON<<ANNA<MARIA<<<<<<<<<<<",
		"D231458907UTO7408122F1204159<<<<<<<6",
	}
	TD1Lines = []string{
		"I<UTOD231458907<<<<<<<<<<<<<<<",
		"7408122F1204159UTO<<<<<<<<<<<6",
		"ERIKSSON<<ANNA<MARIA<<<<<<<<<<",
	}
)

// TD3Text is TD3Lines as an OCR engine would return it, with a header line
// and CRLF endings.
var TD3Text = "PASSPORT\r\n" + strings.Join(TD3Lines, "\r\n") + "\r\n"

// TD3WithBadDocumentNumber is TD3Lines with the document number check digit
// altered from 6 to 7.
var TD3WithBadDocumentNumber = []string{
	TD3Lines[0],
	"L898902C37UTO7408122F1204159ZE184226B<<<<<10",
}

// Minimal headers that pass image sniffing. They are not decodable images.
var (
	PNGHeader  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}
	JPEGHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
)
