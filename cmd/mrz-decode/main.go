// Command mrz-decode decodes the machine readable zone of a travel document.
//
// It reads MRZ text from stdin or -file, or recognises it in a JPEG/PNG
// given with -image. Exit status is 1 when decoding fails and 2 when -strict
// is set and a check digit does not match.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/domain"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/ocr"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/processor"
	"github.com/mrzscan/mrzscan-backend/internal/docprocessing/report"
	"github.com/mrzscan/mrzscan-backend/internal/mrz"
	"github.com/mrzscan/mrzscan-backend/pkg/config"
	"github.com/mrzscan/mrzscan-backend/pkg/i18n"
)

const (
	exitOK       = 0
	exitFailure  = 1
	exitChecksum = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	file      string
	image     string
	apiKey    string
	providers string
	format    string
	jsonOut   bool
	pdf       string
	strict    bool
	lang      string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("mrz-decode", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.file, "file", "", "read MRZ text from `path` instead of stdin")
	fs.StringVar(&o.image, "image", "", "recognise the MRZ in a JPEG or PNG `image`")
	fs.StringVar(&o.apiKey, "api-key", "", "OCR.space API key (default $MRZSCAN_OCR_OCRSPACE_API_KEY)")
	fs.StringVar(&o.providers, "ocr", "", "comma-separated OCR `providers` to try: ocrspace, tesseract")
	fs.StringVar(&o.format, "format", "", "decode as TD1, TD2 or TD3 instead of detecting the layout")
	fs.BoolVar(&o.jsonOut, "json", false, "print the record as JSON")
	fs.StringVar(&o.pdf, "pdf", "", "also write a PDF report to `path`")
	fs.BoolVar(&o.strict, "strict", false, "exit with status 2 when a check digit does not match")
	fs.StringVar(&o.lang, "lang", i18n.LocaleEnglish, "label language: en or de")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if o.file != "" && o.image != "" {
		return nil, errors.New("-file and -image are mutually exclusive")
	}
	return &o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintln(stderr, "mrz-decode:", err)
		return exitFailure
	}

	text, source, err := readText(ctx, o, stdin)
	if err != nil {
		fmt.Fprintln(stderr, "mrz-decode:", err)
		return exitFailure
	}

	rec, err := decode(text, o.format)
	if err != nil {
		fmt.Fprintln(stderr, "mrz-decode:", err)
		return exitFailure
	}

	l := i18n.NewLocalizer(o.lang)
	result := domain.NewExtractionResult("", source, rec)
	result.Warnings = processor.Warnings(rec, "")

	if o.jsonOut {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fmt.Fprintln(stderr, "mrz-decode:", err)
			return exitFailure
		}
	} else {
		printRecord(stdout, rec, l)
	}
	for _, w := range result.Warnings {
		fmt.Fprintln(stderr, "warning:", w.Localize(l))
	}

	if o.pdf != "" {
		if err := writeReport(o.pdf, result, l); err != nil {
			fmt.Fprintln(stderr, "mrz-decode:", err)
			return exitFailure
		}
	}

	if o.strict && !rec.Valid() {
		return exitChecksum
	}
	return exitOK
}

// readText returns the MRZ text and the name of what produced it
func readText(ctx context.Context, o *options, stdin io.Reader) (string, string, error) {
	switch {
	case o.image != "":
		data, err := os.ReadFile(o.image)
		if err != nil {
			return "", "", err
		}
		return recognise(ctx, o, data)
	case o.file != "":
		data, err := os.ReadFile(o.file)
		if err != nil {
			return "", "", err
		}
		return string(data), "mrz", nil
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), "mrz", nil
	}
}

// recognise runs the configured OCR sources over data until one returns text
func recognise(ctx context.Context, o *options, data []byte) (string, string, error) {
	cfg, err := config.LoadDevelopment("mrz-decode")
	if err != nil {
		return "", "", err
	}
	if o.apiKey != "" {
		cfg.OCR.OCRSpace.APIKey = o.apiKey
	}
	if o.providers != "" {
		cfg.OCR.Providers = strings.Split(o.providers, ",")
	}

	sources, closer, err := ocr.FromConfig(cfg.OCR)
	if err != nil {
		return "", "", err
	}
	defer closer.Close()

	if len(sources) == 0 {
		return "", "", errors.New("no OCR provider configured")
	}

	var errs []error
	for _, src := range sources {
		text, err := src.Text(ctx, data)
		if err == nil {
			return text, "mrz+" + src.Name(), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", src.Name(), err))
	}
	return "", "", errors.Join(errs...)
}

func decode(text, format string) (mrz.Record, error) {
	if format == "" {
		return mrz.DecodeText(text)
	}
	f, ok := mrz.FormatByID(mrz.FormatID(strings.ToUpper(format)))
	if !ok {
		return mrz.Record{}, fmt.Errorf("unknown format %q", format)
	}
	return mrz.DecodeAs(f, mrz.SplitLines(text))
}

// printRecord writes one "Label: value" line per decoded field, marking
// fields whose check digit did not match.
func printRecord(w io.Writer, rec mrz.Record, l *i18n.Localizer) {
	values := rec.Fields()
	validity := rec.Validity()

	for _, f := range rec.DecodedFields() {
		v := values[f.Name]
		valid, checked := validity[f.Name]
		if v == "" && !checked {
			continue
		}
		line := fmt.Sprintf("%s: %s", l.T("fields."+f.Name), v)
		if checked && !valid {
			line += " (" + l.T("report.invalid") + ")"
		}
		fmt.Fprintln(w, line)
	}
	if valid, ok := validity[mrz.FieldComposite]; ok {
		state := l.T("report.valid")
		if !valid {
			state = l.T("report.invalid")
		}
		fmt.Fprintf(w, "%s: %s\n", l.T("fields."+mrz.FieldComposite), state)
	}
}

func writeReport(path string, result *domain.ExtractionResult, l *i18n.Localizer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.NewRenderer().Render(f, result, l); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
