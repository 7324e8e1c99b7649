package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/bytelense/constants"
)

type Config struct {
	Tesseract string // binary name or absolute path; if empty -> "tesseract"
	Zbarimg   string // binary name or absolute path; if empty -> "zbarimg"

	TesseractLang string // default "eng"
	TessdataDir   string

	EnableTSVConfidence bool
	DisableBarcode      bool

	PSM int // e.g., 6 is good for uniform block of text
	OEM int // 1 = LSTM; leave 0 to use default

	HeicConverter    string // "magick" (default) | "heif-convert" | "sips"
	ArtifactCacheDir string // reuse converted HEIC photos across scans when set
}

type ExtractionResult struct {
	Text       string
	Barcode    string
	SourceType string // constants.FormatImage | constants.FormatText
	Method     string // "image-ocr" | "raw-text"
	Language   string
	Duration   time.Duration
	Warnings   []string
	Confidence float64
}

// Usable reports whether anything downstream stages can work with was read.
func (r ExtractionResult) Usable() bool {
	return r.Text != "" || r.Barcode != ""
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

type Option func(*Extractor)

// WithRunner swaps the command runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(e *Extractor) { e.runner = r }
}

func NewExtractor(cfg Config, logger *slog.Logger, opts ...Option) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.Zbarimg == "" {
		cfg.Zbarimg = "zbarimg"
	}
	if cfg.TesseractLang == "" {
		cfg.TesseractLang = "eng"
	}
	e := &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Extract picks a strategy based on file extension.
func (e *Extractor) Extract(ctx context.Context, path string) (ExtractionResult, error) {
	start := time.Now()
	ext := constants.NormalizeExt(filepath.Ext(path))
	e.logger.Debug("starting ocr extraction", "path", path, "ext", ext)
	switch constants.MapExtToFormat(ext) {
	case constants.FormatText:
		res, err := e.extractRawText(path)
		res.Duration = time.Since(start)
		return res, err
	case constants.FormatImage:
		res, err := e.extractImage(ctx, path)
		res.Duration = time.Since(start)
		return res, err
	default:
		e.logger.Error("unsupported ocr extension", "extension", ext)
		return ExtractionResult{}, fmt.Errorf("unsupported extension: %q", ext)
	}
}

func (e *Extractor) extractRawText(path string) (ExtractionResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ExtractionResult{SourceType: constants.FormatText}, fmt.Errorf("read %s: %w", path, err)
	}
	txt := Normalize(string(b))
	return ExtractionResult{
		Text:       txt,
		SourceType: constants.FormatText,
		Method:     "raw-text",
		Confidence: heuristicConfidence(txt),
	}, nil
}
