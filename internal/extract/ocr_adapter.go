package extract

import (
	"context"
	"log/slog"

	"github.com/joseph-ayodele/bytelense/internal/ocr"
)

type OCRAdapter struct {
	e      *ocr.Extractor
	logger *slog.Logger
}

func NewOCRAdapter(e *ocr.Extractor, logger *slog.Logger) *OCRAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &OCRAdapter{e: e, logger: logger}
}

func (a *OCRAdapter) Extract(ctx context.Context, path string) (RawText, error) {
	r, err := a.e.Extract(ctx, path)
	out := RawText{
		Text:       r.Text,
		Barcode:    r.Barcode,
		SourceType: r.SourceType,
		Method:     r.Method,
		Duration:   r.Duration,
		Warnings:   r.Warnings,
		Confidence: r.Confidence,
	}
	if err == nil {
		a.logger.Debug("extract.ocr.done",
			"path", path,
			"text_len", len(out.Text),
			"barcode", out.Barcode != "",
			"confidence", out.Confidence,
			"duration_ms", out.Duration.Milliseconds(),
		)
	}
	return out, err
}
