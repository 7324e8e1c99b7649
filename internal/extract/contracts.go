package extract

import (
	"context"
	"time"

	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// TextExtractor is stage 1: label file -> raw text and barcode.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (RawText, error)
}

type RawText struct {
	Text       string
	Barcode    string
	SourceType string // constants.FormatImage | constants.FormatText
	Method     string // "image-ocr" | "raw-text"
	Duration   time.Duration
	Warnings   []string
	Confidence float64
}

// Usable reports whether the text or barcode gives later stages anything to work with.
func (r RawText) Usable() bool {
	return r.Text != "" || r.Barcode != ""
}

// Structurer turns raw label text into a partial nutrition record.
// It may fail or report low confidence; callers must tolerate both.
type Structurer interface {
	Extract(ctx context.Context, rawText string) (rec entity.NutritionRecord, confidence float64, missing []string, err error)
}
