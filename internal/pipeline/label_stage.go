package pipeline

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/extract"
	"github.com/joseph-ayodele/bytelense/internal/ocr"
)

var errNothingRead = errors.New("no text or barcode found on the label")

// readLabel produces the raw label text. Nothing usable is the one fatal outcome.
func (o *Orchestrator) readLabel(s *scan, logger *slog.Logger) common.Outcome[extract.RawText] {
	var (
		raw extract.RawText
		err error
	)
	switch {
	case strings.TrimSpace(s.req.RawText) != "":
		raw = extract.RawText{
			Text:       ocr.Normalize(s.req.RawText),
			SourceType: constants.FormatText,
			Method:     "raw-text",
		}
	case s.req.ImagePath != "" && o.Extractor != nil:
		raw, err = o.Extractor.Extract(s.run, s.req.ImagePath)
	case s.req.ImagePath != "":
		err = errors.New("no text extractor configured")
	}
	if raw.Barcode == "" {
		raw.Barcode = strings.TrimSpace(s.req.BarcodeHint)
	}

	if !raw.Usable() {
		if err == nil {
			err = errNothingRead
		}
		logger.Warn("pipeline.label.unusable", "error", err)
		return common.Degraded(raw, 0, common.KindExtractionFailure, err)
	}
	if err != nil {
		logger.Warn("pipeline.label.partial", "error", err)
	}
	for _, w := range raw.Warnings {
		logger.Debug("pipeline.label.warning", "warning", w)
	}
	logger.Info("pipeline.label.ok",
		"method", raw.Method,
		"text_len", len(raw.Text),
		"barcode", raw.Barcode != "",
		"confidence", raw.Confidence,
	)
	return common.OK(raw, raw.Confidence)
}

// structure turns raw text into a partial record. Failure degrades to an
// empty record that keeps the barcode.
func (o *Orchestrator) structure(s *scan, raw extract.RawText, logger *slog.Logger) common.Outcome[entity.NutritionRecord] {
	base := entity.NutritionRecord{Barcode: raw.Barcode, ExtractionMethod: constants.MethodOCR}
	if raw.Text == "" {
		base.Confidence = raw.Confidence
		return common.OK(base, base.Confidence)
	}
	if o.Structurer == nil {
		s.degrade(common.KindExternalServiceError, constants.StageImageProcessing, "no text structurer configured")
		return common.Degraded(base, 0, common.KindExternalServiceError, extract.ErrNoStructurer)
	}

	ctx, cancel := o.stageContext(s, o.cfg.StructureTimeout)
	defer cancel()
	rec, conf, missing, err := o.Structurer.Extract(ctx, raw.Text)
	if err != nil {
		kind := common.KindExternalServiceError
		if common.IsTimeout(err) {
			kind = common.KindExternalServiceTimeout
		}
		logger.Warn("pipeline.structure.failed", "error", err)
		s.degrade(kind, constants.StageImageProcessing, "label structuring failed: "+describe(err))
		return common.Degraded(base, 0, kind, err)
	}
	if rec.Barcode == "" {
		rec.Barcode = raw.Barcode
	}
	rec.Confidence = conf
	logger.Info("pipeline.structure.ok", "method", rec.ExtractionMethod, "confidence", conf, "missing", missing)
	return common.OK(rec, conf)
}
