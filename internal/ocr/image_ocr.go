package ocr

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/bytelense/constants"
)

var reBarcodeDigits = regexp.MustCompile(`^\d{8,14}$`)

func (e *Extractor) extractImage(ctx context.Context, path string) (ExtractionResult, error) {
	var warn []string
	if IsHEIC(filepath.Ext(path)) {
		png, w, cleanup, err := e.convertHEIC(ctx, path)
		defer cleanup()
		if err != nil {
			return ExtractionResult{SourceType: constants.FormatImage, Warnings: w}, err
		}
		path = png
	}

	txt, ocrWarn, ocrErr := e.tesseractOCR(ctx, path)
	warn = append(warn, ocrWarn...)
	txt = Normalize(txt)

	var barcode string
	if !e.cfg.DisableBarcode {
		code, w, err := e.scanBarcode(ctx, path)
		if err != nil {
			warn = append(warn, err.Error())
		}
		warn = append(warn, w...)
		barcode = code
	}
	res := ExtractionResult{
		Text:       txt,
		Barcode:    barcode,
		SourceType: constants.FormatImage,
		Method:     "image-ocr",
		Language:   e.cfg.TesseractLang,
		Warnings:   warn,
	}
	if ocrErr != nil && barcode == "" {
		return res, ocrErr
	}
	if ocrErr != nil {
		res.Warnings = append(res.Warnings, ocrErr.Error())
	}

	var ocrConf float64
	if e.cfg.EnableTSVConfidence && txt != "" {
		if c, err := e.tesseractTSVConfidence(ctx, path); err == nil {
			ocrConf = c
		} else {
			res.Warnings = append(res.Warnings, err.Error())
		}
	}
	heurConf := heuristicConfidence(txt)

	// blend: weight OCR higher if present
	conf := heurConf
	if ocrConf > 0 {
		conf = 0.7*ocrConf + 0.3*heurConf
	}
	if barcode != "" && conf < 0.5 {
		conf = 0.5
	}
	if conf > 1.0 {
		conf = 1.0
	}
	res.Confidence = conf
	return res, nil
}

func (e *Extractor) tesseractArgs(path string) []string {
	args := []string{path, "stdout", "-l", e.cfg.TesseractLang}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(e.cfg.OEM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	return args
}

func (e *Extractor) tesseractOCR(ctx context.Context, path string) (string, []string, error) {
	// tesseract <file> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, e.tesseractArgs(path)...)
	if err != nil {
		return "", nonEmpty(string(errb)), fmt.Errorf("tesseract: %w", err)
	}
	return string(out), nil, nil
}

// scanBarcode runs zbarimg; exit status 4 means no symbol was found.
func (e *Extractor) scanBarcode(ctx context.Context, path string) (string, []string, error) {
	out, errb, err := e.runner.Run(ctx, e.cfg.Zbarimg, "--raw", "-q", path)
	if err != nil {
		if ctx.Err() != nil {
			return "", nil, fmt.Errorf("zbarimg: %w", ctx.Err())
		}
		e.logger.Debug("no barcode detected", "path", path, "error", err)
		return "", nonEmpty(string(errb)), nil
	}
	for _, ln := range strings.Split(string(out), "\n") {
		ln = strings.TrimSpace(ln)
		if reBarcodeDigits.MatchString(ln) {
			return ln, nil, nil
		}
	}
	return "", nil, nil
}

// tesseractTSVConfidence runs tesseract in TSV mode and returns mean word conf in 0..1.
func (e *Extractor) tesseractTSVConfidence(ctx context.Context, path string) (float64, error) {
	args := append(e.tesseractArgs(path), "tsv")
	out, _, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		return 0, fmt.Errorf("tesseract TSV: %w", err)
	}
	var sum, n float64
	for i, ln := range strings.Split(string(out), "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		confStr := cols[10]
		if confStr == "" || confStr == "-1" {
			continue
		}
		if v, err := strconv.ParseFloat(confStr, 64); err == nil && v >= 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	return sum / n / 100.0, nil
}

func nonEmpty(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return []string{s}
}
