package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// IsHEIC reports whether the extension is a HEIC/HEIF photo, the default
// format of most phone cameras.
func IsHEIC(ext string) bool {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	return ext == "heic" || ext == "heif"
}

// convertHEIC converts a HEIC/HEIF photo to PNG so tesseract and zbarimg can
// read it. With an artifact cache dir the PNG is kept at {cache}/{sha256}.png
// and reused; otherwise it lives in a temp dir removed by cleanup.
func (e *Extractor) convertHEIC(ctx context.Context, in string) (string, []string, func(), error) {
	noop := func() {}

	var cached string
	if e.cfg.ArtifactCacheDir != "" {
		sum, err := fileSHA256(in)
		if err != nil {
			return "", nil, noop, err
		}
		cached = filepath.Join(e.cfg.ArtifactCacheDir, sum+".png")
		if st, err := os.Stat(cached); err == nil && !st.IsDir() {
			e.logger.Debug("using cached heic->png", "cache", cached)
			return cached, nil, noop, nil
		}
		if err := os.MkdirAll(e.cfg.ArtifactCacheDir, 0o755); err != nil {
			return "", nil, noop, err
		}
	}

	tmpDir, err := os.MkdirTemp("", "bytelense-heic-*")
	if err != nil {
		return "", nil, noop, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "label.png")

	var errb []byte
	switch e.cfg.HeicConverter {
	case "heif-convert":
		_, errb, err = e.runner.Run(ctx, "heif-convert", in, out)
	case "magick", "":
		_, errb, err = e.runner.Run(ctx, "magick", in, out)
	case "sips":
		_, errb, err = e.runner.Run(ctx, "sips", "-s", "format", "png", in, "--out", out)
	default:
		cleanup()
		return "", nil, noop, fmt.Errorf("HEIC not supported: set HEIC_CONVERTER to one of: heif-convert | magick | sips")
	}
	if err != nil {
		cleanup()
		return "", nonEmpty(string(errb)), noop, fmt.Errorf("%s convert failed: %w", e.converterName(), err)
	}
	if _, statErr := os.Stat(out); statErr != nil {
		cleanup()
		return "", nil, noop, fmt.Errorf("HEIC conversion produced no output: %v", statErr)
	}

	if cached == "" {
		return out, nil, cleanup, nil
	}
	defer cleanup()
	if err := os.Rename(out, cached); err != nil {
		// cross-device temp dir
		if err := copyFile(out, cached); err != nil {
			return "", nil, noop, err
		}
	}
	e.logger.Debug("cached heic->png", "cache", cached)
	return cached, nil, noop, nil
}

func (e *Extractor) converterName() string {
	if e.cfg.HeicConverter == "" {
		return "magick"
	}
	return e.cfg.HeicConverter
}

func fileSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
