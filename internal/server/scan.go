package server

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
	"github.com/joseph-ayodele/bytelense/internal/pipeline"
)

// Scan runs the pipeline and streams its progress. A pipeline failure is
// reported as an error event; the stream itself only fails for bad requests,
// cancellation, or a broken transport. Closing the stream cancels the scan.
func (s *ScanServer) Scan(ctx context.Context, req ScanRequest, send func(ScanEvent) error) error {
	var sendErr error
	progress := func(p entity.Progress) {
		if sendErr != nil {
			return
		}
		sendErr = send(ScanEvent{Type: EventProgress, Progress: &p})
	}

	s.logger.Info("scan.request", "user", req.User, "image", req.ImagePath, "barcode", req.Barcode)
	a, err := s.scanner.Scan(ctx, pipeline.Request{
		ScanID:      req.ScanID,
		User:        req.User,
		ImagePath:   req.ImagePath,
		RawText:     req.RawText,
		BarcodeHint: req.Barcode,
		Servings:    req.Servings,
	}, progress)
	if sendErr != nil {
		s.logger.Warn("scan.stream.broken", "user", req.User, "error", sendErr)
		return sendErr
	}

	var se *common.ScanError
	switch {
	case err == nil:
		return send(ScanEvent{Type: EventAssessment, Assessment: &a})
	case errors.As(err, &se):
		if a.ScanID != "" {
			if err := send(ScanEvent{Type: EventAssessment, Assessment: &a}); err != nil {
				return err
			}
		}
		ev := pipeline.ErrorEvent(a.ScanID, err)
		s.logger.Warn("scan.failed", "user", req.User, "code", ev.Code, "stage", ev.Stage)
		return send(ScanEvent{Type: EventError, Error: &ev})
	default:
		s.logger.Warn("scan.rejected", "user", req.User, "error", err)
		return err
	}
}
