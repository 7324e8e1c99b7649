package pipeline

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/bytelense/constants"
	"github.com/joseph-ayodele/bytelense/internal/common"
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// ErrorEvent converts a scan failure into the caller-facing event.
func ErrorEvent(scanID string, err error) entity.ScanErrorEvent {
	var se *common.ScanError
	if errors.As(err, &se) {
		return entity.ScanErrorEvent{
			ScanID:           scanID,
			Code:             string(se.Kind),
			Message:          se.Message,
			Stage:            se.Stage,
			Recoverable:      se.Recoverable,
			RetrySuggestions: append([]string(nil), se.RetrySuggestions...),
		}
	}
	ev := entity.ScanErrorEvent{ScanID: scanID, Message: err.Error()}
	switch {
	case errors.Is(err, context.Canceled):
		ev.Code, ev.Recoverable = "cancelled", true
	case errors.Is(err, common.ErrValidation):
		ev.Code = "invalid_request"
	default:
		ev.Code = "internal_error"
		ev.Recoverable = true
		ev.Stage = constants.StageImageProcessing
	}
	return ev
}
