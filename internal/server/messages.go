package server

import (
	"github.com/joseph-ayodele/bytelense/internal/entity"
)

// ScanRequest is the Scan request message.
type ScanRequest struct {
	ScanID    string  `json:"scan_id,omitempty"`
	User      string  `json:"user"`
	ImagePath string  `json:"image_path,omitempty"`
	RawText   string  `json:"raw_text,omitempty"`
	Barcode   string  `json:"barcode,omitempty"`
	Servings  float64 `json:"servings,omitempty"`
}

// Scan event types, in stream order: any number of progress events, then at
// most one assessment, then at most one error.
const (
	EventProgress   = "progress"
	EventAssessment = "assessment"
	EventError      = "error"
)

// ScanEvent is one message of the Scan stream.
type ScanEvent struct {
	Type       string                     `json:"type"`
	Progress   *entity.Progress           `json:"progress,omitempty"`
	Assessment *entity.DetailedAssessment `json:"assessment,omitempty"`
	Error      *entity.ScanErrorEvent     `json:"error,omitempty"`
}

type DayRequest struct {
	User string `json:"user"`
	Date string `json:"date"`
}

type WeekRequest struct {
	User      string `json:"user"`
	WeekStart string `json:"week_start"`
}

// ExportResponse carries the workbook; bytes travel base64-encoded.
type ExportResponse struct {
	Filename string `json:"filename"`
	XLSX     []byte `json:"xlsx"`
}

type ProfileRequest struct {
	User string `json:"user"`
}

type PutProfileRequest struct {
	User         string               `json:"user"`
	Name         string               `json:"name,omitempty"`
	Allergens    []string             `json:"allergens,omitempty"`
	DailyTargets entity.Nutrients     `json:"daily_targets,omitempty"`
	Goals        entity.Goals         `json:"goals"`
	Demographics *entity.Demographics `json:"demographics,omitempty"`
	Lifestyle    *entity.Lifestyle    `json:"lifestyle,omitempty"`
}
