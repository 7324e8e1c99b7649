package constants

import "strings"

// AllowedExtensions holds the label image and raw-text extensions accepted by batch scans.
var AllowedExtensions = map[string]struct{}{
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"webp": {},
	"heic": {},
	"heif": {},
	"txt":  {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsRawTextExt reports whether the file carries already-extracted label text.
func IsRawTextExt(ext string) bool {
	return NormalizeExt(ext) == "txt"
}

// Input formats understood by the text extractor.
const (
	FormatImage = "IMAGE"
	FormatText  = "TEXT"
)

// MapExtToFormat returns the input format for an extension, or "" when unsupported.
func MapExtToFormat(ext string) string {
	ext = NormalizeExt(ext)
	if _, ok := AllowedExtensions[ext]; !ok {
		return ""
	}
	if IsRawTextExt(ext) {
		return FormatText
	}
	return FormatImage
}
