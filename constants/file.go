package constants

import "strings"

// Document formats understood by the text extractor.
const (
	PDF   = "PDF"
	WORD  = "WORD"
	IMAGE = "IMAGE"
)

// AllowedExtensions holds the file extensions accepted for résumé ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"doc":  {},
	"docx": {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
}

// AllowedMediaTypes holds the declared media types accepted on upload.
var AllowedMediaTypes = map[string]struct{}{
	"application/pdf":    {},
	"application/msword": {},
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": {},
	"image/jpeg": {},
	"image/jpg":  {},
	"image/png":  {},
}

var extToMediaType = map[string]string{
	"pdf":  "application/pdf",
	"doc":  "application/msword",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without dot) is accepted.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}

// MediaTypeForExt returns the canonical media type for an extension, or "".
func MediaTypeForExt(ext string) string {
	return extToMediaType[NormalizeExt(ext)]
}

// MapExtToFormat maps an extension to PDF, WORD or IMAGE; "" when unsupported.
func MapExtToFormat(ext string) string {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "doc", "docx":
		return WORD
	case "jpg", "jpeg", "png":
		return IMAGE
	}
	return ""
}

// MapMediaTypeToFormat maps a declared media type to a format; "" when unsupported.
func MapMediaTypeToFormat(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if _, ok := AllowedMediaTypes[mt]; !ok {
		return ""
	}
	switch {
	case mt == "application/pdf":
		return PDF
	case strings.HasPrefix(mt, "image/"):
		return IMAGE
	default:
		return WORD
	}
}
