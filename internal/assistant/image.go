package assistant

import (
	"net/http"
	"path/filepath"
	"strings"
)

// AllowedExtensions lists the accepted image file extensions.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "webp"}

var allowedMIME = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/webp": true,
}

// ValidateImage checks the file name extension (when a name is given) and the
// sniffed content type, and returns the detected MIME type.
func ValidateImage(filename string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", invalid("image", "no image provided")
	}
	if filename != "" && !allowedExtension(filename) {
		return "", invalid("image", "unsupported file type %q, allowed: %s",
			filepath.Ext(filename), strings.Join(AllowedExtensions, ", "))
	}

	mime := http.DetectContentType(data)
	if !allowedMIME[mime] {
		return "", invalid("image", "content is not a supported image (detected %s)", mime)
	}
	return mime, nil
}

func allowedExtension(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}
