package scanning

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// MaxImageSize is the largest upload accepted by the vision providers (20MB).
const MaxImageSize = 20 << 20

var (
	unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	unsafeExtChars  = regexp.MustCompile(`[^a-zA-Z0-9.]`)
	repeatedSpace   = regexp.MustCompile(`\s+`)
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateImage checks an upload before any network call is made.
// Size is checked before type so oversized files are always FileTooLarge.
func ValidateImage(img *Image) error {
	if img == nil || len(img.Data) == 0 {
		return newError(KindNoFileProvided, nil)
	}

	size := img.Size
	if n := int64(len(img.Data)); n > size {
		size = n
	}
	if size > MaxImageSize {
		return newError(KindFileTooLarge, fmt.Errorf("file %q is %d bytes", img.Filename, size))
	}

	mimeType := NormalizeContentType(img.ContentType)
	if !allowedTypes[mimeType] {
		return newError(KindInvalidFileType, fmt.Errorf("content type %q", img.ContentType))
	}
	return nil
}

// NormalizeContentType lowercases a MIME type and drops any parameters.
func NormalizeContentType(contentType string) string {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return mimeType
}

// DetectContentType returns the declared type, or sniffs the data when the
// client did not declare a useful one.
func DetectContentType(declared string, data []byte) string {
	mimeType := NormalizeContentType(declared)
	if mimeType != "" && mimeType != "application/octet-stream" {
		return mimeType
	}
	return NormalizeContentType(mimetype.Detect(data).String())
}

// SanitizeFilename reduces a client-supplied filename to a short, log-safe
// name, keeping the extension. Directory components are dropped.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if filename == "." || filename == "/" {
		filename = ""
	}

	ext := unsafeExtChars.ReplaceAllString(filepath.Ext(filename), "")
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeNameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpace.ReplaceAllString(base, " "))

	// 50 chars for the base, plus extension
	if len(base) > 50 {
		base = base[:50]
	}
	if len(ext) > 10 {
		ext = ext[:10]
	}
	if base == "" {
		base = "receipt"
	}
	return base + ext
}
