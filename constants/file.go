package constants

import "strings"

// AllowedExtensions holds the upload extensions the pipeline accepts.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// ExportExtension is the only extension served by the download endpoint.
const ExportExtension = "xlsx"

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// IsAllowedUpload reports whether filename carries an accepted extension.
func IsAllowedUpload(filename string) bool {
	i := strings.LastIndex(filename, ".")
	if i < 0 {
		return false
	}
	_, ok := AllowedExtensions[NormalizeExt(filename[i:])]
	return ok
}
