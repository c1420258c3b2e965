package types

import (
	"path"
	"strings"
)

var extensionTypes = map[string]FileType{}

func init() {
	register := func(t FileType, exts ...string) {
		for _, ext := range exts {
			extensionTypes[ext] = t
		}
	}
	register(FileTypeDocument,
		"pdf", "doc", "docx", "txt", "xls", "xlsx", "csv", "rtf", "ods",
		"ppt", "pptx", "odt", "odp", "md", "html", "htm", "epub")
	register(FileTypeImage,
		"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp", "heic", "tiff", "ico")
	register(FileTypeVideo,
		"mp4", "avi", "mov", "mkv", "webm", "wmv", "flv", "m4v", "3gp", "mpeg")
	register(FileTypeAudio,
		"mp3", "wav", "ogg", "flac", "aac", "m4a", "wma", "opus")
}

// FileTypeFromName classifies a file name by its extension. Names without a
// recognized extension classify as other.
func FileTypeFromName(name string) FileType {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(name), "."))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	return FileTypeOther
}

// NormalizeFileName produces the canonical on-disk name: the base name with
// spaces replaced by underscores. Path separators never survive
// normalization, so the result is safe to join under an owner directory.
func NormalizeFileName(name string) string {
	name = strings.TrimSpace(name)
	name = name[strings.LastIndexAny(name, `/\`)+1:]
	name = strings.ReplaceAll(name, " ", "_")
	if name == "." || name == ".." {
		return ""
	}
	return name
}

// FileURL derives the retrieval path for a stored file from its owner id and
// normalized name. It must be recomputed whenever the name changes.
func FileURL(owner, name string) string {
	return "/uploads/" + owner + "/" + name
}
