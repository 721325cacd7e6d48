// Package meta derives presentation metadata for file system items from
// their names alone: extension, kind label, previewability and mime type,
// plus human readable size and date strings.
package meta

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/CageChen/finderhub/internal/fs"
)

// PreviewClass groups previewable files by how they are rendered.
type PreviewClass string

const (
	PreviewNone  PreviewClass = "none"
	PreviewText  PreviewClass = "text"
	PreviewImage PreviewClass = "image"
	PreviewPDF   PreviewClass = "pdf"
)

var kinds = map[string]string{
	"txt":  "Text Document",
	"pdf":  "PDF Document",
	"doc":  "Word Document",
	"docx": "Word Document",
	"xls":  "Excel Spreadsheet",
	"xlsx": "Excel Spreadsheet",
	"ppt":  "PowerPoint Presentation",
	"pptx": "PowerPoint Presentation",
	"jpg":  "JPEG Image",
	"jpeg": "JPEG Image",
	"png":  "PNG Image",
	"gif":  "GIF Image",
	"svg":  "SVG Image",
	"webp": "WebP Image",
	"bmp":  "BMP Image",
	"mp4":  "MP4 Video",
	"mov":  "QuickTime Movie",
	"avi":  "AVI Video",
	"mkv":  "MKV Video",
	"webm": "WebM Video",
	"mp3":  "MP3 Audio",
	"wav":  "WAV Audio",
	"flac": "FLAC Audio",
	"aac":  "AAC Audio",
	"m4a":  "M4A Audio",
	"zip":  "ZIP Archive",
	"rar":  "RAR Archive",
	"tar":  "TAR Archive",
	"gz":   "GZIP Archive",
	"7z":   "7-Zip Archive",
	"js":   "JavaScript File",
	"ts":   "TypeScript File",
	"jsx":  "React Component",
	"tsx":  "React TypeScript Component",
	"html": "HTML Document",
	"css":  "CSS Stylesheet",
	"json": "JSON File",
	"md":   "Markdown Document",
	"py":   "Python Script",
	"java": "Java Source",
	"cpp":  "C++ Source",
	"c":    "C Source",
	"sh":   "Shell Script",
	"go":   "Go Source",
	"rs":   "Rust Source",
	"rb":   "Ruby Script",
	"php":  "PHP Script",
}

// previewable is the single allow-list shared by previews and info panels.
var previewable = map[string]PreviewClass{
	"txt": PreviewText, "md": PreviewText, "json": PreviewText, "xml": PreviewText,
	"csv": PreviewText, "log": PreviewText,

	"js": PreviewText, "ts": PreviewText, "jsx": PreviewText, "tsx": PreviewText,
	"html": PreviewText, "css": PreviewText, "scss": PreviewText, "sass": PreviewText,
	"less": PreviewText, "py": PreviewText, "java": PreviewText, "cpp": PreviewText,
	"c": PreviewText, "h": PreviewText, "cs": PreviewText, "php": PreviewText,
	"rb": PreviewText, "go": PreviewText, "rs": PreviewText, "sh": PreviewText,

	"jpg": PreviewImage, "jpeg": PreviewImage, "png": PreviewImage, "gif": PreviewImage,
	"svg": PreviewImage, "webp": PreviewImage, "bmp": PreviewImage,

	"pdf": PreviewPDF,
}

var mimeTypes = map[string]string{
	"txt":  "text/plain",
	"html": "text/html",
	"css":  "text/css",
	"js":   "text/javascript",
	"json": "application/json",
	"xml":  "application/xml",
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"svg":  "image/svg+xml",
	"webp": "image/webp",
	"mp4":  "video/mp4",
	"webm": "video/webm",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
}

// Extension returns the lower-cased text after the last dot in name, or ""
// when name has no dot.
func Extension(name string) string {
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

// Kind returns the human readable type label for item.
func Kind(item fs.Item) string {
	if item.IsDir {
		return "Folder"
	}
	ext := Extension(item.Name)
	if k, ok := kinds[ext]; ok {
		return k
	}
	if ext == "" {
		return "File"
	}
	return strings.ToUpper(ext) + " File"
}

// Classify returns how a file called name would be previewed.
func Classify(name string) PreviewClass {
	if c, ok := previewable[Extension(name)]; ok {
		return c
	}
	return PreviewNone
}

// IsPreviewable reports whether name can be shown in the preview panel.
func IsPreviewable(name string) bool {
	return Classify(name) != PreviewNone
}

// MimeType returns the mime type registered for the extension of name.
func MimeType(name string) string {
	if m, ok := mimeTypes[Extension(name)]; ok {
		return m
	}
	return "application/octet-stream"
}

// DetectMimeType sniffs content, falling back to the extension table when
// the content is not recognised.
func DetectMimeType(name string, content []byte) string {
	m := mimetype.Detect(content)
	if m.Is("application/octet-stream") {
		return MimeType(name)
	}
	return m.String()
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with 1024-based units rounded to two
// decimals. A nil size renders as "--".
func FormatSize(size *int64) string {
	if size == nil {
		return "--"
	}
	bytes := *size
	if bytes <= 0 {
		return "0 Bytes"
	}
	i := 0
	for b := bytes; b >= 1024 && i < len(sizeUnits)-1; b /= 1024 {
		i++
	}
	v := math.Round(float64(bytes)/math.Pow(1024, float64(i))*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}

// FormatDate renders t relative to now: "Today at 3:04 PM", "Yesterday at
// ...", a weekday name within the last week, otherwise "Jan 2, 2006".
// Buckets are whole elapsed days.
func FormatDate(t *time.Time, now time.Time) string {
	if t == nil {
		return "--"
	}
	days := int(math.Floor(now.Sub(*t).Hours() / 24))
	clock := t.Format("3:04 PM")
	switch {
	case days == 0:
		return "Today at " + clock
	case days == 1:
		return "Yesterday at " + clock
	case days > 1 && days < 7:
		return t.Weekday().String() + " at " + clock
	default:
		return t.Format("Jan 2, 2006")
	}
}

// Details bundles the derived fields renderers show next to an item.
type Details struct {
	Kind        string       `json:"kind"`
	Extension   string       `json:"extension"`
	Size        string       `json:"sizeText"`
	Modified    string       `json:"modifiedText"`
	Previewable bool         `json:"previewable"`
	Preview     PreviewClass `json:"previewClass"`
	MimeType    string       `json:"mimeType"`
}

// Describe derives every presentation field for item.
func Describe(item fs.Item, now time.Time) Details {
	d := Details{
		Kind:     Kind(item),
		Size:     FormatSize(item.Size),
		Modified: FormatDate(item.Modified, now),
		Preview:  PreviewNone,
	}
	if !item.IsDir {
		d.Extension = Extension(item.Name)
		d.Preview = Classify(item.Name)
		d.Previewable = d.Preview != PreviewNone
		d.MimeType = MimeType(item.Name)
	}
	return d
}
