package classifier

import (
	"path/filepath"
	"strings"
)

// formatMIME maps each format to its canonical MIME type.
var formatMIME = map[Format]string{
	FormatPDF:  "application/pdf",
	FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	FormatPPTX: "application/vnd.openxmlformats-officedocument.presentationml.presentation",

	FormatZIP:  "application/zip",
	FormatGZIP: "application/gzip",
	FormatTAR:  "application/x-tar",
	FormatRAR:  "application/x-rar-compressed",
	Format7Z:   "application/x-7z-compressed",

	FormatJPEG: "image/jpeg",
	FormatPNG:  "image/png",
	FormatGIF:  "image/gif",
	FormatWebP: "image/webp",
	FormatBMP:  "image/bmp",
	FormatTIFF: "image/tiff",

	FormatMP3:  "audio/mpeg",
	FormatWAV:  "audio/wav",
	FormatFLAC: "audio/flac",
	FormatOGG:  "audio/ogg",

	FormatMP4:  "video/mp4",
	FormatWebM: "video/webm",
	FormatAVI:  "video/x-msvideo",

	FormatText: "text/plain",
	FormatJSON: "application/json",
	FormatXML:  "application/xml",
	FormatHTML: "text/html",
	FormatCSV:  "text/csv",

	FormatPE:     "application/x-msdownload",
	FormatELF:    "application/x-executable",
	FormatMachO:  "application/x-mach-binary",
	FormatScript: "text/x-script",
}

// formatExtensions maps each format to the extensions it may legitimately
// carry. Extensions include the dot and are lowercase.
var formatExtensions = map[Format][]string{
	FormatPDF:  {".pdf"},
	FormatDOCX: {".docx"},
	FormatXLSX: {".xlsx"},
	FormatPPTX: {".pptx"},

	FormatZIP:  {".zip"},
	FormatGZIP: {".gz", ".tgz"},
	FormatTAR:  {".tar"},
	FormatRAR:  {".rar"},
	Format7Z:   {".7z"},

	FormatJPEG: {".jpg", ".jpeg"},
	FormatPNG:  {".png"},
	FormatGIF:  {".gif"},
	FormatWebP: {".webp"},
	FormatBMP:  {".bmp"},
	FormatTIFF: {".tif", ".tiff"},

	FormatMP3:  {".mp3"},
	FormatWAV:  {".wav"},
	FormatFLAC: {".flac"},
	FormatOGG:  {".ogg", ".oga"},

	FormatMP4:  {".mp4", ".m4a", ".m4v", ".mov"},
	FormatWebM: {".webm", ".mkv"},
	FormatAVI:  {".avi"},

	FormatText: {".txt", ".log", ".md"},
	FormatJSON: {".json"},
	FormatXML:  {".xml"},
	FormatHTML: {".html", ".htm"},
	FormatCSV:  {".csv"},
}

// Extensions returns the extensions a format may legitimately carry.
func (f Format) Extensions() []string {
	return formatExtensions[f]
}

// FormatForExtension returns the format a claimed extension suggests, or
// FormatUnknown when the extension is not in the table. The extension must
// include the dot; matching is case-insensitive.
func FormatForExtension(ext string) Format {
	ext = strings.ToLower(ext)
	for format, exts := range formatExtensions {
		for _, e := range exts {
			if e == ext {
				return format
			}
		}
	}
	return FormatUnknown
}

// extensionMatches reports whether the claimed filename's extension is
// consistent with the detected format. A filename without an extension, or
// an unknown format, never matches.
func extensionMatches(claimedName string, format Format) bool {
	if format == FormatUnknown {
		return false
	}
	ext := strings.ToLower(filepath.Ext(claimedName))
	if ext == "" {
		return false
	}
	for _, e := range formatExtensions[format] {
		if e == ext {
			return true
		}
	}
	// The OOXML variants share ZIP framing and lead with the same
	// [Content_Types].xml part, so detection inside the prefix window often
	// cannot tell them apart. Any office extension is accepted for any
	// office format; the disarm strategy is the same for all three.
	if format.IsOOXML() {
		switch ext {
		case ".docx", ".xlsx", ".pptx":
			return true
		}
	}
	return false
}
