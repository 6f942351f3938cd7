// Package classifier determines the true content type of a file from its
// leading bytes, independent of the claimed extension or MIME type.
package classifier

import (
	"bytes"
	"net/http"
	"path/filepath"
	"strings"
)

// Format is a canonical content format identifier. The set is closed:
// downstream strategy dispatch switches over it exhaustively, and adding a
// format is a reviewed change, not a runtime extension point.
type Format string

const (
	// Documents
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
	FormatPPTX Format = "pptx"

	// Containers
	FormatZIP  Format = "zip"
	FormatGZIP Format = "gzip"
	FormatTAR  Format = "tar"
	FormatRAR  Format = "rar"
	Format7Z   Format = "7z"

	// Images
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
	FormatGIF  Format = "gif"
	FormatWebP Format = "webp"
	FormatBMP  Format = "bmp"
	FormatTIFF Format = "tiff"

	// Audio
	FormatMP3  Format = "mp3"
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
	FormatOGG  Format = "ogg"

	// Video
	FormatMP4  Format = "mp4"
	FormatWebM Format = "webm"
	FormatAVI  Format = "avi"

	// Text
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatHTML Format = "html"
	FormatCSV  Format = "csv"

	// Executables (classified so they can be blocked, never admitted)
	FormatPE     Format = "pe"
	FormatELF    Format = "elf"
	FormatMachO  Format = "macho"
	FormatScript Format = "script"

	// FormatUnknown means no signature matched. Unknown structure cannot be
	// safely disarmed, so it always blocks downstream.
	FormatUnknown Format = "unknown"
)

// Classification is the immutable result of classifying one candidate.
type Classification struct {
	// Format is the detected content format.
	Format Format

	// MIME is the canonical MIME type for the detected format.
	MIME string

	// Confidence is a bounded score in [0, 1]: 1.0 for a direct magic match,
	// lower for heuristic fallbacks, 0 for unknown.
	Confidence float64

	// ExtensionMatch reports whether the claimed extension is consistent
	// with the detected format.
	ExtensionMatch bool
}

// signature defines a file format signature.
type signature struct {
	format Format
	offset int    // offset from start of file
	magic  []byte // magic bytes to match
}

// signatures contains format signatures for classification.
// Ordered by specificity (most specific first).
var signatures = []signature{
	// Images
	{format: FormatJPEG, offset: 0, magic: []byte{0xFF, 0xD8, 0xFF}},
	{format: FormatPNG, offset: 0, magic: []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}},
	{format: FormatGIF, offset: 0, magic: []byte("GIF87a")},
	{format: FormatGIF, offset: 0, magic: []byte("GIF89a")},
	{format: FormatWebP, offset: 8, magic: []byte("WEBP")}, // after RIFF header
	{format: FormatBMP, offset: 0, magic: []byte("BM")},
	{format: FormatTIFF, offset: 0, magic: []byte{0x49, 0x49, 0x2A, 0x00}}, // little endian
	{format: FormatTIFF, offset: 0, magic: []byte{0x4D, 0x4D, 0x00, 0x2A}}, // big endian

	// Documents
	{format: FormatPDF, offset: 0, magic: []byte("%PDF-")},

	// Archives - ZIP-based
	// Office docs (DOCX, XLSX, PPTX) also use ZIP framing; detected as
	// generic ZIP first, then refined in refine().
	{format: FormatZIP, offset: 0, magic: []byte{0x50, 0x4B, 0x03, 0x04}},
	{format: FormatZIP, offset: 0, magic: []byte{0x50, 0x4B, 0x05, 0x06}}, // empty ZIP
	{format: FormatZIP, offset: 0, magic: []byte{0x50, 0x4B, 0x07, 0x08}}, // spanned ZIP

	// Archives - other
	{format: FormatGZIP, offset: 0, magic: []byte{0x1F, 0x8B}},
	{format: FormatTAR, offset: 257, magic: []byte("ustar")}, // POSIX tar
	{format: FormatRAR, offset: 0, magic: []byte("Rar!\x1a\x07\x00")},
	{format: FormatRAR, offset: 0, magic: []byte("Rar!\x1a\x07\x01\x00")}, // RAR5
	{format: Format7Z, offset: 0, magic: []byte{'7', 'z', 0xBC, 0xAF, 0x27, 0x1C}},

	// Audio
	{format: FormatMP3, offset: 0, magic: []byte("ID3")},      // MP3 with ID3
	{format: FormatMP3, offset: 0, magic: []byte{0xFF, 0xFB}}, // MP3 frame sync
	{format: FormatMP3, offset: 0, magic: []byte{0xFF, 0xFA}}, // MP3 frame sync
	{format: FormatFLAC, offset: 0, magic: []byte("fLaC")},
	{format: FormatOGG, offset: 0, magic: []byte("OggS")},
	{format: FormatWAV, offset: 0, magic: []byte("RIFF")}, // WAVE checked at offset 8

	// Video
	{format: FormatWebM, offset: 0, magic: []byte{0x1A, 0x45, 0xDF, 0xA3}}, // EBML
	{format: FormatMP4, offset: 4, magic: []byte("ftyp")},
	{format: FormatAVI, offset: 0, magic: []byte("RIFF")}, // AVI checked at offset 8

	// Text/data (harder to detect; fallback handles the rest)
	{format: FormatJSON, offset: 0, magic: []byte("{")},
	{format: FormatJSON, offset: 0, magic: []byte("[")},
	{format: FormatXML, offset: 0, magic: []byte("<?xml")},
	{format: FormatHTML, offset: 0, magic: []byte("<!DOCTYPE html")},
	{format: FormatHTML, offset: 0, magic: []byte("<!doctype html")},
	{format: FormatHTML, offset: 0, magic: []byte("<html")},

	// Executables
	{format: FormatPE, offset: 0, magic: []byte("MZ")},
	{format: FormatMachO, offset: 0, magic: []byte{0xCF, 0xFA, 0xED, 0xFE}}, // 64-bit
	{format: FormatMachO, offset: 0, magic: []byte{0xCE, 0xFA, 0xED, 0xFE}}, // 32-bit
	{format: FormatELF, offset: 0, magic: []byte{0x7F, 'E', 'L', 'F'}},
	{format: FormatScript, offset: 0, magic: []byte("#!")},
}

// PrefixSize is the number of leading bytes Classify needs. Larger prefixes
// are fine; the classifier never reads past this window.
const PrefixSize = 512

// Classify detects the content format from a bounded leading window of the
// file and compares it against the claimed filename's extension. The
// caller-declared MIME type is never consulted.
func Classify(prefix []byte, claimedName string) Classification {
	format, confidence := detect(prefix)

	// CSV has no magic of its own; a plain-text file claiming .csv is
	// taken at its word.
	if format == FormatText && strings.ToLower(filepath.Ext(claimedName)) == ".csv" {
		format = FormatCSV
	}

	return Classification{
		Format:         format,
		MIME:           format.MIME(),
		Confidence:     confidence,
		ExtensionMatch: extensionMatches(claimedName, format),
	}
}

// detect returns the format for the prefix and a confidence score.
func detect(prefix []byte) (Format, float64) {
	if len(prefix) == 0 {
		return FormatUnknown, 0
	}
	if len(prefix) > PrefixSize {
		prefix = prefix[:PrefixSize]
	}

	for _, sig := range signatures {
		if sig.offset+len(sig.magic) > len(prefix) {
			continue
		}
		if bytes.Equal(prefix[sig.offset:sig.offset+len(sig.magic)], sig.magic) {
			return refine(prefix, sig.format), 1.0
		}
	}

	// Heuristic fallback: http.DetectContentType recognizes plain text and
	// a few formats without strong magic.
	contentType := http.DetectContentType(prefix)
	if idx := strings.Index(contentType, ";"); idx > 0 {
		contentType = contentType[:idx]
	}
	switch contentType {
	case "text/plain":
		return FormatText, 0.5
	case "text/html":
		return FormatHTML, 0.5
	}

	return FormatUnknown, 0
}

// refine handles cases where multiple formats share magic bytes.
func refine(prefix []byte, initial Format) Format {
	switch initial {
	case FormatWAV, FormatAVI:
		// RIFF container: the payload format lives at offset 8.
		if len(prefix) >= 12 {
			switch string(prefix[8:12]) {
			case "WAVE":
				return FormatWAV
			case "AVI ":
				return FormatAVI
			case "WEBP":
				return FormatWebP
			}
		}
		return initial

	case FormatZIP:
		// Office documents are ZIP with well-known internal paths near the
		// front. Heuristic only; the archive inspector parses the real
		// directory later. Payload markers are checked before the shared
		// [Content_Types].xml part, which every OOXML document leads with.
		content := string(prefix)
		if strings.Contains(content, "word/") {
			return FormatDOCX
		}
		if strings.Contains(content, "xl/") {
			return FormatXLSX
		}
		if strings.Contains(content, "ppt/") {
			return FormatPPTX
		}
		if strings.Contains(content, "[Content_Types]") {
			// OOXML with no payload marker inside the window. The three
			// variants are indistinguishable here; extension matching
			// treats the office family as one compatible set.
			return FormatDOCX
		}
		return FormatZIP

	case FormatMP4:
		if len(prefix) >= 12 {
			switch string(prefix[8:12]) {
			case "M4A ":
				return FormatMP4
			case "qt  ":
				return FormatMP4
			}
		}
		return initial

	default:
		return initial
	}
}

// MIME returns the canonical MIME type for a format.
func (f Format) MIME() string {
	if mime, ok := formatMIME[f]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsOOXML reports whether the format is an Office Open XML document.
func (f Format) IsOOXML() bool {
	switch f {
	case FormatDOCX, FormatXLSX, FormatPPTX:
		return true
	}
	return false
}

// IsContainer reports whether the format is ZIP-family and subject to
// structural archive inspection.
func (f Format) IsContainer() bool {
	switch f {
	case FormatZIP, FormatDOCX, FormatXLSX, FormatPPTX:
		return true
	}
	return false
}

// IsExecutable reports whether the format carries native or script code.
func (f Format) IsExecutable() bool {
	switch f {
	case FormatPE, FormatELF, FormatMachO, FormatScript:
		return true
	}
	return false
}

// RequiresDisarm reports whether the format has an active-content or
// nested-structure surface that must be neutralized before admission.
// Plain media/text/data formats pass through untouched. Container formats
// without a rewrite strategy still report true: they are never admitted
// blind, and the disarm engine routes them to quarantine instead.
func (f Format) RequiresDisarm() bool {
	switch f {
	case FormatPDF, FormatDOCX, FormatXLSX, FormatPPTX,
		FormatZIP, FormatGZIP, FormatTAR, FormatRAR, Format7Z:
		return true
	}
	return false
}
