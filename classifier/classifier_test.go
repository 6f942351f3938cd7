package classifier

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		prefix      []byte
		claimedName string
		wantFormat  Format
		wantMatch   bool
	}{
		{
			name:        "pdf with matching extension",
			prefix:      []byte("%PDF-1.7\n%âãÏÓ"),
			claimedName: "report.pdf",
			wantFormat:  FormatPDF,
			wantMatch:   true,
		},
		{
			name:        "pdf with forged txt extension",
			prefix:      []byte("%PDF-1.7\n"),
			claimedName: "notes.txt",
			wantFormat:  FormatPDF,
			wantMatch:   false,
		},
		{
			name:        "png",
			prefix:      []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00},
			claimedName: "logo.png",
			wantFormat:  FormatPNG,
			wantMatch:   true,
		},
		{
			name:        "jpeg with jpg extension",
			prefix:      []byte{0xFF, 0xD8, 0xFF, 0xE0},
			claimedName: "photo.jpg",
			wantFormat:  FormatJPEG,
			wantMatch:   true,
		},
		{
			name:        "elf named pdf is classified by content",
			prefix:      []byte{0x7F, 'E', 'L', 'F', 0x02, 0x01},
			claimedName: "report.pdf",
			wantFormat:  FormatELF,
			wantMatch:   false,
		},
		{
			name:        "pe executable",
			prefix:      []byte("MZ\x90\x00"),
			claimedName: "setup.exe",
			wantFormat:  FormatPE,
			wantMatch:   false, // .exe is never a legitimate extension here
		},
		{
			name:        "shell script",
			prefix:      []byte("#!/bin/sh\necho hi\n"),
			claimedName: "run.sh",
			wantFormat:  FormatScript,
			wantMatch:   false,
		},
		{
			name:        "plain zip",
			prefix:      append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 60)...),
			claimedName: "bundle.zip",
			wantFormat:  FormatZIP,
			wantMatch:   true,
		},
		{
			name:        "gzip",
			prefix:      []byte{0x1F, 0x8B, 0x08},
			claimedName: "dump.gz",
			wantFormat:  FormatGZIP,
			wantMatch:   true,
		},
		{
			name:        "empty prefix",
			prefix:      nil,
			claimedName: "anything.bin",
			wantFormat:  FormatUnknown,
			wantMatch:   false,
		},
		{
			name:        "random bytes",
			prefix:      []byte{0x01, 0x02, 0x03, 0xFE, 0xFD, 0xFC, 0x00, 0x99},
			claimedName: "data.dat",
			wantFormat:  FormatUnknown,
			wantMatch:   false,
		},
		{
			name:        "plain text fallback",
			prefix:      []byte("just some ordinary notes\nsecond line\n"),
			claimedName: "notes.txt",
			wantFormat:  FormatText,
			wantMatch:   true,
		},
		{
			name:        "csv named csv",
			prefix:      []byte("name,age,city\nalice,30,oslo\nbob,41,bergen\n"),
			claimedName: "people.csv",
			wantFormat:  FormatCSV,
			wantMatch:   true,
		},
		{
			name:        "csv content named txt stays text",
			prefix:      []byte("name,age,city\nalice,30,oslo\n"),
			claimedName: "people.txt",
			wantFormat:  FormatText,
			wantMatch:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.prefix, tt.claimedName)
			if got.Format != tt.wantFormat {
				t.Errorf("Classify() format = %s, want %s", got.Format, tt.wantFormat)
			}
			if got.ExtensionMatch != tt.wantMatch {
				t.Errorf("Classify() extension match = %v, want %v", got.ExtensionMatch, tt.wantMatch)
			}
			if got.Format != FormatUnknown && got.Confidence <= 0 {
				t.Errorf("Classify() confidence = %f for recognized format", got.Confidence)
			}
			if got.Format == FormatUnknown && got.Confidence != 0 {
				t.Errorf("Classify() confidence = %f for unknown format", got.Confidence)
			}
		})
	}
}

func TestClassifyRefinesRIFF(t *testing.T) {
	wav := append([]byte("RIFF"), 0x24, 0x00, 0x00, 0x00)
	wav = append(wav, []byte("WAVEfmt ")...)
	got := Classify(wav, "clip.wav")
	if got.Format != FormatWAV {
		t.Errorf("Classify(RIFF/WAVE) = %s, want %s", got.Format, FormatWAV)
	}

	webp := append([]byte("RIFF"), 0x24, 0x00, 0x00, 0x00)
	webp = append(webp, []byte("WEBPVP8 ")...)
	if got := Classify(webp, "pic.webp"); got.Format != FormatWebP {
		t.Errorf("Classify(RIFF/WEBP) = %s, want %s", got.Format, FormatWebP)
	}
}

func TestClassifyRefinesOfficeZip(t *testing.T) {
	prefix := append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("\x14\x00\x00\x00\x00\x00")...)
	prefix = append(prefix, []byte("[Content_Types].xml")...)
	got := Classify(prefix, "letter.docx")
	if got.Format != FormatDOCX {
		t.Errorf("Classify(office zip) = %s, want %s", got.Format, FormatDOCX)
	}
	if !got.ExtensionMatch {
		t.Error("Classify(office zip) extension should match .docx")
	}
}

func TestClassifyOfficeFamilyExtensions(t *testing.T) {
	// Every OOXML file leads with [Content_Types].xml, so the prefix window
	// usually carries no payload marker that would tell the three variants
	// apart. Any office extension must still match.
	generic := append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("\x14\x00\x00\x00\x00\x00")...)
	generic = append(generic, []byte("[Content_Types].xml")...)

	for _, name := range []string{"report.xlsx", "deck.pptx", "letter.docx"} {
		got := Classify(generic, name)
		if !got.Format.IsOOXML() {
			t.Errorf("Classify(generic office zip, %s) = %s, want an office format", name, got.Format)
		}
		if !got.ExtensionMatch {
			t.Errorf("Classify(generic office zip, %s) extension should match", name)
		}
	}

	// A payload marker inside the window pins down the exact variant.
	xlsx := append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("\x14\x00\x00\x00\x00\x00")...)
	xlsx = append(xlsx, []byte("xl/workbook.xml")...)
	if got := Classify(xlsx, "report.xlsx"); got.Format != FormatXLSX || !got.ExtensionMatch {
		t.Errorf("Classify(xl/ marker) = %s match=%v, want %s match=true", got.Format, got.ExtensionMatch, FormatXLSX)
	}

	pptx := append([]byte{0x50, 0x4B, 0x03, 0x04}, []byte("\x14\x00\x00\x00\x00\x00")...)
	pptx = append(pptx, []byte("ppt/presentation.xml")...)
	if got := Classify(pptx, "deck.pptx"); got.Format != FormatPPTX || !got.ExtensionMatch {
		t.Errorf("Classify(ppt/ marker) = %s match=%v, want %s match=true", got.Format, got.ExtensionMatch, FormatPPTX)
	}

	// A plain zip claiming an office extension still mismatches.
	plain := append([]byte{0x50, 0x4B, 0x03, 0x04}, make([]byte, 60)...)
	if got := Classify(plain, "report.xlsx"); got.ExtensionMatch {
		t.Errorf("Classify(plain zip as .xlsx) = %s, extension must not match", got.Format)
	}
}

func TestClassificationIsReproducible(t *testing.T) {
	prefix := []byte("%PDF-1.4\n1 0 obj\n")
	first := Classify(prefix, "a.pdf")
	second := Classify(prefix, "a.pdf")
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("Classify() not deterministic (-first +second):\n%s", diff)
	}
}

func TestFormatForExtension(t *testing.T) {
	tests := []struct {
		ext  string
		want Format
	}{
		{".pdf", FormatPDF},
		{".PDF", FormatPDF},
		{".jpeg", FormatJPEG},
		{".zip", FormatZIP},
		{".exe", FormatUnknown},
		{"", FormatUnknown},
	}
	for _, tt := range tests {
		if got := FormatForExtension(tt.ext); got != tt.want {
			t.Errorf("FormatForExtension(%q) = %s, want %s", tt.ext, got, tt.want)
		}
	}
}

func TestFormatPredicates(t *testing.T) {
	if !FormatZIP.IsContainer() || !FormatDOCX.IsContainer() {
		t.Error("ZIP-family formats must be containers")
	}
	if FormatPDF.IsContainer() {
		t.Error("PDF is not a container")
	}
	if !FormatELF.IsExecutable() || !FormatPE.IsExecutable() || !FormatScript.IsExecutable() {
		t.Error("native and script formats must be executable")
	}
	if !FormatPDF.RequiresDisarm() || !FormatZIP.RequiresDisarm() || !FormatRAR.RequiresDisarm() {
		t.Error("documents and containers require disarm")
	}
	if FormatPNG.RequiresDisarm() || FormatText.RequiresDisarm() {
		t.Error("plain formats must not require disarm")
	}
}

func TestClassifyBoundsPrefix(t *testing.T) {
	// A prefix larger than the window must not change the result.
	large := append([]byte("%PDF-1.5\n"), bytes.Repeat([]byte{0xAB}, 4096)...)
	if got := Classify(large, "big.pdf"); got.Format != FormatPDF {
		t.Errorf("Classify(oversized prefix) = %s, want %s", got.Format, FormatPDF)
	}
}
