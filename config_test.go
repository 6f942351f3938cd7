package filegate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoadPolicy(t *testing.T) {
	policy := `
allowed_extensions: [".pdf", ".txt"]
deny_name_patterns: ["*.tar.*", "*password*"]
max_declared_size: 5242880
archive:
  max_entries: 50
  max_total_uncompressed: 10485760
  max_expansion_ratio: 20
  max_nesting_depth: 2
scanner_endpoint: http://clamav:3310/scan
scan_timeout: 10s
fail_open: false
quarantine_dir: /var/lib/filegate/quarantine
`
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(policy), 0o600); err != nil {
		t.Fatal(err)
	}

	sc, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}

	if diff := cmp.Diff([]string{".pdf", ".txt"}, sc.AllowedExtensions); diff != "" {
		t.Errorf("AllowedExtensions mismatch (-want +got):\n%s", diff)
	}
	if sc.MaxDeclaredSize != 5*MB {
		t.Errorf("MaxDeclaredSize = %d, want %d", sc.MaxDeclaredSize, 5*MB)
	}
	if sc.Archive.MaxEntries != 50 || sc.Archive.MaxNestingDepth != 2 {
		t.Errorf("archive limits = %+v", sc.Archive)
	}
	if sc.ScanTimeout != 10*time.Second {
		t.Errorf("ScanTimeout = %s, want 10s", sc.ScanTimeout)
	}
	if sc.FailOpen {
		t.Error("FailOpen = true, want false")
	}
}

func TestLoadPolicyKeepsDefaultsForOmittedFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("fail_open: false\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	sc, err := LoadPolicy(path)
	if err != nil {
		t.Fatalf("LoadPolicy() error = %v", err)
	}
	def := DefaultScanConfig()
	if sc.FailOpen {
		t.Error("FailOpen override was not applied")
	}
	if diff := cmp.Diff(def.AllowedExtensions, sc.AllowedExtensions); diff != "" {
		t.Errorf("defaults not preserved (-want +got):\n%s", diff)
	}
	if sc.Archive != def.Archive {
		t.Errorf("archive limits = %+v, want defaults %+v", sc.Archive, def.Archive)
	}
}

func TestLoadPolicyBadPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(`deny_name_patterns: ["[unterminated"]`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPolicy(path); err == nil {
		t.Fatal("LoadPolicy() accepted an uncompilable deny pattern")
	}
}

func TestLoadPolicyMissingFile(t *testing.T) {
	if _, err := LoadPolicy(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("LoadPolicy() succeeded on a missing file")
	}
}

func TestExtensionAllowed(t *testing.T) {
	sc := &ScanConfig{AllowedExtensions: []string{".pdf", ".txt"}}

	tests := []struct {
		ext  string
		want bool
	}{
		{".pdf", true},
		{".PDF", true},
		{".txt", true},
		{".exe", false},
		{".pdf.exe", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := sc.extensionAllowed(tt.ext); got != tt.want {
			t.Errorf("extensionAllowed(%q) = %v, want %v", tt.ext, got, tt.want)
		}
	}
}

func TestNameDenied(t *testing.T) {
	sc := &ScanConfig{DenyNamePatterns: []string{"*.tar.*", "*password*", "~$*"}}
	if err := sc.compile(); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want bool
	}{
		{"backup.tar.gz", true},
		{"passwords.txt", true},
		{"~$report.docx", true},
		{"report.docx", false},
		{"tar.txt", false},
	}
	for _, tt := range tests {
		if got := sc.nameDenied(tt.name); got != tt.want {
			t.Errorf("nameDenied(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestScanConfigFromEnvConfig(t *testing.T) {
	c := &Config{
		AllowedExtensions:    " .pdf, .zip ,",
		DenyNamePatterns:     "*secret*",
		MaxDeclaredSize:      42,
		MaxArchiveEntries:    7,
		MaxTotalUncompressed: 1 * MB,
		MaxExpansionRatio:    5,
		MaxArchiveNesting:    1,
		ScannerEndpoint:      "http://scan:9000/scan",
		ScanTimeoutMS:        1500,
		FailOpen:             true,
		QuarantineDir:        t.TempDir(),
	}

	sc, err := c.ScanConfig()
	if err != nil {
		t.Fatalf("ScanConfig() error = %v", err)
	}
	if diff := cmp.Diff([]string{".pdf", ".zip"}, sc.AllowedExtensions); diff != "" {
		t.Errorf("AllowedExtensions mismatch (-want +got):\n%s", diff)
	}
	if sc.ScanTimeout != 1500*time.Millisecond {
		t.Errorf("ScanTimeout = %s, want 1.5s", sc.ScanTimeout)
	}
	if !sc.nameDenied("my-secret-notes.txt") {
		t.Error("deny pattern from env config not compiled")
	}
}
