package filegate

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gobeaver/beaver-kit/config"
	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/gobeaver/filegate/archive"
)

// Size constants for readable ceiling configuration.
const (
	KB = int64(1024)
	MB = KB * 1024
	GB = MB * 1024
)

// Config holds environment-driven settings with the FILEGATE_ prefix.
type Config struct {
	// Extension allow-list, comma-separated, dots included.
	AllowedExtensions string `env:"FILEGATE_ALLOWED_EXTENSIONS,default:.pdf,.docx,.xlsx,.pptx,.zip,.jpg,.jpeg,.png,.gif,.txt,.csv,.json"`

	// Filename deny patterns, comma-separated globs.
	DenyNamePatterns string `env:"FILEGATE_DENY_NAME_PATTERNS"`

	// Maximum declared upload size in bytes.
	MaxDeclaredSize int64 `env:"FILEGATE_MAX_DECLARED_SIZE,default:104857600"` // 100MB

	// Archive ceilings
	MaxArchiveEntries     int     `env:"FILEGATE_MAX_ARCHIVE_ENTRIES,default:1000"`
	MaxTotalUncompressed  int64   `env:"FILEGATE_MAX_TOTAL_UNCOMPRESSED,default:1073741824"` // 1GB
	MaxExpansionRatio     float64 `env:"FILEGATE_MAX_EXPANSION_RATIO,default:100"`
	MaxArchiveNesting     int     `env:"FILEGATE_MAX_ARCHIVE_NESTING,default:3"`

	// Signature scanner
	ScannerEndpoint string `env:"FILEGATE_SCANNER_ENDPOINT,default:http://localhost:9000/scan"`
	ScanTimeoutMS   int    `env:"FILEGATE_SCAN_TIMEOUT_MS,default:30000"`

	// FailOpen admits files when the scanner is unavailable, recording the
	// unavailability. Stricter deployments set this false to block instead.
	FailOpen bool `env:"FILEGATE_FAIL_OPEN,default:true"`

	// QuarantineDir is the isolated store for files that cannot be safely
	// admitted or disarmed.
	QuarantineDir string `env:"FILEGATE_QUARANTINE_DIR,default:./quarantine"`
}

// GetConfig returns config loaded from environment.
func GetConfig() (*Config, error) {
	cfg := &Config{}
	if err := config.Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ScanConfig returns the immutable per-run policy derived from the
// environment config.
func (c *Config) ScanConfig() (*ScanConfig, error) {
	sc := &ScanConfig{
		AllowedExtensions: splitList(c.AllowedExtensions),
		DenyNamePatterns:  splitList(c.DenyNamePatterns),
		MaxDeclaredSize:   c.MaxDeclaredSize,
		Archive: archive.Limits{
			MaxEntries:           c.MaxArchiveEntries,
			MaxTotalUncompressed: c.MaxTotalUncompressed,
			MaxExpansionRatio:    c.MaxExpansionRatio,
			MaxNestingDepth:      c.MaxArchiveNesting,
		},
		ScannerEndpoint: c.ScannerEndpoint,
		ScanTimeout:     time.Duration(c.ScanTimeoutMS) * time.Millisecond,
		FailOpen:        c.FailOpen,
		QuarantineDir:   c.QuarantineDir,
	}
	if err := sc.compile(); err != nil {
		return nil, err
	}
	return sc, nil
}

// ScanConfig is the immutable policy for a pipeline instance. Concurrent
// pipelines may carry different policies without cross-run interference;
// nothing here is read from process-wide state after construction.
type ScanConfig struct {
	// AllowedExtensions is the extension allow-list, dots included,
	// lowercase. Empty blocks everything.
	AllowedExtensions []string `yaml:"allowed_extensions"`

	// DenyNamePatterns are glob patterns for filenames rejected outright.
	DenyNamePatterns []string `yaml:"deny_name_patterns"`

	// MaxDeclaredSize is the upload size ceiling in bytes.
	MaxDeclaredSize int64 `yaml:"max_declared_size"`

	// Archive bounds structural inspection and disarm extraction.
	Archive archive.Limits `yaml:"archive"`

	ScannerEndpoint string        `yaml:"scanner_endpoint"`
	ScanTimeout     time.Duration `yaml:"scan_timeout"`

	// FailOpen controls what scanner unavailability means for admission.
	FailOpen bool `yaml:"fail_open"`

	QuarantineDir string `yaml:"quarantine_dir"`

	denyGlobs []glob.Glob
}

// DefaultScanConfig returns a policy suitable for general uploads.
func DefaultScanConfig() *ScanConfig {
	sc := &ScanConfig{
		AllowedExtensions: []string{
			".pdf", ".docx", ".xlsx", ".pptx", ".zip",
			".jpg", ".jpeg", ".png", ".gif", ".webp",
			".mp3", ".wav", ".mp4",
			".txt", ".csv", ".json",
		},
		MaxDeclaredSize: 100 * MB,
		Archive:         archive.DefaultLimits(),
		ScannerEndpoint: "http://localhost:9000/scan",
		ScanTimeout:     30 * time.Second,
		FailOpen:        true,
		QuarantineDir:   "./quarantine",
	}
	if err := sc.compile(); err != nil {
		// No deny patterns to compile in the defaults.
		panic(err)
	}
	return sc
}

// LoadPolicy reads a ScanConfig from a YAML policy file.
func LoadPolicy(path string) (*ScanConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading policy: %w", err)
	}

	sc := DefaultScanConfig()
	if err := yaml.Unmarshal(raw, sc); err != nil {
		return nil, fmt.Errorf("parsing policy: %w", err)
	}
	if err := sc.compile(); err != nil {
		return nil, err
	}
	return sc, nil
}

// compile prepares the deny-pattern matchers.
func (sc *ScanConfig) compile() error {
	sc.denyGlobs = sc.denyGlobs[:0]
	for _, pattern := range sc.DenyNamePatterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compiling deny pattern %q: %w", pattern, err)
		}
		sc.denyGlobs = append(sc.denyGlobs, g)
	}
	return nil
}

// extensionAllowed reports whether an extension is in the allow-list.
func (sc *ScanConfig) extensionAllowed(ext string) bool {
	for _, allowed := range sc.AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// nameDenied reports whether a filename matches a deny pattern.
func (sc *ScanConfig) nameDenied(name string) bool {
	for _, g := range sc.denyGlobs {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// splitList splits a comma-separated env value into trimmed entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
