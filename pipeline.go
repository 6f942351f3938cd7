package filegate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gobeaver/filegate/archive"
	"github.com/gobeaver/filegate/classifier"
	"github.com/gobeaver/filegate/disarm"
	"github.com/gobeaver/filegate/scanner"
)

// Pipeline runs the four-layer admission protocol: validate, classify and
// inspect structure, signature-scan, disarm, re-scan, decide. Each run is
// independent; a single Pipeline is safe for concurrent use because the
// policy is immutable and the scanner client is concurrency-safe.
type Pipeline struct {
	cfg        *ScanConfig
	scanner    scanner.Scanner
	engine     *disarm.Engine
	quarantine *QuarantineStore
	store      Store
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore sets the destination for admitted artifacts. Without one the
// Verdict still carries the artifact's checksum but nothing is persisted.
func WithStore(store Store) Option {
	return func(p *Pipeline) { p.store = store }
}

// New creates a pipeline with the given policy and scanner client.
func New(cfg *ScanConfig, scan scanner.Scanner, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("nil scan config")
	}
	if scan == nil {
		return nil, errors.New("nil scanner")
	}

	quarantine, err := NewQuarantineStore(cfg.QuarantineDir)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		cfg:        cfg,
		scanner:    scan,
		engine:     disarm.NewEngine(cfg.Archive),
		quarantine: quarantine,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Quarantine returns the pipeline's quarantine store.
func (p *Pipeline) Quarantine() *QuarantineStore {
	return p.quarantine
}

// Run takes a candidate through the admission protocol and returns the
// Verdict. The caller never receives a raw error: internal failures degrade
// to Blocked or Quarantined, never to Admitted.
func (p *Pipeline) Run(ctx context.Context, cand Candidate) *Verdict {
	v := &Verdict{
		RunID:     newRunID(),
		Timestamp: time.Now().UTC(),
	}
	log := slog.With("run_id", v.RunID, "name", cand.Name())

	// Received -> Validated. Cheapest checks run first to shed obviously
	// invalid input before any parsing.
	if err := p.validate(cand); err != nil {
		log.Info("candidate rejected by validation", "err", err)
		return p.blocked(v, ReasonValidation, err)
	}

	f, size, err := cand.open()
	if err != nil {
		log.Warn("cannot open candidate", "err", err)
		return p.blocked(v, ReasonInternal, &PipelineError{Stage: StageValidate, Err: err})
	}
	defer f.Close()

	// Validated -> Classified. Classification never fails; Unknown is a
	// valid classification.
	prefix := make([]byte, classifier.PrefixSize)
	n, err := io.ReadFull(io.NewSectionReader(f, 0, size), prefix)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return p.blocked(v, ReasonInternal, &PipelineError{Stage: StageClassify, Err: err})
	}
	v.Classification = classifier.Classify(prefix[:n], cand.Name())
	log = log.With("format", v.Classification.Format)

	if v.Classification.Format == classifier.FormatUnknown {
		// Unknown structure cannot be safely disarmed; no reason to scan
		// unparseable content either.
		log.Info("blocking unknown format")
		return p.blocked(v, ReasonUnknownFormat, ErrUnknownFormat)
	}
	if !v.Classification.ExtensionMatch {
		log.Info("blocking extension mismatch", "claimed_ext", cand.Ext())
		return p.blocked(v, ReasonValidation, ErrExtensionMismatch)
	}

	// Structural inspection for containers. Metadata only; entry bodies
	// are never decompressed here.
	if v.Classification.Format.IsContainer() {
		if _, err := archive.Inspect(f, size, p.cfg.Archive); err != nil {
			if archive.IsBomb(err) {
				log.Info("blocking archive bomb", "err", err)
				return p.blocked(v, ReasonArchiveBomb, err)
			}
			log.Info("blocking malformed archive", "err", err)
			return p.blocked(v, ReasonArchiveMalformed, err)
		}
	}

	// Classified -> PreScanned.
	v.PreScan = p.scan(ctx, f, size, cand.Name())
	switch v.PreScan.Status {
	case scanner.StatusInfected:
		// Never proceed to disarm an already-detected threat.
		log.Info("blocking on pre-scan detection", "signature", v.PreScan.Signature)
		return p.blocked(v, ReasonMalware, fmt.Errorf("%w: %s", ErrMalwareDetected, v.PreScan.Signature))
	case scanner.StatusUnavailable:
		if !p.cfg.FailOpen {
			log.Warn("blocking on scanner unavailability (fail-closed)", "reason", v.PreScan.Reason)
			return p.blocked(v, ReasonScannerUnavailable, ErrScannerUnavailable)
		}
		log.Warn("scanner unavailable, continuing (fail-open)", "reason", v.PreScan.Reason)
	}

	// Plain formats have no active-content surface: skip straight to the
	// decision with the original bytes as the stored representation.
	if !v.Classification.Format.RequiresDisarm() {
		artifact := make([]byte, size)
		if _, err := io.ReadFull(io.NewSectionReader(f, 0, size), artifact); err != nil {
			return p.blocked(v, ReasonInternal, &PipelineError{Stage: StageDecide, Err: err})
		}
		return p.admit(ctx, v, cand, artifact, log)
	}

	// (Disarmed)
	result, err := p.engine.Neutralize(ctx, f, size, v.Classification.Format)
	v.Disarm = result
	if err != nil || !result.Success {
		if err == nil {
			err = ErrDisarmFailed
		}
		log.Warn("disarm failed, quarantining", "err", err)
		handle, qErr := p.quarantine.Move(ctx, cand)
		if qErr != nil {
			// Quarantine itself failed; the most conservative reachable
			// state is Blocked.
			log.Error("quarantine move failed", "err", qErr)
			return p.blocked(v, ReasonInternal, &PipelineError{Stage: StageDisarm, Err: qErr})
		}
		v.QuarantineHandle = handle
		v.Decision = Quarantined
		v.Reason = ReasonDisarmFailed
		v.Detail = err.Error()
		return v
	}
	log.Info("disarm complete", "actions", len(result.Actions))

	// Disarmed -> PostScanned. Disarm is not trusted blindly.
	post := p.scan(ctx, bytes.NewReader(result.Artifact), int64(len(result.Artifact)), cand.Name())
	v.PostScan = &post
	switch post.Status {
	case scanner.StatusInfected:
		log.Info("blocking on post-disarm detection", "signature", post.Signature)
		return p.blocked(v, ReasonMalware, fmt.Errorf("%w: %s", ErrMalwareDetected, post.Signature))
	case scanner.StatusUnavailable:
		if !p.cfg.FailOpen {
			log.Warn("blocking on scanner unavailability (fail-closed)", "reason", post.Reason)
			return p.blocked(v, ReasonScannerUnavailable, ErrScannerUnavailable)
		}
		log.Warn("scanner unavailable post-disarm, continuing (fail-open)", "reason", post.Reason)
	}

	// PostScanned clean -> Admitted, carrying the neutralized artifact.
	return p.admit(ctx, v, cand, result.Artifact, log)
}

// validate applies the pre-classification checks: allow-list, deny
// patterns, declared size. Fails closed.
func (p *Pipeline) validate(cand Candidate) error {
	ext := cand.Ext()
	if ext == "" {
		return ErrMissingExtension
	}
	if !p.cfg.extensionAllowed(ext) {
		return fmt.Errorf("%w: %s", ErrExtensionNotAllowed, ext)
	}
	if p.cfg.nameDenied(cand.Name()) {
		return fmt.Errorf("%w: %s", ErrNameNotAllowed, cand.Name())
	}
	if p.cfg.MaxDeclaredSize > 0 && cand.DeclaredSize > p.cfg.MaxDeclaredSize {
		return fmt.Errorf("%w: %d > %d", ErrDeclaredSizeExceeded, cand.DeclaredSize, p.cfg.MaxDeclaredSize)
	}
	return nil
}

// scan runs one signature scan with the configured timeout. A timeout is
// retried once with half the timeout before reporting unavailability; all
// other failures are final for the attempt. Each attempt reads the content
// from the start.
func (p *Pipeline) scan(ctx context.Context, src io.ReaderAt, size int64, name string) scanner.Outcome {
	out := p.scanOnce(ctx, p.cfg.ScanTimeout, src, size, name)
	if out.Status == scanner.StatusUnavailable && out.TimedOut {
		slog.Warn("scan timed out, retrying once", "name", name, "timeout", p.cfg.ScanTimeout/2)
		out = p.scanOnce(ctx, p.cfg.ScanTimeout/2, src, size, name)
	}
	return out
}

func (p *Pipeline) scanOnce(ctx context.Context, timeout time.Duration, src io.ReaderAt, size int64, name string) scanner.Outcome {
	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.scanner.Scan(scanCtx, io.NewSectionReader(src, 0, size), name)
}

// admit finalizes an admission, hands the artifact to the store when one is
// configured, and records its checksum.
func (p *Pipeline) admit(ctx context.Context, v *Verdict, cand Candidate, artifact []byte, log *slog.Logger) *Verdict {
	v.ArtifactChecksum = checksum(artifact)

	if p.store != nil {
		if _, err := p.store.Put(ctx, cand.Name(), bytes.NewReader(artifact)); err != nil {
			// Failing to persist an admitted artifact must not read as an
			// admission: degrade to Blocked.
			log.Error("artifact handoff failed", "err", err)
			return p.blocked(v, ReasonInternal, &PipelineError{Stage: StageDecide, Err: err})
		}
	}

	v.Decision = Admitted
	if v.PreScan.Status == scanner.StatusUnavailable ||
		(v.PostScan != nil && v.PostScan.Status == scanner.StatusUnavailable) {
		v.Reason = ReasonScannerUnavailable
		v.Detail = "admitted fail-open with scanner unavailable"
	} else {
		v.Reason = ReasonClean
	}
	log.Info("candidate admitted", "reason", v.Reason, "checksum", v.ArtifactChecksum)
	return v
}

// blocked finalizes a blocking decision.
func (p *Pipeline) blocked(v *Verdict, reason ReasonCode, err error) *Verdict {
	v.Decision = Blocked
	v.Reason = reason
	if err != nil {
		v.Detail = err.Error()
	}
	return v
}
