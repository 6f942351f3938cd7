package filegate

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/gobeaver/filegate/classifier"
	"github.com/gobeaver/filegate/disarm"
	"github.com/gobeaver/filegate/scanner"
)

// Decision is the terminal state of a pipeline run.
type Decision string

const (
	Admitted    Decision = "admitted"
	Blocked     Decision = "blocked"
	Quarantined Decision = "quarantined"
)

// ReasonCode explains a decision well enough to reconstruct it from the
// audit trail alone.
type ReasonCode string

const (
	ReasonClean              ReasonCode = "clean"
	ReasonValidation         ReasonCode = "validation_failed"
	ReasonUnknownFormat      ReasonCode = "unknown_format"
	ReasonArchiveBomb        ReasonCode = "archive_bomb"
	ReasonArchiveMalformed   ReasonCode = "archive_malformed"
	ReasonMalware            ReasonCode = "malware_detected"
	ReasonDisarmFailed       ReasonCode = "disarm_failed"
	ReasonScannerUnavailable ReasonCode = "scanner_unavailable"
	ReasonInternal           ReasonCode = "internal_error"
)

// Verdict is the only externally visible artifact of a pipeline run.
// Immutable once constructed.
type Verdict struct {
	// RunID identifies this pipeline run in logs and audit records.
	RunID string

	// Timestamp is when the decision was made.
	Timestamp time.Time

	Decision Decision
	Reason   ReasonCode

	// Detail is a human-readable elaboration of the reason.
	Detail string

	Classification classifier.Classification

	// PreScan is the scan outcome for the original bytes. PostScan is only
	// set when a disarm occurred.
	PreScan  scanner.Outcome
	PostScan *scanner.Outcome

	// Disarm records what neutralization did, when it ran.
	Disarm *disarm.Result

	// ArtifactChecksum is the xxhash of the admitted artifact, hex encoded.
	ArtifactChecksum string

	// QuarantineHandle addresses the quarantined copy, when one was taken.
	QuarantineHandle string
}

// Admittable reports whether the run ended in admission.
func (v *Verdict) Admittable() bool {
	return v.Decision == Admitted
}

// Record is the persisted audit shape of a Verdict. Disarm artifacts are
// not embedded; only the actions taken are retained.
type Record struct {
	RunID            string                    `json:"run_id"`
	Timestamp        time.Time                 `json:"timestamp"`
	Decision         Decision                  `json:"decision"`
	Reason           ReasonCode                `json:"reason"`
	Detail           string                    `json:"detail,omitempty"`
	Format           classifier.Format         `json:"format"`
	MIME             string                    `json:"mime"`
	ExtensionMatch   bool                      `json:"extension_match"`
	PreScan          scanner.Outcome           `json:"pre_scan"`
	PostScan         *scanner.Outcome          `json:"post_scan,omitempty"`
	DisarmActions    []disarm.Action           `json:"disarm_actions,omitempty"`
	DisarmSuccess    *bool                     `json:"disarm_success,omitempty"`
	ArtifactChecksum string                    `json:"artifact_checksum,omitempty"`
	QuarantineHandle string                    `json:"quarantine_handle,omitempty"`
}

// AuditRecord converts the verdict into its persisted audit shape.
func (v *Verdict) AuditRecord() Record {
	rec := Record{
		RunID:            v.RunID,
		Timestamp:        v.Timestamp,
		Decision:         v.Decision,
		Reason:           v.Reason,
		Detail:           v.Detail,
		Format:           v.Classification.Format,
		MIME:             v.Classification.MIME,
		ExtensionMatch:   v.Classification.ExtensionMatch,
		PreScan:          v.PreScan,
		PostScan:         v.PostScan,
		ArtifactChecksum: v.ArtifactChecksum,
		QuarantineHandle: v.QuarantineHandle,
	}
	if v.Disarm != nil {
		rec.DisarmActions = v.Disarm.Actions
		success := v.Disarm.Success
		rec.DisarmSuccess = &success
	}
	return rec
}

// MarshalAudit serializes the audit record as JSON.
func (v *Verdict) MarshalAudit() ([]byte, error) {
	return json.Marshal(v.AuditRecord())
}

// newRunID allocates an identifier for one pipeline run.
func newRunID() string {
	return uuid.NewString()
}
