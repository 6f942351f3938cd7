// Package filegate decides whether an untrusted uploaded file may enter
// storage, and in what form. It is a defense-in-depth admission pipeline:
// content is classified from its bytes, container structure is inspected
// without extraction, an external signature engine is consulted, and active
// content is neutralized before anything is handed to storage. Metadata,
// extensions and even byte-level magic are all treated as forgeable.
//
// # Protocol
//
// A run moves through Received -> Validated -> Classified -> PreScanned ->
// (Disarmed) -> (PostScanned) -> Decided, ending Admitted, Blocked or
// Quarantined:
//
//	cfg := filegate.DefaultScanConfig()
//	scan := scanner.NewRESTScanner(cfg.ScannerEndpoint, cfg.ScanTimeout)
//	pipe, err := filegate.New(cfg, scan)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	verdict := pipe.Run(ctx, filegate.Candidate{
//	    Path:         "/uploads/report.pdf",
//	    ClaimedName:  "report.pdf",
//	    DeclaredSize: 482133,
//	})
//	if verdict.Admittable() {
//	    // the neutralized artifact was handed to the configured Store
//	}
//
// The caller always receives a Verdict, never a raw error: internal
// failures degrade to Blocked or Quarantined, never to Admitted. The only
// configurable exception is scanner unavailability, which fail-open
// deployments record but do not block on.
//
// # Policy
//
// Every ceiling and allow-list lives in [ScanConfig], passed explicitly
// into each pipeline so concurrent runs may carry different policies.
// Policies load from the environment ([GetConfig]) or a YAML file
// ([LoadPolicy]).
//
// # Audit
//
// Verdicts serialize to a flat audit record ([Verdict.AuditRecord])
// retaining the classification, both scan outcomes, the disarm actions and
// the reason code: enough to reconstruct why any file was admitted,
// blocked or quarantined.
package filegate
