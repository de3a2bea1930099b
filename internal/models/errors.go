package models

import "fmt"

// ErrorKind is the closed taxonomy of scan failures. Orchestrator
// retry classification switches on Kind, never on string matching against
// an error's message.
type ErrorKind string

const (
	// ErrorKindInput covers invalid/disallowed URLs and invalid scanId
	// formats. Permanent: scan -> failed, job ACKed without retry.
	ErrorKindInput ErrorKind = "input_error"
	// ErrorKindNetwork covers DNS, TCP, and HTTP >= 400 on the seed.
	// Transient: retried by the queue up to the attempt limit.
	ErrorKindNetwork ErrorKind = "network_error"
	// ErrorKindBrowser covers launch, disconnect, and navigation timeouts.
	// Transient, like Network. The orchestrator does not re-acquire a page
	// within the job: a scan-phase browser failure is recorded on that page.
	ErrorKindBrowser ErrorKind = "browser_error"
	// ErrorKindRuleEngine covers per-page injection/evaluation failures.
	// Always localized to that page; never aborts the scan.
	ErrorKindRuleEngine ErrorKind = "rule_engine_error"
	// ErrorKindPersistence covers transaction failures. Transient: the scan
	// is not marked completed and the job is retried.
	ErrorKindPersistence ErrorKind = "persistence_error"
	// ErrorKindValidationExhausted covers the zero-pages-crawled sentinel.
	// Permanent: scan -> failed with reason "no-pages".
	ErrorKindValidationExhausted ErrorKind = "validation_exhausted"
)

// Transient reports whether the queue adapter should retry the job.
func (k ErrorKind) Transient() bool {
	switch k {
	case ErrorKindNetwork, ErrorKindBrowser, ErrorKindPersistence:
		return true
	default:
		return false
	}
}

// ScanError is a typed, taxonomy-tagged error. The short Reason string is
// what ends up in a persisted Scan.ErrorMessage; the wrapped Err is for logs
// only and never reaches persisted state.
type ScanError struct {
	Kind   ErrorKind
	Reason string
	Err    error
}

func (e *ScanError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *ScanError) Unwrap() error { return e.Err }

// NewScanError constructs a ScanError, wrapping cause (which may be nil).
func NewScanError(kind ErrorKind, reason string, cause error) *ScanError {
	return &ScanError{Kind: kind, Reason: reason, Err: cause}
}
