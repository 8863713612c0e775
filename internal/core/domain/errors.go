package domain

import "errors"

// Domain errors represent business logic failures, distinct from
// infrastructure errors. They are the sentinels most callers match
// against with errors.Is; ErrorKind below groups them for the Worker's
// retry policy.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotImplemented indicates functionality is not yet available.
	ErrNotImplemented = errors.New("not implemented")

	// ErrUnsupportedType indicates an unknown MIME type or extraction mode.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrUpstreamUnavailable indicates a dependent service (extractor,
	// vectorizer, keyword generator, adapter) is temporarily unreachable.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrTimeout indicates an external call exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrExtractionFailed indicates the content extractor reported a hard failure.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrConsistencyViolation indicates verify_consistency found a disagreement
	// between the Registry and an adapter's reported chunk set.
	ErrConsistencyViolation = errors.New("consistency violation")

	// ErrInvariantBreach indicates a fatal, non-repairable invariant failure
	// (I2 or I5). The caller must abort and leave a diagnostic, not auto-repair.
	ErrInvariantBreach = errors.New("invariant breach")

	// ErrCancelled indicates cooperative cancellation at a step boundary.
	ErrCancelled = errors.New("cancelled")

	// ErrDeadLettered indicates a job exceeded its retry ceiling.
	ErrDeadLettered = errors.New("dead lettered")

	// ErrQueueEmpty indicates no job was available to dequeue.
	ErrQueueEmpty = errors.New("queue empty")

	// ErrDimensionMismatch indicates an embedding's length does not match
	// the vector adapter's configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// ErrorKind groups errors for retry/propagation policy.
// The Worker consults this, not the underlying error text, when
// deciding whether to retry, dead-letter, or surface immediately.
type ErrorKind int

const (
	// KindValidation is never retried.
	KindValidation ErrorKind = iota
	// KindTransient is retried with backoff; the job stays Pending.
	KindTransient
	// KindExtraction moves the record to Failed; the job retries to the ceiling.
	KindExtraction
	// KindConsistency triggers the Corrupt repair path.
	KindConsistency
	// KindCancellation leaves durable state recoverable; not an error to report.
	KindCancellation
	// KindFatal aborts the operation without auto-repair.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransient:
		return "transient"
	case KindExtraction:
		return "extraction"
	case KindConsistency:
		return "consistency"
	case KindCancellation:
		return "cancellation"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// TaxonomyError wraps an underlying error with the taxonomy kind assigned
// to it by the Index Manager or Worker. The public API and CLI surface
// this instead of the raw error so every caller sees a consistent shape.
type TaxonomyError struct {
	Kind ErrorKind
	Err  error
}

func (e *TaxonomyError) Error() string {
	if e.Err == nil {
		return "taxonomy error: " + e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *TaxonomyError) Unwrap() error { return e.Err }

// Retryable reports whether the Worker should retry the job that produced
// this error. Only transient errors are retried automatically.
func (e *TaxonomyError) Retryable() bool {
	return e.Kind == KindTransient
}

// NewTaxonomyError tags err with kind, grounding the classification the
// Index Manager performs when translating adapter/extractor errors.
func NewTaxonomyError(kind ErrorKind, err error) *TaxonomyError {
	return &TaxonomyError{Kind: kind, Err: err}
}
