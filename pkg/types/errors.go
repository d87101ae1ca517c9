package types

import "errors"

// Validation errors
var (
	ErrEmptyID         = errors.New("id cannot be empty")
	ErrEmptyLabel      = errors.New("label cannot be empty")
	ErrUnknownType     = errors.New("unknown entity type")
	ErrImmutableType   = errors.New("entity type cannot change after creation")
	ErrEmptyEndpoint   = errors.New("relationship endpoints cannot be empty")
	ErrEndpointMissing = errors.New("relationship endpoint does not exist")
	ErrConfidenceRange = errors.New("confidence must be in [0,1]")
	ErrUnknownRelation = errors.New("unknown relation type")
	ErrInvalidGeometry = errors.New("geometry must be a point or a ring of at least 3 points")
	ErrInvalidLimit    = errors.New("limit must be positive")
)

// Query-time error taxonomy. AmbiguousIntent, NoSeedEntities and
// DeadlineExceeded normally resolve into clarification or partial payloads;
// the sentinels exist so callers can branch with errors.Is when a component
// surfaces them directly.
var (
	ErrEmptyQuery       = errors.New("query is empty after normalization")
	ErrAmbiguousIntent  = errors.New("query intent is ambiguous")
	ErrInvalidQuery     = errors.New("query references unknown relation types or filters")
	ErrNoSeedEntities   = errors.New("no seed entities could be resolved")
	ErrStoreUnavailable = errors.New("graph store unavailable")
	ErrEntityNotFound   = errors.New("entity not found")
)

// QueryError tags a pipeline error with the stage that produced it, so API
// callers can report where a query failed without string matching. It wraps
// the underlying sentinel, keeping errors.Is checks intact.
type QueryError struct {
	Stage string // interpret, retrieve, store
	Err   error
}

func (e *QueryError) Error() string { return e.Stage + ": " + e.Err.Error() }

func (e *QueryError) Unwrap() error { return e.Err }
