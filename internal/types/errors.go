package types

import "errors"

// Error taxonomy for the discovery engine. Callers branch with errors.Is;
// wrapped variants carry the operation context via fmt.Errorf("%w").
var (
	// ErrNotConnected means the vector store was queried before Connect.
	ErrNotConnected = errors.New("vector store not connected")
	// ErrNotFound covers missing sessions and unknown collections.
	ErrNotFound = errors.New("not found")
	// ErrValidation covers malformed query or date input.
	ErrValidation = errors.New("validation failure")
	// ErrUpstream covers embedding-store and ranking-collaborator failures.
	ErrUpstream = errors.New("upstream failure")
	// ErrTimeout means a protected call exceeded its execution budget.
	ErrTimeout = errors.New("operation timed out")
	// ErrCircuitOpen means the breaker short-circuited the request.
	ErrCircuitOpen = errors.New("circuit breaker open")
)
