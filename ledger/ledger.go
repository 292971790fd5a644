// Package ledger writes grievance lifecycle events to the public append-only
// ledger. The ledger is authoritative for the existence of a grievance and its
// resolution; the local store is a working copy.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Ledger is the public ledger as seen by the grievance service.
type Ledger interface {
	// CreateGrievance anchors a new grievance and returns its ledger id. Only
	// hashes of free text leave the service.
	CreateGrievance(ctx context.Context, category, locationHash, descriptionHash string) (string, error)
	// ResolveGrievance marks a previously created grievance resolved.
	ResolveGrievance(ctx context.Context, ledgerID string) (*Receipt, error)
}

// Receipt identifies the ledger transaction that recorded a resolution.
type Receipt struct {
	TxHash      string `json:"txHash"`
	BlockNumber uint64 `json:"blockNumber"`
}

// Kind classifies a ledger failure.
type Kind string

const (
	KindReverted       Kind = "reverted"         // rejected by the ledger; retrying will not help
	KindOutOfResources Kind = "out_of_resources" // the submitting account cannot pay for the write
	KindUnavailable    Kind = "unavailable"      // the ledger could not be reached
)

// Sentinels for errors.Is matching against *Error.
var (
	ErrReverted       = errors.New("ledger transaction reverted")
	ErrOutOfResources = errors.New("ledger account out of resources")
	ErrUnavailable    = errors.New("ledger unavailable")
)

// Operations
const (
	OpCreate  = "create"
	OpResolve = "resolve"
)

// Error is returned by every Ledger implementation on failure.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger %s %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("ledger %s %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for e.Kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrReverted:
		return e.Kind == KindReverted
	case ErrOutOfResources:
		return e.Kind == KindOutOfResources
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	}
	return false
}

// KindOf returns the Kind of a ledger error, or "" if err is not one.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}
