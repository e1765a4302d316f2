// Package saga implements the invoice import transaction: slot issuance, the
// upload completion state machine, and the change-feed dispatcher reacting to
// transitions and TTL evictions. Thin per-trigger Lambda adapters construct
// the types here and feed them events; all transition logic lives in this
// package regardless of which trigger fired.
package saga

import (
	"context"
	"errors"
	"time"
)

// Domain error taxonomy. Store implementations map provider errors onto
// these; callers branch with errors.Is.
var (
	// ErrTransactionNotFound is returned when no record exists for an id,
	// e.g. an unsolicited upload or an already-evicted transaction.
	ErrTransactionNotFound = errors.New("transaction not found")

	// ErrStaleTransaction is returned by conditional status writes when the
	// record no longer exists or already reached a terminal state. Writers
	// must treat it as a benign no-op, never overwrite.
	ErrStaleTransaction = errors.New("transaction missing or already terminal")

	// ErrStoreUnavailable wraps transient store failures; the trigger
	// source's retry handles them, tasks never retry internally.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// TransactionStore persists saga records. Mutations follow read-validate-write:
// UpdateStatus is conditional on the record still existing in a status the
// target may be reached from.
type TransactionStore interface {
	Create(ctx context.Context, tx *Transaction) error
	Get(ctx context.Context, id string) (*Transaction, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}

// InvoiceStore persists parsed invoice entities.
type InvoiceStore interface {
	Create(ctx context.Context, inv *Invoice) error
}

// ObjectStore is the upload bucket boundary: minting write-capable upload
// URLs and fetching/removing landed objects. It is a side-effect sink with no
// read-modify-write contract.
type ObjectStore interface {
	PresignUpload(ctx context.Context, bucket, key string, expires time.Duration) (string, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Delete(ctx context.Context, bucket, key string) error
}
