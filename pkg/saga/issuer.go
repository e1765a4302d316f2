package saga

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// IssueInput carries the per-request inputs of slot issuance. ConnectionID and
// Endpoint are set only by the connection-oriented adapter.
type IssueInput struct {
	RequestID    string
	ConnectionID string
	Endpoint     string
}

// Slot is the issued upload slot returned to the client.
type Slot struct {
	URL           string `json:"url"`
	ExpiresIn     int64  `json:"expiresIn"`
	TransactionID string `json:"transactionId"`
}

// IssuerConfig sets the bucket and the slot lifetimes. RecordTTL is shorter
// for connection-oriented flows, where the client session bounds the saga.
type IssuerConfig struct {
	Bucket       string
	URLExpiresIn time.Duration
	RecordTTL    time.Duration
}

// Issuer mints upload slots: a fresh transaction id, a presigned PUT URL for
// it, and a URL_GENERATED record.
type Issuer struct {
	cfg          IssuerConfig
	transactions TransactionStore
	objects      ObjectStore
	log          zerolog.Logger
}

// NewIssuer creates an Issuer.
func NewIssuer(cfg IssuerConfig, transactions TransactionStore, objects ObjectStore, log zerolog.Logger) *Issuer {
	return &Issuer{
		cfg:          cfg,
		transactions: transactions,
		objects:      objects,
		log:          log,
	}
}

// Issue allocates a slot. The record write commits before the slot is
// returned; on failure no slot is handed out, so no reader can observe a
// credential without its record.
func (i *Issuer) Issue(ctx context.Context, input IssueInput) (*Slot, error) {
	key := uuid.New().String()

	url, err := i.objects.PresignUpload(ctx, i.cfg.Bucket, key, i.cfg.URLExpiresIn)
	if err != nil {
		return nil, fmt.Errorf("failed to presign upload for %s: %w", key, err)
	}

	tx := NewTransaction(key, input.RequestID, i.cfg.URLExpiresIn, i.cfg.RecordTTL, time.Now())
	tx.ConnectionID = input.ConnectionID
	tx.Endpoint = input.Endpoint

	if err := i.transactions.Create(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to create transaction %s: %w", key, err)
	}

	i.log.Info().
		Str("transactionId", key).
		Str("requestId", input.RequestID).
		Bool("connectionOriented", tx.ConnectionOriented()).
		Msg("upload slot issued")

	return &Slot{
		URL:           url,
		ExpiresIn:     int64(i.cfg.URLExpiresIn.Seconds()),
		TransactionID: key,
	}, nil
}
