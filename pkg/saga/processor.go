package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/pkg/audit"
	"github.com/commercelab/invoice-saga/pkg/notify"
)

// Processor is the upload completion reactor. It owns every transition after
// URL_GENERATED: it validates the landed payload, advances the state machine,
// persists the entity and removes the temporary object.
type Processor struct {
	transactions TransactionStore
	invoices     InvoiceStore
	objects      ObjectStore
	notifier     notify.Notifier
	bus          audit.Bus
	log          zerolog.Logger
}

// NewProcessor creates a Processor.
func NewProcessor(transactions TransactionStore, invoices InvoiceStore, objects ObjectStore, notifier notify.Notifier, bus audit.Bus, log zerolog.Logger) *Processor {
	return &Processor{
		transactions: transactions,
		invoices:     invoices,
		objects:      objects,
		notifier:     notifier,
		bus:          bus,
		log:          log,
	}
}

// HandleUpload reacts to an object landing under key, which is the
// transaction id. The object is deleted whatever the outcome; a missing
// transaction record is an unsolicited upload and produces no store write.
// Store errors are returned so the object-store trigger redelivers.
func (p *Processor) HandleUpload(ctx context.Context, bucket, key string) error {
	log := p.log.With().Str("transactionId", key).Logger()

	tx, err := p.transactions.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrTransactionNotFound) {
			return fmt.Errorf("failed to read transaction %s: %w", key, err)
		}
		// Unsolicited or already-expired upload. Still consume the object so
		// no copies are retained.
		log.Warn().Msg("upload landed without a transaction record")
		tx = nil
	}

	body, err := p.objects.Get(ctx, bucket, key)
	if err != nil {
		return fmt.Errorf("failed to fetch object %s/%s: %w", bucket, key, err)
	}
	defer func() {
		if err := p.objects.Delete(ctx, bucket, key); err != nil {
			log.Error().Err(err).Msg("failed to delete uploaded object")
		}
	}()

	// An unparsable body and a missing invoice number are both validation
	// failures, recorded as terminal status rather than surfaced as errors.
	var payload InvoicePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn().Err(err).Msg("uploaded payload is not valid JSON")
	}

	if tx == nil {
		// No record means no saga: nothing may be written on behalf of an
		// upload nobody asked for.
		return nil
	}

	// Commit INVOICE_RECEIVED and dispatch its notification before the
	// entity exists, so no observer sees processed before received.
	if err := p.advance(ctx, tx, StatusInvoiceReceived); err != nil {
		if !errors.Is(err, ErrStaleTransaction) {
			return err
		}
		// The store evicted the record between read and write. Do not
		// resurrect it; the eviction's feed event owns the timeout signal.
		log.Warn().Msg("transaction disappeared before processing; dropping")
		return nil
	}

	if payload.InvoiceNumber == "" {
		log.Warn().Msg("uploaded payload has no invoice number")
		if err := p.advance(ctx, tx, StatusFailNoInvoiceNumber); err != nil && !errors.Is(err, ErrStaleTransaction) {
			return err
		}
		if err := p.bus.Publish(ctx, audit.InvoiceValidationFailure(tx.ID)); err != nil {
			log.Warn().Err(err).Msg("failed to publish validation-failure audit event")
		}
		p.disconnect(ctx, tx)
		return nil
	}

	inv := NewInvoice(&payload, key, time.Now())
	if err := p.invoices.Create(ctx, inv); err != nil {
		return fmt.Errorf("failed to create invoice %s: %w", payload.InvoiceNumber, err)
	}

	if err := p.advance(ctx, tx, StatusInvoiceProcessed); err != nil && !errors.Is(err, ErrStaleTransaction) {
		return err
	}

	log.Info().Str("invoiceNumber", payload.InvoiceNumber).Msg("invoice processed")
	return nil
}

// advance commits the status transition, then pushes it to the client when a
// connection backs the transaction. The push is best effort; the committed
// status is authoritative.
func (p *Processor) advance(ctx context.Context, tx *Transaction, status Status) error {
	if err := p.transactions.UpdateStatus(ctx, tx.ID, status); err != nil {
		if errors.Is(err, ErrStaleTransaction) {
			return err
		}
		return fmt.Errorf("failed to update transaction %s to %s: %w", tx.ID, status, err)
	}

	if tx.ConnectionOriented() {
		err := notify.SendStatus(ctx, p.notifier, tx.Endpoint, tx.ConnectionID, tx.ID, string(status))
		if err != nil {
			p.log.Warn().Err(err).Str("transactionId", tx.ID).Str("status", string(status)).
				Msg("status push failed")
		}
	}
	return nil
}

func (p *Processor) disconnect(ctx context.Context, tx *Transaction) {
	if !tx.ConnectionOriented() {
		return
	}
	if err := p.notifier.Disconnect(ctx, tx.Endpoint, tx.ConnectionID); err != nil {
		p.log.Warn().Err(err).Str("transactionId", tx.ID).Msg("failed to disconnect client")
	}
}
