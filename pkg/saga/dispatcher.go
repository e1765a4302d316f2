package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/pkg/audit"
	"github.com/commercelab/invoice-saga/pkg/events"
	"github.com/commercelab/invoice-saga/pkg/notify"
)

// Change-feed event names, matching the store's stream vocabulary.
const (
	ChangeInsert = "INSERT"
	ChangeModify = "MODIFY"
	ChangeRemove = "REMOVE"
)

// ChangeRecord is one change-feed entry, flattened to the string attributes
// the dispatcher classifies on. Eviction is a first-class signal here: a
// REMOVE's old image carries the record's last status.
type ChangeRecord struct {
	EventName string            `json:"eventName"`
	PK        string            `json:"pk"`
	SK        string            `json:"sk"`
	Old       map[string]string `json:"old,omitempty"`
	New       map[string]string `json:"new,omitempty"`
}

// DeadLetter is the destination for feed records that exhausted the retry
// budget. Entries are reprocessed out-of-band, never by the dispatcher.
type DeadLetter interface {
	Send(ctx context.Context, body []byte) error
}

// DispatcherConfig bounds the bisection retry.
type DispatcherConfig struct {
	// RetryAttempts is how many times an irreducible record is re-attempted
	// before going to the dead-letter destination.
	RetryAttempts int
}

// Dispatcher consumes the transaction table's change feed: it turns invoice
// inserts into audit event rows and transaction evictions into TIMEOUT
// notifications and connection teardown.
type Dispatcher struct {
	cfg        DispatcherConfig
	notifier   notify.Notifier
	appender   events.Appender
	bus        audit.Bus
	deadLetter DeadLetter
	log        zerolog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg DispatcherConfig, notifier notify.Notifier, appender events.Appender, bus audit.Bus, deadLetter DeadLetter, log zerolog.Logger) *Dispatcher {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	return &Dispatcher{
		cfg:        cfg,
		notifier:   notifier,
		appender:   appender,
		bus:        bus,
		deadLetter: deadLetter,
		log:        log,
	}
}

// HandleBatch processes a feed batch. On failure the batch is halved and the
// halves retried, recursing until single records remain; a single record that
// still fails after the attempt ceiling is dead-lettered. Halves are handled
// left to right so per-key order survives the bisection. Record handling is
// idempotent, so re-running the already-succeeded prefix of a failed half is
// safe; that is the acknowledgement strategy.
func (d *Dispatcher) HandleBatch(ctx context.Context, records []ChangeRecord) error {
	if len(records) == 0 {
		return nil
	}
	d.dispatch(ctx, records)
	return nil
}

func (d *Dispatcher) dispatch(ctx context.Context, records []ChangeRecord) {
	err := d.processAll(ctx, records)
	if err == nil {
		return
	}

	if len(records) == 1 {
		d.retrySingle(ctx, records[0], err)
		return
	}

	d.log.Warn().Err(err).Int("batchSize", len(records)).Msg("batch failed, bisecting")
	mid := len(records) / 2
	d.dispatch(ctx, records[:mid])
	d.dispatch(ctx, records[mid:])
}

func (d *Dispatcher) processAll(ctx context.Context, records []ChangeRecord) error {
	for i := range records {
		if err := d.handleRecord(ctx, &records[i]); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) retrySingle(ctx context.Context, rec ChangeRecord, firstErr error) {
	err := firstErr
	for attempt := 1; attempt < d.cfg.RetryAttempts; attempt++ {
		if err = d.handleRecord(ctx, &rec); err == nil {
			return
		}
	}

	d.log.Error().Err(err).Str("pk", rec.PK).Str("sk", rec.SK).
		Int("attempts", d.cfg.RetryAttempts).
		Msg("record exhausted retries, routing to dead letter")

	body, merr := json.Marshal(rec)
	if merr != nil {
		d.log.Error().Err(merr).Msg("failed to marshal dead-letter record")
		return
	}
	if derr := d.deadLetter.Send(ctx, body); derr != nil {
		d.log.Error().Err(derr).Str("sk", rec.SK).Msg("failed to route record to dead letter")
	}
}

// handleRecord classifies one feed record by event name and key prefix.
func (d *Dispatcher) handleRecord(ctx context.Context, rec *ChangeRecord) error {
	switch rec.EventName {
	case ChangeInsert:
		if IsInvoiceKey(rec.PK) {
			return d.recordInvoiceCreated(ctx, rec)
		}
	case ChangeRemove:
		if rec.PK == TransactionPK {
			return d.handleTransactionRemoval(ctx, rec)
		}
	}
	// MODIFY transitions are already notified by the reactor that wrote
	// them; inserts of transaction records carry no downstream action.
	return nil
}

// recordInvoiceCreated appends the INVOICE_CREATED audit event for a freshly
// persisted invoice. The key derives from the invoice's own identity, so a
// replayed INSERT rewrites the same row.
func (d *Dispatcher) recordInvoiceCreated(ctx context.Context, rec *ChangeRecord) error {
	createdAt := time.Now()
	if ms, ok := parseMillis(rec.New["createdAt"]); ok {
		createdAt = ms
	}

	event := events.NewRecord(
		events.InvoiceKeyPrefix+rec.SK,
		events.InvoiceCreated,
		CustomerFromInvoiceKey(rec.PK),
		"",
		createdAt,
		map[string]string{
			"transactionId": rec.New["transactionId"],
			"productId":     rec.New["productId"],
		},
	)
	if err := d.appender.Append(ctx, event); err != nil {
		return fmt.Errorf("failed to record invoice event for %s: %w", rec.SK, err)
	}
	return nil
}

// handleTransactionRemoval reacts to the store evicting a transaction record.
// A terminal last status is routine cleanup; anything else is the saga's
// TIMEOUT and the only place it is produced.
func (d *Dispatcher) handleTransactionRemoval(ctx context.Context, rec *ChangeRecord) error {
	lastStatus := Status(rec.Old["transactionStatus"])
	transactionID := rec.SK

	if ClassifyExpiry(lastStatus) == ExpiryCleanup {
		d.log.Debug().Str("transactionId", transactionID).Str("lastStatus", string(lastStatus)).
			Msg("terminal transaction evicted")
		return nil
	}

	d.log.Warn().Str("transactionId", transactionID).Str("lastStatus", string(lastStatus)).
		Msg("invoice import timed out")

	if err := d.bus.Publish(ctx, audit.InvoiceTimeout(transactionID, string(lastStatus))); err != nil {
		return fmt.Errorf("failed to publish timeout audit event for %s: %w", transactionID, err)
	}

	connectionID, endpoint := rec.Old["connectionId"], rec.Old["endpoint"]
	if connectionID == "" || endpoint == "" {
		return nil
	}

	// Best-effort push then teardown. A gone connection means the client
	// left first; both are no-ops then.
	if err := notify.SendStatus(ctx, d.notifier, endpoint, connectionID, transactionID, string(StatusTimeout)); err != nil {
		if !errors.Is(err, notify.ErrConnectionGone) {
			return fmt.Errorf("failed to push timeout for %s: %w", transactionID, err)
		}
		d.log.Info().Str("transactionId", transactionID).Msg("client already disconnected")
		return nil
	}
	if err := d.notifier.Disconnect(ctx, endpoint, connectionID); err != nil && !errors.Is(err, notify.ErrConnectionGone) {
		d.log.Warn().Err(err).Str("transactionId", transactionID).Msg("failed to disconnect timed-out client")
	}
	return nil
}

func parseMillis(s string) (time.Time, bool) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMilli(ms), true
}
