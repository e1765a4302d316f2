package saga

import (
	"context"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/commercelab/invoice-saga/pkg/events"
	"github.com/commercelab/invoice-saga/pkg/notify"
)

func newTestDispatcher(j *journal) (*Dispatcher, *fakeNotifier, *fakeAppender, *fakeBus, *fakeDeadLetter) {
	notifier := &fakeNotifier{journal: j}
	appender := &fakeAppender{}
	bus := &fakeBus{}
	dl := &fakeDeadLetter{}
	d := NewDispatcher(DispatcherConfig{RetryAttempts: 3}, notifier, appender, bus, dl, testLogger())
	return d, notifier, appender, bus, dl
}

func invoiceInsert(invoiceNumber, customer, transactionID string, createdAt time.Time) ChangeRecord {
	return ChangeRecord{
		EventName: ChangeInsert,
		PK:        InvoicePKPrefix + customer,
		SK:        invoiceNumber,
		New: map[string]string{
			"createdAt":     strconv.FormatInt(createdAt.UnixMilli(), 10),
			"transactionId": transactionID,
			"productId":     "p-1",
		},
	}
}

func transactionRemove(id string, lastStatus Status, connectionID, endpoint string) ChangeRecord {
	old := map[string]string{"transactionStatus": string(lastStatus)}
	if connectionID != "" {
		old["connectionId"] = connectionID
		old["endpoint"] = endpoint
	}
	return ChangeRecord{EventName: ChangeRemove, PK: TransactionPK, SK: id, Old: old}
}

func TestHandleBatchInvoiceInsert(t *testing.T) {
	t.Parallel()

	j := &journal{}
	d, _, appender, _, dl := newTestDispatcher(j)
	createdAt := time.UnixMilli(1724800000000)

	err := d.HandleBatch(context.Background(), []ChangeRecord{
		invoiceInsert("INV-1", "Acme", "tx-1", createdAt),
	})
	if err != nil {
		t.Fatalf("HandleBatch returned error: %v", err)
	}

	if len(appender.appended) != 1 {
		t.Fatalf("appended %d events, want 1", len(appender.appended))
	}
	rec := appender.appended[0]
	if rec.PK != events.InvoiceKeyPrefix+"INV-1" {
		t.Errorf("event pk = %s, want %s", rec.PK, events.InvoiceKeyPrefix+"INV-1")
	}
	if rec.EventType != events.InvoiceCreated {
		t.Errorf("event type = %s, want %s", rec.EventType, events.InvoiceCreated)
	}
	if rec.Username != "Acme" {
		t.Errorf("event username = %s, want Acme", rec.Username)
	}
	if rec.CreatedAt != createdAt.UnixMilli() {
		t.Errorf("event createdAt = %d, want the image's timestamp %d", rec.CreatedAt, createdAt.UnixMilli())
	}
	if rec.Info["transactionId"] != "tx-1" {
		t.Errorf("event info transactionId = %s, want tx-1", rec.Info["transactionId"])
	}
	if len(dl.bodies) != 0 {
		t.Errorf("dead letter received %d bodies, want 0", len(dl.bodies))
	}
}

func TestHandleBatchTimeoutRemoval(t *testing.T) {
	t.Parallel()

	j := &journal{}
	d, notifier, _, bus, _ := newTestDispatcher(j)

	err := d.HandleBatch(context.Background(), []ChangeRecord{
		transactionRemove("tx-1", StatusURLGenerated, "conn-1", "ws.example.com/prod"),
	})
	if err != nil {
		t.Fatalf("HandleBatch returned error: %v", err)
	}

	if len(bus.entries) != 1 {
		t.Fatalf("published %d audit entries, want 1", len(bus.entries))
	}
	if bus.entries[0].Detail["errorDetail"] != "TIMEOUT" || bus.entries[0].Detail["transactionId"] != "tx-1" {
		t.Errorf("unexpected audit entry: %+v", bus.entries[0])
	}

	if len(notifier.posts) != 1 {
		t.Fatalf("pushed %d notifications, want exactly 1", len(notifier.posts))
	}
	if !strings.Contains(notifier.posts[0].Data, string(StatusTimeout)) {
		t.Errorf("push = %s, want a %s message", notifier.posts[0].Data, StatusTimeout)
	}
	if len(notifier.disconnects) != 1 {
		t.Errorf("disconnects = %d, want 1", len(notifier.disconnects))
	}
}

func TestHandleBatchTerminalEvictionIsNoOp(t *testing.T) {
	t.Parallel()

	j := &journal{}
	d, notifier, appender, bus, dl := newTestDispatcher(j)

	for _, last := range []Status{StatusInvoiceProcessed, StatusFailNoInvoiceNumber} {
		err := d.HandleBatch(context.Background(), []ChangeRecord{
			transactionRemove("tx-done", last, "conn-1", "ws.example.com/prod"),
		})
		if err != nil {
			t.Fatalf("HandleBatch(%s) returned error: %v", last, err)
		}
	}

	if len(bus.entries) != 0 {
		t.Errorf("published %d audit entries for terminal evictions, want 0", len(bus.entries))
	}
	if len(notifier.posts) != 0 || len(notifier.disconnects) != 0 {
		t.Errorf("terminal eviction touched the connection: posts=%d disconnects=%d",
			len(notifier.posts), len(notifier.disconnects))
	}
	if len(appender.appended) != 0 || len(dl.bodies) != 0 {
		t.Errorf("terminal eviction produced side effects")
	}
}

func TestHandleBatchTimeoutWithoutConnection(t *testing.T) {
	t.Parallel()

	j := &journal{}
	d, notifier, _, bus, _ := newTestDispatcher(j)

	err := d.HandleBatch(context.Background(), []ChangeRecord{
		transactionRemove("tx-rest", StatusInvoiceReceived, "", ""),
	})
	if err != nil {
		t.Fatalf("HandleBatch returned error: %v", err)
	}

	if len(bus.entries) != 1 {
		t.Errorf("published %d audit entries, want 1", len(bus.entries))
	}
	if len(notifier.posts) != 0 {
		t.Errorf("pushed %d notifications for a connection-less transaction, want 0", len(notifier.posts))
	}
}

func TestHandleBatchGoneConnection(t *testing.T) {
	t.Parallel()

	j := &journal{}
	d, notifier, _, bus, dl := newTestDispatcher(j)
	notifier.postErr = notify.ErrConnectionGone

	err := d.HandleBatch(context.Background(), []ChangeRecord{
		transactionRemove("tx-gone", StatusURLGenerated, "conn-1", "ws.example.com/prod"),
	})
	if err != nil {
		t.Fatalf("HandleBatch returned error: %v", err)
	}

	// The timeout is still audited; the vanished client is not an error.
	if len(bus.entries) != 1 {
		t.Errorf("published %d audit entries, want 1", len(bus.entries))
	}
	if len(notifier.disconnects) != 0 {
		t.Errorf("disconnected a gone connection")
	}
	if len(dl.bodies) != 0 {
		t.Errorf("dead-lettered a gone-connection record")
	}
}

func TestHandleBatchBisectsToDeadLetter(t *testing.T) {
	t.Parallel()

	j := &journal{}
	d, _, appender, _, dl := newTestDispatcher(j)
	createdAt := time.UnixMilli(1724800000000)

	// The third of five records fails on every attempt.
	appender.failFor = events.InvoiceKeyPrefix + "INV-3"
	appender.remaining = -1

	records := []ChangeRecord{
		invoiceInsert("INV-1", "Acme", "tx-1", createdAt),
		invoiceInsert("INV-2", "Acme", "tx-2", createdAt),
		invoiceInsert("INV-3", "Acme", "tx-3", createdAt),
		invoiceInsert("INV-4", "Globex", "tx-4", createdAt),
		invoiceInsert("INV-5", "Globex", "tx-5", createdAt),
	}
	if err := d.HandleBatch(context.Background(), records); err != nil {
		t.Fatalf("HandleBatch returned error: %v", err)
	}

	// Exactly one record is dead-lettered, and it is the poison one.
	if len(dl.bodies) != 1 {
		t.Fatalf("dead-lettered %d records, want 1", len(dl.bodies))
	}
	if !strings.Contains(dl.bodies[0], `"INV-3"`) {
		t.Errorf("dead-lettered body = %s, want the INV-3 record", dl.bodies[0])
	}

	// Every healthy record was appended at least once; replays of the
	// already-succeeded prefix rewrite the same key.
	seen := make(map[string]bool)
	for _, rec := range appender.appended {
		seen[rec.PK] = true
	}
	for _, n := range []string{"INV-1", "INV-2", "INV-4", "INV-5"} {
		if !seen[events.InvoiceKeyPrefix+n] {
			t.Errorf("healthy record %s never appended", n)
		}
	}
	if seen[events.InvoiceKeyPrefix+"INV-3"] {
		t.Errorf("poison record was appended")
	}
}

func TestHandleBatchRetryRecovers(t *testing.T) {
	t.Parallel()

	j := &journal{}
	d, _, appender, _, dl := newTestDispatcher(j)
	createdAt := time.UnixMilli(1724800000000)

	// Two transient failures, then success; within the attempt budget.
	appender.failFor = events.InvoiceKeyPrefix + "INV-1"
	appender.remaining = 2

	err := d.HandleBatch(context.Background(), []ChangeRecord{
		invoiceInsert("INV-1", "Acme", "tx-1", createdAt),
	})
	if err != nil {
		t.Fatalf("HandleBatch returned error: %v", err)
	}

	if len(dl.bodies) != 0 {
		t.Errorf("dead-lettered %d records after recovery, want 0", len(dl.bodies))
	}
	if len(appender.appended) != 1 {
		t.Errorf("appended %d events, want 1", len(appender.appended))
	}
}

func TestHandleBatchIgnoresModify(t *testing.T) {
	t.Parallel()

	j := &journal{}
	d, notifier, appender, bus, dl := newTestDispatcher(j)

	err := d.HandleBatch(context.Background(), []ChangeRecord{
		{EventName: ChangeModify, PK: TransactionPK, SK: "tx-1",
			New: map[string]string{"transactionStatus": string(StatusInvoiceReceived)}},
		{EventName: ChangeInsert, PK: TransactionPK, SK: "tx-2"},
	})
	if err != nil {
		t.Fatalf("HandleBatch returned error: %v", err)
	}

	if len(appender.appended) != 0 || len(bus.entries) != 0 ||
		len(notifier.posts) != 0 || len(dl.bodies) != 0 {
		t.Errorf("status transitions and transaction inserts must be no-ops for the feed")
	}
}
