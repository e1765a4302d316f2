package saga

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/commercelab/invoice-saga/pkg/audit"
	"github.com/commercelab/invoice-saga/pkg/events"
	"github.com/commercelab/invoice-saga/pkg/notify"
)

// journal records the order of side effects across fakes, so tests can assert
// cross-store ordering invariants.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...interface{}) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) indexOf(entry string) int {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i, e := range j.entries {
		if e == entry {
			return i
		}
	}
	return -1
}

type fakeTransactionStore struct {
	mu        sync.Mutex
	journal   *journal
	records   map[string]*Transaction
	createErr error
	updateErr error
}

func newFakeTransactionStore(j *journal) *fakeTransactionStore {
	return &fakeTransactionStore{journal: j, records: make(map[string]*Transaction)}
}

func (s *fakeTransactionStore) Create(ctx context.Context, tx *Transaction) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tx
	s.records[tx.ID] = &cp
	s.journal.add("transactions.create %s", tx.ID)
	return nil
}

func (s *fakeTransactionStore) Get(ctx context.Context, id string) (*Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.records[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	cp := *tx
	return &cp, nil
}

func (s *fakeTransactionStore) UpdateStatus(ctx context.Context, id string, status Status) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.records[id]
	if !ok {
		return ErrStaleTransaction
	}
	if !CanTransition(tx.Status, status) {
		return ErrStaleTransaction
	}
	tx.Status = status
	s.journal.add("transactions.update %s %s", id, status)
	return nil
}

func (s *fakeTransactionStore) status(id string) Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.records[id]
	if !ok {
		return ""
	}
	return tx.Status
}

type fakeInvoiceStore struct {
	mu        sync.Mutex
	journal   *journal
	created   []*Invoice
	createErr error
}

func (s *fakeInvoiceStore) Create(ctx context.Context, inv *Invoice) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, inv)
	s.journal.add("invoices.create %s", inv.InvoiceNumber)
	return nil
}

type fakeObjectStore struct {
	mu         sync.Mutex
	journal    *journal
	objects    map[string][]byte
	deleted    []string
	presignErr error
	getErr     error
}

func newFakeObjectStore(j *journal) *fakeObjectStore {
	return &fakeObjectStore{journal: j, objects: make(map[string][]byte)}
}

func objectKey(bucket, key string) string { return bucket + "/" + key }

func (s *fakeObjectStore) put(bucket, key string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[objectKey(bucket, key)] = body
}

func (s *fakeObjectStore) PresignUpload(ctx context.Context, bucket, key string, expires time.Duration) (string, error) {
	if s.presignErr != nil {
		return "", s.presignErr
	}
	return "https://signed.example/" + bucket + "/" + key, nil
}

func (s *fakeObjectStore) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	body, ok := s.objects[objectKey(bucket, key)]
	if !ok {
		return nil, errors.New("object not found")
	}
	return body, nil
}

func (s *fakeObjectStore) Delete(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, objectKey(bucket, key))
	s.deleted = append(s.deleted, objectKey(bucket, key))
	s.journal.add("objects.delete %s", key)
	return nil
}

type push struct {
	Endpoint     string
	ConnectionID string
	Data         string
}

type fakeNotifier struct {
	mu            sync.Mutex
	journal       *journal
	posts         []push
	disconnects   []string
	postErr       error
	disconnectErr error
}

func (n *fakeNotifier) Post(ctx context.Context, endpoint, connectionID string, data []byte) error {
	if n.postErr != nil {
		return n.postErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.posts = append(n.posts, push{Endpoint: endpoint, ConnectionID: connectionID, Data: string(data)})
	n.journal.add("notifier.post %s", connectionID)
	return nil
}

func (n *fakeNotifier) Disconnect(ctx context.Context, endpoint, connectionID string) error {
	if n.disconnectErr != nil {
		return n.disconnectErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disconnects = append(n.disconnects, connectionID)
	n.journal.add("notifier.disconnect %s", connectionID)
	return nil
}

var _ notify.Notifier = (*fakeNotifier)(nil)

type fakeAppender struct {
	mu       sync.Mutex
	appended []*events.Record
	// failFor injects a failure for records with the given pk; failures
	// decrement remaining so retries can eventually succeed.
	failFor   string
	remaining int
}

func (a *fakeAppender) Append(ctx context.Context, rec *events.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.failFor != "" && rec.PK == a.failFor && a.remaining != 0 {
		if a.remaining > 0 {
			a.remaining--
		}
		return errors.New("append failed")
	}
	a.appended = append(a.appended, rec)
	return nil
}

type fakeBus struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
}

func (b *fakeBus) Publish(ctx context.Context, entry audit.Entry) error {
	if b.err != nil {
		return b.err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append(b.entries, entry)
	return nil
}

type fakeDeadLetter struct {
	mu     sync.Mutex
	bodies []string
}

func (d *fakeDeadLetter) Send(ctx context.Context, body []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bodies = append(d.bodies, string(body))
	return nil
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
