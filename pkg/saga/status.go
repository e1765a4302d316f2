package saga

// Status is the state of an invoice import transaction.
type Status string

const (
	// StatusURLGenerated means an upload slot was issued and the client has
	// not uploaded yet.
	StatusURLGenerated Status = "URL_GENERATED"
	// StatusInvoiceReceived means the uploaded object landed and is being
	// processed.
	StatusInvoiceReceived Status = "INVOICE_RECEIVED"
	// StatusInvoiceProcessed is the successful terminal state.
	StatusInvoiceProcessed Status = "INVOICE_PROCESSED"
	// StatusFailNoInvoiceNumber is the terminal state for payloads missing
	// the invoice number.
	StatusFailNoInvoiceNumber Status = "FAIL_NO_INVOICE_NUMBER"
	// StatusTimeout is the implicit terminal state reached when the record's
	// TTL evicts it before processing completes. It is never written to the
	// store; it only exists as a classification of the eviction.
	StatusTimeout Status = "TIMEOUT"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusInvoiceProcessed, StatusFailNoInvoiceNumber, StatusTimeout:
		return true
	}
	return false
}

// transitions maps a target status to the statuses it may be reached from.
var transitions = map[Status][]Status{
	StatusInvoiceReceived:     {StatusURLGenerated},
	StatusInvoiceProcessed:    {StatusInvoiceReceived},
	StatusFailNoInvoiceNumber: {StatusInvoiceReceived, StatusURLGenerated},
}

// CanTransition reports whether moving from one status to another is a
// documented transition. Terminal states are absorbing.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[to] {
		if s == from {
			return true
		}
	}
	return false
}

// AllowedFrom returns the statuses from which to may be reached, used by
// stores to build conditional writes.
func AllowedFrom(to Status) []Status {
	return transitions[to]
}

// ExpiryClass is the outcome of classifying a TTL eviction.
type ExpiryClass int

const (
	// ExpiryCleanup means the evicted record was already terminal; nothing
	// to signal.
	ExpiryCleanup ExpiryClass = iota
	// ExpiryTimeout means the transaction never completed and must be
	// surfaced as a TIMEOUT.
	ExpiryTimeout
)

// ClassifyExpiry classifies a record eviction by the record's last known
// status. Only a non-terminal last status is a real timeout; eviction of a
// completed transaction is routine cleanup.
func ClassifyExpiry(lastStatus Status) ExpiryClass {
	if lastStatus.Terminal() {
		return ExpiryCleanup
	}
	return ExpiryTimeout
}
