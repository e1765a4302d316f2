// Package audit publishes operator-visible failure events to the audit event
// bus: invoice import timeouts, invalid invoices, and rejected orders.
package audit

import "context"

// Sources and detail types matched by the bus rules.
const (
	SourceInvoice     = "app.invoice"
	SourceOrder       = "app.order"
	DetailTypeInvoice = "invoice"
	DetailTypeOrder   = "order"
)

// Entry is one audit event.
type Entry struct {
	Source     string
	DetailType string
	Detail     map[string]string
}

// Bus publishes audit entries. Publication is best effort on hot paths; a
// failed audit publish never fails the saga.
type Bus interface {
	Publish(ctx context.Context, entry Entry) error
}

// InvoiceTimeout builds the entry for a transaction that expired before
// reaching a terminal state.
func InvoiceTimeout(transactionID string, lastStatus string) Entry {
	return Entry{
		Source:     SourceInvoice,
		DetailType: DetailTypeInvoice,
		Detail: map[string]string{
			"errorDetail":   "TIMEOUT",
			"transactionId": transactionID,
			"lastStatus":    lastStatus,
		},
	}
}

// InvoiceValidationFailure builds the entry for an uploaded payload missing
// its invoice number.
func InvoiceValidationFailure(transactionID string) Entry {
	return Entry{
		Source:     SourceInvoice,
		DetailType: DetailTypeInvoice,
		Detail: map[string]string{
			"errorDetail":   "FAIL_NO_INVOICE_NUMBER",
			"transactionId": transactionID,
		},
	}
}

// OrderProductNotFound builds the entry for an order naming unknown products.
func OrderProductNotFound(username, requestID string) Entry {
	return Entry{
		Source:     SourceOrder,
		DetailType: DetailTypeOrder,
		Detail: map[string]string{
			"reason":    "PRODUCT_NOT_FOUND",
			"username":  username,
			"requestId": requestID,
		},
	}
}
