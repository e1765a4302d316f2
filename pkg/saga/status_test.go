package saga

import "testing"

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusURLGenerated, false},
		{StatusInvoiceReceived, false},
		{StatusInvoiceProcessed, true},
		{StatusFailNoInvoiceNumber, true},
		{StatusTimeout, true},
	}

	for _, tt := range tests {
		if got := tt.status.Terminal(); got != tt.terminal {
			t.Errorf("Terminal(%s) = %v, want %v", tt.status, got, tt.terminal)
		}
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    Status
		to      Status
		allowed bool
	}{
		{"url generated to received", StatusURLGenerated, StatusInvoiceReceived, true},
		{"received to processed", StatusInvoiceReceived, StatusInvoiceProcessed, true},
		{"received to fail", StatusInvoiceReceived, StatusFailNoInvoiceNumber, true},
		{"url generated to fail", StatusURLGenerated, StatusFailNoInvoiceNumber, true},
		{"url generated to processed skips received", StatusURLGenerated, StatusInvoiceProcessed, false},
		{"processed is absorbing", StatusInvoiceProcessed, StatusInvoiceReceived, false},
		{"fail is absorbing", StatusFailNoInvoiceNumber, StatusInvoiceReceived, false},
		{"no transition into url generated", StatusInvoiceReceived, StatusURLGenerated, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CanTransition(tt.from, tt.to); got != tt.allowed {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestClassifyExpiry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lastStatus Status
		want       ExpiryClass
	}{
		{StatusURLGenerated, ExpiryTimeout},
		{StatusInvoiceReceived, ExpiryTimeout},
		{StatusInvoiceProcessed, ExpiryCleanup},
		{StatusFailNoInvoiceNumber, ExpiryCleanup},
		{StatusTimeout, ExpiryCleanup},
	}

	for _, tt := range tests {
		if got := ClassifyExpiry(tt.lastStatus); got != tt.want {
			t.Errorf("ClassifyExpiry(%s) = %v, want %v", tt.lastStatus, got, tt.want)
		}
	}
}

func TestIsInvoiceKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pk   string
		want bool
	}{
		{"#invoiceAcme", true},
		{"#invoice", true},
		{"#transaction", false},
		{"#order_1", false},
	}

	for _, tt := range tests {
		if got := IsInvoiceKey(tt.pk); got != tt.want {
			t.Errorf("IsInvoiceKey(%q) = %v, want %v", tt.pk, got, tt.want)
		}
	}

	if got := CustomerFromInvoiceKey("#invoiceAcme"); got != "Acme" {
		t.Errorf("CustomerFromInvoiceKey = %q, want %q", got, "Acme")
	}
}
