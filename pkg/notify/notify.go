// Package notify defines the notification layer pushing saga status to
// clients over a persistent connection. Delivery is best effort: the durable
// transaction record is the source of truth, a lost push is never retried.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrConnectionGone means the client already disconnected. Callers log and
// swallow it.
var ErrConnectionGone = errors.New("connection gone")

// StatusMessage is the payload pushed to the client on every transition.
type StatusMessage struct {
	TransactionID string `json:"transactionId"`
	Status        string `json:"status"`
}

// SlotMessage is pushed in response to a connection-oriented slot request,
// since a WebSocket route has no request/response channel.
type SlotMessage struct {
	URL           string `json:"url"`
	ExpiresIn     int64  `json:"expiresIn"`
	TransactionID string `json:"transactionId"`
}

// Notifier reaches a client over its connection handle. Endpoint identifies
// the gateway the connection lives on; it is captured on the transaction
// record at issuance time.
type Notifier interface {
	// Post pushes data to the connection.
	Post(ctx context.Context, endpoint, connectionID string, data []byte) error
	// Disconnect actively closes the connection, used on timeout and hard
	// failure so client resources are not held for a saga that cannot
	// complete.
	Disconnect(ctx context.Context, endpoint, connectionID string) error
}

// SendStatus pushes a StatusMessage for the given transaction.
func SendStatus(ctx context.Context, n Notifier, endpoint, connectionID, transactionID, status string) error {
	data, err := json.Marshal(StatusMessage{TransactionID: transactionID, Status: status})
	if err != nil {
		return fmt.Errorf("failed to marshal status message: %w", err)
	}
	return n.Post(ctx, endpoint, connectionID, data)
}
