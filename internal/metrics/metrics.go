// Package metrics measures store and gateway operations and emits the timing
// as structured log fields. Lambda has no long-lived process to scrape, so
// per-invocation log metrics are the observability surface.
package metrics

import (
	"time"

	"github.com/rs/zerolog"
)

// OperationType classifies the measured operation.
type OperationType string

const (
	// ReadOperation is a store read.
	ReadOperation OperationType = "READ"
	// WriteOperation is a store write.
	WriteOperation OperationType = "WRITE"
	// QueryOperation is a store query.
	QueryOperation OperationType = "QUERY"
	// DeleteOperation is a store or object delete.
	DeleteOperation OperationType = "DELETE"
	// PushOperation is a connection push.
	PushOperation OperationType = "PUSH"
	// PublishOperation is a topic or bus publication.
	PublishOperation OperationType = "PUBLISH"
)

// Measure runs operation, logging its duration and outcome under name, and
// returns the operation's error unchanged.
func Measure(log zerolog.Logger, opType OperationType, name string, operation func() error) error {
	start := time.Now()
	err := operation()
	elapsed := time.Since(start)

	ev := log.Debug()
	if err != nil {
		ev = log.Warn().Err(err)
	}
	ev.Str("op", string(opType)).Str("name", name).Dur("elapsed", elapsed).Msg("operation measured")

	return err
}
