// Package config loads per-Lambda configuration from environment variables.
// Resource names (tables, bucket, topic, queues, the WebSocket management
// endpoint) are wired into the environment by the deployment, never hardcoded.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Getenv returns the value of key or fallback when unset or empty.
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// GetenvInt returns the integer value of key or fallback when unset or
// unparsable.
func GetenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// Require returns the value of key or an error naming the missing variable.
func Require(key string) (string, error) {
	v := os.Getenv(key)
	if v == "" {
		return "", fmt.Errorf("missing required environment variable %s", key)
	}
	return v, nil
}

// MustRequire is Require for process init paths where a missing variable is
// unrecoverable.
func MustRequire(key string) string {
	v, err := Require(key)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return v
}

// AWS holds settings common to every Lambda in the application.
type AWS struct {
	Region   string
	Endpoint string // custom endpoint for local development, empty in AWS
}

// LoadAWS reads the shared AWS settings.
func LoadAWS() AWS {
	return AWS{
		Region:   Getenv("AWS_REGION", "us-east-1"),
		Endpoint: os.Getenv("AWS_ENDPOINT_URL"),
	}
}

// Invoice holds the settings of the invoice import application.
type Invoice struct {
	AWS
	InvoicesTable string
	EventsTable   string
	Bucket        string
	WSAPIEndpoint string // API Gateway Management endpoint, WebSocket variant only
	DLQueueURL    string
	AuditBusName  string
}

// LoadInvoice reads the invoice application settings. Only the resources a
// given Lambda actually touches need to be present; callers validate the
// fields they use.
func LoadInvoice() Invoice {
	return Invoice{
		AWS:           LoadAWS(),
		InvoicesTable: Getenv("INVOICES_DDB", "InvoicesDdb"),
		EventsTable:   Getenv("EVENTS_DDB", "EventsDdb"),
		Bucket:        os.Getenv("BUCKET_NAME"),
		WSAPIEndpoint: os.Getenv("INVOICE_WSAPI_ENDPOINT"),
		DLQueueURL:    os.Getenv("INVOICE_EVENTS_DLQ_URL"),
		AuditBusName:  Getenv("AUDIT_BUS_NAME", "AuditEventBus"),
	}
}

// Orders holds the settings of the order application.
type Orders struct {
	AWS
	OrdersTable   string
	ProductsTable string
	EventsTable   string
	TopicARN      string
	AuditBusName  string
}

// LoadOrders reads the order application settings.
func LoadOrders() Orders {
	return Orders{
		AWS:           LoadAWS(),
		OrdersTable:   Getenv("ORDERS_DDB", "OrdersDdb"),
		ProductsTable: Getenv("PRODUCTS_DDB", "ProductsDdb"),
		EventsTable:   Getenv("EVENTS_DDB", "EventsDdb"),
		TopicARN:      os.Getenv("ORDER_EVENTS_TOPIC_ARN"),
		AuditBusName:  Getenv("AUDIT_BUS_NAME", "AuditEventBus"),
	}
}
