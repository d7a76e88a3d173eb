// Package storage defines the delivery log persisted for each scheduled send.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates a requested delivery record is missing.
var ErrNotFound = errors.New("record not found")

// DeliveryStatus identifies the outcome of one send.
type DeliveryStatus string

const (
	// DeliveryStatusDelivered means the transport accepted the message.
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	// DeliveryStatusFailed means the transport returned an error.
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// DeliveryRecord stores the outcome of one handler invocation's send.
type DeliveryRecord struct {
	ID          string
	MessageID   string
	TriggerID   string
	TriggerTime time.Time
	Transport   string
	Recipients  []string
	Subject     string
	Status      DeliveryStatus
	Permanent   bool
	LastError   string
	CreatedAt   time.Time
}

// DeliveryStore persists scheduled-send outcomes.
type DeliveryStore interface {
	RecordDelivery(ctx context.Context, record DeliveryRecord) error
	GetDelivery(ctx context.Context, id string) (DeliveryRecord, error)
	ListDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
}
