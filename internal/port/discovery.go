package port

//go:generate mockgen -source=discovery.go -destination=../mock/discovery.go -package=mock

import (
	"context"

	"netpilot/internal/types"
)

// DeviceProvider enumerates raw network devices on one bus.
type DeviceProvider interface {
	// Bus returns the bus this provider enumerates
	Bus() types.BusType

	// Enumerate returns the network devices present on the bus
	Enumerate(ctx context.Context) ([]types.DeviceRecord, error)
}

// AuditStore is a port for the configuration change journal.
type AuditStore interface {
	// Record appends records to the journal
	Record(ctx context.Context, records []types.AuditRecord) error

	// List returns the most recent records, newest first
	List(ctx context.Context, limit int) ([]types.AuditRecord, error)

	// Close releases the underlying storage
	Close() error
}
