// Package port defines the primary ports (interfaces) for the application.
// This follows the Ports and Adapters (Hexagonal Architecture) pattern.
package port

//go:generate mockgen -source=infrastructure.go -destination=../mock/infrastructure.go -package=mock

import (
	"context"
	"time"

	"netpilot/internal/types"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/vishvananda/netlink"
)

// DHCPClient is a port for DHCP client operations.
// This interface abstracts DHCP lease acquisition and management.
type DHCPClient interface {
	// RequestLease performs DHCP DISCOVER/OFFER/REQUEST/ACK sequence
	RequestLease(ctx context.Context, interfaceName string, timeout time.Duration) (*dhcpv4.DHCPv4, error)
}

// NetworkManager is a port for network interface queries.
type NetworkManager interface {
	// GetLinkByName returns a network link by interface name
	GetLinkByName(interfaceName string) (netlink.Link, error)

	// ListLinks returns every network link known to the host
	ListLinks() ([]netlink.Link, error)

	// ListAddresses returns IPv4 addresses configured on the link
	ListAddresses(link netlink.Link) ([]netlink.Addr, error)
}

// FileManager is a port for file system operations.
// This interface abstracts file read/write operations.
type FileManager interface {
	// ReadFile reads the contents of a file
	ReadFile(filename string) ([]byte, error)

	// FileExists checks if a file exists
	FileExists(filename string) bool

	// FileMode returns the permission bits of an existing file
	FileMode(filename string) (int, error)

	// MkdirAll creates a directory and any missing parents
	MkdirAll(dir string, perm int) error

	// CreateExclusive writes data to a new file, failing if it already exists
	CreateExclusive(filename string, data []byte, perm int) error

	// WriteTemp writes and syncs data to a new temporary file in dir and returns its path
	WriteTemp(dir, pattern string, data []byte, perm int) (string, error)

	// Rename atomically replaces newpath with oldpath
	Rename(oldpath, newpath string) error

	// Remove deletes a file
	Remove(filename string) error
}

// CommandRunner is a port for running external commands.
type CommandRunner interface {
	// Run executes a command once per process; later calls with the same
	// arguments return the cached result
	Run(ctx context.Context, name string, args ...string) (types.CommandResult, error)

	// RunUncached always executes the command
	RunUncached(ctx context.Context, name string, args ...string) (types.CommandResult, error)
}
