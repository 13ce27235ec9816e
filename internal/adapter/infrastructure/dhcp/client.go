// Package dhcp provides DHCP client adapter implementation.
package dhcp

import (
	"context"
	"fmt"
	"time"

	"netpilot/internal/pkg/logging"
	"netpilot/internal/port"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/insomniacslk/dhcp/dhcpv4/nclient4"
)

// ClientAdapter is an adapter that implements the DHCPClient port using insomniacslk/dhcp library.
type ClientAdapter struct {
	retries int
}

// Ensure ClientAdapter implements the DHCPClient port
var _ port.DHCPClient = (*ClientAdapter)(nil)

// NewClientAdapter creates a new DHCP client adapter. Each exchange
// retransmits up to retries times within its timeout.
func NewClientAdapter(retries int) *ClientAdapter {
	if retries < 1 {
		retries = 1
	}
	return &ClientAdapter{retries: retries}
}

// RequestLease performs the complete DHCP DISCOVER/OFFER/REQUEST/ACK sequence.
func (c *ClientAdapter) RequestLease(ctx context.Context, interfaceName string, timeout time.Duration) (*dhcpv4.DHCPv4, error) {
	logger := logging.WithComponentAndInterface("dhcp", interfaceName)

	client, err := nclient4.New(interfaceName,
		nclient4.WithTimeout(timeout),
		nclient4.WithRetry(c.retries),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create DHCP client: %w", err)
	}
	defer client.Close()

	logger.Debug("Sending DHCP DISCOVER")
	lease, err := client.Request(ctx)
	if err != nil {
		return nil, fmt.Errorf("DHCP lease request failed: %w", err)
	}

	logger.WithField("ip", lease.ACK.YourIPAddr.String()).Debug("Received DHCP ACK")
	return lease.ACK, nil
}
