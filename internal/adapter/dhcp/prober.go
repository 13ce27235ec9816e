// Package dhcp probes DHCP service on an interface without configuring it.
package dhcp

import (
	"context"
	"fmt"
	"net"
	"time"

	"netpilot/internal/pkg/logging"
	"netpilot/internal/port"

	"github.com/insomniacslk/dhcp/dhcpv4"
	"github.com/sirupsen/logrus"
)

const (
	defaultRetries    = 3
	defaultRetryDelay = 2 * time.Second
	// Lease and renewal defaults when the server omits the options
	defaultLeaseTime   = 60 * time.Second
	defaultRenewalTime = 30 * time.Second
)

// Lease is what a DHCP server offered an interface.
type Lease struct {
	Interface   string
	IP          net.IP
	Mask        net.IPMask
	Server      net.IP
	Routers     []net.IP
	DNS         []net.IP
	LeaseTime   time.Duration
	RenewalTime time.Duration
	// Addresses already configured on the interface
	Current []net.IPNet
}

// CIDR returns the leased address in prefix notation.
func (l *Lease) CIDR() string {
	return (&net.IPNet{IP: l.IP, Mask: l.Mask}).String()
}

// Option configures a Prober.
type Option func(*Prober)

// WithRetries sets how many lease requests are attempted and how long to
// wait between them.
func WithRetries(attempts int, delay time.Duration) Option {
	return func(p *Prober) {
		p.retries = attempts
		p.retryDelay = delay
	}
}

// Prober requests a lease through the DHCPClient port and reports it. The
// interface configuration is left untouched; rc.conf's ifconfig_*="DHCP"
// entries hand the interface to the system DHCP client at boot.
type Prober struct {
	dhcpClient port.DHCPClient
	networkMgr port.NetworkManager
	retries    int
	retryDelay time.Duration
}

// NewProber creates a DHCP prober.
func NewProber(dhcpClient port.DHCPClient, networkMgr port.NetworkManager, opts ...Option) *Prober {
	p := &Prober{
		dhcpClient: dhcpClient,
		networkMgr: networkMgr,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Probe requests a lease on iface, retrying on failure.
func (p *Prober) Probe(ctx context.Context, iface string, timeout time.Duration) (*Lease, error) {
	logger := logging.WithComponentAndInterface("dhcp", iface)

	link, err := p.networkMgr.GetLinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("interface not found: %w", err)
	}

	var current []net.IPNet
	if addrs, err := p.networkMgr.ListAddresses(link); err != nil {
		logger.WithError(err).Warn("Failed to list current addresses")
	} else {
		for _, a := range addrs {
			if a.IPNet != nil {
				current = append(current, *a.IPNet)
			}
		}
	}

	ack, err := p.requestLease(ctx, iface, timeout, logger)
	if err != nil {
		return nil, err
	}

	lease := leaseFromACK(iface, ack)
	lease.Current = current
	logger.WithFields(logrus.Fields{
		"ip":         lease.CIDR(),
		"lease_time": lease.LeaseTime.String(),
	}).Info("Lease offered")
	return lease, nil
}

func (p *Prober) requestLease(ctx context.Context, iface string, timeout time.Duration, logger *logrus.Entry) (*dhcpv4.DHCPv4, error) {
	var lastErr error
	for attempt := 1; attempt <= p.retries; attempt++ {
		logger.WithField("attempt", fmt.Sprintf("%d/%d", attempt, p.retries)).Debug("Attempting DHCP lease")

		ack, err := p.dhcpClient.RequestLease(ctx, iface, timeout)
		if err == nil {
			return ack, nil
		}
		lastErr = err
		logger.WithError(err).WithField("attempt", attempt).Warn("DHCP lease request failed")

		if attempt == p.retries {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.retryDelay):
		}
	}
	return nil, fmt.Errorf("DHCP lease request failed after %d attempts: %w", p.retries, lastErr)
}

func leaseFromACK(iface string, ack *dhcpv4.DHCPv4) *Lease {
	mask := ack.SubnetMask()
	if mask == nil {
		mask = net.IPv4Mask(255, 255, 255, 0)
	}
	return &Lease{
		Interface:   iface,
		IP:          ack.YourIPAddr,
		Mask:        mask,
		Server:      ack.ServerIdentifier(),
		Routers:     ack.Router(),
		DNS:         ack.DNS(),
		LeaseTime:   ack.IPAddressLeaseTime(defaultLeaseTime),
		RenewalTime: ack.IPAddressRenewalTime(defaultRenewalTime),
	}
}
