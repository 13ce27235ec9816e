// Package network provides network management adapter implementation.
package network

import (
	"fmt"
	"net"

	"netpilot/internal/pkg/logging"
	"netpilot/internal/port"

	"github.com/vishvananda/netlink"
)

// ManagerAdapter is an adapter that implements the NetworkManager port using vishvananda/netlink library.
// On hosts without netlink the standard library interface table is used instead.
type ManagerAdapter struct{}

// Ensure ManagerAdapter implements the NetworkManager port
var _ port.NetworkManager = (*ManagerAdapter)(nil)

// NewManagerAdapter creates a new network manager adapter.
func NewManagerAdapter() *ManagerAdapter {
	return &ManagerAdapter{}
}

// GetLinkByName returns a network link by interface name.
func (n *ManagerAdapter) GetLinkByName(interfaceName string) (netlink.Link, error) {
	link, err := netlink.LinkByName(interfaceName)
	if err == nil {
		return link, nil
	}

	iface, ifErr := net.InterfaceByName(interfaceName)
	if ifErr != nil {
		return nil, fmt.Errorf("failed to get netlink interface %s: %w", interfaceName, err)
	}
	return deviceFromInterface(*iface), nil
}

// ListLinks returns every link known to the host.
func (n *ManagerAdapter) ListLinks() ([]netlink.Link, error) {
	links, err := netlink.LinkList()
	if err == nil {
		return links, nil
	}
	logging.WithComponent("network").WithError(err).Debug("netlink unavailable, using interface table")

	ifaces, ifErr := net.Interfaces()
	if ifErr != nil {
		return nil, fmt.Errorf("failed to list interfaces: %w", ifErr)
	}
	links = make([]netlink.Link, 0, len(ifaces))
	for _, iface := range ifaces {
		links = append(links, deviceFromInterface(iface))
	}
	return links, nil
}

// ListAddresses returns IPv4 addresses configured on the link.
func (n *ManagerAdapter) ListAddresses(link netlink.Link) ([]netlink.Addr, error) {
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err == nil {
		return addrs, nil
	}

	iface, ifErr := net.InterfaceByName(link.Attrs().Name)
	if ifErr != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	ifAddrs, ifErr := iface.Addrs()
	if ifErr != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", ifErr)
	}
	for _, a := range ifAddrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok || ipNet.IP.To4() == nil {
			continue
		}
		addrs = append(addrs, netlink.Addr{IPNet: ipNet})
	}
	return addrs, nil
}

func deviceFromInterface(iface net.Interface) netlink.Link {
	return &netlink.Device{
		LinkAttrs: netlink.LinkAttrs{
			Index:        iface.Index,
			Name:         iface.Name,
			MTU:          iface.MTU,
			HardwareAddr: iface.HardwareAddr,
			Flags:        iface.Flags,
		},
	}
}
