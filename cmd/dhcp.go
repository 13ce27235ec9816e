package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"netpilot/internal/adapter/dhcp"
	infraDhcp "netpilot/internal/adapter/infrastructure/dhcp"
	"netpilot/internal/adapter/infrastructure/network"

	"github.com/spf13/cobra"
)

var dhcpFlags struct {
	iface   string
	timeout time.Duration
	retries int
}

var dhcpCmd = &cobra.Command{
	Use:   "dhcp",
	Short: "Request a DHCP lease on an interface without configuring it",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := loadConfig(); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		prober := dhcp.NewProber(
			infraDhcp.NewClientAdapter(dhcpFlags.retries),
			network.NewManagerAdapter(),
		)
		lease, err := prober.Probe(ctx, dhcpFlags.iface, dhcpFlags.timeout)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Interface:  %s\n", lease.Interface)
		fmt.Fprintf(out, "Offered:    %s\n", lease.CIDR())
		fmt.Fprintf(out, "Server:     %s\n", lease.Server)
		fmt.Fprintf(out, "Routers:    %s\n", joinIPs(lease.Routers))
		fmt.Fprintf(out, "DNS:        %s\n", joinIPs(lease.DNS))
		fmt.Fprintf(out, "Lease time: %s (renew after %s)\n", lease.LeaseTime, lease.RenewalTime)
		if len(lease.Current) > 0 {
			current := make([]string, 0, len(lease.Current))
			for _, n := range lease.Current {
				current = append(current, n.String())
			}
			fmt.Fprintf(out, "Current:    %s\n", strings.Join(current, ", "))
		}
		return nil
	},
}

func joinIPs[T fmt.Stringer](ips []T) string {
	if len(ips) == 0 {
		return "none"
	}
	out := make([]string, 0, len(ips))
	for _, ip := range ips {
		out = append(out, ip.String())
	}
	return strings.Join(out, ", ")
}

func init() {
	dhcpCmd.Flags().StringVarP(&dhcpFlags.iface, "interface", "i", "", "Interface to probe")
	dhcpCmd.Flags().DurationVar(&dhcpFlags.timeout, "timeout", 10*time.Second, "Timeout per DHCP exchange")
	dhcpCmd.Flags().IntVar(&dhcpFlags.retries, "retries", 3, "Retransmissions per DHCP exchange")
	if err := dhcpCmd.MarkFlagRequired("interface"); err != nil {
		panic(err) // This should never happen during initialization
	}
	rootCmd.AddCommand(dhcpCmd)
}
