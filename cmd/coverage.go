package cmd

import (
	"encoding/json"
	"fmt"

	"netpilot/internal/pkg/rules"

	"github.com/spf13/cobra"
)

var coverageJSON bool

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Show supported drivers and firmware packages",
	RunE: func(cmd *cobra.Command, args []string) error {
		cov := rules.Default().Coverage()
		out := cmd.OutOrStdout()

		if coverageJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(cov)
		}

		groups := []struct {
			title string
			items []string
		}{
			{"Ethernet (PCI/PCIe)", cov.EthernetPCI},
			{"WiFi (PCI/PCIe)", cov.WiFiPCI},
			{"USB Ethernet", cov.EthernetUSB},
			{"USB WiFi", cov.WiFiUSB},
			{"Firmware Packages", cov.Firmware},
		}
		for i, g := range groups {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "=== %s ===\n", g.title)
			for _, item := range g.items {
				fmt.Fprintf(out, "  %s\n", item)
			}
		}
		return nil
	},
}

func init() {
	coverageCmd.Flags().BoolVar(&coverageJSON, "json", false, "Print coverage as JSON")
	rootCmd.AddCommand(coverageCmd)
}
