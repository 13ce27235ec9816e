package rules

import "netpilot/internal/types"

const (
	moduleLinuxKPI   = "linuxkpi"
	moduleLinDebugFS = "lindebugfs"
)

// Default returns the built-in rule database. Registration order matters:
// among rules of equal specificity the first registered wins, so narrower
// firmware families are listed before the broad catch-all rule for the same
// driver.
func Default() *Database {
	db, err := New(builtinRules(),
		WithBlacklist("if_iwn"),
		WithModuleDependencies(map[string][]string{
			moduleLinDebugFS: {moduleLinuxKPI},
		}),
	)
	if err != nil {
		panic(err) // The built-in table is static; this should never happen
	}
	return db
}

func builtinRules() []Rule {
	pci, usb := types.BusPCI, types.BusUSB
	eth, wifi := types.CategoryEthernet, types.CategoryWiFi
	lkpi := []string{moduleLinuxKPI}
	lkpiDebug := []string{moduleLinuxKPI, moduleLinDebugFS}

	return []Rule{
		// Ethernet, PCI
		{
			Driver: "if_em", Bus: pci, Category: eth,
			Vendors:     []string{"0x8086"},
			Products:    []string{"0x156f", "0x1570", "0x15b7", "0x15b8", "0x15b9", "0x15bb", "0x15bc", "0x15bd", "0x15be", "0x0d4e", "0x0d4f", "0x0d4c"},
			Description: "Intel I219/I225/I226 Gigabit Ethernet",
		},
		{
			Driver: "if_igb", Bus: pci, Category: eth,
			Vendors:     []string{"0x8086"},
			Products:    []string{"0x10a7", "0x10a9", "0x10d6", "0x10e6", "0x10e7", "0x10e8", "0x150a", "0x1518", "0x1521", "0x1522", "0x1523", "0x1524"},
			Description: "Intel 82575/82576/82580/I350/I354 Gigabit Ethernet",
		},
		{
			Driver: "if_ix", Bus: pci, Category: eth,
			Vendors:     []string{"0x8086"},
			Products:    []string{"0x10fb", "0x10f8", "0x154d", "0x1528", "0x154a", "0x154f", "0x1557", "0x1558", "0x1560", "0x1563", "0x15aa", "0x15ab"},
			Description: "Intel 82598/82599/X540/X550 10 Gigabit Ethernet",
		},
		{
			Driver: "if_em", Bus: pci, Category: eth,
			Vendors:     []string{"0x8086"},
			Products:    []string{"0x10d3", "0x1502", "0x1533", "0x150c", "0x10de", "0x10df", "0x10ef", "0x1049", "0x104a", "0x104b", "0x104c", "0x104d"},
			Description: "Intel 82571/82572/82573/82574/82583 Ethernet",
		},
		{
			Driver: "if_re", Bus: pci, Category: eth,
			Vendors:     []string{"0x10ec"},
			Products:    []string{"0x8168", "0x8169", "0x8136", "0x8167", "0x8161", "0x8162", "0x8125", "0x3000", "0x8129", "0x8139"},
			Description: "Realtek RTL8139/8169/8168/8111/8125 Ethernet",
		},
		{
			Driver: "if_bge", Bus: pci, Category: eth,
			Vendors:     []string{"0x14e4"},
			Class:       "0x0200",
			Description: "Broadcom BCM57xx Gigabit Ethernet",
		},
		{
			Driver: "if_alc", Bus: pci, Category: eth,
			Vendors:     []string{"0x1969"},
			Class:       "0x0200",
			Description: "Atheros/Qualcomm AR813x/AR815x/AR816x/AR817x Ethernet",
		},

		// Ethernet, USB
		{
			Driver: "if_axge", Bus: usb, Category: eth,
			Vendors:     []string{"0x0b95"},
			Products:    []string{"0x1790", "0x178a"},
			Description: "ASIX AX88179/AX88178A USB 3.0 Gigabit Ethernet",
		},
		{
			Driver: "if_axe", Bus: usb, Category: eth,
			Vendors:     []string{"0x0b95", "0x077b", "0x2001"},
			Conflicts:   []string{"if_axge"},
			Description: "ASIX AX88x72 USB 2.0 Ethernet",
		},
		{
			Driver: "if_ure", Bus: usb, Category: eth,
			Vendors:     []string{"0x0bda", "0x0411"},
			Products:    []string{"0x8152", "0x8153", "0x8155", "0x8156"},
			Description: "Realtek RTL8152/RTL8153 USB Ethernet",
		},
		{
			Driver: "if_cdce", Bus: usb, Category: eth,
			Class:       "0x02",
			Description: "USB CDC Ethernet",
		},

		// WiFi, PCI
		{
			Driver: "if_iwlwifi", Bus: pci, Category: wifi,
			Vendors:      []string{"0x8086"},
			Products:     []string{"0x2725", "0x51f0", "0x51f1", "0x54f0", "0x7af0"},
			Firmware:     "wifi-firmware-iwlwifi-kmod-ax210",
			Dependencies: lkpiDebug,
			Description:  "Intel WiFi 6E AX210 series",
		},
		{
			Driver: "if_iwlwifi", Bus: pci, Category: wifi,
			Vendors:      []string{"0x8086"},
			Products:     []string{"0x2723", "0x271b", "0x271c", "0x30dc", "0x31dc", "0x43f0", "0xa0f0"},
			Firmware:     "wifi-firmware-iwlwifi-kmod-22000",
			Dependencies: lkpiDebug,
			Description:  "Intel WiFi 22000 series (AX200/AX201)",
		},
		{
			Driver: "if_iwlwifi", Bus: pci, Category: wifi,
			Vendors:      []string{"0x8086"},
			Products:     []string{"0x9df0", "0x02f0", "0x06f0", "0x34f0"},
			Firmware:     "wifi-firmware-iwlwifi-kmod-9000",
			Dependencies: lkpiDebug,
			Description:  "Intel WiFi 9000 series (9560/9260)",
		},
		{
			Driver: "if_iwlwifi", Bus: pci, Category: wifi,
			Vendors: []string{"0x8086"},
			Products: []string{"0x2723", "0x2725", "0x271b", "0x271c", "0x2720", "0x30dc", "0x31dc", "0x9df0", "0x02f0",
				"0x06f0", "0x34f0", "0x43f0", "0xa0f0", "0x2526", "0x51f0", "0x51f1", "0x54f0", "0x7af0"},
			Firmware:     "wifi-firmware-iwlwifi-kmod",
			Dependencies: lkpiDebug,
			Description:  "Intel WiFi 6E/6/AC (AX200/AX201/AX210/AC9560/AC9260/BE200)",
		},
		{
			Driver: "if_iwm", Bus: pci, Category: wifi,
			Vendors:     []string{"0x8086"},
			Products:    []string{"0x095a", "0x095b", "0x24f3", "0x24f4", "0x24f5", "0x24f6"},
			Firmware:    "wifi-firmware-iwlwifi-kmod-7000",
			Description: "Intel WiFi 7000 series (7260/7265)",
		},
		{
			Driver: "if_iwm", Bus: pci, Category: wifi,
			Vendors:     []string{"0x8086"},
			Products:    []string{"0x24fd", "0x24fb", "0x3165", "0x3166"},
			Firmware:    "wifi-firmware-iwlwifi-kmod-8000",
			Description: "Intel WiFi 8000 series (8260/8265/3165)",
		},
		{
			Driver: "if_iwn", Bus: pci, Category: wifi,
			Vendors:     []string{"0x8086"},
			Products:    []string{"0x4229", "0x4230", "0x0082", "0x0085"},
			Description: "Intel WiFi Link 4965/5000/6000 series",
		},
		{
			Driver: "if_ath12k", Bus: pci, Category: wifi,
			Vendors:      []string{"0x17cb"},
			Products:     []string{"0x1107", "0x1109"},
			Firmware:     "wifi-firmware-ath12k-kmod",
			Dependencies: lkpi,
			Description:  "Qualcomm Atheros WiFi 6E/7 (WCN7850)",
		},
		{
			Driver: "if_ath11k", Bus: pci, Category: wifi,
			Vendors:  []string{"0x17cb"},
			Products: []string{"0x1101", "0x1103", "0x1104"},
			Firmware: "wifi-firmware-ath11k-kmod",
			FirmwareByProduct: map[string]string{
				"0x1101": "wifi-firmware-ath11k-kmod-qca6390_hw20",
				"0x1103": "wifi-firmware-ath11k-kmod-wcn6855_hw20",
				"0x1104": "wifi-firmware-ath11k-kmod-qcn9074_hw10",
			},
			Dependencies: lkpi,
			Description:  "Qualcomm Atheros WiFi 6E (QCA6390/QCA6490)",
		},
		{
			Driver: "if_ath10k", Bus: pci, Category: wifi,
			Vendors:  []string{"0x168c"},
			Products: []string{"0x003c", "0x0041", "0x003e", "0x0040", "0x0046", "0x0056"},
			Firmware: "wifi-firmware-ath10k-kmod",
			FirmwareByProduct: map[string]string{
				"0x003c": "wifi-firmware-ath10k-kmod-qca988x_hw20",
				"0x0041": "wifi-firmware-ath10k-kmod-qca6174_hw30",
				"0x003e": "wifi-firmware-ath10k-kmod-qca6174_hw21",
				"0x0040": "wifi-firmware-ath10k-kmod-qca99x0_hw20",
				"0x0046": "wifi-firmware-ath10k-kmod-qca9377_hw10",
				"0x0056": "wifi-firmware-ath10k-kmod-qca9888_hw20",
			},
			Description: "Qualcomm Atheros 802.11ac (QCA988x/QCA99x0/QCA6174/QCA9377)",
		},
		{
			Driver: "if_rtw89", Bus: pci, Category: wifi,
			Vendors:  []string{"0x10ec"},
			Products: []string{"0x8852", "0x8851", "0xc852", "0xc851"},
			Firmware: "wifi-firmware-rtw89-kmod",
			FirmwareByProduct: map[string]string{
				"0x8852": "wifi-firmware-rtw89-kmod-rtw8852a",
				"0x8851": "wifi-firmware-rtw89-kmod-rtw8851b",
				"0xc852": "wifi-firmware-rtw89-kmod-rtw8852c",
				"0xc851": "wifi-firmware-rtw89-kmod-rtw8852b",
			},
			Dependencies: lkpi,
			Description:  "Realtek WiFi 6 (RTL8852AE/RTL8852BE/RTL8851B)",
		},
		{
			Driver: "if_rtw88", Bus: pci, Category: wifi,
			Vendors:  []string{"0x10ec"},
			Products: []string{"0x8822", "0x8821", "0xb822", "0xc822", "0x8723", "0xb723"},
			Firmware: "wifi-firmware-rtw88-kmod",
			FirmwareByProduct: map[string]string{
				"0x8822": "wifi-firmware-rtw88-kmod-rtw8822b",
				"0x8821": "wifi-firmware-rtw88-kmod-rtw8821c",
				"0xb822": "wifi-firmware-rtw88-kmod-rtw8822b",
				"0xc822": "wifi-firmware-rtw88-kmod-rtw8822c",
				"0x8723": "wifi-firmware-rtw88-kmod-rtw8723d",
				"0xb723": "wifi-firmware-rtw88-kmod-rtw8703b",
			},
			Dependencies: lkpi,
			Description:  "Realtek WiFi 5 (RTL8822BE/RTL8822CE/RTL8723DE)",
		},
		{
			Driver: "if_mt76", Bus: pci, Category: wifi,
			Vendors:      []string{"0x14c3"},
			Products:     []string{"0x7915", "0x7906", "0x7922", "0x7996"},
			Firmware:     "wifi-firmware-mt76-kmod",
			Dependencies: lkpi,
			Description:  "MediaTek MT76xx WiFi 6/6E",
		},
		{
			Driver: "if_rtwn", Bus: pci, Category: wifi,
			Vendors:     []string{"0x10ec"},
			Products:    []string{"0x8176", "0x8178", "0x8188", "0x8192"},
			Description: "Realtek 802.11n (RTL8188/RTL8192 series)",
		},
		{
			Driver: "if_bwi", Bus: pci, Category: wifi,
			Vendors:     []string{"0x14e4"},
			Products:    []string{"0x4311", "0x4312", "0x4315", "0x4318", "0x4319"},
			Description: "Broadcom BCM43xx 802.11bg",
		},
		{
			Driver: "if_ath", Bus: pci, Category: wifi,
			Vendors:     []string{"0x168c"},
			Class:       "0x0280",
			Description: "Atheros 802.11abgn (AR5xxx/AR9xxx series)",
		},

		// WiFi, USB
		{
			Driver: "if_urtwn", Bus: usb, Category: wifi,
			Vendors:     []string{"0x0bda", "0x2019", "0x20f4", "0x2001", "0x050d"},
			Products:    []string{"0x8176", "0x8178", "0x8179", "0x817f", "0x018a", "0x1102", "0x648b"},
			Firmware:    "wifi-firmware-rtw88-kmod",
			Description: "Realtek RTL8188/RTL8192/RTL8723 USB WiFi",
		},
		{
			Driver: "if_mt7601u", Bus: usb, Category: wifi,
			Vendors:     []string{"0x148f", "0x0e8d"},
			Products:    []string{"0x7601", "0x760b"},
			Firmware:    "wifi-firmware-mt7601u-kmod",
			Description: "MediaTek MT7601U USB WiFi",
		},
		{
			Driver: "if_rum", Bus: usb, Category: wifi,
			Vendors:     []string{"0x148f", "0x0b05", "0x050d", "0x0769", "0x0411"},
			Products:    []string{"0x2573", "0x2671", "0x1723", "0x7050"},
			Description: "Ralink RT2501/RT2601 USB WiFi (legacy)",
		},
		{
			Driver: "if_ural", Bus: usb, Category: wifi,
			Vendors:     []string{"0x148f", "0x0b05", "0x050d", "0x13b1", "0x0411"},
			Products:    []string{"0x2570", "0x1706", "0x1707", "0x000d"},
			Description: "Ralink RT2500 USB WiFi (legacy)",
		},
		{
			Driver: "if_run", Bus: usb, Category: wifi,
			Vendors:     []string{"0x148f", "0x0df6", "0x0789", "0x083a", "0x2019"},
			Description: "Ralink/MediaTek RT2870/RT3070/RT5370 USB WiFi",
		},
	}
}
