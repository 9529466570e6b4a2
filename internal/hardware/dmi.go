package hardware

import "strings"

// DMI holds firmware identity strings from /sys/class/dmi/id.
type DMI struct {
	BoardVendor   string `json:"board_vendor"`
	BoardName     string `json:"board_name"`
	ProductName   string `json:"product_name"`
	ProductFamily string `json:"product_family"`
	BIOSVersion   string `json:"bios_version"`
}

func detectDMI(r *reader) DMI {
	const base = "sys/class/dmi/id/"
	return DMI{
		BoardVendor:   r.str(base + "board_vendor"),
		BoardName:     r.str(base + "board_name"),
		ProductName:   r.str(base + "product_name"),
		ProductFamily: r.str(base + "product_family"),
		BIOSVersion:   r.str(base + "bios_version"),
	}
}

// IsFramework reports a Framework Computer board.
func (d DMI) IsFramework() bool {
	return strings.Contains(d.BoardVendor, "Framework")
}

// IsFramework16 reports a Framework Laptop 16.
func (d DMI) IsFramework16() bool {
	return d.IsFramework() && (strings.Contains(d.ProductName, "16") || strings.Contains(d.BoardName, "16"))
}
