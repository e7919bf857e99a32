package domain

import "fmt"

// FormatPrice renders a minor-unit amount as a two-decimal string, e.g. 37550 -> "375.50".
func FormatPrice(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
