package units

import "fmt"

const (
	KB = 1000
	MB = 1000 * KB
	GB = 1000 * MB
	TB = 1000 * GB
)

var decimalAbbrs = []string{"B", "kB", "MB", "GB", "TB", "PB", "EB", "ZB", "YB"}

func HumanSize(size float64) string {
	return HumanSizeWithPrecision(size, 3)
}

func HumanSizeWithPrecision(size float64, precision int) string {
	i := 0
	for size >= 1000.0 && i < len(decimalAbbrs)-1 {
		size /= 1000.0
		i++
	}
	return fmt.Sprintf("%.*g%s", precision, size, decimalAbbrs[i])
}

// HumanBytes formats a byte count, printing "-" for unknown (negative) sizes.
func HumanBytes(n int64) string {
	if n < 0 {
		return "-"
	}
	return HumanSize(float64(n))
}
