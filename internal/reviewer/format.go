package reviewer

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration as compact HhMMmSSs text for
// heartbeats and finish lines ("45s", "3m07s", "1h02m03s").
func FormatDuration(d time.Duration) string {
	total := int(d.Seconds())
	if total < 0 {
		total = 0
	}
	mins, sec := total/60, total%60
	hrs, mins := mins/60, mins%60
	if hrs > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", hrs, mins, sec)
	}
	if mins > 0 {
		return fmt.Sprintf("%dm%02ds", mins, sec)
	}
	return fmt.Sprintf("%ds", sec)
}

// FormatBytes renders a byte count with a short unit. Bytes stay
// integral; larger units get one decimal ("512B", "4.0KB", "1.2MB").
func FormatBytes(n int64) string {
	value := float64(n)
	if value < 0 {
		value = 0
	}
	for _, unit := range []string{"B", "KB", "MB", "GB"} {
		if value < 1024 || unit == "GB" {
			if unit == "B" {
				return fmt.Sprintf("%d%s", int64(value), unit)
			}
			return fmt.Sprintf("%.1f%s", value, unit)
		}
		value /= 1024.0
	}
	return fmt.Sprintf("%dB", int64(value))
}
