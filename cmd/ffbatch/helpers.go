package main

import (
	"fmt"
	"math"
)

// formatDuration renders whole seconds as H:MM:SS.
func formatDuration(seconds float64) string {
	total := int64(math.Round(seconds))
	if total < 0 {
		total = 0
	}
	hours := total / 3600
	minutes := (total % 3600) / 60
	secs := total % 60
	return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
}
