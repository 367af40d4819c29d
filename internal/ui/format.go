package ui

import (
	"fmt"
	"strings"
	"time"

	"maskcam/internal/models"
)

const noDetections = "No detections"

func formatResults(results []models.DetectionResult) string {
	if len(results) == 0 {
		return noDetections
	}

	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, r.String())
	}

	return strings.Join(lines, "\n")
}

func formatLatency(v time.Duration) string {
	return fmt.Sprintf("Latency: %d ms", v.Milliseconds())
}

func formatStatus(active bool, latency time.Duration, dropped, failed uint64) string {
	if !active {
		return "Camera off"
	}
	return fmt.Sprintf("%s | Dropped: %d | Failed: %d", formatLatency(latency), dropped, failed)
}

func toggleLabel(active bool) string {
	if active {
		return "Stop"
	}
	return "Start"
}
