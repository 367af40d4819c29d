package ui

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"maskcam/internal/models"
)

func TestFormatResults(t *testing.T) {
	assert.Equal(t, "No detections", formatResults(nil))

	got := formatResults([]models.DetectionResult{
		{Label: "Mask: 97%", Box: []float64{0.2, 0.2, 0.5, 0.6}},
		{Label: "no_mask", Box: []float64{50, 50, 200, 200}},
	})

	assert.Equal(t, "Mask: 97% | 97% | [0.200, 0.200, 0.500, 0.600]\nno_mask | - | [50, 50, 200, 200]", got)
}

func TestFormatStatus(t *testing.T) {
	assert.Equal(t, "Camera off", formatStatus(false, time.Second, 3, 1))
	assert.Equal(t, "Latency: 120 ms | Dropped: 3 | Failed: 1", formatStatus(true, 120*time.Millisecond, 3, 1))
}

func TestToggleLabel(t *testing.T) {
	assert.Equal(t, "Start", toggleLabel(false))
	assert.Equal(t, "Stop", toggleLabel(true))
}
