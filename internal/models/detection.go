package models

import (
	"fmt"
	"math"
	"strings"
)

// DetectionResult is one labeled region returned by the detection service.
// Box is [x0, y0, x1, y1], either in pixels or normalized to 0..1.
type DetectionResult struct {
	Label string    `json:"label"`
	Box   []float64 `json:"box"`
}

// DetectResponse is the payload returned by the detection endpoint.
type DetectResponse struct {
	Results []DetectionResult `json:"results"`
}

// DetectRequest is the payload posted to the detection endpoint.
type DetectRequest struct {
	Image string `json:"image"`
}

func (d DetectionResult) Validate() error {
	if len(d.Box) != 4 {
		return fmt.Errorf("box must have 4 components, got %d", len(d.Box))
	}
	for i, v := range d.Box {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("box component %d is not finite", i)
		}
	}
	return nil
}

// IsNormalized reports whether every box coordinate is <= 1.
func (d DetectionResult) IsNormalized() bool {
	for _, v := range d.Box {
		if v > 1 {
			return false
		}
	}
	return true
}

// Confidence extracts the score embedded in the label, e.g. "Mask: 97%" or
// "no_mask (0.81)". Empty when the label carries none.
func (d DetectionResult) Confidence() string {
	label := strings.TrimSpace(d.Label)

	if open := strings.LastIndexByte(label, '('); open >= 0 {
		if end := strings.IndexByte(label[open:], ')'); end > 1 {
			return strings.TrimSpace(label[open+1 : open+end])
		}
	}

	if idx := strings.LastIndexByte(label, ':'); idx >= 0 {
		return strings.TrimSpace(label[idx+1:])
	}

	return ""
}

// Scaled returns a copy with pixel-absolute coordinates multiplied by factor.
// Normalized boxes are returned unchanged.
func (d DetectionResult) Scaled(factor float64) DetectionResult {
	if factor == 1 || d.IsNormalized() {
		return d
	}

	box := make([]float64, len(d.Box))
	for i, v := range d.Box {
		box[i] = v * factor
	}

	return DetectionResult{Label: d.Label, Box: box}
}

func (d DetectionResult) String() string {
	conf := d.Confidence()
	if conf == "" {
		conf = "-"
	}

	parts := make([]string, len(d.Box))
	for i, v := range d.Box {
		parts[i] = formatCoord(v)
	}

	return fmt.Sprintf("%s | %s | [%s]", d.Label, conf, strings.Join(parts, ", "))
}

func formatCoord(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.3f", v)
}
