package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	assert.NoError(t, DetectionResult{Box: []float64{0, 0, 1, 1}}.Validate())
	assert.Error(t, DetectionResult{Box: []float64{0, 0, 1}}.Validate())
	assert.Error(t, DetectionResult{Box: []float64{0, 0, 1, 1, 1}}.Validate())
	assert.Error(t, DetectionResult{Box: []float64{0, math.NaN(), 1, 1}}.Validate())
	assert.Error(t, DetectionResult{}.Validate())
}

func TestIsNormalized(t *testing.T) {
	assert.True(t, DetectionResult{Box: []float64{0.2, 0.2, 0.5, 0.6}}.IsNormalized())
	assert.True(t, DetectionResult{Box: []float64{0, 0, 1, 1}}.IsNormalized())
	assert.False(t, DetectionResult{Box: []float64{50, 50, 200, 200}}.IsNormalized())
	assert.False(t, DetectionResult{Box: []float64{0.1, 0.1, 0.5, 1.5}}.IsNormalized())
}

func TestConfidence(t *testing.T) {
	cases := map[string]string{
		"Mask: 97.5%":      "97.5%",
		"no_mask (0.81)":   "0.81",
		"with_mask":        "",
		"":                 "",
		"a: b: 12%":        "12%",
		"broken (paren":    "",
		"  Mask :  88%   ": "88%",
	}
	for label, want := range cases {
		assert.Equal(t, want, DetectionResult{Label: label}.Confidence(), label)
	}
}

func TestScaled(t *testing.T) {
	px := DetectionResult{Label: "x", Box: []float64{10, 20, 30, 40}}
	assert.Equal(t, []float64{20, 40, 60, 80}, px.Scaled(2).Box)
	assert.Equal(t, []float64{10, 20, 30, 40}, px.Box, "original must not change")

	norm := DetectionResult{Box: []float64{0.1, 0.2, 0.3, 0.4}}
	assert.Equal(t, norm.Box, norm.Scaled(2).Box)
}

func TestString(t *testing.T) {
	d := DetectionResult{Label: "Mask: 90%", Box: []float64{0.25, 0.5, 100, 200}}
	assert.Equal(t, "Mask: 90% | 90% | [0.250, 0.500, 100, 200]", d.String())

	d = DetectionResult{Label: "face", Box: []float64{1, 2, 3, 4}}
	assert.Equal(t, "face | - | [1, 2, 3, 4]", d.String())
}
