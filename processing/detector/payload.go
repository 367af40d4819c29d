package detector

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/jpeg"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"maskcam/internal/models"
)

const dataURIPrefix = "data:image/jpeg;base64,"

// Encoder turns a frame into the JSON body the service expects.
type Encoder struct {
	// Quality is the JPEG quality, 1..100.
	Quality int
	// MaxWidth downscales wider frames before upload. 0 disables it.
	MaxWidth int
}

// Encode returns the request body and the factor that maps pixel coordinates
// of the uploaded image back to the native frame.
func (e Encoder) Encode(frame image.Image) ([]byte, float64, error) {
	if frame == nil {
		return nil, 0, errors.New("nil frame")
	}

	upload := frame
	scale := 1.0

	w := frame.Bounds().Dx()
	if e.MaxWidth > 0 && w > e.MaxWidth {
		upload = resize.Resize(uint(e.MaxWidth), 0, frame, resize.Bilinear)
		scale = float64(w) / float64(upload.Bounds().Dx())
	}

	uri, err := e.DataURI(upload)
	if err != nil {
		return nil, 0, err
	}

	body, err := json.Marshal(models.DetectRequest{Image: uri})
	if err != nil {
		return nil, 0, errors.Wrap(err, "marshal request")
	}

	return body, scale, nil
}

// DataURI encodes frame as a base64 JPEG data URI.
func (e Encoder) DataURI(frame image.Image) (string, error) {
	q := e.Quality
	if q < 1 || q > 100 {
		q = jpeg.DefaultQuality
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame, &jpeg.Options{Quality: q}); err != nil {
		return "", errors.Wrap(err, "jpeg encode")
	}

	return dataURIPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// decodeResults parses a service response. Entries with malformed boxes are
// dropped; pixel boxes are scaled back by scale.
func decodeResults(body []byte, scale float64, logger *zap.SugaredLogger) ([]models.DetectionResult, error) {
	var resp models.DetectResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, errors.Wrap(err, "decode response")
	}

	results := make([]models.DetectionResult, 0, len(resp.Results))
	for i, r := range resp.Results {
		if err := r.Validate(); err != nil {
			logger.Warnw("dropping malformed detection", "index", i, "label", r.Label, "error", err)
			continue
		}
		results = append(results, r.Scaled(scale))
	}

	return results, nil
}
