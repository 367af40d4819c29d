package detector

import (
	"bytes"
	"context"
	"image"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"maskcam/internal/models"
)

const (
	defaultTimeout        = 10 * time.Second
	defaultConnectTimeout = 5 * time.Second
	maxResponseBytes      = 1 << 20
)

// HTTPDetector posts each frame as JSON to a fixed endpoint.
type HTTPDetector struct {
	url    string
	client *http.Client
	enc    Encoder
	logger *zap.SugaredLogger
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   defaultConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        4,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

func NewHTTPDetector(url string, timeout time.Duration, enc Encoder, logger *zap.SugaredLogger) *HTTPDetector {
	return &HTTPDetector{
		url:    url,
		client: newHTTPClient(timeout),
		enc:    enc,
		logger: logger.Named("detector.http"),
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, frame image.Image) ([]models.DetectionResult, error) {
	body, scale, err := d.enc.Encode(frame)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "post %s", d.url)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Wrapf(ErrBadStatus, "status %d: %s", resp.StatusCode, truncate(string(payload), 200))
	}

	results, err := decodeResults(payload, scale, d.logger)
	if err != nil {
		return nil, err
	}

	d.logger.Debugw("detections received", "request_id", reqID, "count", len(results), "bytes", len(body))

	return results, nil
}

func (d *HTTPDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
