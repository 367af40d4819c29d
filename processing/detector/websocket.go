package detector

import (
	"context"
	"image"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"maskcam/internal/models"
)

// WSDetector keeps one websocket to the service and exchanges one JSON
// message pair per frame. The connection is dialed lazily and dropped on any
// error; the next call dials again.
type WSDetector struct {
	serverURL string
	timeout   time.Duration
	enc       Encoder
	dialer    *websocket.Dialer
	logger    *zap.SugaredLogger

	mu   sync.Mutex
	conn *websocket.Conn
}

// wsURL maps an http(s) detector URL to the service's /ws endpoint; ws(s)
// URLs are used as given.
func wsURL(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", errors.Wrapf(err, "parse %s", raw)
	}

	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
		u.Path = "/ws"
	case "https":
		u.Scheme = "wss"
		u.Path = "/ws"
	default:
		return "", errors.Errorf("unsupported scheme %q", u.Scheme)
	}

	return u.String(), nil
}

func NewWSDetector(rawURL string, timeout time.Duration, enc Encoder, logger *zap.SugaredLogger) (*WSDetector, error) {
	u, err := wsURL(rawURL)
	if err != nil {
		return nil, err
	}

	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &WSDetector{
		serverURL: u,
		timeout:   timeout,
		enc:       enc,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultConnectTimeout,
		},
		logger: logger.Named("detector.ws"),
	}, nil
}

func (d *WSDetector) connect(ctx context.Context) (*websocket.Conn, error) {
	if d.conn != nil {
		return d.conn, nil
	}

	d.logger.Infow("connecting to detector server", "url", d.serverURL)
	conn, _, err := d.dialer.DialContext(ctx, d.serverURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", d.serverURL)
	}

	d.conn = conn
	d.logger.Info("connected to detection server")

	return conn, nil
}

func (d *WSDetector) drop(reason error) {
	if d.conn == nil {
		return
	}
	d.logger.Warnw("connection lost", "error", reason)
	d.conn.Close()
	d.conn = nil
}

func (d *WSDetector) Detect(ctx context.Context, frame image.Image) ([]models.DetectionResult, error) {
	body, scale, err := d.enc.Encode(frame)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	conn, err := d.connect(ctx)
	if err != nil {
		return nil, err
	}

	// gorilla ignores contexts once connected; closing unblocks any pending I/O
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		if !stop() {
			d.drop(ctx.Err())
		}
	}()

	deadline := time.Now().Add(d.timeout)
	conn.SetWriteDeadline(deadline)
	conn.SetReadDeadline(deadline)

	if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
		d.drop(err)
		return nil, errors.Wrap(err, "write frame")
	}

	_, message, err := conn.ReadMessage()
	if err != nil {
		d.drop(err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrap(err, "read response")
	}

	return decodeResults(message, scale, d.logger)
}

func (d *WSDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.conn == nil {
		return nil
	}

	d.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := d.conn.Close()
	d.conn = nil

	return err
}
