package detector

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"maskcam/internal/models"
)

var upgrader = websocket.Upgrader{}

// wsServer answers every frame with one detection; when closeAfter > 0 it
// hangs up after that many messages.
func wsServer(t *testing.T, closeAfter int, conns *atomic.Int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conns.Add(1)

		for n := 1; ; n++ {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var req models.DetectRequest
			if err := json.Unmarshal(msg, &req); err != nil || !strings.HasPrefix(req.Image, dataURIPrefix) {
				conn.WriteMessage(websocket.TextMessage, []byte(`{"results":[]}`))
				continue
			}

			conn.WriteJSON(models.DetectResponse{Results: []models.DetectionResult{
				{Label: "with_mask", Box: []float64{50, 50, 200, 200}},
			}})

			if closeAfter > 0 && n >= closeAfter {
				return
			}
		}
	}))
}

func TestWSURL(t *testing.T) {
	u, err := wsURL("http://localhost:8000/detect-mask/")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8000/ws", u)

	u, err = wsURL("https://detector.local/detect-mask/")
	require.NoError(t, err)
	assert.Equal(t, "wss://detector.local/ws", u)

	u, err = wsURL("ws://10.0.0.2:9000/stream")
	require.NoError(t, err)
	assert.Equal(t, "ws://10.0.0.2:9000/stream", u)

	_, err = wsURL("ftp://nope")
	assert.Error(t, err)
}

func TestWSDetect(t *testing.T) {
	var conns atomic.Int32
	server := wsServer(t, 0, &conns)
	defer server.Close()

	d, err := NewWSDetector("http"+strings.TrimPrefix(server.URL, "http"), time.Second, Encoder{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer d.Close()

	for i := 0; i < 3; i++ {
		res, err := d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 16)))
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, "with_mask", res[0].Label)
	}

	assert.Equal(t, int32(1), conns.Load(), "connection is reused")
}

func TestWSRedialsAfterDisconnect(t *testing.T) {
	var conns atomic.Int32
	server := wsServer(t, 1, &conns)
	defer server.Close()

	d, err := NewWSDetector("ws"+strings.TrimPrefix(server.URL, "http")+"/ws", time.Second, Encoder{}, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer d.Close()

	frame := image.NewRGBA(image.Rect(0, 0, 16, 16))

	_, err = d.Detect(context.Background(), frame)
	require.NoError(t, err)

	// the server hung up after the first answer; this call fails and drops the socket
	_, err = d.Detect(context.Background(), frame)
	assert.Error(t, err)

	_, err = d.Detect(context.Background(), frame)
	require.NoError(t, err)
	assert.Equal(t, int32(2), conns.Load())
}

func TestWSDialFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	server.Close()

	d, err := NewWSDetector(url, time.Second, Encoder{}, zap.NewNop().Sugar())
	require.NoError(t, err)

	_, err = d.Detect(context.Background(), image.NewRGBA(image.Rect(0, 0, 8, 8)))
	assert.Error(t, err)
	assert.NoError(t, d.Close())
}
