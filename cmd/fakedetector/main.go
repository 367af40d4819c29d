// Command fakedetector serves canned mask detections over HTTP and websocket
// so the camera app can run without the real model.
package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"maskcam/internal/logging"
	"maskcam/internal/models"
)

const dataURIPrefix = "data:image/jpeg;base64,"

type server struct {
	pixelBoxes bool
	logger     *zap.SugaredLogger
}

func newApp(s *server) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "fakedetector",
		DisableStartupMessage: true,
		BodyLimit:             16 * 1024 * 1024,
	})

	app.Post("/detect-mask/", s.handleDetect)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(s.handleWS))

	return app
}

func (s *server) handleDetect(c *fiber.Ctx) error {
	resp, err := s.analyze(c.Body())
	if err != nil {
		s.logger.Warnw("bad request", "error", err, "request_id", c.Get("X-Request-ID"))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Debugw("detect", "results", len(resp.Results), "request_id", c.Get("X-Request-ID"))
	return c.JSON(resp)
}

func (s *server) handleWS(c *websocket.Conn) {
	s.logger.Infow("websocket client connected", "remote", c.RemoteAddr().String())
	defer s.logger.Infow("websocket client disconnected", "remote", c.RemoteAddr().String())

	for {
		mt, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}

		resp, err := s.analyze(msg)
		if err != nil {
			s.logger.Warnw("bad frame", "error", err)
			resp = models.DetectResponse{Results: []models.DetectionResult{}}
		}

		if err := c.WriteJSON(resp); err != nil {
			return
		}
	}
}

// analyze checks the uploaded frame and answers with one face covering the
// middle of it.
func (s *server) analyze(body []byte) (models.DetectResponse, error) {
	var req models.DetectRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return models.DetectResponse{}, errors.Wrap(err, "decode request")
	}

	if !strings.HasPrefix(req.Image, dataURIPrefix) {
		return models.DetectResponse{}, errors.New("image must be a base64 JPEG data URI")
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(req.Image, dataURIPrefix))
	if err != nil {
		return models.DetectResponse{}, errors.Wrap(err, "decode base64")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return models.DetectResponse{}, errors.Wrap(err, "decode jpeg")
	}

	box := []float64{0.3, 0.2, 0.7, 0.8}
	if s.pixelBoxes {
		w, h := float64(cfg.Width), float64(cfg.Height)
		box = []float64{box[0] * w, box[1] * h, box[2] * w, box[3] * h}
	}

	return models.DetectResponse{Results: []models.DetectionResult{
		{Label: "Mask: 97.0%", Box: box},
	}}, nil
}

func newRootCmd() *cobra.Command {
	var (
		addr     string
		logLevel string
		srv      server
	)

	cmd := &cobra.Command{
		Use:          "fakedetector",
		Short:        "Serve canned mask detections for local testing",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(logLevel)
			if err != nil {
				return err
			}
			defer logger.Sync()

			srv.logger = logger
			app := newApp(&srv)

			go func() {
				<-cmd.Context().Done()
				app.Shutdown()
			}()

			logger.Infow("listening", "addr", addr, "pixel_boxes", srv.pixelBoxes)
			return app.Listen(addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "debug, info, warn or error")
	cmd.Flags().BoolVar(&srv.pixelBoxes, "pixel-boxes", false, "answer with pixel coordinates instead of normalized ones")

	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
