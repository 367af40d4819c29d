package config

import (
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type SourceType string

const (
	SourceWebcam SourceType = "Web-Camera"
	SourceLocal  SourceType = "Local"
	SourceImage  SourceType = "Image"

	TransportHTTP = "http"
	TransportWS   = "ws"

	DefaultConfigPath  string = "config.json"
	DefaultDetectorURL string = "http://localhost:8000/detect-mask/"

	defaultSampleInterval uint = 1000
	defaultJPEGQuality    int  = 92
	defaultFPS            uint = 24
	defaultWidth          int  = 640
	defaultHeight         int  = 480
	defaultTimeout        uint = 10000
	defaultOpenTimeout    uint = 5000
)

var SourcesList = [...]string{
	string(SourceWebcam),
	string(SourceLocal),
	string(SourceImage),
}

type LocalConfig struct {
	Path string `json:"path"`
}

type WebcamConfig struct {
	DeviceID string `json:"device_id"`
}

type ImageConfig struct {
	Path string `json:"path"`
}

type DetectorConfig struct {
	URL       string `json:"url"`
	Transport string `json:"transport"`
	TimeoutMs uint   `json:"timeout_ms"`
}

type Config struct {
	mu sync.RWMutex

	ActiveSource SourceType `json:"active_source"`
	TargetFPS    uint       `json:"target_fps"`
	ScaledWidth  int        `json:"scaled_width"`
	ScaledHeight int        `json:"scaled_height"`

	SampleIntervalMs uint `json:"sample_interval_ms"`
	JPEGQuality      int  `json:"jpeg_quality"`
	MaxUploadWidth   int  `json:"max_upload_width"`
	OpenTimeoutMs    uint `json:"open_timeout_ms"`

	Detector DetectorConfig `json:"detector"`

	Local  LocalConfig  `json:"local"`
	Webcam WebcamConfig `json:"webcam"`
	Image  ImageConfig  `json:"image"`
}

func (c *Config) GetSource() SourceType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ActiveSource
}

func (c *Config) SetSource(s SourceType) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ActiveSource = s
}

func (c *Config) GetFPS() uint {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TargetFPS
}

func (c *Config) SetFPS(fps uint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.TargetFPS = fps
}

func (c *Config) GetWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledWidth
}

func (c *Config) SetWidth(width int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledWidth = width
}

func (c *Config) GetHeight() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ScaledHeight
}

func (c *Config) SetHeight(height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ScaledHeight = height
}

func (c *Config) GetSampleInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.SampleIntervalMs) * time.Millisecond
}

func (c *Config) SetSampleInterval(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.SampleIntervalMs = uint(d / time.Millisecond)
}

func (c *Config) GetJPEGQuality() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.JPEGQuality
}

func (c *Config) SetJPEGQuality(q int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.JPEGQuality = q
}

func (c *Config) GetMaxUploadWidth() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.MaxUploadWidth
}

func (c *Config) GetOpenTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.OpenTimeoutMs) * time.Millisecond
}

func (c *Config) GetDetector() DetectorConfig {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Detector
}

func (c *Config) SetDetectorURL(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detector.URL = url
}

func (c *Config) SetDetectorTransport(transport string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Detector.Transport = transport
}

func (c *Config) GetLocalPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Local.Path
}

func (c *Config) SetLocalPath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Local.Path = path
}

func (c *Config) GetDeviceID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Webcam.DeviceID
}

func (c *Config) SetDeviceID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Webcam.DeviceID = id
}

func (c *Config) GetImagePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Image.Path
}

func (c *Config) SetImagePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Image.Path = path
}

// Normalize replaces out-of-range values with their defaults.
func (c *Config) Normalize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.normalize()
}

func (c *Config) normalize() {
	switch c.ActiveSource {
	case SourceWebcam, SourceLocal, SourceImage:
	default:
		c.ActiveSource = SourceWebcam
	}
	if c.TargetFPS == 0 {
		c.TargetFPS = defaultFPS
	}
	if c.ScaledWidth <= 0 {
		c.ScaledWidth = defaultWidth
	}
	if c.ScaledHeight <= 0 {
		c.ScaledHeight = defaultHeight
	}
	if c.SampleIntervalMs == 0 {
		c.SampleIntervalMs = defaultSampleInterval
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		c.JPEGQuality = defaultJPEGQuality
	}
	if c.MaxUploadWidth < 0 {
		c.MaxUploadWidth = 0
	}
	if c.OpenTimeoutMs == 0 {
		c.OpenTimeoutMs = defaultOpenTimeout
	}
	if c.Detector.URL == "" {
		c.Detector.URL = DefaultDetectorURL
	}
	if c.Detector.Transport != TransportHTTP && c.Detector.Transport != TransportWS {
		c.Detector.Transport = TransportHTTP
	}
	if c.Detector.TimeoutMs == 0 {
		c.Detector.TimeoutMs = defaultTimeout
	}
}

// CopyFrom overwrites the exported fields of c with those of other.
func (c *Config) CopyFrom(other *Config) {
	data := other.snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	data.apply(c)
}

// configData mirrors Config without the mutex so it can be copied and encoded.
type configData struct {
	ActiveSource     SourceType     `json:"active_source"`
	TargetFPS        uint           `json:"target_fps"`
	ScaledWidth      int            `json:"scaled_width"`
	ScaledHeight     int            `json:"scaled_height"`
	SampleIntervalMs uint           `json:"sample_interval_ms"`
	JPEGQuality      int            `json:"jpeg_quality"`
	MaxUploadWidth   int            `json:"max_upload_width"`
	OpenTimeoutMs    uint           `json:"open_timeout_ms"`
	Detector         DetectorConfig `json:"detector"`
	Local            LocalConfig    `json:"local"`
	Webcam           WebcamConfig   `json:"webcam"`
	Image            ImageConfig    `json:"image"`
}

func (c *Config) snapshot() configData {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return configData{
		ActiveSource:     c.ActiveSource,
		TargetFPS:        c.TargetFPS,
		ScaledWidth:      c.ScaledWidth,
		ScaledHeight:     c.ScaledHeight,
		SampleIntervalMs: c.SampleIntervalMs,
		JPEGQuality:      c.JPEGQuality,
		MaxUploadWidth:   c.MaxUploadWidth,
		OpenTimeoutMs:    c.OpenTimeoutMs,
		Detector:         c.Detector,
		Local:            c.Local,
		Webcam:           c.Webcam,
		Image:            c.Image,
	}
}

func (d configData) apply(c *Config) {
	c.ActiveSource = d.ActiveSource
	c.TargetFPS = d.TargetFPS
	c.ScaledWidth = d.ScaledWidth
	c.ScaledHeight = d.ScaledHeight
	c.SampleIntervalMs = d.SampleIntervalMs
	c.JPEGQuality = d.JPEGQuality
	c.MaxUploadWidth = d.MaxUploadWidth
	c.OpenTimeoutMs = d.OpenTimeoutMs
	c.Detector = d.Detector
	c.Local = d.Local
	c.Webcam = d.Webcam
	c.Image = d.Image
}

func (c *Config) Save(path string) error {
	data := c.snapshot()

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return errors.Wrap(err, "encode config")
	}

	return nil
}

// LoadConfigFile reads path on top of the defaults. A missing file yields the
// defaults without error.
func LoadConfigFile(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()

	data := cfg.snapshot()
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return NewDefaultConfig(), errors.Wrapf(err, "decode config %s", path)
	}

	cfg.mu.Lock()
	data.apply(cfg)
	cfg.normalize()
	cfg.mu.Unlock()

	return cfg, nil
}

func NewDefaultConfig() *Config {
	return &Config{
		ActiveSource:     SourceWebcam,
		Local:            LocalConfig{Path: ""},
		Webcam:           WebcamConfig{DeviceID: "/dev/video0"},
		Image:            ImageConfig{Path: ""},
		TargetFPS:        defaultFPS,
		ScaledWidth:      defaultWidth,
		ScaledHeight:     defaultHeight,
		SampleIntervalMs: defaultSampleInterval,
		JPEGQuality:      defaultJPEGQuality,
		OpenTimeoutMs:    defaultOpenTimeout,
		Detector: DetectorConfig{
			URL:       DefaultDetectorURL,
			Transport: TransportHTTP,
			TimeoutMs: defaultTimeout,
		},
	}
}
