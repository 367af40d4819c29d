package ui

import (
	"context"
	"image"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"go.uber.org/zap"

	"maskcam/internal/config"
	"maskcam/internal/state"
	"maskcam/internal/ui/cwidget"
	"maskcam/processing/capture"
	"maskcam/processing/overlay"
	"maskcam/processing/session"
)

const (
	appTitle     = "Mask Detector"
	statInterval = 200 * time.Millisecond

	loadingCameras = "Loading cameras..."
	noCameras      = "No cameras found"
)

// FrameSource is the part of the camera the window reads from.
type FrameSource interface {
	Latest() image.Image
	Size() (int, int)
}

type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	ctx        context.Context
	config     *config.Config
	configPath string
	camera     FrameSource
	session    *session.Session
	logger     *zap.SugaredLogger

	dynamicSettings *fyne.Container
	staticSettings  *fyne.Container

	videoCanvas   *canvas.Image
	overlayCanvas *canvas.Image
	toggleBtn     *widget.Button
	resultsLabel  *widget.Label
	statusLabel   *widget.Label
}

func CreateApp(ctx context.Context, cfg *config.Config, configPath string, camera FrameSource, sess *session.Session, logger *zap.SugaredLogger) *DetectApp {
	return newDetectApp(app.New(), ctx, cfg, configPath, camera, sess, logger)
}

func newDetectApp(fyneApp fyne.App, ctx context.Context, cfg *config.Config, configPath string, camera FrameSource, sess *session.Session, logger *zap.SugaredLogger) *DetectApp {
	w := fyneApp.NewWindow(appTitle)
	w.Resize(fyne.NewSize(1200, 700))

	return &DetectApp{
		fyneApp:    fyneApp,
		mainWin:    w,
		ctx:        ctx,
		config:     cfg,
		configPath: configPath,
		camera:     camera,
		session:    sess,
		logger:     logger.Named("ui"),
	}
}

func (a *DetectApp) Run() {
	a.buildContent()

	go a.runPlayerLoop()
	go a.runStatLoop()
	go func() {
		<-a.ctx.Done()
		fyne.Do(a.fyneApp.Quit)
	}()

	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

// buildContent creates the widgets and subscribes them to the session.
func (a *DetectApp) buildContent() {
	a.videoCanvas = canvas.NewImageFromImage(nil)
	a.videoCanvas.FillMode = canvas.ImageFillContain
	a.videoCanvas.SetMinSize(fyne.NewSize(640, 480))

	// same fill mode and size as the video so boxes line up after scaling
	a.overlayCanvas = canvas.NewImageFromImage(nil)
	a.overlayCanvas.FillMode = canvas.ImageFillContain
	a.overlayCanvas.SetMinSize(fyne.NewSize(640, 480))

	a.toggleBtn = widget.NewButtonWithIcon(toggleLabel(false), theme.MediaPlayIcon(), a.onToggle)
	a.toggleBtn.Importance = widget.HighImportance

	a.resultsLabel = widget.NewLabel(noDetections)
	a.resultsLabel.TextStyle = fyne.TextStyle{Monospace: true}
	a.resultsLabel.Wrapping = fyne.TextWrapWord

	a.statusLabel = widget.NewLabel(formatStatus(false, 0, 0, 0))

	videoContainer := container.NewBorder(
		a.navBar(),
		container.NewVBox(
			container.NewHBox(a.toggleBtn, widget.NewSeparator(), a.statusLabel),
			widget.NewLabelWithStyle("Detections", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			a.resultsLabel,
		),
		nil, nil,
		container.NewStack(a.videoCanvas, a.overlayCanvas),
	)

	split := container.NewHSplit(
		container.NewPadded(container.NewVScroll(a.sidebar())),
		container.NewPadded(videoContainer),
	)
	split.SetOffset(0.3)

	a.mainWin.SetContent(split)

	a.session.Store().Subscribe(func(state.Snapshot) {
		fyne.Do(a.render)
	})
	a.session.SetOnError(func(err error) {
		fyne.Do(func() {
			dialog.ShowError(err, a.mainWin)
		})
	})

	a.mainWin.SetCloseIntercept(a.onClose)
}

func (a *DetectApp) navBar() fyne.CanvasObject {
	title := widget.NewLabelWithStyle(appTitle, fyne.TextAlignLeading, fyne.TextStyle{Bold: true})

	login := widget.NewButton("Login", func() {
		a.logger.Info("login is not available yet")
	})
	signup := widget.NewButton("Sign up", func() {
		a.logger.Info("sign up is not available yet")
	})

	return container.NewVBox(
		container.NewBorder(nil, nil, title, container.NewHBox(login, signup)),
		widget.NewSeparator(),
	)
}

// render redraws everything derived from the store. It reads a fresh
// snapshot because notifications from different goroutines can arrive out
// of order.
func (a *DetectApp) render() {
	snap := a.session.Store().Snapshot()

	a.toggleBtn.SetText(toggleLabel(snap.Active))
	if snap.Active {
		a.toggleBtn.SetIcon(theme.MediaStopIcon())
	} else {
		a.toggleBtn.SetIcon(theme.MediaPlayIcon())
	}

	a.resultsLabel.SetText(formatResults(snap.Results))

	w, h := a.camera.Size()
	if !snap.Active || w == 0 || h == 0 {
		a.overlayCanvas.Image = nil
		a.videoCanvas.Image = nil
		a.videoCanvas.Refresh()
	} else {
		a.overlayCanvas.Image = overlay.Render(snap.Results, w, h)
	}
	a.overlayCanvas.Refresh()
}

func (a *DetectApp) onToggle() {
	a.toggleBtn.Disable()

	go func() {
		err := a.session.Toggle(a.ctx)

		fyne.Do(func() {
			a.toggleBtn.Enable()
			if err != nil {
				dialog.ShowError(err, a.mainWin)
			}
			a.render()
		})
	}()
}

// restart applies new settings to a running session.
func (a *DetectApp) restart() {
	if !a.session.Active() {
		return
	}

	a.toggleBtn.Disable()

	go func() {
		err := a.session.Stop()
		if err == nil {
			err = a.session.Start(a.ctx)
		}

		fyne.Do(func() {
			a.toggleBtn.Enable()
			if err != nil {
				dialog.ShowError(err, a.mainWin)
			}
			a.render()
		})
	}()
}

func (a *DetectApp) stopCapture() {
	if !a.session.Active() {
		return
	}

	go func() {
		if err := a.session.Stop(); err != nil {
			a.logger.Warnw("stop capture", "error", err)
		}
	}()
}

func (a *DetectApp) onClose() {
	if err := a.session.Stop(); err != nil {
		a.logger.Warnw("stop capture on close", "error", err)
	}

	if err := a.config.Save(a.configPath); err != nil {
		a.logger.Errorw("save config on close", "error", err)
	}

	a.mainWin.Close()
}

func (a *DetectApp) runStatLoop() {
	uiTicker := time.NewTicker(statInterval)
	defer uiTicker.Stop()

	sampler := a.session.Sampler()

	for {
		select {
		case <-uiTicker.C:
			text := formatStatus(a.session.Active(), sampler.Latency(), sampler.Dropped(), sampler.Failed())
			fyne.Do(func() {
				a.statusLabel.SetText(text)
			})
		case <-a.ctx.Done():
			return
		}
	}
}

func frameInterval(fps uint) time.Duration {
	if fps == 0 {
		fps = 1
	}
	return time.Second / time.Duration(fps)
}

// runPlayerLoop copies the newest frame to the video canvas. The FPS setting
// is re-read on every tick so a saved change takes effect without a restart.
func (a *DetectApp) runPlayerLoop() {
	fps := a.config.GetFPS()
	displayTicker := time.NewTicker(frameInterval(fps))
	defer displayTicker.Stop()

	var lastFrame image.Image

	for {
		select {
		case <-displayTicker.C:
			if cur := a.config.GetFPS(); cur != fps {
				fps = cur
				displayTicker.Reset(frameInterval(fps))
			}

			frame := a.camera.Latest()
			if frame == nil || frame == lastFrame {
				continue
			}
			lastFrame = frame

			fyne.Do(func() {
				a.showFrame(frame)
			})

		case <-a.ctx.Done():
			return
		}
	}
}

// showFrame paints frame unless capture stopped after it was queued.
func (a *DetectApp) showFrame(frame image.Image) {
	if !a.session.Active() {
		return
	}
	a.videoCanvas.Image = frame
	a.videoCanvas.Refresh()
}

func (a *DetectApp) sidebar() fyne.CanvasObject {
	a.dynamicSettings = container.NewVBox()

	sourceTypeSelect := widget.NewSelect(config.SourcesList[:], func(s string) {
		if config.SourceType(s) == a.config.GetSource() && len(a.dynamicSettings.Objects) > 0 {
			return
		}
		a.config.SetSource(config.SourceType(s))
		a.refreshSettingsUI(s)
	})
	sourceTypeSelect.SetSelected(string(a.config.GetSource()))

	a.setupConfigSettings()

	return container.NewVBox(
		widget.NewLabelWithStyle("Configuration", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewSeparator(),
		widget.NewLabel("Source Type:"),
		sourceTypeSelect,
		widget.NewSeparator(),
		a.dynamicSettings,
		a.staticSettings,
	)
}

func (a *DetectApp) setupConfigSettings() {
	a.staticSettings = container.NewVBox()

	fpsInput := cwidget.NewIntInput(
		"FPS",
		"Enter integer",
		int(a.config.GetFPS()),
		1,
		func(i int) {
			a.config.SetFPS(uint(i))
		},
	)

	intervalInput := cwidget.NewIntInput(
		"Sampling interval (ms)",
		"Enter integer",
		int(a.config.GetSampleInterval().Milliseconds()),
		100,
		func(i int) {
			a.config.SetSampleInterval(time.Duration(i) * time.Millisecond)
		},
	)

	widthInput := cwidget.NewIntInput(
		"Width",
		"Enter integer",
		a.config.GetWidth(),
		16,
		a.config.SetWidth,
	)

	heightInput := cwidget.NewIntInput(
		"Height",
		"Enter integer",
		a.config.GetHeight(),
		16,
		a.config.SetHeight,
	)

	qualityInput := cwidget.NewIntInput(
		"JPEG quality",
		"1-100",
		a.config.GetJPEGQuality(),
		1,
		func(i int) {
			a.config.SetJPEGQuality(i)
		},
	)

	detector := a.config.GetDetector()

	urlInput := cwidget.NewTextInput(
		"Detector URL",
		config.DefaultDetectorURL,
		detector.URL,
		a.config.SetDetectorURL,
	)

	transportSelect := widget.NewSelect([]string{config.TransportHTTP, config.TransportWS}, a.config.SetDetectorTransport)
	transportSelect.SetSelected(detector.Transport)

	saveCfg := widget.NewButtonWithIcon("Save config", theme.DocumentSaveIcon(), func() {
		a.config.Normalize()
		if err := a.config.Save(a.configPath); err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		a.logger.Infow("config saved", "path", a.configPath)
		a.restart()
	})

	a.staticSettings.Add(fpsInput)
	a.staticSettings.Add(widthInput)
	a.staticSettings.Add(heightInput)
	a.staticSettings.Add(intervalInput)
	a.staticSettings.Add(qualityInput)
	a.staticSettings.Add(urlInput)
	a.staticSettings.Add(widget.NewLabel("Transport:"))
	a.staticSettings.Add(transportSelect)
	a.staticSettings.Add(widget.NewSeparator())
	a.staticSettings.Add(saveCfg)
}

func (a *DetectApp) refreshSettingsUI(sourceType string) {
	a.dynamicSettings.Objects = nil
	a.stopCapture()

	switch config.SourceType(sourceType) {
	case config.SourceLocal:
		a.addPathSetting("Video Path:", "/path/to/video.mp4", a.config.GetLocalPath(), a.config.SetLocalPath)

	case config.SourceImage:
		a.addPathSetting("Image Path:", "/path/to/image.jpg", a.config.GetImagePath(), a.config.SetImagePath)

	case config.SourceWebcam:
		deviceSelect := widget.NewSelect([]string{loadingCameras}, func(s string) {
			if s != loadingCameras && s != noCameras {
				a.config.SetDeviceID(s)
			}
		})
		deviceSelect.SetSelected(loadingCameras)
		deviceSelect.Disable()

		a.dynamicSettings.Add(widget.NewLabel("Select Camera:"))
		a.dynamicSettings.Add(deviceSelect)

		go func() {
			devices, err := capture.ListCameras()

			fyne.Do(func() {
				switch {
				case err != nil:
					a.logger.Warnw("list cameras", "error", err)
					dialog.ShowError(err, a.mainWin)
					deviceSelect.Options = []string{"Error listing cameras"}
				case len(devices) == 0:
					deviceSelect.Options = []string{noCameras}
				default:
					deviceSelect.Options = devices
					deviceSelect.Enable()

					if id := a.config.GetDeviceID(); id != "" {
						deviceSelect.SetSelected(id)
					} else {
						deviceSelect.SetSelected(devices[0])
					}
				}
				deviceSelect.Refresh()
			})
		}()
	}

	a.dynamicSettings.Refresh()
}

func (a *DetectApp) addPathSetting(label, placeholder, value string, set func(string)) {
	pathEntry := widget.NewEntry()
	pathEntry.SetPlaceHolder(placeholder)
	pathEntry.SetText(value)
	pathEntry.OnChanged = set

	fileBtn := widget.NewButtonWithIcon("Open File", theme.FolderOpenIcon(), func() {
		dialog.ShowFileOpen(func(reader fyne.URIReadCloser, err error) {
			if err == nil && reader != nil {
				defer reader.Close()
				pathEntry.SetText(reader.URI().Path())
			}
		}, a.mainWin)
	})

	a.dynamicSettings.Add(widget.NewLabel(label))
	a.dynamicSettings.Add(container.NewBorder(nil, nil, nil, fileBtn, pathEntry))
}
