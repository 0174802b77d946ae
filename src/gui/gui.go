// Package gui renders the lookup popup with fyne and exposes the fyne system
// tray menu. fyne must own the main goroutine: call App.Run from main.
package gui

import (
	"image/color"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"a9i/src/messages"
	"a9i/src/popup"
)

const (
	AppID = "dev.a9i.overlay"

	// PopupWidth and PopupHeight bound the popup; screen placement uses them.
	PopupWidth  = 420
	PopupHeight = 160

	wrapColumns = 52
	maxLines    = 7
)

var (
	backgroundColor = color.NRGBA{R: 0x20, G: 0x22, B: 0x26, A: 0xF0}
	loadingColor    = color.NRGBA{R: 0xB0, G: 0xB4, B: 0xBC, A: 0xFF}
	resultColor     = color.NRGBA{R: 0xF5, G: 0xF5, B: 0xF5, A: 0xFF}
)

// Options configures the fyne application.
type Options struct {
	Icon []byte
	// OnDismiss is called when the user clicks the popup.
	OnDismiss func()
	// OnQuit is called when Quit is chosen from the tray menu.
	OnQuit func()
	// Tray installs the fyne system tray menu when supported.
	Tray   bool
	Logger *slog.Logger
}

// App owns the fyne application, the popup window and the tray menu.
type App struct {
	app  fyne.App
	win  fyne.Window
	opts Options
	log  *slog.Logger

	bg     *canvas.Rectangle
	lines  *fyne.Container
	status *fyne.MenuItem
	menu   *fyne.Menu

	started chan struct{}

	mu      sync.Mutex
	text    string
	style   popup.Style
	opacity float64
	pos     messages.Point
}

// New creates the fyne application and its hidden popup window.
func New(opts Options) *App {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	a := &App{
		app:     app.NewWithID(AppID),
		opts:    opts,
		log:     log.With("component", "gui"),
		started: make(chan struct{}),
	}
	var once sync.Once
	a.app.Lifecycle().SetOnStarted(func() { once.Do(func() { close(a.started) }) })

	if drv, ok := a.app.Driver().(desktop.Driver); ok {
		a.win = drv.CreateSplashWindow()
	} else {
		a.win = a.app.NewWindow("A9I")
	}
	a.win.SetPadded(false)

	a.bg = canvas.NewRectangle(backgroundColor)
	a.bg.CornerRadius = 8
	a.lines = container.NewVBox()
	content := container.NewStack(
		a.bg,
		container.NewPadded(a.lines),
		newDismissLayer(a.dismiss),
	)
	a.win.SetContent(content)
	a.win.Resize(fyne.NewSize(PopupWidth, PopupHeight))

	if opts.Tray {
		a.installTray()
	}
	return a
}

func (a *App) installTray() {
	desk, ok := a.app.(desktop.App)
	if !ok {
		a.log.Warn("system tray not supported by this driver")
		return
	}
	a.status = fyne.NewMenuItem("Idle", nil)
	a.status.Disabled = true
	quit := fyne.NewMenuItem("Quit", func() {
		if a.opts.OnQuit != nil {
			a.opts.OnQuit()
		}
	})
	quit.IsQuit = true
	a.menu = fyne.NewMenu("A9I", a.status, fyne.NewMenuItemSeparator(), quit)
	desk.SetSystemTrayMenu(a.menu)
	if len(a.opts.Icon) > 0 {
		desk.SetSystemTrayIcon(fyne.NewStaticResource("a9i.png", a.opts.Icon))
	}
}

// Run blocks on the fyne event loop until Quit.
func (a *App) Run() { a.app.Run() }

// Quit stops the fyne event loop, waiting for it to start if necessary.
func (a *App) Quit() {
	go func() {
		<-a.started
		fyne.Do(a.app.Quit)
	}()
}

// SetBusy updates the tray status entry.
func (a *App) SetBusy(busy bool) {
	if a.status == nil {
		return
	}
	label := "Idle"
	if busy {
		label = "Working..."
	}
	fyne.Do(func() {
		a.status.Label = label
		a.menu.Refresh()
	})
}

func (a *App) dismiss() {
	if a.opts.OnDismiss != nil {
		a.opts.OnDismiss()
	}
}

// SetText implements popup.Renderer.
func (a *App) SetText(text string, style popup.Style) {
	a.mu.Lock()
	a.text, a.style = text, style
	a.mu.Unlock()
	fyne.Do(a.redraw)
}

// Move implements popup.Renderer. fyne has no portable API for absolute
// window placement, so the position is applied through the native window
// handle on X11 and Windows. Elsewhere (Wayland, macOS) the window manager
// decides where the splash window appears.
func (a *App) Move(p messages.Point) {
	a.mu.Lock()
	a.pos = p
	a.mu.Unlock()
	a.log.Debug("popup position", "x", p.X, "y", p.Y)
	fyne.Do(a.placeWindow)
}

// SetOpacity implements popup.Renderer by scaling the alpha of every element.
func (a *App) SetOpacity(o float64) {
	a.mu.Lock()
	a.opacity = o
	a.mu.Unlock()
	fyne.Do(a.redraw)
}

func (a *App) Show() {
	fyne.Do(func() {
		a.win.Show()
		a.placeWindow()
	})
}
func (a *App) Hide() { fyne.Do(a.win.Hide) }

// redraw runs on the fyne goroutine.
func (a *App) redraw() {
	a.mu.Lock()
	text, style, opacity := a.text, a.style, a.opacity
	a.mu.Unlock()

	a.bg.FillColor = withAlpha(backgroundColor, opacity)
	a.bg.Refresh()

	fg := resultColor
	textStyle := fyne.TextStyle{}
	if style == popup.StyleLoading {
		fg = loadingColor
		textStyle.Italic = true
	}

	objs := make([]fyne.CanvasObject, 0, maxLines)
	for _, line := range WrapLines(text, wrapColumns, maxLines) {
		t := canvas.NewText(line, withAlpha(fg, opacity))
		t.TextStyle = textStyle
		objs = append(objs, t)
	}
	a.lines.Objects = objs
	a.lines.Refresh()
}

func withAlpha(c color.NRGBA, opacity float64) color.NRGBA {
	if opacity < 0 {
		opacity = 0
	}
	if opacity > 1 {
		opacity = 1
	}
	c.A = uint8(float64(c.A) * opacity)
	return c
}

// dismissLayer is a transparent widget covering the popup that reports clicks.
type dismissLayer struct {
	widget.BaseWidget
	onTap func()
}

func newDismissLayer(onTap func()) *dismissLayer {
	d := &dismissLayer{onTap: onTap}
	d.ExtendBaseWidget(d)
	return d
}

func (d *dismissLayer) Tapped(_ *fyne.PointEvent) {
	if d.onTap != nil {
		d.onTap()
	}
}

func (d *dismissLayer) Cursor() desktop.Cursor { return desktop.PointerCursor }

func (d *dismissLayer) CreateRenderer() fyne.WidgetRenderer {
	return widget.NewSimpleRenderer(canvas.NewRectangle(color.Transparent))
}
