//go:build gui

package gui

import (
	"image/color"
	"math"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/widget"
)

const (
	eyeCols = 22
	eyeRows = 15
	frameMs = 33
)

type eyeState int

const (
	eyeIdle eyeState = iota
	eyeConnecting
	eyeListening
)

// EyeWidget is a pulsing indicator. It breathes slowly while idle, blinks
// while connecting and swells briefly whenever new words arrive.
type EyeWidget struct {
	widget.BaseWidget
	cell   float32
	active []color.Color
	idle   []color.Color

	mu     sync.Mutex
	frame  int
	state  eyeState
	level  float64
	stopCh chan struct{}
	once   sync.Once
}

func NewEyeWidget(cell float32, t *overlayTheme) *EyeWidget {
	e := &EyeWidget{
		cell:   cell,
		active: palette(t.accent, t.bg, t.fg),
		idle:   palette(gray(t.accent), t.bg, t.fg),
		stopCh: make(chan struct{}),
	}
	e.ExtendBaseWidget(e)
	go e.animate()
	return e
}

func (e *EyeWidget) setState(s eyeState) {
	e.mu.Lock()
	e.state = s
	if s == eyeIdle {
		e.level = 0
	}
	e.mu.Unlock()
}

// Pulse swells the eye once.
func (e *EyeWidget) Pulse() {
	e.mu.Lock()
	if e.state == eyeListening {
		e.level = 0.03
	}
	e.mu.Unlock()
}

func (e *EyeWidget) Stop() {
	e.once.Do(func() { close(e.stopCh) })
}

func (e *EyeWidget) animate() {
	ticker := time.NewTicker(frameMs * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.mu.Lock()
			e.frame++
			e.level *= 0.85
			e.mu.Unlock()
			fyne.Do(e.Refresh)
		}
	}
}

func (e *EyeWidget) MinSize() fyne.Size {
	return fyne.NewSize(eyeCols*e.cell, eyeRows*e.cell)
}

func (e *EyeWidget) CreateRenderer() fyne.WidgetRenderer {
	r := &eyeRenderer{eye: e, rects: make([][]*canvas.Rectangle, eyeRows)}
	for y := range r.rects {
		r.rects[y] = make([]*canvas.Rectangle, eyeCols)
		for x := range r.rects[y] {
			r.rects[y][x] = canvas.NewRectangle(color.Transparent)
		}
	}
	return r
}

type eyeRenderer struct {
	eye   *EyeWidget
	rects [][]*canvas.Rectangle
}

func (r *eyeRenderer) Layout(size fyne.Size) {
	cellW := size.Width / eyeCols
	cellH := size.Height / eyeRows
	for y, row := range r.rects {
		for x, rect := range row {
			rect.Move(fyne.NewPos(float32(x)*cellW, float32(y)*cellH))
			rect.Resize(fyne.NewSize(cellW, cellH))
		}
	}
}

func (r *eyeRenderer) MinSize() fyne.Size {
	return r.eye.MinSize()
}

func (r *eyeRenderer) Refresh() {
	r.eye.mu.Lock()
	frame, level, state := r.eye.frame, r.eye.level, r.eye.state
	r.eye.mu.Unlock()

	colors := r.eye.idle
	if state == eyeListening || (state == eyeConnecting && frame/8%2 == 0) {
		colors = r.eye.active
	}
	pixels := eyePixels(frame, level, state != eyeIdle)
	for y, row := range r.rects {
		for x, rect := range row {
			rect.FillColor = colors[pixels[y][x]]
			rect.Refresh()
		}
	}
}

func (r *eyeRenderer) Objects() []fyne.CanvasObject {
	objs := make([]fyne.CanvasObject, 0, eyeCols*eyeRows)
	for _, row := range r.rects {
		for _, rect := range row {
			objs = append(objs, rect)
		}
	}
	return objs
}

func (r *eyeRenderer) Destroy() {
	r.eye.Stop()
}

// palette returns 12 colors: 0 is the background, 1..8 fade from a bright
// center to a dark rim, 9..10 are the iris border and 11 is a highlight.
func palette(accent, bg, fg color.RGBA) []color.Color {
	out := make([]color.Color, 12)
	out[0] = bg
	bright := mix(accent, color.RGBA{255, 255, 255, 255}, 0.6)
	for i := 1; i <= 8; i++ {
		t := float64(i-1) / 7
		if t < 0.4 {
			out[i] = mix(bright, accent, t/0.4)
		} else {
			out[i] = mix(accent, bg, (t-0.4)*1.2)
		}
	}
	out[9] = mix(bg, fg, 0.15)
	out[10] = mix(bg, fg, 0.08)
	out[11] = fg
	return out
}

func mix(a, b color.RGBA, t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))
	lerp := func(x, y uint8) uint8 { return uint8(float64(x) + (float64(y)-float64(x))*t) }
	return color.RGBA{lerp(a.R, b.R), lerp(a.G, b.G), lerp(a.B, b.B), 255}
}

func gray(c color.RGBA) color.RGBA {
	l := uint8(0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B))
	return color.RGBA{l, l, l, 255}
}

type ring struct {
	radius, swell float64
	color         int
}

var rings = []ring{
	{0.8, 0.30, 1},
	{1.6, 0.32, 2},
	{2.4, 0.28, 3},
	{3.2, 0.20, 4},
	{4.0, 0.16, 5},
	{4.8, 0.12, 6},
	{5.6, 0.08, 7},
	{6.2, 0.04, 8},
	{6.8, 0, 9},
	{7.4, 0, 10},
}

// eyePixels maps each cell to a palette index. Cells are twice as tall as
// they are wide, so rows are stretched when measuring distance.
func eyePixels(frame int, level float64, awake bool) [][]int {
	speed, depth := 0.10, 0.05
	if awake {
		speed, depth = 0.15, 0.08
	}
	breathe := math.Sin(float64(frame)*speed)*depth + level*15

	cx, cy := float64(eyeCols-1)/2, float64(eyeRows-1)/2
	pixels := make([][]int, eyeRows)
	for y := range pixels {
		pixels[y] = make([]int, eyeCols)
		for x := range pixels[y] {
			dx := (float64(x) - cx) / 1.5
			dy := float64(y) - cy
			dist := math.Hypot(dx, dy)
			for _, r := range rings {
				if dist < r.radius+breathe*r.swell*10 {
					pixels[y][x] = r.color
					break
				}
			}
		}
	}
	// Glint above and left of the pupil.
	gx, gy := int(cx)-2, int(cy)-3
	if gy >= 0 && gx >= 0 {
		pixels[gy][gx] = 11
	}
	return pixels
}
