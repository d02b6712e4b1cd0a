// Package chart draws the per-period temperature series as a PNG line chart.
package chart

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	Width  = 800
	Height = 360

	marginLeft   = 56
	marginRight  = 24
	marginTop    = 40
	marginBottom = 44
	yTicks       = 5
)

var (
	background = color.RGBA{250, 250, 252, 255}
	axisColor  = color.RGBA{90, 90, 100, 255}
	gridColor  = color.RGBA{225, 225, 232, 255}
	lineColor  = color.RGBA{214, 96, 77, 255}
	textColor  = color.RGBA{40, 40, 48, 255}
)

// Point is one x-axis category and its value.
type Point struct {
	Label string
	Value float64
}

// RenderLine draws points in the given order and encodes the chart as PNG.
// An empty series renders a placeholder message.
func RenderLine(title string, points []Point) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: background}, image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawText(img, title, marginLeft, marginTop-16, textColor, face)

	if len(points) == 0 {
		msg := "Sin datos para graficar"
		drawText(img, msg, (Width-textWidth(face, msg))/2, Height/2, axisColor, face)
		return encode(img)
	}

	lo, hi := valueRange(points)
	plotW := Width - marginLeft - marginRight
	plotH := Height - marginTop - marginBottom

	yOf := func(v float64) int {
		return marginTop + plotH - int(math.Round((v-lo)/(hi-lo)*float64(plotH)))
	}
	xOf := func(i int) int {
		if len(points) == 1 {
			return marginLeft + plotW/2
		}
		return marginLeft + i*plotW/(len(points)-1)
	}

	for t := 0; t <= yTicks; t++ {
		v := lo + (hi-lo)*float64(t)/yTicks
		y := yOf(v)
		hline(img, marginLeft, Width-marginRight, y, gridColor)
		label := fmt.Sprintf("%.1f°", v)
		drawText(img, label, marginLeft-8-textWidth(face, label), y+4, textColor, face)
	}
	hline(img, marginLeft, Width-marginRight, marginTop+plotH, axisColor)
	vline(img, marginLeft, marginTop, marginTop+plotH, axisColor)

	// skip x labels when they would overlap
	step := 1
	for step < len(points) && plotW/(len(points)/step) < 7*8 {
		step++
	}
	for i, p := range points {
		if i%step != 0 {
			continue
		}
		label := shorten(p.Label, 8)
		drawText(img, label, xOf(i)-textWidth(face, label)/2, Height-marginBottom+18, textColor, face)
	}

	for i := 1; i < len(points); i++ {
		drawLine(img, xOf(i-1), yOf(points[i-1].Value), xOf(i), yOf(points[i].Value), lineColor)
	}
	for i, p := range points {
		dot(img, xOf(i), yOf(p.Value), lineColor)
	}
	return encode(img)
}

func valueRange(points []Point) (float64, float64) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range points {
		lo = math.Min(lo, p.Value)
		hi = math.Max(hi, p.Value)
	}
	if hi-lo < 1 {
		lo, hi = lo-1, hi+1
	}
	pad := (hi - lo) * 0.1
	return math.Floor(lo - pad), math.Ceil(hi + pad)
}

func encode(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "."
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Round()
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

func hline(img *image.RGBA, x0, x1, y int, c color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, c)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, c color.RGBA) {
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, c)
	}
}

func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx, dy := x1-x0, y1-y0
	steps := max(abs(dx), abs(dy))
	if steps == 0 {
		img.SetRGBA(x0, y0, c)
		return
	}
	for i := 0; i <= steps; i++ {
		x := x0 + dx*i/steps
		y := y0 + dy*i/steps
		img.SetRGBA(x, y, c)
		img.SetRGBA(x, y+1, c)
	}
}

func dot(img *image.RGBA, x, y int, c color.RGBA) {
	for oy := -2; oy <= 2; oy++ {
		for ox := -2; ox <= 2; ox++ {
			img.SetRGBA(x+ox, y+oy, c)
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
