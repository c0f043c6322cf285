package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"github.com/dustin/go-humanize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Chart dimensions in pixels.
const (
	ChartWidth  = 640
	ChartHeight = 360

	marginLeft   = 80
	marginRight  = 30
	marginTop    = 30
	marginBottom = 50
)

// Bar is one labelled value on the chart.
type Bar struct {
	Label string
	Value float64
}

var (
	background = color.RGBA{255, 255, 255, 255}
	axisColor  = color.RGBA{90, 90, 90, 255}
	gridColor  = color.RGBA{230, 230, 230, 255}
	textColor  = color.RGBA{40, 40, 40, 255}
	barColors  = []color.RGBA{
		{76, 120, 168, 255},
		{84, 162, 75, 255},
		{245, 133, 24, 255},
	}
)

// BarChart renders bars as a PNG with a dollar axis titled yTitle.
// Negative and non-finite values draw as empty bars but keep their label.
func BarChart(yTitle string, bars []Bar) ([]byte, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("bar chart: no bars")
	}

	img := image.NewRGBA(image.Rect(0, 0, ChartWidth, ChartHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	plot := image.Rect(marginLeft, marginTop, ChartWidth-marginRight, ChartHeight-marginBottom)

	top := niceCeil(maxValue(bars))
	const ticks = 4
	for i := 0; i <= ticks; i++ {
		v := top * float64(i) / ticks
		y := plot.Max.Y - int(math.Round(float64(plot.Dy())*float64(i)/ticks))
		if i > 0 {
			fillRect(img, image.Rect(plot.Min.X+1, y, plot.Max.X, y+1), gridColor)
		}
		label := "$" + humanize.Comma(int64(v))
		drawText(img, label, plot.Min.X-8-textWidth(face, label), y+4, textColor, face)
	}

	slot := plot.Dx() / len(bars)
	barW := slot * 3 / 5
	for i, b := range bars {
		x0 := plot.Min.X + i*slot + (slot-barW)/2
		h := 0
		if v := clean(b.Value); v > 0 {
			h = int(math.Round(float64(plot.Dy()) * v / top))
		}
		col := barColors[i%len(barColors)]
		fillRect(img, image.Rect(x0, plot.Max.Y-h, x0+barW, plot.Max.Y), col)

		value := "$" + humanize.Comma(int64(math.Round(clean(b.Value))))
		drawText(img, value, x0+(barW-textWidth(face, value))/2, plot.Max.Y-h-6, textColor, face)
		drawText(img, b.Label, x0+(barW-textWidth(face, b.Label))/2, plot.Max.Y+20, textColor, face)
	}

	fillRect(img, image.Rect(plot.Min.X, plot.Min.Y, plot.Min.X+1, plot.Max.Y+1), axisColor)
	fillRect(img, image.Rect(plot.Min.X, plot.Max.Y, plot.Max.X, plot.Max.Y+1), axisColor)
	drawText(img, yTitle, 8, marginTop-12, textColor, face)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode chart: %w", err)
	}
	return buf.Bytes(), nil
}

func clean(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func maxValue(bars []Bar) float64 {
	m := 0.0
	for _, b := range bars {
		m = math.Max(m, clean(b.Value))
	}
	return m
}

// niceCeil rounds v up to 1, 2 or 5 times a power of ten so axis ticks land
// on round numbers.
func niceCeil(v float64) float64 {
	if v <= 0 {
		return 1
	}
	exp := math.Pow(10, math.Floor(math.Log10(v)))
	for _, m := range []float64{1, 2, 5, 10} {
		if v <= m*exp {
			return m * exp
		}
	}
	return 10 * exp
}

func fillRect(img *image.RGBA, r image.Rectangle, col color.Color) {
	draw.Draw(img, r, image.NewUniform(col), image.Point{}, draw.Src)
}

func textWidth(face font.Face, s string) int {
	return font.MeasureString(face, s).Round()
}

// drawText draws text with its baseline at y.
func drawText(img *image.RGBA, text string, x, y int, col color.Color, face font.Face) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}
