package imagegen

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Open Graph card dimensions.
const (
	CardWidth  = 1200
	CardHeight = 630

	// the card is drawn at a third of its size and scaled up so the
	// fixed-size bitmap face stays legible
	cardScale = 3
)

// CardData is the text shown on a summary card.
type CardData struct {
	Title    string
	Device   string
	Headline string   // e.g. "Peak season: Summer"
	Lines    []string // at most a handful of short facts
	Footer   string
}

// RenderSummaryCard draws a summary card PNG.
func RenderSummaryCard(data CardData) ([]byte, error) {
	w, h := CardWidth/cardScale, CardHeight/cardScale
	small := image.NewRGBA(image.Rect(0, 0, w, h))

	for y := 0; y < h; y++ {
		progress := float64(y) / float64(h)
		bg := color.RGBA{uint8(18 + progress*10), uint8(28 + progress*20), uint8(40 + progress*30), 255}
		draw.Draw(small, image.Rect(0, y, w, y+1), image.NewUniform(bg), image.Point{}, draw.Src)
	}
	// accent bar
	draw.Draw(small, image.Rect(0, 0, 4, h), image.NewUniform(color.RGBA{250, 176, 5, 255}), image.Point{}, draw.Src)

	white := color.RGBA{255, 255, 255, 255}
	gray := color.RGBA{190, 198, 210, 255}

	drawText(small, data.Title, 14, 22, white)
	drawText(small, data.Device, 14, 38, gray)
	drawText(small, data.Headline, 14, 70, white)
	for i, line := range data.Lines {
		if i >= 6 {
			break
		}
		drawText(small, line, 14, 92+i*16, gray)
	}
	drawText(small, data.Footer, 14, h-10, gray)

	dst := image.NewRGBA(image.Rect(0, 0, CardWidth, CardHeight))
	// nearest-neighbour scale keeps the glyph edges crisp
	for y := 0; y < CardHeight; y++ {
		for x := 0; x < CardWidth; x++ {
			dst.SetRGBA(x, y, small.RGBAAt(x/cardScale, y/cardScale))
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode summary card: %w", err)
	}
	return buf.Bytes(), nil
}

func drawText(img *image.RGBA, text string, x, y int, col color.Color) {
	if text == "" {
		return
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
