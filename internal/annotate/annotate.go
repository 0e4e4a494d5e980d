// Package annotate draws face boxes onto decoded JPEG images.
package annotate

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strconv"

	"github.com/andresmejia3/facesort/internal/types"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Style controls how boxes are drawn and how the result is encoded.
type Style struct {
	Stroke  int        // outline width in pixels, centred on the box edge
	Color   color.RGBA // outline colour
	Labels  bool       // stamp the 1-based face index above each box
	Quality int        // JPEG quality 1-100
}

// DefaultStyle is a 5px red outline, no labels.
var DefaultStyle = Style{
	Stroke:  5,
	Color:   color.RGBA{R: 255, A: 255},
	Quality: 90,
}

// Decode reads a JPEG into a mutable RGBA canvas.
func Decode(r io.Reader) (*image.RGBA, error) {
	src, err := jpeg.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	b := src.Bounds()
	canvas := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(canvas, canvas.Bounds(), src, b.Min, draw.Src)
	return canvas, nil
}

// Faces draws every face in the given order onto img.
func Faces(img *image.RGBA, faces []types.Rectangle, style Style) {
	for i, f := range faces {
		rect := image.Rect(f.Left, f.Top, f.Left+f.Width, f.Top+f.Height)
		Outline(img, rect, style.Stroke, style.Color)
		if style.Labels {
			Label(img, rect, strconv.Itoa(i+1), style.Color)
		}
	}
}

// Outline strokes rect with the given width. Parts outside the image are clipped.
func Outline(img *image.RGBA, rect image.Rectangle, stroke int, c color.RGBA) {
	rect = rect.Canon()
	if stroke < 1 {
		stroke = 1
	}
	outer := rect.Inset(-(stroke / 2))
	inner := outer.Inset(stroke)

	bands := []image.Rectangle{
		image.Rect(outer.Min.X, outer.Min.Y, outer.Max.X, outer.Min.Y+stroke), // top
		image.Rect(outer.Min.X, outer.Max.Y-stroke, outer.Max.X, outer.Max.Y), // bottom
		image.Rect(outer.Min.X, outer.Min.Y, outer.Min.X+stroke, outer.Max.Y), // left
		image.Rect(outer.Max.X-stroke, outer.Min.Y, outer.Max.X, outer.Max.Y), // right
	}
	if inner.Empty() {
		// Box thinner than the stroke: fill it solid.
		bands = []image.Rectangle{outer}
	}
	for _, band := range bands {
		fill(img, band, c)
	}
}

// fill paints rect directly into the pixel buffer after clipping to bounds.
func fill(img *image.RGBA, rect image.Rectangle, c color.RGBA) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	stride := img.Stride
	pix := img.Pix
	imgMinX, imgMinY := img.Rect.Min.X, img.Rect.Min.Y
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		rowStart := (y-imgMinY)*stride + (rect.Min.X-imgMinX)*4
		for x := 0; x < rect.Dx(); x++ {
			off := rowStart + x*4
			pix[off] = c.R
			pix[off+1] = c.G
			pix[off+2] = c.B
			pix[off+3] = c.A
		}
	}
}

// Label writes text just above rect, or inside its top edge when there is no room.
func Label(img *image.RGBA, rect image.Rectangle, text string, c color.RGBA) {
	face := basicfont.Face7x13
	metrics := face.Metrics()
	baseline := rect.Min.Y - 4
	if baseline-metrics.Ascent.Ceil() < img.Bounds().Min.Y {
		baseline = rect.Min.Y + metrics.Ascent.Ceil() + 4
	}

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(rect.Min.X, baseline),
	}
	d.DrawString(text)
}

// Encode writes img as JPEG.
func Encode(w io.Writer, img image.Image, quality int) error {
	if quality < 1 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}
