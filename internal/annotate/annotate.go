package annotate

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"vigil/internal/detect"
	"vigil/internal/frame"
)

var boxColor = color.RGBA{R: 0, G: 220, B: 60, A: 255}

// Render draws labeled bounding boxes on a copy of the frame and returns
// the annotated image as JPEG. The input frame is never mutated.
func Render(f *frame.Frame, objs []detect.Object) ([]byte, error) {
	img := f.ToImage() // already a copy of the pixel data

	for _, obj := range objs {
		drawBox(img, obj.Box)
		drawLabel(img, obj)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode annotated frame: %w", err)
	}
	return buf.Bytes(), nil
}

func drawBox(img *image.RGBA, b detect.Box) {
	rect := image.Rect(b.X, b.Y, b.X+b.Width, b.Y+b.Height).Intersect(img.Bounds())
	if rect.Empty() {
		return
	}
	const thickness = 2
	for t := 0; t < thickness; t++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.Set(x, rect.Min.Y+t, boxColor)
			img.Set(x, rect.Max.Y-1-t, boxColor)
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			img.Set(rect.Min.X+t, y, boxColor)
			img.Set(rect.Max.X-1-t, y, boxColor)
		}
	}
}

func drawLabel(img *image.RGBA, obj detect.Object) {
	text := fmt.Sprintf("%s %.0f%%", obj.Label, obj.Confidence*100)
	x := obj.Box.X
	y := obj.Box.Y - 4
	if y < basicfont.Face7x13.Height {
		y = obj.Box.Y + obj.Box.Height + basicfont.Face7x13.Height
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(boxColor),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}
