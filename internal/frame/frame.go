package frame

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"time"
)

// Channels is the number of color channels per pixel. Frames are always
// row-major RGB.
const Channels = 3

// MinWidth and MinHeight define the smallest frame the pipeline accepts.
// Anything smaller is treated as a decode glitch, not a real frame.
const (
	MinWidth  = 100
	MinHeight = 100
)

// Frame is an immutable RGB pixel buffer. Once a Frame is handed downstream
// it must not be mutated; consumers that draw on it work on a Clone.
type Frame struct {
	Width     int
	Height    int
	Pix       []byte // len == Width*Height*Channels, row-major
	Seq       uint64
	Timestamp time.Time
}

// FromJPEG decodes JPEG bytes into a Frame.
func FromJPEG(data []byte) (*Frame, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode jpeg: %w", err)
	}
	return FromImage(img), nil
}

// FromImage flattens any image.Image into an RGB Frame.
func FromImage(img image.Image) *Frame {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	f := &Frame{
		Width:     w,
		Height:    h,
		Pix:       make([]byte, w*h*Channels),
		Timestamp: time.Now(),
	}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			f.Pix[i] = byte(r >> 8)
			f.Pix[i+1] = byte(g >> 8)
			f.Pix[i+2] = byte(bl >> 8)
			i += Channels
		}
	}
	return f
}

// ToImage converts the frame back to an image.RGBA.
func (f *Frame) ToImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.Width, f.Height))
	src := 0
	for y := 0; y < f.Height; y++ {
		dst := y * img.Stride
		for x := 0; x < f.Width; x++ {
			img.Pix[dst] = f.Pix[src]
			img.Pix[dst+1] = f.Pix[src+1]
			img.Pix[dst+2] = f.Pix[src+2]
			img.Pix[dst+3] = 0xFF
			src += Channels
			dst += 4
		}
	}
	return img
}

// ToJPEG encodes the frame as JPEG with the given quality (1-100).
func (f *Frame) ToJPEG(quality int) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, f.ToImage(), &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// Clone returns a deep copy of the frame.
func (f *Frame) Clone() *Frame {
	pix := make([]byte, len(f.Pix))
	copy(pix, f.Pix)
	return &Frame{
		Width:     f.Width,
		Height:    f.Height,
		Pix:       pix,
		Seq:       f.Seq,
		Timestamp: f.Timestamp,
	}
}

// Valid reports whether the frame meets the pipeline's validity contract:
// consistent 3-channel buffer, at least MinWidth x MinHeight.
func (f *Frame) Valid() bool {
	if f == nil {
		return false
	}
	if f.Width < MinWidth || f.Height < MinHeight {
		return false
	}
	return len(f.Pix) == f.Width*f.Height*Channels
}
