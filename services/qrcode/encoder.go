package qrsvc

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/skip2/go-qrcode"

	"github.com/trezcool/clubhub/core/checkin"
)

var (
	ErrEmptyContent = errors.New("empty QR content")
	ErrInvalidColor = errors.New("invalid color")
)

// Encoder renders QR codes as PNG images.
// It keeps no mutable state and can be used concurrently.
type Encoder struct {
	level qrcode.RecoveryLevel
}

var _ checkin.Encoder = (*Encoder)(nil) // interface compliance check

func NewEncoder() *Encoder {
	return &Encoder{level: qrcode.Medium}
}

func (enc *Encoder) Encode(ctx context.Context, content string, opts checkin.EncodeOptions) (checkin.Image, error) {
	if err := ctx.Err(); err != nil {
		return checkin.Image{}, err
	}
	if content == "" {
		return checkin.Image{}, ErrEmptyContent
	}

	dark, err := parseHexColor(opts.Dark, color.Black)
	if err != nil {
		return checkin.Image{}, errors.Wrap(err, "parsing dark color")
	}
	light, err := parseHexColor(opts.Light, color.White)
	if err != nil {
		return checkin.Image{}, errors.Wrap(err, "parsing light color")
	}

	qr, err := qrcode.New(content, enc.level)
	if err != nil {
		return checkin.Image{}, errors.Wrap(err, "encoding content")
	}
	qr.DisableBorder = true // we draw our own margin

	img := render(qr.Bitmap(), opts.Width, opts.Margin, dark, light)
	var buf bytes.Buffer
	if err = png.Encode(&buf, img); err != nil {
		return checkin.Image{}, errors.Wrap(err, "encoding png")
	}
	return checkin.Image{Content: content, PNG: buf.Bytes()}, nil
}

// render draws `modules` surrounded by `margin` light modules into a width x width image.
// Modules are whole pixels; leftover pixels pad the image evenly.
func render(modules [][]bool, width, margin int, dark, light color.Color) image.Image {
	n := len(modules)
	if margin < 0 {
		margin = 0
	}
	total := n + 2*margin
	if width < total {
		width = total
	}
	px := 1
	if total > 0 {
		px = width / total
	}
	offset := (width-px*total)/2 + margin*px

	img := image.NewPaletted(image.Rect(0, 0, width, width), color.Palette{light, dark})
	// index 0 (light) is the zero value, only dark modules are drawn
	for y, row := range modules {
		for x, on := range row {
			if !on {
				continue
			}
			for dy := 0; dy < px; dy++ {
				for dx := 0; dx < px; dx++ {
					img.SetColorIndex(offset+x*px+dx, offset+y*px+dy, 1)
				}
			}
		}
	}
	return img
}

func parseHexColor(s string, fallback color.Color) (color.Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if s == "" {
		return fallback, nil
	}
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return nil, ErrInvalidColor
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return nil, ErrInvalidColor
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}, nil
}
