package qrsvc

import (
	"bytes"
	"image"
	"image/png"

	"github.com/pkg/errors"
)

var errNoSymbol = errors.New("no QR symbol found")

// ReadModules recovers the module matrix of a PNG rendered by Encoder.
// Two images carry the same payload iff their module matrices are equal.
func ReadModules(data []byte) ([][]bool, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding png")
	}
	b := img.Bounds()

	minX, minY, maxX, maxY := b.Max.X, b.Max.Y, -1, -1
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if !isDark(img, x, y) {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}
	if maxX < 0 {
		return nil, errNoSymbol
	}

	// the top row of the top-left finder pattern is 7 dark modules
	run := 0
	for x := minX; x <= maxX && isDark(img, x, minY); x++ {
		run++
	}
	if run == 0 || run%7 != 0 {
		return nil, errNoSymbol
	}
	px := run / 7
	n := (maxX - minX + 1) / px
	if n == 0 || (maxY-minY+1)/px != n {
		return nil, errNoSymbol
	}

	modules := make([][]bool, n)
	for y := 0; y < n; y++ {
		modules[y] = make([]bool, n)
		for x := 0; x < n; x++ {
			modules[y][x] = isDark(img, minX+x*px+px/2, minY+y*px+px/2)
		}
	}
	return modules, nil
}

func isDark(img image.Image, x, y int) bool {
	r, g, b, _ := img.At(x, y).RGBA()
	return (r+g+b)/3 < 0x8000
}
