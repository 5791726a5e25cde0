/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render draws waveform previews from a scene state. The curve is
// the Fourier partial sum of the selected wave type, which matches what the
// on-screen visualization animates.
package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"mathviz/internal/scene"

	xdraw "golang.org/x/image/draw"
)

// Options controls waveform rendering.
// Zero values get reasonable defaults; Frequency from the scene is treated
// as cycles across the rendered window.
type Options struct {
	Width      int
	Height     int
	Background color.RGBA
	Axis       color.RGBA
	Wave       color.RGBA
	ShowGrid   bool
	Grid       color.RGBA
}

func (o *Options) applyDefaults() {
	if o.Width <= 0 {
		o.Width = 640
	}
	if o.Height <= 0 {
		o.Height = 400
	}
	if o.Background.A == 0 {
		o.Background = color.RGBA{255, 255, 255, 255}
	}
	if o.Axis.A == 0 {
		o.Axis = color.RGBA{120, 120, 120, 255}
	}
	if o.Wave.A == 0 {
		o.Wave = color.RGBA{11, 87, 208, 255}
	}
	if o.Grid.A == 0 {
		o.Grid = color.RGBA{225, 225, 225, 255}
	}
}

// Waveform renders the partial-sum curve for the given state.
func Waveform(st scene.State, opt Options) *image.RGBA {
	opt.applyDefaults()
	w, h := opt.Width, opt.Height
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: opt.Background}, image.Point{}, draw.Src)

	if opt.ShowGrid || st.Show["grid"] {
		for x := 0; x < w; x += w / 8 {
			vline(img, x, 0, h-1, opt.Grid)
		}
		for y := 0; y < h; y += h / 8 {
			hline(img, 0, w-1, y, opt.Grid)
		}
	}
	mid := h / 2
	hline(img, 0, w-1, mid, opt.Axis)

	// Vertical scale leaves headroom for the square wave overshoot.
	freq := st.Frequency
	if freq <= 0 {
		freq = 1
	}
	amp := st.Amplitude
	if amp == 0 {
		amp = 1
	}
	pxPerUnit := float64(h) * 0.4 / math.Max(1, math.Abs(amp))

	prevY := mid
	for x := 0; x < w; x++ {
		t := float64(x) / float64(w)
		v := Sample(st.WaveType, st.Terms, freq, t) * amp
		y := mid - int(math.Round(v*pxPerUnit))
		if y < 0 {
			y = 0
		}
		if y >= h {
			y = h - 1
		}
		if x == 0 {
			prevY = y
		}
		vline(img, x, prevY, y, opt.Wave)
		prevY = y
	}
	return img
}

// Sample evaluates the Fourier partial sum of waveType with the given number
// of terms at phase t (in periods), normalized to roughly [-1, 1].
func Sample(waveType string, terms int, freq, t float64) float64 {
	if terms < 1 {
		terms = 1
	}
	ph := 2 * math.Pi * freq * t
	switch waveType {
	case "square":
		var sum float64
		for k := 1; k <= terms; k++ {
			n := float64(2*k - 1)
			sum += math.Sin(n*ph) / n
		}
		return 4 / math.Pi * sum
	case "sawtooth":
		var sum float64
		for k := 1; k <= terms; k++ {
			n := float64(k)
			sign := 1.0
			if k%2 == 0 {
				sign = -1
			}
			sum += sign * math.Sin(n*ph) / n
		}
		return 2 / math.Pi * sum
	case "triangle":
		var sum float64
		for k := 1; k <= terms; k++ {
			n := float64(2*k - 1)
			sign := 1.0
			if k%2 == 0 {
				sign = -1
			}
			sum += sign * math.Sin(n*ph) / (n * n)
		}
		return 8 / (math.Pi * math.Pi) * sum
	default: // sine
		return math.Sin(ph)
	}
}

// PNG renders the waveform and encodes it as PNG bytes.
func PNG(st scene.State, opt Options) ([]byte, error) {
	img := Waveform(st, opt)
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// Thumbnail scales src to w x h with Catmull-Rom resampling.
func Thumbnail(src image.Image, w, h int) *image.RGBA {
	if w <= 0 || h <= 0 {
		w, h = 256, 160
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
}

// ThumbnailPNG renders at full size, scales down, and encodes as PNG. It is
// the generator used by the catalog preview cache.
func ThumbnailPNG(st scene.State, w, h int) ([]byte, error) {
	full := Waveform(st, Options{})
	var buf bytes.Buffer
	if err := png.Encode(&buf, Thumbnail(full, w, h)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func hline(img *image.RGBA, x0, x1, y int, col color.RGBA) {
	for x := x0; x <= x1; x++ {
		img.SetRGBA(x, y, col)
	}
}

func vline(img *image.RGBA, x, y0, y1 int, col color.RGBA) {
	if y1 < y0 {
		y0, y1 = y1, y0
	}
	for y := y0; y <= y1; y++ {
		img.SetRGBA(x, y, col)
	}
}
