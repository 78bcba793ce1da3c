package descriptor

import (
	"image"

	"golang.org/x/image/draw"
)

// pixel channel rescaling used by the descriptor model: native [0, 255]
// values are centered around zero.
const (
	pixelMean  = 127.5
	pixelScale = 128.0
)

// NormalizedLen is the length of the flat buffer fed to the model:
// an RGB-interleaved 112x112 crop.
const NormalizedLen = NormalizedSize * NormalizedSize * 3

// Normalize crops the image to the face rectangle, resizes the crop to the
// fixed model input square and rescales pixel channels into a centered
// range. The returned buffer is RGB interleaved, row major.
func Normalize(img image.Image, face Rect) []float32 {
	bounds := img.Bounds()
	face = face.Clamp(bounds.Dx(), bounds.Dy())
	if face.Empty() {
		face = Rect{X: 0, Y: 0, Width: bounds.Dx(), Height: bounds.Dy()}
	}

	src := image.Rect(
		bounds.Min.X+face.X,
		bounds.Min.Y+face.Y,
		bounds.Min.X+face.X+face.Width,
		bounds.Min.Y+face.Y+face.Height,
	)

	dst := image.NewRGBA(image.Rect(0, 0, NormalizedSize, NormalizedSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)

	buf := make([]float32, 0, NormalizedLen)
	for y := range NormalizedSize {
		for x := range NormalizedSize {
			r, g, b, _ := dst.At(x, y).RGBA()
			buf = append(buf,
				float32((float64(r>>8)-pixelMean)/pixelScale),
				float32((float64(g>>8)-pixelMean)/pixelScale),
				float32((float64(b>>8)-pixelMean)/pixelScale),
			)
		}
	}
	return buf
}
