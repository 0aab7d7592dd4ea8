package variants

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// Resize scales img to width, preserving the aspect ratio. Images already at
// or below width are returned unchanged.
func Resize(img image.Image, width int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if width <= 0 || srcW <= width || srcW == 0 {
		return img
	}
	height := int(math.Round(float64(srcH) * float64(width) / float64(srcW)))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Src, nil)
	return dst
}
