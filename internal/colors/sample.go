package colors

import (
	"image"
	"sort"

	"golang.org/x/image/draw"
)

// Cover scales img to exactly w x h, centre-cropping the axis that overflows.
func Cover(img image.Image, w, h int) *image.RGBA {
	src := img.Bounds()
	sw, sh := src.Dx(), src.Dy()
	crop := src
	if sw*h > sh*w {
		cw := sh * w / h
		x0 := src.Min.X + (sw-cw)/2
		crop = image.Rect(x0, src.Min.Y, x0+cw, src.Max.Y)
	} else if sw*h < sh*w {
		ch := sw * h / w
		y0 := src.Min.Y + (sh-ch)/2
		crop = image.Rect(src.Min.X, y0, src.Max.X, y0+ch)
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, crop, draw.Src, nil)
	return dst
}

// Average returns the rounded mean of each channel.
func Average(img *image.RGBA) (uint8, uint8, uint8) {
	var r, g, b, n uint64
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		r += uint64(pix[i])
		g += uint64(pix[i+1])
		b += uint64(pix[i+2])
		n++
	}
	if n == 0 {
		return 0, 0, 0
	}
	return uint8((r + n/2) / n), uint8((g + n/2) / n), uint8((b + n/2) / n)
}

type bucket struct {
	r, g, b, count uint64
}

// Quantize groups pixels into 4-bit per channel buckets and returns the mean
// colour of the n most populated buckets, ties broken by hex.
func Quantize(img *image.RGBA, n int) []Color {
	buckets := map[uint16]*bucket{}
	pix := img.Pix
	for i := 0; i+3 < len(pix); i += 4 {
		key := uint16(pix[i]>>4)<<8 | uint16(pix[i+1]>>4)<<4 | uint16(pix[i+2]>>4)
		bk, ok := buckets[key]
		if !ok {
			bk = &bucket{}
			buckets[key] = bk
		}
		bk.r += uint64(pix[i])
		bk.g += uint64(pix[i+1])
		bk.b += uint64(pix[i+2])
		bk.count++
	}

	type ranked struct {
		color Color
		count uint64
	}
	all := make([]ranked, 0, len(buckets))
	for _, bk := range buckets {
		half := bk.count / 2
		all = append(all, ranked{
			color: NewColor(uint8((bk.r+half)/bk.count), uint8((bk.g+half)/bk.count), uint8((bk.b+half)/bk.count)),
			count: bk.count,
		})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].count != all[j].count {
			return all[i].count > all[j].count
		}
		return all[i].color.Hex < all[j].color.Hex
	})
	if n > len(all) {
		n = len(all)
	}
	out := make([]Color, 0, n)
	for _, r := range all[:n] {
		out = append(out, r.color)
	}
	return out
}
