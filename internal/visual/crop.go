// Package visual holds the frame-level transforms used to build scene
// backgrounds: aspect cropping, zoom motion and loop planning.
package visual

import (
	"image"
	stddraw "image/draw"

	"golang.org/x/image/draw"
)

// CropRect returns the centered sub-rectangle of a srcW x srcH image that
// has the aspect ratio of targetW x targetH. Margins are removed from the
// left/right when the source is wider, top/bottom when it is taller.
func CropRect(srcW, srcH, targetW, targetH int) image.Rectangle {
	if srcW <= 0 || srcH <= 0 || targetW <= 0 || targetH <= 0 {
		return image.Rectangle{}
	}
	targetAspect := float64(targetW) / float64(targetH)
	srcAspect := float64(srcW) / float64(srcH)

	w, h := srcW, srcH
	if srcAspect > targetAspect {
		w = int(targetAspect * float64(srcH))
	} else if srcAspect < targetAspect {
		h = int(float64(srcW) / targetAspect)
	}
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	x0 := (srcW - w) / 2
	y0 := (srcH - h) / 2
	return image.Rect(x0, y0, x0+w, y0+h)
}

// CropToAspect center-crops img to the target aspect ratio and resamples it
// to exactly targetW x targetH with a Catmull-Rom filter. It never letterboxes.
func CropToAspect(img image.Image, targetW, targetH int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	b := img.Bounds()
	r := CropRect(b.Dx(), b.Dy(), targetW, targetH).Add(b.Min)
	if r.Empty() {
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, r, draw.Src, nil)
	return dst
}

// toRGBA returns img as an *image.RGBA anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) && rgba.Stride == 4*rgba.Bounds().Dx() {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	stddraw.Draw(dst, dst.Bounds(), img, b.Min, stddraw.Src)
	return dst
}
