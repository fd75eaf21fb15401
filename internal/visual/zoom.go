package visual

import (
	"image"
	"math"

	"golang.org/x/image/draw"
)

// ZoomMotion is a slow linear zoom-in on a still image, 1.0x at t=0 up to
// ZoomFactor at t=Duration. Frames are produced on demand.
type ZoomMotion struct {
	source     *image.RGBA
	Duration   float64
	ZoomFactor float64
	// Interpolator scales each frame, draw.BiLinear by default.
	Interpolator draw.Interpolator
}

func NewZoomMotion(img image.Image, duration, zoomFactor float64) *ZoomMotion {
	if zoomFactor < 1 {
		zoomFactor = 1
	}
	return &ZoomMotion{
		source:       toRGBA(img),
		Duration:     duration,
		ZoomFactor:   zoomFactor,
		Interpolator: draw.BiLinear,
	}
}

// Size returns the frame dimensions, equal to the source image.
func (z *ZoomMotion) Size() (int, int) {
	b := z.source.Bounds()
	return b.Dx(), b.Dy()
}

// ZoomAt is the effective zoom at time t, clamped to [0, Duration].
func (z *ZoomMotion) ZoomAt(t float64) float64 {
	if z.Duration <= 0 {
		return 1
	}
	if t < 0 {
		t = 0
	}
	if t > z.Duration {
		t = z.Duration
	}
	return 1 + (z.ZoomFactor-1)*(t/z.Duration)
}

// Frame renders the frame at time t: the source scaled by ZoomAt(t) and
// center-cropped back to its original size. Scaling then cropping equals
// sampling the centered 1/zoom window, which is what is done here.
func (z *ZoomMotion) Frame(t float64) *image.RGBA {
	w, h := z.Size()
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	zoom := z.ZoomAt(t)
	if zoom == 1 {
		copy(dst.Pix, z.source.Pix)
		return dst
	}

	cw := int(math.Round(float64(w) / zoom))
	ch := int(math.Round(float64(h) / zoom))
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	x0 := (w - cw) / 2
	y0 := (h - ch) / 2
	z.Interpolator.Scale(dst, dst.Bounds(), z.source, image.Rect(x0, y0, x0+cw, y0+ch), draw.Src, nil)
	return dst
}

// FrameCount is the number of frames at fps covering Duration.
func (z *ZoomMotion) FrameCount(fps int) int {
	if fps <= 0 || z.Duration <= 0 {
		return 0
	}
	return int(math.Ceil(z.Duration*float64(fps) - 1e-9))
}

// Frames returns a finite iterator over the frames at fps.
func (z *ZoomMotion) Frames(fps int) *FrameIterator {
	return &FrameIterator{motion: z, fps: fps, total: z.FrameCount(fps)}
}

// FrameIterator yields ZoomMotion frames in order. It is not safe for
// concurrent use.
type FrameIterator struct {
	motion *ZoomMotion
	fps    int
	total  int
	next   int
}

func (it *FrameIterator) Len() int { return it.total }

// Next returns the next frame, or false once all frames were produced.
func (it *FrameIterator) Next() (*image.RGBA, bool) {
	if it.next >= it.total {
		return nil, false
	}
	t := float64(it.next) / float64(it.fps)
	it.next++
	return it.motion.Frame(t), true
}
