package pixel

import (
	"image"
	"math"
)

// gradientThreshold is the Sobel magnitude above which a pixel counts as an
// edge. Matches the lower hysteresis threshold the original line detector
// used for architectural features.
const gradientThreshold = 60

// Bitmap is a binary per-pixel map over a W x H grid.
type Bitmap struct {
	W, H int
	Bits []bool
}

// NewBitmap allocates an all-false bitmap.
func NewBitmap(w, h int) *Bitmap {
	return &Bitmap{W: w, H: h, Bits: make([]bool, w*h)}
}

// Count returns the number of set bits.
func (b *Bitmap) Count() int {
	n := 0
	for _, v := range b.Bits {
		if v {
			n++
		}
	}
	return n
}

// IoU computes the symmetric Intersection-over-Union of two equally sized
// bitmaps. Two empty maps are identical, so their IoU is 1.
func (b *Bitmap) IoU(o *Bitmap) float64 {
	inter, union := 0, 0
	for i, v := range b.Bits {
		ov := o.Bits[i]
		if v && ov {
			inter++
		}
		if v || ov {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

// Dilate grows set regions by a square structuring element of the given
// radius. Radius 0 returns the receiver unchanged.
func (b *Bitmap) Dilate(radius int) *Bitmap {
	if radius <= 0 {
		return b
	}
	out := NewBitmap(b.W, b.H)
	for y := 0; y < b.H; y++ {
		for x := 0; x < b.W; x++ {
			if !b.Bits[y*b.W+x] {
				continue
			}
			y0, y1 := y-radius, y+radius
			x0, x1 := x-radius, x+radius
			if y0 < 0 {
				y0 = 0
			}
			if x0 < 0 {
				x0 = 0
			}
			if y1 >= b.H {
				y1 = b.H - 1
			}
			if x1 >= b.W {
				x1 = b.W - 1
			}
			for dy := y0; dy <= y1; dy++ {
				row := out.Bits[dy*b.W:]
				for dx := x0; dx <= x1; dx++ {
					row[dx] = true
				}
			}
		}
	}
	return out
}

// sobel computes per-pixel horizontal and vertical gradients of a luminance
// buffer. Border pixels are left at zero gradient.
func sobel(g *image.Gray) (gx, gy []int32) {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	gx = make([]int32, w*h)
	gy = make([]int32, w*h)

	at := func(x, y int) int32 {
		return int32(g.Pix[y*g.Stride+x])
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			tl, tc, tr := at(x-1, y-1), at(x, y-1), at(x+1, y-1)
			ml, mr := at(x-1, y), at(x+1, y)
			bl, bc, br := at(x-1, y+1), at(x, y+1), at(x+1, y+1)

			gx[y*w+x] = (tr + 2*mr + br) - (tl + 2*ml + bl)
			gy[y*w+x] = (bl + 2*bc + br) - (tl + 2*tc + tr)
		}
	}
	return gx, gy
}

// edgeMap thresholds Sobel gradient magnitude into a binary edge map.
func edgeMap(g *image.Gray) *Bitmap {
	w, h := g.Bounds().Dx(), g.Bounds().Dy()
	gx, gy := sobel(g)
	out := NewBitmap(w, h)
	for i := range out.Bits {
		mag := math.Hypot(float64(gx[i]), float64(gy[i]))
		if mag >= gradientThreshold {
			out.Bits[i] = true
		}
	}
	return out
}
