// Package overlay burns text into planar frames using a fixed bitmap
// font. Rendering is in place and never fails: pixels that fall
// outside the frame are clipped, not reported.
package overlay

import (
	"unicode/utf8"

	"github.com/camfeed/camfeed/pkg/types"
)

// Overlay pixel values: bright luma on neutral chroma reads well over
// any scene content.
const (
	lumaOn        = 235
	chromaNeutral = 128
)

// Margin is the fixed distance in pixels between the frame edge and
// the text anchor.
const Margin = 16

// Position selects the frame corner the timestamp text anchors to.
type Position int

const (
	TopLeft Position = iota
	TopRight
	BottomLeft
	BottomRight
)

// ParsePosition maps the config tags tl|tr|bl|br to a Position.
// Unknown tags fall back to TopLeft, matching the capture tool the
// tags come from.
func ParsePosition(tag string) Position {
	switch tag {
	case "tr":
		return TopRight
	case "bl":
		return BottomLeft
	case "br":
		return BottomRight
	default:
		return TopLeft
	}
}

// String returns the config tag for the position.
func (p Position) String() string {
	switch p {
	case TopRight:
		return "tr"
	case BottomLeft:
		return "bl"
	case BottomRight:
		return "br"
	default:
		return "tl"
	}
}

// CellWidth is the horizontal footprint of one character slot at the
// given scale, including the inter-glyph gap.
func CellWidth(scale int) int {
	return (GlyphWidth + glyphGap) * scale
}

// TextWidth is the pixel width of the full rendered text.
func TextWidth(text string, scale int) int {
	return utf8.RuneCountInString(text) * CellWidth(scale)
}

// TextHeight is the pixel height of rendered text at the given scale.
func TextHeight(scale int) int {
	return GlyphHeight * scale
}

// Anchor resolves a corner position to the top-left pixel coordinate
// of the text. When margin plus text extent exceeds the frame, the
// coordinate saturates at zero instead of underflowing.
func Anchor(pos Position, textW, textH, frameW, frameH int) (x, y int) {
	x, y = Margin, Margin
	switch pos {
	case TopRight:
		x = saturatingSub(frameW, textW+Margin)
	case BottomLeft:
		y = saturatingSub(frameH, textH+Margin)
	case BottomRight:
		x = saturatingSub(frameW, textW+Margin)
		y = saturatingSub(frameH, textH+Margin)
	}
	return x, y
}

func saturatingSub(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}

// Draw renders text anchored to the given corner. scale values below
// one are treated as one.
func Draw(f *types.PlanarFrame, text string, pos Position, scale int) {
	if scale < 1 {
		scale = 1
	}
	x, y := Anchor(pos, TextWidth(text, scale), TextHeight(scale), f.Width, f.Height)
	DrawAt(f, text, x, y, scale)
}

// DrawAt renders text with its top-left corner at (x0, y0).
//
// Characters outside the recognized set draw nothing but still
// advance the cursor by one full cell, so the slots of the remaining
// characters are unchanged. Every written luma pixel also sets the
// covering chroma sample to neutral gray.
func DrawAt(f *types.PlanarFrame, text string, x0, y0, scale int) {
	if scale < 1 {
		scale = 1
	}
	w, h := f.Width, f.Height

	cx := x0
	for _, ch := range text {
		if idx := glyphIndex(ch); idx >= 0 {
			drawGlyph(f, idx, cx, y0, scale, w, h)
		}
		cx += CellWidth(scale)
		if cx >= w {
			break
		}
	}
}

func drawGlyph(f *types.PlanarFrame, idx, cx, y0, scale, w, h int) {
	for gy := 0; gy < GlyphHeight; gy++ {
		for gx := 0; gx < GlyphWidth; gx++ {
			if !font[idx][gy][gx] {
				continue
			}
			for sy := 0; sy < scale; sy++ {
				for sx := 0; sx < scale; sx++ {
					py := y0 + gy*scale + sy
					px := cx + gx*scale + sx
					if py < 0 || py >= h || px < 0 || px >= w {
						continue
					}
					f.Y[py*w+px] = lumaOn
					uvi := (py/2)*(w/2) + px/2
					if uvi < len(f.U) {
						f.U[uvi] = chromaNeutral
					}
					if uvi < len(f.V) {
						f.V[uvi] = chromaNeutral
					}
				}
			}
		}
	}
}
