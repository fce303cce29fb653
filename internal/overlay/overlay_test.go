package overlay

import (
	"bytes"
	"testing"

	"github.com/camfeed/camfeed/pkg/types"
)

func filledFrame(w, h int) *types.PlanarFrame {
	f := types.NewPlanarFrame(w, h)
	for i := range f.Y {
		f.Y[i] = 7
	}
	for i := range f.U {
		f.U[i] = 9
	}
	for i := range f.V {
		f.V[i] = 11
	}
	return f
}

func TestDrawTimestampTopLeftScaleOne(t *testing.T) {
	const text = "12:30:45.678"
	f := filledFrame(128, 64)
	Draw(f, text, TopLeft, 1)

	// Recompute the expected on-pixel set from the font table and
	// check both directions: on pixels are bright, the rest untouched.
	on := make(map[int]bool)
	cx, y0 := Margin, Margin
	for _, ch := range text {
		idx := glyphIndex(ch)
		if idx < 0 {
			t.Fatalf("fixture character %q not in font", ch)
		}
		for gy := 0; gy < GlyphHeight; gy++ {
			for gx := 0; gx < GlyphWidth; gx++ {
				if font[idx][gy][gx] {
					on[(y0+gy)*f.Width+cx+gx] = true
				}
			}
		}
		cx += CellWidth(1)
	}

	for i, y := range f.Y {
		if on[i] && y != 235 {
			t.Errorf("pixel %d: got luma %d, want 235", i, y)
		}
		if !on[i] && y != 7 {
			t.Errorf("pixel %d: luma disturbed (got %d, want 7)", i, y)
		}
	}

	// Every on pixel's covering chroma sample is neutral gray.
	for i := range on {
		py, px := i/f.Width, i%f.Width
		uvi := (py/2)*(f.Width/2) + px/2
		if f.U[uvi] != 128 || f.V[uvi] != 128 {
			t.Errorf("chroma at (%d,%d): got (%d,%d), want (128,128)", px, py, f.U[uvi], f.V[uvi])
		}
	}
}

func TestUnknownCharacterAdvancesCursor(t *testing.T) {
	// "1X2" must render identically to drawing '1' in cell 0 and '2'
	// in cell 2, with cell 1 left blank.
	got := filledFrame(96, 32)
	DrawAt(got, "1X2", 4, 4, 1)

	want := filledFrame(96, 32)
	DrawAt(want, "1", 4, 4, 1)
	DrawAt(want, "2", 4+2*CellWidth(1), 4, 1)

	if !bytes.Equal(got.Y, want.Y) {
		t.Error("luma differs: unknown character shifted subsequent glyph cells")
	}
	if !bytes.Equal(got.U, want.U) || !bytes.Equal(got.V, want.V) {
		t.Error("chroma differs: unknown character shifted subsequent glyph cells")
	}
}

func TestUnknownCharacterDrawsNothing(t *testing.T) {
	f := filledFrame(64, 32)
	DrawAt(f, "X", 4, 4, 2)
	for i, y := range f.Y {
		if y != 7 {
			t.Fatalf("pixel %d written for unrecognized character", i)
		}
	}
}

func TestDrawClipsAtFrameEdge(t *testing.T) {
	f := filledFrame(16, 16)
	// Large scale pushes most pixels past the frame; must clip, not panic.
	DrawAt(f, "8:8", 8, 8, 5)

	for py := 0; py < 8; py++ {
		for px := 0; px < f.Width; px++ {
			if f.Y[py*f.Width+px] != 7 {
				t.Fatalf("pixel above anchor row written at (%d,%d)", px, py)
			}
		}
	}
}

func TestAnchorCorners(t *testing.T) {
	const textW, textH = 72, 7
	cases := []struct {
		pos  Position
		x, y int
	}{
		{TopLeft, Margin, Margin},
		{TopRight, 640 - textW - Margin, Margin},
		{BottomLeft, Margin, 480 - textH - Margin},
		{BottomRight, 640 - textW - Margin, 480 - textH - Margin},
	}
	for _, c := range cases {
		x, y := Anchor(c.pos, textW, textH, 640, 480)
		if x != c.x || y != c.y {
			t.Errorf("%s: got (%d,%d), want (%d,%d)", c.pos, x, y, c.x, c.y)
		}
	}
}

func TestAnchorSaturatesOnOversizedText(t *testing.T) {
	x, y := Anchor(BottomRight, 4000, 700, 64, 48)
	if x != 0 || y != 0 {
		t.Fatalf("got (%d,%d), want (0,0)", x, y)
	}

	// Oversized overlay text must still render without panicking.
	f := filledFrame(64, 48)
	Draw(f, "00:00:00.000000000000", BottomRight, 4)
}

func TestParsePosition(t *testing.T) {
	cases := map[string]Position{
		"tl": TopLeft, "tr": TopRight, "bl": BottomLeft, "br": BottomRight,
		"": TopLeft, "bogus": TopLeft,
	}
	for tag, want := range cases {
		if got := ParsePosition(tag); got != want {
			t.Errorf("ParsePosition(%q) = %v, want %v", tag, got, want)
		}
	}
}
