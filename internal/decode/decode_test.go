package decode

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/camfeed/camfeed/pkg/types"
)

// fakeStill returns canned RGB bytes or a canned error.
type fakeStill struct {
	rgb []byte
	err error
}

func (f fakeStill) Decode([]byte) ([]byte, error) {
	return f.rgb, f.err
}

func uniformRGB(w, h int, r, g, b byte) []byte {
	out := make([]byte, 0, w*h*3)
	for i := 0; i < w*h; i++ {
		out = append(out, r, g, b)
	}
	return out
}

func TestYUYVExactConversion(t *testing.T) {
	// 4x2 frame, two 2x2 blocks.
	src := []byte{
		// row 0: Y U Y V per pixel pair
		10, 100, 20, 200, 30, 102, 40, 202,
		// row 1
		50, 101, 60, 201, 70, 103, 80, 203,
	}
	dec := New(nil)
	frame, err := dec.Decode(&types.RawFrame{Data: src, Width: 4, Height: 2, Format: types.FormatYUYV})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if len(frame.Y) != 8 || len(frame.U) != 2 || len(frame.V) != 2 {
		t.Fatalf("plane sizes: Y=%d U=%d V=%d", len(frame.Y), len(frame.U), len(frame.V))
	}

	wantY := []byte{10, 20, 30, 40, 50, 60, 70, 80}
	if !bytes.Equal(frame.Y, wantY) {
		t.Errorf("luma: got %v, want %v", frame.Y, wantY)
	}

	// Chroma is the truncating mean of the scanline pair: (100+101)/2=100.
	wantU := []byte{100, 102}
	wantV := []byte{200, 202}
	if !bytes.Equal(frame.U, wantU) {
		t.Errorf("chroma U: got %v, want %v", frame.U, wantU)
	}
	if !bytes.Equal(frame.V, wantV) {
		t.Errorf("chroma V: got %v, want %v", frame.V, wantV)
	}
}

func TestYUYVInsufficientSize(t *testing.T) {
	dec := New(nil)
	short := make([]byte, 4*2*2-1)
	frame, err := dec.Decode(&types.RawFrame{Data: short, Width: 4, Height: 2, Format: types.FormatYUYV})
	if !errors.Is(err, ErrInsufficientSize) {
		t.Fatalf("got err %v, want ErrInsufficientSize", err)
	}
	if frame != nil {
		t.Fatalf("expected no output on short input, got %+v", frame)
	}
}

func TestOddDimensionsRejected(t *testing.T) {
	dec := New(nil)
	for _, dims := range [][2]int{{3, 2}, {2, 3}, {0, 2}, {2, 0}} {
		_, err := dec.Decode(&types.RawFrame{Data: make([]byte, 64), Width: dims[0], Height: dims[1], Format: types.FormatYUYV})
		if !errors.Is(err, ErrOddDimensions) {
			t.Errorf("dims %dx%d: got err %v, want ErrOddDimensions", dims[0], dims[1], err)
		}
	}
}

func TestUnsupportedEncodingSkipped(t *testing.T) {
	dec := New(nil)
	frame, err := dec.Decode(&types.RawFrame{Data: make([]byte, 16), Width: 2, Height: 2, Format: types.FormatOther})
	if err != nil {
		t.Fatalf("unsupported encoding must not error, got %v", err)
	}
	if frame != nil {
		t.Fatalf("unsupported encoding must produce no frame, got %+v", frame)
	}
}

func TestMJPEGPureWhite(t *testing.T) {
	dec := New(fakeStill{rgb: uniformRGB(2, 2, 255, 255, 255)})
	frame, err := dec.Decode(&types.RawFrame{Width: 2, Height: 2, Format: types.FormatMJPEG})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	for i, y := range frame.Y {
		if y != 235 {
			t.Errorf("luma[%d] = %d, want 235", i, y)
		}
	}
	if frame.U[0] != 128 || frame.V[0] != 128 {
		t.Errorf("chroma = (%d,%d), want (128,128)", frame.U[0], frame.V[0])
	}
}

func TestMJPEGPureRed(t *testing.T) {
	dec := New(fakeStill{rgb: uniformRGB(2, 2, 255, 0, 0)})
	frame, err := dec.Decode(&types.RawFrame{Width: 2, Height: 2, Format: types.FormatMJPEG})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	// round(0.257*255+16)=82, round(-0.148*255+128)=90, round(0.439*255+128)=240
	if frame.Y[0] != 82 {
		t.Errorf("luma = %d, want 82", frame.Y[0])
	}
	if frame.U[0] != 90 || frame.V[0] != 240 {
		t.Errorf("chroma = (%d,%d), want (90,240)", frame.U[0], frame.V[0])
	}
}

func TestMJPEGDecodeFailureDropped(t *testing.T) {
	dec := New(fakeStill{err: errors.New("bad huffman table")})
	_, err := dec.Decode(&types.RawFrame{Width: 2, Height: 2, Format: types.FormatMJPEG})
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("got err %v, want ErrDecodeFailed", err)
	}
}

func TestMJPEGWrongLengthDropped(t *testing.T) {
	dec := New(fakeStill{rgb: uniformRGB(2, 2, 0, 0, 0)[:11]})
	_, err := dec.Decode(&types.RawFrame{Width: 2, Height: 2, Format: types.FormatMJPEG})
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("got err %v, want ErrDecodeFailed", err)
	}
}

func TestMJPEGWithoutStillDecoder(t *testing.T) {
	dec := New(nil)
	_, err := dec.Decode(&types.RawFrame{Width: 2, Height: 2, Format: types.FormatMJPEG})
	if !errors.Is(err, ErrDecodeFailed) {
		t.Fatalf("got err %v, want ErrDecodeFailed", err)
	}
}

func TestJPEGDecoderProducesRGB(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 64, B: 32, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}

	rgb, err := JPEGDecoder{}.Decode(buf.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rgb) != 16*16*3 {
		t.Fatalf("rgb length = %d, want %d", len(rgb), 16*16*3)
	}
}
