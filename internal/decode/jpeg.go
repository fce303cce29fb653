package decode

import (
	"bytes"
	"image/jpeg"
)

// JPEGDecoder is the default still-image collaborator, backed by the
// standard JPEG codec. Decode returns interleaved RGB bytes; the
// caller validates the length against the declared frame size.
type JPEGDecoder struct{}

// Decode decodes one JPEG image into interleaved RGB bytes.
func (JPEGDecoder) Decode(data []byte) ([]byte, error) {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	rgb := make([]byte, 0, w*h*3)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rgb = append(rgb, byte(r>>8), byte(g>>8), byte(b>>8))
		}
	}
	return rgb, nil
}
