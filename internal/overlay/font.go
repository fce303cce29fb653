package overlay

// Glyph cell geometry. Every character slot occupies the same cell
// whether or not a glyph is drawn in it.
const (
	GlyphWidth  = 5
	GlyphHeight = 7
	glyphGap    = 1
)

// glyphRows holds the 5x7 bitmaps for the recognized character set:
// '0'..'9', ':' and '.'. Each byte is one glyph row, most significant
// of the low five bits on the left.
var glyphRows = [12][GlyphHeight]byte{
	{0b01110, 0b10001, 0b10011, 0b10101, 0b11001, 0b10001, 0b01110}, // 0
	{0b00100, 0b01100, 0b00100, 0b00100, 0b00100, 0b00100, 0b01110}, // 1
	{0b01110, 0b10001, 0b00001, 0b00010, 0b00100, 0b01000, 0b11111}, // 2
	{0b11110, 0b00001, 0b00001, 0b00110, 0b00001, 0b00001, 0b11110}, // 3
	{0b00010, 0b00110, 0b01010, 0b10010, 0b11111, 0b00010, 0b00010}, // 4
	{0b11111, 0b10000, 0b11110, 0b00001, 0b00001, 0b10001, 0b01110}, // 5
	{0b00110, 0b01000, 0b10000, 0b11110, 0b10001, 0b10001, 0b01110}, // 6
	{0b11111, 0b00001, 0b00010, 0b00100, 0b01000, 0b01000, 0b01000}, // 7
	{0b01110, 0b10001, 0b10001, 0b01110, 0b10001, 0b10001, 0b01110}, // 8
	{0b01110, 0b10001, 0b10001, 0b01111, 0b00001, 0b00010, 0b01100}, // 9
	{0b00000, 0b00100, 0b00100, 0b00000, 0b00100, 0b00100, 0b00000}, // ':'
	{0b00000, 0b00000, 0b00000, 0b00000, 0b00000, 0b00100, 0b00000}, // '.'
}

// font is the read-only lookup used at render time: one plain 2D
// boolean grid per glyph, expanded once at startup so the renderer
// tests cells directly instead of shifting packed rows.
var font = buildFont()

func buildFont() [12][GlyphHeight][GlyphWidth]bool {
	var out [12][GlyphHeight][GlyphWidth]bool
	for g, rows := range glyphRows {
		for y, row := range rows {
			for x := 0; x < GlyphWidth; x++ {
				out[g][y][x] = (row>>(GlyphWidth-1-x))&1 == 1
			}
		}
	}
	return out
}

// glyphIndex returns the font index for a character, or -1 when the
// character is outside the recognized set.
func glyphIndex(ch rune) int {
	switch {
	case ch >= '0' && ch <= '9':
		return int(ch - '0')
	case ch == ':':
		return 10
	case ch == '.':
		return 11
	default:
		return -1
	}
}
