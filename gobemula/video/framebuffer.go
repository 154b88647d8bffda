package video

// GBColor is a pixel packed as 0xRRGGBBAA.
type GBColor uint32

const (
	FramebufferWidth  = 160
	FramebufferHeight = 144
	FramebufferSize   = FramebufferWidth * FramebufferHeight
)

// The four DMG shades. Shade 0 is the lightest on hardware.
const (
	WhiteColor     GBColor = 0xFFFFFFFF
	LightGreyColor GBColor = 0xAAAAAAFF
	DarkGreyColor  GBColor = 0x555555FF
	BlackColor     GBColor = 0x000000FF
)

var dmgShades = [4]GBColor{WhiteColor, LightGreyColor, DarkGreyColor, BlackColor}

// ShadeToColor maps a DMG palette shade (0-3) to its color.
func ShadeToColor(shade uint8) GBColor {
	return dmgShades[shade&0x03]
}

// RGB555ToColor expands a CGB palette entry (5 bits per channel, red in
// the low bits) to 8 bit channels via (c<<3)|(c>>2).
func RGB555ToColor(raw uint16) GBColor {
	expand := func(c uint16) uint32 {
		c &= 0x1F
		return uint32(c<<3 | c>>2)
	}
	r := expand(raw)
	g := expand(raw >> 5)
	b := expand(raw >> 10)
	return GBColor(r<<24 | g<<16 | b<<8 | 0xFF)
}

// FrameBuffer is the 160x144 output surface of the PPU.
type FrameBuffer struct {
	buffer []uint32
}

func NewFrameBuffer() *FrameBuffer {
	return &FrameBuffer{buffer: make([]uint32, FramebufferSize)}
}

func (fb *FrameBuffer) GetPixel(x, y int) GBColor {
	return GBColor(fb.buffer[y*FramebufferWidth+x])
}

func (fb *FrameBuffer) SetPixel(x, y int, color GBColor) {
	fb.buffer[y*FramebufferWidth+x] = uint32(color)
}

// ToSlice exposes the raw packed pixels.
func (fb *FrameBuffer) ToSlice() []uint32 {
	return fb.buffer
}

// Clear fills the buffer with the lightest shade, the LCD's idle color.
func (fb *FrameBuffer) Clear() {
	for i := range fb.buffer {
		fb.buffer[i] = uint32(WhiteColor)
	}
}

// ToRGBA returns the frame as interleaved RGBA bytes for presenters.
func (fb *FrameBuffer) ToRGBA() []byte {
	data := make([]byte, len(fb.buffer)*4)
	for i, pixel := range fb.buffer {
		data[i*4] = byte(pixel >> 24)
		data[i*4+1] = byte(pixel >> 16)
		data[i*4+2] = byte(pixel >> 8)
		data[i*4+3] = byte(pixel)
	}
	return data
}
