package video

import (
	"github.com/gobemu/gobemula/gobemula/addr"
	"github.com/gobemu/gobemula/gobemula/bit"
)

// drawScanline renders the current line: background, window, then sprites.
func (g *GPU) drawScanline() {
	g.drawBackgroundAndWindow()
	g.drawSprites()
}

// tileDataAddress resolves a tile number through the LCDC bit 4 addressing
// mode: unsigned from 0x8000 or signed from 0x9000.
func tileDataAddress(unsigned bool, tile uint8, row int) uint16 {
	if unsigned {
		return addr.TileData0 + uint16(tile)*16 + uint16(row)*2
	}
	return uint16(int(addr.TileData2) + int(int8(tile))*16 + row*2)
}

// drawBackgroundAndWindow walks the 160 pixels of the line, switching from
// background to window coordinates once the window starts.
func (g *GPU) drawBackgroundAndWindow() {
	lcdc := g.memory.Read(addr.LCDC)
	cgb := g.memory.CGB()

	bgOn := bit.IsSet(bgDisplay, lcdc)
	if cgb {
		// on CGB, LCDC bit 0 only demotes background priority; the
		// background itself is always drawn
		bgOn = true
	}

	scx := g.memory.Read(addr.SCX)
	scy := g.memory.Read(addr.SCY)
	wy := int(g.memory.Read(addr.WY))
	wx := int(g.memory.Read(addr.WX)) - 7

	windowOn := bit.IsSet(windowDisplayEnable, lcdc) && g.line >= wy && wx < FramebufferWidth
	unsignedTiles := bit.IsSet(bgWindowTileDataSelect, lcdc)

	if !bgOn && !windowOn {
		// blank line in shade 0
		for x := 0; x < FramebufferWidth; x++ {
			g.bgLineIndex[x] = 0
			g.bgLinePriority[x] = false
			g.setBGPixel(x, 0, 0, cgb)
		}
		return
	}

	bgMap := addr.TileMap0
	if bit.IsSet(bgTileMapSelect, lcdc) {
		bgMap = addr.TileMap1
	}
	windowMap := addr.TileMap0
	if bit.IsSet(windowTileMapSelect, lcdc) {
		windowMap = addr.TileMap1
	}

	bgY := (g.line + int(scy)) & 0xFF
	windowDrawn := false

	inWindow := false
	for x := 0; x < FramebufferWidth; x++ {
		if windowOn && !inWindow && x >= wx {
			inWindow = true
			windowDrawn = true
		}

		var mapBase uint16
		var pixelX, pixelY int
		if inWindow {
			mapBase = windowMap
			pixelX = x - wx
			pixelY = g.windowLine
		} else {
			if !bgOn {
				g.bgLineIndex[x] = 0
				g.bgLinePriority[x] = false
				g.setBGPixel(x, 0, 0, cgb)
				continue
			}
			mapBase = bgMap
			pixelX = (x + int(scx)) & 0xFF
			pixelY = bgY
		}

		mapAddress := mapBase + uint16((pixelY/8)*32+pixelX/8)
		tile := g.memory.VRAM(0, mapAddress)

		var attr uint8
		if cgb {
			attr = g.memory.VRAM(1, mapAddress)
		}

		row := pixelY % 8
		if bit.IsSet(6, attr) { // vertical flip
			row = 7 - row
		}
		bitIndex := uint8(7 - pixelX%8)
		if bit.IsSet(5, attr) { // horizontal flip
			bitIndex = uint8(pixelX % 8)
		}

		bank := bit.Value(3, attr)
		dataAddress := tileDataAddress(unsignedTiles, tile, row)
		low := g.memory.VRAM(bank, dataAddress)
		high := g.memory.VRAM(bank, dataAddress+1)

		index := bit.Value(bitIndex, low) | bit.Value(bitIndex, high)<<1

		g.bgLineIndex[x] = index
		g.bgLinePriority[x] = bit.IsSet(7, attr)
		g.setBGPixel(x, index, attr&0x07, cgb)
	}

	if windowDrawn {
		g.windowLine++
	}
}

// setBGPixel resolves a background color index through BGP (DMG) or the
// CGB background palette RAM and writes the pixel.
func (g *GPU) setBGPixel(x int, index, palette uint8, cgb bool) {
	if cgb {
		entry := palette*8 + index*2
		raw := uint16(g.memory.BGPaletteByte(entry)) |
			uint16(g.memory.BGPaletteByte(entry+1))<<8
		g.framebuffer.SetPixel(x, g.line, RGB555ToColor(raw))
		return
	}
	bgp := g.memory.Read(addr.BGP)
	shade := (bgp >> (index * 2)) & 0x03
	g.framebuffer.SetPixel(x, g.line, ShadeToColor(shade))
}

// drawSprites overlays up to 10 sprites on the current line. Entries are
// drawn in reverse table order so that the earliest OAM entry wins a pixel.
func (g *GPU) drawSprites() {
	lcdc := g.memory.Read(addr.LCDC)
	if !bit.IsSet(spriteDisplayEnable, lcdc) {
		return
	}
	cgb := g.memory.CGB()

	height := 8
	if bit.IsSet(spriteSize, lcdc) {
		height = 16
	}

	// OAM scan: only the Y coordinate decides whether a sprite occupies
	// one of the 10 per-line slots
	var visible []uint16
	for sprite := uint16(0); sprite < 40 && len(visible) < 10; sprite++ {
		y := int(g.memory.OAM(sprite*4)) - 16
		if y <= g.line && g.line < y+height {
			visible = append(visible, sprite)
		}
	}

	// CGB master priority: with LCDC bit 0 clear, sprites always win
	masterPriority := cgb && !bit.IsSet(bgDisplay, lcdc)

	for i := len(visible) - 1; i >= 0; i-- {
		oamBase := visible[i] * 4
		y := int(g.memory.OAM(oamBase)) - 16
		x := int(g.memory.OAM(oamBase+1)) - 8
		tile := g.memory.OAM(oamBase + 2)
		flags := g.memory.OAM(oamBase + 3)

		row := g.line - y
		if bit.IsSet(6, flags) { // vertical flip
			row = height - 1 - row
		}
		if height == 16 {
			// 8x16 sprites pair an even and an odd tile
			tile &= 0xFE
		}

		bank := uint8(0)
		if cgb {
			bank = bit.Value(3, flags)
		}
		dataAddress := addr.TileData0 + uint16(tile)*16 + uint16(row)*2
		low := g.memory.VRAM(bank, dataAddress)
		high := g.memory.VRAM(bank, dataAddress+1)

		behindBG := bit.IsSet(7, flags)

		for px := 0; px < 8; px++ {
			screenX := x + px
			if screenX < 0 || screenX >= FramebufferWidth {
				continue
			}

			bitIndex := uint8(7 - px)
			if bit.IsSet(5, flags) { // horizontal flip
				bitIndex = uint8(px)
			}
			index := bit.Value(bitIndex, low) | bit.Value(bitIndex, high)<<1
			if index == 0 {
				// color 0 is transparent
				continue
			}

			if !masterPriority {
				bgIndex := g.bgLineIndex[screenX]
				if behindBG && bgIndex != 0 {
					continue
				}
				if cgb && g.bgLinePriority[screenX] && bgIndex != 0 {
					continue
				}
			}

			g.framebuffer.SetPixel(screenX, g.line, g.spriteColor(index, flags, cgb))
		}
	}
}

// spriteColor resolves a sprite color index through OBP0/OBP1 (DMG) or the
// CGB object palette RAM.
func (g *GPU) spriteColor(index, flags uint8, cgb bool) GBColor {
	if cgb {
		entry := (flags&0x07)*8 + index*2
		raw := uint16(g.memory.OBJPaletteByte(entry)) |
			uint16(g.memory.OBJPaletteByte(entry+1))<<8
		return RGB555ToColor(raw)
	}
	palette := g.memory.Read(addr.OBP0)
	if bit.IsSet(4, flags) {
		palette = g.memory.Read(addr.OBP1)
	}
	shade := (palette >> (index * 2)) & 0x03
	return ShadeToColor(shade)
}
