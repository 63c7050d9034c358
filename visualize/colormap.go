// Package visualize - Detection rendering.
package visualize

import "image/color"

// ClassColor returns the palette color of a class id.
//
// The palette interleaves the bits of the id across the channels: bit 0 of each
// three-bit group sets a red bit, bit 1 a green bit and bit 2 a blue bit, filling each
// channel from its most significant bit down. Negative ids are black.
func ClassColor(id int) color.RGBA {
	var r, g, b uint8
	for j, lab := 0, id; lab > 0 && j < 8; j, lab = j+1, lab>>3 {
		r |= uint8(lab&1) << (7 - j)
		g |= uint8((lab>>1)&1) << (7 - j)
		b |= uint8((lab>>2)&1) << (7 - j)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
