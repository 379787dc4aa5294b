// Package bits decodes digital I/O byte buffers into individual bits.
//
// Bit i lives in byte i/8, counted from the first byte of the buffer, at bit
// position i%8 within that byte. Indices past the end of the buffer read as 0.
package bits

import (
	"fmt"
	"strings"
)

// BitAt returns the value (0 or 1) of bit index in buf.
// Out-of-range indices, including negative ones, read as 0.
func BitAt(buf []byte, index int) int {
	if index < 0 {
		return 0
	}
	byteIdx := index / 8
	if byteIdx >= len(buf) {
		return 0
	}
	if buf[byteIdx]&(1<<(index%8)) != 0 {
		return 1
	}
	return 0
}

// Bits returns every bit of buf in human order: the most significant bit of
// the last byte first, the least significant bit of the first byte last.
//
// For a 16-coil buffer, Bits(buf)[0] is coil 15 and Bits(buf)[15] is coil 0.
func Bits(buf []byte) []int {
	out := make([]int, 0, len(buf)*8)
	for i := len(buf) - 1; i >= 0; i-- {
		for bit := 7; bit >= 0; bit-- {
			out = append(out, int(buf[i]>>bit)&1)
		}
	}
	return out
}

// String renders buf as space-separated 8-digit binary groups, last byte
// first, matching the order of Bits.
func String(buf []byte) string {
	if len(buf) == 0 {
		return ""
	}
	groups := make([]string, 0, len(buf))
	for i := len(buf) - 1; i >= 0; i-- {
		groups = append(groups, fmt.Sprintf("%08b", buf[i]))
	}
	return strings.Join(groups, " ")
}
