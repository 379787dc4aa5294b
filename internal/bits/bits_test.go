package bits

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBitAt_FirstByteLSB(t *testing.T) {
	buf := []byte{0b0000_0001, 0b1000_0000}

	assert.Equal(t, 1, BitAt(buf, 0))
	assert.Equal(t, 0, BitAt(buf, 1))
	assert.Equal(t, 0, BitAt(buf, 8))
	assert.Equal(t, 1, BitAt(buf, 15))
}

func TestBitAt_OutOfRangeIsZero(t *testing.T) {
	buffers := [][]byte{
		nil,
		{},
		{0xFF},
		{0xFF, 0xFF, 0xFF},
	}

	for _, buf := range buffers {
		for i := len(buf) * 8; i < len(buf)*8+20; i++ {
			assert.Equal(t, 0, BitAt(buf, i), "buf=%v index=%d", buf, i)
		}
		assert.Equal(t, 0, BitAt(buf, -1))
	}
}

func TestBits_Empty(t *testing.T) {
	assert.Empty(t, Bits(nil))
	assert.Empty(t, Bits([]byte{}))
}

func TestBits_HumanOrder(t *testing.T) {
	// coil 15 and coil 0 set
	buf := []byte{0x01, 0x80}

	got := Bits(buf)

	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1}, got)
}

func TestBits_AgreesWithBitAt(t *testing.T) {
	buffers := [][]byte{
		{0x00},
		{0xA5},
		{0x01, 0x80},
		{0x12, 0x34, 0x56, 0x78},
		{0xFF, 0x00, 0x0F},
	}

	for _, buf := range buffers {
		got := Bits(buf)
		n := len(buf) * 8
		assert.Len(t, got, n)
		assert.Equal(t, BitAt(buf, n-1), got[0])
		for i := 0; i < n; i++ {
			assert.Equal(t, BitAt(buf, i), got[n-1-i], "buf=%x index=%d", buf, i)
		}
	}
}

func TestString(t *testing.T) {
	assert.Equal(t, "", String(nil))
	assert.Equal(t, "10000000 00000001", String([]byte{0x01, 0x80}))
	assert.Equal(t, "00000101", String([]byte{0x05}))
}
