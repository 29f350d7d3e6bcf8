// Package codec converts payload integers to and from the fixed-length
// mixed-radix digit sequences carried by the pulse channel, and formats
// payloads as fixed-width hexadecimal strings.
package codec

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"

	cperr "connpulse/internal/errors"
)

// Codec is a base-MaxValue positional code with ListSize digits.
// The zero value is not usable; construct with [New].
type Codec struct {
	listSize int
	maxValue uint64
	max      uint64 // largest encodable payload, maxValue^listSize - 1
}

// New returns a codec for listSize digits of base maxValue.  It fails
// when maxValue^listSize does not fit in 64 bits.
func New(listSize int, maxValue uint64) (Codec, error) {
	if listSize < 1 {
		return Codec{}, fmt.Errorf("codec: list size must be >= 1, got %d", listSize)
	}
	if maxValue < 2 {
		return Codec{}, fmt.Errorf("codec: max value must be >= 2, got %d", maxValue)
	}

	var hi, lo uint64 = 0, 1
	for i := 0; i < listSize; i++ {
		if hi != 0 {
			return Codec{}, fmt.Errorf("codec: %d^%d exceeds 64 bits", maxValue, listSize)
		}
		hi, lo = bits.Mul64(lo, maxValue)
	}
	// hi == 1 && lo == 0 is exactly 2^64, whose predecessor still fits.
	if hi > 1 || (hi == 1 && lo != 0) {
		return Codec{}, fmt.Errorf("codec: %d^%d exceeds 64 bits", maxValue, listSize)
	}
	return Codec{listSize: listSize, maxValue: maxValue, max: lo - 1}, nil
}

// ListSize is the number of digits per payload.
func (c Codec) ListSize() int { return c.listSize }

// MaxValue is the digit base.
func (c Codec) MaxValue() uint64 { return c.maxValue }

// Max is the largest payload the codec can carry.
func (c Codec) Max() uint64 { return c.max }

// Contains reports whether x is an encodable payload.
func (c Codec) Contains(x uint64) bool { return x <= c.max }

// NumBits is the number of bits needed to represent every payload.
func (c Codec) NumBits() int { return bits.Len64(c.max) }

// HexWidth is the fixed width of [Codec.Hex] output, ceil(NumBits/4).
func (c Codec) HexWidth() int { return (c.NumBits() + 3) / 4 }

// Encode splits x into ListSize digits, least significant first.
// Payloads above Max lose their high digits.
func (c Codec) Encode(x uint64) []int {
	digits := make([]int, c.listSize)
	for i := range digits {
		rem := x % c.maxValue
		digits[i] = int(rem)
		x = (x - rem) / c.maxValue
	}
	return digits
}

// Decode folds digits back into a payload, starting from the most
// significant (last) index.
func (c Codec) Decode(digits []int) uint64 {
	var result uint64
	for i := len(digits) - 1; i >= 0; i-- {
		result = result*c.maxValue + uint64(digits[i])
	}
	return result
}

// Hex formats x as exactly HexWidth lowercase hex characters,
// zero-padded on the left.
func (c Codec) Hex(x uint64) string {
	s := strconv.FormatUint(x, 16)
	width := c.HexWidth()
	if len(s) >= width {
		return s[len(s)-width:]
	}
	return strings.Repeat("0", width-len(s)) + s
}

// ParseHex parses a hex payload (with or without 0x) and checks that it
// is encodable.
func (c Codec) ParseHex(s string) (uint64, error) {
	s = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "0x")
	if s == "" {
		return 0, fmt.Errorf("codec: empty payload")
	}
	x, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("codec: invalid hex payload %q: %w", s, err)
	}
	if !c.Contains(x) {
		return 0, fmt.Errorf("codec: %w: %s exceeds %d bits", cperr.ErrPayloadRange, s, c.NumBits())
	}
	return x, nil
}
