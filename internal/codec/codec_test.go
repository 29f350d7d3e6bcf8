package codec

import (
	"errors"
	"math/rand"
	"strings"
	"testing"

	cperr "connpulse/internal/errors"
)

func TestNew_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		listSize int
		maxValue uint64
	}{
		{"zero list", 0, 128},
		{"base one", 5, 1},
		{"overflow", 10, 1 << 10},
		{"just over", 65, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.listSize, tt.maxValue); err == nil {
				t.Fatalf("New(%d, %d) should fail", tt.listSize, tt.maxValue)
			}
		})
	}
}

func TestNew_FullWidth(t *testing.T) {
	c, err := New(64, 2)
	if err != nil {
		t.Fatal(err)
	}
	if c.Max() != ^uint64(0) {
		t.Errorf("Max = %x, want all ones", c.Max())
	}
	if c.NumBits() != 64 || c.HexWidth() != 16 {
		t.Errorf("bits=%d width=%d, want 64/16", c.NumBits(), c.HexWidth())
	}
}

// TestExample covers the 5 x 128 layout used by the default preset.
func TestExample(t *testing.T) {
	c, err := New(5, 128)
	if err != nil {
		t.Fatal(err)
	}
	if c.NumBits() != 35 {
		t.Errorf("NumBits = %d, want 35", c.NumBits())
	}
	if c.HexWidth() != 9 {
		t.Errorf("HexWidth = %d, want 9", c.HexWidth())
	}

	zero := c.Encode(0)
	for i, d := range zero {
		if d != 0 {
			t.Errorf("Encode(0)[%d] = %d", i, d)
		}
	}
	if got := c.Hex(0); got != "000000000" {
		t.Errorf("Hex(0) = %q", got)
	}

	top := c.Encode(c.Max())
	for i, d := range top {
		if d != 127 {
			t.Errorf("Encode(max)[%d] = %d, want 127", i, d)
		}
	}
	if got := c.Hex(c.Max()); got != "7ffffffff" {
		t.Errorf("Hex(max) = %q, want 7ffffffff", got)
	}
}

func TestEncode_LeastSignificantFirst(t *testing.T) {
	c, _ := New(3, 10)
	got := c.Encode(472)
	want := []int{2, 7, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Encode(472) = %v, want %v", got, want)
		}
	}
}

func TestRoundTrip(t *testing.T) {
	layouts := []struct {
		listSize int
		maxValue uint64
	}{
		{1, 2}, {5, 128}, {3, 10}, {8, 256}, {4, 7}, {2, 1000},
	}
	rng := rand.New(rand.NewSource(1))
	for _, l := range layouts {
		c, err := New(l.listSize, l.maxValue)
		if err != nil {
			t.Fatal(err)
		}
		samples := []uint64{0, 1, c.Max(), c.Max() / 2}
		for i := 0; i < 200; i++ {
			samples = append(samples, rng.Uint64()%(c.Max()+1))
		}
		for _, x := range samples {
			digits := c.Encode(x)
			if len(digits) != l.listSize {
				t.Fatalf("len(Encode) = %d, want %d", len(digits), l.listSize)
			}
			for _, d := range digits {
				if d < 0 || uint64(d) >= l.maxValue {
					t.Fatalf("digit %d out of range for base %d", d, l.maxValue)
				}
			}
			if got := c.Decode(digits); got != x {
				t.Fatalf("%dx%d: Decode(Encode(%d)) = %d", l.listSize, l.maxValue, x, got)
			}
		}
	}
}

func TestHex_Width(t *testing.T) {
	c, _ := New(4, 7) // 7^4-1 = 2400 -> 12 bits -> 3 hex chars
	for _, x := range []uint64{0, 1, 15, 16, 255, 256, c.Max()} {
		got := c.Hex(x)
		if len(got) != c.HexWidth() {
			t.Errorf("Hex(%d) = %q, width %d want %d", x, got, len(got), c.HexWidth())
		}
	}
}

func TestParseHex(t *testing.T) {
	c, _ := New(5, 128)
	tests := []struct {
		in      string
		want    uint64
		wantErr bool
	}{
		{"000000000", 0, false},
		{"0x1f", 31, false},
		{" 7FFFFFFFF ", c.Max(), false},
		{"800000000", 0, true},
		{"xyz", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := c.ParseHex(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseHex(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err == nil && got != tt.want {
				t.Errorf("ParseHex(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseHex_RangeError(t *testing.T) {
	c, _ := New(2, 4)
	if _, err := c.ParseHex("10"); !errors.Is(err, cperr.ErrPayloadRange) {
		t.Errorf("ParseHex(10) err = %v, want ErrPayloadRange", err)
	}
	if _, err := c.ParseHex("zz"); errors.Is(err, cperr.ErrPayloadRange) {
		t.Errorf("ParseHex(zz) err = %v, want a syntax error", err)
	}
}

func TestHex_ParseHexRoundTrip(t *testing.T) {
	c, _ := New(5, 128)
	h := c.Hex(123456789)
	if strings.HasPrefix(h, "0x") {
		t.Fatalf("Hex should not carry a prefix: %q", h)
	}
	x, err := c.ParseHex(h)
	if err != nil || x != 123456789 {
		t.Fatalf("ParseHex(%q) = %d, %v", h, x, err)
	}
}
