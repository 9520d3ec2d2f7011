package tcam

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindMode(t *testing.T) {
	sizes := []struct {
		w, h uint32
	}{
		{384, 288},
		{288, 384},
		{384, 287},
		{640, 480},
		{0, 0},
	}

	for rate := FrameRate(-1); rate <= numFrameRates+1; rate++ {
		for _, s := range sizes {
			t.Run(fmt.Sprintf("%dx%d_%d", s.w, s.h, int(rate)), func(t *testing.T) {
				m, ok := FindMode(rate, s.w, s.h)

				want := rate.Valid() && s.w == 384 && s.h == 288
				assert.Equal(t, want, ok)
				if want {
					assert.Equal(t, ModeQVGA, m)
				} else {
					assert.Equal(t, Mode{}, m)
				}
			})
		}
	}
}

func TestNearestRate(t *testing.T) {
	tests := []struct {
		fps  int
		want FrameRate
	}{
		{-5, Rate8FPS},
		{0, Rate8FPS},
		{8, Rate8FPS},
		{11, Rate8FPS},
		{12, Rate15FPS},
		{15, Rate15FPS},
		{22, Rate15FPS},
		{23, Rate30FPS},
		{30, Rate30FPS},
		{60, Rate30FPS},
		{1000, Rate30FPS},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.fps), func(t *testing.T) {
			assert.Equal(t, tt.want, NearestRate(tt.fps))
		})
	}
}

func TestNearestRateIdempotent(t *testing.T) {
	for fps := -10; fps <= 100; fps++ {
		r := NearestRate(fps)
		assert.Equal(t, r, NearestRate(r.FPS()), "fps %d", fps)
	}
}

func TestRateForInterval(t *testing.T) {
	tests := []struct {
		name     string
		in       Fraction
		wantRate FrameRate
	}{
		{"auto", Fraction{0, 0}, Rate30FPS},
		{"auto with denominator", Fraction{0, 15}, Rate30FPS},
		{"exact 15", Fraction{1, 15}, Rate15FPS},
		{"exact 8", Fraction{1, 8}, Rate8FPS},
		{"rounds 45/2 up", Fraction{2, 45}, Rate30FPS},
		{"60 clamps", Fraction{1, 60}, Rate30FPS},
		{"slow clamps", Fraction{1000, 1}, Rate8FPS},
		{"1001/30000", Fraction{1001, 30000}, Rate30FPS},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, interval := RateForInterval(tt.in)
			assert.Equal(t, tt.wantRate, rate)
			assert.Equal(t, Fraction{1, uint32(tt.wantRate.FPS())}, interval)
		})
	}
}

func TestPixelRate(t *testing.T) {
	assert.Equal(t, uint64(384*288*30), PixelRate(ModeQVGA, Rate30FPS))
	assert.Equal(t, uint64(384*288*8), PixelRate(ModeQVGA, Rate8FPS))

	huge := Mode{TotalWidth: 1 << 20, TotalHeight: 1 << 20}
	assert.Equal(t, uint64(1<<40)*60, PixelRate(huge, Rate60FPS))
}

func TestFrameRateString(t *testing.T) {
	assert.Equal(t, "15 fps", Rate15FPS.String())
	assert.Equal(t, "FrameRate(7)", FrameRate(7).String())
	assert.Zero(t, FrameRate(7).FPS())
}

func TestModesReturnsCopy(t *testing.T) {
	m := Modes()
	m[0].Width = 1
	assert.Equal(t, uint32(384), Modes()[0].Width)
}
