package tcam

import "fmt"

type ModeID uint32

const (
	ModeIDQVGA ModeID = iota
)

// Mode describes one supported sensor timing. Modes are compared with ==.
type Mode struct {
	ID          ModeID
	Width       uint32
	Height      uint32
	TotalWidth  uint32
	TotalHeight uint32
	MaxFPS      uint32
}

func (m Mode) String() string {
	return fmt.Sprintf("%dx%d (total %dx%d) @ <=%d fps", m.Width, m.Height, m.TotalWidth, m.TotalHeight, m.MaxFPS)
}

// ModeQVGA is the only timing the sensor bridge produces, and the fallback for bring-up.
var ModeQVGA = Mode{
	ID:          ModeIDQVGA,
	Width:       384,
	Height:      288,
	TotalWidth:  384,
	TotalHeight: 288,
	MaxFPS:      30,
}

var modes = []Mode{ModeQVGA}

// Modes returns a copy of the mode table.
func Modes() []Mode {
	return append([]Mode(nil), modes...)
}

type FrameRate int

const (
	Rate8FPS FrameRate = iota
	Rate15FPS
	Rate30FPS
	Rate60FPS
	numFrameRates
)

var frameRates = [numFrameRates]int{
	Rate8FPS:  8,
	Rate15FPS: 15,
	Rate30FPS: 30,
	Rate60FPS: 60,
}

const (
	minFPS = 8
	maxFPS = 30
)

func (r FrameRate) Valid() bool {
	return r >= 0 && r < numFrameRates
}

// FPS returns the frame rate in frames per second, or 0 for an invalid rate.
func (r FrameRate) FPS() int {
	if !r.Valid() {
		return 0
	}
	return frameRates[r]
}

func (r FrameRate) String() string {
	if !r.Valid() {
		return fmt.Sprintf("FrameRate(%d)", int(r))
	}
	return fmt.Sprintf("%d fps", frameRates[r])
}

// Fraction is a frame interval in seconds.
type Fraction struct {
	Numerator   uint32
	Denominator uint32
}

func (f Fraction) String() string {
	return fmt.Sprintf("%d/%d", f.Numerator, f.Denominator)
}

// FindMode returns the mode whose active size is exactly width x height, provided
// rate is one of the enumerated frame rates.
func FindMode(rate FrameRate, width, height uint32) (Mode, bool) {
	if !rate.Valid() {
		return Mode{}, false
	}
	for _, m := range modes {
		if m.Width == width && m.Height == height {
			return m, true
		}
	}
	return Mode{}, false
}

// NearestRate clamps fps to [8, 30] and picks the closest enumerated rate.
// Ties resolve to the lower rate.
func NearestRate(fps int) FrameRate {
	fps = max(minFPS, min(fps, maxFPS))

	best := Rate8FPS
	for r := Rate8FPS; r < numFrameRates; r++ {
		if abs(r.FPS()-fps) < abs(best.FPS()-fps) {
			best = r
		}
	}
	return best
}

// RateForInterval resolves a requested frame interval to a supported rate and
// returns the normalized 1/fps interval. A zero numerator selects the maximum rate.
func RateForInterval(fi Fraction) (FrameRate, Fraction) {
	if fi.Numerator == 0 {
		return Rate30FPS, Fraction{1, uint32(Rate30FPS.FPS())}
	}
	fps := int((uint64(fi.Denominator) + uint64(fi.Numerator)/2) / uint64(fi.Numerator))
	r := NearestRate(fps)
	return r, Fraction{1, uint32(r.FPS())}
}

// PixelRate returns the pixel clock needed for mode at rate, in pixels per second.
func PixelRate(m Mode, rate FrameRate) uint64 {
	return uint64(m.TotalWidth) * uint64(m.TotalHeight) * uint64(rate.FPS())
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
