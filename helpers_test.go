package tcam

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var errNack = errors.New("nack")

// fakeSensor emulates the sensor's register file behind a two-wire bus.
type fakeSensor struct {
	mu      sync.Mutex
	regs    map[uint16]uint16
	pointer uint16

	// failReads makes the first failReads read transactions fail, -1 fails all.
	failReads int
	reads     int
	writes    int
}

func newFakeSensor(width, height uint16) *fakeSensor {
	return &fakeSensor{regs: map[uint16]uint16{
		RES_WIDTH.Address:  width,
		RES_HEIGHT.Address: height,
	}}
}

func (f *fakeSensor) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.writes++
	if len(p) < 2 {
		return 0, errNack
	}
	f.pointer = uint16(p[0])<<8 | uint16(p[1])
	if len(p) == 4 {
		f.regs[f.pointer] = uint16(p[2])<<8 | uint16(p[3])
	}
	return len(p), nil
}

func (f *fakeSensor) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if f.failReads < 0 || f.reads <= f.failReads {
		return 0, errNack
	}
	v := f.regs[f.pointer]
	return copy(p, []byte{byte(v >> 8), byte(v)}), nil
}

func (f *fakeSensor) transactions() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.reads + f.writes
}

// sleepRecorder stands in for time.Sleep.
type sleepRecorder struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *sleepRecorder) Sleep(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sleeps = append(s.sleeps, d)
}

func (s *sleepRecorder) total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	var sum time.Duration
	for _, d := range s.sleeps {
		sum += d
	}
	return sum
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.Sleep = func(time.Duration) {}
	return p
}

// newTestDevice attaches a device backed by a sensor reporting 384x288, with its
// own detector so tests do not share bring-up results.
func newTestDevice(t *testing.T, opts ...func(*Options)) (*Device, *fakeSensor) {
	t.Helper()

	sensor := newFakeSensor(384, 288)
	o := Options{
		Name:     t.Name(),
		Bus:      DefaultBusConfig,
		Retry:    testPolicy(),
		Detector: &Detector{},
		Logger:   discardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	dev, err := Attach(sensor, o)
	require.NoError(t, err)
	t.Cleanup(func() { dev.Close() })

	return dev, sensor
}
