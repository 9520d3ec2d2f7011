package tcam

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPowerReferenceCounting(t *testing.T) {
	resets := 0
	dev, _ := newTestDevice(t, func(o *Options) {
		o.Reset = func() error { resets++; return nil }
	})

	action, err := dev.SetPower(true)
	require.NoError(t, err)
	assert.Equal(t, PowerOn, action)

	action, err = dev.SetPower(true)
	require.NoError(t, err)
	assert.Equal(t, PowerNone, action)

	action, err = dev.SetPower(false)
	require.NoError(t, err)
	assert.Equal(t, PowerNone, action)

	st := dev.Status()
	assert.Equal(t, 1, st.PowerCount)
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 1, resets)

	action, err = dev.SetPower(false)
	require.NoError(t, err)
	assert.Equal(t, PowerOff, action)
	assert.Equal(t, StateOff, dev.State())
}

func TestPowerOffClearsStreaming(t *testing.T) {
	dev, _ := newTestDevice(t)

	_, err := dev.SetPower(true)
	require.NoError(t, err)
	require.NoError(t, dev.SetStream(true))
	assert.Equal(t, StateStreaming, dev.State())

	action, err := dev.SetPower(false)
	require.NoError(t, err)
	assert.Equal(t, PowerOff, action)
	assert.False(t, dev.Streaming())
	assert.Equal(t, StateOff, dev.State())
}

func TestPowerUnderflowIsAbsorbed(t *testing.T) {
	dev, _ := newTestDevice(t)

	action, err := dev.SetPower(false)
	require.NoError(t, err)
	assert.Equal(t, PowerNone, action)
	assert.Equal(t, 0, dev.Status().PowerCount)

	// the count did not go negative, one reference powers up again
	action, err = dev.SetPower(true)
	require.NoError(t, err)
	assert.Equal(t, PowerOn, action)
}

func TestPowerOnResetFailure(t *testing.T) {
	errRail := errors.New("rail fault")
	dev, _ := newTestDevice(t, func(o *Options) {
		o.Reset = func() error { return errRail }
	})

	action, err := dev.SetPower(true)
	assert.ErrorIs(t, err, errRail)
	assert.Equal(t, PowerNone, action)
	assert.Equal(t, 0, dev.Status().PowerCount)
}

func TestStreamRequiresCSI2(t *testing.T) {
	for _, bt := range []BusType{BusUnknown, BusParallel, BusBT656, BusCSI1, BusCCP2, BusCSI2CPHY} {
		t.Run(bt.String(), func(t *testing.T) {
			dev, _ := newTestDevice(t, func(o *Options) {
				o.Bus = BusConfig{Type: bt}
			})
			_, err := dev.SetPower(true)
			require.NoError(t, err)

			err = dev.SetStream(true)
			assert.ErrorIs(t, err, ErrUnsupportedBus)
			assert.False(t, dev.Streaming())
		})
	}
}

func TestStreamUnsupportedBusWithInvalidMode(t *testing.T) {
	dev, _ := newTestDevice(t, func(o *Options) {
		o.Bus = BusConfig{Type: BusParallel}
	})
	dev.mu.Lock()
	dev.currRate = FrameRate(9)
	dev.mu.Unlock()

	assert.ErrorIs(t, dev.SetStream(true), ErrUnsupportedBus)
	assert.False(t, dev.Streaming())
}

func TestStreamInvalidMode(t *testing.T) {
	dev, _ := newTestDevice(t)
	_, err := dev.SetPower(true)
	require.NoError(t, err)

	dev.mu.Lock()
	dev.currMode = Mode{Width: 640, Height: 480}
	dev.mu.Unlock()

	assert.ErrorIs(t, dev.SetStream(true), ErrInvalidMode)
	assert.False(t, dev.Streaming())
}

func TestStreamRequiresPower(t *testing.T) {
	dev, _ := newTestDevice(t)

	assert.ErrorIs(t, dev.SetStream(true), ErrNotPowered)
	assert.False(t, dev.Streaming())
}

func TestStreamToggle(t *testing.T) {
	dev, _ := newTestDevice(t)
	_, err := dev.SetPower(true)
	require.NoError(t, err)

	require.NoError(t, dev.SetStream(true))
	require.NoError(t, dev.SetStream(true))
	assert.True(t, dev.Streaming())

	require.NoError(t, dev.SetStream(false))
	require.NoError(t, dev.SetStream(false))
	assert.False(t, dev.Streaming())
	assert.Equal(t, StateIdle, dev.State())
}

func TestStreamDisableAlwaysSucceeds(t *testing.T) {
	dev, _ := newTestDevice(t)
	_, err := dev.SetPower(true)
	require.NoError(t, err)
	require.NoError(t, dev.SetStream(true))

	// even a broken bus descriptor does not block stopping
	dev.mu.Lock()
	dev.busCfg.Type = BusParallel
	dev.mu.Unlock()

	assert.NoError(t, dev.SetStream(false))
	assert.False(t, dev.Streaming())
}

func TestPowerAndStreamEvents(t *testing.T) {
	events := NewEvents()
	powered := make(chan PowerEvent, 4)
	streamed := make(chan StreamEvent, 4)
	defer Subscribe(events, func(e PowerEvent) { powered <- e })()
	defer Subscribe(events, func(e StreamEvent) { streamed <- e })()

	dev, _ := newTestDevice(t, func(o *Options) {
		o.Name = "events"
		o.Events = events
	})

	_, err := dev.SetPower(true)
	require.NoError(t, err)
	require.NoError(t, dev.SetStream(true))

	select {
	case e := <-powered:
		assert.Equal(t, PowerEvent{Device: "events", Action: PowerOn, Count: 1}, e)
	case <-time.After(time.Second):
		t.Fatal("no power event")
	}

	select {
	case e := <-streamed:
		assert.Equal(t, StreamEvent{Device: "events", Streaming: true}, e)
	case <-time.After(time.Second):
		t.Fatal("no stream event")
	}
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "off", StateOff.String())
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "on", PowerOn.String())
	assert.Equal(t, "none", PowerNone.String())
}

func TestGaugesAreSeparatedPerInstance(t *testing.T) {
	named := func(o *Options) { o.Name = "shared" }
	a, _ := newTestDevice(t, named)
	b, _ := newTestDevice(t, named)
	require.NotEqual(t, a.ID(), b.ID())

	_, err := b.SetPower(true)
	require.NoError(t, err)
	require.NoError(t, a.Close())

	assert.Equal(t, 1.0, testutil.ToFloat64(devicePowerCount.WithLabelValues("shared", b.ID().String())))
}
