package actuation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lockline/lockline-go/pkg/tick"
)

type stubActuator struct{ mock.Mock }

func (a *stubActuator) DriveForward() { a.Called() }
func (a *stubActuator) DriveReverse() { a.Called() }
func (a *stubActuator) Stop()         { a.Called() }
func (a *stubActuator) AlarmOn()      { a.Called() }
func (a *stubActuator) AlarmOff()     { a.Called() }

func TestUnlockTransitionsExactly(t *testing.T) {
	rec := &Recorder{}
	s := NewSequencer(rec, DefaultTiming())

	require.NoError(t, s.Begin(ModeUnlock))
	assert.Equal(t, []Command{CmdDriveForward}, rec.Commands())
	assert.Equal(t, PhaseUnlocking, s.Phase())

	want := map[int]Command{
		15: CmdStop,
		18: CmdDriveReverse,
		33: CmdStop,
	}
	phases := map[int]Phase{
		15: PhaseHoldOpen,
		18: PhaseRelocking,
		33: PhaseIdle,
	}

	for i := 1; i <= 33; i++ {
		before := len(rec.Commands())
		done := s.Step()
		cmds := rec.Commands()

		if cmd, ok := want[i]; ok {
			require.Len(t, cmds, before+1, "tick %d", i)
			assert.Equal(t, cmd, cmds[before], "tick %d", i)
			assert.Equal(t, phases[i], s.Phase(), "tick %d", i)
		} else {
			assert.Len(t, cmds, before, "unexpected command at tick %d", i)
		}
		assert.Equal(t, i == 33, done, "tick %d", i)
		assert.Equal(t, i, s.Elapsed())
	}

	assert.Equal(t, []Command{CmdDriveForward, CmdStop, CmdDriveReverse, CmdStop}, rec.Commands())
}

func TestAlarmLastsSixtyTicks(t *testing.T) {
	act := &stubActuator{}
	act.On("AlarmOn").Return().Once()
	act.On("AlarmOff").Return().Once()

	s := NewSequencer(act, DefaultTiming())
	require.NoError(t, s.Begin(ModeAlarm))
	assert.Equal(t, PhaseAlarmSounding, s.Phase())

	for i := 1; i < 60; i++ {
		require.False(t, s.Step(), "ended early at tick %d", i)
	}
	act.AssertNotCalled(t, "AlarmOff")
	assert.True(t, s.Step())
	assert.Equal(t, PhaseIdle, s.Phase())
	act.AssertExpectations(t)
}

func TestSequencerRejectsConcurrentModes(t *testing.T) {
	s := NewSequencer(Nop{}, DefaultTiming())
	require.NoError(t, s.Begin(ModeUnlock))
	assert.ErrorIs(t, s.Begin(ModeAlarm), ErrBusy)
	assert.True(t, s.Busy())

	s.Abort()
	assert.False(t, s.Busy())
	assert.NoError(t, s.Begin(ModeAlarm))
	assert.Zero(t, s.Elapsed())
}

func TestStepIdle(t *testing.T) {
	s := NewSequencer(nil, DefaultTiming())
	assert.True(t, s.Step())
	assert.Zero(t, s.Elapsed())
}

func TestObserverSeesPhaseChanges(t *testing.T) {
	type change struct {
		from, to Phase
		at       int
	}
	var got []change
	s := NewSequencer(Nop{}, DefaultTiming())
	s.OnPhase(func(from, to Phase, at int) {
		got = append(got, change{from, to, at})
	})

	require.NoError(t, s.Begin(ModeUnlock))
	for !s.Step() {
	}

	assert.Equal(t, []change{
		{PhaseIdle, PhaseUnlocking, 0},
		{PhaseUnlocking, PhaseHoldOpen, 15},
		{PhaseHoldOpen, PhaseRelocking, 18},
		{PhaseRelocking, PhaseIdle, 33},
	}, got)
}

func TestRunConsumesTicks(t *testing.T) {
	rec := &Recorder{}
	s := NewSequencer(rec, DefaultTiming())
	src := tick.NewManual()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, ModeAlarm, src) }()

	require.NoError(t, src.Advance(ctx, 60))
	require.NoError(t, <-errc)
	assert.Equal(t, []Command{CmdAlarmOn, CmdAlarmOff}, rec.Commands())
	assert.False(t, src.Running())
}

func TestRunCancelAborts(t *testing.T) {
	rec := &Recorder{}
	s := NewSequencer(rec, DefaultTiming())
	src := tick.NewManual()

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx, ModeUnlock, src) }()

	require.NoError(t, src.Advance(context.Background(), 5))
	cancel()

	assert.ErrorIs(t, <-errc, context.Canceled)
	assert.Equal(t, PhaseIdle, s.Phase())
	assert.Equal(t, []Command{CmdDriveForward, CmdStop}, rec.Commands())
}

func TestTimingValidate(t *testing.T) {
	assert.NoError(t, DefaultTiming().Validate())

	tests := []struct {
		name string
		t    Timing
	}{
		{"zero", Timing{}},
		{"stop after relock", Timing{UnlockStop: 20, RelockStart: 18, UnlockEnd: 33, AlarmEnd: 60}},
		{"end before relock", Timing{UnlockStop: 15, RelockStart: 18, UnlockEnd: 18, AlarmEnd: 60}},
		{"no alarm", Timing{UnlockStop: 15, RelockStart: 18, UnlockEnd: 33}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.t.Validate(), ErrInvalidTiming)
		})
	}

	assert.Equal(t, DefaultTiming(), NewSequencer(nil, Timing{}).Timing())
	assert.Equal(t, 33, DefaultTiming().Length(ModeUnlock))
	assert.Equal(t, 60, DefaultTiming().Length(ModeAlarm))
}
