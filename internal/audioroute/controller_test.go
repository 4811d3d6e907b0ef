package audioroute

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/callctl/internal/audioroute/device"
	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/observability/metrics"
)

// fakePlatform records hardware commands and fails the configured ones.
type fakePlatform struct {
	commands []string
	failOn   map[string]error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{failOn: map[string]error{}}
}

func (p *fakePlatform) run(name string) error {
	if err, ok := p.failOn[name]; ok {
		return err
	}
	p.commands = append(p.commands, name)
	return nil
}

func (p *fakePlatform) SetCommunicationMode() error { return p.run("mode") }
func (p *fakePlatform) StopBluetoothSco() error     { return p.run("sco-off") }
func (p *fakePlatform) StartBluetoothSco() error    { return p.run("sco-on") }
func (p *fakePlatform) SetSpeakerphoneOn(on bool) error {
	if on {
		return p.run("speaker-on")
	}
	return p.run("speaker-off")
}

type fakeRecorder struct {
	metrics.NoOpRecorder
	switches map[string]int
	commands map[string]int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{switches: map[string]int{}, commands: map[string]int{}}
}

func (r *fakeRecorder) RecordRouteSwitch(route, status string) { r.switches[route+"/"+status]++ }
func (r *fakeRecorder) RecordPlatformCommand(step, status string) {
	r.commands[step+"/"+status]++
}

func TestParseRoute(t *testing.T) {
	tests := []struct {
		in   string
		want Route
	}{
		{"earpiece", RouteEarpiece},
		{"Speaker", RouteSpeaker},
		{" BLUETOOTH ", RouteBluetooth},
		{"headphones", RouteHeadphones},
	}
	for _, tt := range tests {
		got, err := ParseRoute(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseRoute("car")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidRoute)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))
}

func TestSetRouteCommandSequences(t *testing.T) {
	tests := []struct {
		name   string
		routes []Route
		want   []string
	}{
		{"earpiece", []Route{RouteEarpiece}, []string{"speaker-off"}},
		{"speaker", []Route{RouteSpeaker}, []string{"speaker-on"}},
		{"bluetooth", []Route{RouteBluetooth}, []string{"speaker-off", "sco-on"}},
		{"headphones", []Route{RouteHeadphones}, []string{"speaker-off"}},
		{"bluetooth to earpiece", []Route{RouteBluetooth, RouteEarpiece},
			[]string{"speaker-off", "sco-on", "sco-off", "speaker-off"}},
		{"bluetooth twice keeps sco", []Route{RouteBluetooth, RouteBluetooth},
			[]string{"speaker-off", "sco-on", "speaker-off", "sco-on"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePlatform()
			c := NewController(p, Options{})
			for _, r := range tt.routes {
				_, err := c.SetRoute(r)
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, p.commands)
		})
	}
}

func TestBluetoothSpeakerBluetoothScenario(t *testing.T) {
	p := newFakePlatform()
	c := NewController(p, Options{})

	for _, r := range []Route{RouteBluetooth, RouteSpeaker, RouteBluetooth} {
		_, err := c.SetRoute(r)
		require.NoError(t, err)
	}

	assert.Equal(t, State{ActiveRoute: RouteBluetooth, BluetoothScoRequested: true}, c.State())

	var sco []string
	for _, cmd := range p.commands {
		if cmd == "sco-on" || cmd == "sco-off" {
			sco = append(sco, cmd)
		}
	}
	assert.Equal(t, []string{"sco-on", "sco-off", "sco-on"}, sco)
}

func TestTeardownPrecedesEnableWhenLeavingBluetooth(t *testing.T) {
	for _, target := range []Route{RouteEarpiece, RouteSpeaker, RouteHeadphones} {
		t.Run(target.String(), func(t *testing.T) {
			p := newFakePlatform()
			c := NewController(p, Options{})
			_, err := c.SetRoute(RouteBluetooth)
			require.NoError(t, err)
			p.commands = nil

			_, err = c.SetRoute(target)
			require.NoError(t, err)
			require.NotEmpty(t, p.commands)
			assert.Equal(t, "sco-off", p.commands[0])
			assert.Equal(t, 1, countOf(p.commands, "sco-off"))
		})
	}
}

func TestCommunicationModeOrdering(t *testing.T) {
	p := newFakePlatform()
	c := NewController(p, Options{CommunicationMode: true})

	_, err := c.SetRoute(RouteSpeaker)
	require.NoError(t, err)
	assert.Equal(t, []string{"mode", "speaker-on"}, p.commands)

	_, err = c.SetRoute(RouteBluetooth)
	require.NoError(t, err)
	p.commands = nil

	// SCO teardown precedes the mode command when leaving bluetooth.
	_, err = c.SetRoute(RouteSpeaker)
	require.NoError(t, err)
	assert.Equal(t, []string{"sco-off", "mode", "speaker-on"}, p.commands)
}

func TestInvalidRouteIssuesNoCommands(t *testing.T) {
	p := newFakePlatform()
	rec := newFakeRecorder()
	c := NewController(p, Options{CommunicationMode: true, Metrics: rec})

	for _, r := range []Route{RouteUnset, Route(42)} {
		state, err := c.SetRoute(r)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidRoute)
		assert.NotErrorIs(t, err, ErrPlatformRejected)
		assert.Equal(t, State{}, state)
	}
	assert.Empty(t, p.commands)
	assert.Equal(t, 2, rec.switches[metrics.RouteInvalid+"/rejected"])
	assert.Len(t, rec.switches, 1)
}

func TestPlatformRejectionIsFailFast(t *testing.T) {
	tests := []struct {
		name      string
		failOn    string
		step      Step
		wantState State
		wantCmds  []string
	}{
		{
			name:      "teardown fails",
			failOn:    "sco-off",
			step:      StepTeardownSco,
			wantState: State{ActiveRoute: RouteBluetooth, BluetoothScoRequested: true},
			wantCmds:  nil,
		},
		{
			name:      "speakerphone fails after teardown",
			failOn:    "speaker-on",
			step:      StepSpeakerphone,
			wantState: State{ActiveRoute: RouteBluetooth, BluetoothScoRequested: false},
			wantCmds:  []string{"sco-off"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakePlatform()
			c := NewController(p, Options{})
			_, err := c.SetRoute(RouteBluetooth)
			require.NoError(t, err)
			p.commands = nil
			p.failOn[tt.failOn] = fmt.Errorf("audio service busy")

			state, err := c.SetRoute(RouteSpeaker)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrPlatformRejected)

			var rejected *PlatformRejectedError
			require.ErrorAs(t, err, &rejected)
			assert.Equal(t, tt.step, rejected.Step)
			assert.Equal(t, tt.wantState, state)
			assert.Equal(t, tt.wantState, c.State())
			assert.Equal(t, tt.wantCmds, p.commands)
		})
	}
}

func TestEnableScoFailureKeepsPreviousRoute(t *testing.T) {
	p := newFakePlatform()
	rec := newFakeRecorder()
	c := NewController(p, Options{Metrics: rec})
	_, err := c.SetRoute(RouteSpeaker)
	require.NoError(t, err)

	p.failOn["sco-on"] = fmt.Errorf("no headset")
	state, err := c.SetRoute(RouteBluetooth)

	require.ErrorIs(t, err, ErrPlatformRejected)
	assert.True(t, errors.IsCategory(errors.New(err).Build(), errors.CategoryPlatform))
	assert.Equal(t, State{ActiveRoute: RouteSpeaker}, state)
	assert.Equal(t, 1, rec.commands["enableSco/error"])
	assert.Equal(t, 1, rec.switches["bluetooth/rejected"])
}

func TestCommunicationModeFailureSkipsEverything(t *testing.T) {
	p := newFakePlatform()
	p.failOn["mode"] = fmt.Errorf("denied")
	c := NewController(p, Options{CommunicationMode: true})

	_, err := c.SetRoute(RouteEarpiece)

	var rejected *PlatformRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, StepCommunicationMode, rejected.Step)
	assert.Empty(t, p.commands)
	assert.Equal(t, RouteUnset, c.State().ActiveRoute)
}

func TestCommunicationModeFailureAfterTeardown(t *testing.T) {
	p := newFakePlatform()
	c := NewController(p, Options{CommunicationMode: true})
	_, err := c.SetRoute(RouteBluetooth)
	require.NoError(t, err)
	p.commands = nil
	p.failOn["mode"] = fmt.Errorf("denied")

	state, err := c.SetRoute(RouteEarpiece)

	var rejected *PlatformRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, StepCommunicationMode, rejected.Step)
	assert.Equal(t, []string{"sco-off"}, p.commands)
	assert.Equal(t, State{ActiveRoute: RouteBluetooth}, state)
}

func TestRandomSequencesKeepScoFlagConsistent(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	routes := []Route{RouteEarpiece, RouteSpeaker, RouteBluetooth, RouteHeadphones}

	p := newFakePlatform()
	c := NewController(p, Options{})

	for range 500 {
		target := routes[rng.IntN(len(routes))]
		before := len(p.commands)

		state, err := c.SetRoute(target)
		require.NoError(t, err)
		assert.Equal(t, target, state.ActiveRoute)
		assert.Equal(t, target == RouteBluetooth, state.BluetoothScoRequested)

		issued := p.commands[before:]
		if idx := slices.Index(issued, "sco-off"); idx >= 0 {
			assert.Equal(t, 0, idx, "sco teardown must come first: %v", issued)
		}
	}
}

func TestCloseTearsDownSco(t *testing.T) {
	p := newFakePlatform()
	c := NewController(p, Options{})
	_, err := c.SetRoute(RouteBluetooth)
	require.NoError(t, err)

	c.Close()
	c.Close()

	assert.Equal(t, 1, countOf(p.commands, "sco-off"))
	assert.False(t, c.State().BluetoothScoRequested)
}

func TestCloseSwallowsTeardownFailure(t *testing.T) {
	p := newFakePlatform()
	c := NewController(p, Options{})
	_, err := c.SetRoute(RouteBluetooth)
	require.NoError(t, err)

	p.failOn["sco-off"] = fmt.Errorf("gone")
	assert.NotPanics(t, c.Close)
}

func TestRegistryWarningDoesNotBlockSwitch(t *testing.T) {
	reg := device.NewRegistry()
	reg.Refresh([]device.AudioDevice{device.New(1, 1, "Earpiece")})

	p := newFakePlatform()
	c := NewController(p, Options{Registry: reg})

	state, err := c.SetRoute(RouteHeadphones)
	require.NoError(t, err)
	assert.Equal(t, RouteHeadphones, state.ActiveRoute)
}

func countOf(cmds []string, name string) int {
	n := 0
	for _, c := range cmds {
		if c == name {
			n++
		}
	}
	return n
}
