// Package sim is an in-process stand-in for the phone's audio and
// screen-capture services. It records hardware commands, injects failures
// and delivers platform callbacks on its own goroutine.
package sim

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/tphakala/callctl/internal/audioroute/device"
	"github.com/tphakala/callctl/internal/errors"
	"github.com/tphakala/callctl/internal/hwevent"
	"github.com/tphakala/callctl/internal/logging"
)

// Hardware commands as recorded by Commands.
const (
	CmdCommunicationMode = "setCommunicationMode"
	CmdStopSco           = "stopBluetoothSco"
	CmdStartSco          = "startBluetoothSco"
	CmdSpeakerOn         = "setSpeakerphoneOn(true)"
	CmdSpeakerOff        = "setSpeakerphoneOn(false)"
	CmdEnumerate         = "getDevices"
	CmdRequestGrant      = "createScreenCaptureIntent"
	CmdAcquire           = "getMediaProjection"
)

// Android constants mirrored by the simulator.
const (
	ModeNormal          = 0
	ModeInCommunication = 3

	ScoAudioStateDisconnected = 0
	ScoAudioStateConnected    = 1

	BluetoothStateDisconnected = 0
	BluetoothStateConnected    = 2
)

// Grant policies.
const (
	GrantManual = "manual"
	GrantAlways = "grant"
	GrantNever  = "deny"
)

// ErrNoPendingGrant is returned by Resolve when no dialog is open.
var ErrNoPendingGrant = errors.New(errors.NewStd("no pending screen capture dialog")).
	Component("platform").
	Category(errors.CategoryState).
	Build()

// Options configures the simulator.
type Options struct {
	Devices          []device.AudioDevice
	CaptureSupported bool
	GrantPolicy      string
	GrantDelay       time.Duration
	Logger           *slog.Logger
}

// Platform simulates the host platform services.
type Platform struct {
	opts   Options
	logger *slog.Logger

	mu            sync.Mutex
	commands      []string
	failures      map[string]error
	mode          int
	speakerOn     bool
	scoOn         bool
	devices       []device.AudioDevice
	handler       func(hwevent.Event)
	grantReceiver GrantReceiver
	pendingGrants []uint64
	resources     map[string]*Resource

	queue    *deliveryQueue
	timers   sync.WaitGroup
	closing  chan struct{}
	closeOne sync.Once
}

// New starts a simulator with its delivery goroutine.
func New(opts Options) *Platform {
	logger := opts.Logger
	if logger == nil {
		logger = logging.ForService("platform-sim")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.GrantPolicy == "" {
		opts.GrantPolicy = GrantManual
	}

	return &Platform{
		opts:      opts,
		logger:    logger,
		failures:  make(map[string]error),
		devices:   slices.Clone(opts.Devices),
		resources: make(map[string]*Resource),
		queue:     newDeliveryQueue(),
		closing:   make(chan struct{}),
	}
}

// Close stops delivery and waits for the simulator goroutines.
func (p *Platform) Close() {
	p.closeOne.Do(func() {
		close(p.closing)
		p.timers.Wait()
		p.queue.close()
	})
}

// Commands returns every hardware command issued so far, in order.
func (p *Platform) Commands() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.commands)
}

// ResetCommands clears the command log.
func (p *Platform) ResetCommands() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = nil
}

// Fail makes every later call of cmd return err until Recover.
func (p *Platform) Fail(cmd string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("simulated %s failure", cmd)
	}
	p.failures[cmd] = err
}

// Recover clears the injected failure for cmd.
func (p *Platform) Recover(cmd string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.failures, cmd)
}

// Drain blocks until every queued callback has been delivered.
func (p *Platform) Drain() {
	p.queue.drain()
}

// recordLocked logs cmd and returns the injected failure, if any. Must hold p.mu.
func (p *Platform) recordLocked(cmd string) error {
	if err, ok := p.failures[cmd]; ok {
		p.logger.Debug("simulated command failed", "command", cmd, "error", err)
		return err
	}
	p.commands = append(p.commands, cmd)
	return nil
}
