package sim

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/tphakala/callctl/internal/capture"
	"github.com/tphakala/callctl/internal/errors"
)

// GrantReceiver is where permission dialog answers are delivered, usually
// capture.Manager.OnGrantResult.
type GrantReceiver func(token capture.Token, result capture.GrantResult)

// GrantData is the opaque payload carried by a granted permission.
type GrantData struct {
	Token    capture.Token
	IssuedAt time.Time
}

// Resource is a simulated capture projection.
type Resource struct {
	id        string
	released  atomic.Bool
	onRelease func(id string) error
}

// ID returns the resource identifier.
func (r *Resource) ID() string { return r.id }

// Release stops the projection. Releasing twice is a no-op.
func (r *Resource) Release() error {
	if !r.released.CompareAndSwap(false, true) {
		return nil
	}
	return r.onRelease(r.id)
}

// Released reports whether Release has run.
func (r *Resource) Released() bool { return r.released.Load() }

// SetGrantReceiver wires dialog answers to recv.
func (p *Platform) SetGrantReceiver(recv GrantReceiver) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.grantReceiver = recv
}

// Supported reports whether screen capture exists on the simulated device.
func (p *Platform) Supported() bool {
	return p.opts.CaptureSupported
}

// RequestGrant opens the permission dialog. Under the automatic policies
// the answer arrives after GrantDelay; under the manual policy it waits for
// Resolve.
func (p *Platform) RequestGrant(token capture.Token) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked(CmdRequestGrant); err != nil {
		return err
	}

	switch p.opts.GrantPolicy {
	case GrantAlways, GrantNever:
		granted := p.opts.GrantPolicy == GrantAlways
		p.timers.Add(1)
		go func() {
			defer p.timers.Done()
			timer := time.NewTimer(p.opts.GrantDelay)
			defer timer.Stop()
			select {
			case <-p.closing:
				return
			case <-timer.C:
			}
			p.mu.Lock()
			defer p.mu.Unlock()
			p.answerLocked(token, granted, "")
		}()
	default:
		p.pendingGrants = append(p.pendingGrants, uint64(token))
	}
	return nil
}

// PendingGrants returns the tokens of dialogs still awaiting an answer.
func (p *Platform) PendingGrants() []capture.Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]capture.Token, len(p.pendingGrants))
	for i, t := range p.pendingGrants {
		out[i] = capture.Token(t)
	}
	return out
}

// Resolve answers an open dialog. A zero token answers the most recent one.
func (p *Platform) Resolve(token capture.Token, granted bool, reason string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token == 0 {
		if len(p.pendingGrants) == 0 {
			return ErrNoPendingGrant
		}
		token = capture.Token(p.pendingGrants[len(p.pendingGrants)-1])
	}

	idx := -1
	for i, t := range p.pendingGrants {
		if t == uint64(token) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.New(fmt.Errorf("%w: token %d", ErrNoPendingGrant, token)).
			Component("platform").
			Category(errors.CategoryState).
			Context("token", uint64(token)).
			Build()
	}
	p.pendingGrants = append(p.pendingGrants[:idx], p.pendingGrants[idx+1:]...)
	p.answerLocked(token, granted, reason)
	return nil
}

// answerLocked queues the dialog answer for delivery. Must hold p.mu.
func (p *Platform) answerLocked(token capture.Token, granted bool, reason string) {
	result := capture.GrantResult{Granted: granted, Reason: reason}
	if granted {
		result.Payload = GrantData{Token: token, IssuedAt: time.Now()}
	} else if reason == "" {
		result.Reason = "user declined"
	}

	p.queue.push(func() {
		p.mu.Lock()
		recv := p.grantReceiver
		p.mu.Unlock()
		if recv == nil {
			p.logger.Warn("grant answer dropped, no receiver", "token", uint64(token))
			return
		}
		recv(token, result)
	})
}

// Acquire starts a projection from a grant payload.
func (p *Platform) Acquire(payload capture.Payload) (capture.Resource, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.recordLocked(CmdAcquire); err != nil {
		return nil, err
	}
	if _, ok := payload.(GrantData); !ok {
		return nil, errors.New(fmt.Errorf("unrecognized grant payload %T", payload)).
			Component("platform").
			Category(errors.CategoryValidation).
			Build()
	}

	res := &Resource{id: uuid.NewString(), onRelease: p.release}
	p.resources[res.id] = res
	return res, nil
}

func (p *Platform) release(id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.resources, id)
	return nil
}

// LiveResources returns how many projections are running.
func (p *Platform) LiveResources() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.resources)
}
