package netdicom

import (
	"fmt"
	"sync"

	"v.io/x/lib/vlog"
)

// AssociationState is the coarse state of an association, as seen by its
// owner.
type AssociationState int

const (
	// AssociationRequesting means the handshake has not completed yet.
	AssociationRequesting AssociationState = iota
	AssociationEstablished
	// AssociationClosed means the association was released, aborted, or
	// never established.
	AssociationClosed
)

func (s AssociationState) String() string {
	switch s {
	case AssociationRequesting:
		return "requesting"
	case AssociationEstablished:
		return "established"
	case AssociationClosed:
		return "closed"
	}
	return fmt.Sprintf("AssociationState(%d)", int(s))
}

// association connects one state machine to the service dispatcher. It
// consumes the machine's upcalls and tracks the state for the owner.
type association struct {
	label    string
	disp     *serviceDispatcher
	upcallCh chan upcallEvent

	// Called in the upcall loop once the handshake completes.
	onEstablished func(cm *contextManager)

	mu    sync.Mutex
	cond  *sync.Cond // Broadcast when state changes.
	state AssociationState
	cm    *contextManager // Set only after the handshake completes.
	err   error           // Why the association ended.
	done  chan struct{}   // Closed when the association is gone.
}

func newAssociation(label string, disp *serviceDispatcher, upcallCh chan upcallEvent) *association {
	a := &association{
		label:    label,
		disp:     disp,
		upcallCh: upcallCh,
		done:     make(chan struct{}),
	}
	a.cond = sync.NewCond(&a.mu)
	return a
}

func (a *association) run() {
	for event := range a.upcallCh {
		switch event.eventType {
		case upcallEventHandshakeCompleted:
			a.mu.Lock()
			doassert(a.cm == nil)
			a.cm = event.cm
			a.state = AssociationEstablished
			a.cond.Broadcast()
			a.mu.Unlock()
			if a.onEstablished != nil {
				a.onEstablished(event.cm)
			}
		case upcallEventData:
			a.disp.handleEvent(event)
		case upcallEventClosed:
			a.mu.Lock()
			a.err = event.err
			a.mu.Unlock()
		}
	}
	vlog.VI(1).Infof("%s: upcall loop done", a.label)
	a.mu.Lock()
	a.state = AssociationClosed
	err := a.err
	a.cond.Broadcast()
	a.mu.Unlock()
	a.disp.close(err)
	close(a.done)
}

// waitEstablished blocks until the handshake completes or fails.
func (a *association) waitEstablished() (*contextManager, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for a.state == AssociationRequesting {
		a.cond.Wait()
	}
	if a.state == AssociationEstablished {
		return a.cm, nil
	}
	if a.err != nil {
		return nil, a.err
	}
	return nil, ErrAssociationClosed
}

// contextManager returns the negotiated table, or an error if the
// association is not established.
func (a *association) contextManager() (*contextManager, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch a.state {
	case AssociationEstablished:
		return a.cm, nil
	case AssociationRequesting:
		return nil, fmt.Errorf("netdicom: association not established yet")
	}
	if a.err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAssociationClosed, a.err)
	}
	return nil, ErrAssociationClosed
}

func (a *association) getState() AssociationState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// closeError returns why the association ended; nil after an orderly release.
func (a *association) closeError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}
