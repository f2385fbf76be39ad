package netdicom

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/medimesh/go-netdicom/dimse"
	"v.io/x/lib/vlog"
)

// serviceCommandState is the state of one DIMSE operation in flight. An
// outbound command was issued by this side; responses to it are streamed
// through upcallCh. An inbound command is a request from the peer, run by a
// callback in its own goroutine.
type serviceCommandState struct {
	disp      *serviceDispatcher  // Parent.
	messageID dimse.MessageID     // MessageID of the request.
	inbound   bool                // Which map of disp this command lives in.
	context   contextManagerEntry // Transfersyntax/sopclass for this command.
	cm        *contextManager     // For looking up context -> transfersyntax/sopclass mappings

	// upcallCh streams the peer's responses for an outbound command.
	upcallCh chan upcallEvent
	// Closed when the command is deleted from the dispatcher.
	done chan struct{}
	// Set by a C-CANCEL from the peer. Inbound only.
	cancelled atomic.Bool
}

// sendMessage queues a DIMSE message for the state machine. It fails only if
// the association is gone.
func (cs *serviceCommandState) sendMessage(msg dimse.Message, data []byte) error {
	vlog.VI(1).Infof("%s: sending message: %v, context %d", cs.disp.label, msg, cs.context.contextID)
	payload := &stateEventDIMSEPayload{
		contextID: cs.context.contextID,
		command:   msg,
		data:      data,
	}
	select {
	case cs.disp.downcallCh <- stateEvent{event: evt09, dimsePayload: payload}:
		return nil
	case <-cs.disp.closed:
		return cs.disp.closedError()
	}
}

// waitResponse waits for the next response to an outbound command. It
// returns ctx.Err() when ctx is cancelled; the command stays active so the
// caller can send C-CANCEL and keep waiting. When the DIMSE timeout expires,
// the association is aborted.
func (cs *serviceCommandState) waitResponse(ctx context.Context, op string) (upcallEvent, error) {
	var timerCh <-chan time.Time
	if cs.disp.dimseTimeout > 0 {
		timer := time.NewTimer(cs.disp.dimseTimeout)
		defer timer.Stop()
		timerCh = timer.C
	}
	select {
	case event := <-cs.upcallCh:
		return event, nil
	case <-ctx.Done():
		return upcallEvent{}, ctx.Err()
	case <-timerCh:
		vlog.Errorf("%s: %s: no response in %v; aborting", cs.disp.label, op, cs.disp.dimseTimeout)
		cs.disp.abort()
		return upcallEvent{}, &TimeoutError{Op: op}
	case <-cs.disp.closed:
		// A response may have raced with the close.
		select {
		case event := <-cs.upcallCh:
			return event, nil
		default:
		}
		return upcallEvent{}, cs.disp.closedError()
	}
}

type serviceCallback func(msg dimse.Message, data []byte, cs *serviceCommandState)

type serviceDispatcher struct {
	label        string
	downcallCh   chan stateEvent // for sending PDUs to the statemachine.
	dimseTimeout time.Duration
	closed       chan struct{} // closed once the association is gone.

	mu            sync.Mutex
	outbound      map[dimse.MessageID]*serviceCommandState // guarded by mu
	inbound       map[dimse.MessageID]*serviceCommandState // guarded by mu
	callbacks     map[uint16]serviceCallback               // guarded by mu
	lastMessageID dimse.MessageID                          // guarded by mu
	closeErr      error                                    // guarded by mu
	handlers      sync.WaitGroup
}

// newCommand allocates a message ID for an outbound request.
func (disp *serviceDispatcher) newCommand(cm *contextManager, context contextManagerEntry) (*serviceCommandState, error) {
	disp.mu.Lock()
	defer disp.mu.Unlock()
	select {
	case <-disp.closed:
		return nil, disp.closedErrorLocked()
	default:
	}
	for {
		disp.lastMessageID++
		if disp.lastMessageID == 0 {
			disp.lastMessageID = 1
		}
		if _, ok := disp.outbound[disp.lastMessageID]; !ok {
			break
		}
	}
	cs := &serviceCommandState{
		disp:      disp,
		messageID: disp.lastMessageID,
		cm:        cm,
		context:   context,
		upcallCh:  make(chan upcallEvent, 128),
		done:      make(chan struct{}),
	}
	disp.outbound[cs.messageID] = cs
	vlog.VI(1).Infof("%s: start command %v", disp.label, cs.messageID)
	return cs, nil
}

func (disp *serviceDispatcher) deleteCommand(cs *serviceCommandState) {
	disp.mu.Lock()
	defer disp.mu.Unlock()
	vlog.VI(1).Infof("%s: finish command %v", disp.label, cs.messageID)
	m := disp.outbound
	if cs.inbound {
		m = disp.inbound
	}
	if m[cs.messageID] == cs {
		delete(m, cs.messageID)
	}
	close(cs.done)
}

func (disp *serviceDispatcher) registerCallback(commandField uint16, cb serviceCallback) {
	disp.mu.Lock()
	disp.callbacks[commandField] = cb
	disp.mu.Unlock()
}

// handleEvent routes one DIMSE message from the peer. It is called only from
// the association's upcall loop.
func (disp *serviceDispatcher) handleEvent(event upcallEvent) {
	doassert(event.eventType == upcallEventData)
	doassert(event.command != nil)
	context, err := event.cm.lookupByContextID(event.contextID)
	if err != nil {
		vlog.Errorf("%s: dropping %v: %v", disp.label, event.command, err)
		return
	}
	msg := event.command
	messageID := msg.GetMessageID()
	if msg.CommandField() == dimse.CommandFieldCCancelRq {
		disp.mu.Lock()
		cs := disp.inbound[messageID]
		disp.mu.Unlock()
		if cs == nil {
			vlog.VI(1).Infof("%s: C-CANCEL for inactive message %d", disp.label, messageID)
			return
		}
		vlog.Infof("%s: C-CANCEL for message %d", disp.label, messageID)
		cs.cancelled.Store(true)
		return
	}
	if msg.GetStatus() != nil {
		disp.mu.Lock()
		cs := disp.outbound[messageID]
		disp.mu.Unlock()
		if cs == nil {
			vlog.Errorf("%s: response %v for unknown message %d; dropping", disp.label, msg, messageID)
			return
		}
		select {
		case cs.upcallCh <- event:
		case <-cs.done:
		}
		return
	}
	cs := &serviceCommandState{
		disp:      disp,
		messageID: messageID,
		inbound:   true,
		cm:        event.cm,
		context:   context,
		done:      make(chan struct{}),
	}
	disp.mu.Lock()
	if _, ok := disp.inbound[messageID]; ok {
		disp.mu.Unlock()
		vlog.Errorf("%s: message ID %d is already active: %v", disp.label, messageID, msg)
		go cs.sendMessage(responseFor(msg, dimse.Status{Status: dimse.StatusDuplicateInvocation}, false), nil)
		return
	}
	disp.inbound[messageID] = cs
	cb := disp.callbacks[msg.CommandField()]
	disp.handlers.Add(1)
	disp.mu.Unlock()
	go func() {
		defer disp.handlers.Done()
		defer disp.deleteCommand(cs)
		if cb == nil {
			vlog.Infof("%s: no handler for %v", disp.label, msg)
			cs.sendMessage(responseFor(msg, dimse.Status{
				Status:       dimse.StatusSOPClassNotSupported,
				ErrorComment: fmt.Sprintf("%s is not supported", commandName(msg)),
			}, false), nil)
			return
		}
		cb(msg, event.data, cs)
	}()
}

// abort asks the state machine to abort the association.
func (disp *serviceDispatcher) abort() {
	select {
	case disp.downcallCh <- stateEvent{event: evt15}:
	case <-disp.closed:
	}
}

// release asks the state machine to release the association.
func (disp *serviceDispatcher) release() {
	select {
	case disp.downcallCh <- stateEvent{event: evt11}:
	case <-disp.closed:
	}
}

func (disp *serviceDispatcher) closedError() error {
	disp.mu.Lock()
	defer disp.mu.Unlock()
	return disp.closedErrorLocked()
}

func (disp *serviceDispatcher) closedErrorLocked() error {
	if disp.closeErr == nil {
		return ErrAssociationClosed
	}
	return fmt.Errorf("%w: %w", ErrAssociationClosed, disp.closeErr)
}

// close is called once the state machine has stopped. err is nil after an
// orderly release.
func (disp *serviceDispatcher) close(err error) {
	disp.mu.Lock()
	disp.closeErr = err
	close(disp.closed)
	disp.mu.Unlock()
}

func newServiceDispatcher(label string, downcallCh chan stateEvent, dimseTimeout time.Duration) *serviceDispatcher {
	return &serviceDispatcher{
		label:        label,
		downcallCh:   downcallCh,
		dimseTimeout: dimseTimeout,
		closed:       make(chan struct{}),
		outbound:     make(map[dimse.MessageID]*serviceCommandState),
		inbound:      make(map[dimse.MessageID]*serviceCommandState),
		callbacks:    make(map[uint16]serviceCallback),
	}
}
