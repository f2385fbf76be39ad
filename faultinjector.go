package netdicom

import (
	"fmt"
	"sync"

	"github.com/medimesh/go-netdicom/pdu"
)

type faultInjectorAction int

const (
	faultInjectorContinue faultInjectorAction = iota
	faultInjectorDisconnect
	faultInjectorCorrupt
)

// FaultInjector perturbs the PDUs an association sends, driven by a fixed
// byte string. The same string always produces the same faults, which makes
// failures found by fuzzing reproducible. Set it in
// ServiceUserParams.Faults or ServiceProviderParams.Faults; a nil injector
// is a no-op.
type FaultInjector struct {
	mu    sync.Mutex
	fuzz  []byte
	steps int
	// Log of the faults injected so far, for test failure messages.
	history []string
}

// NewFaultInjector creates an injector. An empty fuzz never injects anything.
func NewFaultInjector(fuzz []byte) *FaultInjector {
	return &FaultInjector{fuzz: fuzz}
}

func (f *FaultInjector) nextByte() byte {
	doassert(len(f.fuzz) > 0)
	v := f.fuzz[f.steps]
	f.steps++
	if f.steps >= len(f.fuzz) {
		f.steps = 0
	}
	return v
}

func (f *FaultInjector) nextUInt32() uint32 {
	return (uint32(f.nextByte()) << 24) |
		(uint32(f.nextByte()) << 16) |
		(uint32(f.nextByte()) << 8) |
		uint32(f.nextByte())
}

// onSend is called with the encoded bytes of each PDU before they are
// written. It may flip a byte of the PDU body in place. The 6-byte header is
// never touched, so the receiver stays in sync with the stream.
func (f *FaultInjector) onSend(data []byte) faultInjectorAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fuzz) == 0 {
		return faultInjectorContinue
	}
	op := f.nextByte()
	switch {
	case op >= 0xe8:
		f.history = append(f.history, "disconnect")
		return faultInjectorDisconnect
	case op >= 0xd0 && len(data) > pdu.HeaderSize:
		pos := pdu.HeaderSize + int(f.nextUInt32()%uint32(len(data)-pdu.HeaderSize))
		mask := f.nextByte() | 1
		data[pos] ^= mask
		f.history = append(f.history, fmt.Sprintf("corrupt pdu type %d at %d with %02x", data[0], pos, mask))
		return faultInjectorCorrupt
	}
	return faultInjectorContinue
}

// String lists the faults injected so far.
func (f *FaultInjector) String() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fmt.Sprintf("faults%v", f.history)
}
