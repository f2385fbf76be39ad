package dimse

import (
	"fmt"
	"sort"

	"github.com/medimesh/go-netdicom/pdu"
)

// AssembledMessage is one complete DIMSE message extracted from a sequence of
// P_DATA_TF PDUs.
type AssembledMessage struct {
	ContextID byte
	Command   Message
	// Data is the data set, encoded in the context's transfer syntax. It is
	// nil when the command has no data set.
	Data []byte
}

// IncompleteError reports presentation contexts whose message was still being
// assembled when the stream ended.
type IncompleteError struct {
	ContextIDs []byte
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("dimse: incomplete DIMSE message on presentation contexts %v", e.ContextIDs)
}

type assembly struct {
	commandBytes   []byte
	command        Message
	dataBytes      []byte
	readAllCommand bool
}

// CommandAssembler assembles DIMSE command messages and data payloads from a
// sequence of P_DATA_TF PDUs. PDVs of different presentation contexts may be
// interleaved; at most one message per context is assembled at a time, and
// its command PDVs must precede its data PDVs.
//
// The zero value is ready to use.
type CommandAssembler struct {
	inflight map[byte]*assembly
}

// AddDataPDU is to be called for each P_DATA_TF PDU received from the network.
// It returns the messages completed by this PDU, in arrival order. On error,
// the messages completed before the offending PDV are returned along with the
// error.
func (a *CommandAssembler) AddDataPDU(p *pdu.PDataTf) ([]AssembledMessage, error) {
	if a.inflight == nil {
		a.inflight = map[byte]*assembly{}
	}
	var done []AssembledMessage
	for _, item := range p.Items {
		s := a.inflight[item.ContextID]
		if s == nil {
			s = &assembly{}
			a.inflight[item.ContextID] = s
		}
		if item.Command {
			if s.readAllCommand {
				return done, fmt.Errorf("dimse: context %d: command fragment after the last command fragment", item.ContextID)
			}
			s.commandBytes = append(s.commandBytes, item.Value...)
			if !item.Last {
				continue
			}
			s.readAllCommand = true
			command, err := ReadMessage(s.commandBytes)
			if err != nil {
				return done, fmt.Errorf("dimse: context %d: %w", item.ContextID, err)
			}
			s.command = command
			if !command.HasData() {
				done = append(done, AssembledMessage{ContextID: item.ContextID, Command: command})
				delete(a.inflight, item.ContextID)
			}
			continue
		}
		if !s.readAllCommand {
			return done, fmt.Errorf("dimse: context %d: data fragment before the command set is complete", item.ContextID)
		}
		s.dataBytes = append(s.dataBytes, item.Value...)
		if item.Last {
			data := s.dataBytes
			if data == nil {
				data = []byte{}
			}
			done = append(done, AssembledMessage{ContextID: item.ContextID, Command: s.command, Data: data})
			delete(a.inflight, item.ContextID)
		}
	}
	return done, nil
}

// Finish returns an *IncompleteError if a message is partially assembled.
func (a *CommandAssembler) Finish() error {
	if len(a.inflight) == 0 {
		return nil
	}
	var ids []byte
	for id := range a.inflight {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return &IncompleteError{ContextIDs: ids}
}
