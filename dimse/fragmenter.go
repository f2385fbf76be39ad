package dimse

import "github.com/medimesh/go-netdicom/pdu"

// Fragmenter splits one encoded DIMSE message into P_DATA_TF PDUs. Each PDU
// carries one PDV, sized so that the PDU length stays within the peer's
// maximum. All command PDVs are produced before any data PDV.
type Fragmenter struct {
	contextID   byte
	command     []byte
	data        []byte
	hasData     bool
	chunk       int
	commandDone bool
	dataDone    bool
}

// NewFragmenter creates a fragmenter for a command set and an optional data
// set. A nil data means the message has no data set. maxPDUSize is the
// maximum PDU length announced by the peer; zero means unlimited, which is
// bounded by pdu.MaxPDUSizeCeiling.
func NewFragmenter(contextID byte, command, data []byte, maxPDUSize int) *Fragmenter {
	if maxPDUSize <= 0 || maxPDUSize > pdu.MaxPDUSizeCeiling {
		maxPDUSize = pdu.MaxPDUSizeCeiling
	}
	chunk := maxPDUSize - pdu.PDVItemHeaderSize
	if chunk < 1 {
		chunk = 1
	}
	return &Fragmenter{
		contextID: contextID,
		command:   command,
		data:      data,
		hasData:   data != nil,
		chunk:     chunk,
	}
}

// Next returns the next PDU, or nil once the whole message has been produced.
func (f *Fragmenter) Next() *pdu.PDataTf {
	if !f.commandDone {
		value, rest := f.split(f.command)
		f.command = rest
		f.commandDone = len(rest) == 0
		return f.newPDU(true, f.commandDone, value)
	}
	if !f.hasData || f.dataDone {
		return nil
	}
	value, rest := f.split(f.data)
	f.data = rest
	f.dataDone = len(rest) == 0
	return f.newPDU(false, f.dataDone, value)
}

func (f *Fragmenter) split(b []byte) ([]byte, []byte) {
	if len(b) <= f.chunk {
		return b, nil
	}
	return b[:f.chunk], b[f.chunk:]
}

func (f *Fragmenter) newPDU(command, last bool, value []byte) *pdu.PDataTf {
	return &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{{
		ContextID: f.contextID,
		Command:   command,
		Last:      last,
		Value:     value,
	}}}
}
