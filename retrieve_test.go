package netdicom

import (
	"errors"
	"fmt"
	"testing"

	"github.com/grailbio/go-dicom"
	"github.com/medimesh/go-netdicom/dimse"
)

func newTestServiceEvent() *ServiceEvent {
	disp := newServiceDispatcher("test", make(chan stateEvent, 16), 0)
	cs := &serviceCommandState{disp: disp, messageID: 7, inbound: true, done: make(chan struct{})}
	return &ServiceEvent{Command: &dimse.CGetRq{MessageID: 7}, cs: cs}
}

type response struct {
	status dimse.StatusCode
	c      subOperationCounters
}

func objects(n int, final *dimse.Status) func(yield func(dimse.Status, *dicom.DataSet) bool) {
	return func(yield func(dimse.Status, *dicom.DataSet) bool) {
		for i := 0; i < n; i++ {
			if !yield(dimse.Pending, &dicom.DataSet{}) {
				return
			}
		}
		if final != nil {
			yield(*final, nil)
		}
	}
}

func TestRunRetrieve(t *testing.T) {
	errGone := errors.New("association gone")
	tests := []struct {
		name     string
		total    int
		matches  func(yield func(dimse.Status, *dicom.DataSet) bool)
		statuses []dimse.StatusCode // returned by successive stores
		fatalAt  int                // 1-based; 0 means never
		want     response
		pending  int
	}{
		{
			name:    "all succeed",
			total:   3,
			matches: objects(3, nil),
			want:    response{dimse.StatusSuccess, subOperationCounters{completed: 3}},
			pending: 3,
		},
		{
			name:     "one failure",
			total:    3,
			matches:  objects(3, nil),
			statuses: []dimse.StatusCode{0, 0xA700, 0},
			want:     response{dimse.CMoveSubOperationsCompleteWithFailures, subOperationCounters{completed: 2, failed: 1}},
			pending:  3,
		},
		{
			name:     "warning",
			total:    2,
			matches:  objects(2, nil),
			statuses: []dimse.StatusCode{0xB000, 0},
			want:     response{dimse.CMoveSubOperationsCompleteWithFailures, subOperationCounters{completed: 1, warning: 1}},
			pending:  2,
		},
		{
			name:    "association lost",
			total:   4,
			matches: objects(4, nil),
			fatalAt: 2,
			want: response{dimse.CMoveOutOfResourcesUnableToPerformSubOperations,
				subOperationCounters{completed: 1, failed: 3}},
			pending: 1,
		},
		{
			name:    "handler failure",
			total:   3,
			matches: objects(1, &dimse.Status{Status: 0xA900}),
			want:    response{0xA900, subOperationCounters{remaining: 2, completed: 1}},
			pending: 1,
		},
		{
			name:  "missing object",
			total: 2,
			matches: func(yield func(dimse.Status, *dicom.DataSet) bool) {
				if yield(dimse.Pending, nil) {
					yield(dimse.Pending, &dicom.DataSet{})
				}
			},
			want:    response{dimse.CMoveSubOperationsCompleteWithFailures, subOperationCounters{completed: 1, failed: 1}},
			pending: 2,
		},
		{
			name:    "more objects than announced",
			total:   2,
			matches: objects(3, nil),
			want:    response{dimse.StatusSuccess, subOperationCounters{completed: 2}},
			pending: 2,
		},
		{
			name:    "no matches",
			matches: nil,
			want:    response{dimse.StatusSuccess, subOperationCounters{}},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			e := newTestServiceEvent()
			n := 0
			store := func(ds *dicom.DataSet) (dimse.Status, error) {
				n++
				if n == test.fatalAt {
					return dimse.Status{Status: dimse.StatusProcessingFailure}, errGone
				}
				if n <= len(test.statuses) {
					return dimse.Status{Status: test.statuses[n-1]}, nil
				}
				return dimse.Success, nil
			}
			var responses []response
			respond := func(status dimse.Status, c subOperationCounters) error {
				responses = append(responses, response{status.Status, c})
				return nil
			}
			r := Retrieval{Total: test.total, Matches: test.matches}
			final := runRetrieve(e, r, store, respond)
			if final.Status != test.want.status {
				t.Errorf("final status %v, want %v", final.Status, test.want.status)
			}
			if len(responses) != test.pending+1 {
				t.Fatalf("%d responses, want %d", len(responses), test.pending+1)
			}
			if got := responses[len(responses)-1]; got != test.want {
				t.Errorf("final response %+v, want %+v", got, test.want)
			}
			for i, resp := range responses {
				c := resp.c
				if sum := c.remaining + c.completed + c.failed + c.warning; test.total > 0 && sum != test.total {
					t.Errorf("response %d: counters %+v do not add up to %d", i, c, test.total)
				}
			}
		})
	}
}

func TestRunRetrieveCancel(t *testing.T) {
	e := newTestServiceEvent()
	n := 0
	store := func(*dicom.DataSet) (dimse.Status, error) {
		n++
		if n == 2 {
			e.cs.cancelled.Store(true)
		}
		return dimse.Success, nil
	}
	var last subOperationCounters
	respond := func(_ dimse.Status, c subOperationCounters) error {
		last = c
		return nil
	}
	final := runRetrieve(e, Retrieval{Total: 5, Matches: objects(5, nil)}, store, respond)
	if final.Status != dimse.StatusCancel {
		t.Errorf("final status %v", final)
	}
	if want := (subOperationCounters{remaining: 3, completed: 2}); last != want {
		t.Errorf("counters %+v, want %+v", last, want)
	}
	if n != 2 {
		t.Errorf("%d stores after cancel", n)
	}
}

func TestRunRetrieveFinalResponseLost(t *testing.T) {
	e := newTestServiceEvent()
	store := func(*dicom.DataSet) (dimse.Status, error) { return dimse.Success, nil }
	n := 0
	respond := func(status dimse.Status, _ subOperationCounters) error {
		n++
		if !status.IsPending() {
			return errors.New("association gone")
		}
		return nil
	}
	final := runRetrieve(e, Retrieval{Total: 2, Matches: objects(2, nil)}, store, respond)
	if final.Status != dimse.StatusSuccess {
		t.Errorf("final status %v", final)
	}
	if n != 3 {
		t.Errorf("%d responses, want 3", n)
	}
}

func TestClampUInt16(t *testing.T) {
	for _, test := range []struct {
		in   int
		want uint16
	}{{-1, 0}, {0, 0}, {65535, 65535}, {70000, 65535}} {
		if got := clampUInt16(test.in); got != test.want {
			t.Errorf("clampUInt16(%d) = %d", test.in, got)
		}
	}
}

func TestNewCommandMessageIDs(t *testing.T) {
	disp := newServiceDispatcher("test", make(chan stateEvent, 16), 0)
	cm := newContextManager("test")
	disp.lastMessageID = 0xfffe
	var ids []string
	var commands []*serviceCommandState
	for i := 0; i < 3; i++ {
		cs, err := disp.newCommand(cm, contextManagerEntry{contextID: 1})
		if err != nil {
			t.Fatal(err)
		}
		commands = append(commands, cs)
		ids = append(ids, fmt.Sprint(cs.messageID))
	}
	if got := fmt.Sprint(ids); got != "[65535 1 2]" {
		t.Errorf("message IDs %s", got)
	}
	// IDs still in use are skipped after the wrap.
	disp.lastMessageID = 0
	cs, err := disp.newCommand(cm, contextManagerEntry{contextID: 1})
	if err != nil {
		t.Fatal(err)
	}
	if cs.messageID != 3 {
		t.Errorf("message ID %d, want 3", cs.messageID)
	}
	for _, cs := range commands {
		disp.deleteCommand(cs)
	}
	disp.close(nil)
	if _, err := disp.newCommand(cm, contextManagerEntry{contextID: 1}); !errors.Is(err, ErrAssociationClosed) {
		t.Errorf("newCommand after close: %v", err)
	}
}
