package netdicom

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/grailbio/go-dicom"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/sopclass"
	"v.io/x/lib/vlog"
)

// subOperationCounters are the C-GET and C-MOVE progress counters. At every
// response, remaining+completed+failed+warning is the total announced by
// the handler.
type subOperationCounters struct {
	remaining, completed, failed, warning int
}

func (c *subOperationCounters) record(status dimse.Status) {
	if c.remaining > 0 {
		c.remaining--
	}
	switch status.Status.Category() {
	case dimse.CategorySuccess:
		c.completed++
	case dimse.CategoryWarning:
		c.warning++
	default:
		c.failed++
	}
}

func clampUInt16(v int) uint16 {
	if v < 0 {
		return 0
	}
	if v > 0xffff {
		return 0xffff
	}
	return uint16(v)
}

func (p *providerAssociation) handleCFind(msg dimse.Message, data []byte, cs *serviceCommandState) {
	start := time.Now()
	req := msg.(*dimse.CFindRq)
	e := newServiceEvent(cs, msg, data, p.remoteAddr)
	final := runCFind(e, req, p.params.CFind(e))
	if err := cs.sendMessage(responseFor(req, final, false), nil); err != nil {
		vlog.Errorf("%s: C-FIND: final response: %v", p.label, err)
	}
	vlog.VI(1).Infof("%s: C-FIND done: %v", p.label, final)
	recordDIMSERequest("C-FIND", final.Status.Category().String(), start)
}

// runCFind sends a Pending response for each match and returns the final
// status. A C-CANCEL turns the next response into Cancel.
func runCFind(e *ServiceEvent, req *dimse.CFindRq, matches iter.Seq2[dimse.Status, *dicom.DataSet]) dimse.Status {
	final := dimse.Success
	if matches == nil {
		return final
	}
	for status, ds := range matches {
		if e.IsCancelled() {
			return dimse.Cancel
		}
		if !status.IsPending() {
			final = status
			break
		}
		var payload []byte
		if ds != nil {
			var err error
			if payload, err = encodeElements(ds.Elements, e.Context.TransferSyntax); err != nil {
				vlog.Errorf("%s: C-FIND: %v", e.cs.disp.label, err)
				return dimse.Status{Status: dimse.CFindUnableToProcess, ErrorComment: err.Error()}
			}
		}
		if err := e.cs.sendMessage(responseFor(req, status, payload != nil), payload); err != nil {
			vlog.Errorf("%s: C-FIND: %v", e.cs.disp.label, err)
			return dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}
		}
	}
	if final.Status == dimse.StatusSuccess && e.IsCancelled() {
		return dimse.Cancel
	}
	return final
}

// storeFunc runs one C-STORE sub-operation. A non-nil error means that no
// further sub-operation can run.
type storeFunc func(ds *dicom.DataSet) (dimse.Status, error)

// runRetrieve drives the sub-operations of C-GET and C-MOVE. respond is
// called with a Pending status after each sub-operation and once more with
// the final status.
func runRetrieve(e *ServiceEvent, r Retrieval, store storeFunc, respond func(dimse.Status, subOperationCounters) error) dimse.Status {
	c := subOperationCounters{remaining: r.Total}
	final := (*dimse.Status)(nil)
	if r.Matches != nil {
		for status, ds := range r.Matches {
			if e.IsCancelled() {
				final = &dimse.Cancel
				break
			}
			if !status.IsPending() {
				final = &status
				break
			}
			if c.remaining == 0 {
				vlog.Errorf("%s: %s: more objects than the announced total %d; ignoring the rest",
					e.cs.disp.label, commandName(e.Command), r.Total)
				break
			}
			subStatus := dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: "no object"}
			var err error
			if ds != nil {
				subStatus, err = store(ds)
			}
			c.record(subStatus)
			if err != nil {
				vlog.Errorf("%s: %s: stopping sub-operations: %v", e.cs.disp.label, commandName(e.Command), err)
				c.failed += c.remaining
				c.remaining = 0
				final = &dimse.Status{
					Status:       dimse.CMoveOutOfResourcesUnableToPerformSubOperations,
					ErrorComment: err.Error(),
				}
				break
			}
			if err := respond(dimse.Status{Status: dimse.StatusPending}, c); err != nil {
				return dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}
			}
		}
	}
	if final == nil {
		switch {
		case e.IsCancelled():
			final = &dimse.Cancel
		case c.failed > 0 || c.warning > 0:
			final = &dimse.Status{Status: dimse.CMoveSubOperationsCompleteWithFailures}
		default:
			final = &dimse.Success
		}
	}
	if err := respond(*final, c); err != nil {
		vlog.Errorf("%s: %s: final response: %v", e.cs.disp.label, commandName(e.Command), err)
	}
	return *final
}

func (p *providerAssociation) handleCGet(msg dimse.Message, data []byte, cs *serviceCommandState) {
	start := time.Now()
	req := msg.(*dimse.CGetRq)
	e := newServiceEvent(cs, msg, data, p.remoteAddr)
	r := p.params.CGet(e)
	store := func(ds *dicom.DataSet) (dimse.Status, error) {
		err := runCStoreOnAssociation(context.Background(), cs.disp, cs.cm, ds, cstoreOptions{subOperation: true})
		status, fatal := subOperationStatus(err)
		if fatal {
			return status, err
		}
		return status, nil
	}
	respond := func(status dimse.Status, c subOperationCounters) error {
		return cs.sendMessage(&dimse.CGetRsp{
			AffectedSOPClassUID:            req.AffectedSOPClassUID,
			MessageIDBeingRespondedTo:      req.MessageID,
			CommandDataSetType:             dimse.CommandDataSetTypeNull,
			NumberOfRemainingSuboperations: clampUInt16(c.remaining),
			NumberOfCompletedSuboperations: clampUInt16(c.completed),
			NumberOfFailedSuboperations:    clampUInt16(c.failed),
			NumberOfWarningSuboperations:   clampUInt16(c.warning),
			Status:                         status,
		}, nil)
	}
	final := runRetrieve(e, r, store, respond)
	vlog.VI(1).Infof("%s: C-GET done: %v", p.label, final)
	recordDIMSERequest("C-GET", final.Status.Category().String(), start)
}

// moveDestination is the association to a C-MOVE destination. It is opened
// on the first sub-operation.
type moveDestination struct {
	label  string
	addr   string
	params ServiceUserParams
	su     *ServiceUser
	err    error
}

func (d *moveDestination) store(ds *dicom.DataSet, opts cstoreOptions) (dimse.Status, error) {
	if d.err != nil {
		return dimse.Status{Status: dimse.StatusProcessingFailure}, d.err
	}
	if d.su == nil {
		su, err := Associate(context.Background(), d.addr, d.params)
		if err != nil {
			vlog.Errorf("%s: C-MOVE: cannot associate with %s at %s: %v", d.label, d.params.CalledAETitle, d.addr, err)
			d.err = fmt.Errorf("associate with move destination %s: %w", d.params.CalledAETitle, err)
			return dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}, d.err
		}
		d.su = su
	}
	err := d.su.cstore(context.Background(), ds, opts)
	status, fatal := subOperationStatus(err)
	if fatal {
		d.err = err
		return status, err
	}
	return status, nil
}

// close releases the destination association, or aborts it when the
// operation was cancelled.
func (d *moveDestination) close(final dimse.Status) {
	if d.su == nil {
		return
	}
	if final.Status == dimse.StatusCancel || d.err != nil {
		d.su.Abort()
		return
	}
	if err := d.su.Release(); err != nil {
		vlog.Infof("%s: C-MOVE: release of %s: %v", d.label, d.params.CalledAETitle, err)
	}
}

func (p *providerAssociation) handleCMove(msg dimse.Message, data []byte, cs *serviceCommandState) {
	start := time.Now()
	req := msg.(*dimse.CMoveRq)
	e := newServiceEvent(cs, msg, data, p.remoteAddr)
	respond := func(status dimse.Status, c subOperationCounters) error {
		return cs.sendMessage(&dimse.CMoveRsp{
			AffectedSOPClassUID:            req.AffectedSOPClassUID,
			MessageIDBeingRespondedTo:      req.MessageID,
			CommandDataSetType:             dimse.CommandDataSetTypeNull,
			NumberOfRemainingSuboperations: clampUInt16(c.remaining),
			NumberOfCompletedSuboperations: clampUInt16(c.completed),
			NumberOfFailedSuboperations:    clampUInt16(c.failed),
			NumberOfWarningSuboperations:   clampUInt16(c.warning),
			Status:                         status,
		}, nil)
	}
	finish := func(final dimse.Status) {
		vlog.VI(1).Infof("%s: C-MOVE done: %v", p.label, final)
		recordDIMSERequest("C-MOVE", final.Status.Category().String(), start)
	}
	r := p.params.CMove(e)
	addr := r.Destination
	if addr == "" {
		var err error
		if p.params.RemoteAEs != nil {
			addr, err = p.params.RemoteAEs.Resolve(context.Background(), req.MoveDestination)
		} else {
			err = fmt.Errorf("no AE registry")
		}
		if err != nil {
			vlog.Infof("%s: C-MOVE: destination %q: %v", p.label, req.MoveDestination, err)
			final := dimse.Status{
				Status:       dimse.CMoveMoveDestinationUnknown,
				ErrorComment: fmt.Sprintf("unknown move destination %q", req.MoveDestination),
			}
			if err := respond(final, subOperationCounters{remaining: r.Total}); err != nil {
				vlog.Errorf("%s: C-MOVE: final response: %v", p.label, err)
			}
			finish(final)
			return
		}
	}
	dest := &moveDestination{
		label: p.label,
		addr:  addr,
		params: ServiceUserParams{
			CalledAETitle:             req.MoveDestination,
			CallingAETitle:            cs.cm.calledAETitle,
			RequiredServices:          sopclass.StorageClasses,
			SupportedTransferSyntaxes: []string{sopclass.ExplicitVRLittleEndian, sopclass.ImplicitVRLittleEndian},
			MaxPDUSize:                p.params.MaxPDUSize,
			ARTIMTimeout:              p.params.ARTIMTimeout,
			DIMSETimeout:              p.params.DIMSETimeout,
			ImplementationClassUID:    p.params.ImplementationClassUID,
			ImplementationVersionName: p.params.ImplementationVersionName,
		},
	}
	opts := cstoreOptions{
		moveOriginatorAETitle:   cs.cm.callingAETitle,
		moveOriginatorMessageID: req.MessageID,
	}
	final := runRetrieve(e, r, func(ds *dicom.DataSet) (dimse.Status, error) {
		return dest.store(ds, opts)
	}, respond)
	dest.close(final)
	finish(final)
}
