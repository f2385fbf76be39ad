package netdicom

import (
	"context"
	"errors"
	"fmt"

	"github.com/grailbio/go-dicom"
	"github.com/medimesh/go-netdicom/dimse"
	"v.io/x/lib/vlog"
)

type cstoreOptions struct {
	// Send on a context where the peer agreed to act as SCP. Set for the
	// C-STORE sub-operations of C-GET, which the acceptor issues.
	subOperation bool

	// Set for the sub-operations of C-MOVE.
	moveOriginatorAETitle   string
	moveOriginatorMessageID dimse.MessageID
}

// runCStoreOnAssociation sends one object over an established association and
// waits for the response. The data set is re-encoded in the transfer syntax
// of the chosen presentation context; the file meta group is not sent.
func runCStoreOnAssociation(ctx context.Context, disp *serviceDispatcher, cm *contextManager,
	ds *dicom.DataSet, opts cstoreOptions) error {
	sopClassUID, sopInstanceUID, transferSyntaxUID, err := storeInfo(ds)
	if err != nil {
		return err
	}
	var pc contextManagerEntry
	if opts.subOperation {
		pc, err = cm.lookupForSubOperation(sopClassUID, transferSyntaxUID)
	} else {
		pc, err = cm.lookupByAbstractSyntaxUID(sopClassUID, transferSyntaxUID)
	}
	if err != nil {
		vlog.Errorf("%s: C-STORE: %v", disp.label, err)
		return err
	}
	data, err := encodeElements(ds.Elements, pc.transferSyntaxUID)
	if err != nil {
		return err
	}
	cs, err := disp.newCommand(cm, pc)
	if err != nil {
		return err
	}
	defer disp.deleteCommand(cs)
	req := &dimse.CStoreRq{
		AffectedSOPClassUID:                  sopClassUID,
		MessageID:                            cs.messageID,
		Priority:                             dimse.PriorityMedium,
		CommandDataSetType:                   dimse.CommandDataSetTypeNonNull,
		AffectedSOPInstanceUID:               sopInstanceUID,
		MoveOriginatorApplicationEntityTitle: opts.moveOriginatorAETitle,
		MoveOriginatorMessageID:              opts.moveOriginatorMessageID,
	}
	if err := cs.sendMessage(req, data); err != nil {
		return err
	}
	event, err := cs.waitResponse(ctx, "C-STORE")
	if err != nil {
		return err
	}
	resp, ok := event.command.(*dimse.CStoreRsp)
	if !ok {
		return fmt.Errorf("netdicom: C-STORE: unexpected response %v", event.command)
	}
	vlog.VI(1).Infof("%s: C-STORE %s -> %v", disp.label, sopInstanceUID, resp.Status)
	return statusError("C-STORE", resp.Status)
}

// subOperationStatus converts the outcome of a C-STORE sub-operation into
// the status used for the counters. fatal is true when the association the
// sub-operation ran on is gone.
func subOperationStatus(err error) (status dimse.Status, fatal bool) {
	var sf *ServiceFailureError
	switch {
	case err == nil:
		return dimse.Success, false
	case errors.As(err, &sf):
		return sf.Status, false
	case errors.Is(err, ErrAssociationClosed):
		return dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}, true
	}
	var te *TimeoutError
	if errors.As(err, &te) {
		return dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}, true
	}
	return dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}, false
}
