package netdicom

import (
	"errors"
	"fmt"

	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/pdu"
)

// ErrAssociationClosed is returned by operations issued on an association
// that has been released, aborted, or never established.
var ErrAssociationClosed = errors.New("netdicom: association closed")

// ErrAborted is the close error of an association aborted by the local side.
var ErrAborted = errors.New("netdicom: association aborted")

// ErrNoPresentationContext is returned when no accepted presentation context
// matches the SOP class (and transfer syntax) an operation needs.
var ErrNoPresentationContext = errors.New("netdicom: no accepted presentation context")

// ProtocolViolationError reports a malformed or unexpected PDU. The
// association that observed it is aborted with Source and Reason.
type ProtocolViolationError struct {
	Source pdu.AbortSource
	Reason pdu.AbortReason
	Err    error
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("netdicom: protocol violation (%v): %v", e.Reason, e.Err)
}

func (e *ProtocolViolationError) Unwrap() error { return e.Err }

// AssociationRejectedError is returned by the service user when the peer
// answers A-ASSOCIATE-RQ with A-ASSOCIATE-RJ, and by the provider when it
// rejects a request.
type AssociationRejectedError struct {
	Result pdu.RejectResultType
	Source pdu.SourceType
	Reason pdu.RejectReasonType
}

func (e *AssociationRejectedError) Error() string {
	rj := pdu.AAssociateRj{Result: e.Result, Source: e.Source, Reason: e.Reason}
	return fmt.Sprintf("netdicom: association rejected (result %d, source %d, reason %d): %s",
		e.Result, e.Source, e.Reason, rj.Description())
}

// Transient reports whether the peer flagged the rejection as transient.
func (e *AssociationRejectedError) Transient() bool {
	return e.Result == pdu.ResultRejectedTransient
}

// AbortError reports an A-ABORT received from the peer.
type AbortError struct {
	Source pdu.AbortSource
	Reason pdu.AbortReason
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("netdicom: association aborted by peer (source %d, %v)", e.Source, e.Reason)
}

// TimeoutError reports that the ARTIM timer or a DIMSE timeout expired. The
// association is aborted when this happens.
type TimeoutError struct {
	Op string // "ARTIM" or the DIMSE operation, e.g. "C-FIND"
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("netdicom: %s timed out", e.Op)
}

func (e *TimeoutError) Timeout() bool { return true }

// ServiceFailureError is returned by the service user when a DIMSE operation
// ends with a non-success status. The association remains usable.
type ServiceFailureError struct {
	Op     string
	Status dimse.Status
}

func (e *ServiceFailureError) Error() string {
	return fmt.Sprintf("netdicom: %s failed: %v", e.Op, e.Status)
}

// TransportError reports a socket-level failure. The association is gone.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("netdicom: transport: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// statusError converts a terminal status into an error, or nil if it denotes
// success.
func statusError(op string, status dimse.Status) error {
	if status.Status == dimse.StatusSuccess {
		return nil
	}
	return &ServiceFailureError{Op: op, Status: status}
}
