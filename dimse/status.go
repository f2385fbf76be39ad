package dimse

import "fmt"

// Status represents a result of a DIMSE call. P3.7 C defines the list of
// status codes and error payloads.
type Status struct {
	// Status==StatusSuccess on success. A non-zero value on error.
	Status StatusCode

	// Optional error payload. Encoded as (0000,0902).
	ErrorComment string
}

// Success is an OK status for a call.
var Success = Status{Status: StatusSuccess}

// Pending is the intermediate status of C-FIND, C-GET and C-MOVE.
var Pending = Status{Status: StatusPending}

// Cancel is the final status of an operation terminated by C-CANCEL.
var Cancel = Status{Status: StatusCancel}

func (s Status) String() string {
	if s.ErrorComment == "" {
		return fmt.Sprintf("%s(0x%04x)", s.Status.Category(), uint16(s.Status))
	}
	return fmt.Sprintf("%s(0x%04x): %s", s.Status.Category(), uint16(s.Status), s.ErrorComment)
}

// StatusCode represents a DIMSE service response code, as defined in P3.7 C.
type StatusCode uint16

const (
	StatusSuccess        StatusCode = 0
	StatusCancel         StatusCode = 0xFE00
	StatusPending        StatusCode = 0xFF00
	StatusPendingWarning StatusCode = 0xFF01

	// General failures. P3.7 C.5.
	StatusProcessingFailure        StatusCode = 0x0110
	StatusDuplicateSOPInstance     StatusCode = 0x0111
	StatusNoSuchObjectInstance     StatusCode = 0x0112
	StatusNoSuchEventType          StatusCode = 0x0113
	StatusInvalidArgumentValue     StatusCode = 0x0115
	StatusInvalidAttributeValue    StatusCode = 0x0106
	StatusInvalidObjectInstance    StatusCode = 0x0117
	StatusNoSuchSOPClass           StatusCode = 0x0118
	StatusClassInstanceConflict    StatusCode = 0x0119
	StatusMissingAttribute         StatusCode = 0x0120
	StatusSOPClassNotSupported     StatusCode = 0x0122
	StatusNoSuchActionType         StatusCode = 0x0123
	StatusNotAuthorized            StatusCode = 0x0124
	StatusDuplicateInvocation      StatusCode = 0x0210
	StatusUnrecognizedOperation    StatusCode = 0x0211
	StatusMistypedArgument         StatusCode = 0x0212
	StatusResourceLimitation       StatusCode = 0x0213
	StatusNoSuchAttribute          StatusCode = 0x0105
	StatusAttributeListError       StatusCode = 0x0107 // warning
	StatusAttributeValueOutOfRange StatusCode = 0x0116 // warning
	StatusWarning                  StatusCode = 0x0001

	// C-STORE-specific status codes. P3.4 B.2.3.
	CStoreOutOfResources              StatusCode = 0xA700
	CStoreDataSetDoesNotMatchSOPClass StatusCode = 0xA900
	CStoreCannotUnderstand            StatusCode = 0xC000
	CStoreCoercionOfDataElements      StatusCode = 0xB000
	CStoreElementsDiscarded           StatusCode = 0xB006

	// C-FIND-specific status codes. P3.4 C.4.1.
	CFindOutOfResources  StatusCode = 0xA700
	CFindUnableToProcess StatusCode = 0xC000

	// C-MOVE/C-GET-specific status codes. P3.4 C.4.2, C.4.3.
	CMoveOutOfResourcesUnableToCalculateNumberOfMatches StatusCode = 0xA701
	CMoveOutOfResourcesUnableToPerformSubOperations     StatusCode = 0xA702
	CMoveMoveDestinationUnknown                         StatusCode = 0xA801
	CMoveDataSetDoesNotMatchSOPClass                    StatusCode = 0xA900
	CMoveUnableToProcess                                StatusCode = 0xC000
	CMoveSubOperationsCompleteWithFailures              StatusCode = 0xB000
)

// StatusCategory classifies a StatusCode.
type StatusCategory int

const (
	CategorySuccess StatusCategory = iota
	CategoryWarning
	CategoryFailure
	CategoryCancel
	CategoryPending
)

func (c StatusCategory) String() string {
	switch c {
	case CategorySuccess:
		return "Success"
	case CategoryWarning:
		return "Warning"
	case CategoryFailure:
		return "Failure"
	case CategoryCancel:
		return "Cancel"
	case CategoryPending:
		return "Pending"
	}
	return fmt.Sprintf("StatusCategory(%d)", int(c))
}

// Category classifies the code. Codes not listed as success, warning, cancel
// or pending are failures.
func (c StatusCode) Category() StatusCategory {
	switch {
	case c == StatusSuccess:
		return CategorySuccess
	case c == StatusPending || c == StatusPendingWarning:
		return CategoryPending
	case c == StatusCancel:
		return CategoryCancel
	case c == StatusWarning || c == StatusAttributeListError || c == StatusAttributeValueOutOfRange:
		return CategoryWarning
	case c >= 0xB000 && c <= 0xBFFF:
		return CategoryWarning
	}
	return CategoryFailure
}

// IsPending is true if more responses follow this one.
func (s Status) IsPending() bool { return s.Status.Category() == CategoryPending }

// IsFinal is true for Success, Warning, Failure and Cancel.
func (s Status) IsFinal() bool { return !s.IsPending() }
