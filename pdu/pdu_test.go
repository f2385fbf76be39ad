package pdu_test

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"testing"

	"github.com/medimesh/go-netdicom/pdu"
)

func roundTrip(t *testing.T, in pdu.PDU) pdu.PDU {
	t.Helper()
	data, err := pdu.EncodePDU(in)
	if err != nil {
		t.Fatalf("encode %v: %v", in, err)
	}
	out, err := pdu.ReadPDU(bytes.NewBuffer(data), 4<<20)
	if err != nil {
		t.Fatalf("decode %v: %v", in, err)
	}
	if !reflect.DeepEqual(in, out) {
		t.Errorf("round trip mismatch:\n in: %v\nout: %v", in, out)
	}
	return out
}

func TestAAssociateRQ(t *testing.T) {
	v := &pdu.AAssociate{
		Type:            pdu.TypeAAssociateRq,
		ProtocolVersion: pdu.CurrentProtocolVersion,
		CalledAETitle:   "foo",
		CallingAETitle:  "bar",
		Items: []pdu.SubItem{
			&pdu.ApplicationContextItem{Name: pdu.DICOMApplicationContextItemName},
			&pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextRequest,
				ContextID: 1,
				Items: []pdu.SubItem{
					&pdu.AbstractSyntaxSubItem{Name: "1.2.840.10008.1.1"},
					&pdu.TransferSyntaxSubItem{Name: "1.2.840.10008.1.2"},
					&pdu.TransferSyntaxSubItem{Name: "1.2.840.10008.1.2.1"},
				},
			},
			&pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextRequest,
				ContextID: 3,
				Items: []pdu.SubItem{
					&pdu.AbstractSyntaxSubItem{Name: "1.2.840.10008.5.1.4.1.1.2"},
					&pdu.TransferSyntaxSubItem{Name: "1.2.840.10008.1.2"},
				},
			},
			&pdu.UserInformationItem{
				Items: []pdu.SubItem{
					&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: 16384},
					&pdu.ImplementationClassUIDSubItem{Name: "1.2.3.4"},
					&pdu.AsynchronousOperationsWindowSubItem{MaxOpsInvoked: 1, MaxOpsPerformed: 1},
					&pdu.RoleSelectionSubItem{SOPClassUID: "1.2.840.10008.5.1.4.1.1.2", SCURole: false, SCPRole: true},
					&pdu.ImplementationVersionNameSubItem{Name: "NETDICOM_1"},
					&pdu.SOPClassExtendedNegotiationSubItem{
						SOPClassUID:                        "1.2.840.10008.5.1.4.1.2.1.1",
						ServiceClassApplicationInformation: []byte{1, 1, 0},
					},
					&pdu.UserIdentitySubItem{
						Type:                      pdu.UserIdentityUsernamePasscode,
						PositiveResponseRequested: true,
						PrimaryField:              []byte("alice"),
						SecondaryField:            []byte("secret"),
					},
					&pdu.SubItemUnsupported{Type: 0x57, Data: []byte{0, 1, 'x'}},
				},
			},
		},
	}
	out := roundTrip(t, v).(*pdu.AAssociate)
	pc := out.Items[1].(*pdu.PresentationContextItem)
	if pc.AbstractSyntax() != "1.2.840.10008.1.1" {
		t.Errorf("abstract syntax: %v", pc.AbstractSyntax())
	}
	if ts := pc.TransferSyntaxes(); !reflect.DeepEqual(ts, []string{"1.2.840.10008.1.2", "1.2.840.10008.1.2.1"}) {
		t.Errorf("transfer syntaxes: %v", ts)
	}
}

func TestAAssociateAC(t *testing.T) {
	roundTrip(t, &pdu.AAssociate{
		Type:            pdu.TypeAAssociateAc,
		ProtocolVersion: pdu.CurrentProtocolVersion,
		CalledAETitle:   "ABCDEFGHIJKLMNOP",
		CallingAETitle:  "x",
		Items: []pdu.SubItem{
			&pdu.ApplicationContextItem{Name: pdu.DICOMApplicationContextItemName},
			&pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextResponse,
				ContextID: 5,
				Result:    pdu.PresentationContextProviderRejectionTransferSyntaxNotSupported,
				Items:     []pdu.SubItem{&pdu.TransferSyntaxSubItem{Name: "1.2.840.10008.1.2"}},
			},
			&pdu.UserInformationItem{
				Items: []pdu.SubItem{
					&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: 0},
					&pdu.UserIdentityResponseSubItem{ServerResponse: []byte("token")},
				},
			},
		},
	})
}

func TestSimplePDUs(t *testing.T) {
	for _, v := range []pdu.PDU{
		&pdu.AAssociateRj{Result: pdu.ResultRejectedPermanent, Source: pdu.SourceULServiceUser, Reason: pdu.ReasonCalledAETitleNotRecognized},
		&pdu.AReleaseRq{},
		&pdu.AReleaseRp{},
		&pdu.AAbort{Source: pdu.AbortSourceServiceProvider, Reason: pdu.AbortReasonUnexpectedPDU},
		&pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
			{ContextID: 1, Command: true, Last: false, Value: []byte{1, 2, 3}},
			{ContextID: 1, Command: true, Last: true, Value: []byte{4}},
			{ContextID: 3, Command: false, Last: true, Value: []byte{5, 6}},
		}},
	} {
		roundTrip(t, v)
	}
}

func TestEncodeRejectsLongAETitle(t *testing.T) {
	_, err := pdu.EncodePDU(&pdu.AAssociate{
		Type:            pdu.TypeAAssociateRq,
		ProtocolVersion: 1,
		CalledAETitle:   "THIS_TITLE_IS_TOO_LONG",
		CallingAETitle:  "x",
	})
	if err == nil {
		t.Error("expected an error for a 22-character AE title")
	}
}

func encodeOrDie(t *testing.T, v pdu.PDU) []byte {
	t.Helper()
	data, err := pdu.EncodePDU(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func expectInvalid(t *testing.T, data []byte, offset int) {
	t.Helper()
	_, err := pdu.DecodePDU(data)
	var perr *pdu.InvalidPDUError
	if !errors.As(err, &perr) {
		t.Fatalf("expected InvalidPDUError, got %v", err)
	}
	if offset >= 0 && perr.Offset != offset {
		t.Errorf("offset: got %d, want %d (%v)", perr.Offset, offset, perr)
	}
}

func TestDecodeEvenContextID(t *testing.T) {
	data := encodeOrDie(t, &pdu.AAssociate{
		Type:            pdu.TypeAAssociateRq,
		ProtocolVersion: 1,
		CalledAETitle:   "a",
		CallingAETitle:  "b",
		Items: []pdu.SubItem{
			&pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextRequest,
				ContextID: 2,
				Items:     []pdu.SubItem{&pdu.AbstractSyntaxSubItem{Name: "1.2"}},
			},
		},
	})
	// 6 (header) + 68 (fixed fields) + 4 (item header) points at the ID.
	expectInvalid(t, data, 78)
}

func TestDecodeDuplicateContextID(t *testing.T) {
	item := func() *pdu.PresentationContextItem {
		return &pdu.PresentationContextItem{
			Type:      pdu.ItemTypePresentationContextRequest,
			ContextID: 1,
			Items:     []pdu.SubItem{&pdu.AbstractSyntaxSubItem{Name: "1.2"}},
		}
	}
	data := encodeOrDie(t, &pdu.AAssociate{
		Type:            pdu.TypeAAssociateRq,
		ProtocolVersion: 1,
		CalledAETitle:   "a",
		CallingAETitle:  "b",
		Items:           []pdu.SubItem{item(), item()},
	})
	// The second item starts after the first one: 4+4+(4+3) bytes.
	expectInvalid(t, data, 74+15)
}

func TestDecodeResponseItemInRequest(t *testing.T) {
	data := encodeOrDie(t, &pdu.AAssociate{
		Type:            pdu.TypeAAssociateRq,
		ProtocolVersion: 1,
		CalledAETitle:   "a",
		CallingAETitle:  "b",
		Items: []pdu.SubItem{
			&pdu.PresentationContextItem{Type: pdu.ItemTypePresentationContextResponse, ContextID: 1},
		},
	})
	expectInvalid(t, data, 74)
}

func TestDecodeLengthMismatch(t *testing.T) {
	data := encodeOrDie(t, &pdu.AAbort{})
	expectInvalid(t, append(data, 0), 2)
	expectInvalid(t, data[:len(data)-1], 2)
	expectInvalid(t, data[:3], 3)
}

func TestDecodeUnknownType(t *testing.T) {
	expectInvalid(t, []byte{0x42, 0, 0, 0, 0, 0}, 0)
}

func TestDecodeBadPDV(t *testing.T) {
	data := encodeOrDie(t, &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
		{ContextID: 1, Command: true, Last: true, Value: []byte{1}},
	}})
	data[11] = 0x80 // reserved header bits
	expectInvalid(t, data, 11)

	data = encodeOrDie(t, &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
		{ContextID: 1, Value: []byte{1, 2}},
	}})
	data[9] = 0x10 // PDV length beyond the end of the PDU
	expectInvalid(t, data, 6)

	expectInvalid(t, []byte{4, 0, 0, 0, 0, 0}, -1)
}

func TestReadPDUTooLarge(t *testing.T) {
	data := encodeOrDie(t, &pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
		{ContextID: 1, Command: true, Last: true, Value: make([]byte, 100)},
	}})
	_, err := pdu.ReadPDU(bytes.NewReader(data), 64)
	var perr *pdu.InvalidPDUError
	if !errors.As(err, &perr) {
		t.Fatalf("expected InvalidPDUError, got %v", err)
	}
	if perr.Reason != pdu.AbortReasonUnrecognizedPDU {
		t.Errorf("reason: %v", perr.Reason)
	}
	// Zero means unlimited.
	if _, err := pdu.ReadPDU(bytes.NewReader(data), 0); err != nil {
		t.Error(err)
	}
}

func TestReadPDUEOF(t *testing.T) {
	if _, err := pdu.ReadPDU(bytes.NewReader(nil), 0); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
	data := encodeOrDie(t, &pdu.AReleaseRq{})
	if _, err := pdu.ReadPDU(bytes.NewReader(data[:8]), 0); err != io.ErrUnexpectedEOF {
		t.Errorf("expected io.ErrUnexpectedEOF, got %v", err)
	}
}

func FuzzReadPDU(f *testing.F) {
	f.Add([]byte{5, 0, 0, 0, 0, 4, 0, 0, 0, 0})
	f.Add([]byte{4, 0, 0, 0, 0, 7, 0, 0, 0, 3, 1, 3, 9})
	f.Fuzz(func(t *testing.T, data []byte) {
		v, err := pdu.ReadPDU(bytes.NewReader(data), 1<<20)
		if err != nil {
			return
		}
		if _, err := pdu.EncodePDU(v); err != nil {
			t.Errorf("decoded PDU %v does not re-encode: %v", v, err)
		}
	})
}
