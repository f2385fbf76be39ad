package dimse_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"github.com/grailbio/go-dicom/dicomtag"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/pdu"
)

func encodeOrDie(t *testing.T, v dimse.Message) []byte {
	t.Helper()
	data, err := dimse.EncodeMessage(v)
	if err != nil {
		t.Fatalf("encode %v: %v", v, err)
	}
	return data
}

func testDIMSE(t *testing.T, v dimse.Message) {
	t.Helper()
	data := encodeOrDie(t, v)
	v2, err := dimse.ReadMessage(data)
	if err != nil {
		t.Fatalf("decode %v: %v", v, err)
	}
	if !reflect.DeepEqual(v, v2) {
		t.Errorf("%v <-> %v", v, v2)
	}
	if v.CommandField() != v2.CommandField() {
		t.Errorf("command field: %x <-> %x", v.CommandField(), v2.CommandField())
	}
}

func TestCStoreRq(t *testing.T) {
	testDIMSE(t, &dimse.CStoreRq{
		AffectedSOPClassUID:                  "1.2.3",
		MessageID:                            0x1234,
		Priority:                             dimse.PriorityHigh,
		CommandDataSetType:                   dimse.CommandDataSetTypeNonNull,
		AffectedSOPInstanceUID:               "3.4.5",
		MoveOriginatorApplicationEntityTitle: "foohah",
		MoveOriginatorMessageID:              0x3456,
	})
}

func TestCStoreRsp(t *testing.T) {
	testDIMSE(t, &dimse.CStoreRsp{
		AffectedSOPClassUID:       "1.2.3",
		MessageIDBeingRespondedTo: 0x1234,
		CommandDataSetType:        dimse.CommandDataSetTypeNull,
		AffectedSOPInstanceUID:    "3.4.5",
		Status:                    dimse.Status{Status: dimse.CStoreOutOfResources, ErrorComment: "disk full"},
	})
}

func TestCEcho(t *testing.T) {
	testDIMSE(t, &dimse.CEchoRq{AffectedSOPClassUID: "1.2.840.10008.1.1", MessageID: 0x1234, CommandDataSetType: dimse.CommandDataSetTypeNull})
	testDIMSE(t, &dimse.CEchoRsp{MessageIDBeingRespondedTo: 0x1234, CommandDataSetType: dimse.CommandDataSetTypeNull, Status: dimse.Success})
}

func TestQueryRetrieveMessages(t *testing.T) {
	for _, v := range []dimse.Message{
		&dimse.CFindRq{AffectedSOPClassUID: "1.2.840.10008.5.1.4.1.2.1.1", MessageID: 3, CommandDataSetType: dimse.CommandDataSetTypeNonNull},
		&dimse.CFindRsp{AffectedSOPClassUID: "1.2", MessageIDBeingRespondedTo: 3, CommandDataSetType: dimse.CommandDataSetTypeNonNull, Status: dimse.Pending},
		&dimse.CGetRq{AffectedSOPClassUID: "1.2", MessageID: 4, Priority: dimse.PriorityLow, CommandDataSetType: dimse.CommandDataSetTypeNonNull},
		&dimse.CGetRsp{
			AffectedSOPClassUID:            "1.2",
			MessageIDBeingRespondedTo:      4,
			CommandDataSetType:             dimse.CommandDataSetTypeNull,
			NumberOfRemainingSuboperations: 3,
			NumberOfCompletedSuboperations: 2,
			NumberOfFailedSuboperations:    1,
			NumberOfWarningSuboperations:   0,
			Status:                         dimse.Cancel,
		},
		&dimse.CMoveRq{AffectedSOPClassUID: "1.2", MessageID: 5, MoveDestination: "STORESCP", CommandDataSetType: dimse.CommandDataSetTypeNonNull},
		&dimse.CMoveRsp{MessageIDBeingRespondedTo: 5, CommandDataSetType: dimse.CommandDataSetTypeNull, NumberOfCompletedSuboperations: 7, Status: dimse.Success},
		&dimse.CCancelRq{MessageIDBeingRespondedTo: 5, CommandDataSetType: dimse.CommandDataSetTypeNull},
	} {
		testDIMSE(t, v)
	}
}

func TestNMessages(t *testing.T) {
	for _, v := range []dimse.Message{
		&dimse.NEventReportRq{AffectedSOPClassUID: "1.2", MessageID: 1, CommandDataSetType: dimse.CommandDataSetTypeNonNull, AffectedSOPInstanceUID: "1.2.3", EventTypeID: 2},
		&dimse.NEventReportRsp{MessageIDBeingRespondedTo: 1, CommandDataSetType: dimse.CommandDataSetTypeNull, Status: dimse.Success, EventTypeID: 2},
		&dimse.NGetRq{
			RequestedSOPClassUID:    "1.2",
			MessageID:               2,
			CommandDataSetType:      dimse.CommandDataSetTypeNull,
			RequestedSOPInstanceUID: "1.2.3",
			AttributeIdentifierList: []dicomtag.Tag{{Group: 0x0010, Element: 0x0010}, {Group: 0x2100, Element: 0x0020}},
		},
		&dimse.NGetRsp{AffectedSOPClassUID: "1.2", MessageIDBeingRespondedTo: 2, CommandDataSetType: dimse.CommandDataSetTypeNonNull, Status: dimse.Success, AffectedSOPInstanceUID: "1.2.3"},
		&dimse.NSetRq{RequestedSOPClassUID: "1.2", MessageID: 3, CommandDataSetType: dimse.CommandDataSetTypeNonNull, RequestedSOPInstanceUID: "1.2.3"},
		&dimse.NSetRsp{MessageIDBeingRespondedTo: 3, CommandDataSetType: dimse.CommandDataSetTypeNull, Status: dimse.Status{Status: dimse.StatusNoSuchObjectInstance}},
		&dimse.NActionRq{RequestedSOPClassUID: "1.2", MessageID: 4, CommandDataSetType: dimse.CommandDataSetTypeNull, RequestedSOPInstanceUID: "1.2.3", ActionTypeID: 1},
		&dimse.NActionRsp{MessageIDBeingRespondedTo: 4, CommandDataSetType: dimse.CommandDataSetTypeNull, Status: dimse.Success, ActionTypeID: 1},
		&dimse.NCreateRq{AffectedSOPClassUID: "1.2", MessageID: 5, CommandDataSetType: dimse.CommandDataSetTypeNonNull},
		&dimse.NCreateRsp{AffectedSOPClassUID: "1.2", MessageIDBeingRespondedTo: 5, CommandDataSetType: dimse.CommandDataSetTypeNull, Status: dimse.Success, AffectedSOPInstanceUID: "2.25.1"},
		&dimse.NDeleteRq{RequestedSOPClassUID: "1.2", MessageID: 6, CommandDataSetType: dimse.CommandDataSetTypeNull, RequestedSOPInstanceUID: "1.2.3"},
		&dimse.NDeleteRsp{MessageIDBeingRespondedTo: 6, CommandDataSetType: dimse.CommandDataSetTypeNull, Status: dimse.Success},
	} {
		testDIMSE(t, v)
	}
}

func TestUnparsedElementsArePreserved(t *testing.T) {
	testDIMSE(t, &dimse.CEchoRq{
		MessageID:          9,
		CommandDataSetType: dimse.CommandDataSetTypeNull,
		Extra:              []dimse.Field{{Tag: dicomtag.Tag{Group: 0, Element: 0x0903}, Value: []byte{1, 0}}},
	})
}

func TestCommandSetLayout(t *testing.T) {
	data := encodeOrDie(t, &dimse.CEchoRq{AffectedSOPClassUID: "1.2.840.10008.1.1", MessageID: 7, CommandDataSetType: dimse.CommandDataSetTypeNull})
	// (0000,0000) UL 4 <length of the rest>
	if !bytes.Equal(data[:8], []byte{0, 0, 0, 0, 4, 0, 0, 0}) {
		t.Fatalf("group length header: %v", data[:8])
	}
	if n := binary.LittleEndian.Uint32(data[8:12]); int(n) != len(data)-12 {
		t.Errorf("group length %d, want %d", n, len(data)-12)
	}
	// The next element is AffectedSOPClassUID, padded with NUL to 18 bytes.
	if !bytes.Equal(data[12:20], []byte{0, 0, 2, 0, 18, 0, 0, 0}) {
		t.Errorf("first element header: %v", data[12:20])
	}
	if data[20+17] != 0 {
		t.Errorf("UID not padded with NUL: %q", data[20:38])
	}
	// Elements are sorted by tag.
	var last uint16
	for pos := 12; pos < len(data); {
		elem := binary.LittleEndian.Uint16(data[pos+2:])
		if elem < last {
			t.Errorf("element %04x after %04x", elem, last)
		}
		last = elem
		pos += 8 + int(binary.LittleEndian.Uint32(data[pos+4:]))
	}
}

func TestReadMessageErrors(t *testing.T) {
	data := encodeOrDie(t, &dimse.CEchoRq{MessageID: 7, CommandDataSetType: dimse.CommandDataSetTypeNull})
	if _, err := dimse.ReadMessage(data[:len(data)-1]); err == nil {
		t.Error("expected an error for a truncated command set")
	}
	bad := append([]byte{}, data...)
	bad[8]++ // CommandGroupLength
	if _, err := dimse.ReadMessage(bad); err == nil {
		t.Error("expected an error for a wrong group length")
	}
	// A command set with only a CommandField of an unknown command.
	unknown := []byte{0, 0, 0x00, 0x01, 2, 0, 0, 0, 0x34, 0x12}
	if _, err := dimse.ReadMessage(unknown); err == nil {
		t.Error("expected an error for an unknown command")
	}
	// C-ECHO-RQ without MessageID.
	noID := []byte{0, 0, 0x00, 0x01, 2, 0, 0, 0, 0x30, 0x00, 0, 0, 0x00, 0x08, 2, 0, 0, 0, 0x01, 0x01}
	if _, err := dimse.ReadMessage(noID); err == nil {
		t.Error("expected an error for a missing MessageID")
	}
}

func TestStatusCategory(t *testing.T) {
	for _, test := range []struct {
		code dimse.StatusCode
		want dimse.StatusCategory
	}{
		{0x0000, dimse.CategorySuccess},
		{0xFF00, dimse.CategoryPending},
		{0xFF01, dimse.CategoryPending},
		{0xFE00, dimse.CategoryCancel},
		{0x0001, dimse.CategoryWarning},
		{0x0107, dimse.CategoryWarning},
		{0x0116, dimse.CategoryWarning},
		{0xB000, dimse.CategoryWarning},
		{0xB007, dimse.CategoryWarning},
		{0x0122, dimse.CategoryFailure},
		{0xA700, dimse.CategoryFailure},
		{0xC000, dimse.CategoryFailure},
	} {
		if got := test.code.Category(); got != test.want {
			t.Errorf("0x%04x: got %v, want %v", uint16(test.code), got, test.want)
		}
	}
	if !dimse.Pending.IsPending() || dimse.Success.IsPending() || !dimse.Cancel.IsFinal() {
		t.Error("IsPending/IsFinal")
	}
}

func pdv(contextID byte, command, last bool, value ...byte) pdu.PresentationDataValueItem {
	return pdu.PresentationDataValueItem{ContextID: contextID, Command: command, Last: last, Value: value}
}

func TestAssemblerInterleavedContexts(t *testing.T) {
	store := encodeOrDie(t, &dimse.CStoreRq{AffectedSOPClassUID: "1.2", MessageID: 1, CommandDataSetType: dimse.CommandDataSetTypeNonNull, AffectedSOPInstanceUID: "1.2.3"})
	echo := encodeOrDie(t, &dimse.CEchoRq{MessageID: 2, CommandDataSetType: dimse.CommandDataSetTypeNull})

	var a dimse.CommandAssembler
	done, err := a.AddDataPDU(&pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
		pdv(1, true, false, store[:10]...),
		pdv(3, true, true, echo...),
		pdv(1, true, true, store[10:]...),
		pdv(1, false, false, 1, 2),
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 1 || done[0].ContextID != 3 || done[0].Data != nil {
		t.Fatalf("expected the C-ECHO only, got %v", done)
	}
	if err := a.Finish(); err == nil {
		t.Error("expected an incomplete message on context 1")
	} else {
		var ierr *dimse.IncompleteError
		if !errors.As(err, &ierr) || !bytes.Equal(ierr.ContextIDs, []byte{1}) {
			t.Errorf("unexpected error %v", err)
		}
	}
	done, err = a.AddDataPDU(&pdu.PDataTf{Items: []pdu.PresentationDataValueItem{pdv(1, false, true, 3)}})
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != 1 || done[0].ContextID != 1 || !bytes.Equal(done[0].Data, []byte{1, 2, 3}) {
		t.Fatalf("unexpected result %v", done)
	}
	if _, ok := done[0].Command.(*dimse.CStoreRq); !ok {
		t.Errorf("expected C-STORE-RQ, got %v", done[0].Command)
	}
	if err := a.Finish(); err != nil {
		t.Error(err)
	}
}

func TestAssemblerOrdering(t *testing.T) {
	var a dimse.CommandAssembler
	if _, err := a.AddDataPDU(&pdu.PDataTf{Items: []pdu.PresentationDataValueItem{pdv(1, false, true, 1)}}); err == nil {
		t.Error("expected an error for data before command")
	}

	store := encodeOrDie(t, &dimse.CStoreRq{AffectedSOPClassUID: "1.2", MessageID: 1, CommandDataSetType: dimse.CommandDataSetTypeNonNull, AffectedSOPInstanceUID: "1.2.3"})
	a = dimse.CommandAssembler{}
	if _, err := a.AddDataPDU(&pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
		pdv(1, true, true, store...),
		pdv(1, true, true, store...),
	}}); err == nil {
		t.Error("expected an error for a command fragment after the last one")
	}
}

func collect(f *dimse.Fragmenter) []*pdu.PDataTf {
	var pdus []*pdu.PDataTf
	for p := f.Next(); p != nil; p = f.Next() {
		pdus = append(pdus, p)
	}
	return pdus
}

func TestFragmenter(t *testing.T) {
	command := make([]byte, 25)
	data := make([]byte, 21)
	for i := range data {
		data[i] = byte(i)
	}
	// 16 - 6 leaves 10 bytes of value per PDU.
	pdus := collect(dimse.NewFragmenter(5, command, data, 16))
	if len(pdus) != 6 {
		t.Fatalf("expected 6 PDUs, got %d", len(pdus))
	}
	var gotData []byte
	for i, p := range pdus {
		encoded, err := pdu.EncodePDU(p)
		if err != nil {
			t.Fatal(err)
		}
		if len(encoded)-pdu.HeaderSize > 16 {
			t.Errorf("PDU %d is %d bytes long", i, len(encoded)-pdu.HeaderSize)
		}
		item := p.Items[0]
		if item.ContextID != 5 || item.Command != (i < 3) || item.Last != (i == 2 || i == 5) {
			t.Errorf("PDU %d: unexpected item %v", i, item)
		}
		if !item.Command {
			gotData = append(gotData, item.Value...)
		}
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("data: %v", gotData)
	}
}

func TestFragmenterNoData(t *testing.T) {
	pdus := collect(dimse.NewFragmenter(1, []byte{1, 2}, nil, 0))
	if len(pdus) != 1 || !pdus[0].Items[0].Command || !pdus[0].Items[0].Last {
		t.Errorf("unexpected PDUs %v", pdus)
	}
	// An empty data set is sent as one empty last PDV.
	pdus = collect(dimse.NewFragmenter(1, []byte{1, 2}, []byte{}, 0))
	if len(pdus) != 2 || pdus[1].Items[0].Command || !pdus[1].Items[0].Last || len(pdus[1].Items[0].Value) != 0 {
		t.Errorf("unexpected PDUs %v", pdus)
	}
}

func TestFragmentThenAssemble(t *testing.T) {
	msg := &dimse.CFindRsp{AffectedSOPClassUID: "1.2", MessageIDBeingRespondedTo: 9, CommandDataSetType: dimse.CommandDataSetTypeNonNull, Status: dimse.Pending}
	data := bytes.Repeat([]byte{0xab}, 100)
	f := dimse.NewFragmenter(7, encodeOrDie(t, msg), data, 20)
	var a dimse.CommandAssembler
	var got []dimse.AssembledMessage
	for p := f.Next(); p != nil; p = f.Next() {
		done, err := a.AddDataPDU(p)
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, done...)
	}
	if len(got) != 1 {
		t.Fatalf("expected one message, got %v", got)
	}
	if !reflect.DeepEqual(got[0].Command, msg) || !bytes.Equal(got[0].Data, data) || got[0].ContextID != 7 {
		t.Errorf("unexpected message %v", got[0])
	}
}

func FuzzReadMessage(f *testing.F) {
	for _, v := range []dimse.Message{
		&dimse.CEchoRq{MessageID: 1, CommandDataSetType: dimse.CommandDataSetTypeNull},
		&dimse.CGetRsp{MessageIDBeingRespondedTo: 1, CommandDataSetType: dimse.CommandDataSetTypeNull, NumberOfRemainingSuboperations: 2, Status: dimse.Pending},
	} {
		data, err := dimse.EncodeMessage(v)
		if err != nil {
			f.Fatal(err)
		}
		f.Add(data)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		v, err := dimse.ReadMessage(data)
		if err != nil {
			return
		}
		if _, err := dimse.EncodeMessage(v); err != nil {
			t.Errorf("decoded message %v does not re-encode: %v", v, err)
		}
	})
}
