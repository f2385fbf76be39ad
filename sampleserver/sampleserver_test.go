package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomio"
	"github.com/grailbio/go-dicom/dicomtag"
	"github.com/medimesh/go-netdicom"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/sopclass"
	"github.com/prometheus/client_golang/prometheus"
)

const mppsClass = "1.2.840.10008.3.1.2.3.3"

func newEvent(t *testing.T, cmd dimse.Message, elems ...*dicom.Element) *netdicom.ServiceEvent {
	t.Helper()
	e := &netdicom.ServiceEvent{
		Context: netdicom.NegotiatedContext{ContextID: 1, AbstractSyntax: mppsClass, TransferSyntax: sopclass.ImplicitVRLittleEndian},
		Command: cmd,
	}
	if elems != nil {
		enc := dicomio.NewBytesEncoderWithTransferSyntax(sopclass.ImplicitVRLittleEndian)
		for _, elem := range elems {
			dicom.WriteElement(enc, elem)
		}
		if err := enc.Error(); err != nil {
			t.Fatal(err)
		}
		e.Data = enc.Bytes()
	}
	return e
}

func TestProcedureSteps(t *testing.T) {
	p := newProcedureSteps()
	const uid = "1.2.3.4.5"
	status, _ := p.create(newEvent(t,
		&dimse.NCreateRq{AffectedSOPClassUID: mppsClass, AffectedSOPInstanceUID: uid},
		dicom.MustNewElement(dicomtag.PatientName, "Doe^John"),
		dicom.MustNewElement(dicomtag.Modality, "CT")))
	if status.Status != dimse.StatusSuccess {
		t.Fatalf("create: %v", status)
	}
	status, _ = p.create(newEvent(t, &dimse.NCreateRq{AffectedSOPClassUID: mppsClass, AffectedSOPInstanceUID: uid}))
	if status.Status != dimse.StatusDuplicateSOPInstance {
		t.Errorf("second create: %v", status)
	}

	status, _ = p.set(newEvent(t,
		&dimse.NSetRq{RequestedSOPClassUID: mppsClass, RequestedSOPInstanceUID: uid},
		dicom.MustNewElement(dicomtag.Modality, "MR")))
	if status.Status != dimse.StatusSuccess {
		t.Fatalf("set: %v", status)
	}

	status, ds := p.get(newEvent(t, &dimse.NGetRq{
		RequestedSOPClassUID:    mppsClass,
		RequestedSOPInstanceUID: uid,
		AttributeIdentifierList: []dicomtag.Tag{dicomtag.Modality},
	}))
	if status.Status != dimse.StatusSuccess || ds == nil || len(ds.Elements) != 1 {
		t.Fatalf("get: %v %v", status, ds)
	}
	if v, err := ds.Elements[0].GetString(); err != nil || v != "MR" {
		t.Errorf("modality after set: %q %v", v, err)
	}

	status, _ = p.delete(newEvent(t, &dimse.NDeleteRq{RequestedSOPClassUID: mppsClass, RequestedSOPInstanceUID: uid}))
	if status.Status != dimse.StatusSuccess {
		t.Fatalf("delete: %v", status)
	}
	status, _ = p.get(newEvent(t, &dimse.NGetRq{RequestedSOPClassUID: mppsClass, RequestedSOPInstanceUID: uid}))
	if status.Status != dimse.StatusNoSuchObjectInstance {
		t.Errorf("get after delete: %v", status)
	}
}

func TestAdminRouter(t *testing.T) {
	sp, err := netdicom.NewServiceProvider(netdicom.ServiceProviderParams{AETitle: "PACS"})
	if err != nil {
		t.Fatal(err)
	}
	reg := prometheus.NewRegistry()
	if err := netdicom.RegisterMetrics(reg); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(newAdminRouter("PACS", sp, newIndex(), reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	var health healthResponse
	err = json.NewDecoder(resp.Body).Decode(&health)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if health.Status != "healthy" || health.AETitle != "PACS" || health.Associations != 0 {
		t.Errorf("health: %+v", health)
	}

	resp, err = http.Get(srv.URL + "/associations")
	if err != nil {
		t.Fatal(err)
	}
	var views []associationView
	err = json.NewDecoder(resp.Body).Decode(&views)
	resp.Body.Close()
	if err != nil || len(views) != 0 {
		t.Errorf("associations: %v %v", views, err)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics: %s", resp.Status)
	}
}
