package netdicom_test

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomtag"
	"github.com/medimesh/go-netdicom"
	"github.com/medimesh/go-netdicom/aeregistry"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/pdu"
	"github.com/medimesh/go-netdicom/sopclass"
)

const (
	ctImageStorage = "1.2.840.10008.5.1.4.1.1.2"
	studyRootFind  = "1.2.840.10008.5.1.4.1.2.2.1"
	studyRootMove  = "1.2.840.10008.5.1.4.1.2.2.2"
	studyRootGet   = "1.2.840.10008.5.1.4.1.2.2.3"
	mppsClass      = "1.2.840.10008.3.1.2.3.3"
)

var testSyntaxes = []string{sopclass.ExplicitVRLittleEndian, sopclass.ImplicitVRLittleEndian}

func startProvider(t *testing.T, params netdicom.ServiceProviderParams) (*netdicom.ServiceProvider, string) {
	t.Helper()
	sp, err := netdicom.NewServiceProvider(params)
	if err != nil {
		t.Fatal(err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	go sp.Serve(listener)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sp.Shutdown(ctx); err != nil {
			t.Logf("shutdown: %v", err)
		}
	})
	return sp, listener.Addr().String()
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func associate(t *testing.T, addr string, classes ...[]sopclass.SOPUID) *netdicom.ServiceUser {
	t.Helper()
	var required []sopclass.SOPUID
	for _, c := range classes {
		required = append(required, c...)
	}
	params, err := netdicom.NewServiceUserParams("dontcare", "testclient", required, testSyntaxes)
	if err != nil {
		t.Fatal(err)
	}
	su, err := netdicom.Associate(testContext(t), addr, params)
	if err != nil {
		t.Fatal(err)
	}
	return su
}

func newTestDataSet(sopInstanceUID, patientName string) *dicom.DataSet {
	return &dicom.DataSet{Elements: []*dicom.Element{
		dicom.MustNewElement(dicomtag.MediaStorageSOPClassUID, ctImageStorage),
		dicom.MustNewElement(dicomtag.MediaStorageSOPInstanceUID, sopInstanceUID),
		dicom.MustNewElement(dicomtag.TransferSyntaxUID, sopclass.ExplicitVRLittleEndian),
		dicom.MustNewElement(dicomtag.SOPClassUID, ctImageStorage),
		dicom.MustNewElement(dicomtag.SOPInstanceUID, sopInstanceUID),
		dicom.MustNewElement(dicomtag.PatientName, patientName),
	}}
}

func getString(t *testing.T, ds *dicom.DataSet, tag dicomtag.Tag) string {
	t.Helper()
	elem, err := ds.FindElementByTag(tag)
	if err != nil {
		t.Fatal(err)
	}
	s, err := elem.GetString()
	if err != nil {
		t.Fatal(err)
	}
	return strings.TrimRight(s, " \x00")
}

type storedObject struct {
	sopInstanceUID        string
	patientName           string
	moveOriginatorAETitle string
	ds                    *dicom.DataSet
}

// storeInto returns a C-STORE handler that decodes each object and sends it
// to ch.
func storeInto(ch chan<- storedObject) netdicom.CStoreHandler {
	return func(e *netdicom.ServiceEvent) dimse.Status {
		req := e.Command.(*dimse.CStoreRq)
		ds, err := e.DataSet()
		if err != nil {
			return dimse.Status{Status: dimse.StatusProcessingFailure, ErrorComment: err.Error()}
		}
		obj := storedObject{
			sopInstanceUID:        req.AffectedSOPInstanceUID,
			moveOriginatorAETitle: req.MoveOriginatorApplicationEntityTitle,
			ds:                    ds,
		}
		if elem, err := ds.FindElementByTag(dicomtag.PatientName); err == nil {
			obj.patientName, _ = elem.GetString()
		}
		ch <- obj
		return dimse.Success
	}
}

func TestEcho(t *testing.T) {
	established := make(chan netdicom.ConnectionState, 1)
	closed := make(chan error, 1)
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		OnAssociationEstablished: func(conn netdicom.ConnectionState) { established <- conn },
		OnAssociationClosed:      func(_ netdicom.ConnectionState, err error) { closed <- err },
	})
	su := associate(t, addr, sopclass.VerificationClasses)
	if su.State() != netdicom.AssociationEstablished {
		t.Errorf("state: %v", su.State())
	}
	if err := su.CEcho(testContext(t)); err != nil {
		t.Fatal(err)
	}
	conn := <-established
	if conn.CallingAETitle != "testclient" || conn.CalledAETitle != "dontcare" {
		t.Errorf("AE titles: %+v", conn)
	}
	if conn.PeerImplementationClassUID != netdicom.DefaultImplementationClassUID {
		t.Errorf("peer implementation class: %q", conn.PeerImplementationClassUID)
	}
	if err := su.Release(); err != nil {
		t.Fatal(err)
	}
	if err := <-closed; err != nil {
		t.Errorf("provider saw %v after release", err)
	}
	if su.State() != netdicom.AssociationClosed {
		t.Errorf("state after release: %v", su.State())
	}
}

func TestConcurrentEcho(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{})
	su := associate(t, addr, sopclass.VerificationClasses)
	defer su.Release()
	ctx := testContext(t)
	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- su.CEcho(ctx)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestStore(t *testing.T) {
	ch := make(chan storedObject, 1)
	_, addr := startProvider(t, netdicom.ServiceProviderParams{CStore: storeInto(ch)})
	su := associate(t, addr, sopclass.StorageClasses)
	defer su.Release()
	if err := su.CStore(testContext(t), newTestDataSet("1.2.3.40", "Doe^John")); err != nil {
		t.Fatal(err)
	}
	obj := <-ch
	if obj.sopInstanceUID != "1.2.3.40" || obj.patientName != "Doe^John" {
		t.Errorf("stored %+v", obj)
	}
}

func TestStoreFragmented(t *testing.T) {
	ch := make(chan storedObject, 1)
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		CStore:     storeInto(ch),
		MaxPDUSize: 1024,
	})
	su := associate(t, addr, sopclass.StorageClasses)
	defer su.Release()
	ds := newTestDataSet("1.2.3.41", "Doe^John")
	description := strings.Repeat("ab", 1500)
	ds.Elements = append(ds.Elements, dicom.MustNewElement(dicomtag.StudyDescription, description))
	if err := su.CStore(testContext(t), ds); err != nil {
		t.Fatal(err)
	}
	obj := <-ch
	if got := getString(t, obj.ds, dicomtag.StudyDescription); got != description {
		t.Errorf("description: got %d bytes", len(got))
	}
}

func TestStoreFailureStatus(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		CStore: func(*netdicom.ServiceEvent) dimse.Status {
			return dimse.Status{Status: 0xA700, ErrorComment: "disk full"}
		},
	})
	su := associate(t, addr, sopclass.VerificationClasses, sopclass.StorageClasses)
	defer su.Release()
	err := su.CStore(testContext(t), newTestDataSet("1.2.3.42", "Doe^John"))
	var sf *netdicom.ServiceFailureError
	if !errors.As(err, &sf) || sf.Status.Status != 0xA700 {
		t.Fatalf("CStore: %v", err)
	}
	// The association stays usable.
	if err := su.CEcho(testContext(t)); err != nil {
		t.Error(err)
	}
}

func TestNoPresentationContext(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{})
	su := associate(t, addr, sopclass.VerificationClasses)
	defer su.Release()
	err := su.CStore(testContext(t), newTestDataSet("1.2.3.43", "Doe^John"))
	if !errors.Is(err, netdicom.ErrNoPresentationContext) {
		t.Errorf("CStore: %v", err)
	}
}

func TestFind(t *testing.T) {
	levels := make(chan string, 1)
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		CFind: func(e *netdicom.ServiceEvent) iter.Seq2[dimse.Status, *dicom.DataSet] {
			var level string
			if ds, err := e.DataSet(); err == nil {
				if elem, err := ds.FindElementByTag(dicomtag.QueryRetrieveLevel); err == nil {
					level, _ = elem.GetString()
				}
			}
			levels <- level
			return func(yield func(dimse.Status, *dicom.DataSet) bool) {
				for i := 0; i < 3; i++ {
					ds := &dicom.DataSet{Elements: []*dicom.Element{
						dicom.MustNewElement(dicomtag.QueryRetrieveLevel, "PATIENT"),
						dicom.MustNewElement(dicomtag.PatientName, fmt.Sprintf("P%d", i)),
					}}
					if !yield(dimse.Pending, ds) {
						return
					}
				}
			}
		},
	})
	su := associate(t, addr, sopclass.QRFindClasses)
	defer su.Release()
	filter := []*dicom.Element{
		dicom.MustNewElement(dicomtag.QueryRetrieveLevel, "PATIENT"),
		dicom.MustNewElement(dicomtag.PatientName, "*"),
	}
	var names []string
	var last netdicom.CFindResult
	for r := range su.CFind(testContext(t), studyRootFind, filter) {
		if r.Status.IsPending() {
			if r.Err != nil {
				t.Fatal(r.Err)
			}
			names = append(names, getString(t, r.DataSet, dicomtag.PatientName))
		}
		last = r
	}
	if last.Err != nil || last.Status.Status != dimse.StatusSuccess {
		t.Errorf("final result: %+v", last)
	}
	if got := strings.Join(names, ","); got != "P0,P1,P2" {
		t.Errorf("matches: %s", got)
	}
	if level := <-levels; strings.TrimSpace(level) != "PATIENT" {
		t.Errorf("query level: %q", level)
	}
}

func TestFindCancel(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		CFind: func(e *netdicom.ServiceEvent) iter.Seq2[dimse.Status, *dicom.DataSet] {
			return func(yield func(dimse.Status, *dicom.DataSet) bool) {
				for i := 0; i < 5; i++ {
					if i == 2 {
						// Hold the third match until the C-CANCEL arrives.
						deadline := time.Now().Add(10 * time.Second)
						for !e.IsCancelled() && time.Now().Before(deadline) {
							time.Sleep(time.Millisecond)
						}
					}
					ds := &dicom.DataSet{Elements: []*dicom.Element{
						dicom.MustNewElement(dicomtag.PatientName, fmt.Sprintf("P%d", i)),
					}}
					if !yield(dimse.Pending, ds) {
						return
					}
				}
			}
		},
	})
	su := associate(t, addr, sopclass.VerificationClasses, sopclass.QRFindClasses)
	defer su.Release()

	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()
	var names []string
	var last netdicom.CFindResult
	for r := range su.CFind(ctx, studyRootFind, nil) {
		if r.Status.IsPending() {
			names = append(names, getString(t, r.DataSet, dicomtag.PatientName))
			if len(names) == 2 {
				cancel()
			}
		}
		last = r
	}
	if got := strings.Join(names, ","); got != "P0,P1" {
		t.Errorf("matches: %s", got)
	}
	if last.Status.Status != dimse.StatusCancel || !errors.Is(last.Err, context.Canceled) {
		t.Errorf("final result: %+v", last)
	}
	// The association survives the cancel.
	if err := su.CEcho(testContext(t)); err != nil {
		t.Error(err)
	}
}

// A caller that cancels and stops reading does not stall the association.
func TestFindAbandoned(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		CFind: func(*netdicom.ServiceEvent) iter.Seq2[dimse.Status, *dicom.DataSet] {
			return func(yield func(dimse.Status, *dicom.DataSet) bool) {
				for i := 0; i < 1000; i++ {
					ds := &dicom.DataSet{Elements: []*dicom.Element{
						dicom.MustNewElement(dicomtag.PatientName, fmt.Sprintf("P%d", i)),
					}}
					if !yield(dimse.Pending, ds) {
						return
					}
				}
			}
		},
	})
	su := associate(t, addr, sopclass.QRFindClasses)
	ctx, cancel := context.WithCancel(testContext(t))
	results := su.CFind(ctx, studyRootFind, nil)
	<-results
	time.Sleep(100 * time.Millisecond)
	cancel()

	released := make(chan error, 1)
	go func() { released <- su.Release() }()
	select {
	case err := <-released:
		if err != nil {
			t.Errorf("Release: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Release did not return")
	}
	// The result goroutine exits once the association is gone.
	for range results {
	}
}

func TestFindWithoutHandler(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{})
	su := associate(t, addr, sopclass.VerificationClasses, sopclass.QRFindClasses)
	defer su.Release()
	var last netdicom.CFindResult
	for r := range su.CFind(testContext(t), studyRootFind, nil) {
		last = r
	}
	if !errors.Is(last.Err, netdicom.ErrNoPresentationContext) {
		t.Errorf("CFind: %+v", last)
	}
}

func newGetParams(t *testing.T) netdicom.ServiceUserParams {
	t.Helper()
	contexts, err := netdicom.NewProposedContexts([]string{sopclass.Verification, studyRootGet, ctImageStorage}, testSyntaxes)
	if err != nil {
		t.Fatal(err)
	}
	return netdicom.ServiceUserParams{
		CalledAETitle:  "dontcare",
		CallingAETitle: "testclient",
		Contexts:       contexts,
		Roles:          []netdicom.RoleSelection{{SOPClassUID: ctImageStorage, SCU: true, SCP: true}},
	}
}

func retrieveMatches(n int) iter.Seq2[dimse.Status, *dicom.DataSet] {
	return func(yield func(dimse.Status, *dicom.DataSet) bool) {
		for i := 0; i < n; i++ {
			if !yield(dimse.Pending, newTestDataSet(fmt.Sprintf("1.2.3.%d", 10+i), "Doe^John")) {
				return
			}
		}
	}
}

func TestGet(t *testing.T) {
	identifiers := make(chan []byte, 1)
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		CGet: func(e *netdicom.ServiceEvent) netdicom.Retrieval {
			identifiers <- e.Data
			return netdicom.Retrieval{Total: 3, Matches: retrieveMatches(3)}
		},
	})
	su, err := netdicom.Associate(testContext(t), addr, newGetParams(t))
	if err != nil {
		t.Fatal(err)
	}
	defer su.Release()
	ch := make(chan storedObject, 3)
	var results []netdicom.RetrieveResult
	for r := range su.CGet(testContext(t), studyRootGet, nil, storeInto(ch)) {
		results = append(results, r)
	}
	close(ch)
	var uids []string
	for obj := range ch {
		uids = append(uids, obj.sopInstanceUID)
	}
	if got := strings.Join(uids, ","); got != "1.2.3.10,1.2.3.11,1.2.3.12" {
		t.Errorf("received %s", got)
	}
	if len(results) != 4 {
		t.Fatalf("got %d responses, want 3 pending and a final one", len(results))
	}
	for i, r := range results[:3] {
		if !r.Status.IsPending() || r.Completed != i+1 || r.Remaining != 2-i {
			t.Errorf("response %d: %+v", i, r)
		}
	}
	last := results[3]
	if last.Err != nil || last.Status.Status != dimse.StatusSuccess || last.Completed != 3 || last.Remaining != 0 {
		t.Errorf("final response: %+v", last)
	}
	// The empty identifier still arrives as an (empty) data set.
	if data := <-identifiers; data == nil || len(data) != 0 {
		t.Errorf("identifier: %#v", data)
	}
}

func TestGetCancel(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		CGet: func(e *netdicom.ServiceEvent) netdicom.Retrieval {
			return netdicom.Retrieval{Total: 5, Matches: func(yield func(dimse.Status, *dicom.DataSet) bool) {
				for i := 0; i < 5; i++ {
					if i == 2 {
						// Hold the third object until the C-CANCEL arrives.
						deadline := time.Now().Add(10 * time.Second)
						for !e.IsCancelled() && time.Now().Before(deadline) {
							time.Sleep(time.Millisecond)
						}
					}
					if !yield(dimse.Pending, newTestDataSet(fmt.Sprintf("1.2.3.%d", 10+i), "Doe^John")) {
						return
					}
				}
			}}
		},
	})
	su, err := netdicom.Associate(testContext(t), addr, newGetParams(t))
	if err != nil {
		t.Fatal(err)
	}
	defer su.Release()

	ctx, cancel := context.WithCancel(testContext(t))
	defer cancel()
	var stored atomic.Int32
	onStore := func(*netdicom.ServiceEvent) dimse.Status {
		if stored.Add(1) == 2 {
			cancel()
		}
		return dimse.Success
	}
	var last netdicom.RetrieveResult
	for r := range su.CGet(ctx, studyRootGet, nil, onStore) {
		last = r
	}
	if last.Status.Status != dimse.StatusCancel {
		t.Fatalf("final response: %+v", last)
	}
	if last.Completed != 2 || last.Remaining != 3 || last.Failed != 0 {
		t.Errorf("counters: %+v", last)
	}
	if !errors.Is(last.Err, context.Canceled) {
		t.Errorf("error: %v", last.Err)
	}
	if n := stored.Load(); n != 2 {
		t.Errorf("stored %d objects", n)
	}
	// The association survives the cancel.
	if err := su.CEcho(testContext(t)); err != nil {
		t.Error(err)
	}
}

func TestMove(t *testing.T) {
	ch := make(chan storedObject, 2)
	_, destAddr := startProvider(t, netdicom.ServiceProviderParams{CStore: storeInto(ch)})
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		RemoteAEs: aeregistry.NewStaticRegistry(map[string]string{"DEST": destAddr}),
		CMove: func(*netdicom.ServiceEvent) netdicom.Retrieval {
			return netdicom.Retrieval{Total: 2, Matches: retrieveMatches(2)}
		},
	})
	su := associate(t, addr, sopclass.QRMoveClasses)
	defer su.Release()

	var last netdicom.RetrieveResult
	for r := range su.CMove(testContext(t), studyRootMove, "DEST", nil) {
		last = r
	}
	if last.Err != nil || last.Status.Status != dimse.StatusSuccess || last.Completed != 2 {
		t.Fatalf("final response: %+v", last)
	}
	for i := 0; i < 2; i++ {
		obj := <-ch
		if obj.moveOriginatorAETitle != "testclient" {
			t.Errorf("move originator: %q", obj.moveOriginatorAETitle)
		}
	}
}

func TestMoveUnknownDestination(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		RemoteAEs: aeregistry.NewStaticRegistry(nil),
		CMove: func(*netdicom.ServiceEvent) netdicom.Retrieval {
			return netdicom.Retrieval{Total: 2, Matches: retrieveMatches(2)}
		},
	})
	su := associate(t, addr, sopclass.QRMoveClasses)
	defer su.Release()
	var last netdicom.RetrieveResult
	for r := range su.CMove(testContext(t), studyRootMove, "NOWHERE", nil) {
		last = r
	}
	var sf *netdicom.ServiceFailureError
	if !errors.As(last.Err, &sf) || sf.Status.Status != dimse.CMoveMoveDestinationUnknown {
		t.Errorf("final response: %+v", last)
	}
}

func TestMoveDestinationDown(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	deadAddr := listener.Addr().String()
	listener.Close()
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		RemoteAEs: aeregistry.NewStaticRegistry(map[string]string{"DEST": deadAddr}),
		CMove: func(*netdicom.ServiceEvent) netdicom.Retrieval {
			return netdicom.Retrieval{Total: 3, Matches: retrieveMatches(3)}
		},
	})
	su := associate(t, addr, sopclass.QRMoveClasses)
	defer su.Release()
	var last netdicom.RetrieveResult
	for r := range su.CMove(testContext(t), studyRootMove, "DEST", nil) {
		last = r
	}
	if last.Status.Status != dimse.CMoveOutOfResourcesUnableToPerformSubOperations {
		t.Fatalf("final response: %+v", last)
	}
	if last.Failed != 3 || last.Remaining != 0 || last.Completed != 0 {
		t.Errorf("counters: %+v", last)
	}
}

func TestNormalizedServices(t *testing.T) {
	var created atomic.Value
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		NCreate: func(e *netdicom.ServiceEvent) (dimse.Status, *dicom.DataSet) {
			created.Store(e.Command.(*dimse.NCreateRq).AffectedSOPInstanceUID)
			return dimse.Success, nil
		},
		NGet: func(e *netdicom.ServiceEvent) (dimse.Status, *dicom.DataSet) {
			return dimse.Success, &dicom.DataSet{Elements: []*dicom.Element{
				dicom.MustNewElement(dicomtag.PatientName, "Doe^Jane"),
			}}
		},
		NSet: func(e *netdicom.ServiceEvent) (dimse.Status, *dicom.DataSet) {
			if _, err := e.DataSet(); err != nil {
				return dimse.Status{Status: dimse.StatusMissingAttribute}, nil
			}
			return dimse.Success, nil
		},
		NAction: func(e *netdicom.ServiceEvent) (dimse.Status, *dicom.DataSet) {
			if e.Command.(*dimse.NActionRq).ActionTypeID != 1 {
				return dimse.Status{Status: dimse.StatusNoSuchActionType}, nil
			}
			return dimse.Success, nil
		},
		NDelete: func(*netdicom.ServiceEvent) (dimse.Status, *dicom.DataSet) {
			return dimse.Status{Status: dimse.StatusNoSuchObjectInstance}, nil
		},
	})
	su := associate(t, addr, sopclass.NormalizedClasses)
	defer su.Release()
	ctx := testContext(t)

	r, err := su.NCreate(ctx, mppsClass, "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(r.AffectedSOPInstanceUID, "2.25.") || r.AffectedSOPInstanceUID != created.Load() {
		t.Errorf("created instance %q, handler saw %v", r.AffectedSOPInstanceUID, created.Load())
	}
	instance := r.AffectedSOPInstanceUID

	r, err = su.NGet(ctx, mppsClass, instance, []dicomtag.Tag{dicomtag.PatientName})
	if err != nil {
		t.Fatal(err)
	}
	if r.DataSet == nil || getString(t, r.DataSet, dicomtag.PatientName) != "Doe^Jane" {
		t.Errorf("N-GET: %+v", r)
	}
	if _, err := su.NSet(ctx, mppsClass, instance, []*dicom.Element{
		dicom.MustNewElement(dicomtag.PatientName, "Doe^John"),
	}); err != nil {
		t.Error(err)
	}
	if _, err := su.NAction(ctx, mppsClass, instance, 1, nil); err != nil {
		t.Error(err)
	}
	_, err = su.NAction(ctx, mppsClass, instance, 7, nil)
	var sf *netdicom.ServiceFailureError
	if !errors.As(err, &sf) || sf.Status.Status != dimse.StatusNoSuchActionType {
		t.Errorf("N-ACTION 7: %v", err)
	}
	if _, err := su.NDelete(ctx, mppsClass, instance); !errors.As(err, &sf) || sf.Status.Status != dimse.StatusNoSuchObjectInstance {
		t.Errorf("N-DELETE: %v", err)
	}
	// No handler: the provider answers "SOP class not supported".
	if _, err := su.NEventReport(ctx, mppsClass, instance, 1, nil); !errors.As(err, &sf) || sf.Status.Status != dimse.StatusSOPClassNotSupported {
		t.Errorf("N-EVENT-REPORT: %v", err)
	}
}

func TestRejectCalledAETitle(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{AETitle: "STRICT"})
	params, err := netdicom.NewServiceUserParams("WRONG", "testclient", sopclass.VerificationClasses, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = netdicom.Associate(testContext(t), addr, params)
	var rj *netdicom.AssociationRejectedError
	if !errors.As(err, &rj) {
		t.Fatalf("Associate: %v", err)
	}
	if rj.Transient() || rj.Reason != pdu.ReasonCalledAETitleNotRecognized {
		t.Errorf("rejection: %v", rj)
	}
}

func TestRejectUserIdentity(t *testing.T) {
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		AuthenticateUser: func(_ string, id *pdu.UserIdentitySubItem) ([]byte, error) {
			if string(id.PrimaryField) != "alice" {
				return nil, errors.New("unknown user")
			}
			return []byte("welcome"), nil
		},
	})
	for _, user := range []string{"alice", "mallory"} {
		params, err := netdicom.NewServiceUserParams("dontcare", "testclient", sopclass.VerificationClasses, nil)
		if err != nil {
			t.Fatal(err)
		}
		params.UserIdentity = &pdu.UserIdentitySubItem{
			Type:         pdu.UserIdentityUsername,
			PrimaryField: []byte(user),
		}
		su, err := netdicom.Associate(testContext(t), addr, params)
		if user == "alice" {
			if err != nil {
				t.Errorf("alice: %v", err)
				continue
			}
			su.Release()
			continue
		}
		var rj *netdicom.AssociationRejectedError
		if !errors.As(err, &rj) {
			t.Errorf("%s: %v", user, err)
		}
	}
}

func TestAbort(t *testing.T) {
	closed := make(chan error, 1)
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		OnAssociationClosed: func(_ netdicom.ConnectionState, err error) { closed <- err },
	})
	su := associate(t, addr, sopclass.VerificationClasses)
	su.Abort()
	<-su.Done()
	var ae *netdicom.AbortError
	if err := <-closed; !errors.As(err, &ae) {
		t.Errorf("provider saw %v", err)
	}
	if err := su.Release(); !errors.Is(err, netdicom.ErrAborted) {
		t.Errorf("Release after abort: %v", err)
	}
	if err := su.CEcho(testContext(t)); !errors.Is(err, netdicom.ErrAssociationClosed) {
		t.Errorf("CEcho after abort: %v", err)
	}
}

func TestDIMSETimeout(t *testing.T) {
	block := make(chan struct{})
	_, addr := startProvider(t, netdicom.ServiceProviderParams{
		CEcho: func(*netdicom.ServiceEvent) dimse.Status {
			<-block
			return dimse.Success
		},
	})
	t.Cleanup(func() { close(block) })
	params, err := netdicom.NewServiceUserParams("dontcare", "testclient", sopclass.VerificationClasses, nil)
	if err != nil {
		t.Fatal(err)
	}
	params.DIMSETimeout = 100 * time.Millisecond
	su, err := netdicom.Associate(testContext(t), addr, params)
	if err != nil {
		t.Fatal(err)
	}
	var te *netdicom.TimeoutError
	if err := su.CEcho(testContext(t)); !errors.As(err, &te) {
		t.Fatalf("CEcho: %v", err)
	}
	<-su.Done()
}

func TestConnectRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := listener.Addr().String()
	listener.Close()
	params, err := netdicom.NewServiceUserParams("dontcare", "testclient", sopclass.VerificationClasses, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = netdicom.Associate(testContext(t), addr, params)
	var te *netdicom.TransportError
	if !errors.As(err, &te) {
		t.Errorf("Associate: %v", err)
	}
}

func TestShutdownAbortsAssociations(t *testing.T) {
	sp, err := netdicom.NewServiceProvider(netdicom.ServiceProviderParams{})
	if err != nil {
		t.Fatal(err)
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	served := make(chan error, 1)
	go func() { served <- sp.Serve(listener) }()
	su := associate(t, listener.Addr().String(), sopclass.VerificationClasses)
	// The provider learns about the association asynchronously.
	deadline := time.Now().Add(5 * time.Second)
	for len(sp.Associations()) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := len(sp.Associations()); n != 1 {
		t.Errorf("%d associations", n)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := sp.Shutdown(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Shutdown: %v", err)
	}
	<-su.Done()
	if err := <-served; err != nil {
		t.Errorf("Serve: %v", err)
	}
}
