// A sample program for talking to a remote provider: C-ECHO, C-STORE of a
// file, and C-FIND, C-GET or C-MOVE at the study level.
//
// Usage:
//
//	sampleclient -server localhost:10000 -echo
//	sampleclient -server localhost:10000 -store image.dcm
//	sampleclient -server localhost:10000 -find -patient 'Doe*'
//	sampleclient -server localhost:10000 -get -study 1.2.3 -output /tmp/get
//	sampleclient -server localhost:10000 -move STORESCP -study 1.2.3
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomtag"
	"github.com/medimesh/go-netdicom"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/sopclass"
	"v.io/x/lib/vlog"
)

var (
	serverFlag  = flag.String("server", "localhost:10000", "host:port of the remote application entity")
	calledFlag  = flag.String("called-ae", "dontcare", "AE title of the remote application entity")
	callingFlag = flag.String("calling-ae", "testclient", "AE title of this client")
	timeoutFlag = flag.Duration("timeout", time.Minute, "Deadline for the whole operation")

	echoFlag  = flag.Bool("echo", false, "If set, issue C-ECHO")
	storeFlag = flag.String("store", "", "If set, issue C-STORE to copy this file to the remote server")
	findFlag  = flag.Bool("find", false, "If set, issue C-FIND at the study level")
	getFlag   = flag.Bool("get", false, "If set, issue C-GET at the study level and save the objects in -output")
	moveFlag  = flag.String("move", "", "If set, issue C-MOVE at the study level to this destination AE")

	patientFlag = flag.String("patient", "", "PatientName matching key for -find, -get and -move")
	studyFlag   = flag.String("study", "", "StudyInstanceUID matching key for -find, -get and -move")
	outputFlag  = flag.String("output", ".", "Directory for files received by -get")
)

func associate(ctx context.Context, classes []sopclass.SOPUID, syntaxes []string) *netdicom.ServiceUser {
	params, err := netdicom.NewServiceUserParams(*calledFlag, *callingFlag, classes, syntaxes)
	if err != nil {
		vlog.Fatal(err)
	}
	vlog.Infof("Connecting to %s", *serverFlag)
	su, err := netdicom.Associate(ctx, *serverFlag, params)
	if err != nil {
		vlog.Fatalf("%s: %v", *serverFlag, err)
	}
	return su
}

func release(su *netdicom.ServiceUser) {
	if err := su.Release(); err != nil {
		vlog.Errorf("Release: %v", err)
	}
}

func cEcho(ctx context.Context) {
	su := associate(ctx, sopclass.VerificationClasses, nil)
	defer release(su)
	if err := su.CEcho(ctx); err != nil {
		vlog.Fatalf("C-ECHO failed: %v", err)
	}
	vlog.Infof("C-ECHO done")
}

func cStore(ctx context.Context, inPath string) {
	ds, err := dicom.ReadDataSetFromFile(inPath, dicom.ReadOptions{})
	if err != nil {
		vlog.Fatalf("%s: failed to parse as DICOM: %v", inPath, err)
	}
	transferSyntax, err := ds.FindElementByTag(dicomtag.TransferSyntaxUID)
	if err != nil {
		vlog.Fatalf("%s: %v", inPath, err)
	}
	// Propose the file's own syntax first so that the object need not be
	// re-encoded.
	syntaxes := []string{transferSyntax.MustGetString()}
	for _, ts := range []string{sopclass.ExplicitVRLittleEndian, sopclass.ImplicitVRLittleEndian} {
		if ts != syntaxes[0] {
			syntaxes = append(syntaxes, ts)
		}
	}
	su := associate(ctx, sopclass.StorageClasses, syntaxes)
	defer release(su)
	if err := su.CStore(ctx, ds); err != nil {
		vlog.Fatalf("%s: C-STORE failed: %v", inPath, err)
	}
	vlog.Infof("C-STORE %s done", inPath)
}

// studyIdentifier is the C-FIND, C-GET and C-MOVE identifier built from the
// matching key flags.
func studyIdentifier() []*dicom.Element {
	return []*dicom.Element{
		dicom.MustNewElement(dicomtag.QueryRetrieveLevel, "STUDY"),
		dicom.MustNewElement(dicomtag.SpecificCharacterSet, "ISO_IR 100"),
		dicom.MustNewElement(dicomtag.PatientName, *patientFlag),
		dicom.MustNewElement(dicomtag.PatientID, ""),
		dicom.MustNewElement(dicomtag.StudyInstanceUID, *studyFlag),
		dicom.MustNewElement(dicomtag.StudyDate, ""),
		dicom.MustNewElement(dicomtag.AccessionNumber, ""),
	}
}

const studyRootFind = "1.2.840.10008.5.1.4.1.2.2.1"
const studyRootGet = "1.2.840.10008.5.1.4.1.2.2.3"
const studyRootMove = "1.2.840.10008.5.1.4.1.2.2.2"

func cFind(ctx context.Context) {
	su := associate(ctx, sopclass.QRFindClasses, nil)
	defer release(su)
	n := 0
	for result := range su.CFind(ctx, studyRootFind, studyIdentifier()) {
		if result.Err != nil {
			vlog.Errorf("C-FIND error: %v", result.Err)
			continue
		}
		if result.DataSet == nil {
			continue
		}
		n++
		for _, elem := range result.DataSet.Elements {
			vlog.Infof("Match %d: %v", n, elem)
		}
	}
	vlog.Infof("C-FIND done: %d matches", n)
}

func logRetrieve(name string, results <-chan netdicom.RetrieveResult) {
	for result := range results {
		if result.Err != nil {
			vlog.Errorf("%s error: %v", name, result.Err)
			continue
		}
		vlog.Infof("%s %v: remaining %d completed %d failed %d warning %d", name,
			result.Status, result.Remaining, result.Completed, result.Failed, result.Warning)
	}
}

func cGet(ctx context.Context, outDir string) {
	params, err := netdicom.NewServiceUserParams(*calledFlag, *callingFlag,
		append(append([]sopclass.SOPUID{}, sopclass.QRGetClasses...), sopclass.StorageClasses...), nil)
	if err != nil {
		vlog.Fatal(err)
	}
	// The client acts as the storage SCP of the C-GET sub-operations.
	for _, c := range sopclass.StorageClasses {
		params.Roles = append(params.Roles, netdicom.RoleSelection{SOPClassUID: c.UID, SCU: true, SCP: true})
	}
	su, err := netdicom.Associate(ctx, *serverFlag, params)
	if err != nil {
		vlog.Fatalf("%s: %v", *serverFlag, err)
	}
	defer release(su)
	onStore := func(e *netdicom.ServiceEvent) dimse.Status {
		req := e.Command.(*dimse.CStoreRq)
		data, err := netdicom.EncodeFile(req.AffectedSOPClassUID, req.AffectedSOPInstanceUID, e.Context.TransferSyntax, e.Data)
		if err != nil {
			return dimse.Status{Status: dimse.CStoreCannotUnderstand, ErrorComment: err.Error()}
		}
		path := filepath.Join(outDir, req.AffectedSOPInstanceUID+".dcm")
		if err := os.WriteFile(path, data, 0644); err != nil {
			vlog.Errorf("%s: %v", path, err)
			return dimse.Status{Status: dimse.CStoreOutOfResources, ErrorComment: err.Error()}
		}
		vlog.Infof("Wrote %s", path)
		return dimse.Success
	}
	logRetrieve("C-GET", su.CGet(ctx, studyRootGet, studyIdentifier(), onStore))
}

func cMove(ctx context.Context, destination string) {
	su := associate(ctx, sopclass.QRMoveClasses, nil)
	defer release(su)
	logRetrieve("C-MOVE", su.CMove(ctx, studyRootMove, destination, studyIdentifier()))
}

func main() {
	flag.Parse()
	vlog.ConfigureLibraryLoggerFromFlags()
	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()
	// Interrupting a C-FIND, C-GET or C-MOVE sends C-CANCEL.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	switch {
	case *echoFlag:
		cEcho(ctx)
	case *storeFlag != "":
		cStore(ctx, *storeFlag)
	case *findFlag:
		cFind(ctx)
	case *getFlag:
		cGet(ctx, *outputFlag)
	case *moveFlag != "":
		cMove(ctx, *moveFlag)
	default:
		vlog.Fatal(errors.New("one of -echo, -store, -find, -get or -move must be set"))
	}
}
