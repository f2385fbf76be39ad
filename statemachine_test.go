package netdicom_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/medimesh/go-netdicom"
	"github.com/medimesh/go-netdicom/pdu"
	"github.com/medimesh/go-netdicom/sopclass"
)

// rawPeer talks to a provider over a pipe, one PDU at a time.
type rawPeer struct {
	t      *testing.T
	conn   net.Conn
	closed chan error
}

func newRawPeer(t *testing.T, params netdicom.ServiceProviderParams) *rawPeer {
	client, server := net.Pipe()
	p := &rawPeer{t: t, conn: client, closed: make(chan error, 1)}
	params.OnAssociationClosed = func(_ netdicom.ConnectionState, err error) { p.closed <- err }
	netdicom.RunProviderForConn(server, params)
	t.Cleanup(func() { client.Close() })
	return p
}

func (p *rawPeer) send(v pdu.PDU) {
	p.t.Helper()
	data, err := pdu.EncodePDU(v)
	if err != nil {
		p.t.Fatal(err)
	}
	p.write(data)
}

func (p *rawPeer) write(data []byte) {
	p.t.Helper()
	p.conn.SetDeadline(time.Now().Add(5 * time.Second))
	if _, err := p.conn.Write(data); err != nil {
		p.t.Fatal(err)
	}
}

func (p *rawPeer) receive() pdu.PDU {
	p.t.Helper()
	p.conn.SetDeadline(time.Now().Add(5 * time.Second))
	v, err := pdu.ReadPDU(p.conn, 0)
	if err != nil {
		p.t.Fatal(err)
	}
	return v
}

func (p *rawPeer) expectAbort(reason pdu.AbortReason) {
	p.t.Helper()
	v := p.receive()
	a, ok := v.(*pdu.AAbort)
	if !ok {
		p.t.Fatalf("got %v, want A-ABORT", v)
	}
	if a.Source != pdu.AbortSourceServiceProvider || a.Reason != reason {
		p.t.Errorf("got %v, want provider abort with reason %v", a, reason)
	}
	p.conn.Close()
	var pv *netdicom.ProtocolViolationError
	if err := <-p.closed; !errors.As(err, &pv) || pv.Reason != reason {
		p.t.Errorf("provider closed with %v", err)
	}
}

func verificationRequest() *pdu.AAssociate {
	return &pdu.AAssociate{
		Type:            pdu.TypeAAssociateRq,
		ProtocolVersion: pdu.CurrentProtocolVersion,
		CalledAETitle:   "dontcare",
		CallingAETitle:  "rawpeer",
		Items: []pdu.SubItem{
			&pdu.ApplicationContextItem{Name: pdu.DICOMApplicationContextItemName},
			&pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextRequest,
				ContextID: 1,
				Items: []pdu.SubItem{
					&pdu.AbstractSyntaxSubItem{Name: sopclass.Verification},
					&pdu.TransferSyntaxSubItem{Name: sopclass.ImplicitVRLittleEndian},
				},
			},
			&pdu.UserInformationItem{
				Items: []pdu.SubItem{
					&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: 16384},
					&pdu.ImplementationClassUIDSubItem{Name: "1.2.3.4"},
				},
			},
		},
	}
}

func TestProviderAcceptsAndReleases(t *testing.T) {
	p := newRawPeer(t, netdicom.ServiceProviderParams{})
	p.send(verificationRequest())
	ac, ok := p.receive().(*pdu.AAssociate)
	if !ok || ac.Type != pdu.TypeAAssociateAc {
		t.Fatalf("got %v, want A-ASSOCIATE-AC", ac)
	}
	if ac.CalledAETitle != "dontcare" || ac.CallingAETitle != "rawpeer" {
		t.Errorf("AE titles in AC: %q %q", ac.CalledAETitle, ac.CallingAETitle)
	}
	accepted := false
	for _, item := range ac.Items {
		if pc, ok := item.(*pdu.PresentationContextItem); ok && pc.ContextID == 1 {
			accepted = pc.Result == pdu.PresentationContextAccepted
		}
	}
	if !accepted {
		t.Errorf("context 1 not accepted: %v", ac)
	}
	p.send(&pdu.AReleaseRq{})
	if v, ok := p.receive().(*pdu.AReleaseRp); !ok {
		t.Fatalf("got %v, want A-RELEASE-RP", v)
	}
	p.conn.Close()
	if err := <-p.closed; err != nil {
		t.Errorf("provider closed with %v", err)
	}
}

func TestProviderAbortsOnUnexpectedPDU(t *testing.T) {
	p := newRawPeer(t, netdicom.ServiceProviderParams{})
	// Nothing but A-ASSOCIATE-RQ is valid before the association exists.
	p.send(&pdu.AReleaseRq{})
	p.expectAbort(pdu.AbortReasonUnexpectedPDU)
}

func TestProviderAbortsOnUnknownPDUType(t *testing.T) {
	p := newRawPeer(t, netdicom.ServiceProviderParams{})
	p.write([]byte{0x99, 0, 0, 0, 0, 4, 0, 0, 0, 0})
	p.expectAbort(pdu.AbortReasonUnrecognizedPDU)
}

func TestProviderAbortsOnUnknownContextID(t *testing.T) {
	p := newRawPeer(t, netdicom.ServiceProviderParams{})
	p.send(verificationRequest())
	if ac, ok := p.receive().(*pdu.AAssociate); !ok || ac.Type != pdu.TypeAAssociateAc {
		t.Fatalf("got %v, want A-ASSOCIATE-AC", ac)
	}
	p.send(&pdu.PDataTf{Items: []pdu.PresentationDataValueItem{
		{ContextID: 99, Command: true, Last: true, Value: []byte{0, 0, 0, 0}},
	}})
	p.expectAbort(pdu.AbortReasonInvalidPDUParameterValue)
}

func TestProviderRejectsUnknownCalledAETitle(t *testing.T) {
	p := newRawPeer(t, netdicom.ServiceProviderParams{AETitle: "STRICT"})
	p.send(verificationRequest())
	rj, ok := p.receive().(*pdu.AAssociateRj)
	if !ok {
		t.Fatalf("got %v, want A-ASSOCIATE-RJ", rj)
	}
	if rj.Result != pdu.ResultRejectedPermanent || rj.Reason != pdu.ReasonCalledAETitleNotRecognized {
		t.Errorf("rejection: %v", rj)
	}
	p.conn.Close()
	var rjErr *netdicom.AssociationRejectedError
	if err := <-p.closed; !errors.As(err, &rjErr) {
		t.Errorf("provider closed with %v", err)
	}
}

func TestProviderARTIMTimeout(t *testing.T) {
	p := newRawPeer(t, netdicom.ServiceProviderParams{ARTIMTimeout: 50 * time.Millisecond})
	p.conn.SetDeadline(time.Now().Add(5 * time.Second))
	// The provider gives up waiting for A-ASSOCIATE-RQ and closes the
	// connection.
	if _, err := p.conn.Read(make([]byte, 1)); err != io.EOF {
		t.Errorf("read: %v", err)
	}
	var te *netdicom.TimeoutError
	if err := <-p.closed; !errors.As(err, &te) {
		t.Errorf("provider closed with %v", err)
	}
}

// acceptWithReleaseCollision plays an acceptor that answers the requestor's
// A-RELEASE-RQ with its own A-RELEASE-RQ.
func acceptWithReleaseCollision(l net.Listener) error {
	conn, err := l.Accept()
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(10 * time.Second))
	write := func(v pdu.PDU) error {
		data, err := pdu.EncodePDU(v)
		if err != nil {
			return err
		}
		_, err = conn.Write(data)
		return err
	}
	v, err := pdu.ReadPDU(conn, 0)
	if err != nil {
		return err
	}
	rq, ok := v.(*pdu.AAssociate)
	if !ok || rq.Type != pdu.TypeAAssociateRq {
		return fmt.Errorf("got %v, want A-ASSOCIATE-RQ", v)
	}
	ac := &pdu.AAssociate{
		Type:            pdu.TypeAAssociateAc,
		ProtocolVersion: pdu.CurrentProtocolVersion,
		CalledAETitle:   rq.CalledAETitle,
		CallingAETitle:  rq.CallingAETitle,
		Items:           []pdu.SubItem{&pdu.ApplicationContextItem{Name: pdu.DICOMApplicationContextItemName}},
	}
	for _, item := range rq.Items {
		if pc, ok := item.(*pdu.PresentationContextItem); ok {
			ac.Items = append(ac.Items, &pdu.PresentationContextItem{
				Type:      pdu.ItemTypePresentationContextResponse,
				ContextID: pc.ContextID,
				Result:    pdu.PresentationContextAccepted,
				Items:     []pdu.SubItem{&pdu.TransferSyntaxSubItem{Name: pc.TransferSyntaxes()[0]}},
			})
		}
	}
	ac.Items = append(ac.Items, &pdu.UserInformationItem{
		Items: []pdu.SubItem{&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: 16384}},
	})
	if err := write(ac); err != nil {
		return err
	}
	if v, err := pdu.ReadPDU(conn, 0); err != nil {
		return err
	} else if _, ok := v.(*pdu.AReleaseRq); !ok {
		return fmt.Errorf("got %v, want A-RELEASE-RQ", v)
	}
	if err := write(&pdu.AReleaseRq{}); err != nil {
		return err
	}
	if v, err := pdu.ReadPDU(conn, 0); err != nil {
		return err
	} else if _, ok := v.(*pdu.AReleaseRp); !ok {
		return fmt.Errorf("got %v, want A-RELEASE-RP", v)
	}
	if err := write(&pdu.AReleaseRp{}); err != nil {
		return err
	}
	// The requestor closes the connection.
	if _, err := io.ReadAll(conn); err != nil {
		return err
	}
	return nil
}

func TestUserReleaseCollision(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	peerErr := make(chan error, 1)
	go func() { peerErr <- acceptWithReleaseCollision(l) }()

	params, err := netdicom.NewServiceUserParams("dontcare", "testclient",
		sopclass.VerificationClasses, []string{sopclass.ImplicitVRLittleEndian})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	su, err := netdicom.Associate(ctx, l.Addr().String(), params)
	if err != nil {
		t.Fatal(err)
	}
	if err := su.Release(); err != nil {
		t.Errorf("Release: %v", err)
	}
	if err := <-peerErr; err != nil {
		t.Error(err)
	}
}
