package netdicom

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/medimesh/go-netdicom/aeregistry"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/pdu"
	"github.com/medimesh/go-netdicom/sopclass"
	"v.io/x/lib/vlog"
)

// ServiceProviderParams defines parameters for a ServiceProvider.
type ServiceProviderParams struct {
	// The application-entity title of the server. If nonempty, an
	// A-ASSOCIATE-RQ that calls any other title is rejected.
	AETitle string

	// TCP address to listen to. E.g., ":1234" will listen to port 1234 at
	// all the IP address that this machine can bind to.
	ListenAddr string

	// Abstract syntaxes the provider accepts. If empty, a table is built from
	// the handlers that are set: Verification, the storage classes (with SCU
	// role, so that C-GET works), query/retrieve, and the normalized classes.
	SupportedContexts []SupportedContext
	// Transfer syntaxes used to build the default SupportedContexts. If
	// empty, every standard syntax is accepted.
	TransferSyntaxes []string

	// The max PDU size, in bytes, that this instance is willing to receive.
	// If the value is <=0, DefaultMaxPDUSize is used.
	MaxPDUSize int
	// Defaults to DefaultARTIMTimeout.
	ARTIMTimeout time.Duration
	// Bounds the wait for each C-STORE sub-operation response. 0 means no
	// limit.
	DIMSETimeout time.Duration

	// Defaults to DefaultImplementationClassUID.
	ImplementationClassUID    string
	ImplementationVersionName string

	// Resolves C-MOVE destinations that the CMove handler leaves to the
	// provider.
	RemoteAEs aeregistry.Resolver

	// If CEcho is nil, C-ECHO always succeeds.
	CEcho CEchoHandler
	// Called on receiving a C-STORE request. The handler should store e.Data
	// and return Success, or a failure status such as 0xA700.
	CStore       CStoreHandler
	CFind        CFindHandler
	CGet         RetrieveHandler
	CMove        RetrieveHandler
	NEventReport NHandler
	NGet         NHandler
	NSet         NHandler
	NAction      NHandler
	NCreate      NHandler
	NDelete      NHandler

	// AuthenticateUser checks the user identity of an A-ASSOCIATE-RQ. An
	// error rejects the association. The returned bytes are sent back when
	// the requestor asked for a positive response.
	AuthenticateUser func(callingAETitle string, identity *pdu.UserIdentitySubItem) ([]byte, error)
	// ExtendedNegotiation answers one SOP class extended negotiation item.
	// Return nil to leave it unanswered.
	ExtendedNegotiation func(item *pdu.SOPClassExtendedNegotiationSubItem) *pdu.SOPClassExtendedNegotiationSubItem

	OnAssociationEstablished func(conn ConnectionState)
	// err is nil after an orderly release. conn is zero if the association
	// was never established.
	OnAssociationClosed func(conn ConnectionState, err error)

	Faults *FaultInjector
}

func (params *ServiceProviderParams) fillDefaults() error {
	if params.AETitle != "" {
		if err := validateAETitle("AE title", params.AETitle); err != nil {
			return err
		}
	}
	if params.MaxPDUSize <= 0 {
		params.MaxPDUSize = DefaultMaxPDUSize
	}
	if params.MaxPDUSize > pdu.MaxPDUSizeCeiling {
		return fmt.Errorf("netdicom: MaxPDUSize %d out of range", params.MaxPDUSize)
	}
	if params.ARTIMTimeout <= 0 {
		params.ARTIMTimeout = DefaultARTIMTimeout
	}
	if params.ImplementationClassUID == "" {
		params.ImplementationClassUID = DefaultImplementationClassUID
		if params.ImplementationVersionName == "" {
			params.ImplementationVersionName = DefaultImplementationVersionName
		}
	}
	if len(params.SupportedContexts) == 0 {
		syntaxes, err := canonicalTransferSyntaxes(params.TransferSyntaxes)
		if err != nil {
			return err
		}
		params.SupportedContexts = params.defaultSupportedContexts(syntaxes)
	}
	return nil
}

func (params *ServiceProviderParams) defaultSupportedContexts(syntaxes []string) []SupportedContext {
	contexts := NewSupportedContexts(sopclass.UIDs(sopclass.VerificationClasses), syntaxes, RoleSCP)
	if params.CStore != nil || params.CGet != nil {
		contexts = append(contexts, NewSupportedContexts(sopclass.UIDs(sopclass.StorageClasses), syntaxes, RoleBoth)...)
	}
	if params.CFind != nil {
		contexts = append(contexts, NewSupportedContexts(sopclass.UIDs(sopclass.QRFindClasses), syntaxes, RoleSCP)...)
	}
	if params.CMove != nil {
		contexts = append(contexts, NewSupportedContexts(sopclass.UIDs(sopclass.QRMoveClasses), syntaxes, RoleSCP)...)
	}
	if params.CGet != nil {
		contexts = append(contexts, NewSupportedContexts(sopclass.UIDs(sopclass.QRGetClasses), syntaxes, RoleSCP)...)
	}
	if params.NEventReport != nil || params.NGet != nil || params.NSet != nil ||
		params.NAction != nil || params.NCreate != nil || params.NDelete != nil {
		contexts = append(contexts, NewSupportedContexts(sopclass.UIDs(sopclass.NormalizedClasses), syntaxes, RoleBoth)...)
	}
	return contexts
}

// ServiceProvider encapsulates the state for DICOM server (provider).
type ServiceProvider struct {
	params ServiceProviderParams

	mu       sync.Mutex
	listener net.Listener
	shutdown bool
	active   map[*providerAssociation]struct{}
	wg       sync.WaitGroup
}

// NewServiceProvider creates a new DICOM server object. Run() will actually
// start running the service.
func NewServiceProvider(params ServiceProviderParams) (*ServiceProvider, error) {
	if err := params.fillDefaults(); err != nil {
		return nil, err
	}
	return &ServiceProvider{
		params: params,
		active: map[*providerAssociation]struct{}{},
	}, nil
}

// providerAssociation is one association accepted by a provider.
type providerAssociation struct {
	label      string
	params     *ServiceProviderParams
	remoteAddr net.Addr
	disp       *serviceDispatcher
	assoc      *association
}

func newProviderAssociation(conn net.Conn, params *ServiceProviderParams) *providerAssociation {
	label := newLabel("sm(p)")
	downcallCh := make(chan stateEvent, 128)
	upcallCh := make(chan upcallEvent, 128)
	disp := newServiceDispatcher(label, downcallCh, params.DIMSETimeout)
	p := &providerAssociation{
		label:      label,
		params:     params,
		remoteAddr: conn.RemoteAddr(),
		disp:       disp,
		assoc:      newAssociation(label, disp, upcallCh),
	}
	p.registerCallbacks()
	p.assoc.onEstablished = func(cm *contextManager) {
		vlog.Infof("%s: association established with %s (%s)", label, cm.callingAETitle, p.remoteAddr)
		if params.OnAssociationEstablished != nil {
			params.OnAssociationEstablished(newConnectionState(cm, p.remoteAddr))
		}
	}
	go runStateMachineForServiceProvider(conn, params, upcallCh, downcallCh, label)
	go p.assoc.run()
	return p
}

func (p *providerAssociation) registerCallbacks() {
	params := p.params
	status := func(h func(*ServiceEvent) dimse.Status) serviceCallback {
		return func(msg dimse.Message, data []byte, cs *serviceCommandState) {
			runStatusHandler(newServiceEvent(cs, msg, data, p.remoteAddr), h)
		}
	}
	normalized := func(h NHandler) serviceCallback {
		return func(msg dimse.Message, data []byte, cs *serviceCommandState) {
			runNHandler(newServiceEvent(cs, msg, data, p.remoteAddr), h)
		}
	}
	echo := params.CEcho
	if echo == nil {
		echo = func(*ServiceEvent) dimse.Status { return dimse.Success }
	}
	p.disp.registerCallback(dimse.CommandFieldCEchoRq, status(echo))
	if params.CStore != nil {
		p.disp.registerCallback(dimse.CommandFieldCStoreRq, status(params.CStore))
	}
	if params.CFind != nil {
		p.disp.registerCallback(dimse.CommandFieldCFindRq, p.handleCFind)
	}
	if params.CGet != nil {
		p.disp.registerCallback(dimse.CommandFieldCGetRq, p.handleCGet)
	}
	if params.CMove != nil {
		p.disp.registerCallback(dimse.CommandFieldCMoveRq, p.handleCMove)
	}
	for field, h := range map[uint16]NHandler{
		dimse.CommandFieldNEventReportRq: params.NEventReport,
		dimse.CommandFieldNGetRq:         params.NGet,
		dimse.CommandFieldNSetRq:         params.NSet,
		dimse.CommandFieldNActionRq:      params.NAction,
		dimse.CommandFieldNCreateRq:      params.NCreate,
		dimse.CommandFieldNDeleteRq:      params.NDelete,
	} {
		if h != nil {
			p.disp.registerCallback(field, normalized(h))
		}
	}
}

// wait blocks until the association is gone, then reports it to
// OnAssociationClosed.
func (p *providerAssociation) wait() {
	<-p.assoc.done
	err := p.assoc.closeError()
	if err != nil {
		vlog.Infof("%s: association with %s ended: %v", p.label, p.remoteAddr, err)
	} else {
		vlog.Infof("%s: association with %s released", p.label, p.remoteAddr)
	}
	if p.params.OnAssociationClosed != nil {
		var conn ConnectionState
		p.assoc.mu.Lock()
		cm := p.assoc.cm
		p.assoc.mu.Unlock()
		if cm != nil {
			conn = newConnectionState(cm, p.remoteAddr)
		}
		p.params.OnAssociationClosed(conn, err)
	}
}

// RunProviderForConn starts threads for running a DICOM server on "conn".
// This function returns immediately; "conn" will be cleaned up in the
// background.
func RunProviderForConn(conn net.Conn, params ServiceProviderParams) {
	if err := params.fillDefaults(); err != nil {
		vlog.Errorf("RunProviderForConn: %v", err)
		conn.Close()
		return
	}
	p := newProviderAssociation(conn, &params)
	go p.wait()
}

// Run listens to incoming connections, accepts them, and runs the DICOM
// protocol. This function returns only when it fails to listen or the
// provider is shut down.
func (sp *ServiceProvider) Run() error {
	listener, err := net.Listen("tcp", sp.params.ListenAddr)
	if err != nil {
		return err
	}
	return sp.Serve(listener)
}

// Serve accepts connections on listener. It returns nil after Shutdown.
func (sp *ServiceProvider) Serve(listener net.Listener) error {
	sp.mu.Lock()
	if sp.shutdown {
		sp.mu.Unlock()
		listener.Close()
		return nil
	}
	sp.listener = listener
	sp.mu.Unlock()
	vlog.Infof("netdicom: listening on %s", listener.Addr())
	var tempDelay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			sp.mu.Lock()
			shutdown := sp.shutdown
			sp.mu.Unlock()
			if shutdown {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else if tempDelay *= 2; tempDelay > time.Second {
					tempDelay = time.Second
				}
				vlog.Errorf("netdicom: accept: %v; retrying in %v", err, tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return err
		}
		tempDelay = 0
		sp.accept(conn)
	}
}

func (sp *ServiceProvider) accept(conn net.Conn) {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.shutdown {
		conn.Close()
		return
	}
	p := newProviderAssociation(conn, &sp.params)
	sp.active[p] = struct{}{}
	sp.wg.Add(1)
	go func() {
		defer sp.wg.Done()
		p.wait()
		sp.mu.Lock()
		delete(sp.active, p)
		sp.mu.Unlock()
	}()
}

// ListenAddr returns the address the provider accepts connections on, or nil
// if it is not serving.
func (sp *ServiceProvider) ListenAddr() net.Addr {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	if sp.listener == nil {
		return nil
	}
	return sp.listener.Addr()
}

// Associations lists the established associations.
func (sp *ServiceProvider) Associations() []ConnectionState {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	var states []ConnectionState
	for p := range sp.active {
		if cm, err := p.assoc.contextManager(); err == nil {
			states = append(states, newConnectionState(cm, p.remoteAddr))
		}
	}
	return states
}

// Shutdown stops accepting connections and waits for the associations to
// end. When ctx expires first, the remaining associations are aborted and
// ctx.Err() is returned once they are gone.
func (sp *ServiceProvider) Shutdown(ctx context.Context) error {
	sp.mu.Lock()
	sp.shutdown = true
	if sp.listener != nil {
		sp.listener.Close()
	}
	sp.mu.Unlock()

	done := make(chan struct{})
	go func() {
		sp.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
	}
	sp.mu.Lock()
	vlog.Infof("netdicom: shutdown: aborting %d associations", len(sp.active))
	for p := range sp.active {
		p.disp.abort()
	}
	sp.mu.Unlock()
	<-done
	return ctx.Err()
}
