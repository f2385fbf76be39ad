package netdicom

import (
	"fmt"
	"sort"

	"github.com/medimesh/go-netdicom/pdu"
	"github.com/medimesh/go-netdicom/sopclass"
	"v.io/x/lib/vlog"
)

type contextManagerEntry struct {
	contextID         byte
	abstractSyntaxUID string
	transferSyntaxUID string
	// Roles of the association requestor.
	scuRole bool
	scpRole bool
}

func (e contextManagerEntry) negotiatedContext() NegotiatedContext {
	return NegotiatedContext{
		ContextID:      e.contextID,
		AbstractSyntax: e.abstractSyntaxUID,
		Result:         pdu.PresentationContextAccepted,
		TransferSyntax: e.transferSyntaxUID,
		SCURole:        e.scuRole,
		SCPRole:        e.scpRole,
	}
}

// contextManager manages mappings between a contextID and the corresponding
// abstract-syntax UID (aka SOP) and transfer syntax. ContextID values are 1,
// 3, 5, etc. and are allocated anew during each association handshake. One
// contextManager is created per association. It is filled during the
// handshake and is read-only once the association is established.
type contextManager struct {
	label string

	contextIDToAbstractSyntaxNameMap map[byte]*contextManagerEntry
	// Accepted contexts for each abstract syntax, in context ID order.
	abstractSyntaxNameToContextIDMap map[string][]*contextManagerEntry
	// Outcome of every proposed context, accepted or not, in context ID order.
	negotiated []NegotiatedContext

	callingAETitle string
	calledAETitle  string

	// Info about the the other side of the communication, gleaned from
	// A-ASSOCIATE-* pdu.
	peerMaxPDUSize int
	// UID that identifies the peer type. It's supposed to be globally unique.
	peerImplementationClassUID string
	// Implementation version, virtually meaningless since its format isn't standardized.
	peerImplementationVersionName string

	// User identity sent by the requestor. Provider side only.
	userIdentity *pdu.UserIdentitySubItem
	// Server response to the user identity. Requestor side only.
	userIdentityResponse []byte
	// SOP class extended negotiation items in the A-ASSOCIATE-AC.
	extendedNegotiation []pdu.SOPClassExtendedNegotiationSubItem

	// tmpRequests used only on the requestor side. It holds the
	// contextid->presentationcontext mapping generated from the
	// A_ASSOCIATE_RQ PDU. Once an A_ASSOCIATE_AC PDU arrives, tmpRequests
	// is matched against the response PDU and the mappings are filled.
	tmpRequests map[byte]ProposedContext
}

func newContextManager(label string) *contextManager {
	return &contextManager{
		label:                            label,
		contextIDToAbstractSyntaxNameMap: make(map[byte]*contextManagerEntry),
		abstractSyntaxNameToContextIDMap: make(map[string][]*contextManagerEntry),
		peerMaxPDUSize:                   16384, // The default value used by Osirix & pynetdicom.
		tmpRequests:                      make(map[byte]ProposedContext),
	}
}

// Called by the requestor to produce the list to be embedded in
// A_ASSOCIATE_RQ.Items.
func (m *contextManager) generateAssociateRequest(params *ServiceUserParams) []pdu.SubItem {
	m.callingAETitle = params.CallingAETitle
	m.calledAETitle = params.CalledAETitle
	items := []pdu.SubItem{
		&pdu.ApplicationContextItem{
			Name: pdu.DICOMApplicationContextItemName,
		}}
	for _, pc := range params.Contexts {
		syntaxItems := []pdu.SubItem{
			&pdu.AbstractSyntaxSubItem{Name: pc.AbstractSyntax},
		}
		for _, syntaxUID := range pc.TransferSyntaxes {
			syntaxItems = append(syntaxItems, &pdu.TransferSyntaxSubItem{Name: syntaxUID})
		}
		items = append(items, &pdu.PresentationContextItem{
			Type:      pdu.ItemTypePresentationContextRequest,
			ContextID: pc.ContextID,
			Result:    0, // must be zero for request
			Items:     syntaxItems,
		})
		m.tmpRequests[pc.ContextID] = pc
	}
	userItems := []pdu.SubItem{
		&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: uint32(params.MaxPDUSize)},
		&pdu.ImplementationClassUIDSubItem{Name: params.ImplementationClassUID},
	}
	for _, r := range params.Roles {
		userItems = append(userItems, &pdu.RoleSelectionSubItem{
			SOPClassUID: r.SOPClassUID, SCURole: r.SCU, SCPRole: r.SCP})
	}
	if params.ImplementationVersionName != "" {
		userItems = append(userItems, &pdu.ImplementationVersionNameSubItem{Name: params.ImplementationVersionName})
	}
	for i := range params.ExtendedNegotiation {
		item := params.ExtendedNegotiation[i]
		userItems = append(userItems, &item)
	}
	if params.UserIdentity != nil {
		userItems = append(userItems, params.UserIdentity)
	}
	return append(items, &pdu.UserInformationItem{Items: userItems})
}

func rejectPermanent(source pdu.SourceType, reason pdu.RejectReasonType) *pdu.AAssociateRj {
	return &pdu.AAssociateRj{Result: pdu.ResultRejectedPermanent, Source: source, Reason: reason}
}

// Called when A_ASSOCIATE_RQ pdu arrives, on the provider side. Returns
// either the items to be sent in the A_ASSOCIATE_AC pdu, or the
// A_ASSOCIATE_RJ to send instead.
func (m *contextManager) onAssociateRequest(rq *pdu.AAssociate, params *ServiceProviderParams) ([]pdu.SubItem, *pdu.AAssociateRj) {
	m.callingAETitle = rq.CallingAETitle
	m.calledAETitle = rq.CalledAETitle
	if rq.ProtocolVersion&pdu.CurrentProtocolVersion == 0 {
		vlog.Errorf("%s: unsupported protocol version 0x%x", m.label, rq.ProtocolVersion)
		return nil, rejectPermanent(pdu.SourceULServiceProviderACSE, pdu.ReasonProtocolVersionNotSupported)
	}
	if params.AETitle != "" && rq.CalledAETitle != params.AETitle {
		vlog.Infof("%s: called AE title '%s' is not '%s'", m.label, rq.CalledAETitle, params.AETitle)
		return nil, rejectPermanent(pdu.SourceULServiceUser, pdu.ReasonCalledAETitleNotRecognized)
	}
	var (
		appContext  string
		proposed    []ProposedContext
		roles       []RoleSelection
		extended    []*pdu.SOPClassExtendedNegotiationSubItem
		asyncWindow bool
	)
	for _, requestItem := range rq.Items {
		switch ri := requestItem.(type) {
		case *pdu.ApplicationContextItem:
			appContext = ri.Name
		case *pdu.PresentationContextItem:
			proposed = append(proposed, ProposedContext{
				ContextID:        ri.ContextID,
				AbstractSyntax:   ri.AbstractSyntax(),
				TransferSyntaxes: ri.TransferSyntaxes(),
			})
		case *pdu.UserInformationItem:
			for _, subItem := range ri.Items {
				switch c := subItem.(type) {
				case *pdu.UserInformationMaximumLengthItem:
					m.peerMaxPDUSize = int(c.MaximumLengthReceived)
				case *pdu.ImplementationClassUIDSubItem:
					m.peerImplementationClassUID = c.Name
				case *pdu.ImplementationVersionNameSubItem:
					m.peerImplementationVersionName = c.Name
				case *pdu.RoleSelectionSubItem:
					roles = append(roles, RoleSelection{SOPClassUID: c.SOPClassUID, SCU: c.SCURole, SCP: c.SCPRole})
				case *pdu.AsynchronousOperationsWindowSubItem:
					asyncWindow = true
				case *pdu.SOPClassExtendedNegotiationSubItem:
					extended = append(extended, c)
				case *pdu.UserIdentitySubItem:
					m.userIdentity = c
				}
			}
		}
	}
	if appContext != pdu.DICOMApplicationContextItemName {
		vlog.Errorf("%s: found illegal application context name. Expect %v, found %v",
			m.label, pdu.DICOMApplicationContextItemName, appContext)
		return nil, rejectPermanent(pdu.SourceULServiceUser, pdu.ReasonApplicationContextNameNotSupported)
	}
	supported := params.SupportedContexts
	results, roleItems := NegotiatePresentationContexts(proposed, supported, roles)
	m.setNegotiated(results)
	if len(m.contextIDToAbstractSyntaxNameMap) == 0 {
		vlog.Infof("%s: no acceptable presentation context among %d proposed", m.label, len(proposed))
		return nil, rejectPermanent(pdu.SourceULServiceUser, pdu.ReasonNone)
	}
	var identityResponse []byte
	if m.userIdentity != nil && params.AuthenticateUser != nil {
		resp, err := params.AuthenticateUser(rq.CallingAETitle, m.userIdentity)
		if err != nil {
			vlog.Infof("%s: user identity of '%s' rejected: %v", m.label, rq.CallingAETitle, err)
			return nil, rejectPermanent(pdu.SourceULServiceUser, pdu.ReasonNone)
		}
		if m.userIdentity.PositiveResponseRequested {
			identityResponse = resp
		}
	}

	responses := []pdu.SubItem{
		&pdu.ApplicationContextItem{
			Name: pdu.DICOMApplicationContextItemName,
		},
	}
	firstProposed := map[byte]string{}
	for _, pc := range proposed {
		if len(pc.TransferSyntaxes) > 0 {
			firstProposed[pc.ContextID] = pc.TransferSyntaxes[0]
		}
	}
	for _, nc := range results {
		ts := nc.TransferSyntax
		if ts == "" {
			// Not significant for rejected contexts, but the item must be present.
			ts = firstProposed[nc.ContextID]
			if ts == "" {
				ts = sopclass.ImplicitVRLittleEndian
			}
		}
		responses = append(responses, &pdu.PresentationContextItem{
			Type:      pdu.ItemTypePresentationContextResponse,
			ContextID: nc.ContextID,
			Result:    nc.Result,
			Items:     []pdu.SubItem{&pdu.TransferSyntaxSubItem{Name: ts}}})
	}
	userItems := []pdu.SubItem{
		&pdu.UserInformationMaximumLengthItem{MaximumLengthReceived: uint32(params.MaxPDUSize)},
		&pdu.ImplementationClassUIDSubItem{Name: params.ImplementationClassUID},
	}
	if asyncWindow {
		// Operations are performed synchronously.
		userItems = append(userItems, &pdu.AsynchronousOperationsWindowSubItem{MaxOpsInvoked: 1, MaxOpsPerformed: 1})
	}
	for i := range roleItems {
		userItems = append(userItems, &roleItems[i])
	}
	if params.ImplementationVersionName != "" {
		userItems = append(userItems, &pdu.ImplementationVersionNameSubItem{Name: params.ImplementationVersionName})
	}
	if params.ExtendedNegotiation != nil {
		for _, item := range extended {
			if len(m.abstractSyntaxNameToContextIDMap[item.SOPClassUID]) == 0 {
				continue
			}
			if answer := params.ExtendedNegotiation(item); answer != nil {
				m.extendedNegotiation = append(m.extendedNegotiation, *answer)
				userItems = append(userItems, answer)
			}
		}
	}
	if identityResponse != nil {
		userItems = append(userItems, &pdu.UserIdentityResponseSubItem{ServerResponse: identityResponse})
	}
	responses = append(responses, &pdu.UserInformationItem{Items: userItems})
	vlog.VI(1).Infof("%s: received associate request, #contexts:%v, maxPDU:%v, implclass:%v, version:%v",
		m.label, len(m.contextIDToAbstractSyntaxNameMap),
		m.peerMaxPDUSize, m.peerImplementationClassUID, m.peerImplementationVersionName)
	return responses, nil
}

// Called by the requestor when A_ASSOCIATE_AC PDU arrives from the provider.
func (m *contextManager) onAssociateResponse(ac *pdu.AAssociate) error {
	var results []NegotiatedContext
	roles := map[string]*pdu.RoleSelectionSubItem{}
	answered := map[byte]bool{}
	for _, responseItem := range ac.Items {
		switch ri := responseItem.(type) {
		case *pdu.PresentationContextItem:
			request, ok := m.tmpRequests[ri.ContextID]
			if !ok {
				return fmt.Errorf("unknown context ID %d in A_ASSOCIATE_AC: %v", ri.ContextID, ri)
			}
			if answered[ri.ContextID] {
				return fmt.Errorf("context ID %d answered twice in A_ASSOCIATE_AC", ri.ContextID)
			}
			answered[ri.ContextID] = true
			nc := NegotiatedContext{
				ContextID:      ri.ContextID,
				AbstractSyntax: request.AbstractSyntax,
				Result:         ri.Result,
			}
			if ri.Result == pdu.PresentationContextAccepted {
				syntaxes := ri.TransferSyntaxes()
				if len(syntaxes) != 1 {
					return fmt.Errorf("expect one transfer syntax in an accepted context, found %d: %v", len(syntaxes), ri)
				}
				if firstCommonTransferSyntax(syntaxes, request.TransferSyntaxes) == "" {
					return fmt.Errorf("transfer syntax %s was not proposed for context %d",
						uidString(syntaxes[0]), ri.ContextID)
				}
				nc.TransferSyntax = syntaxes[0]
			}
			results = append(results, nc)
		case *pdu.UserInformationItem:
			for _, subItem := range ri.Items {
				switch c := subItem.(type) {
				case *pdu.UserInformationMaximumLengthItem:
					m.peerMaxPDUSize = int(c.MaximumLengthReceived)
				case *pdu.ImplementationClassUIDSubItem:
					m.peerImplementationClassUID = c.Name
				case *pdu.ImplementationVersionNameSubItem:
					m.peerImplementationVersionName = c.Name
				case *pdu.RoleSelectionSubItem:
					roles[c.SOPClassUID] = c
				case *pdu.SOPClassExtendedNegotiationSubItem:
					m.extendedNegotiation = append(m.extendedNegotiation, *c)
				case *pdu.UserIdentityResponseSubItem:
					m.userIdentityResponse = c.ServerResponse
				}
			}
		}
	}
	for id, request := range m.tmpRequests {
		if !answered[id] {
			results = append(results, NegotiatedContext{
				ContextID:      id,
				AbstractSyntax: request.AbstractSyntax,
				Result:         pdu.PresentationContextProviderRejectionNoReason,
			})
		}
	}
	for i := range results {
		if !results[i].Accepted() {
			continue
		}
		if r, ok := roles[results[i].AbstractSyntax]; ok {
			results[i].SCURole, results[i].SCPRole = r.SCURole, r.SCPRole
		} else {
			results[i].SCURole = true
		}
	}
	m.setNegotiated(results)
	vlog.VI(1).Infof("%s: received associate response, #contexts:%v, maxPDU:%v, implclass:%v, version:%v",
		m.label, len(m.contextIDToAbstractSyntaxNameMap),
		m.peerMaxPDUSize, m.peerImplementationClassUID, m.peerImplementationVersionName)
	if len(m.contextIDToAbstractSyntaxNameMap) == 0 {
		return ErrNoPresentationContext
	}
	return nil
}

func (m *contextManager) setNegotiated(results []NegotiatedContext) {
	sort.Slice(results, func(i, j int) bool { return results[i].ContextID < results[j].ContextID })
	m.negotiated = results
	for _, nc := range results {
		if nc.Accepted() {
			addContextMapping(m, nc)
		}
	}
}

// Add a mapping between a (global) UID and a (per-session) context ID.
func addContextMapping(m *contextManager, nc NegotiatedContext) {
	vlog.VI(2).Infof("%s: map context %d -> %s, %s",
		m.label, nc.ContextID, uidString(nc.AbstractSyntax), uidString(nc.TransferSyntax))
	doassert(nc.AbstractSyntax != "")
	doassert(nc.TransferSyntax != "")
	doassert(nc.ContextID%2 == 1)
	e := &contextManagerEntry{
		contextID:         nc.ContextID,
		abstractSyntaxUID: nc.AbstractSyntax,
		transferSyntaxUID: nc.TransferSyntax,
		scuRole:           nc.SCURole,
		scpRole:           nc.SCPRole,
	}
	m.contextIDToAbstractSyntaxNameMap[nc.ContextID] = e
	m.abstractSyntaxNameToContextIDMap[nc.AbstractSyntax] = append(m.abstractSyntaxNameToContextIDMap[nc.AbstractSyntax], e)
}

// lookupByAbstractSyntaxUID finds an accepted context for the abstract
// syntax. When several are accepted, the one whose transfer syntax is
// preferredTransferSyntax wins; otherwise the lowest context ID.
func (m *contextManager) lookupByAbstractSyntaxUID(name, preferredTransferSyntax string) (contextManagerEntry, error) {
	return m.lookup(name, preferredTransferSyntax, false)
}

// lookupForSubOperation is like lookupByAbstractSyntaxUID, but only
// considers contexts on which the requestor agreed to act as SCP. The
// acceptor uses it to send C-STORE sub-operations of C-GET.
func (m *contextManager) lookupForSubOperation(name, preferredTransferSyntax string) (contextManagerEntry, error) {
	return m.lookup(name, preferredTransferSyntax, true)
}

func (m *contextManager) lookup(name, preferredTransferSyntax string, requestorSCP bool) (contextManagerEntry, error) {
	var found *contextManagerEntry
	for _, e := range m.abstractSyntaxNameToContextIDMap[name] {
		if requestorSCP && !e.scpRole {
			continue
		}
		if found == nil || (e.transferSyntaxUID == preferredTransferSyntax && found.transferSyntaxUID != preferredTransferSyntax) {
			found = e
		}
	}
	if found == nil {
		return contextManagerEntry{}, fmt.Errorf("%w for %s", ErrNoPresentationContext, uidString(name))
	}
	return *found, nil
}

// Convert a contextID to a UID.
func (m *contextManager) lookupByContextID(contextID byte) (contextManagerEntry, error) {
	e, ok := m.contextIDToAbstractSyntaxNameMap[contextID]
	if !ok {
		return contextManagerEntry{}, fmt.Errorf("%s: unknown context ID %d", m.label, contextID)
	}
	return *e, nil
}

// contexts returns a copy of the negotiation outcome.
func (m *contextManager) contexts() []NegotiatedContext {
	return append([]NegotiatedContext(nil), m.negotiated...)
}
