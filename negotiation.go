package netdicom

import (
	"fmt"

	"github.com/medimesh/go-netdicom/pdu"
)

// Role is the set of DIMSE roles an acceptor can play for an abstract
// syntax.
type Role int

const (
	// RoleDefault is the same as RoleSCP.
	RoleDefault Role = iota
	RoleSCP
	RoleSCU
	RoleBoth
)

func (r Role) canSCP() bool { return r != RoleSCU }
func (r Role) canSCU() bool { return r == RoleSCU || r == RoleBoth }

func (r Role) String() string {
	switch r {
	case RoleDefault, RoleSCP:
		return "scp"
	case RoleSCU:
		return "scu"
	case RoleBoth:
		return "scu+scp"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ProposedContext is one presentation context in an A-ASSOCIATE-RQ.
type ProposedContext struct {
	ContextID        byte // Odd, 1-255
	AbstractSyntax   string
	TransferSyntaxes []string // In the requestor's order of preference.
}

// SupportedContext is one entry in an acceptor's table of abstract syntaxes.
type SupportedContext struct {
	AbstractSyntax   string
	TransferSyntaxes []string
	Role             Role
}

// RoleSelection is a role proposal for one SOP class, from the point of view
// of the association requestor.
type RoleSelection struct {
	SOPClassUID string
	SCU         bool
	SCP         bool
}

// NegotiatedContext is the outcome of negotiating one presentation context.
// SCURole and SCPRole are the roles of the association requestor; the
// acceptor plays the opposite ones.
type NegotiatedContext struct {
	ContextID      byte
	AbstractSyntax string
	Result         pdu.PresentationContextResult
	TransferSyntax string // Empty unless Result is PresentationContextAccepted.
	SCURole        bool
	SCPRole        bool
}

// Accepted is true if the context can carry DIMSE messages.
func (c NegotiatedContext) Accepted() bool {
	return c.Result == pdu.PresentationContextAccepted
}

func (c NegotiatedContext) String() string {
	return fmt.Sprintf("context{id:%d abstract:%s result:%v transfer:%s scu:%v scp:%v}",
		c.ContextID, uidString(c.AbstractSyntax), c.Result, uidString(c.TransferSyntax), c.SCURole, c.SCPRole)
}

// NegotiatePresentationContexts answers a requestor's presentation contexts
// against the acceptor's supported table. For each proposal it picks the first
// transfer syntax, in the requestor's order, that the acceptor supports for
// the abstract syntax. An unknown abstract syntax yields result 3 and a
// transfer syntax mismatch yields result 4; other contexts are unaffected.
//
// roles are the requestor's role selection items. Without one, the requestor
// is the SCU. The returned items are the role selection answers to put in the
// A-ASSOCIATE-AC, one per proposed SOP class that has an accepted context.
func NegotiatePresentationContexts(
	proposed []ProposedContext,
	supported []SupportedContext,
	roles []RoleSelection) ([]NegotiatedContext, []pdu.RoleSelectionSubItem) {
	roleMap := map[string]RoleSelection{}
	for _, r := range roles {
		if _, ok := roleMap[r.SOPClassUID]; !ok {
			roleMap[r.SOPClassUID] = r
		}
	}
	var results []NegotiatedContext
	var roleItems []pdu.RoleSelectionSubItem
	answered := map[string]bool{}
	for _, p := range proposed {
		nc := NegotiatedContext{
			ContextID:      p.ContextID,
			AbstractSyntax: p.AbstractSyntax,
			Result:         pdu.PresentationContextProviderRejectionAbstractSyntaxNotSupported,
		}
		s := findSupportedContext(supported, p.AbstractSyntax)
		if s != nil {
			nc.Result = pdu.PresentationContextProviderRejectionTransferSyntaxNotSupported
			if ts := firstCommonTransferSyntax(p.TransferSyntaxes, s.TransferSyntaxes); ts != "" {
				nc.Result = pdu.PresentationContextAccepted
				nc.TransferSyntax = ts
			}
		}
		if nc.Accepted() {
			r, proposedRole := roleMap[p.AbstractSyntax]
			if proposedRole {
				nc.SCURole = r.SCU && s.Role.canSCP()
				nc.SCPRole = r.SCP && s.Role.canSCU()
			} else {
				nc.SCURole = s.Role.canSCP()
			}
			if !nc.SCURole && !nc.SCPRole {
				nc.Result = pdu.PresentationContextUserRejection
				nc.TransferSyntax = ""
			} else if proposedRole && !answered[p.AbstractSyntax] {
				answered[p.AbstractSyntax] = true
				roleItems = append(roleItems, pdu.RoleSelectionSubItem{
					SOPClassUID: p.AbstractSyntax,
					SCURole:     nc.SCURole,
					SCPRole:     nc.SCPRole,
				})
			}
		}
		results = append(results, nc)
	}
	return results, roleItems
}

func findSupportedContext(supported []SupportedContext, abstractSyntax string) *SupportedContext {
	for i := range supported {
		if supported[i].AbstractSyntax == abstractSyntax {
			return &supported[i]
		}
	}
	return nil
}

func firstCommonTransferSyntax(proposed, supported []string) string {
	for _, p := range proposed {
		for _, s := range supported {
			if p == s {
				return p
			}
		}
	}
	return ""
}

// NewProposedContexts builds one presentation context per abstract syntax,
// each offering the same transfer syntaxes. Context IDs are 1, 3, 5, ...
func NewProposedContexts(abstractSyntaxes []string, transferSyntaxes []string) ([]ProposedContext, error) {
	if len(abstractSyntaxes) > 128 {
		return nil, fmt.Errorf("netdicom: %d abstract syntaxes proposed; at most 128 fit in one association", len(abstractSyntaxes))
	}
	var contexts []ProposedContext
	contextID := 1
	for _, uid := range abstractSyntaxes {
		contexts = append(contexts, ProposedContext{
			ContextID:        byte(contextID),
			AbstractSyntax:   uid,
			TransferSyntaxes: transferSyntaxes,
		})
		contextID += 2
	}
	return contexts, nil
}

// NewSupportedContexts builds an acceptor table that accepts every abstract
// syntax in the list with the same transfer syntaxes and role.
func NewSupportedContexts(abstractSyntaxes []string, transferSyntaxes []string, role Role) []SupportedContext {
	var contexts []SupportedContext
	for _, uid := range abstractSyntaxes {
		contexts = append(contexts, SupportedContext{
			AbstractSyntax:   uid,
			TransferSyntaxes: transferSyntaxes,
			Role:             role,
		})
	}
	return contexts
}
