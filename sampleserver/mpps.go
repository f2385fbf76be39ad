package main

import (
	"sync"

	"github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomtag"
	"github.com/medimesh/go-netdicom"
	"github.com/medimesh/go-netdicom/dimse"
	"v.io/x/lib/vlog"
)

// procedureSteps keeps the instances created through N-CREATE in memory, e.g.
// modality performed procedure steps. N-SET updates them, N-GET reads them
// and N-DELETE drops them.
type procedureSteps struct {
	mu        sync.Mutex
	instances map[string]*dicom.DataSet // keyed by SOP instance UID; guarded by mu.
}

func newProcedureSteps() *procedureSteps {
	return &procedureSteps{instances: map[string]*dicom.DataSet{}}
}

func (p *procedureSteps) create(e *netdicom.ServiceEvent) (dimse.Status, *dicom.DataSet) {
	req := e.Command.(*dimse.NCreateRq)
	ds := &dicom.DataSet{}
	if e.Data != nil {
		var err error
		if ds, err = e.DataSet(); err != nil {
			return dimse.Status{Status: dimse.StatusInvalidAttributeValue, ErrorComment: err.Error()}, nil
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.instances[req.AffectedSOPInstanceUID]; ok {
		return dimse.Status{Status: dimse.StatusDuplicateSOPInstance}, nil
	}
	p.instances[req.AffectedSOPInstanceUID] = ds
	vlog.Infof("N-CREATE %s from %s", req.AffectedSOPInstanceUID, e.Conn.CallingAETitle)
	return dimse.Success, nil
}

func (p *procedureSteps) set(e *netdicom.ServiceEvent) (dimse.Status, *dicom.DataSet) {
	req := e.Command.(*dimse.NSetRq)
	mods, err := e.DataSet()
	if err != nil {
		return dimse.Status{Status: dimse.StatusInvalidAttributeValue, ErrorComment: err.Error()}, nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	ds, ok := p.instances[req.RequestedSOPInstanceUID]
	if !ok {
		return dimse.Status{Status: dimse.StatusNoSuchObjectInstance}, nil
	}
	for _, mod := range mods.Elements {
		replaced := false
		for i, elem := range ds.Elements {
			if elem.Tag == mod.Tag {
				ds.Elements[i] = mod
				replaced = true
				break
			}
		}
		if !replaced {
			ds.Elements = append(ds.Elements, mod)
		}
	}
	vlog.Infof("N-SET %s: %d attributes", req.RequestedSOPInstanceUID, len(mods.Elements))
	return dimse.Success, nil
}

func (p *procedureSteps) get(e *netdicom.ServiceEvent) (dimse.Status, *dicom.DataSet) {
	req := e.Command.(*dimse.NGetRq)
	p.mu.Lock()
	defer p.mu.Unlock()
	ds, ok := p.instances[req.RequestedSOPInstanceUID]
	if !ok {
		return dimse.Status{Status: dimse.StatusNoSuchObjectInstance}, nil
	}
	if len(req.AttributeIdentifierList) == 0 {
		return dimse.Success, &dicom.DataSet{Elements: append([]*dicom.Element(nil), ds.Elements...)}
	}
	wanted := map[dicomtag.Tag]bool{}
	for _, tag := range req.AttributeIdentifierList {
		wanted[tag] = true
	}
	out := &dicom.DataSet{}
	for _, elem := range ds.Elements {
		if wanted[elem.Tag] {
			out.Elements = append(out.Elements, elem)
		}
	}
	return dimse.Success, out
}

func (p *procedureSteps) delete(e *netdicom.ServiceEvent) (dimse.Status, *dicom.DataSet) {
	req := e.Command.(*dimse.NDeleteRq)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.instances[req.RequestedSOPInstanceUID]; !ok {
		return dimse.Status{Status: dimse.StatusNoSuchObjectInstance}, nil
	}
	delete(p.instances, req.RequestedSOPInstanceUID)
	return dimse.Success, nil
}
