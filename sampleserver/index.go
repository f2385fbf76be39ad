package main

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomtag"
	"github.com/medimesh/go-netdicom"
	"github.com/medimesh/go-netdicom/dimse"
	"v.io/x/lib/vlog"
)

// index is the set of DICOM files the server manages. Pixel data is not kept
// in memory; C-GET and C-MOVE reread the file.
type index struct {
	mu       sync.Mutex
	datasets map[string]*dicom.DataSet // keyed by path; guarded by mu.
}

func newIndex() *index {
	return &index{datasets: map[string]*dicom.DataSet{}}
}

func (ix *index) len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.datasets)
}

func (ix *index) add(path string) error {
	ds, err := dicom.ReadDataSetFromFile(path, dicom.ReadOptions{DropPixelData: true})
	if err != nil {
		return err
	}
	ix.mu.Lock()
	ix.datasets[path] = ds
	ix.mu.Unlock()
	return nil
}

// scan finds DICOM files in or under dir and adds them. A file is a DICOM
// file if its name ends in ".dcm" or if it sits next to a DICOMDIR.
func (ix *index) scan(dir string) error {
	readFile := func(path string) {
		if err := ix.add(path); err != nil {
			vlog.Errorf("%s: failed to parse dicom file: %v", path, err)
			return
		}
		vlog.VI(1).Infof("%s: read dicom file", path)
	}
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			vlog.Errorf("%v: skip file: %v", path, err)
			return nil
		}
		if d.IsDir() {
			if _, err := os.Stat(filepath.Join(path, "DICOMDIR")); err != nil {
				return nil
			}
			subpaths, err := filepath.Glob(filepath.Join(path, "*"))
			if err != nil {
				vlog.Errorf("%v: glob: %v", path, err)
				return nil
			}
			for _, subpath := range subpaths {
				if !strings.HasSuffix(subpath, "DICOMDIR") && !strings.HasSuffix(subpath, ".dcm") {
					readFile(subpath)
				}
			}
			return nil
		}
		if strings.HasSuffix(path, ".dcm") {
			readFile(path)
		}
		return nil
	})
}

type filterMatch struct {
	path  string
	ds    *dicom.DataSet
	elems []*dicom.Element // one per filter, in filter order
}

// skipInQuery lists identifier attributes that never appear in stored objects.
var skipInQuery = map[dicomtag.Tag]bool{
	dicomtag.QueryRetrieveLevel:   true,
	dicomtag.SpecificCharacterSet: true,
}

// match returns the files whose attributes match every filter, sorted by
// path.
func (ix *index) match(filters []*dicom.Element) ([]filterMatch, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	var matches []filterMatch
	for path, ds := range ix.datasets {
		m := filterMatch{path: path, ds: ds}
		matched := true
		for _, filter := range filters {
			if skipInQuery[filter.Tag] {
				m.elems = append(m.elems, filter)
				continue
			}
			ok, elem, err := dicom.Query(ds, filter)
			if err != nil {
				return nil, err
			}
			if !ok {
				vlog.VI(2).Infof("%s: filter %v missed", path, filter)
				matched = false
				break
			}
			if elem == nil {
				if elem, err = dicom.NewElement(filter.Tag); err != nil {
					return nil, err
				}
			}
			m.elems = append(m.elems, elem)
		}
		if matched {
			matches = append(matches, m)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].path < matches[j].path })
	return matches, nil
}

var unsafePathChars = regexp.MustCompile(`[^0-9A-Za-z._-]`)

// store writes a received object under dir and indexes it.
func (ix *index) store(dir string, e *netdicom.ServiceEvent) dimse.Status {
	req := e.Command.(*dimse.CStoreRq)
	data, err := netdicom.EncodeFile(req.AffectedSOPClassUID, req.AffectedSOPInstanceUID, e.Context.TransferSyntax, e.Data)
	if err != nil {
		vlog.Errorf("C-STORE %s: %v", req.AffectedSOPInstanceUID, err)
		return dimse.Status{Status: dimse.CStoreCannotUnderstand, ErrorComment: err.Error()}
	}
	name := unsafePathChars.ReplaceAllString(req.AffectedSOPInstanceUID, "_")
	if name == "" {
		name = netdicom.NewUID()
	}
	path := filepath.Join(dir, name+".dcm")
	vlog.Infof("Writing %s (from %s)", path, e.Conn.CallingAETitle)
	if err := os.WriteFile(path, data, 0644); err != nil {
		vlog.Errorf("%s: %v", path, err)
		return dimse.Status{Status: dimse.CStoreOutOfResources, ErrorComment: err.Error()}
	}
	if err := ix.add(path); err != nil {
		vlog.Errorf("%s: failed to parse dicom file: %v", path, err)
	}
	return dimse.Success
}

// find answers C-FIND with the matching attributes of every indexed file.
func (ix *index) find(e *netdicom.ServiceEvent) iter.Seq2[dimse.Status, *dicom.DataSet] {
	return func(yield func(dimse.Status, *dicom.DataSet) bool) {
		filter, err := e.DataSet()
		if err != nil {
			yield(dimse.Status{Status: dimse.CFindUnableToProcess, ErrorComment: err.Error()}, nil)
			return
		}
		matches, err := ix.match(filter.Elements)
		vlog.Infof("C-FIND from %s: %d matches, err %v", e.Conn.CallingAETitle, len(matches), err)
		if err != nil {
			yield(dimse.Status{Status: dimse.CFindUnableToProcess, ErrorComment: err.Error()}, nil)
			return
		}
		for _, m := range matches {
			if e.IsCancelled() {
				yield(dimse.Status{Status: dimse.StatusCancel}, nil)
				return
			}
			if !yield(dimse.Pending, &dicom.DataSet{Elements: m.elems}) {
				return
			}
		}
	}
}

// retrieve answers C-GET and C-MOVE by rereading every matching file.
func (ix *index) retrieve(e *netdicom.ServiceEvent) netdicom.Retrieval {
	filter, err := e.DataSet()
	if err != nil {
		return failedRetrieval(err)
	}
	matches, err := ix.match(filter.Elements)
	vlog.Infof("%s from %s: %d matches, err %v", retrieveName(e), e.Conn.CallingAETitle, len(matches), err)
	if err != nil {
		return failedRetrieval(err)
	}
	return netdicom.Retrieval{
		Total: len(matches),
		Matches: func(yield func(dimse.Status, *dicom.DataSet) bool) {
			for _, m := range matches {
				ds, err := dicom.ReadDataSetFromFile(m.path, dicom.ReadOptions{})
				if err != nil {
					// A nil object counts as a failed sub-operation.
					vlog.Errorf("%s: %v", m.path, err)
					ds = nil
				}
				if !yield(dimse.Pending, ds) {
					return
				}
			}
		},
	}
}

func retrieveName(e *netdicom.ServiceEvent) string {
	if _, ok := e.Command.(*dimse.CMoveRq); ok {
		return "C-MOVE"
	}
	return "C-GET"
}

func failedRetrieval(err error) netdicom.Retrieval {
	return netdicom.Retrieval{
		Matches: func(yield func(dimse.Status, *dicom.DataSet) bool) {
			yield(dimse.Status{
				Status:       dimse.CMoveUnableToProcess,
				ErrorComment: fmt.Sprintf("bad identifier: %v", err),
			}, nil)
		},
	}
}
