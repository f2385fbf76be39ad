package netdicom

import (
	"fmt"

	"github.com/grailbio/go-dicom"
	"github.com/grailbio/go-dicom/dicomio"
	"github.com/grailbio/go-dicom/dicomtag"
	"github.com/grailbio/go-dicom/dicomuid"
	"github.com/medimesh/go-netdicom/sopclass"
)

// uidString returns a human-readable form of a UID for logging.
func uidString(uid string) string {
	if uid == "" {
		return ""
	}
	return dicomuid.UIDString(uid)
}

// encodeElements serializes elements in the given transfer syntax, as the
// data set part of a DIMSE message. Elements in the file meta group (0002)
// are skipped; they never travel over the network. An empty data set encodes
// as a non-nil empty slice, so that it is still sent as a data PDV.
func encodeElements(elems []*dicom.Element, transferSyntaxUID string) ([]byte, error) {
	e := dicomio.NewBytesEncoderWithTransferSyntax(transferSyntaxUID)
	for _, elem := range elems {
		if elem.Tag.Group == dicomtag.MetadataGroup {
			continue
		}
		dicom.WriteElement(e, elem)
	}
	if err := e.Error(); err != nil {
		return nil, fmt.Errorf("encode data set in %s: %w", uidString(transferSyntaxUID), err)
	}
	if data := e.Bytes(); data != nil {
		return data, nil
	}
	return []byte{}, nil
}

// decodeElements is the inverse of encodeElements.
func decodeElements(data []byte, transferSyntaxUID string) ([]*dicom.Element, error) {
	d := dicomio.NewBytesDecoderWithTransferSyntax(data, transferSyntaxUID)
	var elems []*dicom.Element
	for !d.EOF() {
		elem := dicom.ReadElement(d, dicom.ReadOptions{})
		if d.Error() != nil {
			break
		}
		elems = append(elems, elem)
	}
	if err := d.Error(); err != nil {
		return nil, fmt.Errorf("decode data set in %s: %w", uidString(transferSyntaxUID), err)
	}
	return elems, nil
}

// DecodeDataSet parses the data set of a DIMSE message, encoded in the
// transfer syntax of its presentation context.
func DecodeDataSet(data []byte, transferSyntaxUID string) (*dicom.DataSet, error) {
	elems, err := decodeElements(data, transferSyntaxUID)
	if err != nil {
		return nil, err
	}
	return &dicom.DataSet{Elements: elems}, nil
}

func findString(ds *dicom.DataSet, tag dicomtag.Tag) (string, error) {
	elem, err := ds.FindElementByTag(tag)
	if err != nil {
		return "", err
	}
	return elem.GetString()
}

// storeInfo extracts what a C-STORE request needs from a data set read from a
// DICOM file. The transfer syntax is empty when the file meta group is
// missing.
func storeInfo(ds *dicom.DataSet) (sopClassUID, sopInstanceUID, transferSyntaxUID string, err error) {
	if sopClassUID, err = findString(ds, dicomtag.MediaStorageSOPClassUID); err != nil {
		if sopClassUID, err = findString(ds, dicomtag.SOPClassUID); err != nil {
			return "", "", "", fmt.Errorf("data set has no SOP class UID: %w", err)
		}
	}
	if sopInstanceUID, err = findString(ds, dicomtag.MediaStorageSOPInstanceUID); err != nil {
		if sopInstanceUID, err = findString(ds, dicomtag.SOPInstanceUID); err != nil {
			return "", "", "", fmt.Errorf("data set has no SOP instance UID: %w", err)
		}
	}
	transferSyntaxUID, _ = findString(ds, dicomtag.TransferSyntaxUID)
	return sopClassUID, sopInstanceUID, transferSyntaxUID, nil
}

// EncodeFile serializes a received data set as a DICOM part 10 file: the
// 128-byte preamble and the file meta group, followed by the data as
// received.
func EncodeFile(sopClassUID, sopInstanceUID, transferSyntaxUID string, data []byte) ([]byte, error) {
	if transferSyntaxUID == "" {
		transferSyntaxUID = sopclass.ImplicitVRLittleEndian
	}
	e := dicomio.NewBytesEncoder(nil, dicomio.UnknownVR)
	dicom.WriteFileHeader(e, []*dicom.Element{
		dicom.MustNewElement(dicomtag.TransferSyntaxUID, transferSyntaxUID),
		dicom.MustNewElement(dicomtag.MediaStorageSOPClassUID, sopClassUID),
		dicom.MustNewElement(dicomtag.MediaStorageSOPInstanceUID, sopInstanceUID),
	})
	e.WriteBytes(data)
	if err := e.Error(); err != nil {
		return nil, err
	}
	return e.Bytes(), nil
}
