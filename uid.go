package netdicom

import (
	"math/big"

	"github.com/google/uuid"
)

// DefaultImplementationClassUID is sent in A-ASSOCIATE-RQ and -AC unless the
// params override it.
const DefaultImplementationClassUID = "2.25.294716548036623781553130630726065953641"

// DefaultImplementationVersionName is sent along with
// DefaultImplementationClassUID.
const DefaultImplementationVersionName = "GONETDICOM_1_2"

// NewUID generates a globally unique DICOM UID under the "2.25" root, which
// embeds a random UUID as a decimal integer (PS3.5 B.2).
func NewUID() string {
	id := uuid.New()
	var n big.Int
	n.SetBytes(id[:])
	return "2.25." + n.String()
}
