package sopclass_test

import (
	"testing"

	"github.com/medimesh/go-netdicom/sopclass"
)

func TestUIDsAreUnique(t *testing.T) {
	seen := map[string]string{}
	for _, uid := range sopclass.UIDs(sopclass.VerificationClasses, sopclass.StorageClasses,
		sopclass.QRFindClasses, sopclass.QRMoveClasses, sopclass.QRGetClasses, sopclass.NormalizedClasses) {
		if prev, ok := seen[uid]; ok {
			t.Errorf("UID %s listed twice (%s)", uid, prev)
		}
		seen[uid] = uid
	}
}

func TestLookup(t *testing.T) {
	c, ok := sopclass.Lookup("1.2.840.10008.5.1.4.1.1.2")
	if !ok || c.Name != "CTImageStorage" {
		t.Errorf("Lookup(CT) = %v, %v", c, ok)
	}
	if _, ok := sopclass.Lookup("1.2.3.4"); ok {
		t.Error("Lookup found an unknown UID")
	}
	if !sopclass.IsStorage("1.2.840.10008.5.1.4.1.1.4") {
		t.Error("MR image storage is not a storage class")
	}
	if sopclass.IsStorage(sopclass.Verification) {
		t.Error("verification is a storage class")
	}
}
