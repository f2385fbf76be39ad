package netdicom_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/medimesh/go-netdicom"
	"github.com/medimesh/go-netdicom/dimse"
	"github.com/medimesh/go-netdicom/sopclass"
)

// FuzzAssociation runs a store and an echo over a connection whose PDUs are
// dropped, corrupted or cut short according to the fuzz input. Neither side
// may hang or panic; errors are expected.
func FuzzAssociation(f *testing.F) {
	f.Add([]byte{})
	f.Add([]byte{0, 0, 0, 0, 0, 0, 0, 0})
	f.Add([]byte{5, 1, 0, 5, 2, 7, 3, 2})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff})
	f.Fuzz(func(t *testing.T, data []byte) {
		// Provider and user consume alternate halves of the input.
		var providerFaults, userFaults []byte
		for i, b := range data {
			if i%2 == 0 {
				providerFaults = append(providerFaults, b)
			} else {
				userFaults = append(userFaults, b)
			}
		}
		sp, err := netdicom.NewServiceProvider(netdicom.ServiceProviderParams{
			ARTIMTimeout: time.Second,
			DIMSETimeout: time.Second,
			CStore:       func(*netdicom.ServiceEvent) dimse.Status { return dimse.Success },
			Faults:       netdicom.NewFaultInjector(providerFaults),
		})
		if err != nil {
			t.Fatal(err)
		}
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatal(err)
		}
		go sp.Serve(listener)
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			sp.Shutdown(ctx)
		}()

		params, err := netdicom.NewServiceUserParams("dontcare", "fuzzclient",
			append(sopclass.VerificationClasses, sopclass.StorageClasses...), testSyntaxes)
		if err != nil {
			t.Fatal(err)
		}
		params.ARTIMTimeout = time.Second
		params.DIMSETimeout = time.Second
		params.Faults = netdicom.NewFaultInjector(userFaults)
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		su, err := netdicom.Associate(ctx, listener.Addr().String(), params)
		if err != nil {
			return
		}
		defer su.Release()
		if err := su.CStore(ctx, newTestDataSet("1.2.3.4", "Fuzz^Patient")); err != nil {
			return
		}
		su.CEcho(ctx)
	})
}
