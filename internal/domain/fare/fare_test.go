package fare

import (
	"errors"
	"testing"
)

func TestRoundHalfUp(t *testing.T) {
	cases := []struct {
		in   float64
		want int64
	}{
		{0, 0},
		{0.4, 0},
		{0.5, 1},
		{1.49, 1},
		{1.5, 2},
		{99.999, 100},
		{433.33, 433},
	}
	for _, tc := range cases {
		if got := Round(tc.in); got != tc.want {
			t.Errorf("Round(%v) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestForwardKnownBreakdown(t *testing.T) {
	// driverFare=1000, no night charge, no surge:
	// commission=100, gst=round(1100*0.05)=55, customer=1155
	b, err := Forward(1000, 0, 1, 0)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if b.Commission != 100 {
		t.Errorf("commission = %d, want 100", b.Commission)
	}
	if b.GST != 55 {
		t.Errorf("gst = %d, want 55", b.GST)
	}
	if b.SurgeAmount != 0 {
		t.Errorf("surge = %d, want 0", b.SurgeAmount)
	}
	if b.CustomerFare != 1155 {
		t.Errorf("customer fare = %d, want 1155", b.CustomerFare)
	}
}

func TestForwardWithNightChargeAndSurge(t *testing.T) {
	b, err := Forward(800, 50, 1.5, 0)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if b.Commission != 80 {
		t.Errorf("commission = %d, want 80", b.Commission)
	}
	if b.GST != 44 {
		t.Errorf("gst = %d, want 44", b.GST)
	}
	if b.SurgeAmount != 400 {
		t.Errorf("surge = %d, want 400", b.SurgeAmount)
	}
	if want := int64(800 + 80 + 44 + 50 + 400); b.CustomerFare != want {
		t.Errorf("customer fare = %d, want %d", b.CustomerFare, want)
	}
}

func TestForwardKeepsSuppliedCustomerFare(t *testing.T) {
	b, err := Forward(1000, 0, 1, 1200)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if b.CustomerFare != 1200 {
		t.Errorf("customer fare = %d, want supplied 1200", b.CustomerFare)
	}
}

func TestBackwardLegacyRecord(t *testing.T) {
	// customerFare=500, no night charge:
	// driverFare=round(500/1.155)=433, commission=43, gst=24, 433+43+24=500
	b, err := Backward(500, 0)
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	if b.DriverFare != 433 {
		t.Errorf("driver fare = %d, want 433", b.DriverFare)
	}
	if b.Commission != 43 {
		t.Errorf("commission = %d, want 43", b.Commission)
	}
	if b.GST != 24 {
		t.Errorf("gst = %d, want 24", b.GST)
	}
	if sum := b.DriverFare + b.Commission + b.GST; sum != 500 {
		t.Errorf("parts sum = %d, want 500", sum)
	}
}

func TestBackwardRecoversForward(t *testing.T) {
	// round-trip property: forward then backward recovers the driver fare
	// within tolerance for a spread of inputs
	for _, driverFare := range []int64{1, 7, 99, 433, 1000, 2500, 99999} {
		for _, night := range []int64{0, 20, 150} {
			fwd, err := Forward(driverFare, night, 1, 0)
			if err != nil {
				t.Fatalf("forward(%d,%d): %v", driverFare, night, err)
			}
			back, err := Backward(fwd.CustomerFare, night)
			if err != nil {
				t.Fatalf("backward(%d,%d): %v", fwd.CustomerFare, night, err)
			}
			diff := back.DriverFare - driverFare
			if diff < 0 {
				diff = -diff
			}
			if diff > RoundTripTolerance {
				t.Errorf("round trip driverFare=%d night=%d: recovered %d (diff %d)",
					driverFare, night, back.DriverFare, diff)
			}
		}
	}
}

func TestBackwardFallbackOnToleranceMiss(t *testing.T) {
	// night charge above the customer total: no non-negative driver fare can
	// reproduce the record, so the fallback clamps to zero and reports it
	b, err := Backward(10, 100)
	if !errors.Is(err, ErrToleranceExceeded) {
		t.Fatalf("err = %v, want ErrToleranceExceeded", err)
	}
	if b.DriverFare != 0 {
		t.Errorf("fallback driver fare = %d, want clamped 0", b.DriverFare)
	}
	if b.CustomerFare != 10 || b.NightCharge != 100 {
		t.Errorf("recorded amounts changed: customer=%d night=%d, want 10/100",
			b.CustomerFare, b.NightCharge)
	}
}

func TestBackwardClampsAtZero(t *testing.T) {
	b, _ := Backward(10, 10)
	if b.DriverFare < 0 {
		t.Errorf("driver fare = %d, want >= 0", b.DriverFare)
	}
}

func TestReconcileModeSelection(t *testing.T) {
	if _, err := Reconcile(Inputs{}); !errors.Is(err, ErrDataIncomplete) {
		t.Errorf("no data: err = %v, want ErrDataIncomplete", err)
	}

	b, err := Reconcile(Inputs{DriverFare: 1000})
	if err != nil {
		t.Fatalf("forward mode: %v", err)
	}
	if b.CustomerFare != 1155 {
		t.Errorf("forward mode customer fare = %d, want 1155", b.CustomerFare)
	}

	b, err = Reconcile(Inputs{CustomerFare: 500})
	if err != nil {
		t.Fatalf("backward mode: %v", err)
	}
	if b.DriverFare != 433 {
		t.Errorf("backward mode driver fare = %d, want 433", b.DriverFare)
	}
}

func TestPlatformRevenue(t *testing.T) {
	b, err := Forward(1000, 25, 1.2, 0)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	want := b.Commission + b.GST + b.NightCharge + b.SurgeAmount
	if got := b.PlatformRevenue(); got != want {
		t.Errorf("platform revenue = %d, want %d", got, want)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		b    Breakdown
		want bool
	}{
		{"both zero", Breakdown{}, false},
		{"unreconciled forward data", Breakdown{CustomerFare: 500}, false},
		{"consistent", Breakdown{DriverFare: 433, Commission: 43, GST: 24, CustomerFare: 500}, true},
		{"within tolerance", Breakdown{DriverFare: 433, Commission: 43, GST: 24, CustomerFare: 503}, true},
		{"out of tolerance", Breakdown{DriverFare: 433, Commission: 43, GST: 24, CustomerFare: 520}, false},
	}
	for _, tc := range cases {
		if got := tc.b.Validate(); got != tc.want {
			t.Errorf("%s: Validate() = %v, want %v", tc.name, got, tc.want)
		}
	}
}
