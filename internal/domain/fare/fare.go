// Package fare derives the four-part fare breakdown of a ride (driver
// earnings, commission, tax, surcharges) from whichever fields the source
// record actually carries, and keeps forward and backward computation
// reconcilable within a bounded tolerance.
package fare

import (
	"errors"
	"math"
)

// Commission and GST rates are fixed platform policy; the backward solve
// below depends on the combined factor staying in sync with them.
const (
	CommissionRate = 0.10
	GSTRate        = 0.05

	// combinedFactor = 1 + CommissionRate + GSTRate*(1+CommissionRate)
	combinedFactor = 1.155

	// RoundTripTolerance bounds the forward/backward disagreement for a
	// reconstructed breakdown, in whole currency units.
	RoundTripTolerance = 2

	// ValidateTolerance bounds |driverFare + platformRevenue - customerFare|
	// before a ride is flagged for manual reconciliation.
	ValidateTolerance = 5
)

var (
	// ErrDataIncomplete is returned when a record carries neither a driver
	// fare nor a customer fare. The ride still progresses; it is flagged
	// for manual reconciliation instead of being silently defaulted.
	ErrDataIncomplete = errors.New("fare data incomplete: no driver fare and no customer fare")

	// ErrToleranceExceeded is returned when a reconstructed breakdown does
	// not reproduce the recorded customer fare within RoundTripTolerance.
	ErrToleranceExceeded = errors.New("fare tolerance exceeded")

	ErrNegativeAmount = errors.New("fare amounts must not be negative")
	ErrBadSurgeFactor = errors.New("surge factor must be >= 1")
)

// Breakdown is the reconciled fare of a single ride. Amounts are whole
// currency units.
type Breakdown struct {
	DriverFare   int64   `json:"driver_fare"`
	Commission   int64   `json:"commission_amount"`
	GST          int64   `json:"gst_amount"`
	NightCharge  int64   `json:"night_charge_amount"`
	SurgeAmount  int64   `json:"surge_amount"`
	SurgeFactor  float64 `json:"surge_factor"`
	CustomerFare int64   `json:"customer_fare"`
}

// Inputs is the raw fare data of a record before reconciliation. Zero
// values mean "not recorded": mode selection keys off which of DriverFare
// and CustomerFare are present.
type Inputs struct {
	DriverFare   int64
	NightCharge  int64
	SurgeFactor  float64
	CustomerFare int64
}

// Round rounds half-up to the nearest whole currency unit. Applied at each
// intermediate step, never on the final sum, so tolerance checks stay
// deterministic across forward and backward passes.
func Round(v float64) int64 {
	return int64(math.Floor(v + 0.5))
}

// Forward computes the full breakdown from a known driver fare.
func Forward(driverFare, nightCharge int64, surgeFactor float64, customerFare int64) (Breakdown, error) {
	if driverFare < 0 || nightCharge < 0 || customerFare < 0 {
		return Breakdown{}, ErrNegativeAmount
	}
	if surgeFactor == 0 {
		surgeFactor = 1
	}
	if surgeFactor < 1 {
		return Breakdown{}, ErrBadSurgeFactor
	}

	b := Breakdown{
		DriverFare:  driverFare,
		NightCharge: nightCharge,
		SurgeFactor: surgeFactor,
	}
	b.Commission = Round(float64(driverFare) * CommissionRate)
	b.GST = Round(float64(driverFare+b.Commission) * GSTRate)
	if surgeFactor > 1 {
		b.SurgeAmount = Round(float64(driverFare) * (surgeFactor - 1))
	}

	// a customer fare already present on the record wins over the derived sum
	if customerFare > 0 {
		b.CustomerFare = customerFare
	} else {
		b.CustomerFare = b.DriverFare + b.Commission + b.GST + b.NightCharge + b.SurgeAmount
	}
	return b, nil
}

// Backward reconstructs the breakdown of a legacy record that carries only
// the customer total. It solves
//
//	customerFare = driverFare*combinedFactor + nightCharge
//
// for the driver fare, recomputes commission and GST forward, and verifies
// the parts reproduce the total within RoundTripTolerance. When they do
// not, the driver fare falls back to the remainder after the derived
// parts, clamped at zero, and ErrToleranceExceeded is reported alongside
// the best-effort breakdown.
func Backward(customerFare, nightCharge int64) (Breakdown, error) {
	if customerFare < 0 || nightCharge < 0 {
		return Breakdown{}, ErrNegativeAmount
	}

	b := Breakdown{
		NightCharge:  nightCharge,
		SurgeFactor:  1,
		CustomerFare: customerFare,
	}
	b.DriverFare = Round(float64(customerFare-nightCharge) / combinedFactor)
	if b.DriverFare < 0 {
		b.DriverFare = 0
	}
	b.Commission = Round(float64(b.DriverFare) * CommissionRate)
	b.GST = Round(float64(b.DriverFare+b.Commission) * GSTRate)

	diff := b.DriverFare + b.Commission + b.GST + b.NightCharge - customerFare
	if diff < -RoundTripTolerance || diff > RoundTripTolerance {
		b.DriverFare = customerFare - b.Commission - b.GST - b.NightCharge
		if b.DriverFare < 0 {
			b.DriverFare = 0
		}
		return b, ErrToleranceExceeded
	}
	return b, nil
}

// Reconcile picks the operating mode from which fields are present:
// driver fare known runs forward, customer total only runs backward, and
// neither is a data-quality error.
func Reconcile(in Inputs) (Breakdown, error) {
	switch {
	case in.DriverFare > 0:
		return Forward(in.DriverFare, in.NightCharge, in.SurgeFactor, in.CustomerFare)
	case in.CustomerFare > 0:
		return Backward(in.CustomerFare, in.NightCharge)
	default:
		return Breakdown{}, ErrDataIncomplete
	}
}

// PlatformRevenue is the portion of the customer payment the operator
// retains. The single subtraction already includes commission, GST, night
// charge and surge; callers must not also sum the parts.
func (b Breakdown) PlatformRevenue() int64 {
	return b.CustomerFare - b.DriverFare
}

// Validate reports whether the breakdown is internally consistent enough
// to settle without manual review.
func (b Breakdown) Validate() bool {
	if b.DriverFare == 0 && b.CustomerFare == 0 {
		return false
	}
	// forward data that was recorded but never reconciled
	if b.CustomerFare > 0 && b.DriverFare == 0 {
		return false
	}
	diff := b.DriverFare + b.Commission + b.GST + b.NightCharge + b.SurgeAmount - b.CustomerFare
	if diff < 0 {
		diff = -diff
	}
	return diff <= ValidateTolerance
}
