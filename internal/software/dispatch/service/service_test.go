package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/memrepo"
	"booth-dispatch/internal/ports"
	queueservice "booth-dispatch/internal/software/queue/service"
)

func newTestDispatcher(t *testing.T) (*Dispatcher, *queueservice.QueueManager, *memrepo.Store, *memrepo.RecordingPublisher) {
	t.Helper()
	store := memrepo.NewStore()
	pub := &memrepo.RecordingPublisher{}
	log := logger.New("dispatch-test")

	qm := queueservice.NewQueueManager(log, store, store.Queues(), store.Drivers(), pub, memrepo.NoopCache{},
		queueservice.Tuning{SessionTTL: 12 * time.Hour, RepairInterval: time.Minute, SnapshotCacheTTL: 10 * time.Second})
	d := NewDispatcher(log, store, store.Rides(), store.Events(), store.Drivers(), qm, pub)
	qm.SetMatcher(d)
	return d, qm, store, pub
}

func joinDriver(t *testing.T, qm *queueservice.QueueManager, boothID, driverID string, class ride.VehicleClass) ports.JoinQueueResult {
	t.Helper()
	res, err := qm.Join(context.Background(), ports.JoinQueueInput{
		BoothID: boothID, DriverID: driverID, VehicleClass: class,
	})
	if err != nil {
		t.Fatalf("Join(%s) failed: %v", driverID, err)
	}
	return res
}

func requestRide(t *testing.T, d *Dispatcher, boothID string, class ride.VehicleClass) ports.RequestRideResult {
	t.Helper()
	res, err := d.RequestRide(context.Background(), ports.RequestRideInput{
		PickupBooth: boothID, VehicleClass: class,
	})
	if err != nil {
		t.Fatalf("RequestRide failed: %v", err)
	}
	return res
}

func TestRequestRideEmptyQueueStaysPending(t *testing.T) {
	d, _, store, _ := newTestDispatcher(t)

	res := requestRide(t, d, "booth-central", ride.VehicleCar)
	if res.Status != ride.StatusPending.String() {
		t.Errorf("status = %s, want PENDING", res.Status)
	}
	if res.DriverID != "" {
		t.Errorf("DriverID = %q, want empty", res.DriverID)
	}

	r, err := store.Rides().GetByID(context.Background(), res.RideID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if r.EventSeq != 0 {
		t.Errorf("EventSeq = %d, want 0 before any transition", r.EventSeq)
	}
}

func TestRequestRideAssignsHeadOfQueue(t *testing.T) {
	d, qm, store, _ := newTestDispatcher(t)
	ctx := context.Background()

	joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleCar)
	joinDriver(t, qm, "booth-central", "drv-2", ride.VehicleCar)

	res := requestRide(t, d, "booth-central", ride.VehicleCar)
	if res.Status != ride.StatusDriverAssigned.String() {
		t.Fatalf("status = %s, want DRIVER_ASSIGNED", res.Status)
	}
	if res.DriverID != "drv-1" {
		t.Errorf("assigned %s, want head-of-queue drv-1", res.DriverID)
	}
	if res.EstimatedFare <= 0 {
		t.Errorf("EstimatedFare = %d, want > 0", res.EstimatedFare)
	}

	// the popped driver left the queue and the next one moved up
	q, err := qm.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if q.Contains("drv-1") {
		t.Error("assigned driver still in queue")
	}
	entries := q.Snapshot()
	if len(entries) != 1 || entries[0].DriverID != "drv-2" || entries[0].Position != 1 {
		t.Errorf("remaining queue = %+v, want drv-2 at position 1", entries)
	}

	drv, err := store.Drivers().GetByID(ctx, "drv-1")
	if err != nil {
		t.Fatalf("GetByID(drv-1) failed: %v", err)
	}
	if drv.CurrentRideID == nil || *drv.CurrentRideID != res.RideID {
		t.Errorf("driver CurrentRideID = %v, want %s", drv.CurrentRideID, res.RideID)
	}
	if drv.QueuePosition != nil {
		t.Error("assigned driver still has a queue position")
	}
}

func TestJoinAssignsWaitingRide(t *testing.T) {
	d, qm, store, _ := newTestDispatcher(t)
	ctx := context.Background()

	pending := requestRide(t, d, "booth-central", ride.VehicleBike)
	if pending.Status != ride.StatusPending.String() {
		t.Fatalf("precondition: status = %s, want PENDING", pending.Status)
	}

	res := joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleBike)
	if res.RideID != pending.RideID {
		t.Fatalf("join matched ride %q, want %q", res.RideID, pending.RideID)
	}
	if res.Position != 0 {
		t.Errorf("Position = %d, want 0 for matched driver", res.Position)
	}

	r, err := store.Rides().GetByID(ctx, pending.RideID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if r.Status != ride.StatusDriverAssigned {
		t.Errorf("ride status = %s, want DRIVER_ASSIGNED", r.Status)
	}
	if r.DriverID == nil || *r.DriverID != "drv-1" {
		t.Errorf("ride driver = %v, want drv-1", r.DriverID)
	}

	q, err := qm.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if q.Contains("drv-1") {
		t.Error("matched driver appears in the queue")
	}
}

func TestJoinPrefersOldestPendingRide(t *testing.T) {
	d, qm, store, _ := newTestDispatcher(t)

	first := requestRide(t, d, "booth-central", ride.VehicleCar)
	time.Sleep(2 * time.Millisecond)
	requestRide(t, d, "booth-central", ride.VehicleCar)

	res := joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleCar)
	if res.RideID != first.RideID {
		t.Errorf("matched ride %q, want the longest-waiting %q", res.RideID, first.RideID)
	}

	r, err := store.Rides().GetByID(context.Background(), first.RideID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if r.Status != ride.StatusDriverAssigned {
		t.Errorf("oldest ride status = %s, want DRIVER_ASSIGNED", r.Status)
	}
}

func TestFullLifecycle(t *testing.T) {
	d, qm, store, _ := newTestDispatcher(t)
	ctx := context.Background()

	joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleCar)
	res := requestRide(t, d, "booth-central", ride.VehicleCar)

	if err := d.StartRide(ctx, res.RideID); err != nil {
		t.Fatalf("StartRide failed: %v", err)
	}
	if err := d.EndRide(ctx, ports.EndRideInput{RideID: res.RideID, DriverFare: 1000}); err != nil {
		t.Fatalf("EndRide failed: %v", err)
	}
	if err := d.CompletePayment(ctx, res.RideID); err != nil {
		t.Fatalf("CompletePayment failed: %v", err)
	}

	r, err := store.Rides().GetByID(ctx, res.RideID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if r.Status != ride.StatusCompleted {
		t.Errorf("status = %s, want COMPLETED", r.Status)
	}
	if r.EventSeq != 4 {
		t.Errorf("EventSeq = %d, want 4 after the full run", r.EventSeq)
	}
	if r.Fare.CustomerFare != 1155 {
		t.Errorf("CustomerFare = %d, want 1155 for driver fare 1000", r.Fare.CustomerFare)
	}
	if r.FareNeedsReview {
		t.Error("clean forward fare flagged for review")
	}

	// one event row per effective transition, strictly ordered
	events, err := store.Events().ListForRide(ctx, res.RideID)
	if err != nil {
		t.Fatalf("ListForRide failed: %v", err)
	}
	wantTypes := []ride.EventType{
		ride.EventNewRideRequest, ride.EventRideAccepted, ride.EventRideStarted,
		ride.EventRideEnded, ride.EventRideCompleted,
	}
	if len(events) != len(wantTypes) {
		t.Fatalf("event rows = %d, want %d", len(events), len(wantTypes))
	}
	for i, e := range events {
		if e.Type != wantTypes[i] {
			t.Errorf("event %d type = %s, want %s", i, e.Type, wantTypes[i])
		}
		if e.Seq != int64(i) {
			t.Errorf("event %d seq = %d, want %d", i, e.Seq, i)
		}
	}

	// completion releases the driver but does not requeue them
	drv, err := store.Drivers().GetByID(ctx, "drv-1")
	if err != nil {
		t.Fatalf("GetByID(drv-1) failed: %v", err)
	}
	if drv.CurrentRideID != nil {
		t.Error("driver still bound to completed ride")
	}
	q, err := qm.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if q.Contains("drv-1") {
		t.Error("driver auto-requeued after completion")
	}
}

func TestEndRideBackwardFare(t *testing.T) {
	d, qm, store, _ := newTestDispatcher(t)
	ctx := context.Background()

	joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleCar)
	res := requestRide(t, d, "booth-central", ride.VehicleCar)
	if err := d.StartRide(ctx, res.RideID); err != nil {
		t.Fatal(err)
	}

	// legacy record: only the customer total is known
	if err := d.EndRide(ctx, ports.EndRideInput{RideID: res.RideID, CustomerFare: 500}); err != nil {
		t.Fatalf("EndRide failed: %v", err)
	}

	r, err := store.Rides().GetByID(ctx, res.RideID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Fare.DriverFare != 433 {
		t.Errorf("DriverFare = %d, want 433 reconstructed from 500", r.Fare.DriverFare)
	}
	if r.FareNeedsReview {
		t.Error("in-tolerance backward fare flagged for review")
	}
}

func TestEndRideIncompleteFareNeverBlocks(t *testing.T) {
	d, qm, store, _ := newTestDispatcher(t)
	ctx := context.Background()

	joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleCar)
	res := requestRide(t, d, "booth-central", ride.VehicleCar)
	if err := d.StartRide(ctx, res.RideID); err != nil {
		t.Fatal(err)
	}

	// no fare data at all: the ride still ends, flagged for manual review
	if err := d.EndRide(ctx, ports.EndRideInput{RideID: res.RideID}); err != nil {
		t.Fatalf("EndRide with no fare data failed: %v", err)
	}

	r, err := store.Rides().GetByID(ctx, res.RideID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != ride.StatusRideEnded {
		t.Errorf("status = %s, want RIDE_ENDED", r.Status)
	}
	if !r.FareNeedsReview {
		t.Error("incomplete fare data not flagged for review")
	}

	listed, err := store.Rides().ListNeedingFareReview(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(listed) != 1 || listed[0].ID != res.RideID {
		t.Errorf("ListNeedingFareReview = %v, want the flagged ride", listed)
	}
}

func TestCancelAssignedReinsertsDriverAtHead(t *testing.T) {
	d, qm, store, _ := newTestDispatcher(t)
	ctx := context.Background()

	joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleCar)
	joinDriver(t, qm, "booth-central", "drv-2", ride.VehicleCar)

	res := requestRide(t, d, "booth-central", ride.VehicleCar) // assigns drv-1

	if err := d.CancelRide(ctx, res.RideID, "rider no-show"); err != nil {
		t.Fatalf("CancelRide failed: %v", err)
	}

	r, err := store.Rides().GetByID(ctx, res.RideID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != ride.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", r.Status)
	}
	if r.DriverID != nil {
		t.Error("cancelled ride still has a driver attached")
	}
	if r.CancellationReason == nil || *r.CancellationReason != "rider no-show" {
		t.Errorf("CancellationReason = %v, want rider no-show", r.CancellationReason)
	}

	// the driver is back at the front, ahead of drv-2
	q, err := qm.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatal(err)
	}
	entries := q.Snapshot()
	if len(entries) != 2 || entries[0].DriverID != "drv-1" || entries[1].DriverID != "drv-2" {
		t.Errorf("queue after cancel = %+v, want drv-1 then drv-2", entries)
	}

	drv, err := store.Drivers().GetByID(ctx, "drv-1")
	if err != nil {
		t.Fatal(err)
	}
	if drv.CurrentRideID != nil {
		t.Error("driver still bound to cancelled ride")
	}
	if drv.QueuePosition == nil || *drv.QueuePosition != 1 {
		t.Errorf("driver projection position = %v, want 1", drv.QueuePosition)
	}
}

func TestCancelPendingRide(t *testing.T) {
	d, _, store, _ := newTestDispatcher(t)
	ctx := context.Background()

	res := requestRide(t, d, "booth-central", ride.VehicleCar)
	if err := d.CancelRide(ctx, res.RideID, ""); err != nil {
		t.Fatalf("CancelRide failed: %v", err)
	}

	r, err := store.Rides().GetByID(ctx, res.RideID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Status != ride.StatusCancelled {
		t.Errorf("status = %s, want CANCELLED", r.Status)
	}
}

func TestCancelAfterStartRejected(t *testing.T) {
	d, qm, _, _ := newTestDispatcher(t)
	ctx := context.Background()

	joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleCar)
	res := requestRide(t, d, "booth-central", ride.VehicleCar)
	if err := d.StartRide(ctx, res.RideID); err != nil {
		t.Fatal(err)
	}

	err := d.CancelRide(ctx, res.RideID, "too late")
	if !errors.Is(err, ride.ErrInvalidStatusTransition) {
		t.Errorf("cancel after start: err = %v, want ErrInvalidStatusTransition", err)
	}
}

func TestTransitionsAreIdempotent(t *testing.T) {
	d, qm, store, _ := newTestDispatcher(t)
	ctx := context.Background()

	joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleCar)
	res := requestRide(t, d, "booth-central", ride.VehicleCar)

	if err := d.StartRide(ctx, res.RideID); err != nil {
		t.Fatal(err)
	}
	// duplicate delivery of the same transition is a no-op success
	if err := d.StartRide(ctx, res.RideID); err != nil {
		t.Fatalf("re-delivered start: err = %v, want nil", err)
	}

	r, err := store.Rides().GetByID(ctx, res.RideID)
	if err != nil {
		t.Fatal(err)
	}
	if r.EventSeq != 2 {
		t.Errorf("EventSeq = %d after duplicate start, want 2", r.EventSeq)
	}

	if err := d.EndRide(ctx, ports.EndRideInput{RideID: res.RideID, DriverFare: 700}); err != nil {
		t.Fatal(err)
	}
	if err := d.EndRide(ctx, ports.EndRideInput{RideID: res.RideID, DriverFare: 9999}); err != nil {
		t.Fatalf("re-delivered end: err = %v, want nil", err)
	}
	r, err = store.Rides().GetByID(ctx, res.RideID)
	if err != nil {
		t.Fatal(err)
	}
	if r.Fare.DriverFare != 700 {
		t.Errorf("duplicate end overwrote fare: DriverFare = %d, want 700", r.Fare.DriverFare)
	}

	events, err := store.Events().ListForRide(ctx, res.RideID)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 4 {
		t.Errorf("event rows = %d, want 4 (duplicates must not append)", len(events))
	}
}

func TestConcurrentRequestsNoDoubleAssignment(t *testing.T) {
	d, qm, _, _ := newTestDispatcher(t)

	joinDriver(t, qm, "booth-central", "drv-1", ride.VehicleCar)

	const n = 5
	var wg sync.WaitGroup
	results := make([]ports.RequestRideResult, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = d.RequestRide(context.Background(), ports.RequestRideInput{
				PickupBooth: "booth-central", VehicleClass: ride.VehicleCar,
			})
		}(i)
	}
	wg.Wait()

	assigned := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("request %d failed: %v", i, errs[i])
		}
		if results[i].DriverID == "drv-1" {
			assigned++
		}
	}
	if assigned != 1 {
		t.Errorf("driver assigned to %d rides, want exactly 1", assigned)
	}
}
