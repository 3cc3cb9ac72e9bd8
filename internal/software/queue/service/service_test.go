package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/general/contracts"
	"booth-dispatch/internal/general/logger"
	"booth-dispatch/internal/memrepo"
	"booth-dispatch/internal/ports"
)

func newTestManager(t *testing.T) (*QueueManager, *memrepo.Store, *memrepo.RecordingPublisher) {
	t.Helper()
	store := memrepo.NewStore()
	pub := &memrepo.RecordingPublisher{}
	m := NewQueueManager(
		logger.New("queue-test"),
		store,
		store.Queues(),
		store.Drivers(),
		pub,
		memrepo.NoopCache{},
		Tuning{SessionTTL: 12 * time.Hour, RepairInterval: time.Minute, SnapshotCacheTTL: 10 * time.Second},
	)
	return m, store, pub
}

func mustJoin(t *testing.T, m *QueueManager, boothID, driverID string, class ride.VehicleClass) ports.JoinQueueResult {
	t.Helper()
	res, err := m.Join(context.Background(), ports.JoinQueueInput{
		BoothID:      boothID,
		DriverID:     driverID,
		VehicleClass: class,
	})
	if err != nil {
		t.Fatalf("Join(%s, %s) failed: %v", boothID, driverID, err)
	}
	return res
}

func TestJoinAssignsSequentialPositions(t *testing.T) {
	m, store, pub := newTestManager(t)

	for i, id := range []string{"drv-1", "drv-2", "drv-3"} {
		res := mustJoin(t, m, "booth-central", id, ride.VehicleCar)
		if res.Position != i+1 {
			t.Errorf("driver %s: position = %d, want %d", id, res.Position, i+1)
		}
	}

	d, err := store.Drivers().GetByID(context.Background(), "drv-2")
	if err != nil {
		t.Fatalf("GetByID(drv-2) failed: %v", err)
	}
	if d.QueuePosition == nil || *d.QueuePosition != 2 {
		t.Errorf("drv-2 projection position = %v, want 2", d.QueuePosition)
	}
	if d.CurrentBooth == nil || *d.CurrentBooth != "booth-central" {
		t.Errorf("drv-2 projection booth = %v, want booth-central", d.CurrentBooth)
	}

	if got := len(pub.TypesFor(contracts.ChannelBooths)); got != 3 {
		t.Errorf("queueUpdated publishes = %d, want 3", got)
	}
}

func TestJoinDuplicateRejected(t *testing.T) {
	m, _, _ := newTestManager(t)

	mustJoin(t, m, "booth-central", "drv-1", ride.VehicleCar)

	_, err := m.Join(context.Background(), ports.JoinQueueInput{
		BoothID: "booth-central", DriverID: "drv-1", VehicleClass: ride.VehicleCar,
	})
	if !errors.Is(err, queue.ErrAlreadyQueued) {
		t.Errorf("rejoin same booth: err = %v, want ErrAlreadyQueued", err)
	}

	// also rejected at a different booth while still queued
	_, err = m.Join(context.Background(), ports.JoinQueueInput{
		BoothID: "booth-north", DriverID: "drv-1", VehicleClass: ride.VehicleCar,
	})
	if !errors.Is(err, queue.ErrAlreadyQueued) {
		t.Errorf("join other booth while queued: err = %v, want ErrAlreadyQueued", err)
	}
}

func TestLeaveCompactsPositions(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	mustJoin(t, m, "booth-central", "drv-1", ride.VehicleCar)
	mustJoin(t, m, "booth-central", "drv-2", ride.VehicleCar)
	mustJoin(t, m, "booth-central", "drv-3", ride.VehicleCar)

	if err := m.Leave(ctx, "booth-central", "drv-2"); err != nil {
		t.Fatalf("Leave(drv-2) failed: %v", err)
	}

	q, err := m.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	entries := q.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("queue length = %d, want 2", len(entries))
	}
	if entries[0].DriverID != "drv-1" || entries[0].Position != 1 {
		t.Errorf("head = %s@%d, want drv-1@1", entries[0].DriverID, entries[0].Position)
	}
	if entries[1].DriverID != "drv-3" || entries[1].Position != 2 {
		t.Errorf("second = %s@%d, want drv-3@2", entries[1].DriverID, entries[1].Position)
	}

	d, err := store.Drivers().GetByID(ctx, "drv-2")
	if err != nil {
		t.Fatalf("GetByID(drv-2) failed: %v", err)
	}
	if d.QueuePosition != nil {
		t.Errorf("drv-2 still has queue position %d after leaving", *d.QueuePosition)
	}

	// drv-3 projection must reflect the compacted position
	d3, err := store.Drivers().GetByID(ctx, "drv-3")
	if err != nil {
		t.Fatalf("GetByID(drv-3) failed: %v", err)
	}
	if d3.QueuePosition == nil || *d3.QueuePosition != 2 {
		t.Errorf("drv-3 projection position = %v, want 2", d3.QueuePosition)
	}
}

func TestLeaveNotQueued(t *testing.T) {
	m, _, _ := newTestManager(t)
	err := m.Leave(context.Background(), "booth-central", "drv-missing")
	if !errors.Is(err, queue.ErrDriverMismatch) {
		t.Errorf("Leave of absent driver: err = %v, want ErrDriverMismatch", err)
	}
}

func TestConcurrentJoinsGetDistinctPositions(t *testing.T) {
	m, _, _ := newTestManager(t)

	const n = 20
	var wg sync.WaitGroup
	positions := make([]int, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := m.Join(context.Background(), ports.JoinQueueInput{
				BoothID:      "booth-central",
				DriverID:     "drv-" + string(rune('a'+i)),
				VehicleClass: ride.VehicleCar,
			})
			positions[i], errs[i] = res.Position, err
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("join %d failed: %v", i, err)
		}
	}

	seen := make(map[int]bool, n)
	for _, p := range positions {
		if p < 1 || p > n {
			t.Fatalf("position %d out of range 1..%d", p, n)
		}
		if seen[p] {
			t.Fatalf("position %d assigned twice", p)
		}
		seen[p] = true
	}

	q, err := m.Snapshot(context.Background(), "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if err := q.CheckInvariant(); err != nil {
		t.Errorf("invariant violated after concurrent joins: %v", err)
	}
}

// fixedMatcher assigns the given ride to the first joining driver.
type fixedMatcher struct {
	rideID  string
	matched bool
}

func (f *fixedMatcher) AssignWaiting(ctx context.Context, boothID, driverID string, class ride.VehicleClass) (string, error) {
	if f.matched {
		return "", nil
	}
	f.matched = true
	return f.rideID, nil
}

func TestJoinMatchedToWaitingRide(t *testing.T) {
	m, store, _ := newTestManager(t)
	m.SetMatcher(&fixedMatcher{rideID: "ride-0001"})
	ctx := context.Background()

	res := mustJoin(t, m, "booth-central", "drv-1", ride.VehicleCar)
	if res.RideID != "ride-0001" {
		t.Fatalf("RideID = %q, want ride-0001", res.RideID)
	}
	if res.Position != 0 {
		t.Errorf("Position = %d, want 0 for a matched driver", res.Position)
	}

	// matched driver never enters the visible queue
	q, err := m.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if q.Contains("drv-1") {
		t.Error("matched driver appears in the queue snapshot")
	}

	d, err := store.Drivers().GetByID(ctx, "drv-1")
	if err != nil {
		t.Fatalf("GetByID(drv-1) failed: %v", err)
	}
	if d.CurrentRideID == nil || *d.CurrentRideID != "ride-0001" {
		t.Errorf("driver CurrentRideID = %v, want ride-0001", d.CurrentRideID)
	}

	// next driver is enqueued normally
	res2 := mustJoin(t, m, "booth-central", "drv-2", ride.VehicleCar)
	if res2.Position != 1 {
		t.Errorf("second driver position = %d, want 1", res2.Position)
	}
}

func TestJoinRejectedWhileOnRide(t *testing.T) {
	m, _, _ := newTestManager(t)
	m.SetMatcher(&fixedMatcher{rideID: "ride-0001"})

	mustJoin(t, m, "booth-central", "drv-1", ride.VehicleCar)

	_, err := m.Join(context.Background(), ports.JoinQueueInput{
		BoothID: "booth-central", DriverID: "drv-1", VehicleClass: ride.VehicleCar,
	})
	if !errors.Is(err, driver.ErrOnActiveRide) {
		t.Errorf("join while on ride: err = %v, want ErrOnActiveRide", err)
	}
}

func TestPopHeadFIFOWithinClass(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	mustJoin(t, m, "booth-central", "bike-1", ride.VehicleBike)
	mustJoin(t, m, "booth-central", "car-1", ride.VehicleCar)
	mustJoin(t, m, "booth-central", "bike-2", ride.VehicleBike)

	var popped string
	err := store.WithinTx(ctx, func(txCtx context.Context) error {
		var err error
		popped, err = m.PopHead(txCtx, "booth-central", ride.VehicleBike, time.Now().UTC())
		return err
	})
	if err != nil {
		t.Fatalf("PopHead failed: %v", err)
	}
	if popped != "bike-1" {
		t.Errorf("popped %s, want bike-1 (earliest of class)", popped)
	}

	q, err := m.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if q.Len() != 2 {
		t.Errorf("queue length after pop = %d, want 2", q.Len())
	}
	if err := q.CheckInvariant(); err != nil {
		t.Errorf("invariant violated after pop: %v", err)
	}

	err = store.WithinTx(ctx, func(txCtx context.Context) error {
		_, err := m.PopHead(txCtx, "booth-central", ride.VehicleAuto, time.Now().UTC())
		return err
	})
	if !errors.Is(err, queue.ErrEmptyQueue) {
		t.Errorf("pop of absent class: err = %v, want ErrEmptyQueue", err)
	}
}

func TestReinsertHeadRestoresFront(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	mustJoin(t, m, "booth-central", "drv-1", ride.VehicleCar)
	mustJoin(t, m, "booth-central", "drv-2", ride.VehicleCar)

	err := store.WithinTx(ctx, func(txCtx context.Context) error {
		if _, err := m.PopHead(txCtx, "booth-central", ride.VehicleCar, time.Now().UTC()); err != nil {
			return err
		}
		_, err := m.ReinsertHead(txCtx, "booth-central", "drv-1", time.Now().UTC())
		return err
	})
	if err != nil {
		t.Fatalf("pop+reinsert failed: %v", err)
	}

	q, err := m.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	entries := q.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("queue length = %d, want 2", len(entries))
	}
	if entries[0].DriverID != "drv-1" {
		t.Errorf("head after reinsert = %s, want drv-1", entries[0].DriverID)
	}
	if entries[1].DriverID != "drv-2" || entries[1].Position != 2 {
		t.Errorf("second = %s@%d, want drv-2@2", entries[1].DriverID, entries[1].Position)
	}
}

func TestReinsertedHeadKeepsFrontAfterRepair(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	mustJoin(t, m, "booth-central", "drv-1", ride.VehicleCar)
	mustJoin(t, m, "booth-central", "drv-2", ride.VehicleCar)

	err := store.WithinTx(ctx, func(txCtx context.Context) error {
		if _, err := m.PopHead(txCtx, "booth-central", ride.VehicleCar, time.Now().UTC()); err != nil {
			return err
		}
		_, err := m.ReinsertHead(txCtx, "booth-central", "drv-1", time.Now().UTC())
		return err
	})
	if err != nil {
		t.Fatalf("pop+reinsert failed: %v", err)
	}

	// inject drift so the repair pass persists its rebuilt ordering
	date := queue.DateOf(time.Now().UTC())
	err = store.WithinTx(ctx, func(txCtx context.Context) error {
		q, err := store.Queues().GetForUpdate(txCtx, "booth-central", date)
		if err != nil {
			return err
		}
		q.Entries[1].Position = 1
		return store.Queues().Save(txCtx, q)
	})
	if err != nil {
		t.Fatal(err)
	}

	res, err := m.Repair(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if !res.Drifted {
		t.Fatal("Drifted = false, want true for duplicated positions")
	}

	repaired, err := m.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	entries := repaired.Snapshot()
	if entries[0].DriverID != "drv-1" {
		t.Errorf("head after repair = %s, want reinserted drv-1", entries[0].DriverID)
	}

	d, err := store.Drivers().GetByID(ctx, "drv-1")
	if err != nil {
		t.Fatalf("GetByID(drv-1) failed: %v", err)
	}
	if d.QueuePosition == nil || *d.QueuePosition != 1 {
		t.Errorf("drv-1 projection position = %v, want 1", d.QueuePosition)
	}
}

func TestRepairSweepsStaleAndClosesDrift(t *testing.T) {
	m, store, _ := newTestManager(t)
	ctx := context.Background()

	now := time.Now().UTC()
	date := queue.DateOf(now)

	// seed a drifted document directly: duplicate positions and one stale entry
	q, err := queue.New("booth-central", date)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := q.Append("drv-old", ride.VehicleCar, now.Add(-24*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Append("drv-a", ride.VehicleCar, now.Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}
	if _, err := q.Append("drv-b", ride.VehicleCar, now.Add(-1*time.Hour)); err != nil {
		t.Fatal(err)
	}
	q.Entries[2].Position = 2 // inject drift: duplicate position
	err = store.WithinTx(ctx, func(txCtx context.Context) error {
		return store.Queues().Save(txCtx, q)
	})
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"drv-old", "drv-a", "drv-b"} {
		d, err := driver.New(id, ride.VehicleCar)
		if err != nil {
			t.Fatal(err)
		}
		d.EnterQueue("booth-central", 1, now)
		if err := store.WithinTx(ctx, func(txCtx context.Context) error {
			return store.Drivers().Upsert(txCtx, d)
		}); err != nil {
			t.Fatal(err)
		}
	}

	res, err := m.Repair(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Repair failed: %v", err)
	}
	if !res.Drifted {
		t.Error("Drifted = false, want true for duplicated positions")
	}
	if res.SweptDrivers != 1 {
		t.Errorf("SweptDrivers = %d, want 1", res.SweptDrivers)
	}
	if res.Entries != 2 {
		t.Errorf("Entries = %d, want 2", res.Entries)
	}

	repaired, err := m.Snapshot(ctx, "booth-central")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if err := repaired.CheckInvariant(); err != nil {
		t.Errorf("invariant still violated after repair: %v", err)
	}
	if repaired.Contains("drv-old") {
		t.Error("stale driver still queued after repair")
	}

	d, err := store.Drivers().GetByID(ctx, "drv-old")
	if err != nil {
		t.Fatalf("GetByID(drv-old) failed: %v", err)
	}
	if d.IsOnline {
		t.Error("swept driver still online")
	}

	// idempotent: a second pass changes nothing
	res2, err := m.Repair(ctx, "booth-central")
	if err != nil {
		t.Fatalf("second Repair failed: %v", err)
	}
	if res2.Drifted || res2.SweptDrivers != 0 {
		t.Errorf("second repair = %+v, want clean pass", res2)
	}
}
