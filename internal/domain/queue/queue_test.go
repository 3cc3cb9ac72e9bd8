package queue

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"booth-dispatch/internal/domain/ride"
)

var t0 = time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

func newTestQueue(t *testing.T) *BoothQueue {
	t.Helper()
	q, err := New("B1", DateOf(t0))
	if err != nil {
		t.Fatalf("new queue: %v", err)
	}
	return q
}

func mustAppend(t *testing.T, q *BoothQueue, driverID string, class ride.VehicleClass, at time.Time) int {
	t.Helper()
	pos, err := q.Append(driverID, class, at)
	if err != nil {
		t.Fatalf("append %s: %v", driverID, err)
	}
	return pos
}

func assertContiguous(t *testing.T, q *BoothQueue) {
	t.Helper()
	if err := q.CheckInvariant(); err != nil {
		t.Fatalf("invariant violated: %v", err)
	}
}

func TestAppendAssignsSequentialPositions(t *testing.T) {
	q := newTestQueue(t)
	for i := 1; i <= 3; i++ {
		pos := mustAppend(t, q, fmt.Sprintf("d%d", i), ride.VehicleAuto, t0.Add(time.Duration(i)*time.Second))
		if pos != i {
			t.Errorf("driver d%d got position %d, want %d", i, pos, i)
		}
	}
	assertContiguous(t, q)
}

func TestAppendRejectsDuplicate(t *testing.T) {
	q := newTestQueue(t)
	mustAppend(t, q, "d1", ride.VehicleCar, t0)
	if _, err := q.Append("d1", ride.VehicleCar, t0.Add(time.Minute)); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("second append: err = %v, want ErrAlreadyQueued", err)
	}
}

func TestRemoveCompactsPositions(t *testing.T) {
	q := newTestQueue(t)
	for i := 1; i <= 5; i++ {
		mustAppend(t, q, fmt.Sprintf("d%d", i), ride.VehicleBike, t0.Add(time.Duration(i)*time.Second))
	}

	pos, err := q.Remove("d3")
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if pos != 3 {
		t.Errorf("removed position = %d, want 3", pos)
	}
	assertContiguous(t, q)

	snap := q.Snapshot()
	want := []string{"d1", "d2", "d4", "d5"}
	for i, e := range snap {
		if e.DriverID != want[i] || e.Position != i+1 {
			t.Errorf("snapshot[%d] = %s@%d, want %s@%d", i, e.DriverID, e.Position, want[i], i+1)
		}
	}
}

func TestRemoveMissingDriver(t *testing.T) {
	q := newTestQueue(t)
	if _, err := q.Remove("ghost"); !errors.Is(err, ErrDriverMismatch) {
		t.Errorf("err = %v, want ErrDriverMismatch", err)
	}
}

func TestPopClassIsFIFOWithinClass(t *testing.T) {
	q := newTestQueue(t)
	mustAppend(t, q, "car1", ride.VehicleCar, t0)
	mustAppend(t, q, "bike1", ride.VehicleBike, t0.Add(time.Second))
	mustAppend(t, q, "car2", ride.VehicleCar, t0.Add(2*time.Second))

	e, err := q.PopClass(ride.VehicleCar)
	if err != nil {
		t.Fatalf("pop: %v", err)
	}
	if e.DriverID != "car1" {
		t.Errorf("popped %s, want car1 (joined first)", e.DriverID)
	}
	assertContiguous(t, q)

	// bike1 must have compacted to the head
	if snap := q.Snapshot(); snap[0].DriverID != "bike1" || snap[0].Position != 1 {
		t.Errorf("head = %s@%d, want bike1@1", snap[0].DriverID, snap[0].Position)
	}
}

func TestPopClassEmptyAndNoMatch(t *testing.T) {
	q := newTestQueue(t)
	if _, err := q.PopClass(ride.VehicleAuto); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("empty queue: err = %v, want ErrEmptyQueue", err)
	}
	mustAppend(t, q, "bike1", ride.VehicleBike, t0)
	if _, err := q.PopClass(ride.VehicleAuto); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("no class match: err = %v, want ErrEmptyQueue", err)
	}
}

func TestPoppedDriverCannotBePoppedAgain(t *testing.T) {
	q := newTestQueue(t)
	mustAppend(t, q, "d1", ride.VehicleAuto, t0)

	if _, err := q.PopClass(ride.VehicleAuto); err != nil {
		t.Fatalf("first pop: %v", err)
	}
	if _, err := q.PopClass(ride.VehicleAuto); !errors.Is(err, ErrEmptyQueue) {
		t.Errorf("second pop: err = %v, want ErrEmptyQueue", err)
	}
}

func TestReinsertHead(t *testing.T) {
	q := newTestQueue(t)
	mustAppend(t, q, "d1", ride.VehicleAuto, t0)
	mustAppend(t, q, "d2", ride.VehicleAuto, t0.Add(time.Second))

	pos, err := q.ReinsertHead("d9", ride.VehicleAuto, t0.Add(2*time.Second))
	if err != nil {
		t.Fatalf("reinsert head: %v", err)
	}
	if pos != 1 {
		t.Errorf("reinserted position = %d, want 1", pos)
	}
	assertContiguous(t, q)

	snap := q.Snapshot()
	want := []string{"d9", "d1", "d2"}
	for i, e := range snap {
		if e.DriverID != want[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, e.DriverID, want[i])
		}
	}
}

func TestReinsertHeadSurvivesRecompute(t *testing.T) {
	q := newTestQueue(t)
	mustAppend(t, q, "d1", ride.VehicleAuto, t0)
	mustAppend(t, q, "d2", ride.VehicleAuto, t0.Add(time.Second))

	// reinserted long after the others joined; a position rebuild must not
	// push the driver back to the tail
	if _, err := q.ReinsertHead("d9", ride.VehicleAuto, t0.Add(time.Hour)); err != nil {
		t.Fatalf("reinsert head: %v", err)
	}
	q.Recompute()
	assertContiguous(t, q)

	snap := q.Snapshot()
	want := []string{"d9", "d1", "d2"}
	for i, e := range snap {
		if e.DriverID != want[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, e.DriverID, want[i])
		}
	}
}

func TestReinsertTailJoinsBack(t *testing.T) {
	q := newTestQueue(t)
	mustAppend(t, q, "d1", ride.VehicleCar, t0)
	mustAppend(t, q, "d2", ride.VehicleCar, t0.Add(time.Second))

	pos, err := q.ReinsertTail("d9", ride.VehicleCar, t0.Add(2*time.Second))
	if err != nil {
		t.Fatalf("reinsert tail: %v", err)
	}
	if pos != 3 {
		t.Errorf("reinserted position = %d, want 3", pos)
	}
	assertContiguous(t, q)
	if _, err := q.ReinsertTail("d1", ride.VehicleCar, t0.Add(3*time.Second)); !errors.Is(err, ErrAlreadyQueued) {
		t.Errorf("duplicate reinsert: err = %v, want ErrAlreadyQueued", err)
	}
}

func TestRecomputeRestoresEntryOrder(t *testing.T) {
	q := newTestQueue(t)
	mustAppend(t, q, "d1", ride.VehicleCar, t0.Add(time.Second))
	mustAppend(t, q, "d2", ride.VehicleCar, t0)
	mustAppend(t, q, "d3", ride.VehicleCar, t0.Add(2*time.Second))

	// simulate the drift the repair pass exists for
	q.Entries[0].Position = 2
	q.Entries[1].Position = 2
	q.Entries[2].Position = 5
	if err := q.CheckInvariant(); err == nil {
		t.Fatal("expected invariant violation before repair")
	}

	q.Recompute()
	assertContiguous(t, q)

	snap := q.Snapshot()
	want := []string{"d2", "d1", "d3"} // ascending entry time
	for i, e := range snap {
		if e.DriverID != want[i] {
			t.Errorf("snapshot[%d] = %s, want %s", i, e.DriverID, want[i])
		}
	}
}

func TestRecomputeTieBreaksByDriverID(t *testing.T) {
	q := newTestQueue(t)
	mustAppend(t, q, "zz", ride.VehicleBike, t0)
	mustAppend(t, q, "aa", ride.VehicleBike, t0)
	q.Recompute()
	if snap := q.Snapshot(); snap[0].DriverID != "aa" {
		t.Errorf("head = %s, want aa (deterministic tie-break)", snap[0].DriverID)
	}
}

func TestRecomputeIdempotent(t *testing.T) {
	q := newTestQueue(t)
	for i := 0; i < 4; i++ {
		mustAppend(t, q, fmt.Sprintf("d%d", i), ride.VehicleAuto, t0.Add(time.Duration(i)*time.Minute))
	}
	q.Recompute()
	first := q.Snapshot()
	q.Recompute()
	second := q.Snapshot()
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("entry %d changed across repeated recompute: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestStaleBefore(t *testing.T) {
	q := newTestQueue(t)
	mustAppend(t, q, "old", ride.VehicleCar, t0)
	mustAppend(t, q, "new", ride.VehicleCar, t0.Add(time.Hour))

	stale := q.StaleBefore(t0.Add(30 * time.Minute))
	if len(stale) != 1 || stale[0] != "old" {
		t.Errorf("stale = %v, want [old]", stale)
	}
}

func TestInvariantHoldsUnderRandomOperations(t *testing.T) {
	q := newTestQueue(t)
	rng := rand.New(rand.NewSource(1))
	classes := []ride.VehicleClass{ride.VehicleBike, ride.VehicleAuto, ride.VehicleCar}

	present := map[string]ride.VehicleClass{}
	next := 0
	for step := 0; step < 2000; step++ {
		switch rng.Intn(4) {
		case 0:
			id := fmt.Sprintf("d%d", next)
			next++
			class := classes[rng.Intn(len(classes))]
			mustAppend(t, q, id, class, t0.Add(time.Duration(step)*time.Second))
			present[id] = class
		case 1:
			for id := range present {
				if _, err := q.Remove(id); err != nil {
					t.Fatalf("step %d remove %s: %v", step, id, err)
				}
				delete(present, id)
				break
			}
		case 2:
			class := classes[rng.Intn(len(classes))]
			if e, err := q.PopClass(class); err == nil {
				delete(present, e.DriverID)
			}
		case 3:
			q.Recompute()
		}
		if err := q.CheckInvariant(); err != nil {
			t.Fatalf("step %d: %v", step, err)
		}
		if q.Len() != len(present) {
			t.Fatalf("step %d: len %d, want %d", step, q.Len(), len(present))
		}
	}
}
