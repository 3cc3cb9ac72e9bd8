// Package queue holds the per-booth, per-day ordered set of available
// drivers. Positions are a contiguous 1..N permutation at all times; every
// mutation restores contiguity before returning.
package queue

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"booth-dispatch/internal/domain/ride"
)

var (
	ErrAlreadyQueued  = errors.New("driver already queued")
	ErrDriverMismatch = errors.New("driver not present in queue")
	ErrEmptyQueue     = errors.New("queue is empty")
	ErrBoothRequired  = errors.New("booth id is required")
	ErrDriverRequired = errors.New("driver id is required")
)

// Entry is one driver waiting at a booth.
type Entry struct {
	DriverID     string            `json:"driver_id"`
	VehicleClass ride.VehicleClass `json:"vehicle_class"`
	Position     int               `json:"position"`
	EntryTime    time.Time         `json:"entry_time"`
}

// BoothQueue is the aggregate owned by this core, one per booth per
// calendar day. It is created lazily on the first driver join of the day
// and never deleted mid-day, only emptied.
type BoothQueue struct {
	BoothID string  `json:"booth_id"`
	Date    string  `json:"date"` // YYYY-MM-DD, UTC
	Entries []Entry `json:"entries"`
	Version int64   `json:"version"`
}

// DateOf formats the queue-day key for a point in time.
func DateOf(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// New creates an empty queue document for a booth-day.
func New(boothID string, date string) (*BoothQueue, error) {
	if boothID == "" {
		return nil, ErrBoothRequired
	}
	return &BoothQueue{BoothID: boothID, Date: date}, nil
}

// Contains reports whether the driver is present in this queue.
func (q *BoothQueue) Contains(driverID string) bool {
	for i := range q.Entries {
		if q.Entries[i].DriverID == driverID {
			return true
		}
	}
	return false
}

// Len returns the number of waiting drivers.
func (q *BoothQueue) Len() int {
	return len(q.Entries)
}

// Append adds a driver at the back of the queue and returns the assigned
// position. The caller must hold the booth's write serialization: position
// is computed from the current length, which is only safe single-writer.
func (q *BoothQueue) Append(driverID string, class ride.VehicleClass, entryTime time.Time) (int, error) {
	if driverID == "" {
		return 0, ErrDriverRequired
	}
	if q.Contains(driverID) {
		return 0, ErrAlreadyQueued
	}
	pos := len(q.Entries) + 1
	q.Entries = append(q.Entries, Entry{
		DriverID:     driverID,
		VehicleClass: class,
		Position:     pos,
		EntryTime:    entryTime.UTC(),
	})
	return pos, nil
}

// Remove deletes the driver's entry and decrements every position above
// the removed one, restoring the contiguous 1..N permutation.
func (q *BoothQueue) Remove(driverID string) (int, error) {
	for i := range q.Entries {
		if q.Entries[i].DriverID != driverID {
			continue
		}
		removed := q.Entries[i].Position
		q.Entries = append(q.Entries[:i], q.Entries[i+1:]...)
		for j := range q.Entries {
			if q.Entries[j].Position > removed {
				q.Entries[j].Position--
			}
		}
		return removed, nil
	}
	return 0, ErrDriverMismatch
}

// PopClass removes and returns the lowest-position entry matching the
// vehicle class. Remaining positions compact as in Remove.
func (q *BoothQueue) PopClass(class ride.VehicleClass) (Entry, error) {
	best := -1
	for i := range q.Entries {
		if q.Entries[i].VehicleClass != class {
			continue
		}
		if best == -1 || q.Entries[i].Position < q.Entries[best].Position {
			best = i
		}
	}
	if best == -1 {
		return Entry{}, ErrEmptyQueue
	}
	entry := q.Entries[best]
	if _, err := q.Remove(entry.DriverID); err != nil {
		return Entry{}, err
	}
	return entry, nil
}

// ReinsertHead puts a driver back at position 1, shifting everyone else up
// by one. Used when a ride is cancelled before pickup. The stored entry
// time is clamped below every existing entry's, so a later Recompute keeps
// the restored seniority instead of re-sorting the driver to the back.
func (q *BoothQueue) ReinsertHead(driverID string, class ride.VehicleClass, entryTime time.Time) (int, error) {
	if driverID == "" {
		return 0, ErrDriverRequired
	}
	if q.Contains(driverID) {
		return 0, ErrAlreadyQueued
	}
	et := entryTime.UTC()
	for i := range q.Entries {
		if !et.Before(q.Entries[i].EntryTime) {
			et = q.Entries[i].EntryTime.Add(-time.Second)
		}
	}
	for i := range q.Entries {
		q.Entries[i].Position++
	}
	q.Entries = append([]Entry{{
		DriverID:     driverID,
		VehicleClass: class,
		Position:     1,
		EntryTime:    et,
	}}, q.Entries...)
	return 1, nil
}

// ReinsertTail is Append under a name that makes the cancellation policy
// choice explicit at call sites.
func (q *BoothQueue) ReinsertTail(driverID string, class ride.VehicleClass, entryTime time.Time) (int, error) {
	return q.Append(driverID, class, entryTime)
}

// Snapshot returns the entries ordered by position, detached from the
// aggregate's backing slice.
func (q *BoothQueue) Snapshot() []Entry {
	out := make([]Entry, len(q.Entries))
	copy(out, q.Entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// StaleBefore returns the drivers whose entry time is older than cutoff.
func (q *BoothQueue) StaleBefore(cutoff time.Time) []string {
	var out []string
	for i := range q.Entries {
		if q.Entries[i].EntryTime.Before(cutoff) {
			out = append(out, q.Entries[i].DriverID)
		}
	}
	return out
}

// Recompute reassigns positions 1..N ordered by ascending entry time, ties
// broken by driver id for determinism. Idempotent; this is the self-healing
// pass that closes any drift left behind by partial failures.
func (q *BoothQueue) Recompute() {
	sort.Slice(q.Entries, func(i, j int) bool {
		a, b := q.Entries[i], q.Entries[j]
		if !a.EntryTime.Equal(b.EntryTime) {
			return a.EntryTime.Before(b.EntryTime)
		}
		return a.DriverID < b.DriverID
	})
	for i := range q.Entries {
		q.Entries[i].Position = i + 1
	}
}

// CheckInvariant verifies positions form the exact permutation 1..N with
// no duplicates or gaps.
func (q *BoothQueue) CheckInvariant() error {
	seen := make(map[int]string, len(q.Entries))
	for i := range q.Entries {
		p := q.Entries[i].Position
		if p < 1 || p > len(q.Entries) {
			return fmt.Errorf("booth %s: position %d out of range 1..%d", q.BoothID, p, len(q.Entries))
		}
		if other, dup := seen[p]; dup {
			return fmt.Errorf("booth %s: position %d duplicated by drivers %s and %s",
				q.BoothID, p, other, q.Entries[i].DriverID)
		}
		seen[p] = q.Entries[i].DriverID
	}
	return nil
}
