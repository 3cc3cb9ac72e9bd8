// Package memrepo provides in-memory implementations of the persistence and
// messaging ports. Used by service tests; the transaction lock mirrors the
// store's per-operation serialization.
package memrepo

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"booth-dispatch/internal/domain/driver"
	"booth-dispatch/internal/domain/queue"
	"booth-dispatch/internal/domain/ride"
	"booth-dispatch/internal/ports"
)

// Store holds all aggregates behind one mutex so WithinTx serializes
// writers the way the database's row locks do.
type Store struct {
	mu sync.Mutex

	queues  map[string]*queue.BoothQueue // key: boothID|date
	rides   map[string]*ride.Ride
	events  map[string][]*ride.Event // key: rideID
	drivers map[string]*driver.Driver

	nextRideID int
}

func NewStore() *Store {
	return &Store{
		queues:  make(map[string]*queue.BoothQueue),
		rides:   make(map[string]*ride.Ride),
		events:  make(map[string][]*ride.Event),
		drivers: make(map[string]*driver.Driver),
	}
}

// WithinTx runs fn holding the store lock. Nested calls are not supported;
// services take exactly one transaction per operation.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx)
}

// Port views over the shared store.
func (s *Store) Queues() ports.BoothQueueRepository { return queueRepo{s} }
func (s *Store) Rides() ports.RideRepository        { return rideRepo{s} }
func (s *Store) Events() ports.RideEventRepository  { return eventRepo{s} }
func (s *Store) Drivers() ports.DriverRepository    { return driverRepo{s} }

func queueKey(boothID, date string) string { return boothID + "|" + date }

func cloneQueue(q *queue.BoothQueue) *queue.BoothQueue {
	cp := *q
	cp.Entries = make([]queue.Entry, len(q.Entries))
	copy(cp.Entries, q.Entries)
	return &cp
}

func cloneRide(r *ride.Ride) *ride.Ride {
	cp := *r
	if r.DriverID != nil {
		v := *r.DriverID
		cp.DriverID = &v
	}
	return &cp
}

func cloneDriver(d *driver.Driver) *driver.Driver {
	cp := *d
	if d.CurrentBooth != nil {
		v := *d.CurrentBooth
		cp.CurrentBooth = &v
	}
	if d.QueuePosition != nil {
		v := *d.QueuePosition
		cp.QueuePosition = &v
	}
	if d.QueueEntryTime != nil {
		v := *d.QueueEntryTime
		cp.QueueEntryTime = &v
	}
	if d.CurrentRideID != nil {
		v := *d.CurrentRideID
		cp.CurrentRideID = &v
	}
	return &cp
}

// ----- ports.BoothQueueRepository -----

type queueRepo struct{ s *Store }

func (r queueRepo) GetForUpdate(ctx context.Context, boothID, date string) (*queue.BoothQueue, error) {
	key := queueKey(boothID, date)
	q, ok := r.s.queues[key]
	if !ok {
		nq, err := queue.New(boothID, date)
		if err != nil {
			return nil, err
		}
		r.s.queues[key] = nq
		q = nq
	}
	return cloneQueue(q), nil
}

func (r queueRepo) Get(ctx context.Context, boothID, date string) (*queue.BoothQueue, error) {
	if q, ok := r.s.queues[queueKey(boothID, date)]; ok {
		return cloneQueue(q), nil
	}
	return queue.New(boothID, date)
}

func (r queueRepo) Save(ctx context.Context, q *queue.BoothQueue) error {
	q.Version++
	r.s.queues[queueKey(q.BoothID, q.Date)] = cloneQueue(q)
	return nil
}

func (r queueRepo) ListBoothIDs(ctx context.Context, date string) ([]string, error) {
	var out []string
	for _, q := range r.s.queues {
		if q.Date == date {
			out = append(out, q.BoothID)
		}
	}
	sort.Strings(out)
	return out, nil
}

// ----- ports.RideRepository -----

type rideRepo struct{ s *Store }

func (r rideRepo) CreateRide(ctx context.Context, rd *ride.Ride) error {
	r.s.nextRideID++
	rd.ID = fmt.Sprintf("ride-%04d", r.s.nextRideID)
	r.s.rides[rd.ID] = cloneRide(rd)
	return nil
}

func (r rideRepo) GetByID(ctx context.Context, id string) (*ride.Ride, error) {
	if rd, ok := r.s.rides[id]; ok {
		return cloneRide(rd), nil
	}
	return nil, ride.ErrNotFound
}

func (r rideRepo) GetByIDForUpdate(ctx context.Context, id string) (*ride.Ride, error) {
	return r.GetByID(ctx, id)
}

func (r rideRepo) Save(ctx context.Context, rd *ride.Ride) error {
	if _, ok := r.s.rides[rd.ID]; !ok {
		return ride.ErrNotFound
	}
	r.s.rides[rd.ID] = cloneRide(rd)
	return nil
}

func (r rideRepo) OldestPendingForBooth(ctx context.Context, boothID string, class ride.VehicleClass) (*ride.Ride, error) {
	var oldest *ride.Ride
	for _, rd := range r.s.rides {
		if rd.Status != ride.StatusPending || rd.PickupBooth != boothID || rd.VehicleClass != class {
			continue
		}
		if oldest == nil || rd.RequestedAt.Before(oldest.RequestedAt) ||
			(rd.RequestedAt.Equal(oldest.RequestedAt) && rd.ID < oldest.ID) {
			oldest = rd
		}
	}
	if oldest == nil {
		return nil, ride.ErrNotFound
	}
	return cloneRide(oldest), nil
}

func (r rideRepo) ListNeedingFareReview(ctx context.Context, limit int) ([]*ride.Ride, error) {
	var out []*ride.Ride
	for _, rd := range r.s.rides {
		if rd.FareNeedsReview {
			out = append(out, cloneRide(rd))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ----- ports.RideEventRepository -----

type eventRepo struct{ s *Store }

func (r eventRepo) Append(ctx context.Context, e *ride.Event) error {
	for _, prev := range r.s.events[e.RideID] {
		if prev.Seq == e.Seq {
			return fmt.Errorf("duplicate event seq %d for ride %s", e.Seq, e.RideID)
		}
	}
	cp := *e
	r.s.events[e.RideID] = append(r.s.events[e.RideID], &cp)
	return nil
}

func (r eventRepo) ListForRide(ctx context.Context, rideID string) ([]*ride.Event, error) {
	evts := r.s.events[rideID]
	out := make([]*ride.Event, len(evts))
	for i, e := range evts {
		cp := *e
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// ----- ports.DriverRepository -----

type driverRepo struct{ s *Store }

func (r driverRepo) GetByID(ctx context.Context, driverID string) (*driver.Driver, error) {
	if d, ok := r.s.drivers[driverID]; ok {
		return cloneDriver(d), nil
	}
	return nil, driver.ErrNotFound
}

func (r driverRepo) Save(ctx context.Context, d *driver.Driver) error {
	if _, ok := r.s.drivers[d.ID]; !ok {
		return driver.ErrNotFound
	}
	r.s.drivers[d.ID] = cloneDriver(d)
	return nil
}

func (r driverRepo) Upsert(ctx context.Context, d *driver.Driver) error {
	r.s.drivers[d.ID] = cloneDriver(d)
	return nil
}

// ----- ports.SnapshotCache -----

// NoopCache misses every read, so service tests always hit the store.
type NoopCache struct{}

func (NoopCache) GetQueue(ctx context.Context, boothID, date string) (*queue.BoothQueue, bool) {
	return nil, false
}
func (NoopCache) SetQueue(ctx context.Context, q *queue.BoothQueue, ttl time.Duration) {}
func (NoopCache) InvalidateQueue(ctx context.Context, boothID, date string)            {}

// ----- ports.EventPublisher -----

// RecordingPublisher captures published events for assertions.
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []PublishedEvent
}

type PublishedEvent struct {
	Channel string
	Type    ride.EventType
	Payload any
}

func (p *RecordingPublisher) Publish(ctx context.Context, channel string, eventType ride.EventType, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, PublishedEvent{Channel: channel, Type: eventType, Payload: payload})
	return nil
}

// TypesFor returns the event types published in order for a channel.
func (p *RecordingPublisher) TypesFor(channel string) []ride.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []ride.EventType
	for _, e := range p.Events {
		if e.Channel == channel {
			out = append(out, e.Type)
		}
	}
	return out
}
