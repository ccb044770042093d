package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"bustix/internal/clock"
	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/repositories"
	"bustix/internal/repositories/memstore"

	"github.com/stretchr/testify/require"
)

var colombo = time.FixedZone("+0530", 5*3600+30*60)

var (
	passenger = domain.Actor{ID: 7, Role: domain.RolePassenger}
	stranger  = domain.Actor{ID: 8, Role: domain.RolePassenger}
	admin     = domain.Actor{ID: 1, Role: domain.RoleAdmin}
	conductor = domain.Actor{ID: 2, Role: domain.RoleConductor}
)

type recordingNotifier struct {
	mu        sync.Mutex
	created   []models.Booking
	confirmed []models.Booking
	decided   []models.CancellationRequest
}

func (n *recordingNotifier) NotifyBookingCreated(_ context.Context, b models.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.created = append(n.created, b)
}

func (n *recordingNotifier) NotifyPaymentConfirmed(_ context.Context, b models.Booking) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmed = append(n.confirmed, b)
}

func (n *recordingNotifier) NotifyCancellationDecision(_ context.Context, c models.CancellationRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.decided = append(n.decided, c)
}

type recordingCache struct {
	mu          sync.Mutex
	maps        map[int64]models.SeatMap
	gens        map[int64]int64
	invalidated []int64
	skipped     int
	// beforeSet runs between the ledger read and the cache write.
	beforeSet func()
}

func newRecordingCache() *recordingCache {
	return &recordingCache{maps: map[int64]models.SeatMap{}, gens: map[int64]int64{}}
}

func (c *recordingCache) Get(_ context.Context, tripID int64) (models.SeatMap, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.maps[tripID]
	return m, ok, nil
}

func (c *recordingCache) Generation(_ context.Context, tripID int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[tripID], nil
}

func (c *recordingCache) Set(_ context.Context, m models.SeatMap, generation int64) (bool, error) {
	if hook := c.beforeSet; hook != nil {
		c.beforeSet = nil
		hook()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gens[m.TripID] != generation {
		c.skipped++
		return false, nil
	}
	c.maps[m.TripID] = m
	return true, nil
}

func (c *recordingCache) Invalidate(_ context.Context, tripID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[tripID]++
	delete(c.maps, tripID)
	c.invalidated = append(c.invalidated, tripID)
	return nil
}

type fixture struct {
	t        *testing.T
	store    *memstore.Store
	clock    *clock.FakeClock
	notifier *recordingNotifier
	cache    *recordingCache
	deps     Deps
}

// now is 2026-03-10 09:00 in Colombo.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		t:        t,
		store:    memstore.New(),
		clock:    clock.Fake(time.Date(2026, 3, 10, 9, 0, 0, 0, colombo)),
		notifier: &recordingNotifier{},
		cache:    newRecordingCache(),
	}
	f.deps = Deps{
		Store:     f.store,
		Clock:     f.clock,
		Notifier:  f.notifier,
		SeatCache: f.cache,
		Location:  colombo,
		Timeout:   2 * time.Second,
	}
	return f
}

func (f *fixture) addTrip(seats int, departsIn time.Duration) models.Trip {
	return f.store.AddTrip(models.Trip{
		Origin:      "Colombo",
		Destination: "Kandy",
		BusNumber:   "NB-1234",
		TotalSeats:  seats,
		DepartureAt: f.clock.Now().Add(departsIn),
		Fare:        1000,
	})
}

func (f *fixture) reservations() ReservationService {
	return ReservationService{Deps: f.deps, ReferencePrefix: "AHC"}
}

func (f *fixture) payments() PaymentService {
	return PaymentService{Deps: f.deps}
}

func (f *fixture) cancellations() CancellationService {
	return CancellationService{Deps: f.deps, Policy: DefaultRefundPolicy}
}

func (f *fixture) verifier() VerificationService {
	return VerificationService{Deps: f.deps}
}

func (f *fixture) bookings() BookingService {
	return BookingService{Deps: f.deps, Currency: "LKR"}
}

func (f *fixture) reserve(trip models.Trip, seat int) models.Booking {
	f.t.Helper()
	b, err := f.reservations().Reserve(context.Background(), passenger, ReserveInput{
		TripID:     trip.ID,
		SeatNumber: seat,
		Passenger:  models.Passenger{Name: "Nimal Perera", Email: "nimal@example.com", Phone: "0771234567"},
	})
	require.NoError(f.t, err)
	return b
}

// paid reserves a seat and completes its payment.
func (f *fixture) paid(trip models.Trip, seat int) models.Booking {
	f.t.Helper()
	b := f.reserve(trip, seat)
	res, err := f.payments().ApplyPayment(context.Background(), PaymentNotice{
		Reference:     b.Reference,
		TransactionID: "PH-" + b.Reference,
		Amount:        b.AmountDue,
		Outcome:       models.OutcomeCompleted,
	})
	require.NoError(f.t, err)
	return res.Booking
}

func (f *fixture) trip(id int64) models.Trip {
	f.t.Helper()
	trip, err := f.store.TripByID(context.Background(), id)
	require.NoError(f.t, err)
	return trip
}

func (f *fixture) booking(id int64) models.BookingDetail {
	f.t.Helper()
	b, err := f.store.BookingByID(context.Background(), id)
	require.NoError(f.t, err)
	return b
}

// activeSeats counts bookings that hold a seat on the trip.
func (f *fixture) activeSeats(tripID int64) int {
	f.t.Helper()
	m, err := f.store.SeatMap(context.Background(), tripID)
	require.NoError(f.t, err)
	return len(m.BookedSeats)
}

// requireConserved checks available + held == total.
func (f *fixture) requireConserved(tripID int64) {
	f.t.Helper()
	trip := f.trip(tripID)
	require.Equal(f.t, trip.TotalSeats, trip.AvailableSeats+f.activeSeats(tripID), "seat inventory drifted")
}

func (f *fixture) drainSeats(tripID int64, n int) {
	f.t.Helper()
	err := f.store.InTx(context.Background(), "test", func(tx repositories.Tx) error {
		return tx.AdjustAvailableSeats(context.Background(), tripID, -n)
	})
	require.NoError(f.t, err)
}
