package services

import (
	"context"
	"testing"
	"time"

	"bustix/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpireStaleReleasesUnpaidSeats(t *testing.T) {
	f := newFixture(t)
	trip := f.addTrip(10, 48*time.Hour)
	stale := f.reserve(trip, 1)
	payOnBus, err := f.reservations().Reserve(context.Background(), passenger, ReserveInput{
		TripID: trip.ID, SeatNumber: 2, PayOnBus: true, Passenger: models.Passenger{Name: "Cash"},
	})
	require.NoError(t, err)
	paid := f.paid(trip, 3)

	f.clock.Advance(10 * time.Minute)
	fresh := f.reserve(trip, 4)
	f.clock.Advance(6 * time.Minute)

	svc := ExpiryService{Deps: f.deps, PendingTTL: 15 * time.Minute}
	n, err := svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.PaymentFailed, f.booking(stale.ID).PaymentStatus)
	assert.Equal(t, models.PaymentPayOnBus, f.booking(payOnBus.ID).PaymentStatus)
	assert.Equal(t, models.PaymentCompleted, f.booking(paid.ID).PaymentStatus)
	assert.Equal(t, models.PaymentPending, f.booking(fresh.ID).PaymentStatus)
	assert.Equal(t, 7, f.trip(trip.ID).AvailableSeats)
	f.requireConserved(trip.ID)

	n, err = svc.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	// A payment arriving after expiry is stale.
	_, err = f.payments().ApplyPayment(context.Background(), completed(stale.Reference, "PH-LATE", 1000))
	require.Error(t, err)
}

func TestExpireStaleDisabledWithoutTTL(t *testing.T) {
	f := newFixture(t)
	trip := f.addTrip(10, 48*time.Hour)
	f.reserve(trip, 1)
	f.clock.Advance(24 * time.Hour)

	n, err := ExpiryService{Deps: f.deps}.ExpireStale(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpiryRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	trip := f.addTrip(10, 48*time.Hour)
	b := f.reserve(trip, 1)
	f.clock.Advance(time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ExpiryService{Deps: f.deps, PendingTTL: 15 * time.Minute}.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		got, err := f.store.BookingByID(context.Background(), b.ID)
		return err == nil && got.PaymentStatus == models.PaymentFailed
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
