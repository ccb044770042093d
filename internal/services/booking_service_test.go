package services

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookingLookupsEnforceOwnership(t *testing.T) {
	f := newFixture(t)
	trip := f.addTrip(10, 48*time.Hour)
	b := f.reserve(trip, 6)
	svc := f.bookings()

	got, err := svc.Get(context.Background(), passenger, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Colombo", got.Origin)
	assert.Equal(t, "NB-1234", got.BusNumber)

	_, err = svc.Get(context.Background(), stranger, b.ID)
	assert.True(t, domain.IsForbidden(err))
	_, err = svc.Get(context.Background(), conductor, b.ID)
	assert.NoError(t, err)

	byRef, err := svc.GetByReference(context.Background(), passenger, strings.ToLower(b.Reference))
	require.NoError(t, err)
	assert.Equal(t, b.ID, byRef.ID)

	_, err = svc.GetByReference(context.Background(), passenger, "AHC-MISSING00")
	assert.Equal(t, domain.CodeBookingNotFound, domain.CodeOf(err))
}

func TestBookingListScopesToOwner(t *testing.T) {
	f := newFixture(t)
	trip := f.addTrip(10, 48*time.Hour)
	f.reserve(trip, 1)
	f.paid(trip, 2)
	_, err := f.reservations().Reserve(context.Background(), stranger, ReserveInput{TripID: trip.ID, SeatNumber: 3, Passenger: models.Passenger{Name: "Other"}})
	require.NoError(t, err)
	svc := f.bookings()

	mine, err := svc.List(context.Background(), passenger, BookingQuery{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	all, err := svc.List(context.Background(), admin, BookingQuery{TripID: trip.ID})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	done, err := svc.List(context.Background(), admin, BookingQuery{Status: models.PaymentCompleted})
	require.NoError(t, err)
	assert.Len(t, done, 1)

	_, err = svc.List(context.Background(), admin, BookingQuery{Status: "lost"})
	assert.True(t, domain.IsValidation(err))

	stats, err := svc.Stats(context.Background(), admin)
	require.NoError(t, err)
	assert.Equal(t, models.BookingStats{Total: 3, Pending: 2, Completed: 1, Revenue: 1000}, stats)

	_, err = svc.Stats(context.Background(), passenger)
	assert.True(t, domain.IsForbidden(err))
}

func TestSeatMapIsCachedUntilInvalidated(t *testing.T) {
	f := newFixture(t)
	trip := f.addTrip(4, 48*time.Hour)
	f.reserve(trip, 2)
	svc := f.bookings()

	m, err := svc.SeatMap(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, m.BookedSeats)
	assert.Equal(t, 3, m.AvailableSeats)
	_, cached, _ := f.cache.Get(context.Background(), trip.ID)
	assert.True(t, cached)

	f.reserve(trip, 4)
	m, err = svc.SeatMap(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, m.BookedSeats)
	assert.Equal(t, 2, m.AvailableSeats)

	_, err = svc.SeatMap(context.Background(), 999)
	assert.Equal(t, domain.CodeTripNotFound, domain.CodeOf(err))
}

func TestSeatMapFillRacingAReservationIsNotCached(t *testing.T) {
	f := newFixture(t)
	trip := f.addTrip(4, 48*time.Hour)
	f.reserve(trip, 2)
	svc := f.bookings()

	f.cache.beforeSet = func() { f.reserve(trip, 3) }
	stale, err := svc.SeatMap(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, stale.BookedSeats)
	assert.Equal(t, 1, f.cache.skipped)
	_, cached, _ := f.cache.Get(context.Background(), trip.ID)
	assert.False(t, cached)

	m, err := svc.SeatMap(context.Background(), trip.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, m.BookedSeats)
	assert.Equal(t, 2, m.AvailableSeats)
	_, cached, _ = f.cache.Get(context.Background(), trip.ID)
	assert.True(t, cached)
}

func TestBoardingPass(t *testing.T) {
	f := newFixture(t)
	trip := f.addTrip(10, 48*time.Hour)
	paid := f.paid(trip, 1)
	pending := f.reserve(trip, 2)
	svc := f.bookings()

	pdf, filename, err := svc.BoardingPass(context.Background(), passenger, paid.ID)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(pdf, []byte("%PDF")))
	assert.True(t, bytes.Contains(pdf, []byte("/Subtype /Image")), "pass should carry a QR image")
	assert.Equal(t, "BOARDING_PASS_"+paid.Reference+"_Nimal_Perera.pdf", filename)

	_, _, err = svc.BoardingPass(context.Background(), passenger, pending.ID)
	assert.Equal(t, domain.CodeNotPaid, domain.CodeOf(err))
	_, _, err = svc.BoardingPass(context.Background(), stranger, paid.ID)
	assert.True(t, domain.IsForbidden(err))
}

func TestBookingHistory(t *testing.T) {
	f := newFixture(t)
	trip := f.addTrip(10, 48*time.Hour)
	b := f.paid(trip, 1)
	_, err := f.verifier().Verify(context.Background(), conductor, b.Reference)
	require.NoError(t, err)
	svc := f.bookings()

	payments, err := svc.Payments(context.Background(), passenger, b.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "PH-"+b.Reference, payments[0].TransactionID)

	scans, err := svc.Scans(context.Background(), conductor, b.ID)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, models.OutcomeValid, scans[0].Outcome)

	_, err = svc.Scans(context.Background(), passenger, b.ID)
	assert.True(t, domain.IsForbidden(err))
}
