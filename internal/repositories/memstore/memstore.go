// Package memstore is an in-process Store. Transactions are serialized by a
// single store-wide lock and applied copy-on-commit, which gives the same
// all-or-nothing behavior the MySQL store gets from row locks.
package memstore

import (
	"context"
	"sort"
	"time"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/repositories"
)

type state struct {
	trips         map[int64]models.Trip
	bookings      map[int64]models.Booking
	payments      []models.PaymentRecord
	cancellations map[int64]models.CancellationRequest
	logs          []models.VerificationLogEntry
	lastID        int64
}

func newState() *state {
	return &state{
		trips:         map[int64]models.Trip{},
		bookings:      map[int64]models.Booking{},
		cancellations: map[int64]models.CancellationRequest{},
	}
}

func (s *state) clone() *state {
	c := &state{
		trips:         make(map[int64]models.Trip, len(s.trips)),
		bookings:      make(map[int64]models.Booking, len(s.bookings)),
		payments:      append([]models.PaymentRecord(nil), s.payments...),
		cancellations: make(map[int64]models.CancellationRequest, len(s.cancellations)),
		logs:          append([]models.VerificationLogEntry(nil), s.logs...),
		lastID:        s.lastID,
	}
	for k, v := range s.trips {
		c.trips[k] = v
	}
	for k, v := range s.bookings {
		c.bookings[k] = v
	}
	for k, v := range s.cancellations {
		c.cancellations[k] = v
	}
	return c
}

func (s *state) nextID() int64 {
	s.lastID++
	return s.lastID
}

type Store struct {
	sem chan struct{}
	st  *state
}

var _ repositories.Store = (*Store)(nil)

func New() *Store {
	return &Store{sem: make(chan struct{}, 1), st: newState()}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() { <-s.sem }

// AddTrip seeds a trip. A zero ID is assigned; a zero AvailableSeats is set
// to TotalSeats.
func (s *Store) AddTrip(t models.Trip) models.Trip {
	s.sem <- struct{}{}
	defer s.release()
	if t.ID == 0 {
		t.ID = s.st.nextID()
	} else if t.ID > s.st.lastID {
		s.st.lastID = t.ID
	}
	if t.AvailableSeats == 0 {
		t.AvailableSeats = t.TotalSeats
	}
	if t.Status == "" {
		t.Status = models.TripScheduled
	}
	s.st.trips[t.ID] = t
	return t
}

// PutBooking overwrites a booking as-is, bypassing every rule. For fixtures.
func (s *Store) PutBooking(b models.Booking) models.Booking {
	s.sem <- struct{}{}
	defer s.release()
	if b.ID == 0 {
		b.ID = s.st.nextID()
	}
	s.st.bookings[b.ID] = b
	return b
}

// Payments returns every payment record.
func (s *Store) Payments() []models.PaymentRecord {
	s.sem <- struct{}{}
	defer s.release()
	return append([]models.PaymentRecord(nil), s.st.payments...)
}

func (s *Store) InTx(ctx context.Context, op string, fn func(tx repositories.Tx) error) error {
	if err := s.acquire(ctx); err != nil {
		return domain.RetryableError{Op: op, Err: err}
	}
	defer s.release()

	work := s.st.clone()
	if err := fn(&memTx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.RetryableError{Op: op, Err: err}
	}
	s.st = work
	return nil
}

func (s *Store) read(ctx context.Context, fn func(st *state)) error {
	if err := s.acquire(ctx); err != nil {
		return domain.RetryableError{Op: "read", Err: err}
	}
	defer s.release()
	fn(s.st)
	return nil
}

func detail(st *state, b models.Booking) models.BookingDetail {
	t := st.trips[b.TripID]
	return models.BookingDetail{
		Booking:     b,
		Origin:      t.Origin,
		Destination: t.Destination,
		BusNumber:   t.BusNumber,
		DepartureAt: t.DepartureAt,
	}
}

func (s *Store) TripByID(ctx context.Context, id int64) (models.Trip, error) {
	var (
		t  models.Trip
		ok bool
	)
	if err := s.read(ctx, func(st *state) { t, ok = st.trips[id] }); err != nil {
		return models.Trip{}, err
	}
	if !ok {
		return models.Trip{}, repositories.ErrNotFound
	}
	return t, nil
}

func (s *Store) SeatMap(ctx context.Context, tripID int64) (models.SeatMap, error) {
	var (
		m  models.SeatMap
		ok bool
	)
	err := s.read(ctx, func(st *state) {
		var t models.Trip
		if t, ok = st.trips[tripID]; !ok {
			return
		}
		m = models.SeatMap{TripID: t.ID, TotalSeats: t.TotalSeats, AvailableSeats: t.AvailableSeats, BookedSeats: []int{}}
		for _, b := range st.bookings {
			if b.TripID == tripID && b.PaymentStatus.Active() {
				m.BookedSeats = append(m.BookedSeats, b.SeatNumber)
			}
		}
	})
	if err != nil {
		return models.SeatMap{}, err
	}
	if !ok {
		return models.SeatMap{}, repositories.ErrNotFound
	}
	sort.Ints(m.BookedSeats)
	return m, nil
}

func (s *Store) BookingByID(ctx context.Context, id int64) (models.BookingDetail, error) {
	var (
		d  models.BookingDetail
		ok bool
	)
	err := s.read(ctx, func(st *state) {
		var b models.Booking
		if b, ok = st.bookings[id]; ok {
			d = detail(st, b)
		}
	})
	if err != nil {
		return models.BookingDetail{}, err
	}
	if !ok {
		return models.BookingDetail{}, repositories.ErrNotFound
	}
	return d, nil
}

func (s *Store) BookingByReference(ctx context.Context, reference string) (models.BookingDetail, error) {
	var (
		d  models.BookingDetail
		ok bool
	)
	err := s.read(ctx, func(st *state) {
		for _, b := range st.bookings {
			if b.Reference == reference {
				d, ok = detail(st, b), true
				return
			}
		}
	})
	if err != nil {
		return models.BookingDetail{}, err
	}
	if !ok {
		return models.BookingDetail{}, repositories.ErrNotFound
	}
	return d, nil
}

func (s *Store) ListBookings(ctx context.Context, f models.BookingFilter) ([]models.BookingDetail, error) {
	out := []models.BookingDetail{}
	err := s.read(ctx, func(st *state) {
		for _, b := range st.bookings {
			if f.UserID > 0 && b.UserID != f.UserID {
				continue
			}
			if f.TripID > 0 && b.TripID != f.TripID {
				continue
			}
			if f.PaymentStatus != "" && b.PaymentStatus != f.PaymentStatus {
				continue
			}
			out = append(out, detail(st, b))
		}
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), err
}

func (s *Store) BookingStats(ctx context.Context) (models.BookingStats, error) {
	var stats models.BookingStats
	err := s.read(ctx, func(st *state) {
		for _, b := range st.bookings {
			stats.Total++
			switch b.PaymentStatus {
			case models.PaymentPending:
				stats.Pending++
			case models.PaymentPayOnBus:
				stats.PayOnBus++
			case models.PaymentCompleted:
				stats.Completed++
				stats.Revenue += b.AmountDue
			case models.PaymentFailed:
				stats.Failed++
			case models.PaymentRefunded:
				stats.Refunded++
			}
			if b.VerificationStatus == models.VerificationUsed {
				stats.Used++
			}
		}
	})
	return stats, err
}

func (s *Store) PaymentsForBooking(ctx context.Context, bookingID int64) ([]models.PaymentRecord, error) {
	out := []models.PaymentRecord{}
	err := s.read(ctx, func(st *state) {
		for _, p := range st.payments {
			if p.BookingID == bookingID {
				out = append(out, p)
			}
		}
	})
	return out, err
}

func (s *Store) ListPayments(ctx context.Context, f models.PaymentFilter) ([]models.PaymentListing, error) {
	out := []models.PaymentListing{}
	err := s.read(ctx, func(st *state) {
		for _, p := range st.payments {
			if f.Status != "" && p.Status != f.Status {
				continue
			}
			if f.Method != "" && p.Method != f.Method {
				continue
			}
			b := st.bookings[p.BookingID]
			out = append(out, models.PaymentListing{PaymentRecord: p, BookingReference: b.Reference, PassengerName: b.Passenger.Name})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f.Limit, f.Offset), err
}

func (s *Store) CancellationByID(ctx context.Context, id int64) (models.CancellationRequest, error) {
	var (
		c  models.CancellationRequest
		ok bool
	)
	if err := s.read(ctx, func(st *state) { c, ok = st.cancellations[id] }); err != nil {
		return models.CancellationRequest{}, err
	}
	if !ok {
		return models.CancellationRequest{}, repositories.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListCancellations(ctx context.Context, f models.CancellationFilter) ([]models.CancellationRequest, error) {
	out := []models.CancellationRequest{}
	err := s.read(ctx, func(st *state) {
		for _, c := range st.cancellations {
			if f.RequestedBy > 0 && c.RequestedBy != f.RequestedBy {
				continue
			}
			if f.Status != "" && c.Status != f.Status {
				continue
			}
			out = append(out, c)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return page(out, f.Limit, f.Offset), err
}

func (s *Store) CancellationStats(ctx context.Context) (models.CancellationStats, error) {
	var stats models.CancellationStats
	err := s.read(ctx, func(st *state) {
		for _, c := range st.cancellations {
			stats.Total++
			switch c.Status {
			case models.CancellationPending:
				stats.Pending++
			case models.CancellationApproved:
				stats.Approved++
				stats.TotalRefunded += c.RefundAmount
			case models.CancellationRejected:
				stats.Rejected++
			}
		}
	})
	return stats, err
}

// VerificationLogs returns the scans of one booking. A zero bookingID returns
// the scans that did not resolve to any booking.
func (s *Store) VerificationLogs(ctx context.Context, bookingID int64) ([]models.VerificationLogEntry, error) {
	out := []models.VerificationLogEntry{}
	err := s.read(ctx, func(st *state) {
		for _, e := range st.logs {
			switch {
			case e.BookingID == nil && bookingID == 0:
				out = append(out, e)
			case e.BookingID != nil && *e.BookingID == bookingID:
				out = append(out, e)
			}
		}
	})
	return out, err
}

func (s *Store) StalePendingBookings(ctx context.Context, createdBefore time.Time, limit int) ([]int64, error) {
	ids := []int64{}
	err := s.read(ctx, func(st *state) {
		for _, b := range st.bookings {
			if b.PaymentStatus == models.PaymentPending && b.CreatedAt.Before(createdBefore) {
				ids = append(ids, b.ID)
			}
		}
	})
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if limit > 0 && len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, err
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
