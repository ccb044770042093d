package notify

import (
	"context"
	"sync"
	"time"

	"bustix/internal/domain/models"
	"bustix/internal/logger"
	"bustix/internal/metrics"
)

// Notifier is what the booking core calls after a commit. Calls never block
// on delivery and never report failure.
type Notifier interface {
	NotifyBookingCreated(ctx context.Context, b models.Booking)
	NotifyPaymentConfirmed(ctx context.Context, b models.Booking)
	NotifyCancellationDecision(ctx context.Context, c models.CancellationRequest)
}

// Publisher delivers one event to the transport.
type Publisher interface {
	Publish(subject string, data any) error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) NotifyBookingCreated(context.Context, models.Booking)                   {}
func (Nop) NotifyPaymentConfirmed(context.Context, models.Booking)                 {}
func (Nop) NotifyCancellationDecision(context.Context, models.CancellationRequest) {}

// Outbox is a bounded in-process queue drained by one goroutine. A full queue
// drops the event.
type Outbox struct {
	pub   Publisher
	queue chan Event
	now   func() time.Time

	wg       sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
	stopOnce sync.Once
}

func NewOutbox(pub Publisher, buffer int) *Outbox {
	if buffer <= 0 {
		buffer = 256
	}
	return &Outbox{pub: pub, queue: make(chan Event, buffer), now: time.Now}
}

// Start launches the drain loop. It exits once Close is called and the queue
// is empty.
func (o *Outbox) Start() {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		for ev := range o.queue {
			o.deliver(ev)
		}
	}()
}

func (o *Outbox) deliver(ev Event) {
	if err := o.pub.Publish(ev.Subject, ev); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		logger.WithFields("subject", ev.Subject, "request_id", ev.RequestID).
			Warn("notification publish failed", "error", err)
		return
	}
	metrics.Notifications.WithLabelValues("published").Inc()
}

// Close stops accepting events and waits for the queue to drain or ctx to end.
func (o *Outbox) Close(ctx context.Context) error {
	o.stopOnce.Do(func() {
		o.mu.Lock()
		o.closed = true
		close(o.queue)
		o.mu.Unlock()
	})
	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Outbox) enqueue(ctx context.Context, ev Event) {
	ev.OccurredAt = o.now()
	ev.RequestID = logger.RequestIDFrom(ctx)

	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		metrics.Notifications.WithLabelValues("dropped").Inc()
		return
	}
	select {
	case o.queue <- ev:
	default:
		metrics.Notifications.WithLabelValues("dropped").Inc()
		logger.WithContext(ctx).Warn("notification queue full, dropping event", "subject", ev.Subject)
	}
}

func (o *Outbox) NotifyBookingCreated(ctx context.Context, b models.Booking) {
	o.enqueue(ctx, Event{Subject: SubjectBookingCreated, Booking: &b})
}

func (o *Outbox) NotifyPaymentConfirmed(ctx context.Context, b models.Booking) {
	o.enqueue(ctx, Event{Subject: SubjectPaymentConfirmed, Booking: &b})
}

func (o *Outbox) NotifyCancellationDecision(ctx context.Context, c models.CancellationRequest) {
	o.enqueue(ctx, Event{Subject: SubjectCancellationDecision, Cancellation: &c})
}

// LogPublisher writes events to the log. Used when no queue is configured.
type LogPublisher struct{}

func (LogPublisher) Publish(subject string, data any) error {
	logger.WithFields("subject", subject).Info("notification", "event", data)
	return nil
}
