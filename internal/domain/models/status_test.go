package models

import (
	"testing"

	"bustix/internal/domain"
)

func TestPaymentTransitions(t *testing.T) {
	allowed := []struct{ from, to PaymentStatus }{
		{PaymentPending, PaymentCompleted},
		{PaymentPending, PaymentFailed},
		{PaymentPayOnBus, PaymentCompleted},
		{PaymentPayOnBus, PaymentFailed},
		{PaymentCompleted, PaymentRefunded},
	}
	for _, tc := range allowed {
		if err := tc.from.ValidateTransition(tc.to); err != nil {
			t.Fatalf("%s -> %s should be allowed: %v", tc.from, tc.to, err)
		}
	}

	denied := []struct{ from, to PaymentStatus }{
		{PaymentRefunded, PaymentCompleted},
		{PaymentFailed, PaymentCompleted},
		{PaymentCompleted, PaymentCompleted},
		{PaymentPending, PaymentRefunded},
	}
	for _, tc := range denied {
		err := tc.from.ValidateTransition(tc.to)
		if err == nil {
			t.Fatalf("%s -> %s should be rejected", tc.from, tc.to)
		}
		if domain.CodeOf(err) != domain.CodeInvalidTransition {
			t.Fatalf("unexpected code %s", domain.CodeOf(err))
		}
	}
}

func TestPaymentStatusActive(t *testing.T) {
	for _, s := range []PaymentStatus{PaymentPending, PaymentPayOnBus, PaymentCompleted} {
		if !s.Active() {
			t.Fatalf("%s should hold its seat", s)
		}
	}
	for _, s := range []PaymentStatus{PaymentFailed, PaymentRefunded} {
		if s.Active() || !s.Terminal() {
			t.Fatalf("%s should be terminal and inactive", s)
		}
	}
	if PaymentStatus("paid").Valid() {
		t.Fatalf("unknown status accepted")
	}
}

func TestVerificationAndCancellationTransitions(t *testing.T) {
	if !VerificationPending.CanTransition(VerificationUsed) || VerificationUsed.CanTransition(VerificationPending) {
		t.Fatalf("verification table wrong")
	}
	if !CancellationPending.CanTransition(CancellationApproved) || CancellationApproved.CanTransition(CancellationRejected) {
		t.Fatalf("cancellation table wrong")
	}
}
