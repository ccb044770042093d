package models

import (
	"fmt"

	"bustix/internal/domain"
)

type TripStatus string

const (
	TripScheduled TripStatus = "scheduled"
	TripDeparted  TripStatus = "departed"
	TripArrived   TripStatus = "arrived"
	TripCancelled TripStatus = "cancelled"
)

func (s TripStatus) Valid() bool {
	switch s {
	case TripScheduled, TripDeparted, TripArrived, TripCancelled:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPayOnBus  PaymentStatus = "pay_on_bus"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentPending:   {PaymentCompleted, PaymentFailed},
	PaymentPayOnBus:  {PaymentCompleted, PaymentFailed},
	PaymentCompleted: {PaymentRefunded},
	PaymentFailed:    {},
	PaymentRefunded:  {},
}

func (s PaymentStatus) Valid() bool {
	_, ok := paymentTransitions[s]
	return ok
}

// Active reports whether a booking in this state holds its seat.
func (s PaymentStatus) Active() bool {
	return s == PaymentPending || s == PaymentPayOnBus || s == PaymentCompleted
}

func (s PaymentStatus) Terminal() bool {
	return s.Valid() && len(paymentTransitions[s]) == 0
}

func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	for _, next := range paymentTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

func (s PaymentStatus) ValidateTransition(to PaymentStatus) error {
	if !s.CanTransition(to) {
		return domain.ConflictError{
			Resource: "booking",
			Code:     domain.CodeInvalidTransition,
			Msg:      fmt.Sprintf("payment status cannot move from %s to %s", s, to),
			Current:  string(s),
		}
	}
	return nil
}

type VerificationStatus string

const (
	VerificationPending VerificationStatus = "pending"
	VerificationUsed    VerificationStatus = "used"
)

var verificationTransitions = map[VerificationStatus][]VerificationStatus{
	VerificationPending: {VerificationUsed},
	VerificationUsed:    {},
}

func (s VerificationStatus) Valid() bool {
	_, ok := verificationTransitions[s]
	return ok
}

func (s VerificationStatus) CanTransition(to VerificationStatus) bool {
	for _, next := range verificationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

type CancellationStatus string

const (
	CancellationPending  CancellationStatus = "pending"
	CancellationApproved CancellationStatus = "approved"
	CancellationRejected CancellationStatus = "rejected"
)

var cancellationTransitions = map[CancellationStatus][]CancellationStatus{
	CancellationPending:  {CancellationApproved, CancellationRejected},
	CancellationApproved: {},
	CancellationRejected: {},
}

func (s CancellationStatus) Valid() bool {
	_, ok := cancellationTransitions[s]
	return ok
}

func (s CancellationStatus) CanTransition(to CancellationStatus) bool {
	for _, next := range cancellationTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// VerifyOutcome is the result of scanning a boarding credential.
type VerifyOutcome string

const (
	OutcomeValid     VerifyOutcome = "valid"
	OutcomeDuplicate VerifyOutcome = "duplicate"
	OutcomeExpired   VerifyOutcome = "expired"
	OutcomeInvalid   VerifyOutcome = "invalid"
)

type PaymentMethod string

const (
	MethodGateway PaymentMethod = "gateway"
	MethodManual  PaymentMethod = "manual"
)

// PaymentOutcome is what a gateway or an operator reports for one transaction.
type PaymentOutcome string

const (
	OutcomeCompleted PaymentOutcome = "completed"
	OutcomeFailed    PaymentOutcome = "failed"
)

func (o PaymentOutcome) Valid() bool {
	return o == OutcomeCompleted || o == OutcomeFailed
}

type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

func (d Decision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}
