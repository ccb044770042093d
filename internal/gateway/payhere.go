// Package gateway signs checkout requests and authenticates payment
// notifications for the PayHere hosted checkout.
package gateway

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
	"bustix/internal/utils"
)

// PayHere status codes carried by a notification.
const (
	StatusSuccess    = "2"
	StatusPending    = "0"
	StatusCanceled   = "-1"
	StatusFailed     = "-2"
	StatusChargeback = "-3"
)

type PayHere struct {
	MerchantID     string
	MerchantSecret string
	Currency       string
	CheckoutURL    string
	ReturnURL      string
	CancelURL      string
	NotifyURL      string
}

// Notification is the server-to-server callback, posted form-encoded.
type Notification struct {
	MerchantID string `form:"merchant_id" json:"merchant_id"`
	OrderID    string `form:"order_id" json:"order_id"`
	PaymentID  string `form:"payment_id" json:"payment_id"`
	Amount     string `form:"payhere_amount" json:"payhere_amount"`
	Currency   string `form:"payhere_currency" json:"payhere_currency"`
	StatusCode string `form:"status_code" json:"status_code"`
	Signature  string `form:"md5sig" json:"md5sig"`
}

// Outcome maps the status code. ok is false for codes that carry no final
// outcome yet.
func (n Notification) Outcome() (outcome models.PaymentOutcome, ok bool) {
	switch strings.TrimSpace(n.StatusCode) {
	case StatusSuccess:
		return models.OutcomeCompleted, true
	case StatusCanceled, StatusFailed, StatusChargeback:
		return models.OutcomeFailed, true
	default:
		return "", false
	}
}

func md5Upper(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func (g PayHere) hashedSecret() string {
	return md5Upper(g.MerchantSecret)
}

// Sign computes the md5sig PayHere attaches to a notification.
func (g PayHere) Sign(n Notification) string {
	return md5Upper(n.MerchantID + n.OrderID + n.Amount + n.Currency + n.StatusCode + g.hashedSecret())
}

// Verify authenticates a notification. It touches no state.
func (g PayHere) Verify(n Notification) error {
	if g.MerchantSecret == "" {
		return domain.IntegrityError{Code: domain.CodeSignatureMismatch, Msg: "gateway secret not configured"}
	}
	if g.MerchantID != "" && subtle.ConstantTimeCompare([]byte(n.MerchantID), []byte(g.MerchantID)) != 1 {
		return domain.IntegrityError{Code: domain.CodeMerchantMismatch, Msg: "merchant id does not match"}
	}
	want := g.Sign(n)
	got := strings.ToUpper(strings.TrimSpace(n.Signature))
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return domain.IntegrityError{Code: domain.CodeSignatureMismatch, Msg: "payment notification signature mismatch"}
	}
	return nil
}

// CheckoutRequest holds the fields the payment page posts to PayHere.
type CheckoutRequest struct {
	ActionURL  string `json:"action_url"`
	MerchantID string `json:"merchant_id"`
	ReturnURL  string `json:"return_url"`
	CancelURL  string `json:"cancel_url"`
	NotifyURL  string `json:"notify_url"`
	OrderID    string `json:"order_id"`
	Items      string `json:"items"`
	Currency   string `json:"currency"`
	Amount     string `json:"amount"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone"`
	Hash       string `json:"hash"`
}

// Checkout builds the signed checkout form for one booking.
func (g PayHere) Checkout(b models.BookingDetail) CheckoutRequest {
	amount := utils.FormatAmount(b.AmountDue)
	first, last, _ := strings.Cut(strings.TrimSpace(b.Passenger.Name), " ")
	return CheckoutRequest{
		ActionURL:  g.CheckoutURL,
		MerchantID: g.MerchantID,
		ReturnURL:  g.ReturnURL,
		CancelURL:  g.CancelURL,
		NotifyURL:  g.NotifyURL,
		OrderID:    b.Reference,
		Items:      b.Origin + " - " + b.Destination + " seat " + strconv.Itoa(b.SeatNumber),
		Currency:   g.Currency,
		Amount:     amount,
		FirstName:  first,
		LastName:   strings.TrimSpace(last),
		Email:      b.Passenger.Email,
		Phone:      b.Passenger.Phone,
		Hash:       md5Upper(g.MerchantID + b.Reference + amount + g.Currency + g.hashedSecret()),
	}
}
