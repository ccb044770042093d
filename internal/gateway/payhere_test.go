package gateway

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"testing"

	"bustix/internal/domain"
	"bustix/internal/domain/models"
)

func testGateway() PayHere {
	return PayHere{MerchantID: "1211149", MerchantSecret: "s3cr3t", Currency: "LKR", CheckoutURL: "https://sandbox.payhere.lk/pay/checkout"}
}

func upperMD5(s string) string {
	sum := md5.Sum([]byte(s))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

func signedNotification(g PayHere, status string) Notification {
	n := Notification{
		MerchantID: g.MerchantID,
		OrderID:    "AHC-0A1B2C3D4E",
		PaymentID:  "320025071278",
		Amount:     "1000.00",
		Currency:   "LKR",
		StatusCode: status,
	}
	n.Signature = g.Sign(n)
	return n
}

func TestSignMatchesPayHereFormula(t *testing.T) {
	g := testGateway()
	n := signedNotification(g, StatusSuccess)
	want := upperMD5("1211149" + "AHC-0A1B2C3D4E" + "1000.00" + "LKR" + "2" + upperMD5("s3cr3t"))
	if n.Signature != want {
		t.Fatalf("signature = %s, want %s", n.Signature, want)
	}
	if err := g.Verify(n); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	g := testGateway()

	n := signedNotification(g, StatusSuccess)
	n.Amount = "1.00"
	if err := g.Verify(n); domain.CodeOf(err) != domain.CodeSignatureMismatch {
		t.Fatalf("expected signature mismatch, got %v", err)
	}

	n = signedNotification(g, StatusFailed)
	n.StatusCode = StatusSuccess
	if err := g.Verify(n); !domain.IsIntegrity(err) {
		t.Fatalf("expected integrity error, got %v", err)
	}

	n = signedNotification(g, StatusSuccess)
	n.MerchantID = "999"
	if err := g.Verify(n); domain.CodeOf(err) != domain.CodeMerchantMismatch {
		t.Fatalf("expected merchant mismatch, got %v", err)
	}

	unconfigured := PayHere{}
	if err := unconfigured.Verify(signedNotification(g, StatusSuccess)); !domain.IsIntegrity(err) {
		t.Fatalf("missing secret must fail closed, got %v", err)
	}
}

func TestVerifyAcceptsLowercaseSignature(t *testing.T) {
	g := testGateway()
	n := signedNotification(g, StatusSuccess)
	n.Signature = strings.ToLower(n.Signature)
	if err := g.Verify(n); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestOutcomeMapping(t *testing.T) {
	cases := map[string]struct {
		outcome models.PaymentOutcome
		ok      bool
	}{
		StatusSuccess:    {models.OutcomeCompleted, true},
		StatusFailed:     {models.OutcomeFailed, true},
		StatusCanceled:   {models.OutcomeFailed, true},
		StatusChargeback: {models.OutcomeFailed, true},
		StatusPending:    {"", false},
		"7":              {"", false},
	}
	for code, want := range cases {
		got, ok := Notification{StatusCode: code}.Outcome()
		if got != want.outcome || ok != want.ok {
			t.Fatalf("status %s: got %s/%v", code, got, ok)
		}
	}
}

func TestCheckoutHash(t *testing.T) {
	g := testGateway()
	b := models.BookingDetail{
		Booking: models.Booking{
			Reference:  "AHC-0A1B2C3D4E",
			SeatNumber: 12,
			AmountDue:  125050,
			Passenger:  models.Passenger{Name: "Nimal Perera", Email: "n@example.lk", Phone: "0771234567"},
		},
		Origin:      "Colombo",
		Destination: "Kandy",
	}
	req := g.Checkout(b)
	if req.Amount != "1250.50" || req.FirstName != "Nimal" || req.LastName != "Perera" {
		t.Fatalf("unexpected checkout %+v", req)
	}
	want := upperMD5("1211149" + "AHC-0A1B2C3D4E" + "1250.50" + "LKR" + upperMD5("s3cr3t"))
	if req.Hash != want {
		t.Fatalf("hash = %s, want %s", req.Hash, want)
	}
	if req.Items != "Colombo - Kandy seat 12" {
		t.Fatalf("items = %q", req.Items)
	}
}
