package services

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"bustix/internal/domain/models"
	"bustix/internal/utils"

	"github.com/boombuler/barcode/qr"
	"github.com/phpdave11/gofpdf"
	"github.com/phpdave11/gofpdf/contrib/barcode"
)

const qrSizeMM = 42

type boardingPassData struct {
	Booking  models.BookingDetail
	Currency string
	Location *time.Location
	IssuedAt time.Time
}

func buildBoardingPassPDF(d boardingPassData) ([]byte, string, error) {
	b := d.Booking
	pdf := gofpdf.New("P", "mm", "A5", "")
	pdf.SetTitle("Boarding Pass "+b.Reference, false)
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "BOARDING PASS")
	pdf.Ln(12)

	payment := "Paid"
	if b.PaymentStatus == models.PaymentPayOnBus {
		payment = "Pay on bus: " + utils.FormatCurrency(d.Currency, b.AmountDue)
	}

	pdf.SetFont("Helvetica", "", 11)
	lines := []string{
		fmt.Sprintf("Reference   : %s", b.Reference),
		fmt.Sprintf("Passenger   : %s", safe(b.Passenger.Name, "-")),
		fmt.Sprintf("Phone       : %s", safe(b.Passenger.Phone, "-")),
		fmt.Sprintf("Route       : %s -> %s", safe(b.Origin, "-"), safe(b.Destination, "-")),
		fmt.Sprintf("Departure   : %s", utils.FormatDateTime(b.DepartureAt, d.Location)),
		fmt.Sprintf("Bus         : %s", safe(b.BusNumber, "-")),
		fmt.Sprintf("Seat        : %d", b.SeatNumber),
		fmt.Sprintf("Fare        : %s", utils.FormatCurrency(d.Currency, b.AmountDue)),
		fmt.Sprintf("Payment     : %s", payment),
	}
	for _, s := range lines {
		pdf.Cell(0, 7, s)
		pdf.Ln(7)
	}

	// The QR carries what the conductor's scanner submits: the signed
	// credential, or the bare reference for passes issued without one.
	payload := b.Credential
	if payload == "" {
		payload = b.Reference
	}
	pdf.Ln(2)
	left, _, _, _ := pdf.GetMargins()
	key := barcode.RegisterQR(pdf, payload, qr.H, qr.Auto)
	barcode.Barcode(pdf, key, left, pdf.GetY(), qrSizeMM, qrSizeMM, false)
	pdf.SetY(pdf.GetY() + qrSizeMM + 2)

	if b.Credential != "" {
		pdf.SetFont("Courier", "", 7)
		pdf.MultiCell(0, 4, b.Credential, "1", "", false)
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, "Valid for one passenger on the date shown. Present this pass to the conductor when boarding.", "", "", false)
	pdf.Cell(0, 5, "Issued "+utils.FormatDateTime(d.IssuedAt, d.Location))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, "", err
	}
	filename := fmt.Sprintf("BOARDING_PASS_%s_%s.pdf", b.Reference, safeFilenamePart(b.Passenger.Name))
	return buf.Bytes(), filename, nil
}

func safe(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func safeFilenamePart(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "NA"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_", ":", "_", "*", "_", "?", "_", "\"", "_", "<", "_", ">", "_", "|", "_")
	s = replacer.Replace(s)
	if len(s) > 40 {
		s = s[:40]
	}
	return s
}
