package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// Migrations are idempotent DDL statements applied in order.
var Migrations = []string{
	createTripsTable,
	createBookingsTable,
	createPaymentsTable,
	createCancellationsTable,
	createVerificationLogsTable,
}

// RunMigrations applies every statement in Migrations.
func RunMigrations(ctx context.Context, conn *sql.DB) error {
	slog.Info("running database migrations", "count", len(Migrations))
	for i, stmt := range Migrations {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	slog.Info("migrations completed")
	return nil
}

const createTripsTable = `
CREATE TABLE IF NOT EXISTS trips (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    origin VARCHAR(120) NOT NULL,
    destination VARCHAR(120) NOT NULL,
    bus_number VARCHAR(40) NOT NULL DEFAULT '',
    total_seats INT NOT NULL,
    available_seats INT NOT NULL,
    departure_at DATETIME NOT NULL,
    fare BIGINT NOT NULL DEFAULT 0,
    status ENUM('scheduled','departed','arrived','cancelled') NOT NULL DEFAULT 'scheduled',
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    CONSTRAINT chk_trip_seats CHECK (available_seats >= 0 AND available_seats <= total_seats),
    KEY idx_trips_departure (departure_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// seat_claim is the seat number while the booking holds it and NULL
// otherwise; the unique index over it allows one holder per seat.
const createBookingsTable = `
CREATE TABLE IF NOT EXISTS bookings (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    booking_reference VARCHAR(32) NOT NULL,
    trip_id BIGINT NOT NULL,
    user_id BIGINT NOT NULL,
    seat_number INT NOT NULL,
    passenger_name VARCHAR(150) NOT NULL,
    passenger_email VARCHAR(150) NOT NULL DEFAULT '',
    passenger_phone VARCHAR(40) NOT NULL DEFAULT '',
    amount_due BIGINT NOT NULL,
    payment_status ENUM('pending','pay_on_bus','completed','failed','refunded') NOT NULL DEFAULT 'pending',
    verification_status ENUM('pending','used') NOT NULL DEFAULT 'pending',
    credential TEXT NULL,
    idempotency_key VARCHAR(64) NULL,
    seat_claim INT AS (IF(payment_status IN ('pending','pay_on_bus','completed'), seat_number, NULL)) STORED,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
    UNIQUE KEY uniq_booking_reference (booking_reference),
    UNIQUE KEY uniq_trip_seat_claim (trip_id, seat_claim),
    UNIQUE KEY uniq_user_idempotency (user_id, idempotency_key),
    KEY idx_bookings_status_created (payment_status, created_at),
    CONSTRAINT fk_bookings_trip FOREIGN KEY (trip_id) REFERENCES trips(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createPaymentsTable = `
CREATE TABLE IF NOT EXISTS payments (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    booking_id BIGINT NOT NULL,
    amount BIGINT NOT NULL,
    transaction_id VARCHAR(100) NOT NULL,
    method ENUM('gateway','manual') NOT NULL,
    status ENUM('completed','failed') NOT NULL,
    recorded_at DATETIME NOT NULL,
    UNIQUE KEY uniq_payment_transaction (transaction_id),
    KEY idx_payments_booking (booking_id),
    CONSTRAINT fk_payments_booking FOREIGN KEY (booking_id) REFERENCES bookings(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createCancellationsTable = `
CREATE TABLE IF NOT EXISTS cancellation_requests (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    booking_id BIGINT NOT NULL,
    requested_by BIGINT NOT NULL,
    reason TEXT NOT NULL,
    status ENUM('pending','approved','rejected') NOT NULL DEFAULT 'pending',
    refund_amount BIGINT NOT NULL DEFAULT 0,
    refund_percent INT NOT NULL DEFAULT 0,
    hours_to_departure DOUBLE NULL,
    decided_by BIGINT NULL,
    decided_at DATETIME NULL,
    remarks TEXT NULL,
    pending_claim BIGINT AS (IF(status = 'pending', booking_id, NULL)) STORED,
    created_at DATETIME NOT NULL,
    UNIQUE KEY uniq_pending_cancellation (pending_claim),
    KEY idx_cancellations_requested_by (requested_by),
    CONSTRAINT fk_cancellations_booking FOREIGN KEY (booking_id) REFERENCES bookings(id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

const createVerificationLogsTable = `
CREATE TABLE IF NOT EXISTS verification_logs (
    id BIGINT AUTO_INCREMENT PRIMARY KEY,
    booking_id BIGINT NULL,
    booking_reference VARCHAR(64) NOT NULL,
    verifier_id BIGINT NOT NULL,
    outcome ENUM('valid','duplicate','expired','invalid') NOT NULL,
    created_at DATETIME NOT NULL,
    KEY idx_verification_booking (booking_id)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`
