package sandbox

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the sandbox in the schema from the migrations package.
type PostgresStore struct {
	db querier
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("sandbox: pgx pool required")
	}
	return &PostgresStore{db: pool}
}

func newPostgresStoreWithQuerier(q querier) *PostgresStore {
	if q == nil {
		panic("sandbox: querier required")
	}
	return &PostgresStore{db: q}
}

const userColumns = `id, name, COALESCE(email, ''), COALESCE(phone, ''), password_hash, verified, is_google_auth, created_at`

func (s *PostgresStore) SaveUser(ctx context.Context, u User) error {
	query := `
		INSERT INTO sandbox_users (id, name, email, phone, password_hash, verified, is_google_auth, created_at)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			password_hash = EXCLUDED.password_hash,
			verified = EXCLUDED.verified,
			is_google_auth = EXCLUDED.is_google_auth
	`
	if _, err := s.db.Exec(ctx, query, u.ID, u.Name, u.Email, u.Phone, u.PasswordHash, u.Verified, u.IsGoogleAuth, u.CreatedAt); err != nil {
		return fmt.Errorf("sandbox: save user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM sandbox_users WHERE id = $1`, id)
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM sandbox_users WHERE lower(email) = lower($1)`, email)
}

func (s *PostgresStore) FindUserByPhone(ctx context.Context, phone string) (*User, error) {
	return s.queryUser(ctx, `SELECT `+userColumns+` FROM sandbox_users WHERE phone = $1`, phone)
}

func (s *PostgresStore) queryUser(ctx context.Context, query, arg string) (*User, error) {
	var u User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&u.ID, &u.Name, &u.Email, &u.Phone, &u.PasswordHash, &u.Verified, &u.IsGoogleAuth, &u.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sandbox: load user: %w", err)
	}
	return &u, nil
}

const bookingColumns = `id, booking_number, user_id, clinic_id, clinic_name, patient_name, patient_email,
	patient_phone, booking_date, booking_time, sessions, amount, payment_method, status, payment_status,
	order_id, transaction_id, created_at`

func (s *PostgresStore) CreateBooking(ctx context.Context, b Booking) error {
	query := `
		INSERT INTO sandbox_bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`
	_, err := s.db.Exec(ctx, query,
		b.ID, b.BookingNumber, b.UserID, b.ClinicID, b.ClinicName, b.PatientName, b.PatientEmail,
		b.PatientPhone, b.Date, b.Time, b.Sessions, b.Amount, b.PaymentMethod, b.Status, b.PaymentStatus,
		b.OrderID, b.TransactionID, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sandbox: insert booking: %w", err)
	}
	return nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	err := row.Scan(
		&b.ID, &b.BookingNumber, &b.UserID, &b.ClinicID, &b.ClinicName, &b.PatientName, &b.PatientEmail,
		&b.PatientPhone, &b.Date, &b.Time, &b.Sessions, &b.Amount, &b.PaymentMethod, &b.Status, &b.PaymentStatus,
		&b.OrderID, &b.TransactionID, &b.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *PostgresStore) GetBooking(ctx context.Context, id string) (*Booking, error) {
	b, err := scanBooking(s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM sandbox_bookings WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sandbox: load booking: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) ListBookings(ctx context.Context, userID string) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `SELECT `+bookingColumns+` FROM sandbox_bookings WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("sandbox: list bookings: %w", err)
	}
	defer rows.Close()
	var out []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("sandbox: scan booking: %w", err)
		}
		out = append(out, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sandbox: list bookings: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateBookingStatus(ctx context.Context, id, status, paymentStatus, transactionID string) error {
	query := `
		UPDATE sandbox_bookings
		SET status = $2, payment_status = $3, transaction_id = COALESCE(NULLIF($4, ''), transaction_id)
		WHERE id = $1
	`
	tag, err := s.db.Exec(ctx, query, id, status, paymentStatus, transactionID)
	if err != nil {
		return fmt.Errorf("sandbox: update booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SlotCounts(ctx context.Context, clinicID string) (map[string]int, error) {
	query := `
		SELECT booking_date, booking_time, COUNT(*)
		FROM sandbox_bookings
		WHERE clinic_id = $1 AND status IN ('pending', 'confirmed')
		GROUP BY booking_date, booking_time
	`
	rows, err := s.db.Query(ctx, query, clinicID)
	if err != nil {
		return nil, fmt.Errorf("sandbox: slot counts: %w", err)
	}
	defer rows.Close()
	counts := make(map[string]int)
	for rows.Next() {
		var date, t string
		var n int
		if err := rows.Scan(&date, &t, &n); err != nil {
			return nil, fmt.Errorf("sandbox: scan slot count: %w", err)
		}
		counts[slotKey(date, t)] = n
	}
	return counts, rows.Err()
}

func (s *PostgresStore) RecordAudit(ctx context.Context, e AuditEvent) error {
	query := `INSERT INTO sandbox_payment_audit (kind, booking_id, payload, created_at) VALUES ($1, $2, $3, $4)`
	if _, err := s.db.Exec(ctx, query, e.Kind, e.BookingID, e.Payload, e.CreatedAt); err != nil {
		return fmt.Errorf("sandbox: record audit: %w", err)
	}
	return nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
