package sandbox

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotFound is returned when a user or booking does not exist.
var ErrNotFound = errors.New("sandbox: not found")

// Booking statuses.
const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingFailed    = "failed"
	BookingCancelled = "cancelled"

	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentFailed    = "failed"
	PaymentCancelled = "cancelled"
)

// User is a sandbox patient account.
type User struct {
	ID           string
	Name         string
	Email        string
	Phone        string
	PasswordHash string
	Verified     bool
	IsGoogleAuth bool
	CreatedAt    time.Time
}

// Booking is a stored session booking.
type Booking struct {
	ID            string
	BookingNumber string
	UserID        string
	ClinicID      string
	ClinicName    string
	PatientName   string
	PatientEmail  string
	PatientPhone  string
	Date          string
	Time          string
	Sessions      int
	Amount        int64
	PaymentMethod string
	Status        string
	PaymentStatus string
	OrderID       string
	TransactionID string
	CreatedAt     time.Time
}

// Holds reports whether the booking still occupies its slot.
func (b Booking) Holds() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// AuditEvent is a payment failure or cancellation reported by the app.
type AuditEvent struct {
	Kind      string
	BookingID string
	Payload   []byte
	CreatedAt time.Time
}

// Store persists sandbox users, bookings and audit records.
type Store interface {
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	FindUserByEmail(ctx context.Context, email string) (*User, error)
	FindUserByPhone(ctx context.Context, phone string) (*User, error)

	CreateBooking(ctx context.Context, b Booking) error
	GetBooking(ctx context.Context, id string) (*Booking, error)
	ListBookings(ctx context.Context, userID string) ([]Booking, error)
	UpdateBookingStatus(ctx context.Context, id, status, paymentStatus, transactionID string) error
	// SlotCounts returns held bookings per "date time" for a clinic.
	SlotCounts(ctx context.Context, clinicID string) (map[string]int, error)

	RecordAudit(ctx context.Context, e AuditEvent) error
}

func slotKey(date, t string) string { return date + " " + t }

// MemoryStore keeps everything in process.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]User
	bookings map[string]Booking
	audit    []AuditEvent
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]User),
		bookings: make(map[string]Booking),
	}
}

func (m *MemoryStore) SaveUser(_ context.Context, u User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (m *MemoryStore) FindUserByEmail(_ context.Context, email string) (*User, error) {
	return m.findUser(func(u User) bool { return email != "" && strings.EqualFold(u.Email, email) })
}

func (m *MemoryStore) FindUserByPhone(_ context.Context, phone string) (*User, error) {
	return m.findUser(func(u User) bool { return phone != "" && u.Phone == phone })
}

func (m *MemoryStore) findUser(match func(User) bool) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if match(u) {
			found := u
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateBooking(_ context.Context, b Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = b
	return nil
}

func (m *MemoryStore) GetBooking(_ context.Context, id string) (*Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

// ListBookings returns the user's bookings, newest first.
func (m *MemoryStore) ListBookings(_ context.Context, userID string) ([]Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) UpdateBookingStatus(_ context.Context, id, status, paymentStatus, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return ErrNotFound
	}
	b.Status, b.PaymentStatus = status, paymentStatus
	if transactionID != "" {
		b.TransactionID = transactionID
	}
	m.bookings[id] = b
	return nil
}

func (m *MemoryStore) SlotCounts(_ context.Context, clinicID string) (map[string]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[string]int)
	for _, b := range m.bookings {
		if b.ClinicID == clinicID && b.Holds() {
			counts[slotKey(b.Date, b.Time)]++
		}
	}
	return counts, nil
}

func (m *MemoryStore) RecordAudit(_ context.Context, e AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

// Audit returns a copy of the recorded audit events.
func (m *MemoryStore) Audit() []AuditEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]AuditEvent(nil), m.audit...)
}
