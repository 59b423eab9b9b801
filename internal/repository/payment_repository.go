package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/database"
)

// ErrDuplicatePayment reports a second payment for the same booking.
var ErrDuplicatePayment = errors.New("booking already paid")

const paymentColumns = `id, booking_id, payer_id, tutor_id, amount, status, payment_method, released_at, refunded_at, created_at`

// PaymentRepository persists mocked escrow payments.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create records a payment held in escrow.
func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt = time.Now().UTC()
	p.Status = models.PaymentHeld
	const query = `INSERT INTO payment_transactions (id, booking_id, payer_id, tutor_id, amount, status, payment_method, created_at)
		VALUES (:id, :booking_id, :payer_id, :tutor_id, :amount, :status, :payment_method, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		if database.HasCode(err, database.CodeUniqueViolation) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// FindByBooking fetches the payment of a booking.
func (r *PaymentRepository) FindByBooking(ctx context.Context, bookingID string) (*models.Payment, error) {
	var p models.Payment
	if err := r.db.GetContext(ctx, &p, `SELECT `+paymentColumns+` FROM payment_transactions WHERE booking_id = $1`, bookingID); err != nil {
		return nil, err
	}
	return &p, nil
}

// Settle moves a held payment to released or refunded. It returns sql.ErrNoRows when the
// booking has no held payment, which callers treat as nothing to settle.
func (r *PaymentRepository) Settle(ctx context.Context, bookingID string, status models.PaymentStatus) (*models.Payment, error) {
	var column string
	switch status {
	case models.PaymentReleased:
		column = "released_at"
	case models.PaymentRefunded:
		column = "refunded_at"
	default:
		return nil, fmt.Errorf("cannot settle payment to %q", status)
	}
	query := fmt.Sprintf(`UPDATE payment_transactions SET status = $2, %s = $3 WHERE booking_id = $1 AND status = 'held_in_escrow' RETURNING %s`, column, paymentColumns)
	var p models.Payment
	if err := r.db.GetContext(ctx, &p, query, bookingID, status, time.Now().UTC()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("settle payment: %w", err)
	}
	return &p, nil
}

// ListByPayer returns a payer's payment history.
func (r *PaymentRepository) ListByPayer(ctx context.Context, payerID string) ([]models.Payment, error) {
	var items []models.Payment
	if err := r.db.SelectContext(ctx, &items, `SELECT `+paymentColumns+` FROM payment_transactions WHERE payer_id = $1 ORDER BY created_at DESC`, payerID); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return items, nil
}

// ListByTutor returns payments to a tutor.
func (r *PaymentRepository) ListByTutor(ctx context.Context, tutorID string) ([]models.Payment, error) {
	var items []models.Payment
	if err := r.db.SelectContext(ctx, &items, `SELECT `+paymentColumns+` FROM payment_transactions WHERE tutor_id = $1 ORDER BY created_at DESC`, tutorID); err != nil {
		return nil, fmt.Errorf("list tutor payments: %w", err)
	}
	return items, nil
}

// TotalsByTutor aggregates a tutor's payments by status.
func (r *PaymentRepository) TotalsByTutor(ctx context.Context, tutorID string) ([]models.PaymentTotal, error) {
	const query = `SELECT status, COALESCE(SUM(amount), 0) AS amount, COUNT(*) AS count
		FROM payment_transactions WHERE tutor_id = $1 GROUP BY status`
	var totals []models.PaymentTotal
	if err := r.db.SelectContext(ctx, &totals, query, tutorID); err != nil {
		return nil, fmt.Errorf("sum tutor payments: %w", err)
	}
	return totals, nil
}

// EscrowBalance sums every payment still held.
func (r *PaymentRepository) EscrowBalance(ctx context.Context) (float64, error) {
	var total float64
	if err := r.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(amount), 0) FROM payment_transactions WHERE status = 'held_in_escrow'`); err != nil {
		return 0, fmt.Errorf("sum escrow balance: %w", err)
	}
	return total, nil
}
