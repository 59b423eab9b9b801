package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/tutorhub-api/internal/models"
	"github.com/noah-isme/tutorhub-api/pkg/jobs"
	"github.com/noah-isme/tutorhub-api/pkg/realtime"
)

// Job types handled by SideEffects.
const (
	JobNotify         = "notify"
	JobSettlePayment  = "settle_payment"
	JobPublishChange  = "publish_change"
	sideEffectTimeout = 10 * time.Second
)

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
}

type paymentSettler interface {
	Settle(ctx context.Context, bookingID string, status models.PaymentStatus) (*models.Payment, error)
}

type settlePayload struct {
	BookingID string
	Status    models.PaymentStatus
}

// SideEffects runs the follow-ups of a committed state change: inbox notifications, escrow
// settlement and change feed events. Failures are logged and never reach the caller.
type SideEffects struct {
	notifications notificationWriter
	payments      paymentSettler
	bus           realtime.Bus
	metrics       *MetricsService
	logger        *zap.Logger
	queue         *jobs.Queue
}

// NewSideEffects constructs SideEffects. Without an attached queue every effect runs inline.
func NewSideEffects(notifications notificationWriter, payments paymentSettler, bus realtime.Bus, metrics *MetricsService, logger *zap.Logger) *SideEffects {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SideEffects{notifications: notifications, payments: payments, bus: bus, metrics: metrics, logger: logger}
}

// Attach registers the handlers on queue and routes subsequent effects through it.
func (d *SideEffects) Attach(queue *jobs.Queue) {
	if d == nil || queue == nil {
		return
	}
	queue.Register(JobNotify, func(ctx context.Context, job jobs.Job) error {
		n, ok := job.Payload.(models.Notification)
		if !ok {
			return fmt.Errorf("unexpected notify payload %T", job.Payload)
		}
		return d.notify(ctx, n)
	})
	queue.Register(JobSettlePayment, func(ctx context.Context, job jobs.Job) error {
		p, ok := job.Payload.(settlePayload)
		if !ok {
			return fmt.Errorf("unexpected settle payload %T", job.Payload)
		}
		return d.settle(ctx, p)
	})
	queue.Register(JobPublishChange, func(ctx context.Context, job jobs.Job) error {
		ev, ok := job.Payload.(realtime.ChangeEvent)
		if !ok {
			return fmt.Errorf("unexpected change payload %T", job.Payload)
		}
		return d.publish(ctx, ev)
	})
	d.queue = queue
}

// OnDrop is the queue callback for jobs that exhausted their retries.
func (d *SideEffects) OnDrop(job jobs.Job, err error) {
	if d == nil {
		return
	}
	d.metrics.RecordSideEffectFailure(job.Type)
	d.logger.Error("side effect dropped", zap.String("job_type", job.Type), zap.Int("attempt", job.Attempt), zap.Error(err))
}

// Notify writes an inbox entry for n.UserID.
func (d *SideEffects) Notify(ctx context.Context, n models.Notification) {
	if d == nil || d.notifications == nil || n.UserID == "" {
		return
	}
	d.dispatch(ctx, JobNotify, n, func(ctx context.Context) error { return d.notify(ctx, n) })
}

// SettlePayment releases or refunds the escrowed payment of a booking, if one exists.
func (d *SideEffects) SettlePayment(ctx context.Context, bookingID string, status models.PaymentStatus) {
	if d == nil || d.payments == nil {
		return
	}
	p := settlePayload{BookingID: bookingID, Status: status}
	d.dispatch(ctx, JobSettlePayment, p, func(ctx context.Context) error { return d.settle(ctx, p) })
}

// Publish emits a change event on the bus.
func (d *SideEffects) Publish(ctx context.Context, table string, op realtime.Op, recordID string, userIDs ...string) {
	if d == nil || d.bus == nil {
		return
	}
	ev := realtime.ChangeEvent{Table: table, Op: op, RecordID: recordID, UserIDs: userIDs, At: time.Now().UTC()}
	d.dispatch(ctx, JobPublishChange, ev, func(ctx context.Context) error { return d.publish(ctx, ev) })
}

func (d *SideEffects) dispatch(ctx context.Context, jobType string, payload interface{}, inline func(context.Context) error) {
	if d.queue != nil && d.queue.Started() {
		err := d.queue.Enqueue(jobs.Job{Type: jobType, Payload: payload})
		if err == nil {
			return
		}
		d.logger.Warn("enqueue side effect failed, running inline", zap.String("job_type", jobType), zap.Error(err))
	}
	// the request context may already be cancelled once the response is written
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	defer cancel()
	if err := inline(runCtx); err != nil {
		d.metrics.RecordSideEffectFailure(jobType)
		d.logger.Error("side effect failed", zap.String("job_type", jobType), zap.Error(err))
	}
}

func (d *SideEffects) notify(ctx context.Context, n models.Notification) error {
	return d.notifications.Create(ctx, &n)
}

func (d *SideEffects) settle(ctx context.Context, p settlePayload) error {
	payment, err := d.payments.Settle(ctx, p.BookingID, p.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}
	d.logger.Info("payment settled", zap.String("booking_id", p.BookingID), zap.String("status", string(payment.Status)))
	d.Notify(ctx, models.Notification{
		UserID:    payment.PayerID,
		Title:     paymentTitle(payment.Status),
		Message:   fmt.Sprintf("Your payment of %.2f has been %s.", payment.Amount, paymentVerb(payment.Status)),
		Type:      models.NotificationPayment,
		RelatedID: &payment.ID,
	})
	d.Publish(ctx, realtime.TablePayments, realtime.OpUpdate, payment.ID, payment.PayerID)
	return nil
}

func (d *SideEffects) publish(ctx context.Context, ev realtime.ChangeEvent) error {
	return d.bus.Publish(ctx, ev)
}

func paymentTitle(status models.PaymentStatus) string {
	if status == models.PaymentRefunded {
		return "Payment Refunded"
	}
	return "Payment Released"
}

func paymentVerb(status models.PaymentStatus) string {
	if status == models.PaymentRefunded {
		return "refunded"
	}
	return "released to your tutor"
}
