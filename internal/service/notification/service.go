// Package notification alerts matched donors about emergency requests.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/email"
	"github.com/raktaseva/blood-api/internal/model"
	"github.com/raktaseva/blood-api/internal/repository"
	"github.com/raktaseva/blood-api/pkg/logger"
	"github.com/raktaseva/blood-api/pkg/metrics"
)

const (
	channelEmail = "email"
	maxAttempts  = 3
	retryDelay   = 2 * time.Second
)

type Service struct {
	repo    repository.NotificationRepository
	sender  email.Sender
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.NotificationRepository, sender email.Sender, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		sender:  sender,
		logger:  log,
		metrics: m,
	}
}

// NotifyDonors records and delivers one email per matched donor. Each
// delivery is independent; one failed address never blocks the rest.
func (s *Service) NotifyDonors(ctx context.Context, req *model.EmergencyRequest, matches []*model.DonorMatch) {
	for _, m := range matches {
		if err := s.notify(ctx, req, &m.Donor); err != nil {
			s.logger.Error(err, "failed to notify donor",
				"donor_id", m.Donor.ID.String(),
				"request_id", req.ID.String())
		}
	}
}

func (s *Service) notify(ctx context.Context, req *model.EmergencyRequest, donor *model.Donor) error {
	now := time.Now()
	n := &model.Notification{
		ID:        uuid.New(),
		DonorID:   donor.ID,
		RequestID: req.ID,
		Channel:   channelEmail,
		Subject:   subjectFor(req),
		Content:   bodyFor(req, donor),
		Recipient: donor.Email,
		Status:    model.NotificationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return err
	}

	return s.deliver(ctx, n)
}

// deliver attempts the send with a short retry loop and stamps the final
// outcome on the notification row.
func (s *Service) deliver(ctx context.Context, n *model.Notification) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = s.sender.Send(n.Recipient, n.Subject, n.Content)
		if lastErr == nil {
			now := time.Now()
			n.Status = model.NotificationStatusSent
			n.SentAt = &now
			n.RetryCount = attempt - 1
			n.UpdatedAt = now
			s.metrics.NotificationsSent.Inc()
			return s.repo.Update(ctx, n)
		}

		n.RetryCount = attempt
		n.Status = model.NotificationStatusRetrying
		if attempt < maxAttempts {
			time.Sleep(retryDelay)
		}
	}

	msg := lastErr.Error()
	n.Status = model.NotificationStatusFailed
	n.LastError = &msg
	n.UpdatedAt = time.Now()
	s.metrics.NotificationsFailed.Inc()
	if err := s.repo.Update(ctx, n); err != nil {
		return err
	}
	return fmt.Errorf("delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

func subjectFor(req *model.EmergencyRequest) string {
	return fmt.Sprintf("[%s] %s blood needed at %s",
		urgencyLabel(req.Urgency), req.BloodType, req.HospitalName)
}

func bodyFor(req *model.EmergencyRequest, donor *model.Donor) string {
	return fmt.Sprintf(
		"Namaste %s,\n\n"+
			"A patient at %s urgently needs %d unit(s) of %s blood and you are a compatible donor nearby.\n\n"+
			"Hospital: %s, %s\n"+
			"Contact: %s (%s), %s\n\n"+
			"If you can donate, please reach out to the contact above as soon as possible.\n\n"+
			"Thank you for being a lifesaver.\n"+
			"RaktaSeva",
		donor.FullName,
		req.HospitalName,
		req.UnitsNeeded,
		req.BloodType,
		req.HospitalName, req.HospitalAddress,
		req.ContactName, req.ContactRelation, req.ContactPhone,
	)
}

func urgencyLabel(u model.Urgency) string {
	switch u {
	case model.UrgencyLifeThreatening:
		return "LIFE THREATENING"
	case model.UrgencyCritical:
		return "CRITICAL"
	case model.UrgencyUrgent:
		return "URGENT"
	default:
		return "REQUEST"
	}
}

// ListForRequest exposes the delivery trail for one request.
func (s *Service) ListForRequest(ctx context.Context, requestID uuid.UUID) ([]*model.Notification, error) {
	return s.repo.ListForRequest(ctx, requestID)
}
