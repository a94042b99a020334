package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/raktaseva/blood-api/internal/model"
)

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (
			id, donor_id, request_id, channel, subject, content, recipient,
			status, retry_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID,
		n.DonorID,
		n.RequestID,
		n.Channel,
		n.Subject,
		n.Content,
		n.Recipient,
		n.Status,
		n.RetryCount,
		n.CreatedAt,
		n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Update(ctx context.Context, n *model.Notification) error {
	query := `
		UPDATE notifications
		SET status = $1, retry_count = $2, last_error = $3, sent_at = $4, updated_at = $5
		WHERE id = $6
	`
	_, err := r.db.ExecContext(ctx, query,
		n.Status,
		n.RetryCount,
		n.LastError,
		n.SentAt,
		n.UpdatedAt,
		n.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListForRequest(ctx context.Context, requestID uuid.UUID) ([]*model.Notification, error) {
	query := `
		SELECT * FROM notifications
		WHERE request_id = $1
		ORDER BY created_at DESC
	`
	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, requestID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
