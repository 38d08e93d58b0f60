package sqlstore

import (
	"context"

	"github.com/pkg/errors"

	"marketplace-portal/internal/domain"
)

const notificationColumns = `id, user_id, title, message, type, is_read, ad_id, bid_id, created_at, read_at`

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) error {
	query := `
        INSERT INTO notifications (id, user_id, title, message, type, is_read, ad_id, bid_id, created_at, read_at)
        VALUES (:id, :user_id, :title, :message, :type, :is_read, :ad_id, :bid_id, :created_at, :read_at)
    `
	_, err := s.db.NamedExecContext(ctx, query, n)
	return errors.Wrap(err, "insert notification")
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id = ?`
	args := []interface{}{userID}
	if unreadOnly {
		query += ` AND is_read = ?`
		args = append(args, false)
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	out := []*domain.Notification{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "select notifications")
	}
	return out, nil
}

func (s *Store) MarkRead(ctx context.Context, userID, notificationID string) error {
	query := s.db.Rebind(`UPDATE notifications SET is_read = ?, read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`)
	res, err := s.db.ExecContext(ctx, query, true, s.now(), notificationID, userID)
	if err != nil {
		return errors.Wrap(err, "mark notification read")
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	// MySQL reports changed rows, so re-marking a read notification also yields 0.
	var owned int
	err = s.db.GetContext(ctx, &owned,
		s.db.Rebind(`SELECT COUNT(1) FROM notifications WHERE id = ? AND user_id = ?`),
		notificationID, userID)
	if err != nil {
		return errors.Wrap(err, "check notification owner")
	}
	if owned == 0 {
		return errors.Wrapf(domain.ErrNotFound, "notification %s", notificationID)
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	query := s.db.Rebind(`UPDATE notifications SET is_read = ?, read_at = ? WHERE user_id = ? AND is_read = ?`)
	res, err := s.db.ExecContext(ctx, query, true, s.now(), userID, false)
	if err != nil {
		return 0, errors.Wrap(err, "mark all read")
	}
	return affected(res)
}

func (s *Store) CountUnread(ctx context.Context, userID string) (int, error) {
	var count int
	query := s.db.Rebind(`SELECT COUNT(1) FROM notifications WHERE user_id = ? AND is_read = ?`)
	if err := s.db.GetContext(ctx, &count, query, userID, false); err != nil {
		return 0, errors.Wrap(err, "count unread")
	}
	return count, nil
}
