package sqlstore

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/repositories"
)

// NotificationRepository persists in-app notifications keyed by (target_kind, target_id).
type NotificationRepository struct {
	provider *database.Provider
}

var _ repositories.NotificationRepository = (*NotificationRepository)(nil)

// NewNotificationRepository constructs a SQL backed notification repository.
func NewNotificationRepository(provider *database.Provider) (*NotificationRepository, error) {
	if provider == nil {
		return nil, errors.New("notification repository requires database provider")
	}
	return &NotificationRepository{provider: provider}, nil
}

// InsertMany stores the notifications in one statement. Invalid targets are rejected before writing.
func (r *NotificationRepository) InsertMany(ctx context.Context, notifications []domain.Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	rows := make([]notificationRow, 0, len(notifications))
	for _, n := range notifications {
		if err := n.Target.Validate(); err != nil {
			return err
		}
		id := n.ID
		if id == "" {
			id = ulid.Make().String()
		}
		rows = append(rows, notificationRow{
			ID:          id,
			TargetKind:  string(n.Target.Kind()),
			TargetID:    n.Target.ID(),
			Type:        string(n.Type),
			OrderID:     nonEmpty(n.OrderID),
			OrderItemID: nonEmpty(n.OrderItemID),
			Message:     truncate(n.Message, 500),
			Seen:        n.Seen,
			CreatedAt:   n.CreatedAt,
		})
	}
	if err := r.provider.DB(ctx).Create(&rows).Error; err != nil {
		return database.WrapError("notifications.insert", err)
	}
	return nil
}

// List returns the target's notifications newest first, optionally filtered by seen state.
func (r *NotificationRepository) List(ctx context.Context, target domain.NotificationTarget, seen *bool) ([]domain.Notification, error) {
	if err := target.Validate(); err != nil {
		return nil, err
	}
	query := r.provider.DB(ctx).Where("target_kind = ? AND target_id = ?", string(target.Kind()), target.ID())
	if seen != nil {
		query = query.Where("seen = ?", *seen)
	}
	var rows []notificationRow
	if err := query.Order("created_at DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, database.WrapError("notifications.list", err)
	}
	out := make([]domain.Notification, 0, len(rows))
	for _, row := range rows {
		n, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// Summary counts the target's notifications by seen state.
func (r *NotificationRepository) Summary(ctx context.Context, target domain.NotificationTarget) (domain.NotificationSummary, error) {
	if err := target.Validate(); err != nil {
		return domain.NotificationSummary{}, err
	}
	var counts []struct {
		Seen  bool
		Count int64
	}
	err := r.provider.DB(ctx).Model(&notificationRow{}).
		Select("seen, COUNT(*) AS count").
		Where("target_kind = ? AND target_id = ?", string(target.Kind()), target.ID()).
		Group("seen").
		Scan(&counts).Error
	if err != nil {
		return domain.NotificationSummary{}, database.WrapError("notifications.summary", err)
	}
	var summary domain.NotificationSummary
	for _, c := range counts {
		if c.Seen {
			summary.Read += c.Count
		} else {
			summary.Unread += c.Count
		}
	}
	summary.All = summary.Read + summary.Unread
	return summary, nil
}

// MarkSeen flags one of the target's notifications as seen.
func (r *NotificationRepository) MarkSeen(ctx context.Context, target domain.NotificationTarget, notificationID string) (domain.Notification, error) {
	if err := target.Validate(); err != nil {
		return domain.Notification{}, err
	}
	db := r.provider.DB(ctx)
	scope := db.Where("id = ? AND target_kind = ? AND target_id = ?", notificationID, string(target.Kind()), target.ID())

	var row notificationRow
	if err := scope.Take(&row).Error; err != nil {
		return domain.Notification{}, database.WrapError("notifications.mark_seen", err)
	}
	if !row.Seen {
		if err := db.Model(&notificationRow{}).Where("id = ?", row.ID).Update("seen", true).Error; err != nil {
			return domain.Notification{}, database.WrapError("notifications.mark_seen", err)
		}
		row.Seen = true
	}
	return row.toDomain()
}

func (row notificationRow) toDomain() (domain.Notification, error) {
	target, err := domain.ParseTarget(row.TargetKind, row.TargetID)
	if err != nil {
		return domain.Notification{}, err
	}
	return domain.Notification{
		ID:          row.ID,
		Target:      target,
		Type:        domain.NotificationType(row.Type),
		OrderID:     derefString(row.OrderID),
		OrderItemID: derefString(row.OrderItemID),
		Message:     row.Message,
		Seen:        row.Seen,
		CreatedAt:   row.CreatedAt,
	}, nil
}
