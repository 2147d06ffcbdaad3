package repository

import (
	"context"
	"fmt"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/vehicle-clearance/constants"
	"github.com/joseph-ayodele/vehicle-clearance/internal/common"
	"github.com/joseph-ayodele/vehicle-clearance/internal/entity"
)

var (
	userColumns         = []string{"id", "email", "name", "role", "organization", "active"}
	notificationColumns = []string{"id", "user_id", "title", "message", "severity", "read", "created_at"}
)

// userRepository implements UserRepository
type userRepository struct {
	store  *SQLStore
	logger *slog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(store *SQLStore, logger *slog.Logger) UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &userRepository{store: store, logger: logger}
}

func (r *userRepository) Create(ctx context.Context, u *entity.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if err := validateUser(u); err != nil {
		return err
	}
	q, args := r.store.builder().Insert("users").Columns(userColumns...).
		Values(u.ID, u.Email, u.Name, u.Role, u.Organization, u.Active).
		Query()
	if _, err := r.store.exec(ctx, q, args); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("user %s: %w", u.Email, common.ErrConflict)
		}
		r.logger.Error("failed to create user", "email", u.Email, "error", err)
		return err
	}
	return nil
}

func (r *userRepository) FindActiveByRole(ctx context.Context, role, organization string) (*entity.User, error) {
	b := r.store.builder()
	preds := []*entsql.Predicate{entsql.EQ("role", role), entsql.EQ("active", true)}
	if organization != "" {
		preds = append(preds, entsql.EQ("organization", organization))
	}
	q, args := b.Select(userColumns...).From(b.Table("users")).
		Where(entsql.And(preds...)).
		OrderBy(entsql.Asc("email")).
		Limit(1).
		Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to find user by role", "role", role, "organization", organization, "error", err)
		return nil, err
	}
	return first(rows, scanUser, fmt.Sprintf("active %s user", role))
}

func scanUser(rows *entsql.Rows) (*entity.User, error) {
	var u entity.User
	if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Organization, &u.Active); err != nil {
		return nil, err
	}
	return &u, nil
}

// notificationRepository implements NotificationRepository
type notificationRepository struct {
	store  *SQLStore
	logger *slog.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(store *SQLStore, logger *slog.Logger) NotificationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &notificationRepository{store: store, logger: logger}
}

func prepareNotification(n *entity.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.Severity == "" {
		n.Severity = constants.SeverityInfo
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = now()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return validateNotification(n)
}

func (r *notificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	if err := prepareNotification(n); err != nil {
		return err
	}
	q, args := r.store.builder().Insert("notifications").Columns(notificationColumns...).
		Values(n.ID, n.UserID, n.Title, n.Message, string(n.Severity), n.Read, n.CreatedAt).
		Query()
	if _, err := r.store.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to create notification", "user_id", n.UserID, "error", err)
		return err
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*entity.Notification, error) {
	b := r.store.builder()
	q, args := b.Select(notificationColumns...).From(b.Table("notifications")).
		Where(entsql.EQ("user_id", userID)).
		OrderBy(entsql.Asc("created_at")).
		Query()
	rows, err := r.store.query(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to list notifications", "user_id", userID, "error", err)
		return nil, err
	}
	return collect(rows, scanNotification)
}

func scanNotification(rows *entsql.Rows) (*entity.Notification, error) {
	var (
		n        entity.Notification
		severity string
	)
	if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &severity, &n.Read, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Severity = constants.Severity(severity)
	n.CreatedAt = n.CreatedAt.UTC()
	return &n, nil
}
