package sqlstore

import (
	"context"
	"errors"
	"strings"

	"github.com/oklog/ulid/v2"

	domain "github.com/upfront-market/api/internal/domain"
	"github.com/upfront-market/api/internal/platform/database"
	"github.com/upfront-market/api/internal/repositories"
)

// UserRepository persists marketplace accounts.
type UserRepository struct {
	provider *database.Provider
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository constructs a SQL backed user repository.
func NewUserRepository(provider *database.Provider) (*UserRepository, error) {
	if provider == nil {
		return nil, errors.New("user repository requires database provider")
	}
	return &UserRepository{provider: provider}, nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	if err := r.provider.DB(ctx).Where("id = ?", strings.TrimSpace(userID)).Take(&row).Error; err != nil {
		return domain.User{}, database.WrapError("users.find", err)
	}
	return row.toDomain(), nil
}

// ListAdmins returns every account flagged as administrator.
func (r *UserRepository) ListAdmins(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	if err := r.provider.DB(ctx).Where("is_admin = ?", true).Order("id").Find(&rows).Error; err != nil {
		return nil, database.WrapError("users.list_admins", err)
	}
	out := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *UserRepository) Save(ctx context.Context, user domain.User) (domain.User, error) {
	row := userRow{
		ID:       strings.TrimSpace(user.ID),
		Email:    strings.ToLower(strings.TrimSpace(user.Email)),
		FullName: strings.TrimSpace(user.FullName),
		IsAdmin:  user.IsAdmin,
	}
	if row.ID == "" {
		row.ID = ulid.Make().String()
	}
	err := r.provider.DB(ctx).
		Assign(map[string]any{"email": row.Email, "full_name": row.FullName, "is_admin": row.IsAdmin}).
		FirstOrCreate(&row, userRow{ID: row.ID}).Error
	if err != nil {
		return domain.User{}, database.WrapError("users.save", err)
	}
	return row.toDomain(), nil
}

func (row userRow) toDomain() domain.User {
	return domain.User{ID: row.ID, Email: row.Email, FullName: row.FullName, IsAdmin: row.IsAdmin}
}
