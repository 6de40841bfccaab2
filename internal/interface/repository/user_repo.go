package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"aerorelay-service/internal/domain/entity"
	"aerorelay-service/internal/domain/repository"

	"gorm.io/gorm"
)

// GormUserRepository implements the UserRepository interface
type GormUserRepository struct {
	db *gorm.DB
}

// NewGormUserRepository creates a new GORM user repository
func NewGormUserRepository(db *gorm.DB) repository.UserRepository {
	return &GormUserRepository{
		db: db,
	}
}

// Users GORM model for database mapping
type Users struct {
	ID          string  `gorm:"column:id;primaryKey"`
	Email       *string `gorm:"column:email"`
	DisplayName *string `gorm:"column:display_name"`
	FCMToken    *string `gorm:"column:fcm_token"`
	PushToken   *string `gorm:"column:push_token"`
	Platform    *string `gorm:"column:platform"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TableName overrides the default table name
func (Users) TableName() string {
	return "users"
}

// FindByID finds a user by id
func (r *GormUserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var user Users
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&user)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %s: %w", id, entity.ErrNotFound)
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return toUserEntity(&user), nil
}

// FindByIDs finds every existing user of ids; unknown ids are ignored
func (r *GormUserRepository) FindByIDs(ctx context.Context, ids []string) ([]*entity.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var users []Users
	result := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users)
	if result.Error != nil {
		return nil, result.Error
	}

	entities := make([]*entity.User, 0, len(users))
	for i := range users {
		entities = append(entities, toUserEntity(&users[i]))
	}
	return entities, nil
}

func toUserEntity(u *Users) *entity.User {
	return &entity.User{
		ID:          u.ID,
		Email:       deref(u.Email),
		DisplayName: deref(u.DisplayName),
		FCMToken:    deref(u.FCMToken),
		PushToken:   deref(u.PushToken),
		Platform:    deref(u.Platform),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
