package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"saska-advisor-go/internal/models"
)

// GormStore persists users, plans and logs in postgres.
type GormStore struct {
	db   *gorm.DB
	opts options
}

func NewGormStore(db *gorm.DB, opts ...Option) *GormStore {
	return &GormStore{db: db, opts: buildOptions(opts)}
}

func (s *GormStore) Users() UserRepository { return gormUsers{s} }
func (s *GormStore) Logs() LogRepository   { return gormLogs{s} }

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return models.ErrDuplicateEmail
	}
	return err
}

func withHistory(db *gorm.DB) *gorm.DB {
	return db.Preload("History", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("date desc").Order("id desc")
	})
}

type gormUsers struct{ s *GormStore }

func (r gormUsers) FindAll(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := withHistory(r.s.db.WithContext(ctx)).Order("joined_at asc").Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (r gormUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := withHistory(r.s.db.WithContext(ctx)).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r gormUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := withHistory(r.s.db.WithContext(ctx)).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, mapErr(err)
	}
	return &user, nil
}

func (r gormUsers) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if _, err := r.FindByEmail(ctx, user.Email); err == nil {
		return nil, models.ErrDuplicateEmail
	} else if !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}

	row := *user
	row.History = nil
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.JoinedAt.IsZero() {
		row.JoinedAt = r.s.opts.now().UTC()
	}
	if row.Role == "" {
		row.Role = models.RoleUser
	}
	if err := r.s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, mapErr(err)
	}
	row.History = []models.Plan{}
	return &row, nil
}

func (r gormUsers) Update(ctx context.Context, id string, patch models.UserPatch) (*models.User, error) {
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}

	changes := map[string]any{"updated_at": r.s.opts.now().UTC()}
	if patch.Name != nil {
		changes["name"] = *patch.Name
	}
	if patch.PasswordHash != nil {
		changes["password_hash"] = *patch.PasswordHash
	}
	if patch.Role != nil {
		changes["role"] = *patch.Role
	}
	if err := r.s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(changes).Error; err != nil {
		return nil, mapErr(err)
	}

	updated, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.s.opts.refreshSession(ctx, updated)
	return updated, nil
}

func (r gormUsers) PrependPlan(ctx context.Context, id string, plan models.Plan) (*models.User, error) {
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}

	row := plan.Clone()
	row.ID = 0
	row.UserID = id
	if row.Date == nil {
		now := r.s.opts.now().UTC()
		row.Date = &now
	}
	if err := r.s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, err
	}

	updated, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.s.opts.refreshSession(ctx, updated)
	return updated, nil
}

func (r gormUsers) Delete(ctx context.Context, id string) error {
	return r.s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&models.Plan{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.User{}).Error
	})
}

type gormLogs struct{ s *GormStore }

func (r gormLogs) FindAll(ctx context.Context) ([]models.SystemLog, error) {
	return r.FindRecent(ctx, 0)
}

func (r gormLogs) FindRecent(ctx context.Context, limit int) ([]models.SystemLog, error) {
	var logs []models.SystemLog
	q := r.s.db.WithContext(ctx).Order("timestamp desc")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r gormLogs) Create(ctx context.Context, typ models.LogType, userID, details string) (*models.SystemLog, error) {
	entry := models.SystemLog{
		ID:        uuid.NewString(),
		Type:      typ,
		UserID:    userID,
		Details:   details,
		Timestamp: r.s.opts.now().UTC(),
	}
	if err := r.s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return nil, err
	}

	keep := r.s.db.Model(&models.SystemLog{}).Select("id").Order("timestamp desc").Limit(r.s.opts.retention)
	if err := r.s.db.WithContext(ctx).Where("id NOT IN (?)", keep).Delete(&models.SystemLog{}).Error; err != nil {
		return &entry, err
	}
	return &entry, nil
}

var _ Store = (*GormStore)(nil)
