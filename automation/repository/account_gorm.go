package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/AzielCF/az-social/pkg/crypto"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type connectedAccountModel struct {
	ID             string         `gorm:"primaryKey;column:id"`
	UserRef        string         `gorm:"column:user_ref;not null;uniqueIndex:idx_account_user_platform"`
	Platform       string         `gorm:"column:platform;not null;uniqueIndex:idx_account_user_platform;index:idx_account_platform_user"`
	PlatformUserID string         `gorm:"column:platform_user_id;not null;index:idx_account_platform_user"`
	Username       sql.NullString `gorm:"column:username"`
	AccessToken    string         `gorm:"column:access_token;type:text;not null"`
	RefreshToken   sql.NullString `gorm:"column:refresh_token;type:text"`
	TokenExpiry    *time.Time     `gorm:"column:token_expiry"`
	IsConnected    bool           `gorm:"column:is_connected;not null"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
}

func (connectedAccountModel) TableName() string { return "connected_accounts" }

// AccountGormRepository implements domain.AccountStore.
// Tokens are sealed with the configured cipher before they are written.
type AccountGormRepository struct {
	db     *gorm.DB
	cipher *crypto.TokenCipher
}

func NewAccountGormRepository(db *gorm.DB, cipher *crypto.TokenCipher) *AccountGormRepository {
	return &AccountGormRepository{db: db, cipher: cipher}
}

func (r *AccountGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&connectedAccountModel{})
}

func (r *AccountGormRepository) Connect(ctx context.Context, account *domain.ConnectedAccount) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing connectedAccountModel
		err := tx.Where("user_ref = ? AND platform = ?", account.UserRef, string(account.Platform)).First(&existing).Error
		switch {
		case err == nil:
			account.ID = existing.ID
			account.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			if account.ID == "" {
				account.ID = uuid.NewString()
			}
			account.CreatedAt = time.Now().UTC()
		default:
			return err
		}

		account.IsConnected = true
		account.UpdatedAt = time.Now().UTC()

		model, err := r.toModel(*account)
		if err != nil {
			return err
		}
		return tx.Save(&model).Error
	})
}

func (r *AccountGormRepository) Get(ctx context.Context, id string) (domain.ConnectedAccount, error) {
	var m connectedAccountModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ConnectedAccount{}, domain.ErrAccountNotFound
		}
		return domain.ConnectedAccount{}, err
	}
	return r.fromModel(m)
}

func (r *AccountGormRepository) GetByPlatformUser(ctx context.Context, platform domain.Platform, platformUserID string) (domain.ConnectedAccount, error) {
	var m connectedAccountModel
	err := r.db.WithContext(ctx).
		Where("platform = ? AND platform_user_id = ?", string(platform), platformUserID).
		Order("is_connected DESC").
		Order("updated_at DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ConnectedAccount{}, domain.ErrAccountNotFound
		}
		return domain.ConnectedAccount{}, err
	}
	return r.fromModel(m)
}

func (r *AccountGormRepository) ListConnected(ctx context.Context) ([]domain.ConnectedAccount, error) {
	var models []connectedAccountModel
	if err := r.db.WithContext(ctx).Where("is_connected = ?", true).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ConnectedAccount, 0, len(models))
	for _, m := range models {
		acc, err := r.fromModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, acc)
	}
	return res, nil
}

func (r *AccountGormRepository) UpdateToken(ctx context.Context, id string, tokens domain.TokenSet) error {
	access, err := r.cipher.Seal(tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}
	updates := map[string]any{
		"access_token": access,
		"token_expiry": utcPtr(tokens.Expiry),
		"updated_at":   time.Now().UTC(),
	}
	if tokens.RefreshToken != "" {
		refresh, err := r.cipher.Seal(tokens.RefreshToken)
		if err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
		updates["refresh_token"] = refresh
	}

	res := r.db.WithContext(ctx).Model(&connectedAccountModel{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountGormRepository) Disconnect(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&connectedAccountModel{}).Where("id = ?", id).
		Updates(map[string]any{
			"is_connected":  false,
			"access_token":  "",
			"refresh_token": sql.NullString{},
			"token_expiry":  nil,
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountGormRepository) toModel(a domain.ConnectedAccount) (connectedAccountModel, error) {
	access, err := r.cipher.Seal(a.AccessToken)
	if err != nil {
		return connectedAccountModel{}, fmt.Errorf("seal access token: %w", err)
	}
	refresh, err := r.cipher.Seal(a.RefreshToken)
	if err != nil {
		return connectedAccountModel{}, fmt.Errorf("seal refresh token: %w", err)
	}
	return connectedAccountModel{
		ID:             a.ID,
		UserRef:        a.UserRef,
		Platform:       string(a.Platform),
		PlatformUserID: a.PlatformUserID,
		Username:       toNullString(a.Username),
		AccessToken:    access,
		RefreshToken:   toNullString(refresh),
		TokenExpiry:    utcPtr(a.TokenExpiry),
		IsConnected:    a.IsConnected,
		CreatedAt:      a.CreatedAt.UTC(),
		UpdatedAt:      a.UpdatedAt.UTC(),
	}, nil
}

func (r *AccountGormRepository) fromModel(m connectedAccountModel) (domain.ConnectedAccount, error) {
	access, err := r.cipher.Open(m.AccessToken)
	if err != nil {
		return domain.ConnectedAccount{}, fmt.Errorf("open access token of %s: %w", m.ID, err)
	}
	refresh, err := r.cipher.Open(nullStringValue(m.RefreshToken))
	if err != nil {
		return domain.ConnectedAccount{}, fmt.Errorf("open refresh token of %s: %w", m.ID, err)
	}
	return domain.ConnectedAccount{
		ID:             m.ID,
		UserRef:        m.UserRef,
		Platform:       domain.Platform(m.Platform),
		PlatformUserID: m.PlatformUserID,
		Username:       nullStringValue(m.Username),
		AccessToken:    access,
		RefreshToken:   refresh,
		TokenExpiry:    utcPtr(m.TokenExpiry),
		IsConnected:    m.IsConnected,
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}, nil
}
