package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type autoReplySettingModel struct {
	AccountRef        string         `gorm:"primaryKey;column:account_ref"`
	Surface           string         `gorm:"primaryKey;column:surface"`
	Enabled           bool           `gorm:"column:enabled;not null;index"`
	DelayFixedSeconds sql.NullInt64  `gorm:"column:delay_fixed_seconds"`
	DelayMinSeconds   int            `gorm:"column:delay_min_seconds;not null"`
	DelayMaxSeconds   int            `gorm:"column:delay_max_seconds;not null"`
	StaticMessage     sql.NullString `gorm:"column:static_message;type:text"`
	Mode              string         `gorm:"column:mode;not null"`
	HideNotice        sql.NullString `gorm:"column:hide_notice;type:text"`
	UpdatedAt         time.Time      `gorm:"column:updated_at;not null"`
}

func (autoReplySettingModel) TableName() string { return "auto_reply_settings" }

type autoReplyLogModel struct {
	ID             string         `gorm:"primaryKey;column:id"`
	AccountRef     string         `gorm:"column:account_ref;not null;uniqueIndex:idx_log_source"`
	Surface        string         `gorm:"column:surface;not null;uniqueIndex:idx_log_source"`
	SourceID       string         `gorm:"column:source_id;not null;uniqueIndex:idx_log_source"`
	SourceAuthorID string         `gorm:"column:source_author_id"`
	SourceText     string         `gorm:"column:source_text;type:text"`
	Decision       string         `gorm:"column:decision;not null"`
	ReplyText      sql.NullString `gorm:"column:reply_text;type:text"`
	Status         string         `gorm:"column:status;not null"`
	ScheduledAt    *time.Time     `gorm:"column:scheduled_at"`
	RepliedAt      *time.Time     `gorm:"column:replied_at"`
	ReplyOutcome   sql.NullString `gorm:"column:reply_outcome"`
	HideOutcome    sql.NullString `gorm:"column:hide_outcome"`
	Error          sql.NullString `gorm:"column:error;type:text"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null;index"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
}

func (autoReplyLogModel) TableName() string { return "auto_reply_logs" }

type personaModel struct {
	AccountRef  string         `gorm:"primaryKey;column:account_ref"`
	DisplayName string         `gorm:"column:display_name;not null"`
	Tone        string         `gorm:"column:tone"`
	StyleNotes  sql.NullString `gorm:"column:style_notes;type:text"`
	SignOff     sql.NullString `gorm:"column:sign_off"`
	Language    sql.NullString `gorm:"column:language"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null"`
}

func (personaModel) TableName() string { return "personas" }

// AutoReplyGormRepository implements domain.AutoReplyStore.
type AutoReplyGormRepository struct {
	db *gorm.DB
}

func NewAutoReplyGormRepository(db *gorm.DB) *AutoReplyGormRepository {
	return &AutoReplyGormRepository{db: db}
}

func (r *AutoReplyGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(
		&autoReplySettingModel{},
		&autoReplyLogModel{},
		&personaModel{},
	)
}

// Settings

func (r *AutoReplyGormRepository) GetSetting(ctx context.Context, accountRef string, surface domain.Surface) (domain.AutoReplySetting, error) {
	var m autoReplySettingModel
	err := r.db.WithContext(ctx).First(&m, "account_ref = ? AND surface = ?", accountRef, string(surface)).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AutoReplySetting{}, domain.ErrSettingNotFound
		}
		return domain.AutoReplySetting{}, err
	}
	return fromSettingModel(m), nil
}

func (r *AutoReplyGormRepository) SaveSetting(ctx context.Context, setting domain.AutoReplySetting) error {
	setting.UpdatedAt = time.Now().UTC()
	model := toSettingModel(setting)
	return r.db.WithContext(ctx).Save(&model).Error
}

func (r *AutoReplyGormRepository) ListEnabledSettings(ctx context.Context, surface domain.Surface) ([]domain.AutoReplySetting, error) {
	var models []autoReplySettingModel
	err := r.db.WithContext(ctx).
		Where("enabled = ? AND surface = ?", true, string(surface)).
		Order("account_ref ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.AutoReplySetting, len(models))
	for i, m := range models {
		res[i] = fromSettingModel(m)
	}
	return res, nil
}

// Personas

func (r *AutoReplyGormRepository) GetPersona(ctx context.Context, accountRef string) (domain.Persona, error) {
	var m personaModel
	if err := r.db.WithContext(ctx).First(&m, "account_ref = ?", accountRef).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Persona{}, domain.ErrPersonaNotFound
		}
		return domain.Persona{}, err
	}
	return domain.Persona{
		AccountRef:  m.AccountRef,
		DisplayName: m.DisplayName,
		Tone:        m.Tone,
		StyleNotes:  nullStringValue(m.StyleNotes),
		SignOff:     nullStringValue(m.SignOff),
		Language:    nullStringValue(m.Language),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}, nil
}

func (r *AutoReplyGormRepository) SavePersona(ctx context.Context, p domain.Persona) error {
	model := personaModel{
		AccountRef:  p.AccountRef,
		DisplayName: p.DisplayName,
		Tone:        p.Tone,
		StyleNotes:  toNullString(p.StyleNotes),
		SignOff:     toNullString(p.SignOff),
		Language:    toNullString(p.Language),
		UpdatedAt:   time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Save(&model).Error
}

// Logs

func (r *AutoReplyGormRepository) CreateLog(ctx context.Context, entry *domain.AutoReplyLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	model := toLogModel(*entry)
	model.UpdatedAt = entry.CreatedAt.UTC()

	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateSource
		}
		return err
	}
	return nil
}

func (r *AutoReplyGormRepository) GetLog(ctx context.Context, id string) (domain.AutoReplyLogEntry, error) {
	var m autoReplyLogModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.AutoReplyLogEntry{}, domain.ErrLogNotFound
		}
		return domain.AutoReplyLogEntry{}, err
	}
	return fromLogModel(m), nil
}

// UpdateLog moves a pending entry to its outcome. A terminal entry only
// accumulates error detail. A REPLY_AND_HIDE entry records each part and
// turns terminal once both have reported: hidden when both succeeded,
// failed otherwise.
func (r *AutoReplyGormRepository) UpdateLog(ctx context.Context, id string, update domain.LogUpdate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var m autoReplyLogModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&m, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrLogNotFound
			}
			return err
		}

		now := time.Now().UTC()
		if domain.LogStatus(m.Status).IsTerminal() {
			if update.Error == "" {
				return nil
			}
			return tx.Model(&autoReplyLogModel{}).Where("id = ?", id).Updates(map[string]any{
				"error":      appendDetail(nullStringValue(m.Error), update.Error),
				"updated_at": now,
			}).Error
		}

		updates := map[string]any{"updated_at": now}
		if update.RepliedAt != nil && update.Part != domain.LogPartHide {
			updates["replied_at"] = update.RepliedAt.UTC()
		}

		if update.Part == "" || domain.DecisionAction(m.Decision) != domain.DecisionReplyAndHide {
			updates["status"] = string(update.Status)
			if update.Error != "" {
				updates["error"] = appendDetail(nullStringValue(m.Error), update.Error)
			}
		} else {
			reply, hide := nullStringValue(m.ReplyOutcome), nullStringValue(m.HideOutcome)
			if update.Part == domain.LogPartHide {
				hide = string(update.Status)
				updates["hide_outcome"] = hide
			} else {
				reply = string(update.Status)
				updates["reply_outcome"] = reply
			}
			if update.Error != "" {
				updates["error"] = appendDetail(nullStringValue(m.Error), string(update.Part)+": "+update.Error)
			}
			if reply != "" && hide != "" {
				status := domain.LogHidden
				if reply == string(domain.LogFailed) || hide == string(domain.LogFailed) {
					status = domain.LogFailed
				}
				updates["status"] = string(status)
			}
		}

		return tx.Model(&autoReplyLogModel{}).
			Where("id = ? AND status = ?", id, string(domain.LogPending)).
			Updates(updates).Error
	})
}

// DeleteLog removes an entry whose actions could not all be enqueued, so a
// redelivery of the same source is processed again.
func (r *AutoReplyGormRepository) DeleteLog(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&autoReplyLogModel{}, "id = ?", id).Error
}

func (r *AutoReplyGormRepository) HasSource(ctx context.Context, accountRef string, surface domain.Surface, sourceID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&autoReplyLogModel{}).
		Where("account_ref = ? AND surface = ? AND source_id = ?", accountRef, string(surface), sourceID).
		Count(&count).Error
	return count > 0, err
}

func (r *AutoReplyGormRepository) RecentSourceIDs(ctx context.Context, accountRef string, surface domain.Surface, limit int) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&autoReplyLogModel{}).
		Where("account_ref = ? AND surface = ?", accountRef, string(surface)).
		Order("created_at DESC").
		Limit(limit).
		Pluck("source_id", &ids).Error
	return ids, err
}

func (r *AutoReplyGormRepository) ListLogs(ctx context.Context, accountRef string, limit int) ([]domain.AutoReplyLogEntry, error) {
	var models []autoReplyLogModel
	err := r.db.WithContext(ctx).
		Where("account_ref = ?", accountRef).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	res := make([]domain.AutoReplyLogEntry, len(models))
	for i, m := range models {
		res[i] = fromLogModel(m)
	}
	return res, nil
}

// --- Mappers ---

func appendDetail(existing, detail string) string {
	if existing == "" {
		return detail
	}
	return existing + "; " + detail
}

func toSettingModel(s domain.AutoReplySetting) autoReplySettingModel {
	m := autoReplySettingModel{
		AccountRef:      s.AccountRef,
		Surface:         string(s.Surface),
		Enabled:         s.Enabled,
		DelayMinSeconds: s.Delay.MinSeconds,
		DelayMaxSeconds: s.Delay.MaxSeconds,
		StaticMessage:   toNullString(s.StaticMessage),
		Mode:            string(s.Mode),
		HideNotice:      toNullString(s.HideNotice),
		UpdatedAt:       s.UpdatedAt.UTC(),
	}
	if s.Delay.FixedSeconds != nil {
		m.DelayFixedSeconds = sql.NullInt64{Int64: int64(*s.Delay.FixedSeconds), Valid: true}
	}
	return m
}

func fromSettingModel(m autoReplySettingModel) domain.AutoReplySetting {
	s := domain.AutoReplySetting{
		AccountRef:    m.AccountRef,
		Surface:       domain.Surface(m.Surface),
		Enabled:       m.Enabled,
		Delay:         domain.RandomDelay(m.DelayMinSeconds, m.DelayMaxSeconds),
		StaticMessage: nullStringValue(m.StaticMessage),
		Mode:          domain.ReplyMode(m.Mode),
		HideNotice:    nullStringValue(m.HideNotice),
		UpdatedAt:     m.UpdatedAt.UTC(),
	}
	if m.DelayFixedSeconds.Valid {
		s.Delay = domain.FixedDelay(int(m.DelayFixedSeconds.Int64))
	}
	return s
}

func toLogModel(e domain.AutoReplyLogEntry) autoReplyLogModel {
	return autoReplyLogModel{
		ID:             e.ID,
		AccountRef:     e.AccountRef,
		Surface:        string(e.Surface),
		SourceID:       e.SourceID,
		SourceAuthorID: e.SourceAuthorID,
		SourceText:     e.SourceText,
		Decision:       string(e.Decision),
		ReplyText:      toNullString(e.ReplyText),
		Status:         string(e.Status),
		ScheduledAt:    utcPtr(e.ScheduledAt),
		RepliedAt:      utcPtr(e.RepliedAt),
		Error:          toNullString(e.Error),
		CreatedAt:      e.CreatedAt.UTC(),
	}
}

func fromLogModel(m autoReplyLogModel) domain.AutoReplyLogEntry {
	return domain.AutoReplyLogEntry{
		ID:             m.ID,
		AccountRef:     m.AccountRef,
		Surface:        domain.Surface(m.Surface),
		SourceID:       m.SourceID,
		SourceAuthorID: m.SourceAuthorID,
		SourceText:     m.SourceText,
		Decision:       domain.DecisionAction(m.Decision),
		ReplyText:      nullStringValue(m.ReplyText),
		Status:         domain.LogStatus(m.Status),
		ScheduledAt:    utcPtr(m.ScheduledAt),
		RepliedAt:      utcPtr(m.RepliedAt),
		Error:          nullStringValue(m.Error),
		CreatedAt:      m.CreatedAt.UTC(),
	}
}
