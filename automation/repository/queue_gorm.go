package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AzielCF/az-social/automation/domain"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// --- Persistence Models ---

type scheduledActionModel struct {
	ID          string         `gorm:"primaryKey;column:id"`
	AccountRef  string         `gorm:"column:account_ref;not null;index"`
	Kind        string         `gorm:"column:kind;not null"`
	Payload     string         `gorm:"column:payload;type:text;not null"` // JSON
	DueAt       time.Time      `gorm:"column:due_at;not null;index:idx_actions_status_due,priority:2"`
	Status      string         `gorm:"column:status;not null;default:'PENDING';index:idx_actions_status_due,priority:1"`
	ResultRef   sql.NullString `gorm:"column:result_ref"`
	ErrorDetail sql.NullString `gorm:"column:error_detail"`
	ErrorKind   sql.NullString `gorm:"column:error_kind"`
	ClaimedAt   *time.Time     `gorm:"column:claimed_at"`
	RetryOf     sql.NullString `gorm:"column:retry_of"`
	LogEntryID  sql.NullString `gorm:"column:log_entry_id;index"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt   time.Time      `gorm:"column:updated_at;not null"`
}

func (scheduledActionModel) TableName() string { return "scheduled_actions" }

// --- Repository Implementation ---

// QueueGormRepository implements domain.QueueStore.
// Every status transition is a conditional UPDATE on the current status.
type QueueGormRepository struct {
	db *gorm.DB
}

func NewQueueGormRepository(db *gorm.DB) *QueueGormRepository {
	return &QueueGormRepository{db: db}
}

func (r *QueueGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&scheduledActionModel{})
}

func (r *QueueGormRepository) Enqueue(ctx context.Context, action *domain.ScheduledAction) error {
	if action.ID == "" {
		action.ID = uuid.NewString()
	}
	if action.Status == "" {
		action.Status = domain.StatusPending
	}
	now := time.Now().UTC()
	if action.CreatedAt.IsZero() {
		action.CreatedAt = now
	}
	action.UpdatedAt = now
	action.DueAt = action.DueAt.UTC()

	model, err := toActionModel(*action)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *QueueGormRepository) FindDue(ctx context.Context, now time.Time, limit int) ([]domain.ScheduledAction, error) {
	var models []scheduledActionModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND due_at <= ?", string(domain.StatusPending), now.UTC()).
		Order("due_at ASC").
		Order("created_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}

	due := make([]domain.ScheduledAction, 0, len(models))
	for _, m := range models {
		a, err := fromActionModel(m)
		if err != nil {
			r.failUndecodable(ctx, m.ID, err)
			continue
		}
		due = append(due, a)
	}
	return due, nil
}

// failUndecodable moves a PENDING row whose payload no longer decodes to
// FAILED, so it cannot head every batch.
func (r *QueueGormRepository) failUndecodable(ctx context.Context, id string, cause error) {
	detail := domain.NewValidationError(cause.Error()).Error()
	res := r.db.WithContext(ctx).Model(&scheduledActionModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{
			"status":       string(domain.StatusFailed),
			"error_kind":   string(domain.ErrKindValidation),
			"error_detail": detail,
			"updated_at":   time.Now().UTC(),
		})
	entry := logrus.WithField("action_id", id)
	if res.Error != nil {
		entry.WithError(res.Error).Error("[QUEUE] Failed to mark undecodable action")
		return
	}
	entry.Warnf("[QUEUE] Action failed: %s", detail)
}

func (r *QueueGormRepository) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	claimedAt := now.UTC()
	res := r.db.WithContext(ctx).Model(&scheduledActionModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{
			"status":     string(domain.StatusInFlight),
			"claimed_at": claimedAt,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *QueueGormRepository) UpdateStatus(ctx context.Context, id string, outcome domain.Outcome) error {
	if !outcome.Status.IsTerminal() || outcome.Status == domain.StatusCancelled {
		return fmt.Errorf("invalid outcome status %s", outcome.Status)
	}

	updates := map[string]any{
		"status":       string(outcome.Status),
		"result_ref":   toNullString(outcome.ResultRef),
		"error_detail": toNullString(outcome.ErrorDetail),
		"error_kind":   toNullString(string(outcome.ErrorKind)),
		"updated_at":   time.Now().UTC(),
	}
	if outcome.Status != domain.StatusFailed {
		updates["error_detail"] = sql.NullString{}
		updates["error_kind"] = sql.NullString{}
	} else {
		updates["result_ref"] = sql.NullString{}
	}

	res := r.db.WithContext(ctx).Model(&scheduledActionModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusInFlight)).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotInFlight
	}
	return nil
}

func (r *QueueGormRepository) Cancel(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Model(&scheduledActionModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{
			"status":     string(domain.StatusCancelled),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotCancellable
	}
	return nil
}

func (r *QueueGormRepository) ResetDue(ctx context.Context, id string, dueAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&scheduledActionModel{}).
		Where("id = ? AND status = ?", id, string(domain.StatusPending)).
		Updates(map[string]any{
			"due_at":     dueAt.UTC(),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
		return domain.ErrNotPending
	}
	return nil
}

func (r *QueueGormRepository) SweepStale(ctx context.Context, claimedBefore time.Time, detail string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&scheduledActionModel{}).
		Where("status = ? AND claimed_at < ?", string(domain.StatusInFlight), claimedBefore.UTC()).
		Updates(map[string]any{
			"status":       string(domain.StatusFailed),
			"error_detail": detail,
			"error_kind":   string(domain.ErrKindTimeout),
			"updated_at":   time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}

func (r *QueueGormRepository) Get(ctx context.Context, id string) (domain.ScheduledAction, error) {
	var m scheduledActionModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ScheduledAction{}, domain.ErrActionNotFound
		}
		return domain.ScheduledAction{}, err
	}
	return fromActionModel(m)
}

func (r *QueueGormRepository) ListByUser(ctx context.Context, userRef string) ([]domain.ScheduledAction, error) {
	accountIDs := r.db.Model(&connectedAccountModel{}).Select("id").Where("user_ref = ?", userRef)

	var models []scheduledActionModel
	err := r.db.WithContext(ctx).
		Where("account_ref IN (?)", accountIDs).
		Order("due_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return fromActionModels(models)
}

// CountByStatus returns the number of actions per status.
func (r *QueueGormRepository) CountByStatus(ctx context.Context) (map[domain.ActionStatus]int64, error) {
	var rows []struct {
		Status string
		Total  int64
	}
	err := r.db.WithContext(ctx).Model(&scheduledActionModel{}).
		Select("status, COUNT(*) AS total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ActionStatus]int64, len(rows))
	for _, row := range rows {
		out[domain.ActionStatus(row.Status)] = row.Total
	}
	return out, nil
}

// --- Mappers ---

func toActionModel(a domain.ScheduledAction) (scheduledActionModel, error) {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return scheduledActionModel{}, fmt.Errorf("encode payload: %w", err)
	}
	return scheduledActionModel{
		ID:          a.ID,
		AccountRef:  a.AccountRef,
		Kind:        string(a.Kind),
		Payload:     string(payload),
		DueAt:       a.DueAt.UTC(),
		Status:      string(a.Status),
		ResultRef:   toNullString(a.ResultRef),
		ErrorDetail: toNullString(a.ErrorDetail),
		ErrorKind:   toNullString(string(a.ErrorKind)),
		ClaimedAt:   utcPtr(a.ClaimedAt),
		RetryOf:     toNullString(a.RetryOf),
		LogEntryID:  toNullString(a.LogEntryID),
		CreatedAt:   a.CreatedAt.UTC(),
		UpdatedAt:   a.UpdatedAt.UTC(),
	}, nil
}

func fromActionModel(m scheduledActionModel) (domain.ScheduledAction, error) {
	payload, err := decodePayload(m.Payload)
	if err != nil {
		return domain.ScheduledAction{}, fmt.Errorf("decode payload: %w", err)
	}
	return domain.ScheduledAction{
		ID:          m.ID,
		AccountRef:  m.AccountRef,
		Kind:        domain.ActionKind(m.Kind),
		Payload:     payload,
		DueAt:       m.DueAt.UTC(),
		Status:      domain.ActionStatus(m.Status),
		ResultRef:   nullStringValue(m.ResultRef),
		ErrorDetail: nullStringValue(m.ErrorDetail),
		ErrorKind:   domain.ErrorKind(nullStringValue(m.ErrorKind)),
		ClaimedAt:   utcPtr(m.ClaimedAt),
		RetryOf:     nullStringValue(m.RetryOf),
		LogEntryID:  nullStringValue(m.LogEntryID),
		CreatedAt:   m.CreatedAt.UTC(),
		UpdatedAt:   m.UpdatedAt.UTC(),
	}, nil
}

func decodePayload(raw string) (domain.ActionPayload, error) {
	var payload domain.ActionPayload
	if raw == "" {
		return payload, nil
	}
	err := json.Unmarshal([]byte(raw), &payload)
	return payload, err
}

func fromActionModels(models []scheduledActionModel) ([]domain.ScheduledAction, error) {
	res := make([]domain.ScheduledAction, 0, len(models))
	for _, m := range models {
		a, err := fromActionModel(m)
		if err != nil {
			return nil, err
		}
		res = append(res, a)
	}
	return res, nil
}
