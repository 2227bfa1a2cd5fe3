package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/charforge/character"
	"github.com/BaSui01/charforge/types"
)

// =============================================================================
// 📋 生成记录
// =============================================================================

// GenerationRecord 一次发布的角色结果
type GenerationRecord struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SessionID   string    `gorm:"size:64;not null;index:idx_generation_records_session" json:"session_id"`
	Source      string    `gorm:"size:16;not null" json:"source"`
	Description string    `gorm:"type:text;not null" json:"description"`
	JobClass    string    `gorm:"size:128;not null;index:idx_generation_records_job_class" json:"job_class"`
	STR         int       `gorm:"column:str;not null" json:"str"`
	INT         int       `gorm:"column:intelligence;not null" json:"int"`
	CON         int       `gorm:"column:con;not null" json:"con"`
	WIS         int       `gorm:"column:wis;not null" json:"wis"`
	Total       int       `gorm:"not null" json:"total"`
	MinValue    int       `gorm:"not null" json:"min_value"`
	MaxValue    int       `gorm:"not null" json:"max_value"`
	ImagePath   string    `gorm:"type:text;not null;default:''" json:"image_path"`
	CreatedAt   time.Time `gorm:"index:idx_generation_records_created" json:"created_at"`
}

func (GenerationRecord) TableName() string {
	return "generation_records"
}

// NewRecord 由已校验的结果构造记录
func NewRecord(sessionID, source string, res character.GenerationResult, rng character.Range) *GenerationRecord {
	return &GenerationRecord{
		SessionID:   sessionID,
		Source:      source,
		Description: res.Description,
		JobClass:    res.JobClass,
		STR:         res.Stats.STR,
		INT:         res.Stats.INT,
		CON:         res.Stats.CON,
		WIS:         res.Stats.WIS,
		Total:       res.Stats.Total(),
		MinValue:    rng.Min,
		MaxValue:    rng.Max,
	}
}

// Result 还原为生成结果
func (r GenerationRecord) Result() character.GenerationResult {
	return character.GenerationResult{
		Description: r.Description,
		JobClass:    r.JobClass,
		Stats:       character.AttributeSet{STR: r.STR, INT: r.INT, CON: r.CON, WIS: r.WIS},
	}
}

// ListOptions 查询条件
type ListOptions struct {
	SessionID string
	JobClass  string
	Limit     int
	Offset    int
}

const (
	defaultListLimit = 20
	maxListLimit     = 200
)

// Normalized 应用默认分页与上限
func (o ListOptions) Normalized() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// QueryRecorder 查询耗时指标
type QueryRecorder interface {
	RecordDBQuery(database, operation string, duration time.Duration)
}

// =============================================================================
// 🗄️ 仓储
// =============================================================================

// RecordRepository 生成记录仓储
type RecordRepository struct {
	db       *gorm.DB
	name     string
	recorder QueryRecorder
	logger   *zap.Logger
}

// RepositoryOption 仓储选项
type RepositoryOption func(*RecordRepository)

// WithQueryRecorder 记录每次查询耗时
func WithQueryRecorder(r QueryRecorder) RepositoryOption {
	return func(repo *RecordRepository) { repo.recorder = r }
}

// NewRecordRepository 创建仓储
func NewRecordRepository(db *gorm.DB, logger *zap.Logger, opts ...RepositoryOption) *RecordRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	repo := &RecordRepository{
		db:     db,
		name:   db.Dialector.Name(),
		logger: logger.With(zap.String("component", "record_repository")),
	}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// AutoMigrate 未使用迁移命令时按模型建表
func (r *RecordRepository) AutoMigrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&GenerationRecord{})
}

// Save 保存记录；ID 为空时生成 UUID
func (r *RecordRepository) Save(ctx context.Context, rec *GenerationRecord) error {
	defer r.observe("insert", time.Now())
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(rec).Error; err != nil {
		return types.NewError(types.ErrInternalError, "failed to save generation record").WithCause(err)
	}
	return nil
}

// Get 按 ID 查询
func (r *RecordRepository) Get(ctx context.Context, id string) (*GenerationRecord, error) {
	defer r.observe("select", time.Now())
	var rec GenerationRecord
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, fmt.Sprintf("record %s not found", id)).
			WithHTTPStatus(http.StatusNotFound)
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load generation record").WithCause(err)
	}
	return &rec, nil
}

// List 按创建时间倒序分页查询，返回总数
func (r *RecordRepository) List(ctx context.Context, opts ListOptions) ([]GenerationRecord, int64, error) {
	defer r.observe("select", time.Now())
	opts = opts.Normalized()

	q := r.db.WithContext(ctx).Model(&GenerationRecord{})
	if opts.SessionID != "" {
		q = q.Where("session_id = ?", opts.SessionID)
	}
	if job := strings.TrimSpace(opts.JobClass); job != "" {
		q = q.Where("job_class = ?", job)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, types.NewError(types.ErrInternalError, "failed to count generation records").WithCause(err)
	}

	var records []GenerationRecord
	err := q.Order("created_at DESC").Order("id").Limit(opts.Limit).Offset(opts.Offset).Find(&records).Error
	if err != nil {
		return nil, 0, types.NewError(types.ErrInternalError, "failed to list generation records").WithCause(err)
	}
	return records, total, nil
}

// AttachImage 把图像路径写入该会话最近一条记录，没有记录时返回 false
func (r *RecordRepository) AttachImage(ctx context.Context, sessionID, path string) (bool, error) {
	defer r.observe("update", time.Now())
	var rec GenerationRecord
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at DESC").
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, types.NewError(types.ErrInternalError, "failed to load generation record").WithCause(err)
	}
	if err := r.db.WithContext(ctx).Model(&rec).Update("image_path", path).Error; err != nil {
		return false, types.NewError(types.ErrInternalError, "failed to attach image").WithCause(err)
	}
	return true, nil
}

func (r *RecordRepository) observe(op string, start time.Time) {
	if r.recorder != nil {
		r.recorder.RecordDBQuery(r.name, op, time.Since(start))
	}
}
