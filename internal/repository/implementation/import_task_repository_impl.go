package implementation

import (
	"context"
	"errors"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/mapper"
	"kb-ingest-be/internal/model"
	"kb-ingest-be/internal/repository/contract"
	"kb-ingest-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ImportTaskRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ImportTaskMapper
}

func NewImportTaskRepository(db *gorm.DB) contract.ImportTaskRepository {
	return &ImportTaskRepositoryImpl{
		db:     db,
		mapper: mapper.NewImportTaskMapper(),
	}
}

func (r *ImportTaskRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ImportTaskRepositoryImpl) CreateBulk(ctx context.Context, tasks []*entity.ImportTask) error {
	if len(tasks) == 0 {
		return nil
	}
	models := r.mapper.ToModels(tasks)
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*tasks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *ImportTaskRepositoryImpl) Update(ctx context.Context, task *entity.ImportTask) error {
	m := r.mapper.ToModel(task)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*task = *r.mapper.ToEntity(m)
	return nil
}

func (r *ImportTaskRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ImportTask, error) {
	var m model.ImportTask
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ImportTaskRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ImportTask, error) {
	var models []*model.ImportTask
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ImportTaskRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.ImportTask{}).Count(&count).Error
	return count, err
}

func (r *ImportTaskRepositoryImpl) FindNextPending(ctx context.Context, host string) (*entity.ImportTask, error) {
	var m model.ImportTask
	err := r.db.WithContext(ctx).
		Where("status NOT IN ?", []string{string(entity.TaskStatusSucceed), string(entity.TaskStatusFinished)}).
		Where("host = '' OR host IS NULL OR host = ?", host).
		Order("created_at ASC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ImportTaskRepositoryImpl) Claim(ctx context.Context, id uuid.UUID, host string) (bool, error) {
	// Conditional update so two hosts racing on the same row cannot both
	// win: only the one whose WHERE still matches flips the host column.
	res := r.db.WithContext(ctx).
		Model(&model.ImportTask{}).
		Where("id = ? AND (host = '' OR host IS NULL OR host = ?)", id, host).
		Update("host", host)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *ImportTaskRepositoryImpl) CountByBatch(ctx context.Context, batchId uuid.UUID) (*contract.BatchCounts, error) {
	type row struct {
		Status string
		N      int64
	}
	var rows []row
	err := r.db.WithContext(ctx).
		Model(&model.ImportTask{}).
		Select("status, count(*) as n").
		Where("batch_id = ?", batchId).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := &contract.BatchCounts{}
	for _, rw := range rows {
		counts.Total += rw.N
		switch entity.TaskStatus(rw.Status) {
		case entity.TaskStatusTodo:
			counts.Todo += rw.N
		case entity.TaskStatusRunning, entity.TaskStatusFailed:
			// FAILED tasks are still being retried; callers see them as running.
			counts.Running += rw.N
		case entity.TaskStatusSucceed:
			counts.Succeeded += rw.N
		case entity.TaskStatusFinished:
			counts.Failed += rw.N
		}
	}
	return counts, nil
}
