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

type RefreshRecordRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.RefreshRecordMapper
}

func NewRefreshRecordRepository(db *gorm.DB) contract.RefreshRecordRepository {
	return &RefreshRecordRepositoryImpl{
		db:     db,
		mapper: mapper.NewRefreshRecordMapper(),
	}
}

func (r *RefreshRecordRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *RefreshRecordRepositoryImpl) Create(ctx context.Context, record *entity.RefreshRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *RefreshRecordRepositoryImpl) Update(ctx context.Context, record *entity.RefreshRecord) error {
	m := r.mapper.ToModel(record)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*record = *r.mapper.ToEntity(m)
	return nil
}

func (r *RefreshRecordRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.RefreshRecord, error) {
	var m model.RefreshRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *RefreshRecordRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.RefreshRecord, error) {
	var models []*model.RefreshRecord
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *RefreshRecordRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.RefreshRecord{}).Count(&count).Error
	return count, err
}

func (r *RefreshRecordRepositoryImpl) ExistsForDay(ctx context.Context, spaceId uuid.UUID, date string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.RefreshRecord{}).
		Where("knowledge_space_id = ? AND refresh_date = ?", spaceId, date).
		Count(&count).Error
	return count > 0, err
}

func (r *RefreshRecordRepositoryImpl) FindNextPending(ctx context.Context, host string) (*entity.RefreshRecord, error) {
	var m model.RefreshRecord
	err := r.db.WithContext(ctx).
		Where("status = ? OR (status = ? AND host = ?)",
			string(entity.RefreshStatusTodo), string(entity.RefreshStatusRunning), host).
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

func (r *RefreshRecordRepositoryImpl) Claim(ctx context.Context, id uuid.UUID, host string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.RefreshRecord{}).
		Where("id = ? AND (status = ? OR (status = ? AND host = ?))",
			id, string(entity.RefreshStatusTodo), string(entity.RefreshStatusRunning), host).
		Updates(map[string]interface{}{
			"host":   host,
			"status": string(entity.RefreshStatusRunning),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *RefreshRecordRepositoryImpl) CountNonTerminal(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.RefreshRecord{}).
		Where("status NOT IN ?", []string{string(entity.RefreshStatusSucceed), string(entity.RefreshStatusFinished)}).
		Count(&count).Error
	return count, err
}
