package implementation

import (
	"context"
	"errors"
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/mapper"
	"kb-ingest-be/internal/model"
	"kb-ingest-be/internal/repository/contract"
	"kb-ingest-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type KnowledgeSpaceRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.KnowledgeSpaceMapper
}

func NewKnowledgeSpaceRepository(db *gorm.DB) contract.KnowledgeSpaceRepository {
	return &KnowledgeSpaceRepositoryImpl{
		db:     db,
		mapper: mapper.NewKnowledgeSpaceMapper(),
	}
}

func (r *KnowledgeSpaceRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *KnowledgeSpaceRepositoryImpl) Create(ctx context.Context, space *entity.KnowledgeSpace) error {
	m := r.mapper.ToModel(space)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*space = *r.mapper.ToEntity(m)
	return nil
}

func (r *KnowledgeSpaceRepositoryImpl) Update(ctx context.Context, space *entity.KnowledgeSpace) error {
	m := r.mapper.ToModel(space)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*space = *r.mapper.ToEntity(m)
	return nil
}

func (r *KnowledgeSpaceRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&model.KnowledgeSpace{}, id).Error
}

func (r *KnowledgeSpaceRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.KnowledgeSpace, error) {
	var m model.KnowledgeSpace
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *KnowledgeSpaceRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.KnowledgeSpace, error) {
	var models []*model.KnowledgeSpace
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.KnowledgeSpace, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ToEntity(m)
	}
	return entities, nil
}

func (r *KnowledgeSpaceRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.KnowledgeSpace{}).Count(&count).Error
	return count, err
}

func (r *KnowledgeSpaceRepositoryImpl) RecordSync(ctx context.Context, id uuid.UUID, delta int) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&model.KnowledgeSpace{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"doc_count":      gorm.Expr("doc_count + ?", delta),
			"last_synced_at": now,
		}).Error
}
