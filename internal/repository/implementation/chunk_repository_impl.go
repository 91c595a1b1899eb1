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

type ChunkRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChunkMapper
}

func NewChunkRepository(db *gorm.DB) contract.ChunkRepository {
	return &ChunkRepositoryImpl{
		db:     db,
		mapper: mapper.NewChunkMapper(),
	}
}

func (r *ChunkRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChunkRepositoryImpl) CreateBulk(ctx context.Context, chunks []*entity.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	models := r.mapper.ToModels(chunks)
	if err := r.db.WithContext(ctx).Create(models).Error; err != nil {
		return err
	}
	for i, m := range models {
		*chunks[i] = *r.mapper.ToEntity(m)
	}
	return nil
}

func (r *ChunkRepositoryImpl) Update(ctx context.Context, chunk *entity.Chunk) error {
	m := r.mapper.ToModel(chunk)
	if err := r.db.WithContext(ctx).Save(m).Error; err != nil {
		return err
	}
	*chunk = *r.mapper.ToEntity(m)
	return nil
}

func (r *ChunkRepositoryImpl) UpdateSinkIds(ctx context.Context, chunks []*entity.Chunk) error {
	for _, c := range chunks {
		err := r.db.WithContext(ctx).
			Model(&model.Chunk{}).
			Where("id = ?", c.Id).
			Updates(map[string]interface{}{
				"vector_id":    c.VectorId,
				"full_text_id": c.FullTextId,
				"content":      c.Content,
				"summary":      c.Summary,
			}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *ChunkRepositoryImpl) DeleteByDocId(ctx context.Context, docId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("doc_id = ?", docId).Delete(&model.Chunk{}).Error
}

func (r *ChunkRepositoryImpl) DeleteBySpaceId(ctx context.Context, spaceId uuid.UUID) error {
	return r.db.WithContext(ctx).Where("knowledge_space_id = ?", spaceId).Delete(&model.Chunk{}).Error
}

func (r *ChunkRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.Chunk, error) {
	var m model.Chunk
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ToEntity(&m), nil
}

func (r *ChunkRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.Chunk, error) {
	var models []*model.Chunk
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	return r.mapper.ToEntities(models), nil
}

func (r *ChunkRepositoryImpl) Count(ctx context.Context, specs ...specification.Specification) (int64, error) {
	var count int64
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	err := query.Model(&model.Chunk{}).Count(&count).Error
	return count, err
}
