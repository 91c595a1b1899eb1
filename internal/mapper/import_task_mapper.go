package mapper

import (
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/model"
)

type ImportTaskMapper struct{}

func NewImportTaskMapper() *ImportTaskMapper {
	return &ImportTaskMapper{}
}

func (m *ImportTaskMapper) ToEntity(t *model.ImportTask) *entity.ImportTask {
	if t == nil {
		return nil
	}

	var updatedAt *time.Time
	if !t.UpdatedAt.IsZero() {
		u := t.UpdatedAt
		updatedAt = &u
	}

	return &entity.ImportTask{
		Id:               t.Id,
		BatchId:          t.BatchId,
		KnowledgeSpaceId: t.KnowledgeSpaceId,
		SourceType:       entity.SourceType(t.SourceType),
		ContentRef:       t.ContentRef,
		DocName:          t.DocName,
		Status:           entity.TaskStatus(t.Status),
		Host:             t.Host,
		RetryTimes:       t.RetryTimes,
		StartTime:        t.StartTime,
		EndTime:          t.EndTime,
		ErrorMsg:         t.ErrorMsg,
		DocId:            t.DocId,
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *ImportTaskMapper) ToModel(e *entity.ImportTask) *model.ImportTask {
	if e == nil {
		return nil
	}

	var updatedAt time.Time
	if e.UpdatedAt != nil {
		updatedAt = *e.UpdatedAt
	}

	return &model.ImportTask{
		Id:               e.Id,
		BatchId:          e.BatchId,
		KnowledgeSpaceId: e.KnowledgeSpaceId,
		SourceType:       string(e.SourceType),
		ContentRef:       e.ContentRef,
		DocName:          e.DocName,
		Status:           string(e.Status),
		Host:             e.Host,
		RetryTimes:       e.RetryTimes,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		ErrorMsg:         e.ErrorMsg,
		DocId:            e.DocId,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        updatedAt,
	}
}

func (m *ImportTaskMapper) ToEntities(tasks []*model.ImportTask) []*entity.ImportTask {
	entities := make([]*entity.ImportTask, len(tasks))
	for i, t := range tasks {
		entities[i] = m.ToEntity(t)
	}
	return entities
}

func (m *ImportTaskMapper) ToModels(tasks []*entity.ImportTask) []*model.ImportTask {
	models := make([]*model.ImportTask, len(tasks))
	for i, t := range tasks {
		models[i] = m.ToModel(t)
	}
	return models
}
