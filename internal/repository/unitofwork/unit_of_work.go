package unitofwork

import (
	"context"

	"kb-ingest-be/internal/repository/contract"
)

type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit() error
	Rollback() error

	KnowledgeSpaceRepository() contract.KnowledgeSpaceRepository
	DocumentRepository() contract.DocumentRepository
	ChunkRepository() contract.ChunkRepository
	ImportTaskRepository() contract.ImportTaskRepository
	RefreshRecordRepository() contract.RefreshRecordRepository
}
