package main

import (
	"log"
	"os"
	"time"

	"kb-ingest-be/internal/entity"
	"kb-ingest-be/internal/mapper"
	"kb-ingest-be/internal/model"
	"kb-ingest-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

// Seeds a demo knowledge space with a couple of unsynced documents so
// the ingest flow can be exercised locally.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	space := &entity.KnowledgeSpace{
		Id:             uuid.New(),
		Name:           "Demo Space",
		StorageBackend: entity.BackendVectorFullText,
		Refresh:        true,
		CreatedAt:      time.Now(),
	}

	var existing model.KnowledgeSpace
	if err := db.Where("name = ?", space.Name).First(&existing).Error; err == nil {
		log.Printf("Demo space already exists (%s), skipping", existing.Id)
		return
	}

	spaceMapper := mapper.NewKnowledgeSpaceMapper()
	docMapper := mapper.NewDocumentMapper()

	if err := db.Create(spaceMapper.ToModel(space)).Error; err != nil {
		log.Fatalf("Error: Failed to seed space: %v", err)
	}

	docs := []*entity.Document{
		{
			Id:               uuid.New(),
			KnowledgeSpaceId: space.Id,
			Name:             "Getting Started",
			DocType:          "text",
			SourceType:       entity.SourceText,
			ContentRef:       "Welcome to the demo knowledge space. This document is pasted text and syncs without any external dependency.",
			Status:           entity.DocStatusTodo,
			ChunkParams:      entity.ChunkParams{Strategy: "char", ChunkSize: 200, Overlap: 20},
			CreatedAt:        time.Now(),
		},
		{
			Id:               uuid.New(),
			KnowledgeSpaceId: space.Id,
			Name:             "Team Wiki Home",
			DocType:          "markdown",
			SourceType:       entity.SourceExternalURL,
			ContentRef:       "demo-wiki-home",
			Status:           entity.DocStatusTodo,
			ChunkParams:      entity.ChunkParams{Strategy: "char", ChunkSize: 1500, Overlap: 200},
			CreatedAt:        time.Now(),
		},
	}

	for _, doc := range docs {
		if err := db.Create(docMapper.ToModel(doc)).Error; err != nil {
			log.Fatalf("Error: Failed to seed document %q: %v", doc.Name, err)
		}
	}

	log.Printf("Success: seeded space %s with %d documents", space.Id, len(docs))
}
