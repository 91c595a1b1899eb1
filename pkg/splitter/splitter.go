package splitter

import (
	"fmt"

	"kb-ingest-be/internal/entity"
)

// ChunkStrategy splits raw document content into chunk-sized pieces.
type ChunkStrategy interface {
	Split(content string, params entity.ChunkParams) ([]string, error)
}

// Registry resolves a strategy by name. Unknown names are a
// configuration problem, not a runtime one.
type Registry struct {
	strategies map[string]ChunkStrategy
}

func NewRegistry() *Registry {
	r := &Registry{strategies: make(map[string]ChunkStrategy)}
	r.Register("char", &CharSplitter{})
	return r
}

func (r *Registry) Register(name string, s ChunkStrategy) {
	r.strategies[name] = s
}

func (r *Registry) Resolve(name string) (ChunkStrategy, error) {
	if name == "" {
		name = "char"
	}
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("unknown chunk strategy %q", name)
	}
	return s, nil
}

// CharSplitter splits a long string into chunks of approximately
// chunkSize characters with an overlap to preserve context at
// boundaries. Simple character-based splitting; rune-safe.
type CharSplitter struct{}

func (s *CharSplitter) Split(content string, params entity.ChunkParams) ([]string, error) {
	chunkSize := params.ChunkSize
	if chunkSize <= 0 {
		chunkSize = 1500
	}
	overlap := params.Overlap
	if overlap < 0 {
		overlap = 0
	}

	if len(content) <= chunkSize {
		return []string{content}, nil
	}

	var chunks []string
	runes := []rune(content)
	totalLen := len(runes)

	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize // fallback if overlap >= chunkSize
	}

	for i := 0; i < totalLen; i += step {
		end := i + chunkSize
		if end > totalLen {
			end = totalLen
		}

		chunks = append(chunks, string(runes[i:end]))

		if end == totalLen {
			break
		}
	}

	return chunks, nil
}
