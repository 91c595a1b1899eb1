package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChunkIsImage(t *testing.T) {
	tests := []struct {
		name  string
		chunk Chunk
		want  bool
	}{
		{
			name:  "plain text chunk",
			chunk: Chunk{Content: "some ordinary text"},
			want:  false,
		},
		{
			name:  "image document type",
			chunk: Chunk{Content: "binary ref", Metadata: ChunkMetadata{DocType: "image"}},
			want:  true,
		},
		{
			name:  "markdown image reference",
			chunk: Chunk{Content: "![image](http://example.com/pic.png)"},
			want:  true,
		},
		{
			name:  "text document with plain content",
			chunk: Chunk{Content: "no image here", Metadata: ChunkMetadata{DocType: "text"}},
			want:  false,
		},
		{
			name:  "content shorter than the image prefix",
			chunk: Chunk{Content: "!["},
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.chunk.IsImage())
		})
	}
}
