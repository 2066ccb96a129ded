package domain

import (
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// chunkNamespace scopes chunk IDs so they never collide with request IDs or
// other UUIDv5 values derived from the same text.
var chunkNamespace = uuid.MustParse("6f1d3c2a-6a43-4f5e-9b0e-2f7c1e8d9a10")

// Document is one plain-text source file of the corpus.
type Document struct {
	Name string // base file name, e.g. "contact.txt"
	Text string
}

// Chunk is a retrievable unit of text cut from a Document.
type Chunk struct {
	ID      string `json:"id"`
	Source  string `json:"source"`
	Index   int    `json:"index"`
	Content string `json:"content"`
}

// NewChunk creates a Chunk whose ID is derived from its position and content,
// so that rebuilding an unchanged corpus reproduces the same IDs.
func NewChunk(source string, index int, content string) Chunk {
	return Chunk{
		ID:      ChunkID(source, index, content),
		Source:  source,
		Index:   index,
		Content: content,
	}
}

// ChunkID returns the deterministic identifier of a chunk.
func ChunkID(source string, index int, content string) string {
	name := source + "#" + strconv.Itoa(index) + "\x00" + content
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

// ValidateChunk validates a Chunk instance
func ValidateChunk(c *Chunk) error {
	if c == nil {
		return fmt.Errorf("chunk cannot be nil")
	}
	if c.Source == "" {
		return fmt.Errorf("chunk Source is required")
	}
	if c.Content == "" {
		return fmt.Errorf("chunk Content is required")
	}
	if c.Index < 0 {
		return fmt.Errorf("chunk Index cannot be negative")
	}
	return nil
}
