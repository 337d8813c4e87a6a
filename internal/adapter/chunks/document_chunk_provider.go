package chunks

import (
	"context"
	"fmt"
	"strings"

	"quiz-forge/internal/domain"
)

// documentChunkProvider implements domain.ChunkProvider by splitting the
// stored document content into bounded, paragraph-aligned chunks.
type documentChunkProvider struct {
	docRepo   domain.DocumentRepository
	chunkSize int
}

// NewDocumentChunkProvider creates a new instance of documentChunkProvider.
func NewDocumentChunkProvider(docRepo domain.DocumentRepository, chunkSize int) domain.ChunkProvider {
	return &documentChunkProvider{
		docRepo:   docRepo,
		chunkSize: chunkSize,
	}
}

// GetChunks implements domain.ChunkProvider
func (p *documentChunkProvider) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	doc, err := p.docRepo.GetDocumentByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", documentID, err)
	}
	if doc == nil {
		return nil, domain.NewDocumentNotFoundError(documentID)
	}

	pieces := SplitText(doc.Content, p.chunkSize)
	chunks := make([]domain.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = domain.Chunk{Index: i, Text: text}
	}
	return chunks, nil
}

// SplitText splits text into pieces of at most chunkSize runes, breaking
// on paragraph boundaries where one fits. A paragraph longer than
// chunkSize is hard-split. Empty input yields no pieces.
func SplitText(text string, chunkSize int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if chunkSize <= 0 {
		return []string{text}
	}

	var pieces []string
	var current strings.Builder

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			pieces = append(pieces, s)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		runes := []rune(para)
		if len(runes) > chunkSize {
			flush()
			for len(runes) > chunkSize {
				pieces = append(pieces, strings.TrimSpace(string(runes[:chunkSize])))
				runes = runes[chunkSize:]
			}
			if s := strings.TrimSpace(string(runes)); s != "" {
				current.WriteString(s)
			}
			continue
		}

		// +2 accounts for the paragraph separator inside the piece.
		if current.Len() > 0 && current.Len()+len(runes)+2 > chunkSize {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()

	return pieces
}
