package chunks

import (
	"context"
	"errors"
	"quiz-forge/internal/domain"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) GetDocumentByID(ctx context.Context, id string) (*domain.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Document), args.Error(1)
}

func TestSplitText(t *testing.T) {
	t.Run("EmptyInput", func(t *testing.T) {
		assert.Nil(t, SplitText("", 100))
		assert.Nil(t, SplitText("   \n\n  ", 100))
	})

	t.Run("SingleShortText", func(t *testing.T) {
		pieces := SplitText("hello world", 100)
		assert.Equal(t, []string{"hello world"}, pieces)
	})

	t.Run("GroupsParagraphsUnderLimit", func(t *testing.T) {
		text := "first para\n\nsecond para\n\nthird para"
		pieces := SplitText(text, 26)

		require.Len(t, pieces, 2)
		assert.Equal(t, "first para\n\nsecond para", pieces[0])
		assert.Equal(t, "third para", pieces[1])
	})

	t.Run("ParagraphPerPieceWhenNonePairUp", func(t *testing.T) {
		text := "aaaaaaaaaa\n\nbbbbbbbbbb\n\ncccccccccc"
		pieces := SplitText(text, 12)

		assert.Equal(t, []string{"aaaaaaaaaa", "bbbbbbbbbb", "cccccccccc"}, pieces)
	})

	t.Run("HardSplitsOversizedParagraph", func(t *testing.T) {
		text := strings.Repeat("x", 25)
		pieces := SplitText(text, 10)

		require.Len(t, pieces, 3)
		assert.Equal(t, strings.Repeat("x", 10), pieces[0])
		assert.Equal(t, strings.Repeat("x", 10), pieces[1])
		assert.Equal(t, strings.Repeat("x", 5), pieces[2])
	})

	t.Run("HardSplitCountsRunesNotBytes", func(t *testing.T) {
		text := strings.Repeat("한", 15)
		pieces := SplitText(text, 10)

		require.Len(t, pieces, 2)
		assert.Equal(t, strings.Repeat("한", 10), pieces[0])
		assert.Equal(t, strings.Repeat("한", 5), pieces[1])
	})

	t.Run("ZeroChunkSizeKeepsWholeText", func(t *testing.T) {
		text := "first para\n\nsecond para"
		assert.Equal(t, []string{text}, SplitText(text, 0))
	})

	t.Run("SkipsBlankParagraphs", func(t *testing.T) {
		text := "first\n\n\n\n   \n\nsecond"
		pieces := SplitText(text, 5)
		assert.Equal(t, []string{"first", "second"}, pieces)
	})
}

func TestGetChunks(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		docRepo := new(MockDocumentRepository)
		provider := NewDocumentChunkProvider(docRepo, 12)

		docRepo.On("GetDocumentByID", ctx, "doc1").Return(&domain.Document{
			ID:      "doc1",
			Content: "first para\n\nsecond para",
		}, nil)

		chunks, err := provider.GetChunks(ctx, "doc1")
		require.NoError(t, err)
		require.Len(t, chunks, 2)
		assert.Equal(t, 0, chunks[0].Index)
		assert.Equal(t, "first para", chunks[0].Text)
		assert.Equal(t, 1, chunks[1].Index)
		assert.Equal(t, "second para", chunks[1].Text)
		docRepo.AssertExpectations(t)
	})

	t.Run("DocumentNotFound", func(t *testing.T) {
		docRepo := new(MockDocumentRepository)
		provider := NewDocumentChunkProvider(docRepo, 12)

		docRepo.On("GetDocumentByID", ctx, "missing").Return(nil, nil)

		chunks, err := provider.GetChunks(ctx, "missing")
		require.Error(t, err)
		assert.Nil(t, chunks)
		var domainErr *domain.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, domain.ErrDocumentNotFound, domainErr.Code)
	})

	t.Run("RepositoryError", func(t *testing.T) {
		docRepo := new(MockDocumentRepository)
		provider := NewDocumentChunkProvider(docRepo, 12)

		repoErr := errors.New("db down")
		docRepo.On("GetDocumentByID", ctx, "doc1").Return(nil, repoErr)

		_, err := provider.GetChunks(ctx, "doc1")
		require.Error(t, err)
		assert.ErrorIs(t, err, repoErr)
	})
}
