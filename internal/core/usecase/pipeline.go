package usecase

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/core/ports"
)

// ExtractionPipeline reads a stored statement page by page and parses every
// page into raw transactions.
type ExtractionPipeline struct {
	storage   ports.BlobStorage
	extractor ports.DocumentTextExtractor
	parser    ports.StatementParser
}

func NewExtractionPipeline(
	storage ports.BlobStorage,
	extractor ports.DocumentTextExtractor,
	parser ports.StatementParser,
) *ExtractionPipeline {
	return &ExtractionPipeline{
		storage:   storage,
		extractor: extractor,
		parser:    parser,
	}
}

func (p *ExtractionPipeline) Extract(ctx context.Context, blobKey string) (domain.ExtractionResult, error) {
	raw, err := p.load(ctx, blobKey)
	if err != nil {
		return domain.ExtractionResult{}, err
	}

	pages, err := p.extractor.Open(ctx, bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return domain.ExtractionResult{}, fmt.Errorf("open statement: %w", err)
	}

	result := domain.ExtractionResult{Transactions: []domain.RawTransaction{}}
	for {
		if err := ctx.Err(); err != nil {
			return domain.ExtractionResult{}, fmt.Errorf("extract statement: %w", err)
		}

		text, err := pages.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return domain.ExtractionResult{}, fmt.Errorf("extract page %d: %w", result.Pages+1, err)
		}

		result.Pages++
		if strings.TrimSpace(text) == "" {
			result.EmptyPages++
			continue
		}
		result.Transactions = append(result.Transactions, p.parser.Parse(ctx, text)...)
	}
	return result, nil
}

func (p *ExtractionPipeline) load(ctx context.Context, blobKey string) ([]byte, error) {
	reader, err := p.storage.Open(ctx, blobKey)
	if err != nil {
		return nil, fmt.Errorf("open statement blob: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("read statement blob: %w", err)
	}
	return raw, nil
}
