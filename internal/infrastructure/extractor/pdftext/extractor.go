// Package pdftext extracts plain text from PDF statements one page at a time.
package pdftext

import (
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/kakeibo/internal/core/domain"
	"github.com/kirillkom/kakeibo/internal/core/ports"
)

type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Open parses the cross-reference table and page tree. Page content is
// decoded lazily by the returned iterator.
func (e *Extractor) Open(ctx context.Context, doc io.ReaderAt, size int64) (it ports.PageIterator, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	defer func() {
		if r := recover(); r != nil {
			it = nil
			err = domain.WrapError(domain.ErrDocumentUnreadable, "open pdf", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(doc, size)
	if err != nil {
		return nil, domain.WrapError(domain.ErrDocumentUnreadable, "open pdf", err)
	}
	return &pageIterator{reader: reader, total: reader.NumPage()}, nil
}

type pageIterator struct {
	reader *pdf.Reader
	total  int
	next   int
}

func (p *pageIterator) Count() int {
	return p.total
}

func (p *pageIterator) Next() (text string, err error) {
	if p.next >= p.total {
		return "", io.EOF
	}
	p.next++
	num := p.next

	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = domain.WrapError(domain.ErrDocumentUnreadable, fmt.Sprintf("read pdf page %d", num), fmt.Errorf("%v", r))
		}
	}()

	page := p.reader.Page(num)
	if page.V.IsNull() || page.V.Key("Contents").IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", domain.WrapError(domain.ErrDocumentUnreadable, fmt.Sprintf("read pdf page %d", num), err)
	}
	return text, nil
}
