// Package extractor picks a text extractor by document MIME type.
package extractor

import (
	"context"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

type Router struct {
	byMimeType map[string]ports.TextExtractor
}

func NewRouter(byMimeType map[string]ports.TextExtractor) *Router {
	return &Router{byMimeType: byMimeType}
}

func (r *Router) Extract(ctx context.Context, doc *domain.SourceDocument) (string, error) {
	extractor, ok := r.byMimeType[doc.MimeType]
	if !ok {
		return "", domain.NewError(domain.ErrValidation, "extract text", "no extractor for %q (%s)", doc.MimeType, doc.Filename)
	}
	return extractor.Extract(ctx, doc)
}
