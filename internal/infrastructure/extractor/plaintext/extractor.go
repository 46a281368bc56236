package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

// MaxDocumentBytes caps how much of a text invoice is read.
const MaxDocumentBytes = 4 << 20

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

func (e *Extractor) Extract(ctx context.Context, doc *domain.SourceDocument) (string, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return "", fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(io.LimitReader(reader, MaxDocumentBytes+1))
	if err != nil {
		return "", fmt.Errorf("read source document: %w", err)
	}
	if len(raw) > MaxDocumentBytes {
		return "", domain.NewError(domain.ErrValidation, "extract text", "%s exceeds %d bytes", doc.Filename, MaxDocumentBytes)
	}
	if !utf8.Valid(raw) {
		return "", domain.NewError(domain.ErrValidation, "extract text", "%s is not valid UTF-8 text", doc.Filename)
	}
	return strings.TrimSpace(string(raw)), nil
}
