// Package pdftext pulls the text layer out of PDF invoices. Scanned PDFs
// without a text layer come back empty and fail later in the pipeline.
package pdftext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/core/ports"
)

const MaxDocumentBytes = 32 << 20

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
		return "", domain.NewError(domain.ErrValidation, "extract pdf text", "%s exceeds %d bytes", doc.Filename, MaxDocumentBytes)
	}
	return PlainText(raw)
}

// PlainText returns the concatenated page text of an in-memory PDF.
func PlainText(raw []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return "", domain.WrapError(domain.ErrValidation, "extract pdf text", fmt.Errorf("parse pdf: %w", err))
	}
	textReader, err := r.GetPlainText()
	if err != nil {
		return "", domain.WrapError(domain.ErrValidation, "extract pdf text", fmt.Errorf("read text layer: %w", err))
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(textReader); err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
