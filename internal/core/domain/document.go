package domain

import "time"

type DocumentStatus string

const (
	StatusUploaded   DocumentStatus = "uploaded"
	StatusProcessing DocumentStatus = "processing"
	StatusExtracted  DocumentStatus = "extracted"
	StatusFailed     DocumentStatus = "failed"
)

// SourceDocument is an uploaded invoice scan or PDF.
type SourceDocument struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	Status      DocumentStatus `json:"status"`
	InvoiceID   string         `json:"invoice_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// ExtractedInvoice is the structured output of the document-understanding step.
// Amounts stay strings until intake validates them.
type ExtractedInvoice struct {
	InvoiceNumber string          `json:"invoice_number"`
	InvoiceDate   string          `json:"invoice_date"`
	Total         string          `json:"total"`
	Currency      string          `json:"currency"`
	ProviderID    string          `json:"provider_id,omitempty"`
	ProviderName  string          `json:"provider_name"`
	Category      string          `json:"category"`
	HorseName     string          `json:"horse_name"`
	Items         []ExtractedItem `json:"items"`
}

type ExtractedItem struct {
	Description       string `json:"description"`
	Amount            string `json:"amount"`
	SuggestedCategory string `json:"suggested_category"`
	HorseName         string `json:"horse_name"`
}
