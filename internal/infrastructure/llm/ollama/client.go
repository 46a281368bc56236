package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/stablebooks/internal/core/domain"
	"github.com/kirillkom/stablebooks/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Options struct {
	Timeout  time.Duration
	Executor *resilience.Executor
}

func New(baseURL, model string) *Client {
	return NewWithOptions(baseURL, model, Options{})
}

func NewWithOptions(baseURL, model string, options Options) *Client {
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   options.Executor,
	}
}

// InvoiceExtractor asks the model for invoice fields in a fixed JSON shape.
type InvoiceExtractor struct {
	client *Client
}

func NewInvoiceExtractor(client *Client) *InvoiceExtractor {
	return &InvoiceExtractor{client: client}
}

func (e *InvoiceExtractor) ExtractInvoice(ctx context.Context, text string, categories []domain.Category) (domain.ExtractedInvoice, error) {
	const op = "ollama.extract_invoice"
	raw, err := resilience.Call(ctx, e.client.executor, op, func(ctx context.Context) (string, error) {
		return e.client.generateJSON(ctx, buildInvoicePrompt(text, categories))
	}, classify)
	if err != nil {
		return domain.ExtractedInvoice{}, asTemporary(op, err)
	}
	return parseExtraction(raw)
}

// modelInvoice mirrors the prompt's schema. Models emit amounts as numbers
// or strings, so amounts decode through looseAmount.
type modelInvoice struct {
	InvoiceNumber string      `json:"invoice_number"`
	InvoiceDate   string      `json:"invoice_date"`
	Total         looseAmount `json:"total"`
	Currency      string      `json:"currency"`
	ProviderName  string      `json:"provider_name"`
	Category      string      `json:"category"`
	HorseName     string      `json:"horse_name"`
	Items         []struct {
		Description       string      `json:"description"`
		Amount            looseAmount `json:"amount"`
		SuggestedCategory string      `json:"suggested_category"`
		HorseName         string      `json:"horse_name"`
	} `json:"items"`
}

type looseAmount string

func (a *looseAmount) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*a = ""
	case strings.HasPrefix(trimmed, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = looseAmount(strings.TrimSpace(s))
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("amount %s is neither string nor number", trimmed)
		}
		*a = looseAmount(n.String())
	}
	return nil
}

func parseExtraction(raw string) (domain.ExtractedInvoice, error) {
	var parsed modelInvoice
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &parsed); err != nil {
		return domain.ExtractedInvoice{}, domain.WrapError(domain.ErrValidation, "parse invoice extraction", err)
	}
	out := domain.ExtractedInvoice{
		InvoiceNumber: parsed.InvoiceNumber,
		InvoiceDate:   parsed.InvoiceDate,
		Total:         string(parsed.Total),
		Currency:      parsed.Currency,
		ProviderName:  parsed.ProviderName,
		Category:      parsed.Category,
		HorseName:     parsed.HorseName,
		Items:         make([]domain.ExtractedItem, 0, len(parsed.Items)),
	}
	for _, item := range parsed.Items {
		out.Items = append(out.Items, domain.ExtractedItem{
			Description:       item.Description,
			Amount:            string(item.Amount),
			SuggestedCategory: item.SuggestedCategory,
			HorseName:         item.HorseName,
		})
	}
	return out, nil
}

func (c *Client) generateJSON(ctx context.Context, prompt string) (string, error) {
	var resp generateResponse
	err := c.call(ctx, generateEndpoint, generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Format: "json",
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.Error != "" {
		return "", fmt.Errorf("ollama %s: %s", generateEndpoint, resp.Error)
	}
	return strings.TrimSpace(resp.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
