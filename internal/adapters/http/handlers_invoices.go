package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

func (rt *Router) listInvoices(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	invoices, err := rt.svc.Invoices.ListInvoices(r.Context(), domain.InvoiceFilter{
		State:      domain.ApprovalState(query.Get("state")),
		CategoryID: query.Get("category"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoices": invoices})
}

func (rt *Router) getInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := rt.svc.Invoices.GetInvoice(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (rt *Router) listUnmatched(w http.ResponseWriter, r *http.Request) {
	candidates, err := rt.svc.Matcher.Candidates(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unmatched": candidates})
}

func (rt *Router) resolveUnmatched(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RawName string `json:"raw_name"`
		HorseID string `json:"horse_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireField("resolve unmatched name", "raw_name", req.RawName); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := rt.svc.Matcher.ResolveToExisting(r.Context(), r.PathValue("id"), req.RawName, req.HorseID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (rt *Router) resolveByCreating(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RawName string `json:"raw_name"`
		Name    string `json:"name"`
		Owner   string `json:"owner"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := requireField("resolve by creating", "raw_name", req.RawName); err != nil {
		writeError(w, r, err)
		return
	}
	inv, horse, err := rt.svc.Matcher.ResolveByCreating(r.Context(), r.PathValue("id"), req.RawName, req.Name, req.Owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invoice": inv, "horse": horse})
}

func (rt *Router) reapplySuggestions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Suggestions map[string]string `json:"suggestions"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := rt.svc.Intake.ReapplySuggestions(r.Context(), r.PathValue("id"), req.Suggestions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// confirmItem needs the category key to be present. An explicit null records a
// keep decision, so a missing key is rejected rather than read as null.
func (rt *Router) confirmItem(w http.ResponseWriter, r *http.Request) {
	const op = "confirm line item category"
	var req map[string]json.RawMessage
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	raw, ok := req["category"]
	if !ok {
		writeError(w, r, domain.NewError(domain.ErrValidation, op, "category is required; send null to keep the current category"))
		return
	}
	var category *string
	if err := json.Unmarshal(raw, &category); err != nil {
		writeError(w, r, domain.WrapError(domain.ErrValidation, op, err))
		return
	}
	inv, err := rt.svc.Reclassifier.Confirm(r.Context(), r.PathValue("id"), r.PathValue("item_id"), category)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (rt *Router) assignAttribution(w http.ResponseWriter, r *http.Request) {
	const op = "assign attribution"
	var req struct {
		HorseID string         `json:"horse_id"`
		Shares  []domain.Share `json:"shares"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	invoiceID, itemID := r.PathValue("id"), r.PathValue("item_id")
	var (
		inv *domain.Invoice
		err error
	)
	switch {
	case req.HorseID != "" && len(req.Shares) > 0:
		err = domain.NewError(domain.ErrValidation, op, "send either horse_id or shares, not both")
	case len(req.Shares) > 0:
		inv, err = rt.svc.Matcher.AssignSplit(r.Context(), invoiceID, itemID, req.Shares)
	case req.HorseID != "":
		inv, err = rt.svc.Matcher.AssignEntity(r.Context(), invoiceID, itemID, req.HorseID)
	default:
		err = domain.NewError(domain.ErrValidation, op, "horse_id or shares is required")
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

func (rt *Router) summarizeInvoice(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.svc.Reclassifier.Summarize(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) approveInvoice(w http.ResponseWriter, r *http.Request) {
	result, err := rt.svc.Approvals.Approve(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) rejectInvoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	inv, err := rt.svc.Approvals.Reject(r.Context(), r.PathValue("id"), req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}
