package httpadapter

import (
	"net/http"
	"time"

	"github.com/kirillkom/stablebooks/internal/core/domain"
)

const effectiveDateLayout = "2006-01-02"

func (rt *Router) listHorses(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	var (
		horses []domain.Horse
		err    error
	)
	if name := query.Get("name"); name != "" {
		horses, err = rt.svc.Roster.FindByName(r.Context(), name)
	} else {
		horses, err = rt.svc.Roster.List(r.Context(), domain.HorseFilter{Status: domain.HorseStatus(query.Get("status"))})
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"horses": horses})
}

func (rt *Router) getHorse(w http.ResponseWriter, r *http.Request) {
	horse, err := rt.svc.Roster.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, horse)
}

func (rt *Router) registerHorse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name  string `json:"name"`
		Owner string `json:"owner"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	horse, err := rt.svc.Roster.Register(r.Context(), req.Name, req.Owner)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, horse)
}

func (rt *Router) retireHorse(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EffectiveDate string `json:"effective_date"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var effective time.Time
	if req.EffectiveDate != "" {
		parsed, err := time.Parse(effectiveDateLayout, req.EffectiveDate)
		if err != nil {
			writeError(w, r, domain.NewError(domain.ErrValidation, "retire horse", "effective_date %q is not YYYY-MM-DD", req.EffectiveDate))
			return
		}
		effective = parsed
	}
	horse, err := rt.svc.Roster.Retire(r.Context(), r.PathValue("id"), effective)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, horse)
}

func (rt *Router) reactivateHorse(w http.ResponseWriter, r *http.Request) {
	horse, err := rt.svc.Roster.Reactivate(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, horse)
}

func (rt *Router) importRoster(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes())
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.NewError(domain.ErrValidation, "import roster", "multipart field 'file' is required"))
		return
	}
	defer file.Close()

	result, err := rt.svc.Roster.ImportSpreadsheet(r.Context(), file)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
