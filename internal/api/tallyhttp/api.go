// Package tallyhttp — JSON API поверх сервисов инспекций, машин, выгрузок и обращений.
package tallyhttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/TruckTally/internal/models"
	"github.com/BearBump/TruckTally/internal/services/feedback"
	"github.com/BearBump/TruckTally/internal/services/inspections"
	"github.com/BearBump/TruckTally/internal/services/reports"
	"github.com/BearBump/TruckTally/internal/services/trucks"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

type API struct {
	trucks      *trucks.Service
	inspections *inspections.Service
	reports     *reports.Service
	feedback    *feedback.Service
}

func New(t *trucks.Service, i *inspections.Service, r *reports.Service, f *feedback.Service) *API {
	return &API{trucks: t, inspections: i, reports: r, feedback: f}
}

// Routes монтирует /api/v1. Все маршруты требуют заголовок X-User-Id.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(requireActor)

		r.Route("/inspections", func(r chi.Router) {
			r.Post("/", a.createInspection)
			r.Get("/", a.listInspections)
			r.Route("/{inspectionID}", func(r chi.Router) {
				r.Get("/", a.getInspection)
				r.Put("/", a.updateInspection)
				r.Delete("/", a.deleteInspection)

				r.Post("/trucks", a.createRecord)
				r.Get("/trucks", a.listRecords)
				r.Delete("/trucks/{recordID}", a.deleteRecord)
				r.Get("/board", a.statusBoard)
				r.Get("/plate-hints", a.plateHints)
				r.Get("/events", a.history)
				r.Get("/export.xlsx", a.exportExcel)
				r.Get("/export.pdf", a.exportPDF)
			})
		})

		r.Route("/trucks/{recordID}", func(r chi.Router) {
			r.Put("/", a.editRecord)
			r.Post("/cargo-ops/start", a.startCargoOps)
			r.Post("/cargo-ops/complete", a.completeCargoOps)
		})

		r.Route("/feedback", func(r chi.Router) {
			r.Post("/", a.createFeedback)
			r.Get("/", a.listFeedback)
			r.Get("/{ticketID}", a.getFeedback)
			r.Put("/{ticketID}/note", a.saveFeedbackNote)
		})
	})
}

// Handler — готовый роутер с /healthz, удобно для тестов и cmd.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	a.Routes(r)
	return r
}

type actorKey struct{}

// requireActor берёт пользователя из заголовков, которые ставит gateway.
func requireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if id == "" {
			writeJSON(w, http.StatusUnauthorized, errorDTO{Error: "missing " + HeaderUserID + " header"})
			return
		}
		role := models.RoleUser
		if strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderUserRole)), models.RoleAdmin) {
			role = models.RoleAdmin
		}
		ctx := contextWithActor(r.Context(), models.Actor{UserID: id, Role: role})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type errorDTO struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrPreconditionFailed):
		return http.StatusConflict
	case errors.Is(err, models.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err.Error())
		writeJSON(w, status, errorDTO{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorDTO{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(models.ErrValidation, "invalid json body: "+err.Error())
	}
	return nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	v, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || v == 0 {
		return 0, models.Validationf("invalid %s", name)
	}
	return v, nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, models.Validationf("invalid %s", name)
	}
	return v, nil
}

func queryBool(r *http.Request, name string) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get(name))
	return v
}

var localLayouts = []string{"2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02 15:04", "2006-01-02"}

// parseLocal читает время без пояса: это "настенное" время инспекции.
func parseLocal(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range localLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, models.Validationf("invalid local time %q, expected YYYY-MM-DDTHH:MM", s)
}

func queryLocal(r *http.Request, name string) (*time.Time, error) {
	return parseLocal(r.URL.Query().Get(name))
}
