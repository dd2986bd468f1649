package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"quiz-attempt-service/internal/app"
	"quiz-attempt-service/internal/domain"
)

// Identity resolves the authenticated caller. Authentication itself is an
// external collaborator; the service only consumes its verdict.
type Identity interface {
	CurrentUser(r *http.Request) (domain.User, error)
}

// HeaderIdentity trusts identity headers set by an upstream auth gateway.
type HeaderIdentity struct{}

func (HeaderIdentity) CurrentUser(r *http.Request) (domain.User, error) {
	id := r.Header.Get("X-User-Id")
	if id == "" {
		return domain.User{}, errors.New("missing identity")
	}
	role := r.Header.Get("X-User-Role")
	if role == "" {
		role = "student"
	}
	return domain.User{ID: id, Role: role}, nil
}

// Handler exposes the attempt lifecycle over REST plus a websocket
// leaderboard stream.
type Handler struct {
	service  *app.AttemptService
	identity Identity
}

func NewHandler(service *app.AttemptService, identity Identity) *Handler {
	return &Handler{service: service, identity: identity}
}

// Router wires all routes, CORS included: the attempt timer runs in a
// browser, so the API must be callable cross-origin.
func (h *Handler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "X-User-Id", "X-User-Role"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/quizzes/{quizID}/preview", h.preview)
	r.Post("/quizzes/{quizID}/attempts", h.start)
	r.Get("/quizzes/{quizID}/leaderboard", h.leaderboard)
	r.Get("/quizzes/{quizID}/leaderboard/ws", h.leaderboardWS)
	r.Put("/attempts/{attemptID}/answers", h.saveAnswer)
	r.Post("/attempts/{attemptID}/submit", h.submit)
	r.Get("/attempts/{attemptID}/result", h.result)
	return r
}

func (h *Handler) preview(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	preview, err := h.service.Preview(r.Context(), user, chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	started, err := h.service.Start(r.Context(), user, chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, started)
}

type saveAnswerRequest struct {
	QuestionID string `json:"questionId"`
	OptionID   string `json:"optionId"`
}

func (h *Handler) saveAnswer(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req saveAnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QuestionID == "" || req.OptionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "questionId and optionId are required"})
		return
	}
	if err := h.service.SaveAnswer(r.Context(), user, chi.URLParam(r, "attemptID"), req.QuestionID, req.OptionID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type submitRequest struct {
	Auto bool `json:"auto"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	var req submitRequest
	// An empty body is a plain manual submit.
	_ = json.NewDecoder(r.Body).Decode(&req)

	result, err := h.service.Submit(r.Context(), user, chi.URLParam(r, "attemptID"), req.Auto)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Result{"result": result})
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	user, ok := h.user(w, r)
	if !ok {
		return
	}
	result, err := h.service.Result(r.Context(), user, chi.URLParam(r, "attemptID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Result{"result": result})
}

func (h *Handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	lb, err := h.service.Leaderboard(r.Context(), chi.URLParam(r, "quizID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}

func (h *Handler) user(w http.ResponseWriter, r *http.Request) (domain.User, bool) {
	user, err := h.identity.CurrentUser(r)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "unauthenticated"})
		return domain.User{}, false
	}
	return user, true
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the domain taxonomy onto HTTP statuses. Authoring-data bugs
// are the one class that surfaces as a 500.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrAttemptNotFound),
		errors.Is(err, domain.ErrResultNotFound),
		errors.Is(err, domain.ErrQuestionNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrNotEnrolled):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrAttemptLimitExceeded), errors.Is(err, domain.ErrAttemptClosed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrAttemptExpired):
		status = http.StatusGone
	case errors.Is(err, domain.ErrInvalidAnswer):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Printf("internal error: %v", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("write response: %v", err)
	}
}
