package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"pandit-quiz-service/internal/app"
	"pandit-quiz-service/internal/domain"
	"pandit-quiz-service/internal/title"
)

// RESTHandler serves profiles, history, leaderboard and the static catalogues.
type RESTHandler struct {
	service *app.QuizService
	log     logrus.FieldLogger
}

func NewRESTHandler(service *app.QuizService, log logrus.FieldLogger) *RESTHandler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &RESTHandler{service: service, log: log}
}

// NewRouter mounts the REST routes and the websocket endpoint.
func NewRouter(rest *RESTHandler, ws *WSHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", rest.Health).Methods(http.MethodGet)
	r.HandleFunc("/categories", rest.Categories).Methods(http.MethodGet)
	r.HandleFunc("/titles", rest.Titles).Methods(http.MethodGet)
	r.HandleFunc("/leaderboard", rest.Leaderboard).Methods(http.MethodGet)

	users := r.PathPrefix("/users/{uid}").Subrouter()
	users.HandleFunc("/profile", rest.EnsureProfile).Methods(http.MethodPost)
	users.HandleFunc("/profile", rest.Profile).Methods(http.MethodGet)
	users.HandleFunc("/nickname", rest.UpdateNickname).Methods(http.MethodPut)
	users.HandleFunc("/history", rest.History).Methods(http.MethodGet)
	users.HandleFunc("/title", rest.Title).Methods(http.MethodGet)

	if ws != nil {
		r.HandleFunc("/ws", ws.ServeWS)
	}
	return r
}

func (h *RESTHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (h *RESTHandler) Categories(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, domain.Categories())
}

func (h *RESTHandler) Titles(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, title.Tiers())
}

type profileRequest struct {
	Provider    domain.Provider `json:"provider"`
	Nickname    string          `json:"nickname"`
	Email       string          `json:"email"`
	IsAnonymous bool            `json:"isAnonymous"`
}

func (h *RESTHandler) EnsureProfile(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	var req profileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	profile, err := h.service.EnsureProfile(r.Context(), domain.User{UID: uid, IsAnonymous: req.IsAnonymous}, req.Provider, req.Nickname, req.Email)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *RESTHandler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.service.Profile(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (h *RESTHandler) UpdateNickname(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Nickname string `json:"nickname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := h.service.UpdateNickname(r.Context(), mux.Vars(r)["uid"], req.Nickname); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *RESTHandler) History(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	history, err := h.service.History(r.Context(), mux.Vars(r)["uid"], limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if history == nil {
		history = []domain.QuizResult{}
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *RESTHandler) Title(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.TitleProgress(r.Context(), mux.Vars(r)["uid"])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *RESTHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit, ok := limitParam(w, r)
	if !ok {
		return
	}
	entries, err := h.service.Leaderboard(r.Context(), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (h *RESTHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrProfileNotFound), errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrInvalidNickname), errors.Is(err, domain.ErrMissingUserID),
		errors.Is(err, domain.ErrUnknownCategory):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorPayload{Message: msg})
}
