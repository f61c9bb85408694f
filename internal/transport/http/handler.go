package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"daily-challenge-service/internal/app"
	"daily-challenge-service/internal/domain"
	"daily-challenge-service/internal/metrics"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// UserHeader carries the authenticated user ID, set by the gateway in front of the service.
const UserHeader = "X-User-ID"

// Handler serves the REST surface of the challenge engine.
type Handler struct {
	service *app.ChallengeService
	log     *zap.Logger
	metrics *metrics.Metrics
}

func NewHandler(service *app.ChallengeService, log *zap.Logger, m *metrics.Metrics) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{service: service, log: log, metrics: m}
}

// Register mounts the REST routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	h.handle(mux, "GET /api/daily-challenges", h.listChallenges)
	h.handle(mux, "POST /api/daily-challenges/{challengeId}/start", h.start)
	h.handle(mux, "GET /api/daily-challenges/{challengeId}/status", h.status)
	h.handle(mux, "GET /api/daily-challenges/{challengeId}/question", h.nextQuestion)
	h.handle(mux, "POST /api/daily-challenges/{challengeId}/answer", h.submitAnswer)
	h.handle(mux, "POST /api/daily-challenges/{challengeId}/forfeit", h.forfeit)
	h.handle(mux, "GET /api/daily-rankings", h.dailyRanking)
	h.handle(mux, "GET /api/balance", h.balance)
}

type balanceResponse struct {
	UserID  string          `json:"userId"`
	Balance decimal.Decimal `json:"balance"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (h *Handler) listChallenges(w http.ResponseWriter, r *http.Request) {
	challenges, err := h.service.ListActive(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Start(r.Context(), r.PathValue("challengeId"), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Status(r.Context(), r.PathValue("challengeId"), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) nextQuestion(w http.ResponseWriter, r *http.Request) {
	next, err := h.service.NextQuestion(r.Context(), r.PathValue("challengeId"), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, next)
}

func (h *Handler) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var answer domain.Answer
	if err := decodeBody(r, &answer); err != nil {
		h.writeError(w, err)
		return
	}
	result, err := h.service.SubmitAnswer(r.Context(), r.PathValue("challengeId"), userID(r), answer)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) forfeit(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Forfeit(r.Context(), r.PathValue("challengeId"), userID(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) dailyRanking(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorPayload{Code: domain.KindInvalidArgument.String(), Message: "limit must be an integer"})
			return
		}
		limit = n
	}
	ranking, err := h.service.DailyRanking(r.Context(), r.URL.Query().Get("date"), limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ranking)
}

func (h *Handler) balance(w http.ResponseWriter, r *http.Request) {
	user := userID(r)
	amount, err := h.service.Balance(r.Context(), user)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balanceResponse{UserID: user, Balance: amount})
}

// handle wraps fn with request metrics labelled by pattern.
func (h *Handler) handle(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(rec, r)
		h.metrics.ObserveRequest(pattern, rec.status, time.Since(started))
	})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	status := StatusFor(kind)
	message := err.Error()
	if kind == domain.KindInternal {
		h.log.Error("request failed", zap.Error(err))
		message = "internal error"
	}
	writeJSON(w, status, errorPayload{Code: kind.String(), Message: message})
}

// StatusFor maps an error kind to an HTTP status.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindUnauthorized:
		return http.StatusUnauthorized
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidState, domain.KindInvalidArgument:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.ErrInvalidAnswer
		}
		return errors.Join(domain.ErrInvalidAnswer, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
