package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/chatrelay/chatrelay/internal/errors"
	"github.com/chatrelay/chatrelay/internal/relay/engine"
	"github.com/chatrelay/chatrelay/internal/relay/imagequeue"
	"github.com/chatrelay/chatrelay/internal/relay/paginate"
	"github.com/chatrelay/chatrelay/internal/relay/ratelimit"
)

// VIPStore persists VIP roster changes alongside the in-memory limiter.
type VIPStore interface {
	AddVIP(ctx context.Context, userID int64) error
	RemoveVIP(ctx context.Context, userID int64) error
}

// HistoryStore drops persisted conversation context when a chat is forgotten.
type HistoryStore interface {
	ClearChat(ctx context.Context, chatID int64) error
}

// Relay exposes the conversational relay over HTTP.
type Relay struct {
	Engine  *engine.Engine
	Limiter *ratelimit.Limiter
	VIPs    VIPStore     // optional; nil disables persistence
	History HistoryStore // optional; nil skips context cleanup
}

// TextRequest is the body for text submissions.
type TextRequest struct {
	UserID    int64  `json:"user_id"`
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
}

// ImageRequest is the body for image submissions. Payload carries the
// raw image bytes base64-encoded.
type ImageRequest struct {
	UserID    int64  `json:"user_id"`
	ChatID    int64  `json:"chat_id"`
	MessageID int64  `json:"message_id"`
	FileID    string `json:"file_id"`
	Caption   string `json:"caption"`
	Payload   string `json:"payload"`
}

// ReplyResponse carries the first page of a formatted reply.
type ReplyResponse struct {
	Reply     string `json:"reply"`
	PageIndex int    `json:"page_index"`
	PageCount int    `json:"page_count"`
}

// PageResponse carries a single page after cursor navigation.
type PageResponse struct {
	Page      string `json:"page"`
	PageIndex int    `json:"page_index"`
	PageCount int    `json:"page_count"`
}

// SubmitText handles POST /v1/messages/text.
func (h *Relay) SubmitText(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("request body must be valid JSON"))
		return
	}
	if req.UserID == 0 || req.ChatID == 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("user_id and chat_id are required"))
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		respondWithError(w, r, apperrors.NewInvalidInputError("text is required"))
		return
	}

	reply, err := h.Engine.SubmitText(r.Context(), req.UserID, req.ChatID, req.Text)
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	h.respondPaged(w, req.ChatID, req.MessageID, reply)
}

// SubmitImage handles POST /v1/messages/image.
func (h *Relay) SubmitImage(w http.ResponseWriter, r *http.Request) {
	var req ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("request body must be valid JSON"))
		return
	}
	if req.UserID == 0 || req.ChatID == 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("user_id and chat_id are required"))
		return
	}

	payload, err := base64.StdEncoding.DecodeString(req.Payload)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("payload must be base64-encoded image bytes"))
		return
	}

	reply, err := h.Engine.SubmitImage(r.Context(), imagequeue.Job{
		UserID:      req.UserID,
		ChatID:      req.ChatID,
		MessageID:   req.MessageID,
		FileID:      req.FileID,
		Caption:     req.Caption,
		Payload:     payload,
		SubmittedAt: time.Now(),
	})
	if err != nil {
		respondWithError(w, r, err)
		return
	}

	h.respondPaged(w, req.ChatID, req.MessageID, reply)
}

func (h *Relay) respondPaged(w http.ResponseWriter, chatID, messageID int64, reply string) {
	pages := h.Engine.PreparePages(chatID, messageID, reply)

	writeJSON(w, http.StatusOK, ReplyResponse{
		Reply:     pages[0],
		PageIndex: 0,
		PageCount: len(pages),
	})
}

// Navigate handles POST /v1/messages/{chatID}/{messageID}/page.
func (h *Relay) Navigate(w http.ResponseWriter, r *http.Request) {
	chatID, messageID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	var req struct {
		Direction string `json:"direction"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("request body must be valid JSON"))
		return
	}

	var dir paginate.Direction
	switch req.Direction {
	case "next":
		dir = paginate.Next
	case "previous":
		dir = paginate.Previous
	default:
		respondWithError(w, r, apperrors.NewInvalidInputError(`direction must be "next" or "previous"`))
		return
	}

	page, index, total, err := h.Engine.Navigate(chatID, messageID, dir)
	if err != nil {
		if errors.Is(err, paginate.ErrNoFurtherPages) {
			respondWithError(w, r, apperrors.NewConflictError("no further pages in that direction"))
			return
		}
		respondWithError(w, r, apperrors.NewNotFoundError("no pagination state for this message"))
		return
	}

	writeJSON(w, http.StatusOK, PageResponse{Page: page, PageIndex: index, PageCount: total})
}

// ForgetMessage handles DELETE /v1/messages/{chatID}/{messageID}.
func (h *Relay) ForgetMessage(w http.ResponseWriter, r *http.Request) {
	chatID, messageID, ok := pathIDs(w, r)
	if !ok {
		return
	}

	h.Engine.ForgetMessage(chatID, messageID)
	w.WriteHeader(http.StatusNoContent)
}

// ForgetChat handles DELETE /v1/chats/{chatID}.
func (h *Relay) ForgetChat(w http.ResponseWriter, r *http.Request) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("chat id must be numeric"))
		return
	}

	dropped := h.Engine.ForgetChat(chatID)
	if h.History != nil {
		if err := h.History.ClearChat(r.Context(), chatID); err != nil {
			respondWithError(w, r, apperrors.WrapDatabase(r.Context(), err, "clear chat history"))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]int{"dropped": dropped})
}

// Stats handles GET /admin/stats.
func (h *Relay) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Engine.Stats())
}

// RateLimits handles GET /admin/rate-limits.
func (h *Relay) RateLimits(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Limiter.Snapshot())
}

// ResetRateLimits handles POST /admin/rate-limits/reset.
// A zero user_id resets every window; an empty kind resets all kinds
// for the user.
func (h *Relay) ResetRateLimits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64  `json:"user_id"`
		Kind   string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("request body must be valid JSON"))
		return
	}

	var cleared int
	if req.UserID == 0 {
		cleared = h.Limiter.ResetAll()
	} else {
		cleared = h.Limiter.Reset(req.UserID, ratelimit.ActionKind(req.Kind))
	}

	writeJSON(w, http.StatusOK, map[string]int{"cleared": cleared})
}

// ListVIPs handles GET /admin/vips.
func (h *Relay) ListVIPs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]int64{"vips": h.Limiter.VIPs()})
}

// AddVIP handles POST /admin/vips.
func (h *Relay) AddVIP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64 `json:"user_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == 0 {
		respondWithError(w, r, apperrors.NewInvalidInputError("user_id is required"))
		return
	}

	h.Limiter.AddVIP(req.UserID)
	if h.VIPs != nil {
		if err := h.VIPs.AddVIP(r.Context(), req.UserID); err != nil {
			respondWithError(w, r, apperrors.NewDatabaseError("failed to persist VIP"))
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveVIP handles DELETE /admin/vips/{userID}.
func (h *Relay) RemoveVIP(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("user id must be numeric"))
		return
	}

	h.Limiter.RemoveVIP(userID)
	if h.VIPs != nil {
		if err := h.VIPs.RemoveVIP(r.Context(), userID); err != nil {
			respondWithError(w, r, apperrors.NewDatabaseError("failed to persist VIP removal"))
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

// SweepJobs handles POST /admin/jobs/sweep. It evicts stale image job
// bookkeeping and expired rate-limit windows.
func (h *Relay) SweepJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"stale_jobs":      h.Engine.Queue().SweepStale(),
		"expired_windows": h.Limiter.Sweep(),
	})
}

func pathIDs(w http.ResponseWriter, r *http.Request) (chatID, messageID int64, ok bool) {
	chatID, err := strconv.ParseInt(chi.URLParam(r, "chatID"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("chat id must be numeric"))
		return 0, 0, false
	}
	messageID, err = strconv.ParseInt(chi.URLParam(r, "messageID"), 10, 64)
	if err != nil {
		respondWithError(w, r, apperrors.NewInvalidInputError("message id must be numeric"))
		return 0, 0, false
	}
	return chatID, messageID, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
