// Package engine composes the admission pipeline: rate check, single
// flight acquisition, upstream call (queued for images), and answer
// formatting. The transport layer renders what the engine returns and
// owns delivery.
package engine

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/chatrelay/chatrelay/internal/relay/content"
	"github.com/chatrelay/chatrelay/internal/relay/imagecheck"
	"github.com/chatrelay/chatrelay/internal/relay/imagequeue"
	"github.com/chatrelay/chatrelay/internal/relay/paginate"
	"github.com/chatrelay/chatrelay/internal/relay/ratelimit"
	"github.com/chatrelay/chatrelay/internal/relay/upstream"
)

// RateChecker admits or rejects an action for a user.
type RateChecker interface {
	Check(userID int64, kind ratelimit.ActionKind) ratelimit.Verdict
}

// SingleFlightGate is the per-user heavy-request gate.
type SingleFlightGate interface {
	TryAcquire(userID int64) bool
	Release(userID int64)
	IsActive(userID int64) bool
	ActiveCount() int
}

// UpstreamCaller performs a completion call with retry and queueing
// already applied.
type UpstreamCaller interface {
	Complete(ctx context.Context, req *upstream.Request) (string, error)
}

// HistoryStore persists trimmed per-chat conversation context.
// Appends are best effort; a failing store must not fail the request.
type HistoryStore interface {
	Recent(ctx context.Context, chatID int64, limit int) ([]content.Message, error)
	Append(ctx context.Context, chatID int64, messages ...content.Message) error
}

// Config carries model routing and pipeline settings.
type Config struct {
	Model         string
	ImageModel    string
	Temperature   float64
	MaxTokens     int
	SystemPrompt  string
	HistoryLimit  int
	MaxImageBytes int
	PageLength    int
	PageCacheSize int
	AdminIDs      []int64
	Queue         imagequeue.Config
}

// Engine is the admission and processing core.
type Engine struct {
	cfg      Config
	rates    RateChecker
	gate     SingleFlightGate
	upstream UpstreamCaller
	history  HistoryStore
	logger   *zap.Logger

	queue  *imagequeue.Queue
	pager  *paginate.Paginator
	states *paginate.StateStore
	admins map[int64]struct{}

	mu           sync.Mutex
	processed    int64
	succeeded    int64
	totalLatency time.Duration
}

// New wires an engine. history may be nil. The caller should register
// the queue's activity probe on the gate so image jobs count as busy:
//
//	gate.RegisterProbe(eng.Queue().HasActiveJob)
func New(cfg Config, rates RateChecker, gate SingleFlightGate, caller UpstreamCaller, history HistoryStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		cfg:      cfg,
		rates:    rates,
		gate:     gate,
		upstream: caller,
		history:  history,
		logger:   logger,
		pager:    paginate.New(cfg.PageLength, cfg.PageCacheSize),
		states:   paginate.NewStateStore(),
		admins:   make(map[int64]struct{}, len(cfg.AdminIDs)),
	}
	for _, id := range cfg.AdminIDs {
		e.admins[id] = struct{}{}
	}
	e.queue = imagequeue.New(e.processImage, cfg.Queue, logger)
	return e
}

// Queue exposes the image pipeline for probe wiring and admin ops.
func (e *Engine) Queue() *imagequeue.Queue {
	return e.queue
}

// IsAdmin reports whether a user is on the static admin allowlist.
func (e *Engine) IsAdmin(userID int64) bool {
	_, ok := e.admins[userID]
	return ok
}

// SubmitText runs the text path: rate check, single-flight acquire,
// upstream call, release. It returns formatted answer text or a typed
// *Error the transport renders.
func (e *Engine) SubmitText(ctx context.Context, userID, chatID int64, text string) (string, error) {
	start := time.Now()

	if err := e.admit(userID, ratelimit.ActionText); err != nil {
		return "", err
	}
	defer e.gate.Release(userID)

	messages, userTurn := e.conversation(ctx, chatID, text)
	answer, err := e.upstream.Complete(ctx, e.request(messages))
	e.record(start, err == nil)
	if err != nil {
		e.logger.Warn("text completion failed",
			zap.Int64("user_id", userID),
			zap.Error(err))
		return "", classify(err)
	}

	clean := e.pager.Format(answer)
	e.remember(ctx, chatID, userTurn, clean)
	return clean, nil
}

// SubmitImage runs the image path: rate check, single-flight acquire,
// payload validation, queued analysis, release.
func (e *Engine) SubmitImage(ctx context.Context, job imagequeue.Job) (string, error) {
	start := time.Now()

	if err := e.admit(job.UserID, ratelimit.ActionImage); err != nil {
		return "", err
	}
	defer e.gate.Release(job.UserID)

	if _, err := imagecheck.Validate(job.Payload, e.cfg.MaxImageBytes); err != nil {
		e.record(start, false)
		return "", &Error{Kind: KindUnknown, UserMessage: "That image cannot be processed. Send a JPEG, PNG, GIF, or WebP under the size limit.", Err: err}
	}

	resCh, err := e.queue.Submit(job)
	if err != nil {
		e.record(start, false)
		return "", classify(err)
	}

	select {
	case res := <-resCh:
		e.record(start, res.Err == nil)
		if res.Err != nil {
			e.logger.Warn("image job failed",
				zap.Int64("user_id", job.UserID),
				zap.Int("attempts", res.Attempts),
				zap.Duration("elapsed", res.Elapsed),
				zap.Error(res.Err))
			return "", classify(res.Err)
		}
		return e.pager.Format(res.Text), nil
	case <-ctx.Done():
		// The job keeps running; its late result is discarded.
		e.record(start, false)
		return "", classify(ctx.Err())
	}
}

// PreparePages formats nothing further: it splits an already-clean
// answer into pages and registers the pagination cursor when more than
// one page results.
func (e *Engine) PreparePages(chatID, messageID int64, clean string) []string {
	pages := e.pager.Paginate(clean)
	e.states.Put(chatID, messageID, pages)
	return pages
}

// Navigate moves a message's pagination cursor.
func (e *Engine) Navigate(chatID, messageID int64, dir paginate.Direction) (string, int, int, error) {
	return e.states.Navigate(chatID, messageID, dir)
}

// ForgetMessage drops pagination state for a replaced message.
func (e *Engine) ForgetMessage(chatID, messageID int64) {
	e.states.Delete(chatID, messageID)
}

// ForgetChat drops all pagination state for a chat.
func (e *Engine) ForgetChat(chatID int64) int {
	return e.states.ClearChat(chatID)
}

// Stats aggregates observability counters across the engine.
type Stats struct {
	ActiveRequests int              `json:"active_requests"`
	Processed      int64            `json:"processed"`
	SuccessRate    float64          `json:"success_rate"`
	AverageLatency time.Duration    `json:"average_latency"`
	ImageQueue     imagequeue.Stats `json:"image_queue"`
}

// Stats snapshots the engine's counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	processed := e.processed
	succeeded := e.succeeded
	total := e.totalLatency
	e.mu.Unlock()

	s := Stats{
		ActiveRequests: e.gate.ActiveCount(),
		Processed:      processed,
		ImageQueue:     e.queue.Stats(),
	}
	if processed > 0 {
		s.SuccessRate = float64(succeeded) / float64(processed)
		s.AverageLatency = total / time.Duration(processed)
	}
	return s
}

// Close shuts the image pipeline down.
func (e *Engine) Close() {
	e.queue.Close()
}

// admit performs the rate check and the single-flight test-and-set.
// The gate flag is set before any suspension point so there is no
// window between check and set.
func (e *Engine) admit(userID int64, kind ratelimit.ActionKind) error {
	verdict := e.rates.Check(userID, kind)
	if !verdict.Allowed {
		return &Error{
			Kind:         KindRateLimited,
			UserMessage:  rateLimitedMessage(verdictInfo{ResetAt: verdict.ResetAt, BlockedUntil: verdict.BlockedUntil}),
			ResetAt:      verdict.ResetAt,
			BlockedUntil: verdict.BlockedUntil,
		}
	}
	if !e.gate.TryAcquire(userID) {
		return &Error{Kind: KindAlreadyBusy, UserMessage: msgAlreadyBusy}
	}
	return nil
}

// conversation assembles system prompt, recent history, and the new
// user turn.
func (e *Engine) conversation(ctx context.Context, chatID int64, text string) ([]content.Message, content.Message) {
	userTurn := content.Text(content.RoleUser, text)

	messages := make([]content.Message, 0, e.cfg.HistoryLimit+2)
	if e.cfg.SystemPrompt != "" {
		messages = append(messages, content.Text(content.RoleSystem, e.cfg.SystemPrompt))
	}
	if e.history != nil && e.cfg.HistoryLimit > 0 {
		recent, err := e.history.Recent(ctx, chatID, e.cfg.HistoryLimit)
		if err != nil {
			e.logger.Warn("history load failed", zap.Int64("chat_id", chatID), zap.Error(err))
		} else {
			messages = append(messages, recent...)
		}
	}
	return append(messages, userTurn), userTurn
}

// processImage is the queue's per-attempt worker body.
func (e *Engine) processImage(ctx context.Context, job imagequeue.Job) (string, error) {
	mime, err := imagecheck.Validate(job.Payload, e.cfg.MaxImageBytes)
	if err != nil {
		return "", err
	}

	messages := make([]content.Message, 0, 2)
	if e.cfg.SystemPrompt != "" {
		messages = append(messages, content.Text(content.RoleSystem, e.cfg.SystemPrompt))
	}
	messages = append(messages, content.ImageWithCaption(imagecheck.DataURL(mime, job.Payload), job.Caption))

	req := e.request(messages)
	if e.cfg.ImageModel != "" {
		req.Model = e.cfg.ImageModel
	}
	return e.upstream.Complete(ctx, req)
}

func (e *Engine) request(messages []content.Message) *upstream.Request {
	req := &upstream.Request{Model: e.cfg.Model, Messages: messages}
	if e.cfg.Temperature > 0 {
		temp := e.cfg.Temperature
		req.Temperature = &temp
	}
	if e.cfg.MaxTokens > 0 {
		tokens := e.cfg.MaxTokens
		req.MaxTokens = &tokens
	}
	return req
}

// remember appends the exchange to history, best effort.
func (e *Engine) remember(ctx context.Context, chatID int64, userTurn content.Message, answer string) {
	if e.history == nil {
		return
	}
	err := e.history.Append(ctx, chatID, userTurn, content.Text(content.RoleAssistant, answer))
	if err != nil {
		e.logger.Warn("history append failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (e *Engine) record(start time.Time, success bool) {
	e.mu.Lock()
	e.processed++
	if success {
		e.succeeded++
	}
	e.totalLatency += time.Since(start)
	e.mu.Unlock()
}
