package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/LeventeLantos/turn-relay/internal/model"
	"github.com/LeventeLantos/turn-relay/internal/repo"
	"github.com/LeventeLantos/turn-relay/internal/scheduler"
	"github.com/LeventeLantos/turn-relay/internal/service"
)

type SchedulerControl interface {
	Start() bool
	Stop() bool
	IsRunning() bool
	Stats() scheduler.Stats
}

type TurnAdmin interface {
	ListTurns(ctx context.Context, status model.Status, limit, offset int) ([]model.MailboxRow, error)
	Resubmit(ctx context.Context, id int64) (model.MailboxRow, error)
}

type CommandEnqueuer interface {
	EnqueueRollHere(ctx context.Context, req service.RollHereRequest) (service.Ack, error)
}

type PairingFlow interface {
	IssueCode(ctx context.Context, clientIdentity string) (model.Pairing, error)
	Connect(ctx context.Context, code string, dest model.Destination) (model.Pairing, error)
	Disconnect(ctx context.Context, id string) error
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Scheduler SchedulerControl
	Turns     TurnAdmin
	Commands  CommandEnqueuer
	Pairings  PairingFlow
	DB        Pinger
	Log       *zap.Logger
	CodeTTL   time.Duration
}

type Handler struct {
	sched    SchedulerControl
	turns    TurnAdmin
	commands CommandEnqueuer
	pairings PairingFlow
	db       Pinger
	log      *zap.Logger
	codeTTL  time.Duration
}

func NewHandler(d Deps) *Handler {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		sched:    d.Scheduler,
		turns:    d.Turns,
		commands: d.Commands,
		pairings: d.Pairings,
		db:       d.DB,
		log:      log,
		codeTTL:  d.CodeTTL,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sched.Stats())
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) ListTurns(w http.ResponseWriter, r *http.Request) {
	status := model.Status(r.URL.Query().Get("status"))
	if status == "" {
		status = model.Failed
	}
	switch status {
	case model.Pending, model.Processing, model.Posted, model.Failed:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unknown status " + strconv.Quote(string(status))})
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 50)
	offset := parseInt(r.URL.Query().Get("offset"), 0)

	items, err := h.turns.ListTurns(r.Context(), status, limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ResubmitTurn(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid id"})
		return
	}

	row, err := h.turns.Resubmit(r.Context(), id)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "turn event not found"})
		return
	case errors.Is(err, repo.ErrNotFailed):
		writeJSON(w, http.StatusConflict, map[string]any{"error": repo.ErrNotFailed.Error()})
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"item": row})
}

type rollHereRequest struct {
	CallerIdentity string  `json:"caller_identity"`
	Notation       string  `json:"notation"`
	DisplayName    string  `json:"display_name"`
	ActorName      string  `json:"actor_name"`
	CheckType      *string `json:"check_type"`
}

func (h *Handler) RollHere(w http.ResponseWriter, r *http.Request) {
	var req rollHereRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "reason": err.Error()})
		return
	}
	if strings.TrimSpace(req.CallerIdentity) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "reason": "caller_identity is required"})
		return
	}

	ack, err := h.commands.EnqueueRollHere(r.Context(), service.RollHereRequest{
		CallerIdentity: req.CallerIdentity,
		Notation:       req.Notation,
		DisplayName:    req.DisplayName,
		ActorName:      req.ActorName,
		CheckType:      req.CheckType,
	})
	if err != nil {
		var cerr *service.CommandError
		if !errors.As(err, &cerr) {
			h.log.Error("enqueue roll command", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]any{"ok": false, "reason": "internal error"})
			return
		}
		writeJSON(w, commandStatus(cerr), map[string]any{"ok": false, "reason": cerr.Reason})
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"ok":             true,
		"command_id":     ack.CommandID,
		"correlation_id": ack.CorrelationID,
	})
}

func commandStatus(err *service.CommandError) int {
	switch {
	case errors.Is(err, service.ErrInvalidRoll):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, service.ErrNotConnected):
		return http.StatusConflict
	}
	return http.StatusUnprocessableEntity
}

type issueCodeRequest struct {
	ClientIdentity string `json:"client_identity"`
}

func (h *Handler) IssuePairingCode(w http.ResponseWriter, r *http.Request) {
	var req issueCodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	p, err := h.pairings.IssueCode(r.Context(), req.ClientIdentity)
	if err != nil {
		if errors.Is(err, service.ErrClientIdentity) {
			writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         p.ID,
		"code":       p.Code,
		"expires_at": p.CreatedAt.Add(h.codeTTL),
	})
}

type connectRequest struct {
	Code      string `json:"code"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id"`
}

func (h *Handler) ConnectPairing(w http.ResponseWriter, r *http.Request) {
	var req connectRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}

	p, err := h.pairings.Connect(r.Context(), req.Code, model.Destination{ChannelID: req.ChannelID, GuildID: req.GuildID})
	switch {
	case errors.Is(err, service.ErrMissingChannelID):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	case errors.Is(err, service.ErrCodeNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	case errors.Is(err, service.ErrCodeExpired):
		writeJSON(w, http.StatusGone, map[string]any{"error": err.Error()})
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"pairing": p})
}

func (h *Handler) DisconnectPairing(w http.ResponseWriter, r *http.Request) {
	err := h.pairings.Disconnect(r.Context(), chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, service.ErrPairingNotFound):
		writeJSON(w, http.StatusNotFound, map[string]any{"error": err.Error()})
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid json body")
	}
	return nil
}

func parseInt(raw string, def int) int {
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
