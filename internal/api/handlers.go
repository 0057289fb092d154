package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/LeventeLantos/scripture-messaging/internal/bible"
	"github.com/LeventeLantos/scripture-messaging/internal/dispatch"
	"github.com/LeventeLantos/scripture-messaging/internal/inbound"
	"github.com/LeventeLantos/scripture-messaging/internal/model"
	"github.com/LeventeLantos/scripture-messaging/internal/scheduler"
	"github.com/LeventeLantos/scripture-messaging/internal/state"
	"github.com/LeventeLantos/scripture-messaging/internal/store"
	"github.com/LeventeLantos/scripture-messaging/internal/twilio"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type ScheduleRegistry interface {
	InsertSchedule(ctx context.Context, sched *model.ScheduledMessage) error
	DeleteSchedule(ctx context.Context, id int64) error
	ListSchedules(ctx context.Context, status model.ScheduleStatus) ([]model.ScheduledMessage, error)
}

type ConversationReader interface {
	History(ctx context.Context, phoneNumber string, limit int) ([]model.Message, error)
}

type StateService interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, error)
	All(ctx context.Context) ([]model.UserState, error)
	SaveVerseSelection(ctx context.Context, sel state.VerseSelection) error
	LoadVerseSelection(ctx context.Context) (state.VerseSelection, error)
}

type VerseSender interface {
	SendVerse(ctx context.Context, req dispatch.VerseRequest) (model.Message, error)
}

type InboundHandler interface {
	Handle(ctx context.Context, msg inbound.Message) (string, error)
}

type Handler struct {
	db               Pinger
	sched            *scheduler.Scheduler
	schedules        ScheduleRegistry
	history          ConversationReader
	state            StateService
	sender           VerseSender
	inbound          InboundHandler
	defaultRecipient string
}

func NewHandler(
	db Pinger,
	sched *scheduler.Scheduler,
	schedules ScheduleRegistry,
	history ConversationReader,
	states StateService,
	sender VerseSender,
	inboundHandler InboundHandler,
	defaultRecipient string,
) *Handler {
	return &Handler{
		db:               db,
		sched:            sched,
		schedules:        schedules,
		history:          history,
		state:            states,
		sender:           sender,
		inbound:          inboundHandler,
		defaultRecipient: defaultRecipient,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Books lists the selectable book names.
func (h *Handler) Books(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": bible.Books()})
}

func (h *Handler) SchedulerStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStart(w http.ResponseWriter, r *http.Request) {
	h.sched.Start()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

func (h *Handler) SchedulerStop(w http.ResponseWriter, r *http.Request) {
	h.sched.Stop()
	writeJSON(w, http.StatusOK, map[string]any{"running": h.sched.IsRunning()})
}

type messageDTO struct {
	ID                 int64   `json:"id"`
	PhoneNumber        string  `json:"phoneNumber"`
	Direction          string  `json:"direction"`
	Text               string  `json:"text"`
	Timestamp          string  `json:"timestamp"`
	TransportMessageID *string `json:"transportMessageId,omitempty"`
}

func toMessageDTO(m model.Message) messageDTO {
	return messageDTO{
		ID:                 m.ID,
		PhoneNumber:        m.PhoneNumber,
		Direction:          string(m.Direction),
		Text:               m.Text,
		Timestamp:          m.Timestamp.Format(time.RFC3339Nano),
		TransportMessageID: m.TransportMessageID,
	}
}

func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeError(w, http.StatusBadRequest, errors.New("phone query parameter is required"))
		return
	}
	limit := parseInt(r.URL.Query().Get("limit"), 50)

	msgs, err := h.history.History(r.Context(), phone, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	items := make([]messageDTO, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, toMessageDTO(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type scheduleRequest struct {
	Book              string `json:"book"`
	Chapter           int    `json:"chapter"`
	StartVerse        int    `json:"startVerse"`
	EndVerse          int    `json:"endVerse"`
	ScheduleTime      string `json:"scheduleTime"`
	IncludeReflection bool   `json:"includeReflection"`
	RecipientNumber   string `json:"recipientNumber"`
}

func (req *scheduleRequest) validate(defaultRecipient string) error {
	if req.Book == "" {
		return errors.New("book is required")
	}
	if req.Chapter < 1 {
		return errors.New("chapter must be >= 1")
	}
	if req.StartVerse < 1 {
		return errors.New("startVerse must be >= 1")
	}
	if req.EndVerse == 0 {
		req.EndVerse = req.StartVerse
	}
	if req.EndVerse < req.StartVerse {
		return errors.New("endVerse must be >= startVerse")
	}
	if req.RecipientNumber == "" {
		req.RecipientNumber = defaultRecipient
	}
	if req.RecipientNumber == "" {
		return errors.New("recipientNumber is required")
	}
	return nil
}

type scheduleDTO struct {
	ID                int64   `json:"id"`
	Book              string  `json:"book"`
	Chapter           int     `json:"chapter"`
	StartVerse        int     `json:"startVerse"`
	EndVerse          int     `json:"endVerse"`
	ScheduleTime      string  `json:"scheduleTime"`
	IncludeReflection bool    `json:"includeReflection"`
	RecipientNumber   string  `json:"recipientNumber"`
	Status            string  `json:"status"`
	LastFiredDate     *string `json:"lastFiredDate,omitempty"`
	LastError         *string `json:"lastError,omitempty"`
	CreatedAt         string  `json:"createdAt"`
}

func toScheduleDTO(s model.ScheduledMessage) scheduleDTO {
	return scheduleDTO{
		ID:                s.ID,
		Book:              s.Book,
		Chapter:           s.Chapter,
		StartVerse:        s.StartVerse,
		EndVerse:          s.EndVerse,
		ScheduleTime:      s.ScheduleTime,
		IncludeReflection: s.IncludeReflection,
		RecipientNumber:   s.RecipientNumber,
		Status:            string(s.Status),
		LastFiredDate:     s.LastFiredDate,
		LastError:         s.LastError,
		CreatedAt:         s.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if err := req.validate(h.defaultRecipient); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tm, err := time.Parse("15:04", req.ScheduleTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("scheduleTime must be HH:MM"))
		return
	}
	// Re-format so "8:00" is stored as "08:00"; the due query compares
	// schedule times lexically against a zero-padded clock.
	req.ScheduleTime = tm.Format("15:04")

	sched := model.ScheduledMessage{
		Book:              req.Book,
		Chapter:           req.Chapter,
		StartVerse:        req.StartVerse,
		EndVerse:          req.EndVerse,
		ScheduleTime:      req.ScheduleTime,
		IncludeReflection: req.IncludeReflection,
		RecipientNumber:   req.RecipientNumber,
	}
	if err := h.schedules.InsertSchedule(r.Context(), &sched); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleDTO(sched))
}

func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	status := model.ScheduleStatus(r.URL.Query().Get("status"))
	switch status {
	case "", model.SchedulePending, model.ScheduleSent, model.ScheduleFailed:
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown status %q", status))
		return
	}

	scheds, err := h.schedules.ListSchedules(r.Context(), status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	items := make([]scheduleDTO, 0, len(scheds))
	for _, s := range scheds {
		items = append(items, toScheduleDTO(s))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.New("invalid schedule id"))
		return
	}

	switch err := h.schedules.DeleteSchedule(r.Context(), id); {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Errorf("schedule %d not found", id))
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
	}
}

type sendVerseRequest struct {
	Book              string `json:"book"`
	Chapter           int    `json:"chapter"`
	StartVerse        int    `json:"startVerse"`
	EndVerse          int    `json:"endVerse"`
	IncludeReflection bool   `json:"includeReflection"`
	RecipientNumber   string `json:"recipientNumber"`
}

// SendVerse is the immediate-send path: same pipeline as a schedule
// occurrence, collaborator failures surface as 502.
func (h *Handler) SendVerse(w http.ResponseWriter, r *http.Request) {
	var req sendVerseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	sreq := scheduleRequest{
		Book:            req.Book,
		Chapter:         req.Chapter,
		StartVerse:      req.StartVerse,
		EndVerse:        req.EndVerse,
		RecipientNumber: req.RecipientNumber,
	}
	if err := sreq.validate(h.defaultRecipient); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	msg, err := h.sender.SendVerse(r.Context(), dispatch.VerseRequest{
		Book:              sreq.Book,
		Chapter:           sreq.Chapter,
		StartVerse:        sreq.StartVerse,
		EndVerse:          sreq.EndVerse,
		IncludeReflection: req.IncludeReflection,
		Recipient:         sreq.RecipientNumber,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageDTO(msg))
}

func (h *Handler) GetAllState(w http.ResponseWriter, r *http.Request) {
	states, err := h.state.All(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	items := make([]map[string]any, 0, len(states))
	for _, st := range states {
		items = append(items, map[string]any{
			"key":       st.Key,
			"value":     st.Value,
			"updatedAt": st.UpdatedAt.Format(time.RFC3339Nano),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	val, err := h.state.Get(r.Context(), key)
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Errorf("state key %q not found", key))
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": val})
	}
}

func (h *Handler) PutState(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}

	if err := h.state.Set(r.Context(), key, body.Value); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"key": key, "value": body.Value})
}

type selectionDTO struct {
	Book           string `json:"book"`
	Chapter        int    `json:"chapter"`
	StartVerse     int    `json:"startVerse"`
	EndVerse       int    `json:"endVerse"`
	PreviewMessage string `json:"previewMessage,omitempty"`
	VerseRef       string `json:"verseRef,omitempty"`
}

// GetVerseSelection returns the persisted last verse selection, with
// defaults for fields that were never saved.
func (h *Handler) GetVerseSelection(w http.ResponseWriter, r *http.Request) {
	sel, err := h.state.LoadVerseSelection(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, selectionDTO(sel))
}

func (h *Handler) PutVerseSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	if req.Book == "" {
		writeError(w, http.StatusBadRequest, errors.New("book is required"))
		return
	}
	if req.Chapter < 1 {
		writeError(w, http.StatusBadRequest, errors.New("chapter must be >= 1"))
		return
	}
	if req.StartVerse < 1 {
		writeError(w, http.StatusBadRequest, errors.New("startVerse must be >= 1"))
		return
	}
	if req.EndVerse == 0 {
		req.EndVerse = req.StartVerse
	}
	if req.EndVerse < req.StartVerse {
		writeError(w, http.StatusBadRequest, errors.New("endVerse must be >= startVerse"))
		return
	}

	if err := h.state.SaveVerseSelection(r.Context(), state.VerseSelection(req)); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// SMSWebhook receives Twilio's inbound-message callback. The reply goes
// out over the REST API inside the handler, so a successful request is
// acknowledged with an empty TwiML document.
func (h *Handler) SMSWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid form: %w", err))
		return
	}
	in := twilio.ParseInbound(r.PostForm)

	_, err := h.inbound.Handle(r.Context(), inbound.Message{
		PhoneNumber:        in.From,
		Text:               in.Body,
		TransportMessageID: in.MessageSID,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(twilio.TwiML("")))
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

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
