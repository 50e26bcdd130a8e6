// Package api is the HTTP glue over the notification core: bulk sends,
// match triggers, listing approval, negotiation feedback links and the
// inbound whatsapp webhook. Handlers validate, delegate and translate
// errors; no dispatch logic lives here.
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
	"github.com/google/uuid"
	"go.uber.org/zap"

	"platanotify/internal/db"
	"platanotify/internal/models"
	"platanotify/internal/notify"
	"platanotify/internal/reply"
)

// Store is the slice of the relational store the handlers touch
// directly. Satisfied by *db.Store.
type Store interface {
	ApproveListing(ctx context.Context, id int64, now time.Time) error
	CloseNegotiation(ctx context.Context, id int64, status models.NegotiationStatus) error
}

// Dispatcher is the bulk fan-out capability. Satisfied by
// *dispatch.Dispatcher.
type Dispatcher interface {
	DispatchAll(ctx context.Context, msgs []models.OutboundMessage) []models.DispatchOutcome
}

// Notifier covers the triggered flows. Satisfied by *notify.Service.
type Notifier interface {
	NotifyListingMatch(ctx context.Context, listingID int64) ([]models.DispatchOutcome, error)
	Fire(ctx context.Context, t notify.Trigger) ([]models.DispatchOutcome, error)
}

// ReplyHandler processes inbound whatsapp replies. Satisfied by
// *reply.Handler.
type ReplyHandler interface {
	HandleReply(ctx context.Context, from, body string) error
}

type Handler struct {
	Store      Store
	Dispatcher Dispatcher
	Notify     Notifier
	Reply      ReplyHandler
	Log        *zap.Logger
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/email", h.sendBulkEmail)
	r.Post("/listing/notify", h.notifyListing)
	r.Patch("/properties/{id}/approve", h.approveListing)
	r.Get("/close-negotiation/{id}", h.closeNegotiation)
	r.Post("/whatsapp-webhook", h.whatsappWebhook)
	r.Post("/notifications", h.fireTrigger)
	return r
}

// ----------------------------
// Bulk email
// ----------------------------

type emailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

type recipientResult struct {
	To       string `json:"to"`
	Success  bool   `json:"success"`
	Attempts int    `json:"attempts"`
	Error    string `json:"error,omitempty"`
}

func (h *Handler) sendBulkEmail(w http.ResponseWriter, r *http.Request) {
	reqs, err := decodeEmailRequests(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, req := range reqs {
		if req.To == "" || req.Subject == "" || req.Message == "" {
			writeError(w, http.StatusBadRequest, "Todos os campos são obrigatórios")
			return
		}
	}

	msgs := make([]models.OutboundMessage, len(reqs))
	for i, req := range reqs {
		msgs[i] = models.OutboundMessage{
			ID:      uuid.NewString(),
			Channel: models.ChannelEmail,
			To:      req.To,
			Subject: req.Subject,
			Body:    req.Message,
		}
	}

	outcomes := h.Dispatcher.DispatchAll(r.Context(), msgs)
	writeJSON(w, http.StatusOK, aggregate(outcomes))
}

// decodeEmailRequests accepts the JSON body shapes the frontend sends: a
// single message, a bulk envelope, or a CSV upload.
func decodeEmailRequests(r *http.Request) ([]emailRequest, error) {
	if strings.Contains(r.Header.Get("Content-Type"), "text/csv") {
		return parseRecipientCSV(r.Body, maxCSVRows)
	}

	var payload struct {
		emailRequest
		Messages []emailRequest `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, errors.New("corpo da requisição inválido")
	}
	if len(payload.Messages) > 0 {
		return payload.Messages, nil
	}
	// Single-message shape: {to, subject, message}.
	if payload.To != "" || payload.Subject != "" || payload.Message != "" {
		return []emailRequest{payload.emailRequest}, nil
	}
	return nil, errors.New("nenhuma mensagem para enviar")
}

func aggregate(outcomes []models.DispatchOutcome) map[string]any {
	results := make([]recipientResult, len(outcomes))
	sent, failed := 0, 0
	for i, out := range outcomes {
		res := recipientResult{
			To:       out.Message.To,
			Success:  out.Success,
			Attempts: out.AttemptsUsed,
		}
		if out.Success {
			sent++
		} else {
			failed++
			if out.LastError != nil {
				res.Error = out.LastError.Error()
			}
		}
		results[i] = res
	}
	return map[string]any{
		"sent":    sent,
		"failed":  failed,
		"results": results,
	}
}

// ----------------------------
// Listing match trigger
// ----------------------------

func (h *Handler) notifyListing(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ListingID int64 `json:"listing_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ListingID == 0 {
		writeError(w, http.StatusBadRequest, "listing_id é obrigatório")
		return
	}

	outcomes, err := h.Notify.NotifyListingMatch(r.Context(), req.ListingID)
	if errors.Is(err, db.ErrListingNotFound) {
		writeError(w, http.StatusNotFound, "Imóvel não encontrado")
		return
	}
	if err != nil {
		h.Log.Error("listing notify failed", zap.Int64("listing_id", req.ListingID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Algo correu mal ao enviar as notificações")
		return
	}

	writeJSON(w, http.StatusOK, aggregate(outcomes))
}

// ----------------------------
// Approval
// ----------------------------

func (h *Handler) approveListing(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	err = h.Store.ApproveListing(r.Context(), id, time.Now())
	switch {
	case errors.Is(err, db.ErrListingNotFound):
		writeError(w, http.StatusNotFound, "Imóvel não encontrado")
	case errors.Is(err, db.ErrAlreadyActive):
		writeError(w, http.StatusConflict, "Imóvel já está ativo")
	case err != nil:
		h.Log.Error("approval failed", zap.Int64("listing_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Algo correu mal ao aprovar o imóvel")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"message": "Imóvel aprovado"})
	}
}

// ----------------------------
// Close negotiation (link target from followup emails)
// ----------------------------

func (h *Handler) closeNegotiation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id inválido")
		return
	}

	status := models.NegotiationStatus(r.URL.Query().Get("status"))
	if !models.ValidCloseStatus(status) {
		writeError(w, http.StatusBadRequest, "status inválido")
		return
	}

	if err := h.Store.CloseNegotiation(r.Context(), id, status); err != nil {
		if errors.Is(err, db.ErrScheduleNotFound) {
			writeError(w, http.StatusNotFound, "Visita não encontrada")
			return
		}
		h.Log.Error("close negotiation failed", zap.Int64("schedule_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Algo correu mal")
		return
	}

	// The link is clicked from an email; answer with a small page.
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<html><body><h2>Obrigado pelo seu feedback!</h2></body></html>"))
}

// ----------------------------
// WhatsApp webhook
// ----------------------------

func (h *Handler) whatsappWebhook(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "payload inválido")
		return
	}

	from := r.PostFormValue("From")
	body := r.PostFormValue("Body")
	if from == "" {
		writeError(w, http.StatusBadRequest, "remetente ausente")
		return
	}

	err := h.Reply.HandleReply(r.Context(), from, body)
	if errors.Is(err, reply.ErrUnknownSender) {
		writeError(w, http.StatusNotFound, "Número não cadastrado")
		return
	}
	if err != nil {
		h.Log.Error("webhook handling failed", zap.String("from", from), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Algo correu mal")
		return
	}

	// Twilio expects TwiML; an empty response acknowledges the message.
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("<Response></Response>"))
}

// ----------------------------
// Typed triggers
// ----------------------------

func (h *Handler) fireTrigger(w http.ResponseWriter, r *http.Request) {
	var t notify.Trigger
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		writeError(w, http.StatusBadRequest, "corpo da requisição inválido")
		return
	}

	outcomes, err := h.Notify.Fire(r.Context(), t)
	switch {
	case errors.Is(err, notify.ErrUnknownTrigger):
		writeError(w, http.StatusBadRequest, "tipo de notificação desconhecido")
	case errors.Is(err, db.ErrListingNotFound):
		writeError(w, http.StatusNotFound, "Imóvel não encontrado")
	case err != nil:
		h.Log.Error("trigger failed", zap.String("type", t.Type), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Algo correu mal ao enviar as notificações")
	default:
		writeJSON(w, http.StatusOK, aggregate(outcomes))
	}
}

// ----------------------------
// Helpers
// ----------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
