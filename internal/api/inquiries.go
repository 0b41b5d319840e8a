package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/shaharia-lab/inquiry-dispatch/internal/notification"
	"github.com/shaharia-lab/inquiry-dispatch/internal/service"
)

const maxInquiryBodyBytes = 64 << 10

type inquiryResponse struct {
	OK        bool   `json:"ok"`
	ID        string `json:"id"`
	Channel   string `json:"channel"`
	MessageID string `json:"messageId"`
}

type inquiryError struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// handleCreateInquiry validates an inquiry and delivers it to the shop owner.
// Delivery failures are logged in full but answered with a generic message.
func (s *Server) handleCreateInquiry(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxInquiryBodyBytes)

	var in service.Inquiry
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, inquiryError{Error: errInvalidJSONBody})
		return
	}

	receipt, err := s.inquirySvc.Submit(r.Context(), in)
	if err != nil {
		var ve *service.ValidationError
		if errors.As(err, &ve) {
			writeJSON(w, http.StatusBadRequest, inquiryError{Error: ve.Message, Field: ve.Field})
			return
		}
		s.logger.Error("inquiry delivery failed",
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		status := http.StatusBadGateway
		if errors.Is(err, notification.ErrUnconfigured) {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, inquiryError{Error: errDeliveryFailed})
		return
	}

	writeJSON(w, http.StatusOK, inquiryResponse{
		OK:        true,
		ID:        receipt.ID,
		Channel:   receipt.Channel,
		MessageID: receipt.MessageID,
	})
}

// handleVerifySMTP checks the SMTP relay connection and credentials.
func (s *Server) handleVerifySMTP(w http.ResponseWriter, r *http.Request) {
	channel, err := s.inquirySvc.VerifySMTP(r.Context())
	if err != nil {
		s.logger.Warn("smtp verification failed", "error", err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"ok": false, "error": "smtp verification failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "channel": channel})
}

type debugEnvResponse struct {
	Env string `json:"env"`
	service.ChannelSummary
}

// handleDebugEnv reports which channels are configured. Secrets are never included.
func (s *Server) handleDebugEnv(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, debugEnvResponse{Env: s.env, ChannelSummary: s.inquirySvc.Channels()})
}
