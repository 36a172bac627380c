package stream

import (
	"context"
	"errors"
	"net/http"

	"github.com/zhouzirui/ochat/internal/service/dispatch"
	"github.com/zhouzirui/ochat/internal/system"
	"github.com/zhouzirui/ochat/pkg/utils"
)

var log = system.Component("stream")

// ErrUnsupported is returned when the ResponseWriter cannot flush.
var ErrUnsupported = errors.New("streaming unsupported")

// Handler manages streaming responses via Server-Sent Events
type Handler struct {
	dispatcher *dispatch.Dispatcher
}

// New creates a new stream handler
func New(d *dispatch.Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event     string `json:"event"`
	Content   string `json:"content,omitempty"`
	Mode      string `json:"mode,omitempty"`
	Model     string `json:"model,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Finished  bool   `json:"finished,omitempty"`
	Error     string `json:"error,omitempty"`
}

// HandleStreamRequest dispatches one message and streams its reply. Errors
// after the headers are sent are reported as an error event.
func (h *Handler) HandleStreamRequest(ctx context.Context, w http.ResponseWriter, message string) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrUnsupported
	}

	cmd := dispatch.Parse(message)
	if cmd.Err != nil {
		return cmd.Err
	}
	if _, err := h.dispatcher.Route(cmd); err != nil {
		return err
	}

	utils.SetupSSEHeaders(w)
	sessionID := h.dispatcher.SessionID()

	res, err := h.dispatcher.Handle(ctx, cmd, func(tok string) {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "delta",
			SessionID: sessionID,
			Content:   tok,
		})
	})
	if err != nil && !errors.Is(err, dispatch.ErrRecordFailed) {
		log.Warn("stream request failed", "err", err)
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Error:     err.Error(),
		})
		return nil
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "message",
		SessionID: sessionID,
		Mode:      string(res.Mode),
		Model:     res.Model,
		Content:   res.Output,
	})
	if err != nil {
		utils.SendSSEChunk(w, flusher, StreamResponse{
			Event:     "error",
			SessionID: sessionID,
			Error:     err.Error(),
		})
	}

	utils.SendSSEChunk(w, flusher, StreamResponse{
		Event:     "end",
		SessionID: sessionID,
		Finished:  true,
	})
	log.Debug("stream completed", "mode", res.Mode, "model", res.Model)
	return nil
}
