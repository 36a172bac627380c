package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/ochat/internal/handler/logs"
	"github.com/zhouzirui/ochat/internal/handler/message"
	"github.com/zhouzirui/ochat/internal/handler/stream"
	"github.com/zhouzirui/ochat/internal/service/dispatch"
	"github.com/zhouzirui/ochat/pkg/utils"
)

// NewRouter wires HTTP routes to the dispatcher and the log store.
func NewRouter(d *dispatch.Dispatcher, logReader logs.Reader) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	messageHandler := message.New(d)
	logsHandler := logs.New(logReader)
	streamHandler := stream.New(d)

	r.Route("/api", func(api chi.Router) {
		messageHandler.RegisterRoutes(api)
		logsHandler.RegisterRoutes(api)

		api.Get("/stream", func(w http.ResponseWriter, r *http.Request) {
			userMessage := r.URL.Query().Get("message")
			if userMessage == "" {
				utils.RespondError(w, http.StatusBadRequest, "message query parameter is required")
				return
			}

			if err := streamHandler.HandleStreamRequest(r.Context(), w, userMessage); err != nil {
				status := http.StatusBadRequest
				if errors.Is(err, stream.ErrUnsupported) {
					status = http.StatusInternalServerError
				}
				utils.RespondError(w, status, err.Error())
			}
		})
	})

	return r
}
