package message

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/ochat/internal/model/record"
	"github.com/zhouzirui/ochat/internal/service/dispatch"
	"github.com/zhouzirui/ochat/internal/system"
	"github.com/zhouzirui/ochat/pkg/utils"
)

var log = system.Component("http")

// Handler 消息与模型切换的HTTP处理器
type Handler struct {
	dispatcher *dispatch.Dispatcher
}

// New 创建消息处理器
func New(d *dispatch.Dispatcher) *Handler {
	return &Handler{dispatcher: d}
}

// Response is the body returned for a handled message.
type Response struct {
	Mode    record.Mode `json:"mode"`
	Model   string      `json:"model"`
	Output  string      `json:"output"`
	Warning string      `json:"warning,omitempty"`
}

// RegisterRoutes 注册消息相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/messages", h.handleMessage)
	r.Get("/model", h.handleGetModel)
	r.Put("/model", h.handleSetModel)
}

// handleMessage 按与REPL相同的规则分发一条输入
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	cmd := dispatch.Parse(payload.Text)
	switch cmd.Kind {
	case dispatch.KindEmpty:
		utils.RespondError(w, http.StatusBadRequest, "text is required")
		return
	case dispatch.KindInvalid:
		utils.RespondError(w, http.StatusBadRequest, cmd.Err.Error())
		return
	case dispatch.KindChat, dispatch.KindExecute:
	default:
		utils.RespondError(w, http.StatusBadRequest, "only chat text and /oi tasks are accepted here")
		return
	}

	res, err := h.dispatcher.Handle(r.Context(), cmd, nil)
	if err != nil && !errors.Is(err, dispatch.ErrRecordFailed) {
		log.Warn("message failed", "kind", cmd.Kind, "err", err)
		utils.RespondError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := Response{Mode: res.Mode, Model: res.Model, Output: res.Output}
	if err != nil {
		resp.Warning = err.Error()
	}
	utils.RespondJSON(w, http.StatusOK, resp)
}

// handleGetModel 返回当前模型
func (h *Handler) handleGetModel(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"model": h.dispatcher.Model()})
}

// handleSetModel 切换后续请求使用的模型
func (h *Handler) handleSetModel(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Model string `json:"model"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.dispatcher.SwitchModel(r.Context(), payload.Model); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, dispatch.ErrEmptyModel) {
			status = http.StatusBadRequest
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"model": strings.TrimSpace(payload.Model)})
}
