package logs

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/ochat/internal/model/record"
	"github.com/zhouzirui/ochat/pkg/utils"
)

// Reader lists the records of one log file. jsonlog.Store satisfies it.
type Reader interface {
	List(mode record.Mode) ([]record.Record, error)
}

// Handler 日志查询的HTTP处理器
type Handler struct {
	logs Reader
}

// New 创建日志处理器
func New(logs Reader) *Handler {
	return &Handler{logs: logs}
}

// RegisterRoutes 注册日志相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/logs/{mode}", h.handleList)
}

// handleList 列出某个模式的全部记录
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	mode, err := record.ParseMode(chi.URLParam(r, "mode"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	recs, err := h.logs.List(mode)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if recs == nil {
		recs = []record.Record{}
	}
	utils.RespondJSON(w, http.StatusOK, recs)
}
