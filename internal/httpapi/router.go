package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// Router 管理后台路由（标准库 ServeMux + 宽松 CORS）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

// HandleHandler 支持 http.Handler 接口（用于 WebSocket 推送等）
func (r *Router) HandleHandler(pattern string, h http.Handler) {
	r.mux.Handle(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	if req.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	r.mux.ServeHTTP(w, req)
}

// RegisterRoutes 注册健康检查、统计、导出与实时推送路由
func (r *Router) RegisterRoutes(h *HeartRateHandler, live http.Handler) {
	r.Handle("/health", getOnly(h.Health))
	r.Handle("/api/stats", getOnly(h.Stats))
	r.Handle("/api/history/export.xlsx", getOnly(h.Export))
	r.HandleHandler("/ws/heart_rate", live)
}

func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, req)
	}
}
