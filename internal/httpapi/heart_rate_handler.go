package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Jeykison03/Leo-monitor/internal/models"
	"github.com/Jeykison03/Leo-monitor/internal/sink"
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
)

// DefaultStatsWindow 未指定时间范围时的默认统计窗口
const DefaultStatsWindow = 10 * time.Minute

// HealthBody 健康检查响应内容
const HealthBody = "Heart Rate Monitor Backend is Running"

// HeartRateHandler 心率统计与导出
type HeartRateHandler struct {
	querier sink.Querier
	clock   clock.Clock
	logger  *zap.Logger
}

func NewHeartRateHandler(querier sink.Querier, clk clock.Clock, logger *zap.Logger) *HeartRateHandler {
	if clk == nil {
		clk = clock.New()
	}
	return &HeartRateHandler{
		querier: querier,
		clock:   clk,
		logger:  logger,
	}
}

// Health GET /health
func (h *HeartRateHandler) Health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(HealthBody))
}

// timeRange 读取 start/end 查询参数，缺省为最近 10 分钟
func (h *HeartRateHandler) timeRange(r *http.Request) (time.Time, time.Time) {
	end := h.clock.Now().UTC()
	start := end.Add(-DefaultStatsWindow)
	q := r.URL.Query()
	return parseTime(q.Get("start"), start), parseTime(q.Get("end"), end)
}

// Stats GET /api/stats?start=&end=
func (h *HeartRateHandler) Stats(w http.ResponseWriter, r *http.Request) {
	start, end := h.timeRange(r)

	records, err := h.querier.QueryRange(r.Context(), start, end)
	if err != nil {
		h.logger.Error("Failed to query heart rate history",
			zap.Time("start", start),
			zap.Time("end", end),
			zap.Error(err),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to query heart rate history"})
		return
	}

	writeJSON(w, http.StatusOK, models.ComputeHeartRateStats(start, end, records))
}

// Export GET /api/history/export.xlsx?start=&end=
func (h *HeartRateHandler) Export(w http.ResponseWriter, r *http.Request) {
	start, end := h.timeRange(r)

	records, err := h.querier.QueryRange(r.Context(), start, end)
	if err != nil {
		h.logger.Error("Failed to query heart rate history for export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to query heart rate history"})
		return
	}

	data, err := GenerateHeartRateExport(records)
	if err != nil {
		h.logger.Error("Failed to generate heart rate export", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to generate export"})
		return
	}

	filename := fmt.Sprintf("heart_rate_%s_%s.xlsx", start.Format("20060102T150405Z"), end.Format("20060102T150405Z"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)

	h.logger.Info("Heart rate history exported",
		zap.Int("records", len(records)),
		zap.Time("start", start),
		zap.Time("end", end),
	)
}
