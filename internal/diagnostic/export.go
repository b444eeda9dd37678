package diagnostic

import (
	"fmt"

	"github.com/tidwall/sjson"
)

// Export 把一次诊断会话导出为 JSON 文本。结构与浏览器端诊断面板
// 的导出格式对齐：analysis.userMarkers 是人工标注，playerState 与
// networkRequests 是时间序列，signalTrace 是引擎的权重拆解。
func (s *Store) Export(id string) (string, error) {
	var sess SessionRow
	if err := s.db.First(&sess, "id = ?", id).Error; err != nil {
		return "", fmt.Errorf("diagnostic: 查询会话 %q: %w", id, err)
	}

	out := "{}"
	out, _ = sjson.Set(out, "session.id", sess.ID)
	out, _ = sjson.Set(out, "session.tab", sess.Tab)
	out, _ = sjson.Set(out, "session.platform", sess.Platform)
	out, _ = sjson.Set(out, "session.url", sess.URL)
	out, _ = sjson.Set(out, "session.startedAt", sess.StartedAt.UnixMilli())
	if sess.EndedAt != nil {
		out, _ = sjson.Set(out, "session.endedAt", sess.EndedAt.UnixMilli())
	}

	var markers []MarkerRow
	if err := s.db.Order("timestamp_ms").Find(&markers, "session_id = ?", id).Error; err != nil {
		return "", err
	}
	out, _ = sjson.Set(out, "analysis.userMarkers", []any{})
	for i, m := range markers {
		out, _ = sjson.Set(out, fmt.Sprintf("analysis.userMarkers.%d.timestamp", i), m.TimestampMS)
		out, _ = sjson.Set(out, fmt.Sprintf("analysis.userMarkers.%d.event", i), m.Event)
	}

	var states []PlayerStateRow
	if err := s.db.Order("timestamp_ms").Find(&states, "session_id = ?", id).Error; err != nil {
		return "", err
	}
	out, _ = sjson.Set(out, "playerState", []any{})
	for i, st := range states {
		p := fmt.Sprintf("playerState.%d", i)
		out, _ = sjson.Set(out, p+".timestamp", st.TimestampMS)
		out, _ = sjson.Set(out, p+".currentTime", st.CurrentTime)
		out, _ = sjson.Set(out, p+".duration", st.Duration)
		out, _ = sjson.Set(out, p+".paused", st.Paused)
	}

	var reqs []NetworkRequestRow
	if err := s.db.Order("timestamp_ms").Find(&reqs, "session_id = ?", id).Error; err != nil {
		return "", err
	}
	out, _ = sjson.Set(out, "networkRequests", []any{})
	for i, r := range reqs {
		p := fmt.Sprintf("networkRequests.%d", i)
		out, _ = sjson.Set(out, p+".timestamp", r.TimestampMS)
		out, _ = sjson.Set(out, p+".url", r.URL)
		out, _ = sjson.Set(out, p+".tier", r.Tier)
		out, _ = sjson.Set(out, p+".isAdRelated", r.IsAdRelated)
	}

	var traces []TraceRow
	if err := s.db.Order("timestamp_ms").Find(&traces, "session_id = ?", id).Error; err != nil {
		return "", err
	}
	out, _ = sjson.Set(out, "signalTrace", []any{})
	for i, tr := range traces {
		p := fmt.Sprintf("signalTrace.%d", i)
		out, _ = sjson.Set(out, p+".timestamp", tr.TimestampMS)
		out, _ = sjson.Set(out, p+".signal", tr.Signal)
		out, _ = sjson.Set(out, p+".weight", tr.Weight)
		out, _ = sjson.Set(out, p+".confidence", tr.Confidence)
		out, _ = sjson.Set(out, p+".state", tr.State)
	}

	return out, nil
}
