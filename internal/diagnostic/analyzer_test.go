package diagnostic

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"
)

// buildExport 用与 Export 相同的结构拼一份导出样本
func buildExport(t *testing.T) string {
	t.Helper()
	out := "{}"
	out, _ = sjson.Set(out, "session.platform", "nbc")

	// 两个广告区间：10s-40s 与 100s-130s，尾部落单标注被丢弃
	markers := []int64{10_000, 40_000, 100_000, 130_000, 200_000}
	for i, ts := range markers {
		out, _ = sjson.Set(out, "analysis.userMarkers."+itoa(i)+".timestamp", ts)
		out, _ = sjson.Set(out, "analysis.userMarkers."+itoa(i)+".event", "mark")
	}

	reqs := []struct {
		ts   int64
		url  string
		isAd bool
	}{
		{12_000, "https://x.mediatailor.us-east-1.amazonaws.com/seg", true},
		{15_000, "https://x.mediatailor.us-east-1.amazonaws.com/seg", true},
		{20_000, "https://nbcume.sc.omtrdc.net/b/ss", true},
		{70_000, "https://ad.doubleclick.net/pix", true}, // 区间外
		{75_000, "https://video.nbc.com/segment.ts", false},
		{105_000, "https://ad.doubleclick.net/pix", true},
	}
	for i, r := range reqs {
		p := "networkRequests." + itoa(i)
		out, _ = sjson.Set(out, p+".timestamp", r.ts)
		out, _ = sjson.Set(out, p+".url", r.url)
		out, _ = sjson.Set(out, p+".isAdRelated", r.isAd)
	}

	states := []struct {
		ts       int64
		duration float64
	}{
		{11_000, 30},   // 广告区间内的短视频
		{12_000, 30},
		{50_000, 3600}, // 正片
		{102_000, 15},
	}
	for i, s := range states {
		p := "playerState." + itoa(i)
		out, _ = sjson.Set(out, p+".timestamp", s.ts)
		out, _ = sjson.Set(out, p+".duration", s.duration)
	}
	return out
}

func itoa(i int) string { return strconv.Itoa(i) }

func TestAnalyze(t *testing.T) {
	rep, err := Analyze(buildExport(t))
	require.NoError(t, err)

	assert.Equal(t, "nbc", rep.Platform)
	require.Len(t, rep.Periods, 2)

	p1 := rep.Periods[0]
	assert.Equal(t, int64(30_000), p1.Duration())
	assert.Equal(t, 2, p1.AdDomains["x.mediatailor.us-east-1.amazonaws.com"])
	assert.Equal(t, 1, p1.AdDomains["nbcume.sc.omtrdc.net"])
	assert.Equal(t, 2, p1.ShortVideo)

	p2 := rep.Periods[1]
	assert.Equal(t, 1, p2.AdDomains["ad.doubleclick.net"])
	assert.Equal(t, 1, p2.ShortVideo)

	// 区间外只有一条广告请求（70s 的 doubleclick），普通分片不计
	assert.Equal(t, 1, rep.ContentAdReqs)

	s := rep.String()
	assert.Contains(t, s, "nbc")
	assert.Contains(t, s, "ad.doubleclick.net")
}

func TestAnalyzeRejectsInvalidJSON(t *testing.T) {
	_, err := Analyze("not json")
	assert.Error(t, err)
}

func TestAnalyzeEmptyExport(t *testing.T) {
	rep, err := Analyze("{}")
	require.NoError(t, err)
	assert.Empty(t, rep.Periods)
	assert.Zero(t, rep.ContentAdReqs)
}
