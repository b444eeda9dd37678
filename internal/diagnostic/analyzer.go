package diagnostic

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
)

// AdPeriod 由相邻两条用户标注围成的广告区间
type AdPeriod struct {
	StartMS    int64
	EndMS      int64
	AdDomains  map[string]int // 区间内广告相关请求按域名计数
	ShortVideo int            // 区间内时长 <120s 的播放器采样数
}

// Duration 区间时长（毫秒）
func (p AdPeriod) Duration() int64 { return p.EndMS - p.StartMS }

// Report 诊断导出的离线分析结果，用来校准平台权重表
type Report struct {
	Platform      string
	Periods       []AdPeriod
	ContentAdReqs int // 广告区间之外的广告相关请求数，衡量误报压力
}

// Analyze 解析诊断导出 JSON 并按用户标注切分广告区间。
// 标注按时间序两两配对（开始/结束），落单的尾标注丢弃。
func Analyze(export string) (*Report, error) {
	if !gjson.Valid(export) {
		return nil, fmt.Errorf("diagnostic: 导出内容不是合法 JSON")
	}
	doc := gjson.Parse(export)
	rep := &Report{Platform: doc.Get("session.platform").String()}

	markers := doc.Get("analysis.userMarkers").Array()
	for i := 0; i+1 < len(markers); i += 2 {
		rep.Periods = append(rep.Periods, AdPeriod{
			StartMS:   markers[i].Get("timestamp").Int(),
			EndMS:     markers[i+1].Get("timestamp").Int(),
			AdDomains: make(map[string]int),
		})
	}

	doc.Get("networkRequests").ForEach(func(_, r gjson.Result) bool {
		if !r.Get("isAdRelated").Bool() {
			return true
		}
		ts := r.Get("timestamp").Int()
		dom := domainOf(r.Get("url").String())
		in := false
		for i := range rep.Periods {
			if ts >= rep.Periods[i].StartMS && ts <= rep.Periods[i].EndMS {
				rep.Periods[i].AdDomains[dom]++
				in = true
				break
			}
		}
		if !in {
			rep.ContentAdReqs++
		}
		return true
	})

	doc.Get("playerState").ForEach(func(_, s gjson.Result) bool {
		ts := s.Get("timestamp").Int()
		d := s.Get("duration").Float()
		if d <= 0 || d >= 120 {
			return true
		}
		for i := range rep.Periods {
			if ts >= rep.Periods[i].StartMS && ts <= rep.Periods[i].EndMS {
				rep.Periods[i].ShortVideo++
				break
			}
		}
		return true
	})

	return rep, nil
}

// String 渲染人可读的分析报告
func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "平台: %s，广告区间 %d 个，区间外广告请求 %d 条\n", r.Platform, len(r.Periods), r.ContentAdReqs)
	for i, p := range r.Periods {
		fmt.Fprintf(&b, "区间 %d: %dms - %dms (%.1fs)，短视频采样 %d\n",
			i+1, p.StartMS, p.EndMS, float64(p.Duration())/1000, p.ShortVideo)
		for _, dc := range topDomains(p.AdDomains, 5) {
			fmt.Fprintf(&b, "  %3dx %s\n", dc.n, dc.domain)
		}
	}
	return b.String()
}

type domainCount struct {
	domain string
	n      int
}

func topDomains(m map[string]int, limit int) []domainCount {
	out := make([]domainCount, 0, len(m))
	for d, n := range m {
		out = append(out, domainCount{d, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].domain < out[j].domain
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func domainOf(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Hostname() != "" {
		return u.Hostname()
	}
	return raw
}
