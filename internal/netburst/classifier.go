package netburst

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"hushtab/pkg/model"
)

// 分级权重：单个一级命中已接近确认，三级命中只做佐证
const (
	tier1Weight = 10
	tier2Weight = 5
	tier3Weight = 1
)

// 一级：明确的广告投放域名（广告服务器、SSAI 拼接端点）
var tier1Domains = []string{
	"doubleclick.net",
	"googlesyndication.com",
	"googleadservices.com",
	"amazon-adsystem.com",
	"mediatailor.",
	"fwmrm.net",
	"innovid.com",
	"truex.com",
	"springserve.com",
	"adsrvr.org",
}

// 一级：服务端广告拼接的打点事件名
var tier1Events = map[string]struct{}{
	"adBreakStart":  {},
	"adBreakEnd":    {},
	"adStart":       {},
	"adComplete":    {},
	"firstQuartile": {},
	"midpoint":      {},
	"thirdQuartile": {},
}

// 二级：广告相邻但不充分的分析类域名/子串，正常 API 流量里也可能出现
var tier2Patterns = []string{
	"omtrdc.net",
	"moatads.com",
	"scorecardresearch.com",
	"adobedtm.com",
	"ad_break",
	"adtracking",
}

// 三级：URL 路径中独立出现的 ad/ads 段。边界限定避免误伤
// download、add、loading 这类路径。
var tier3PathRe = regexp.MustCompile(`(?i)(^|/)ads?(/|$)`)

// Classifier 网络请求分类器，无状态，可跨标签页共享
type Classifier struct{}

// Classify 对一条出站请求分级。返回 Tier 为 0 表示与广告无关。
// 解析失败按无关处理，分类歧义不是错误，由权重体系软化吸收。
func (Classifier) Classify(rawURL, body string) model.NetSignal {
	sig := model.NetSignal{URL: rawURL}
	u, err := url.Parse(rawURL)
	if err != nil {
		return sig
	}
	host := strings.ToLower(u.Hostname())
	lower := strings.ToLower(rawURL)

	for _, d := range tier1Domains {
		if strings.Contains(host, d) {
			sig.Tier, sig.Weight = 1, tier1Weight
			return sig
		}
	}
	if matchAdEvent(body) {
		sig.Tier, sig.Weight = 1, tier1Weight
		return sig
	}

	for _, p := range tier2Patterns {
		if strings.Contains(lower, p) {
			sig.Tier, sig.Weight = 2, tier2Weight
			return sig
		}
	}

	if tier3PathRe.MatchString(u.Path) {
		sig.Tier, sig.Weight = 3, tier3Weight
	}
	return sig
}

// matchAdEvent 在请求体里找 SSAI 打点事件名。JSON 体按常见事件
// 字段取值比对，非 JSON 体退化为子串扫描。
func matchAdEvent(body string) bool {
	if body == "" {
		return false
	}
	if gjson.Valid(body) {
		for _, field := range []string{"event", "eventType", "type", "name"} {
			if v := gjson.Get(body, field); v.Exists() {
				if _, ok := tier1Events[v.String()]; ok {
					return true
				}
			}
		}
		return false
	}
	for ev := range tier1Events {
		if strings.Contains(body, ev) {
			return true
		}
	}
	return false
}
