package sensor

import (
	"regexp"
	"strings"
	"time"
)

// VideoState 页面内单个 <video> 元素的播放状态快照
type VideoState struct {
	CurrentTime float64 `json:"currentTime"` // 秒
	Duration    float64 `json:"duration"`    // 秒，直播流可能为 Inf（序列化为 0）
	Paused      bool    `json:"paused"`
	Ended       bool    `json:"ended"`
	Muted       bool    `json:"muted"`
}

// Playing 视频是否正在播放（非暂停且已有进度）
func (v VideoState) Playing() bool {
	return !v.Paused && !v.Ended && v.CurrentTime > 0
}

// NodeState 探针采集到的候选 DOM 节点快照
type NodeState struct {
	ID            string   `json:"id"`
	Classes       []string `json:"classes"`
	Tag           string   `json:"tag"`
	Visible       bool     `json:"visible"` // 非 display:none、非零透明度、有渲染尺寸
	Disabled      bool     `json:"disabled"`
	AriaDisabled  bool     `json:"ariaDisabled"`
	PointerEvents string   `json:"pointerEvents"`
	Text          string   `json:"text"` // 仅短文本节点（<100 字符）
}

// PageState 一次探针采样得到的页面传感快照。
// 快照是只读事实，提取器在其上做纯函数式的信号判定。
type PageState struct {
	URL    string       `json:"url"`
	Title  string       `json:"title"`
	Videos []VideoState `json:"videos"`
	Nodes  []NodeState  `json:"nodes"`
	At     time.Time    `json:"-"`
}

// NewPageState 创建空快照
func NewPageState() *PageState {
	return &PageState{}
}

// HasClass 节点 class 列表是否包含指定类名（大小写不敏感）
func (n NodeState) HasClass(name string) bool {
	for _, c := range n.Classes {
		if strings.EqualFold(c, name) {
			return true
		}
	}
	return false
}

// ClassInfix 节点任一类名是否包含指定子串（大小写不敏感）
func (n NodeState) ClassInfix(infix string) bool {
	infix = strings.ToLower(infix)
	for _, c := range n.Classes {
		if strings.Contains(strings.ToLower(c), infix) {
			return true
		}
	}
	return false
}

// SeekBlocked 节点的拖动/点击是否被禁用
func (n NodeState) SeekBlocked() bool {
	return n.Disabled || n.AriaDisabled ||
		strings.EqualFold(n.PointerEvents, "none") ||
		n.ClassInfix("disabled")
}

// FindVisible 返回第一个满足谓词且可见的节点；查询失败语义为"信号缺失"，
// 空快照返回 nil 而不报错。
func (p *PageState) FindVisible(match func(NodeState) bool) *NodeState {
	if p == nil {
		return nil
	}
	for i := range p.Nodes {
		if p.Nodes[i].Visible && match(p.Nodes[i]) {
			return &p.Nodes[i]
		}
	}
	return nil
}

// AnyNode 返回第一个满足谓词的节点（不要求可见）
func (p *PageState) AnyNode(match func(NodeState) bool) *NodeState {
	if p == nil {
		return nil
	}
	for i := range p.Nodes {
		if match(p.Nodes[i]) {
			return &p.Nodes[i]
		}
	}
	return nil
}

// ActiveVideo 返回当前正在播放的视频，没有则返回第一个视频
func (p *PageState) ActiveVideo() *VideoState {
	if p == nil || len(p.Videos) == 0 {
		return nil
	}
	for i := range p.Videos {
		if p.Videos[i].Playing() {
			return &p.Videos[i]
		}
	}
	return &p.Videos[0]
}

// TextMatch 是否存在可见短文本命中指定正则。文本在采集端已截断到
// 100 字符以内，避免在大段正文里误匹配 "ad" 之类的子串。
func (p *PageState) TextMatch(re *regexp.Regexp) bool {
	if p == nil || re == nil {
		return false
	}
	for i := range p.Nodes {
		n := &p.Nodes[i]
		if n.Visible && n.Text != "" && re.MatchString(n.Text) {
			return true
		}
	}
	return false
}
