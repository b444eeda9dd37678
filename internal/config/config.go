package config

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"hushtab/internal/confidence"
	"hushtab/internal/netburst"
	"hushtab/internal/platform"
	"hushtab/pkg/model"
)

// Config 配置文件结构体
type Config struct {
	Version string `yaml:"version"`

	DevToolsURL string `yaml:"devtoolsURL"`
	AutoMute    bool   `yaml:"autoMute"`

	Sqlite struct {
		Dsn    string `yaml:"dsn"`
		Prefix string `yaml:"prefix"`
	} `yaml:"sqlite"`

	Log struct {
		Level  string   `yaml:"level"`
		Writer []string `yaml:"writer"`
		File   string   `yaml:"file"`
	} `yaml:"log"`

	Burst struct {
		WindowMS        int `yaml:"windowMS"`
		WeightThreshold int `yaml:"weightThreshold"`
		CountThreshold  int `yaml:"countThreshold"`
		SignalTTLMS     int `yaml:"signalTTLMS"`
		UnmuteGraceMS   int `yaml:"unmuteGraceMS"`
		MaxAdDurationMS int `yaml:"maxAdDurationMS"`
	} `yaml:"burst"`

	Platforms map[string]PlatformTuning `yaml:"platforms"`
}

// PlatformTuning 单平台调优覆盖，空指针字段沿用平台默认值
type PlatformTuning struct {
	MuteThreshold   *int           `yaml:"muteThreshold"`
	UnmuteThreshold *int           `yaml:"unmuteThreshold"`
	UnmuteDelayMS   *int           `yaml:"unmuteDelayMS"`
	CheckIntervalMS *int           `yaml:"checkIntervalMS"`
	StallWindowMS   *int           `yaml:"stallWindowMS"`
	StartupGraceMS  *int           `yaml:"startupGraceMS"`
	Weights         map[string]int `yaml:"weights"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	c := &Config{Version: "1.0.0", AutoMute: true}
	c.DevToolsURL = "http://127.0.0.1:9222"
	c.Sqlite.Dsn = "hushtab.sqlite3"
	c.Sqlite.Prefix = "hushtab_"
	c.Log.Level = "info"
	c.Log.Writer = []string{"console"}
	return c
}

// Load 读取并校验 YAML 配置文件
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: 打开 %q: %w", path, err)
	}
	defer f.Close()
	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: 解析 %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader 从 reader 解码配置，测试中可用字符串字面量构造
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := NewConfig()
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: 解码 yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 校验配置一致性，迟滞带约束是硬性的
func Validate(cfg *Config) error {
	switch cfg.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: 无效日志级别 %q", cfg.Log.Level)
	}
	for name, pt := range cfg.Platforms {
		base := platform.DefaultTuning(model.Platform(name))
		mute := base.MuteThreshold
		unmute := base.UnmuteThreshold
		if pt.MuteThreshold != nil {
			mute = *pt.MuteThreshold
		}
		if pt.UnmuteThreshold != nil {
			unmute = *pt.UnmuteThreshold
		}
		if unmute >= mute {
			return fmt.Errorf("config: 平台 %s 的 unmuteThreshold(%d) 必须小于 muteThreshold(%d)", name, unmute, mute)
		}
		for sig, w := range pt.Weights {
			if w < 0 {
				return fmt.Errorf("config: 平台 %s 信号 %s 权重不能为负", name, sig)
			}
		}
	}
	return nil
}

// TuningFor 合成平台最终调优参数：平台默认值叠加配置覆盖
func (c *Config) TuningFor(p model.Platform) confidence.Tuning {
	t := platform.DefaultTuning(p)
	pt, ok := c.Platforms[string(p)]
	if !ok {
		return t
	}
	if pt.MuteThreshold != nil {
		t.MuteThreshold = *pt.MuteThreshold
	}
	if pt.UnmuteThreshold != nil {
		t.UnmuteThreshold = *pt.UnmuteThreshold
	}
	if pt.UnmuteDelayMS != nil {
		t.UnmuteDelay = time.Duration(*pt.UnmuteDelayMS) * time.Millisecond
	}
	if pt.CheckIntervalMS != nil {
		t.CheckInterval = time.Duration(*pt.CheckIntervalMS) * time.Millisecond
	}
	if pt.StallWindowMS != nil {
		t.StallWindow = time.Duration(*pt.StallWindowMS) * time.Millisecond
	}
	if pt.StartupGraceMS != nil {
		t.StartupGrace = time.Duration(*pt.StartupGraceMS) * time.Millisecond
	}
	if len(pt.Weights) > 0 {
		t.Weights = t.Weights.Merge(pt.Weights)
	}
	return t
}

// BurstConfig 合成突发检测参数：默认值叠加配置覆盖
func (c *Config) BurstConfig() netburst.Config {
	b := netburst.DefaultConfig()
	if c.Burst.WindowMS > 0 {
		b.Window = time.Duration(c.Burst.WindowMS) * time.Millisecond
	}
	if c.Burst.WeightThreshold > 0 {
		b.WeightThreshold = c.Burst.WeightThreshold
	}
	if c.Burst.CountThreshold > 0 {
		b.CountThreshold = c.Burst.CountThreshold
	}
	if c.Burst.SignalTTLMS > 0 {
		b.SignalTTL = time.Duration(c.Burst.SignalTTLMS) * time.Millisecond
	}
	if c.Burst.UnmuteGraceMS > 0 {
		b.UnmuteGrace = time.Duration(c.Burst.UnmuteGraceMS) * time.Millisecond
	}
	if c.Burst.MaxAdDurationMS > 0 {
		b.MaxAdDuration = time.Duration(c.Burst.MaxAdDurationMS) * time.Millisecond
	}
	return b
}
