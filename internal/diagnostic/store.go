package diagnostic

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"

	"hushtab/internal/logger"
	"hushtab/pkg/model"
)

// SessionRow 一次诊断采集会话
type SessionRow struct {
	ID        string `gorm:"primaryKey"`
	Tab       string
	Platform  string
	URL       string
	StartedAt time.Time
	EndedAt   *time.Time
}

// PlayerStateRow 播放器状态采样
type PlayerStateRow struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"index"`
	TimestampMS int64
	CurrentTime float64
	Duration    float64
	Paused      bool
}

// NetworkRequestRow 网络请求记录
type NetworkRequestRow struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"index"`
	TimestampMS int64
	URL         string
	Tier        int
	Weight      int
	IsAdRelated bool
}

// MarkerRow 用户手工标注（广告开始/结束），离线分析的基准真值
type MarkerRow struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"index"`
	TimestampMS int64
	Event       string
}

// TraceRow 信号明细采样，记录每次评估的权重拆解
type TraceRow struct {
	ID          uint   `gorm:"primaryKey"`
	SessionID   string `gorm:"index"`
	TimestampMS int64
	Signal      string
	Weight      int
	Confidence  int
	State       string
}

// Store 诊断数据落库，sqlite 单文件
type Store struct {
	db  *gorm.DB
	log logger.Logger
}

// Open 打开诊断库并自动迁移表结构
func Open(dsn, prefix string, l logger.Logger) (*Store, error) {
	if l == nil {
		l = logger.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NamingStrategy: schema.NamingStrategy{TablePrefix: prefix},
		Logger:         NewGormLogger(l),
	})
	if err != nil {
		return nil, fmt.Errorf("diagnostic: 打开 sqlite %q: %w", dsn, err)
	}
	if err := db.AutoMigrate(&SessionRow{}, &PlayerStateRow{}, &NetworkRequestRow{}, &MarkerRow{}, &TraceRow{}); err != nil {
		return nil, fmt.Errorf("diagnostic: 迁移表结构: %w", err)
	}
	return &Store{db: db, log: l}, nil
}

// StartSession 开始一次诊断采集
func (s *Store) StartSession(tab model.TabID, platform model.Platform, url string) (string, error) {
	row := SessionRow{
		ID:        uuid.NewString(),
		Tab:       string(tab),
		Platform:  string(platform),
		URL:       url,
		StartedAt: time.Now(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return "", fmt.Errorf("diagnostic: 创建会话: %w", err)
	}
	s.log.Info("诊断采集开始", "sessionID", row.ID, "tab", string(tab))
	return row.ID, nil
}

// EndSession 结束诊断采集
func (s *Store) EndSession(id string) error {
	now := time.Now()
	return s.db.Model(&SessionRow{}).Where("id = ?", id).Update("ended_at", &now).Error
}

// RecordPlayerState 记录一次播放器采样。落库失败只记日志，
// 诊断采集绝不反噬检测主流程。
func (s *Store) RecordPlayerState(id string, ts int64, v PlayerStateRow) {
	v.SessionID = id
	v.TimestampMS = ts
	if err := s.db.Create(&v).Error; err != nil {
		s.log.Warn("诊断写入失败", "kind", "playerState", "error", err.Error())
	}
}

// RecordNetworkRequest 记录一条网络请求分类结果
func (s *Store) RecordNetworkRequest(id string, ts int64, sig model.NetSignal) {
	row := NetworkRequestRow{
		SessionID:   id,
		TimestampMS: ts,
		URL:         sig.URL,
		Tier:        sig.Tier,
		Weight:      sig.Weight,
		IsAdRelated: sig.Tier > 0,
	}
	if err := s.db.Create(&row).Error; err != nil {
		s.log.Warn("诊断写入失败", "kind", "networkRequest", "error", err.Error())
	}
}

// RecordTrace 记录一次信号权重拆解
func (s *Store) RecordTrace(id string, tr model.SignalTrace) {
	ts := tr.At.UnixMilli()
	for _, sig := range tr.Signals {
		row := TraceRow{
			SessionID:   id,
			TimestampMS: ts,
			Signal:      sig.Name,
			Weight:      sig.Weight,
			Confidence:  tr.Confidence,
			State:       string(tr.State),
		}
		if err := s.db.Create(&row).Error; err != nil {
			s.log.Warn("诊断写入失败", "kind", "trace", "error", err.Error())
			return
		}
	}
}

// Mark 记录用户手工标注
func (s *Store) Mark(id string, ts int64, event string) error {
	row := MarkerRow{SessionID: id, TimestampMS: ts, Event: event}
	return s.db.Create(&row).Error
}
