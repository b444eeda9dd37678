package logger

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger 统一日志接口，键值对形式传递结构化字段
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Err(err error, msg string, kv ...any)
}

// Options 日志初始化选项
type Options struct {
	Level   string   // debug/info/warn/error
	Writers []string // console/file
	File    string   // 文件日志路径
}

type zeroLogger struct {
	l zerolog.Logger
}

// New 创建 zerolog 日志实例
func New(opts Options) Logger {
	var ws []io.Writer
	for _, w := range opts.Writers {
		switch w {
		case "console":
			ws = append(ws, zerolog.ConsoleWriter{Out: os.Stderr})
		case "file":
			path := opts.File
			if path == "" {
				path = "hushtab.log"
			}
			ws = append(ws, &lumberjack.Logger{
				Filename:   path,
				MaxSize:    20, // MB
				MaxBackups: 3,
				MaxAge:     7, // days
			})
		}
	}
	if len(ws) == 0 {
		ws = append(ws, zerolog.ConsoleWriter{Out: os.Stderr})
	}

	lvl := parseLevel(opts.Level)
	zl := zerolog.New(zerolog.MultiLevelWriter(ws...)).Level(lvl).With().Timestamp().Logger()
	return &zeroLogger{l: zl}
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (z *zeroLogger) Debug(msg string, kv ...any) { withFields(z.l.Debug(), kv).Msg(msg) }
func (z *zeroLogger) Info(msg string, kv ...any)  { withFields(z.l.Info(), kv).Msg(msg) }
func (z *zeroLogger) Warn(msg string, kv ...any)  { withFields(z.l.Warn(), kv).Msg(msg) }

func (z *zeroLogger) Err(err error, msg string, kv ...any) {
	withFields(z.l.Error().Err(err), kv).Msg(msg)
}

// withFields 将键值对附加到日志事件，奇数个参数时忽略末尾孤键
func withFields(ev *zerolog.Event, kv []any) *zerolog.Event {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	return ev
}

type nopLogger struct{}

// NewNop 创建空日志实例，用于测试或未注入日志的场景
func NewNop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any)      {}
func (nopLogger) Info(string, ...any)       {}
func (nopLogger) Warn(string, ...any)       {}
func (nopLogger) Err(error, string, ...any) {}
