package helper

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogLevel 日志级别
type LogLevel string

const (
	LogLevelDEBUG LogLevel = "DEBUG"
	LogLevelINFO  LogLevel = "INFO"
	LogLevelWARN  LogLevel = "WARN"
	LogLevelERROR LogLevel = "ERROR"
)

var MaxSize = 100

// LogType 日志类型
type LogType string

const (
	LogTypeSystem  LogType = "系统"
	LogTypeUpdate  LogType = "更新"
	LogTypeWebhook LogType = "Webhook"
	LogTypeAuth    LogType = "认证"
	LogTypeWeb     LogType = "Web"
	LogTypeConfig  LogType = "配置"
)

// LogEntry 日志条目
type LogEntry struct {
	Timestamp string   `json:"timestamp"` // 时间戳
	Level     LogLevel `json:"level"`     // 日志级别
	Type      LogType  `json:"type"`      // 日志类型
	Message   string   `json:"message"`   // 日志消息
}

// Logger 日志管理器，保留最近的日志供 Web 界面查看，同时输出到 logrus
type Logger struct {
	mu      sync.RWMutex
	logs    []LogEntry
	maxSize int  // 最大日志条数
	enabled bool // 是否启用日志记录
}

var (
	// DefaultLogger 全局默认日志实例
	DefaultLogger *Logger
	once          sync.Once
)

// InitLogger 初始化日志系统
func InitLogger(maxSize int) {
	once.Do(func() {
		if maxSize <= 0 {
			maxSize = MaxSize
		}
		DefaultLogger = &Logger{
			logs:    make([]LogEntry, 0, maxSize),
			maxSize: maxSize,
			enabled: true,
		}
	})
}

// GetLogger 获取全局日志实例
func GetLogger() *Logger {
	if DefaultLogger == nil {
		InitLogger(MaxSize)
	}
	return DefaultLogger
}

// InitLogOutput 设置 logrus 的级别与输出。logPath 为空或 console 时输出到标准错误，
// 否则写入按大小滚动的日志文件。
func InitLogOutput(logLevel, logPath string) error {
	if logLevel == "" {
		logLevel = "info"
	}
	level, err := log.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("无效的日志级别 %q: %w", logLevel, err)
	}

	var out io.Writer = os.Stderr
	if logPath != "" && logPath != "console" {
		out = &lumberjack.Logger{
			Filename:   filepath.ToSlash(logPath),
			MaxSize:    5, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		}
	}
	log.SetOutput(out)
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(level)
	return nil
}

// addLog 添加日志（内部方法）
func (l *Logger) addLog(level LogLevel, logType LogType, format string, args ...interface{}) {
	// 格式化消息
	message := fmt.Sprintf(format, args...)
	writeLogrus(level, logType, message)

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	// 创建日志条目
	entry := LogEntry{
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
		Type:      logType,
		Level:     level,
		Message:   message,
	}

	// 移除最旧的日志（从头部删除）
	if len(l.logs) >= l.maxSize {
		l.logs = l.logs[1:]
	}

	// 添加新日志到尾部
	l.logs = append(l.logs, entry)
}

func writeLogrus(level LogLevel, logType LogType, message string) {
	entry := log.WithField("type", string(logType))
	switch level {
	case LogLevelDEBUG:
		entry.Debug(message)
	case LogLevelWARN:
		entry.Warn(message)
	case LogLevelERROR:
		entry.Error(message)
	default:
		entry.Info(message)
	}
}

// Debug 记录调试日志，logrus 未开启 debug 级别时直接丢弃
func (l *Logger) Debug(logType LogType, format string, args ...interface{}) {
	if !log.IsLevelEnabled(log.DebugLevel) {
		return
	}
	l.addLog(LogLevelDEBUG, logType, format, args...)
}

// Info 记录信息日志
func (l *Logger) Info(logType LogType, format string, args ...interface{}) {
	l.addLog(LogLevelINFO, logType, format, args...)
}

// Warn 记录警告日志
func (l *Logger) Warn(logType LogType, format string, args ...interface{}) {
	l.addLog(LogLevelWARN, logType, format, args...)
}

// Error 记录错误日志
func (l *Logger) Error(logType LogType, format string, args ...interface{}) {
	l.addLog(LogLevelERROR, logType, format, args...)
}

// GetLogs 获取所有日志（返回副本）
func (l *Logger) GetLogs() []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	// 返回日志副本，避免外部修改
	logsCopy := make([]LogEntry, len(l.logs))
	copy(logsCopy, l.logs)
	return logsCopy
}

// GetRecentLogs 获取最近的N条日志
func (l *Logger) GetRecentLogs(n int) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if n <= 0 || n > len(l.logs) {
		n = len(l.logs)
	}

	// 获取最后N条日志
	start := len(l.logs) - n
	logsCopy := make([]LogEntry, n)
	copy(logsCopy, l.logs[start:])
	return logsCopy
}

// GetLogsByType 根据日志类型获取日志
func (l *Logger) GetLogsByType(logType LogType) []LogEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	filtered := make([]LogEntry, 0)
	for _, entry := range l.logs {
		if entry.Type == logType {
			filtered = append(filtered, entry)
		}
	}
	return filtered
}

// Clear 清空所有日志
func (l *Logger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = make([]LogEntry, 0, l.maxSize)
}

// SetEnabled 设置是否启用环形缓冲记录，logrus 输出不受影响
func (l *Logger) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

// 全局便捷方法

// Debug 全局调试日志
func Debug(logType LogType, format string, args ...interface{}) {
	GetLogger().Debug(logType, format, args...)
}

// Info 全局信息日志
func Info(logType LogType, format string, args ...interface{}) {
	GetLogger().Info(logType, format, args...)
}

// Warn 全局警告日志
func Warn(logType LogType, format string, args ...interface{}) {
	GetLogger().Warn(logType, format, args...)
}

// Error 全局错误日志
func Error(logType LogType, format string, args ...interface{}) {
	GetLogger().Error(logType, format, args...)
}

// Fatal 记录错误并退出
func Fatal(logType LogType, format string, args ...interface{}) {
	GetLogger().Error(logType, format, args...)
	os.Exit(1)
}

// Fatalf 同 Fatal，保留给 fmt 风格调用
func Fatalf(logType LogType, format string, args ...interface{}) {
	Fatal(logType, format, args...)
}

// GetAllLogs 获取所有日志
func GetAllLogs() []LogEntry {
	return GetLogger().GetLogs()
}

// ClearLogs 清空所有日志
func ClearLogs() {
	GetLogger().Clear()
}
