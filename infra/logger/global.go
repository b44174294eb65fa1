package logger

import (
	"sync"
)

var (
	globalLogger *SystemLogger
	mu           sync.RWMutex
)

// InitGlobalLogger initializes the global system logger
func InitGlobalLogger(sink Sink, config SystemLoggerConfig) *SystemLogger {
	if config.Service == "" {
		config.Service = "gomerchant"
	}
	if config.Version == "" {
		config.Version = "1.0.0"
	}
	l := NewSystemLogger(sink, config)
	SetGlobalLogger(l)
	return l
}

// SetGlobalLogger replaces the global logger
func SetGlobalLogger(l *SystemLogger) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = l
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	// Fallback to console-only logger if not initialized
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		globalLogger = NewSystemLogger(nil, SystemLoggerConfig{
			EnableConsole: true,
			MinLevel:      LevelInfo,
			Service:       "gomerchant",
			Version:       "1.0.0",
			Environment:   "development",
		})
	}
	return globalLogger
}

// Convenience functions for global logging

func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().log(LevelDebug, message, ctx...)
}

func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().log(LevelInfo, message, ctx...)
}

func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().log(LevelWarn, message, ctx...)
}

func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().log(LevelError, message, withError(err, ctx)...)
}

// Fatal logs using the global logger and exits
func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithGateway creates a context logger with gateway
func WithGateway(gateway string) *ContextLogger {
	return WithContext(LogContext{Gateway: gateway})
}

// WithAccountAndGateway creates a context logger with account and gateway
func WithAccountAndGateway(account, gateway string) *ContextLogger {
	return WithContext(LogContext{
		Account: account,
		Gateway: gateway,
	})
}
