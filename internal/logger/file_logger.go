package logger

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger writes trading activity to a per-day session log file.
type Logger struct {
	name    string
	logFile *os.File
	logger  *log.Logger
	mu      sync.Mutex
	logDir  string
}

// LogLevel tags each entry with its kind.
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// NewLogger creates a session logger named after the traded pairs, one file
// per day under logs/.
func NewLogger(pairs []string) (*Logger, error) {
	return NewLoggerIn("logs", pairs)
}

// NewLoggerIn creates a session logger writing under the given directory.
func NewLoggerIn(logDir string, pairs []string) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := strings.ReplaceAll(strings.Join(pairs, "-"), "/", "")
	if name == "" {
		name = "session"
	}

	filename := fmt.Sprintf("%s_%s.log", name, time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(logDir, filename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	l := &Logger{
		name:    name,
		logFile: file,
		logger:  log.New(file, "", 0),
		logDir:  logDir,
	}
	l.writeSessionHeader()
	return l, nil
}

func (l *Logger) writeSessionHeader() {
	l.mu.Lock()
	defer l.mu.Unlock()

	header := fmt.Sprintf(`
================================================================================
TRADING SESSION STARTED
================================================================================
Pairs: %s
Started: %s
================================================================================
`, l.name, time.Now().Format("2006-01-02 15:04:05"))

	l.logger.Print(header)
}

// Log writes a formatted entry with the given level.
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := time.Now().Format("2006-01-02 15:04:05")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s", timestamp, level, message)
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs an execution event
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs account/position status
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogPositionOpened records a new entry with its sizing and reasoning.
func (l *Logger) LogPositionOpened(pair, direction, strategyName string, price, qty float64, reasoning string) {
	l.Trade("OPENED %s %s: price $%.2f, qty %.6f, strategy %s", pair, direction, price, qty, strategyName)
	if reasoning != "" {
		l.Trade("  reasoning: %s", reasoning)
	}
}

// LogPositionClosed records an exit with its realized P&L and reason.
func (l *Logger) LogPositionClosed(pair, direction string, entry, exit, pnl float64, reason string) {
	l.Trade("CLOSED %s %s: entry $%.2f, exit $%.2f, P&L $%+.2f (%s)",
		pair, direction, entry, exit, pnl, reason)
}

// LogAccountStatus records the cash/equity mark for the tick.
func (l *Logger) LogAccountStatus(cash, equity, unrealized float64, numPositions int) {
	l.Status("cash $%.2f | equity $%.2f | unrealized $%+.2f | open positions %d",
		cash, equity, unrealized, numPositions)
}

// LogError logs an error with context
func (l *Logger) LogError(context string, err error) {
	l.Error("%s: %v", context, err)
}

// Close writes the session footer and closes the file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.logFile == nil {
		return nil
	}

	footer := fmt.Sprintf(`
================================================================================
TRADING SESSION ENDED
================================================================================
Ended: %s
================================================================================

`, time.Now().Format("2006-01-02 15:04:05"))
	l.logger.Print(footer)
	return l.logFile.Close()
}
