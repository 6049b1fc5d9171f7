// Package applog builds the process logger: console output plus a daily
// rotated log file.
package applog

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	EnvLogDir = "NOTIFY_LOG_DIR"

	filePerm = 0o644
	dirPerm  = 0o755
)

// ResolveDir picks the log directory: env override first, then ./logs.
func ResolveDir() string {
	if dir := strings.TrimSpace(os.Getenv(EnvLogDir)); dir != "" {
		return dir
	}
	return filepath.Join(".", "logs")
}

func todayFilename(now time.Time) string {
	return "notify_" + now.Format("2006-01-02") + ".log"
}

// Writer appends to a daily log file, switching files at midnight. The file
// is opened per write so external rotation or deletion never wedges logging.
type Writer struct {
	mu  sync.Mutex
	dir string
}

func NewWriter() (*Writer, error) {
	dir := ResolveDir()
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, err
	}
	return &Writer{dir: dir}, nil
}

func (w *Writer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	path := filepath.Join(w.dir, todayFilename(time.Now()))
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, filePerm)
	if err != nil {
		return 0, err
	}
	n, writeErr := file.Write(p)
	closeErr := file.Close()
	if writeErr != nil {
		return n, writeErr
	}
	return n, closeErr
}

// New builds the logger. Development gets a colored console at debug level;
// production logs info and up. Both tee into the daily file as JSON.
func New(production bool) (*zap.Logger, error) {
	level := zapcore.DebugLevel
	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if production {
		level = zapcore.InfoLevel
		consoleCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.Lock(os.Stdout), level),
	}

	if fileWriter, err := NewWriter(); err == nil {
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(fileWriter), level))
	}

	return zap.New(zapcore.NewTee(cores...)), nil
}
