package statuslog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"
)

const openFlags = os.O_APPEND | os.O_CREATE | os.O_WRONLY

// Entry 一条系统检查周期的状态摘要，每个周期写一行
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	UptimeSeconds  int64     `json:"uptimeSeconds"`
	AlertsTotal    int       `json:"alertsTotal"`
	AlertsUnacked  int       `json:"alertsUnacked"`
	AlertsCritical int       `json:"alertsCritical"`
	CPUPercent     *float64  `json:"cpuPercent,omitempty"`
	MemoryPercent  *float64  `json:"memoryPercent,omitempty"`
	DiskPercent    *float64  `json:"diskPercent,omitempty"`
}

// Logger 按天追加的状态日志，文件名形如 status-2006-01-02.log，
// 每行一条 JSON 记录，只追加不回写。
type Logger struct {
	mu   sync.Mutex
	fs   afero.Fs
	dir  string
	date string
	file afero.File
}

// New 创建状态日志记录器
func New(dir string) *Logger {
	return &Logger{
		fs:  afero.NewOsFs(),
		dir: dir,
	}
}

// Append 追加一条状态记录，跨天时自动切换到新文件
func (l *Logger) Append(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	date := entry.Timestamp.Format("2006-01-02")
	if l.file == nil || date != l.date {
		if err := l.rotateLocked(date); err != nil {
			return err
		}
	}

	_, err = l.file.Write(append(line, '\n'))
	return err
}

// rotateLocked 打开当天的日志文件（需要持有锁）
func (l *Logger) rotateLocked(date string) error {
	if l.file != nil {
		_ = l.file.Close()
		l.file = nil
	}

	if err := l.fs.MkdirAll(l.dir, 0755); err != nil {
		return err
	}

	path := filepath.Join(l.dir, "status-"+date+".log")
	file, err := l.fs.OpenFile(path, openFlags, 0644)
	if err != nil {
		return err
	}

	l.file = file
	l.date = date
	return nil
}

// Close 关闭当前日志文件
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
