package platform

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Hook 按天切换日志文件
type Hook struct {
	mu       sync.Mutex
	writer   *os.File
	logPath  string
	fileName string
	fileDate string
}

func (h *Hook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *Hook) Fire(entry *logrus.Entry) error {
	today := time.Now().Format("2006-01-02")
	line, err := entry.String()
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	// 需要切换日志文件
	if h.fileDate != today || h.writer == nil {
		if h.writer != nil {
			h.writer.Close()
		}
		h.fileDate = today
		writer, err := openLogFile(h.logPath, h.fileName, today)
		if err != nil {
			h.writer = nil
			return err
		}
		h.writer = writer
	}
	_, err = h.writer.Write([]byte(line))
	return err
}

type LogFormatter struct {
}

func (m *LogFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	var b *bytes.Buffer
	if entry.Buffer != nil {
		b = entry.Buffer
	} else {
		b = &bytes.Buffer{}
	}

	timestamp := entry.Time.Format("2006-01-02 15:04:05.000")
	b.WriteString(fmt.Sprintf("[%s] [%s] %s\n", timestamp, entry.Level, entry.Message))
	return b.Bytes(), nil
}

func openLogFile(logPath, fileName, date string) (*os.File, error) {
	if err := os.MkdirAll(logPath, os.ModePerm); err != nil {
		return nil, err
	}
	filename := fmt.Sprintf("%s/%s-%s.log", logPath, date, fileName)
	return os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
}

// InitFile 把标准 logrus 输出（gin 访问日志）同时写入按天切分的文件
func InitFile(logPath string, fileName string) error {
	logrus.SetFormatter(&LogFormatter{})
	today := time.Now().Format("2006-01-02")
	writer, err := openLogFile(logPath, fileName, today)
	if err != nil {
		return err
	}
	logrus.AddHook(&Hook{
		writer:   writer,
		logPath:  logPath,
		fileName: fileName,
		fileDate: today,
	})
	return nil
}

// InitAppLogger 让应用日志同时输出到文件和标准错误
func InitAppLogger(logPath string, fileName string) error {
	today := time.Now().Format("2006-01-02")
	logFile, err := openLogFile(logPath, fileName, today)
	if err != nil {
		return err
	}
	Logger.SetOutput(io.MultiWriter(logFile, os.Stderr))
	return nil
}

func newLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&LogFormatter{})
	logger.SetOutput(os.Stderr)
	return logger
}

// Logger 在调用 InitAppLogger 之前只输出到标准错误
var Logger = newLogger()
