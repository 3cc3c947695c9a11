package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync/atomic"
	"time"
)

// RequestLogger defines the interface for logging proxied requests and
// the backend traffic they generated.
type RequestLogger interface {
	// LogRequest logs a complete non-streaming request/response cycle,
	// including the translated backend request and the raw backend response.
	LogRequest(url, method string, requestHeaders map[string][]string, body []byte, statusCode int, response, apiRequest, apiResponse []byte) error

	// LogStreamingRequest initiates logging for a streaming request and
	// returns a writer for chunks.
	LogStreamingRequest(url, method string, headers map[string][]string, body []byte) (StreamingLogWriter, error)

	// IsEnabled returns whether request logging is currently enabled.
	IsEnabled() bool

	// SetEnabled toggles request logging at runtime (config hot reload).
	SetEnabled(enabled bool)
}

// StreamingLogWriter handles real-time logging of streaming response chunks.
type StreamingLogWriter interface {
	// WriteChunkAsync writes a response chunk asynchronously (non-blocking).
	WriteChunkAsync(chunk []byte)

	// Close finalizes the log file and cleans up resources.
	Close() error
}

// FileRequestLogger implements RequestLogger using file-based storage.
type FileRequestLogger struct {
	enabled atomic.Bool
	logsDir string
}

// NewFileRequestLogger creates a new file-based request logger.
func NewFileRequestLogger(enabled bool, logsDir string) *FileRequestLogger {
	l := &FileRequestLogger{logsDir: logsDir}
	l.enabled.Store(enabled)
	return l
}

// IsEnabled returns whether request logging is currently enabled.
func (l *FileRequestLogger) IsEnabled() bool {
	return l.enabled.Load()
}

// SetEnabled toggles request logging at runtime.
func (l *FileRequestLogger) SetEnabled(enabled bool) {
	l.enabled.Store(enabled)
}

// LogRequest logs a complete non-streaming request/response cycle to a file.
func (l *FileRequestLogger) LogRequest(url, method string, requestHeaders map[string][]string, body []byte, statusCode int, response, apiRequest, apiResponse []byte) error {
	if !l.IsEnabled() {
		return nil
	}

	if err := l.ensureLogsDir(); err != nil {
		return fmt.Errorf("failed to create logs directory: %w", err)
	}

	filePath := filepath.Join(l.logsDir, l.generateFilename(url))

	var content strings.Builder
	content.WriteString(l.formatRequestInfo(url, method, requestHeaders, body))

	content.WriteString("=== API REQUEST ===\n")
	content.Write(apiRequest)
	content.WriteString("\n\n")

	content.WriteString("=== API RESPONSE ===\n")
	content.Write(apiResponse)
	content.WriteString("\n\n")

	content.WriteString("=== RESPONSE ===\n")
	content.WriteString(fmt.Sprintf("Status: %d\n\n", statusCode))
	content.Write(response)
	content.WriteString("\n")

	if err := os.WriteFile(filePath, []byte(content.String()), 0644); err != nil {
		return fmt.Errorf("failed to write log file: %w", err)
	}

	return nil
}

// LogStreamingRequest initiates logging for a streaming request.
func (l *FileRequestLogger) LogStreamingRequest(url, method string, headers map[string][]string, body []byte) (StreamingLogWriter, error) {
	if !l.IsEnabled() {
		return &NoOpStreamingLogWriter{}, nil
	}

	if err := l.ensureLogsDir(); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}

	filePath := filepath.Join(l.logsDir, l.generateFilename(url))

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	if _, err = file.WriteString(l.formatRequestInfo(url, method, headers, body)); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to write request info: %w", err)
	}

	writer := &FileStreamingLogWriter{
		file:      file,
		chunkChan: make(chan []byte, 100),
		closeChan: make(chan struct{}),
	}

	go writer.asyncWriter()

	return writer, nil
}

// ensureLogsDir creates the logs directory if it doesn't exist.
func (l *FileRequestLogger) ensureLogsDir() error {
	if _, err := os.Stat(l.logsDir); os.IsNotExist(err) {
		return os.MkdirAll(l.logsDir, 0755)
	}
	return nil
}

var filenameUnsafe = regexp.MustCompile(`[<>:"|?*\s/]+`)

// generateFilename creates a sanitized filename from the URL path and current timestamp.
func (l *FileRequestLogger) generateFilename(url string) string {
	path := url
	if idx := strings.Index(path, "?"); idx >= 0 {
		path = path[:idx]
	}
	path = strings.TrimPrefix(path, "/")

	sanitized := strings.Trim(filenameUnsafe.ReplaceAllString(path, "-"), "-")
	if sanitized == "" {
		sanitized = "root"
	}

	return fmt.Sprintf("%s-%d.log", sanitized, time.Now().UnixNano())
}

// formatRequestInfo creates the request information section of the log.
func (l *FileRequestLogger) formatRequestInfo(url, method string, headers map[string][]string, body []byte) string {
	var content strings.Builder

	content.WriteString("=== REQUEST INFO ===\n")
	content.WriteString(fmt.Sprintf("URL: %s\n", url))
	content.WriteString(fmt.Sprintf("Method: %s\n", method))
	content.WriteString(fmt.Sprintf("Timestamp: %s\n", time.Now().Format(time.RFC3339Nano)))
	content.WriteString("\n")

	content.WriteString("=== HEADERS ===\n")
	for key, values := range headers {
		for _, value := range values {
			content.WriteString(fmt.Sprintf("%s: %s\n", key, value))
		}
	}
	content.WriteString("\n")

	content.WriteString("=== REQUEST BODY ===\n")
	content.Write(body)
	content.WriteString("\n\n")

	return content.String()
}

// FileStreamingLogWriter implements StreamingLogWriter for file-based streaming logs.
type FileStreamingLogWriter struct {
	file      *os.File
	chunkChan chan []byte
	closeChan chan struct{}
}

// WriteChunkAsync writes a response chunk asynchronously (non-blocking).
func (w *FileStreamingLogWriter) WriteChunkAsync(chunk []byte) {
	if w.chunkChan == nil {
		return
	}

	chunkCopy := make([]byte, len(chunk))
	copy(chunkCopy, chunk)

	// Drop the chunk rather than block the relay when the writer lags.
	select {
	case w.chunkChan <- chunkCopy:
	default:
	}
}

// Close finalizes the log file and cleans up resources.
func (w *FileStreamingLogWriter) Close() error {
	if w.chunkChan != nil {
		close(w.chunkChan)
		<-w.closeChan
		w.chunkChan = nil
	}

	if w.file != nil {
		return w.file.Close()
	}

	return nil
}

// asyncWriter runs in a goroutine to handle async chunk writing.
func (w *FileStreamingLogWriter) asyncWriter() {
	defer close(w.closeChan)

	for chunk := range w.chunkChan {
		if w.file != nil {
			_, _ = w.file.Write(chunk)
			_, _ = w.file.WriteString("\n")
		}
	}
}

// NoOpStreamingLogWriter is a no-operation implementation for when logging is disabled.
type NoOpStreamingLogWriter struct{}

func (w *NoOpStreamingLogWriter) WriteChunkAsync(chunk []byte) {}
func (w *NoOpStreamingLogWriter) Close() error                { return nil }
