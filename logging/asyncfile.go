package logging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/log"
)

// ErrClosed is returned when writing to a closed AsyncFile
var ErrClosed = errors.New("async file is closed")

// AsyncFile provides non-blocking file writing capabilities
type AsyncFile struct {
	file    *os.File
	log     log.Logger
	queue   chan []byte
	wg      sync.WaitGroup
	mu      sync.Mutex
	stopped bool
}

// NewAsyncFile creates the file at path, along with any missing parent
// directories, and starts the background writer.
func NewAsyncFile(path string, logger log.Logger) (*AsyncFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file %s: %w", path, err)
	}
	if logger == nil {
		logger = log.Root()
	}

	af := &AsyncFile{
		file:  file,
		log:   logger,
		queue: make(chan []byte, 100),
	}

	af.wg.Add(1)
	go af.processQueue()

	return af, nil
}

// Name returns the path of the underlying file
func (af *AsyncFile) Name() string {
	return af.file.Name()
}

// Write queues data to be written asynchronously. The data is copied.
func (af *AsyncFile) Write(data []byte) error {
	af.mu.Lock()
	defer af.mu.Unlock()

	if af.stopped {
		return ErrClosed
	}

	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	af.queue <- dataCopy
	return nil
}

func (af *AsyncFile) processQueue() {
	defer af.wg.Done()

	for data := range af.queue {
		if _, err := af.file.Write(data); err != nil {
			af.log.Error("Error writing to file", "file", af.file.Name(), "err", err)
		}
	}
}

// Close stops the async writer, flushes queued data and closes the file.
// Closing twice is safe.
func (af *AsyncFile) Close() error {
	af.mu.Lock()
	alreadyStopped := af.stopped
	if !af.stopped {
		af.stopped = true
		close(af.queue)
	}
	af.mu.Unlock()

	af.wg.Wait()
	if alreadyStopped {
		return nil
	}
	return af.file.Close()
}

// SafeFilename converts a string to a safe filename by replacing problematic
// characters.
func SafeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
		"\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	return replacer.Replace(strings.ReplaceAll(s, "...", ""))
}
