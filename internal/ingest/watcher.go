package ingest

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"github.com/loupe-view/loupe/internal/logging"
	"github.com/loupe-view/loupe/internal/session"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher tails a live transcript file and delivers newly appended messages
// in arrival order. Bursts of file events are coalesced so one agent turn
// does not produce dozens of single-message batches.
type Watcher struct {
	path     string
	offset   int64
	debounce time.Duration

	parser  *Parser
	fs      *fsnotify.Watcher
	logger  zerolog.Logger
	batches chan []session.Message
}

// NewWatcher creates a watcher that reads from the given byte offset,
// usually the size consumed by the initial load.
func NewWatcher(path string, offset int64, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}
	if err := fs.Add(path); err != nil {
		fs.Close()
		return nil, fmt.Errorf("watch transcript: %w", err)
	}

	return &Watcher{
		path:     path,
		offset:   offset,
		debounce: debounce,
		parser:   NewParser(),
		fs:       fs,
		logger:   logging.WithTranscript(path),
		batches:  make(chan []session.Message, 4),
	}, nil
}

// Batches is the channel of appended message batches. Closed when the
// watcher stops.
func (w *Watcher) Batches() <-chan []session.Message {
	return w.batches
}

// Run tails the transcript until the context is canceled.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.batches)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("file watcher error")

		case <-timer.C:
			batch := w.drain()
			if len(batch) == 0 {
				continue
			}
			select {
			case w.batches <- batch:
			case <-ctx.Done():
				return
			}
		}
	}
}

// Close stops the underlying file watcher.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

// drain reads complete lines appended since the last offset. A trailing
// partial line stays unread until the writer finishes it.
func (w *Watcher) drain() []session.Message {
	file, err := os.Open(w.path)
	if err != nil {
		w.logger.Warn().Err(err).Msg("cannot reopen transcript")
		return nil
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		w.logger.Warn().Err(err).Msg("cannot stat transcript")
		return nil
	}
	if info.Size() < w.offset {
		// Truncated or rewritten; start over.
		w.logger.Info().Int64("size", info.Size()).Msg("transcript truncated, rereading")
		w.offset = 0
	}

	if _, err := file.Seek(w.offset, io.SeekStart); err != nil {
		w.logger.Warn().Err(err).Msg("cannot seek transcript")
		return nil
	}

	reader := bufio.NewReader(file)
	var batch []session.Message
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			break
		}
		w.offset += int64(len(line))

		raw := bytes.TrimSpace(line)
		if len(raw) == 0 {
			continue
		}

		msg, perr := w.parser.ParseLine(raw)
		if perr != nil {
			w.logger.Warn().
				Err(perr).
				Str("excerpt", logging.Redact(excerpt(raw))).
				Msg("skipping malformed appended line")
			continue
		}
		batch = append(batch, msg)
	}

	return batch
}

// LoadFile parses the transcript at path and returns the byte offset a
// watcher should continue from.
func LoadFile(path string) (*Result, int64, error) {
	parser := NewParser()
	result, err := parser.ParseFile(path)
	if err != nil {
		return nil, 0, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("stat transcript: %w", err)
	}
	return result, info.Size(), nil
}
