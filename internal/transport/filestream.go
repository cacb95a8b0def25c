package transport

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/chatview"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// FileStream replays a JSONL event log and follows appends to it. Each line
// is one event in the websocket frame shape.
type FileStream struct {
	path   string
	logger *slog.Logger

	offset  int64
	partial []byte
}

// NewFileStream follows the log at path.
func NewFileStream(path string, logger *slog.Logger) *FileStream {
	return &FileStream{path: path, logger: core.OrDiscard(logger)}
}

// Run delivers every event already in the file, then new ones as they are
// appended, until ctx is cancelled.
func (f *FileStream) Run(ctx context.Context, out chan<- tea.Msg) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	// Watch the directory so a log created or replaced later is noticed.
	if err := watcher.Add(filepath.Dir(f.path)); err != nil {
		return err
	}

	emit(ctx, out, chatview.ConnectionMsg{State: types.ConnectionConnected})
	if err := f.drain(ctx, out); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(f.path) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := f.drain(ctx, out); err != nil {
					return err
				}
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				f.offset = 0
				f.partial = nil
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.logger.Warn("event log watcher error", "path", f.path, "err", err)
		}
	}
}

// drain reads complete lines past the last offset. A truncated file is read
// again from the start.
func (f *FileStream) drain(ctx context.Context, out chan<- tea.Msg) error {
	file, err := os.Open(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	if info.Size() < f.offset {
		f.offset = 0
		f.partial = nil
	}
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.offset += int64(len(data))

	buf := append(f.partial, data...)
	last := bytes.LastIndexByte(buf, '\n')
	if last < 0 {
		f.partial = buf
		return nil
	}
	f.partial = append([]byte(nil), buf[last+1:]...)

	scanner := bufio.NewScanner(bytes.NewReader(buf[:last+1]))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var event types.Event
		if err := json.Unmarshal(line, &event); err != nil {
			f.logger.Warn("dropping malformed event line", "path", f.path, "err", err)
			continue
		}
		if !emit(ctx, out, chatview.EventMsg{Event: event}) {
			return ctx.Err()
		}
	}
	return scanner.Err()
}
