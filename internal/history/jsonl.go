package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/OSchengdu/swissK-agent/internal/task"
)

// JSONLStore appends one JSON object per line to <dir>/<session>.chat.json,
// or <dir>/<session>.media.json for image-mode exchanges.
type JSONLStore struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

type jsonlRecord struct {
	Input  string    `json:"input"`
	Output string    `json:"output"`
	Mode   string    `json:"mode"`
	Time   time.Time `json:"time,omitempty"`
}

// NewJSONLStore returns a store rooted at dir.
func NewJSONLStore(dir string) *JSONLStore {
	return &JSONLStore{dir: dir, now: time.Now}
}

// FileFor returns the file an entry of mode lands in.
func (s *JSONLStore) FileFor(session string, mode task.Mode) string {
	suffix := ".chat.json"
	if mode == task.ModeImage {
		suffix = ".media.json"
	}
	return filepath.Join(s.dir, SafeName(session)+suffix)
}

// SafeName maps a session name onto a single file name component so a
// name such as "../x" stays inside the history directory.
func SafeName(session string) string {
	return strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == filepath.Separator || r == 0 {
			return '_'
		}
		return r
	}, session)
}

func (s *JSONLStore) Append(_ context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	line, err := json.Marshal(jsonlRecord{Input: e.Input, Output: e.Output, Mode: e.Mode.String(), Time: e.CreatedAt.UTC()})
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.FileFor(e.Session, e.Mode), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// Recent merges the chat and media files of session by time.
func (s *JSONLStore) Recent(_ context.Context, session string, n int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var all []Entry
	for _, mode := range []task.Mode{task.ModeText, task.ModeImage} {
		entries, err := readJSONL(s.FileFor(session, mode), session)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (s *JSONLStore) Close() error { return nil }

func readJSONL(path, session string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var rec jsonlRecord
		if err := json.Unmarshal(sc.Bytes(), &rec); err != nil {
			continue
		}
		mode, err := task.ParseMode(rec.Mode)
		if err != nil {
			mode = task.ModeText
		}
		out = append(out, Entry{Session: session, Input: rec.Input, Output: rec.Output, Mode: mode, CreatedAt: rec.Time})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return out, nil
}
