package resilience

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// QuarantineDir is the subdirectory unreadable fallback files are moved to.
const QuarantineDir = "quarantine"

// FallbackRecord is a message that could neither be published nor dead-lettered.
type FallbackRecord struct {
	Timestamp     time.Time       `json:"timestamp"`
	Topic         string          `json:"topic"`
	Key           string          `json:"key,omitempty"`
	CorrelationID string          `json:"correlation_id"`
	MessageID     string          `json:"message_id"`
	Original      json.RawMessage `json:"original"`
	Reason        string          `json:"reason"`
	Error         string          `json:"error"`
}

// FileName is <correlation_id>-<message_id>.json. One request may publish several
// messages under the same correlation id.
func (r FallbackRecord) FileName() string {
	return filepath.Base(r.CorrelationID) + "-" + filepath.Base(r.MessageID) + ".json"
}

// FileFallback stores one file per record in Dir.
type FileFallback struct {
	Dir    string
	Logger *slog.Logger
}

func NewFileFallback(dir string, logger *slog.Logger) (*FileFallback, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create fallback dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileFallback{Dir: dir, Logger: logger}, nil
}

// Save writes rec atomically.
func (f *FileFallback) Save(rec FallbackRecord) error {
	if rec.CorrelationID == "" || rec.MessageID == "" {
		return errors.New("fallback record needs a correlation id and a message id")
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.Dir, ".fallback-*")
	if err != nil {
		return fmt.Errorf("write fallback: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write fallback: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write fallback: %w", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(f.Dir, rec.FileName()))
}

// List returns stored records, oldest first. Files that cannot be read or decoded
// are moved to QuarantineDir and logged.
func (f *FileFallback) List() ([]FallbackRecord, error) {
	entries, err := os.ReadDir(f.Dir)
	if err != nil {
		return nil, err
	}
	var out []FallbackRecord
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(f.Dir, e.Name()))
		if err != nil {
			f.quarantine(e.Name(), err)
			continue
		}
		var rec FallbackRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			f.quarantine(e.Name(), err)
			continue
		}
		if rec.FileName() != e.Name() {
			f.quarantine(e.Name(), fmt.Errorf("record names %s", rec.FileName()))
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (f *FileFallback) quarantine(name string, cause error) {
	dir := filepath.Join(f.Dir, QuarantineDir)
	err := os.MkdirAll(dir, 0o755)
	if err == nil {
		err = os.Rename(filepath.Join(f.Dir, name), filepath.Join(dir, name))
	}
	if err != nil {
		f.Logger.Error("unreadable fallback file left in place", "file", name, "cause", cause, "err", err)
		return
	}
	f.Logger.Error("quarantined unreadable fallback file", "file", name, "dir", dir, "cause", cause)
}

// Remove deletes the file of rec. A missing file is not an error.
func (f *FileFallback) Remove(rec FallbackRecord) error {
	err := os.Remove(filepath.Join(f.Dir, rec.FileName()))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Replay calls fn for each stored record and deletes those it accepts.
// It returns how many were replayed and the joined errors of the rest.
func (f *FileFallback) Replay(ctx context.Context, fn func(ctx context.Context, rec FallbackRecord) error) (int, error) {
	records, err := f.List()
	if err != nil {
		return 0, err
	}
	var (
		replayed int
		errs     []error
	)
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := fn(ctx, rec); err != nil {
			errs = append(errs, fmt.Errorf("replay %s: %w", rec.FileName(), err))
			continue
		}
		if err := f.Remove(rec); err != nil {
			errs = append(errs, err)
			continue
		}
		replayed++
	}
	return replayed, errors.Join(errs...)
}
