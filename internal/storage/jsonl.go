package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"yieldScope/internal/model"
)

type pairKey struct {
	defiName string
	pairID   string
}

// JsonlHistory appends history records to a JSONL file. The file is read once,
// on the first PairWeekData call, into a per-pair index of the last week's
// records that Append keeps current. Other writers to the same file are not
// seen after that.
type JsonlHistory struct {
	path   string
	now    func() time.Time
	logger *zap.Logger

	mu          sync.Mutex
	index       map[pairKey][]model.HistoryRecord
	tailChecked bool
}

func NewJsonlHistory(path string, logger *zap.Logger) *JsonlHistory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JsonlHistory{path: path, now: time.Now, logger: logger}
}

// Append writes one record as a JSON line.
func (s *JsonlHistory) Append(ctx context.Context, record model.HistoryRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal history record: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if !s.tailChecked {
		torn, err := endsMidLine(file)
		if err != nil {
			return err
		}
		if torn {
			s.logger.Warn("history file ends mid-line, terminating it", zap.String("path", s.path))
			if err := writer.WriteByte('\n'); err != nil {
				return fmt.Errorf("write newline: %w", err)
			}
		}
	}
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write history record: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	s.tailChecked = true

	if s.index != nil {
		key := pairKey{record.DefiName, record.PairID}
		s.index[key] = append(s.index[key], record)
	}
	return nil
}

// endsMidLine reports whether a non-empty file lacks a trailing newline,
// as left by a crash during Append.
func endsMidLine(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, fmt.Errorf("stat output file: %w", err)
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil && err != io.EOF {
		return false, fmt.Errorf("read output tail: %w", err)
	}
	return last[0] != '\n', nil
}

// PairWeekData reduces the pair's indexed records to daily samples.
func (s *JsonlHistory) PairWeekData(ctx context.Context, defiName, pairID string) ([]model.WeeklySample, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.index == nil {
		if err := s.load(ctx, now); err != nil {
			return nil, err
		}
	}

	key := pairKey{defiName, pairID}
	records := pruneBefore(s.index[key], weekCutoff(now))
	if len(records) == 0 {
		delete(s.index, key)
		return nil, nil
	}
	s.index[key] = records
	return DailySamples(records, now), nil
}

// load scans the file into the index, dropping records older than a week.
// Lines that do not decode are skipped so one torn write cannot hide the rest.
func (s *JsonlHistory) load(ctx context.Context, now time.Time) error {
	index := make(map[pairKey][]model.HistoryRecord)

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.index = index
			return nil
		}
		return fmt.Errorf("open history: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	cutoff := weekCutoff(now)
	lineNo, skipped := 0, 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec model.HistoryRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			skipped++
			s.logger.Warn("skip undecodable history line", zap.Int("line", lineNo), zap.Error(err))
			continue
		}
		if !rec.RecordedAt.After(cutoff) {
			continue
		}
		key := pairKey{rec.DefiName, rec.PairID}
		index[key] = append(index[key], rec)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan history: %w", err)
	}

	s.logger.Debug("history index loaded",
		zap.String("path", s.path),
		zap.Int("lines", lineNo),
		zap.Int("pairs", len(index)),
		zap.Int("skipped", skipped),
	)
	s.index = index
	return nil
}

// pruneBefore drops records at or before cutoff, reusing the slice.
func pruneBefore(records []model.HistoryRecord, cutoff time.Time) []model.HistoryRecord {
	kept := records[:0]
	for _, rec := range records {
		if rec.RecordedAt.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	return kept
}
