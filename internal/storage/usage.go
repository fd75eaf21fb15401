package storage

import (
	"context"
	"errors"
	"reels-generator/internal/types"
	"sync"
	"time"

	"gorm.io/gorm"
)

// ErrAllModelsExceeded is returned by BestModel when every candidate is
// rate limited inside the current window.
var ErrAllModelsExceeded = errors.New("all candidate models exceeded their rate limit")

// UsageWindow is how long a recorded call counts against a model.
const UsageWindow = time.Minute

// rotation hands out candidates round robin, skipping excluded ones.
type rotation struct {
	mu     sync.Mutex
	cursor int
}

func (r *rotation) next(candidates []string, excluded func(string) (bool, error)) (string, error) {
	if len(candidates) == 0 {
		return "", errors.New("no candidate models")
	}
	r.mu.Lock()
	start := r.cursor
	r.mu.Unlock()

	for i := 0; i < len(candidates); i++ {
		idx := (start + i) % len(candidates)
		skip, err := excluded(candidates[idx])
		if err != nil {
			return "", err
		}
		if skip {
			continue
		}
		r.mu.Lock()
		r.cursor = idx + 1
		r.mu.Unlock()
		return candidates[idx], nil
	}
	return "", ErrAllModelsExceeded
}

// DBUsageStore keeps usage rows in sqlite so limits survive restarts.
type DBUsageStore struct {
	db        *gorm.DB
	perMinute int
	now       func() time.Time
	rotation  rotation
}

// NewDBUsageStore returns a store over db. perMinute > 0 flags a model as
// exceeded once it was called that many times within UsageWindow.
func NewDBUsageStore(db *gorm.DB, perMinute int) *DBUsageStore {
	return &DBUsageStore{db: db, perMinute: perMinute, now: time.Now}
}

func (s *DBUsageStore) RecordUsage(ctx context.Context, modelID string, exceeded bool) error {
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("created_at <= ?", now.Add(-UsageWindow)).Delete(&types.ApiUsage{}).Error; err != nil {
			return err
		}
		if s.perMinute > 0 && !exceeded {
			var count int64
			if err := tx.Model(&types.ApiUsage{}).Where("model_id = ?", modelID).Count(&count).Error; err != nil {
				return err
			}
			exceeded = count+1 >= int64(s.perMinute)
		}
		return tx.Create(&types.ApiUsage{ModelId: modelID, Exceeded: exceeded, CreatedAt: now}).Error
	})
}

func (s *DBUsageStore) Exceeded(ctx context.Context, modelID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&types.ApiUsage{}).
		Where("model_id = ? AND exceeded = ? AND created_at > ?", modelID, true, s.now().Add(-UsageWindow)).
		Count(&count).Error
	return count > 0, err
}

func (s *DBUsageStore) BestModel(ctx context.Context, candidates []string) (string, error) {
	return s.rotation.next(candidates, func(model string) (bool, error) {
		return s.Exceeded(ctx, model)
	})
}

// Close is a no-op; the connection belongs to the caller.
func (s *DBUsageStore) Close() error { return nil }

// MemoryUsageStore is the in-process UsageStore used in tests and when no
// database is configured.
type MemoryUsageStore struct {
	mu        sync.Mutex
	entries   []types.ApiUsage
	perMinute int
	now       func() time.Time
	rotation  rotation
}

func NewMemoryUsageStore(perMinute int) *MemoryUsageStore {
	return &MemoryUsageStore{perMinute: perMinute, now: time.Now}
}

func (s *MemoryUsageStore) prune(now time.Time) {
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.CreatedAt.After(now.Add(-UsageWindow)) {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

func (s *MemoryUsageStore) RecordUsage(_ context.Context, modelID string, exceeded bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.prune(now)
	if s.perMinute > 0 && !exceeded {
		count := 0
		for _, e := range s.entries {
			if e.ModelId == modelID {
				count++
			}
		}
		exceeded = count+1 >= s.perMinute
	}
	s.entries = append(s.entries, types.ApiUsage{ModelId: modelID, Exceeded: exceeded, CreatedAt: now})
	return nil
}

func (s *MemoryUsageStore) Exceeded(_ context.Context, modelID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prune(s.now())
	for _, e := range s.entries {
		if e.ModelId == modelID && e.Exceeded {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryUsageStore) BestModel(ctx context.Context, candidates []string) (string, error) {
	return s.rotation.next(candidates, func(model string) (bool, error) {
		return s.Exceeded(ctx, model)
	})
}

func (s *MemoryUsageStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

var (
	_ types.UsageStore = (*DBUsageStore)(nil)
	_ types.UsageStore = (*MemoryUsageStore)(nil)
)
