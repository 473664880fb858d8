package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/expenseflow/expense-ocr/internal/common"
	"github.com/expenseflow/expense-ocr/internal/entity"
)

// In-memory store implementations. Used by tests and by one-shot CLI runs
// that have no database behind them.

type MemoryCorrections struct {
	mu   sync.RWMutex
	rows []*entity.Correction
}

func NewMemoryCorrections() *MemoryCorrections {
	return &MemoryCorrections{}
}

func (s *MemoryCorrections) Append(_ context.Context, c *entity.Correction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.rows = append(s.rows, &cp)
	return nil
}

func (s *MemoryCorrections) ListSince(_ context.Context, since time.Time) ([]*entity.Correction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Correction
	for _, c := range s.rows {
		if !c.CreatedAt.Before(since) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryCorrections) Stats(_ context.Context) (*entity.CorrectionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stats := &entity.CorrectionStats{ByField: map[string]int{}}
	var confSum float64
	for _, c := range s.rows {
		stats.TotalCorrections++
		confSum += float64(c.OCRConfidence)
		for _, f := range c.FieldsCorrected {
			stats.ByField[f]++
		}
	}
	if stats.TotalCorrections > 0 {
		stats.AvgConfidenceWhenCorrected = float32(confSum / float64(stats.TotalCorrections))
	}
	return stats, nil
}

type MemoryTemplates struct {
	mu   sync.RWMutex
	rows map[string]*entity.TemplateVersion
}

func NewMemoryTemplates() *MemoryTemplates {
	return &MemoryTemplates{rows: map[string]*entity.TemplateVersion{}}
}

func (s *MemoryTemplates) Insert(_ context.Context, v *entity.TemplateVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[v.Version]; ok {
		return common.NewAppError("TEMPLATE_EXISTS", "version already stored", common.ErrInvalidInput)
	}
	cp := *v
	s.rows[v.Version] = &cp
	return nil
}

func (s *MemoryTemplates) List(_ context.Context) ([]*entity.TemplateVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.TemplateVersion, 0, len(s.rows))
	for _, v := range s.rows {
		cp := *v
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryTemplates) Get(_ context.Context, version string) (*entity.TemplateVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.rows[version]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (s *MemoryTemplates) SetDeployed(_ context.Context, version string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	target, ok := s.rows[version]
	if !ok {
		return common.ErrNotFound
	}
	for _, v := range s.rows {
		v.Deployed = false
	}
	target.Deployed = true
	return nil
}

func (s *MemoryTemplates) Deployed(_ context.Context) (*entity.TemplateVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.rows {
		if v.Deployed {
			cp := *v
			return &cp, nil
		}
	}
	return nil, nil
}

type MemoryJobs struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]*entity.RetrainingJob
}

func NewMemoryJobs() *MemoryJobs {
	return &MemoryJobs{rows: map[uuid.UUID]*entity.RetrainingJob{}}
}

func (s *MemoryJobs) Insert(_ context.Context, j *entity.RetrainingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *j
	s.rows[j.ID] = &cp
	return nil
}

func (s *MemoryJobs) Update(_ context.Context, j *entity.RetrainingJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[j.ID]; !ok {
		return common.ErrNotFound
	}
	cp := *j
	s.rows[j.ID] = &cp
	return nil
}

func (s *MemoryJobs) Get(_ context.Context, id uuid.UUID) (*entity.RetrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.rows[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *MemoryJobs) List(_ context.Context) ([]*entity.RetrainingJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.RetrainingJob, 0, len(s.rows))
	for _, j := range s.rows {
		cp := *j
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type MemoryExpenses struct {
	mu   sync.RWMutex
	rows []*entity.Expense
}

func NewMemoryExpenses(seed ...*entity.Expense) *MemoryExpenses {
	s := &MemoryExpenses{}
	s.rows = append(s.rows, seed...)
	return s
}

func (s *MemoryExpenses) Add(e *entity.Expense) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, e)
}

func (s *MemoryExpenses) ListWindow(_ context.Context, userID uuid.UUID, from, to time.Time, excludeID *uuid.UUID) ([]*entity.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Expense
	for _, e := range s.rows {
		if e.UserID != userID {
			continue
		}
		if excludeID != nil && e.ID == *excludeID {
			continue
		}
		if e.Date.Before(from) || e.Date.After(to) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}
