package http

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"itsmd/internal/domain"
)

// memorySrRepo backs the endpoint tests without a database.
type memorySrRepo struct {
	mu     sync.Mutex
	nextID int
	items  map[string]domain.ServiceRequest
}

func newMemorySrRepo() *memorySrRepo {
	return &memorySrRepo{items: map[string]domain.ServiceRequest{}}
}

func (r *memorySrRepo) Create(_ context.Context, sr domain.ServiceRequest) (domain.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[sr.SrNo]; ok {
		return domain.ServiceRequest{}, domain.ErrConflict
	}
	r.nextID++
	sr.ID = fmt.Sprintf("id-%d", r.nextID)
	r.items[sr.SrNo] = sr
	return sr, nil
}

func (r *memorySrRepo) GetBySrNo(_ context.Context, srNo string) (domain.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sr, ok := r.items[srNo]
	if !ok {
		return domain.ServiceRequest{}, domain.ErrNotFound
	}
	return sr, nil
}

func (r *memorySrRepo) Update(_ context.Context, sr domain.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[sr.SrNo]; !ok {
		return domain.ErrNotFound
	}
	r.items[sr.SrNo] = sr
	return nil
}

func (r *memorySrRepo) Delete(_ context.Context, srNo string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[srNo]; !ok {
		return domain.ErrNotFound
	}
	delete(r.items, srNo)
	return nil
}

func (r *memorySrRepo) List(_ context.Context, filter domain.SrFilter) ([]domain.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ServiceRequest
	for _, sr := range r.items {
		if filter.Stage != "" && sr.Stage != filter.Stage {
			continue
		}
		if filter.RequesterID != "" && sr.RequesterID != filter.RequesterID {
			continue
		}
		if filter.ChargerID != "" && sr.ChargerID != filter.ChargerID {
			continue
		}
		out = append(out, sr)
	}
	return out, nil
}

func (r *memorySrRepo) Count(ctx context.Context, filter domain.SrFilter) (int64, error) {
	items, err := r.List(ctx, filter)
	if err != nil {
		return 0, err
	}
	return int64(len(items)), nil
}

func (r *memorySrRepo) NextSrNo(_ context.Context, prefix string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for srNo := range r.items {
		if strings.HasPrefix(srNo, prefix) {
			count++
		}
	}
	return fmt.Sprintf("%s%03d", prefix, count+1), nil
}
