// Package cache keeps read-mostly rows in process memory.
package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/jwalitptl/scheduler-api/internal/model"
	"github.com/jwalitptl/scheduler-api/internal/repository"
)

const listKey = "doctors:all"

// DoctorRepository serves Get and List from a TTL cache. Writes go straight
// to the wrapped repository and flush the cache. Cached values are stored
// by value so callers cannot mutate shared state.
type DoctorRepository struct {
	next  repository.DoctorRepository
	cache *gocache.Cache
}

func NewDoctorRepository(next repository.DoctorRepository, ttl, cleanup time.Duration) *DoctorRepository {
	return &DoctorRepository{
		next:  next,
		cache: gocache.New(ttl, cleanup),
	}
}

func doctorKey(id uuid.UUID) string {
	return "doctor:" + id.String()
}

func (r *DoctorRepository) Create(ctx context.Context, doctor *model.Doctor) error {
	if err := r.next.Create(ctx, doctor); err != nil {
		return err
	}
	r.cache.Flush()
	return nil
}

func (r *DoctorRepository) Get(ctx context.Context, id uuid.UUID) (*model.Doctor, error) {
	if v, ok := r.cache.Get(doctorKey(id)); ok {
		doc := v.(model.Doctor)
		return &doc, nil
	}

	doc, err := r.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(doctorKey(id), *doc)
	return doc, nil
}

func (r *DoctorRepository) List(ctx context.Context) ([]*model.Doctor, error) {
	if v, ok := r.cache.Get(listKey); ok {
		return expand(v.([]model.Doctor)), nil
	}

	doctors, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := make([]model.Doctor, len(doctors))
	for i, d := range doctors {
		snapshot[i] = *d
	}
	r.cache.SetDefault(listKey, snapshot)
	return doctors, nil
}

func (r *DoctorRepository) Count(ctx context.Context) (int, error) {
	return r.next.Count(ctx)
}

func (r *DoctorRepository) DeleteAll(ctx context.Context) error {
	defer r.cache.Flush()
	return r.next.DeleteAll(ctx)
}

func expand(snapshot []model.Doctor) []*model.Doctor {
	out := make([]*model.Doctor, len(snapshot))
	for i := range snapshot {
		d := snapshot[i]
		out[i] = &d
	}
	return out
}
