// Package announce owns the campaign lifecycle: drafting, the one-way
// Draft to Sent transition, and recipient acknowledgements.
package announce

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/internal/dispatch"
)

type Store interface {
	dispatch.Directory

	GetCampaign(ctx context.Context, id string) (*campaign.Campaign, bool, error)
	UpsertCampaign(ctx context.Context, c *campaign.Campaign) error
	UpdateCampaign(ctx context.Context, id string, fn func(c *campaign.Campaign) (bool, error)) error

	GetTenant(ctx context.Context, id string) (*campaign.Tenant, bool, error)
	UpdateTenant(ctx context.Context, id string, fn func(t *campaign.Tenant) (bool, error)) error
	GetGroup(ctx context.Context, id string) (*campaign.Group, bool, error)
	UpsertGroup(ctx context.Context, g *campaign.Group) error
	UpsertUser(ctx context.Context, u *campaign.User) error
	UpsertTeam(ctx context.Context, t *campaign.Team) error
}

type dispatcher interface {
	Dispatch(ctx context.Context, c *campaign.Campaign) (campaign.Tally, error)
}

type Service struct {
	store  Store
	engine dispatcher
	sends  keyedMutex

	Now   func() time.Time
	NewID func() string
	// PersistTimeout bounds the write of partial results after the caller
	// has cancelled a send.
	PersistTimeout time.Duration
}

func New(st Store, engine dispatcher) *Service {
	return &Service{
		store:          st,
		engine:         engine,
		Now:            time.Now,
		NewID:          uuid.NewString,
		PersistTimeout: 10 * time.Second,
	}
}

// keyedMutex serializes sends and draft edits per campaign id inside this
// process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = map[string]*keyedLock{}
	}
	l := k.locks[key]
	if l == nil {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
