package store

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Mutter0815/Announcer/internal/campaign"
)

// Memory keeps encoded entities in process. Values are copied on every
// read and write, so callers never share state with the store.
type Memory struct {
	mu     sync.Mutex
	data   map[string]map[string][]byte
	writes atomic.Int64
}

func NewMemory() *Memory {
	return &Memory{data: map[string]map[string][]byte{}}
}

// Writes reports how many upserts have been applied.
func (m *Memory) Writes() int64 { return m.writes.Load() }

func memGet[T any](m *Memory, kind, key string) (*T, bool, error) {
	m.mu.Lock()
	raw, ok := m.data[kind][key]
	m.mu.Unlock()
	if !ok {
		return nil, false, nil
	}
	var v T
	if err := decode(raw, &v); err != nil {
		return nil, false, &campaign.StoreError{Op: "decode", Kind: kind, Key: key, Err: err}
	}
	return &v, true, nil
}

func (m *Memory) put(kind, key string, v any) error {
	raw, err := encode(v)
	if err != nil {
		return &campaign.StoreError{Op: "encode", Kind: kind, Key: key, Err: err}
	}
	if m.data[kind] == nil {
		m.data[kind] = map[string][]byte{}
	}
	m.data[kind][key] = raw
	m.writes.Add(1)
	return nil
}

func (m *Memory) memUpsert(kind, key string, v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(kind, key, v)
}

func (m *Memory) GetUser(ctx context.Context, emailID string) (*campaign.User, bool, error) {
	return memGet[campaign.User](m, KindUser, emailID)
}

func (m *Memory) UpsertUser(ctx context.Context, u *campaign.User) error {
	return m.memUpsert(KindUser, u.EmailID, u)
}

func (m *Memory) GetTenant(ctx context.Context, id string) (*campaign.Tenant, bool, error) {
	return memGet[campaign.Tenant](m, KindTenant, id)
}

// UpdateTenant holds the store lock for the whole read-modify-write. A
// missing tenant starts out empty.
func (m *Memory) UpdateTenant(ctx context.Context, id string, fn func(t *campaign.Tenant) (bool, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t := campaign.Tenant{ID: id}
	if raw, ok := m.data[KindTenant][id]; ok {
		if err := decode(raw, &t); err != nil {
			return &campaign.StoreError{Op: "decode", Kind: KindTenant, Key: id, Err: err}
		}
	}
	write, err := fn(&t)
	if err != nil || !write {
		return err
	}
	return m.put(KindTenant, id, &t)
}

func (m *Memory) GetGroup(ctx context.Context, id string) (*campaign.Group, bool, error) {
	return memGet[campaign.Group](m, KindGroup, id)
}

func (m *Memory) UpsertGroup(ctx context.Context, g *campaign.Group) error {
	return m.memUpsert(KindGroup, g.ID, g)
}

func (m *Memory) GetTeam(ctx context.Context, id string) (*campaign.Team, bool, error) {
	return memGet[campaign.Team](m, KindTeam, id)
}

func (m *Memory) UpsertTeam(ctx context.Context, t *campaign.Team) error {
	return m.memUpsert(KindTeam, t.ID, t)
}

func (m *Memory) GetCampaign(ctx context.Context, id string) (*campaign.Campaign, bool, error) {
	return memGet[campaign.Campaign](m, KindCampaign, id)
}

func (m *Memory) UpsertCampaign(ctx context.Context, c *campaign.Campaign) error {
	return m.memUpsert(KindCampaign, c.ID, c)
}

func (m *Memory) UpdateCampaign(ctx context.Context, id string, fn func(c *campaign.Campaign) (bool, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.data[KindCampaign][id]
	if !ok {
		return campaign.ErrNotFound
	}
	var c campaign.Campaign
	if err := decode(raw, &c); err != nil {
		return &campaign.StoreError{Op: "decode", Kind: KindCampaign, Key: id, Err: err}
	}
	write, err := fn(&c)
	if err != nil || !write {
		return err
	}
	return m.put(KindCampaign, id, &c)
}
