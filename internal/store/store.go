package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"

	"github.com/Mutter0815/Announcer/internal/campaign"
)

const (
	KindUser     = "user"
	KindTenant   = "tenant"
	KindGroup    = "group"
	KindTeam     = "team"
	KindCampaign = "campaign"
)

//go:embed schema.sql
var schema string

const (
	selectEntity = `SELECT value FROM entities WHERE kind = $1 AND key = $2`

	selectEntityForUpdate = selectEntity + ` FOR UPDATE`

	upsertEntity = `
		INSERT INTO entities (kind, key, value, updated_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (kind, key) DO UPDATE
		   SET value = EXCLUDED.value, updated_at = NOW()`

	insertEntityIfAbsent = `
		INSERT INTO entities (kind, key, value, updated_at)
		VALUES ($1,$2,$3,NOW())
		ON CONFLICT (kind, key) DO NOTHING`
)

// Store is the Postgres-backed Entity Store: one JSONB document per
// (kind, key), no scans.
type Store struct {
	DB *sql.DB
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func New(db *sql.DB) *Store { return &Store{DB: db} }

func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, schema)
	return err
}

func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.DB.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func get[T any](ctx context.Context, q querier, query, kind, key string) (*T, bool, error) {
	var raw []byte
	err := q.QueryRowContext(ctx, query, kind, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &campaign.StoreError{Op: "get", Kind: kind, Key: key, Err: err}
	}
	var v T
	if err := decode(raw, &v); err != nil {
		return nil, false, &campaign.StoreError{Op: "decode", Kind: kind, Key: key, Err: err}
	}
	return &v, true, nil
}

func upsert(ctx context.Context, q querier, kind, key string, v any) error {
	raw, err := encode(v)
	if err != nil {
		return &campaign.StoreError{Op: "encode", Kind: kind, Key: key, Err: err}
	}
	if _, err := q.ExecContext(ctx, upsertEntity, kind, key, string(raw)); err != nil {
		return &campaign.StoreError{Op: "upsert", Kind: kind, Key: key, Err: err}
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, emailID string) (*campaign.User, bool, error) {
	return get[campaign.User](ctx, s.DB, selectEntity, KindUser, emailID)
}

func (s *Store) UpsertUser(ctx context.Context, u *campaign.User) error {
	return upsert(ctx, s.DB, KindUser, u.EmailID, u)
}

func (s *Store) GetTenant(ctx context.Context, id string) (*campaign.Tenant, bool, error) {
	return get[campaign.Tenant](ctx, s.DB, selectEntity, KindTenant, id)
}

// UpdateTenant runs fn against the tenant row locked with FOR UPDATE. A
// missing tenant is created empty first, so concurrent first writers
// serialize on the same row instead of overwriting each other.
func (s *Store) UpdateTenant(ctx context.Context, id string, fn func(t *campaign.Tenant) (bool, error)) error {
	seed, err := encode(&campaign.Tenant{ID: id})
	if err != nil {
		return &campaign.StoreError{Op: "encode", Kind: KindTenant, Key: id, Err: err}
	}
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertEntityIfAbsent, KindTenant, id, string(seed)); err != nil {
			return &campaign.StoreError{Op: "insert", Kind: KindTenant, Key: id, Err: err}
		}
		t, ok, err := get[campaign.Tenant](ctx, tx, selectEntityForUpdate, KindTenant, id)
		if err != nil {
			return err
		}
		if !ok {
			return &campaign.StoreError{Op: "get", Kind: KindTenant, Key: id, Err: sql.ErrNoRows}
		}
		write, err := fn(t)
		if err != nil || !write {
			return err
		}
		return upsert(ctx, tx, KindTenant, id, t)
	})
}

func (s *Store) GetGroup(ctx context.Context, id string) (*campaign.Group, bool, error) {
	return get[campaign.Group](ctx, s.DB, selectEntity, KindGroup, id)
}

func (s *Store) UpsertGroup(ctx context.Context, g *campaign.Group) error {
	return upsert(ctx, s.DB, KindGroup, g.ID, g)
}

func (s *Store) GetTeam(ctx context.Context, id string) (*campaign.Team, bool, error) {
	return get[campaign.Team](ctx, s.DB, selectEntity, KindTeam, id)
}

func (s *Store) UpsertTeam(ctx context.Context, t *campaign.Team) error {
	return upsert(ctx, s.DB, KindTeam, t.ID, t)
}

func (s *Store) GetCampaign(ctx context.Context, id string) (*campaign.Campaign, bool, error) {
	return get[campaign.Campaign](ctx, s.DB, selectEntity, KindCampaign, id)
}

func (s *Store) UpsertCampaign(ctx context.Context, c *campaign.Campaign) error {
	return upsert(ctx, s.DB, KindCampaign, c.ID, c)
}

// UpdateCampaign runs fn against the row locked with FOR UPDATE and writes
// the campaign back only when fn asks for it.
func (s *Store) UpdateCampaign(ctx context.Context, id string, fn func(c *campaign.Campaign) (bool, error)) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		c, ok, err := get[campaign.Campaign](ctx, tx, selectEntityForUpdate, KindCampaign, id)
		if err != nil {
			return err
		}
		if !ok {
			return campaign.ErrNotFound
		}
		write, err := fn(c)
		if err != nil || !write {
			return err
		}
		return upsert(ctx, tx, KindCampaign, id, c)
	})
}
