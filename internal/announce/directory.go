package announce

import (
	"context"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/pkg/logx"
)

// RegisterUser records the conversation address a user can be reached on
// and indexes the user under its tenant.
func (s *Service) RegisterUser(ctx context.Context, tenantID string, u *campaign.User) error {
	if err := s.store.UpsertUser(ctx, u); err != nil {
		return err
	}
	if err := s.index(ctx, tenantID, func(t *campaign.Tenant) bool { return t.AddUser(u.EmailID) }); err != nil {
		return err
	}
	logx.L().Infow("user_registered", "tenant_id", tenantID, "user_id", u.EmailID)
	return nil
}

func (s *Service) RegisterTeam(ctx context.Context, tenantID string, team *campaign.Team) error {
	if err := s.store.UpsertTeam(ctx, team); err != nil {
		return err
	}
	logx.L().Infow("team_registered", "tenant_id", tenantID, "team_id", team.ID)
	return nil
}

// UpsertGroup replaces a roster. Campaigns drafted earlier keep the roster
// they copied.
func (s *Service) UpsertGroup(ctx context.Context, tenantID string, g *campaign.Group) error {
	if err := s.store.UpsertGroup(ctx, g); err != nil {
		return err
	}
	if err := s.index(ctx, tenantID, func(t *campaign.Tenant) bool { return t.AddGroup(g.ID) }); err != nil {
		return err
	}
	logx.L().Infow("group_saved", "tenant_id", tenantID, "group_id", g.ID, "users", len(g.Users))
	return nil
}

// index appends to one of the tenant's indices inside a single store
// update. add reports whether the tenant changed.
func (s *Service) index(ctx context.Context, tenantID string, add func(t *campaign.Tenant) bool) error {
	return s.store.UpdateTenant(ctx, tenantID, func(t *campaign.Tenant) (bool, error) {
		return add(t), nil
	})
}
