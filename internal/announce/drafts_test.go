package announce

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/internal/notify/mocks"
	"github.com/Mutter0815/Announcer/internal/store"
)

func TestCreateDraft_SnapshotsRosterAndIndexesTenant(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	s := New(st, nil)
	s.NewID = func() string { return "c-new" }

	if err := s.UpsertGroup(ctx, "ten", &campaign.Group{ID: "g1", Users: []string{"u1", "u2"}}); err != nil {
		t.Fatal(err)
	}
	if err := s.RegisterUser(ctx, "ten", &campaign.User{EmailID: "boss@org.com", BotConversationID: "29:b", Name: "The Boss"}); err != nil {
		t.Fatal(err)
	}

	c, err := s.CreateDraft(ctx, campaign.CreateCampaignReq{
		TenantID:    "ten",
		Title:       "Town hall",
		Body:        "Friday 3pm",
		AuthorEmail: "boss@org.com",
		Groups:      []string{"g1"},
		Channels:    []campaign.ChannelRef{{TeamID: "t1", ChannelID: "19:gen"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if c.ID != "c-new" || c.Status != campaign.StatusDraft || c.Author.Name != "The Boss" {
		t.Fatalf("unexpected draft %+v", c)
	}
	if c.Recipients.Len() != 3 || c.Recipients.Channels[0].Channel.ID != "19:gen" {
		t.Fatalf("unexpected recipients %+v", c.Recipients)
	}

	// Later roster changes do not reach the stored campaign.
	if err := s.UpsertGroup(ctx, "ten", &campaign.Group{ID: "g1", Users: []string{"u9"}}); err != nil {
		t.Fatal(err)
	}
	stored, _, _ := st.GetCampaign(ctx, "c-new")
	if stored.Recipients.Groups[0].Users[0].ID != "u1" {
		t.Fatalf("roster snapshot changed: %+v", stored.Recipients.Groups[0])
	}

	tn, _, _ := st.GetTenant(ctx, "ten")
	if len(tn.Announcements) != 1 || tn.Announcements[0] != "c-new" {
		t.Fatalf("tenant index not updated: %+v", tn)
	}
	if len(tn.Groups) != 1 || len(tn.Users) != 1 {
		t.Fatalf("tenant membership indices wrong: %+v", tn)
	}
}

func TestCreateDraft_EditKeepsIndexAndRejectsSent(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	s := New(st, nil)
	s.NewID = func() string { return "c1" }

	if _, err := s.CreateDraft(ctx, campaign.CreateCampaignReq{TenantID: "ten", Title: "v1", Body: "b"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateDraft(ctx, campaign.CreateCampaignReq{ID: "c1", TenantID: "ten", Title: "v2", Body: "b"}); err != nil {
		t.Fatal(err)
	}
	tn, _, _ := st.GetTenant(ctx, "ten")
	if len(tn.Announcements) != 1 {
		t.Fatalf("edit must not add a second index entry: %+v", tn.Announcements)
	}
	c, _, _ := st.GetCampaign(ctx, "c1")
	if c.Title != "v2" {
		t.Fatalf("edit not saved: %+v", c)
	}

	c.Status = campaign.StatusSent
	if err := st.UpsertCampaign(ctx, c); err != nil {
		t.Fatal(err)
	}
	if _, err := s.CreateDraft(ctx, campaign.CreateCampaignReq{ID: "c1", TenantID: "ten", Title: "v3", Body: "b"}); !errors.Is(err, campaign.ErrAlreadySent) {
		t.Fatalf("want ErrAlreadySent, got %v", err)
	}
}

func TestCreateDraft_UnknownGroup(t *testing.T) {
	s := New(store.NewMemory(), nil)
	_, err := s.CreateDraft(context.Background(), campaign.CreateCampaignReq{TenantID: "ten", Title: "x", Body: "y", Groups: []string{"ghost"}})
	if !errors.Is(err, campaign.ErrGroupNotFound) {
		t.Fatalf("want ErrGroupNotFound, got %v", err)
	}
}

func TestListDraftsAndGet(t *testing.T) {
	st := store.NewMemory()
	ctx := context.Background()
	s := New(st, nil)

	ids := []string{"c1", "c2"}
	s.NewID = func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}
	for _, title := range []string{"first", "second"} {
		if _, err := s.CreateDraft(ctx, campaign.CreateCampaignReq{TenantID: "ten", Title: title, Body: "b", AuthorEmail: "a@org.com"}); err != nil {
			t.Fatal(err)
		}
	}
	c2, _, _ := st.GetCampaign(ctx, "c2")
	c2.Status = campaign.StatusSent
	_ = st.UpsertCampaign(ctx, c2)

	drafts, err := s.ListDrafts(ctx, "ten")
	if err != nil {
		t.Fatal(err)
	}
	if len(drafts) != 1 || drafts[0].ID != "c1" || drafts[0].Author != "a@org.com" {
		t.Fatalf("unexpected drafts %+v", drafts)
	}

	empty, err := s.ListDrafts(ctx, "other")
	if err != nil || len(empty) != 0 {
		t.Fatalf("unknown tenant should list nothing, got %v %v", empty, err)
	}

	if _, err := s.Get(ctx, "zzz"); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	d, err := s.Get(ctx, "c1")
	if err != nil || d.Title != "first" {
		t.Fatalf("unexpected details %+v %v", d, err)
	}
}

// pausingStore blocks the first GetGroup until release is closed.
type pausingStore struct {
	*store.Memory
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func newPausingStore(m *store.Memory) *pausingStore {
	return &pausingStore{Memory: m, entered: make(chan struct{}), release: make(chan struct{})}
}

func (p *pausingStore) GetGroup(ctx context.Context, id string) (*campaign.Group, bool, error) {
	p.once.Do(func() {
		close(p.entered)
		<-p.release
	})
	return p.Memory.GetGroup(ctx, id)
}

func editReq() campaign.CreateCampaignReq {
	return campaign.CreateCampaignReq{ID: "c1", TenantID: "ten", Title: "Edited", Body: "b", Groups: []string{"g1"}}
}

func TestSend_WaitsForInFlightEdit(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)
	st := store.NewMemory()
	seed(t, st, "u1")
	draft(t, st, "c1", members("g1", "u1"))
	if err := st.UpsertGroup(context.Background(), &campaign.Group{ID: "g1", Users: []string{"u1"}}); err != nil {
		t.Fatal(err)
	}
	n.EXPECT().SendToUser(gomock.Any(), userTarget("u1"), gomock.Any()).Return("m1", nil).Times(1)

	ps := newPausingStore(st)
	s := newService(ps, n)

	editErr := make(chan error, 1)
	go func() {
		_, err := s.CreateDraft(context.Background(), editReq())
		editErr <- err
	}()
	<-ps.entered

	sendErr := make(chan error, 1)
	go func() {
		_, err := s.Send(context.Background(), "c1")
		sendErr <- err
	}()

	select {
	case err := <-sendErr:
		t.Fatalf("send must wait for the edit, returned %v", err)
	case <-time.After(20 * time.Millisecond):
	}

	close(ps.release)
	if err := <-editErr; err != nil {
		t.Fatal(err)
	}
	if err := <-sendErr; err != nil {
		t.Fatal(err)
	}

	c, _, _ := st.GetCampaign(context.Background(), "c1")
	if c.Status != campaign.StatusSent || c.Title != "Edited" {
		t.Fatalf("want the edited campaign sent, got %+v", c)
	}
	if c.Recipients.Groups[0].Users[0].MessageID != "m1" {
		t.Fatal("delivery record lost")
	}
}

func TestCreateDraft_EditNeverRevertsSent(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)
	st := store.NewMemory()
	seed(t, st, "u1")
	draft(t, st, "c1", members("g1", "u1"))
	if err := st.UpsertGroup(context.Background(), &campaign.Group{ID: "g1", Users: []string{"u1"}}); err != nil {
		t.Fatal(err)
	}
	n.EXPECT().SendToUser(gomock.Any(), userTarget("u1"), gomock.Any()).Return("m1", nil).Times(1)

	// Two services over one store stand in for two processes: no shared lock.
	ps := newPausingStore(st)
	editor := newService(ps, n)
	sender := newService(st, n)

	editErr := make(chan error, 1)
	go func() {
		_, err := editor.CreateDraft(context.Background(), editReq())
		editErr <- err
	}()
	<-ps.entered

	if _, err := sender.Send(context.Background(), "c1"); err != nil {
		t.Fatal(err)
	}
	close(ps.release)
	if err := <-editErr; !errors.Is(err, campaign.ErrAlreadySent) {
		t.Fatalf("want ErrAlreadySent, got %v", err)
	}

	c, _, _ := st.GetCampaign(context.Background(), "c1")
	if c.Status != campaign.StatusSent || c.Recipients.Groups[0].Users[0].MessageID != "m1" {
		t.Fatalf("sent campaign was overwritten: %+v", c)
	}
	if _, err := sender.Send(context.Background(), "c1"); !errors.Is(err, campaign.ErrAlreadySent) {
		t.Fatalf("want ErrAlreadySent on resend, got %v", err)
	}
}

func TestTenantIndex_ConcurrentRegistrations(t *testing.T) {
	st := store.NewMemory()
	s := New(st, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u := &campaign.User{EmailID: fmt.Sprintf("u%d@org.com", i), BotConversationID: "29:x"}
			if err := s.RegisterUser(context.Background(), "ten", u); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	tn, ok, err := st.GetTenant(context.Background(), "ten")
	if err != nil || !ok {
		t.Fatalf("tenant missing: ok=%v err=%v", ok, err)
	}
	if len(tn.Users) != 50 {
		t.Fatalf("want 50 indexed users, got %d", len(tn.Users))
	}
}
