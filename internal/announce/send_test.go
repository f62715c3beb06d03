package announce

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/mock/gomock"

	"github.com/Mutter0815/Announcer/internal/campaign"
	"github.com/Mutter0815/Announcer/internal/dispatch"
	"github.com/Mutter0815/Announcer/internal/notify"
	"github.com/Mutter0815/Announcer/internal/notify/mocks"
	"github.com/Mutter0815/Announcer/internal/store"
)

var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func seed(t *testing.T, st *store.Memory, users ...string) {
	t.Helper()
	ctx := context.Background()
	for _, u := range users {
		if err := st.UpsertUser(ctx, &campaign.User{EmailID: u, BotConversationID: "conv-" + u, Name: u}); err != nil {
			t.Fatal(err)
		}
	}
}

func draft(t *testing.T, st *store.Memory, id string, groups ...campaign.GroupRecipient) {
	t.Helper()
	c := &campaign.Campaign{ID: id, TenantID: "ten", Status: campaign.StatusDraft, Title: "Hello", Body: "World"}
	c.Recipients.Groups = groups
	if err := st.UpsertCampaign(context.Background(), c); err != nil {
		t.Fatal(err)
	}
}

func members(id string, users ...string) campaign.GroupRecipient {
	g := campaign.GroupRecipient{GroupID: id}
	for _, u := range users {
		g.Users = append(g.Users, campaign.RecipientDetails{ID: u})
	}
	return g
}

func newService(st Store, n notify.Notifier) *Service {
	s := New(st, dispatch.New(st, n, dispatch.Options{Workers: 4, ServiceURL: "https://svc"}))
	s.Now = func() time.Time { return fixedNow }
	return s
}

func userTarget(u string) notify.UserTarget {
	return notify.UserTarget{ServiceURL: "https://svc", TenantID: "ten", ConversationID: "conv-" + u}
}

func TestSend_OverlappingGroups(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)
	st := store.NewMemory()
	seed(t, st, "u1", "u2")
	draft(t, st, "c1", members("A", "u1", "u2"), members("B", "u2", "u3"))

	n.EXPECT().SendToUser(gomock.Any(), userTarget("u1"), gomock.Any()).Return("m1", nil)
	n.EXPECT().SendToUser(gomock.Any(), userTarget("u2"), gomock.Any()).Return("m2", nil)

	s := newService(st, n)
	tally, err := s.Send(context.Background(), "c1")
	if err != nil {
		t.Fatal(err)
	}
	if tally != (campaign.Tally{Success: 2, Failure: 1, Duplicate: 1}) {
		t.Fatalf("unexpected tally %+v", tally)
	}

	c, _, _ := st.GetCampaign(context.Background(), "c1")
	if c.Status != campaign.StatusSent || c.SentAt == nil || !c.SentAt.Equal(fixedNow) {
		t.Fatalf("campaign should be sent: %+v", c)
	}
	b := c.Recipients.Groups[1].Users
	if b[0].FailureMessage != campaign.FailureDuplicate || b[1].FailureMessage != campaign.FailureNotInstalled {
		t.Fatalf("unexpected group B records %+v", b)
	}
	if c.Recipients.Groups[0].Users[1].MessageID != "m2" {
		t.Fatalf("u2 handle not persisted: %+v", c.Recipients.Groups[0].Users[1])
	}

	// A second send is a terminal no-op; the mock fails on any delivery.
	if _, err := s.Send(context.Background(), "c1"); !errors.Is(err, campaign.ErrAlreadySent) {
		t.Fatalf("want ErrAlreadySent, got %v", err)
	}
	again, _, _ := st.GetCampaign(context.Background(), "c1")
	if again.Status != campaign.StatusSent {
		t.Fatal("status must never go back to draft")
	}
}

func TestSend_NotFound(t *testing.T) {
	s := newService(store.NewMemory(), mocks.NewMockNotifier(gomock.NewController(t)))
	if _, err := s.Send(context.Background(), "missing"); !errors.Is(err, campaign.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestSend_NoRecipients(t *testing.T) {
	st := store.NewMemory()
	draft(t, st, "c1")
	before := st.Writes()

	s := newService(st, mocks.NewMockNotifier(gomock.NewController(t)))
	if _, err := s.Send(context.Background(), "c1"); !errors.Is(err, campaign.ErrNoRecipients) {
		t.Fatalf("want ErrNoRecipients, got %v", err)
	}
	if st.Writes() != before {
		t.Fatal("no store writes expected")
	}
	c, _, _ := st.GetCampaign(context.Background(), "c1")
	if c.Status != campaign.StatusDraft {
		t.Fatal("campaign must stay draft")
	}
}

type brokenStore struct {
	*store.Memory
	err error
}

func (b *brokenStore) GetUser(ctx context.Context, id string) (*campaign.User, bool, error) {
	return nil, false, b.err
}

func TestSend_StoreErrorAbortsWithoutWrite(t *testing.T) {
	st := store.NewMemory()
	draft(t, st, "c1", members("A", "u1"))
	before := st.Writes()

	down := &campaign.StoreError{Op: "get", Kind: "user", Key: "u1", Err: errors.New("timeout")}
	s := newService(&brokenStore{Memory: st, err: down}, mocks.NewMockNotifier(gomock.NewController(t)))

	if _, err := s.Send(context.Background(), "c1"); !campaign.IsStoreError(err) {
		t.Fatalf("want store error, got %v", err)
	}
	if st.Writes() != before {
		t.Fatal("a failed pass must not be persisted")
	}
}

func TestSend_CancelPersistsPartialAsDraft(t *testing.T) {
	ctrl := gomock.NewController(t)
	n := mocks.NewMockNotifier(ctrl)
	st := store.NewMemory()
	seed(t, st, "u1", "u2")
	draft(t, st, "c1", members("A", "u1", "u2"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	n.EXPECT().SendToUser(gomock.Any(), userTarget("u1"), gomock.Any()).
		DoAndReturn(func(context.Context, notify.UserTarget, notify.Content) (string, error) {
			cancel()
			return "m1", nil
		})

	s := New(st, dispatch.New(st, n, dispatch.Options{Workers: 1, ServiceURL: "https://svc"}))
	tally, err := s.Send(ctx, "c1")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("want context.Canceled, got %v", err)
	}
	if tally.Success != 1 {
		t.Fatalf("unexpected tally %+v", tally)
	}

	c, _, _ := st.GetCampaign(context.Background(), "c1")
	if c.Status != campaign.StatusDraft {
		t.Fatal("interrupted send must leave the campaign in draft")
	}
	if c.Recipients.Groups[0].Users[0].MessageID != "m1" {
		t.Fatal("partial outcome should be persisted")
	}
	if c.Recipients.Groups[0].Users[1].MessageID != "" {
		t.Fatal("u2 was never sent")
	}
}

type slowDispatcher struct {
	calls atomic.Int32
	gate  chan struct{}
}

func (d *slowDispatcher) Dispatch(ctx context.Context, c *campaign.Campaign) (campaign.Tally, error) {
	d.calls.Add(1)
	<-d.gate
	return campaign.Tally{Success: c.Recipients.Len()}, nil
}

func TestSend_SerializedPerCampaign(t *testing.T) {
	st := store.NewMemory()
	draft(t, st, "c1", members("A", "u1"))
	d := &slowDispatcher{gate: make(chan struct{})}
	s := New(st, d)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.Send(context.Background(), "c1")
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(d.gate)
	wg.Wait()

	if d.calls.Load() != 1 {
		t.Fatalf("want a single dispatch pass, got %d", d.calls.Load())
	}
	sent, already := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			sent++
		case errors.Is(err, campaign.ErrAlreadySent):
			already++
		default:
			t.Fatalf("unexpected error %v", err)
		}
	}
	if sent != 1 || already != 1 {
		t.Fatalf("want one send and one AlreadySent, got %d/%d", sent, already)
	}
}

type hookDispatcher struct{ during func() }

func (d hookDispatcher) Dispatch(ctx context.Context, c *campaign.Campaign) (campaign.Tally, error) {
	d.during()
	c.Recipients.Groups[0].Users[0].MarkDelivered("late")
	return campaign.Tally{Success: 1}, nil
}

func TestSend_FinalWriteRefusesCampaignSentElsewhere(t *testing.T) {
	st := store.NewMemory()
	draft(t, st, "c1", members("A", "u1"))

	// Another process marks the campaign Sent while this pass is running.
	s := New(st, hookDispatcher{during: func() {
		_ = st.UpdateCampaign(context.Background(), "c1", func(c *campaign.Campaign) (bool, error) {
			c.Status = campaign.StatusSent
			c.Recipients.Groups[0].Users[0].MarkDelivered("first")
			return true, nil
		})
	}})

	if _, err := s.Send(context.Background(), "c1"); !errors.Is(err, campaign.ErrAlreadySent) {
		t.Fatalf("want ErrAlreadySent, got %v", err)
	}
	c, _, _ := st.GetCampaign(context.Background(), "c1")
	if c.Recipients.Groups[0].Users[0].MessageID != "first" {
		t.Fatalf("the other writer's outcome was overwritten: %+v", c.Recipients.Groups[0].Users[0])
	}
}
