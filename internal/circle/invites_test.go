package circle

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bethatfriend/bethatfriend/internal/lock"
	"github.com/bethatfriend/bethatfriend/internal/mail"
	"github.com/bethatfriend/bethatfriend/internal/store"
)

func TestValidEmail(t *testing.T) {
	good := []string{"a@b.co", "first.last@example.com", "x+tag@sub.domain.org"}
	bad := []string{"", "plain", "a@b", "@b.co", "a@.co", "a b@c.de", "a@b@c.de"}
	for _, s := range good {
		if !ValidEmail(s) {
			t.Errorf("ValidEmail(%q) = false", s)
		}
	}
	for _, s := range bad {
		if ValidEmail(s) {
			t.Errorf("ValidEmail(%q) = true", s)
		}
	}
}

func TestCreateInvites(t *testing.T) {
	svc, _ := testService(t, Options{})
	mustProfile(t, svc, "alex", "Alex")
	alex := member("alex")

	created, err := svc.CreateInvites(ctx, alex, []ContactInput{
		{Name: " Sam ", Email: " Sam@Example.COM "},
		{Name: "Kim"},
	})
	if err != nil {
		t.Fatalf("CreateInvites: %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d invites, want 2", len(created))
	}
	if created[0].ContactName != "Sam" || created[0].ContactEmail == nil || *created[0].ContactEmail != "sam@example.com" {
		t.Errorf("first invite = %+v", created[0])
	}
	if created[1].ContactEmail != nil {
		t.Errorf("second invite email = %v, want nil", *created[1].ContactEmail)
	}
	for _, inv := range created {
		if inv.Status != store.InviteQueued {
			t.Errorf("status = %q, want queued", inv.Status)
		}
	}

	_, err = svc.CreateInvites(ctx, alex, []ContactInput{{Name: "Lee", Email: "lee@example.com"}, {Name: "Bad", Email: "not-an-email"}})
	wantKind(t, err, KindValidation)
	_, err = svc.CreateInvites(ctx, alex, []ContactInput{{Name: ""}})
	wantKind(t, err, KindValidation)
	_, err = svc.CreateInvites(ctx, alex, nil)
	wantKind(t, err, KindValidation)

	all, _ := svc.ListInvites(ctx, "alex")
	if len(all) != 2 {
		t.Errorf("invites after rejected batches = %d, want 2", len(all))
	}

	_, err = svc.CreateInvites(ctx, member("ghost"), []ContactInput{{Name: "Sam"}})
	wantKind(t, err, KindNotFound)
}

func sendFixture(t *testing.T, opts Options) (*Service, *store.User, store.Invite) {
	t.Helper()
	svc, _ := testService(t, opts)
	alex := mustProfile(t, svc, "alex", "Alex")
	created, err := svc.CreateInvites(ctx, member("alex"), []ContactInput{{Name: "Sam", Email: "sam@example.com"}})
	if err != nil {
		t.Fatalf("CreateInvites: %v", err)
	}
	return svc, alex, created[0]
}

func TestSendInviteDirect(t *testing.T) {
	transport := &mail.MockTransport{}
	svc, alex, inv := sendFixture(t, Options{Transport: transport})

	res, err := svc.SendInvite(ctx, member("alex"), inv.ID)
	if err != nil {
		t.Fatalf("SendInvite: %v", err)
	}
	if res.Invite.Status != store.InviteSent || res.Invite.SentAt == nil {
		t.Errorf("invite = %+v, want sent", res.Invite)
	}
	if res.MailtoURL != "" {
		t.Errorf("MailtoURL = %q, want empty for direct delivery", res.MailtoURL)
	}

	msgs := transport.Messages()
	if len(msgs) != 1 {
		t.Fatalf("sent %d emails, want 1", len(msgs))
	}
	if msgs[0].To != "sam@example.com" || msgs[0].Subject != "Sam, join Alex's Be That Friend circle!" {
		t.Errorf("email = %+v", msgs[0])
	}
	if !strings.Contains(msgs[0].HTML, "https://bethatfriend.test/join/"+alex.InviteCode) {
		t.Error("email is missing the join link")
	}

	// Re-sending a sent invite is allowed.
	if _, err := svc.SendInvite(ctx, member("alex"), inv.ID); err != nil {
		t.Errorf("re-send: %v", err)
	}
}

func TestSendInviteTransportFailure(t *testing.T) {
	transport := &mail.MockTransport{Err: errors.New("provider down")}
	svc, _, inv := sendFixture(t, Options{Transport: transport})

	_, err := svc.SendInvite(ctx, member("alex"), inv.ID)
	wantKind(t, err, KindTransport)

	invites, _ := svc.ListInvites(ctx, "alex")
	if invites[0].Status != store.InviteQueued || invites[0].SentAt != nil {
		t.Errorf("invite changed after failed send: %+v", invites[0])
	}
}

// brokenDelivery fails before anything reaches a mail provider.
type brokenDelivery struct{ err error }

func (d brokenDelivery) Deliver(context.Context, InviteMessage) (DeliveryResult, error) {
	return DeliveryResult{}, d.err
}

func TestSendInviteInternalFailureIsNotTransport(t *testing.T) {
	cause := errors.New("template exploded")
	svc, _, inv := sendFixture(t, Options{Delivery: brokenDelivery{err: cause}})

	_, err := svc.SendInvite(ctx, member("alex"), inv.ID)
	if err == nil {
		t.Fatal("SendInvite succeeded with a broken delivery")
	}
	if kind := KindOf(err); kind != "" {
		t.Errorf("kind = %q, want unclassified", kind)
	}
	if !errors.Is(err, cause) {
		t.Errorf("err = %v, want it to wrap the cause", err)
	}

	invites, _ := svc.ListInvites(ctx, "alex")
	if invites[0].Status != store.InviteQueued {
		t.Errorf("status = %q after failed send, want queued", invites[0].Status)
	}
}

func TestSendInviteMailto(t *testing.T) {
	svc, alex, inv := sendFixture(t, Options{Delivery: MailtoDelivery{}})

	res, err := svc.SendInvite(ctx, member("alex"), inv.ID)
	if err != nil {
		t.Fatalf("SendInvite: %v", err)
	}
	if !strings.HasPrefix(res.MailtoURL, "mailto:sam@example.com?") {
		t.Errorf("MailtoURL = %q", res.MailtoURL)
	}
	if !strings.Contains(res.MailtoURL, alex.InviteCode) {
		t.Error("mailto body is missing the invite code")
	}
	if res.Invite.Status != store.InviteSent {
		t.Errorf("status = %q, want sent", res.Invite.Status)
	}
}

func TestSendInviteRejections(t *testing.T) {
	svc, _, inv := sendFixture(t, Options{Transport: &mail.MockTransport{}})
	mustProfile(t, svc, "kim", "Kim")

	_, err := svc.SendInvite(ctx, member("kim"), inv.ID)
	wantKind(t, err, KindNotFound)
	_, err = svc.SendInvite(ctx, member("alex"), "missing")
	wantKind(t, err, KindNotFound)

	noEmail, _ := svc.CreateInvites(ctx, member("alex"), []ContactInput{{Name: "Lee"}})
	_, err = svc.SendInvite(ctx, member("alex"), noEmail[0].ID)
	wantKind(t, err, KindValidation)

	sam := Actor{UserID: "sam", Email: "sam@example.com", EmailConfirmed: true}
	mustProfile(t, svc, "sam", "Sam")
	alex, _ := svc.Profile(ctx, "alex")
	if _, err := svc.RequestJoin(ctx, alex.InviteCode, sam); err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	_, err = svc.SendInvite(ctx, member("alex"), inv.ID)
	wantKind(t, err, KindConflict)
}

func TestSendInviteLockHeld(t *testing.T) {
	locker := lock.NewMemory()
	transport := &mail.MockTransport{}
	svc, _, inv := sendFixture(t, Options{Transport: transport, Locker: locker})

	release, ok, err := locker.TryLock(context.Background(), "invite-send:"+inv.ID, time.Minute)
	if err != nil || !ok {
		t.Fatalf("TryLock = %v, %v", ok, err)
	}
	_, err = svc.SendInvite(ctx, member("alex"), inv.ID)
	wantKind(t, err, KindConflict)
	if len(transport.Messages()) != 0 {
		t.Error("email sent while the lock was held")
	}

	release()
	if _, err := svc.SendInvite(ctx, member("alex"), inv.ID); err != nil {
		t.Errorf("SendInvite after release: %v", err)
	}
}

func TestRequestJoinAcceptsLatestInvite(t *testing.T) {
	svc, db := testService(t, Options{})
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	db.SetClock(func() time.Time { return now })

	alex := mustProfile(t, svc, "alex", "Alex")
	older, _ := svc.CreateInvites(ctx, member("alex"), []ContactInput{{Name: "Sam", Email: "sam@example.com"}})
	now = now.Add(time.Hour)
	newer, _ := svc.CreateInvites(ctx, member("alex"), []ContactInput{{Name: "Sammy", Email: "SAM@example.com"}})

	sam := Actor{UserID: "sam", Email: "Sam@Example.com", EmailConfirmed: true}
	mustProfile(t, svc, "sam", "Sam")

	res, err := svc.RequestJoin(ctx, alex.InviteCode, sam)
	if err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if res.Connection.Status != store.ConnectionConfirmed {
		t.Errorf("connection status = %q, want confirmed", res.Connection.Status)
	}
	if res.Invite == nil || res.Invite.ID != newer[0].ID {
		t.Fatalf("accepted invite = %+v, want the newest (%s)", res.Invite, newer[0].ID)
	}

	invites, _ := svc.ListInvites(ctx, "alex")
	for _, inv := range invites {
		want := store.InviteQueued
		if inv.ID == newer[0].ID {
			want = store.InviteAccepted
		}
		if inv.Status != want {
			t.Errorf("invite %s status = %q, want %q", inv.ID, inv.Status, want)
		}
	}

	again, err := svc.RequestJoin(ctx, alex.InviteCode, sam)
	if err != nil {
		t.Fatalf("second RequestJoin: %v", err)
	}
	if again.Connection.ID != res.Connection.ID {
		t.Error("second join created another connection")
	}
	if again.Invite == nil || again.Invite.ID != older[0].ID {
		t.Errorf("second join accepted %+v, want the older invite", again.Invite)
	}
}

func TestRequestJoinWithoutInvite(t *testing.T) {
	svc, _ := testService(t, Options{})
	alex := mustProfile(t, svc, "alex", "Alex")
	mustProfile(t, svc, "sam", "Sam")

	res, err := svc.RequestJoin(ctx, alex.InviteCode, member("sam"))
	if err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if res.Invite != nil {
		t.Errorf("invite = %+v, want none", res.Invite)
	}
	conns, _ := svc.ListConnections(ctx, "sam")
	if len(conns) != 1 || conns[0].OtherID != "alex" {
		t.Errorf("connections = %+v", conns)
	}
}

func TestRequestJoinUpgradesPendingRequest(t *testing.T) {
	svc, _ := testService(t, Options{})
	alex := mustProfile(t, svc, "alex", "Alex")
	mustProfile(t, svc, "sam", "Sam")
	pending, _ := svc.RequestConnection(ctx, "sam", "alex")

	res, err := svc.RequestJoin(ctx, alex.InviteCode, member("sam"))
	if err != nil {
		t.Fatalf("RequestJoin: %v", err)
	}
	if res.Connection.ID != pending.ID || res.Connection.Status != store.ConnectionConfirmed {
		t.Errorf("connection = %+v, want %s confirmed", res.Connection, pending.ID)
	}
}

func TestRequestJoinRejections(t *testing.T) {
	svc, _ := testService(t, Options{})
	alex := mustProfile(t, svc, "alex", "Alex")

	_, err := svc.RequestJoin(ctx, alex.InviteCode, member("alex"))
	wantKind(t, err, KindValidation)

	_, err = svc.RequestJoin(ctx, alex.InviteCode, Actor{UserID: "sam", Email: "sam@example.com"})
	wantKind(t, err, KindAuthorization)

	_, err = svc.RequestJoin(ctx, alex.InviteCode, member("noprofile"))
	wantKind(t, err, KindNotFound)

	mustProfile(t, svc, "sam", "Sam")
	_, err = svc.RequestJoin(ctx, "ZZZZZZZZ", member("sam"))
	wantKind(t, err, KindNotFound)
}

func TestListOpenInvites(t *testing.T) {
	svc, _ := testService(t, Options{Delivery: MailtoDelivery{}})
	alex := mustProfile(t, svc, "alex", "Alex")
	created, _ := svc.CreateInvites(ctx, member("alex"), []ContactInput{
		{Name: "Sam", Email: "sam@example.com"},
		{Name: "Kim", Email: "kim@example.com"},
		{Name: "Lee"},
	})
	svc.SendInvite(ctx, member("alex"), created[1].ID)

	mustProfile(t, svc, "sam", "Sam")
	svc.RequestJoin(ctx, alex.InviteCode, member("sam"))

	open, err := svc.ListOpenInvites(ctx, "alex")
	if err != nil {
		t.Fatalf("ListOpenInvites: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("open invites = %d, want 2", len(open))
	}
	for _, inv := range open {
		if inv.ID == created[0].ID {
			t.Error("accepted invite listed as open")
		}
	}
}
