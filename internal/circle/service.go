// Package circle implements the relationship core: profiles, dates, the
// connection graph, the invite pipeline and daily reminder selection.
package circle

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bethatfriend/bethatfriend/internal/lock"
	"github.com/bethatfriend/bethatfriend/internal/mail"
	"github.com/bethatfriend/bethatfriend/internal/store"
)

// UserStore persists member profiles.
type UserStore interface {
	InsertUser(ctx context.Context, u *store.User) error
	GetUser(ctx context.Context, id string) (*store.User, error)
	GetUserByInviteCode(ctx context.Context, code string) (*store.User, error)
	ListUsers(ctx context.Context, ids []string) (map[string]store.User, error)
	UpdateUserName(ctx context.Context, id, name string) error
	SetEmailOptIn(ctx context.Context, id string, enabled bool) error
}

// DateStore persists important dates.
type DateStore interface {
	ListDates(ctx context.Context, ownerID string) ([]store.ImportantDate, error)
	GetDate(ctx context.Context, id string) (*store.ImportantDate, error)
	ReplaceDates(ctx context.Context, ownerID string, dates []store.ImportantDate) ([]store.ImportantDate, error)
	InsertDate(ctx context.Context, d *store.ImportantDate) error
	UpdateDate(ctx context.Context, d *store.ImportantDate) error
	DeleteDate(ctx context.Context, ownerID, id string) error
	ListDatesOn(ctx context.Context, days []store.MonthDay) ([]store.ImportantDate, error)
	ListCircleDates(ctx context.Context, userID string) ([]store.CircleDate, error)
}

// ConnectionStore persists the connection graph.
type ConnectionStore interface {
	GetConnection(ctx context.Context, id string) (*store.Connection, error)
	FindConnection(ctx context.Context, a, b string) (*store.Connection, error)
	InsertPendingConnection(ctx context.Context, a, b string) (*store.Connection, error)
	UpsertConfirmedConnection(ctx context.Context, a, b string) (*store.Connection, error)
	ConfirmConnection(ctx context.Context, id string) (*store.Connection, error)
	ListConnectionsFor(ctx context.Context, userID, status string) ([]store.ConnectionView, error)
	ListIncomingRequests(ctx context.Context, userID string) ([]store.ConnectionView, error)
	ListConfirmedConnectionsTouching(ctx context.Context, userIDs []string) ([]store.Connection, error)
}

// InviteStore persists invites.
type InviteStore interface {
	InsertInvites(ctx context.Context, inviterID string, invites []store.Invite) ([]store.Invite, error)
	GetInvite(ctx context.Context, id string) (*store.Invite, error)
	ListInvites(ctx context.Context, inviterID string) ([]store.Invite, error)
	ListOpenInvites(ctx context.Context, inviterID string) ([]store.Invite, error)
	MarkInviteSent(ctx context.Context, inviterID, id string) (*store.Invite, error)
	AcceptLatestInvite(ctx context.Context, inviterID, email string) (*store.Invite, error)
}

// DeliveryLedger records which reminders went out on which day.
type DeliveryLedger interface {
	HasDelivery(ctx context.Context, sendDate, recipientID, dateID string) (bool, error)
	RecordDelivery(ctx context.Context, d store.Delivery) error
}

// Store is everything the Service needs from persistence. *store.DB
// implements it.
type Store interface {
	UserStore
	DateStore
	ConnectionStore
	InviteStore
	DeliveryLedger
}

const defaultSendLockTTL = 30 * time.Second

// Options configures a Service. Zero values get sensible defaults.
type Options struct {
	// AppURL is the public base URL used to build join links.
	AppURL string
	// Delivery hands invites to the contact. Defaults to DirectDelivery over
	// Transport when one is set, MailtoDelivery otherwise.
	Delivery InviteDelivery
	// Transport delivers reminder emails.
	Transport mail.Transport
	// Locker guards against concurrent sends of the same invite.
	Locker      lock.Locker
	SendLockTTL time.Duration
	LeapDay     LeapDayPolicy
	Logger      *slog.Logger
	Now         func() time.Time
	// NewInviteCode generates candidate invite codes.
	NewInviteCode func() (string, error)
}

// Service exposes the core operations.
type Service struct {
	store         Store
	appURL        string
	delivery      InviteDelivery
	transport     mail.Transport
	locker        lock.Locker
	sendLockTTL   time.Duration
	leapDay       LeapDayPolicy
	log           *slog.Logger
	now           func() time.Time
	newInviteCode func() (string, error)

	stopCh   chan struct{}
	stopOnce sync.Once
	timers   sync.WaitGroup
}

// New creates a Service over st.
func New(st Store, opts Options) *Service {
	s := &Service{
		store:         st,
		appURL:        strings.TrimRight(opts.AppURL, "/"),
		delivery:      opts.Delivery,
		transport:     opts.Transport,
		locker:        opts.Locker,
		sendLockTTL:   opts.SendLockTTL,
		leapDay:       opts.LeapDay,
		log:           opts.Logger,
		now:           opts.Now,
		newInviteCode: opts.NewInviteCode,
		stopCh:        make(chan struct{}),
	}
	if s.delivery == nil {
		if s.transport != nil {
			s.delivery = DirectDelivery{Transport: s.transport}
		} else {
			s.delivery = MailtoDelivery{}
		}
	}
	if s.locker == nil {
		s.locker = lock.NewMemory()
	}
	if s.sendLockTTL <= 0 {
		s.sendLockTTL = defaultSendLockTTL
	}
	if s.leapDay == "" {
		s.leapDay = LeapDayExact
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newInviteCode == nil {
		s.newInviteCode = GenerateInviteCode
	}
	return s
}

// JoinURL returns the link a contact follows to join the owner of code.
func (s *Service) JoinURL(code string) string {
	return s.appURL + "/join/" + code
}
