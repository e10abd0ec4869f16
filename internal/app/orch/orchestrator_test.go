package orch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dkeye/TeamChat/internal/app"
	"github.com/dkeye/TeamChat/internal/core"
	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/dkeye/TeamChat/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	Type    string          `json:"type"`
	Message *domain.Message `json:"message"`
	Poll    *domain.Poll    `json:"poll"`
}

type fakeConn struct {
	mu     sync.Mutex
	events []event
	full   bool
	closed bool
}

func (c *fakeConn) TrySend(f core.Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.full || c.closed {
		return errors.New("send buffer full")
	}
	var e event
	if err := json.Unmarshal(f, &e); err != nil {
		return err
	}
	c.events = append(c.events, e)
	return nil
}

func (c *fakeConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

// drain returns and forgets everything received so far.
func (c *fakeConn) drain() []event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.events
	c.events = nil
	return out
}

func texts(events []event) []string {
	var out []string
	for _, e := range events {
		if e.Type == core.EventMessage {
			out = append(out, e.Message.Text)
		}
	}
	return out
}

type fixture struct {
	orch  *Orchestrator
	store *memory.Store
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	bot := app.NewHRBot()
	return &fixture{
		ctx:   context.Background(),
		store: store,
		orch: &Orchestrator{
			Registry: app.NewRegistry(),
			Rooms:    app.NewRoomManager(domain.Rooms),
			Policy:   app.SimplePolicy{},
			Polls:    app.NewPollEngine(store),
			Bot:      bot,
			Store:    store,
			Events:   core.NopPublisher{},
			Now:      func() time.Time { return time.Date(2026, time.April, 1, 9, 0, 0, 0, time.UTC) },
		},
	}
}

func (f *fixture) connect(sid core.SessionID) *fakeConn {
	conn := &fakeConn{}
	f.orch.Connect(core.NewMemberSession(sid, domain.NewMember(nil), conn), func() {})
	return conn
}

func (f *fixture) join(t *testing.T, sid core.SessionID, room string, name string, role domain.Role) *fakeConn {
	t.Helper()
	conn := f.connect(sid)
	require.NoError(t, f.orch.Join(f.ctx, sid, room, domain.User{Name: name, Role: role}))
	return conn
}

func hr(name string) *domain.User { return &domain.User{Name: name, Role: domain.RoleHR} }

func TestJoinDeliversHistoryThenAnnouncement(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "a", "general", "Alice", domain.RoleEmployee)
	require.NoError(t, f.orch.PostMessage(f.ctx, "a", "general", "hello"))
	alice.drain()

	bob := f.join(t, "b", "general", "Bob", domain.RoleEmployee)

	assert.Equal(t, []string{"Alice joined the channel", "hello", "Bob joined the channel"}, texts(bob.drain()))
	assert.Equal(t, []string{"Bob joined the channel"}, texts(alice.drain()))
}

func TestJoinValidation(t *testing.T) {
	f := newFixture(t)
	f.connect("a")

	err := f.orch.Join(f.ctx, "a", "random", domain.User{Name: "Alice", Role: domain.RoleEmployee})
	assert.ErrorIs(t, err, domain.ErrInvalidRoom)

	err = f.orch.Join(f.ctx, "a", "general", domain.User{Name: " ", Role: domain.RoleEmployee})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)

	err = f.orch.Join(f.ctx, "a", "general", domain.User{Name: "Alice", Role: "Admin"})
	assert.ErrorIs(t, err, domain.ErrInvalidUser)
}

func TestMessagesStayInTheirRoom(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "a", "general", "Alice", domain.RoleEmployee)
	bob := f.join(t, "b", "general", "Bob", domain.RoleEmployee)
	carol := f.join(t, "c", "hr-announcements", "Carol", domain.RoleHR)
	alice.drain()
	bob.drain()
	carol.drain()

	require.NoError(t, f.orch.PostMessage(f.ctx, "a", "general", "hi all"))

	got := bob.drain()
	require.Len(t, got, 1)
	assert.Equal(t, "Alice", got[0].Message.User)
	assert.Equal(t, domain.RoleEmployee, got[0].Message.Role)
	assert.Equal(t, domain.RoomGeneral, got[0].Message.Room)
	assert.Equal(t, []string{"hi all"}, texts(alice.drain()))
	assert.Empty(t, carol.drain())

	stored, err := f.store.GetMessages(f.ctx, domain.RoomGeneral, 0)
	require.NoError(t, err)
	assert.Equal(t, "hi all", stored[len(stored)-1].Text)
}

func TestAnnouncementsAreHROnly(t *testing.T) {
	f := newFixture(t)
	emp := f.join(t, "e", "hr-announcements", "Eve", domain.RoleEmployee)
	boss := f.join(t, "h", "hr-announcements", "Helen", domain.RoleHR)
	emp.drain()
	boss.drain()

	err := f.orch.PostMessage(f.ctx, "e", "hr-announcements", "let me in")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Empty(t, emp.drain())
	assert.Empty(t, boss.drain())

	require.NoError(t, f.orch.PostMessage(f.ctx, "h", "hr-announcements", "Holiday on Friday"))
	assert.Equal(t, []string{"Holiday on Friday"}, texts(emp.drain()))
	assert.Equal(t, []string{"Holiday on Friday"}, texts(boss.drain()))
}

func TestPostRequiresJoinedRoom(t *testing.T) {
	f := newFixture(t)
	f.connect("x")
	assert.ErrorIs(t, f.orch.PostMessage(f.ctx, "x", "general", "hi"), domain.ErrNotInRoom)

	f.join(t, "a", "general", "Alice", domain.RoleEmployee)
	assert.ErrorIs(t, f.orch.PostMessage(f.ctx, "a", "hr-announcements", "hi"), domain.ErrNotInRoom)
	assert.ErrorIs(t, f.orch.PostMessage(f.ctx, "a", "general", "   "), domain.ErrInvalidMessage)
}

func TestSlashCommandGetsBotReply(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "a", "general", "Alice", domain.RoleEmployee)
	alice.drain()

	require.NoError(t, f.orch.PostMessage(f.ctx, "a", "general", "/payslip march 2025"))
	got := alice.drain()
	require.Len(t, got, 2)
	assert.Equal(t, "/payslip march 2025", got[0].Message.Text)
	assert.Equal(t, domain.BotUser, got[1].Message.User)
	assert.Equal(t, domain.RoomGeneral, got[1].Message.Room)
	assert.Contains(t, got[1].Message.Text, "https://intranet.example.com/payslip/alice/March-2025")
}

func TestRoomSwitchLeavesPreviousRoom(t *testing.T) {
	f := newFixture(t)
	alice := f.join(t, "a", "general", "Alice", domain.RoleEmployee)
	bob := f.join(t, "b", "general", "Bob", domain.RoleEmployee)
	alice.drain()
	bob.drain()

	require.NoError(t, f.orch.Join(f.ctx, "a", "hr-announcements", domain.User{Name: "Alice", Role: domain.RoleEmployee}))
	assert.Equal(t, []string{"Alice left the channel"}, texts(bob.drain()))

	require.NoError(t, f.orch.PostMessage(f.ctx, "b", "general", "still here?"))
	assert.NotContains(t, texts(alice.drain()), "still here?")

	general, _ := f.orch.Rooms.Get(domain.RoomGeneral)
	assert.Equal(t, 1, general.MemberCount())
}

func TestDisconnectIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.join(t, "a", "general", "Alice", domain.RoleEmployee)
	bob := f.join(t, "b", "general", "Bob", domain.RoleEmployee)
	bob.drain()

	f.orch.OnDisconnect(f.ctx, "a")
	f.orch.OnDisconnect(f.ctx, "a")

	assert.Equal(t, []string{"Alice left the channel"}, texts(bob.drain()))
	general, _ := f.orch.Rooms.Get(domain.RoomGeneral)
	assert.Equal(t, 1, general.MemberCount())
	assert.Equal(t, 1, f.orch.Registry.Count())
}

func TestDisconnectBeforeJoinIsSilent(t *testing.T) {
	f := newFixture(t)
	bob := f.join(t, "b", "general", "Bob", domain.RoleEmployee)
	bob.drain()
	f.connect("x")

	f.orch.OnDisconnect(f.ctx, "x")
	assert.Empty(t, bob.drain())
}

func TestPollFlow(t *testing.T) {
	f := newFixture(t)
	helen := f.join(t, "h", "general", "Helen", domain.RoleHR)
	bob := f.join(t, "b", "general", "Bob", domain.RoleEmployee)
	helen.drain()
	bob.drain()

	require.NoError(t, f.orch.CreatePoll(f.ctx, "h", "general", "Lunch?", []string{"Pizza", "Salad"}, hr("Helen")))
	got := bob.drain()
	require.Len(t, got, 2)
	assert.Equal(t, core.EventPollActive, got[0].Type)
	poll := got[0].Poll
	require.NotNil(t, poll)
	assert.Equal(t, "Lunch?", poll.Question)
	assert.Equal(t, `Helen created a new poll: "Lunch?"`, got[1].Message.Text)
	helen.drain()

	require.NoError(t, f.orch.Vote(f.ctx, "b", poll.ID, "general", 1))
	update := helen.drain()
	require.Len(t, update, 1)
	assert.Equal(t, core.EventPollUpdate, update[0].Type)
	assert.Equal(t, []string{"Bob"}, update[0].Poll.Options[1].Voters)
	bob.drain()

	// a late joiner sees the open poll after history
	carol := f.join(t, "c", "general", "Carol", domain.RoleEmployee)
	late := carol.drain()
	var sawPoll bool
	for _, e := range late {
		if e.Type == core.EventPollActive {
			sawPoll = true
			assert.Equal(t, 1, e.Poll.Options[1].Votes)
		}
	}
	assert.True(t, sawPoll)

	bob.drain()
	helen.drain()
	require.NoError(t, f.orch.GetPoll(f.ctx, "c", "general"))
	single := carol.drain()
	require.Len(t, single, 1)
	assert.Equal(t, poll.ID, single[0].Poll.ID)
	assert.Empty(t, bob.drain())

	require.NoError(t, f.orch.ClosePoll(f.ctx, "h", poll.ID, "general", hr("Helen")))
	closed := bob.drain()
	require.Len(t, closed, 2)
	assert.True(t, closed[0].Poll.IsClosed)
	assert.Equal(t, `Poll "Lunch?" has been closed by Helen`, closed[1].Message.Text)

	assert.ErrorIs(t, f.orch.Vote(f.ctx, "b", poll.ID, "general", 0), domain.ErrPollClosed)

	carol.drain()
	require.NoError(t, f.orch.GetPoll(f.ctx, "c", "general"))
	assert.Empty(t, carol.drain())
}

func TestPollPermissions(t *testing.T) {
	f := newFixture(t)
	f.join(t, "h", "general", "Helen", domain.RoleHR)
	f.join(t, "e", "general", "Eve", domain.RoleEmployee)

	// employee session claiming HR in the payload
	err := f.orch.CreatePoll(f.ctx, "e", "general", "Q?", []string{"A", "B"}, hr("Eve"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	// HR session without a claimed user
	err = f.orch.CreatePoll(f.ctx, "h", "general", "Q?", []string{"A", "B"}, nil)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = f.orch.CreatePoll(f.ctx, "h", "general", "Q?", []string{"A"}, hr("Helen"))
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)

	require.NoError(t, f.orch.CreatePoll(f.ctx, "h", "general", "Q?", []string{"A", "B"}, hr("Helen")))
	err = f.orch.CreatePoll(f.ctx, "h", "general", "Q2?", []string{"A", "B"}, hr("Helen"))
	assert.ErrorIs(t, err, domain.ErrPollAlreadyActive)

	poll, ok, err := f.orch.Polls.ActivePoll(f.ctx, domain.RoomGeneral)
	require.NoError(t, err)
	require.True(t, ok)

	err = f.orch.ClosePoll(f.ctx, "e", poll.ID, "general", hr("Eve"))
	assert.ErrorIs(t, err, domain.ErrForbidden)

	err = f.orch.Vote(f.ctx, "e", poll.ID, "general", 5)
	assert.ErrorIs(t, err, domain.ErrInvalidOption)

	err = f.orch.Vote(f.ctx, "e", poll.ID, "hr-announcements", 0)
	assert.ErrorIs(t, err, domain.ErrNotInRoom)
}

func TestSlowMemberIsKicked(t *testing.T) {
	f := newFixture(t)
	f.join(t, "a", "general", "Alice", domain.RoleEmployee)
	slow := f.join(t, "s", "general", "Slow", domain.RoleEmployee)
	slow.mu.Lock()
	slow.full = true
	slow.mu.Unlock()

	require.NoError(t, f.orch.PostMessage(f.ctx, "a", "general", "ping"))

	slow.mu.Lock()
	defer slow.mu.Unlock()
	assert.True(t, slow.closed)
}

// flakyStore fails history reads while broken is set.
type flakyStore struct {
	*memory.Store
	broken atomic.Bool
}

func (s *flakyStore) GetMessages(ctx context.Context, room domain.RoomName, limit int) ([]domain.Message, error) {
	if s.broken.Load() {
		return nil, errors.New("database is locked")
	}
	return s.Store.GetMessages(ctx, room, limit)
}

func TestFailedRoomSwitchKeepsPreviousRoom(t *testing.T) {
	f := newFixture(t)
	store := &flakyStore{Store: f.store}
	f.orch.Store = store

	f.join(t, "a", "general", "Alice", domain.RoleEmployee)
	bob := f.join(t, "b", "general", "Bob", domain.RoleEmployee)
	bob.drain()

	store.broken.Store(true)
	err := f.orch.Join(f.ctx, "a", "hr-announcements", domain.User{Name: "Alice", Role: domain.RoleEmployee})
	require.Error(t, err)

	assert.Empty(t, bob.drain())
	room, _, ok := f.orch.Registry.RoomOf("a")
	require.True(t, ok)
	assert.Equal(t, domain.RoomGeneral, room)
	general, _ := f.orch.Rooms.Get(domain.RoomGeneral)
	assert.Equal(t, 2, general.MemberCount())

	store.broken.Store(false)
	require.NoError(t, f.orch.PostMessage(f.ctx, "a", "general", "still here"))
	assert.Equal(t, []string{"still here"}, texts(bob.drain()))
}
