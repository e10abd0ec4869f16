package app

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/dkeye/TeamChat/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *PollEngine {
	e := NewPollEngine(memory.New())
	e.now = func() time.Time { return time.Date(2026, time.May, 4, 12, 0, 0, 0, time.UTC) }
	return e
}

func TestCreatePollValidation(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	_, err := e.CreatePoll(ctx, domain.RoomGeneral, "Lunch?", []string{"Pizza", "  "}, "Helen")
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)

	_, err = e.CreatePoll(ctx, domain.RoomGeneral, "   ", []string{"Pizza", "Salad"}, "Helen")
	assert.ErrorIs(t, err, domain.ErrInvalidOptions)

	p, err := e.CreatePoll(ctx, domain.RoomGeneral, " Lunch? ", []string{" Pizza", "", "Salad "}, "Helen")
	require.NoError(t, err)
	assert.Equal(t, "Lunch?", p.Question)
	require.Len(t, p.Options, 2)
	assert.Equal(t, "Pizza", p.Options[0].Label)
	assert.Equal(t, "Salad", p.Options[1].Label)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Helen", p.CreatedBy)
	assert.False(t, p.IsClosed)
}

func TestVoteScenario(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	p, err := e.CreatePoll(ctx, domain.RoomGeneral, "Lunch?", []string{"Pizza", "Salad"}, "Helen")
	require.NoError(t, err)

	p, err = e.Vote(ctx, p.ID, domain.RoomGeneral, 0, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Options[0].Votes)
	assert.Equal(t, []string{"Bob"}, p.Options[0].Voters)

	p, err = e.Vote(ctx, p.ID, domain.RoomGeneral, 1, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 0, p.Options[0].Votes)
	assert.Empty(t, p.Options[0].Voters)
	assert.Equal(t, 1, p.Options[1].Votes)
	assert.Equal(t, []string{"Bob"}, p.Options[1].Voters)

	p, err = e.Vote(ctx, p.ID, domain.RoomGeneral, 1, "Bob")
	require.NoError(t, err)
	assert.Equal(t, 1, p.Options[1].Votes)

	_, err = e.Vote(ctx, p.ID, domain.RoomGeneral, 2, "Bob")
	assert.ErrorIs(t, err, domain.ErrInvalidOption)
	_, err = e.Vote(ctx, p.ID, domain.RoomGeneral, -1, "Bob")
	assert.ErrorIs(t, err, domain.ErrInvalidOption)

	_, err = e.Vote(ctx, p.ID, domain.RoomHRAnnouncements, 0, "Bob")
	assert.ErrorIs(t, err, domain.ErrRoomMismatch)
	_, err = e.Vote(ctx, "missing", domain.RoomGeneral, 0, "Bob")
	assert.ErrorIs(t, err, domain.ErrPollNotFound)

	closed, err := e.ClosePoll(ctx, p.ID, domain.RoomGeneral)
	require.NoError(t, err)
	assert.True(t, closed.IsClosed)
	assert.Equal(t, 1, closed.Options[1].Votes)

	_, err = e.Vote(ctx, p.ID, domain.RoomGeneral, 0, "Carol")
	assert.ErrorIs(t, err, domain.ErrPollClosed)
	_, err = e.ClosePoll(ctx, p.ID, domain.RoomGeneral)
	assert.ErrorIs(t, err, domain.ErrPollAlreadyClosed)
}

func TestOneActivePollPerRoom(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	first, err := e.CreatePoll(ctx, domain.RoomGeneral, "Lunch?", []string{"Pizza", "Salad"}, "Helen")
	require.NoError(t, err)

	_, err = e.CreatePoll(ctx, domain.RoomGeneral, "Dinner?", []string{"Soup", "Steak"}, "Helen")
	assert.ErrorIs(t, err, domain.ErrPollAlreadyActive)

	_, err = e.CreatePoll(ctx, domain.RoomHRAnnouncements, "Offsite?", []string{"Yes", "No"}, "Helen")
	assert.NoError(t, err)

	_, err = e.ClosePoll(ctx, first.ID, domain.RoomGeneral)
	require.NoError(t, err)

	_, ok, err := e.ActivePoll(ctx, domain.RoomGeneral)
	require.NoError(t, err)
	assert.False(t, ok)

	second, err := e.CreatePoll(ctx, domain.RoomGeneral, "Dinner?", []string{"Soup", "Steak"}, "Helen")
	require.NoError(t, err)
	active, ok, err := e.ActivePoll(ctx, domain.RoomGeneral)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, second.ID, active.ID)
}

func TestConcurrentVotesKeepCounts(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()
	p, err := e.CreatePoll(ctx, domain.RoomGeneral, "Lunch?", []string{"Pizza", "Salad", "Soup"}, "Helen")
	require.NoError(t, err)

	const voters = 40
	var wg sync.WaitGroup
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("user-%d", i)
			for round := 0; round < 3; round++ {
				_, err := e.Vote(ctx, p.ID, domain.RoomGeneral, (i+round)%3, name)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	final, ok, err := e.ActivePoll(ctx, domain.RoomGeneral)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, final.Consistent())
	total := 0
	for _, o := range final.Options {
		total += o.Votes
	}
	assert.Equal(t, voters, total)
}

func TestConcurrentCreateOnlyOneWins(t *testing.T) {
	ctx := context.Background()
	e := newTestEngine()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		active  int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := e.CreatePoll(ctx, domain.RoomGeneral, fmt.Sprintf("Q%d", i), []string{"A", "B"}, "Helen")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case assert.ErrorIs(t, err, domain.ErrPollAlreadyActive):
				active++
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 1, created)
	assert.Equal(t, 9, active)
}
