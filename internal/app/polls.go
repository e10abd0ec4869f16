package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/dkeye/TeamChat/internal/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// PollEngine owns poll lifecycle. It is the only writer of poll state.
// Every mutation re-reads the poll and runs under its room's lock, so the
// one-open-poll and votes==len(voters) invariants hold under parallel voters.
type PollEngine struct {
	store storage.Store
	locks roomLocks
	now   func() time.Time
	newID func() string
}

func NewPollEngine(store storage.Store) *PollEngine {
	return &PollEngine{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

// roomLocks hands out one mutex per room, created on first use.
type roomLocks struct {
	mu    sync.Mutex
	locks map[domain.RoomName]*sync.Mutex
}

func (l *roomLocks) lock(room domain.RoomName) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[domain.RoomName]*sync.Mutex)
	}
	m, ok := l.locks[room]
	if !ok {
		m = &sync.Mutex{}
		l.locks[room] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

func (e *PollEngine) CreatePoll(ctx context.Context, room domain.RoomName, question string, options []string, createdBy string) (domain.Poll, error) {
	question = strings.TrimSpace(question)
	labels := make([]string, 0, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			labels = append(labels, o)
		}
	}
	if question == "" || len(labels) < domain.MinPollOptions {
		return domain.Poll{}, domain.ErrInvalidOptions
	}

	unlock := e.locks.lock(room)
	defer unlock()

	if _, err := e.store.GetActivePoll(ctx, room); err == nil {
		return domain.Poll{}, domain.ErrPollAlreadyActive
	} else if !errors.Is(err, storage.ErrNotFound) {
		return domain.Poll{}, fmt.Errorf("load active poll: %w", err)
	}

	poll := domain.Poll{
		ID:        e.newID(),
		Room:      room,
		Question:  question,
		Options:   make([]domain.PollOption, len(labels)),
		CreatedAt: e.now(),
		CreatedBy: createdBy,
	}
	for i, label := range labels {
		poll.Options[i] = domain.PollOption{Label: label, Voters: []string{}}
	}

	saved, err := e.store.SavePoll(ctx, poll)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return domain.Poll{}, domain.ErrPollAlreadyActive
		}
		return domain.Poll{}, fmt.Errorf("save poll: %w", err)
	}
	log.Info().Str("module", "app.polls").Str("poll", saved.ID).Str("room", string(room)).Str("by", createdBy).Msg("poll created")
	return saved, nil
}

// load fetches a poll and checks it belongs to room.
func (e *PollEngine) load(ctx context.Context, pollID string, room domain.RoomName) (domain.Poll, error) {
	poll, err := e.store.GetPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Poll{}, domain.ErrPollNotFound
		}
		return domain.Poll{}, fmt.Errorf("load poll: %w", err)
	}
	if poll.Room != room {
		return domain.Poll{}, domain.ErrRoomMismatch
	}
	return poll, nil
}

// Vote moves voter's single vote to optionIndex. Voting for the option
// already held is a net no-op but is still written back.
func (e *PollEngine) Vote(ctx context.Context, pollID string, room domain.RoomName, optionIndex int, voter string) (domain.Poll, error) {
	unlock := e.locks.lock(room)
	defer unlock()

	poll, err := e.load(ctx, pollID, room)
	if err != nil {
		return domain.Poll{}, err
	}
	if poll.IsClosed {
		return domain.Poll{}, domain.ErrPollClosed
	}
	if optionIndex < 0 || optionIndex >= len(poll.Options) {
		return domain.Poll{}, domain.ErrInvalidOption
	}

	options := domain.CloneOptions(poll.Options)
	for i := range options {
		kept := options[i].Voters[:0]
		for _, v := range options[i].Voters {
			if v == voter {
				options[i].Votes--
				continue
			}
			kept = append(kept, v)
		}
		options[i].Voters = kept
	}
	options[optionIndex].Voters = append(options[optionIndex].Voters, voter)
	options[optionIndex].Votes++

	updated, err := e.store.UpdatePoll(ctx, pollID, storage.PollUpdate{Options: options})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Poll{}, domain.ErrPollNotFound
		}
		return domain.Poll{}, fmt.Errorf("update poll: %w", err)
	}
	log.Debug().Str("module", "app.polls").Str("poll", pollID).Int("option", optionIndex).Str("voter", voter).Msg("vote recorded")
	return updated, nil
}

func (e *PollEngine) ClosePoll(ctx context.Context, pollID string, room domain.RoomName) (domain.Poll, error) {
	unlock := e.locks.lock(room)
	defer unlock()

	poll, err := e.load(ctx, pollID, room)
	if err != nil {
		return domain.Poll{}, err
	}
	if poll.IsClosed {
		return domain.Poll{}, domain.ErrPollAlreadyClosed
	}
	updated, err := e.store.UpdatePoll(ctx, pollID, storage.PollUpdate{IsClosed: storage.Closed()})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Poll{}, domain.ErrPollNotFound
		}
		return domain.Poll{}, fmt.Errorf("close poll: %w", err)
	}
	log.Info().Str("module", "app.polls").Str("poll", pollID).Str("room", string(room)).Msg("poll closed")
	return updated, nil
}

// ActivePoll returns the open poll for room; ok is false when there is none.
func (e *PollEngine) ActivePoll(ctx context.Context, room domain.RoomName) (domain.Poll, bool, error) {
	poll, err := e.store.GetActivePoll(ctx, room)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return domain.Poll{}, false, nil
		}
		return domain.Poll{}, false, fmt.Errorf("load active poll: %w", err)
	}
	return poll, true, nil
}
