// Package memory provides the in-process Store used when no database is
// configured or the database is unreachable at startup.
package memory

import (
	"context"
	"sync"

	"github.com/dkeye/TeamChat/internal/domain"
	"github.com/dkeye/TeamChat/internal/storage"
)

// Store keeps everything in maps owned by one RWMutex.
type Store struct {
	mu       sync.RWMutex
	messages map[domain.RoomName][]domain.Message
	polls    map[string]domain.Poll
	// open indexes the open poll id per room.
	open map[domain.RoomName]string
}

func New() *Store {
	return &Store{
		messages: make(map[domain.RoomName][]domain.Message),
		polls:    make(map[string]domain.Poll),
		open:     make(map[domain.RoomName]string),
	}
}

func (s *Store) Kind() string { return "in-memory" }

func (s *Store) Close() error { return nil }

func (s *Store) SaveMessage(ctx context.Context, msg domain.Message) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.Room] = append(s.messages[msg.Room], msg)
	return msg, nil
}

func (s *Store) GetMessages(ctx context.Context, room domain.RoomName, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.messages[room]
	if limit > 0 && len(all) > limit {
		all = all[len(all)-limit:]
	}
	out := make([]domain.Message, len(all))
	copy(out, all)
	return out, nil
}

func (s *Store) SavePoll(ctx context.Context, poll domain.Poll) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.polls[poll.ID]; ok {
		return domain.Poll{}, storage.ErrAlreadyExists
	}
	if !poll.IsClosed {
		if _, ok := s.open[poll.Room]; ok {
			return domain.Poll{}, storage.ErrAlreadyExists
		}
		s.open[poll.Room] = poll.ID
	}
	s.polls[poll.ID] = poll.Clone()
	return poll.Clone(), nil
}

func (s *Store) GetPoll(ctx context.Context, id string) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.polls[id]
	if !ok {
		return domain.Poll{}, storage.ErrNotFound
	}
	return p.Clone(), nil
}

func (s *Store) GetActivePoll(ctx context.Context, room domain.RoomName) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.open[room]
	if !ok {
		return domain.Poll{}, storage.ErrNotFound
	}
	return s.polls[id].Clone(), nil
}

func (s *Store) UpdatePoll(ctx context.Context, id string, update storage.PollUpdate) (domain.Poll, error) {
	if err := ctx.Err(); err != nil {
		return domain.Poll{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return domain.Poll{}, storage.ErrNotFound
	}
	if update.Options != nil {
		p.Options = domain.CloneOptions(update.Options)
	}
	if update.IsClosed != nil {
		switch {
		case *update.IsClosed && s.open[p.Room] == id:
			delete(s.open, p.Room)
		case !*update.IsClosed && p.IsClosed:
			if other, ok := s.open[p.Room]; ok && other != id {
				return domain.Poll{}, storage.ErrAlreadyExists
			}
			s.open[p.Room] = id
		}
		p.IsClosed = *update.IsClosed
	}
	s.polls[id] = p
	return p.Clone(), nil
}
