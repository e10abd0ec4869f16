package app

import (
	"github.com/dkeye/TeamChat/internal/core"
	"github.com/dkeye/TeamChat/internal/domain"
)

// RoomManagerImpl serves the static room catalog. The map is filled once
// at construction and only read afterwards, so it needs no lock.
type RoomManagerImpl struct {
	order []domain.RoomName
	rooms map[domain.RoomName]core.RoomService
}

func NewRoomManager(catalog []domain.Room) core.RoomManager {
	f := &RoomManagerImpl{rooms: make(map[domain.RoomName]core.RoomService, len(catalog))}
	for _, r := range catalog {
		f.order = append(f.order, r.Name)
		f.rooms[r.Name] = core.NewRoomService(r)
	}
	return f
}

func (f *RoomManagerImpl) Get(name domain.RoomName) (core.RoomService, bool) {
	room, ok := f.rooms[name]
	return room, ok
}

func (f *RoomManagerImpl) List() []core.RoomInfo {
	out := make([]core.RoomInfo, 0, len(f.order))
	for _, name := range f.order {
		r := f.rooms[name]
		meta := r.Room()
		out = append(out, core.RoomInfo{
			Name:        name,
			DisplayName: meta.DisplayName,
			HROnly:      meta.HROnly,
			MemberCount: r.MemberCount(),
			Members:     r.MembersSnapshot(),
		})
	}
	return out
}
