package domain

import "fmt"

type RoomName string

const (
	RoomGeneral         RoomName = "general"
	RoomHRAnnouncements RoomName = "hr-announcements"
)

type Room struct {
	Name        RoomName `json:"name"`
	DisplayName string   `json:"displayName"`
	HROnly      bool     `json:"hrOnly"`
}

// Rooms is the static room catalog. Rooms are never created at runtime.
var Rooms = []Room{
	{Name: RoomGeneral, DisplayName: "# general"},
	{Name: RoomHRAnnouncements, DisplayName: "# hr-announcements", HROnly: true},
}

// LookupRoom resolves a client supplied room name against the catalog.
func LookupRoom(name string) (Room, error) {
	for _, r := range Rooms {
		if string(r.Name) == name {
			return r, nil
		}
	}
	return Room{}, fmt.Errorf("%w: %q", ErrInvalidRoom, name)
}

// CanPost reports whether a user with the given role may write into the room.
func (r Room) CanPost(u *User) bool {
	if !r.HROnly {
		return true
	}
	return u.IsHR()
}
