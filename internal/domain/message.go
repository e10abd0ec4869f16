package domain

import "time"

const (
	SystemUser = "System"
	BotUser    = "HR-Bot"
)

// Message is immutable once created.
type Message struct {
	User      string    `json:"user"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Room      RoomName  `json:"room"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewUserMessage(u *User, room RoomName, text string, at time.Time) Message {
	return Message{User: u.Name, Role: u.Role, Text: text, Room: room, CreatedAt: at}
}

func NewSystemMessage(room RoomName, text string, at time.Time) Message {
	return Message{User: SystemUser, Role: RoleSystem, Text: text, Room: room, CreatedAt: at}
}
