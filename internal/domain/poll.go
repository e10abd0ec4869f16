package domain

import (
	"fmt"
	"time"
)

const MinPollOptions = 2

type PollOption struct {
	Label  string   `json:"label"`
	Votes  int      `json:"votes"`
	Voters []string `json:"voters"`
}

// Poll is single-choice: a voter name appears in at most one option.
type Poll struct {
	ID        string       `json:"id"`
	Room      RoomName     `json:"room"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	IsClosed  bool         `json:"isClosed"`
	CreatedAt time.Time    `json:"createdAt"`
	CreatedBy string       `json:"createdBy"`
}

// CloneOptions deep-copies an option set so callers never share voter slices.
func CloneOptions(in []PollOption) []PollOption {
	if in == nil {
		return nil
	}
	out := make([]PollOption, len(in))
	for i, o := range in {
		out[i] = PollOption{Label: o.Label, Votes: o.Votes, Voters: append([]string{}, o.Voters...)}
	}
	return out
}

func (p Poll) Clone() Poll {
	p.Options = CloneOptions(p.Options)
	return p
}

// VoteOf returns the option index holding name's vote, or -1.
func (p Poll) VoteOf(name string) int {
	for i, o := range p.Options {
		for _, v := range o.Voters {
			if v == name {
				return i
			}
		}
	}
	return -1
}

// Consistent checks votes == len(voters) per option and one vote per voter.
func (p Poll) Consistent() error {
	seen := make(map[string]int)
	for i, o := range p.Options {
		if o.Votes != len(o.Voters) {
			return fmt.Errorf("option %d: votes=%d voters=%d", i, o.Votes, len(o.Voters))
		}
		for _, v := range o.Voters {
			if prev, ok := seen[v]; ok {
				return fmt.Errorf("voter %q in options %d and %d", v, prev, i)
			}
			seen[v] = i
		}
	}
	return nil
}
