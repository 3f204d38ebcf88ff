package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// ParticipantKind distinguishes individual players from teams. Team
// competitions buzz as one unit, so the arbiter treats both uniformly.
type ParticipantKind string

const (
	KindUser ParticipantKind = "user"
	KindTeam ParticipantKind = "team"
)

// Participant identifies who buzzed: a user or a team.
// The zero value is not a valid participant.
type Participant struct {
	Kind ParticipantKind
	ID   int64
}

func UserParticipant(id int64) Participant { return Participant{Kind: KindUser, ID: id} }
func TeamParticipant(id int64) Participant { return Participant{Kind: KindTeam, ID: id} }

// String renders the wire form, e.g. "user:42" or "team:7".
func (p Participant) String() string {
	return string(p.Kind) + ":" + strconv.FormatInt(p.ID, 10)
}

func (p Participant) IsZero() bool { return p.Kind == "" }

// ParseParticipant parses the "kind:id" wire form.
func ParseParticipant(s string) (Participant, error) {
	kind, raw, ok := strings.Cut(s, ":")
	if !ok {
		return Participant{}, fmt.Errorf("%w: %q", ErrBadParticipant, s)
	}

	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return Participant{}, fmt.Errorf("%w: %q", ErrBadParticipant, s)
	}

	switch ParticipantKind(kind) {
	case KindUser, KindTeam:
		return Participant{Kind: ParticipantKind(kind), ID: id}, nil
	default:
		return Participant{}, fmt.Errorf("%w: %q", ErrBadParticipant, s)
	}
}
