package tournament

import (
	"github.com/hansimuller/taekwon/internal/engine"
	"github.com/hansimuller/taekwon/internal/store"
	wire "github.com/hansimuller/taekwon/pkg/types"
)

type Role string

const (
	RoleJuryPresident Role = wire.IdentityJuryPresident
	RoleCornerJudge   Role = wire.IdentityCornerJudge
)

func (r Role) Valid() bool { return r == RoleJuryPresident || r == RoleCornerJudge }

// User is one participant, keyed by its session id. It outlives any channel:
// a reconnect rebinds ConnID instead of creating a new User.
type User struct {
	ID     string
	Role   Role
	ConnID string
	// Connected is true while ConnID names a live channel.
	Connected bool
	Ring      *Ring

	// corner judge
	Name       string
	Authorised bool

	// jury president
	MatchConfig engine.Config
}

func (u *User) doc() store.UserDoc {
	return store.UserDoc{ID: u.ID, Identity: string(u.Role), Name: u.Name, Authorised: u.Authorised}
}

func (u *User) judgeState() wire.CornerJudgeState {
	return wire.CornerJudgeState{ID: u.ID, Name: u.Name, Connected: u.Connected, Authorised: u.Authorised}
}

func (u *User) ringIndex() int {
	if u.Ring == nil {
		return -1
	}
	return u.Ring.Index
}

type stage int

const (
	stageAwaitingID stage = iota
	stageAwaitingConfirmation
	stageBound
)

// conn is a channel that has reached the tournament but may not be bound to
// a User yet.
type conn struct {
	id        string
	sessionID string
	stage     stage
}
