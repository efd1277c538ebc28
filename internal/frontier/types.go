package frontier

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Kind scopes an entity id. Ids are only unique within a kind.
type Kind string

// Entity kinds tracked by the frontier.
const (
	KindMovie Kind = "movie"
	KindActor Kind = "actor"
)

// Kinds lists every kind in a stable order.
func Kinds() []Kind {
	return []Kind{KindMovie, KindActor}
}

// KeyField is the column/document field holding the external id for a kind.
func (k Kind) KeyField() string {
	switch k {
	case KindMovie:
		return "mid"
	case KindActor:
		return "aid"
	default:
		return "id"
	}
}

// Validate reports ErrUnknownKind for anything but movie and actor.
func (k Kind) Validate() error {
	switch k {
	case KindMovie, KindActor:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, string(k))
	}
}

// ParseKind accepts the kind name case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if err := k.Validate(); err != nil {
		return "", err
	}
	return k, nil
}

// State is the fetch classification of an entity. Values are ordered: a
// store only ever moves a row to a higher state.
type State int

// Lifecycle states persisted in the state column.
const (
	StateNormal    State = 0
	StateNeedsAuth State = 1
	StateBroken    State = 2
)

func (s State) String() string {
	switch s {
	case StateNormal:
		return "NORMAL"
	case StateNeedsAuth:
		return "NEEDS_AUTH"
	case StateBroken:
		return "BROKEN"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(b []byte) error {
	switch strings.ToUpper(string(b)) {
	case "NORMAL":
		*s = StateNormal
	case "NEEDS_AUTH":
		*s = StateNeedsAuth
	case "BROKEN":
		*s = StateBroken
	default:
		return fmt.Errorf("unknown state %q", string(b))
	}
	return nil
}

// Terminal reports whether no transition is defined out of the state.
func (s State) Terminal() bool {
	return s == StateBroken
}

// Entity is one row of the frontier.
type Entity struct {
	Kind    Kind  `json:"kind"`
	ID      int64 `json:"id"`
	State   State `json:"state"`
	Crawled bool  `json:"crawled"`
}

// Ref points at an entity by kind and id.
type Ref struct {
	Kind Kind
	ID   int64
}

func (r Ref) String() string {
	if r.ID == 0 {
		return string(r.Kind)
	}
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// InsertResult is the outcome of creating an entity row.
type InsertResult int

// Insert outcomes. AlreadyExists is a normal result, not a failure.
const (
	Inserted InsertResult = iota + 1
	AlreadyExists
)

func (r InsertResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case AlreadyExists:
		return "already_exists"
	default:
		return "unknown"
	}
}

// PersistStatus is the outcome of an artifact write.
type PersistStatus int

// Artifact persist outcomes.
const (
	Stored PersistStatus = iota + 1
	DuplicateRejected
)

func (s PersistStatus) String() string {
	switch s {
	case Stored:
		return "stored"
	case DuplicateRejected:
		return "duplicate"
	default:
		return "unknown"
	}
}

// PersistResult carries the persist status and, for rejections, why.
type PersistResult struct {
	Status PersistStatus
	Reason string
}

// StoredResult is the PersistResult for an accepted write.
func StoredResult() PersistResult {
	return PersistResult{Status: Stored}
}

// DuplicateResult builds the rejection for a second write of kind/id.
func DuplicateResult(kind Kind, id int64, backend string) PersistResult {
	return PersistResult{
		Status: DuplicateRejected,
		Reason: fmt.Sprintf("%s: duplicate artifact for %s %d", backend, kind, id),
	}
}

// EncodeArtifact is the JSON encoding shared by the byte-oriented artifact
// stores.
func EncodeArtifact(doc any) ([]byte, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal artifact: %w", err)
	}
	return data, nil
}
