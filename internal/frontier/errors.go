package frontier

import "errors"

var (
	// ErrNotFound signals that no entity row exists for the kind and id.
	ErrNotFound = errors.New("entity not found")
	// ErrUnknownKind is returned for kinds other than movie and actor.
	ErrUnknownKind = errors.New("unknown entity kind")
	// ErrIndexMissing is returned when an artifact write precedes EnsureUniqueIndex.
	ErrIndexMissing = errors.New("artifact unique index not ensured")
)
