// Package frontier holds the entity lifecycle core: the entity and outcome
// types, the store interfaces, the pure state machine that maps fetch
// outcomes to state updates, and the Guard that turns the store's
// uniqueness constraint into an explicit insert-if-absent result.
//
// Implementations of the store interfaces live under internal/storage; this
// package must not import database drivers or concrete clients.
package frontier
