// Package pipeline routes fetch outcomes to the stages that handle them.
//
// Each stage declares the producer capabilities it consumes. The Pipeline
// builds a registration table from those declarations once and dispatches
// every item through the stages registered for its capability, in order.
// Items nobody registered for pass through untouched.
//
// Within a stage the order is fixed: discovered references are inserted
// first, then the artifact is persisted, and the subject's state is updated
// last. A store failure anywhere therefore leaves the subject uncrawled and
// it is retried on the next scheduling pass.
package pipeline
