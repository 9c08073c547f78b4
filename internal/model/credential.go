package model

// Credential is one task-execution account record. Immutable once issued;
// ownership moves from the queue to exactly one account's pending slot.
type Credential struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}
