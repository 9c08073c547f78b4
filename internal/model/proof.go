package model

import (
	"time"

	"github.com/google/uuid"
)

// Proof is an append-only audit record of a submitted task proof.
type Proof struct {
	ID          uuid.UUID
	UserID      string
	Credential  Credential
	ProofText   string
	SubmittedAt time.Time
}

// DeadLetter holds a credential whose pending task expired without a proof.
// Dead-lettered credentials never return to the live queue.
type DeadLetter struct {
	ID         uuid.UUID
	UserID     string
	Credential Credential
	AssignedAt time.Time
	ExpiredAt  time.Time
}

// Stats is the diagnostic snapshot served on the ops surface.
type Stats struct {
	Accounts     int
	QueueDepth   int
	PendingTasks int
	Proofs       int
}
