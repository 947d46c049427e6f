package domain

import "time"

// CycleSummary aggregates one scheduler cycle across all users.
type CycleSummary struct {
	StartedAt  time.Time
	FinishedAt time.Time

	Users                int
	Executed             int
	Failed               int
	SkippedNotProfitable int
	SkippedGuardrail     int
}
