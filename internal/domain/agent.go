package domain

import "time"

// Agent labels the channel a transaction was recorded through (cash, bank, scheduler).
type Agent struct {
	CreatedAt   time.Time
	Description *string
	Name        string
	ID          int64
}
