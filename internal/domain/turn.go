package domain

import "time"

// ChatTurn is a single persisted user/bot exchange. Turns are immutable
// once written; they disappear only when the user clears their history.
type ChatTurn struct {
	ID          string
	UserID      string
	UserMessage string
	BotResponse string
	Timestamp   time.Time
}
