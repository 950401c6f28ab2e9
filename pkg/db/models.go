package db

import "time"

// TransactionRecord mirrors one row of the transactions table.
type TransactionRecord struct {
	Signature   string
	Payer       string
	Priority    string
	Retries     int
	Status      string
	SubmittedAt time.Time
	ConfirmedAt *time.Time
}

// Transaction statuses.
const (
	TxStatusSubmitted = "SUBMITTED"
	TxStatusConfirmed = "CONFIRMED"
	TxStatusReaped    = "REAPED"
)

// BlacklistEntry mirrors one row of the blacklist table.
type BlacklistEntry struct {
	Token     string
	Reason    string
	CreatedAt time.Time
}
