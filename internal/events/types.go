package events

// Event enumerates high-level topics inside the dispatch core.
type Event string

const (
	EventTxSubmitted Event = "tx.submitted"
	EventTxConfirmed Event = "tx.confirmed"
	EventTxFailed    Event = "tx.failed"
	EventTxReaped    Event = "tx.reaped"
	EventRiskAlert   Event = "risk.alert"
)
