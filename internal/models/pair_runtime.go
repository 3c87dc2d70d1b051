package models

// TouchFlags are monotone per-ticket latches recording that the live
// quote has crossed a ticket's TP or SL at least once.
// Once set, a flag is never cleared until the ticket is removed.
type TouchFlags struct {
	TPTouched bool `json:"tp_touched"`
	SLTouched bool `json:"sl_touched"`
}

// TicketInfo is the registry's record for one open broker position.
type TicketInfo struct {
	PairIndex int32   `db:"pair_index" json:"pair_index"`
	Leg       Leg     `db:"leg" json:"leg"`
	Entry     float64 `db:"entry_price" json:"entry_price"`
	TP        float64 `db:"tp_price" json:"tp_price"`
	SL        float64 `db:"sl_price" json:"sl_price"`
	Touch     TouchFlags
}

// Classification is the outcome of classifying a dropped ticket.
type Classification int

const (
	ClassifiedTP Classification = iota
	ClassifiedSL
	ClassifiedInferredTP
	ClassifiedInferredSL
)

func (c Classification) IsTP() bool {
	return c == ClassifiedTP || c == ClassifiedInferredTP
}

func (c Classification) IsInferred() bool {
	return c == ClassifiedInferredTP || c == ClassifiedInferredSL
}
