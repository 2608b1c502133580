package escrow

import (
	"time"
)

const (
	ProofTypeEcrecover = "ecrecover"
)

// Document is the signed body of a ledger command.
type Document[T any] struct {
	Signer   string    `json:"signer"`
	Schema   string    `json:"schema"`
	Value    T         `json:"value"`
	CreateAt time.Time `json:"createAt"`
}

type Proof struct {
	Type      string `json:"type"`
	Signature string `json:"signature"`
}

type SignedCommand struct {
	Document string `json:"document"`
	Proof    Proof  `json:"proof"`
}

type Transfer struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// Receipt is returned for every committed command.
type Receipt struct {
	CommandID   string    `json:"commandID"`
	Schema      string    `json:"schema"`
	Campaign    string    `json:"campaign"`
	Contributor string    `json:"contributor,omitempty"`
	Transfer    *Transfer `json:"transfer,omitempty"`
	Total       uint64    `json:"total"`
}

type CampaignView struct {
	Slot      string    `json:"slot"`
	Creator   string    `json:"creator"`
	Deadline  time.Time `json:"deadline"`
	Goal      uint64    `json:"goal"`
	Total     uint64    `json:"total"`
	State     string    `json:"state"`
	Phase     string    `json:"phase"`
	Held      uint64    `json:"held"`
	CreatedAt time.Time `json:"createdAt"`
}

type ContributorView struct {
	Slot     string `json:"slot"`
	Campaign string `json:"campaign"`
	Owner    string `json:"owner"`
	Amount   uint64 `json:"amount"`
	State    string `json:"state"`
}

type Event struct {
	Type      string    `json:"type"`
	Campaign  string    `json:"campaign"`
	Actor     string    `json:"actor"`
	Amount    uint64    `json:"amount"`
	Total     uint64    `json:"total"`
	Timestamp time.Time `json:"timestamp"`
}

type EscrowEndpoint struct {
	Template string    `json:"template"`
	Method   string    `json:"method"`
	Query    *[]string `json:"query,omitempty"`
}

type WellKnownEscrow struct {
	Version   string                    `json:"version"`
	Domain    string                    `json:"domain"`
	Address   string                    `json:"address"`
	Endpoints map[string]EscrowEndpoint `json:"endpoints"`
}
