package schemas

import "time"

const (
	OpenCampaignURL string = "https://schema.escrow-ledger.dev/open-campaign.json"
	ContributeURL   string = "https://schema.escrow-ledger.dev/contribute.json"
	ExitURL         string = "https://schema.escrow-ledger.dev/exit.json"
	ClaimURL        string = "https://schema.escrow-ledger.dev/claim.json"
)

type OpenCampaign struct {
	Goal     uint64    `json:"goal"`
	Deadline time.Time `json:"deadline"`
}

type Contribute struct {
	Campaign string `json:"campaign"`
	Amount   uint64 `json:"amount"`
}

type Exit struct {
	Campaign string `json:"campaign"`
}

type Claim struct {
	Campaign string `json:"campaign"`
}
