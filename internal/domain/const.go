package domain

const (
	RequesterIdCtxKey = "escrow-requesterId"
)

const (
	RequesterIdHeader = "escrow-requester-id"
)

const (
	EventCampaignOpened    = "campaign.opened"
	EventContributionAdded = "contribution.added"
	EventContributorExited = "contributor.exited"
	EventCampaignClaimed   = "campaign.claimed"
)

// CampaignChannel is the signal channel carrying events of one campaign.
func CampaignChannel(slot string) string {
	return "campaign:" + slot
}
