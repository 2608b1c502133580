package repository

import (
	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/infra/database/models"
)

func campaignToModel(c domain.Campaign) models.Campaign {
	return models.Campaign{
		Slot:     c.Slot,
		Creator:  c.Creator,
		Deadline: c.Deadline,
		Goal:     c.Goal,
		Total:    c.Total,
		State:    c.State.String(),
		Version:  c.Version,
		CDate:    c.CreatedAt,
	}
}

func campaignFromModel(m models.Campaign) (domain.Campaign, error) {
	state, err := domain.ParseCampaignState(m.State)
	if err != nil {
		return domain.Campaign{}, err
	}
	return domain.Campaign{
		Slot:      m.Slot,
		Creator:   m.Creator,
		Deadline:  m.Deadline,
		Goal:      m.Goal,
		Total:     m.Total,
		State:     state,
		CreatedAt: m.CDate,
		Version:   m.Version,
	}, nil
}

func contributorToModel(c domain.Contributor) models.Contributor {
	return models.Contributor{
		Slot:     c.Slot,
		Campaign: c.Campaign,
		Owner:    c.Owner,
		Amount:   c.Amount,
		State:    c.State.String(),
	}
}

func contributorFromModel(m models.Contributor) (domain.Contributor, error) {
	state, err := domain.ParsePositionState(m.State)
	if err != nil {
		return domain.Contributor{}, err
	}
	return domain.Contributor{
		Slot:     m.Slot,
		Campaign: m.Campaign,
		Owner:    m.Owner,
		Amount:   m.Amount,
		State:    state,
	}, nil
}

func contributorsFromModels(ms []models.Contributor) ([]domain.Contributor, error) {
	out := make([]domain.Contributor, 0, len(ms))
	for _, m := range ms {
		c, err := contributorFromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
