package repository

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/engine"
	"github.com/totegamma/escrow-ledger/internal/infra/database/models"
	"github.com/totegamma/escrow-ledger/internal/usecase"
)

var tracer = otel.Tracer("repository")

// LedgerRepository is the postgres substrate. The campaign row lock taken in
// Apply serializes every transition of one campaign.
type LedgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) OpenCampaign(ctx context.Context, campaign domain.Campaign, log usecase.CommandLog) error {
	ctx, span := tracer.Start(ctx, "Ledger.Repository.OpenCampaign")
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertCommitLog(tx, log, campaign.Slot); err != nil {
			return err
		}

		model := campaignToModel(campaign)
		result := tx.Clauses(clause.OnConflict{
			DoNothing: true,
		}).Create(&model)
		if result.Error != nil {
			return errors.Wrap(result.Error, "failed to create campaign")
		}
		if result.RowsAffected == 0 {
			return domain.Reject(domain.CodeAlreadyExists, "campaign %s already exists", campaign.Slot)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (r *LedgerRepository) Apply(ctx context.Context, req usecase.ApplyRequest, fn usecase.ApplyFunc) (engine.Transition, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Repository.Apply")
	defer span.End()

	var result engine.Transition
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := insertCommitLog(tx, req.Log, req.Campaign); err != nil {
			return err
		}

		var cm models.Campaign
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("slot = ?", req.Campaign).
			Take(&cm).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFoundError{Resource: "campaign"}
		}
		if err != nil {
			return errors.Wrap(err, "failed to lock campaign")
		}

		campaign, err := campaignFromModel(cm)
		if err != nil {
			return err
		}

		var lookup domain.PositionLookup
		if req.Contributor != "" {
			var rec models.Contributor
			err := tx.Where("slot = ?", req.Contributor).Take(&rec).Error
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				lookup = domain.Created(req.Contributor, req.Campaign, req.Owner)
			case err != nil:
				return errors.Wrap(err, "failed to load contributor")
			default:
				c, err := contributorFromModel(rec)
				if err != nil {
					return err
				}
				lookup = domain.Existing(c)
			}
		}

		tr, err := fn(campaign, lookup)
		if err != nil {
			return err
		}

		if err := move(tx, tr.Transfer); err != nil {
			return err
		}

		tr.Campaign.Version = campaign.Version + 1
		err = tx.Model(&models.Campaign{}).
			Where("slot = ?", tr.Campaign.Slot).
			Updates(map[string]any{
				"total":   tr.Campaign.Total,
				"state":   tr.Campaign.State.String(),
				"version": tr.Campaign.Version,
			}).Error
		if err != nil {
			return errors.Wrap(err, "failed to update campaign")
		}

		if tr.Contributor != nil {
			model := contributorToModel(*tr.Contributor)
			if err := tx.Save(&model).Error; err != nil {
				return errors.Wrap(err, "failed to save contributor")
			}
		}

		result = tr
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return engine.Transition{}, err
	}

	return result, nil
}

func (r *LedgerRepository) GetCampaign(ctx context.Context, slot string) (domain.Campaign, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Repository.GetCampaign")
	defer span.End()

	var cm models.Campaign
	err := r.db.WithContext(ctx).Where("slot = ?", slot).Take(&cm).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Campaign{}, domain.NotFoundError{Resource: "campaign"}
	}
	if err != nil {
		span.RecordError(err)
		return domain.Campaign{}, err
	}

	return campaignFromModel(cm)
}

func (r *LedgerRepository) GetContributor(ctx context.Context, slot string) (domain.Contributor, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Repository.GetContributor")
	defer span.End()

	var rec models.Contributor
	err := r.db.WithContext(ctx).Where("slot = ?", slot).Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Contributor{}, domain.NotFoundError{Resource: "contributor"}
	}
	if err != nil {
		span.RecordError(err)
		return domain.Contributor{}, err
	}

	return contributorFromModel(rec)
}

// Snapshot holds a share lock on the campaign row, which waits out any
// transition in flight and keeps new ones from committing until it returns.
func (r *LedgerRepository) Snapshot(ctx context.Context, slot string) (usecase.CampaignSnapshot, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Repository.Snapshot")
	defer span.End()

	var snapshot usecase.CampaignSnapshot
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cm models.Campaign
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("slot = ?", slot).
			Take(&cm).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.NotFoundError{Resource: "campaign"}
		}
		if err != nil {
			return errors.Wrap(err, "failed to lock campaign")
		}

		campaign, err := campaignFromModel(cm)
		if err != nil {
			return err
		}

		var recs []models.Contributor
		err = tx.Where("campaign = ?", slot).Order("slot").Find(&recs).Error
		if err != nil {
			return errors.Wrap(err, "failed to load contributors")
		}
		contributors, err := contributorsFromModels(recs)
		if err != nil {
			return err
		}

		var b models.Balance
		err = tx.Where("address = ?", slot).Take(&b).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return errors.Wrap(err, "failed to load campaign balance")
		}

		snapshot = usecase.CampaignSnapshot{
			Campaign:     campaign,
			Contributors: contributors,
			Held:         b.Amount,
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return usecase.CampaignSnapshot{}, err
	}

	return snapshot, nil
}

func (r *LedgerRepository) ListContributors(ctx context.Context, campaign string) ([]domain.Contributor, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Repository.ListContributors")
	defer span.End()

	var recs []models.Contributor
	err := r.db.WithContext(ctx).
		Where("campaign = ?", campaign).
		Order("slot").
		Find(&recs).Error
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return contributorsFromModels(recs)
}

func (r *LedgerRepository) ListPositions(ctx context.Context, owner string) ([]domain.Contributor, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Repository.ListPositions")
	defer span.End()

	var recs []models.Contributor
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("campaign").
		Find(&recs).Error
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return contributorsFromModels(recs)
}

func (r *LedgerRepository) Balance(ctx context.Context, address string) (uint64, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Repository.Balance")
	defer span.End()

	var b models.Balance
	err := r.db.WithContext(ctx).Where("address = ?", address).Take(&b).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	return b.Amount, nil
}

func (r *LedgerRepository) SeedBalances(ctx context.Context, balances map[string]uint64) error {
	ctx, span := tracer.Start(ctx, "Ledger.Repository.SeedBalances")
	defer span.End()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for address, amount := range balances {
			err := tx.Clauses(clause.OnConflict{
				DoNothing: true,
			}).Create(&models.Balance{
				Address: address,
				Amount:  amount,
			}).Error
			if err != nil {
				span.RecordError(err)
				return errors.Wrap(err, "failed to seed balance")
			}
		}
		return nil
	})
}

func insertCommitLog(tx *gorm.DB, log usecase.CommandLog, campaign string) error {
	result := tx.Clauses(clause.OnConflict{
		DoNothing: true,
	}).Create(&models.CommitLog{
		ID:       log.ID,
		Signer:   log.Signer,
		Schema:   log.Schema,
		Campaign: campaign,
		Document: log.Document,
		Proof:    log.Proof,
		CDate:    time.Now(),
	})
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to insert commit log")
	}
	if result.RowsAffected == 0 {
		return domain.Reject(domain.CodeDuplicateCommand, "command %s already applied", log.ID)
	}
	return nil
}

// move debits the source only if it can afford the amount, then credits the target.
func move(tx *gorm.DB, t domain.Transfer) error {
	if t.Amount == 0 {
		return nil
	}

	result := tx.Model(&models.Balance{}).
		Where("address = ? AND amount >= ?", t.From, t.Amount).
		Update("amount", gorm.Expr("amount - ?", t.Amount))
	if result.Error != nil {
		return errors.Wrap(result.Error, "failed to debit balance")
	}
	if result.RowsAffected == 0 {
		return domain.Reject(domain.CodeInvalidAmount, "insufficient balance on %s", t.From)
	}

	return credit(tx, t.To, t.Amount)
}

func credit(tx *gorm.DB, address string, amount uint64) error {
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "address"}},
		DoUpdates: clause.Assignments(map[string]any{"amount": gorm.Expr("balances.amount + ?", amount)}),
	}).Create(&models.Balance{
		Address: address,
		Amount:  amount,
	}).Error
	if err != nil {
		return errors.Wrap(err, "failed to credit balance")
	}
	return nil
}
