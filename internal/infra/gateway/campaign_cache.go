package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
	"github.com/pkg/errors"

	"github.com/totegamma/escrow-ledger/internal/domain"
	"github.com/totegamma/escrow-ledger/internal/usecase"
)

const (
	campaignCachePrefix = "escrow:campaign:"
	campaignCacheTTL    = 5 * time.Minute
	campaignCacheTries  = 4
)

var errCacheContended = errors.New("campaign cache entry kept changing")

// cachedCampaign is the memcached wire form of usecase.CachedCampaign.
type cachedCampaign struct {
	Slot      string    `json:"slot"`
	Creator   string    `json:"creator,omitempty"`
	Deadline  time.Time `json:"deadline"`
	Goal      uint64    `json:"goal"`
	Total     uint64    `json:"total"`
	State     string    `json:"state,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	Version   uint64    `json:"version"`
	Held      uint64    `json:"held"`
	Tombstone bool      `json:"tombstone,omitempty"`
}

func encodeCampaign(entry usecase.CachedCampaign) ([]byte, error) {
	v := cachedCampaign{
		Slot:      entry.Campaign.Slot,
		Version:   entry.Campaign.Version,
		Tombstone: entry.Tombstone,
	}
	if !entry.Tombstone {
		v.Creator = entry.Campaign.Creator
		v.Deadline = entry.Campaign.Deadline
		v.Goal = entry.Campaign.Goal
		v.Total = entry.Campaign.Total
		v.State = entry.Campaign.State.String()
		v.CreatedAt = entry.Campaign.CreatedAt
		v.Held = entry.Held
	}
	return json.Marshal(v)
}

func decodeCampaign(data []byte) (usecase.CachedCampaign, error) {
	var v cachedCampaign
	if err := json.Unmarshal(data, &v); err != nil {
		return usecase.CachedCampaign{}, err
	}

	if v.Tombstone {
		return usecase.CachedCampaign{
			Campaign:  domain.Campaign{Slot: v.Slot, Version: v.Version},
			Tombstone: true,
		}, nil
	}

	state, err := domain.ParseCampaignState(v.State)
	if err != nil {
		return usecase.CachedCampaign{}, err
	}

	return usecase.CachedCampaign{
		Campaign: domain.Campaign{
			Slot:      v.Slot,
			Creator:   v.Creator,
			Deadline:  v.Deadline,
			Goal:      v.Goal,
			Total:     v.Total,
			State:     state,
			CreatedAt: v.CreatedAt,
			Version:   v.Version,
		},
		Held: v.Held,
	}, nil
}

type CampaignCache struct {
	mc *memcache.Client
}

func NewCampaignCache(mc *memcache.Client) *CampaignCache {
	return &CampaignCache{mc: mc}
}

func (c *CampaignCache) Get(ctx context.Context, slot string) (usecase.CachedCampaign, bool) {
	item, err := c.mc.Get(campaignCachePrefix + slot)
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.DebugContext(ctx, "campaign cache get failed", slog.String("error", err.Error()), slog.String("module", "gateway"))
		}
		return usecase.CachedCampaign{}, false
	}

	entry, err := decodeCampaign(item.Value)
	if err != nil || entry.Tombstone {
		return usecase.CachedCampaign{}, false
	}
	return entry, true
}

func (c *CampaignCache) Set(ctx context.Context, entry usecase.CachedCampaign) error {
	return c.swap(ctx, entry)
}

// Invalidate leaves a tombstone for the committed version instead of deleting
// the key, so fills computed from older versions are refused.
func (c *CampaignCache) Invalidate(ctx context.Context, slot string, version uint64) error {
	return c.swap(ctx, usecase.CachedCampaign{
		Campaign:  domain.Campaign{Slot: slot, Version: version},
		Tombstone: true,
	})
}

// swap writes entry only if it supersedes what memcached holds, using Add for
// an absent key and CompareAndSwap otherwise.
func (c *CampaignCache) swap(ctx context.Context, entry usecase.CachedCampaign) error {
	key := campaignCachePrefix + entry.Campaign.Slot
	value, err := encodeCampaign(entry)
	if err != nil {
		return err
	}
	expiration := int32(campaignCacheTTL.Seconds())

	for i := 0; i < campaignCacheTries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		item, err := c.mc.Get(key)
		if errors.Is(err, memcache.ErrCacheMiss) {
			err = c.mc.Add(&memcache.Item{Key: key, Value: value, Expiration: expiration})
			if errors.Is(err, memcache.ErrNotStored) {
				continue
			}
			return err
		}
		if err != nil {
			return err
		}

		current, err := decodeCampaign(item.Value)
		if err == nil && !entry.Supersedes(current) {
			return nil
		}

		item.Value = value
		item.Expiration = expiration
		err = c.mc.CompareAndSwap(item)
		if errors.Is(err, memcache.ErrCASConflict) || errors.Is(err, memcache.ErrNotStored) {
			continue
		}
		return err
	}

	return errors.Wrapf(errCacheContended, "slot %s", entry.Campaign.Slot)
}
