package snapshotrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alexkalak/presale_sync/common/models"
	"github.com/alexkalak/presale_sync/common/periphery/redisdb"
	"github.com/redis/go-redis/v9"
)

const SNAPSHOTS_HASH = "salestate"

// GLOBAL_FIELD holds the snapshot taken while no wallet was connected.
const GLOBAL_FIELD = "global"

var ErrSnapshotNotFound = errors.New("snapshot not found")

func getSnapshotsHashByChainID(chainID uint) string {
	return fmt.Sprintf("%d.%s", chainID, SNAPSHOTS_HASH)
}

func snapshotField(address string) string {
	if address == "" {
		return GLOBAL_FIELD
	}
	return strings.ToLower(address)
}

// SnapshotCacheRepo keeps the last known SaleState so a restarted service can
// show it while the first refresh is in flight.
type SnapshotCacheRepo interface {
	GetSnapshot(ctx context.Context, chainID uint, address string) (models.SaleState, error)
	SetSnapshot(ctx context.Context, state models.SaleState) error
	ClearSnapshots(ctx context.Context, chainID uint) error
}

type SnapshotCacheRepoConfig struct {
	TTL time.Duration
}

type SnapshotCacheRepoDependencies struct {
	Database *redisdb.RedisDatabase
}

func (d *SnapshotCacheRepoDependencies) validate() error {
	if d.Database == nil {
		return errors.New("snapshot cache repo dependencies database cannot be nil")
	}

	return nil
}

type snapshotCacheRepo struct {
	redisDB *redisdb.RedisDatabase
	ttl     time.Duration
}

func NewCacheRepo(config SnapshotCacheRepoConfig, dependencies SnapshotCacheRepoDependencies) (SnapshotCacheRepo, error) {
	if err := dependencies.validate(); err != nil {
		return nil, err
	}

	return &snapshotCacheRepo{
		redisDB: dependencies.Database,
		ttl:     config.TTL,
	}, nil
}

func (r *snapshotCacheRepo) GetSnapshot(ctx context.Context, chainID uint, address string) (models.SaleState, error) {
	rdb, err := r.redisDB.GetDB()
	if err != nil {
		return models.SaleState{}, err
	}

	stateStr, err := rdb.HGet(ctx, getSnapshotsHashByChainID(chainID), snapshotField(address)).Result()
	if errors.Is(err, redis.Nil) {
		return models.SaleState{}, ErrSnapshotNotFound
	}
	if err != nil {
		return models.SaleState{}, err
	}

	state := models.SaleState{}
	if err = state.FillFromJSON([]byte(stateStr)); err != nil {
		return models.SaleState{}, err
	}

	return state, nil
}

func (r *snapshotCacheRepo) SetSnapshot(ctx context.Context, state models.SaleState) error {
	rdb, err := r.redisDB.GetDB()
	if err != nil {
		return err
	}

	stateJSON, err := state.GetJSON()
	if err != nil {
		return err
	}

	hash := getSnapshotsHashByChainID(state.ChainID)
	if err = rdb.HSet(ctx, hash, snapshotField(state.Address), stateJSON).Err(); err != nil {
		return err
	}
	if r.ttl > 0 {
		return rdb.Expire(ctx, hash, r.ttl).Err()
	}

	return nil
}

func (r *snapshotCacheRepo) ClearSnapshots(ctx context.Context, chainID uint) error {
	rdb, err := r.redisDB.GetDB()
	if err != nil {
		return err
	}

	return rdb.Del(ctx, getSnapshotsHashByChainID(chainID)).Err()
}
