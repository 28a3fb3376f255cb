package redisdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, err := New(RedisDatabaseConfig{})
	require.Error(t, err)

	db, err := New(RedisDatabaseConfig{RedisServer: "127.0.0.1:6379"})
	require.NoError(t, err)

	rdb, err := db.GetDB()
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:6379", rdb.Options().Addr)
	require.NoError(t, db.Close())
}

func TestUninitialized(t *testing.T) {
	var db *RedisDatabase
	_, err := db.GetDB()
	require.Error(t, err)
	require.Error(t, db.Ping(t.Context()))
}
