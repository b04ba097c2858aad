package store

import (
	"context"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	db, mock := redismock.NewClientMock()
	s := NewRedis(db, "")

	mock.ExpectGet("perch:viewed_transactions").RedisNil()
	mock.ExpectSet("perch:viewed_transactions", `["1"]`, 0).SetVal("OK")
	mock.ExpectGet("perch:viewed_transactions").SetVal(`["1"]`)
	mock.ExpectDel("perch:viewed_transactions").SetVal(1)

	_, ok, err := s.Get(ctx, KeyViewedTransactions)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, KeyViewedTransactions, `["1"]`))

	v, ok, err := s.Get(ctx, KeyViewedTransactions)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `["1"]`, v)

	require.NoError(t, s.Delete(ctx, KeyViewedTransactions))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisStoreError(t *testing.T) {
	db, mock := redismock.NewClientMock()
	s := NewRedis(db, "test")

	mock.ExpectGet("test:k").SetErr(errors.New("connection refused"))

	_, _, err := s.Get(context.Background(), "k")
	assert.ErrorContains(t, err, "connection refused")
}
