package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vogtb/go-spreadsheet/packages/store"
	"github.com/vogtb/go-spreadsheet/packages/store/storetest"
)

func newMiniredis(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return mr, backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func TestRedisStore(t *testing.T) {
	_, client := newMiniredis(t)
	s := store.NewRedisFromClient(client)
	defer s.Close()

	storetest.RunContract(t, s)
}

func TestRedisStoreUsesPrefix(t *testing.T) {
	mr, client := newMiniredis(t)
	s := store.NewRedisFromClient(client, store.WithPrefix("test:wb:"))
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), "one", storetest.Workbook(t)))
	assert.True(t, mr.Exists("test:wb:one"))
	assert.True(t, mr.Exists("test:wb:index"))
}

func TestRedisStoreTTL(t *testing.T) {
	mr, client := newMiniredis(t)
	s := store.NewRedisFromClient(client, store.WithTTL(time.Minute))
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, "short", storetest.Workbook(t)))
	assert.Equal(t, time.Minute, mr.TTL("sheetctl:workbook:short"))

	mr.FastForward(2 * time.Minute)
	_, err := s.Load(ctx, "short")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
