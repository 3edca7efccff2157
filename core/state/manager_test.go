package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"lanebridge/core/types"
	"lanebridge/storage"
	"lanebridge/storage/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(db.Close)
	tr, err := trie.NewTrie(db, nil)
	require.NoError(t, err)
	return NewManager(tr)
}

type record struct {
	Owner  []byte
	Amount *big.Int
}

func TestKVRoundTripAndDelete(t *testing.T) {
	mgr := newTestManager(t)
	key := []byte("bridge/pending/x")

	ok, err := mgr.KVGet(key, nil)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, mgr.KVPut(key, record{Owner: []byte{1}, Amount: big.NewInt(10)}))
	var out record
	ok, err = mgr.KVGet(key, &out)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(10), out.Amount.Int64())

	require.NoError(t, mgr.KVDelete(key))
	ok, err = mgr.KVGet(key, nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestKVAppendDeduplicates(t *testing.T) {
	mgr := newTestManager(t)
	key := []byte("index")
	require.NoError(t, mgr.KVAppend(key, []byte("a")))
	require.NoError(t, mgr.KVAppend(key, []byte("b")))
	require.NoError(t, mgr.KVAppend(key, []byte("a")))

	var list [][]byte
	require.NoError(t, mgr.KVGetList(key, &list))
	require.Equal(t, [][]byte{[]byte("a"), []byte("b")}, list)

	var empty [][]byte
	require.NoError(t, mgr.KVGetList([]byte("missing"), &empty))
	require.Empty(t, empty)
}

func TestSnapshotRevertNested(t *testing.T) {
	mgr := newTestManager(t)
	addr := []byte("01234567890123456789")

	require.NoError(t, mgr.PutAccount(addr, &types.Account{Balance: big.NewInt(100)}))
	outer := mgr.Snapshot()
	require.NoError(t, mgr.PutAccount(addr, &types.Account{Balance: big.NewInt(90)}))

	inner := mgr.Snapshot()
	require.NoError(t, mgr.PutAccount(addr, &types.Account{Balance: big.NewInt(1)}))
	require.NoError(t, mgr.RevertToSnapshot(inner))

	acc, err := mgr.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(90), acc.Balance.Int64())

	require.NoError(t, mgr.RevertToSnapshot(outer))
	acc, err = mgr.GetAccount(addr)
	require.NoError(t, err)
	require.Equal(t, int64(100), acc.Balance.Int64())

	require.ErrorIs(t, mgr.RevertToSnapshot(outer), ErrInvalidSnapshot)
}

func TestPutAccountReapsEmpty(t *testing.T) {
	mgr := newTestManager(t)
	addr := []byte("01234567890123456789")
	require.NoError(t, mgr.PutAccount(addr, &types.Account{Balance: big.NewInt(5)}))
	exists, err := mgr.AccountExists(addr)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, mgr.PutAccount(addr, &types.Account{Balance: big.NewInt(0)}))
	exists, err = mgr.AccountExists(addr)
	require.NoError(t, err)
	require.False(t, exists)
}

func TestCommitChangesRoot(t *testing.T) {
	mgr := newTestManager(t)
	before := mgr.Root()
	require.NoError(t, mgr.KVPut([]byte("k"), uint64(7)))
	root, err := mgr.Commit(1)
	require.NoError(t, err)
	require.NotEqual(t, before, root)
	require.Equal(t, root, mgr.Root())
}
