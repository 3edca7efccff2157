package trie

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	"lanebridge/storage"
)

func TestTrieCommitPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := storage.NewLevelDB(dir, storage.LevelDBOptions{})
	require.NoError(t, err)

	tr, err := NewTrie(db1, nil)
	require.NoError(t, err)

	key := crypto.Keccak256Hash([]byte("bridge/limit"))
	value := []byte("value")

	require.NoError(t, tr.Update(key.Bytes(), value))
	root, err := tr.Commit(common.Hash{}, 1)
	require.NoError(t, err)

	db1.Close()

	db2, err := storage.NewLevelDB(dir, storage.LevelDBOptions{})
	require.NoError(t, err)
	defer db2.Close()

	restored, err := NewTrie(db2, root.Bytes())
	require.NoError(t, err)

	got, err := restored.Get(key.Bytes())
	require.NoError(t, err)
	require.Equal(t, value, got)
}

func TestTrieCopyIsIsolated(t *testing.T) {
	db := storage.NewMemDB()
	tr, err := NewTrie(db, nil)
	require.NoError(t, err)

	key := crypto.Keccak256([]byte("k"))
	require.NoError(t, tr.Update(key, []byte{1}))

	snap := tr.Copy()
	require.NoError(t, tr.Update(key, []byte{2}))
	require.NoError(t, tr.Delete(crypto.Keccak256([]byte("missing"))))

	got, err := snap.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte{1}, got)

	got, err = tr.Get(key)
	require.NoError(t, err)
	require.Equal(t, []byte{2}, got)
}

func TestTrieDeleteRestoresEmptyRoot(t *testing.T) {
	db := storage.NewMemDB()
	tr, err := NewTrie(db, nil)
	require.NoError(t, err)
	empty := tr.Hash()

	key := crypto.Keccak256([]byte("k"))
	require.NoError(t, tr.Update(key, []byte("v")))
	require.NotEqual(t, empty, tr.Hash())
	require.NoError(t, tr.Delete(key))
	require.Equal(t, empty, tr.Hash())
}
