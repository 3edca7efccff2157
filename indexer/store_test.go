package indexer

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"lanebridge/core/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "index.db")
	store, err := Open(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndQueryEvents(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	for height := uint64(1); height <= 3; height++ {
		header := &types.BlockHeader{Height: height, StateRoot: []byte{byte(height)}, TxCount: 1, Timestamp: 1700000000}
		evts := []*types.Event{
			{Type: "bridge.token_issued", Attributes: map[string]string{"amount": fmt.Sprint(height * 10)}},
			{Type: "bank.transfer", Attributes: map[string]string{"amount": "1"}},
		}
		require.NoError(t, store.RecordBlock(ctx, header, evts))
	}

	all, err := store.Events(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 6)
	require.Equal(t, uint64(1), all[0].Height)
	require.Equal(t, 0, all[0].Seq)

	issued, err := store.Events(ctx, Filter{Type: "bridge.token_issued", FromHeight: 2})
	require.NoError(t, err)
	require.Len(t, issued, 2)
	require.Equal(t, "20", issued[0].Event.Attributes["amount"])

	limited, err := store.Events(ctx, Filter{Limit: 1, ToHeight: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	block, err := store.Block(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "0x02", block.StateRoot)

	_, err = store.Block(ctx, 9)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRecordBlockRejectsDuplicateHeight(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	header := &types.BlockHeader{Height: 1}
	require.NoError(t, store.RecordBlock(ctx, header, nil))
	require.Error(t, store.RecordBlock(ctx, header, []*types.Event{{Type: "x"}}))

	evts, err := store.Events(ctx, Filter{})
	require.NoError(t, err)
	require.Empty(t, evts)
}

func TestExportParquet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	total := exportPageSize + 7
	perBlock := 50
	for height := uint64(1); int(height-1)*perBlock < total; height++ {
		n := perBlock
		if remaining := total - int(height-1)*perBlock; remaining < n {
			n = remaining
		}
		evts := make([]*types.Event, 0, n)
		for i := 0; i < n; i++ {
			evts = append(evts, &types.Event{Type: "lane.message_accepted", Attributes: map[string]string{"nonce": fmt.Sprint(i)}})
		}
		require.NoError(t, store.RecordBlock(ctx, &types.BlockHeader{Height: height}, evts))
	}

	path := filepath.Join(t.TempDir(), "events.parquet")
	written, err := store.ExportParquet(ctx, path, Filter{})
	require.NoError(t, err)
	require.Equal(t, total, written)

	fr, err := local.NewLocalFileReader(path)
	require.NoError(t, err)
	defer fr.Close()
	pr, err := reader.NewParquetReader(fr, new(parquetEvent), 1)
	require.NoError(t, err)
	defer pr.ReadStop()
	require.Equal(t, int64(total), pr.GetNumRows())

	rows := make([]parquetEvent, 2)
	require.NoError(t, pr.Read(&rows))
	require.Equal(t, int64(1), rows[0].Height)
	require.Equal(t, int32(1), rows[1].Seq)
	require.Equal(t, `{"nonce":"1"}`, rows[1].Attributes)
}
