// Package core runs the single-producer block loop over the runtime.
package core

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"lanebridge/config"
	"lanebridge/core/genesis"
	"lanebridge/core/runtime"
	"lanebridge/core/types"
	"lanebridge/mempool"
	"lanebridge/storage"
	"lanebridge/storage/trie"
)

var (
	ErrWrongChain      = errors.New("node: transaction chain id mismatch")
	ErrUnsigned        = errors.New("node: transaction must be signed")
	ErrRootFlag        = errors.New("node: root flag not allowed on public submission")
	ErrReceiptNotFound = errors.New("node: receipt not found")
	ErrBlockNotFound   = errors.New("node: block not found")
)

var headKey = []byte("chain/head")

func blockKey(height uint64) []byte {
	return []byte(fmt.Sprintf("chain/block/%020d", height))
}

func receiptKey(hash []byte) []byte {
	return []byte("chain/receipt/" + hex.EncodeToString(hash))
}

// EventSink receives every produced block together with its events.
type EventSink interface {
	RecordBlock(ctx context.Context, header *types.BlockHeader, evts []*types.Event) error
}

// Node is the central controller wiring the runtime, mempool and storage.
type Node struct {
	cfg     *config.Config
	db      storage.Database
	pool    *mempool.Pool
	sink    EventSink
	logger  *slog.Logger
	now     func() time.Time
	maxTxs  int
	stateMu sync.Mutex
	rt      *runtime.Runtime
	head    *types.BlockHeader

	subsMu  sync.Mutex
	subs    map[int]chan BlockUpdate
	nextSub int
}

// BlockUpdate is published to subscribers after every committed block.
type BlockUpdate struct {
	Header *types.BlockHeader `json:"header"`
	Events []*types.Event     `json:"events"`
}

// Option customises a Node.
type Option func(*Node)

// WithEventSink forwards produced blocks to sink.
func WithEventSink(sink EventSink) Option {
	return func(n *Node) { n.sink = sink }
}

// WithClock overrides the block timestamp source.
func WithClock(now func() time.Time) Option {
	return func(n *Node) {
		if now != nil {
			n.now = now
		}
	}
}

// NewNode opens the chain stored in db. An empty database is initialised
// from the configured genesis file and committed as block zero.
func NewNode(cfg *config.Config, db storage.Database, logger *slog.Logger, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, fmt.Errorf("node: config required")
	}
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	n := &Node{
		cfg:    cfg,
		db:     db,
		pool:   mempool.New(cfg.MempoolSize, cfg.MaxBlockTxs/4),
		logger: logger,
		now:    time.Now,
		maxTxs: cfg.MaxBlockTxs,
		subs:   make(map[int]chan BlockUpdate),
	}
	for _, opt := range opts {
		opt(n)
	}

	head, err := n.loadHead()
	if err != nil {
		return nil, err
	}
	var root []byte
	if head != nil {
		root = head.StateRoot
	}
	stateTrie, err := trie.NewTrie(db, root)
	if err != nil {
		return nil, fmt.Errorf("node: open state: %w", err)
	}
	rt, err := runtime.New(cfg, stateTrie, logger)
	if err != nil {
		return nil, err
	}
	n.rt = rt

	if head == nil {
		if err := n.initGenesis(); err != nil {
			return nil, err
		}
	} else {
		n.head = head
		logger.Info("resumed chain", "height", head.Height, "root", fmt.Sprintf("0x%x", head.StateRoot))
	}
	return n, nil
}

func (n *Node) loadHead() (*types.BlockHeader, error) {
	raw, err := n.db.Get(headKey)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("node: load head: %w", err)
	}
	header := new(types.BlockHeader)
	if err := json.Unmarshal(raw, header); err != nil {
		return nil, fmt.Errorf("node: decode head: %w", err)
	}
	return header, nil
}

func (n *Node) initGenesis() error {
	if path := strings.TrimSpace(n.cfg.GenesisFile); path != "" {
		spec, err := genesis.Load(path)
		if err != nil {
			return err
		}
		if err := n.rt.ApplyGenesis(spec); err != nil {
			return err
		}
	}
	root, err := n.rt.Commit(0)
	if err != nil {
		return fmt.Errorf("node: commit genesis: %w", err)
	}
	header := &types.BlockHeader{
		Height:    0,
		StateRoot: root.Bytes(),
		Timestamp: n.now().Unix(),
	}
	if err := n.storeBlock(header, nil); err != nil {
		return err
	}
	n.head = header
	n.logger.Info("initialised genesis", "root", root.Hex(), "network", n.cfg.NetworkName)
	return nil
}

func (n *Node) storeBlock(header *types.BlockHeader, receipts []*types.Receipt) error {
	for _, receipt := range receipts {
		raw, err := json.Marshal(receipt)
		if err != nil {
			return err
		}
		if err := n.db.Put(receiptKey(receipt.TxHash), raw); err != nil {
			return fmt.Errorf("node: store receipt: %w", err)
		}
	}
	raw, err := json.Marshal(header)
	if err != nil {
		return err
	}
	if err := n.db.Put(blockKey(header.Height), raw); err != nil {
		return fmt.Errorf("node: store block: %w", err)
	}
	if err := n.db.Put(headKey, raw); err != nil {
		return fmt.Errorf("node: store head: %w", err)
	}
	return nil
}

// SubmitTransaction queues a signed transaction from the public surface and
// returns its hash.
func (n *Node) SubmitTransaction(tx *types.Transaction) ([]byte, error) {
	if tx == nil {
		return nil, fmt.Errorf("node: transaction required")
	}
	if tx.Root {
		return nil, ErrRootFlag
	}
	if tx.ChainID != n.rt.ChainID() {
		return nil, ErrWrongChain
	}
	if _, err := tx.From(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsigned, err)
	}
	if _, err := n.rt.DecodeCall(tx.Module, tx.Method, tx.Params); err != nil {
		return nil, err
	}
	return n.enqueue(tx)
}

// SubmitRootTransaction queues a call under the root origin. Callers must
// have authenticated the operator.
func (n *Node) SubmitRootTransaction(module, method string, params json.RawMessage) ([]byte, error) {
	if _, err := n.rt.DecodeCall(module, method, params); err != nil {
		return nil, err
	}
	n.stateMu.Lock()
	height := n.head.Height
	n.stateMu.Unlock()
	tx := &types.Transaction{
		ChainID: n.rt.ChainID(),
		// Root transactions have no replay nonce. This only keeps repeated
		// identical calls distinct in the pool.
		Nonce:  uint64(n.now().UnixNano()) ^ height,
		Module: module,
		Method: method,
		Params: params,
		Root:   true,
	}
	return n.enqueue(tx)
}

func (n *Node) enqueue(tx *types.Transaction) ([]byte, error) {
	hash, err := tx.Hash()
	if err != nil {
		return nil, err
	}
	if err := n.pool.Add(tx); err != nil {
		return nil, err
	}
	return hash, nil
}

// PendingCount reports the mempool size.
func (n *Node) PendingCount() int { return n.pool.Len() }

// ProduceBlock executes the next batch of pending transactions on top of the
// current head and commits the result.
func (n *Node) ProduceBlock(ctx context.Context) (*types.BlockHeader, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	parent := n.head
	height := parent.Height + 1
	var txs []*types.Transaction
	abort := func(cause error) (*types.BlockHeader, error) {
		if err := n.rt.AbortBlock(gethcommon.BytesToHash(parent.StateRoot), parent.Height); err != nil {
			cause = errors.Join(cause, err)
		}
		n.pool.Requeue(txs)
		n.logger.Error("block aborted", "height", height, "requeued", len(txs), "error", cause)
		return nil, cause
	}
	if err := n.rt.BeginBlock(ctx, height); err != nil {
		return abort(err)
	}

	txs = n.pool.Take(n.maxTxs)
	receipts := make([]*types.Receipt, 0, len(txs))
	for _, tx := range txs {
		receipt, err := n.rt.ApplyTransaction(ctx, tx)
		if err != nil {
			n.logger.Warn("dropped transaction", "module", tx.Module, "method", tx.Method, "error", err)
			continue
		}
		receipts = append(receipts, receipt)
	}

	root, err := n.rt.Commit(height)
	if err != nil {
		return abort(err)
	}
	parentHash, err := headerHash(parent)
	if err != nil {
		return abort(err)
	}
	header := &types.BlockHeader{
		Height:    height,
		Parent:    parentHash,
		StateRoot: root.Bytes(),
		Timestamp: n.now().Unix(),
		TxCount:   len(receipts),
	}
	if err := n.storeBlock(header, receipts); err != nil {
		return abort(err)
	}
	n.head = header

	evts := n.rt.DrainEvents()
	if n.sink != nil {
		if err := n.sink.RecordBlock(ctx, header, evts); err != nil {
			n.logger.Error("index block", "height", height, "error", err)
		}
	}
	n.publish(BlockUpdate{Header: header, Events: evts})
	n.logger.Debug("produced block", "height", height, "txs", len(receipts), "events", len(evts))
	return header, nil
}

// Subscribe registers for block updates. Updates are dropped for subscribers
// whose buffer is full. The returned function unsubscribes.
func (n *Node) Subscribe(buffer int) (<-chan BlockUpdate, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan BlockUpdate, buffer)
	n.subsMu.Lock()
	id := n.nextSub
	n.nextSub++
	n.subs[id] = ch
	n.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			n.subsMu.Lock()
			delete(n.subs, id)
			n.subsMu.Unlock()
			close(ch)
		})
	}
}

func (n *Node) publish(update BlockUpdate) {
	n.subsMu.Lock()
	defer n.subsMu.Unlock()
	for id, ch := range n.subs {
		select {
		case ch <- update:
		default:
			n.logger.Warn("dropping block update for slow subscriber", "subscriber", id, "height", update.Header.Height)
		}
	}
}

// Run produces blocks on the configured interval until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	interval := time.Duration(n.cfg.BlockIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := n.ProduceBlock(ctx); err != nil {
				n.logger.Error("block production failed", "error", err)
				return err
			}
		}
	}
}

// View runs fn against the runtime while holding the state lock. fn must not
// retain the runtime.
func (n *Node) View(fn func(rt *runtime.Runtime) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return fn(n.rt)
}

// Height returns the height of the current head.
func (n *Node) Height() uint64 {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.head.Height
}

// Head returns a copy of the current head header.
func (n *Node) Head() types.BlockHeader {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return *n.head
}

// ChainID returns the local chain id.
func (n *Node) ChainID() uint64 { return n.rt.ChainID() }

// Header loads the stored header at height.
func (n *Node) Header(height uint64) (*types.BlockHeader, error) {
	raw, err := n.db.Get(blockKey(height))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, err
	}
	header := new(types.BlockHeader)
	if err := json.Unmarshal(raw, header); err != nil {
		return nil, err
	}
	return header, nil
}

// Receipt loads the receipt for the transaction hash.
func (n *Node) Receipt(hash []byte) (*types.Receipt, error) {
	raw, err := n.db.Get(receiptKey(hash))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrReceiptNotFound
	}
	if err != nil {
		return nil, err
	}
	receipt := new(types.Receipt)
	if err := json.Unmarshal(raw, receipt); err != nil {
		return nil, err
	}
	return receipt, nil
}

func headerHash(header *types.BlockHeader) ([]byte, error) {
	raw, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(raw), nil
}
