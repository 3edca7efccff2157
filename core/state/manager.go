package state

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"lanebridge/core/types"
	"lanebridge/storage/trie"
)

// ErrInvalidSnapshot is returned when reverting or discarding an unknown
// snapshot identifier.
var ErrInvalidSnapshot = errors.New("state: invalid snapshot")

// Manager provides keyed access to the state trie along with transactional
// snapshots. Every module stores its data through the KV helpers so that a
// single revert undoes all writes performed since the snapshot was taken.
//
// Manager is not safe for concurrent use.
type Manager struct {
	trie      *trie.Trie
	snapshots []*trie.Trie
}

// NewManager creates a state manager operating on the provided trie.
func NewManager(tr *trie.Trie) *Manager {
	return &Manager{trie: tr}
}

var accountPrefix = []byte("account:")

func accountKey(addr []byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr)
	return ethcrypto.Keccak256(buf)
}

func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// GetAccount loads the account stored under addr. Unknown accounts are
// returned with a zero balance.
func (m *Manager) GetAccount(addr []byte) (*types.Account, error) {
	if len(addr) == 0 {
		return nil, fmt.Errorf("address must not be empty")
	}
	data, err := m.trie.Get(accountKey(addr))
	if err != nil {
		return nil, err
	}
	account := &types.Account{Balance: big.NewInt(0)}
	if len(data) == 0 {
		return account, nil
	}
	if err := rlp.DecodeBytes(data, account); err != nil {
		return nil, err
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	return account, nil
}

// PutAccount stores the account under addr. An account with a zero balance
// and zero nonce is reaped from the trie.
func (m *Manager) PutAccount(addr []byte, account *types.Account) error {
	if len(addr) == 0 {
		return fmt.Errorf("address must not be empty")
	}
	if account == nil {
		return fmt.Errorf("account must not be nil")
	}
	if account.Balance == nil {
		account.Balance = big.NewInt(0)
	}
	if account.Balance.Sign() < 0 {
		return fmt.Errorf("negative balance not allowed")
	}
	if account.Balance.Sign() == 0 && account.Nonce == 0 {
		return m.trie.Delete(accountKey(addr))
	}
	encoded, err := rlp.EncodeToBytes(account)
	if err != nil {
		return err
	}
	return m.trie.Update(accountKey(addr), encoded)
}

// AccountExists reports whether the account has been stored.
func (m *Manager) AccountExists(addr []byte) (bool, error) {
	data, err := m.trie.Get(accountKey(addr))
	if err != nil {
		return false, err
	}
	return len(data) > 0, nil
}

// KVPut stores an RLP-encoded value under the hashed key.
func (m *Manager) KVPut(key []byte, value interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.trie.Update(kvKey(key), encoded)
}

// KVGet decodes the value stored under key into out. The boolean reports
// whether the key was present.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// KVDelete removes key from the state.
func (m *Manager) KVDelete(key []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	return m.trie.Delete(kvKey(key))
}

// KVAppend adds value to the list stored under key unless already present.
func (m *Manager) KVAppend(key []byte, value []byte) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	data, err := m.trie.Get(hashed)
	if err != nil {
		return err
	}
	var list [][]byte
	if len(data) > 0 {
		if err := rlp.DecodeBytes(data, &list); err != nil {
			return err
		}
	}
	for _, existing := range list {
		if bytes.Equal(existing, value) {
			return nil
		}
	}
	list = append(list, append([]byte(nil), value...))
	encoded, err := rlp.EncodeToBytes(list)
	if err != nil {
		return err
	}
	return m.trie.Update(hashed, encoded)
}

// KVGetList decodes the list stored under key into out, which must point to
// a slice. Missing keys yield an empty slice.
func (m *Manager) KVGetList(key []byte, out interface{}) error {
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.trie.Get(kvKey(key))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		val := reflect.ValueOf(out)
		if val.Kind() != reflect.Ptr || val.IsNil() {
			return fmt.Errorf("kv: destination must be a non-nil pointer")
		}
		elem := val.Elem()
		if elem.Kind() != reflect.Slice {
			return fmt.Errorf("kv: destination must point to a slice")
		}
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	return rlp.DecodeBytes(data, out)
}

// Snapshot records the current state and returns an identifier usable with
// RevertToSnapshot. Snapshots nest.
func (m *Manager) Snapshot() int {
	m.snapshots = append(m.snapshots, m.trie.Copy())
	return len(m.snapshots) - 1
}

// RevertToSnapshot restores the state recorded by Snapshot(id) and drops id
// together with every later snapshot.
func (m *Manager) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(m.snapshots) {
		return ErrInvalidSnapshot
	}
	m.trie = m.snapshots[id]
	m.snapshots = m.snapshots[:id]
	return nil
}

// DiscardSnapshot keeps the current state and forgets snapshot id together
// with every later snapshot.
func (m *Manager) DiscardSnapshot(id int) error {
	if id < 0 || id >= len(m.snapshots) {
		return ErrInvalidSnapshot
	}
	m.snapshots = m.snapshots[:id]
	return nil
}

// Hash returns the current root including uncommitted writes.
func (m *Manager) Hash() common.Hash {
	return m.trie.Hash()
}

// Root returns the last committed root.
func (m *Manager) Root() common.Hash {
	return m.trie.Root()
}

// Reset drops every uncommitted write and snapshot and reloads the state at
// root, which must already be committed.
func (m *Manager) Reset(root common.Hash) error {
	m.snapshots = nil
	return m.trie.Reset(root)
}

// Commit flushes the state to the trie database. Outstanding snapshots are
// invalidated.
func (m *Manager) Commit(blockNumber uint64) (common.Hash, error) {
	m.snapshots = nil
	return m.trie.Commit(m.trie.Root(), blockNumber)
}
