package leveldb

import (
	"encoding/json"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	accountPrefix = "accounts/"
	balancePrefix = "balances/"
)

// Accounts is the account directory: approved addresses per chain id and the
// last balance known for each address.
type Accounts struct {
	db *LevelStore
}

func NewAccountStore(path string) (*Accounts, error) {
	db, err := NewLevelStore(path)
	if err != nil {
		log.Error("Could not create leveldb database.", "err", err)
		return nil, err
	}
	return &Accounts{db: db}, nil
}

func NewMemoryAccountStore() (*Accounts, error) {
	db, err := NewMemoryStore()
	if err != nil {
		return nil, err
	}
	return &Accounts{db: db}, nil
}

func (a *Accounts) Close() error {
	return a.db.Close()
}

// StoreAccounts records CAIP-10 account ids, grouping them by chain id.
// Existing entries for a chain are replaced.
func (a *Accounts) StoreAccounts(accounts []string) error {
	grouped := make(map[string][]string)
	for _, account := range accounts {
		parts := strings.SplitN(account, ":", 3)
		if len(parts) != 3 {
			return errors.Errorf("invalid chain account %q", account)
		}
		chainID := parts[0] + ":" + parts[1]
		grouped[chainID] = append(grouped[chainID], parts[2])
	}
	for chainID, addresses := range grouped {
		data, err := json.Marshal(addresses)
		if err != nil {
			return err
		}
		if err := a.db.Put([]byte(accountPrefix+chainID), data); err != nil {
			log.Error("store accounts fail", "chain", chainID, "err", err)
			return err
		}
	}
	return nil
}

func (a *Accounts) GetAccounts(chainID string) []string {
	data, err := a.db.Get([]byte(accountPrefix + chainID))
	if err != nil || data == nil {
		return nil
	}
	var addresses []string
	if err := json.Unmarshal(data, &addresses); err != nil {
		log.Error("decode accounts fail", "chain", chainID, "err", err)
		return nil
	}
	return addresses
}

// ChainIDs lists every chain id with at least one stored account.
func (a *Accounts) ChainIDs() []string {
	iter := a.db.NewIterator(util.BytesPrefix([]byte(accountPrefix)), nil)
	defer iter.Release()
	var out []string
	for iter.Next() {
		out = append(out, strings.TrimPrefix(string(iter.Key()), accountPrefix))
	}
	return out
}

func (a *Accounts) HasAccount(chainID, address string) bool {
	for _, addr := range a.GetAccounts(chainID) {
		if strings.EqualFold(addr, address) {
			return true
		}
	}
	return false
}

func (a *Accounts) StoreBalance(chainID, address string, balance *big.Int) error {
	if balance == nil {
		return errors.New("nil balance")
	}
	return a.db.Put(balanceKey(chainID, address), []byte(balance.String()))
}

func (a *Accounts) GetBalance(chainID, address string) (*big.Int, bool) {
	data, err := a.db.Get(balanceKey(chainID, address))
	if err != nil || data == nil {
		return nil, false
	}
	balance, ok := new(big.Int).SetString(string(data), 10)
	return balance, ok
}

func balanceKey(chainID, address string) []byte {
	return []byte(balancePrefix + chainID + "/" + strings.ToLower(address))
}
