package main

import (
	"testing"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dapplink-baas/wallet-connect-dapp/config"
	"github.com/dapplink-baas/wallet-connect-dapp/leveldb"
)

func TestSeedDirectory(t *testing.T) {
	accounts, err := leveldb.NewMemoryAccountStore()
	require.NoError(t, err)
	defer accounts.Close()

	conf := &config.Config{
		Accounts: []string{
			"eip155:1:0xAbC0000000000000000000000000000000000001",
			"near:testnet:" + "a1b2c3d4e5f60718293a4b5c6d7e8f90a1b2c3d4e5f60718293a4b5c6d7e8f90",
		},
		Balances: map[string]string{
			"eip155:1:0xAbC0000000000000000000000000000000000001": "1000000000000000000000",
		},
	}
	require.NoError(t, seedDirectory(conf, accounts))

	assert.ElementsMatch(t, []string{"eip155:1", "near:testnet"}, accounts.ChainIDs())
	balance, ok := accounts.GetBalance("eip155:1", "0xabc0000000000000000000000000000000000001")
	require.True(t, ok)
	assert.Equal(t, "1000000000000000000000", balance.String())
}

func TestSeedDirectoryRejectsBadBalance(t *testing.T) {
	accounts, err := leveldb.NewMemoryAccountStore()
	require.NoError(t, err)
	defer accounts.Close()

	err = seedDirectory(&config.Config{Balances: map[string]string{"eip155:1:0x01": "1.5"}}, accounts)
	assert.ErrorContains(t, err, "invalid balance")

	err = seedDirectory(&config.Config{Balances: map[string]string{"eip155:0x01": "1"}}, accounts)
	assert.Error(t, err)
}

func TestCliCommands(t *testing.T) {
	app := NewCli()
	var names []string
	for _, c := range app.Commands {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"methods", "accounts", "ping", "call"}, names)
}

func TestParseLevel(t *testing.T) {
	level, err := parseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, log.LevelDebug, level)

	level, err = parseLevel("trace")
	require.NoError(t, err)
	assert.Equal(t, log.LevelTrace, level)

	_, err = parseLevel("verbose")
	assert.Error(t, err)
}
