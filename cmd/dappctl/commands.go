package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/log"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"google.golang.org/grpc"

	"github.com/dapplink-baas/wallet-connect-dapp/chain"
	"github.com/dapplink-baas/wallet-connect-dapp/chaindispatcher"
	"github.com/dapplink-baas/wallet-connect-dapp/config"
	"github.com/dapplink-baas/wallet-connect-dapp/leveldb"
	"github.com/dapplink-baas/wallet-connect-dapp/metrics"
	"github.com/dapplink-baas/wallet-connect-dapp/session"
)

type runtime struct {
	conf       *config.Config
	accounts   *leveldb.Accounts
	dispatcher *chaindispatcher.ChainDispatcher
	conn       *grpc.ClientConn
}

func (r *runtime) Close() {
	if r.conn != nil {
		_ = r.conn.Close()
	}
	if r.accounts != nil {
		_ = r.accounts.Close()
	}
}

func loadConfig(ctx *cli.Context) (*config.Config, error) {
	conf, err := config.NewConfig(ctx.String(ConfigFlag.Name))
	if err != nil {
		return nil, err
	}
	if ctx.IsSet(TestnetFlag.Name) {
		conf.Testnet = ctx.Bool(TestnetFlag.Name)
	}
	if ctx.IsSet(LogLevelFlag.Name) {
		conf.LogLevel = ctx.String(LogLevelFlag.Name)
	}
	level, err := parseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, level, true)))
	return conf, nil
}

var logLevels = map[string]slog.Level{
	"trace": log.LevelTrace,
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
	"crit":  log.LevelCrit,
}

func parseLevel(s string) (slog.Level, error) {
	level, ok := logLevels[strings.ToLower(s)]
	if !ok {
		return 0, errors.Errorf("invalid log level %s", s)
	}
	return level, nil
}

// seedDirectory records the configured session accounts and balances.
func seedDirectory(conf *config.Config, accounts *leveldb.Accounts) error {
	if err := accounts.StoreAccounts(conf.Accounts); err != nil {
		return err
	}
	for caip, value := range conf.Balances {
		account, err := chain.ParseChainAccount(caip)
		if err != nil {
			return errors.Wrap(err, "parse balance account")
		}
		balance, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return errors.Errorf("invalid balance %q for %s", value, caip)
		}
		if err := accounts.StoreBalance(account.ChainID(), account.Address, balance); err != nil {
			return err
		}
	}
	return nil
}

func serveMetrics(address string) metrics.OrchestratorMetrics {
	if address == "" {
		return metrics.Noop()
	}
	registry := prometheus.NewRegistry()
	m := metrics.InitMetrics(registry)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(address, mux); err != nil {
			log.Error("metrics server stopped", "address", address, "err", err)
		}
	}()
	log.Info("serving metrics", "address", address)
	return m
}

// newRuntime builds the dispatcher and, when connect is set, binds it to the
// relay session.
func newRuntime(ctx *cli.Context, connect bool) (*runtime, error) {
	conf, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}
	r := &runtime{conf: conf}
	if r.accounts, err = leveldb.NewAccountStore(conf.LevelDbPath); err != nil {
		log.Error("new account store level db", "err", err)
		return nil, err
	}
	if err := seedDirectory(conf, r.accounts); err != nil {
		r.Close()
		return nil, err
	}
	r.dispatcher, err = chaindispatcher.NewChainDispatcher(conf, r.accounts, chaindispatcher.WithMetrics(serveMetrics(conf.MetricsAddress)))
	if err != nil {
		r.Close()
		return nil, err
	}
	if !connect {
		return r, nil
	}
	channel, conn, err := session.Dial(conf.RelayAddress)
	if err != nil {
		r.Close()
		return nil, err
	}
	r.conn = conn
	s := &session.Session{Topic: conf.Topic, Accounts: conf.Accounts}
	if err := r.dispatcher.Connect(session.WithTimeout(channel, conf.RequestTimeout), s); err != nil {
		r.Close()
		return nil, err
	}
	return r, nil
}

func runMethods(ctx *cli.Context) error {
	r, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer r.Close()
	for _, ns := range r.dispatcher.Namespaces() {
		methods, _ := r.dispatcher.Methods(ns)
		ops, _ := r.dispatcher.Operations(ns)
		labels := make([]string, 0, len(ops))
		for label := range ops {
			labels = append(labels, label)
		}
		sort.Strings(labels)
		fmt.Printf("%s\n  methods:    %v\n  operations: %v\n", ns, methods, labels)
	}
	return nil
}

func runAccounts(ctx *cli.Context) error {
	r, err := newRuntime(ctx, false)
	if err != nil {
		return err
	}
	defer r.Close()
	for _, chainID := range r.accounts.ChainIDs() {
		for _, address := range r.accounts.GetAccounts(chainID) {
			balance, ok := r.accounts.GetBalance(chainID, address)
			if ok {
				fmt.Printf("%s:%s\t%s\n", chainID, address, balance)
			} else {
				fmt.Printf("%s:%s\n", chainID, address)
			}
		}
	}
	return nil
}

func runPing(ctx *cli.Context) error {
	r, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.dispatcher.Ping(context.Background()); err != nil {
		return errors.Wrap(err, "ping session")
	}
	return printResult(r.dispatcher.Result())
}

func runCall(ctx *cli.Context) error {
	r, err := newRuntime(ctx, true)
	if err != nil {
		return err
	}
	defer r.Close()
	if err := r.dispatcher.Call(context.Background(), ctx.String(ChainFlag.Name), ctx.String(AddressFlag.Name), ctx.String(OpFlag.Name)); err != nil {
		return err
	}
	return printResult(r.dispatcher.Result())
}

func printResult(res chain.FormattedResult) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
