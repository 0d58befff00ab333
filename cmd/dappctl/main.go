package main

import (
	"os"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
)

var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "./config.yml",
		Usage:   "path to the yaml config file",
		EnvVars: []string{"DAPPCTL_CONFIG"},
	}
	TestnetFlag = &cli.BoolFlag{
		Name:  "testnet",
		Usage: "target testnet nodes where a namespace distinguishes them",
	}
	LogLevelFlag = &cli.StringFlag{
		Name:  "log-level",
		Usage: "log level (trace, debug, info, warn, error, crit)",
	}
	ChainFlag = &cli.StringFlag{
		Name:     "chain",
		Usage:    "CAIP-2 chain id, e.g. eip155:1",
		Required: true,
	}
	AddressFlag = &cli.StringFlag{
		Name:     "address",
		Usage:    "account address on the chain",
		Required: true,
	}
	OpFlag = &cli.StringFlag{
		Name:     "op",
		Usage:    "operation label, see the methods command",
		Required: true,
	}
)

func NewCli() *cli.App {
	return &cli.App{
		Name:                 "dappctl",
		Usage:                "drive wallet signing requests across chain namespaces",
		EnableBashCompletion: true,
		Flags:                []cli.Flag{ConfigFlag, TestnetFlag, LogLevelFlag},
		Commands: []*cli.Command{
			{
				Name:   "methods",
				Usage:  "list the rpc methods and operations of every configured namespace",
				Action: runMethods,
			},
			{
				Name:   "accounts",
				Usage:  "seed the account directory from the config and list it",
				Action: runAccounts,
			},
			{
				Name:   "ping",
				Usage:  "check the session is alive",
				Action: runPing,
			},
			{
				Name:   "call",
				Usage:  "dispatch one operation and print its result",
				Flags:  []cli.Flag{ChainFlag, AddressFlag, OpFlag},
				Action: runCall,
			},
		},
	}
}

func main() {
	app := NewCli()
	if err := app.Run(os.Args); err != nil {
		log.Error("Application failed", "err", err)
		os.Exit(1)
	}
}
