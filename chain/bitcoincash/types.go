package bitcoincash

import (
	"github.com/dapplink-baas/wallet-connect-dapp/extjson"
)

type Input struct {
	OutpointIndex           uint32        `json:"outpointIndex"`
	OutpointTransactionHash extjson.Bytes `json:"outpointTransactionHash"`
	SequenceNumber          uint32        `json:"sequenceNumber"`
	UnlockingBytecode       extjson.Bytes `json:"unlockingBytecode"`
}

type Output struct {
	LockingBytecode extjson.Bytes  `json:"lockingBytecode"`
	ValueSatoshis   extjson.BigInt `json:"valueSatoshis"`
}

type Transaction struct {
	Inputs   []Input  `json:"inputs"`
	Locktime uint32   `json:"locktime"`
	Outputs  []Output `json:"outputs"`
	Version  uint32   `json:"version"`
}

// ContractInfo marks an input that unlocks a covenant script.
type ContractInfo struct {
	RedeemScript extjson.Bytes `json:"redeemScript"`
}

// SourceOutput is the output an input spends, needed to compute its sighash.
type SourceOutput struct {
	Input
	LockingBytecode extjson.Bytes  `json:"lockingBytecode"`
	ValueSatoshis   extjson.BigInt `json:"valueSatoshis"`
	Contract        *ContractInfo  `json:"contract,omitempty"`
}

type SignTransactionParams struct {
	Transaction   Transaction    `json:"transaction"`
	SourceOutputs []SourceOutput `json:"sourceOutputs"`
	Broadcast     bool           `json:"broadcast"`
	UserPrompt    string         `json:"userPrompt"`
}

type SignTransactionResult struct {
	SignedTransaction     string `json:"signedTransaction"`
	SignedTransactionHash string `json:"signedTransactionHash"`
}

type SignMessageParams struct {
	Address    string `json:"address"`
	Message    string `json:"message"`
	UserPrompt string `json:"userPrompt"`
}
