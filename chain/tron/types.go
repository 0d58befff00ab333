package tron

import (
	"encoding/json"

	"google.golang.org/protobuf/encoding/protowire"
)

const transferContractType = "TransferContract"

type TransferValue struct {
	Amount       int64  `json:"amount"`
	OwnerAddress string `json:"owner_address"`
	ToAddress    string `json:"to_address"`
}

type ContractParameter struct {
	Value   TransferValue `json:"value"`
	TypeURL string        `json:"type_url"`
}

type Contract struct {
	Parameter ContractParameter `json:"parameter"`
	Type      string            `json:"type"`
}

type RawData struct {
	Contract      []Contract `json:"contract"`
	RefBlockBytes string     `json:"ref_block_bytes"`
	RefBlockHash  string     `json:"ref_block_hash"`
	Expiration    int64      `json:"expiration"`
	Timestamp     int64      `json:"timestamp"`
}

type Transaction struct {
	Visible    bool     `json:"visible"`
	TxID       string   `json:"txID"`
	RawData    RawData  `json:"raw_data"`
	RawDataHex string   `json:"raw_data_hex"`
	Signature  []string `json:"signature,omitempty"`
}

type TransactionEnvelope struct {
	Transaction *Transaction `json:"transaction"`
}

// SignTransactionParams names the node the transaction was built against, so
// the wallet broadcasts and looks it up on the same network.
type SignTransactionParams struct {
	Address     string              `json:"address"`
	FullHost    string              `json:"fullHost"`
	Transaction TransactionEnvelope `json:"transaction"`
}

type SignMessageParams struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

// SignatureResult covers both wallet reply shapes: a bare signature or a
// signed transaction carrying a signature list.
type SignatureResult struct {
	Signature json.RawMessage `json:"signature"`
	TxID      string          `json:"txID,omitempty"`
}

type signRequest struct {
	params SignTransactionParams
	txID   []byte
}

func appendInt(b []byte, num protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// encodeTransfer encodes protocol.Transaction.raw holding one TransferContract.
func encodeTransfer(owner, to []byte, amount int64, refBlockBytes, refBlockHash []byte, expiration, timestamp int64) []byte {
	var transfer []byte
	transfer = appendBytes(transfer, 1, owner)
	transfer = appendBytes(transfer, 2, to)
	transfer = appendInt(transfer, 3, amount)

	var param []byte
	param = protowire.AppendTag(param, 1, protowire.BytesType)
	param = protowire.AppendString(param, "type.googleapis.com/protocol.TransferContract")
	param = appendBytes(param, 2, transfer)

	var contract []byte
	contract = appendInt(contract, 1, 1)
	contract = appendBytes(contract, 2, param)

	var raw []byte
	raw = appendBytes(raw, 1, refBlockBytes)
	raw = appendBytes(raw, 4, refBlockHash)
	raw = appendInt(raw, 8, expiration)
	raw = appendBytes(raw, 11, contract)
	return appendInt(raw, 14, timestamp)
}
