package multiversx

// Transaction field order is the canonical signing order.
type Transaction struct {
	Nonce    uint64 `json:"nonce"`
	Value    string `json:"value"`
	Receiver string `json:"receiver"`
	Sender   string `json:"sender"`
	GasPrice uint64 `json:"gasPrice"`
	GasLimit uint64 `json:"gasLimit"`
	Data     string `json:"data,omitempty"`
	ChainID  string `json:"chainID"`
	Version  uint32 `json:"version"`
}

type SignTransactionParams struct {
	Transaction *Transaction `json:"transaction"`
}

type SignTransactionsParams struct {
	Transactions []*Transaction `json:"transactions"`
}

type SignMessageParams struct {
	Address string `json:"address"`
	Message string `json:"message"`
}

type SignatureResult struct {
	Signature string `json:"signature"`
}

type SignaturesResult struct {
	Signatures []SignatureResult `json:"signatures"`
}
