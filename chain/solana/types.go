package solana

import (
	"github.com/gagliardetto/solana-go"
)

type TransactionParams struct {
	Pubkey      string `json:"pubkey"`
	Transaction string `json:"transaction"`
}

type MessageParams struct {
	Pubkey  string `json:"pubkey"`
	Message string `json:"message"`
}

type AllTransactionsParams struct {
	Transactions []string `json:"transactions"`
}

type SignatureResult struct {
	Signature   string `json:"signature"`
	Transaction string `json:"transaction,omitempty"`
}

type AllTransactionsResult struct {
	Transactions []string `json:"transactions"`
}

// unsignedTx keeps the message bytes a signature must cover next to the
// serialized transaction sent to the wallet.
type unsignedTx struct {
	tx      *solana.Transaction
	message []byte
	encoded string
}
