package cosmos

import (
	"google.golang.org/protobuf/encoding/protowire"
)

type Coin struct {
	Amount string `json:"amount"`
	Denom  string `json:"denom"`
}

// Field order is alphabetical so encoding/json emits the sorted form amino
// signers hash.
type StdFee struct {
	Amount []Coin `json:"amount"`
	Gas    string `json:"gas"`
}

type StdSignDoc struct {
	AccountNumber string `json:"account_number"`
	ChainID       string `json:"chain_id"`
	Fee           StdFee `json:"fee"`
	Memo          string `json:"memo"`
	Msgs          []any  `json:"msgs"`
	Sequence      string `json:"sequence"`
}

// SignDoc is the direct-mode sign document. Byte fields travel as hex.
type SignDoc struct {
	ChainID       string `json:"chainId"`
	AccountNumber string `json:"accountNumber"`
	AuthInfoBytes string `json:"authInfoBytes"`
	BodyBytes     string `json:"bodyBytes"`
}

type SignDirectParams struct {
	SignerAddress string  `json:"signerAddress"`
	SignDoc       SignDoc `json:"signDoc"`
}

type SignAminoParams struct {
	SignerAddress string     `json:"signerAddress"`
	SignDoc       StdSignDoc `json:"signDoc"`
}

type PubKey struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type StdSignature struct {
	PubKey    PubKey `json:"pub_key"`
	Signature string `json:"signature"`
}

type SignResponse struct {
	Signature StdSignature `json:"signature"`
}

// directDoc pairs the transmitted direct sign document with the bytes a
// signature must cover.
type directDoc struct {
	params    SignDirectParams
	signBytes []byte
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func encodeCoin(c Coin) []byte {
	var b []byte
	b = appendString(b, 1, c.Denom)
	return appendString(b, 2, c.Amount)
}

// encodeMsgSend encodes cosmos.bank.v1beta1.MsgSend wrapped in google.protobuf.Any.
func encodeMsgSend(from, to string, amount Coin) []byte {
	var msg []byte
	msg = appendString(msg, 1, from)
	msg = appendString(msg, 2, to)
	msg = appendBytes(msg, 3, encodeCoin(amount))

	var wrapped []byte
	wrapped = appendString(wrapped, 1, "/cosmos.bank.v1beta1.MsgSend")
	return appendBytes(wrapped, 2, msg)
}

func encodeTxBody(msgs [][]byte, memo string) []byte {
	var b []byte
	for _, m := range msgs {
		b = appendBytes(b, 1, m)
	}
	if memo != "" {
		b = appendString(b, 2, memo)
	}
	return b
}

func encodeAuthInfo(fee Coin, gasLimit uint64) []byte {
	var f []byte
	f = appendBytes(f, 1, encodeCoin(fee))
	f = appendVarint(f, 2, gasLimit)

	var b []byte
	return appendBytes(b, 2, f)
}

// encodeSignDoc encodes cosmos.tx.v1beta1.SignDoc.
func encodeSignDoc(body, authInfo []byte, chainID string, accountNumber uint64) []byte {
	var b []byte
	b = appendBytes(b, 1, body)
	b = appendBytes(b, 2, authInfo)
	b = appendString(b, 3, chainID)
	return appendVarint(b, 4, accountNumber)
}
