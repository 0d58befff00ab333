package kadena

type Capability struct {
	Name string `json:"name"`
	Args []any  `json:"args"`
}

type Signer struct {
	PubKey string       `json:"pubKey"`
	Clist  []Capability `json:"clist,omitempty"`
}

type Exec struct {
	Code string         `json:"code"`
	Data map[string]any `json:"data"`
}

type Payload struct {
	Exec Exec `json:"exec"`
}

type Meta struct {
	ChainID      string  `json:"chainId"`
	CreationTime int64   `json:"creationTime"`
	GasLimit     int64   `json:"gasLimit"`
	GasPrice     float64 `json:"gasPrice"`
	Sender       string  `json:"sender"`
	TTL          int64   `json:"ttl"`
}

// Command is the Pact command whose JSON serialization is hashed and signed.
type Command struct {
	NetworkID string   `json:"networkId"`
	Payload   Payload  `json:"payload"`
	Signers   []Signer `json:"signers"`
	Meta      Meta     `json:"meta"`
	Nonce     string   `json:"nonce"`
}

type SigningRequest struct {
	Code          string         `json:"code"`
	Data          map[string]any `json:"data"`
	Caps          []Capability   `json:"caps"`
	Nonce         string         `json:"nonce"`
	ChainID       string         `json:"chainId"`
	GasLimit      int64          `json:"gasLimit"`
	GasPrice      float64        `json:"gasPrice"`
	Sender        string         `json:"sender"`
	TTL           int64          `json:"ttl"`
	CreationTime  int64          `json:"creationTime"`
	NetworkID     string         `json:"networkId"`
	SigningPubKey string         `json:"signingPubKey"`
}

type Sig struct {
	PubKey string  `json:"pubKey,omitempty"`
	Sig    *string `json:"sig"`
}

type SignedCommand struct {
	Cmd  string `json:"cmd"`
	Hash string `json:"hash"`
	Sigs []Sig  `json:"sigs"`
}

type SignResponse struct {
	Body    *SignedCommand `json:"body"`
	ChainID string         `json:"chainId,omitempty"`
}

type CommandSigData struct {
	Cmd  string `json:"cmd"`
	Sigs []Sig  `json:"sigs"`
}

type QuicksignParams struct {
	CommandSigDatas []CommandSigData `json:"commandSigDatas"`
}

type QuicksignOutcome struct {
	Result string `json:"result"`
	Hash   string `json:"hash,omitempty"`
	Msg    string `json:"msg,omitempty"`
}

type QuicksignResponse struct {
	CommandSigData CommandSigData   `json:"commandSigData"`
	Outcome        QuicksignOutcome `json:"outcome"`
}

type QuicksignResult struct {
	Responses []QuicksignResponse `json:"responses"`
}
