package chain

// FormattedResult is the single outward-facing shape of a completed call.
type FormattedResult struct {
	Method  string `json:"method,omitempty"`
	Address string `json:"address,omitempty"`
	Valid   bool   `json:"valid"`
	Result  string `json:"result"`
}

type Verdict struct {
	Valid  bool
	Result string
}

func Verified(valid bool, result string) Verdict {
	return Verdict{Valid: valid, Result: result}
}

// Failed builds the negative result recorded for a caught error.
func Failed(address string, err error) *FormattedResult {
	return &FormattedResult{Address: address, Valid: false, Result: err.Error()}
}

func Rejected(method, address, cause string) *FormattedResult {
	return &FormattedResult{Method: method, Address: address, Valid: false, Result: cause}
}

const InsufficientFunds = "Insufficient funds for intrinsic transaction cost"

// AllValid folds a batch verification: the batch is valid only when every element is.
func AllValid(verdicts []bool) bool {
	if len(verdicts) == 0 {
		return false
	}
	for _, v := range verdicts {
		if !v {
			return false
		}
	}
	return true
}
