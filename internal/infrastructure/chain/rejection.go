package chain

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
)

// Substrings of the txpool errors geth, Hardhat and Anvil return for a rejected transaction.
var rejectionPatterns = []struct {
	substr string
	reason model.RejectionReason
}{
	{"nonce too low", model.ReasonNonceTooLow},
	{"insufficient funds", model.ReasonInsufficientFunds},
	{"intrinsic gas too low", model.ReasonGasTooLow},
	{"gas too low", model.ReasonGasTooLow},
	{"already known", model.ReasonAlreadyKnown},
	{"known transaction", model.ReasonAlreadyKnown},
	{"replacement transaction underpriced", model.ReasonUnderpriced},
	{"transaction underpriced", model.ReasonUnderpriced},
}

// receiptPending reports whether a receipt lookup error only means "not yet".
// Nodes answer with an indexing error while the transaction index is behind.
func receiptPending(err error) bool {
	return errors.Is(err, ethereum.NotFound) || strings.Contains(err.Error(), "transaction indexing is in progress")
}

func classifyRejection(err error) model.RejectionReason {
	msg := strings.ToLower(err.Error())
	for _, p := range rejectionPatterns {
		if strings.Contains(msg, p.substr) {
			return p.reason
		}
	}
	return model.ReasonUnknown
}
