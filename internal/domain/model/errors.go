package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Rejection reasons reported by a node for a submitted transaction.
var (
	ErrNonceTooLow       = errors.New("nonce too low")
	ErrInsufficientFunds = errors.New("insufficient funds for gas * price + value")
	ErrGasTooLow         = errors.New("intrinsic gas too low")
	ErrAlreadyKnown      = errors.New("already known")
	ErrUnderpriced       = errors.New("replacement transaction underpriced")
)

// RejectionReason classifies an RPCError.
type RejectionReason int

const (
	ReasonUnknown RejectionReason = iota
	ReasonNonceTooLow
	ReasonInsufficientFunds
	ReasonGasTooLow
	ReasonAlreadyKnown
	ReasonUnderpriced
)

func (r RejectionReason) String() string {
	switch r {
	case ReasonNonceTooLow:
		return "nonce too low"
	case ReasonInsufficientFunds:
		return "insufficient funds"
	case ReasonGasTooLow:
		return "gas too low"
	case ReasonAlreadyKnown:
		return "already known"
	case ReasonUnderpriced:
		return "underpriced"
	default:
		return "unknown"
	}
}

func (r RejectionReason) sentinel() error {
	switch r {
	case ReasonNonceTooLow:
		return ErrNonceTooLow
	case ReasonInsufficientFunds:
		return ErrInsufficientFunds
	case ReasonGasTooLow:
		return ErrGasTooLow
	case ReasonAlreadyKnown:
		return ErrAlreadyKnown
	case ReasonUnderpriced:
		return ErrUnderpriced
	default:
		return nil
	}
}

// KeyFormatError indicates private or public key material that is not a valid secp256k1 key.
type KeyFormatError struct {
	Err error
}

func (e *KeyFormatError) Error() string {
	return fmt.Sprintf("invalid key format: %v", e.Err)
}

func (e *KeyFormatError) Unwrap() error {
	return e.Err
}

// RPCError indicates a transport failure, a malformed reply or a rejection by the node.
type RPCError struct {
	Method string
	Reason RejectionReason
	Err    error
}

func (e *RPCError) Error() string {
	if e.Reason != ReasonUnknown {
		return fmt.Sprintf("rpc %s rejected (%s): %v", e.Method, e.Reason, e.Err)
	}
	return fmt.Sprintf("rpc %s failed: %v", e.Method, e.Err)
}

// Unwrap exposes both the reason sentinel and the underlying error.
func (e *RPCError) Unwrap() []error {
	if sentinel := e.Reason.sentinel(); sentinel != nil {
		return []error{sentinel, e.Err}
	}
	return []error{e.Err}
}

// SigningError indicates the transaction could not be signed.
type SigningError struct {
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("signing failed: %v", e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates no receipt was observed within the polling bound.
// The transaction may still be mined later.
type TimeoutError struct {
	TxHash  common.Hash
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no receipt for %s within %s", e.TxHash.Hex(), e.Timeout)
}

// AddressMismatchError indicates the locally derived contract address disagrees
// with the one reported by the chain. Reported is nil when the receipt has none.
type AddressMismatchError struct {
	Sender   common.Address
	Nonce    uint64
	Expected common.Address
	Reported *common.Address
}

func (e *AddressMismatchError) Error() string {
	reported := "none"
	if e.Reported != nil {
		reported = e.Reported.Hex()
	}
	return fmt.Sprintf("contract address mismatch for %s nonce %d: derived %s, receipt reports %s",
		e.Sender.Hex(), e.Nonce, e.Expected.Hex(), reported)
}

// ExecutionRevertedError indicates the creation transaction was mined but failed.
type ExecutionRevertedError struct {
	Receipt *Receipt
}

func (e *ExecutionRevertedError) Error() string {
	return fmt.Sprintf("transaction %s reverted in block %v", e.Receipt.TxHash.Hex(), e.Receipt.BlockNumber)
}

// PendingDeploymentError reports a creation transaction that was accepted by
// the node but not confirmed in time. It carries enough to resume waiting.
type PendingDeploymentError struct {
	TxHash          common.Hash
	Nonce           uint64
	ExpectedAddress common.Address
	Err             error
}

func (e *PendingDeploymentError) Error() string {
	return fmt.Sprintf("deployment %s (nonce %d, expected address %s) is pending: %v",
		e.TxHash.Hex(), e.Nonce, e.ExpectedAddress.Hex(), e.Err)
}

func (e *PendingDeploymentError) Unwrap() error {
	return e.Err
}
