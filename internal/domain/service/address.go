// Package service holds pure domain computations shared by the deployment flow.
package service

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

var ErrInvalidAddressLength = fmt.Errorf("sender address must be %d bytes", common.AddressLength)

// creationKey is the RLP list [sender, nonce] hashed to obtain a CREATE address.
type creationKey struct {
	Sender common.Address
	Nonce  uint64
}

// EncodeCreationPayload returns RLP([sender, nonce]).
func EncodeCreationPayload(sender common.Address, nonce uint64) ([]byte, error) {
	return rlp.EncodeToBytes(creationKey{Sender: sender, Nonce: nonce})
}

// DeriveContractAddress returns the address the chain assigns to a contract
// created by sender with the given nonce: keccak256(RLP([sender, nonce]))[12:].
func DeriveContractAddress(sender common.Address, nonce uint64) common.Address {
	payload, err := EncodeCreationPayload(sender, nonce)
	if err != nil {
		// A fixed-size address and a uint64 always encode.
		panic(err)
	}
	return common.BytesToAddress(crypto.Keccak256(payload)[12:])
}

// DeriveContractAddressBytes is DeriveContractAddress for an unchecked raw sender.
func DeriveContractAddressBytes(sender []byte, nonce uint64) (common.Address, error) {
	if len(sender) != common.AddressLength {
		return common.Address{}, errors.Join(ErrInvalidAddressLength, fmt.Errorf("got %d bytes", len(sender)))
	}
	return DeriveContractAddress(common.BytesToAddress(sender), nonce), nil
}
