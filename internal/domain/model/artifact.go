package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Artifact is a compiled contract descriptor. The ABI is carried as-is and never decoded.
type Artifact struct {
	ContractName string          `json:"contractName,omitempty"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// UnmarshalJSON accepts both the Hardhat shape ("bytecode": "0x...") and the
// Foundry shape ("bytecode": {"object": "0x..."}).
func (a *Artifact) UnmarshalJSON(data []byte) error {
	var raw struct {
		ContractName string          `json:"contractName"`
		ABI          json.RawMessage `json:"abi"`
		Bytecode     json.RawMessage `json:"bytecode"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	a.ContractName = raw.ContractName
	a.ABI = raw.ABI
	a.Bytecode = ""

	if len(raw.Bytecode) == 0 || string(raw.Bytecode) == "null" {
		return nil
	}
	if err := json.Unmarshal(raw.Bytecode, &a.Bytecode); err == nil {
		return nil
	}
	var object struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(raw.Bytecode, &object); err != nil {
		return fmt.Errorf("bytecode is neither a string nor an object: %w", err)
	}
	a.Bytecode = object.Object
	return nil
}

// DecodeBytecode returns the deployable init code.
func (a Artifact) DecodeBytecode() ([]byte, error) {
	code := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(a.Bytecode), "0x"), "0X")
	if code == "" {
		return nil, fmt.Errorf("artifact %q has no bytecode", a.ContractName)
	}
	if strings.Contains(code, "__") {
		return nil, fmt.Errorf("artifact %q has unlinked library placeholders", a.ContractName)
	}
	bytecode, err := hex.DecodeString(code)
	if err != nil {
		return nil, fmt.Errorf("artifact %q has invalid bytecode: %w", a.ContractName, err)
	}
	return bytecode, nil
}
