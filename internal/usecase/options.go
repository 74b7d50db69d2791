package usecase

import (
	"math/big"
	"time"

	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
)

type Option func(*Deployer)

func WithGasLimit(gasLimit uint64) Option {
	return func(d *Deployer) {
		if gasLimit > 0 {
			d.gasLimit = gasLimit
		}
	}
}

// WithGasPrice fixes the gas price. Without it the node's suggestion is used.
func WithGasPrice(gasPrice *big.Int) Option {
	return func(d *Deployer) {
		d.gasPrice = gasPrice
	}
}

// WithChainID fixes the chain id. Without it the node is asked on every deployment.
func WithChainID(chainID *big.Int) Option {
	return func(d *Deployer) {
		d.chainID = chainID
	}
}

func WithReceiptPolling(interval, timeout time.Duration) Option {
	return func(d *Deployer) {
		if interval > 0 {
			d.pollInterval = interval
		}
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

func WithMetrics(m repository.DeploymentMetrics) Option {
	return func(d *Deployer) {
		if m != nil {
			d.metrics = m
		}
	}
}
