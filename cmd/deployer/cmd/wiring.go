package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	kms "cloud.google.com/go/kms/apiv1"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"github.com/yukia3e/evm-contract-deployer/internal/config"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/repository"
	"github.com/yukia3e/evm-contract-deployer/internal/infrastructure/artifact"
	"github.com/yukia3e/evm-contract-deployer/internal/infrastructure/chain"
	appHttp "github.com/yukia3e/evm-contract-deployer/internal/infrastructure/http"
	"github.com/yukia3e/evm-contract-deployer/internal/infrastructure/wallet"
	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

const artifactDownloadTimeout = 30 * time.Second

// dialChain connects to RPC_ENDPOINT. The returned func closes the connection.
func dialChain(ctx context.Context) (chain.Client, func(), error) {
	funcName := util.FuncName()

	rpcEndpoint := config.MustGetRPCEndpoint()
	rpcClient, err := rpc.DialContext(ctx, rpcEndpoint)
	if err != nil {
		return nil, nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to dial eth client: %w", err))
	}
	log.Debug().Str("endpoint", rpcEndpoint).Msg(util.WrapLogMessage(packageName, funcName, "connected"))

	return chain.New(ethclient.NewClient(rpcClient), rpcClient), rpcClient.Close, nil
}

// newWallet builds the key holder selected by SIGNER_BACKEND.
func newWallet(ctx context.Context) (repository.WalletRepository, func(), error) {
	funcName := util.FuncName()

	switch config.GetSignerBackend() {
	case config.SignerBackendKMS:
		var opts []option.ClientOption
		if path := config.GetCredentialFilePath(); path != "" {
			opts = append(opts, option.WithCredentialsFile(path))
		}
		kmsClient, err := kms.NewKeyManagementClient(ctx, opts...)
		if err != nil {
			return nil, nil, util.WrapErrorForLog(packageName, funcName, fmt.Errorf("failed to create kms client: %w", err))
		}
		closeClient := func() {
			if err := kmsClient.Close(); err != nil {
				log.Warn().Msg(util.WrapLogMessage(packageName, funcName, fmt.Sprintf("failed to close kms client: %v", err)))
			}
		}

		w, err := wallet.NewKMSWallet(ctx, kmsClient, config.KMSKeyVersionName())
		if err != nil {
			closeClient()
			return nil, nil, util.WrapErrorForLog(packageName, funcName, err)
		}
		return w, closeClient, nil
	default:
		w, err := wallet.NewLocalWallet(config.MustGetPrivateKey())
		if err != nil {
			return nil, nil, util.WrapErrorForLog(packageName, funcName, err)
		}
		return w, func() {}, nil
	}
}

func newArtifactLoader() repository.ArtifactRepository {
	return artifact.NewLoader(
		artifact.NewFileLoader(),
		appHttp.NewArtifactClient(&http.Client{Timeout: artifactDownloadTimeout}),
	)
}
