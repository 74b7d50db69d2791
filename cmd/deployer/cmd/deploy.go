package cmd

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/yukia3e/evm-contract-deployer/internal/config"
	"github.com/yukia3e/evm-contract-deployer/internal/domain/model"
	"github.com/yukia3e/evm-contract-deployer/internal/infrastructure/metrics"
	"github.com/yukia3e/evm-contract-deployer/internal/usecase"
	"github.com/yukia3e/evm-contract-deployer/internal/util"
)

var (
	artifactSources []string
	rawBytecode     string
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Deploy contracts from artifacts or raw bytecode",
	Long: `Deploys every --artifact (a JSON file path or an http(s) URL) in the order given,
then --bytecode if set. All deployments are sent from the configured account.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		const funcName = "deployCmd"
		ctx := cmd.Context()

		if len(artifactSources) == 0 && rawBytecode == "" {
			return errors.New("nothing to deploy: set --artifact or --bytecode")
		}

		var bytecode []byte
		if rawBytecode != "" {
			decoded, err := hexutil.Decode(rawBytecode)
			if err != nil {
				return util.WrapErrorForLog(packageName, funcName, fmt.Errorf("invalid --bytecode: %w", err))
			}
			bytecode = decoded
		}

		// Loading is independent per artifact; deploying is not.
		loader := newArtifactLoader()
		artifacts := make([]*model.Artifact, len(artifactSources))
		g, gctx := errgroup.WithContext(ctx)
		for i, source := range artifactSources {
			i := i
			source := source
			g.Go(func() error {
				a, err := loader.Load(gctx, source)
				if err != nil {
					return err
				}
				artifacts[i] = a
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return util.WrapErrorForLog(packageName, funcName, err)
		}

		chainClient, closeChain, err := dialChain(ctx)
		if err != nil {
			return err
		}
		defer closeChain()

		w, closeWallet, err := newWallet(ctx)
		if err != nil {
			return err
		}
		defer closeWallet()

		deployerMetrics := metrics.NewDeployerMetrics()
		if textfile := config.GetMetricsTextfile(); textfile != "" {
			defer func() {
				if err := deployerMetrics.WriteToTextfile(textfile); err != nil {
					log.Warn().Msg(util.WrapLogMessage(packageName, funcName, fmt.Sprintf("failed to write metrics: %v", err)))
				}
			}()
		}

		deployer := usecase.NewDeployer(w, chainClient, chainClient,
			usecase.WithChainID(config.GetChainID()),
			usecase.WithGasPrice(config.GetGasPrice()),
			usecase.WithGasLimit(config.GetGasLimit()),
			usecase.WithReceiptPolling(config.GetReceiptPollInterval(), config.GetReceiptTimeout()),
			usecase.WithMetrics(deployerMetrics),
		)
		log.Info().Str("from", deployer.Account().String()).Msg(util.WrapLogMessage(packageName, funcName, "deploying"))

		out := cmd.OutOrStdout()
		for _, a := range artifacts {
			deployment, err := deployer.DeployArtifact(ctx, *a)
			if err != nil {
				return reportFailure(a.ContractName, err)
			}
			fmt.Fprintf(out, "%s deployed at %s (tx %s)\n", a.ContractName, deployment.Address.Hex(), deployment.Receipt.TxHash.Hex())
		}

		if bytecode != nil {
			address, receipt, err := deployer.DeployContract(ctx, bytecode)
			if err != nil {
				return reportFailure("bytecode", err)
			}
			fmt.Fprintf(out, "contract deployed at %s (tx %s)\n", address.Hex(), receipt.TxHash.Hex())
		}
		return nil
	},
}

func reportFailure(name string, err error) error {
	const funcName = "reportFailure"

	var pendingErr *model.PendingDeploymentError
	if errors.As(err, &pendingErr) {
		log.Warn().
			Str("contract", name).
			Str("txHash", pendingErr.TxHash.Hex()).
			Str("expectedAddress", pendingErr.ExpectedAddress.Hex()).
			Msg(util.WrapLogMessage(packageName, funcName, "deployment is still pending"))
	}
	log.Error().Err(err).Str("contract", name).Msg(util.WrapLogMessage(packageName, funcName, "deployment failed"))
	return err
}

func init() {
	deployCmd.Flags().StringArrayVarP(&artifactSources, "artifact", "a", nil, "Artifact JSON file or URL; may be repeated")
	deployCmd.Flags().StringVar(&rawBytecode, "bytecode", "", "Hex encoded init code to deploy")
	rootCmd.AddCommand(deployCmd)
}
