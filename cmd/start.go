package cmd

import (
	"net/http"
	"os"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flasharb/chain"
	"flasharb/config"
	"flasharb/executor"
	"flasharb/gas"
	"flasharb/scanner"
	"flasharb/scheduler"
	"flasharb/utils"
	"flasharb/utils/metrics"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the arbitrage scheduler",
	Run: func(cmd *cobra.Command, args []string) {
		log := utils.GetLogger()

		if err := config.LoadEnv(); err != nil {
			log.Debug("no .env file loaded", zap.Error(err))
		}

		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			log.Fatal("Failed to load config", zap.Error(err))
		}
		cfg.Logger = log

		catalogPath := config.GetEnvWithDefault(config.EnvCatalogPath, cfg.CatalogPath)
		catalog, err := config.LoadCatalog(catalogPath)
		if err != nil {
			log.Fatal("Failed to load asset catalog", zap.Error(err))
		}

		ethClient, err := ethclient.Dial(cfg.RPCEndpoint)
		if err != nil {
			log.Fatal("Failed to connect to RPC endpoint", zap.Error(err))
		}
		defer ethClient.Close()

		reader, err := chain.NewReader(ethClient, cfg.RPCRateLimit, cfg.NetworkTimeout, log)
		if err != nil {
			log.Fatal("Failed to create pool state reader", zap.Error(err))
		}

		privateKey := os.Getenv(config.EnvPrivateKey)
		if privateKey == "" {
			log.Fatal("Missing required credential", zap.String("env", config.EnvPrivateKey))
		}
		sender, err := executor.NewKeyedSender(ethClient, privateKey, cfg.ChainID)
		if err != nil {
			log.Fatal("Failed to create transaction sender", zap.Error(err))
		}

		backend, err := executor.NewContractBackend(ethClient, sender, cfg.ArbitrageContract, log)
		if err != nil {
			log.Fatal("Failed to create settlement backend", zap.Error(err))
		}

		coordinator := executor.NewCoordinator(backend, catalog, log)
		estimator := gas.NewEstimator(ethClient, log)

		scan := scanner.New(catalog, scanner.Config{
			MaxImpactFraction:   cfg.MaxImpactFraction,
			FlashLoanFeePercent: cfg.FlashLoanFeePercent,
			MinNetProfit:        cfg.MinNetProfit,
		}, log, metrics.NewScannerMetrics("flasharb_scanner"))

		sched := scheduler.New(cfg, catalog, reader, scan, estimator, coordinator, log,
			metrics.NewSchedulerMetrics("flasharb_scheduler"))

		if cfg.PrometheusEnabled {
			go func() {
				http.Handle("/metrics", promhttp.Handler())
				if err := http.ListenAndServe(cfg.PrometheusEndpoint, nil); err != nil {
					log.Error("Metrics endpoint failed", zap.Error(err))
				}
			}()
		}

		if err := sched.Run(cmd.Context()); err != nil {
			log.Info("Scheduler exited", zap.Error(err))
		}
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
