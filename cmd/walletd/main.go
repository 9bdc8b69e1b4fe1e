package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/tdex-network/tdex-wallet/internal/config"
	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/internal/interfaces/message"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"github.com/tdex-network/tdex-wallet/pkg/explorer/esplora"
)

// maxRequestSize is the largest request line accepted on stdin. We set this
// to 16MiB atm, enough for PSBTs with many legacy inputs.
const maxRequestSize = 16 * 1024 * 1024

var version = "dev"

var flagKeys = map[string]string{
	"datadir":           config.DatadirKey,
	"network":           config.NetworkKey,
	"explorer-endpoint": config.ExplorerEndpointKey,
	"db-type":           config.DBTypeKey,
	"log-level":         config.LogLevelKey,
	"autolock-timeout":  config.AutoLockTimeoutKey,
	"gap-limit":         config.GapLimitKey,
}

func main() {
	app := cli.NewApp()

	app.Name = "walletd"
	app.Version = version
	app.Usage = "Non-custodial bitcoin wallet reading JSON requests from stdin"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "datadir",
			Usage: "the directory where the wallet database is stored",
		},
		&cli.StringFlag{
			Name:  "network",
			Usage: "one of mainnet, testnet, regtest or signet",
		},
		&cli.StringFlag{
			Name:  "explorer-endpoint",
			Usage: "the base url of the esplora REST API",
		},
		&cli.StringFlag{
			Name:  "db-type",
			Usage: "either badger or inmemory",
		},
		&cli.IntFlag{
			Name:  "log-level",
			Usage: "the logging level, from 0 (panic) to 6 (trace)",
		},
		&cli.DurationFlag{
			Name:  "autolock-timeout",
			Usage: "the inactivity after which the wallet is locked",
		},
		&cli.IntFlag{
			Name:  "gap-limit",
			Usage: "the number of unused addresses kept ahead of the last used one",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(c *cli.Context) error {
	if err := config.InitConfig(); err != nil {
		return err
	}
	for flag, key := range flagKeys {
		if c.IsSet(flag) {
			config.Set(key, c.Value(flag))
		}
	}
	if err := config.Validate(); err != nil {
		return err
	}
	// Replies go to stdout, logs to stderr.
	log.SetOutput(os.Stderr)
	log.SetLevel(config.GetLogLevel())

	network, err := config.GetNetwork()
	if err != nil {
		return err
	}

	explorerSvc, err := esplora.NewService(esplora.ServiceOpts{
		APIURL:         config.GetExplorerEndpoint(),
		RequestTimeout: config.GetDuration(config.ExplorerRequestTimeoutKey),
		RateLimit:      config.GetInt(config.ExplorerRateLimitKey),
	})
	if err != nil {
		return fmt.Errorf("error while initializing explorer: %s", err)
	}
	explorerSvc, err = explorer.NewRetryingService(explorerSvc, explorer.RetryOpts{
		MaxRetries: uint64(config.GetInt(config.ExplorerMaxRetriesKey)),
		Registerer: prometheus.DefaultRegisterer,
	})
	if err != nil {
		return fmt.Errorf("error while initializing explorer: %s", err)
	}

	appConfig := &application.Config{
		DBType:               config.GetString(config.DBTypeKey),
		DBConfig:             config.GetDbDir(),
		Explorer:             explorerSvc,
		Network:              network,
		GapLimit:             config.GetInt(config.GapLimitKey),
		AutoLockTimeout:      config.GetDuration(config.AutoLockTimeoutKey),
		KDFIterations:        config.GetInt(config.KDFIterationsKey),
		MaxFeeRateMultiplier: config.GetFloat(config.MaxFeeRateMultiplierKey),
	}
	if err := appConfig.Validate(); err != nil {
		return fmt.Errorf("error while initializing wallet: %s", err)
	}
	defer appConfig.Close()

	handler, err := message.NewHandler(message.HandlerOpts{
		WalletSvc:      appConfig.WalletService(),
		AccountSvc:     appConfig.AccountService(),
		AddressSvc:     appConfig.AddressService(),
		TransactionSvc: appConfig.TransactionService(),
		BackupSvc:      appConfig.BackupService(),
		MetadataSvc:    appConfig.MetadataService(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checkExplorer(ctx, explorerSvc)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		select {
		case <-sigChan:
			log.Debug("received shutdown signal")
			cancel()
			// Unblock the pending read of the request loop.
			os.Stdin.Close()
		case <-ctx.Done():
		}
	}()

	log.WithFields(log.Fields{
		"network":  network.Name,
		"explorer": config.GetExplorerEndpoint(),
		"db":       appConfig.DBType,
	}).Info("wallet daemon started")

	err = serve(ctx, handler, os.Stdin, os.Stdout)

	log.Info("shutting down wallet daemon")
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// serve handles one JSON request per line of r and writes one reply per line
// to w, until r is exhausted or ctx is cancelled.
func serve(ctx context.Context, handler *message.Handler, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestSize)
	out := bufio.NewWriter(w)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return nil
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		reply := handler.Handle(ctx, []byte(line))
		if _, err := out.Write(append(reply, '\n')); err != nil {
			return err
		}
		if err := out.Flush(); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// checkExplorer warns if the explorer can't be reached at startup. The
// wallet works offline for everything but sync and broadcast.
func checkExplorer(ctx context.Context, svc explorer.Service) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	height, err := svc.GetBlockHeight(ctx)
	if err != nil {
		log.WithError(err).Warn("explorer not reachable")
		return
	}
	log.Debugf("explorer block height %d", height)
}
