package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/tdex-network/tdex-wallet/internal/core/application"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

const (
	// DatadirKey is the local data directory to store the wallet database
	DatadirKey = "DATADIR"
	// NetworkKey is one of mainnet, testnet, regtest or signet
	NetworkKey = "NETWORK"
	// ExplorerEndpointKey is the base url of the esplora REST API
	ExplorerEndpointKey = "EXPLORER_ENDPOINT"
	// ExplorerRequestTimeoutKey is the timeout of every single request to the
	// explorer
	ExplorerRequestTimeoutKey = "EXPLORER_REQUEST_TIMEOUT"
	// ExplorerMaxRetriesKey is the number of retries after a failed request
	// to the explorer
	ExplorerMaxRetriesKey = "EXPLORER_MAX_RETRIES"
	// ExplorerRateLimitKey is the max number of requests per second to the
	// explorer
	ExplorerRateLimitKey = "EXPLORER_RATE_LIMIT"
	// GapLimitKey is the number of unused addresses kept ahead of the last
	// used one
	GapLimitKey = "GAP_LIMIT"
	// AutoLockTimeoutKey is the inactivity after which the wallet is locked
	AutoLockTimeoutKey = "AUTOLOCK_TIMEOUT"
	// KDFIterationsKey is the number of PBKDF2 iterations used when
	// encrypting new secrets
	KDFIterationsKey = "KDF_ITERATIONS"
	// DBTypeKey is used to switch database type between those supported
	DBTypeKey = "DB_TYPE"
	// LogLevelKey are the different logging levels. For reference on the values https://godoc.org/github.com/sirupsen/logrus#Level
	LogLevelKey = "LOG_LEVEL"
	// MaxFeeRateMultiplierKey bounds the fee rate of built transactions to
	// this multiple of the requested one
	MaxFeeRateMultiplierKey = "MAX_FEE_RATE_MULTIPLIER"

	DbLocation = "db"
)

var (
	vip            *viper.Viper
	defaultDatadir = btcutil.AppDataDir("tdex-wallet", false)

	defaultExplorerEndpoints = map[string]string{
		chaincfg.MainNetParams.Name:       "https://blockstream.info/api",
		chaincfg.TestNet3Params.Name:      "https://blockstream.info/testnet/api",
		chaincfg.SigNetParams.Name:        "https://mempool.space/signet/api",
		chaincfg.RegressionNetParams.Name: "http://127.0.0.1:3000",
	}
)

func InitConfig() error {
	vip = viper.New()
	vip.SetEnvPrefix("WALLET")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(NetworkKey, chaincfg.MainNetParams.Name)
	vip.SetDefault(ExplorerRequestTimeoutKey, 10*time.Second)
	vip.SetDefault(ExplorerMaxRetriesKey, 3)
	vip.SetDefault(ExplorerRateLimitKey, 10)
	vip.SetDefault(GapLimitKey, 20)
	vip.SetDefault(AutoLockTimeoutKey, application.DefaultAutoLockTimeout)
	vip.SetDefault(KDFIterationsKey, application.DefaultKDFIterations)
	vip.SetDefault(DBTypeKey, application.DBBadger)
	vip.SetDefault(LogLevelKey, int(log.InfoLevel))
	vip.SetDefault(MaxFeeRateMultiplierKey, wallet.DefaultMaxFeeRateMultiplier)

	return nil
}

// Validate checks the loaded values and creates the datadir. Flags may have
// overridden the environment in between InitConfig and Validate.
func Validate() error {
	if err := validate(); err != nil {
		return fmt.Errorf("error while validating config: %s", err)
	}
	if err := initDatadir(); err != nil {
		return fmt.Errorf("error while creating datadir: %s", err)
	}
	return nil
}

// Set overrides the value of key.
func Set(key string, value interface{}) {
	vip.Set(key, value)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetFloat(key string) float64 {
	return vip.GetFloat64(key)
}

func GetDuration(key string) time.Duration {
	return vip.GetDuration(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func GetDatadir() string {
	return GetString(DatadirKey)
}

func GetDbDir() string {
	return filepath.Join(GetDatadir(), DbLocation)
}

func GetNetwork() (*chaincfg.Params, error) {
	return wallet.NetworkFromName(GetString(NetworkKey))
}

// GetExplorerEndpoint returns the configured endpoint, or the public one of
// the configured network.
func GetExplorerEndpoint() string {
	if endpoint := strings.TrimSpace(GetString(ExplorerEndpointKey)); endpoint != "" {
		return endpoint
	}
	network, err := GetNetwork()
	if err != nil {
		return ""
	}
	return defaultExplorerEndpoints[network.Name]
}

func GetLogLevel() log.Level {
	return log.Level(GetInt(LogLevelKey))
}

func validate() error {
	datadir := GetDatadir()
	if len(datadir) <= 0 {
		return fmt.Errorf("missing datadir")
	}

	if _, err := GetNetwork(); err != nil {
		return fmt.Errorf("%s: %s", NetworkKey, err)
	}
	if GetExplorerEndpoint() == "" {
		return fmt.Errorf("missing explorer endpoint")
	}

	dbType := GetString(DBTypeKey)
	if _, ok := application.SupportedDBType[dbType]; !ok {
		return fmt.Errorf("%s: unsupported db type %s", DBTypeKey, dbType)
	}

	if GetDuration(ExplorerRequestTimeoutKey) <= 0 {
		return fmt.Errorf("%s must be a positive duration", ExplorerRequestTimeoutKey)
	}
	if GetInt(ExplorerMaxRetriesKey) < 0 {
		return fmt.Errorf("%s must not be negative", ExplorerMaxRetriesKey)
	}
	if GetInt(ExplorerRateLimitKey) <= 0 {
		return fmt.Errorf("%s must be greater than zero", ExplorerRateLimitKey)
	}
	if GetInt(GapLimitKey) <= 0 {
		return fmt.Errorf("%s must be greater than zero", GapLimitKey)
	}
	if GetDuration(AutoLockTimeoutKey) < 0 {
		return fmt.Errorf("%s must not be negative", AutoLockTimeoutKey)
	}

	iterations := GetInt(KDFIterationsKey)
	if iterations < wallet.MinKDFIterations || iterations > wallet.MaxKDFIterations {
		return fmt.Errorf(
			"%s must be in range [%d, %d]",
			KDFIterationsKey, wallet.MinKDFIterations, wallet.MaxKDFIterations,
		)
	}

	if multiplier := GetFloat(MaxFeeRateMultiplierKey); multiplier < 1 {
		return fmt.Errorf("%s must be equal or greater than 1", MaxFeeRateMultiplierKey)
	}

	level := GetInt(LogLevelKey)
	if level < int(log.PanicLevel) || level > int(log.TraceLevel) {
		return fmt.Errorf("%s must be in range [0, 6]", LogLevelKey)
	}

	return nil
}

func initDatadir() error {
	if GetString(DBTypeKey) != application.DBBadger {
		return nil
	}
	return makeDirectoryIfNotExists(GetDbDir())
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}
