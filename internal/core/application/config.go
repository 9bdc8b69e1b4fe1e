package application

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	dbbadger "github.com/tdex-network/tdex-wallet/internal/infrastructure/storage/db/badger"
	"github.com/tdex-network/tdex-wallet/internal/infrastructure/storage/db/inmemory"
	"github.com/tdex-network/tdex-wallet/pkg/explorer"
)

const (
	DBBadger   = "badger"
	DBInMemory = "inmemory"
)

var (
	SupportedDBType = map[string]struct{}{
		DBBadger:   {},
		DBInMemory: {},
	}
)

type Config struct {
	DBType string
	// DBConfig is the datadir for badger.
	DBConfig interface{}

	Explorer             explorer.Service
	Network              *chaincfg.Params
	GapLimit             int
	AutoLockTimeout      time.Duration
	KDFIterations        int
	MaxFeeRateMultiplier float64

	repo   domain.WalletRepository
	engine *Engine
}

func (c *Config) Validate() error {
	if _, ok := SupportedDBType[c.DBType]; !ok {
		return fmt.Errorf("db type %s not supported", c.DBType)
	}
	if c.DBType == DBBadger {
		if _, ok := c.DBConfig.(string); !ok {
			return fmt.Errorf("missing datadir for badger db")
		}
	}
	if c.Explorer == nil {
		return fmt.Errorf("missing explorer service")
	}
	if c.Network == nil {
		return fmt.Errorf("missing network")
	}
	if c.GapLimit < 0 {
		return fmt.Errorf("gap limit must not be negative")
	}
	if c.AutoLockTimeout < 0 {
		return fmt.Errorf("auto-lock timeout must not be negative")
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	if _, err := c.walletEngine(); err != nil {
		return err
	}
	return nil
}

func (c *Config) Repository() domain.WalletRepository {
	repo, _ := c.repoManager()
	return repo
}

func (c *Config) WalletService() WalletService {
	engine, _ := c.walletEngine()
	return engine
}

func (c *Config) AccountService() AccountService {
	engine, _ := c.walletEngine()
	return engine
}

func (c *Config) AddressService() AddressService {
	engine, _ := c.walletEngine()
	return engine
}

func (c *Config) TransactionService() TransactionService {
	engine, _ := c.walletEngine()
	return engine
}

func (c *Config) BackupService() BackupService {
	engine, _ := c.walletEngine()
	return engine
}

func (c *Config) MetadataService() MetadataService {
	engine, _ := c.walletEngine()
	return engine
}

// Close locks the wallet and closes the db.
func (c *Config) Close() {
	if c.engine != nil {
		c.engine.Close()
		return
	}
	if c.repo != nil {
		c.repo.Close()
	}
}

func (c *Config) repoManager() (domain.WalletRepository, error) {
	if c.repo == nil {
		switch c.DBType {
		case DBBadger:
			datadir, _ := c.DBConfig.(string)
			db, err := dbbadger.NewDbManager(datadir, log.New())
			if err != nil {
				return nil, err
			}
			c.repo = dbbadger.NewWalletRepositoryImpl(db)
		case DBInMemory:
			c.repo = inmemory.NewWalletRepositoryImpl()
		}
	}
	return c.repo, nil
}

func (c *Config) walletEngine() (*Engine, error) {
	if c.engine == nil {
		repo, err := c.repoManager()
		if err != nil {
			return nil, err
		}
		engine, err := NewEngine(EngineOpts{
			Repository:           repo,
			Explorer:             c.Explorer,
			Network:              c.Network,
			GapLimit:             c.GapLimit,
			AutoLockTimeout:      c.AutoLockTimeout,
			KDFIterations:        c.KDFIterations,
			MaxFeeRateMultiplier: c.MaxFeeRateMultiplier,
		})
		if err != nil {
			return nil, err
		}
		c.engine = engine
	}
	return c.engine, nil
}
