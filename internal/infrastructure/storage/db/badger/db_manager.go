package dbbadger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/dgraph-io/badger/v3/options"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"
)

const (
	walletDbDir = "wallet"

	gcInterval     = 30 * time.Minute
	gcDiscardRatio = 0.5
)

// DbManager holds the badgerhold store where wallets are persisted.
type DbManager struct {
	Store *badgerhold.Store

	quitGC    chan struct{}
	closeOnce *sync.Once
}

// NewDbManager opens (or creates if not exists) the badger store on disk. It
// expects a base data dir and an optional logger. If the base dir is empty,
// the store is kept in memory.
func NewDbManager(baseDbDir string, logger badger.Logger) (*DbManager, error) {
	var dbDir string
	if len(baseDbDir) > 0 {
		dbDir = filepath.Join(baseDbDir, walletDbDir)
	}

	store, err := createDb(dbDir, logger)
	if err != nil {
		return nil, fmt.Errorf("opening wallet db: %w", err)
	}

	m := &DbManager{
		Store:     store,
		quitGC:    make(chan struct{}),
		closeOnce: &sync.Once{},
	}
	if len(dbDir) > 0 {
		go m.runValueLogGC()
	}
	return m, nil
}

// Close stops the garbage collector and closes the store. It's safe to call
// multiple times.
func (m *DbManager) Close() {
	m.closeOnce.Do(func() {
		close(m.quitGC)
		if err := m.Store.Close(); err != nil {
			log.WithError(err).Warn("error closing wallet db")
		}
	})
}

func (m *DbManager) runValueLogGC() {
	ticker := time.NewTicker(gcInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.quitGC:
			return
		case <-ticker.C:
			if err := m.Store.Badger().RunValueLogGC(gcDiscardRatio); err != nil &&
				err != badger.ErrNoRewrite {
				log.Error(err)
			}
		}
	}
}

// JSONEncode is a custom JSON based encoder for badger
func JSONEncode(value interface{}) ([]byte, error) {
	var buff bytes.Buffer

	en := json.NewEncoder(&buff)

	err := en.Encode(value)
	if err != nil {
		return nil, err
	}

	return buff.Bytes(), nil
}

// JSONDecode is a custom JSON based decoder for badger
func JSONDecode(data []byte, value interface{}) error {
	var buff bytes.Buffer
	de := json.NewDecoder(&buff)

	_, err := buff.Write(data)
	if err != nil {
		return err
	}

	return de.Decode(value)
}

func createDb(dbDir string, logger badger.Logger) (*badgerhold.Store, error) {
	isInMemory := len(dbDir) <= 0

	opts := badger.DefaultOptions(dbDir)
	opts.Logger = logger

	if isInMemory {
		opts.InMemory = true
	} else {
		opts.Compression = options.ZSTD
	}

	return badgerhold.Open(badgerhold.Options{
		Encoder:          JSONEncode,
		Decoder:          JSONDecode,
		SequenceBandwith: 100,
		Options:          opts,
	})
}
