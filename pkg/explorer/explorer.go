package explorer

import (
	"context"
	"sort"
)

// Utxo represents an unspent output of the bitcoin chain as returned by an
// indexer.
type Utxo interface {
	Hash() string
	Index() uint32
	Value() int64
	Address() string
	IsConfirmed() bool
	BlockHeight() int64
}

// TxOutput is an output of a transaction.
type TxOutput struct {
	Address string
	Script  []byte
	Value   int64
}

// TxInput is an input of a transaction with, if known, the output it spends.
type TxInput struct {
	Hash    string
	Index   uint32
	Prevout *TxOutput
}

// Transaction represents a transaction of the bitcoin chain.
type Transaction interface {
	Hash() string
	Inputs() []TxInput
	Outputs() []TxOutput
	Fee() int64
	Weight() int
	IsConfirmed() bool
	BlockHeight() int64
}

// FeeEstimates maps confirmation targets, in blocks, to fee rates in sat/vB.
type FeeEstimates map[int]float64

// ForTarget returns the fee rate estimated for confirmation within the given
// number of blocks. If the target is not estimated, the closest faster one
// is used, or the slowest available if none is faster.
func (f FeeEstimates) ForTarget(target int) (float64, bool) {
	if len(f) <= 0 {
		return 0, false
	}
	if rate, ok := f[target]; ok {
		return rate, true
	}

	targets := make([]int, 0, len(f))
	for t := range f {
		targets = append(targets, t)
	}
	sort.Ints(targets)

	best := targets[0]
	for _, t := range targets {
		if t > target {
			break
		}
		best = t
	}
	return f[best], true
}

// Service is representation of an explorer that allows to fetch data from the
// blockchain and to broadcast transactions. Every call is bound to the given
// context.
type Service interface {
	// GetUnspents fetches the utxos locked by the given address.
	GetUnspents(ctx context.Context, addr string) ([]Utxo, error)
	// GetUnspentsForAddresses fetches the utxos of the given list of
	// addresses.
	GetUnspentsForAddresses(ctx context.Context, addresses []string) ([]Utxo, error)
	// GetTransactions returns the list of txs relative to the given address,
	// newest first.
	GetTransactions(ctx context.Context, addr string) ([]Transaction, error)
	// GetTransactionHex fetches the transaction in hex format given its hash.
	GetTransactionHex(ctx context.Context, txid string) (string, error)
	// GetFeeEstimates returns the fee rates for the confirmation targets
	// supported by the indexer.
	GetFeeEstimates(ctx context.Context) (FeeEstimates, error)
	// BroadcastTransaction attempts to add the given tx in hex format to the
	// mempool and returns its tx hash.
	BroadcastTransaction(ctx context.Context, txHex string) (string, error)
	// GetBlockHeight returns the the number of block of the blockchain.
	GetBlockHeight(ctx context.Context) (int64, error)
}
