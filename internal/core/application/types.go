package application

import (
	"github.com/tdex-network/tdex-wallet/internal/core/domain"
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

// Fee tiers, mapped to confirmation targets in blocks.
const (
	FeeTierFastest = "fastest"
	FeeTierFast    = "fast"
	FeeTierNormal  = "normal"
	FeeTierSlow    = "slow"
)

var feeTierTargets = map[string]int{
	FeeTierFastest: 1,
	FeeTierFast:    3,
	FeeTierNormal:  6,
	FeeTierSlow:    144,
}

// WalletStatus ...
type WalletStatus struct {
	Initialized       bool
	Unlocked          bool
	WalletID          string
	Network           string
	HasSeed           bool
	MasterFingerprint string
	Accounts          int
	PendingTxs        int
}

// CreateMultisigAccountRequest holds the cosigners other than the local
// wallet. The local cosigner is derived from the seed.
type CreateMultisigAccountRequest struct {
	Name         string
	ScriptType   wallet.ScriptType
	Threshold    int
	TotalSigners int
	Cosigners    []domain.Cosigner
}

// BuildTransactionRequest either sets an explicit fee rate in sat/vB or a
// fee tier, FeeTierNormal by default.
type BuildTransactionRequest struct {
	AccountIndex     uint32
	Recipients       []wallet.Recipient
	FeeTier          string
	SatsPerVByte     float64
	MinConfirmations int64
}

// BuildTransactionReply ...
type BuildTransactionReply struct {
	Psbt          string
	Fee           int64
	FeeRate       wallet.FeeRate
	Change        int64
	ChangeAddress string
	Inputs        []wallet.Utxo
	VSize         int
}

// SignTransactionReply ...
type SignTransactionReply struct {
	Psbt         string
	SignedInputs int
	Complete     bool
}

// FinalizeTransactionReply ...
type FinalizeTransactionReply struct {
	TxHex string
	Txid  string
}

// ImportBackupReply ...
type ImportBackupReply struct {
	WalletID string
	Version  int
	Warnings []string
}
