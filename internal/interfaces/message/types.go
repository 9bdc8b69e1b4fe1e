package message

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Request is a single call to a wallet method.
type Request struct {
	ID     string          `json:"id,omitempty"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Reply carries either the result or the error of a request.
type Reply struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  *ErrorReply `json:"error,omitempty"`
}

// ErrorReply ...
type ErrorReply struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	// Retryable is set for transient failures of the indexer or the store.
	Retryable bool `json:"retryable"`
	// Fatal is set when retrying with the same input can't succeed.
	Fatal bool `json:"fatal"`
}

/**** PARAMS ****/

type passwordParams struct {
	Password string `json:"password"`
}

type genSeedParams struct {
	EntropySize int `json:"entropy_size"`
}

type createWalletParams struct {
	Mnemonic   string `json:"mnemonic"`
	Passphrase string `json:"passphrase"`
	Password   string `json:"password"`
}

type importWIFParams struct {
	WIF        string `json:"wif"`
	ScriptType string `json:"script_type"`
	Password   string `json:"password"`
}

type changePasswordParams struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type createSingleSigAccountParams struct {
	Name       string `json:"name"`
	ScriptType string `json:"script_type"`
}

type cosignerParams struct {
	Name           string `json:"name"`
	Fingerprint    string `json:"fingerprint"`
	Xpub           string `json:"xpub"`
	DerivationPath string `json:"derivation_path"`
}

type createMultisigAccountParams struct {
	Name         string           `json:"name"`
	ScriptType   string           `json:"script_type"`
	Threshold    int              `json:"threshold"`
	TotalSigners int              `json:"total_signers"`
	Cosigners    []cosignerParams `json:"cosigners"`
}

type renameAccountParams struct {
	AccountIndex uint32 `json:"account_index"`
	Name         string `json:"name"`
}

type scriptTypeParams struct {
	ScriptType string `json:"script_type"`
}

type accountIndexParams struct {
	AccountIndex uint32 `json:"account_index"`
}

type recipientParams struct {
	Address string `json:"address"`
	// Amount in BTC.
	Amount decimal.Decimal `json:"amount"`
}

type buildTransactionParams struct {
	AccountIndex     uint32            `json:"account_index"`
	Recipients       []recipientParams `json:"recipients"`
	FeeTier          string            `json:"fee_tier"`
	SatsPerVByte     float64           `json:"sats_per_vbyte"`
	MinConfirmations int64             `json:"min_confirmations"`
}

type psbtParams struct {
	Psbt string `json:"psbt"`
}

type combineParams struct {
	Psbts []string `json:"psbts"`
}

type txHexParams struct {
	TxHex string `json:"tx_hex"`
}

type txidParams struct {
	Txid string `json:"txid"`
}

type exportBackupParams struct {
	BackupPassword string `json:"backup_password"`
}

type importBackupParams struct {
	// Data is the backup blob, base64 encoded.
	Data           []byte `json:"data"`
	BackupPassword string `json:"backup_password"`
	Password       string `json:"password"`
}

type setNoteParams struct {
	Txid string `json:"txid"`
	Note string `json:"note"`
}

type setTagsParams struct {
	Key  string   `json:"key"`
	Tags []string `json:"tags"`
}

/**** RESULTS ****/

type walletIDResult struct {
	WalletID string `json:"wallet_id"`
}

type mnemonicResult struct {
	Mnemonic string `json:"mnemonic"`
}

type statusResult struct {
	Initialized       bool   `json:"initialized"`
	Unlocked          bool   `json:"unlocked"`
	WalletID          string `json:"wallet_id,omitempty"`
	Network           string `json:"network"`
	HasSeed           bool   `json:"has_seed"`
	MasterFingerprint string `json:"master_fingerprint,omitempty"`
	Accounts          int    `json:"accounts"`
	PendingTxs        int    `json:"pending_txs"`
}

type cosignerResult struct {
	Name           string `json:"name"`
	Fingerprint    string `json:"fingerprint"`
	Xpub           string `json:"xpub"`
	DerivationPath string `json:"derivation_path"`
	IsSelf         bool   `json:"is_self"`
}

type accountResult struct {
	Index          uint32           `json:"index"`
	Kind           string           `json:"kind"`
	Name           string           `json:"name"`
	ScriptType     string           `json:"script_type"`
	DerivationPath string           `json:"derivation_path,omitempty"`
	Xpub           string           `json:"xpub,omitempty"`
	Imported       bool             `json:"imported,omitempty"`
	Threshold      int              `json:"threshold,omitempty"`
	TotalSigners   int              `json:"total_signers,omitempty"`
	Cosigners      []cosignerResult `json:"cosigners,omitempty"`
	Usable         bool             `json:"usable"`
	UnusableReason string           `json:"unusable_reason,omitempty"`
}

type accountsResult struct {
	Accounts []accountResult `json:"accounts"`
}

type addressResult struct {
	Address        string `json:"address"`
	Chain          uint32 `json:"chain"`
	Index          uint32 `json:"index"`
	DerivationPath string `json:"derivation_path,omitempty"`
	ScriptType     string `json:"script_type"`
	Used           bool   `json:"used"`
}

type addressesResult struct {
	Addresses []addressResult `json:"addresses"`
}

type amountResult struct {
	Sats int64  `json:"sats"`
	BTC  string `json:"btc"`
}

type inputResult struct {
	Txid    string       `json:"txid"`
	Vout    uint32       `json:"vout"`
	Address string       `json:"address,omitempty"`
	Value   amountResult `json:"value"`
}

type buildTransactionResult struct {
	Psbt          string        `json:"psbt"`
	Fee           amountResult  `json:"fee"`
	SatsPerVByte  float64       `json:"sats_per_vbyte"`
	VSize         int           `json:"vsize"`
	Change        amountResult  `json:"change"`
	ChangeAddress string        `json:"change_address,omitempty"`
	Inputs        []inputResult `json:"inputs"`
}

type signTransactionResult struct {
	Psbt         string `json:"psbt"`
	SignedInputs int    `json:"signed_inputs"`
	Complete     bool   `json:"complete"`
}

type finalizeTransactionResult struct {
	TxHex string `json:"tx_hex"`
	Txid  string `json:"txid"`
}

type psbtResult struct {
	Psbt string `json:"psbt"`
}

type txidResult struct {
	Txid string `json:"txid"`
}

type pendingTxResult struct {
	Txid      string `json:"txid"`
	TxHex     string `json:"tx_hex"`
	Error     string `json:"error,omitempty"`
	Attempts  int    `json:"attempts"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

type pendingTxsResult struct {
	Transactions []pendingTxResult `json:"transactions"`
}

type backupResult struct {
	// Data is the backup blob, base64 encoded.
	Data []byte `json:"data"`
}

type importBackupResult struct {
	WalletID string   `json:"wallet_id"`
	Version  int      `json:"version"`
	Warnings []string `json:"warnings,omitempty"`
}

type metadataResult struct {
	Notes map[string]string   `json:"notes"`
	Tags  map[string][]string `json:"tags"`
}
