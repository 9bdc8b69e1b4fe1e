package wallet

import (
	"strings"
	"testing"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRecipient = "bc1qcr8te4kr609gcawutmrza0j4xv80jy8z306fyu"

func testTxid(b string) string {
	return strings.Repeat(b, 32)
}

func testP2WPKHScript(t *testing.T) []byte {
	script, err := DecodeAddress(testRecipient, &chaincfg.MainNetParams)
	require.NoError(t, err)
	return script
}

func TestEstimateTxSize(t *testing.T) {
	script := testP2WPKHScript(t)
	oneOut := []*wire.TxOut{wire.NewTxOut(1, script)}
	twoOuts := []*wire.TxOut{wire.NewTxOut(1, script), wire.NewTxOut(1, script)}

	tests := []struct {
		name     string
		inputs   []TxInputType
		outputs  []*wire.TxOut
		expected int
	}{
		{"1 p2wpkh in, 1 out", []TxInputType{{ScriptType: P2WPKH}}, oneOut, 110},
		{"1 p2wpkh in, 2 outs", []TxInputType{{ScriptType: P2WPKH}}, twoOuts, 141},
		{"1 p2pkh in, 2 outs", []TxInputType{{ScriptType: P2PKH}}, twoOuts, 220},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EstimateTxSize(tt.inputs, tt.outputs))
		})
	}

	// A multisig input is larger than a single sig one and grows with M.
	single := EstimateTxSize([]TxInputType{{ScriptType: P2WPKH}}, oneOut)
	twoOfThree := EstimateTxSize(
		[]TxInputType{{ScriptType: P2WSH, Threshold: 2, NumKeys: 3}}, oneOut,
	)
	threeOfThree := EstimateTxSize(
		[]TxInputType{{ScriptType: P2WSH, Threshold: 3, NumKeys: 3}}, oneOut,
	)
	nested := EstimateTxSize(
		[]TxInputType{{ScriptType: P2SH_P2WSH, Threshold: 2, NumKeys: 3}}, oneOut,
	)
	assert.Greater(t, twoOfThree, single)
	assert.Greater(t, threeOfThree, twoOfThree)
	assert.Greater(t, nested, twoOfThree)
}

func TestFeeRate(t *testing.T) {
	assert.Equal(t, FeeRate(1000), FeeRateFromSatPerVByte(1))
	assert.Equal(t, FeeRate(2501), FeeRateFromSatPerVByte(2.5001))
	assert.Equal(t, int64(141), FeeRate(1000).FeeForVSize(141))
	assert.Equal(t, int64(500), FeeRate(500000/141).FeeForVSize(141))
}

func TestSelectUtxos(t *testing.T) {
	script := testP2WPKHScript(t)
	// Fee rate such that a 1-in 2-out p2wpkh tx (141 vB) pays 500 sats.
	feeRate := FeeRate(500000 / 141)

	t.Run("with change", func(t *testing.T) {
		selection, err := SelectUtxos(SelectUtxosOpts{
			Utxos: []Utxo{
				{Txid: testTxid("aa"), Value: 100000, Script: script, ScriptType: P2WPKH},
			},
			Outputs:      []*wire.TxOut{wire.NewTxOut(50000, script)},
			ChangeScript: script,
			FeeRate:      feeRate,
		})
		require.NoError(t, err)
		assert.Len(t, selection.Utxos, 1)
		assert.Equal(t, int64(500), selection.Fee)
		assert.Equal(t, int64(49500), selection.Change)
		assert.Equal(t, 141, selection.VSize)
	})

	t.Run("dust change folded into fee", func(t *testing.T) {
		selection, err := SelectUtxos(SelectUtxosOpts{
			Utxos: []Utxo{
				{Txid: testTxid("aa"), Value: 100000, Script: script, ScriptType: P2WPKH},
			},
			Outputs:      []*wire.TxOut{wire.NewTxOut(99000, script)},
			ChangeScript: script,
			FeeRate:      feeRate,
		})
		require.NoError(t, err)
		assert.Zero(t, selection.Change)
		assert.Equal(t, int64(1000), selection.Fee)
		assert.Equal(t, 110, selection.VSize)
	})

	t.Run("largest first", func(t *testing.T) {
		selection, err := SelectUtxos(SelectUtxosOpts{
			Utxos: []Utxo{
				{Txid: testTxid("aa"), Value: 10000, Script: script, ScriptType: P2WPKH},
				{Txid: testTxid("bb"), Value: 60000, Script: script, ScriptType: P2WPKH},
				{Txid: testTxid("cc"), Value: 30000, Script: script, ScriptType: P2WPKH},
			},
			Outputs:      []*wire.TxOut{wire.NewTxOut(70000, script)},
			ChangeScript: script,
			FeeRate:      MinRelayFeeRate,
		})
		require.NoError(t, err)
		require.Len(t, selection.Utxos, 2)
		assert.Equal(t, int64(60000), selection.Utxos[0].Value)
		assert.Equal(t, int64(30000), selection.Utxos[1].Value)
		assert.Equal(t, int64(90000-70000)-selection.Fee, selection.Change)
	})
}

func TestFailingSelectUtxos(t *testing.T) {
	script := testP2WPKHScript(t)
	utxos := []Utxo{
		{Txid: testTxid("aa"), Value: 100000, Script: script, ScriptType: P2WPKH},
	}

	tests := []struct {
		name string
		opts SelectUtxosOpts
		err  error
	}{
		{
			name: "insufficient funds",
			opts: SelectUtxosOpts{
				Utxos:        utxos,
				Outputs:      []*wire.TxOut{wire.NewTxOut(99950, script)},
				ChangeScript: script,
				FeeRate:      MinRelayFeeRate,
			},
			err: ErrInsufficientFunds,
		},
		{
			name: "no utxos",
			opts: SelectUtxosOpts{
				Outputs:      []*wire.TxOut{wire.NewTxOut(1000, script)},
				ChangeScript: script,
				FeeRate:      MinRelayFeeRate,
			},
			err: ErrInsufficientFunds,
		},
		{
			name: "no outputs",
			opts: SelectUtxosOpts{
				Utxos:        utxos,
				ChangeScript: script,
				FeeRate:      MinRelayFeeRate,
			},
			err: ErrEmptyOutputs,
		},
		{
			name: "zero output",
			opts: SelectUtxosOpts{
				Utxos:        utxos,
				Outputs:      []*wire.TxOut{wire.NewTxOut(0, script)},
				ChangeScript: script,
				FeeRate:      MinRelayFeeRate,
			},
			err: ErrZeroOutputAmount,
		},
		{
			name: "fee rate below relay",
			opts: SelectUtxosOpts{
				Utxos:        utxos,
				Outputs:      []*wire.TxOut{wire.NewTxOut(1000, script)},
				ChangeScript: script,
				FeeRate:      999,
			},
			err: ErrFeeRateTooLow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := SelectUtxos(tt.opts)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}
