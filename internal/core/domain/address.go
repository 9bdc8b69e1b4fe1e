package domain

import (
	"github.com/tdex-network/tdex-wallet/pkg/wallet"
)

// DefaultGapLimit is the number of unused addresses kept ahead of the last
// used one on every chain.
const DefaultGapLimit = 20

// Address is an output script derived for an account, with everything needed
// to spend from it.
type Address struct {
	Address        string            `json:"address"`
	Script         []byte            `json:"script"`
	Chain          uint32            `json:"chain"`
	Index          uint32            `json:"index"`
	DerivationPath string            `json:"derivation_path,omitempty"`
	ScriptType     wallet.ScriptType `json:"script_type"`
	PublicKey      []byte            `json:"public_key,omitempty"`
	RedeemScript   []byte            `json:"redeem_script,omitempty"`
	WitnessScript  []byte            `json:"witness_script,omitempty"`
	Used           bool              `json:"used"`
}

// IsChange returns whether the address belongs to the internal chain.
func (a Address) IsChange() bool {
	return a.Chain == wallet.InternalChain
}

// AddressPool holds the addresses of one chain of an account. Addresses are
// stored by index and are never removed.
type AddressPool struct {
	Addresses []Address `json:"addresses"`
}

// NextIndex returns the index of the next address to generate.
func (p *AddressPool) NextIndex() uint32 {
	return uint32(len(p.Addresses))
}

// LastUsedIndex returns the highest index marked as used, or -1.
func (p *AddressPool) LastUsedIndex() int {
	for i := len(p.Addresses) - 1; i >= 0; i-- {
		if p.Addresses[i].Used {
			return i
		}
	}
	return -1
}

// Missing returns how many addresses must be generated to have gapLimit
// unused addresses after the last used one.
func (p *AddressPool) Missing(gapLimit int) int {
	if gapLimit <= 0 {
		gapLimit = DefaultGapLimit
	}
	target := p.LastUsedIndex() + 1 + gapLimit
	missing := target - len(p.Addresses)
	if missing < 0 {
		return 0
	}
	return missing
}

// Add appends the given address. Its index must be the next one.
func (p *AddressPool) Add(addr Address) error {
	if addr.Index != p.NextIndex() {
		return ErrAddressIndexRegression
	}
	p.Addresses = append(p.Addresses, addr)
	return nil
}

// FirstUnused returns the lowest unused address after the last used one.
func (p *AddressPool) FirstUnused() (*Address, bool) {
	for i := p.LastUsedIndex() + 1; i < len(p.Addresses); i++ {
		if !p.Addresses[i].Used {
			return &p.Addresses[i], true
		}
	}
	return nil, false
}

// MarkUsed flags the address at index as used. The flag is never reset.
func (p *AddressPool) MarkUsed(index uint32) error {
	if int(index) >= len(p.Addresses) {
		return ErrAddressNotFound
	}
	p.Addresses[index].Used = true
	return nil
}

// ByAddress ...
func (p *AddressPool) ByAddress(addr string) (*Address, bool) {
	for i := range p.Addresses {
		if p.Addresses[i].Address == addr {
			return &p.Addresses[i], true
		}
	}
	return nil, false
}

// ByScript ...
func (p *AddressPool) ByScript(script []byte) (*Address, bool) {
	for i := range p.Addresses {
		if string(p.Addresses[i].Script) == string(script) {
			return &p.Addresses[i], true
		}
	}
	return nil, false
}
