package esplora

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tdex-network/tdex-wallet/pkg/explorer"
	"golang.org/x/sync/errgroup"
)

func (e *esplora) GetUnspents(ctx context.Context, addr string) ([]explorer.Utxo, error) {
	return e.getUnspents(ctx, addr)
}

// GetUnspentsForAddresses fetches the utxos of every address concurrently.
// The result follows the order of the given addresses.
func (e *esplora) GetUnspentsForAddresses(
	ctx context.Context, addresses []string,
) ([]explorer.Utxo, error) {
	unspentsByAddress := make([][]explorer.Utxo, len(addresses))

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, maxConcurrentRequests)
	for i := range addresses {
		i, addr := i, addresses[i]
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()

			unspents, err := e.getUnspents(gctx, addr)
			if err != nil {
				return err
			}
			unspentsByAddress[i] = unspents
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	unspents := make([]explorer.Utxo, 0)
	for _, u := range unspentsByAddress {
		unspents = append(unspents, u...)
	}
	return unspents, nil
}

func (e *esplora) getUnspents(ctx context.Context, addr string) ([]explorer.Utxo, error) {
	url := fmt.Sprintf("%s/address/%s/utxo", e.apiURL, addr)
	resp, err := e.get(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %w", err)
	}

	var outs []utxo
	if err := json.Unmarshal([]byte(resp), &outs); err != nil {
		return nil, fmt.Errorf("error on retrieving utxos: %s", err)
	}

	unspents := make([]explorer.Utxo, 0, len(outs))
	for _, out := range outs {
		out.UAddress = addr
		unspents = append(unspents, out)
	}
	return unspents, nil
}
