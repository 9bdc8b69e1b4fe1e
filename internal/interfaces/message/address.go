package message

import (
	"context"
	"encoding/json"
)

func (h *Handler) nextAddress(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p accountIndexParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	addr, err := h.addressSvc.NextAddress(ctx, p.AccountIndex)
	if err != nil {
		return nil, err
	}
	return newAddressResult(*addr), nil
}

func (h *Handler) changeAddress(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p accountIndexParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	addr, err := h.addressSvc.ChangeAddress(ctx, p.AccountIndex)
	if err != nil {
		return nil, err
	}
	return newAddressResult(*addr), nil
}

func (h *Handler) listAddresses(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p accountIndexParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	addresses, err := h.addressSvc.ListAddresses(ctx, p.AccountIndex)
	if err != nil {
		return nil, err
	}

	list := make([]addressResult, 0, len(addresses))
	for _, addr := range addresses {
		list = append(list, newAddressResult(addr))
	}
	return addressesResult{list}, nil
}
