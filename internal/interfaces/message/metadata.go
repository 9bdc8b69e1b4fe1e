package message

import (
	"context"
	"encoding/json"
)

func (h *Handler) setNote(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p setNoteParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, h.metadataSvc.SetNote(ctx, p.Txid, p.Note)
}

func (h *Handler) setTags(
	ctx context.Context, params json.RawMessage,
) (interface{}, error) {
	var p setTagsParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	return nil, h.metadataSvc.SetTags(ctx, p.Key, p.Tags)
}

func (h *Handler) getMetadata(
	ctx context.Context, _ json.RawMessage,
) (interface{}, error) {
	metadata, err := h.metadataSvc.GetMetadata(ctx)
	if err != nil {
		return nil, err
	}

	res := metadataResult{
		Notes: map[string]string{},
		Tags:  map[string][]string{},
	}
	for k, v := range metadata.Notes {
		res.Notes[k] = v
	}
	for k, v := range metadata.Tags {
		res.Tags[k] = v
	}
	return res, nil
}
