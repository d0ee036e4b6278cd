package rpc

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dposnet/bft-core/model/chain"
	"github.com/dposnet/bft-core/network"
	"github.com/dposnet/bft-core/network/codec"
	"github.com/dposnet/bft-core/network/codec/cbor"
	"github.com/dposnet/bft-core/storage"
)

// DefaultPageSize is the number of blocks served per getBlocksFromId call.
const DefaultPageSize = 34

// Handler serves the chain recovery procedures from the local block store.
type Handler struct {
	log      zerolog.Logger
	blocks   storage.Blocks
	codec    *cbor.Codec
	pageSize uint64
}

var _ network.RequestHandler = (*Handler)(nil)

type HandlerOption func(*Handler)

// WithPageSize sets the maximum number of blocks returned per page.
func WithPageSize(size uint64) HandlerOption {
	return func(h *Handler) {
		h.pageSize = size
	}
}

func NewHandler(log zerolog.Logger, blocks storage.Blocks, opts ...HandlerOption) *Handler {
	h := &Handler{
		log:      log.With().Str("component", "rpc_handler").Logger(),
		blocks:   blocks,
		codec:    cbor.NewCodec(),
		pageSize: DefaultPageSize,
	}
	for _, apply := range opts {
		apply(h)
	}
	return h
}

// Handle dispatches the request to the procedure.
// Expected errors during normal operations:
//   - codec.UnknownProcedureError if the procedure is not served
//   - codec.MsgUnmarshalError if the payload is malformed
//   - storage.ErrNotFound if getBlocksFromId references an unknown block
func (h *Handler) Handle(_ context.Context, procedure string, payload []byte) ([]byte, error) {
	var (
		res interface{}
		err error
	)
	switch procedure {
	case network.ProcedureGetHighestCommonBlock:
		res, err = h.highestCommonBlock(payload)
	case network.ProcedureGetBlocksFromID:
		res, err = h.blocksFromID(payload)
	case network.ProcedureGetLastBlock:
		res, err = h.lastBlock()
	default:
		return nil, codec.NewUnknownProcedureErr(procedure)
	}
	if err != nil {
		h.log.Debug().Err(err).Str("procedure", procedure).Msg("could not serve request")
		return nil, err
	}
	return h.codec.Encode(res)
}

func (h *Handler) highestCommonBlock(payload []byte) (*HighestCommonBlockResponse, error) {
	var req HighestCommonBlockRequest
	err := h.codec.Decode(payload, &req)
	if err != nil {
		return nil, err
	}
	var highest *chain.Block
	for _, id := range req.IDs {
		block, err := h.blocks.ByID(id)
		if errors.Is(err, storage.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("could not look up block %x: %w", id, err)
		}
		if highest == nil || block.Height() > highest.Height() {
			highest = block
		}
	}
	if highest == nil {
		return &HighestCommonBlockResponse{}, nil
	}
	header := highest.Header
	return &HighestCommonBlockResponse{Header: &header}, nil
}

func (h *Handler) blocksFromID(payload []byte) (*BlocksFromIDResponse, error) {
	var req BlocksFromIDRequest
	err := h.codec.Decode(payload, &req)
	if err != nil {
		return nil, err
	}
	from, err := h.blocks.ByID(req.BlockID)
	if err != nil {
		return nil, fmt.Errorf("could not look up block %x: %w", req.BlockID, err)
	}
	blocks, err := h.blocks.ByHeightRange(from.Height()+1, from.Height()+h.pageSize)
	if err != nil {
		return nil, fmt.Errorf("could not read blocks above height %d: %w", from.Height(), err)
	}
	return &BlocksFromIDResponse{Blocks: blocks}, nil
}

func (h *Handler) lastBlock() (*LastBlockResponse, error) {
	last, err := h.blocks.Last()
	if errors.Is(err, storage.ErrNotFound) {
		return &LastBlockResponse{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("could not read last block: %w", err)
	}
	return &LastBlockResponse{Block: last}, nil
}
