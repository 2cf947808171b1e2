// Package public maintains the group of handlers for public access.
package public

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/ardanlabs/statechain/business/sys/validate"
	"github.com/ardanlabs/statechain/business/web/errs"
	"github.com/ardanlabs/statechain/foundation/blockchain/chain"
	"github.com/ardanlabs/statechain/foundation/blockchain/state"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ardanlabs/statechain/foundation/events"
	"github.com/ardanlabs/statechain/foundation/nameservice"
	"github.com/ardanlabs/statechain/foundation/web"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handlers manages the set of node endpoints.
type Handlers struct {
	Log   *zap.SugaredLogger
	State *state.State
	NS    *nameservice.NameService
	WS    websocket.Upgrader
	Evts  *events.Events
}

// Events handles a web socket to provide events to a client. The kinds
// query parameter narrows the stream, for example ?kinds=block,reorg.
func (h Handlers) Events(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	kinds, err := events.ParseKinds(r.URL.Query().Get("kinds"))
	if err != nil {
		return errs.BadRequest(err)
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Evts.Acquire(v.TraceID, kinds...)
	defer h.Evts.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case evt, wd := <-ch:
			if !wd {
				return nil
			}

			if err := c.WriteJSON(evt); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// Genesis returns the genesis information.
func (h Handlers) Genesis(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	resp := struct {
		Genesis any   `json:"genesis"`
		Block   block `json:"block"`
	}{
		Genesis: h.State.RetrieveGenesis(),
		Block:   toBlock(h.NS, h.State.RetrieveGenesisBlock()),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Head returns the head of the chain with its total difficulty.
func (h Handlers) Head(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	head := h.State.RetrieveLatestBlock()

	td, err := h.State.RetrieveTotalDifficulty(head.Hash())
	if err != nil {
		return err
	}

	blk := toBlock(h.NS, head)
	blk.TotalDifficulty = td.Dec()

	return web.Respond(ctx, w, blk, http.StatusOK)
}

// BlockByHash returns any known block, on the head branch or not.
func (h Handlers) BlockByHash(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	hash := web.Param(r, "hash")
	if len(common.FromHex(hash)) != common.HashLength {
		return errs.BadRequest(fmt.Errorf("invalid block hash %q", hash))
	}

	blk, err := h.State.QueryBlockByHash(common.HexToHash(hash))
	if err != nil {
		if errors.Is(err, chain.ErrUnknownBlock) {
			return errs.NotFound(err)
		}
		return err
	}

	resp := toBlock(h.NS, blk)
	if td, err := h.State.RetrieveTotalDifficulty(blk.Hash()); err == nil {
		resp.TotalDifficulty = td.Dec()
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// BlocksByNumber returns the blocks of the head branch in the range. The
// word latest can be used for either bound.
func (h Handlers) BlocksByNumber(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	from, err := parseNumber(web.Param(r, "from"))
	if err != nil {
		return errs.BadRequest(err)
	}

	to, err := parseNumber(web.Param(r, "to"))
	if err != nil {
		return errs.BadRequest(err)
	}

	if from != state.QueryLatest && to != state.QueryLatest && from > to {
		return errs.BadRequest(errors.New("from is greater than to"))
	}

	dbBlocks, err := h.State.QueryBlocksByNumber(from, to)
	if err != nil {
		if errors.Is(err, chain.ErrUnknownBlock) {
			return errs.NotFound(err)
		}
		return err
	}

	if len(dbBlocks) == 0 {
		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}

	blocks := make([]block, len(dbBlocks))
	for i, blk := range dbBlocks {
		blocks[i] = toBlock(h.NS, blk)
	}

	return web.Respond(ctx, w, blocks, http.StatusOK)
}

// Account returns the account as of the head of the chain. The address can
// be a name known to the name service.
func (h Handlers) Account(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr, ok := h.NS.Address(web.Param(r, "address"))
	if !ok {
		return errs.BadRequest(fmt.Errorf("invalid account %q", web.Param(r, "address")))
	}

	acct, err := h.State.QueryAccount(addr)
	if err != nil {
		return err
	}

	resp := account{
		Address:     addr,
		Name:        h.NS.Lookup(addr),
		Balance:     acct.Balance.Dec(),
		Nonce:       acct.Nonce,
		StorageRoot: acct.Root,
		CodeHash:    acct.CodeHash,
		Head:        h.State.RetrieveLatestBlock().Hash(),
		Uncommitted: h.State.QueryMempoolLength(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// Accounts returns every account as of the head of the chain.
func (h Handlers) Accounts(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	dump, err := h.State.QueryAccounts()
	if err != nil {
		return err
	}

	head := h.State.RetrieveLatestBlock().Hash()
	uncommitted := h.State.QueryMempoolLength()

	accts := make([]account, 0, len(dump))
	for addr, acct := range dump {
		accts = append(accts, account{
			Address:     addr,
			Name:        h.NS.Lookup(addr),
			Balance:     acct.Balance.Dec(),
			Nonce:       acct.Nonce,
			StorageRoot: acct.Root,
			CodeHash:    acct.CodeHash,
			Head:        head,
			Uncommitted: uncommitted,
		})
	}

	sort.Slice(accts, func(i, j int) bool {
		return bytes.Compare(accts[i].Address[:], accts[j].Address[:]) < 0
	})

	return web.Respond(ctx, w, accts, http.StatusOK)
}

// Mempool returns the set of uncommitted transactions.
func (h Handlers) Mempool(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	mempool := h.State.RetrieveMempool()

	trans := make([]tx, len(mempool))
	for i, tran := range mempool {
		trans[i] = toTx(h.NS, tran)
	}

	return web.Respond(ctx, w, trans, http.StatusOK)
}

// SubmitTransaction adds a signed transaction to the mempool.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	var req submitTx
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	tran, err := storage.DecodeTransaction(req.Tx)
	if err != nil {
		return errs.BadRequest(err)
	}

	h.Log.Infow("submit tran", "traceid", v.TraceID, "tx", tran)

	if err := h.State.SubmitTransaction(tran); err != nil {
		return errs.BadRequest(err)
	}

	resp := struct {
		Status string      `json:"status"`
		Hash   common.Hash `json:"hash"`
	}{
		Status: "transaction added to mempool",
		Hash:   tran.Hash(),
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ImportChain receives a chain of encoded blocks, newest first, and reports
// the outcome of every block.
func (h Handlers) ImportChain(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req importChain
	if err := web.Decode(r, &req); err != nil {
		return errs.BadRequest(err)
	}

	if err := validate.Check(req); err != nil {
		return err
	}

	encoded := make([][]byte, len(req.Blocks))
	for i, b := range req.Blocks {
		encoded[i] = b
	}

	results := h.State.ImportChain(encoded)

	resp := make([]result, len(results))
	for i, res := range results {
		resp[i] = toResult(res)
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// SignalMining signals to start a mining operation.
func (h Handlers) SignalMining(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	if h.State.Worker == nil {
		return errs.NewTrusted(errors.New("mining is not running on this node"), http.StatusServiceUnavailable)
	}

	h.State.Worker.SignalStartMining()

	resp := struct {
		Status string `json:"status"`
	}{
		Status: "mining signalled",
	}

	return web.Respond(ctx, w, resp, http.StatusOK)
}

// =============================================================================

func parseNumber(s string) (uint64, error) {
	if s == "latest" {
		return state.QueryLatest, nil
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid block number %q", s)
	}
	return n, nil
}
