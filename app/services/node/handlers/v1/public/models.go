package public

import (
	"github.com/ardanlabs/statechain/foundation/blockchain/chain"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ardanlabs/statechain/foundation/nameservice"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

type tx struct {
	Hash     common.Hash     `json:"hash"`
	From     common.Address  `json:"from"`
	FromName string          `json:"from_name"`
	Nonce    uint64          `json:"nonce"`
	GasPrice string          `json:"gas_price"`
	StartGas uint64          `json:"start_gas"`
	To       *common.Address `json:"to,omitempty"`
	ToName   string          `json:"to_name,omitempty"`
	Value    string          `json:"value"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
	Sig      string          `json:"sig"`
}

func toTx(ns *nameservice.NameService, tran storage.Transaction) tx {
	from, _ := tran.Sender()

	t := tx{
		Hash:     tran.Hash(),
		From:     from,
		FromName: ns.Lookup(from),
		Nonce:    tran.Nonce,
		GasPrice: tran.GasPrice.Dec(),
		StartGas: tran.StartGas,
		To:       tran.To,
		Value:    tran.Value.Dec(),
		Data:     tran.Data,
		Sig:      tran.SignatureString(),
	}

	if tran.To != nil {
		t.ToName = ns.Lookup(*tran.To)
	}

	return t
}

type block struct {
	Hash            common.Hash    `json:"hash"`
	ParentHash      common.Hash    `json:"parent_hash"`
	UnclesHash      common.Hash    `json:"uncles_hash"`
	Coinbase        common.Address `json:"coinbase"`
	CoinbaseName    string         `json:"coinbase_name"`
	StateRoot       common.Hash    `json:"state_root"`
	TxListRoot      common.Hash    `json:"tx_list_root"`
	Difficulty      string         `json:"difficulty"`
	TotalDifficulty string         `json:"total_difficulty,omitempty"`
	Number          uint64         `json:"number"`
	MinGasPrice     string         `json:"min_gas_price"`
	GasLimit        uint64         `json:"gas_limit"`
	GasUsed         uint64         `json:"gas_used"`
	Timestamp       uint64         `json:"timestamp"`
	ExtraData       hexutil.Bytes  `json:"extra_data,omitempty"`
	Nonce           hexutil.Bytes  `json:"nonce"`
	Transactions    []tx           `json:"transactions"`
}

func toBlock(ns *nameservice.NameService, blk storage.Block) block {
	trans := make([]tx, len(blk.Transactions))
	for i, tran := range blk.Transactions {
		trans[i] = toTx(ns, tran)
	}

	h := blk.Header
	return block{
		Hash:         blk.Hash(),
		ParentHash:   h.ParentHash,
		UnclesHash:   h.UnclesHash,
		Coinbase:     h.Coinbase,
		CoinbaseName: ns.Lookup(h.Coinbase),
		StateRoot:    h.StateRoot,
		TxListRoot:   h.TxListRoot,
		Difficulty:   h.Difficulty.Dec(),
		Number:       h.Number,
		MinGasPrice:  h.MinGasPrice.Dec(),
		GasLimit:     h.GasLimit,
		GasUsed:      h.GasUsed,
		Timestamp:    h.Timestamp,
		ExtraData:    h.ExtraData,
		Nonce:        h.Nonce,
		Transactions: trans,
	}
}

type account struct {
	Address     common.Address `json:"address"`
	Name        string         `json:"name"`
	Balance     string         `json:"balance"`
	Nonce       uint64         `json:"nonce"`
	StorageRoot common.Hash    `json:"storage_root"`
	CodeHash    common.Hash    `json:"code_hash"`
	Head        common.Hash    `json:"head"`
	Uncommitted int            `json:"uncommitted"`
}

// submitTx carries the encoding of a signed transaction.
type submitTx struct {
	Tx hexutil.Bytes `json:"tx" validate:"required"`
}

// importChain carries encoded blocks, newest first.
type importChain struct {
	Blocks []hexutil.Bytes `json:"blocks" validate:"required,min=1"`
}

type result struct {
	Hash   common.Hash `json:"hash"`
	Status string      `json:"status"`
	Error  string      `json:"error,omitempty"`
}

func toResult(res chain.Result) result {
	r := result{
		Hash:   res.Hash,
		Status: res.Status.String(),
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}
