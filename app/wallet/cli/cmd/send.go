package cmd

import (
	"crypto/ecdsa"
	"fmt"
	"log"
	"net/http"

	"github.com/ardanlabs/statechain/foundation/blockchain/processor"
	"github.com/ardanlabs/statechain/foundation/blockchain/storage"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"github.com/spf13/cobra"
)

var (
	nonce    int64
	to       string
	value    string
	gasPrice string
	startGas uint64
	data     []byte
)

// sendCmd represents the send command
var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send transaction",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
		if err != nil {
			log.Fatal(err)
		}

		if err := sendWithDetails(privateKey); err != nil {
			log.Fatal(err)
		}
	},
}

func init() {
	rootCmd.AddCommand(sendCmd)
	sendCmd.Flags().Int64VarP(&nonce, "nonce", "n", -1, "Nonce of the transaction, the next one of the account by default.")
	sendCmd.Flags().StringVarP(&to, "to", "t", "", "Address of the recipient, empty creates a new account.")
	sendCmd.Flags().StringVarP(&value, "value", "v", "0", "Value to send in wei.")
	sendCmd.Flags().StringVarP(&gasPrice, "gas-price", "g", "0", "Price paid for each unit of gas in wei.")
	sendCmd.Flags().Uint64VarP(&startGas, "gas", "s", 0, "Gas to reserve, the intrinsic gas by default.")
	sendCmd.Flags().BytesHexVarP(&data, "data", "d", nil, "Data to send.")
}

func sendWithDetails(privateKey *ecdsa.PrivateKey) error {
	from := crypto.PubkeyToAddress(privateKey.PublicKey)

	txNonce := uint64(nonce)
	if nonce < 0 {
		act, err := queryAccount(from)
		if err != nil {
			return err
		}
		txNonce = act.Nonce
	}

	var toAddr *common.Address
	if to != "" {
		if !common.IsHexAddress(to) {
			return fmt.Errorf("invalid recipient %q", to)
		}
		addr := common.HexToAddress(to)
		toAddr = &addr
	}

	val, err := uint256.FromDecimal(value)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}

	price, err := uint256.FromDecimal(gasPrice)
	if err != nil {
		return fmt.Errorf("gas price: %w", err)
	}

	gas := startGas
	if gas == 0 {
		gas = processor.IntrinsicGas(data)
	}

	tx, err := storage.NewTransaction(txNonce, price, gas, toAddr, val, data).Sign(privateKey)
	if err != nil {
		return err
	}

	enc, err := tx.Encode()
	if err != nil {
		return err
	}

	var resp struct {
		Status string      `json:"status"`
		Hash   common.Hash `json:"hash"`
	}
	req := map[string]hexutil.Bytes{"tx": enc}
	if err := call(http.MethodPost, "/v1/tx/submit", req, &resp); err != nil {
		return err
	}

	fmt.Println(resp.Status, resp.Hash)
	return nil
}
