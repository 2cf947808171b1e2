package cmd

import (
	"fmt"
	"log"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"
)

type account struct {
	Address     common.Address `json:"address"`
	Name        string         `json:"name"`
	Balance     string         `json:"balance"`
	Nonce       uint64         `json:"nonce"`
	Head        common.Hash    `json:"head"`
	Uncommitted int            `json:"uncommitted"`
}

var balanceCmd = &cobra.Command{
	Use:   "balance",
	Short: "Print your balance.",
	Run:   balanceRun,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func balanceRun(cmd *cobra.Command, args []string) {
	privateKey, err := crypto.LoadECDSA(getPrivateKeyPath())
	if err != nil {
		log.Fatal(err)
	}

	address := crypto.PubkeyToAddress(privateKey.PublicKey)
	fmt.Println("For Account:", address)

	act, err := queryAccount(address)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("Balance:", act.Balance)
	fmt.Println("Nonce:  ", act.Nonce)
	fmt.Println("Head:   ", act.Head)
}

func queryAccount(address common.Address) (account, error) {
	var act account
	if err := call(http.MethodGet, "/v1/accounts/"+address.Hex(), nil, &act); err != nil {
		return account{}, err
	}
	return act, nil
}
