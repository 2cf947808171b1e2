package main

import "github.com/ardanlabs/statechain/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
