// This program performs administrative tasks against the chain database of
// a node that is not running.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ardanlabs/conf/v3"
	"github.com/ardanlabs/statechain/app/tooling/admin/commands"
	"github.com/ardanlabs/statechain/foundation/blockchain/chain"
	"github.com/ardanlabs/statechain/foundation/blockchain/database"
	"github.com/ardanlabs/statechain/foundation/blockchain/genesis"
	"github.com/ardanlabs/statechain/foundation/logger"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("ADMIN")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		if !errors.Is(err, commands.ErrHelp) {
			log.Errorw("startup", "ERROR", err)
		}
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {
	cfg := struct {
		conf.Version
		Args        conf.Args
		DBLocation  string `conf:"default:zblock/chain.db"`
		GenesisPath string `conf:"default:zblock/genesis.json"`
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "statechain admin tool",
		},
	}

	const prefix = "ADMIN"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	gen, err := genesis.Load(cfg.GenesisPath)
	if err != nil {
		return fmt.Errorf("loading genesis: %w", err)
	}

	db, err := database.NewRegistry().Open(cfg.DBLocation)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	chn, err := chain.New(chain.Config{
		DB:      db,
		Genesis: gen,
		EvHandler: func(v string, args ...any) {
			log.Infow(fmt.Sprintf(v, args...), "traceid", "00000000-0000-0000-0000-000000000000")
		},
	})
	if err != nil {
		return fmt.Errorf("opening chain: %w", err)
	}

	return processCommands(cfg.Args, chn, gen)
}

// processCommands handles the execution of the commands specified on
// the command line.
func processCommands(args conf.Args, chn *chain.Chain, gen genesis.Genesis) error {
	switch args.Num(0) {
	case "bals":
		if err := commands.Balances(args, chn); err != nil {
			return fmt.Errorf("getting balances: %w", err)
		}
	case "blocks":
		if err := commands.Blocks(args, chn); err != nil {
			return fmt.Errorf("getting blocks: %w", err)
		}
	case "genesis":
		if err := commands.Genesis(chn, gen); err != nil {
			return fmt.Errorf("getting genesis: %w", err)
		}
	default:
		fmt.Println("bals [address]: show the balances at the head")
		fmt.Println("blocks [from] [to]: show the blocks of the head branch")
		fmt.Println("genesis: show the genesis block")
		return commands.ErrHelp
	}

	return nil
}
