package main

import (
	"context"
	"flag"
	"log"

	executorpkg "sigex/pkg/executor"
	"sigex/pkg/replay"
)

var (
	journalFile   = flag.String("journal", "data/executions.msgpack", "journal file to replay")
	executionFile = flag.String("execution", "", "execution config file (defaults apply when empty)")
	outputFile    = flag.String("out", "", "write a JSON report to this path")
	showDetails   = flag.Bool("details", false, "log one line per replayed entry")
)

func main() {
	flag.Parse()
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)

	source, err := replay.NewJournalSource(*journalFile)
	if err != nil {
		log.Fatalf("[main] Failed to load journal: %v", err)
	}

	cfg := executorpkg.Default()
	if *executionFile != "" {
		cfg, err = executorpkg.LoadConfig(*executionFile)
		if err != nil {
			log.Fatalf("[main] Failed to load execution config: %v", err)
		}
	}

	engine := &replay.Engine{Source: source, Config: cfg, OutputPath: *outputFile}
	res, err := engine.Run(context.Background())
	if err != nil {
		log.Fatalf("[main] Replay failed: %v", err)
	}

	log.Printf("[main] Replayed %s", *journalFile)
	log.Printf("  - Entries: %d (executed=%d duplicates=%d failed=%d skipped=%d)",
		res.Entries, res.Executed, res.Duplicates, res.Failed, res.Skipped)
	log.Printf("  - Wallet: %s -> %s (realized %s)", res.StartWallet, res.FinalWallet, res.RealizedPnL)
	log.Printf("  - Equity: %s", res.FinalEquity)
	for _, pos := range res.OpenPositions {
		log.Printf("  - Open: %s %s qty=%s entry=%s", pos.Symbol, pos.Side, pos.Quantity, pos.Entry)
	}
	if *showDetails {
		for _, d := range res.Details {
			if d.Error != "" {
				log.Printf("  #%d %s %s -> %s: %s", d.Sequence, d.Symbol, d.Action, d.Status, d.Error)
				continue
			}
			log.Printf("  #%d %s %s -> %s qty=%s px=%s", d.Sequence, d.Symbol, d.Action, d.Status, d.Quantity, d.Price)
		}
	}
	if *outputFile != "" {
		log.Printf("  - Report written to %s", *outputFile)
	}
}
