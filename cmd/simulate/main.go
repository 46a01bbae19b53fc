// Package main rolls a catalog many times offline and prints how often each
// item came up, next to the share its weight alone would give it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/coupledice/internal/catalog"
	"github.com/cory-johannsen/coupledice/internal/config"
	"github.com/cory-johannsen/coupledice/internal/dice"
	"github.com/cory-johannsen/coupledice/internal/diceserver"
	"github.com/cory-johannsen/coupledice/internal/observability"
	"github.com/cory-johannsen/coupledice/internal/scripting"
)

const simulatedAccount int64 = 1

func main() {
	catalogPath := flag.String("catalog", "", "catalog YAML file or directory (default: embedded catalog)")
	rulesDir := flag.String("rules", "", "directory of Lua catalog rules")
	rolls := flag.Int("n", 10000, "number of rolls")
	seed := flag.Uint64("seed", 1, "random seed")
	threshold := flag.Int("threshold", dice.DefaultRepeatThreshold, "pool size above which repeats are excluded")
	at := flag.String("at", "2026-01-02T20:00:00Z", "RFC 3339 time of the first roll")
	step := flag.Duration("step", 24*time.Hour, "time between rolls")
	verbose := flag.Bool("v", false, "log every roll")
	flag.Parse()

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger, err := observability.NewLogger(config.LoggingConfig{Level: level, Format: "console"})
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	if *rolls < 1 {
		logger.Fatal("n must be positive", zap.Int("n", *rolls))
	}
	first, err := time.Parse(time.RFC3339, *at)
	if err != nil {
		logger.Fatal("parsing -at", zap.Error(err))
	}

	defaults, err := catalog.Load(*catalogPath)
	if err != nil {
		logger.Fatal("loading catalog", zap.Error(err))
	}

	var filter diceserver.CatalogFilter
	if *rulesDir != "" {
		rules := scripting.NewFilter(logger)
		if err := rules.LoadDir(*rulesDir, 0); err != nil {
			logger.Fatal("loading catalog rules", zap.Error(err))
		}
		defer rules.Close()
		filter = rules
	}

	clock := diceserver.NewFixedClock(first)
	composer := dice.NewComposer(dice.NewPicker(dice.NewSeededSource(*seed), *threshold), dice.DefaultShares, clock, time.UTC)
	svc := diceserver.NewService(diceserver.Options{
		Defaults: defaults,
		Outcomes: diceserver.NewMemoryOutcomes(),
		Rolls:    diceserver.NewMemoryRolls(),
		Roller:   dice.NewLoggedComposer(composer, logger),
		Filter:   filter,
		Clock:    clock,
		Logger:   logger,
	})

	counts := make(map[string]int)
	repeats := make(map[dice.Category]int)
	var prev *dice.CompleteResult
	ctx := context.Background()
	for i := 0; i < *rolls; i++ {
		res, err := svc.Roll(ctx, simulatedAccount)
		if err != nil {
			logger.Fatal("roll failed", zap.Int("roll", i), zap.Error(err))
		}
		for _, c := range dice.Categories {
			counts[res.Pick(c).ID]++
			if prev != nil && prev.Pick(c).ID == res.Pick(c).ID {
				repeats[c]++
			}
		}
		prev = &res
		clock.Advance(*step)
	}

	report(defaults.All(), counts, repeats, *rolls)
}

func report(items []dice.OutcomeItem, counts map[string]int, repeats map[dice.Category]int, n int) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	for _, c := range dice.Categories {
		var group []dice.OutcomeItem
		weights := 0
		for _, it := range items {
			if it.Category == c {
				group = append(group, it)
				weights += it.Weight
			}
		}
		sort.SliceStable(group, func(i, j int) bool { return counts[group[i].ID] > counts[group[j].ID] })

		fmt.Fprintf(w, "%s\t\tobserved\tby weight\trolls\n", c)
		for _, it := range group {
			fmt.Fprintf(w, "  %s\t%s\t%.1f%%\t%.1f%%\t%d\n",
				it.ID, it.Emoji,
				100*float64(counts[it.ID])/float64(n),
				100*float64(it.Weight)/float64(weights),
				counts[it.ID],
			)
		}
		fmt.Fprintf(w, "  repeats\t\t%.1f%%\t\t%d\n\n", 100*float64(repeats[c])/float64(max(n-1, 1)), repeats[c])
	}
}
