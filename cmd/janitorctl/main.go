// Command janitorctl is a dev CLI for boardjanitor maintenance and debugging tasks.
package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/pkg/browser"
	log "github.com/sirupsen/logrus"

	"github.com/ibeckermayer/boardjanitor/internal/config"
	"github.com/ibeckermayer/boardjanitor/internal/spam"
	"github.com/ibeckermayer/boardjanitor/internal/store"
	"github.com/ibeckermayer/boardjanitor/internal/summarizer"
	"github.com/ibeckermayer/boardjanitor/internal/types"
)

func main() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "open":
		runOpen(os.Args[2])
	case "last":
		runLast(store.StepName(os.Args[2]))
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: janitorctl <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  open config    Open config file in default editor")
	fmt.Println("  open cache     Open run cache directory in file explorer")
	fmt.Println("  last <step>    Show the newest cached output of a step (reports open in the browser)")
	fmt.Printf("                 (%s, %s, %s, %s)\n",
		store.StepSpamReport, store.StepSpamVerdicts, store.StepSummaryReport, store.StepSummaries)
}

func runOpen(target string) {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "cache":
		path, err = config.CacheDir()
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}

func runLast(step store.StepName) {
	cache, err := store.DefaultRunCache()
	if err != nil {
		log.Fatalf("Failed to get cache dir: %v", err)
	}

	switch step {
	case store.StepSpamVerdicts:
		res, path, err := store.LoadLatestStepOutput[spam.Result](cache, step)
		if err != nil {
			log.Fatalf("No output: %v", err)
		}
		fmt.Println(path)
		printVerdicts(res)
		return
	case store.StepSummaries:
		sums, path, err := store.LoadLatestStepOutput[[]summarizer.Summary](cache, step)
		if err != nil {
			log.Fatalf("No output: %v", err)
		}
		fmt.Println(path)
		fmt.Printf("%d summaries written\n", len(sums))
		for _, s := range sums {
			fmt.Printf("  %s: %s\n", s.PostID, s.Short)
		}
		return
	}

	path, err := cache.LatestStepFile(step)
	if err != nil {
		log.Fatalf("No output: %v", err)
	}

	log.WithField("path", path).Info("Opening")
	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}

func printVerdicts(res spam.Result) {
	fmt.Printf("%d posts, %d eligible, %d flagged\n", res.Total, res.Eligible, len(res.Verdicts))

	byReason := make(map[types.SpamReason]int)
	for _, v := range res.Verdicts {
		byReason[v.Reason]++
	}
	reasons := make([]string, 0, len(byReason))
	for r := range byReason {
		reasons = append(reasons, string(r))
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Printf("  %s: %d\n", r, byReason[types.SpamReason(r)])
	}
	if len(res.Defaulted) > 0 {
		fmt.Printf("  missing timestamps: %d\n", len(res.Defaulted))
	}
}
