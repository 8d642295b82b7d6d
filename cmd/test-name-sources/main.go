// Test program to check the live name sources
// This resolves a few well-known stars through the IAU list and Wikidata
package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ppiankov/astrolabium/internal/model"
	"github.com/ppiankov/astrolabium/internal/names"
	"github.com/ppiankov/astrolabium/internal/pipeline"
)

func main() {
	fmt.Println("=== Name Source Check ===")
	fmt.Println()

	// Sirius, Rigil Kentaurus, Capella
	ids := []model.CatalogueID{
		{Catalogue: model.CatalogueHipparcos, ID: "32349"},
		{Catalogue: model.CatalogueHipparcos, ID: "71683"},
		{Catalogue: model.CatalogueHD, ID: "34029"},
	}

	cfg := model.DefaultConfig()
	fetcher := pipeline.NewFetcher(cfg.HTTP)
	sources := []names.Source{
		names.NewIAUSource(fetcher, cfg.Names.IAUURL),
		names.NewWikidataClient(fetcher, cfg.Names),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	failed := false
	for _, src := range sources {
		fmt.Printf("Source: %s\n", src.Name())
		fmt.Println(strings.Repeat("-", 60))

		start := time.Now()
		list, err := src.Lookup(ctx, ids)
		if err != nil {
			fmt.Printf("  Lookup error: %v\n\n", err)
			failed = true
			continue
		}
		for _, e := range list {
			mass := ""
			if e.Mass != nil {
				mass = fmt.Sprintf(" (%.3f M☉)", e.Mass.Value)
			}
			fmt.Printf("  %-20s %-3s %v%s\n", e.Name, e.Component, e.IDs(), mass)
		}
		fmt.Printf("  %d entities in %v\n\n", len(list), time.Since(start).Round(time.Millisecond))
	}

	if failed {
		os.Exit(1)
	}
}
