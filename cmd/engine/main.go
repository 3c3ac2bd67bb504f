// Command engine is one worker process in a constructible-point enumeration
// campaign (spec.md §1). client_id 0 is the root worker, responsible for
// seeding and generation rollover; every other client_id is an ordinary
// worker that leases tasks until none remain.
package main

import (
	"context"
	"flag"
	"log"
	"strconv"

	"github.com/rawblock/constructible-engine/internal/api"
	"github.com/rawblock/constructible-engine/internal/config"
	"github.com/rawblock/constructible-engine/internal/coordinator"
	"github.com/rawblock/constructible-engine/internal/dump"
	"github.com/rawblock/constructible-engine/internal/scalar"
	"github.com/rawblock/constructible-engine/internal/seedfile"
	"github.com/rawblock/constructible-engine/internal/stats"
	"github.com/rawblock/constructible-engine/internal/store"
)

func main() {
	configPath := flag.String("config", "config.ini", "path to the INI configuration file")
	flag.Parse()

	log.Println("Starting constructible-engine worker...")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	env, err := scalar.Init(cfg.PrecisionBits, cfg.Epsilon)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx := context.Background()

	db, err := store.Connect(ctx, cfg.DB.ConnString(), env, store.Config{
		TableWorking:     cfg.Schema.TableWorking,
		TableKnown:       cfg.Schema.TableKnown,
		TableStatus:      cfg.Schema.TableStatus,
		PointDigits:      cfg.PointDigits,
		CharDigits:       cfg.Schema.PointCharDigits,
		DecimalPrecision: cfg.Schema.DecimalPrecision,
		DecimalScale:     cfg.Schema.DecimalScale,
	})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer db.Close()

	if cfg.IsRoot() {
		if err := db.Bootstrap(ctx); err != nil {
			log.Fatalf("FATAL: schema bootstrap: %v", err)
		}
	}

	var events coordinator.EventSink = coordinator.NoopEventSink
	if cfg.StatusPort > 0 {
		hub := api.NewHub()
		go hub.Run()
		events = hub

		router := api.SetupRouter(db, hub, cfg.BatchID)
		go func() {
			addr := ":" + strconv.Itoa(cfg.StatusPort)
			log.Printf("status api: listening on %s", addr)
			if err := router.Run(addr); err != nil {
				log.Printf("status api: stopped: %v", err)
			}
		}()
	}

	seeds := seedfile.FileReader{Path: cfg.SeedFile, BufferSize: cfg.SeedFileLineBuffer}
	reporter := stats.New(cfg.UpdateIntervalSec, cfg.CheckpointIntervalSec, cfg.BenchmarkTimeSec)

	coord := coordinator.New(db, env, seeds, reporter, events, coordinator.Config{
		ClientID:      cfg.ClientID,
		BatchID:       cfg.BatchID,
		MaxIterations: cfg.MaxIterations,
		PointDigits:   cfg.PointDigits,
		MaxPointCache: cfg.MaxPointCache,
	})

	if err := coord.Run(ctx); err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	if cfg.IsRoot() && cfg.WritePointsToFile {
		log.Println("sorting points, about to write to file")
		known, err := db.ListKnown(ctx)
		if err != nil {
			log.Fatalf("FATAL: listing known points: %v", err)
		}
		if err := dump.WriteKnownPoints(cfg.OutputFilename, known); err != nil {
			log.Fatalf("FATAL: %v", err)
		}
	}

	log.Println("worker finished")
}
