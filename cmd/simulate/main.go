// cmd/simulate runs a full episode from a JSON scenario file and prints a
// per-day summary, adapted from the teacher's cmd/simulate_settlement
// banner-and-steps CLI style.
package main

import (
	"flag"
	"fmt"
	"log"

	"rtgssim/internal/orchestrator"
	"rtgssim/internal/scenario"
)

func main() {
	path := flag.String("scenario", "", "path to a scenario JSON file")
	flag.Parse()

	if *path == "" {
		log.Fatal("usage: simulate -scenario path/to/scenario.json")
	}

	cfg, err := scenario.Load(*path)
	if err != nil {
		log.Fatalf("failed to load scenario: %v", err)
	}

	fmt.Println("=========================================================")
	fmt.Println("RTGS/LSM SIMULATION")
	fmt.Printf("Agents: %d | Ticks/day: %d | Days: %d | Seed: %d\n",
		len(cfg.Agents), cfg.TicksPerDay, cfg.NumDays, cfg.RNGSeed)
	fmt.Println("=========================================================")

	orch := orchestrator.New(cfg)

	totalTicks := cfg.TicksPerDay * cfg.NumDays
	day := 0
	var daySettlements, dayArrivals, dayDrops int

	for i := 0; i < totalTicks; i++ {
		result := orch.Tick()
		daySettlements += result.NumGrossSettlements + result.NumBilateralOffsets + result.NumCycleSettlements
		dayArrivals += result.NumArrivals
		dayDrops += result.NumDropped

		if result.EndOfDay {
			fmt.Printf("Day %d complete: %d arrivals, %d settlements, %d dropped\n",
				day, dayArrivals, daySettlements, dayDrops)
			day++
			daySettlements, dayArrivals, dayDrops = 0, 0, 0
		}
	}

	fmt.Println("---------------------------------------------------------")
	fmt.Println("SIMULATION COMPLETE")
	fmt.Println("=========================================================")
}
