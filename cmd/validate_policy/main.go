// cmd/validate_policy loads a policy decision-tree JSON document, runs it
// through the two-stage validator, and prints a {valid, errors[]} report.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"rtgssim/internal/policy"
)

type report struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func main() {
	path := flag.String("policy", "", "path to a policy JSON document")
	flag.Parse()

	if *path == "" {
		log.Fatal("usage: validate_policy -policy path/to/policy.json")
	}

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("failed to read policy file: %v", err)
	}

	_, result, loadErr := policy.LoadFromJSON(raw)

	rep := report{Valid: loadErr == nil && result.Valid}
	for _, e := range result.Errors {
		rep.Errors = append(rep.Errors, e.Error())
	}
	if loadErr != nil && len(result.Errors) == 0 {
		rep.Errors = append(rep.Errors, loadErr.Error())
	}

	out, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		log.Fatalf("failed to encode report: %v", err)
	}
	fmt.Println(string(out))

	if !rep.Valid {
		os.Exit(1)
	}
}
