//go:build ignore

// Generates a synthetic variable catalog for load testing.
// Usage: go run scripts/generate-catalog.go -variables 49000 -output testdata/catalog.csv
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
)

var (
	numVariables = flag.Int("variables", 49000, "Number of variables to generate")
	outputPath   = flag.String("output", "testdata/catalog.csv", "Output CSV path")
	seed         = flag.Int64("seed", 42, "Random seed for reproducibility")
)

type facet struct {
	category string
	theme    string
	prefix   string
	nouns    []string
	traits   []string
}

var facets = []facet{
	{
		category: "Financial", theme: "Money", prefix: "FIN",
		nouns:   []string{"Income", "Net Worth", "Savings", "Credit Card Spend", "Mortgage Balance", "Investment Portfolio"},
		traits:  []string{"household", "discretionary", "estimated", "self-reported", "modeled"},
	},
	{
		category: "Demographics", theme: "People", prefix: "DEM",
		nouns:   []string{"Age Group", "Household Size", "Education Level", "Marital Status", "Occupation", "Home Ownership"},
		traits:  []string{"adult", "head of household", "registered", "census-aligned", "projected"},
	},
	{
		category: "Behavioral", theme: "Commerce", prefix: "BEH",
		nouns:   []string{"Online Shopping", "Grocery Spend", "Travel Bookings", "Streaming Hours", "App Usage", "Store Visits"},
		traits:  []string{"frequent", "weekly", "seasonal", "lapsed", "heavy"},
	},
	{
		category: "Interests", theme: "Lifestyle", prefix: "INT",
		nouns:   []string{"Outdoor Recreation", "Cooking", "Fitness", "Gaming", "Pet Ownership", "Home Improvement"},
		traits:  []string{"enthusiast", "casual", "declared", "inferred", "engaged"},
	},
	{
		category: "Automotive", theme: "Vehicles", prefix: "AUT",
		nouns:   []string{"Vehicle Ownership", "Purchase Intent", "Lease Expiration", "Service Visits", "EV Interest", "Insurance Renewal"},
		traits:  []string{"in-market", "recent", "predicted", "registered", "returning"},
	},
}

var products = []string{"Core", "Premium", "Syndicated", "Custom"}
var dataTypes = []string{"first-party", "third-party", "clean-room"}

func main() {
	flag.Parse()
	rng := rand.New(rand.NewSource(*seed))

	if err := os.MkdirAll(filepath.Dir(*outputPath), 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	f, err := os.Create(*outputPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"code", "name", "description", "category", "theme", "product", "domain", "data_type", "operators"}
	if err := w.Write(header); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	for i := 0; i < *numVariables; i++ {
		fc := facets[i%len(facets)]
		noun := fc.nouns[rng.Intn(len(fc.nouns))]
		trait := fc.traits[rng.Intn(len(fc.traits))]

		code := fc.prefix + "_" + strconv.Itoa(100000+i)
		name := fmt.Sprintf("%s %s %d", noun, trait, i%100)
		desc := fmt.Sprintf("%s %s segment derived from %s signals",
			trait, noun, fc.theme)

		row := []string{
			code,
			name,
			desc,
			fc.category,
			fc.theme,
			products[rng.Intn(len(products))],
			fc.category + "/" + fc.theme,
			dataTypes[rng.Intn(len(dataTypes))],
			"equals|in",
		}
		if err := w.Write(row); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	}

	fmt.Printf("wrote %d variables to %s\n", *numVariables, *outputPath)
}
