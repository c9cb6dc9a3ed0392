package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"kp_with_forfeits/src/kpfs_solve/kpfs"

	"golang.org/x/exp/rand"
)

type params struct {
	numItems, numSets int
	capacityRatio     float64
	meanDensity       float64
	stdDevDensity     float64
	budget            int
	maxPenalty        int
}

func GenerateKPFInstance(rng *rand.Rand, p params) (*kpfs.Instance, error) {
	values := make([]int, p.numItems)
	weights := make([]int, p.numItems)
	totalWeight := 0
	for i, iN := 0, p.numItems; i < iN; i++ {
		values[i] = 1 + rng.Intn(100)
		weights[i] = 1 + rng.Intn(100)
		totalWeight += weights[i]
	}

	sets := make([]kpfs.SetSpec, p.numSets)
	for j := range sets {
		r := math.Max(0, math.Min(1, p.meanDensity+p.stdDevDensity*rng.NormFloat64()))
		setSize := int(math.Max(2.0, float64(p.numItems)*r))
		setSize = min(setSize, p.numItems)
		perm := rng.Perm(p.numItems)
		sets[j] = kpfs.SetSpec{
			Threshold: rng.Intn(setSize/2 + 1),
			Penalty:   1 + rng.Intn(p.maxPenalty),
			Members:   perm[:setSize],
		}
	}

	capacity := int(p.capacityRatio * float64(totalWeight))
	return kpfs.NewInstance(values, weights, capacity, p.budget, sets...)
}

func writeInstanceFile(path string, inst *kpfs.Instance) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := kpfs.WriteInstance(f, inst); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func main() {
	var outPath string
	var seed uint64
	var p params

	flag.StringVar(&outPath, "out", "out.txt", "The output file")
	flag.Uint64Var(&seed, "seed", 1, "The random seed")
	flag.IntVar(&p.numItems, "items", 0, "The number of items")
	flag.IntVar(&p.numSets, "sets", 0, "The number of forfeit sets")
	flag.Float64Var(&p.capacityRatio, "cap", 0.5, "The capacity as a fraction of the total weight")
	flag.Float64Var(&p.meanDensity, "meand", 0, "The forfeit sets density mean")
	flag.Float64Var(&p.stdDevDensity, "stddevd", 0, "The forfeit sets density standard deviation")
	flag.IntVar(&p.budget, "k", 0, "The forfeit budget")
	flag.IntVar(&p.maxPenalty, "maxd", 20, "The maximum forfeit penalty")

	flag.Parse()

	err := false
	if p.numItems <= 0 {
		fmt.Fprintln(os.Stderr, "Must specify the number of items")
		err = true
	}
	if p.numSets < 0 {
		fmt.Fprintln(os.Stderr, "The number of forfeit sets cannot be negative")
		err = true
	}
	if p.numSets > 0 && p.meanDensity == 0 {
		fmt.Fprintln(os.Stderr, "Must specify forfeit sets density mean")
		err = true
	}
	if p.maxPenalty <= 0 {
		fmt.Fprintln(os.Stderr, "The maximum forfeit penalty must be positive")
		err = true
	}

	if err {
		os.Exit(1)
	}

	inst, genErr := GenerateKPFInstance(rand.New(rand.NewSource(seed)), p)
	if genErr != nil {
		fmt.Fprintf(os.Stderr, "Error generating instance: %v\n", genErr)
		os.Exit(1)
	}

	if writeErr := writeInstanceFile(outPath, inst); writeErr != nil {
		fmt.Fprintf(os.Stderr, "Error writing %v: %v\n", outPath, writeErr)
		os.Exit(1)
	}
}
