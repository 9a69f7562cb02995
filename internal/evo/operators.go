package evo

import (
	"errors"
	"fmt"
	"math/rand"

	"cropopt/internal/catalog"
	"cropopt/internal/model"
)

var (
	ErrInsufficientPopulation = errors.New("population needs at least two plans")
	ErrDegeneratePopulation   = errors.New("population needs at least two distinct plans")
)

// SelectUniqueParents draws two plans with different content. The second
// draw repeats until it differs from the first.
func SelectUniqueParents(rng *rand.Rand, population []model.Plan) (model.Plan, model.Plan, error) {
	if rng == nil {
		return model.Plan{}, model.Plan{}, fmt.Errorf("random source is required")
	}
	if len(population) < 2 {
		return model.Plan{}, model.Plan{}, fmt.Errorf("%w: got %d", ErrInsufficientPopulation, len(population))
	}
	if !hasDistinctPlans(population) {
		return model.Plan{}, model.Plan{}, ErrDegeneratePopulation
	}

	first := population[rng.Intn(len(population))]
	second := population[rng.Intn(len(population))]
	for second.Equal(first) {
		second = population[rng.Intn(len(population))]
	}
	return first, second, nil
}

func hasDistinctPlans(population []model.Plan) bool {
	for _, plan := range population[1:] {
		if !plan.Equal(population[0]) {
			return true
		}
	}
	return false
}

// CrossoverIndividuals swaps one gene unique to each parent into the other.
// When either parent has no unique gene the parents are returned as copies.
func CrossoverIndividuals(rng *rand.Rand, p1, p2 model.Plan) (model.Plan, model.Plan) {
	unique1 := uniqueGenes(p1, p2)
	unique2 := uniqueGenes(p2, p1)
	if len(unique1) == 0 || len(unique2) == 0 {
		return p1.Clone(), p2.Clone()
	}

	i1 := unique1[rng.Intn(len(unique1))]
	i2 := unique2[rng.Intn(len(unique2))]
	child1 := p1.WithAllocation(i1, p2.Allocations[i2])
	child2 := p2.WithAllocation(i2, p1.Allocations[i1])
	return child1, child2
}

// uniqueGenes returns the indices of allocations in p whose crop is absent
// from other.
func uniqueGenes(p, other model.Plan) []int {
	out := make([]int, 0, len(p.Allocations))
	for i, a := range p.Allocations {
		if !other.Contains(a.Crop) {
			out = append(out, i)
		}
	}
	return out
}

// Mutate replaces one allocation's crop with a catalog crop the plan does not
// use yet. Area and site are carried over.
func Mutate(rng *rand.Rand, plan model.Plan, c *catalog.Catalog) model.Plan {
	if len(plan.Allocations) == 0 {
		return plan.Clone()
	}
	unused := make([]model.CropRecord, 0)
	for _, record := range c.All() {
		if !plan.Contains(record.Name) {
			unused = append(unused, record)
		}
	}
	if len(unused) == 0 {
		return plan.Clone()
	}

	idx := rng.Intn(len(plan.Allocations))
	record := unused[rng.Intn(len(unused))]
	gene := plan.Allocations[idx]
	gene.Crop = record.Name
	gene.PlantingSeason = record.PlantingSeason
	return plan.WithAllocation(idx, gene)
}

// Crossover breeds floor(n/2) parent pairs into two mutated offspring each.
// An odd population therefore shrinks by one.
func Crossover(rng *rand.Rand, population []model.Plan, c *catalog.Catalog) ([]model.Plan, error) {
	if len(population) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientPopulation, len(population))
	}
	pairs := len(population) / 2
	offspring := make([]model.Plan, 0, pairs*2)
	for i := 0; i < pairs; i++ {
		p1, p2, err := SelectUniqueParents(rng, population)
		if err != nil {
			return nil, err
		}
		child1, child2 := CrossoverIndividuals(rng, p1, p2)
		offspring = append(offspring, Mutate(rng, child1, c), Mutate(rng, child2, c))
	}
	return offspring, nil
}
