// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package models

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/AleutianAI/valalign/pkg/sampling"
)

// Norm and field names read by the wealth model.
const (
	TaxNorm           = "tax"
	TaxRateField      = "rate"
	TaxThresholdField = "threshold"
)

const (
	defaultAgents   = 20
	defaultWealth   = 100.0
	defaultExchange = 0.1
)

// Wealth is a stochastic wealth-redistribution society.
//
// # Description
//
// Each step has two phases. In the exchange phase every agent, in random
// order, pays a random share (up to Exchange) of its wealth to a random
// other agent. In the tax phase every agent above tax.threshold pays
// tax.rate of the excess into a common pot, which is then split equally
// among all agents. Total wealth is conserved.
//
// Norms read: "tax" with fields "rate" in [0, 1] (default 0) and
// "threshold" >= 0 (default 0).
type Wealth struct {
	Holdings []float64
	Exchange float64

	rng   *rand.Rand
	order []int
}

// Step runs one exchange phase followed by one tax phase.
func (w *Wealth) Step(norms sampling.Norms) error {
	rate, err := normFloat(norms, TaxNorm, TaxRateField, 0)
	if err != nil {
		return err
	}
	threshold, err := normFloat(norms, TaxNorm, TaxThresholdField, 0)
	if err != nil {
		return err
	}
	if rate < 0 || rate > 1 {
		return fmt.Errorf("tax.rate %v outside [0, 1]", rate)
	}
	if threshold < 0 {
		return fmt.Errorf("tax.threshold %v is negative", threshold)
	}

	n := len(w.Holdings)
	if n < 2 {
		return nil
	}

	w.rng.Shuffle(n, func(i, j int) { w.order[i], w.order[j] = w.order[j], w.order[i] })
	for _, payer := range w.order {
		payee := w.rng.IntN(n - 1)
		if payee >= payer {
			payee++
		}
		amount := w.Holdings[payer] * w.Exchange * w.rng.Float64()
		w.Holdings[payer] -= amount
		w.Holdings[payee] += amount
	}

	var pot float64
	for i, h := range w.Holdings {
		if h > threshold {
			due := (h - threshold) * rate
			w.Holdings[i] -= due
			pot += due
		}
	}
	share := pot / float64(n)
	for i := range w.Holdings {
		w.Holdings[i] += share
	}
	return nil
}

// Gini returns the Gini coefficient of the holdings, in [0, (n-1)/n]. A
// society with no wealth has coefficient 0.
func (w *Wealth) Gini() float64 {
	return gini(w.Holdings)
}

func gini(holdings []float64) float64 {
	n := len(holdings)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(holdings)
	slices.Sort(sorted)

	var total, weighted float64
	for i, h := range sorted {
		total += h
		weighted += float64(i+1) * h
	}
	if total <= 0 {
		return 0
	}
	g := 2*weighted/(float64(n)*total) - float64(n+1)/float64(n)
	return max(g, 0)
}

func newWealth(p Params) (sampling.Model, error) {
	agents, err := p.Int("agents", 0, defaultAgents)
	if err != nil {
		return nil, err
	}
	if agents < 1 {
		return nil, fmt.Errorf("agents must be positive, got %d", agents)
	}
	initial, err := p.Float("wealth", 1, defaultWealth)
	if err != nil {
		return nil, err
	}
	if initial < 0 {
		return nil, fmt.Errorf("wealth must not be negative, got %v", initial)
	}
	exchange, err := p.Float("exchange", 2, defaultExchange)
	if err != nil {
		return nil, err
	}
	if exchange < 0 || exchange > 1 {
		return nil, fmt.Errorf("exchange %v outside [0, 1]", exchange)
	}

	seed, seeded, err := p.Seed()
	if err != nil {
		return nil, err
	}
	// One stream per path index, so every computation of a snapshot agrees.
	var src *rand.PCG
	if seeded {
		src = rand.NewPCG(seed, uint64(p.Path))
	} else {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}

	w := &Wealth{
		Holdings: make([]float64, agents),
		Exchange: exchange,
		rng:      rand.New(src),
		order:    make([]int, agents),
	}
	for i := range w.Holdings {
		w.Holdings[i] = initial
		w.order[i] = i
	}
	return w, nil
}

func wealthModel(m sampling.Model) (*Wealth, error) {
	w, ok := m.(*Wealth)
	if !ok {
		return nil, fmt.Errorf("wealth value: unexpected model %T", m)
	}
	return w, nil
}

func registerWealth(r *Registry) {
	r.RegisterModel("wealth", newWealth)
	r.RegisterValue("equality", sampling.ValueFuncOf(func(m sampling.Model) (float64, error) {
		w, err := wealthModel(m)
		if err != nil {
			return 0, err
		}
		return 1 - w.Gini(), nil
	}))
	r.RegisterValue("mean_wealth", sampling.ValueFuncOf(func(m sampling.Model) (float64, error) {
		w, err := wealthModel(m)
		if err != nil {
			return 0, err
		}
		var total float64
		for _, h := range w.Holdings {
			total += h
		}
		return total / float64(len(w.Holdings)), nil
	}))
}
