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

	"github.com/AleutianAI/valalign/pkg/sampling"
)

// Counter is a deterministic model whose state is a single integer.
//
// It ignores norms. Every path of length L ends at Start + L*Increment,
// which makes it the reference model for checking the estimator itself.
type Counter struct {
	Start     int
	Increment int
	Count     int
}

// Step advances the counter by Increment.
func (c *Counter) Step(sampling.Norms) error {
	c.Count += c.Increment
	return nil
}

func newCounter(p Params) (sampling.Model, error) {
	start, err := p.Int("start", 0, 0)
	if err != nil {
		return nil, err
	}
	inc, err := p.Int("increment", 1, 1)
	if err != nil {
		return nil, err
	}
	return &Counter{Start: start, Increment: inc, Count: start}, nil
}

func counterValue(m sampling.Model) (float64, error) {
	c, ok := m.(*Counter)
	if !ok {
		return 0, fmt.Errorf("counter value: unexpected model %T", m)
	}
	return float64(c.Count), nil
}

func registerCounter(r *Registry) {
	r.RegisterModel("counter", newCounter)
	r.RegisterValue("counter", sampling.ValueFuncOf(counterValue))
}
