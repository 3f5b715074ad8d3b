// Copyright 2026 Vaultic LLC
// SPDX-License-Identifier: Apache-2.0

package store

import "time"

// TrendPoint is one sample of a trend series.
type TrendPoint struct {
	At    time.Time `cbor:"at"`
	Count int       `cbor:"count"`
}

// TrendSeries holds the parallel risk/trend arrays rendered by the UI:
// Current tracks the total object count over time, Safe the count
// excluding weak, duplicate, stale, and login-containing objects.
//
// Both arrays are append-only; one entry is added to each per
// successful mutation. Not user-editable.
type TrendSeries struct {
	Current []TrendPoint `cbor:"current"`
	Safe    []TrendPoint `cbor:"safe"`
}

// Append adds one sample to each series. Safe can never exceed
// current; callers compute safe as a subset of the counted objects.
func (t *TrendSeries) Append(at time.Time, current, safe int) {
	t.Current = append(t.Current, TrendPoint{At: at, Count: current})
	t.Safe = append(t.Safe, TrendPoint{At: at, Count: safe})
}

// Len returns the number of samples (identical for both series).
func (t TrendSeries) Len() int {
	return len(t.Current)
}
