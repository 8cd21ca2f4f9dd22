// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the console.
//
// Components that stamp or wait on time (the dispatcher's sent and
// received times, the invoker's confirmation timeout, the bulk runner's
// pacing) take a Clock instead of calling time.Now or time.After
// directly. Production wiring passes Real(). Tests pass Fake(), which
// stands still until Advance is called:
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	runner := bulk.NewRunner[string](bulk.Config{Clock: fake, Limiter: limiter})
//	go runner.Run(ctx, items, action)
//	fake.WaitForTimers(1)          // the runner is waiting for a token
//	fake.Advance(time.Second)      // release it deterministically
//
// WaitForTimers removes the race between a goroutine registering a
// wait and the test advancing the clock.
package clock
