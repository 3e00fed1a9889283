package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func trialDomains(n int) []string {
	return domainList("ok", n)
}

func TestTunerHigherRateWinsWithZeroFailures(t *testing.T) {
	t.Parallel()

	// With a resolver that never fails, the score reduces to throughput, so
	// the lower rate ceiling must not outscore the higher one.
	space := SearchSpace{QueriesPerSecond: []float64{5, 50}}
	tuner := NewTuner(stubResolver{}, fastConfig(4, 10))

	best, rankedTrials, err := tuner.Run(context.Background(), trialDomains(6), space, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(rankedTrials) != 2 {
		t.Fatalf("expected 2 trials, got %d", len(rankedTrials))
	}
	if best.Config.QueriesPerSecond != 50 {
		t.Fatalf("expected qps=50 to win, got qps=%v (score %.2f)",
			best.Config.QueriesPerSecond, best.Score)
	}
}

func TestTunerScorePenalizesFailures(t *testing.T) {
	t.Parallel()

	// Half of these domains fail to resolve; the score must come out below
	// raw successful throughput.
	domains := []string{"ok1.test", "fail1.test", "ok2.test", "fail2.test"}
	tuner := NewTuner(stubResolver{}, fastConfig(2, 10))

	trial, err := tuner.runTrial(context.Background(), domains, fastConfig(2, 10))
	if err != nil {
		t.Fatalf("runTrial failed: %v", err)
	}
	if trial.SuccessCount != 2 || trial.FailureCount != 2 {
		t.Fatalf("expected 2/2 split, got %d/%d", trial.SuccessCount, trial.FailureCount)
	}
	throughput := float64(trial.SuccessCount) / trial.Elapsed.Seconds()
	if trial.Score >= throughput {
		t.Fatalf("score %.2f not penalized below throughput %.2f", trial.Score, throughput)
	}
}

func TestTunerRankedDescending(t *testing.T) {
	t.Parallel()

	space := SearchSpace{
		QueriesPerSecond: []float64{10, 0}, // 0 = unbounded, should score highest
		BatchSizes:       []int{5, 10},
	}
	tuner := NewTuner(stubResolver{}, fastConfig(4, 10))

	_, rankedTrials, err := tuner.Run(context.Background(), trialDomains(8), space, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for i := 1; i < len(rankedTrials); i++ {
		if rankedTrials[i].Score > rankedTrials[i-1].Score {
			t.Fatalf("ranking not descending at %d: %.2f after %.2f",
				i, rankedTrials[i].Score, rankedTrials[i-1].Score)
		}
	}
}

func TestTunerBoundedTrialCount(t *testing.T) {
	t.Parallel()

	space := SearchSpace{
		QueriesPerSecond: []float64{0, 0},
		MaxWorkers:       []int{2, 4},
		Timeouts:         []time.Duration{time.Second},
		BatchSizes:       []int{5},
	}
	tuner := NewTuner(stubResolver{}, fastConfig(2, 5))

	trials := 0
	_, _, err := tuner.Run(context.Background(), trialDomains(4), space, func(TrialResult) {
		trials++
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if want := space.trials(); trials != want {
		t.Fatalf("expected exactly %d trials, got %d", want, trials)
	}
}

func TestTunerCancelledReturnsPartialRanking(t *testing.T) {
	t.Parallel()

	space := SearchSpace{QueriesPerSecond: []float64{0, 0, 0, 0}}
	tuner := NewTuner(stubResolver{}, fastConfig(2, 5))

	ctx, cancel := context.WithCancel(context.Background())
	completed := 0
	best, rankedTrials, err := tuner.Run(ctx, trialDomains(4), space, func(TrialResult) {
		completed++
		if completed == 2 {
			cancel()
		}
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if len(rankedTrials) != 2 {
		t.Fatalf("expected the 2 completed trials in the ranking, got %d", len(rankedTrials))
	}
	if best == nil {
		t.Fatal("expected a best trial from completed work")
	}
}

func TestTunerRejectsEmptyInputs(t *testing.T) {
	t.Parallel()

	tuner := NewTuner(stubResolver{}, fastConfig(2, 5))

	if _, _, err := tuner.Run(context.Background(), nil, DefaultSearchSpace(), nil); !errors.Is(err, ErrNoDomains) {
		t.Fatalf("expected ErrNoDomains for empty trial set, got %v", err)
	}
	if _, _, err := tuner.Run(context.Background(), trialDomains(2), SearchSpace{}, nil); !errors.Is(err, ErrEmptySearchSpace) {
		t.Fatalf("expected ErrEmptySearchSpace, got %v", err)
	}
}

func TestTunerSkipsInvalidCandidates(t *testing.T) {
	t.Parallel()

	// A negative rate candidate fails validation and is skipped, not fatal.
	space := SearchSpace{QueriesPerSecond: []float64{-1, 0}}
	tuner := NewTuner(stubResolver{}, fastConfig(2, 5))

	_, rankedTrials, err := tuner.Run(context.Background(), trialDomains(3), space, nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(rankedTrials) != 1 {
		t.Fatalf("expected 1 completed trial after skipping the invalid candidate, got %d", len(rankedTrials))
	}
}

func TestDefaultTrialDomains(t *testing.T) {
	t.Parallel()

	domains := DefaultTrialDomains()
	want := len(trialSeeds) * (len(trialPrefixes) + 1)
	if len(domains) != want {
		t.Fatalf("expected %d trial domains, got %d", want, len(domains))
	}

	seen := make(map[string]struct{}, len(domains))
	for _, d := range domains {
		if _, dup := seen[d]; dup {
			t.Fatalf("duplicate trial domain %s", d)
		}
		seen[d] = struct{}{}
	}
	if _, ok := seen["www.google.com"]; !ok {
		t.Fatal("expected prefixed variants like www.google.com")
	}
	for _, d := range domains {
		if strings.TrimSpace(d) == "" {
			t.Fatal("empty trial domain")
		}
	}
}
