package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/ignite/searchterm-optimizer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyze_ProfitableTermGetsHigherBid(t *testing.T) {
	s := analyze(t,
		rec("good kw", 100, 5, 100, 5),
		rec("baseline", 100, 100, 100, 3),
	)
	assert.InDelta(t, 52.5, s.OverallAcos, 1e-9)
	assert.InDelta(t, 52.5, s.Baseline.TargetAcos, 1e-9)

	r := resultFor(t, s, "good kw")
	assert.Equal(t, IncreaseBid, r.Suggestion)
	assert.InDelta(t, 0.75, r.Confidence, 1e-9)
	require.NotNil(t, r.EstimatedAcos)
	assert.InDelta(t, 5.0, float64(*r.EstimatedAcos), 1e-9)
}

func TestAnalyze_ExpensiveTermGetsLowerBid(t *testing.T) {
	s := analyze(t,
		rec("bad kw", 100, 300, 100, 2),
		rec("baseline", 100, 10, 100, 3),
	)
	assert.InDelta(t, 155.0, s.OverallAcos, 1e-9)
	assert.InDelta(t, 217.0, s.Baseline.DecreaseBidAcos(s.Params), 1e-9)

	r := resultFor(t, s, "bad kw")
	assert.Equal(t, DecreaseBid, r.Suggestion)
	assert.InDelta(t, 0.6, r.Confidence, 1e-9)
}

func TestAnalyze_ClickedNeverConvertedTermIsNegated(t *testing.T) {
	s := analyze(t,
		rec("cheap junk", 50, 25, 0, 0),
		rec("baseline", 150, 50, 400, 8),
	)
	require.InDelta(t, 4.0, s.Baseline.OverallConversionRate, 1e-9)
	require.Equal(t, Metric(25), s.Baseline.ExactNegativeClickThreshold)

	r := resultFor(t, s, "cheap junk")
	assert.Equal(t, ExactNegative, r.Suggestion)
	assert.Equal(t, 0.7, r.Confidence)
	require.NotNil(t, r.ProblemKeyword)
}

func TestAnalyze_LowVolumeTermIsPending(t *testing.T) {
	s := analyze(t,
		rec("rare gadget", 2, 1, 0, 0),
		rec("baseline", 98, 50, 400, 4),
	)
	r := resultFor(t, s, "rare gadget")
	assert.Equal(t, Pending, r.Suggestion)
	assert.Equal(t, "rare", *r.ProblemKeyword)
	assert.Contains(t, r.SuggestedAction, "short of the exact negative threshold")
}

func TestAnalyze_InvalidParams(t *testing.T) {
	p := DefaultParams()
	p.Reliability = -2
	s, err := Analyze([]domain.SearchTermRecord{rec("kw", 1, 1, 1, 1)}, p)
	assert.Nil(t, s)
	assert.True(t, errors.Is(err, ErrInvalidParams))
}

func TestAnalyze_Empty(t *testing.T) {
	s := analyze(t)
	assert.Zero(t, s.TotalKeywords)
	assert.Zero(t, s.Counts.Total())
	assert.NotNil(t, s.Results)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"results":[]`)
	assert.Contains(t, string(out), `"exact_negative_click_threshold":"Infinity"`)
}

func randomBatch(seed int64, n int) []domain.SearchTermRecord {
	rng := rand.New(rand.NewSource(seed))
	vocab := []string{"blue", "red", "widget", "shoes", "free", "cheap", "pro", "kids", "2024", "for", "x"}
	records := make([]domain.SearchTermRecord, n)
	for i := range records {
		term := ""
		for w := 0; w < 1+rng.Intn(4); w++ {
			term += vocab[rng.Intn(len(vocab))] + " "
		}
		clicks := float64(rng.Intn(80))
		orders := 0.0
		if clicks > 0 && rng.Intn(3) == 0 {
			orders = float64(rng.Intn(int(clicks)/4 + 1))
		}
		spend := clicks * rng.Float64() * 2
		sales := orders * (10 + rng.Float64()*40)
		records[i] = rec(fmt.Sprintf("%s#%d", term, i), clicks, spend, sales, orders)
	}
	return records
}

func TestAnalyze_Totality(t *testing.T) {
	for seed := int64(1); seed <= 20; seed++ {
		records := randomBatch(seed, 150)
		s := analyze(t, records...)

		assert.Equal(t, len(records), s.TotalKeywords)
		assert.Equal(t, s.TotalKeywords, s.Counts.Total())
		require.Len(t, s.Results, len(records))

		perCategory := 0
		for _, sg := range Suggestions {
			perCategory += len(s.Filter(sg))
		}
		assert.Equal(t, len(records), perCategory)

		for i, r := range s.Results {
			assert.Equal(t, records[i].SearchTerm, r.SearchTerm, "results keep input order")
			assert.NotEmpty(t, r.Rule)
			assert.NotEmpty(t, r.SuggestedAction)
			assert.GreaterOrEqual(t, r.Confidence, 0.0)
			assert.LessOrEqual(t, r.Confidence, 1.0)
		}
	}
}

func TestAnalyze_Deterministic(t *testing.T) {
	records := randomBatch(7, 200)
	first := analyze(t, records...)
	second := analyze(t, records...)
	assert.Equal(t, first, second)
}

func TestAnalyze_ConcurrentBatches(t *testing.T) {
	const workers = 8
	want := make([]*Summary, workers)
	for i := range want {
		want[i] = analyze(t, randomBatch(int64(100+i), 120)...)
	}

	got := make([]*Summary, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := Analyze(randomBatch(int64(100+i), 120), DefaultParams())
			if err == nil {
				got[i] = s
			}
		}(i)
	}
	wg.Wait()

	for i := range want {
		assert.Equal(t, want[i], got[i])
	}
}

func TestSummarize_Totals(t *testing.T) {
	s := analyze(t,
		rec("one", 10, 5, 50, 1),
		rec("two", 30, 15, 0, 0),
	)
	assert.Equal(t, 800.0, s.TotalImpressions)
	assert.Equal(t, 40.0, s.TotalClicks)
	assert.Equal(t, 20.0, s.TotalSpend)
	assert.Equal(t, 50.0, s.TotalSales)
	assert.Equal(t, 1.0, s.TotalOrders)
	assert.InDelta(t, 40.0, s.OverallAcos, 1e-9)
	assert.InDelta(t, 5.0, s.OverallCTR, 1e-9)
	assert.InDelta(t, 2.5, s.OverallConversionRate, 1e-9)
	assert.InDelta(t, 0.5, s.AverageCPC, 1e-9)
	assert.Equal(t, 2, s.Counts.Total())
}
