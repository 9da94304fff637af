package helpers

import (
	"sort"
	"time"

	"github.com/doeshing/notegen/internal/domain"
)

// ModelStatistic counts generations for one provider/model pair.
type ModelStatistic struct {
	Provider domain.ProviderID
	Model    string
	Count    int
}

// HistoryStats summarizes a set of history records.
type HistoryStats struct {
	Total        int
	ByStatus     map[domain.HistoryStatus]int
	WithThinking int
	TotalTokens  int
	AvgDuration  time.Duration
	TopModels    []ModelStatistic
}

// SuccessRate is the share of successful records as a percentage.
func (s HistoryStats) SuccessRate() float64 {
	return CalculateSuccessRate(s.ByStatus[domain.StatusSuccess], s.Total)
}

// CalculateHistoryStats aggregates records. limit caps TopModels; 0 keeps all.
func CalculateHistoryStats(records []domain.HistoryRecord, limit int) HistoryStats {
	stats := HistoryStats{Total: len(records), ByStatus: map[domain.HistoryStatus]int{}}
	counts := map[ModelStatistic]int{}
	var elapsed time.Duration
	for _, rec := range records {
		stats.ByStatus[rec.Status]++
		if rec.ThinkingChain != nil {
			stats.WithThinking++
		}
		if rec.TokenUsage != nil {
			stats.TotalTokens += rec.TokenUsage.TotalTokens
		}
		elapsed += rec.Duration
		counts[ModelStatistic{Provider: rec.Provider, Model: rec.Model}]++
	}
	if len(records) > 0 {
		stats.AvgDuration = elapsed / time.Duration(len(records))
	}

	stats.TopModels = make([]ModelStatistic, 0, len(counts))
	for key, n := range counts {
		key.Count = n
		stats.TopModels = append(stats.TopModels, key)
	}
	sortStatisticsByFrequency(stats.TopModels)
	if shouldLimitResults(limit, len(stats.TopModels)) {
		stats.TopModels = stats.TopModels[:limit]
	}
	return stats
}

// sortStatisticsByFrequency sorts by count (descending) then provider and model (ascending)
func sortStatisticsByFrequency(stats []ModelStatistic) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Count != stats[j].Count {
			return stats[i].Count > stats[j].Count
		}
		if stats[i].Provider != stats[j].Provider {
			return stats[i].Provider < stats[j].Provider
		}
		return stats[i].Model < stats[j].Model
	})
}

func shouldLimitResults(limit int, actualLength int) bool {
	return limit > 0 && actualLength > limit
}

// CalculateSuccessRate calculates the success rate as a percentage
func CalculateSuccessRate(successfulCount int, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(successfulCount) / float64(total) * 100.0
}
