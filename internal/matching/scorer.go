// Package matching scores ledger entries as candidates for an imported bank transaction.
package matching

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/juridico/conciliacao-api/internal/config"
	"github.com/juridico/conciliacao-api/internal/models"
	"github.com/shopspring/decimal"
)

// Suggestion is one ranked candidate for a transaction
type Suggestion struct {
	LedgerEntryID    uint                `json:"ledger_entry_id"`
	Entry            *models.LedgerEntry `json:"entry"`
	Score            float64             `json:"score"`
	ValueDifference  decimal.Decimal     `json:"value_difference"`
	DateDistanceDays int                 `json:"date_distance_days"`
	Differences      []string            `json:"differences"`
}

// Scorer ranks candidates using configurable weights
type Scorer struct {
	cfg config.MatcherConfig
}

// NewScorer creates a scorer. cfg is expected to be validated.
func NewScorer(cfg config.MatcherConfig) *Scorer {
	return &Scorer{cfg: cfg}
}

// Window returns the date window in days
func (s *Scorer) Window() int {
	return s.cfg.WindowDays
}

// Eligible reports whether e may settle tx at all: same direction, still active
// and dated within the window
func (s *Scorer) Eligible(tx *models.ImportedTransaction, e *models.LedgerEntry) bool {
	if e.Kind != models.EntryKindForTransaction(tx.Kind) || !e.IsActive() {
		return false
	}
	return DaysBetween(tx.TransactionDate, e.ReferenceDate()) <= s.cfg.WindowDays
}

// Score computes the 0-100 score of e against tx along with the explanatory differences
func (s *Scorer) Score(tx *models.ImportedTransaction, e *models.LedgerEntry) Suggestion {
	diff := tx.Amount.Sub(e.Amount).Abs()
	days := DaysBetween(tx.TransactionDate, e.ReferenceDate())

	earned := s.valueScore(tx.Amount, diff) + s.dateScore(days)
	possible := s.cfg.WeightExact + s.cfg.WeightDate

	var differences []string
	if !diff.IsZero() {
		differences = append(differences, fmt.Sprintf("valor difere em R$ %s", diff.StringFixed(2)))
	}
	if days > 0 {
		differences = append(differences, fmt.Sprintf("data difere em %d dia(s)", days))
	}

	txTokens, entryTokens := Tokens(tx.Description), Tokens(e.Description)
	if len(txTokens) > 0 && len(entryTokens) > 0 {
		overlap := Overlap(txTokens, entryTokens)
		earned += s.cfg.WeightDescription * overlap
		possible += s.cfg.WeightDescription
		if overlap == 0 {
			differences = append(differences, "descrição sem termos em comum")
		}
	}

	score := 0.0
	if possible > 0 {
		score = math.Round(earned/possible*100*100) / 100
	}

	return Suggestion{
		LedgerEntryID:    e.ID,
		Entry:            e,
		Score:            score,
		ValueDifference:  diff,
		DateDistanceDays: days,
		Differences:      differences,
	}
}

func (s *Scorer) valueScore(amount, diff decimal.Decimal) float64 {
	if diff.IsZero() {
		return s.cfg.WeightExact
	}
	tolerance := amount.Abs().Mul(decimal.NewFromFloat(s.cfg.NearTolerancePercent))
	if !tolerance.IsPositive() || diff.GreaterThan(tolerance) {
		return 0
	}
	ratio, _ := diff.Div(tolerance).Float64()
	return s.cfg.WeightNear * (1 - ratio)
}

func (s *Scorer) dateScore(days int) float64 {
	if days > s.cfg.WindowDays {
		return 0
	}
	return s.cfg.WeightDate * (1 - float64(days)/float64(s.cfg.WindowDays))
}

// Rank filters the eligible candidates, scores them and returns the best ones.
// Order: score desc, then closer date, then lower entry id.
func (s *Scorer) Rank(tx *models.ImportedTransaction, candidates []models.LedgerEntry) []Suggestion {
	suggestions := make([]Suggestion, 0, len(candidates))
	for i := range candidates {
		if !s.Eligible(tx, &candidates[i]) {
			continue
		}
		suggestions = append(suggestions, s.Score(tx, &candidates[i]))
	}

	slices.SortFunc(suggestions, func(a, b Suggestion) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(a.DateDistanceDays, b.DateDistanceDays); c != 0 {
			return c
		}
		return cmp.Compare(a.LedgerEntryID, b.LedgerEntryID)
	})

	if s.cfg.MaxSuggestions > 0 && len(suggestions) > s.cfg.MaxSuggestions {
		suggestions = suggestions[:s.cfg.MaxSuggestions]
	}
	return suggestions
}

// DaysBetween returns the absolute number of calendar days between two dates
func DaysBetween(a, b time.Time) int {
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(math.Round(da.Sub(db).Hours() / 24))
	if days < 0 {
		return -days
	}
	return days
}
