package extractor

import (
	"io"
	"regexp"
	"sort"

	"milesync/internal"
	"milesync/internal/config"
	"milesync/internal/util"
)

var (
	keywordPattern     = regexp.MustCompile(`(?i)milhas|pontos|saldo|miles|points`)
	emphasisPattern    = regexp.MustCompile(`(?i)acumulad|disponív|total|seu saldo|your`)
	promoPattern       = regexp.MustCompile(`(?i)campanha|promoção|ganhe|meta|bonus|transferir|resgatar`)
	balancePagePattern = regexp.MustCompile(`(?i)milhas|pontos|saldo|miles|points|acumulad`)
)

type Scorer struct {
	w config.Weights
}

func NewScorer(w config.Weights) *Scorer {
	return &Scorer{w: w}
}

// Confidence buckets a final score. Scores below the medium bound are "low";
// whether a low score is accepted at all is decided by the threshold.
func (s *Scorer) Confidence(score int) internal.Confidence {
	switch {
	case score >= s.w.High:
		return internal.ConfidenceHigh
	case score >= s.w.Medium:
		return internal.ConfidenceMedium
	default:
		return internal.ConfidenceLow
	}
}

// Candidates returns the scored balance candidates, best first.
func (s *Scorer) Candidates(fragments []Fragment, rules internal.ProgramRules) []internal.Candidate {
	out := make([]internal.Candidate, 0)
	for _, f := range fragments {
		value, ok := util.ParseGroupedInt(f.Text)
		if !ok {
			continue
		}
		if value <= s.w.MinValue || value >= s.w.MaxValue {
			continue
		}
		out = append(out, internal.Candidate{
			Value:   value,
			RawText: f.Text,
			Score:   s.score(f, rules),
			Tag:     f.Tag,
		})
	}
	if len(out) == 0 {
		return out
	}

	maxIdx := 0
	for i := range out {
		if out[i].Value > out[maxIdx].Value {
			maxIdx = i
		}
	}
	out[maxIdx].Score += s.w.MaxValueBonus

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

func (s *Scorer) score(f Fragment, rules internal.ProgramRules) int {
	score := s.w.Base

	if keywordPattern.MatchString(f.Context) {
		score += s.w.Keyword
		if emphasisPattern.MatchString(f.Context) {
			score += s.w.EmphasisContext
		}
	}

	switch f.Tag {
	case "H1", "H2", "H3":
		score += s.w.Heading
	case "STRONG", "B":
		score += s.w.Strong
	}

	if f.InTarget {
		score += rules.TargetBonus
	}
	if rules.ContextPattern != nil && rules.ContextPattern.MatchString(f.Context) {
		score += rules.ContextBonus
	}

	if promoPattern.MatchString(f.Context) {
		score -= s.w.PromoPenalty
	}
	return score
}

// Extract runs one extraction pass over page. It never fails: the absence of
// a usable balance is reported through Success and Error.
func (s *Scorer) Extract(page Page, program internal.Program) internal.ExtractionResult {
	result := internal.ExtractionResult{
		Program:       program.Key,
		IsBalancePage: balancePagePattern.MatchString(page.Text),
		IsLoggedIn:    page.LoggedIn,
	}

	candidates := s.Candidates(page.Fragments, program.Rules)
	if len(candidates) == 0 {
		result.Error = internal.ErrNoCandidates
		return result
	}

	best := candidates[0]
	if best.Score < s.w.Threshold {
		result.Error = internal.ErrLowConfidence
		result.BestScore = util.IntPtr(best.Score)
		result.BestValue = util.IntPtr(best.Value)
		return result
	}

	result.Success = true
	result.Balance = best.Value
	result.RawText = best.RawText
	result.Score = best.Score
	result.Confidence = s.Confidence(best.Score)
	result.CandidatesCount = len(candidates)
	return result
}

func (s *Scorer) ExtractHTML(r io.Reader, program internal.Program) (internal.ExtractionResult, error) {
	page, err := ParseHTML(r, program)
	if err != nil {
		return internal.ExtractionResult{Program: program.Key}, err
	}
	return s.Extract(page, program), nil
}
