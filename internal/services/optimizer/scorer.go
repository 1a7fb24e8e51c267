package optimizer

import (
	"CollarPulse/internal/domain/models"
	domsvc "CollarPulse/internal/domain/service"
)

// AgreementScorer scores a candidate rule by replaying loaded feedback: for
// each sample the candidate's hypothetical match/no-match decision is compared
// against the human judgment, and the score is the resulting agreement rate.
type AgreementScorer struct {
	matcher domsvc.WindowMatcher
}

func NewAgreementScorer(matcher domsvc.WindowMatcher) *AgreementScorer {
	return &AgreementScorer{matcher: matcher}
}

// Score returns the feedback-agreement rate in [0,1]. Zero samples score 0.
func (s *AgreementScorer) Score(rule models.BehaviorRule, samples []models.ReplaySample) float64 {
	if len(samples) == 0 {
		return 0
	}
	agree := 0
	for i := range samples {
		matched := s.matcher.MatchWindow(rule, samples[i].Points)
		judgedCorrect := samples[i].Record.Judgment == models.JudgmentCorrect
		if matched == judgedCorrect {
			agree++
		}
	}
	return float64(agree) / float64(len(samples))
}
