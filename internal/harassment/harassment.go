// Package harassment derives a composite cyberbullying score from either
// the toxicity sub-scores (primary) or a fixed term lexicon (fallback).
package harassment

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"moderator/internal/models"
)

// ErrNoSignals is returned by the fusion strategy when the toxicity
// sub-scores it fuses are absent.
var ErrNoSignals = errors.New("no toxicity signals available for fusion")

// Strategy scores a text for harassment. Both implementations return the
// same shape: a composite score in [0,1] plus named category flags.
type Strategy interface {
	Score(text string, signals *models.ToxicitySignals) (*models.CyberbullyingResult, error)
}

// Detector runs the primary strategy and falls back to the lexical one when
// the primary's dependency is unavailable. The chain is internal; callers
// never pick a strategy.
type Detector struct {
	primary  Strategy
	fallback Strategy
}

func NewDetector() *Detector {
	return &Detector{
		primary:  &FusionStrategy{},
		fallback: &LexicalStrategy{},
	}
}

// Detect never fails: if the fusion strategy cannot run, the lexical scan
// takes over.
func (d *Detector) Detect(text string, signals *models.ToxicitySignals) *models.CyberbullyingResult {
	result, err := d.primary.Score(text, signals)
	if err == nil {
		return result
	}
	result, _ = d.fallback.Score(text, signals)
	return result
}

// FusionStrategy combines the toxicity sub-scores into a single weighted
// harassment score.
type FusionStrategy struct{}

// Fusion weights. Threats and identity attacks dominate the composite.
const (
	weightInsult         = 0.25
	weightThreat         = 0.30
	weightIdentityAttack = 0.30
	weightToxicity       = 0.10
	weightProfanity      = 0.05

	categoryFlagThreshold = 0.7
)

func (s *FusionStrategy) Score(_ string, signals *models.ToxicitySignals) (*models.CyberbullyingResult, error) {
	if signals == nil {
		return nil, ErrNoSignals
	}

	score := weightInsult*signals.Insult +
		weightThreat*signals.Threat +
		weightIdentityAttack*signals.IdentityAttack +
		weightToxicity*signals.Toxicity +
		weightProfanity*signals.Profanity

	return &models.CyberbullyingResult{
		Score: clamp01(score),
		Categories: map[string]bool{
			"insult":          signals.Insult > categoryFlagThreshold,
			"threat":          signals.Threat > categoryFlagThreshold,
			"identity_attack": signals.IdentityAttack > categoryFlagThreshold,
			"toxicity":        signals.Toxicity > categoryFlagThreshold,
			"profanity":       signals.Profanity > categoryFlagThreshold,
		},
	}, nil
}

// LexicalStrategy scans the lowercased text against fixed term and phrase
// lists. It needs no external signal and serves as the standalone fallback.
type LexicalStrategy struct{}

// Term lists per category. Single terms match whole words; multi-word
// phrases match as substrings.
var (
	directInsultTerms = []string{
		"stupid", "idiot", "dumb", "loser", "ugly", "fat", "worthless", "pathetic",
		"freak", "retard", "moron", "failure",
	}
	threatPhrases = []string{
		"kill you", "hurt you", "beat you", "find you", "hunt you down", "coming for you",
		"watch out", "pay for this", "regret this", "make you suffer",
	}
	exclusionPhrases = []string{
		"nobody likes you", "no one cares", "don't belong", "outcast", "go away",
		"not welcome", "leave the group", "not wanted",
	}
	harassmentPhrases = []string{
		"stalking", "spam", "keep bothering", "wont leave alone", "constantly",
		"over and over", "every day", "following you",
	}
	identityAttackTerms = []string{
		"gay", "retard", "fag", "homo", "slut", "whore", "bitch",
	}
)

// Category weights for the lexical composite.
const (
	lexWeightInsults    = 1.0
	lexWeightThreats    = 2.0
	lexWeightExclusion  = 1.2
	lexWeightHarassment = 1.5
	lexWeightIdentity   = 2.0
)

var wordPatterns = buildWordPatterns()

func buildWordPatterns() map[string]*regexp.Regexp {
	patterns := make(map[string]*regexp.Regexp)
	for _, term := range directInsultTerms {
		patterns[term] = regexp.MustCompile(fmt.Sprintf(`\b%s\b`, regexp.QuoteMeta(term)))
	}
	for _, term := range identityAttackTerms {
		patterns[term] = regexp.MustCompile(fmt.Sprintf(`\b%s\b`, regexp.QuoteMeta(term)))
	}
	return patterns
}

func (s *LexicalStrategy) Score(text string, _ *models.ToxicitySignals) (*models.CyberbullyingResult, error) {
	lower := strings.ToLower(text)

	insultCount := countWordMatches(lower, directInsultTerms)
	identityCount := countWordMatches(lower, identityAttackTerms)
	threatCount := countPhraseMatches(lower, threatPhrases)
	exclusionCount := countPhraseMatches(lower, exclusionPhrases)
	harassmentCount := countPhraseMatches(lower, harassmentPhrases)

	totalTerms := len(directInsultTerms) + len(threatPhrases) + len(exclusionPhrases) +
		len(harassmentPhrases) + len(identityAttackTerms)

	weighted := (lexWeightInsults*float64(insultCount) +
		lexWeightThreats*float64(threatCount) +
		lexWeightExclusion*float64(exclusionCount) +
		lexWeightHarassment*float64(harassmentCount) +
		lexWeightIdentity*float64(identityCount)) /
		(0.5 * float64(totalTerms))

	return &models.CyberbullyingResult{
		Score: clamp01(weighted),
		Categories: map[string]bool{
			"direct_insults":      insultCount > 0,
			"threats":             threatCount > 0,
			"exclusion":           exclusionCount > 0,
			"harassment_patterns": harassmentCount > 0,
			"identity_attacks":    identityCount > 0,
		},
	}, nil
}

func countWordMatches(text string, terms []string) int {
	count := 0
	for _, term := range terms {
		count += len(wordPatterns[term].FindAllString(text, -1))
	}
	return count
}

func countPhraseMatches(text string, phrases []string) int {
	count := 0
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			count++
		}
	}
	return count
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
