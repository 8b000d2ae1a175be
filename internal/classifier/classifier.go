// Package classifier maps the fused analysis signals to the final ordinal
// safety class. Pure decision logic: deterministic, no external calls.
package classifier

import "moderator/internal/models"

// Classify evaluates the rules in strict order, first match wins. A nil
// signal set (possible when scoring failed hard and only the lexical
// heuristic ran) contributes zero to every sub-score rule.
func Classify(signals *models.ToxicitySignals, cyberbullyingScore float64) models.Classification {
	var toxicity, severeToxicity, insult, threat, identityAttack float64
	if signals != nil {
		toxicity = signals.Toxicity
		severeToxicity = signals.SevereToxicity
		insult = signals.Insult
		threat = signals.Threat
		identityAttack = signals.IdentityAttack
	}

	if severeToxicity > 0.7 ||
		threat > 0.8 ||
		identityAttack > 0.8 ||
		cyberbullyingScore > 0.8 ||
		(toxicity > 0.8 && insult > 0.8) {
		return models.ClassificationHarmful
	}

	if toxicity > 0.5 ||
		insult > 0.6 ||
		threat > 0.4 ||
		identityAttack > 0.4 ||
		cyberbullyingScore > 0.5 {
		return models.ClassificationPotentiallyHarmful
	}

	return models.ClassificationSafe
}
