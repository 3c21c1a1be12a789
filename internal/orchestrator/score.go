package orchestrator

import "forensiq/pkg/types"

// computeThreatScore combines the rule-match and IOC components per
// spec §4.F. Rule weight is per-match severity_weight*confidence*
// match_count normalized by the sum of match counts. IOC weight is
// per-IOC base(malicious?75:25)*type_multiplier*(confidence/100)
// normalized by count; file-hash multipliers are 2, others 1 (there is
// no mutex IOC type).
// The final score is the mean of whichever components are present,
// capped at 100.
func computeThreatScore(matches []types.RuleMatch, iocs []types.IOC) float64 {
	var components []float64

	if ruleComponent, ok := ruleWeight(matches); ok {
		components = append(components, ruleComponent)
	}
	if iocComponent, ok := iocWeight(iocs); ok {
		components = append(components, iocComponent)
	}
	if len(components) == 0 {
		return 0
	}

	sum := 0.0
	for _, c := range components {
		sum += c
	}
	score := sum / float64(len(components))
	if score > 100 {
		score = 100
	}
	return score
}

func ruleWeight(matches []types.RuleMatch) (float64, bool) {
	if len(matches) == 0 {
		return 0, false
	}
	var weighted float64
	var totalMatchCount int64
	for _, m := range matches {
		weighted += m.Severity.Weight() * m.Confidence * float64(m.MatchCount)
		totalMatchCount += int64(m.MatchCount)
	}
	if totalMatchCount == 0 {
		return 0, false
	}
	return weighted / float64(totalMatchCount), true
}

func iocWeight(iocs []types.IOC) (float64, bool) {
	if len(iocs) == 0 {
		return 0, false
	}
	var weighted float64
	for _, ioc := range iocs {
		base := 25.0
		if isMalicious(ioc) {
			base = 75.0
		}
		multiplier := 1.0
		if ioc.Type == types.IOCTypeMD5 || ioc.Type == types.IOCTypeSHA1 ||
			ioc.Type == types.IOCTypeSHA256 || ioc.Type == types.IOCTypeSHA512 {
			multiplier = 2.0
		}
		weighted += base * multiplier * (float64(ioc.Confidence) / 100)
	}
	return weighted / float64(len(iocs)), true
}

// isMalicious defers entirely to the extractor's own signal
// (IOC.Malicious, set when an occurrence's context window matched a
// known-malicious keyword set — spec §4.C). Numeric confidence measures
// how sure the extractor is that the value was parsed correctly, not
// whether it is malicious: spec §8 scenario 6 pins two confidence-100
// file hashes as explicitly not malicious, and a confidence-based
// heuristic here would score them as malicious and throw off the final
// threat score.
func isMalicious(ioc types.IOC) bool {
	return ioc.Malicious
}
