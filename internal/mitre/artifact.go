package mitre

// mapFromArtifacts proposes techniques directly from rule matches that
// already carry MITRE ATT&CK ids (a rule author's own attribution), one
// of the highest-confidence evidence classes since it is a human
// judgment baked into the rule rather than an inference (spec §4.E's
// "from artifacts" mapper).
func mapFromArtifacts(kb *KnowledgeBase, in Input) []candidate {
	var out []candidate
	for _, match := range in.RuleMatches {
		if len(match.MitreIDs) == 0 {
			continue
		}
		confidence := int(match.Confidence * 100)
		if confidence < 40 {
			confidence = 40
		}
		for _, id := range match.MitreIDs {
			out = append(out, candidate{TechniqueID: id, Confidence: confidence})
		}
	}
	return out
}
