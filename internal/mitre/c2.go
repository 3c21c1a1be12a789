package mitre

// mapFromC2 proposes techniques from command-and-control and
// exfiltration keywords, the final of the eight evidence classes
// (spec §4.E's "from command-and-control" mapper).
func mapFromC2(kb *KnowledgeBase, in Input) []candidate {
	var out []candidate
	text := in.EvidenceText

	if textContainsAny(text, "c2 server", "command and control", "callback", "implant check-in") {
		out = append(out, candidate{TechniqueID: "T1071", Confidence: 55})
	}
	if textContainsAny(text, "download payload", "second stage", "stager") {
		out = append(out, candidate{TechniqueID: "T1105", Confidence: 50})
	}
	if textContainsAny(text, "exfiltrate", "upload data", "data staged for exfil") {
		out = append(out, candidate{TechniqueID: "T1041", Confidence: 55})
	}
	return out
}
