package mitre

// mapFromEvasion proposes techniques from defense-evasion keywords:
// obfuscation/packing, log or artifact deletion, and process injection
// idioms (spec §4.E's "from defense evasion" mapper).
func mapFromEvasion(kb *KnowledgeBase, in Input) []candidate {
	var out []candidate
	text := in.EvidenceText

	if textContainsAny(text, "base64", "packed", "upx", "obfuscat", "xor encoded") {
		out = append(out, candidate{TechniqueID: "T1027", Confidence: 55})
	}
	if textContainsAny(text, "clear event log", "wevtutil cl", "timestomp", "clsid") {
		out = append(out, candidate{TechniqueID: "T1070", Confidence: 50})
	}
	if textContainsAny(text, "process hollowing", "reflective dll", "dll injection") {
		out = append(out, candidate{TechniqueID: "T1055", Confidence: 55})
	}
	return out
}
