package mitre

// mapFromNetwork proposes techniques from network-activity keywords:
// beaconing, remote-service abuse, and lateral-movement tooling
// (spec §4.E's "from network activity" mapper).
func mapFromNetwork(kb *KnowledgeBase, in Input) []candidate {
	var out []candidate
	text := in.EvidenceText

	if textContainsAny(text, "beacon", "http post", "dns tunnel", "check-in interval") {
		out = append(out, candidate{TechniqueID: "T1071", Confidence: 55})
	}
	if textContainsAny(text, "rdp", "remote desktop", "psexec", "smb share", "winrm") {
		out = append(out, candidate{TechniqueID: "T1021", Confidence: 50})
	}
	return out
}
