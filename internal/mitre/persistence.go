package mitre

// mapFromPersistence proposes techniques from persistence-mechanism
// keywords: autostart registry keys, scheduled tasks, and service
// installation (spec §4.E's "from persistence" mapper).
func mapFromPersistence(kb *KnowledgeBase, in Input) []candidate {
	var out []candidate
	text := in.EvidenceText

	if textContainsAny(text, "run key", "runonce", "startup folder", "hkcu\\software\\microsoft\\windows\\currentversion\\run") {
		out = append(out, candidate{TechniqueID: "T1547", Confidence: 55})
	}
	if textContainsAny(text, "scheduled task", "schtasks", "at.exe", "cron job") {
		out = append(out, candidate{TechniqueID: "T1053", Confidence: 50})
	}
	if textContainsAny(text, "new service", "sc create", "service installed") {
		out = append(out, candidate{TechniqueID: "T1543", Confidence: 50})
	}
	return out
}
