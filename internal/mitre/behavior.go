package mitre

// mapFromBehavior proposes techniques from behavioral keywords in the
// evidence text: scripting-engine invocation, scheduled-task creation,
// and process injection idioms (spec §4.E's "from behavior regexes"
// mapper).
func mapFromBehavior(kb *KnowledgeBase, in Input) []candidate {
	var out []candidate
	text := in.EvidenceText

	if textContainsAny(text, "powershell", "encodedcommand", "-enc ", "invoke-expression") {
		out = append(out, candidate{TechniqueID: "T1059.001", Confidence: 60})
	}
	if textContainsAny(text, "cmd.exe", "wscript.exe", "cscript.exe", "/c ") {
		out = append(out, candidate{TechniqueID: "T1059", Confidence: 50})
	}
	if textContainsAny(text, "schtasks", "scheduled task", "crontab", "at.exe") {
		out = append(out, candidate{TechniqueID: "T1053", Confidence: 55})
	}
	if textContainsAny(text, "process hollowing", "dll injection", "createremotethread", "setwindowshookex") {
		out = append(out, candidate{TechniqueID: "T1055", Confidence: 60})
	}
	return out
}
