package mitre

// mapFromFileOps proposes techniques from file-operation evidence: the
// examined file's extension plus archive/transfer/deletion keywords in
// the evidence text (spec §4.E's "from file ops" mapper).
func mapFromFileOps(kb *KnowledgeBase, in Input) []candidate {
	var out []candidate

	if hasExtension(in.FileExtension, "exe", "dll", "scr", "bat", "ps1") &&
		textContainsAny(in.EvidenceText, "dropped", "wrote file", "downloaded") {
		out = append(out, candidate{TechniqueID: "T1105", Confidence: 50})
	}
	if hasExtension(in.FileExtension, "zip", "rar", "7z", "tar", "gz") ||
		textContainsAny(in.EvidenceText, "archive", "compress", "password protected zip") {
		out = append(out, candidate{TechniqueID: "T1560", Confidence: 45})
	}
	if textContainsAny(in.EvidenceText, "deleted file", "wiped", "secure delete", "sdelete") {
		out = append(out, candidate{TechniqueID: "T1070", Confidence: 50})
	}
	return out
}
