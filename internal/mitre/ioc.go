package mitre

import "forensiq/pkg/types"

// mapFromIOCs proposes techniques from the shape of the IOC set itself:
// network-indicator-heavy evidence suggests C2/ingress activity,
// cryptocurrency addresses suggest ransomware impact, CVE references
// suggest exploitation-driven execution (spec §4.E's "from IOCs" mapper).
func mapFromIOCs(kb *KnowledgeBase, in Input) []candidate {
	var out []candidate
	var networkIOCs, cryptoIOCs, cveIOCs, registryIOCs int

	for _, ioc := range in.IOCs {
		switch ioc.Type {
		case types.IOCTypeIPv4, types.IOCTypeIPv6, types.IOCTypeDomain, types.IOCTypeURL:
			networkIOCs++
		case types.IOCTypeBitcoinAddress, types.IOCTypeEthereumAddress:
			cryptoIOCs++
		case types.IOCTypeCVE:
			cveIOCs++
		case types.IOCTypeRegistryKey:
			registryIOCs++
		}
	}

	if networkIOCs > 0 {
		out = append(out, candidate{TechniqueID: "T1071", Confidence: 50 + clamp(networkIOCs*5, 0, 30)})
	}
	if networkIOCs >= 3 {
		out = append(out, candidate{TechniqueID: "T1105", Confidence: 45})
	}
	if cryptoIOCs > 0 {
		out = append(out, candidate{TechniqueID: "T1486", Confidence: 55})
	}
	if cveIOCs > 0 {
		out = append(out, candidate{TechniqueID: "T1059", Confidence: 50})
	}
	if registryIOCs > 0 {
		out = append(out, candidate{TechniqueID: "T1547", Confidence: 45})
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
