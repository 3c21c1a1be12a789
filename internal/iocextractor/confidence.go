package iocextractor

import "forensiq/pkg/types"

// baseConfidence returns the type-specific starting confidence (spec
// §4.C): "domain 60, ip 70, hash 80, cve 95, bitcoin 90, etc."
func baseConfidence(t types.IOCType) int {
	switch t {
	case types.IOCTypeDomain:
		return 60
	case types.IOCTypeIPv4, types.IOCTypeIPv6:
		return 70
	case types.IOCTypeURL:
		return 65
	case types.IOCTypeEmail:
		return 55
	case types.IOCTypeMD5, types.IOCTypeSHA1, types.IOCTypeSHA256, types.IOCTypeSHA512:
		return 80
	case types.IOCTypeCVE:
		return 95
	case types.IOCTypeBitcoinAddress, types.IOCTypeEthereumAddress:
		return 90
	case types.IOCTypeFilePath:
		return 50
	case types.IOCTypeRegistryKey:
		return 55
	case types.IOCTypePort:
		return 40
	default:
		return 50
	}
}

// confidenceAdjustment captures the per-occurrence additive/subtractive
// signals spec §4.C lists. The multi-occurrence bonus is a separate,
// cross-occurrence signal applied once in dedupSet.results, since it
// depends on the total count across every scanner's findings for this
// indicator rather than any single occurrence's context.
type confidenceAdjustment struct {
	maliciousCtx     bool
	tldRisk          bool
	documentationCtx bool
	privateIP        bool
	lowConfidenceFP  bool
}

// apply folds a per-occurrence adjustment set onto a base confidence,
// clamping to [10,100] per spec §4.C.
func (a confidenceAdjustment) apply(base int) int {
	score := base
	if a.maliciousCtx {
		score += 15
	}
	if a.tldRisk {
		score += 20
	}
	if a.documentationCtx {
		score -= 20
	}
	if a.privateIP {
		score -= 30
	}
	if a.lowConfidenceFP {
		score -= 10
	}
	if score < 10 {
		score = 10
	}
	if score > 100 {
		score = 100
	}
	return score
}
