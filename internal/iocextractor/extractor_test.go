package iocextractor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"forensiq/pkg/types"
)

func TestExtractFindsIPDomainAndHash(t *testing.T) {
	raw := []byte("connection from 203.0.113.5 to evil-malware-drop.xyz sha256=" +
		"ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad beacon detected")
	iocs := Extract(context.Background(), nil, raw, DefaultConfig())
	require.NotEmpty(t, iocs)

	var sawIP, sawDomain, sawHash bool
	for _, ioc := range iocs {
		switch ioc.Type {
		case types.IOCTypeIPv4:
			if ioc.Value == "203.0.113.5" {
				sawIP = true
			}
		case types.IOCTypeDomain:
			if ioc.Value == "evil-malware-drop.xyz" {
				sawDomain = true
			}
		case types.IOCTypeSHA256:
			sawHash = true
		}
	}
	assert.True(t, sawIP, "expected ipv4 ioc")
	assert.True(t, sawDomain, "expected domain ioc")
	assert.True(t, sawHash, "expected sha256 ioc")
}

func TestExtractDropsIPv6Loopback(t *testing.T) {
	raw := []byte("internal traffic 192.168.1.5 and loopback ::1 seen")
	iocs := Extract(context.Background(), nil, raw, DefaultConfig())
	for _, ioc := range iocs {
		assert.NotEqual(t, "::1", ioc.Value)
	}
}

func TestExtractRejectsDegenerateHash(t *testing.T) {
	degenerate := "00000000000000000000000000000000"[:32]
	raw := []byte("hash=" + degenerate)
	iocs := Extract(context.Background(), nil, raw, DefaultConfig())
	for _, ioc := range iocs {
		assert.NotEqual(t, degenerate, ioc.Value)
	}
}

func TestExtractMergesDuplicateOccurrences(t *testing.T) {
	raw := []byte("203.0.113.5 reached out, then 203.0.113.5 reached out again, malware beacon c2")
	iocs := Extract(context.Background(), nil, raw, DefaultConfig())
	count := 0
	var confidence int
	for _, ioc := range iocs {
		if ioc.Type == types.IOCTypeIPv4 && ioc.Value == "203.0.113.5" {
			count++
			confidence = ioc.Confidence
		}
	}
	assert.Equal(t, 1, count, "duplicate occurrences must merge into one IOC")
	assert.Greater(t, confidence, baseConfidence(types.IOCTypeIPv4), "multi-occurrence and malicious-context should raise confidence")
}

func TestExtractClampsConfidenceRange(t *testing.T) {
	raw := []byte("CVE-2024-12345 documented example placeholder only")
	iocs := Extract(context.Background(), nil, raw, DefaultConfig())
	for _, ioc := range iocs {
		assert.GreaterOrEqual(t, ioc.Confidence, 10)
		assert.LessOrEqual(t, ioc.Confidence, 100)
	}
}

func TestExtractFindsKnownC2Port(t *testing.T) {
	raw := []byte("reverse shell callback observed on port 4444 from host")
	iocs := Extract(context.Background(), nil, raw, DefaultConfig())
	var found bool
	for _, ioc := range iocs {
		if ioc.Type == types.IOCTypePort && ioc.Value == "4444" {
			found = true
			assert.True(t, ioc.Malicious, "known C2 port should be flagged malicious")
		}
	}
	assert.True(t, found, "expected port ioc")
}

func TestExtractRejectsOutOfRangePort(t *testing.T) {
	raw := []byte("build port 99999 is not a real TCP port")
	iocs := Extract(context.Background(), nil, raw, DefaultConfig())
	for _, ioc := range iocs {
		assert.NotEqual(t, types.IOCTypePort, ioc.Type)
	}
}

func TestIsDegenerateHash(t *testing.T) {
	assert.True(t, isDegenerateHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"))
	assert.True(t, isDegenerateHash("abcdabcdabcdabcdabcdabcdabcdabcd"))
	assert.False(t, isDegenerateHash("5d41402abc4b2a76b9719d911017c592"[:32]))
}
