// Package types defines the core data structures and invariants shared by
// every component of the forensic analysis engine.
//
// This package provides:
//   - Analysis: one processing run, its status lifecycle, and its score
//   - Rule: a compiled-or-not detection rule of one of four dialects
//   - LogEvent: a single parsed log line with typed fields
//   - RuleMatch / MatchDetail: what a rule found and where
//   - IOC: a typed indicator of compromise with confidence and context
//   - Technique: a MITRE ATT&CK technique correlated from evidence
//
// Construction helpers validate their inputs and return an error rather
// than panicking, since rule content, parser output, and extracted
// indicators all originate outside this process.
package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// AnalysisStatus is the lifecycle state of an Analysis.
type AnalysisStatus string

const (
	StatusQueued    AnalysisStatus = "queued"
	StatusRunning   AnalysisStatus = "running"
	StatusPaused    AnalysisStatus = "paused"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
	StatusCancelled AnalysisStatus = "cancelled"
)

// IsTerminal reports whether the status is one an Analysis cannot leave.
func (s AnalysisStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Severity is a coarse threat-level classification shared by Analysis,
// Rule, and RuleMatch.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight is used by the orchestrator's threat-score formula (spec §4.F):
// Critical 100, High 75, Medium 50, Low 25, Info 10.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityCritical:
		return 100
	case SeverityHigh:
		return 75
	case SeverityMedium:
		return 50
	case SeverityLow:
		return 25
	default:
		return 10
	}
}

// SeverityFromScore derives a Severity from a threat score in [0,100]
// using the thresholds in spec §4.F: >=80 critical, >=60 high, >=30
// medium, else low.
func SeverityFromScore(score float64) Severity {
	switch {
	case score >= 80:
		return SeverityCritical
	case score >= 60:
		return SeverityHigh
	case score >= 30:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// RuleType is the closed sum type of rule dialects (spec §4.D, §9: dynamic
// dispatch over rule type becomes a closed sum type).
type RuleType string

const (
	RuleTypeSignaturePattern    RuleType = "signature_pattern"
	RuleTypeStructuredDetection RuleType = "structured_detection"
	RuleTypeObjectPattern       RuleType = "object_pattern"
	RuleTypeCustom              RuleType = "custom"
)

var hashHexRE = regexp.MustCompile(`^[0-9a-f]{64}$`)
var techniqueIDRE = regexp.MustCompile(`^T\d{4}(\.\d{3})?$`)

// Analysis is one processing run over a single log artifact.
type Analysis struct {
	ID             string
	SourceFileName string
	SourceFileSize int64
	ContentHash    string // SHA-256 hex, lowercase, fixed after first write
	ParserID       string
	Status         AnalysisStatus
	Progress       int // 0..100, monotonically non-decreasing until terminal
	StartedAt      time.Time
	EndedAt        time.Time // set iff Status.IsTerminal()
	UploadedAt     time.Time
	ParentID       string // set for reanalysis
	ThreatScore    float64
	ThreatSeverity Severity
	ErrorMessage   string

	// Serialized artifacts, opaque to this package.
	EventsBlob   []byte
	IOCsBlob     []byte
	TimelineBlob []byte
	MitreBlob    []byte
	AISummary    []byte
}

// NewAnalysis constructs a freshly-queued Analysis for the given source file.
func NewAnalysis(id, sourceFileName string, sourceFileSize int64) *Analysis {
	return &Analysis{
		ID:             id,
		SourceFileName: sourceFileName,
		SourceFileSize: sourceFileSize,
		Status:         StatusQueued,
		Progress:       0,
		UploadedAt:     time.Now().UTC(),
	}
}

// SetContentHash sets the content hash once. A second call with a
// different value is an invariant violation (spec §3: "hash fixed after
// first write") and returns an error instead of silently overwriting it.
func (a *Analysis) SetContentHash(hash string) error {
	if !hashHexRE.MatchString(hash) {
		return fmt.Errorf("types: content hash must be 64 lowercase hex chars, got %q", hash)
	}
	if a.ContentHash != "" && a.ContentHash != hash {
		return fmt.Errorf("types: content hash already set to %s, refusing to overwrite with %s", a.ContentHash, hash)
	}
	a.ContentHash = hash
	return nil
}

// AdvanceProgress moves progress forward to the given anchor. It is a
// reported error (not a panic, since ordering can be driven by untrusted
// concurrent completion) to move progress backwards or past a terminal
// transition.
func (a *Analysis) AdvanceProgress(progress int, phase string) error {
	if a.Status.IsTerminal() {
		return fmt.Errorf("types: analysis %s already terminal (%s), cannot advance to phase %q", a.ID, a.Status, phase)
	}
	if progress < a.Progress {
		return fmt.Errorf("types: analysis %s progress cannot move backwards (%d -> %d) at phase %q", a.ID, a.Progress, progress, phase)
	}
	if progress < 0 || progress > 100 {
		return fmt.Errorf("types: analysis %s progress %d out of [0,100]", a.ID, progress)
	}
	a.Progress = progress
	return nil
}

// Finish transitions the Analysis to a terminal status exactly once,
// stamping EndedAt and, for failures, ErrorMessage.
func (a *Analysis) Finish(status AnalysisStatus, errMessage string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("types: %s is not a terminal status", status)
	}
	if a.Status.IsTerminal() {
		return fmt.Errorf("types: analysis %s already terminal (%s)", a.ID, a.Status)
	}
	a.Status = status
	a.EndedAt = time.Now().UTC()
	a.ErrorMessage = errMessage
	if status == StatusCompleted {
		a.Progress = 100
	}
	return nil
}

// SetScore records the final threat score and derives severity from it.
func (a *Analysis) SetScore(score float64) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("types: threat score %.2f out of [0,100]", score)
	}
	a.ThreatScore = score
	a.ThreatSeverity = SeverityFromScore(score)
	return nil
}

// Rule is one detection rule of a given dialect.
type Rule struct {
	ID             string
	Type           RuleType
	Name           string
	Content        string // dialect-specific source
	Enabled        bool
	BuiltIn        bool
	Severity       Severity
	Priority       int // lower = higher precedence
	Category       string
	Author         string
	Tags           []string
	MitreAttackIDs []string
	MatchCount     int64
	LastMatchedAt  time.Time
	Metadata       map[string]any // dialect-specific extras, e.g. Custom's "dialect" key
}

// Key returns the (name, type, built-in) uniqueness key from spec §3.
func (r *Rule) Key() string {
	return fmt.Sprintf("%s\x00%s\x00%t", r.Name, r.Type, r.BuiltIn)
}

// Validate checks the structural invariants common to every dialect;
// dialect-specific syntax validation happens in the owning processor.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Content) == "" {
		return fmt.Errorf("types: rule %q content is empty", r.Name)
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("types: rule content non-empty but name is empty")
	}
	switch r.Type {
	case RuleTypeSignaturePattern, RuleTypeStructuredDetection, RuleTypeObjectPattern, RuleTypeCustom:
	default:
		return fmt.Errorf("types: unknown rule type %q", r.Type)
	}
	return nil
}

// LogEvent is a single parsed log line.
type LogEvent struct {
	LineNumber int
	Raw        string
	Timestamp  time.Time
	Level      string
	Source     string
	Message    string
	Fields     map[string]any
}

// FieldString returns a field's value coerced to string, and whether it
// was present.
func (e *LogEvent) FieldString(key string) (string, bool) {
	v, ok := e.Fields[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case fmt.Stringer:
		return t.String(), true
	default:
		return fmt.Sprintf("%v", t), true
	}
}

// MatchDetail is one concrete hit within a RuleMatch.
type MatchDetail struct {
	MatchedContent string
	FileOffset     int // -1 when the match originates from an event line instead
	Line           int
	Context        string // +/-50 char window
	Fields         map[string]any
}

// ParseResult is what a plugin host parser execution returns: the
// ordered events it produced plus any non-fatal per-line parse warnings.
type ParseResult struct {
	Events   []LogEvent
	Warnings []string
}

// RuleMatch is the aggregate result of evaluating one rule.
type RuleMatch struct {
	RuleID     string
	RuleType   RuleType
	Severity   Severity
	MatchCount int
	Confidence float64 // 0..1
	Details    []MatchDetail
	MitreIDs   []string
	Metadata   map[string]any
}

// IOCType enumerates the typed indicator kinds from spec §3/§4.C.
type IOCType string

const (
	IOCTypeIPv4            IOCType = "ipv4"
	IOCTypeIPv6            IOCType = "ipv6"
	IOCTypeDomain          IOCType = "domain"
	IOCTypeURL             IOCType = "url"
	IOCTypeEmail           IOCType = "email"
	IOCTypeMD5             IOCType = "md5"
	IOCTypeSHA1            IOCType = "sha1"
	IOCTypeSHA256          IOCType = "sha256"
	IOCTypeSHA512          IOCType = "sha512"
	IOCTypeFilePath        IOCType = "file_path"
	IOCTypeRegistryKey     IOCType = "registry_key"
	IOCTypeBitcoinAddress  IOCType = "bitcoin_address"
	IOCTypeEthereumAddress IOCType = "ethereum_address"
	IOCTypeCVE             IOCType = "cve"
	IOCTypePort            IOCType = "port"
)

// IOC is a canonicalized indicator of compromise.
type IOC struct {
	Value      string // canonical value
	Type       IOCType
	Confidence int // 0..100
	Context    string
	FirstSeen  time.Time
	LastSeen   time.Time
	Tags       []string
	// Malicious is set by the extractor when an occurrence's context
	// window matched a known-malicious keyword set (spec §4.C). It is a
	// distinct signal from Confidence: a hash can be extracted with
	// confidence 100 purely from its type and still carry no malicious
	// context (spec §8 scenario 6), so threat scoring must not infer
	// maliciousness from the confidence number.
	Malicious bool
}

// DedupKey is the (type, canonical value) uniqueness key from spec §3/§4.C.
func (i *IOC) DedupKey() string {
	return string(i.Type) + "\x00" + i.Value
}

// ClampConfidence keeps IOC confidence within [0,100], per spec invariant.
func (i *IOC) ClampConfidence() {
	if i.Confidence < 0 {
		i.Confidence = 0
	}
	if i.Confidence > 100 {
		i.Confidence = 100
	}
}

// Technique is a MITRE ATT&CK technique correlated from evidence.
type Technique struct {
	ID          string // normalized uppercase, matches T\d{4}(\.\d{3})?
	Name        string
	Tactic      string
	Platform    string
	Description string
	DataSources []string
	Confidence  int // 0..100
}

// NewTechnique validates and normalizes a technique id.
func NewTechnique(id, name, tactic, platform, description string, confidence int) (*Technique, error) {
	norm := strings.ToUpper(strings.TrimSpace(id))
	if !techniqueIDRE.MatchString(norm) {
		return nil, fmt.Errorf("types: technique id %q does not match T\\d{4}(\\.\\d{3})?", id)
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}
	return &Technique{ID: norm, Name: name, Tactic: tactic, Platform: platform, Description: description, Confidence: confidence}, nil
}

// RaiseConfidence folds a duplicate technique observation into this one by
// raising confidence, capped at 100 (spec §3 duplicate-collapse invariant).
func (t *Technique) RaiseConfidence(delta int) {
	t.Confidence += delta
	if t.Confidence > 100 {
		t.Confidence = 100
	}
}
