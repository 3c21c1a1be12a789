package pluginhost

import (
	"fmt"
	"regexp"
	"strings"

	"forensiq/pkg/errors"
)

// SecurityScanConfig is the deny-list / allow-list configuration for the
// compile-time security scan (spec §4.B), grounded on the teacher's
// security.ValidationConfig (pkg/security/input_validator.go), with
// BlockedPatterns generalized from path-traversal tokens to parser
// capability tokens.
type SecurityScanConfig struct {
	MaxSourceBytes   int
	DeniedCapability []string // token -> rejected if present, case-insensitive
	AllowedImports   []string // if non-empty, only these stdlib-style imports may appear
}

// DefaultSecurityScanConfig returns the spec-mandated defaults: a 10 MiB
// artifact cap and a deny-list covering process creation, filesystem,
// network, raw memory/unsafe, reflection-based dynamic load, and
// cgo/FFI capability tokens.
func DefaultSecurityScanConfig() SecurityScanConfig {
	return SecurityScanConfig{
		MaxSourceBytes: 10 * 1024 * 1024,
		DeniedCapability: []string{
			"os/exec", "syscall", "os.StartProcess", // process creation
			"os.Remove", "os.Create", "os.OpenFile", "ioutil.WriteFile", // filesystem
			"net.Dial", "net.Listen", "net/http", // network
			"unsafe.Pointer", "unsafe.", // raw memory
			"reflect.NewAt", "plugin.Open", // reflection-based dynamic load
			"cgo", "import \"C\"", // FFI
		},
		AllowedImports: []string{
			"strings", "strconv", "regexp", "time", "bytes", "unicode",
			"encoding/json", "fmt", "sort", "math",
		},
	}
}

var importLineRE = regexp.MustCompile(`(?m)^\s*"([\w./-]+)"\s*$`)

// SecurityScanner runs the deny-list capability scan against parser
// source text before it is handed to the compile function.
type SecurityScanner struct {
	cfg     SecurityScanConfig
	deniers []string
}

// NewSecurityScanner builds a scanner from cfg, lower-casing deny tokens
// once up front since matching is case-insensitive.
func NewSecurityScanner(cfg SecurityScanConfig) *SecurityScanner {
	deniers := make([]string, len(cfg.DeniedCapability))
	for i, d := range cfg.DeniedCapability {
		deniers[i] = strings.ToLower(d)
	}
	return &SecurityScanner{cfg: cfg, deniers: deniers}
}

// Scan returns one ValidationDetail per violation found; an empty slice
// means the source cleared the scan. Source size, denied capability
// tokens, and imports outside the allow-list (when one is configured)
// are all checked.
func (s *SecurityScanner) Scan(source string) []errors.ValidationDetail {
	var details []errors.ValidationDetail

	if len(source) > s.cfg.MaxSourceBytes {
		details = append(details, errors.ValidationDetail{
			Code:     "ARTIFACT_TOO_LARGE",
			Severity: "error",
			Message:  fmt.Sprintf("source is %d bytes, exceeds %d byte cap", len(source), s.cfg.MaxSourceBytes),
		})
	}

	lower := strings.ToLower(source)
	for i, denied := range s.deniers {
		if strings.Contains(lower, denied) {
			details = append(details, errors.ValidationDetail{
				Code:     "DENIED_CAPABILITY",
				Severity: "error",
				Message:  fmt.Sprintf("source references denied capability token %q", s.cfg.DeniedCapability[i]),
			})
		}
	}

	if len(s.cfg.AllowedImports) > 0 {
		allowed := make(map[string]bool, len(s.cfg.AllowedImports))
		for _, imp := range s.cfg.AllowedImports {
			allowed[imp] = true
		}
		for lineNo, line := range strings.Split(source, "\n") {
			m := importLineRE.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			if !allowed[m[1]] {
				details = append(details, errors.ValidationDetail{
					Code:     "IMPORT_NOT_ALLOWED",
					Line:     lineNo + 1,
					Severity: "error",
					Message:  fmt.Sprintf("import %q is not in the allowed module list", m[1]),
				})
			}
		}
	}

	return details
}
