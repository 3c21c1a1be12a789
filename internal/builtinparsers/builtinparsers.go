// Package builtinparsers ships the handful of parsers the plugin host
// compiles out of the box, so a fresh deployment can analyze common log
// shapes before any operator-supplied parser source is ever uploaded.
// Grounded on the teacher's internal/monitors/docker_json_parser.go: one
// line in, one enriched types.LogEvent out, malformed lines skipped
// rather than aborting the whole file.
package builtinparsers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"forensiq/internal/pluginhost"
	"forensiq/pkg/types"
)

// JSONLines parses one JSON object per line into a LogEvent, lifting
// well-known keys (timestamp/level/message/source) and retaining the
// rest as Fields.
type JSONLines struct{}

func (JSONLines) Parse(ctx context.Context, raw []byte) (*types.ParseResult, error) {
	var events []types.LogEvent
	var warnings []string

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var raw map[string]any
		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			warnings = append(warnings, "line "+strconv.Itoa(lineNo)+": invalid json")
			continue
		}

		ev := types.LogEvent{LineNumber: lineNo, Raw: line, Fields: raw}
		if ts, ok := raw["timestamp"].(string); ok {
			if parsed, err := time.Parse(time.RFC3339Nano, ts); err == nil {
				ev.Timestamp = parsed
			}
		}
		if lvl, ok := raw["level"].(string); ok {
			ev.Level = lvl
		}
		if msg, ok := raw["message"].(string); ok {
			ev.Message = msg
		} else {
			ev.Message = line
		}
		if src, ok := raw["source"].(string); ok {
			ev.Source = src
		}
		events = append(events, ev)
	}
	return &types.ParseResult{Events: events, Warnings: warnings}, nil
}

// syslogRE matches an RFC3164-ish line: "<timestamp> <host> <tag>: <msg>".
var syslogRE = regexp.MustCompile(
	`^(?P<ts>\w{3}\s+\d{1,2}\s\d{2}:\d{2}:\d{2})\s(?P<host>\S+)\s(?P<tag>[^:\[]+)(\[(?P<pid>\d+)\])?:\s?(?P<msg>.*)$`,
)

// Syslog parses the traditional BSD syslog line format. Lines that do
// not match the expected shape become plain, unparsed events rather
// than being dropped, since freeform log text is still evidence.
type Syslog struct{}

func (Syslog) Parse(ctx context.Context, raw []byte) (*types.ParseResult, error) {
	var events []types.LogEvent
	names := syslogRE.SubexpNames()

	scanner := bufio.NewScanner(bytes.NewReader(raw))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		ev := types.LogEvent{LineNumber: lineNo, Raw: line, Message: line}
		if m := syslogRE.FindStringSubmatch(line); m != nil {
			fields := make(map[string]any, len(names))
			for i, name := range names {
				if name == "" || m[i] == "" {
					continue
				}
				fields[name] = m[i]
			}
			ev.Source, _ = fields["host"].(string)
			ev.Message, _ = fields["msg"].(string)
			ev.Fields = fields
			if ts, ok := fields["ts"].(string); ok {
				if parsed, err := time.Parse("Jan  2 15:04:05", ts); err == nil {
					ev.Timestamp = parsed
				} else if parsed, err := time.Parse("Jan 2 15:04:05", ts); err == nil {
					ev.Timestamp = parsed
				}
			}
		}
		events = append(events, ev)
	}
	return &types.ParseResult{Events: events}, nil
}

// CSV parses a header-first comma-separated file into one LogEvent per
// data row, with each column exposed as a Field keyed by its header.
type CSV struct{}

func (CSV) Parse(ctx context.Context, raw []byte) (*types.ParseResult, error) {
	lines := strings.Split(string(raw), "\n")
	var header []string
	var events []types.LogEvent
	lineNo := 0
	for _, line := range lines {
		lineNo++
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		trimmed := strings.TrimRight(line, "\r")
		if strings.TrimSpace(trimmed) == "" {
			continue
		}
		cols := strings.Split(trimmed, ",")
		if header == nil {
			header = cols
			continue
		}
		fields := make(map[string]any, len(cols))
		for i, c := range cols {
			if i < len(header) {
				fields[strings.TrimSpace(header[i])] = strings.TrimSpace(c)
			}
		}
		events = append(events, types.LogEvent{
			LineNumber: lineNo,
			Raw:        trimmed,
			Message:    trimmed,
			Fields:     fields,
		})
	}
	return &types.ParseResult{Events: events}, nil
}

// ids names the built-in parsers' registry identifiers.
const (
	IDJSONLines = "builtin:jsonlines"
	IDSyslog    = "builtin:syslog"
	IDCSV       = "builtin:csv"
)

// CompileFunc is the pluginhost.CompileFunc wiring built-in parser ids to
// their implementations. Non-built-in ids fall through to an error,
// since this function only ever backs the fixed set the app registers
// at startup; operator-supplied parser source compiles through a
// different CompileFunc once the dynamic-plugin path exists.
func CompileFunc(id, _ string) (pluginhost.Parser, error) {
	switch id {
	case IDJSONLines:
		return JSONLines{}, nil
	case IDSyslog:
		return Syslog{}, nil
	case IDCSV:
		return CSV{}, nil
	default:
		return nil, errUnknownBuiltin(id)
	}
}

type errUnknownBuiltin string

func (e errUnknownBuiltin) Error() string {
	return "builtinparsers: unknown parser id " + string(e)
}
