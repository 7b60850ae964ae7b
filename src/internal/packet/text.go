// FILE: wxsdr/src/internal/packet/text.go
package packet

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"wxsdr/src/internal/core"
)

// Free-text mode: the head line carries a UTC timestamp and the family
// identifier, e.g.
//
//	2016-08-31 17:41:30 :   HIDEKI TS04 sensor
//	Rolling Code: 9
//	Channel: 1
//	Temperature: 27.30 C
//
// Some families pack everything into the head line instead and are decoded
// with a single regexp.

var tsPattern = regexp.MustCompile(`^(\d{4}-\d\d-\d\d \d\d:\d\d:\d\d)\s*:*\s*(.*)`)

func hasTimestampPrefix(line string) bool {
	return tsPattern.MatchString(line)
}

// splitTimestamp separates the UTC timestamp from the payload of a head line
func splitTimestamp(line string) (time.Time, string, bool) {
	m := tsPattern.FindStringSubmatch(line)
	if m == nil {
		return time.Time{}, "", false
	}
	ts, err := time.ParseInLocation("2006-01-02 15:04:05", m[1], time.UTC)
	if err != nil {
		return time.Time{}, "", false
	}
	return ts, strings.TrimSpace(m[2]), true
}

// fieldRule extracts one canonical field from a name:value body line.
// pattern narrows the raw value first when set; conv produces the final
// value and rejects malformed text.
type fieldRule struct {
	name    string
	pattern *regexp.Regexp
	conv    func(string) (any, bool)
}

func asFloat(s string) (any, bool) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil, false
	}
	return v, true
}

func asInt(s string) (any, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return nil, false
	}
	return float64(v), true
}

func asBattery(s string) (any, bool) {
	if strings.EqualFold(strings.TrimSpace(s), "OK") {
		return float64(core.BatteryOK), true
	}
	return float64(core.BatteryLow), true
}

// scaled wraps a float conversion with a unit factor (e.g. in -> mm)
func scaled(factor float64) func(string) (any, bool) {
	return func(s string) (any, bool) {
		v, ok := asFloat(s)
		if !ok {
			return nil, false
		}
		return v.(float64) * factor, true
	}
}

// parseBody applies rules to the name:value continuation lines of a block.
// Lines that do not split on a single colon and fields whose value fails its
// rule are dropped individually.
func parseBody(lines []string, rules map[string]fieldRule) map[string]any {
	fields := make(map[string]any)
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok || strings.Contains(value, ":") {
			continue
		}
		name = strings.TrimSpace(name)
		value = strings.TrimSpace(value)
		rule, known := rules[name]
		if !known {
			continue
		}
		if rule.pattern != nil {
			m := rule.pattern.FindStringSubmatch(value)
			if m == nil {
				continue
			}
			value = m[1]
		}
		v, ok := rule.conv(value)
		if !ok {
			continue
		}
		fields[rule.name] = v
	}
	return fields
}

// popString removes a field and formats it as a device-identity component
func popString(fields map[string]any, name, fallback string) string {
	v, ok := fields[name]
	if !ok {
		return fallback
	}
	delete(fields, name)
	switch t := v.(type) {
	case float64:
		return strconv.FormatInt(int64(t), 10)
	case string:
		return t
	}
	return fallback
}

// parseText dispatches a free-text block on the family identifier substring
func (p *Parser) parseText(b Block) *core.Record {
	ts, payload, ok := splitTimestamp(b.Lines[0])
	if !ok || payload == "" {
		return nil
	}
	for i := range decoders {
		d := &decoders[i]
		if d.text == nil || !strings.Contains(payload, d.identifier) {
			continue
		}
		rec := d.text(ts, payload, b.Lines[1:])
		if rec == nil {
			p.logger.Debug("msg", "Identifier matched but shape did not",
				"component", "parser",
				"family", d.family,
				"payload", payload)
			return nil
		}
		rec.Family = d.family
		if rec.Time.IsZero() {
			rec.Time = ts
		}
		return rec
	}
	return nil
}
