// FILE: wxsdr/src/internal/packet/json.go
package packet

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"wxsdr/src/internal/core"
)

// JSON mode: the decoder emits one object per line, keyed by family-specific
// names, with the family in the "model" field. Model strings vary across
// decoder versions ("Acurite 5n1 sensor", "Acurite-5n1", "Acurite5n1"), so
// dispatch normalizes the model to lowercase alphanumerics and matches the
// family's signature substring.

func normalizeModel(model string) string {
	var sb strings.Builder
	for _, r := range model {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteRune(r + ('a' - 'A'))
		}
	}
	return sb.String()
}

func (p *Parser) parseJSON(b Block) *core.Record {
	var obj map[string]any
	if err := json.Unmarshal([]byte(b.Lines[0]), &obj); err != nil {
		p.logger.Debug("msg", "Malformed JSON line",
			"component", "parser",
			"error", err)
		return nil
	}
	model, _ := obj["model"].(string)
	if model == "" {
		return nil
	}
	norm := normalizeModel(model)
	for i := range decoders {
		d := &decoders[i]
		for _, sig := range d.models {
			if strings.Contains(norm, sig) {
				return d.decodeJSON(obj, b.Time)
			}
		}
	}
	return nil
}

// jsonID describes how a family derives its device identity from a JSON
// object: the first present key of idKeys, prefixed by the channel when the
// family needs channel+code to disambiguate physical units.
type jsonID struct {
	idKeys     []string
	channelKey string
}

func (j jsonID) extract(obj map[string]any) string {
	id := ""
	for _, k := range j.idKeys {
		if v, ok := obj[k]; ok {
			id = idString(v)
			break
		}
	}
	if id == "" {
		return ""
	}
	if j.channelKey != "" {
		if v, ok := obj[j.channelKey]; ok {
			return idString(v) + ":" + id
		}
	}
	return id
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	}
	return ""
}

// jsonRule maps one decoder output key onto a canonical field. Rules are
// ordered: the first rule to set a canonical name wins, so preferred source
// keys (temperature_C over temperature_F) come first.
type jsonRule struct {
	key  string
	name string
	conv func(any) (float64, bool)
}

func jsonNum(factor float64) func(any) (float64, bool) {
	return func(v any) (float64, bool) {
		switch t := v.(type) {
		case float64:
			return t * factor, true
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return 0, false
			}
			return f * factor, true
		}
		return 0, false
	}
}

func jsonFToC(v any) (float64, bool) {
	f, ok := jsonNum(1)(v)
	if !ok {
		return 0, false
	}
	return (f - 32) * 5 / 9, true
}

// battery_ok is 1 when healthy; canonical battery is 0=OK 1=low
func jsonBatteryOK(v any) (float64, bool) {
	f, ok := jsonNum(1)(v)
	if ok {
		if f != 0 {
			return core.BatteryOK, true
		}
		return core.BatteryLow, true
	}
	if b, isBool := v.(bool); isBool {
		if b {
			return core.BatteryOK, true
		}
		return core.BatteryLow, true
	}
	return 0, false
}

func jsonBatteryText(v any) (float64, bool) {
	if s, ok := v.(string); ok {
		if strings.EqualFold(strings.TrimSpace(s), "OK") {
			return core.BatteryOK, true
		}
		return core.BatteryLow, true
	}
	return jsonBatteryOK(v)
}

var jsonRules = []jsonRule{
	{"temperature_C", "temperature", jsonNum(1)},
	{"temperature_F", "temperature", jsonFToC},
	{"humidity", "humidity", jsonNum(1)},
	{"wind_speed_kmh", "wind_speed", jsonNum(1)},
	{"wind_avg_km_h", "wind_speed", jsonNum(1)},
	{"wind_speed_ms", "wind_speed", jsonNum(3.6)},
	{"wind_avg_m_s", "wind_speed", jsonNum(3.6)},
	{"gust_speed_kmh", "wind_gust", jsonNum(1)},
	{"wind_max_km_h", "wind_gust", jsonNum(1)},
	{"gust_speed_ms", "wind_gust", jsonNum(3.6)},
	{"wind_max_m_s", "wind_gust", jsonNum(3.6)},
	{"wind_dir_deg", "wind_dir", jsonNum(1)},
	{"direction_deg", "wind_dir", jsonNum(1)},
	{"rain_mm", "rain_total", jsonNum(1)},
	{"rainfall_mm", "rain_total", jsonNum(1)},
	{"rain_in", "rain_total", jsonNum(25.4)},
	{"rain_rate_mm_h", "rain_rate", jsonNum(1)},
	{"rain_rate_in_h", "rain_rate", jsonNum(25.4)},
	{"battery_ok", "battery", jsonBatteryOK},
	{"battery_low", "battery", jsonNum(1)},
	{"battery", "battery", jsonBatteryText},
}

// decodeJSONFields extracts every canonical field present in the object.
// Absent keys stay absent; malformed values are dropped individually.
func decodeJSONFields(obj map[string]any) map[string]any {
	fields := make(map[string]any)
	for _, r := range jsonRules {
		v, present := obj[r.key]
		if !present {
			continue
		}
		if _, done := fields[r.name]; done {
			continue
		}
		f, ok := r.conv(v)
		if !ok {
			continue
		}
		fields[r.name] = f
	}
	return fields
}

func jsonTime(obj map[string]any, fallback time.Time) time.Time {
	s, ok := obj["time"].(string)
	if !ok {
		return fallback
	}
	for _, layout := range []string{"2006-01-02 15:04:05", time.RFC3339} {
		if ts, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return ts
		}
	}
	return fallback
}

func (d *decoder) decodeJSON(obj map[string]any, fallback time.Time) *core.Record {
	devID := d.ident.extract(obj)
	if devID == "" {
		return nil
	}
	return &core.Record{
		Family:   d.family,
		DeviceID: devID,
		Time:     jsonTime(obj, fallback),
		Fields:   decodeJSONFields(obj),
	}
}
