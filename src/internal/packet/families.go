// FILE: wxsdr/src/internal/packet/families.go
package packet

import (
	"regexp"
	"strings"
	"time"

	"wxsdr/src/internal/core"
)

// decoder binds one family tag to its structural signatures: the identifier
// substring of the free-text head line, the normalized JSON model signatures,
// the device-identity derivation for JSON objects, and the free-text decode
// function. Adding a family means appending one entry here.
type decoder struct {
	family     core.Family
	identifier string
	models     []string
	ident      jsonID
	text       func(ts time.Time, payload string, body []string) *core.Record
}

// Head-line regexps for the single-line Acurite shapes, e.g.
//
//	Acurite tower sensor 0x37FC Ch A: 26.7 C 80.1 F 16 % RH
//	Acurite 5n1 sensor 0x0BFA Ch C, Msg 38, Wind 2 kmph / 1.2 mph, 21.3 C 70.3 F 70 % RH
//	Acurite 986 sensor 0x2c87 - 2F: 20.0 C 68 F
var (
	acuriteTowerPattern = regexp.MustCompile(`0x([0-9a-fA-F]+) Ch ([A-C]): (-?[\d.]+) C -?[\d.]+ F (\d+) % RH`)
	acurite5n1Pattern   = regexp.MustCompile(`0x([0-9a-fA-F]+) Ch ([A-C]), (.*)`)
	acurite5n1Msg       = regexp.MustCompile(`Msg (\d+), (.*)`)
	acurite5n1Msg31     = regexp.MustCompile(`Wind ([\d.]+) kmph / [\d.]+ mph ([\d.]+).*rain gauge ([\d.]+) in`)
	acurite5n1Msg38     = regexp.MustCompile(`Wind ([\d.]+) kmph / [\d.]+ mph, (-?[\d.]+) C -?[\d.]+ F ([\d.]+) % RH`)
	acurite5n1Rain      = regexp.MustCompile(`Total rain fall since last reset: ([\d.]+)`)
	acurite986Pattern   = regexp.MustCompile(`0x([0-9a-fA-F]+) - [12]F: (-?[\d.]+) C`)
	lacrosseIDPattern   = regexp.MustCompile(`LaCrosse WS\s*:\s*(\d+)\s*:\s*(\d+)`)
)

// inToMM converts the decoder's inch rain measures to canonical millimeters
const inToMM = 25.4

// msToKmh converts meters/second wind measures to canonical km/h
const msToKmh = 3.6

var (
	tempCPattern  = regexp.MustCompile(`(-?[\d.]+) C`)
	percentRH     = regexp.MustCompile(`([\d.]+) %`)
	inchesPattern = regexp.MustCompile(`([\d.]+) in`)
	metersPattern = regexp.MustCompile(`([\d.]+) m`)
	degreesPat    = regexp.MustCompile(`([\d.]+) degrees`)
	mpsPattern    = regexp.MustCompile(`([\d.]+) m/s`)
	mmPattern     = regexp.MustCompile(`([\d.]+) mm`)
)

// kvDecoder builds a text decode function for the name:value body families.
// idParts names the fields that jointly form the device identity, joined by
// ':' in order (e.g. channel + rolling code); they are removed from the
// record fields.
func kvDecoder(rules map[string]fieldRule, idParts ...string) func(time.Time, string, []string) *core.Record {
	return func(ts time.Time, payload string, body []string) *core.Record {
		fields := parseBody(body, rules)
		parts := make([]string, 0, len(idParts))
		for _, name := range idParts {
			parts = append(parts, popString(fields, name, "0"))
		}
		return &core.Record{
			DeviceID: strings.Join(parts, ":"),
			Time:     ts,
			Fields:   fields,
		}
	}
}

var decoders = []decoder{
	{
		family:     FamilyFOWH1080,
		identifier: "Fine Offset WH1080 weather station",
		models:     []string{"wh1080"},
		ident:      jsonID{idKeys: []string{"station_id", "id"}},
		text: kvDecoder(map[string]fieldRule{
			"StationID":      {name: "station_id", conv: func(s string) (any, bool) { return s, true }},
			"Temperature":    {name: "temperature", pattern: tempCPattern, conv: asFloat},
			"Humidity":       {name: "humidity", pattern: percentRH, conv: asFloat},
			"Wind degrees":   {name: "wind_dir", conv: asInt},
			"Wind avg speed": {name: "wind_speed", conv: asFloat},
			"Wind gust":      {name: "wind_gust", conv: asFloat},
			"Total rainfall": {name: "rain_total", conv: asFloat},
			"Battery":        {name: "battery", conv: asBattery},
		}, "station_id"),
	},
	{
		family:     FamilyAcuriteTower,
		identifier: "Acurite tower sensor",
		models:     []string{"acuritetower"},
		ident:      jsonID{idKeys: []string{"id", "sensor_id"}},
		text: func(ts time.Time, payload string, body []string) *core.Record {
			m := acuriteTowerPattern.FindStringSubmatch(payload)
			if m == nil {
				return nil
			}
			fields := make(map[string]any)
			if v, ok := asFloat(m[3]); ok {
				fields["temperature"] = v
			}
			if v, ok := asFloat(m[4]); ok {
				fields["humidity"] = v
			}
			return &core.Record{DeviceID: m[1], Time: ts, Fields: fields}
		},
	},
	{
		family:     FamilyAcurite5n1,
		identifier: "Acurite 5n1 sensor",
		models:     []string{"acurite5n1"},
		ident:      jsonID{idKeys: []string{"id", "sensor_id"}},
		text:       decodeAcurite5n1,
	},
	{
		family:     FamilyAcurite986,
		identifier: "Acurite 986 sensor",
		models:     []string{"acurite986"},
		ident:      jsonID{idKeys: []string{"id"}},
		text: func(ts time.Time, payload string, body []string) *core.Record {
			m := acurite986Pattern.FindStringSubmatch(payload)
			if m == nil {
				return nil
			}
			fields := make(map[string]any)
			if v, ok := asFloat(m[2]); ok {
				fields["temperature"] = v
			}
			return &core.Record{DeviceID: m[1], Time: ts, Fields: fields}
		},
	},
	{
		family:     FamilyHidekiTS04,
		identifier: "HIDEKI TS04 sensor",
		models:     []string{"hidekits04"},
		ident:      jsonID{idKeys: []string{"rc", "rolling_code", "id"}, channelKey: "channel"},
		text: kvDecoder(map[string]fieldRule{
			"Rolling Code": {name: "rolling_code", conv: asInt},
			"Channel":      {name: "channel", conv: asInt},
			"Battery":      {name: "battery", conv: asBattery},
			"Temperature":  {name: "temperature", pattern: tempCPattern, conv: asFloat},
			"Humidity":     {name: "humidity", pattern: percentRH, conv: asFloat},
		}, "channel", "rolling_code"),
	},
	{
		family:     FamilyOSTHGR122N,
		identifier: "THGR122N",
		models:     []string{"thgr122n"},
		ident:      jsonID{idKeys: []string{"house_code", "id"}, channelKey: "channel"},
		text: kvDecoder(map[string]fieldRule{
			"House Code":  {name: "house_code", conv: asInt},
			"Channel":     {name: "channel", conv: asInt},
			"Battery":     {name: "battery", conv: asBattery},
			"Temperature": {name: "temperature", pattern: tempCPattern, conv: asFloat},
			"Humidity":    {name: "humidity", pattern: percentRH, conv: asFloat},
		}, "channel", "house_code"),
	},
	{
		family:     FamilyOSTHGR810,
		identifier: "THGR810",
		models:     []string{"thgr810"},
		ident:      jsonID{idKeys: []string{"house_code", "id"}, channelKey: "channel"},
		text: kvDecoder(map[string]fieldRule{
			"House Code": {name: "house_code", conv: asInt},
			"Channel":    {name: "channel", conv: asInt},
			"Battery":    {name: "battery", conv: asBattery},
			// the decoder spells it Celcius for this model
			"Celcius":  {name: "temperature", pattern: tempCPattern, conv: asFloat},
			"Humidity": {name: "humidity", pattern: percentRH, conv: asFloat},
		}, "channel", "house_code"),
	},
	{
		family:     FamilyOSTHR228N,
		identifier: "Thermo Sensor THR228N",
		models:     []string{"thr228n"},
		ident:      jsonID{idKeys: []string{"house_code", "id"}, channelKey: "channel"},
		text: kvDecoder(map[string]fieldRule{
			"House Code":  {name: "house_code", conv: asInt},
			"Channel":     {name: "channel", conv: asInt},
			"Battery":     {name: "battery", conv: asBattery},
			"Temperature": {name: "temperature", pattern: tempCPattern, conv: asFloat},
		}, "channel", "house_code"),
	},
	{
		family:     FamilyOSPCR800,
		identifier: "PCR800",
		models:     []string{"pcr800"},
		ident:      jsonID{idKeys: []string{"house_code", "id"}, channelKey: "channel"},
		text: kvDecoder(map[string]fieldRule{
			"House Code": {name: "house_code", conv: asInt},
			"Channel":    {name: "channel", conv: asInt},
			"Battery":    {name: "battery", conv: asBattery},
			"Rain Rate":  {name: "rain_rate", pattern: inchesPattern, conv: scaled(inToMM)},
			"Total Rain": {name: "rain_total", pattern: inchesPattern, conv: scaled(inToMM)},
		}, "channel", "house_code"),
	},
	{
		family:     FamilyOSWGR800,
		identifier: "WGR800",
		models:     []string{"wgr800"},
		ident:      jsonID{idKeys: []string{"house_code", "id"}, channelKey: "channel"},
		text: kvDecoder(map[string]fieldRule{
			"House Code": {name: "house_code", conv: asInt},
			"Channel":    {name: "channel", conv: asInt},
			"Battery":    {name: "battery", conv: asBattery},
			"Gust":       {name: "wind_gust", pattern: metersPattern, conv: scaled(msToKmh)},
			"Average":    {name: "wind_speed", pattern: metersPattern, conv: scaled(msToKmh)},
			"Direction":  {name: "wind_dir", pattern: degreesPat, conv: asFloat},
		}, "channel", "house_code"),
	},
	{
		family:     FamilyLaCrosse,
		identifier: "LaCrosse WS",
		models:     []string{"lacrossews"},
		ident:      jsonID{idKeys: []string{"ws_id", "id"}},
		text:       decodeLaCrosse,
	},
	{
		family:     FamilyCalibeur,
		identifier: "Calibeur RF-104",
		models:     []string{"calibeurrf104"},
		ident:      jsonID{idKeys: []string{"id"}},
		text: kvDecoder(map[string]fieldRule{
			"ID":          {name: "id", conv: asInt},
			"Temperature": {name: "temperature", pattern: tempCPattern, conv: asFloat},
			"Humidity":    {name: "humidity", pattern: percentRH, conv: asFloat},
		}, "id"),
	},
}

// The 5n1 packs three distinct message layouts behind one identifier:
// Msg 31 carries wind and the cumulative rain gauge, Msg 38 carries wind,
// temperature and humidity, and a one-shot "rain fall since last reset" line
// appears when the decoder starts.
func decodeAcurite5n1(ts time.Time, payload string, body []string) *core.Record {
	m := acurite5n1Pattern.FindStringSubmatch(payload)
	if m == nil {
		return nil
	}
	rec := &core.Record{DeviceID: m[1], Time: ts, Fields: make(map[string]any)}
	rest := m[3]

	if mm := acurite5n1Msg.FindStringSubmatch(rest); mm != nil {
		switch mm[1] {
		case "31":
			if mv := acurite5n1Msg31.FindStringSubmatch(mm[2]); mv != nil {
				setFloat(rec.Fields, "wind_speed", mv[1])
				setFloat(rec.Fields, "wind_dir", mv[2])
				setScaled(rec.Fields, "rain_total", mv[3], inToMM)
			}
		case "38":
			if mv := acurite5n1Msg38.FindStringSubmatch(mm[2]); mv != nil {
				setFloat(rec.Fields, "wind_speed", mv[1])
				setFloat(rec.Fields, "temperature", mv[2])
				setFloat(rec.Fields, "humidity", mv[3])
			}
		}
		return rec
	}
	if mv := acurite5n1Rain.FindStringSubmatch(rest); mv != nil {
		setScaled(rec.Fields, "rain_since_reset", mv[1], inToMM)
	}
	return rec
}

// LaCrosse carries its identity on the head line ("LaCrosse WS :9 :202") and
// one or two measures per body
func decodeLaCrosse(ts time.Time, payload string, body []string) *core.Record {
	m := lacrosseIDPattern.FindStringSubmatch(payload)
	if m == nil {
		return nil
	}
	fields := parseBody(body, map[string]fieldRule{
		"Wind speed":  {name: "wind_speed", pattern: mpsPattern, conv: scaled(msToKmh)},
		"Direction":   {name: "wind_dir", conv: asFloat},
		"Temperature": {name: "temperature", pattern: tempCPattern, conv: asFloat},
		"Humidity":    {name: "humidity", conv: asFloat},
		"Rainfall":    {name: "rain_total", pattern: mmPattern, conv: asFloat},
	})
	return &core.Record{DeviceID: m[1] + ":" + m[2], Time: ts, Fields: fields}
}

func setFloat(fields map[string]any, name, raw string) {
	if v, ok := asFloat(raw); ok {
		fields[name] = v
	}
}

func setScaled(fields map[string]any, name, raw string, factor float64) {
	if v, ok := scaled(factor)(raw); ok {
		fields[name] = v
	}
}
