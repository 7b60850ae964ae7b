// FILE: wxsdr/src/internal/packet/packet.go
package packet

import (
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"wxsdr/src/internal/core"

	"github.com/lixenwraith/log"
)

// Family tags for every packet shape this parser understands. The set is
// closed: a new sensor model means a new tag plus one decoder entry in
// families.go.
const (
	FamilyAcuriteTower core.Family = "AcuriteTowerPacket"
	FamilyAcurite5n1   core.Family = "Acurite5n1Packet"
	FamilyAcurite986   core.Family = "Acurite986Packet"
	FamilyFOWH1080     core.Family = "FOWH1080Packet"
	FamilyHidekiTS04   core.Family = "HidekiTS04Packet"
	FamilyOSTHGR122N   core.Family = "OSTHGR122NPacket"
	FamilyOSTHGR810    core.Family = "OSTHGR810Packet"
	FamilyOSTHR228N    core.Family = "OSTHR228NPacket"
	FamilyOSPCR800     core.Family = "OSPCR800Packet"
	FamilyOSWGR800     core.Family = "OSWGR800Packet"
	FamilyLaCrosse     core.Family = "LaCrossePacket"
	FamilyCalibeur     core.Family = "CalibeurRF104Packet"
)

// Block is one assembled unit of decoder output: a single JSON line, or a
// timestamp-prefixed free-text line plus its continuation lines.
type Block struct {
	Lines []string
	Time  time.Time
}

// Parser converts blocks into canonical records. Parsing is a pure function
// of the block content; the struct only carries the logger and counters.
type Parser struct {
	logger *log.Logger

	totalBlocks  atomic.Uint64
	totalRecords atomic.Uint64
	totalUnknown atomic.Uint64
}

func NewParser(logger *log.Logger) *Parser {
	return &Parser{logger: logger}
}

// Parse decodes one block. Returns nil when no known family signature
// matches. Malformed fields within a recognized shape are dropped
// individually and never fail the whole record.
func (p *Parser) Parse(b Block) *core.Record {
	p.totalBlocks.Add(1)
	if len(b.Lines) == 0 {
		return nil
	}

	var rec *core.Record
	if strings.HasPrefix(strings.TrimSpace(b.Lines[0]), "{") {
		rec = p.parseJSON(b)
	} else {
		rec = p.parseText(b)
	}

	if rec == nil {
		p.totalUnknown.Add(1)
		return nil
	}
	if len(rec.Fields) == 0 {
		// Recognized shape but nothing usable survived decoding
		p.logger.Debug("msg", "Empty record after decode",
			"component", "parser",
			"family", rec.Family,
			"device", rec.DeviceID)
		return nil
	}
	p.totalRecords.Add(1)
	return rec
}

// Families returns the identifier of every supported packet shape
func Families() []string {
	out := make([]string, 0, len(decoders))
	for _, d := range decoders {
		out = append(out, string(d.family)+" ("+d.identifier+")")
	}
	return out
}

var signatureDigits = regexp.MustCompile(`(0x)?[0-9a-fA-F]*[0-9][0-9a-fA-F]*(\.[0-9]+)?`)

// Signature reduces a block to a stable shape fingerprint for unknown-sensor
// diagnostics: head line with timestamps and numeric/hex payload masked, so
// repeated packets from the same unrecognized model collapse to one signature.
func Signature(b Block) string {
	if len(b.Lines) == 0 {
		return ""
	}
	head := strings.TrimSpace(b.Lines[0])
	if _, payload, ok := splitTimestamp(head); ok {
		head = payload
	}
	head = signatureDigits.ReplaceAllString(head, "#")
	if len(head) > 80 {
		head = head[:80]
	}
	return head
}

// GetStats returns parser counters
func (p *Parser) GetStats() map[string]any {
	return map[string]any{
		"total_blocks":  p.totalBlocks.Load(),
		"total_records": p.totalRecords.Load(),
		"total_unknown": p.totalUnknown.Load(),
	}
}
