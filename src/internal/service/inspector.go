// FILE: wxsdr/src/internal/service/inspector.go
package service

import (
	"encoding/json"
	"fmt"
	"strings"

	"wxsdr/src/internal/config"
	"wxsdr/src/internal/core"
	"wxsdr/src/internal/packet"

	"github.com/lixenwraith/log"
)

// Inspector renders decoder output for the show-packets mode: every raw
// line, plus a parsed/unparsed verdict per assembled block. It shares the
// assembler and parser with the real pipeline but maps nothing.
type Inspector struct {
	cfg       *config.Config
	assembler *packet.Assembler
	parser    *packet.Parser
}

func NewInspector(cfg *config.Config, logger *log.Logger) *Inspector {
	return &Inspector{
		cfg:       cfg,
		assembler: packet.NewAssembler(),
		parser:    packet.NewParser(logger),
	}
}

// Inspect consumes one raw line and returns the display output it produced
func (i *Inspector) Inspect(line core.RawLine) []string {
	out := []string{"out: " + line.Text}
	for _, b := range i.assembler.Add(line.Text, line.Time) {
		out = append(out, i.render(b))
	}
	for _, b := range i.assembler.Expire(line.Time, i.cfg.Pipeline.BlockMaxAge()) {
		out = append(out, i.render(b))
	}
	return out
}

func (i *Inspector) render(b packet.Block) string {
	rec := i.parser.Parse(b)
	if rec == nil {
		return "unparsed: " + strings.Join(b.Lines, " | ")
	}
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		fields = []byte("{}")
	}
	return fmt.Sprintf("parsed: %s %s %s", rec.Family, rec.DeviceID, fields)
}
