package schedule

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

type (
	tomlRangeConfig struct {
		Range []tomlRange `toml:"range"`
	}

	tomlRange struct {
		FromSeqno   uint64 `toml:"from_seqno"`
		ToSeqno     uint64 `toml:"to_seqno"`
		FromEventID string `toml:"from_event_id"`
		ToEventID   string `toml:"to_event_id"`
		Result      string `toml:"result"`
	}
)

// LoadRangeConfigFile reads a static range configuration from a TOML file,
// of the form:
//
//	[[range]]
//	from_seqno = 100
//	to_seqno = 200
//	result = "continue_next"
//
// It is an optional, out-of-core convenience: the core only depends on the
// in-memory schedule.Config built by whatever loads it.
func LoadRangeConfigFile(path string) (Config, error) {
	var doc tomlRangeConfig
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return Config{}, fmt.Errorf(`schedule: decode range config %s: %w`, path, err)
	}

	ranges := make([]Range, len(doc.Range))
	for i, tr := range doc.Range {
		result, err := parseResult(tr.Result)
		if err != nil {
			return Config{}, fmt.Errorf(`schedule: range config %s: entry %d: %w`, path, i, err)
		}
		ranges[i] = Range{
			FromSeqno:   tr.FromSeqno,
			ToSeqno:     tr.ToSeqno,
			FromEventID: tr.FromEventID,
			ToEventID:   tr.ToEventID,
			Result:      result,
		}
	}
	return Config{Ranges: ranges}, nil
}

func parseResult(s string) (Result, error) {
	switch s {
	case `proceed`:
		return Proceed, nil
	case `continue_next`:
		return ContinueNext, nil
	case `continue_next_commit`:
		return ContinueNextCommit, nil
	case `quit`:
		return Quit, nil
	default:
		return 0, fmt.Errorf(`unrecognized result %q`, s)
	}
}
