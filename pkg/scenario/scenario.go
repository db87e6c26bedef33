package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is a tick-by-tick script for one message type. Queues rotate at
// the end of every tick.
type Scenario struct {
	Name    string         `yaml:"name"`
	Readers []ReaderConfig `yaml:"readers"`
	Ticks   []Tick         `yaml:"ticks"`
}

// ReaderConfig declares a reader. Readers attach at the start of the scenario
// unless Deferred is set, in which case an attach step is required.
type ReaderConfig struct {
	Name     string `yaml:"name"`
	Gate     bool   `yaml:"gate,omitempty"`
	Deferred bool   `yaml:"deferred,omitempty"`
}

// Tick groups the steps executed before a rotation.
type Tick struct {
	Steps []Step `yaml:"steps"`
}

// Step is one action. Exactly one of Attach, Send, Read, Clear or Probe must
// be set; the Expect fields apply to Read and Probe.
type Step struct {
	Attach string   `yaml:"attach,omitempty"`
	Send   []string `yaml:"send,omitempty"`
	Read   string   `yaml:"read,omitempty"`
	Clear  string   `yaml:"clear,omitempty"`
	Probe  string   `yaml:"probe,omitempty"`

	// Parallel reads through ParRead using BatchSize-sized chunks.
	Parallel  bool `yaml:"parallel,omitempty"`
	BatchSize int  `yaml:"batch_size,omitempty"`

	Expect       []string `yaml:"expect,omitempty"`
	ExpectIDs    []uint64 `yaml:"expect_ids,omitempty"`
	ExpectMissed *uint64  `yaml:"expect_missed,omitempty"`
	ExpectLen    *int     `yaml:"expect_len,omitempty"`
	ExpectSkip   *bool    `yaml:"expect_skip,omitempty"`
}

// Kind names the action a step performs.
type Kind string

const (
	KindAttach Kind = "attach"
	KindSend   Kind = "send"
	KindRead   Kind = "read"
	KindClear  Kind = "clear"
	KindProbe  Kind = "probe"
)

func (s Step) kind() (Kind, string, error) {
	var kinds []Kind
	var reader string
	if s.Attach != "" {
		kinds, reader = append(kinds, KindAttach), s.Attach
	}
	if s.Send != nil {
		kinds = append(kinds, KindSend)
	}
	if s.Read != "" {
		kinds, reader = append(kinds, KindRead), s.Read
	}
	if s.Clear != "" {
		kinds, reader = append(kinds, KindClear), s.Clear
	}
	if s.Probe != "" {
		kinds, reader = append(kinds, KindProbe), s.Probe
	}
	if len(kinds) != 1 {
		return "", "", fmt.Errorf("step must have exactly one action, got %v", kinds)
	}
	return kinds[0], reader, nil
}

// Load decodes a scenario from YAML and validates it. Unknown fields are
// rejected.
func Load(r io.Reader) (*Scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, errors.Join(ErrInvalidScenario, err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// LoadFile reads and validates a scenario file.
func LoadFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: open %s: %w", path, err)
	}
	defer f.Close()

	sc, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if sc.Name == "" {
		sc.Name = path
	}
	return sc, nil
}

// Validate checks reader names and step shapes without running anything.
func (sc *Scenario) Validate() error {
	var errs []error
	readers := make(map[string]ReaderConfig, len(sc.Readers))
	for _, r := range sc.Readers {
		if r.Name == "" {
			errs = append(errs, errors.New("reader without a name"))
			continue
		}
		if _, dup := readers[r.Name]; dup {
			errs = append(errs, fmt.Errorf("reader %q declared twice", r.Name))
		}
		readers[r.Name] = r
	}

	for ti, tick := range sc.Ticks {
		for si, step := range tick.Steps {
			kind, name, err := step.kind()
			if err != nil {
				errs = append(errs, fmt.Errorf("tick %d step %d: %w", ti, si, err))
				continue
			}
			if kind == KindSend {
				continue
			}
			decl, ok := readers[name]
			if !ok {
				errs = append(errs, fmt.Errorf("tick %d step %d: %w: %q", ti, si, ErrUnknownReader, name))
				continue
			}
			if kind == KindAttach && !decl.Deferred {
				errs = append(errs, fmt.Errorf("tick %d step %d: reader %q attaches at start", ti, si, name))
			}
			if step.ExpectSkip != nil && !decl.Gate {
				errs = append(errs, fmt.Errorf("tick %d step %d: expect_skip needs a gate reader", ti, si))
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(append([]error{ErrInvalidScenario}, errs...)...)
	}
	return nil
}
