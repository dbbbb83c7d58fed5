package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Scenario is one end-to-end sync scenario.
type Scenario struct {
	// Name uniquely identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description"`

	// Source holds the elements of the source document, in the memdoc
	// element layout.
	Source []yaml.Node `yaml:"source"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions check the final target state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step is exactly one of Send, Receive or Edit, with an optional
// expectation on its outcome.
type Step struct {
	Send    *SendStep    `yaml:"send,omitempty"`
	Receive *ReceiveStep `yaml:"receive,omitempty"`
	Edit    *EditStep    `yaml:"edit,omitempty"`
	Expect  *Expect      `yaml:"expect,omitempty"`
}

// Step kinds as they appear in results.
const (
	StepSend    = "send"
	StepReceive = "receive"
	StepEdit    = "edit"
)

// Kind returns which action the step performs, or "" when it is malformed.
func (s Step) Kind() string {
	n := 0
	kind := ""
	if s.Send != nil {
		n++
		kind = StepSend
	}
	if s.Receive != nil {
		n++
		kind = StepReceive
	}
	if s.Edit != nil {
		n++
		kind = StepEdit
	}
	if n != 1 {
		return ""
	}
	return kind
}

// SendStep sends from the source document. Without a selection every
// element is sent.
type SendStep struct {
	Categories []string `yaml:"categories,omitempty"`
	Elements   []string `yaml:"elements,omitempty"`
}

// ReceiveStep receives the most recently sent commit into the target.
type ReceiveStep struct{}

// EditStep changes the source document between sends. Deletes run first.
type EditStep struct {
	Delete []string    `yaml:"delete,omitempty"`
	Upsert []yaml.Node `yaml:"upsert,omitempty"`
}

// Expect checks one step's outcome. Unset fields are not checked.
type Expect struct {
	State     string         `yaml:"state,omitempty"`
	Converted *int           `yaml:"converted,omitempty"`
	Skipped   *int           `yaml:"skipped,omitempty"`
	Actions   map[string]int `yaml:"actions,omitempty"`
	Errors    map[string]int `yaml:"errors,omitempty"`
}

// Assertion checks the final target state.
type Assertion struct {
	Type  string   `yaml:"type"`
	Count int      `yaml:"count,omitempty"`
	Kind  string   `yaml:"kind,omitempty"`
	Label string   `yaml:"label,omitempty"`
	Names []string `yaml:"names,omitempty"`
}

// Assertion type constants.
const (
	AssertTargetCount    = "target_count"
	AssertTargetContains = "target_contains"
	AssertPlaceholders   = "placeholders"
	AssertTransactions   = "transactions"
)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos surface as errors.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	sent := false
	for i, step := range s.Steps {
		switch step.Kind() {
		case "":
			return fmt.Errorf("steps[%d]: exactly one of send, receive, edit is required", i)
		case StepSend:
			sent = true
		case StepReceive:
			if !sent {
				return fmt.Errorf("steps[%d]: receive before any send", i)
			}
		case StepEdit:
			if len(step.Edit.Delete) == 0 && len(step.Edit.Upsert) == 0 {
				return fmt.Errorf("steps[%d]: edit changes nothing", i)
			}
			if step.Expect != nil {
				return fmt.Errorf("steps[%d]: edit steps take no expect", i)
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertTargetCount, AssertPlaceholders:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertTargetContains:
		if a.Kind == "" {
			return fmt.Errorf("assertions[%d]: kind is required for target_contains", index)
		}
	case AssertTransactions:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
