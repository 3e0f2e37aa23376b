package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/tasking/internal/task"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Setup steps establish initial state. Any error aborts the run.
	Setup []Step `yaml:"setup,omitempty"`

	// Flow steps are the behavior under test. Each may carry an expect
	// clause.
	Flow []Step `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one engine operation.
type Step struct {
	// Op is create, transition, get or list.
	Op string `yaml:"op"`

	// As binds the created task's id to an alias (create only).
	As string `yaml:"as,omitempty"`

	// Task is an alias or literal task id (transition, get).
	Task string `yaml:"task,omitempty"`

	// Request is the creation request (create).
	Request *task.CreateRequest `yaml:"request,omitempty"`

	// Status is the target status (transition).
	Status string `yaml:"status,omitempty"`

	// Code and Payload are recorded on the transition event.
	Code    string         `yaml:"code,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty"`

	// Statuses filters a list.
	Statuses []string `yaml:"statuses,omitempty"`

	// Expect validates the step's result. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected result of a step. Only set fields are
// checked.
type Expect struct {
	// Error is the expected error code, e.g. INVALID_TRANSITION.
	Error string `yaml:"error,omitempty"`

	// Status is the task's status after the step.
	Status string `yaml:"status,omitempty"`

	// Outcome is created, existing, applied or noop.
	Outcome string `yaml:"outcome,omitempty"`

	// SameAs names an alias whose task the step must return.
	SameAs string `yaml:"same_as,omitempty"`

	// Tasks lists the aliases or ids a list step must return, in order.
	Tasks []string `yaml:"tasks,omitempty"`
}

// Assertion validates final state.
type Assertion struct {
	Type     string   `yaml:"type"`
	Task     string   `yaml:"task,omitempty"`
	Status   string   `yaml:"status,omitempty"`
	Codes    []string `yaml:"codes,omitempty"`
	Statuses []string `yaml:"statuses,omitempty"`
	Count    *int     `yaml:"count,omitempty"`
}

// Step operations.
const (
	OpCreate     = "create"
	OpTransition = "transition"
	OpGet        = "get"
	OpList       = "list"
)

// Assertion type constants.
const (
	AssertFinalStatus      = "final_status"
	AssertEventCodes       = "event_codes"
	AssertEventCount       = "event_count"
	AssertHistory          = "history"
	AssertTaskCount        = "task_count"
	AssertReplayConsistent = "replay_consistent"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow must have at least one step")
	}

	for i, step := range s.Setup {
		if err := validateStep(fmt.Sprintf("setup[%d]", i), step); err != nil {
			return err
		}
		if step.Expect != nil {
			return fmt.Errorf("setup[%d]: expect is not allowed in setup", i)
		}
	}
	for i, step := range s.Flow {
		if err := validateStep(fmt.Sprintf("flow[%d]", i), step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(where string, step Step) error {
	switch step.Op {
	case OpCreate:
		if step.Request == nil {
			return fmt.Errorf("%s: request is required for create", where)
		}
	case OpTransition:
		if step.Task == "" {
			return fmt.Errorf("%s: task is required for transition", where)
		}
		if step.Status == "" {
			return fmt.Errorf("%s: status is required for transition", where)
		}
	case OpGet:
		if step.Task == "" {
			return fmt.Errorf("%s: task is required for get", where)
		}
	case OpList:
	case "":
		return fmt.Errorf("%s: op is required", where)
	default:
		return fmt.Errorf("%s: unknown op %q", where, step.Op)
	}

	if step.As != "" && step.Op != OpCreate {
		return fmt.Errorf("%s: as is only valid on create", where)
	}
	if step.Expect != nil && step.Expect.Outcome != "" {
		switch step.Expect.Outcome {
		case OutcomeCreated, OutcomeExisting, OutcomeApplied, OutcomeNoop:
		default:
			return fmt.Errorf("%s: unknown outcome %q", where, step.Expect.Outcome)
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case AssertFinalStatus:
		if a.Task == "" || a.Status == "" {
			return fmt.Errorf("assertions[%d]: task and status are required for final_status", index)
		}
	case AssertEventCodes:
		if a.Task == "" || len(a.Codes) == 0 {
			return fmt.Errorf("assertions[%d]: task and codes are required for event_codes", index)
		}
	case AssertEventCount:
		if a.Task == "" || a.Count == nil {
			return fmt.Errorf("assertions[%d]: task and count are required for event_count", index)
		}
	case AssertHistory:
		if a.Task == "" || len(a.Statuses) == 0 {
			return fmt.Errorf("assertions[%d]: task and statuses are required for history", index)
		}
	case AssertTaskCount:
		if a.Count == nil {
			return fmt.Errorf("assertions[%d]: count is required for task_count", index)
		}
	case AssertReplayConsistent:
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Count != nil && *a.Count < 0 {
		return fmt.Errorf("assertions[%d]: count must be non-negative", index)
	}
	return nil
}
