package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tasking/internal/canonical"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Trace        []TraceEvent `json:"trace"`
}

// MarshalTrace returns the canonical JSON snapshot of a result's trace.
func MarshalTrace(scenarioName string, result *Result) ([]byte, error) {
	return canonical.Marshal(TraceSnapshot{
		ScenarioName: scenarioName,
		Trace:        result.Trace,
	})
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := RunContext(t.Context(), scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}

// GoldenPath returns the golden file of a scenario file. Goldens live in a
// golden/ directory next to the scenarios directory, matching the
// testdata/scenarios and testdata/golden layout.
func GoldenPath(scenarioFile, scenarioName string) string {
	root := filepath.Dir(filepath.Dir(scenarioFile))
	return filepath.Join(root, "golden", scenarioName+".golden")
}

// ErrGoldenMissing is returned by CompareGolden when no golden file exists.
var ErrGoldenMissing = errors.New("golden file not found")

// CompareGolden checks a result's trace against the golden file at path.
// Used outside tests, where goldie needs a *testing.T.
func CompareGolden(path, scenarioName string, result *Result) error {
	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrGoldenMissing, path)
	}
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}

	got, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}
	if !bytes.Equal(bytes.TrimSpace(want), got) {
		return fmt.Errorf("trace differs from %s\n  want: %s\n  got:  %s", path, bytes.TrimSpace(want), got)
	}
	return nil
}

// WriteGolden writes a result's trace to path, creating parent directories.
func WriteGolden(path, scenarioName string, result *Result) error {
	data, err := MarshalTrace(scenarioName, result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create golden dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write golden file: %w", err)
	}
	return nil
}
