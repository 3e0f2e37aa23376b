package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tasking/internal/engine"
)

// ReplayResult is the data of a replay response.
type ReplayResult struct {
	Tasks        []engine.Verification `json:"tasks"`
	Consistent   int                   `json:"consistent"`
	Inconsistent int                   `json:"inconsistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay [task-id]",
		Short: "Verify event logs against stored task status",
		Long: `Replay each task's event log from its CREATED event and check that
every step follows an allowed edge and that the final status matches the
stored one.

Exit codes:
  0 - Every replayed task is consistent
  1 - One or more tasks are inconsistent
  2 - Command error (database unreachable, etc.)

Examples:
  tasking replay
  tasking replay task-0001 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runReplay(opts *RootOptions, args []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)

	b, err := openBackend(cmd.Context(), opts, cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	var verifications []engine.Verification
	if len(args) == 1 {
		v, err := b.engine.Verify(cmd.Context(), args[0])
		if err != nil {
			return f.Fail("replay failed", err)
		}
		verifications = []engine.Verification{v}
	} else {
		verifications, err = b.engine.VerifyAll(cmd.Context())
		if err != nil {
			return f.Fail("replay failed", err)
		}
	}

	result := ReplayResult{Tasks: verifications}
	if result.Tasks == nil {
		result.Tasks = []engine.Verification{}
	}
	for _, v := range verifications {
		if v.OK() {
			result.Consistent++
		} else {
			result.Inconsistent++
		}
	}

	err = f.Emit(result, func(w io.Writer) {
		for _, v := range result.Tasks {
			writeVerification(w, v)
		}
		fmt.Fprintf(w, "\n%d consistent, %d inconsistent\n", result.Consistent, result.Inconsistent)
	})
	if err != nil {
		return err
	}

	if result.Inconsistent > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d task(s) failed replay", result.Inconsistent))
	}
	return nil
}
