package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/tasking/internal/schema"
	"github.com/roach88/tasking/internal/task"
)

// TransitionOptions holds flags for the transition command.
type TransitionOptions struct {
	*RootOptions
	Code    string
	Payload string
}

type transitionBody struct {
	Status  string          `json:"status"`
	Code    string          `json:"code"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewTransitionCommand creates the transition command.
func NewTransitionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransitionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transition <task-id> <status>",
		Short: "Move a task to a new status",
		Long: `Move a task to a new status, recording an event with the given code.

Moving a task to the status it already holds is a no-op that records
nothing. Moves outside the allowed edges are rejected with
INVALID_TRANSITION.

Examples:
  tasking transition task-1 assigned --code ACCEPTED
  tasking transition task-1 failed --code FAILED --payload '{"reason_code":"NO_SHOW"}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Code, "code", "", "event code (required)")
	cmd.Flags().StringVar(&opts.Payload, "payload", "", "JSON object stored on the event")
	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func runTransition(opts *TransitionOptions, id, status string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	if opts.Payload != "" && !json.Valid([]byte(opts.Payload)) {
		return f.Fail("invalid payload", task.NewMalformed("payload", "payload is not valid JSON"))
	}
	body, err := json.Marshal(transitionBody{
		Status:  status,
		Code:    opts.Code,
		Payload: json.RawMessage(opts.Payload),
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode request", err)
	}

	v, err := schema.New()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	if err := v.Validate(schema.Transition, body); err != nil {
		return f.Fail("invalid transition request", err)
	}

	var req struct {
		Status  task.Status    `json:"status"`
		Code    string         `json:"code"`
		Payload map[string]any `json:"payload"`
	}
	if err := decodeJSON(body, &req); err != nil {
		return f.Fail("invalid transition request", err)
	}
	if len(req.Payload) == 0 {
		req.Payload = nil
	}

	b, err := openBackend(cmd.Context(), opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	t, err := b.engine.Transition(cmd.Context(), id, req.Status, req.Code, req.Payload)
	if err != nil {
		return f.Fail("transition failed", err)
	}

	return f.Emit(t, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s\n", idStyle.Render(t.ID), statusBadge(t.Status))
	})
}
