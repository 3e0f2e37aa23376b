package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/tasking/internal/schema"
	"github.com/roach88/tasking/internal/task"
)

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	File        string
	OrderItemID string
	ServiceType string
	ProviderID  string
}

// CreateResult is the data of a create response.
type CreateResult struct {
	Task    task.Task `json:"task"`
	Created bool      `json:"created"`
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task, or return its existing equivalent",
		Long: `Create a task from a JSON request body.

The body is read from --file (use - for stdin). Without --file, a minimal
body is built from --order-item-id, --service-type and --provider-id.
A request equivalent to an existing task returns that task unchanged.

Examples:
  tasking create --file request.json
  cat request.json | tasking create -f -
  tasking create --order-item-id oi-1 --service-type meet_assist`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "JSON request file, - for stdin")
	cmd.Flags().StringVar(&opts.OrderItemID, "order-item-id", "", "order item id")
	cmd.Flags().StringVar(&opts.ServiceType, "service-type", "", "service type")
	cmd.Flags().StringVar(&opts.ProviderID, "provider-id", "", "provider id")

	return cmd
}

func runCreate(opts *CreateOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	body, err := createBody(opts, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read request", err)
	}

	v, err := schema.New()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load schema", err)
	}
	if err := v.ValidateCreate(body); err != nil {
		return f.Fail("invalid request", err)
	}
	var req task.CreateRequest
	if err := decodeJSON(body, &req); err != nil {
		return f.Fail("invalid request", err)
	}

	b, err := openBackend(cmd.Context(), opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	t, created, err := b.engine.CreateWithOutcome(cmd.Context(), req)
	if err != nil {
		return f.Fail("create failed", err)
	}

	return f.Emit(CreateResult{Task: t, Created: created}, func(w io.Writer) {
		if created {
			fmt.Fprintln(w, "Created")
		} else {
			fmt.Fprintln(w, "Existing equivalent task")
		}
		writeTask(w, t)
	})
}

func createBody(opts *CreateOptions, stdin io.Reader) ([]byte, error) {
	switch opts.File {
	case "-":
		return io.ReadAll(stdin)
	case "":
		body := map[string]any{
			"order_item_id": opts.OrderItemID,
			"service_type":  opts.ServiceType,
		}
		if opts.ProviderID != "" {
			body["provider_id"] = opts.ProviderID
		}
		return json.Marshal(body)
	default:
		return os.ReadFile(opts.File)
	}
}

// decodeJSON unmarshals a validated body, keeping numbers as json.Number.
func decodeJSON(body []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return task.NewMalformed("body", fmt.Sprintf("decode body: %v", err))
	}
	return nil
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Statuses []string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Example: `  tasking list
  tasking list --status new --status assigned`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringSliceVar(&opts.Statuses, "status", nil, "only tasks in these statuses")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	statuses, err := task.ParseStatuses(opts.Statuses)
	if err != nil {
		return f.Fail("invalid status filter", err)
	}

	b, err := openBackend(cmd.Context(), opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer b.Close()

	tasks, err := b.engine.List(cmd.Context(), statuses...)
	if err != nil {
		return f.Fail("list failed", err)
	}
	if tasks == nil {
		tasks = []task.Task{}
	}

	return f.Emit(tasks, func(w io.Writer) {
		if len(tasks) == 0 {
			fmt.Fprintln(w, "No tasks.")
			return
		}
		for _, t := range tasks {
			writeTaskLine(w, t)
		}
	})
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "get <task-id>",
		Short:         "Show a task",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			b, err := openBackend(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			t, err := b.engine.Get(cmd.Context(), args[0])
			if err != nil {
				return f.Fail("get failed", err)
			}
			return f.Emit(t, func(w io.Writer) { writeTask(w, t) })
		},
	}
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "events <task-id>",
		Short:         "Show a task's event log, oldest first",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)

			b, err := openBackend(cmd.Context(), rootOpts, cmd)
			if err != nil {
				return err
			}
			defer b.Close()

			events, err := b.engine.Events(cmd.Context(), args[0])
			if err != nil {
				return f.Fail("events failed", err)
			}
			return f.Emit(events, func(w io.Writer) { writeEvents(w, events) })
		},
	}
}
