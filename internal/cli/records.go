package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/engine"
	"github.com/roach88/listsync/internal/record"
)

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list <kind>",
		Short: "Load and show a collection",
		Long: `Load the whole collection from the server and print it.

Kinds with a rank field are shown highest first. --filter keeps records
whose unique field contains the text, ignoring case.

Examples:
  listsync list contacts
  listsync list contacts --filter ada
  listsync list blogs --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				f := rootOpts.formatter(cmd)
				e, err := a.engine(ctx, args[0])
				if err != nil {
					return a.finish(f, nil, err)
				}
				a.drain()

				k := e.Kind()
				list := filterRecords(e.Ranked(), k.UniqueField, filter)
				if f.Format == "json" {
					return f.Success(list)
				}
				if len(list) == 0 {
					fmt.Fprintf(f.Writer, "No %s\n", k.Name)
					return nil
				}
				return f.Table(append([]string{"ID"}, columns(k)...), rows(k, list))
			})
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "show only records whose unique field contains this text")
	return cmd
}

// filterRecords keeps records whose unique field contains text after case
// folding. Display only: nothing is sent to the server.
func filterRecords(list []record.Record, uniqueField, text string) []record.Record {
	needle := record.FoldKey(text)
	if needle == "" {
		return list
	}
	out := make([]record.Record, 0, len(list))
	for _, r := range list {
		if strings.Contains(record.FoldKey(r.Fields.Text(uniqueField)), needle) {
			out = append(out, r)
		}
	}
	return out
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "add <kind> <field=value>...",
		Short: "Create a record",
		Long: `Create a record from field=value pairs.

When a record with the same unique value exists you are asked whether to
replace it; --yes replaces without asking.

Examples:
  listsync add contacts name="Grace Hopper" number=040-1234567
  listsync add contacts name="Ada Lovelace" number=123 --yes
  listsync add blogs title="Go" author=Rob url=https://go.dev`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				f := rootOpts.formatter(cmd)
				e, err := a.engine(ctx, args[0])
				if err != nil {
					return a.finish(f, nil, err)
				}
				a.drain()

				fields, err := parseAssignments(e.Kind(), args[1:])
				if err != nil {
					return err
				}
				op, err := e.Create(ctx, fields)
				if err != nil {
					return a.finish(f, nil, err)
				}
				rec, err := op.Wait(ctx)
				if c, ok := engine.ConflictOf(err); ok {
					return resolveConflict(ctx, cmd, a, f, e, c, yes)
				}
				return a.finish(f, committed(rec, err), err)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "replace an existing record without asking")
	return cmd
}

func resolveConflict(ctx context.Context, cmd *cobra.Command, a *app, f *OutputFormatter, e *engine.Engine, c *engine.Conflict, yes bool) error {
	if !yes {
		ok, err := confirm(cmd.InOrStdin(), f.GetErrWriter(), c.Prompt())
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read answer", err)
		}
		if !ok {
			return a.finish(f, nil, nil)
		}
	}
	op, err := e.Resolve(ctx, c)
	if err != nil {
		return a.finish(f, nil, err)
	}
	rec, err := op.Wait(ctx)
	return a.finish(f, committed(rec, err), err)
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update <kind> <id|key> <field=value>...",
		Short: "Replace fields of a record",
		Long: `Update a record found by id or unique value. Fields not named keep
their current values.

Examples:
  listsync update contacts "Ada Lovelace" number=39-44-1111111
  listsync update contacts 2 number=39-44-1111111`,
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				f := rootOpts.formatter(cmd)
				e, err := a.engine(ctx, args[0])
				if err != nil {
					return a.finish(f, nil, err)
				}
				a.drain()

				cur, err := target(e, args[1])
				if err != nil {
					return err
				}
				changes, err := parseAssignments(e.Kind(), args[2:])
				if err != nil {
					return err
				}
				fields := cur.Fields.Clone()
				for name, v := range changes {
					fields[name] = v
				}

				op, err := e.Update(ctx, cur.ID, fields)
				if err != nil {
					return a.finish(f, nil, err)
				}
				rec, err := op.Wait(ctx)
				return a.finish(f, committed(rec, err), err)
			})
		},
	}
}

// NewRemoveCommand creates the remove command.
func NewRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "remove <kind> <id|key>",
		Short: "Delete a record",
		Long: `Delete a record found by id or unique value, after confirmation.

Examples:
  listsync remove contacts "Ada Lovelace"
  listsync remove blogs 3 --yes`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				f := rootOpts.formatter(cmd)
				e, err := a.engine(ctx, args[0])
				if err != nil {
					return a.finish(f, nil, err)
				}
				a.drain()

				cur, err := target(e, args[1])
				if err != nil {
					return err
				}
				if !yes {
					question := fmt.Sprintf("Remove %s?", cur.Fields.Text(e.Kind().UniqueField))
					ok, err := confirm(cmd.InOrStdin(), f.GetErrWriter(), question)
					if err != nil {
						return WrapExitError(ExitCommandError, "failed to read answer", err)
					}
					if !ok {
						return a.finish(f, nil, nil)
					}
				}

				op, err := e.Remove(ctx, cur.ID)
				if err != nil {
					return a.finish(f, nil, err)
				}
				rec, err := op.Wait(ctx)
				return a.finish(f, committed(rec, err), err)
			})
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "remove without asking")
	return cmd
}

// NewLikeCommand creates the like command.
func NewLikeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "like <kind> <id|key>",
		Short: "Increment a record's counter",
		Long: `Add one to the counter field of a record found by id or unique value.
Only kinds with a counter field (blogs) can be liked.

Example:
  listsync like blogs "Go Concurrency Patterns"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, a *app) error {
				f := rootOpts.formatter(cmd)
				e, err := a.engine(ctx, args[0])
				if err != nil {
					return a.finish(f, nil, err)
				}
				a.drain()

				cur, err := target(e, args[1])
				if err != nil {
					return err
				}
				op, err := e.Like(ctx, cur.ID)
				if err != nil {
					return a.finish(f, nil, err)
				}
				rec, err := op.Wait(ctx)
				return a.finish(f, committed(rec, err), err)
			})
		},
	}
}

func committed(rec record.Record, err error) *record.Record {
	if err != nil || rec.ID == "" {
		return nil
	}
	return &rec
}
