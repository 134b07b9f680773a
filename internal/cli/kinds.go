package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/listsync/internal/schema"
)

// NewKindsCommand creates the kinds command.
func NewKindsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "kinds [file.cue]",
		Short: "Show resource kind definitions",
		Long: `Compile and print resource kinds.

With no argument the configured kinds file is used, or the built-in
contacts and blogs kinds when none is configured. A definition error is
reported with its CUE position and exit code 2.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			} else {
				cfg, err := rootOpts.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Kinds
			}

			kinds, err := loadKinds(path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load kinds", err)
			}

			f := rootOpts.formatter(cmd)
			if f.Format == "json" {
				return f.Success(kinds)
			}
			rows := make([][]string, len(kinds))
			for i, k := range kinds {
				rows[i] = []string{k.Name, k.Path, k.UniqueField, authText(k), fieldList(k)}
			}
			return f.Table([]string{"KIND", "PATH", "UNIQUE", "AUTH", "FIELDS"}, rows)
		},
	}
}

func authText(k schema.Kind) string {
	if k.RequiresAuth {
		return "yes"
	}
	return "no"
}

// fieldList renders fields as name:type, with ? marking optional ones.
func fieldList(k schema.Kind) string {
	parts := make([]string, len(k.Fields))
	for i, fd := range k.Fields {
		opt := ""
		if fd.Optional {
			opt = "?"
		}
		parts[i] = fmt.Sprintf("%s%s:%s", fd.Name, opt, fd.Type)
	}
	return strings.Join(parts, " ")
}
