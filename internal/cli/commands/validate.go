package commands

import (
	"errors"

	"github.com/leapstack-labs/leapscale/internal/cli/output"
	"github.com/leapstack-labs/leapscale/internal/propagate"
	"github.com/spf13/cobra"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check a lineage table without propagating",
		Long: `Check that the input is a well-formed lineage table.

A table is valid when every row has an id, ids are unique, every lineage
entry names another row, the lineage graph has no cycles, and every
override sits on a row with a non-zero finite value.

Exits non-zero when the table is invalid.`,
		Example: `  # Validate a file
  leapscale validate -i nodes.csv

  # Machine-readable result
  leapscale validate -i nodes.csv -o json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runValidate(cmd)
		},
	}
}

func runValidate(cmd *cobra.Command) error {
	cc := NewCommandContext(cmd)
	r := cc.Renderer

	res := output.ValidateOutput{Valid: true}
	t, err := cc.LoadTable(cmd.Context())
	if err == nil {
		res.Rows = t.Len()
		res.Overrides = len(propagate.IndexOverrides(t))
		err = propagate.Validate(t)
	}
	if err != nil {
		var typed *propagate.MissingColumnError
		var graph *propagate.InvalidGraphError
		if !errors.As(err, &typed) && !errors.As(err, &graph) {
			// I/O and decode failures are not validation results.
			return err
		}
		res.Valid = false
		res.Error = &output.ErrorDetail{Code: errorCode(err), Message: err.Error()}
	}

	ok, werr := r.Structured(res)
	if werr != nil {
		return werr
	}
	if !ok {
		if res.Valid {
			r.Success(r.Sprintf("Lineage table is valid (%d rows, %d overrides)", res.Rows, res.Overrides))
		} else {
			r.Warning("Lineage table is invalid")
		}
	}
	return err
}

// errorCode returns the machine-readable code for a propagation error.
func errorCode(err error) string {
	switch {
	case errors.Is(err, propagate.ErrInvalidGraph):
		return "invalid_graph"
	case errors.Is(err, propagate.ErrMissingColumn):
		return "missing_column"
	}
	return "error"
}
