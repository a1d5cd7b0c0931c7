package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"sdaasverify/internal/manifest"
)

type jsonFailure struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type jsonVectors struct {
	OK       bool                     `json:"ok"`
	Command  string                   `json:"command"`
	Passed   int                      `json:"passed"`
	Failed   int                      `json:"failed"`
	Failures []manifest.VectorFailure `json:"failures,omitempty"`
	Error    *jsonFailure             `json:"error,omitempty"`
}

// Vectors creates the vectors command.
func Vectors() *cobra.Command {
	var jsonOut, pretty bool

	cmd := &cobra.Command{
		Use:   "vectors DIR",
		Short: "Run the golden vectors in DIR/vectors.json.",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := manifest.VerifyVectorsDir(args[0])
			if jsonOut {
				out := jsonVectors{OK: err == nil, Command: "vectors", Passed: res.Passed, Failed: res.Failed, Failures: res.Failures}
				if err != nil {
					out.Error = &jsonFailure{Code: manifest.CodeOf(err), Detail: err.Error()}
				}
				if werr := writeJSON(cmd.OutOrStdout(), pretty, out); werr != nil {
					return werr
				}
				if err != nil {
					return &ExitError{Code: 1}
				}
				return nil
			}
			if err != nil {
				for _, f := range res.Failures {
					cmd.PrintErrf("FAIL %s (%s): %s: %s\n", f.Name, f.Type, f.Code, f.Detail)
				}
				return &ExitError{Code: 1, Err: fmt.Errorf("%w (passed=%d failed=%d)", err, res.Passed, res.Failed)}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: passed=%d failed=%d\n", res.Passed, res.Failed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the result as JSON")
	cmd.Flags().BoolVar(&pretty, "pretty", false, "indent JSON output")
	return cmd
}
