package cmd

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <problem-id> <submission>",
	Short: "Judge a submission against a problem without recording it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		problemID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid problem id %q: %w", args[0], err)
		}

		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		v, err := a.Validator.Judge(cmd.Context(), problemID, args[1])
		if err != nil {
			return err
		}

		verdict := "rejected"
		if v.OK {
			verdict = "accepted"
		}
		fmt.Printf("Verdict: %s\n", verdict)
		fmt.Printf("Stage:   %s\n", v.Stage)
		if v.Error != nil {
			fmt.Printf("Error:   %s\n", *v.Error)
		}
		if len(v.Details) > 0 {
			details, err := json.MarshalIndent(v.Details, "", "  ")
			if err != nil {
				return err
			}
			fmt.Printf("Details:\n%s\n", details)
		}
		return nil
	},
}
