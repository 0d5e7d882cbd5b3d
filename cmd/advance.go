package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonpath/internal/progression"
)

var advanceCmd = &cobra.Command{
	Use:   "advance <username>",
	Short: "Unlock the next lesson for a user who has a correct streak",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.Progression.Advance(cmd.Context(), progression.ByUsername(args[0]))
		if err != nil {
			return err
		}
		if u.ActiveLesson != nil {
			fmt.Printf("%s advanced to lesson %d\n", u.Username, *u.ActiveLesson)
		}
		fmt.Printf("Unlocked: %v\n", u.Lessons)
		return nil
	},
}
