package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <username>",
	Short: "Show the most recent attempt per lesson for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rows, err := a.Progression.LastAttempts(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			fmt.Println("No attempts recorded.")
			return nil
		}

		fmt.Printf("%-8s  %s\n", "Lesson", "Last attempt (UTC)")
		fmt.Println(strings.Repeat("─", 40))
		for _, r := range rows {
			fmt.Printf("%-8d  %s\n", r.LessonID, r.LastAttemptUTC.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}
