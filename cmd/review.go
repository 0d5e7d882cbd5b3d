package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/abhisek/lessonpath/internal/spacedrep"
)

var reviewCmd = &cobra.Command{
	Use:   "review <username>",
	Short: "Show the lesson a user should review next",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		rs, err := a.Progression.NextReview(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if rs == nil {
			fmt.Println("Nothing to review.")
			return nil
		}
		status := spacedrep.Status(rs, time.Now())
		fmt.Printf("Lesson:  %d\n", rs.LessonID)
		fmt.Printf("Box:     %d of %d\n", rs.Box, spacedrep.MaxBox)
		fmt.Printf("Due:     %s (%s)\n", rs.DueAt.Local().Format("2006-01-02 15:04:05"), status)
		return nil
	},
}
