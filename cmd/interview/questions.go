package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Bill1907/prepup/internal/questions"
)

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "List generated interview questions",
	RunE:  runQuestions,
}

var bookmarkCmd = &cobra.Command{
	Use:   "bookmark <question-id>",
	Short: "Toggle the bookmark on a question",
	Args:  cobra.ExactArgs(1),
	RunE:  runBookmark,
}

var (
	questionsResumeID   string
	questionsCategory   string
	questionsBookmarked bool
)

func init() {
	questionsCmd.Flags().StringVar(&questionsResumeID, "resume", "", "only questions generated from this resume")
	questionsCmd.Flags().StringVar(&questionsCategory, "category", "", "filter by category")
	questionsCmd.Flags().BoolVar(&questionsBookmarked, "bookmarked", false, "only bookmarked questions")

	rootCmd.AddCommand(questionsCmd, bookmarkCmd)
}

func runQuestions(cmd *cobra.Command, _ []string) error {
	authorize, err := authorizer()
	if err != nil {
		return err
	}
	list, err := newAPIClient(apiBaseURL, authorize).listQuestions(cmd.Context(), questionFilter{
		ResumeID:   questionsResumeID,
		Category:   questionsCategory,
		Bookmarked: questionsBookmarked,
	})
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	printQuestions(cmd.OutOrStdout(), list)
	return nil
}

func runBookmark(cmd *cobra.Command, args []string) error {
	authorize, err := authorizer()
	if err != nil {
		return err
	}
	q, err := newAPIClient(apiBaseURL, authorize).toggleBookmark(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("toggle bookmark: %w", err)
	}
	state := "removed"
	if q.IsBookmarked {
		state = "added"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "bookmark %s: %s\n", state, q.Question)
	return nil
}

func printQuestions(w io.Writer, list []questions.Question) {
	if len(list) == 0 {
		fmt.Fprintln(w, "no questions yet")
		return
	}
	for _, q := range list {
		mark := " "
		if q.IsBookmarked {
			mark = "*"
		}
		var tags []string
		if q.Category != "" {
			tags = append(tags, q.Category)
		}
		if q.Difficulty != "" {
			tags = append(tags, q.Difficulty)
		}
		label := ""
		if len(tags) > 0 {
			label = " [" + strings.Join(tags, ", ") + "]"
		}
		fmt.Fprintf(w, "%s %s%s\n    %s\n", mark, q.ID, label, q.Question)
	}
}
