package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pavelanni/mocktest/internal/attempt"
	"github.com/pavelanni/mocktest/internal/catalog"
	appI18n "github.com/pavelanni/mocktest/internal/i18n"
	"github.com/pavelanni/mocktest/internal/llm"
	"github.com/pavelanni/mocktest/internal/llm/prompts"
	"github.com/pavelanni/mocktest/internal/model"
	"github.com/pavelanni/mocktest/internal/review"
	"github.com/pavelanni/mocktest/internal/syllabus"
	"github.com/pavelanni/mocktest/internal/tui"
)

func testsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tests",
		Short: "List mock tests with your latest results",
		RunE:  runTests,
	}
	cmd.Flags().Bool("subject", false, "List subject-wise tests instead of full-length ones")
	return cmd
}

func takeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "take <test-id>",
		Short: "Open the instructions of a test, or continue it if it is in progress",
		Args:  cobra.ExactArgs(1),
		RunE:  runTake,
	}
}

func previewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preview <result-id>",
		Short: "Review a graded result",
		Args:  cobra.ExactArgs(1),
		RunE:  runPreview,
	}
	f := cmd.Flags()
	f.Bool("json", false, "Print the result as JSON instead of opening the review screen")
	f.String("html", "", "Write an HTML report to this file")
	f.String("image-url", "", "Base URL for question images in the HTML report (defaults to --api-url)")
	f.Bool("explain", false, "Ask the LLM to explain wrongly answered questions")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("explain-variant", string(prompts.PromptStandard), "Explanation length (brief, standard, detailed)")
	return cmd
}

func abandonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "abandon",
		Short: "Discard the test in progress without submitting it",
		RunE:  runAbandon,
	}
}

func syllabusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "syllabus [exam]",
		Short: "Show the exam pattern and syllabus",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSyllabus,
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func runTests(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd, false)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.requireSession(); err != nil {
		return err
	}
	kind := model.KindFull
	if c.v.GetBool("subject") {
		kind = model.KindSubject
	}
	entries, err := catalog.New(c.api).Load(c.ctx, kind)
	if err != nil {
		return err
	}

	fmt.Println(appI18n.Tp(c.ctx, "TestsCount", len(entries)))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMINUTES\tQUESTIONS\tRESULT")
	for _, e := range entries {
		res := appI18n.T(c.ctx, "NotAttempted")
		if e.Result != nil {
			res = fmt.Sprintf("#%d %s", e.Result.ID, appI18n.Td(c.ctx, "ResultLine", map[string]any{
				"Score":      strconv.FormatFloat(e.Result.Score, 'f', -1, 64),
				"Percentage": strconv.FormatFloat(float64(e.Result.Percentage), 'f', -1, 64),
			}))
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", e.Test.ID, e.Test.Name,
			int(e.Test.Duration().Minutes()), e.Test.TotalQuestions, res)
	}
	return tw.Flush()
}

// findTest looks a test up in both listings.
func findTest(c *client, id int64) (model.MockTest, error) {
	for _, kind := range []model.TestKind{model.KindFull, model.KindSubject} {
		tests, err := c.api.ListTests(c.ctx, kind)
		if err != nil {
			return model.MockTest{}, err
		}
		for _, t := range tests {
			if t.ID == id {
				return t, nil
			}
		}
	}
	return model.MockTest{}, fmt.Errorf("test %d not found", id)
}

func runTake(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	c, err := openClient(cmd, true)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.requireSession(); err != nil {
		return err
	}
	opts := c.tuiOptions()
	if a, err := c.tracker.Current(); err == nil && a.TestID == id {
		opts.Resume = true
		return tui.Run(c.ctx, opts)
	}
	test, err := findTest(c, id)
	if err != nil {
		return err
	}
	opts.StartTest = &test
	return tui.Run(c.ctx, opts)
}

func newExplainer(c *client) (*llm.Client, error) {
	variant := strings.ToLower(strings.TrimSpace(c.v.GetString("explain-variant")))
	if !prompts.IsValidVariant(variant) {
		variant = string(prompts.PromptStandard)
	}
	ex, err := llm.New(c.v.GetString("llm-url"), c.v.GetString("llm-key"), c.v.GetString("llm-model"),
		llm.WithVariant(prompts.PromptVariant(variant)))
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	if err := ex.Ping(c.ctx); err != nil {
		return nil, fmt.Errorf("LLM health check: %w", err)
	}
	return ex, nil
}

func runPreview(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	v := viperForCmd(cmd)
	interactive := !v.GetBool("json") && v.GetString("html") == ""
	c, err := openClient(cmd, interactive)
	if err != nil {
		return err
	}
	defer c.Close()

	if _, err := c.requireSession(); err != nil {
		return err
	}

	var ex review.Explainer
	if c.v.GetBool("explain") {
		llmClient, err := newExplainer(c)
		if err != nil {
			return err
		}
		ex = llmClient
	}

	if interactive {
		opts := c.tuiOptions()
		opts.StartResult = id
		opts.Explainer = ex
		return tui.Run(c.ctx, opts)
	}

	p, err := review.Load(c.ctx, c.api, id)
	if err != nil {
		return err
	}
	if ex != nil {
		n := p.FillExplanations(c.ctx, ex)
		fmt.Fprintln(os.Stderr, appI18n.Tp(c.ctx, "ExplanationsAdded", n))
	}

	testName := ""
	if t, err := findTest(c, p.Result().MockTestID); err == nil {
		testName = t.Name
	}

	if path := c.v.GetString("html"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		imageURL := c.v.GetString("image-url")
		if imageURL == "" {
			imageURL = c.v.GetString("api-url")
		}
		err = review.WriteHTML(c.ctx, f, p, review.ReportOptions{Title: testName, ImageURL: imageURL})
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("write report: %w", err)
		}
		fmt.Fprintln(os.Stderr, appI18n.Td(c.ctx, "ReportWritten", map[string]any{"Path": path}))
	}

	if c.v.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(p.Export(testName)); err != nil {
			return fmt.Errorf("write JSON: %w", err)
		}
	}
	return nil
}

func runAbandon(cmd *cobra.Command, _ []string) error {
	c, err := openClient(cmd, false)
	if err != nil {
		return err
	}
	defer c.Close()

	a, err := c.tracker.Current()
	if errors.Is(err, attempt.ErrNoAttempt) {
		fmt.Println(appI18n.T(c.ctx, "NoActiveAttempt"))
		return nil
	}
	if err != nil {
		return err
	}
	if err := c.tracker.Abandon(); err != nil {
		return err
	}
	fmt.Println(appI18n.Td(c.ctx, "AttemptAbandoned", map[string]any{"Name": a.TestName}))
	return nil
}

func runSyllabus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		for _, name := range syllabus.Names() {
			fmt.Println(name)
		}
		return nil
	}
	exam, err := syllabus.Lookup(args[0])
	if err != nil {
		return err
	}

	fmt.Println(exam.Name)
	fmt.Println(strings.Repeat("=", len(exam.Name)))
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, d := range exam.Details {
		fmt.Fprintf(tw, "%s\t%s\n", d.Label, d.Value)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printPattern("Prelims", exam.PrelimsPattern)
	printPattern("Mains", exam.MainsPattern)
	printSubjects("Prelims syllabus", exam.PrelimsSyllabus)
	printSubjects("Mains syllabus", exam.MainsSyllabus)
	if exam.Interview != "" {
		fmt.Printf("\nInterview\n  %s\n", exam.Interview)
	}
	return nil
}

func printPattern(title string, rows []syllabus.PatternRow) {
	if len(rows) == 0 {
		return
	}
	fmt.Printf("\n%s\n", title)
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  SUBJECT\tQUESTIONS\tMARKS\tDURATION")
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%s\n", r.Subject, r.Questions, r.Marks, r.Duration)
	}
	q, m := syllabus.Totals(rows)
	fmt.Fprintf(tw, "  Total\t%d\t%d\t\n", q, m)
	_ = tw.Flush()
}

func printSubjects(title string, subjects []syllabus.Subject) {
	if len(subjects) == 0 {
		return
	}
	fmt.Printf("\n%s\n", title)
	for _, s := range subjects {
		fmt.Printf("  %s\n", s.Subject)
		for _, t := range s.Topics {
			fmt.Printf("    - %s\n", t)
		}
	}
}
