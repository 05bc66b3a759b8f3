package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/MrWong99/scribe/internal/project"
	"github.com/MrWong99/scribe/pkg/transcript"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	severeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
)

// reviewReport is the --json output of the review command.
type reviewReport struct {
	Document  string               `json:"document"`
	Threshold float64              `json:"threshold"`
	Words     int                  `json:"words"`
	Flagged   []transcript.Flagged `json:"flagged"`
}

func newReviewCmd(env *environment, f *rootFlags) *cobra.Command {
	var (
		jsonOutput bool
		threshold  float64
	)

	cmd := &cobra.Command{
		Use:   "review <projectDir|transcript.json>",
		Short: "List words whose confidence is below the review threshold",
		Long: "List words whose confidence is below the review threshold. Words without a\n" +
			"confidence are never flagged.",
		Args: exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("threshold") {
				threshold = cfg.Review.ConfidenceThreshold
			}

			path, err := documentPath(args[0])
			if err != nil {
				return err
			}
			doc, err := transcript.ReadFile(path)
			if err != nil {
				return err
			}

			report := reviewReport{
				Document:  path,
				Threshold: threshold,
				Words:     transcript.Summarize(doc).Words,
				Flagged:   transcript.LowConfidence(doc, threshold),
			}
			if jsonOutput {
				if report.Flagged == nil {
					report.Flagged = []transcript.Flagged{}
				}
				data, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return fmt.Errorf("marshal report: %w", err)
				}
				fmt.Fprintln(env.stdout, string(data))
				return nil
			}
			printReview(env.stdout, doc, report)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output the report as JSON")
	cmd.Flags().Float64Var(&threshold, "threshold", transcript.DefaultConfidenceThreshold, "confidence below which words are flagged (default from review.confidence_threshold)")
	return cmd
}

// documentPath accepts a project directory or the document itself.
func documentPath(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return filepath.Join(arg, project.DocumentName), nil
	}
	return arg, nil
}

func printReview(w io.Writer, doc *transcript.Document, r reviewReport) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%d of %d words below confidence %.2f", len(r.Flagged), r.Words, r.Threshold)))
	fmt.Fprintln(w, mutedStyle.Render(r.Document))
	for _, fl := range r.Flagged {
		style := warnStyle
		if *fl.Word.Confidence < r.Threshold/2 {
			style = severeStyle
		}
		seg := doc.Transcription[fl.Segment]
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			mutedStyle.Render(fmt.Sprintf("seg %3d", fl.Segment)),
			mutedStyle.Render(span(fl.Word.Start, fl.Word.End)),
			style.Render(fmt.Sprintf("%.2f", *fl.Word.Confidence)),
			fl.Word.Word,
		)
		if seg.Sentence != "" {
			fmt.Fprintf(w, "      %s\n", mutedStyle.Render(seg.Sentence))
		}
	}
}

func span(start, end *float64) string {
	return seconds(start) + " - " + seconds(end)
}

func seconds(v *float64) string {
	if v == nil {
		return "    ?  "
	}
	return fmt.Sprintf("%7.2fs", *v)
}
