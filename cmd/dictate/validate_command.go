package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"radpad-intake-service/internal/dictation"
	"radpad-intake-service/internal/models"
	"radpad-intake-service/internal/service/workflow"
)

type validateOptions struct {
	file          string
	clarification string
	override      bool
	accept        bool
}

func newValidateCommand(ctx *commandContext) *cobra.Command {
	var opts validateOptions

	cmd := &cobra.Command{
		Use:   "validate [text...]",
		Short: "Submit dictation text for validation",
		Long: `Submit dictation text to the validator. Text is taken from the arguments,
from --file, or from stdin when neither is given. With --override a rejected
dictation is resubmitted as an override.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			text, err := readDictation(cmd.InOrStdin(), opts.file, args)
			if err != nil {
				return err
			}

			s, err := openSession(cmd.Context(), cfg, uuid.NewString())
			if err != nil {
				return err
			}
			defer s.Close()

			buf := dictation.NewBuffer()
			buf.Replace(text)
			return runValidation(cmd.Context(), cmd.OutOrStdout(), s.workflow, buf, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read dictation from a file")
	addValidationFlags(cmd, &opts)
	return cmd
}

func addValidationFlags(cmd *cobra.Command, opts *validateOptions) {
	cmd.Flags().StringVar(&opts.clarification, "clarify", "", "Clarification appended and resubmitted when the dictation needs revision")
	cmd.Flags().BoolVar(&opts.override, "override", false, "Resubmit as an override when the dictation still needs revision")
	cmd.Flags().BoolVar(&opts.accept, "accept", true, "Advance to signature once validated")
}

func readDictation(stdin io.Reader, file string, args []string) (string, error) {
	switch {
	case len(args) > 0:
		return strings.Join(args, " "), nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read dictation: %w", err)
		}
		return string(b), nil
	default:
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read dictation: %w", err)
		}
		return string(b), nil
	}
}

// runValidation submits the buffer. A rejection is retried once with the
// clarification appended, then optionally overridden. A validated dictation
// is accepted for signature.
func runValidation(ctx context.Context, out io.Writer, wf *workflow.Workflow, buf *dictation.Buffer, opts validateOptions) error {
	res, err := wf.Submit(ctx, buf.Text(), false)
	if err != nil {
		return describeSubmitError(out, wf, err)
	}
	printAttempt(out, res)

	if res.State == workflow.StateDictation && strings.TrimSpace(opts.clarification) != "" {
		buf.AppendClarification()
		buf.AppendSegment(opts.clarification)
		fmt.Fprintf(out, "Resubmitting with clarification (%d characters)...\n", buf.CharacterCount())
		res, err = wf.Submit(ctx, buf.Text(), false)
		if err != nil {
			return describeSubmitError(out, wf, err)
		}
		printAttempt(out, res)
	}

	if res.State == workflow.StateDictation {
		if !opts.override {
			fmt.Fprintln(out, "Dictation needs revision. Re-run with --override to submit anyway.")
			return nil
		}
		fmt.Fprintln(out, "Submitting override...")
		res, err = wf.Submit(ctx, buf.Text(), true)
		if err != nil {
			return describeSubmitError(out, wf, err)
		}
		printAttempt(out, res)
	}

	if !opts.accept {
		return nil
	}
	if err := wf.AcceptAndAdvance(ctx); err != nil {
		return err
	}
	fmt.Fprintln(out, "Ready for signature.")
	return nil
}

func printAttempt(out io.Writer, res *workflow.Result) {
	a := res.Attempt
	label := "Attempt"
	if a.IsOverride {
		label = "Override"
	}
	fmt.Fprintf(out, "%s %d: %s (score %.1f), %d credits left\n", label, a.Index+1, a.Verdict, a.ComplianceScore, res.CreditsRemaining)
	if a.Feedback != "" {
		fmt.Fprintf(out, "  Feedback: %s\n", a.Feedback)
	}
	for _, c := range a.SuggestedCodes {
		fmt.Fprintf(out, "  %-6s %-8s %s\n", c.System, c.Code, c.Description)
	}
}

func describeSubmitError(out io.Writer, wf *workflow.Workflow, err error) error {
	switch models.KindOf(err) {
	case models.KindInsufficientInput:
		fmt.Fprintln(out, "Dictation is too short to validate.")
	case models.KindCreditsExhausted:
		fmt.Fprintln(out, "No validation credits remaining.")
	case models.KindValidationUnavailable, models.KindServerRejectedFormat:
		if fb := wf.Feedback(); fb != "" {
			fmt.Fprintln(out, fb)
		}
	}
	return fmt.Errorf("validation: %w", err)
}
