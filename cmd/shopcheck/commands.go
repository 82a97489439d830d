package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/scenarios"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/task"
)

const (
	listCommandUse          = "list [patterns...]"
	listCommandShort        = "Print the scenario catalogue"
	runCommandUse           = "run [patterns...]"
	runCommandShort         = "Run the selected scenarios once"
	runCommandLong          = "Run the scenarios matching the patterns (name, group, name prefix or glob); no pattern runs everything"
	monitorCommandUse       = "monitor [patterns...]"
	monitorCommandShort     = "Rerun the selected scenarios on an interval until interrupted"
	flagNameInterval        = "interval"
	flagNamePasses          = "passes"
	flagUsageInterval       = "time between the start of one pass and the next"
	flagUsagePasses         = "stop after this many passes; 0 runs until interrupted"
	defaultMonitorInterval  = 5 * time.Minute
	emptySelectionMessage   = "no scenario matches"
	summaryFormat           = "%d passed, %d failed, %d skipped in %s\n"
	monitorPassHeaderFormat = "pass %d\n"
)

// ErrCasesFailed is returned by run when at least one case failed.
var ErrCasesFailed = errors.New("shopcheck: cases failed")

func (application *CheckApplication) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   listCommandUse,
		Short: listCommandShort,
		RunE: func(command *cobra.Command, arguments []string) error {
			selected, selectErr := selectScenarios(arguments)
			if selectErr != nil {
				return selectErr
			}
			writer := tabwriter.NewWriter(command.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, scenario := range selected {
				fmt.Fprintf(writer, "%s\t%s\n", scenario.Group, scenario.Name)
			}
			return writer.Flush()
		},
	}
}

func (application *CheckApplication) runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   runCommandUse,
		Short: runCommandShort,
		Long:  runCommandLong,
		RunE: func(command *cobra.Command, arguments []string) error {
			selected, selectErr := selectScenarios(arguments)
			if selectErr != nil {
				return selectErr
			}
			environment, prepareErr := application.prepare(command)
			if prepareErr != nil {
				return prepareErr
			}
			defer environment.close()

			ctx, cancel := interruptibleContext(command.Context())
			defer cancel()

			tally := environment.runPass(ctx, selected, 1)
			writeResults(command.OutOrStdout(), tally)
			if tally.failed > 0 {
				return fmt.Errorf("%w: %d of %d", ErrCasesFailed, tally.failed, len(tally.results))
			}
			return nil
		},
	}
}

func (application *CheckApplication) monitorCommand() *cobra.Command {
	command := &cobra.Command{
		Use:   monitorCommandUse,
		Short: monitorCommandShort,
		RunE: func(command *cobra.Command, arguments []string) error {
			selected, selectErr := selectScenarios(arguments)
			if selectErr != nil {
				return selectErr
			}
			interval, _ := command.Flags().GetDuration(flagNameInterval)
			passes, _ := command.Flags().GetInt(flagNamePasses)

			environment, prepareErr := application.prepare(command)
			if prepareErr != nil {
				return prepareErr
			}
			defer environment.close()

			ctx, cancel := interruptibleContext(command.Context())
			defer cancel()

			output := command.OutOrStdout()
			repeater := task.NewRepeater(interval, passes, func(passContext context.Context, pass int) {
				tally := environment.runPass(passContext, selected, pass)
				fmt.Fprintf(output, monitorPassHeaderFormat, pass)
				writeResults(output, tally)
			})
			repeater.Start(ctx)
			select {
			case <-ctx.Done():
			case <-repeater.Done():
			}
			repeater.Stop()
			return nil
		},
	}
	command.Flags().Duration(flagNameInterval, defaultMonitorInterval, flagUsageInterval)
	command.Flags().Int(flagNamePasses, 0, flagUsagePasses)
	return command
}

func selectScenarios(patterns []string) ([]harness.Scenario, error) {
	selected, selectErr := scenarios.Select(patterns)
	if selectErr != nil {
		return nil, selectErr
	}
	if len(selected) == 0 {
		return nil, fmt.Errorf("%s: %s", emptySelectionMessage, strings.Join(patterns, " "))
	}
	return selected, nil
}

type passTally struct {
	results []harness.Result
	passed  int
	failed  int
	skipped int
	elapsed time.Duration
}

func tallyResults(results []harness.Result, elapsed time.Duration) passTally {
	return passTally{
		results: results,
		passed:  lo.CountBy(results, func(result harness.Result) bool { return result.Outcome == harness.OutcomePassed }),
		failed:  lo.CountBy(results, func(result harness.Result) bool { return result.Outcome == harness.OutcomeFailed }),
		skipped: lo.CountBy(results, func(result harness.Result) bool { return result.Outcome == harness.OutcomeSkipped }),
		elapsed: elapsed,
	}
}

func (environment *checkEnvironment) runPass(ctx context.Context, selected []harness.Scenario, pass int) passTally {
	environment.logger.Info(logEventRunStarted,
		zap.Int(logFieldPass, pass),
		zap.Int(logFieldCases, len(selected)),
		zap.Int(logFieldWorkers, environment.config.Workers))
	startedAt := time.Now()
	tally := tallyResults(environment.runner.RunAll(ctx, selected), time.Since(startedAt))
	environment.logger.Info(logEventRunFinished,
		zap.Int(logFieldPass, pass),
		zap.Int(logFieldPassed, tally.passed),
		zap.Int(logFieldFailed, tally.failed),
		zap.Int(logFieldSkipped, tally.skipped))
	return tally
}

// writeResults prints one line per case, the failure detail and artifacts under it, and
// a summary line.
func writeResults(output io.Writer, tally passTally) {
	writer := tabwriter.NewWriter(output, 0, 4, 2, ' ', 0)
	for _, result := range tally.results {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", strings.ToUpper(string(result.Outcome)), result.Name, result.Duration.Round(time.Millisecond))
		if result.Outcome == harness.OutcomePassed {
			continue
		}
		if result.Err != nil {
			fmt.Fprintf(writer, "\t  %s: %v\t\n", result.Kind, result.Err)
		}
		for _, artifact := range lo.Compact([]string{result.Diagnostics.HTMLPath, result.Diagnostics.ScreenshotPath}) {
			fmt.Fprintf(writer, "\t  %s\t\n", artifact)
		}
	}
	_ = writer.Flush()
	fmt.Fprintf(output, summaryFormat, tally.passed, tally.failed, tally.skipped, tally.elapsed.Round(time.Millisecond))
}
