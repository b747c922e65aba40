// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// buildop-demo exercises the operation executor and the grouped output
// pipeline end to end: it runs a synthetic CONFIGURE_PROJECT operation
// followed by a batch of TASK operations, with every log line and
// progress event flowing through a GroupingPipeline on its way to a
// terminal renderer and, optionally, compressed log segments on disk.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bureau/lib/buildlog"
	"github.com/bureau-foundation/bureau/lib/buildop"
	"github.com/bureau-foundation/bureau/lib/buildrender"
	"github.com/bureau-foundation/bureau/lib/clock"
	"github.com/bureau-foundation/bureau/lib/outputgroup"
	"github.com/bureau-foundation/bureau/lib/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "buildop-demo: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var workers int
	var logDir string
	var failTask string

	flagSet := pflag.NewFlagSet("buildop-demo", pflag.ContinueOnError)
	flagSet.IntVar(&workers, "workers", 4, "maximum number of tasks to run concurrently")
	flagSet.StringVar(&logDir, "log-dir", "", "directory to persist compressed log segments into (disabled if empty)")
	flagSet.StringVar(&failTask, "fail-task", "", "name of a synthetic task to make fail, for exercising failure grouping")
	help := flagSet.BoolP("help", "h", false, "show help")

	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Println(version.Info())
		return nil
	}

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			flagSet.PrintDefaults()
			return nil
		}
		return err
	}
	if *help {
		flagSet.PrintDefaults()
		return nil
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	renderer := buildrender.New(os.Stdout)

	downstream := outputgroup.Downstream(renderer)
	var writer *buildlog.Writer
	if logDir != "" {
		var err error
		writer, err = buildlog.NewWriter(logDir, logger)
		if err != nil {
			return fmt.Errorf("creating log segment writer: %w", err)
		}
		defer writer.Close()
		downstream = outputgroup.Tee(renderer, writer)
	}

	pipeline := outputgroup.NewGroupingPipeline(downstream, logger)
	listener := outputgroup.NewBatchListener(pipeline)

	executor := buildop.New(listener, clock.Real(), logger, nil, workers)

	ctx, err := executor.NewRootContext(context.Background())
	if err != nil {
		return fmt.Errorf("creating root context: %w", err)
	}

	configure := buildop.NewFuncOperation("Configure project :demo", func(ctx context.Context, opCtx *buildop.Context) error {
		time.Sleep(50 * time.Millisecond)
		return nil
	})
	configure.Builder.OfType(buildop.ConfigureProject).WithProgressDisplayName("Configuring")

	if err := executor.Run(ctx, configure); err != nil {
		pipeline.OnEvent(outputgroup.EndOutputEvent{})
		return fmt.Errorf("configuring project: %w", err)
	}

	taskNames := []string{"compileJava", "processResources", "test", "jar", "assemble"}

	err = executor.RunAll(ctx, func(queue *buildop.Queue) error {
		for _, name := range taskNames {
			name := name
			queue.Enqueue(newDemoTask(executor, pipeline, name, name == failTask))
		}
		return nil
	})

	pipeline.OnEvent(outputgroup.EndOutputEvent{})

	if err != nil {
		return fmt.Errorf("running tasks: %w", err)
	}
	return nil
}

// newDemoTask builds a synthetic TASK operation that logs a handful of
// info-level lines, simulating a compiler or test runner's output, and
// optionally fails after logging them. Each log line carries the
// currently running operation's id, so the pipeline groups it beneath this
// task's header regardless of which pool worker happens to run it.
func newDemoTask(executor *buildop.Executor, pipeline *outputgroup.GroupingPipeline, name string, shouldFail bool) *buildop.FuncOperation {
	op := buildop.NewFuncOperation(fmt.Sprintf("Execute :%s", name), func(ctx context.Context, opCtx *buildop.Context) error {
		state, err := executor.GetCurrentOperation(ctx)
		if err != nil {
			return err
		}
		id := state.ID()

		for _, line := range demoLines(name) {
			time.Sleep(time.Duration(10+rand.Intn(30)) * time.Millisecond)
			pipeline.OnEvent(outputgroup.LogEvent{
				Timestamp:        time.Now(),
				Category:         "build",
				Level:            outputgroup.LevelInfo,
				Message:          line,
				BuildOperationID: &id,
			})
		}
		if shouldFail {
			return fmt.Errorf("%s: simulated failure", name)
		}
		return nil
	})
	op.Builder.OfType(buildop.Task).WithProgressDisplayName(name)
	return op
}

func demoLines(name string) []string {
	return []string{
		fmt.Sprintf("> Task :%s", name),
		fmt.Sprintf("%s: starting", name),
		fmt.Sprintf("%s: done", name),
	}
}
