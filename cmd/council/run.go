package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ai-notetaking-be/internal/bootstrap"
	"ai-notetaking-be/internal/config"
)

func newRunCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "run [prompt]",
		Short: "Run a single deliberation over one prompt and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(args[0], jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the raw assistant message as JSON instead of a formatted summary")

	return cmd
}

func runOnce(prompt string, jsonOut bool) error {
	cfg := config.Load()

	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("build council container: %w", err)
	}
	defer func() { _ = container.Logger.Sync() }()

	ctx := context.Background()
	conv, err := container.Store.Create(ctx)
	if err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}

	color.Cyan("council deliberating over: %s", prompt)

	msg, err := container.Orchestrator.Run(ctx, conv.ID, prompt)
	if err != nil {
		return fmt.Errorf("run deliberation: %w", err)
	}

	if jsonOut {
		out, err := json.MarshalIndent(msg, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	printSummary(msg)
	return nil
}
