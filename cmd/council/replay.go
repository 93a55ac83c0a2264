package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"ai-notetaking-be/internal/bootstrap"
	"ai-notetaking-be/internal/config"
	"ai-notetaking-be/pkg/council"
)

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay [conversation-id]",
		Short: "Print a previously persisted conversation's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return replay(args[0])
		},
	}
}

func replay(cid string) error {
	cfg := config.Load()

	container, err := bootstrap.NewContainer(cfg)
	if err != nil {
		return fmt.Errorf("build council container: %w", err)
	}

	conv, err := container.Store.Load(context.Background(), cid)
	if err != nil {
		return fmt.Errorf("load conversation: %w", err)
	}
	if conv == nil {
		return fmt.Errorf("conversation %q not found", cid)
	}

	bold := color.New(color.Bold)
	bold.Printf("conversation %s — %q\n", conv.ID, conv.Title)

	for _, m := range conv.Messages {
		switch m.Role {
		case "user":
			color.Cyan("\n> %s", m.Content)
		case "assistant":
			printAssistantMessage(m)
		}
	}
	return nil
}

func printAssistantMessage(m council.ConversationMessage) {
	if m.Assistant == nil {
		return
	}
	printSummary(*m.Assistant)
}
