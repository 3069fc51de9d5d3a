package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"holdsense/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat SESSION",
	Short: "Send one message to a capture session and stream the answer",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("message", "m", "", "Message to send")
	chatCmd.Flags().String("intent", "", "Intent id from the session's candidates")
	_ = chatCmd.MarkFlagRequired("message")
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	message, _ := cmd.Flags().GetString("message")
	intent, _ := cmd.Flags().GetString("intent")

	client := session.NewClient(cfg.SidecarURL, 10*time.Second)
	stream, err := client.OpenChat(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("open chat: %w", err)
	}
	defer stream.Close()

	if err := stream.Send(session.ChatMessage{Intent: intent, Message: message}); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	for {
		frame, err := stream.Recv()
		if err != nil {
			return fmt.Errorf("recv: %w", err)
		}
		switch frame.Event {
		case "chunk":
			fmt.Print(frame.Content)
		case "done":
			fmt.Println()
			return nil
		}
	}
}
