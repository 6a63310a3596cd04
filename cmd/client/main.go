package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/neo1202/cf-ai-voice-email/internal/client"
	"github.com/neo1202/cf-ai-voice-email/internal/config"
	"github.com/neo1202/cf-ai-voice-email/internal/observability"
)

func main() {
	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(config.GetEnv("LOG_LEVEL", "warn"), true)
	logger := observability.GetLogger()

	capture := client.NewCommandCapture(cfg.CaptureCommand)
	player := client.NewFFPlayPlayer(cfg.FFPlayPath)

	ctl := client.NewController(cfg, capture, player, client.Events{
		OnStatus: func(text string) {
			fmt.Printf("  [%s]\n", text)
		},
		OnTranscript: func(text string) {
			fmt.Printf("you: %s\n", text)
		},
		OnAssistant: func(text string) {
			fmt.Printf("assistant: %s\n", text)
		},
	})

	ctx := context.Background()
	if err := ctl.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start voice client")
	}
	defer ctl.Close()

	fmt.Printf("Connected as session %s. Speak when ready.\n", ctl.SessionID())
	fmt.Println("Commands: /new (new conversation), /clear (forget history), /quit")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	commands := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			commands <- strings.TrimSpace(scanner.Text())
		}
		close(commands)
	}()

	for {
		select {
		case <-quit:
			fmt.Println("\nGoodbye.")
			return
		case line, ok := <-commands:
			if !ok {
				return
			}
			switch line {
			case "/new":
				if err := ctl.NewConversation(ctx); err != nil {
					logger.Error().Err(err).Msg("Failed to start new conversation")
					continue
				}
				fmt.Printf("New conversation started as session %s.\n", ctl.SessionID())
			case "/clear":
				if err := ctl.ClearHistory(); err != nil {
					logger.Error().Err(err).Msg("Failed to clear history")
				}
			case "/quit":
				fmt.Println("Goodbye.")
				return
			case "":
			default:
				fmt.Println("Commands: /new, /clear, /quit")
			}
		}
	}
}
