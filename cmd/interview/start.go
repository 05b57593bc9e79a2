package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Bill1907/prepup/internal/voice"
	"github.com/Bill1907/prepup/internal/voice/device"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run a live voice mock interview",
	Long:  "Connects the microphone and speaker to the realtime interviewer for one question. Type a line and press enter to send text instead of speaking. Ctrl-C ends the session.",
	RunE:  runStart,
}

var (
	startQuestionID string
	startResumeID   string
	startTransport  string
	startRealtime   string
)

func init() {
	startCmd.Flags().StringVarP(&startQuestionID, "question", "q", "", "question id (required)")
	startCmd.Flags().StringVarP(&startResumeID, "resume", "r", "", "resume id (required)")
	startCmd.Flags().StringVar(&startTransport, "transport", "webrtc", "webrtc or websocket")
	startCmd.Flags().StringVar(&startRealtime, "realtime-url", "", "override the realtime endpoint")

	if err := startCmd.MarkFlagRequired("question"); err != nil {
		panic(fmt.Sprintf("failed to mark question flag as required: %v", err))
	}
	if err := startCmd.MarkFlagRequired("resume"); err != nil {
		panic(fmt.Sprintf("failed to mark resume flag as required: %v", err))
	}

	rootCmd.AddCommand(startCmd)
}

func newDialer(transport, endpoint string, speaker voice.Speaker) (voice.Dialer, error) {
	switch transport {
	case "webrtc":
		return &voice.WebRTCDialer{BaseURL: endpoint, Speaker: speaker}, nil
	case "websocket":
		return &voice.WebSocketDialer{URL: endpoint, Speaker: speaker}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", transport)
	}
}

func runStart(cmd *cobra.Command, _ []string) error {
	authorize, err := authorizer()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// The speaker rate must match the dialer, so probe it first.
	probe, err := newDialer(startTransport, startRealtime, nil)
	if err != nil {
		return err
	}
	speaker, err := device.NewSpeaker(probe.SampleRate())
	if err != nil {
		return err
	}
	defer speaker.Close()
	dialer, _ := newDialer(startTransport, startRealtime, speaker)

	mic, err := device.NewMicrophone()
	if err != nil {
		return err
	}
	defer mic.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	finished := make(chan error, 1)
	var once sync.Once
	finish := func(err error) { once.Do(func() { finished <- err }) }

	client, err := voice.NewClient(voice.Options{
		QuestionID: startQuestionID,
		ResumeID:   startResumeID,
		Tokens:     voice.NewHTTPTokenSource(apiBaseURL, authorize),
		Dialer:     dialer,
		Microphone: mic,
		Policy:     voice.DefaultPolicy(),
		OnStateChange: func(s voice.State) {
			fmt.Fprintf(out, "-- %s\n", s)
		},
		OnTranscript: func(e voice.Entry) {
			fmt.Fprintf(out, "%s: %s\n", e.Role, e.Content)
		},
		OnError: func(err error) {
			var serverErr *voice.ServerError
			if errors.As(err, &serverErr) {
				fmt.Fprintf(out, "!! %v\n", err)
				return
			}
			finish(err)
		},
	})
	if err != nil {
		return err
	}

	client.Start()
	defer client.Stop()
	go readTyped(ctx, cmd.InOrStdin(), client, out)

	select {
	case <-ctx.Done():
		fmt.Fprintln(out, "-- ending session")
		return nil
	case err := <-finished:
		return err
	}
}

// readTyped forwards each stdin line as a text turn.
func readTyped(ctx context.Context, in io.Reader, client *voice.Client, out io.Writer) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		if err := client.SendText(ctx, line); err != nil {
			fmt.Fprintf(out, "!! not sent: %v\n", err)
		}
	}
}
