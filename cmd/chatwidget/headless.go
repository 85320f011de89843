package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	chat_widget "github.com/wirnat/chat-widget"
	"github.com/wirnat/chat-widget/config"
)

const helpText = `commands:
  /reply N   send the N-th quick reply
  /help      show this help
  /quit      leave
anything else is sent as a question`

// maxLineBytes bounds a single input line.
const maxLineBytes = 1 << 20

// runHeadless is the line oriented widget: one question per input line, the
// transcript is printed as it grows.
func runHeadless(ctx context.Context, cfg *config.ClientConfig, o chat_widget.Options, in io.Reader, out io.Writer) error {
	transcript := chat_widget.NewTranscript()
	transcript.Subscribe(func(m chat_widget.Message) {
		_ = chat_widget.WriteMessage(out, m)
	})
	ctrl := chat_widget.New(transcript, cfg.PageURL, o)
	if err := ctrl.Init(); err != nil {
		return err
	}

	lines := make(chan string)
	var scanErr error // written before lines is closed
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr = scanner.Err()
	}()

	for {
		var line string
		select {
		case <-ctx.Done():
			return nil
		case l, ok := <-lines:
			if !ok {
				if scanErr != nil {
					return fmt.Errorf("reading input: %w", scanErr)
				}
				return nil
			}
			line = strings.TrimSpace(l)
		}

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/help":
			fmt.Fprintln(out, helpText)
			continue
		case isCommand(line, "/reply"):
			reply, err := pickReply(ctrl.QuickReplies(), strings.TrimSpace(strings.TrimPrefix(line, "/reply")))
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			_, err = ctrl.SubmitQuickReply(ctx, reply)
			report(out, err)
		default:
			_, err := ctrl.Submit(ctx, line)
			report(out, err)
		}
		printReplies(out, ctrl.QuickReplies())
	}
}

// isCommand reports whether line is name alone or name followed by arguments.
func isCommand(line, name string) bool {
	cmd, _, _ := strings.Cut(line, " ")
	return cmd == name
}

func pickReply(replies chat_widget.QuickReplies, arg string) (chat_widget.QuickReply, error) {
	if len(replies) == 0 {
		return chat_widget.QuickReply{}, errors.New("no quick replies available")
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(replies) {
		return chat_widget.QuickReply{}, fmt.Errorf("pick a quick reply between 1 and %d", len(replies))
	}
	return replies[n-1], nil
}

func printReplies(out io.Writer, replies chat_widget.QuickReplies) {
	for i, r := range replies {
		fmt.Fprintf(out, "  (%d) %s\n", i+1, r.Title)
	}
}

func report(out io.Writer, err error) {
	if err != nil && !errors.Is(err, chat_widget.ErrEmptySubmission) {
		fmt.Fprintln(out, err)
	}
}
