package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/mailer"
	"github.com/JakeFAU/contact-harvester/internal/progress"
)

type sendOptions struct {
	subject     string
	bodyFile    string
	keyword     string
	only        []string
	attachments []string
	test        string
	delay       time.Duration
}

// newSendCmd creates the 'send' subcommand, which delivers a message to the
// pending contacts and moves the delivered ones to the sent list.
func newSendCmd() *cobra.Command {
	opts := &sendOptions{}
	cmd := &cobra.Command{
		Use:   "send",
		Short: "Sends a message to pending contacts",
		Long: `Sends one message to every pending contact, or to the subset selected by
--keyword and --only. Delivered contacts move to the sent list. The body file
is sent as HTML when it contains markup; without one the configured template
is used. --test mails a single address and leaves the contact lists alone.`,
		Example: `  harvester send --subject "Proposta" --body-file proposta.html --keyword padaria
  harvester send --test me@example.com`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSend(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.subject, "subject", "", "message subject (default dispatch.subject)")
	cmd.Flags().StringVar(&opts.bodyFile, "body-file", "", "file holding the message body (HTML or plain text)")
	cmd.Flags().StringVar(&opts.keyword, "keyword", "", "only contacts collected for a keyword containing this text")
	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "only these addresses (comma separated)")
	cmd.Flags().StringArrayVar(&opts.attachments, "attachment", nil, "file to attach (repeatable)")
	cmd.Flags().StringVar(&opts.test, "test", "", "send a single test message to this address instead")
	cmd.Flags().DurationVar(&opts.delay, "delay", 0, "pause between messages (default dispatch.delay)")
	return cmd
}

func runSend(cmd *cobra.Command, opts *sendOptions) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	var body harvest.Message
	if opts.bodyFile != "" {
		data, err := os.ReadFile(opts.bodyFile)
		if err != nil {
			return fmt.Errorf("read body file: %w", err)
		}
		body = mailer.NewMessage(opts.subject, string(data))
	}
	msg, err := appInstance.ComposeMessage(opts.subject, body.HTML, body.Text, opts.attachments...)
	if err != nil {
		return fmt.Errorf("compose message: %w", err)
	}

	if to := strings.TrimSpace(opts.test); to != "" {
		fmt.Fprintf(out, "Sending test %q to %s\n", msg.Subject, to)
		run := appInstance.StartRun(progress.FlowDispatch)
		if _, err := appInstance.SendTest(ctx, to, msg, progress.Tee(run, newPrinter(out, progress.FlowDispatch))); err != nil {
			return fmt.Errorf("send test: %w", err)
		}
		return nil
	}

	pending, err := appInstance.Store().LoadPending(ctx)
	if err != nil {
		return fmt.Errorf("load pending contacts: %w", err)
	}
	contacts := harvest.FilterContacts(pending, opts.keyword, opts.only)
	if len(contacts) == 0 {
		return errors.New("no pending contacts match the selection")
	}

	delay := appInstance.Config().Dispatch.Delay
	if cmd.Flags().Changed("delay") {
		delay = opts.delay
	}

	fmt.Fprintf(out, "Sending %q to %d contacts\n", msg.Subject, len(contacts))
	run := appInstance.StartRun(progress.FlowDispatch)
	emit := progress.Tee(run, newPrinter(out, progress.FlowDispatch))
	result, err := appInstance.Send(ctx, contacts, msg, delay, emit)
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	appInstance.Logger().Info("Send command finished.",
		zap.String("run_id", run.ID().String()),
		zap.Int("sent", result.Sent),
		zap.Int("failed", result.Failed),
		zap.Bool("canceled", result.Canceled),
	)
	return nil
}
