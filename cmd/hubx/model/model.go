package model

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
	"github.com/spf13/cobra"
	"kubegems.io/hubx/pkg/client"
	"kubegems.io/hubx/pkg/settings"
	"kubegems.io/hubx/pkg/task"
	"kubegems.io/hubx/pkg/telemetry"
	"kubegems.io/hubx/pkg/version"
)

// GlobalOptions are the persistent flags shared by every command.
type GlobalOptions struct {
	Client       *client.Options
	Token        string
	SettingsPath string
	Insecure     bool
	OTLPEndpoint string
	Detailed     bool
}

func DefaultGlobalOptions() *GlobalOptions {
	return &GlobalOptions{
		Client:       client.DefaultOptions(),
		SettingsPath: settings.DefaultPath(),
	}
}

func NewHubxCmd() *cobra.Command {
	options := DefaultGlobalOptions()
	cmd := &cobra.Command{
		Use:           "hubx",
		Short:         "search, download and run models of a Hugging Face compatible hub",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(NewSearchCmd(options))
	cmd.AddCommand(NewInfoCmd(options))
	cmd.AddCommand(NewFilesCmd(options))
	cmd.AddCommand(NewDownloadCmd(options))
	cmd.AddCommand(NewInferCmd(options))
	cmd.AddCommand(NewLoginCmd(options))
	cmd.AddCommand(NewConfigCmd(options))

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if options.Insecure {
			http.DefaultTransport.(*http.Transport).TLSClientConfig = &tls.Config{
				InsecureSkipVerify: true,
			}
		}
		return options.Client.Download.Policy.Validate()
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&options.Client.Endpoint, "endpoint", options.Client.Endpoint, "registry endpoint")
	flags.StringVar(&options.Client.InferenceEndpoint, "inference-endpoint", options.Client.InferenceEndpoint, "inference endpoint")
	flags.StringVar(&options.Token, "token", options.Token, "access token, overrides the saved token and "+settings.EnvToken)
	flags.StringVar(&options.SettingsPath, "settings", options.SettingsPath, "settings file")
	flags.BoolVar(&options.Insecure, "insecure", options.Insecure, "tls insecure skip verify")
	flags.DurationVar(&options.Client.Timeout, "timeout", options.Client.Timeout, "request timeout")
	flags.IntVar(&options.Client.Retry.MaxAttempts, "max-attempts", options.Client.Retry.MaxAttempts, "attempts per registry request")
	flags.StringVar(&options.OTLPEndpoint, "otlp-endpoint", options.OTLPEndpoint, "OTLP HTTP collector address, enables tracing")
	flags.StringVar((*string)(&options.Client.Download.Policy), "policy", string(options.Client.Download.Policy), "what a failed file does to a download: skip or abort")
	flags.StringVar(&options.Client.Download.Transport, "transport", options.Client.Download.Transport, "file transport: http or cli")
	flags.StringVar(&options.Client.Download.CLIPath, "cli-path", options.Client.Download.CLIPath, "huggingface-cli executable used by the cli transport")
	flags.BoolVar(&options.Detailed, "detailed", options.Detailed, "fill missing search result fields with info calls")
	return cmd
}

func BaseContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
	if os.Getenv("DEBUG") == "1" {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
		ctx = logr.NewContext(ctx, stdr.NewWithOptions(log.Default(), stdr.Options{LogCaller: stdr.Error}))
	}
	return ctx, cancel
}

// Session is what a command needs to talk to the hub.
type Session struct {
	Settings   *settings.Manager
	Credential *client.Credential
	Client     *client.Client
	Runner     *task.Runner
	Display    *TerminalDisplay

	shutdown func(context.Context) error
}

// NewSession loads the settings and wires the client and the task runner.
// The token comes from --token, then HUBX_TOKEN, then the settings file.
func (o *GlobalOptions) NewSession(ctx context.Context, out io.Writer) (*Session, error) {
	manager := settings.NewManager(o.SettingsPath)
	current, err := manager.Load()
	if err != nil {
		return nil, err
	}
	token := current.Token
	if o.Token != "" {
		token = o.Token
	}
	shutdown, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceVersion: version.Get().GitVersion,
		Endpoint:       o.OTLPEndpoint,
		Insecure:       true,
	})
	if err != nil {
		return nil, err
	}
	client.UserAgent = "hubx/" + version.Get().GitVersion

	cred := client.NewCredential(token)
	cli := client.NewClient(o.Client, cred)
	runnerOptions := []task.Option{}
	if o.Detailed {
		runnerOptions = append(runnerOptions, task.WithDetailedSearch())
	}
	// the runner outlives an interrupt so a download can stop cooperatively
	runner := task.NewClientRunner(context.WithoutCancel(ctx), cli, runnerOptions...)
	return &Session{
		Settings:   manager,
		Credential: cred,
		Client:     cli,
		Runner:     runner,
		Display:    NewTerminalDisplay(out, current.Theme),
		shutdown:   shutdown,
	}, nil
}

func (s *Session) Close() {
	s.Runner.Close()
	s.Display.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.shutdown(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "flush traces:", err)
	}
}
