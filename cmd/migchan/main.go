package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/migchan"
	logAdapter "github.com/bft-labs/migchan/internal/adapters/log"
	"github.com/bft-labs/migchan/internal/adapters/migration"
	"github.com/bft-labs/migchan/internal/adapters/registry"
	"github.com/bft-labs/migchan/internal/cliconfig"
	"github.com/bft-labs/migchan/internal/ports"
)

const longHelp = `Set up the transport channels of a live migration.

"send" opens the primary channel to the destination and, with multifd or
postcopy preempt enabled, the remaining channels of the set. "listen" binds
the destination address with room for the expected channels, publishes the
bound addresses and waits until every channel has arrived.

Addresses: tcp:HOST:PORT, HOST:PORT, unix:PATH, fd:N, vsock:CID:PORT`

var exampleUsage = strings.TrimSpace(`
  migchan listen --uri tcp:0.0.0.0:0 --multifd --multifd-channels 4 --address-file /run/migchan/listen.json
  migchan send --uri tcp:10.0.0.2:4444 --multifd --multifd-channels 4
  migchan send --config $HOME/.migchan/config.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// cli carries the state shared by the subcommands.
type cli struct {
	cfg     cliconfig.Config
	cfgPath string
	changed map[string]bool
	logger  *logAdapter.ZerologAdapter
}

// load applies file and environment configuration under the flags that
// were set explicitly, then validates.
func (c *cli) load(cmd *cobra.Command) error {
	cfgFile := c.cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}
	c.cfgPath = cfgFile

	c.changed = map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { c.changed[f.Name] = true })

	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cliconfig.ApplyFileConfig(&c.cfg, fc, c.changed); err != nil {
			return err
		}
	}

	if err := cliconfig.ApplyEnvConfig(&c.cfg, c.changed); err != nil {
		return err
	}

	if err := c.cfg.Validate(); err != nil {
		return err
	}

	c.logger = cliconfig.Logger(c.cfg.LogLevel)
	c.logger.Info("configuration",
		ports.String("uri", c.cfg.URI),
		ports.Bool("multifd", c.cfg.Multifd),
		ports.Int("multifd_channels", c.cfg.MultifdChannels),
		ports.Bool("postcopy_preempt", c.cfg.PostcopyPreempt),
		ports.Bool("zero_copy_send", c.cfg.ZeroCopySend),
		ports.Duration("connect_timeout", c.cfg.ConnectTimeout),
	)
	return nil
}

// start creates a Migchan instance and runs its loop until ctx is done.
func (c *cli) start(ctx context.Context, opts ...migchan.Option) (*migchan.Migchan, *migration.Events, error) {
	events := migration.NewEvents(c.logger)
	opts = append([]migchan.Option{
		migchan.WithLogger(c.logger),
		migchan.WithEventEmitter(events),
		migchan.WithConnectTimeout(c.cfg.ConnectTimeout),
	}, opts...)

	m, err := migchan.New(c.cfg.Capabilities(), opts...)
	if err != nil {
		return nil, nil, err
	}
	go func() {
		if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Error("event loop stopped", ports.Err(err))
		}
	}()
	return m, events, nil
}

func (c *cli) stop(m *migchan.Migchan) {
	if err := m.Stop(c.cfg.ShutdownTimeout); err != nil {
		c.logger.Warn("event loop shutdown", ports.Err(err))
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func (c *cli) runSend(cmd *cobra.Command, args []string) error {
	if err := c.load(cmd); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	m, _, err := c.start(ctx)
	if err != nil {
		return err
	}
	defer c.stop(m)

	out, err := m.Send(c.cfg.URI)
	if err != nil {
		return err
	}
	defer out.Close()

	select {
	case <-out.Done():
	case <-ctx.Done():
		c.logger.Info("received signal, stopping...")
		return nil
	}

	chans, err := out.Result()
	for _, ch := range chans {
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", ch.Name(), out.Address())
	}
	if err != nil {
		return fmt.Errorf("send: %w", err)
	}
	c.logger.Info("all outgoing migration channels connected", ports.Int("channels", len(chans)))
	return nil
}

func (c *cli) runListen(cmd *cobra.Command, watch bool) error {
	if err := c.load(cmd); err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	var opts []migchan.Option
	var addrFile *registry.File
	if c.cfg.AddressFile != "" {
		addrFile = registry.NewFile(c.cfg.AddressFile, c.logger)
		opts = append(opts, migchan.WithAddressRegistry(addrFile))
	}

	m, events, err := c.start(ctx, opts...)
	if err != nil {
		return err
	}
	defer c.stop(m)

	if watch && c.cfgPath != "" && cliconfig.FileExists(c.cfgPath) {
		w := cliconfig.NewWatcher(c.cfgPath, c.logger, c.reloadLogLevel)
		go func() {
			if err := w.Run(ctx); err != nil {
				c.logger.Warn("config watcher stopped", ports.Err(err))
			}
		}()
	}

	l, err := m.Listen(ctx, c.cfg.URI)
	if err != nil {
		return err
	}
	defer l.Close()
	if addrFile != nil {
		defer func() {
			if err := addrFile.Remove(); err != nil {
				c.logger.Warn("remove address file", ports.Err(err))
			}
		}()
	}

	for _, a := range l.Addresses() {
		fmt.Fprintln(cmd.OutOrStdout(), a)
	}

	select {
	case <-l.Done():
	case <-ctx.Done():
		c.logger.Info("received signal, stopping...")
		return nil
	}
	l.StopAccepting()

	_, _, dropped := events.Counts()
	c.logger.Info("all incoming migration channels present",
		ports.Int("channels", len(l.Channels())),
		ports.Int("dropped", int(dropped)),
	)
	return nil
}

// reloadLogLevel applies a changed log level unless it was given as a flag.
func (c *cli) reloadLogLevel(fc cliconfig.FileConfig) {
	if fc.LogLevel == "" || c.changed["log-level"] {
		return
	}
	lvl, err := zerolog.ParseLevel(fc.LogLevel)
	if err != nil {
		c.logger.Warn("ignoring invalid log level", ports.String("level", fc.LogLevel), ports.Err(err))
		return
	}
	c.logger.SetLevel(lvl)
	c.logger.Info("log level changed", ports.String("level", lvl.String()))
}

func addCommonFlags(fs *pflag.FlagSet, c *cli) {
	fs.StringVar(&c.cfgPath, "config", "", "path to config file (default: $HOME/.migchan/config.toml)")
	fs.StringVar(&c.cfg.URI, "uri", c.cfg.URI, "migration address")
	fs.BoolVar(&c.cfg.Multifd, "multifd", c.cfg.Multifd, "stripe migration over parallel channels")
	fs.IntVar(&c.cfg.MultifdChannels, "multifd-channels", c.cfg.MultifdChannels, "number of multifd channels")
	fs.BoolVar(&c.cfg.PostcopyPreempt, "postcopy-preempt", c.cfg.PostcopyPreempt, "add a dedicated postcopy preempt channel")
	fs.DurationVar(&c.cfg.ShutdownTimeout, "shutdown-timeout", c.cfg.ShutdownTimeout, "event loop drain timeout")
	fs.StringVar(&c.cfg.LogLevel, "log-level", c.cfg.LogLevel, "log level (debug, info, warn, error)")
}

func newRootCmd() *cobra.Command {
	c := &cli{cfg: cliconfig.DefaultConfig()}

	root := &cobra.Command{
		Use:           "migchan",
		Short:         "Set up live migration transport channels",
		Long:          longHelp,
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	send := &cobra.Command{
		Use:   "send",
		Short: "Connect the outgoing migration channels",
		RunE:  c.runSend,
	}
	addCommonFlags(send.Flags(), c)
	send.Flags().BoolVar(&c.cfg.ZeroCopySend, "zero-copy-send", c.cfg.ZeroCopySend, "require zero-copy send support on every channel")
	send.Flags().DurationVar(&c.cfg.ConnectTimeout, "connect-timeout", c.cfg.ConnectTimeout, "timeout for each connect")

	var watch bool
	listen := &cobra.Command{
		Use:   "listen",
		Short: "Accept the incoming migration channels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runListen(cmd, watch)
		},
	}
	addCommonFlags(listen.Flags(), c)
	listen.Flags().StringVar(&c.cfg.AddressFile, "address-file", c.cfg.AddressFile, "write bound addresses to this JSON file")
	listen.Flags().BoolVar(&watch, "watch-config", false, "reload the log level when the config file changes")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), root.Version)
		},
	}

	root.AddCommand(send, listen, version)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log := cliconfig.Logger(cliconfig.DefaultLogLevel)
		log.Error("migchan", ports.Err(err))
		os.Exit(1)
	}
}
