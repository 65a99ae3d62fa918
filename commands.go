package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/ryanmoran/disposable/internal"
	"github.com/ryanmoran/disposable/internal/docker"
	"github.com/ryanmoran/disposable/internal/manager"
)

// shutdownTimeout bounds teardown after the command context is cancelled.
const shutdownTimeout = time.Minute

var errPrefixRequired = errors.New("a container name prefix is required")

type app struct {
	env      []string
	writer   internal.Writer
	terminal bool
	config   internal.Config
	logger   *log.Logger
}

func newRootCommand(env []string, writer *internal.StandardWriter) *cobra.Command {
	a := &app{env: env, writer: writer, terminal: writer.IsTerminal()}

	root := &cobra.Command{
		Use:           "disposable",
		Short:         "Run and clean up throwaway Docker containers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			config, err := internal.LoadConfig(cmd.Flags(), a.env)
			if err != nil {
				return err
			}

			logger, err := internal.NewLogger(a.writer.GetErrWriter(), config.LogLevel, a.terminal)
			if err != nil {
				return err
			}

			a.config = config
			a.logger = logger
			return nil
		},
	}
	root.SetOut(writer.GetWriter())
	root.SetErr(writer.GetErrWriter())
	internal.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		a.runCommand(),
		a.psCommand(),
		a.imagesCommand(),
		a.inspectCommand(),
		a.pullCommand(),
		a.sweepCommand(),
	)

	return root
}

func (a *app) connect(ctx context.Context) (docker.Client, error) {
	options := docker.Options{
		Logger:      a.logger,
		PullTimeout: a.config.PullTimeout,
	}

	if a.config.RemoteHost != "" {
		return docker.NewRemoteClient(ctx, a.config.RemoteHost, a.config.RemotePort, options)
	}
	return docker.NewLocalClient(ctx, options)
}

func (a *app) runCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run IMAGE",
		Short: "Start a container and remove it on interrupt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			engine, err := a.connect(ctx)
			if err != nil {
				return err
			}

			prefix := a.config.Prefix
			if prefix == "" {
				prefix = internal.GenerateSession().Prefix()
			}

			options := manager.Options{
				Logger:          a.logger,
				ContainerPort:   a.config.ContainerPort,
				MaxPortAttempts: a.config.PortAttempts,
			}
			if a.config.HostPort != 0 {
				options.Ports = manager.FixedPort(a.config.HostPort)
			}

			m := manager.New(engine, prefix, options)

			cleanup := internal.NewCleanupManager(a.logger)
			cleanup.Add("close docker client", m.Close)
			cleanup.Add("shut down containers", func() error {
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
				defer cancel()

				report := m.ShutdownAll(shutdownCtx)
				a.printReport(report, prefix)
				return report.Err()
			})

			info, err := m.CreateContainerByImage(ctx, args[0], a.config.Expose, a.config.GPU)
			if err != nil {
				return errors.Join(err, cleanup.Execute())
			}

			a.writer.Table(
				[]string{"NAME", "ID", "HOST", "PORT"},
				[][]string{{info.Name, shortID(info.ContainerID), info.Host, portString(info.APIPort)}},
			)
			if info.APIPort != 0 {
				a.writer.Printf("http://%s:%d\n", info.Host, info.APIPort)
			}
			a.writer.Print("Press Ctrl+C to remove the container\n")

			<-ctx.Done()

			return cleanup.Execute()
		},
	}
	internal.RegisterContainerFlags(cmd.Flags())

	return cmd
}

func (a *app) psCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "ps",
		Short: "List containers, restricted to the prefix when one is set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			containers, err := engine.ListContainers(cmd.Context(), all)
			if err != nil {
				return err
			}

			a.writer.Table([]string{"ID", "NAME", "IMAGE", "STATUS"}, containerRows(containers, a.config.Prefix))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&all, "all", "a", false, "include stopped containers")

	return cmd
}

func (a *app) imagesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "images",
		Short: "List tagged images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			engine, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			images, err := engine.ListImages(cmd.Context())
			if err != nil {
				return err
			}

			rows := make([][]string, 0, len(images))
			for _, image := range images {
				rows = append(rows, []string{image.Tag, shortID(image.ID)})
			}
			a.writer.Table([]string{"TAG", "ID"}, rows)
			return nil
		},
	}
}

func (a *app) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect IMAGE",
		Short: "Show the tags and exposed ports of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			image, err := engine.InspectImage(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			ports := make([]string, 0, len(image.ExposedPorts))
			for _, port := range image.ExposedPorts {
				ports = append(ports, portString(port))
			}
			a.writer.Table(
				[]string{"TAG", "ID", "EXPOSED PORTS"},
				[][]string{{image.Tag, shortID(image.ID), strings.Join(ports, ",")}},
			)
			return nil
		},
	}
}

func (a *app) pullCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "pull IMAGE",
		Short: "Pull an image and wait for it to complete",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			engine, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			if err := engine.PullImage(cmd.Context(), args[0]); err != nil {
				return err
			}

			a.writer.Printf("pulled %s\n", args[0])
			return nil
		},
	}
}

func (a *app) sweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Kill and remove every container named by the prefix",
		Long: "Kill and remove every container named <prefix>-<n>, including ones " +
			"left behind by a run that exited without shutting down.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.config.Prefix == "" {
				return fmt.Errorf("failed to sweep containers: %w\nSet --prefix or %s_PREFIX", errPrefixRequired, internal.EnvPrefix)
			}

			engine, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer engine.Close()

			report, err := manager.Sweep(cmd.Context(), engine, a.config.Prefix, 0)
			if err != nil {
				return err
			}

			a.printReport(report, a.config.Prefix)
			return report.Err()
		},
	}
}

// printReport lists removed containers on the output stream and survivors as
// warnings.
func (a *app) printReport(report manager.ShutdownReport, prefix string) {
	for _, result := range report.Results {
		if result.Removed {
			a.writer.Println("removed", shortID(result.ID))
			continue
		}
		a.writer.Warningf("container %s may still exist: %v", shortID(result.ID), errors.Join(result.KillErr, result.RemoveErr))
	}

	if failed := report.Failed(); len(failed) > 0 {
		a.writer.Warning(len(failed), "container(s) left behind; retry with: disposable sweep --prefix", prefix)
	}
}

func containerRows(containers []docker.Container, prefix string) [][]string {
	rows := make([][]string, 0, len(containers))
	for _, c := range containers {
		if prefix != "" && !strings.HasPrefix(c.Name, prefix+"-") {
			continue
		}
		rows = append(rows, []string{shortID(c.ID), c.Name, c.Image, c.Status})
	}
	return rows
}

func shortID(id string) string {
	id = strings.TrimPrefix(id, "sha256:")
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func portString(port uint16) string {
	if port == 0 {
		return "-"
	}
	return strconv.Itoa(int(port))
}
