// Command concourse-test manages ephemeral test server instances from the
// shell: install a version into its own workspace, start and stop it, check
// whether it is up, and destroy it. Useful for poking at an instance
// manually or driving one from scripts outside the Go test harness.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	concoursetest "github.com/dubex/concourse-test"
)

var (
	workspaceFlag = &cli.StringFlag{
		Name:    "workspace",
		Aliases: []string{"w"},
		Usage:   "Workspace directory of the instance",
	}
	homeFlag = &cli.StringFlag{
		Name:  "home",
		Usage: "Directory generated workspaces and cached installers live under",
	}
	graceFlag = &cli.DurationFlag{
		Name:  "grace",
		Value: concoursetest.DefaultGracePeriod,
		Usage: "How long the installer may run before it is killed",
	}
	verboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Enable debug logging",
	}
)

func main() {
	app := &cli.App{
		Name:  "concourse-test",
		Usage: "manage ephemeral test server instances",
		Flags: []cli.Flag{verboseFlag},
		Before: func(c *cli.Context) error {
			level := slog.LevelInfo
			if c.Bool(verboseFlag.Name) {
				level = slog.LevelDebug
			}
			handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
			slog.SetDefault(slog.New(handler))
			concoursetest.SetLogger(slog.Default())
			return nil
		},
		Commands: []*cli.Command{
			installCommand(),
			startCommand(),
			stopCommand(),
			statusCommand(),
			destroyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func installCommand() *cli.Command {
	return &cli.Command{
		Name:      "install",
		Usage:     "install a server instance into a fresh workspace",
		ArgsUsage: "<version-or-installer-path>",
		Flags:     []cli.Flag{workspaceFlag, homeFlag, graceFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one version or installer path argument")
			}

			opts := []concoursetest.Option{
				concoursetest.WithGracePeriod(c.Duration(graceFlag.Name)),
			}
			if w := c.String(workspaceFlag.Name); w != "" {
				opts = append(opts, concoursetest.WithWorkspace(w))
			}
			if h := c.String(homeFlag.Name); h != "" {
				opts = append(opts, concoursetest.WithInstallHome(h))
			}

			ctx, cancel := commandContext(c)
			defer cancel()
			server, err := concoursetest.Install(ctx, c.Args().First(), opts...)
			if err != nil {
				return err
			}
			fmt.Printf("installed in %s (client port %d, shutdown port %d)\n",
				server.Workspace(), server.ClientPort(), server.ShutdownPort())
			return nil
		},
	}
}

func startCommand() *cli.Command {
	return attachedCommand("start", "start an installed instance",
		func(ctx context.Context, server *concoursetest.Server) error {
			if err := server.Start(ctx); err != nil {
				return err
			}
			fmt.Printf("server listening on %s\n", server.Address())
			return nil
		})
}

func stopCommand() *cli.Command {
	return attachedCommand("stop", "stop a running instance",
		func(ctx context.Context, server *concoursetest.Server) error {
			if err := server.Stop(ctx); err != nil {
				return err
			}
			fmt.Println("server stopped")
			return nil
		})
}

func statusCommand() *cli.Command {
	return attachedCommand("status", "report whether an instance is running",
		func(ctx context.Context, server *concoursetest.Server) error {
			running, err := server.IsRunning(ctx)
			if err != nil {
				return err
			}
			if running {
				fmt.Printf("running on %s\n", server.Address())
			} else {
				fmt.Println("not running")
			}
			return nil
		})
}

func destroyCommand() *cli.Command {
	return attachedCommand("destroy", "stop an instance and delete its workspace",
		func(ctx context.Context, server *concoursetest.Server) error {
			if err := server.Destroy(ctx); err != nil {
				return err
			}
			fmt.Println("server destroyed")
			return nil
		})
}

// attachedCommand builds a command that operates on an already installed
// workspace.
func attachedCommand(name, usage string, action func(context.Context, *concoursetest.Server) error) *cli.Command {
	return &cli.Command{
		Name:      name,
		Usage:     usage,
		ArgsUsage: "<workspace>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one workspace argument")
			}
			server, err := concoursetest.Attach(c.Args().First())
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()
			return action(ctx, server)
		},
	}
}

// commandContext bounds each command so a wedged control script cannot hang
// the CLI forever.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, 5*time.Minute)
}
