package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"uxforge/internal/runner"
)

var rootCmd = &cobra.Command{
	Use:   "render",
	Short: "Preview the latest generated project",
	Long: `Render locates the newest generated Next.js project under the runtime
directory (or the one given with --project-dir), installs its dependencies when
needed and starts it with the package manager it was scaffolded for.

Use --prod to build and serve an optimized bundle instead of the dev server.`,
	SilenceUsage: true,
	RunE:         runRender,
}

func init() {
	_ = godotenv.Load()

	flags := rootCmd.Flags()
	flags.String("runtime-dir", "runtime", "Directory holding audit and generation artifacts")
	flags.String("project-dir", "", "Serve this project instead of the newest one")
	flags.Bool("install", false, "Always reinstall dependencies before starting")
	flags.Bool("prod", false, "Build then start the production server")
	flags.Int("port", 3000, "Port passed to the Next.js server")

	_ = viper.BindPFlags(flags)
	_ = viper.BindEnv("runtime-dir", "RUNTIME_DIR")
	_ = viper.BindEnv("port", "RENDER_PORT")
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir := viper.GetString("project-dir")
	if dir == "" {
		latest, err := latestProject(viper.GetString("runtime-dir"))
		if err != nil {
			return err
		}
		dir = latest
	}
	printStatus("•", "Project "+dir, color.FgCyan)

	r := runner.NewRunner()
	pm, err := pickPackageManager(r, dir)
	if err != nil {
		return err
	}
	printStatus("•", "Using "+pm.name, color.FgCyan)

	if viper.GetBool("install") || !hasNodeModules(dir) {
		printStatus("…", "Installing dependencies", color.FgYellow)
		if out, err := r.Run(ctx, dir, pm.name, pm.install...); err != nil {
			fmt.Fprintln(os.Stderr, string(out))
			return fmt.Errorf("install dependencies: %w", err)
		}
		printStatus("✓", "Dependencies installed", color.FgGreen)
	}

	port := strconv.Itoa(viper.GetInt("port"))
	script := pm.script("dev", port)
	if viper.GetBool("prod") {
		printStatus("…", "Building", color.FgYellow)
		if out, err := r.Run(ctx, dir, pm.name, pm.script("build", "")...); err != nil {
			fmt.Fprintln(os.Stderr, string(out))
			return fmt.Errorf("build: %w", err)
		}
		printStatus("✓", "Build succeeded", color.FgGreen)
		script = pm.script("start", port)
	}

	printStatus("▶", "Serving on http://localhost:"+port, color.FgGreen)
	return serve(ctx, dir, pm.name, script)
}

// serve streams the server output until ctx is cancelled.
func serve(ctx context.Context, dir, name string, args []string) error {
	c := exec.CommandContext(ctx, name, args...)
	c.Dir = dir
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Cancel = func() error { return c.Process.Signal(os.Interrupt) }
	err := c.Run()
	if ctx.Err() != nil && (err == nil || errors.As(err, new(*exec.ExitError))) {
		printStatus("■", "Stopped", color.FgYellow)
		return nil
	}
	return err
}

func printStatus(symbol, message string, attr color.Attribute) {
	fmt.Printf("%s %s\n", color.New(attr).Sprint(symbol), message)
}
