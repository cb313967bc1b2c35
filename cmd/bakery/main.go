package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"bakery/internal/live"
	"bakery/internal/packer"
	"bakery/internal/report"
	"bakery/pkg/machine"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	packerPath string
	timeout    time.Duration
	listenAddr string
	reportPath string
	debug      bool

	varFlags   map[string]string
	varFile    string
	only       []string
	except     []string
	force      bool
	syntaxOnly bool
)

var rootCmd = &cobra.Command{
	Use:   "bakery",
	Short: "Bakery - drive Packer through its machine-readable interface",
	Long: `Bakery invokes Packer with -machine-readable, decodes the interleaved
output of its parallel builders, and reports a structured result per command.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if debug {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
}

// newDriver builds a driver from the global flags, wiring the live stream
// hub as the raw-line sink when --listen is set.
func newDriver() (*packer.Driver, error) {
	d := &packer.Driver{
		Executable:  packerPath,
		Timeout:     timeout,
		SampleStats: debug,
	}
	if listenAddr != "" {
		hub := live.NewHub()
		if _, err := live.Serve(listenAddr, hub); err != nil {
			return nil, err
		}
		d.Sink = hub
	}
	return d, nil
}

func options() packer.Options {
	return packer.Options{
		Vars:       varFlags,
		VarFile:    varFile,
		Only:       only,
		Except:     except,
		Force:      force,
		SyntaxOnly: syntaxOnly,
	}
}

// decorated reports whether stdout is a terminal, so humans get a summary
// header and scripts get plain lines.
func decorated() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func writeReport(out machine.Output) error {
	if reportPath == "" {
		return nil
	}
	return report.WriteFile(reportPath, out)
}

func statusError(r machine.Result, command string) error {
	if r.Success {
		return nil
	}
	return fmt.Errorf("%s failed (exit status %d)", command, r.ExitStatus)
}

var buildCmd = &cobra.Command{
	Use:           "build TEMPLATE",
	Short:         "Build images from a template",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := newDriver()
		if err != nil {
			return err
		}
		out, err := driver.Build(cmd.Context(), args[0], options())
		if err != nil {
			return err
		}
		printBuild(out)
		if err := writeReport(out); err != nil {
			return err
		}
		return statusError(out.Result, "build")
	},
}

func printBuild(out *machine.BuildOutput) {
	if decorated() {
		fmt.Printf("==> Build finished: %d builder(s)\n", len(out.Targets))
	}
	for _, target := range out.Targets {
		for _, artifact := range out.Artifacts[target] {
			for _, file := range artifact.Files {
				fmt.Printf("%s\t%s\t%s\n", target, artifact.ID, file)
			}
		}
	}
	for _, e := range out.Errors {
		target := e.Target
		if target == "" {
			target = "global"
		}
		fmt.Fprintf(os.Stderr, "error (%s): %s\n", target, e.Message)
	}
}

var validateCmd = &cobra.Command{
	Use:           "validate TEMPLATE",
	Short:         "Check that a template is valid",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := newDriver()
		if err != nil {
			return err
		}
		out, err := driver.Validate(cmd.Context(), args[0], options())
		if err != nil {
			return err
		}
		for _, e := range out.Errors {
			fmt.Fprintln(os.Stderr, e.Message)
		}
		if out.Success && decorated() {
			fmt.Println("Template validated successfully.")
		}
		if err := writeReport(out); err != nil {
			return err
		}
		return statusError(out.Result, "validate")
	},
}

var pushCmd = &cobra.Command{
	Use:           "push TEMPLATE",
	Short:         "Push a template and its assets to a build service",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := newDriver()
		if err != nil {
			return err
		}
		out, err := driver.Push(cmd.Context(), args[0], options())
		if err != nil {
			return err
		}
		for _, line := range out.Log {
			fmt.Println(line)
		}
		if out.ErrorText != "" {
			fmt.Fprintln(os.Stderr, out.ErrorText)
		}
		if err := writeReport(out); err != nil {
			return err
		}
		return statusError(out.Result, "push")
	},
}

var fixCmd = &cobra.Command{
	Use:           "fix TEMPLATE",
	Short:         "Rewrite a template to the current format",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := newDriver()
		if err != nil {
			return err
		}
		out, err := driver.Fix(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if out.Success {
			fmt.Print(out.Template)
		} else {
			fmt.Fprint(os.Stderr, out.ErrorText)
		}
		if err := writeReport(out); err != nil {
			return err
		}
		return statusError(out.Result, "fix")
	},
}

var inspectCmd = &cobra.Command{
	Use:           "inspect TEMPLATE",
	Short:         "List the builders, provisioners and variables a template declares",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := newDriver()
		if err != nil {
			return err
		}
		out, err := driver.Inspect(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printNames("Variables", out.Variables)
		printNames("Builders", out.Builders)
		printNames("Provisioners", out.Provisioners)
		if err := writeReport(out); err != nil {
			return err
		}
		return statusError(out.Result, "inspect")
	},
}

func printNames(heading string, names []string) {
	fmt.Printf("%s:\n", heading)
	for _, name := range names {
		fmt.Printf("  %s\n", name)
	}
}

var versionCmd = &cobra.Command{
	Use:           "version",
	Short:         "Report the Packer version",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		driver, err := newDriver()
		if err != nil {
			return err
		}
		out, err := driver.Version(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(out.Version)
		return statusError(out.Result, "version")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&packerPath, "packer", "", "Path to the packer executable (default: look up in PATH)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Kill the packer process after this duration (0 = no timeout)")
	rootCmd.PersistentFlags().StringVar(&listenAddr, "listen", "", "Serve the raw output stream over WebSocket on this address (e.g. :22124)")
	rootCmd.PersistentFlags().StringVar(&reportPath, "report", "", "Write an HTML report to this file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging and resource sampling")

	for _, cmd := range []*cobra.Command{buildCmd, validateCmd, pushCmd} {
		cmd.Flags().StringToStringVar(&varFlags, "var", nil, "Template variable as name=value (repeatable)")
		cmd.Flags().StringVar(&varFile, "var-file", "", "JSON file with template variables")
	}
	buildCmd.Flags().StringSliceVar(&only, "only", nil, "Build only the named builders")
	buildCmd.Flags().StringSliceVar(&except, "except", nil, "Skip the named builders")
	buildCmd.Flags().BoolVar(&force, "force", false, "Overwrite existing artifacts")
	validateCmd.Flags().BoolVar(&syntaxOnly, "syntax-only", false, "Only check template syntax")

	rootCmd.AddCommand(buildCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(fixCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
