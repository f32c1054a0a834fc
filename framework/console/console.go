// Package console implements the wiring command line.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/alecthomas/kong"

	"github.com/km-arc/go-wiring/framework/app"
	"github.com/km-arc/go-wiring/framework/config"
	"github.com/km-arc/go-wiring/framework/container"
)

// CLI is the root command configuration with subcommands.
type CLI struct {
	LogLevel string           `kong:"short='l',help='Log level',enum='debug,info,warn,error',default='info',env='LOG_LEVEL'"`
	EnvFile  []string         `kong:"name='env-file',help='Dotenv files to load',default='.env'"`
	Version  kong.VersionFlag `kong:"short='v',help='Show version and exit.'"`

	Check CheckCmd `kong:"cmd,help='Load, validate and compile definition files'"`
	List  ListCmd  `kong:"cmd,help='List the defined services'"`
	Serve ServeCmd `kong:"cmd,help='Serve the container inspector over HTTP'"`

	Stdout io.Writer `kong:"-"`
	Stderr io.Writer `kong:"-"`
}

// CheckCmd loads and compiles definition files without building services.
type CheckCmd struct {
	Files []string `kong:"arg,optional,type='existingfile',help='Definition files (default: WIRING_DEFINITIONS)'"`
}

// Run executes the check command.
func (c *CheckCmd) Run(cli *CLI) error {
	a, err := cli.application(c.Files, false)
	if err != nil {
		return err
	}
	if err := a.Compile(); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cli.stdout(), "OK: %d services, %d parameters\n",
		len(a.Services(container.ServiceFilter{})), len(a.Parameters()))
	return err
}

// ListCmd prints the effective definitions.
type ListCmd struct {
	Files   []string `kong:"arg,optional,type='existingfile',help='Definition files (default: WIRING_DEFINITIONS)'"`
	Tag     string   `kong:"short='t',help='Only services carrying this tag'"`
	Pattern string   `kong:"short='p',help='Only ids matching this glob'"`
	Public  bool     `kong:"help='Only public services'"`
	JSON    bool     `kong:"name='json',help='Print JSON'"`
}

// Run executes the list command.
func (c *ListCmd) Run(cli *CLI) error {
	a, err := cli.application(c.Files, false)
	if err != nil {
		return err
	}
	if err := a.Compile(); err != nil {
		return err
	}

	ids := a.Services(container.ServiceFilter{Pattern: c.Pattern, Tag: c.Tag, Public: c.Public})
	infos := make([]container.ServiceInfo, 0, len(ids))
	for _, id := range ids {
		info, err := a.Describe(id)
		if err != nil {
			return err
		}
		infos = append(infos, info)
	}

	if c.JSON {
		enc := json.NewEncoder(cli.stdout())
		enc.SetIndent("", "  ")
		return enc.Encode(infos)
	}
	return printTable(cli.stdout(), infos)
}

// ServeCmd boots the application and serves the inspector.
type ServeCmd struct {
	Files []string `kong:"arg,optional,type='existingfile',help='Definition files (default: WIRING_DEFINITIONS)'"`
	Addr  string   `kong:"short='a',help='Listen address (default: INSPECTOR_ADDR)'"`
}

// Run executes the serve command.
func (c *ServeCmd) Run(cli *CLI) error {
	a, err := cli.application(c.Files, true)
	if err != nil {
		return err
	}
	if c.Addr != "" {
		a.Config.Inspector.Addr = c.Addr
	}
	return a.Run(context.Background())
}

// Run parses args and runs the selected command.
func Run(args []string, stdout, stderr io.Writer) error {
	cli := CLI{Stdout: stdout, Stderr: stderr}
	parser, err := kong.New(&cli,
		kong.Name("wiring"),
		kong.Description("Inspect, validate and serve dependency injection definitions"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Writers(stdout, stderr),
		kong.Vars{"version": app.Version},
	)
	if err != nil {
		return err
	}
	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kongCtx.Run(&cli)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (cli *CLI) application(files []string, inspector bool) (*app.Application, error) {
	cfg := config.Load(cli.EnvFile...)
	cfg.App.LogLevel = cli.LogLevel
	cfg.Inspector.Enabled = inspector
	if len(files) > 0 {
		cfg.Container.Definitions = files
	}
	if len(cfg.Container.Definitions) == 0 {
		return nil, fmt.Errorf("no definition files: pass FILES or set WIRING_DEFINITIONS")
	}
	return app.New(cfg, app.WithLogger(app.NewLogger(cfg.App, cli.stderr())))
}

func (cli *CLI) stdout() io.Writer {
	if cli.Stdout != nil {
		return cli.Stdout
	}
	return os.Stdout
}

func (cli *CLI) stderr() io.Writer {
	if cli.Stderr != nil {
		return cli.Stderr
	}
	return os.Stderr
}

func printTable(w io.Writer, infos []container.ServiceInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSOURCE\tTARGET\tFLAGS\tTAGS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", info.ID, info.Source, target(info), flags(info), tags(info))
	}
	return tw.Flush()
}

func target(info container.ServiceInfo) string {
	switch {
	case info.Factory != nil && info.Factory.Service != "":
		if info.Factory.Method != "" {
			return info.Factory.Service + ":" + info.Factory.Method
		}
		return info.Factory.Service
	case info.Factory != nil:
		return "func"
	case info.Alias != "":
		return "@" + info.Alias
	}
	return info.Module
}

func flags(info container.ServiceInfo) string {
	var out []string
	if info.Shared {
		out = append(out, "shared")
	}
	if !info.Public {
		out = append(out, "private")
	}
	if info.Preloaded {
		out = append(out, "preloaded")
	}
	if info.Autowired {
		out = append(out, "autowired")
	}
	if len(out) == 0 {
		return "-"
	}
	return strings.Join(out, ",")
}

func tags(info container.ServiceInfo) string {
	if len(info.Tags) == 0 {
		return "-"
	}
	names := make([]string, len(info.Tags))
	for i, t := range info.Tags {
		names[i] = t.Name
	}
	return strings.Join(names, ",")
}
