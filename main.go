// main.go
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"text/template"
)

// A Command is one nwpsync subcommand.
type Command struct {
	// Run runs the command. args are the arguments after the command name.
	Run func(cmd *Command, args []string)

	// UsageLine is the one-line usage message. The first word is the
	// command name.
	UsageLine string

	Short string
	Long  string

	Flag flag.FlagSet
}

// Name returns the command's name: the first word in the usage line.
func (c *Command) Name() string {
	name := c.UsageLine
	if i := strings.Index(name, " "); i >= 0 {
		name = name[:i]
	}
	return name
}

func (c *Command) Usage() {
	fmt.Fprintf(os.Stderr, "usage: nwpsync %s\n", c.UsageLine)
	fmt.Fprintf(os.Stderr, "%s\n", strings.TrimSpace(c.Long))
	c.Flag.PrintDefaults()
	os.Exit(2)
}

// The order here is the order in which they are printed by 'nwpsync help'.
var commands = []*Command{
	cmdSync,
	cmdStatus,
	cmdRuns,
	cmdHistory,
	cmdServe,
}

// Global flags
var (
	configPath string
	logLevel   string
)

func main() {
	flag.StringVar(&configPath, "config", "", "path to config.yaml")
	flag.StringVar(&logLevel, "log-level", "", "override the configured log level")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) < 1 {
		usage()
	}

	if args[0] == "help" {
		help(args[1:])
		return
	}

	for _, cmd := range commands {
		if cmd.Name() == args[0] && cmd.Run != nil {
			cmd.Flag.Usage = func() { cmd.Usage() }
			cmd.Flag.Parse(args[1:])
			cmd.Run(cmd, cmd.Flag.Args())
			exit()
			return
		}
	}

	fmt.Fprintf(os.Stderr, "nwpsync: unknown subcommand %q\nRun 'nwpsync help' for usage.\n", args[0])
	setExitStatus(2)
	exit()
}

var usageTemplate = `nwpsync keeps a local cache of numerical weather prediction output in step
with the newest runs the providers publish.

Usage:

	nwpsync [-config file] [-log-level level] command [arguments]

The commands are:
{{range .}}
    {{.Name | printf "%-11s"}} {{.Short}}{{end}}

Use "nwpsync help [command]" for more information about a command.
`

func usage() {
	tmpl := template.Must(template.New("usage").Parse(usageTemplate))
	tmpl.Execute(os.Stderr, commands)
	os.Exit(2)
}

func help(args []string) {
	if len(args) == 0 {
		usage()
	}
	for _, cmd := range commands {
		if cmd.Name() == args[0] {
			fmt.Fprintf(os.Stdout, "usage: nwpsync %s\n\n%s\n", cmd.UsageLine, strings.TrimSpace(cmd.Long))
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown help topic %q. Run 'nwpsync help'.\n", args[0])
	os.Exit(2)
}

var exitStatus = 0
var exitMu sync.Mutex

func setExitStatus(n int) {
	exitMu.Lock()
	if exitStatus < n {
		exitStatus = n
	}
	exitMu.Unlock()
}

var atexitFuncs []func()

func atexit(f func()) {
	atexitFuncs = append(atexitFuncs, f)
}

func exit() {
	for _, f := range atexitFuncs {
		f()
	}
	os.Exit(exitStatus)
}
