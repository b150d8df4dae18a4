// cmd_runs.go
package main

import (
	"fmt"
)

var cmdRuns = &Command{
	UsageLine: "runs [model]",
	Short:     "list the runs a provider publishes",
	Long: `
Runs reads the provider's directory index and lists the runs it currently
publishes for a model, newest first. Without a model it lists the known
models.

Models served from object storage or without a browsable index cannot be
listed.
`,
}

func init() {
	cmdRuns.Run = runRuns
}

func runRuns(cmd *Command, args []string) {
	if len(args) > 1 {
		cmd.Usage()
	}
	ctx, a := setup()
	if len(args) == 0 {
		fmt.Println(modelList(a.syncer.Catalog))
		return
	}

	runs, err := a.syncer.Runs(ctx, args[0])
	if err != nil {
		fatal(err, "failed to list runs")
	}
	for _, r := range runs {
		fmt.Println(r)
	}
}
