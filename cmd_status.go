// cmd_status.go
package main

import (
	"fmt"
)

var statusFlags datasetFlags

var cmdStatus = &Command{
	UsageLine: "status [-step hours] [-dir directory] [-horizon hour] model/category...",
	Short:     "report whether cached datasets are current",
	Long: `
Status resolves the newest published run of each dataset and reports whether
sync would download it, and why, next to the last recorded download. Nothing
is downloaded or removed.
`,
}

func init() {
	cmdStatus.Run = runStatus
	statusFlags.register(cmdStatus)
}

func runStatus(cmd *Command, args []string) {
	if len(args) == 0 {
		cmd.Usage()
	}
	reqs, err := statusFlags.requests(args, false)
	if err != nil {
		fatal(err, "invalid arguments")
	}

	ctx, a := setup()
	for _, req := range reqs {
		plan, err := a.syncer.Plan(ctx, req)
		if err != nil {
			report(err, "status failed for "+req.Model+"/"+req.Category)
			continue
		}
		action := "current"
		if plan.Decision.Required {
			action = "download"
		}
		last := "never downloaded"
		v, err := a.history.GetDatasetVersion(plan.Key)
		if err != nil {
			report(err, "failed to load download history")
		} else if v != nil {
			last = fmt.Sprintf("last %s run, downloaded %s",
				v.RunTime.UTC().Format("2006-01-02 15z"), v.DownloadedAt.UTC().Format("2006-01-02 15:04"))
		}
		fmt.Printf("%-40s %-14s %-9s %-25s %d hours  %s  (%s)\n",
			plan.Key, plan.Decision.Remote.Run, action, plan.Decision.Reason,
			len(plan.Hours), plan.Decision.Path, last)
	}
}
