// cmd_history.go
package main

import (
	"fmt"
	"os"

	"github.com/gewnthar/nwpsync/services"
)

var (
	historyCSV     string
	historyParquet string
)

var cmdHistory = &Command{
	UsageLine: "history [-csv file] [-parquet file]",
	Short:     "show recorded downloads",
	Long: `
History lists the latest recorded download of every dataset: the run, the
number of files and bytes fetched, and when.

The -csv and -parquet options export the records to a file instead.
`,
}

func init() {
	cmdHistory.Run = runHistory
	cmdHistory.Flag.StringVar(&historyCSV, "csv", "", "write records as CSV to file")
	cmdHistory.Flag.StringVar(&historyParquet, "parquet", "", "write records as Parquet to file")
}

func runHistory(cmd *Command, args []string) {
	if len(args) != 0 {
		cmd.Usage()
	}
	_, a := setup()

	versions, err := a.history.GetDatasetVersions()
	if err != nil {
		fatal(err, "failed to load download history")
	}

	if historyCSV != "" {
		f, err := os.Create(historyCSV)
		if err != nil {
			fatal(err, "failed to create CSV export")
		}
		err = services.WriteHistoryCSV(f, versions)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			fatal(err, "failed to write CSV export")
		}
	}
	if historyParquet != "" {
		if err := services.WriteHistoryParquet(historyParquet, versions); err != nil {
			fatal(err, "failed to write Parquet export")
		}
	}
	if historyCSV != "" || historyParquet != "" {
		return
	}

	for _, v := range versions {
		fmt.Printf("%-40s %s  %4d files %10s  %s\n",
			v.Key(), v.RunTime.UTC().Format("2006-01-02 15z"), v.FileCount,
			ByteCount(v.TotalBytes), v.DownloadedAt.UTC().Format("2006-01-02 15:04"))
	}
}
