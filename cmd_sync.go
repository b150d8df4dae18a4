// cmd_sync.go
package main

import (
	"fmt"
	"strings"

	"github.com/gewnthar/nwpsync/services"
)

var (
	syncFlags datasetFlags
	syncForce bool
)

var cmdSync = &Command{
	UsageLine: "sync [-step hours] [-dir directory] [-horizon hour] [-force] model/category...",
	Short:     "bring cached datasets up to date",
	Long: `
Sync finds the newest run each model has published, compares it with what is
already in the cache and, when the cache is missing, from an older run, stale
or incomplete, replaces it with every forecast hour of the new run.

Each argument names a dataset as model/category, e.g. gfs/pgrb2.0p25 or
gefs/members. Several datasets are synced concurrently; datasets sharing a
cache directory are synced one after another.

A failed transfer is retried after a pause. When the retries run out the
dataset's cache directory is left empty and sync exits non-zero.

The -force option skips the freshness check.
`,
}

func init() {
	cmdSync.Run = runSync // break init cycle
	syncFlags.register(cmdSync)
	cmdSync.Flag.BoolVar(&syncForce, "force", false, "download even when the cache is fresh")
}

func runSync(cmd *Command, args []string) {
	if len(args) == 0 {
		cmd.Usage()
	}
	reqs, err := syncFlags.requests(args, syncForce)
	if err != nil {
		fatal(err, "invalid arguments")
	}

	ctx, a := setup()
	resps, err := a.syncer.SyncAll(ctx, reqs)
	for _, r := range resps {
		if r.Key.Model == "" {
			continue
		}
		state := "up to date"
		if r.Decision.Required {
			state = fmt.Sprintf("downloaded %d files (%s)", r.Downloaded, ByteCount(r.Bytes))
		}
		fmt.Printf("%-40s %-14s %s\n", r.Key, r.Decision.Remote.Run, state)
	}
	if err != nil {
		fatal(err, "sync failed")
	}
}

// ByteCount formats a size in binary units.
type ByteCount int64

func (bytes ByteCount) String() string {
	switch {
	case bytes < 2<<10:
		return fmt.Sprintf("%dB", bytes)
	case bytes < 2<<20:
		return fmt.Sprintf("%dKiB", bytes>>10)
	case bytes < 2<<30:
		return fmt.Sprintf("%dMiB", bytes>>20)
	default:
		return fmt.Sprintf("%dGiB", bytes>>30)
	}
}

func modelList(c *services.Catalog) string {
	return strings.Join(c.Names(), ", ")
}
