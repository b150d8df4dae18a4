// scraper/listing.go
package scraper

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gewnthar/nwpsync/models"
	"github.com/gewnthar/nwpsync/utils"
)

// ListIndex scrapes an HTTP directory listing and returns its entry names,
// without trailing slashes, in page order. Parent and sort links are skipped.
func (c *HTTPClient) ListIndex(ctx context.Context, indexURL string) ([]string, error) {
	res, err := c.get(ctx, indexURL)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusTooManyRequests:
		return nil, fmt.Errorf("%w: %s returned %d", ErrRateLimited, indexURL, res.StatusCode)
	default:
		return nil, fmt.Errorf("%w: %s returned %d", ErrUnexpectedStatus, indexURL, res.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", indexURL, err)
	}

	var names []string
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(i int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		if href == "" || strings.HasPrefix(href, "?") || strings.HasPrefix(href, "/") ||
			strings.HasPrefix(href, "../") || strings.Contains(href, "://") {
			return
		}
		name := strings.TrimSuffix(href, "/")
		if name == "" || name == "." || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	})
	return names, nil
}

// ListRuns returns the runs published under idx, newest first.
func (c *HTTPClient) ListRuns(ctx context.Context, idx models.RunIndex) ([]models.RunCandidate, error) {
	if idx.URL == "" {
		return nil, fmt.Errorf("no run index configured")
	}
	runRe, err := regexp.Compile(idx.RunPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid run pattern: %w", err)
	}
	var hourRe *regexp.Regexp
	if idx.HourPattern != "" {
		if hourRe, err = regexp.Compile(idx.HourPattern); err != nil {
			return nil, fmt.Errorf("invalid hour pattern: %w", err)
		}
	}

	root := withSlash(idx.URL)
	entries, err := c.ListIndex(ctx, root)
	if err != nil {
		return nil, err
	}

	var runs []models.RunCandidate
	for _, name := range entries {
		groups, ok := matchGroups(runRe, name)
		if !ok {
			continue
		}
		day, err := parseDay(groups)
		if err != nil {
			utils.Log.Debug().Err(err).Str("entry", name).Msg("skipping index entry")
			continue
		}

		if hourRe == nil {
			h, err := strconv.Atoi(groups["hour"])
			if err != nil {
				continue
			}
			runs = append(runs, models.NewRunCandidate(day.Add(time.Duration(h)*time.Hour)))
			continue
		}

		sub, err := c.ListIndex(ctx, root+name+"/")
		if err != nil {
			return nil, err
		}
		for _, hname := range sub {
			hg, ok := matchGroups(hourRe, hname)
			if !ok {
				continue
			}
			h, err := strconv.Atoi(hg["hour"])
			if err != nil {
				continue
			}
			runs = append(runs, models.NewRunCandidate(day.Add(time.Duration(h)*time.Hour)))
		}
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Time.After(runs[j].Time) })
	return runs, nil
}

func matchGroups(re *regexp.Regexp, s string) (map[string]string, bool) {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return nil, false
	}
	groups := make(map[string]string, len(m))
	for i, name := range re.SubexpNames() {
		if name != "" {
			groups[name] = m[i]
		}
	}
	return groups, true
}

func parseDay(groups map[string]string) (time.Time, error) {
	return time.Parse("20060102", groups["year"]+groups["month"]+groups["day"])
}

func withSlash(u string) string {
	if strings.HasSuffix(u, "/") {
		return u
	}
	return u + "/"
}
