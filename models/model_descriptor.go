// models/model_descriptor.go
package models

import (
	"fmt"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Template tokens understood by BaseURL, Directory.Path and Directory.File.
const (
	TokenDate     = "{YYYYMMDD}"
	TokenRunHour  = "{HH}"
	TokenFcst3    = "{FFF}" // zero padded forecast hour
	TokenFcst     = "{F}"   // unpadded forecast hour
	TokenMember   = "{MM}"
	TokenCategory = "{CATEGORY}"
	TokenDir      = "{DIR}"
)

const gribSuffix = ".grib2"

// ModelDescriptor is the static metadata of one model family. Descriptors are
// loaded once and never mutated.
type ModelDescriptor struct {
	Name            string               `yaml:"name"`
	BaseURL         string               `yaml:"base_url"`      // run prefix; tokens {YYYYMMDD} {HH} {DIR}
	Cadence         []int                `yaml:"cadence"`       // synoptic run hours
	RollingHours    int                  `yaml:"rolling_hours"` // used when Cadence is empty
	LookbackDays    int                  `yaml:"lookback_days"`
	MaxForecastHour int                  `yaml:"max_forecast_hour"`
	Steps           []int                `yaml:"steps"`
	ExtendedFrom    int                  `yaml:"extended_from"` // forecast hour after which ExtendedStep applies
	ExtendedStep    int                  `yaml:"extended_step"`
	Members         int                  `yaml:"members"`     // 0 for deterministic models
	NoAnalysis      bool                 `yaml:"no_analysis"` // output starts at the first step, not hour 0
	Directories     map[string]Directory `yaml:"directories"`
	DefaultDir      string               `yaml:"default_directory"`
	Index           RunIndex             `yaml:"index"`
}

// RunIndex locates run directories in an HTTP directory listing. RunPattern
// matches entries under URL and must capture year, month and day; the hour
// comes from the same match or, when HourPattern is set, from entries one
// level down. An empty URL means the provider offers no browsable index.
type RunIndex struct {
	URL         string `yaml:"url"`
	RunPattern  string `yaml:"run_pattern"`
	HourPattern string `yaml:"hour_pattern"`
}

// Directory is one provider sub-directory (atmos, wave, chem...). File is
// relative to the run URL and may contain sub-paths.
type Directory struct {
	Path       string              `yaml:"path"`
	File       string              `yaml:"file"`
	Categories map[string]Category `yaml:"categories"`
}

// Category is a variable category inside a directory. Token replaces
// {CATEGORY} in the file template; per-member tokens contain {MM}.
type Category struct {
	Token     string `yaml:"token"`
	PerMember bool   `yaml:"per_member"`
}

// Ensemble reports whether the model has perturbed members.
func (m ModelDescriptor) Ensemble() bool { return m.Members > 0 }

// ValidStep reports whether step is one of the model's increments.
func (m ModelDescriptor) ValidStep(step int) bool {
	for _, s := range m.Steps {
		if s == step {
			return true
		}
	}
	return false
}

// DefaultStep is the smallest configured increment.
func (m ModelDescriptor) DefaultStep() int {
	if len(m.Steps) == 0 {
		return 1
	}
	steps := append([]int(nil), m.Steps...)
	sort.Ints(steps)
	return steps[0]
}

// Lookup returns the directory and category definitions for a dataset.
func (m ModelDescriptor) Lookup(dir, category string) (Directory, Category, error) {
	d, ok := m.Directories[dir]
	if !ok {
		return Directory{}, Category{}, fmt.Errorf("model %s has no directory %q", m.Name, dir)
	}
	c, ok := d.Categories[category]
	if !ok {
		return Directory{}, Category{}, fmt.Errorf("model %s directory %s has no category %q", m.Name, dir, category)
	}
	return d, c, nil
}

// ForecastHours lists the forecast hours to fetch for step up to horizon. A
// horizon of 0 (or above the model maximum) means the model maximum. Past
// ExtendedFrom the model publishes only every ExtendedStep hours. Models
// without an analysis file start at hour step instead of 0.
func (m ModelDescriptor) ForecastHours(step, horizon int) ([]int, error) {
	if step <= 0 {
		return nil, fmt.Errorf("invalid step %d", step)
	}
	if horizon <= 0 || horizon > m.MaxForecastHour {
		horizon = m.MaxForecastHour
	}

	first := 0
	if m.NoAnalysis {
		first = step
	}
	if first > horizon {
		return nil, fmt.Errorf("model %s publishes nothing up to hour %d at a %dh step", m.Name, horizon, step)
	}

	var hours []int
	for fh := first; fh <= horizon; {
		hours = append(hours, fh)
		inc := step
		if m.ExtendedStep > 0 && fh >= m.ExtendedFrom && m.ExtendedStep > step {
			inc = m.ExtendedStep
		}
		fh += inc
	}
	return hours, nil
}

// RunURL renders the base URL for one run in one directory, with a trailing
// slash.
func (m ModelDescriptor) RunURL(run RunCandidate, dir string) string {
	d := m.Directories[dir]
	u := expand(m.BaseURL, map[string]string{
		TokenDir:     d.Path,
		TokenDate:    run.Date(),
		TokenRunHour: fmt.Sprintf("%02d", run.Hour()),
	})
	// the directory path itself may carry run tokens
	u = expand(u, map[string]string{
		TokenDate:    run.Date(),
		TokenRunHour: fmt.Sprintf("%02d", run.Hour()),
	})
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

// FileName renders the remote file path (relative to RunURL) of one forecast
// hour. member is ignored unless the category is per-member.
func (m ModelDescriptor) FileName(run RunCandidate, dir, category string, member, fhr int) (string, error) {
	d, c, err := m.Lookup(dir, category)
	if err != nil {
		return "", err
	}
	tmpl := strings.ReplaceAll(d.File, TokenCategory, c.Token)
	return expand(tmpl, map[string]string{
		TokenDate:    run.Date(),
		TokenRunHour: fmt.Sprintf("%02d", run.Hour()),
		TokenFcst3:   fmt.Sprintf("%03d", fhr),
		TokenFcst:    strconv.Itoa(fhr),
		TokenMember:  fmt.Sprintf("%02d", member),
	}), nil
}

// MarkerName is the file least likely to exist before the run has finished
// publishing: the maximum forecast hour of the highest-numbered member.
func (m ModelDescriptor) MarkerName(run RunCandidate, dir, category string) (string, error) {
	_, c, err := m.Lookup(dir, category)
	if err != nil {
		return "", err
	}
	member := 0
	if c.PerMember {
		member = m.Members
	}
	return m.FileName(run, dir, category, member, m.MaxForecastHour)
}

// LocalName maps a remote file path to the name stored in the cache. The
// post-processor globs *.grib2, so the suffix is added when missing.
func LocalName(remote string) string {
	base := path.Base(remote)
	if strings.HasSuffix(base, gribSuffix) {
		return base
	}
	return base + gribSuffix
}

// FilenameGrammar parses cached filenames of one (directory, category).
type FilenameGrammar struct {
	re *regexp.Regexp
}

// FilenameFields holds what a cached filename encodes. Missing run hour and
// member are -1; a missing forecast hour is 0, as analysis files carry no
// lead time.
type FilenameFields struct {
	Date         string
	RunHour      int
	ForecastHour int
	Member       int
}

var tokenPattern = regexp.MustCompile(`\{[A-Z]+\}`)

var tokenGroups = map[string]struct{ name, expr string }{
	TokenDate:    {"date", `\d{8}`},
	TokenRunHour: {"run", `\d{2}`},
	TokenFcst3:   {"fhr", `\d{3}`},
	TokenFcst:    {"fhr", `\d+`},
	TokenMember:  {"member", `\d{2}`},
}

// Grammar compiles the filename grammar of a dataset from its file template.
func (m ModelDescriptor) Grammar(dir, category string) (*FilenameGrammar, error) {
	d, c, err := m.Lookup(dir, category)
	if err != nil {
		return nil, err
	}
	tmpl := LocalName(strings.ReplaceAll(d.File, TokenCategory, c.Token))
	return compileGrammar(tmpl)
}

func compileGrammar(tmpl string) (*FilenameGrammar, error) {
	var b strings.Builder
	b.WriteString("^")
	seen := map[string]bool{}
	last := 0
	for _, loc := range tokenPattern.FindAllStringIndex(tmpl, -1) {
		b.WriteString(regexp.QuoteMeta(tmpl[last:loc[0]]))
		tok := tmpl[loc[0]:loc[1]]
		g, ok := tokenGroups[tok]
		if !ok {
			return nil, fmt.Errorf("unknown token %s in template %q", tok, tmpl)
		}
		if seen[g.name] {
			b.WriteString(g.expr)
		} else {
			fmt.Fprintf(&b, "(?P<%s>%s)", g.name, g.expr)
			seen[g.name] = true
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(tmpl[last:]))
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return nil, fmt.Errorf("compiling grammar for %q: %w", tmpl, err)
	}
	return &FilenameGrammar{re: re}, nil
}

// Parse extracts the encoded fields from a cached filename.
func (g *FilenameGrammar) Parse(name string) (FilenameFields, bool) {
	sub := g.re.FindStringSubmatch(name)
	if sub == nil {
		return FilenameFields{}, false
	}
	f := FilenameFields{RunHour: -1, Member: -1}
	for i, group := range g.re.SubexpNames() {
		if group == "" {
			continue
		}
		switch group {
		case "date":
			f.Date = sub[i]
		case "run":
			f.RunHour, _ = strconv.Atoi(sub[i])
		case "fhr":
			f.ForecastHour, _ = strconv.Atoi(sub[i])
		case "member":
			f.Member, _ = strconv.Atoi(sub[i])
		}
	}
	return f, true
}

func (g *FilenameGrammar) String() string { return g.re.String() }

func expand(tmpl string, vals map[string]string) string {
	return tokenPattern.ReplaceAllStringFunc(tmpl, func(tok string) string {
		if v, ok := vals[tok]; ok {
			return v
		}
		return tok
	})
}
