// services/catalog.go
package services

import (
	"fmt"
	"sort"

	"github.com/gewnthar/nwpsync/config"
	"github.com/gewnthar/nwpsync/models"
	"github.com/gewnthar/nwpsync/utils"
)

const nomads = "https://nomads.ncep.noaa.gov/pub/data/nccf/com"

var (
	synoptic4 = []int{0, 6, 12, 18}
	synoptic2 = []int{0, 12}

	datePattern = `(?P<year>\d{4})(?P<month>\d{2})(?P<day>\d{2})`
	hourDir     = `^(?P<hour>\d{2})$`
)

var ecmwfDirectories = map[string]models.Directory{
	"oper": {
		Path:       "ifs/0p25/oper",
		File:       "{YYYYMMDD}{HH}0000-{F}h-oper-fc.grib2",
		Categories: map[string]models.Category{"fc": {}},
	},
	"enfo": {
		Path:       "ifs/0p25/enfo",
		File:       "{YYYYMMDD}{HH}0000-{F}h-enfo-ef.grib2",
		Categories: map[string]models.Category{"ef": {}},
	},
}

var builtinModels = []models.ModelDescriptor{
	{
		Name:            "gfs",
		BaseURL:         nomads + "/gfs/prod/gfs.{YYYYMMDD}/{HH}/{DIR}",
		Cadence:         synoptic4,
		LookbackDays:    2,
		MaxForecastHour: 384,
		Steps:           []int{3, 6},
		DefaultDir:      "atmos",
		Directories: map[string]models.Directory{
			"atmos": {
				Path: "atmos",
				File: "gfs.t{HH}z.{CATEGORY}.f{FFF}",
				Categories: map[string]models.Category{
					"pgrb2.0p25":  {Token: "pgrb2.0p25"},
					"pgrb2.0p50":  {Token: "pgrb2.0p50"},
					"pgrb2.1p00":  {Token: "pgrb2.1p00"},
					"pgrb2b.0p25": {Token: "pgrb2b.0p25"},
				},
			},
			"wave": {
				Path: "wave/gridded",
				File: "gfswave.t{HH}z.{CATEGORY}.f{FFF}.grib2",
				Categories: map[string]models.Category{
					"global.0p25": {Token: "global.0p25"},
					"global.0p16": {Token: "global.0p16"},
				},
			},
		},
		Index: models.RunIndex{
			URL:         nomads + "/gfs/prod/",
			RunPattern:  `^gfs\.` + datePattern + `$`,
			HourPattern: hourDir,
		},
	},
	{
		Name:            "gefs",
		BaseURL:         nomads + "/gens/prod/gefs.{YYYYMMDD}/{HH}/{DIR}",
		Cadence:         synoptic4,
		LookbackDays:    2,
		MaxForecastHour: 384,
		Steps:           []int{3, 6},
		ExtendedFrom:    240,
		ExtendedStep:    6,
		Members:         30,
		DefaultDir:      "atmos",
		Directories: map[string]models.Directory{
			"atmos": {
				Path: "atmos/pgrb2ap5",
				File: "{CATEGORY}.t{HH}z.pgrb2a.0p50.f{FFF}",
				Categories: map[string]models.Category{
					"mean":    {Token: "geavg"},
					"control": {Token: "gec00"},
					"spread":  {Token: "gespr"},
					"members": {Token: "gep{MM}", PerMember: true},
				},
			},
			"wave": {
				Path: "wave/gridded",
				File: "gefs.wave.t{HH}z.{CATEGORY}.global.0p25.f{FFF}.grib2",
				Categories: map[string]models.Category{
					"mean":    {Token: "mean"},
					"control": {Token: "c00"},
					"spread":  {Token: "spread"},
					"members": {Token: "p{MM}", PerMember: true},
				},
			},
		},
		Index: models.RunIndex{
			URL:         nomads + "/gens/prod/",
			RunPattern:  `^gefs\.` + datePattern + `$`,
			HourPattern: hourDir,
		},
	},
	{
		Name:            "ecmwf",
		BaseURL:         "https://data.ecmwf.int/forecasts/{YYYYMMDD}/{HH}z/{DIR}",
		Cadence:         synoptic2,
		LookbackDays:    2,
		MaxForecastHour: 360,
		Steps:           []int{3, 6},
		ExtendedFrom:    144,
		ExtendedStep:    6,
		DefaultDir:      "oper",
		Directories:     ecmwfDirectories,
		Index: models.RunIndex{
			URL:         "https://data.ecmwf.int/forecasts/",
			RunPattern:  `^` + datePattern + `$`,
			HourPattern: `^(?P<hour>\d{2})z$`,
		},
	},
	{
		Name:            "ecmwf-gcs",
		BaseURL:         "gs://ecmwf-open-data/{YYYYMMDD}/{HH}z/{DIR}",
		Cadence:         synoptic2,
		LookbackDays:    2,
		MaxForecastHour: 360,
		Steps:           []int{3, 6},
		ExtendedFrom:    144,
		ExtendedStep:    6,
		DefaultDir:      "oper",
		Directories:     ecmwfDirectories,
	},
	{
		Name:            "gem",
		BaseURL:         "https://dd.weather.gc.ca/model_gem_global/15km/grib2/lat_lon/{HH}/{DIR}",
		Cadence:         synoptic2,
		LookbackDays:    2,
		MaxForecastHour: 240,
		Steps:           []int{3, 6},
		DefaultDir:      "lat_lon",
		Directories: map[string]models.Directory{
			"lat_lon": {
				File: "{FFF}/CMC_glb_{CATEGORY}_latlon.15x.15_{YYYYMMDD}{HH}_P{FFF}.grib2",
				Categories: map[string]models.Category{
					"TMP_TGL_2":   {Token: "TMP_TGL_2"},
					"PRMSL_MSL_0": {Token: "PRMSL_MSL_0"},
					"APCP_SFC_0":  {Token: "APCP_SFC_0"},
					"UGRD_TGL_10": {Token: "UGRD_TGL_10"},
					"VGRD_TGL_10": {Token: "VGRD_TGL_10"},
				},
			},
		},
	},
	{
		Name:            "nbm",
		BaseURL:         nomads + "/blend/prod/blend.{YYYYMMDD}/{HH}/{DIR}",
		Cadence:         []int{1, 7, 13, 19},
		LookbackDays:    2,
		MaxForecastHour: 264,
		Steps:           []int{3, 6},
		NoAnalysis:      true,
		ExtendedFrom:    192,
		ExtendedStep:    6,
		DefaultDir:      "core",
		Directories: map[string]models.Directory{
			"core": {
				Path: "core",
				File: "blend.t{HH}z.core.f{FFF}.{CATEGORY}.grib2",
				Categories: map[string]models.Category{
					"co": {Token: "co"},
					"ak": {Token: "ak"},
					"hi": {Token: "hi"},
					"pr": {Token: "pr"},
				},
			},
		},
		Index: models.RunIndex{
			URL:         nomads + "/blend/prod/",
			RunPattern:  `^blend\.` + datePattern + `$`,
			HourPattern: hourDir,
		},
	},
	{
		Name:            "rtma",
		BaseURL:         nomads + "/rtma/prod/rtma2p5.{YYYYMMDD}/{DIR}",
		RollingHours:    5,
		MaxForecastHour: 0,
		Steps:           []int{1},
		DefaultDir:      "anl",
		Directories: map[string]models.Directory{
			"anl": {
				File:       "rtma2p5.t{HH}z.2dvaranl_ndfd.grb2_wexp",
				Categories: map[string]models.Category{"2dvaranl": {}},
			},
		},
	},
}

// Catalog holds the model descriptors known to the process.
type Catalog struct {
	models map[string]models.ModelDescriptor
}

// NewCatalog returns the built-in descriptors with overrides applied. An
// override naming an unknown model, or a maximum forecast hour the model
// never publishes, is an error.
func NewCatalog(overrides []config.ModelOverride) (*Catalog, error) {
	c := &Catalog{models: make(map[string]models.ModelDescriptor, len(builtinModels))}
	for _, m := range builtinModels {
		c.models[m.Name] = m
	}

	for _, o := range overrides {
		m, ok := c.models[utils.NormalizeModelName(o.Name)]
		if !ok {
			return nil, fmt.Errorf("%w: override for %q", ErrUnknownModel, o.Name)
		}
		if o.BaseURL != "" {
			m.BaseURL = o.BaseURL
		}
		if o.LookbackDays > 0 {
			m.LookbackDays = o.LookbackDays
		}
		if o.MaxForecastHour > 0 {
			m.MaxForecastHour = o.MaxForecastHour
			if !publishesHour(m, o.MaxForecastHour) {
				return nil, fmt.Errorf("model %s does not publish forecast hour %d", m.Name, o.MaxForecastHour)
			}
		}
		c.models[m.Name] = m
	}
	return c, nil
}

// Lookup returns the descriptor for a model name, wrapping ErrUnknownModel
// when there is none.
func (c *Catalog) Lookup(name string) (models.ModelDescriptor, error) {
	m, ok := c.models[utils.NormalizeModelName(name)]
	if !ok {
		return models.ModelDescriptor{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return m, nil
}

// Names lists the known models alphabetically.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.models))
	for n := range c.models {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func publishesHour(m models.ModelDescriptor, fhr int) bool {
	hours, err := m.ForecastHours(m.DefaultStep(), fhr)
	if err != nil || len(hours) == 0 {
		return false
	}
	return hours[len(hours)-1] == fhr
}
