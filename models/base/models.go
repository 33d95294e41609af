package base

import (
	"time"

	"hstin/gridwx/common"
	"hstin/gridwx/fetch"
	"hstin/gridwx/grib"
)

const nomads = "https://nomads.ncep.noaa.gov"

var (
	synoptic = []int{0, 6, 12, 18}
	twiceDay = []int{0, 12}
	hourly   = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23}

	pressureLevels = []float64{1000, 925, 850, 700, 500, 300, 250}
)

// gdsVariables are the GrADS names shared by the NCEP GDS datasets.
var gdsVariables = map[string]string{
	"tmp2m":    "tmp2m",
	"rh2m":     "rh2m",
	"ugrd10m":  "ugrd10m",
	"vgrd10m":  "vgrd10m",
	"gustsfc":  "gustsfc",
	"prmslmsl": "prmslmsl",
	"apcpsfc":  "apcpsfc",
	"hgtprs":   "hgtprs",
	"absvprs":  "absvprs",
	"tmpprs":   "tmpprs",
	"rhprs":    "rhprs",
}

func withVariables(base map[string]string, overrides map[string]string) map[string]string {
	out := make(map[string]string, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overrides {
		if v == "" {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

var registry = map[Model]Config{
	GFS0p25: {
		Model:       GFS0p25,
		Name:        "GFS0p25",
		Description: "GFS 0.25 degree, 3 hourly",
		Schedule:    fetch.Schedule{RunHours: synoptic, Latency: 5 * time.Hour, LookBack: 24 * time.Hour},
		URLFormat:   nomads + "/dods/gfs_0p25/gfs{date}/gfs_0p25_{hour}z",
		Convention:  common.Positive360,
		Source:      SourceGDS,
		StepHours:   3,
		MaxStep:     384,
		Variables:   gdsVariables,
	},
	GFS0p25Hourly: {
		Model:       GFS0p25Hourly,
		Name:        "GFS0p25_1hr",
		Description: "GFS 0.25 degree, hourly to 120 h",
		Schedule:    fetch.Schedule{RunHours: synoptic, Latency: 5 * time.Hour, LookBack: 24 * time.Hour},
		URLFormat:   nomads + "/dods/gfs_0p25_1hr/gfs{date}/gfs_0p25_1hr_{hour}z",
		Convention:  common.Positive360,
		Source:      SourceGDS,
		StepHours:   1,
		MaxStep:     120,
		Variables:   gdsVariables,
	},
	GFS0p50: {
		Model:       GFS0p50,
		Name:        "GFS0p50",
		Description: "GFS 0.50 degree, 3 hourly",
		Schedule:    fetch.Schedule{RunHours: synoptic, Latency: 5 * time.Hour, LookBack: 24 * time.Hour},
		URLFormat:   nomads + "/dods/gfs_0p50/gfs{date}/gfs_0p50_{hour}z",
		Convention:  common.Positive360,
		Source:      SourceGDS,
		StepHours:   3,
		MaxStep:     384,
		Variables:   gdsVariables,
	},
	NAM: {
		Model:       NAM,
		Name:        "NAM",
		Description: "NAM 12 km CONUS, 3 hourly",
		Schedule:    fetch.Schedule{RunHours: synoptic, Latency: 6 * time.Hour, LookBack: 24 * time.Hour},
		URLFormat:   nomads + "/dods/nam/nam{date}/nam_{hour}z",
		Convention:  common.Signed180,
		Source:      SourceGDS,
		StepHours:   3,
		MaxStep:     84,
		Variables:   gdsVariables,
	},
	NAMHourly: {
		Model:       NAMHourly,
		Name:        "NAM_1hr",
		Description: "NAM 12 km CONUS, hourly to 36 h",
		Schedule:    fetch.Schedule{RunHours: synoptic, Latency: 6 * time.Hour, LookBack: 24 * time.Hour},
		URLFormat:   nomads + "/dods/nam/nam{date}/nam1hr_{hour}z",
		Convention:  common.Signed180,
		Source:      SourceGDS,
		StepHours:   1,
		MaxStep:     36,
		Variables:   gdsVariables,
	},
	RAP: {
		Model:       RAP,
		Name:        "RAP",
		Description: "RAP 13 km, hourly",
		Schedule:    fetch.Schedule{RunHours: hourly, Latency: time.Hour, LookBack: 4 * time.Hour},
		URLFormat:   nomads + "/dods/rap/rap{date}/rap_{hour}z",
		Convention:  common.Signed180,
		Source:      SourceGDS,
		StepHours:   1,
		MaxStep:     21,
		Variables:   withVariables(gdsVariables, map[string]string{"prmslmsl": "mslmamsl"}),
	},
	RAP32: {
		Model:       RAP32,
		Name:        "RAP32",
		Description: "RAP 32 km, hourly",
		Schedule:    fetch.Schedule{RunHours: hourly, Latency: time.Hour, LookBack: 4 * time.Hour},
		URLFormat:   nomads + "/dods/rap/rap{date}/rap_32km_{hour}z",
		Convention:  common.Signed180,
		Source:      SourceGDS,
		StepHours:   1,
		MaxStep:     21,
		Variables:   withVariables(gdsVariables, map[string]string{"prmslmsl": "mslmamsl"}),
	},
	GEFSMean: {
		Model:       GEFSMean,
		Name:        "GEFS_mean",
		Description: "GEFS ensemble mean, 0.5 degree",
		Schedule:    fetch.Schedule{RunHours: synoptic, Latency: 7 * time.Hour, LookBack: 24 * time.Hour},
		URLFormat:   nomads + "/dods/gens_bc/gens{date}/geavg_{hour}z",
		Convention:  common.Positive360,
		Source:      SourceGDS,
		StepHours:   6,
		MaxStep:     384,
		Variables: withVariables(gdsVariables, map[string]string{
			"gustsfc": "",
			"absvprs": "",
		}),
	},
	CMCEnsMean: {
		Model:       CMCEnsMean,
		Name:        "CMC_ens_mean",
		Description: "CMC ensemble mean (NAEFS), 0.5 degree",
		Schedule:    fetch.Schedule{RunHours: twiceDay, Latency: 8 * time.Hour, LookBack: 24 * time.Hour},
		URLFormat:   nomads + "/pub/data/nccf/com/naefs/prod/cmce.{date}/{hour}/pgrb2ap5/cmc_geavg.t{hour}z.pgrb2a.0p50.f{fhour}",
		Convention:  common.Positive360,
		Source:      SourceGRIBIndex,
		StepHours:   6,
		MaxStep:     384,
		GribParams: map[string]GribParam{
			"tmp2m":    {Name: "TMP", Level: "2 m above ground"},
			"rh2m":     {Name: "RH", Level: "2 m above ground"},
			"ugrd10m":  {Name: "UGRD", Level: "10 m above ground"},
			"vgrd10m":  {Name: "VGRD", Level: "10 m above ground"},
			"prmslmsl": {Name: "PRMSL", Level: "mean sea level"},
			"hgtprs":   {Name: "HGT", Level: "%g mb"},
			"tmpprs":   {Name: "TMP", Level: "%g mb"},
			"rhprs":    {Name: "RH", Level: "%g mb"},
		},
		Levels: pressureLevels,
		Grid:   GribGrid{LatFirst: 90, LonFirst: 0, DLat: -0.5, DLon: 0.5, Nlat: 361, Nlon: 720},
	},
	UKMET: {
		Model:       UKMET,
		Name:        "UKMET",
		Description: "Met Office global, 0.25 degree",
		Schedule:    fetch.Schedule{RunHours: twiceDay, Latency: 8 * time.Hour, LookBack: 24 * time.Hour},
		URLFormat:   nomads + "/pub/data/nccf/com/ukmet/prod/ukmet.{date}/{hour}/ukmet.t{hour}z.{var:L}.{level:L}.f{fhour}.grib2",
		Convention:  common.Signed180,
		Source:      SourceGRIBFile,
		StepHours:   6,
		MaxStep:     144,
		GribParams: map[string]GribParam{
			"tmp2m":    {Name: "TMP", Level: "TGL_2"},
			"rh2m":     {Name: "RH", Level: "TGL_2"},
			"ugrd10m":  {Name: "UGRD", Level: "TGL_10"},
			"vgrd10m":  {Name: "VGRD", Level: "TGL_10"},
			"prmslmsl": {Name: "PRMSL", Level: "MSL"},
			"hgtprs":   {Name: "HGT", Level: "ISBL_%g"},
		},
		Levels: []float64{500},
		Grid:   GribGrid{LatFirst: -90, LonFirst: -180, DLat: 0.25, DLon: 0.25, Nlat: 721, Nlon: 1440},
	},
	RDPA: {
		Model:       RDPA,
		Name:        "RDPA",
		Description: "Canadian 24 h precipitation analysis",
		Schedule:    fetch.Schedule{RunHours: twiceDay, Latency: 2 * time.Hour, LookBack: 24 * time.Hour},
		URLFormat:   "https://dd.weather.gc.ca/analysis/precip/rdpa/grib2/polar_stereographic/24/CMC_RDPA_{var}_{level}_ps10km_{date}{hour}_000.grib2",
		Convention:  common.Signed180,
		Source:      SourceGRIBFile,
		StepHours:   24,
		MaxStep:     0,
		GribParams: map[string]GribParam{
			"apcpsfc": {Name: "APCP-024-0100cutoff", Level: "SFC-0"},
		},
		Grid: GribGrid{LatFirst: 20, LonFirst: -170, DLat: 0.1, DLon: 0.1, Nlat: 651, Nlon: 1301},
		// ps10km grid of the ECCC datamart
		Native: &grib.PolarStereographic{
			Nx: 935, Ny: 824,
			La1: 18.1429, Lo1: 217.1059,
			LoV: 249, LaD: 60,
			Dx: 10000, Dy: 10000,
			Radius: 6371229,
		},
	},
}
