package common

// StepType tells whether a field is a snapshot or accumulated over the step.
type StepType int

const (
	INSTANT StepType = iota
	ACCUMULATED
)

// LevelType is the vertical coordinate of a variable.
type LevelType int

const (
	SURFACE LevelType = iota
	ISOBARIC
)

type VariableOptions struct {
	DisplayName string
	Unit        string
	LevelType   LevelType
	StepType    StepType
}

// Variables is the provider independent vocabulary used by products. Each
// model maps these keys to its own names.
var Variables map[string]VariableOptions = map[string]VariableOptions{
	"tmp2m":    {DisplayName: "2 m temperature", Unit: "K", LevelType: SURFACE, StepType: INSTANT},
	"rh2m":     {DisplayName: "2 m relative humidity", Unit: "%", LevelType: SURFACE, StepType: INSTANT},
	"ugrd10m":  {DisplayName: "10 m u wind", Unit: "m/s", LevelType: SURFACE, StepType: INSTANT},
	"vgrd10m":  {DisplayName: "10 m v wind", Unit: "m/s", LevelType: SURFACE, StepType: INSTANT},
	"gustsfc":  {DisplayName: "surface wind gust", Unit: "m/s", LevelType: SURFACE, StepType: INSTANT},
	"prmslmsl": {DisplayName: "mean sea level pressure", Unit: "Pa", LevelType: SURFACE, StepType: INSTANT},
	"apcpsfc":  {DisplayName: "total precipitation", Unit: "kg m^-2", LevelType: SURFACE, StepType: ACCUMULATED},
	"hgtprs":   {DisplayName: "geopotential height", Unit: "gpm", LevelType: ISOBARIC, StepType: INSTANT},
	"absvprs":  {DisplayName: "absolute vorticity", Unit: "1/s", LevelType: ISOBARIC, StepType: INSTANT},
	"tmpprs":   {DisplayName: "temperature", Unit: "K", LevelType: ISOBARIC, StepType: INSTANT},
	"rhprs":    {DisplayName: "relative humidity", Unit: "%", LevelType: ISOBARIC, StepType: INSTANT},
}

// NoLevel marks reads of surface variables.
const NoLevel = -1.0
