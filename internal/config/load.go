package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a configuration file. JSON and YAML are both
// accepted, chosen by extension with JSON as the default. Failure returns
// a *Error and is fatal at startup; nothing is retried.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Err: err}
	}
	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, &Error{Err: err}
		}
	default:
		if err := sonic.Unmarshal(data, &cfg); err != nil {
			return nil, &Error{Err: err}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func scale(v float64) *float64 { return &v }

// Default returns the built-in configuration: the message selections,
// channel renames and units table the tool ships with. Used whenever no
// configuration file is supplied.
func Default() *Config {
	return &Config{
		CSV: Section{
			Columns: map[string]FieldRule{
				"GPS.Latitude":  {Group: "GPS", BaseName: "Latitude"},
				"GPS.Longitude": {Group: "GPS", BaseName: "Longitude"},
				"Alt(m)":        {Group: "GPS", BaseName: "Altitude", Unit: "m"},
				"GPS alt(m)":    {Group: "GPS", BaseName: "Altitude", Unit: "m"},
				"GSpd(kmh)":     {Group: "GPS", BaseName: "GroundSpeed", Unit: "km/h"},
				"VFAS(V)":       {Group: "POWER", BaseName: "VFAS", Unit: "V"},
				"Current(A)":    {Group: "POWER", BaseName: "Current", Unit: "A"},
				"Curr(A)":       {Group: "POWER", BaseName: "Current", Unit: "A"},
				"RxBt(V)":       {Group: "POWER", BaseName: "RxBattery", Unit: "V"},
				"LiPo1(V)":      {Group: "POWER", BaseName: "LiPo1", Unit: "V"},
				"LiPo2(V)":      {Group: "POWER", BaseName: "LiPo2", Unit: "V"},
				"LiPo3(V)":      {Group: "POWER", BaseName: "LiPo3", Unit: "V"},
				"LiPo4(V)":      {Group: "POWER", BaseName: "LiPo4", Unit: "V"},
				"LiPo5(V)":      {Group: "POWER", BaseName: "LiPo5", Unit: "V"},
				"LiPo6(V)":      {Group: "POWER", BaseName: "LiPo6", Unit: "V"},
				"RSSI(dB)":      {Group: "RADIO", BaseName: "RSSI", Unit: "dB"},
				"RQly(%)":       {Group: "RADIO", BaseName: "RxQuality", Unit: "%"},
				"TQly(%)":       {Group: "RADIO", BaseName: "TxQuality", Unit: "%"},
				"Alt(ft)":       {Group: "GPS", BaseName: "Altitude", Unit: "m", Scale: scale(0.3048)},
			},
		},
		Telemetry: Section{
			Messages: map[string]MessageRule{
				"GLOBAL_POSITION_INT": {
					Group: "GPS",
					Fields: map[string]FieldRule{
						"lat":          {BaseName: "Latitude"},
						"lon":          {BaseName: "Longitude"},
						"alt":          {BaseName: "Altitude"},
						"relative_alt": {BaseName: "RelativeAltitude"},
						"hdg":          {BaseName: "Heading"},
						"vx":           {BaseName: "VelocityX"},
						"vy":           {BaseName: "VelocityY"},
						"vz":           {BaseName: "VelocityZ"},
					},
				},
				"GPS_RAW_INT": {
					Group: "GPSRAW",
					Fields: map[string]FieldRule{
						"lat":                {BaseName: "Latitude"},
						"lon":                {BaseName: "Longitude"},
						"alt":                {BaseName: "Altitude"},
						"vel":                {BaseName: "GroundSpeed"},
						"satellites_visible": {BaseName: "Satellites"},
					},
				},
				"SYS_STATUS": {
					Group: "SYS",
					Fields: map[string]FieldRule{
						"voltage_battery":   {BaseName: "BatteryVoltage"},
						"current_battery":   {BaseName: "BatteryCurrent"},
						"battery_remaining": {BaseName: "BatteryRemaining"},
					},
				},
				"ATTITUDE": {Group: "ATT", AllFields: true},
				"VFR_HUD":  {Group: "VFR", AllFields: true},
			},
		},
		Dataflash: Section{
			Messages: map[string]MessageRule{
				"GPS": {
					Group: "GPS",
					Fields: map[string]FieldRule{
						"Lat":   {BaseName: "Latitude"},
						"Lng":   {BaseName: "Longitude"},
						"Alt":   {BaseName: "Altitude"},
						"Spd":   {BaseName: "GroundSpeed"},
						"NSats": {BaseName: "Satellites"},
					},
				},
				"ATT": {Group: "ATT", AllFields: true},
				"BAT": {
					Group: "SYS",
					Fields: map[string]FieldRule{
						"Volt":     {BaseName: "BatteryVoltage"},
						"Curr":     {BaseName: "BatteryCurrent"},
						"CurrTot":  {BaseName: "ConsumedCurrent"},
						"RemPct":   {BaseName: "BatteryRemaining"},
						"Temp":     {BaseName: "BatteryTemperature"},
						"VoltCell": {BaseName: "CellVoltage"},
					},
				},
				"BARO": {Group: "BARO", AllFields: true},
				"RCIN": {Group: "RC", AllFields: true},
			},
		},
		Scaling: map[string]ScalingEntry{
			"degE7":        {Suffix: "deg", Scale: 1e-7},
			"deglatitude":  {Suffix: "deg", Scale: 1e-7},
			"deglongitude": {Suffix: "deg", Scale: 1e-7},
			"mm":           {Suffix: "m", Scale: 0.001},
			"cm":           {Suffix: "m", Scale: 0.01},
			"cm/s":         {Suffix: "m/s", Scale: 0.01},
			"cdeg":         {Suffix: "deg", Scale: 0.01},
			"mV":           {Suffix: "V", Scale: 0.001},
			"cA":           {Suffix: "A", Scale: 0.01},
			"mG":           {Suffix: "G", Scale: 0.001},
			"mrad/s":       {Suffix: "rad/s", Scale: 0.001},
			"cdegC":        {Suffix: "degC", Scale: 0.01},
			"c%":           {Suffix: "%", Scale: 0.01},
			"d%":           {Suffix: "%", Scale: 0.1},
			"km/h":         {Suffix: "m/s", Scale: 1.0 / 3.6},
			"rad":          {Suffix: "rad", Scale: 1},
			"rad/s":        {Suffix: "rad/s", Scale: 1},
			"deg":          {Suffix: "deg", Scale: 1},
			"deg/s":        {Suffix: "deg/s", Scale: 1},
			"degheading":   {Suffix: "deg", Scale: 1},
			"degC":         {Suffix: "degC", Scale: 1},
			"m":            {Suffix: "m", Scale: 1},
			"m/s":          {Suffix: "m/s", Scale: 1},
			"m/s/s":        {Suffix: "m/s/s", Scale: 1},
			"V":            {Suffix: "V", Scale: 1},
			"A":            {Suffix: "A", Scale: 1},
			"mAh":          {Suffix: "mAh", Scale: 1},
			"%":            {Suffix: "%", Scale: 1},
			"hPa":          {Suffix: "hPa", Scale: 1},
			"Pa":           {Suffix: "Pa", Scale: 1},
			"Hz":           {Suffix: "Hz", Scale: 1},
			"us":           {Suffix: "us", Scale: 1},
			"Gauss":        {Suffix: "G", Scale: 1},
			"satellites":   {Suffix: "", Scale: 1},
		},
	}
}
