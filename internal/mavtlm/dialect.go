package mavtlm

// The wire dialect is a declarative table: message id to name, wire-ordered
// field layout and per-field unit tags. Adding a message type is a table
// entry, not new decode code. Field order below is the on-wire order
// (fields sorted by size, largest first, original declaration order within
// a size class).

type FieldType uint8

const (
	TypeUint8 FieldType = iota
	TypeInt8
	TypeUint16
	TypeInt16
	TypeUint32
	TypeInt32
	TypeUint64
	TypeInt64
	TypeFloat32
	TypeFloat64
	TypeChar
)

var typeSizes = [...]int{
	TypeUint8:   1,
	TypeInt8:    1,
	TypeUint16:  2,
	TypeInt16:   2,
	TypeUint32:  4,
	TypeInt32:   4,
	TypeUint64:  8,
	TypeInt64:   8,
	TypeFloat32: 4,
	TypeFloat64: 8,
	TypeChar:    1,
}

// FieldDef describes one wire field. Count > 1 marks an array; array
// elements emit as "name[i]".
type FieldDef struct {
	Name  string
	Type  FieldType
	Count int
	Unit  string
}

func (f FieldDef) size() int {
	n := f.Count
	if n < 1 {
		n = 1
	}
	return typeSizes[f.Type] * n
}

// MessageDef is one entry in the dialect table.
type MessageDef struct {
	ID     uint32
	Name   string
	Fields []FieldDef
}

// WireLen returns the full payload length of the message. v2 frames may
// carry fewer bytes (zero truncation); the decoder zero-extends to this.
func (m MessageDef) WireLen() int {
	n := 0
	for _, f := range m.Fields {
		n += f.size()
	}
	return n
}

var dialect = map[uint32]MessageDef{
	0: {ID: 0, Name: "HEARTBEAT", Fields: []FieldDef{
		{Name: "custom_mode", Type: TypeUint32},
		{Name: "type", Type: TypeUint8},
		{Name: "autopilot", Type: TypeUint8},
		{Name: "base_mode", Type: TypeUint8},
		{Name: "system_status", Type: TypeUint8},
		{Name: "mavlink_version", Type: TypeUint8},
	}},
	1: {ID: 1, Name: "SYS_STATUS", Fields: []FieldDef{
		{Name: "onboard_control_sensors_present", Type: TypeUint32},
		{Name: "onboard_control_sensors_enabled", Type: TypeUint32},
		{Name: "onboard_control_sensors_health", Type: TypeUint32},
		{Name: "load", Type: TypeUint16, Unit: "d%"},
		{Name: "voltage_battery", Type: TypeUint16, Unit: "mV"},
		{Name: "current_battery", Type: TypeInt16, Unit: "cA"},
		{Name: "drop_rate_comm", Type: TypeUint16, Unit: "c%"},
		{Name: "errors_comm", Type: TypeUint16},
		{Name: "errors_count1", Type: TypeUint16},
		{Name: "errors_count2", Type: TypeUint16},
		{Name: "errors_count3", Type: TypeUint16},
		{Name: "errors_count4", Type: TypeUint16},
		{Name: "battery_remaining", Type: TypeInt8, Unit: "%"},
	}},
	2: {ID: 2, Name: "SYSTEM_TIME", Fields: []FieldDef{
		{Name: "time_unix_usec", Type: TypeUint64, Unit: "us"},
		{Name: "time_boot_ms", Type: TypeUint32, Unit: "ms"},
	}},
	24: {ID: 24, Name: "GPS_RAW_INT", Fields: []FieldDef{
		{Name: "time_usec", Type: TypeUint64, Unit: "us"},
		{Name: "lat", Type: TypeInt32, Unit: "degE7"},
		{Name: "lon", Type: TypeInt32, Unit: "degE7"},
		{Name: "alt", Type: TypeInt32, Unit: "mm"},
		{Name: "eph", Type: TypeUint16},
		{Name: "epv", Type: TypeUint16},
		{Name: "vel", Type: TypeUint16, Unit: "cm/s"},
		{Name: "cog", Type: TypeUint16, Unit: "cdeg"},
		{Name: "fix_type", Type: TypeUint8},
		{Name: "satellites_visible", Type: TypeUint8, Unit: "satellites"},
	}},
	27: {ID: 27, Name: "RAW_IMU", Fields: []FieldDef{
		{Name: "time_usec", Type: TypeUint64, Unit: "us"},
		{Name: "xacc", Type: TypeInt16, Unit: "mG"},
		{Name: "yacc", Type: TypeInt16, Unit: "mG"},
		{Name: "zacc", Type: TypeInt16, Unit: "mG"},
		{Name: "xgyro", Type: TypeInt16, Unit: "mrad/s"},
		{Name: "ygyro", Type: TypeInt16, Unit: "mrad/s"},
		{Name: "zgyro", Type: TypeInt16, Unit: "mrad/s"},
		{Name: "xmag", Type: TypeInt16, Unit: "mG"},
		{Name: "ymag", Type: TypeInt16, Unit: "mG"},
		{Name: "zmag", Type: TypeInt16, Unit: "mG"},
	}},
	29: {ID: 29, Name: "SCALED_PRESSURE", Fields: []FieldDef{
		{Name: "time_boot_ms", Type: TypeUint32, Unit: "ms"},
		{Name: "press_abs", Type: TypeFloat32, Unit: "hPa"},
		{Name: "press_diff", Type: TypeFloat32, Unit: "hPa"},
		{Name: "temperature", Type: TypeInt16, Unit: "cdegC"},
	}},
	30: {ID: 30, Name: "ATTITUDE", Fields: []FieldDef{
		{Name: "time_boot_ms", Type: TypeUint32, Unit: "ms"},
		{Name: "roll", Type: TypeFloat32, Unit: "rad"},
		{Name: "pitch", Type: TypeFloat32, Unit: "rad"},
		{Name: "yaw", Type: TypeFloat32, Unit: "rad"},
		{Name: "rollspeed", Type: TypeFloat32, Unit: "rad/s"},
		{Name: "pitchspeed", Type: TypeFloat32, Unit: "rad/s"},
		{Name: "yawspeed", Type: TypeFloat32, Unit: "rad/s"},
	}},
	33: {ID: 33, Name: "GLOBAL_POSITION_INT", Fields: []FieldDef{
		{Name: "time_boot_ms", Type: TypeUint32, Unit: "ms"},
		{Name: "lat", Type: TypeInt32, Unit: "degE7"},
		{Name: "lon", Type: TypeInt32, Unit: "degE7"},
		{Name: "alt", Type: TypeInt32, Unit: "mm"},
		{Name: "relative_alt", Type: TypeInt32, Unit: "mm"},
		{Name: "vx", Type: TypeInt16, Unit: "cm/s"},
		{Name: "vy", Type: TypeInt16, Unit: "cm/s"},
		{Name: "vz", Type: TypeInt16, Unit: "cm/s"},
		{Name: "hdg", Type: TypeUint16, Unit: "cdeg"},
	}},
	35: {ID: 35, Name: "RC_CHANNELS_RAW", Fields: []FieldDef{
		{Name: "time_boot_ms", Type: TypeUint32, Unit: "ms"},
		{Name: "chan1_raw", Type: TypeUint16, Unit: "us"},
		{Name: "chan2_raw", Type: TypeUint16, Unit: "us"},
		{Name: "chan3_raw", Type: TypeUint16, Unit: "us"},
		{Name: "chan4_raw", Type: TypeUint16, Unit: "us"},
		{Name: "chan5_raw", Type: TypeUint16, Unit: "us"},
		{Name: "chan6_raw", Type: TypeUint16, Unit: "us"},
		{Name: "chan7_raw", Type: TypeUint16, Unit: "us"},
		{Name: "chan8_raw", Type: TypeUint16, Unit: "us"},
		{Name: "port", Type: TypeUint8},
		{Name: "rssi", Type: TypeUint8},
	}},
	36: {ID: 36, Name: "SERVO_OUTPUT_RAW", Fields: []FieldDef{
		{Name: "time_usec", Type: TypeUint32, Unit: "us"},
		{Name: "servo1_raw", Type: TypeUint16, Unit: "us"},
		{Name: "servo2_raw", Type: TypeUint16, Unit: "us"},
		{Name: "servo3_raw", Type: TypeUint16, Unit: "us"},
		{Name: "servo4_raw", Type: TypeUint16, Unit: "us"},
		{Name: "servo5_raw", Type: TypeUint16, Unit: "us"},
		{Name: "servo6_raw", Type: TypeUint16, Unit: "us"},
		{Name: "servo7_raw", Type: TypeUint16, Unit: "us"},
		{Name: "servo8_raw", Type: TypeUint16, Unit: "us"},
		{Name: "port", Type: TypeUint8},
	}},
	74: {ID: 74, Name: "VFR_HUD", Fields: []FieldDef{
		{Name: "airspeed", Type: TypeFloat32, Unit: "m/s"},
		{Name: "groundspeed", Type: TypeFloat32, Unit: "m/s"},
		{Name: "alt", Type: TypeFloat32, Unit: "m"},
		{Name: "climb", Type: TypeFloat32, Unit: "m/s"},
		{Name: "heading", Type: TypeInt16, Unit: "deg"},
		{Name: "throttle", Type: TypeUint16, Unit: "%"},
	}},
	147: {ID: 147, Name: "BATTERY_STATUS", Fields: []FieldDef{
		{Name: "current_consumed", Type: TypeInt32, Unit: "mAh"},
		{Name: "energy_consumed", Type: TypeInt32},
		{Name: "temperature", Type: TypeInt16, Unit: "cdegC"},
		{Name: "voltages", Type: TypeUint16, Count: 10, Unit: "mV"},
		{Name: "current_battery", Type: TypeInt16, Unit: "cA"},
		{Name: "id", Type: TypeUint8},
		{Name: "battery_function", Type: TypeUint8},
		{Name: "type", Type: TypeUint8},
		{Name: "battery_remaining", Type: TypeInt8, Unit: "%"},
	}},
}

// LookupMessage exposes the dialect table for tests and tooling.
func LookupMessage(id uint32) (MessageDef, bool) {
	def, ok := dialect[id]
	return def, ok
}
