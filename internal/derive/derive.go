// Package derive synthesizes channels from the normalized set. Every rule
// triggers independently on the presence of its inputs and is
// decoder-agnostic: any decoder producing the relevant canonical names
// participates.
package derive

import (
	"math"
	"regexp"
	"sort"

	"example.com/flightlog/internal/logdata"
)

var lipoCellRe = regexp.MustCompile(`^POWER\.LiPo\d+ \(V\)`)

// latPrefixes and lonPrefixes locate position channels whose exact suffix
// varies by source format. Dataflash logs spell longitude "Lng".
var (
	latPrefixes = []string{"GPS.Latitude", "GPS.Lat"}
	lonPrefixes = []string{"GPS.Longitude", "GPS.Lon", "GPS.Lng"}
)

// powerPairs lists the recognized bus-voltage/current pairs and the name of
// the resulting power channel.
var powerPairs = []struct {
	volt, curr, out string
}{
	{"POWER.VFAS (V)", "POWER.Current (A)", "POWER.Power (W)"},
	{"SYS.BatteryVoltage (V)", "SYS.BatteryCurrent (A)", "SYS.Power (W)"},
}

// Derive computes the additional channels for a dataset-in-progress. The
// input map is not modified; the returned channels carry OriginDerived.
func Derive(channels map[string]*logdata.Channel) []*logdata.Channel {
	var out []*logdata.Channel
	if ch := projectTrajectory(channels); ch != nil {
		out = append(out, ch...)
	}
	if ch := sumCells(channels); ch != nil {
		out = append(out, ch)
	}
	for _, pair := range powerPairs {
		if ch := multiply(channels, pair.volt, pair.curr, pair.out); ch != nil {
			out = append(out, ch)
		}
	}
	return out
}

func findByPrefix(channels map[string]*logdata.Channel, prefixes []string) *logdata.Channel {
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, p := range prefixes {
		for _, name := range names {
			if len(name) >= len(p) && name[:len(p)] == p {
				return channels[name]
			}
		}
	}
	return nil
}

// projectTrajectory emits planar X/Y offsets in meters when latitude and
// longitude channels both exist. Pairs align by sample index: both series
// originate from the same decode pass and share ordering. The projection is
// a WGS84 local tangent plane centered on the centroid of all valid pairs.
func projectTrajectory(channels map[string]*logdata.Channel) []*logdata.Channel {
	lat := findByPrefix(channels, latPrefixes)
	lon := findByPrefix(channels, lonPrefixes)
	if lat == nil || lon == nil {
		return nil
	}
	n := len(lat.Samples)
	if len(lon.Samples) < n {
		n = len(lon.Samples)
	}
	var sumLat, sumLon float64
	valid := 0
	for i := 0; i < n; i++ {
		if lat.Samples[i].Valid() && lon.Samples[i].Valid() {
			sumLat += lat.Samples[i].Value
			sumLon += lon.Samples[i].Value
			valid++
		}
	}
	if valid == 0 {
		return nil
	}
	proj := newTangentPlane(sumLat/float64(valid), sumLon/float64(valid))

	x := &logdata.Channel{Name: "GPS.X (m)", Group: "GPS", Unit: "m", Origin: logdata.OriginDerived}
	y := &logdata.Channel{Name: "GPS.Y (m)", Group: "GPS", Unit: "m", Origin: logdata.OriginDerived}
	for i := 0; i < n; i++ {
		if !lat.Samples[i].Valid() || !lon.Samples[i].Valid() {
			continue
		}
		px, py := proj.forward(lat.Samples[i].Value, lon.Samples[i].Value)
		t := lat.Samples[i].Time
		x.Samples = append(x.Samples, logdata.Sample{Time: t, Value: px})
		y.Samples = append(y.Samples, logdata.Sample{Time: t, Value: py})
	}
	return []*logdata.Channel{x, y}
}

// sumCells emits a total pack voltage when two or more cell-voltage
// channels exist. An index contributes only when every cell holds a valid
// value there; a missing cell excludes the index rather than summing as
// zero.
func sumCells(channels map[string]*logdata.Channel) *logdata.Channel {
	var cells []*logdata.Channel
	names := make([]string, 0, len(channels))
	for name := range channels {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if lipoCellRe.MatchString(name) {
			cells = append(cells, channels[name])
		}
	}
	if len(cells) < 2 {
		return nil
	}
	maxLen := 0
	for _, c := range cells {
		if len(c.Samples) > maxLen {
			maxLen = len(c.Samples)
		}
	}
	total := &logdata.Channel{
		Name:   "POWER.LiPo.Total (V)",
		Group:  "POWER",
		Unit:   "V",
		Origin: logdata.OriginDerived,
	}
	for i := 0; i < maxLen; i++ {
		sum := 0.0
		ok := true
		for _, c := range cells {
			if i >= len(c.Samples) || !c.Samples[i].Valid() {
				ok = false
				break
			}
			sum += c.Samples[i].Value
		}
		if ok {
			total.Samples = append(total.Samples, logdata.Sample{Time: cells[0].Samples[i].Time, Value: sum})
		}
	}
	if len(total.Samples) == 0 {
		return nil
	}
	return total
}

// multiply emits the elementwise product of two channels, aligned by index.
// Indices where either input is invalid are excluded.
func multiply(channels map[string]*logdata.Channel, voltName, currName, outName string) *logdata.Channel {
	volt := channels[voltName]
	curr := channels[currName]
	if volt == nil || curr == nil {
		return nil
	}
	n := len(volt.Samples)
	if len(curr.Samples) < n {
		n = len(curr.Samples)
	}
	out := &logdata.Channel{
		Name:   outName,
		Group:  volt.Group,
		Unit:   "W",
		Origin: logdata.OriginDerived,
	}
	for i := 0; i < n; i++ {
		if !volt.Samples[i].Valid() || !curr.Samples[i].Valid() {
			continue
		}
		out.Samples = append(out.Samples, logdata.Sample{
			Time:  volt.Samples[i].Time,
			Value: volt.Samples[i].Value * curr.Samples[i].Value,
		})
	}
	if len(out.Samples) == 0 {
		return nil
	}
	return out
}

// tangentPlane is a local planar projection on the WGS84 ellipsoid,
// linearized about the center point with the two radii of curvature.
type tangentPlane struct {
	lat0Rad float64
	lon0Rad float64
	// meters per radian of latitude/longitude at the center
	mPerLatRad float64
	mPerLonRad float64
}

const (
	wgs84A  = 6378137.0
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

func newTangentPlane(lat0Deg, lon0Deg float64) *tangentPlane {
	lat0 := lat0Deg * math.Pi / 180
	lon0 := lon0Deg * math.Pi / 180
	sin0 := math.Sin(lat0)
	w := 1 - wgs84E2*sin0*sin0
	// prime vertical and meridional radii of curvature
	nu := wgs84A / math.Sqrt(w)
	rho := wgs84A * (1 - wgs84E2) / math.Pow(w, 1.5)
	return &tangentPlane{
		lat0Rad:    lat0,
		lon0Rad:    lon0,
		mPerLatRad: rho,
		mPerLonRad: nu * math.Cos(lat0),
	}
}

// forward maps geodetic degrees to planar east/north offsets in meters.
func (p *tangentPlane) forward(latDeg, lonDeg float64) (x, y float64) {
	lat := latDeg * math.Pi / 180
	lon := lonDeg * math.Pi / 180
	x = (lon - p.lon0Rad) * p.mPerLonRad
	y = (lat - p.lat0Rad) * p.mPerLatRad
	return x, y
}
