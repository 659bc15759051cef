// Package position resolves CPR-encoded airborne/surface positions from a
// stream of decoded DF17/18 messages. This sits outside the decoder core:
// modes.Message carries only the even/odd CPR flags and the raw payload,
// from which ExtractCPR reads the two 17-bit lat/lon fields a consumer
// needs to pair even+odd frames itself.
package position

import (
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mutability/mlat-client/internal/modes"
)

// cprMax is 2^17, the modulus of a CPR coordinate. The decoder core's
// Message only carries the even/odd CPR flag; ExtractCPR re-reads the full
// 17-bit latitude/longitude fields from the retained frame payload (the
// same bytes the core's all-zero invalidation check inspects a 15-bit
// slice of, per spec.md §4.3).
const cprMax = 131072.0

// Frame is one aircraft's even- or odd-numbered CPR position report.
type Frame struct {
	LatCPR    uint32
	LonCPR    uint32
	FFlag     uint8
	Timestamp time.Time
}

// Fix is a resolved lat/lon.
type Fix struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// aircraft tracks the most recent even/odd CPR frames and last resolved fix
// for one ICAO address.
type aircraft struct {
	even, odd *Frame
	last      *Fix
}

// Resolver decodes CPR positions across a stream of messages, keyed by
// ICAO address. It is safe for concurrent use.
type Resolver struct {
	mu        sync.Mutex
	aircrafts map[uint32]*aircraft
	logger    *logrus.Logger
	verbose   bool

	// ReferenceLat/ReferenceLon seed single-frame (no paired even/odd)
	// decoding before any aircraft has a resolved fix to borrow from.
	ReferenceLat float64
	ReferenceLon float64
}

// NewResolver returns a Resolver. logger may be nil.
func NewResolver(logger *logrus.Logger, verbose bool) *Resolver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Resolver{
		aircrafts: make(map[uint32]*aircraft),
		logger:    logger,
		verbose:   verbose,
	}
}

// ExtractCPR pulls the raw 17-bit CPR latitude/longitude fields and the F
// (odd/even) flag out of a valid DF17/18 position message's payload. ok is
// false for any other message.
func ExtractCPR(msg modes.Message) (latCPR, lonCPR uint32, fflag uint8, ok bool) {
	if !msg.Valid || (msg.DF != 17 && msg.DF != 18) {
		return 0, 0, 0, false
	}
	if !msg.EvenCPR && !msg.OddCPR {
		return 0, 0, 0, false
	}
	p := msg.Payload
	if len(p) != 14 {
		return 0, 0, 0, false
	}

	fflag = 0
	if msg.OddCPR {
		fflag = 1
	}
	latCPR = ((uint32(p[6]&0x03) << 15) | (uint32(p[7]) << 7) | (uint32(p[8]) >> 1)) & 0x1FFFF
	lonCPR = ((uint32(p[8]&0x01) << 16) | (uint32(p[9]) << 8) | uint32(p[10])) & 0x1FFFF
	return latCPR, lonCPR, fflag, true
}

// Resolve ingests one CPR frame for icao and returns the best position fix
// currently available: the even+odd pair decode once both an even and an
// odd frame have been seen (the age of the older frame is not checked),
// else the single-frame estimate, else the last resolved fix if still
// fresh.
func (r *Resolver) Resolve(icao uint32, fflag uint8, latCPR, lonCPR uint32) (lat, lon float64, ok bool) {
	now := time.Now()

	r.mu.Lock()
	ac, exists := r.aircrafts[icao]
	if !exists {
		ac = &aircraft{}
		r.aircrafts[icao] = ac
	}
	r.mu.Unlock()

	frame := &Frame{LatCPR: latCPR, LonCPR: lonCPR, FFlag: fflag, Timestamp: now}
	if fflag == 0 {
		ac.even = frame
	} else {
		ac.odd = frame
	}

	if ac.even != nil && ac.odd != nil {
		if lat, lon, ok := r.resolvePair(ac.even, ac.odd); ok {
			ac.last = &Fix{Latitude: lat, Longitude: lon, Timestamp: now}
			if r.verbose {
				r.logger.Debugf("cpr: icao=%06X paired fix lat=%.6f lon=%.6f", icao, lat, lon)
			}
			return lat, lon, true
		}
	}

	if lat, lon, ok := r.resolveSingle(frame); ok {
		ac.last = &Fix{Latitude: lat, Longitude: lon, Timestamp: now}
		if r.verbose {
			r.logger.Debugf("cpr: icao=%06X single-frame fix lat=%.6f lon=%.6f", icao, lat, lon)
		}
		return lat, lon, true
	}

	if ac.last != nil && now.Sub(ac.last.Timestamp) < 30*time.Second {
		return ac.last.Latitude, ac.last.Longitude, true
	}

	return 0, 0, false
}

func cprMod(a, b int) int {
	res := a % b
	if res < 0 {
		res += b
	}
	return res
}

// resolvePair is dump1090's global CPR algorithm: an even and an odd frame
// together fully resolve latitude and longitude with no reference position.
func (r *Resolver) resolvePair(even, odd *Frame) (float64, float64, bool) {
	dLat0 := 360.0 / 60.0
	dLat1 := 360.0 / 59.0

	lat0, lat1 := float64(even.LatCPR), float64(odd.LatCPR)
	lon0, lon1 := float64(even.LonCPR), float64(odd.LonCPR)

	j := int(math.Floor(((59*lat0 - 60*lat1) / cprMax) + 0.5))

	rlat0 := dLat0 * (float64(cprMod(j, 60)) + lat0/cprMax)
	rlat1 := dLat1 * (float64(cprMod(j, 59)) + lat1/cprMax)

	if rlat0 >= 270 {
		rlat0 -= 360
	}
	if rlat1 >= 270 {
		rlat1 -= 360
	}

	if rlat0 < -90 || rlat0 > 90 || rlat1 < -90 || rlat1 > 90 {
		return 0, 0, false
	}
	if cprNL(rlat0) != cprNL(rlat1) {
		return 0, 0, false
	}

	var rlat, rlon float64
	if odd.Timestamp.After(even.Timestamp) {
		ni := cprN(rlat1, 1)
		m := int(math.Floor((((lon0 * float64(cprNL(rlat1)-1)) - (lon1 * float64(cprNL(rlat1)))) / cprMax) + 0.5))
		rlon = cprDlon(rlat1, 1) * (float64(cprMod(m, ni)) + lon1/cprMax)
		rlat = rlat1
	} else {
		ni := cprN(rlat0, 0)
		m := int(math.Floor((((lon0 * float64(cprNL(rlat0)-1)) - (lon1 * float64(cprNL(rlat0)))) / cprMax) + 0.5))
		rlon = cprDlon(rlat0, 0) * (float64(cprMod(m, ni)) + lon0/cprMax)
		rlat = rlat0
	}

	rlon -= math.Floor((rlon+180)/360) * 360

	return rlat, rlon, true
}

// resolveSingle decodes one frame against a reference position (local
// unambiguous decode). With no better reference available yet it falls
// back to the most recently resolved fix of any tracked aircraft, then to
// Resolver.ReferenceLat/Lon.
func (r *Resolver) resolveSingle(frame *Frame) (float64, float64, bool) {
	refLat, refLon := r.ReferenceLat, r.ReferenceLon

	r.mu.Lock()
	var newest time.Time
	for _, ac := range r.aircrafts {
		if ac.last != nil && time.Since(ac.last.Timestamp) < 5*time.Minute && ac.last.Timestamp.After(newest) {
			refLat, refLon = ac.last.Latitude, ac.last.Longitude
			newest = ac.last.Timestamp
		}
	}
	r.mu.Unlock()

	lat := float64(frame.LatCPR)
	lon := float64(frame.LonCPR)

	dLat := 360.0 / 60.0
	if frame.FFlag == 1 {
		dLat = 360.0 / 59.0
	}

	j := int(math.Floor(refLat/dLat + 0.5))
	rlat := dLat * (float64(j) + lat/cprMax)

	if rlat-refLat > dLat/2.0 {
		rlat -= dLat
	} else if rlat-refLat < -(dLat / 2.0) {
		rlat += dLat
	}

	ni := cprN(rlat, int(frame.FFlag))
	if ni <= 0 {
		ni = 1
	}

	dLon := 360.0 / float64(ni)
	m := int(math.Floor(refLon/dLon + 0.5))
	rlon := dLon * (float64(m) + lon/cprMax)

	if rlon-refLon > dLon/2.0 {
		rlon -= dLon
	} else if rlon-refLon < -(dLon / 2.0) {
		rlon += dLon
	}

	rlon -= math.Floor((rlon+180)/360) * 360

	if rlat < -90 || rlat > 90 {
		return 0, 0, false
	}

	return rlat, rlon, true
}

func cprN(lat float64, fflag int) int {
	nl := cprNL(lat) - fflag
	if nl < 1 {
		nl = 1
	}
	return nl
}

func cprDlon(lat float64, fflag int) float64 {
	return 360.0 / float64(cprN(lat, fflag))
}

// cprNL is dump1090's tabulated number-of-longitude-zones function:
// NL(lat) is the largest N such that a latitude band of width 360/N
// degrees, centered on lat, does not exceed the CPR even/odd disambiguation
// range. The boundaries below are the standard precomputed table.
func cprNL(lat float64) int {
	absLat := math.Abs(lat)
	switch {
	case absLat < 10.47047130:
		return 59
	case absLat < 14.82817437:
		return 58
	case absLat < 18.18626357:
		return 57
	case absLat < 21.02939493:
		return 56
	case absLat < 23.54504487:
		return 55
	case absLat < 25.82924707:
		return 54
	case absLat < 27.93898710:
		return 53
	case absLat < 29.91135686:
		return 52
	case absLat < 31.77209708:
		return 51
	case absLat < 33.53993436:
		return 50
	case absLat < 35.22899598:
		return 49
	case absLat < 36.85025108:
		return 48
	case absLat < 38.41241892:
		return 47
	case absLat < 39.92256684:
		return 46
	case absLat < 41.38651832:
		return 45
	case absLat < 42.80914012:
		return 44
	case absLat < 44.19454951:
		return 43
	case absLat < 45.54626723:
		return 42
	case absLat < 46.86733252:
		return 41
	case absLat < 48.16039128:
		return 40
	case absLat < 49.42776439:
		return 39
	case absLat < 50.67150166:
		return 38
	case absLat < 51.89342469:
		return 37
	case absLat < 53.09516153:
		return 36
	case absLat < 54.27817472:
		return 35
	case absLat < 55.44378444:
		return 34
	case absLat < 56.59318756:
		return 33
	case absLat < 57.72747354:
		return 32
	case absLat < 58.84763776:
		return 31
	case absLat < 59.95459277:
		return 30
	case absLat < 61.04917774:
		return 29
	case absLat < 62.13216659:
		return 28
	case absLat < 63.20427479:
		return 27
	case absLat < 64.26616523:
		return 26
	case absLat < 65.31845310:
		return 25
	case absLat < 66.36171008:
		return 24
	case absLat < 67.39646774:
		return 23
	case absLat < 68.42322022:
		return 22
	case absLat < 69.44242631:
		return 21
	case absLat < 70.45451075:
		return 20
	case absLat < 71.45986473:
		return 19
	case absLat < 72.45884545:
		return 18
	case absLat < 73.45177442:
		return 17
	case absLat < 74.43893416:
		return 16
	case absLat < 75.42056257:
		return 15
	case absLat < 76.39684391:
		return 14
	case absLat < 77.36789461:
		return 13
	case absLat < 78.33374083:
		return 12
	case absLat < 79.29428225:
		return 11
	case absLat < 80.24923213:
		return 10
	case absLat < 81.19801349:
		return 9
	case absLat < 82.13956981:
		return 8
	case absLat < 83.07199445:
		return 7
	case absLat < 83.99173563:
		return 6
	case absLat < 84.89166191:
		return 5
	case absLat < 85.75541621:
		return 4
	case absLat < 86.53536998:
		return 3
	case absLat < 87.00000000:
		return 2
	default:
		return 1
	}
}
