package proj

import (
	"errors"
	"math"
)

// WGS84 ellipsoid and UTM projection constants.
const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563

	utmScale        = 0.9996
	utmFalseEasting = 500000.0
	utmFalseNorth   = 10000000.0
)

var errNotUTM = errors.New("not a WGS84 UTM srid")

// utmZone decodes a UTM SRID into its zone number and hemisphere.
// Northern zones are 32601..32660, southern 32701..32760.
func utmZone(srid int) (zone int, south bool, err error) {
	switch {
	case srid >= 32601 && srid <= 32660:
		return srid - 32600, false, nil
	case srid >= 32701 && srid <= 32760:
		return srid - 32700, true, nil
	default:
		return 0, false, errNotUTM
	}
}

func centralMeridian(zone int) float64 {
	return float64(zone-1)*6 - 180 + 3
}

// latLonToUTM projects a WGS84 point into the given UTM zone using the
// series expansion of the transverse Mercator projection. Accuracy is
// well under a centimeter inside the zone.
func latLonToUTM(lat, lon float64, zone int, south bool) (easting, northing float64, err error) {
	phi := lat * math.Pi / 180
	lambda := (lon - centralMeridian(zone)) * math.Pi / 180

	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)

	sinPhi := math.Sin(phi)
	cosPhi := math.Cos(phi)

	nu := semiMajor / math.Sqrt(1-e2*sinPhi*sinPhi)
	t := math.Tan(phi) * math.Tan(phi)
	c := ep2 * cosPhi * cosPhi
	a := cosPhi * lambda

	m := meridianArc(phi, e2)

	a2 := a * a
	a3 := a2 * a
	a4 := a3 * a
	a5 := a4 * a
	a6 := a5 * a

	easting = utmFalseEasting + utmScale*nu*(a+
		(1-t+c)*a3/6+
		(5-18*t+t*t+72*c-58*ep2)*a5/120)

	northing = utmScale * (m + nu*math.Tan(phi)*(a2/2+
		(5-t+9*c+4*c*c)*a4/24+
		(61-58*t+t*t+600*c-330*ep2)*a6/720))
	if south {
		northing += utmFalseNorth
	}
	return easting, northing, nil
}

// utmToLatLon inverts latLonToUTM for the given zone and hemisphere.
func utmToLatLon(easting, northing float64, zone int, south bool) (lon, lat float64, err error) {
	x := easting - utmFalseEasting
	y := northing
	if south {
		y -= utmFalseNorth
	}

	e2 := flattening * (2 - flattening)
	ep2 := e2 / (1 - e2)
	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))

	m := y / utmScale
	mu := m / (semiMajor * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	// Footpoint latitude.
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sinPhi1 := math.Sin(phi1)
	cosPhi1 := math.Cos(phi1)

	c1 := ep2 * cosPhi1 * cosPhi1
	t1 := math.Tan(phi1) * math.Tan(phi1)
	n1 := semiMajor / math.Sqrt(1-e2*sinPhi1*sinPhi1)
	r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sinPhi1*sinPhi1, 1.5)
	d := x / (n1 * utmScale)

	d2 := d * d
	d3 := d2 * d
	d4 := d3 * d
	d5 := d4 * d
	d6 := d5 * d

	phi := phi1 - (n1*math.Tan(phi1)/r1)*(d2/2-
		(5+3*t1+10*c1-4*c1*c1-9*ep2)*d4/24+
		(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d6/720)

	lambda := (d -
		(1+2*t1+c1)*d3/6 +
		(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d5/120) / cosPhi1

	lat = phi * 180 / math.Pi
	lon = centralMeridian(zone) + lambda*180/math.Pi
	return lon, lat, nil
}

// meridianArc returns the meridional arc length from the equator to
// latitude phi on the WGS84 ellipsoid.
func meridianArc(phi, e2 float64) float64 {
	e4 := e2 * e2
	e6 := e4 * e2
	return semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}
