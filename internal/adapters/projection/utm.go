package projection

import (
	"math"

	"github.com/paulmach/orb"
)

// WGS 84 ellipsoid. GRS 80 differs by less than a millimetre at UTM scale.
const (
	semiMajor  = 6378137.0
	flattening = 1 / 298.257223563
	scaleUTM   = 0.9996

	falseEasting       = 500000.0
	falseNorthingSouth = 10000000.0
)

var (
	eccSq  = flattening * (2 - flattening)
	eccPSq = eccSq / (1 - eccSq)
)

func utmSystem(zone int, south bool) system {
	lon0 := float64(zone-1)*6 - 180 + 3
	northing := 0.0
	if south {
		northing = falseNorthingSouth
	}
	return system{
		toWGS84: func(p orb.Point) orb.Point {
			return tmInverse(p, lon0, northing)
		},
		fromWGS84: func(p orb.Point) orb.Point {
			return tmForward(p, lon0, northing)
		},
	}
}

// meridianArc is the distance along the meridian from the equator to phi.
func meridianArc(phi float64) float64 {
	e2, e4, e6 := eccSq, eccSq*eccSq, eccSq*eccSq*eccSq
	return semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*phi -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*phi) +
		(15*e4/256+45*e6/1024)*math.Sin(4*phi) -
		(35*e6/3072)*math.Sin(6*phi))
}

// tmForward projects a lon/lat point onto the transverse Mercator plane.
func tmForward(p orb.Point, lon0, northing float64) orb.Point {
	phi := p[1] * math.Pi / 180
	lam := (p[0] - lon0) * math.Pi / 180

	sin, cos, tan := math.Sin(phi), math.Cos(phi), math.Tan(phi)
	n := semiMajor / math.Sqrt(1-eccSq*sin*sin)
	t := tan * tan
	c := eccPSq * cos * cos
	a := cos * lam

	x := scaleUTM * n * (a +
		(1-t+c)*math.Pow(a, 3)/6 +
		(5-18*t+t*t+72*c-58*eccPSq)*math.Pow(a, 5)/120)
	y := scaleUTM * (meridianArc(phi) + n*tan*(a*a/2+
		(5-t+9*c+4*c*c)*math.Pow(a, 4)/24+
		(61-58*t+t*t+600*c-330*eccPSq)*math.Pow(a, 6)/720))

	return orb.Point{x + falseEasting, y + northing}
}

// tmInverse converts a transverse Mercator point back to lon/lat.
func tmInverse(p orb.Point, lon0, northing float64) orb.Point {
	e2 := eccSq
	m := (p[1] - northing) / scaleUTM
	mu := m / (semiMajor * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

	e1 := (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
	phi1 := mu +
		(3*e1/2-27*math.Pow(e1, 3)/32)*math.Sin(2*mu) +
		(21*e1*e1/16-55*math.Pow(e1, 4)/32)*math.Sin(4*mu) +
		(151*math.Pow(e1, 3)/96)*math.Sin(6*mu) +
		(1097*math.Pow(e1, 4)/512)*math.Sin(8*mu)

	sin, cos, tan := math.Sin(phi1), math.Cos(phi1), math.Tan(phi1)
	c1 := eccPSq * cos * cos
	t1 := tan * tan
	n1 := semiMajor / math.Sqrt(1-e2*sin*sin)
	r1 := semiMajor * (1 - e2) / math.Pow(1-e2*sin*sin, 1.5)
	d := (p[0] - falseEasting) / (n1 * scaleUTM)

	phi := phi1 - (n1*tan/r1)*(d*d/2-
		(5+3*t1+10*c1-4*c1*c1-9*eccPSq)*math.Pow(d, 4)/24+
		(61+90*t1+298*c1+45*t1*t1-252*eccPSq-3*c1*c1)*math.Pow(d, 6)/720)
	lam := (d -
		(1+2*t1+c1)*math.Pow(d, 3)/6 +
		(5-2*c1+28*t1-3*c1*c1+8*eccPSq+24*t1*t1)*math.Pow(d, 5)/120) / cos

	return orb.Point{lon0 + lam*180/math.Pi, phi * 180 / math.Pi}
}
