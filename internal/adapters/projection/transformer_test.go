package projection

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/paulmach/orb"

	"github.com/jobrunner/geofix/internal/domain"
)

func near(a, b orb.Point, tol float64) bool {
	return math.Abs(a[0]-b[0]) <= tol && math.Abs(a[1]-b[1]) <= tol
}

func TestTransformPoints(t *testing.T) {
	tr := NewTransformer()
	ctx := context.Background()

	tests := []struct {
		name string
		in   orb.Point
		from domain.CRS
		to   domain.CRS
		want orb.Point
		tol  float64
	}{
		{"origin to mercator", orb.Point{0, 0}, domain.CRSWGS84, domain.CRSWebMercator, orb.Point{0, 0}, 1e-6},
		{"antimeridian to mercator", orb.Point{180, 0}, domain.CRSWGS84, domain.CRSWebMercator, orb.Point{20037508.34, 0}, 0.01},
		{"mercator to wgs84", orb.Point{20037508.34, 0}, domain.CRSWebMercator, domain.CRSWGS84, orb.Point{180, 0}, 1e-6},
		{"mercator alias", orb.Point{0, 0}, domain.EPSG(900913), domain.CRSWGS84, orb.Point{0, 0}, 1e-9},
		{"utm central meridian equator", orb.Point{9, 0}, domain.CRSWGS84, domain.EPSG(32632), orb.Point{500000, 0}, 1e-6},
		{"utm central meridian 45N", orb.Point{9, 45}, domain.CRSWGS84, domain.EPSG(32632), orb.Point{500000, 4982950.4}, 1},
		{"etrs utm", orb.Point{9, 45}, domain.CRSWGS84, domain.EPSG(25832), orb.Point{500000, 4982950.4}, 1},
		{"utm south equator", orb.Point{15, 0}, domain.CRSWGS84, domain.EPSG(32733), orb.Point{500000, 10000000}, 1e-6},
		{"proj longlat", orb.Point{1, 2}, domain.CRS("+proj=longlat +datum=WGS84 +no_defs"), domain.CRSWGS84, orb.Point{1, 2}, 1e-12},
		{"proj utm", orb.Point{9, 0}, domain.CRSWGS84, domain.CRS("+proj=utm +zone=32 +ellps=GRS80 +units=m"), orb.Point{500000, 0}, 1e-6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.Transform(ctx, tt.in, tt.from, tt.to)
			if err != nil {
				t.Fatalf("Transform failed: %v", err)
			}
			if p := got.(orb.Point); !near(p, tt.want, tt.tol) {
				t.Errorf("Transform() = %v, want %v", p, tt.want)
			}
		})
	}
}

func TestUTMRoundTrip(t *testing.T) {
	tr := NewTransformer()
	ctx := context.Background()

	points := []orb.Point{{11.582, 48.135}, {12.0, 53.9}, {11.0, -33.2}, {13.4, 52.5}}
	for _, crs := range []domain.CRS{domain.EPSG(32632), domain.EPSG(32633), domain.EPSG(25832)} {
		for _, p := range points {
			fwd, err := tr.Transform(ctx, p, domain.CRSWGS84, crs)
			if err != nil {
				t.Fatalf("forward %v: %v", p, err)
			}
			back, err := tr.Transform(ctx, fwd, crs, domain.CRSWGS84)
			if err != nil {
				t.Fatalf("inverse %v: %v", p, err)
			}
			if !near(back.(orb.Point), p, 1e-5) {
				t.Errorf("%s round trip of %v = %v", crs, p, back)
			}
		}
	}
}

func TestTransformDoesNotModifyInput(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}}
	orig := orb.Clone(poly).(orb.Polygon)

	out, err := NewTransformer().Transform(context.Background(), poly, domain.CRSWGS84, domain.CRSWebMercator)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	if !orb.Equal(poly, orig) {
		t.Error("input geometry was modified")
	}
	if _, ok := out.(orb.Polygon); !ok {
		t.Errorf("Transform() returned %T, want orb.Polygon", out)
	}
	if orb.Equal(out, poly) {
		t.Error("output should be projected")
	}
}

func TestTransformErrors(t *testing.T) {
	tr := NewTransformer()
	ctx := context.Background()
	pt := orb.Point{1, 1}

	tests := []struct {
		name    string
		from    domain.CRS
		to      domain.CRS
		wantErr error
	}{
		{"unset source", domain.CRSUnset, domain.CRSWGS84, domain.ErrCRSUnset},
		{"unknown source", domain.EPSG(2056), domain.CRSWGS84, domain.ErrUnsupportedProjection},
		{"unknown target", domain.CRSWGS84, domain.CRS("+proj=lcc +lat_1=45"), domain.ErrUnsupportedProjection},
		{"bad utm zone", domain.CRSWGS84, domain.CRS("+proj=utm +zone=61"), domain.ErrUnsupportedProjection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tr.Transform(ctx, pt, tt.from, tt.to)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Transform() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTransformCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewTransformer().Transform(ctx, orb.Point{0, 0}, domain.CRSWGS84, domain.CRSWebMercator); !errors.Is(err, context.Canceled) {
		t.Errorf("Transform() error = %v, want context.Canceled", err)
	}
}

func TestIsSupported(t *testing.T) {
	tr := NewTransformer()

	tests := []struct {
		from, to domain.CRS
		want     bool
	}{
		{domain.CRSWGS84, domain.CRSWebMercator, true},
		{domain.EPSG(32632), domain.EPSG(25833), true},
		{domain.EPSG(2056), domain.EPSG(2056), true},
		{domain.EPSG(2056), domain.CRSWGS84, false},
		{domain.CRSUnset, domain.CRSWGS84, false},
		{domain.CRS("+proj=merc +a=6378137 +b=6378137 +lat_ts=0 +lon_0=0"), domain.CRSWGS84, true},
	}

	for _, tt := range tests {
		if got := tr.IsSupported(tt.from, tt.to); got != tt.want {
			t.Errorf("IsSupported(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

// fixedTransformer supports everything and returns a fixed point.
type fixedTransformer struct{ out orb.Point }

func (f fixedTransformer) Transform(context.Context, orb.Geometry, domain.CRS, domain.CRS) (orb.Geometry, error) {
	return f.out, nil
}

func (f fixedTransformer) IsSupported(domain.CRS, domain.CRS) bool { return true }

func TestChain(t *testing.T) {
	ctx := context.Background()
	chain := Chain{NewTransformer(), fixedTransformer{out: orb.Point{7, 7}}}

	got, err := chain.Transform(ctx, orb.Point{0, 0}, domain.CRSWGS84, domain.CRSWebMercator)
	if err != nil || !near(got.(orb.Point), orb.Point{0, 0}, 1e-9) {
		t.Errorf("native pair = %v, %v", got, err)
	}

	got, err = chain.Transform(ctx, orb.Point{0, 0}, domain.EPSG(2056), domain.CRSWGS84)
	if err != nil || got.(orb.Point) != (orb.Point{7, 7}) {
		t.Errorf("fallback pair = %v, %v", got, err)
	}

	if _, err := (Chain{NewTransformer()}).Transform(ctx, orb.Point{0, 0}, domain.EPSG(2056), domain.CRSWGS84); !errors.Is(err, domain.ErrUnsupportedProjection) {
		t.Errorf("unsupported error = %v", err)
	}
	if _, err := chain.Transform(ctx, orb.Point{0, 0}, domain.CRSUnset, domain.CRSWGS84); !errors.Is(err, domain.ErrCRSUnset) {
		t.Errorf("unset error = %v", err)
	}
}
