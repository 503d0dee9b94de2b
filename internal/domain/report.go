package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// MetadataSummary describes a dataset without modifying it.
type MetadataSummary struct {
	Path          string    `json:"path"`
	CRS           CRS       `json:"crs"`
	Columns       []string  `json:"columns"`
	Schema        Schema    `json:"-"`
	GeometryTypes []string  `json:"geometry_types"`
	FeatureCount  int       `json:"feature_count"`
	InvalidCount  int       `json:"invalid_count"`
	Bounds        orb.Bound `json:"-"`
	HasBounds     bool      `json:"-"`
}

// String renders the summary as "CRS: X | Columns: [...] | Geometry: [...]".
// The geometry column is listed last.
func (m MetadataSummary) String() string {
	cols := append(append([]string{}, m.Columns...), "geometry")
	return fmt.Sprintf("CRS: %s | Columns: [%s] | Geometry: [%s]",
		crsLabel(m.CRS), strings.Join(cols, " "), strings.Join(m.GeometryTypes, " "))
}

// BBox returns the bounds as [minx, miny, maxx, maxy], or nil when the
// dataset has no geometries.
func (m MetadataSummary) BBox() []float64 {
	if !m.HasBounds {
		return nil
	}
	return []float64{m.Bounds.Min[0], m.Bounds.Min[1], m.Bounds.Max[0], m.Bounds.Max[1]}
}

func crsLabel(c CRS) string {
	if !c.IsSet() {
		return "None"
	}
	return string(c)
}

// RepairReport is the outcome of a repair run.
type RepairReport struct {
	InputPath     string `json:"input_path"`
	OutputPath    string `json:"output_path"`
	RepairedCount int    `json:"repaired_count"`
	OriginalCRS   CRS    `json:"original_crs"`
	TargetCRS     CRS    `json:"target_crs"`
	Reprojected   bool   `json:"reprojected"`
}

// RepairNote describes the geometry repair step.
func (r RepairReport) RepairNote() string {
	if r.RepairedCount > 0 {
		return fmt.Sprintf("Repaired %d invalid geometries.", r.RepairedCount)
	}
	return "Geometry was already valid."
}

// CRSNote describes the CRS reconciliation step.
func (r RepairReport) CRSNote() string {
	if r.Reprojected {
		return fmt.Sprintf("Re-projected from %s to %s.", crsLabel(r.OriginalCRS), r.TargetCRS)
	}
	return fmt.Sprintf("CRS already matches %s.", r.TargetCRS)
}

// Summary composes the human-readable report.
func (r RepairReport) Summary() string {
	return fmt.Sprintf("%s %s Saved to: %s", r.RepairNote(), r.CRSNote(), r.OutputPath)
}

// JoinSummary is the outcome of a CRS-aware spatial join.
type JoinSummary struct {
	SourcePath  string    `json:"source_path"`
	TargetPath  string    `json:"target_path"`
	Predicate   Predicate `json:"predicate"`
	SourceCRS   CRS       `json:"source_crs"`
	TargetCRS   CRS       `json:"target_crs"`
	Reprojected bool      `json:"reprojected"`
	AlignedPath string    `json:"aligned_path"`
	ResultPath  string    `json:"result_path,omitempty"`
	Rows        int       `json:"rows"`
}

// String renders "Join successful. Resulting rows: N".
func (j JoinSummary) String() string {
	return fmt.Sprintf("Join successful. Resulting rows: %d", j.Rows)
}

// Status is the outcome tag of an action result.
type Status string

// Result statuses.
const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
)

// Result is the structured outcome of an action invocation.
type Result struct {
	ID       string        `json:"id"`
	Action   string        `json:"action"`
	Status   Status        `json:"status"`
	Kind     FailureKind   `json:"kind,omitempty"`
	Message  string        `json:"message"`
	Data     interface{}   `json:"data,omitempty"`
	Duration time.Duration `json:"-"`
}

// OK returns true for successful results.
func (r *Result) OK() bool {
	return r.Status == StatusSuccess
}
