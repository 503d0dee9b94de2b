package application

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jobrunner/geofix/internal/domain"
	"github.com/jobrunner/geofix/internal/ports/input"
)

// Action names.
const (
	ActionGetLayerMetadata = "get_layer_metadata"
	ActionReproject        = "reproject"
	ActionRepair           = "repair"
	ActionRepairAndJoin    = "repair_and_join"
)

// actionFunc runs an action and returns the text summary and structured data.
type actionFunc func(ctx context.Context, args map[string]string) (string, interface{}, error)

type action struct {
	spec input.ActionSpec
	run  actionFunc
}

// ActionService exposes the four operations as named actions for a planner.
// Path arguments are confined to the workspace.
type ActionService struct {
	inspector   input.MetadataInspector
	reprojector input.Reprojector
	repairer    input.GeometryRepairer
	joiner      input.JoinReconciler
	workspace   *Workspace
	registry    *DatasetRegistry
	logger      *slog.Logger

	defaultTarget    domain.CRS
	defaultPredicate domain.Predicate

	actions map[string]action
}

// ActionServiceConfig holds defaults advertised to the planner.
type ActionServiceConfig struct {
	DefaultTarget    domain.CRS
	DefaultPredicate domain.Predicate
}

// NewActionService creates the action layer. The registry is optional;
// when set, every produced file is catalogued.
func NewActionService(
	inspector input.MetadataInspector,
	reprojector input.Reprojector,
	repairer input.GeometryRepairer,
	joiner input.JoinReconciler,
	workspace *Workspace,
	registry *DatasetRegistry,
	logger *slog.Logger,
	cfg ActionServiceConfig,
) *ActionService {
	if !cfg.DefaultTarget.IsSet() {
		cfg.DefaultTarget = domain.DefaultTargetCRS
	}
	if cfg.DefaultPredicate == "" {
		cfg.DefaultPredicate = domain.DefaultPredicate
	}

	s := &ActionService{
		inspector:        inspector,
		reprojector:      reprojector,
		repairer:         repairer,
		joiner:           joiner,
		workspace:        workspace,
		registry:         registry,
		logger:           logger,
		defaultTarget:    cfg.DefaultTarget,
		defaultPredicate: cfg.DefaultPredicate,
	}
	s.register()
	return s
}

func (s *ActionService) register() {
	target := string(s.defaultTarget)
	predicates := make([]string, 0, 3)
	for _, p := range domain.SupportedPredicates() {
		predicates = append(predicates, string(p))
	}

	s.actions = map[string]action{
		ActionGetLayerMetadata: {
			spec: input.ActionSpec{
				Name:        ActionGetLayerMetadata,
				Description: "Inspect a dataset: CRS, columns, geometry types, feature and invalid counts, bounds.",
				Params: []input.ActionParam{
					{Name: "file_path", Description: "Dataset path relative to the workspace", Required: true},
				},
			},
			run: s.getLayerMetadata,
		},
		ActionReproject: {
			spec: input.ActionSpec{
				Name:        ActionReproject,
				Description: "Reproject a dataset and save it to the _fixed path.",
				Params: []input.ActionParam{
					{Name: "source_path", Description: "Dataset path relative to the workspace", Required: true},
					{Name: "tgt_crs", Description: "Target CRS, EPSG:<code> or a PROJ string", Default: target},
				},
			},
			run: s.reproject,
		},
		ActionRepair: {
			spec: input.ActionSpec{
				Name:        ActionRepair,
				Description: "Repair invalid geometries, reproject to the target CRS and save to the _fixed path.",
				Params: []input.ActionParam{
					{Name: "file_path", Description: "Dataset path relative to the workspace", Required: true},
					{Name: "target_crs", Description: "Target CRS, EPSG:<code> or a PROJ string", Default: target},
				},
			},
			run: s.repair,
		},
		ActionRepairAndJoin: {
			spec: input.ActionSpec{
				Name:        ActionRepairAndJoin,
				Description: "Align the source to the target CRS, save it to the _joined path and spatially join both.",
				Params: []input.ActionParam{
					{Name: "source_path", Description: "Source dataset path relative to the workspace", Required: true},
					{Name: "target_path", Description: "Target dataset path relative to the workspace", Required: true},
					{Name: "predicate", Description: "One of " + strings.Join(predicates, ", "), Default: string(s.defaultPredicate)},
				},
			},
			run: s.repairAndJoin,
		},
	}
}

// Actions lists the registered actions sorted by name.
func (s *ActionService) Actions() []input.ActionSpec {
	specs := make([]input.ActionSpec, 0, len(s.actions))
	for _, a := range s.actions {
		specs = append(specs, a.spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Invoke runs an action. It never panics: every error, including a
// recovered panic, is returned as a failure result.
func (s *ActionService) Invoke(ctx context.Context, name string, args map[string]string) (result domain.Result) {
	start := time.Now()
	result = domain.Result{ID: uuid.NewString(), Action: name}

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("action panicked", "id", result.ID, "action", name, "panic", r)
			result = s.failure(result, fmt.Errorf("%w: %v", domain.ErrInternal, r))
		}
		result.Duration = time.Since(start)
		s.logger.Info("action completed",
			"id", result.ID,
			"action", name,
			"status", result.Status,
			"kind", result.Kind,
			"duration", result.Duration,
		)
	}()

	a, ok := s.actions[name]
	if !ok {
		return s.failure(result, fmt.Errorf("%q: %w", name, domain.ErrUnknownAction))
	}
	if err := checkRequired(a.spec, args); err != nil {
		return s.failure(result, err)
	}

	msg, data, err := a.run(ctx, args)
	if err != nil {
		return s.failure(result, err)
	}

	result.Status = domain.StatusSuccess
	result.Message = msg
	result.Data = data
	return result
}

func (s *ActionService) failure(r domain.Result, err error) domain.Result {
	r.Status = domain.StatusFailure
	r.Kind = domain.ClassifyError(err)
	r.Message = err.Error()
	r.Data = nil
	return r
}

func checkRequired(spec input.ActionSpec, args map[string]string) error {
	for _, p := range spec.Params {
		if p.Required && strings.TrimSpace(args[p.Name]) == "" {
			return &domain.ValidationError{
				Field:      p.Name,
				Value:      args[p.Name],
				Constraint: "required",
				Message:    "missing argument",
			}
		}
	}
	return nil
}

func (s *ActionService) getLayerMetadata(ctx context.Context, args map[string]string) (string, interface{}, error) {
	path, err := s.workspace.Resolve(args["file_path"])
	if err != nil {
		return "", nil, err
	}
	summary, err := s.inspector.Inspect(ctx, path)
	if err != nil {
		return "", nil, err
	}
	summary.Path = s.workspace.Rel(path)
	return summary.String(), MetadataView{MetadataSummary: summary, BBox: summary.BBox()}, nil
}

func (s *ActionService) reproject(ctx context.Context, args map[string]string) (string, interface{}, error) {
	path, err := s.workspace.Resolve(args["source_path"])
	if err != nil {
		return "", nil, err
	}
	target := domain.ParseCRS(args["tgt_crs"])
	if !target.IsSet() {
		target = s.defaultTarget
	}

	out, err := s.reprojector.Reproject(ctx, path, target)
	if err != nil {
		return "", nil, err
	}
	s.catalog(ctx, out)

	rel := s.workspace.Rel(out)
	return fmt.Sprintf("Re-projected to %s. Saved to: %s", target, rel),
		map[string]string{"output_path": rel, "target_crs": string(target)}, nil
}

func (s *ActionService) repair(ctx context.Context, args map[string]string) (string, interface{}, error) {
	path, err := s.workspace.Resolve(args["file_path"])
	if err != nil {
		return "", nil, err
	}
	target := domain.ParseCRS(args["target_crs"])
	if !target.IsSet() {
		target = s.defaultTarget
	}

	report, err := s.repairer.Repair(ctx, path, target)
	if err != nil {
		return "", nil, err
	}
	s.catalog(ctx, report.OutputPath)

	view := *report
	view.InputPath = s.workspace.Rel(report.InputPath)
	view.OutputPath = s.workspace.Rel(report.OutputPath)
	return view.Summary(), view, nil
}

func (s *ActionService) repairAndJoin(ctx context.Context, args map[string]string) (string, interface{}, error) {
	source, err := s.workspace.Resolve(args["source_path"])
	if err != nil {
		return "", nil, err
	}
	target, err := s.workspace.Resolve(args["target_path"])
	if err != nil {
		return "", nil, err
	}
	predicate := domain.Predicate(args["predicate"])
	if strings.TrimSpace(string(predicate)) == "" {
		predicate = s.defaultPredicate
	}

	summary, err := s.joiner.Join(ctx, source, target, predicate)
	if err != nil {
		return "", nil, err
	}
	s.catalog(ctx, summary.AlignedPath)
	if summary.ResultPath != "" {
		s.catalog(ctx, summary.ResultPath)
	}

	view := *summary
	view.SourcePath = s.workspace.Rel(summary.SourcePath)
	view.TargetPath = s.workspace.Rel(summary.TargetPath)
	view.AlignedPath = s.workspace.Rel(summary.AlignedPath)
	if view.ResultPath != "" {
		view.ResultPath = s.workspace.Rel(summary.ResultPath)
	}
	return view.String(), view, nil
}

// catalog registers a produced file. Failures are logged only; the file
// was written and the action succeeded.
func (s *ActionService) catalog(ctx context.Context, path string) {
	if s.registry == nil {
		return
	}
	if _, err := s.registry.Register(ctx, path); err != nil {
		s.logger.Warn("failed to catalog output", "path", path, "error", err)
	}
	if err := s.registry.Publish(ctx, path); err != nil {
		s.logger.Warn("failed to publish output", "path", path, "error", err)
	}
}

// MetadataView is the structured data of a metadata result.
type MetadataView struct {
	*domain.MetadataSummary
	BBox []float64 `json:"bbox,omitempty"`
}
