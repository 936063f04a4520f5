package flow

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelguard/guardian/pkg/api"
)

// registerHandlers installs the adapter-backed handler for every action
// kind in the catalog
func (f *Flows) registerHandlers() {
	e := f.exec

	e.Register(api.ActionCreateWorkspace, f.handleCreateWorkspace)
	e.Register(api.ActionCreateHotfix, f.handleCreateWorkspace)
	e.Register(api.ActionCreateModel, f.handleUpsertModel)
	e.Register(api.ActionCreateMapping, f.handleUpsertMapping)
	e.Register(api.ActionApplyChange, f.handleApplyChange)
	e.Register(api.ActionCompile, f.handleCompile)
	e.Register(api.ActionCompileAll, f.handleCompileAll)
	e.Register(api.ActionRunTests, f.handleRunTests)
	e.Register(api.ActionConstraintTests, f.handleRunTests)
	e.Register(api.ActionGenerateService, f.handleGenerateService)
	e.Register(api.ActionOpenReview, f.handleOpenReview)
	e.Register(api.ActionPublishService, f.handlePublish)
	e.Register(api.ActionSearchDepot, f.handleSearchDepot)
	e.Register(api.ActionImportModel, f.handleImportModel)
	e.Register(api.ActionTransformSchema, f.handleTransformSchema)
	e.Register(api.ActionEnumerateEntities, f.handleEnumerateEntities)
	e.Register(api.ActionGenerateEvidence, f.handleGenerateEvidence)
	e.Register(api.ActionListVersions, f.handleListVersions)
	e.Register(api.ActionFindLastGood, f.handleFindLastGood)
	e.Register(api.ActionRevertToVersion, f.handleRevertToVersion)
	e.Register(api.ActionFlipTraffic, f.handleFlipTraffic)
	e.Register(api.ActionVerifyVersionsLive, f.handleVerifyVersionsLive)

	e.Register(api.ActionDetectFormat, f.handleDetectFormat)
	e.Register(api.ActionSchemaToModel, f.handleSchemaToModel)
	e.Register(api.ActionGenerateTests, f.handleGenerateTests)
	e.Register(api.ActionGenerateMocks, f.handleGenerateMocks)

	e.Register(api.ActionPlanIngestion, f.handlePlanIngestion)
	e.Register(api.ActionValidateSample, f.handleValidateSample)
	e.Register(api.ActionExecuteBackfill, f.handleExecuteBackfill)
	e.Register(api.ActionRecordManifest, f.handleRecordManifest)
}

func (f *Flows) scope(act *api.Action) (string, string) {
	projectID, ok := act.Params.Get("project_id")
	if !ok {
		projectID = f.opts.ProjectID
	}
	workspaceID, ok := act.Params.Get("workspace_id")
	if !ok {
		workspaceID = f.opts.WorkspaceID
	}
	return projectID, workspaceID
}

func (f *Flows) handleCreateWorkspace(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, workspaceID := f.scope(act)
	return f.clients.SDLC.CreateWorkspace(ctx, cid, projectID, workspaceID)
}

func (f *Flows) handleUpsertModel(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, workspaceID := f.scope(act)
	name, ok := act.Params.Get("name")
	if !ok {
		return nil, fmt.Errorf("%w: model name is required",
			api.ErrValidation)
	}
	pure, _ := act.Params.Get("pure")

	entity := api.Entity{
		Path:           "model::" + name,
		ClassifierPath: "meta::pure::metamodel::type::Class",
		Content: map[string]any{
			"name":   name,
			"source": pure,
		},
	}
	err := f.clients.SDLC.UpsertEntities(
		ctx, cid, projectID, workspaceID, []api.Entity{entity},
	)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (f *Flows) handleUpsertMapping(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, workspaceID := f.scope(act)
	name, ok := act.Params.Get("name")
	if !ok {
		return nil, fmt.Errorf("%w: mapping name is required",
			api.ErrValidation)
	}
	model, _ := act.Params.Get("model")

	entity := api.Entity{
		Path:           "mapping::" + name,
		ClassifierPath: "meta::pure::mapping::Mapping",
		Content: map[string]any{
			"name":   name,
			"target": "model::" + model,
		},
	}
	err := f.clients.SDLC.UpsertEntities(
		ctx, cid, projectID, workspaceID, []api.Entity{entity},
	)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

func (f *Flows) handleApplyChange(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, workspaceID := f.scope(act)
	modelPath, ok := act.Params.Get("model_path")
	if !ok {
		return nil, fmt.Errorf("%w: model_path is required",
			api.ErrValidation)
	}

	changes, _ := act.Params["changes"].(map[string]any)
	entity := api.Entity{
		Path:           modelPath,
		ClassifierPath: "meta::pure::metamodel::type::Class",
		Content:        changes,
	}
	err := f.clients.SDLC.UpsertEntities(
		ctx, cid, projectID, workspaceID, []api.Entity{entity},
	)
	if err != nil {
		return nil, err
	}
	return entity, nil
}

// handleCompile treats a failed compile as a permanent failure; the
// diagnostics travel in the error message
func (f *Flows) handleCompile(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	pure, _ := act.Params.Get("pure")
	result, err := f.clients.Engine.Compile(ctx, cid, pure)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, compileFailure(result)
	}
	return result, nil
}

func (f *Flows) handleCompileAll(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, workspaceID := f.scope(act)
	entities, err := f.clients.SDLC.GetEntities(
		ctx, cid, projectID, workspaceID,
	)
	if err != nil {
		return nil, err
	}

	var sources []string
	for _, entity := range entities {
		if src, ok := entity.Content["source"].(string); ok && src != "" {
			sources = append(sources, src)
		}
	}

	result, err := f.clients.Engine.Compile(
		ctx, cid, strings.Join(sources, "\n"),
	)
	if err != nil {
		return nil, err
	}
	if !result.OK {
		return nil, compileFailure(result)
	}
	return map[string]any{
		"entities": len(entities),
		"compile":  result,
	}, nil
}

func (f *Flows) handleRunTests(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	testPath, _ := act.Params.Get("test_path")
	report, err := f.clients.Engine.RunTests(ctx, cid, testPath)
	if err != nil {
		return nil, err
	}
	if !report.Passed {
		failed := 0
		for _, r := range report.Results {
			if !r.Passed {
				failed++
			}
		}
		return nil, &api.AdapterError{
			Service: "engine",
			Op:      "run_tests",
			Message: fmt.Sprintf("%d of %d tests failed",
				failed, len(report.Results)),
		}
	}
	return report, nil
}

func (f *Flows) handleGenerateService(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	path, ok := act.Params.Get("path")
	if !ok {
		return nil, fmt.Errorf("%w: service path is required",
			api.ErrValidation)
	}
	target, ok := act.Params.Get("target")
	if !ok {
		target = "java"
	}
	code, err := f.clients.Engine.GenerateServiceCode(ctx, cid, path, target)
	if err != nil {
		return nil, err
	}
	return map[string]string{"path": path, "code": code}, nil
}

func (f *Flows) handleOpenReview(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, workspaceID := f.scope(act)
	title, _ := act.Params.Get("title")
	description, _ := act.Params.Get("description")
	return f.clients.SDLC.CreateReview(
		ctx, cid, projectID, workspaceID, title, description,
	)
}

func (f *Flows) handlePublish(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, _ := f.scope(act)
	servicePath, ok := act.Params.Get("service_path")
	if !ok {
		return nil, fmt.Errorf("%w: service_path is required",
			api.ErrValidation)
	}
	version, ok := act.Params.Get("version")
	if !ok {
		version = VersionV1
	}
	return f.clients.Depot.Publish(ctx, cid, projectID, servicePath, version)
}

func (f *Flows) handleSearchDepot(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	query, ok := act.Params.Get("query")
	if !ok {
		return nil, fmt.Errorf("%w: search query is required",
			api.ErrValidation)
	}
	entities, err := f.clients.Depot.Search(ctx, cid, query)
	if err != nil {
		return nil, err
	}
	if run := reuseRunOf(act); run != nil {
		run.Found = entities
	}
	return entities, nil
}

func (f *Flows) handleImportModel(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, workspaceID := f.scope(act)

	var imported []api.Entity
	if run := reuseRunOf(act); run != nil {
		imported = run.Found
	}
	if len(imported) == 0 {
		return nil, &api.AdapterError{
			Service: "depot",
			Op:      "import_model",
			Message: "no matching models found to import",
		}
	}

	err := f.clients.SDLC.UpsertEntities(
		ctx, cid, projectID, workspaceID, imported,
	)
	if err != nil {
		return nil, err
	}
	return map[string]any{"imported": len(imported)}, nil
}

func (f *Flows) handleTransformSchema(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	format, _ := act.Params.Get("format")
	classPath, _ := act.Params.Get("class_path")
	if classPath == "" {
		if run := reuseRunOf(act); run != nil && len(run.Found) > 0 {
			classPath = run.Found[0].Path
		}
	}
	return f.clients.Engine.TransformSchema(ctx, cid, format, classPath)
}

func (f *Flows) handleEnumerateEntities(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, workspaceID := f.scope(act)
	entities, err := f.clients.SDLC.GetEntities(
		ctx, cid, projectID, workspaceID,
	)
	if err != nil {
		return nil, err
	}
	if run := auditRunOf(act); run != nil {
		run.Entities = entities
	}
	return map[string]any{"entities": len(entities)}, nil
}

func (f *Flows) handleGenerateEvidence(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	run := auditRunOf(act)
	counts := api.ManifestCounts{}
	if run != nil {
		counts.TotalRecords = len(run.Entities)
	}
	return f.manifests.Record(ctx, cid, api.FlowCompleted, counts)
}

func (f *Flows) handleListVersions(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	servicePath, _ := act.Params.Get("service_path")
	versions, err := f.clients.Depot.ListVersions(ctx, cid, servicePath)
	if err != nil {
		return nil, err
	}
	if run := rollbackRunOf(act); run != nil {
		run.Versions = versions
	}
	return versions, nil
}

// handleFindLastGood picks the most recent healthy version, skipping
// the currently live (first) one
func (f *Flows) handleFindLastGood(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	run := rollbackRunOf(act)
	if run == nil {
		return nil, fmt.Errorf("%w: rollback context missing",
			api.ErrValidation)
	}
	if run.Target != "" {
		return run.Target, nil
	}

	for i, v := range run.Versions {
		if i == 0 {
			continue
		}
		if v.Healthy {
			run.Target = v.Version
			return v.Version, nil
		}
	}
	return nil, &api.AdapterError{
		Service: "depot",
		Op:      "find_last_good",
		Message: "no healthy prior version available",
	}
}

func (f *Flows) handleRevertToVersion(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, workspaceID := f.scope(act)
	revision := ""
	if run := rollbackRunOf(act); run != nil {
		revision = run.Target
	}
	if v, ok := act.Params.Get("revision"); ok {
		revision = v
	}
	if revision == "" {
		return nil, fmt.Errorf("%w: no revision to revert to",
			api.ErrValidation)
	}
	err := f.clients.SDLC.RevertTo(
		ctx, cid, projectID, workspaceID, revision,
	)
	if err != nil {
		return nil, err
	}
	return map[string]string{"reverted_to": revision}, nil
}

// handleFlipTraffic republishes the target version so the depot routes
// traffic to it
func (f *Flows) handleFlipTraffic(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	projectID, _ := f.scope(act)
	servicePath, _ := act.Params.Get("service_path")

	version := ""
	if run := rollbackRunOf(act); run != nil {
		version = run.Target
	}
	if v, ok := act.Params.Get("version"); ok {
		version = v
	}
	if version == "" {
		return nil, fmt.Errorf("%w: no target version for traffic flip",
			api.ErrValidation)
	}
	return f.clients.Depot.Publish(ctx, cid, projectID, servicePath, version)
}

// handleVerifyVersionsLive confirms every required version is published
// and healthy. A missing version is a flow failure, never silently
// dropped
func (f *Flows) handleVerifyVersionsLive(
	ctx context.Context, cid api.CorrelationID, act *api.Action,
) (any, error) {
	servicePath, _ := act.Params.Get("service_path")
	required, _ := act.Params.Get("versions")
	if required == "" {
		if run := rollbackRunOf(act); run != nil {
			required = run.Target
		}
	}

	live, err := f.clients.Depot.ListVersions(ctx, cid, servicePath)
	if err != nil {
		return nil, err
	}

	healthy := map[string]bool{}
	for _, v := range live {
		healthy[v.Version] = v.Healthy
	}
	for _, version := range strings.Split(required, ",") {
		version = strings.TrimSpace(version)
		if version == "" {
			continue
		}
		if !healthy[version] {
			return nil, &api.AdapterError{
				Service: "depot",
				Op:      "verify_versions_live",
				Message: fmt.Sprintf(
					"version %s of %s is not live", version, servicePath),
			}
		}
	}
	return map[string]any{"verified": required}, nil
}

func compileFailure(result *api.CompileResult) error {
	messages := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		messages = append(messages, e.Message)
	}
	return &api.AdapterError{
		Service: "engine",
		Op:      "compile",
		Message: "compilation failed: " + strings.Join(messages, "; "),
	}
}
