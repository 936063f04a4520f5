package api

type (
	// IntentRequest is the body of POST /api/intent
	IntentRequest struct {
		Prompt      string `json:"prompt" binding:"required"`
		ProjectID   string `json:"project_id,omitempty"`
		WorkspaceID string `json:"workspace_id,omitempty"`
		Execute     *bool  `json:"execute,omitempty"`
	}

	// IntentResponse aggregates the plan, logs, and artifacts produced
	// for one intent
	IntentResponse struct {
		CorrelationID CorrelationID `json:"correlation_id"`
		Analysis      *Analysis     `json:"analysis,omitempty"`
		Plan          *Plan         `json:"plan"`
		Logs          []string      `json:"logs"`
		Artifacts     []Artifact    `json:"artifacts,omitempty"`
		Status        FlowStatus    `json:"status"`
	}

	// Artifact is a produced output surfaced to the caller (manifests,
	// generated code, test reports)
	Artifact struct {
		Name    string `json:"name"`
		Kind    string `json:"kind"`
		Content any    `json:"content"`
	}

	// FlowResponse is the common response shape of the use-case flows
	FlowResponse struct {
		UseCase       FlowName      `json:"use_case"`
		CorrelationID CorrelationID `json:"correlation_id"`
		Status        FlowStatus    `json:"status"`
		State         *FlowState    `json:"state,omitempty"`
		Plan          *Plan         `json:"plan,omitempty"`
		Logs          []string      `json:"logs,omitempty"`
		Artifacts     []Artifact    `json:"artifacts,omitempty"`
		Detail        any           `json:"detail,omitempty"`
	}

	// IngestPublishRequest drives the ingest → compile → review → publish
	// flow
	IngestPublishRequest struct {
		CSVData     string `json:"csv_data" binding:"required"`
		ModelName   string `json:"model_name" binding:"required"`
		ServicePath string `json:"service_path" binding:"required"`
		MappingName string `json:"mapping_name,omitempty"`
	}

	// SafeRolloutRequest drives the versioned model-change flow
	SafeRolloutRequest struct {
		ModelPath string         `json:"model_path" binding:"required"`
		Changes   map[string]any `json:"changes" binding:"required"`
		KeepV1    bool           `json:"keep_v1"`
	}

	// ModelReuseRequest drives depot search → import → transform → publish
	ModelReuseRequest struct {
		SearchQuery  string `json:"search_query" binding:"required"`
		TargetFormat string `json:"target_format,omitempty"`
		ServiceName  string `json:"service_name" binding:"required"`
	}

	// GovernanceAuditRequest drives the audit and lineage-proof flow
	GovernanceAuditRequest struct {
		Scope            string `json:"scope,omitempty"`
		IncludeTests     bool   `json:"include_tests"`
		GenerateEvidence bool   `json:"generate_evidence"`
	}

	// ContractFirstRequest supplies exactly one schema variant plus
	// generation options
	ContractFirstRequest struct {
		Schema         map[string]any `json:"schema,omitempty"`
		OpenAPISpec    map[string]any `json:"openapi_spec,omitempty"`
		AvroSchema     map[string]any `json:"avro_schema,omitempty"`
		GraphQLSchema  string         `json:"graphql_schema,omitempty"`
		ProtobufSchema string         `json:"protobuf_schema,omitempty"`
		ServicePath    string         `json:"service_path" binding:"required"`
		GenerateTests  bool           `json:"generate_tests"`
		GenerateMocks  bool           `json:"generate_mocks"`
	}

	// BulkBackfillRequest drives the windowed backfill flow
	BulkBackfillRequest struct {
		DataSource     string `json:"data_source" binding:"required"`
		WindowSize     int    `json:"window_size"`
		TargetModel    string `json:"target_model" binding:"required"`
		ValidateSample bool   `json:"validate_sample"`
		TotalRecords   int    `json:"total_records,omitempty"`
	}

	// IncidentRollbackRequest drives the emergency rollback flow
	IncidentRollbackRequest struct {
		ServicePath   string `json:"service_path" binding:"required"`
		TargetVersion string `json:"target_version,omitempty"`
		CreateHotfix  bool   `json:"create_hotfix"`
	}

	// CompileRequest is the body of POST /adapters/engine/compile
	CompileRequest struct {
		Pure string `json:"pure" binding:"required"`
	}

	// ErrorResponse is the common error payload; every failure carries
	// the correlation ID when one exists
	ErrorResponse struct {
		Error         string        `json:"error"`
		Status        int           `json:"status"`
		CorrelationID CorrelationID `json:"correlation_id,omitempty"`
	}

	// HealthResponse reports service liveness
	HealthResponse struct {
		Service string `json:"service"`
		Version string `json:"version"`
		Status  string `json:"status"`
	}
)
