package api

type (
	// CompileResult is the engine's verdict on a compilation request
	CompileResult struct {
		OK     bool           `json:"ok"`
		Errors []CompileError `json:"errors"`
	}

	// CompileError is one structured compiler diagnostic
	CompileError struct {
		Message string `json:"message"`
		Line    int    `json:"line,omitempty"`
		Column  int    `json:"column,omitempty"`
	}

	// TestResult is the outcome of one engine test
	TestResult struct {
		Test    string `json:"test"`
		Passed  bool   `json:"passed"`
		Message string `json:"message,omitempty"`
	}

	// TestReport aggregates an engine test run
	TestReport struct {
		Passed  bool         `json:"passed"`
		Results []TestResult `json:"results"`
	}

	// Project is a project known to the SDLC or depot service
	Project struct {
		ProjectID   string `json:"project_id"`
		Name        string `json:"name"`
		Description string `json:"description,omitempty"`
	}

	// Workspace is an SDLC workspace within a project
	Workspace struct {
		ProjectID      string `json:"project_id"`
		WorkspaceID    string `json:"workspace_id"`
		AlreadyApplied bool   `json:"already_applied,omitempty"`
	}

	// Entity is one model element held by the SDLC service
	Entity struct {
		Path           string         `json:"path"`
		ClassifierPath string         `json:"classifierPath"`
		Content        map[string]any `json:"content"`
	}

	// Review is an open change request. AlreadyApplied marks a repeated
	// call whose side effect was deduplicated by idempotency key
	Review struct {
		ReviewID       string `json:"review_id"`
		Title          string `json:"title"`
		WebURL         string `json:"web_url,omitempty"`
		AlreadyApplied bool   `json:"already_applied,omitempty"`
	}

	// ServiceVersion is one published version of a depot service
	ServiceVersion struct {
		Version     string `json:"version"`
		Healthy     bool   `json:"healthy"`
		PublishedAt string `json:"published_at,omitempty"`
	}

	// Publication is the depot's record of a publish operation
	Publication struct {
		ProjectID      string `json:"project_id"`
		ServicePath    string `json:"service_path,omitempty"`
		Version        string `json:"version"`
		URL            string `json:"url,omitempty"`
		AlreadyApplied bool   `json:"already_applied,omitempty"`
	}

	// SchemaArtifact is a schema rendered in an interchange format
	SchemaArtifact struct {
		Format  string `json:"format"`
		Content string `json:"content"`
	}
)
