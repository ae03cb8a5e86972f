package observability

// DefaultServiceName is used as the otel resource service.name when the
// config doesn't override it.
const DefaultServiceName = "locod"

// Span names, one per instrumented operation named in spec.md.
const (
	SpanLLMRequest     = "llm.request"
	SpanToolExecution  = "tool.execution"
	SpanVectorSearch   = "vectorstore.search"
	SpanModelSwitch    = "modelmanager.switch"
	SpanReflect        = "ace.reflect"
	SpanCurate         = "ace.curate"
	SpanIndexFile      = "indexer.index_file"
	SpanRetrieve       = "retriever.retrieve"
)

// Attribute keys used across spans.
const (
	AttrSessionID    = "session_id"
	AttrModuleID     = "module_id"
	AttrWorkspaceID  = "workspace_id"
	AttrModelName    = "model_name"
	AttrProvider     = "provider"
	AttrToolName     = "tool_name"
	AttrCollection   = "collection"
	AttrBulletID     = "bullet_id"
	AttrFilePath     = "file_path"
	AttrIteration    = "iteration"
)
