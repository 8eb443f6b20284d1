package graphapi

// BuildError is returned by StateGraph's builder methods and Compile when
// the graph as declared cannot be turned into a valid runtime. A running
// conditional router can also surface one (CodeInvalidRoute) if it returns
// a destination a pathMap does not cover.
type BuildError struct {
	Code    string
	Message string
}

func (e *BuildError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

const (
	CodeInvalidGraph  = "INVALID_GRAPH"
	CodeDuplicateNode = "DUPLICATE_NODE"
	CodeNodeNotFound  = "NODE_NOT_FOUND"
	CodeUnreachable   = "UNREACHABLE_NODE"
	CodeDeadEnd       = "DEAD_END_NODE"
	CodeNoEntryPoint  = "NO_ENTRY_POINT"
	CodeMultipleEdges = "MULTIPLE_EDGES"
	CodeInvalidRoute  = "INVALID_ROUTE"
)
