package tool

import (
	"encoding/json"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/yanmxa/gencode/internal/provider"
)

// schemaCache holds one compiled jsonschema.Schema per tool name, built
// the first time that tool is dispatched and reused for every call after.
// Registration order is stable for the lifetime of the process, so a
// name's parameter_schema never changes underneath an already-compiled
// entry.
var (
	schemaCacheMu sync.Mutex
	schemaCache   = map[string]*jsonschema.Schema{}

	paramSchemasOnce sync.Once
	paramSchemas     map[string]map[string]any
)

// loadParamSchemas indexes every built-in tool's provider.Tool.Parameters
// by name, for dispatch-time validation. MCP-adapted tools aren't covered
// here — their schemas are compiled and enforced on the MCP server side.
func loadParamSchemas() {
	paramSchemas = make(map[string]map[string]any)
	for _, t := range allToolSchemas() {
		paramSchemas[t.Name] = t.Parameters
	}
}

// compiledSchema compiles (and caches) name's parameter_schema. A schema
// that fails to compile is treated as "nothing to validate" rather than
// blocking every future dispatch of that tool.
func compiledSchema(name string, params map[string]any) (*jsonschema.Schema, bool) {
	schemaCacheMu.Lock()
	defer schemaCacheMu.Unlock()

	if sch, ok := schemaCache[name]; ok {
		return sch, true
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return nil, false
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		return nil, false
	}
	sch, err := c.Compile(name)
	if err != nil {
		return nil, false
	}

	schemaCache[name] = sch
	return sch, true
}

// ValidateInput validates params against name's registered parameter
// schema before a handler ever sees them. A tool with no known schema
// (e.g. an MCP-adapted one) passes through unvalidated.
func ValidateInput(name string, params map[string]any) error {
	paramSchemasOnce.Do(loadParamSchemas)

	schema, ok := paramSchemas[name]
	if !ok {
		return nil
	}
	sch, ok := compiledSchema(name, schema)
	if !ok {
		return nil
	}

	instance, err := asValidatable(params)
	if err != nil {
		return nil
	}
	return sch.Validate(instance)
}

// asValidatable round-trips params through JSON so map[string]any values
// coming straight from message.ParseToolInput match what jsonschema.Schema
// expects of an instance document.
func asValidatable(params map[string]any) (any, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// allToolSchemas is the full built-in provider.Tool catalog, independent
// of MCP adaptation and of deferred-expansion visibility. GetToolSchemas*
// filters it for what the model sees this turn; ValidateInput uses the
// unfiltered form since a hidden tool is still dispatchable by name.
func allToolSchemas() []provider.Tool {
	tools := builtinToolSchemas()
	tools = append(tools, EnterPlanModeSchema, ExitPlanModeSchema, SkillToolSchema, TaskToolSchema, ToolSearchSchema)
	return tools
}
