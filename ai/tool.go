package ai

import "context"

// ParameterType is the JSON-schema type of a tool parameter.
type ParameterType string

const (
	ParameterTypeString  ParameterType = "string"
	ParameterTypeNumber  ParameterType = "number"
	ParameterTypeInteger ParameterType = "integer"
	ParameterTypeBoolean ParameterType = "boolean"
	ParameterTypeArray   ParameterType = "array"
	ParameterTypeObject  ParameterType = "object"
)

// ParameterProperty describes one named tool parameter.
type ParameterProperty struct {
	Type        ParameterType `json:"type"`
	Description string        `json:"description,omitempty"`
	Enum        []string      `json:"enum,omitempty"`
}

// FunctionParameters is the JSON-schema-shaped declaration of a tool's
// arguments, serializable directly into a vendor function declaration.
type FunctionParameters struct {
	Type       ParameterType                `json:"type"`
	Properties map[string]ParameterProperty `json:"properties"`
	Required   []string                     `json:"required,omitempty"`
}

// Tool is a callable function exposed to the model. Execute may be invoked
// concurrently for different turns and may return an error; the agent loop
// converts execution errors into a safe terminal reply.
type Tool interface {
	Name() string
	Description() string
	Parameters() FunctionParameters
	Execute(ctx context.Context, args map[string]any) (any, error)
}
