package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// MethodTool wraps a Go method as a FunctionTool using reflection. Agents
// that expose Go methods (rather than pure descriptor-driven tools) use this
// to register them without hand-writing a FunctionTool per method.
type MethodTool struct {
	name        string
	description string
	method      reflect.Method
	receiver    reflect.Value
	schema      Schema
	transfer    bool
}

// NewMethodTool creates a function tool from a method using reflection.
func NewMethodTool(name, description string, method reflect.Method, receiver interface{}) (*MethodTool, error) {
	if receiver == nil {
		return nil, fmt.Errorf("receiver cannot be nil")
	}

	receiverValue := reflect.ValueOf(receiver)
	if !receiverValue.IsValid() {
		return nil, fmt.Errorf("invalid receiver")
	}

	methodType := method.Type
	if methodType.NumIn() < 1 {
		return nil, fmt.Errorf("method must have at least one parameter (receiver)")
	}

	if methodType.NumIn() > 1 {
		firstParam := methodType.In(1)
		if firstParam != reflect.TypeOf((*context.Context)(nil)).Elem() {
			return nil, fmt.Errorf("first parameter must be context.Context")
		}
	}

	schema, err := generateMethodSchema(method)
	if err != nil {
		return nil, fmt.Errorf("failed to generate schema: %v", err)
	}

	return &MethodTool{
		name:        name,
		description: description,
		method:      method,
		receiver:    receiverValue,
		schema:      schema,
		transfer:    strings.HasPrefix(name, "transfer_to_") || strings.HasPrefix(name, "handoff_to_"),
	}, nil
}

func (mt *MethodTool) Name() string        { return mt.name }
func (mt *MethodTool) Description() string { return mt.description }
func (mt *MethodTool) Schema() Schema      { return mt.schema }
func (mt *MethodTool) Transfer() bool      { return mt.transfer }

// Execute marshals args to JSON, unmarshals into the method's declared
// parameter shape, invokes it, and remarshals the result into a map.
func (mt *MethodTool) Execute(ctx context.Context, args map[string]interface{}) (map[string]interface{}, error) {
	methodType := mt.method.Type

	rawArgs, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %v", err)
	}

	inputs := []reflect.Value{mt.receiver}

	if methodType.NumIn() > 1 {
		inputs = append(inputs, reflect.ValueOf(ctx))
	}

	if methodType.NumIn() > 2 {
		if methodType.NumIn() == 3 && methodType.In(2).Kind() == reflect.Struct {
			paramType := methodType.In(2)
			paramValue := reflect.New(paramType).Interface()
			if len(rawArgs) > 0 {
				if err := json.Unmarshal(rawArgs, paramValue); err != nil {
					return nil, fmt.Errorf("failed to unmarshal arguments: %v", err)
				}
			}
			inputs = append(inputs, reflect.ValueOf(paramValue).Elem())
		} else {
			if err := mt.unmarshalMultipleParams(args, methodType, &inputs); err != nil {
				return nil, err
			}
		}
	}

	results := mt.method.Func.Call(inputs)

	if len(results) == 0 {
		return map[string]interface{}{}, nil
	}

	if len(results) > 1 {
		if errValue := results[len(results)-1]; !errValue.IsNil() {
			if err, ok := errValue.Interface().(error); ok {
				return nil, err
			}
		}
	}

	if !results[0].IsValid() || results[0].IsZero() {
		return map[string]interface{}{}, nil
	}

	raw, err := json.Marshal(results[0].Interface())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]interface{}{"result": results[0].Interface()}, nil
	}
	return out, nil
}

// unmarshalMultipleParams converts an args map into individual method
// parameters named param1, param2, ... by position.
func (mt *MethodTool) unmarshalMultipleParams(args map[string]interface{}, methodType reflect.Type, inputs *[]reflect.Value) error {
	for i := 2; i < methodType.NumIn(); i++ {
		paramType := methodType.In(i)
		paramName := fmt.Sprintf("param%d", i-1)

		rawValue, exists := args[paramName]
		if !exists {
			*inputs = append(*inputs, reflect.Zero(paramType))
			continue
		}

		paramValue, err := convertToType(rawValue, paramType)
		if err != nil {
			return fmt.Errorf("failed to convert param %s: %v", paramName, err)
		}
		*inputs = append(*inputs, paramValue)
	}
	return nil
}

// convertToType converts an interface{} value to the target reflect.Type.
func convertToType(value interface{}, targetType reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(targetType), nil
	}

	sourceValue := reflect.ValueOf(value)

	if sourceValue.Type() == targetType {
		return sourceValue, nil
	}

	if targetType.Kind() == reflect.String {
		if str, ok := value.(string); ok {
			return reflect.ValueOf(str), nil
		}
		return reflect.ValueOf(fmt.Sprintf("%v", value)), nil
	}

	switch targetType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if num, ok := value.(float64); ok {
			return reflect.ValueOf(int64(num)).Convert(targetType), nil
		}
	case reflect.Float32, reflect.Float64:
		if num, ok := value.(float64); ok {
			return reflect.ValueOf(num).Convert(targetType), nil
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			return reflect.ValueOf(b), nil
		}
	}

	if sourceValue.Type().ConvertibleTo(targetType) {
		return sourceValue.Convert(targetType), nil
	}

	return reflect.Zero(targetType), fmt.Errorf("cannot convert %T to %s", value, targetType)
}

// DiscoverTools finds all exported methods on agent usable as tools.
func DiscoverTools(agent interface{}) ([]*MethodTool, error) {
	if agent == nil {
		return nil, fmt.Errorf("agent cannot be nil")
	}

	agentType := reflect.TypeOf(agent)
	if agentType.Kind() != reflect.Ptr {
		return nil, fmt.Errorf("agent must be a pointer to a struct")
	}

	var toolList []*MethodTool

	for i := 0; i < agentType.NumMethod(); i++ {
		method := agentType.Method(i)

		if !method.IsExported() {
			continue
		}
		if isLifecycleMethod(method.Name) {
			continue
		}

		description := fmt.Sprintf("Tool function: %s", method.Name)
		toolName := toSnakeCase(method.Name)

		tool, err := NewMethodTool(toolName, description, method, agent)
		if err != nil {
			continue
		}

		toolList = append(toolList, tool)
	}

	return toolList, nil
}

// generateMethodSchema generates a JSON schema for a method's parameters.
func generateMethodSchema(method reflect.Method) (Schema, error) {
	methodType := method.Type

	if methodType.NumIn() <= 2 {
		return Schema{
			"type":       "object",
			"properties": map[string]interface{}{},
		}, nil
	}

	if methodType.NumIn() == 3 {
		paramType := methodType.In(2)
		if paramType.Kind() == reflect.Struct {
			paramValue := reflect.New(paramType).Interface()
			return generateStructSchema(paramValue)
		}
	}

	return generateSyntheticStructSchema(method)
}

// generateStructSchema derives a minimal JSON schema from a Go struct's
// exported fields via a JSON marshal round-trip.
func generateStructSchema(v interface{}) (Schema, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}

	properties := make(map[string]interface{}, len(fields))
	required := make([]string, 0, len(fields))
	for name, val := range fields {
		properties[name] = Schema{"type": jsonSchemaType(val)}
		required = append(required, name)
	}

	return Schema{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}, nil
}

// generateSyntheticStructSchema creates an object schema from multiple
// positional method parameters, named param1, param2, ...
func generateSyntheticStructSchema(method reflect.Method) (Schema, error) {
	methodType := method.Type

	properties := make(map[string]interface{})
	required := make([]string, 0)

	for i := 2; i < methodType.NumIn(); i++ {
		paramType := methodType.In(i)
		paramName := fmt.Sprintf("param%d", i-1)

		var kind string
		switch paramType.Kind() {
		case reflect.String:
			kind = "string"
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			kind = "integer"
		case reflect.Float32, reflect.Float64:
			kind = "number"
		case reflect.Bool:
			kind = "boolean"
		default:
			kind = "object"
		}

		properties[paramName] = Schema{
			"type":        kind,
			"description": fmt.Sprintf("Parameter %d for %s", i-1, method.Name),
		}
		required = append(required, paramName)
	}

	return Schema{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}, nil
}

func jsonSchemaType(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float64:
		return "number"
	case bool:
		return "boolean"
	case []interface{}:
		return "array"
	case map[string]interface{}:
		return "object"
	default:
		return "null"
	}
}

// isLifecycleMethod excludes the orchestrator/descriptor surface from tool
// discovery.
func isLifecycleMethod(name string) bool {
	lifecycleMethods := []string{
		"OnEnter", "OnExit", "OnUserTurnCompleted",
		"OnAudioFrame", "OnSpeechDetected", "OnSpeechEnded",
		"UpdateInstructions", "UpdateTools", "UpdateChatContext",
		"Start", "Stop", "GetInstructions", "GetTools",
		"HandleEvent", "Name", "SetMetadata", "GetMetadata",
	}

	for _, lifecycle := range lifecycleMethods {
		if name == lifecycle {
			return true
		}
	}
	return false
}

// toSnakeCase converts CamelCase to snake_case.
func toSnakeCase(s string) string {
	var result strings.Builder

	for i, r := range s {
		if i > 0 && 'A' <= r && r <= 'Z' {
			result.WriteRune('_')
		}
		result.WriteRune(r)
	}

	return strings.ToLower(result.String())
}
