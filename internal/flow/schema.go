package flow

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/modelguard/guardian/pkg/api"
)

type (
	// SchemaSource abstracts one of the accepted contract formats. Each
	// variant renders itself into a model definition, a test suite, and
	// mock data
	SchemaSource interface {
		Format() string
		ModelName() string
		ToModel() (string, error)
		ToTests() string
		ToMocks() string
	}

	jsonSchemaSource struct{ raw string }
	openAPISource    struct{ raw string }
	avroSource       struct{ raw string }
	graphqlSource    struct{ raw string }
	protobufSource   struct{ raw string }
)

// Contract format names
const (
	FormatJSONSchema = "jsonSchema"
	FormatOpenAPI    = "openapi"
	FormatAvro       = "avro"
	FormatGraphQL    = "graphql"
	FormatProtobuf   = "protobuf"
)

const defaultModelName = "GeneratedModel"

var (
	graphqlTypePattern  = regexp.MustCompile(`type\s+(\w+)\s*\{([^}]*)}`)
	graphqlFieldPattern = regexp.MustCompile(`(\w+)\s*:\s*(\w+)`)
	protoMsgPattern     = regexp.MustCompile(`message\s+(\w+)\s*\{([^}]*)}`)
	protoFieldPattern   = regexp.MustCompile(`(\w+)\s+(\w+)\s*=\s*\d+\s*;`)
)

// NewSchemaSource selects the variant for a contract-first request.
// Exactly one format must be supplied; zero or more than one fails
// validation before any model is created
func NewSchemaSource(req *api.ContractFirstRequest) (SchemaSource, error) {
	var sources []SchemaSource
	if req.Schema != nil {
		sources = append(sources, &jsonSchemaSource{raw: mustJSON(req.Schema)})
	}
	if req.OpenAPISpec != nil {
		sources = append(sources, &openAPISource{raw: mustJSON(req.OpenAPISpec)})
	}
	if req.AvroSchema != nil {
		sources = append(sources, &avroSource{raw: mustJSON(req.AvroSchema)})
	}
	if req.GraphQLSchema != "" {
		sources = append(sources, &graphqlSource{raw: req.GraphQLSchema})
	}
	if req.ProtobufSchema != "" {
		sources = append(sources, &protobufSource{raw: req.ProtobufSchema})
	}

	switch len(sources) {
	case 0:
		return nil, fmt.Errorf("%w: no schema supplied", api.ErrValidation)
	case 1:
		return sources[0], nil
	default:
		return nil, fmt.Errorf(
			"%w: exactly one schema format must be supplied, got %d",
			api.ErrValidation, len(sources))
	}
}

// DetectFormat classifies an opaque contract document by its markers
func DetectFormat(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if gjson.Valid(trimmed) {
		doc := gjson.Parse(trimmed)
		switch {
		case doc.Get("openapi").Exists() || doc.Get("swagger").Exists():
			return FormatOpenAPI
		case doc.Get("type").String() == "record" &&
			doc.Get("fields").IsArray():
			return FormatAvro
		default:
			return FormatJSONSchema
		}
	}
	if strings.Contains(trimmed, "message ") &&
		strings.Contains(trimmed, "syntax") {
		return FormatProtobuf
	}
	if graphqlTypePattern.MatchString(trimmed) {
		return FormatGraphQL
	}
	return ""
}

func (s *jsonSchemaSource) Format() string { return FormatJSONSchema }

func (s *jsonSchemaSource) ModelName() string {
	if title := gjson.Get(s.raw, "title").String(); title != "" {
		return strings.ReplaceAll(title, " ", "")
	}
	return defaultModelName
}

func (s *jsonSchemaSource) ToModel() (string, error) {
	props := gjson.Get(s.raw, "properties")
	if !props.Exists() {
		return "", fmt.Errorf("%w: schema has no properties",
			api.ErrValidation)
	}

	var fields []pureField
	props.ForEach(func(key, value gjson.Result) bool {
		fields = append(fields, pureField{
			name: key.String(),
			kind: pureType(value.Get("type").String()),
		})
		return true
	})
	return renderPureClass(s.ModelName(), fields), nil
}

func (s *jsonSchemaSource) ToTests() string {
	return renderPureTests(s.ModelName())
}

func (s *jsonSchemaSource) ToMocks() string {
	var mock = map[string]any{}
	gjson.Get(s.raw, "properties").ForEach(
		func(key, value gjson.Result) bool {
			mock[key.String()] = mockValue(value.Get("type").String())
			return true
		},
	)
	return mustJSON(mock)
}

func (s *openAPISource) Format() string { return FormatOpenAPI }

func (s *openAPISource) ModelName() string {
	schemas := gjson.Get(s.raw, "components.schemas")
	name := defaultModelName
	schemas.ForEach(func(key, _ gjson.Result) bool {
		name = key.String()
		return false
	})
	return name
}

func (s *openAPISource) ToModel() (string, error) {
	schemas := gjson.Get(s.raw, "components.schemas")
	if !schemas.Exists() {
		return "", fmt.Errorf("%w: spec has no component schemas",
			api.ErrValidation)
	}

	var fields []pureField
	schemas.ForEach(func(_, schema gjson.Result) bool {
		schema.Get("properties").ForEach(
			func(key, value gjson.Result) bool {
				fields = append(fields, pureField{
					name: key.String(),
					kind: pureType(value.Get("type").String()),
				})
				return true
			},
		)
		return false
	})
	return renderPureClass(s.ModelName(), fields), nil
}

func (s *openAPISource) ToTests() string {
	return renderPureTests(s.ModelName())
}

func (s *openAPISource) ToMocks() string {
	mock := map[string]any{}
	schemas := gjson.Get(s.raw, "components.schemas")
	schemas.ForEach(func(_, schema gjson.Result) bool {
		schema.Get("properties").ForEach(
			func(key, value gjson.Result) bool {
				mock[key.String()] = mockValue(value.Get("type").String())
				return true
			},
		)
		return false
	})
	return mustJSON(mock)
}

func (s *avroSource) Format() string { return FormatAvro }

func (s *avroSource) ModelName() string {
	if name := gjson.Get(s.raw, "name").String(); name != "" {
		return name
	}
	return defaultModelName
}

func (s *avroSource) ToModel() (string, error) {
	fieldList := gjson.Get(s.raw, "fields")
	if !fieldList.IsArray() {
		return "", fmt.Errorf("%w: avro schema has no fields",
			api.ErrValidation)
	}

	var fields []pureField
	fieldList.ForEach(func(_, field gjson.Result) bool {
		fields = append(fields, pureField{
			name: field.Get("name").String(),
			kind: pureType(field.Get("type").String()),
		})
		return true
	})
	return renderPureClass(s.ModelName(), fields), nil
}

func (s *avroSource) ToTests() string {
	return renderPureTests(s.ModelName())
}

func (s *avroSource) ToMocks() string {
	mock := map[string]any{}
	gjson.Get(s.raw, "fields").ForEach(
		func(_, field gjson.Result) bool {
			mock[field.Get("name").String()] =
				mockValue(field.Get("type").String())
			return true
		},
	)
	return mustJSON(mock)
}

func (s *graphqlSource) Format() string { return FormatGraphQL }

func (s *graphqlSource) ModelName() string {
	if m := graphqlTypePattern.FindStringSubmatch(s.raw); m != nil {
		return m[1]
	}
	return defaultModelName
}

func (s *graphqlSource) ToModel() (string, error) {
	m := graphqlTypePattern.FindStringSubmatch(s.raw)
	if m == nil {
		return "", fmt.Errorf("%w: no type definition found",
			api.ErrValidation)
	}

	var fields []pureField
	for _, f := range graphqlFieldPattern.FindAllStringSubmatch(m[2], -1) {
		fields = append(fields, pureField{
			name: f[1],
			kind: pureType(strings.ToLower(f[2])),
		})
	}
	return renderPureClass(m[1], fields), nil
}

func (s *graphqlSource) ToTests() string {
	return renderPureTests(s.ModelName())
}

func (s *graphqlSource) ToMocks() string {
	mock := map[string]any{}
	if m := graphqlTypePattern.FindStringSubmatch(s.raw); m != nil {
		for _, f := range graphqlFieldPattern.FindAllStringSubmatch(
			m[2], -1,
		) {
			mock[f[1]] = mockValue(strings.ToLower(f[2]))
		}
	}
	return mustJSON(mock)
}

func (s *protobufSource) Format() string { return FormatProtobuf }

func (s *protobufSource) ModelName() string {
	if m := protoMsgPattern.FindStringSubmatch(s.raw); m != nil {
		return m[1]
	}
	return defaultModelName
}

func (s *protobufSource) ToModel() (string, error) {
	m := protoMsgPattern.FindStringSubmatch(s.raw)
	if m == nil {
		return "", fmt.Errorf("%w: no message definition found",
			api.ErrValidation)
	}

	var fields []pureField
	for _, f := range protoFieldPattern.FindAllStringSubmatch(m[2], -1) {
		fields = append(fields, pureField{
			name: f[2],
			kind: pureType(f[1]),
		})
	}
	return renderPureClass(m[1], fields), nil
}

func (s *protobufSource) ToTests() string {
	return renderPureTests(s.ModelName())
}

func (s *protobufSource) ToMocks() string {
	mock := map[string]any{}
	if m := protoMsgPattern.FindStringSubmatch(s.raw); m != nil {
		for _, f := range protoFieldPattern.FindAllStringSubmatch(
			m[2], -1,
		) {
			mock[f[2]] = mockValue(f[1])
		}
	}
	return mustJSON(mock)
}

type pureField struct {
	name string
	kind string
}

func pureType(schemaType string) string {
	switch schemaType {
	case "integer", "int", "int32", "int64", "long":
		return "Integer"
	case "number", "float", "double":
		return "Float"
	case "boolean", "bool":
		return "Boolean"
	case "date", "date-time", "timestamp":
		return "Date"
	default:
		return "String"
	}
}

func mockValue(schemaType string) any {
	switch pureType(schemaType) {
	case "Integer":
		return 42
	case "Float":
		return 3.14
	case "Boolean":
		return true
	case "Date":
		return "2024-01-01"
	default:
		return "example"
	}
}

func renderPureClass(name string, fields []pureField) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Class model::%s\n{\n", name)
	for _, f := range fields {
		fmt.Fprintf(&b, "  %s: %s[1];\n", f.name, f.kind)
	}
	b.WriteString("}")
	return b.String()
}

func renderPureTests(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "function tests::%sRoundTrip(): Boolean[1]\n{\n", name)
	fmt.Fprintf(&b,
		"  model::%s.all()->size() >= 0\n}", name)
	return b.String()
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}
