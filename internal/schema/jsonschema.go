package schema

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/invopop/jsonschema"
)

// Wire shapes used only to derive the structured-output schema.
type schemaSegment struct {
	Text    string `json:"text" jsonschema:"required,description=Exact substring of the analyzed text"`
	Type    string `json:"type" jsonschema:"required,enum=highlight_good,enum=highlight_bad"`
	Comment string `json:"comment" jsonschema:"required"`
	Offset  int    `json:"offset" jsonschema:"required,description=Character index of text in the analyzed text"`
}

type schemaPrep struct {
	PointDetected      bool   `json:"point_detected" jsonschema:"required"`
	ConclusionPosition string `json:"conclusion_position" jsonschema:"required,enum=start,enum=middle,enum=end,enum=missing"`
}

type schemaResult struct {
	Scores       map[string]int  `json:"scores" jsonschema:"required"`
	Diagnosis    string          `json:"diagnosis" jsonschema:"required"`
	PrepAnalysis *schemaPrep     `json:"prep_analysis,omitempty"`
	Advice       []string        `json:"advice" jsonschema:"required,minItems=1"`
	Segments     []schemaSegment `json:"segments" jsonschema:"required"`
}

const (
	propertiesKey           = "properties"
	additionalPropertiesKey = "additionalProperties"
	typeKey                 = "type"
	requiredKey             = "required"
	itemsKey                = "items"
)

// AnalysisSchema returns the JSON schema of an analysis result whose scores
// object has exactly the given integer keys. prep_analysis is included only
// when withPrep is set.
func AnalysisSchema(scoreKeys []string, withPrep bool) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}
	s, err := toMap(reflector.Reflect(&schemaResult{}))
	if err != nil {
		return nil, err
	}

	props, ok := s[propertiesKey].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schema: reflected result has no properties")
	}

	scoreProps := make(map[string]any, len(scoreKeys))
	for _, k := range scoreKeys {
		scoreProps[k] = map[string]any{
			typeKey:   "integer",
			"minimum": MinScore,
			"maximum": MaxScore,
		}
	}
	props["scores"] = map[string]any{
		typeKey:       "object",
		propertiesKey: scoreProps,
	}
	if !withPrep {
		delete(props, "prep_analysis")
	}

	strict(s)
	return s, nil
}

func toMap(s *jsonschema.Schema) (map[string]any, error) {
	b, err := s.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	delete(m, "$schema")
	delete(m, "$id")
	return m, nil
}

// strict closes every object and marks all its properties required, as
// strict structured output demands.
func strict(s map[string]any) {
	if t, ok := s[typeKey].(string); ok && t == "object" {
		s[additionalPropertiesKey] = false
		if props, ok := s[propertiesKey].(map[string]any); ok {
			req := make([]string, 0, len(props))
			for name := range props {
				req = append(req, name)
			}
			sort.Strings(req)
			if len(req) > 0 {
				s[requiredKey] = req
			}
		}
	}
	if props, ok := s[propertiesKey].(map[string]any); ok {
		for _, p := range props {
			if pm, ok := p.(map[string]any); ok {
				strict(pm)
			}
		}
	}
	if items, ok := s[itemsKey].(map[string]any); ok {
		strict(items)
	}
}
