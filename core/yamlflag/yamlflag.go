// Package yamlflag provides a command line flag that accepts a YAML document.
package yamlflag

import (
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"reflect"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/xeipuuv/gojsonschema"
)

// SchemaError indicates the document does not satisfy the JSON schema.
type SchemaError struct {
	*gojsonschema.Result
}

func (e SchemaError) Error() string {
	var b strings.Builder
	fmt.Fprint(&b, "document failed schema validation:")
	for _, desc := range e.Result.Errors() {
		fmt.Fprint(&b, "\n- ", desc)
	}
	return b.String()
}

// New creates a flag.Value that recognizes a YAML document.
//
// The YAML document can be specified directly on the command line:
//   --flag="key: value"
// Or it can be read from a file, when the flag value starts with '@':
//   --flag=@file.yaml
//
// value must be a pointer to a struct containing config sections.
// If schema is not nil, the document is validated before it is decoded into value.
// Panics if value is not a pointer.
func New(value interface{}, schema *gojsonschema.Schema) flag.Getter {
	if val := reflect.ValueOf(value); val.Kind() != reflect.Ptr {
		panic(val.Kind())
	}
	return &yamlFlagValue{value, schema}
}

type yamlFlagValue struct {
	value  interface{}
	schema *gojsonschema.Schema
}

func (v *yamlFlagValue) Get() interface{} {
	return v.value
}

func (v *yamlFlagValue) Set(s string) error {
	doc := []byte(s)
	if len(s) >= 1 && s[0] == '@' {
		file, e := ioutil.ReadFile(s[1:])
		if e != nil {
			return e
		}
		doc = file
	}
	return Decode(doc, v.schema, v.value)
}

func (v *yamlFlagValue) String() string {
	j, _ := json.Marshal(v.value)
	return string(j)
}

// Decode converts a YAML document to JSON, validates it against schema if not nil, and unmarshals it into value.
func Decode(doc []byte, schema *gojsonschema.Schema, value interface{}) error {
	j, e := yaml.YAMLToJSON(doc)
	if e != nil {
		return e
	}

	if schema != nil {
		result, e := schema.Validate(gojsonschema.NewBytesLoader(j))
		if e != nil {
			return e
		}
		if !result.Valid() {
			return SchemaError{result}
		}
	}

	return json.Unmarshal(j, value)
}
