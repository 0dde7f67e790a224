// Where: internal/command/schema.go
// What: JSON Schema validation for command bodies.
// Why: Shape errors are rejected before any AWS call is attempted.
package command

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

var schemaNames = []string{CommandDeploy, CommandRunTask, CommandHealthcheck}

var (
	schemaOnce      sync.Once
	schemaErr       error
	compiledSchemas map[string]*jsonschema.Schema
)

// bodySchema maps a command name to its schema key. The second return
// is false for command names that have no schema, i.e. unrecognized
// commands.
func bodySchema(command string) (string, bool) {
	switch command {
	case CommandDeploy, CommandRunTask, CommandHealthcheck:
		return command, true
	}
	return "", false
}

func validateBody(name string, body json.RawMessage) error {
	schemas, err := loadSchemas()
	if err != nil {
		return WrapError(CodeInternal, err)
	}

	var document any
	if err := json.Unmarshal(body, &document); err != nil {
		return Errorf(CodeInvalidRequest, "%s body is not a json object: %v", name, err)
	}
	if err := schemas[name].Validate(document); err != nil {
		return Errorf(CodeInvalidRequest, "invalid %s body: %s", name, schemaFailure(err))
	}
	return nil
}

func loadSchemas() (map[string]*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiled := make(map[string]*jsonschema.Schema, len(schemaNames))
		for _, name := range schemaNames {
			path := "schemas/" + name + ".schema.json"
			data, err := schemaFS.ReadFile(path)
			if err != nil {
				schemaErr = fmt.Errorf("read schema %s: %w", name, err)
				return
			}
			compiler := jsonschema.NewCompiler()
			if err := compiler.AddResource(path, bytes.NewReader(data)); err != nil {
				schemaErr = fmt.Errorf("add schema %s: %w", name, err)
				return
			}
			compiled[name], schemaErr = compiler.Compile(path)
			if schemaErr != nil {
				schemaErr = fmt.Errorf("compile schema %s: %w", name, schemaErr)
				return
			}
		}
		compiledSchemas = compiled
	})
	return compiledSchemas, schemaErr
}

// schemaFailure reduces a validation error tree to its deepest cause so
// the response names the offending field instead of the schema root.
func schemaFailure(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	location := leaf.InstanceLocation
	if location == "" {
		location = "/"
	}
	return fmt.Sprintf("%s: %s", location, leaf.Message)
}
