package yamlutil

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalStrict unmarshals a single YAML document with strict field checking.
// Unknown fields are rejected so typos in configuration and definition files surface early.
func UnmarshalStrict(data []byte, v interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("empty YAML document")
		}
		errStr := err.Error()
		if strings.Contains(errStr, "field") && strings.Contains(errStr, "not found") {
			return fmt.Errorf("unknown field (check for typos): %w", err)
		}
		return err
	}

	// a second document usually means a stray "---"
	var extra yaml.Node
	if err := decoder.Decode(&extra); err == nil {
		return fmt.Errorf("expected a single YAML document, found more")
	} else if !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}
