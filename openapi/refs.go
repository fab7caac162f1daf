package openapi

import (
	"fmt"
	"strings"
)

const schemaRefPrefix = "#/components/schemas/"

// refName extracts the schema name from a local component reference.
func refName(ref string) (string, error) {
	if !strings.HasPrefix(ref, schemaRefPrefix) {
		return "", fmt.Errorf("$ref %q not supported (local #/components/schemas only)", ref)
	}
	name := strings.TrimPrefix(ref, schemaRefPrefix)
	// RFC 6901 unescape
	name = strings.ReplaceAll(strings.ReplaceAll(name, "~1", "/"), "~0", "~")
	if name == "" {
		return "", fmt.Errorf("$ref %q has an empty name", ref)
	}
	return name, nil
}
