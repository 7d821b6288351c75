package names

import (
	"fmt"
	"os"

	"github.com/ximaera/fb2lingo/internal/files"
)

// LoadMappingFile reads a glossary file into a source-to-target name map.
func LoadMappingFile(path, sourceCode, targetCode string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read glossary %s: %w", path, err)
	}
	mappings, err := DecodeMappings(data, sourceCode, targetCode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse glossary %s: %w", path, err)
	}
	glossary := make(map[string]string, len(mappings))
	for _, m := range mappings {
		glossary[m.Source] = m.Target
	}
	return glossary, nil
}

// SaveMappingFile writes a glossary file atomically.
func SaveMappingFile(path string, mappings []CharacterMapping, sourceCode, targetCode string) error {
	data, err := EncodeMappings(mappings, sourceCode, targetCode)
	if err != nil {
		return err
	}
	return files.AtomicWrite(path, append(data, '\n'), 0644)
}
