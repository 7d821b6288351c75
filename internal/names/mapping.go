// Package names builds and reads character-name glossaries. A glossary file
// is a JSON array of objects keyed by language code:
//
//	[{"ru": "Пьер", "el": "Πιερ"}]
package names

import (
	"encoding/json"
	"fmt"

	"github.com/ximaera/fb2lingo/internal/language"
)

func schemaKeys(sourceCode, targetCode string) (string, string, error) {
	src, ok := language.GetLanguage(sourceCode)
	if !ok {
		return "", "", fmt.Errorf("unsupported language: %s", sourceCode)
	}
	tgt, ok := language.GetLanguage(targetCode)
	if !ok {
		return "", "", fmt.Errorf("unsupported language: %s", targetCode)
	}
	return src.Code, tgt.Code, nil
}

func fromRaw(raw []map[string]string, sourceKey, targetKey string) ([]CharacterMapping, error) {
	mappings := make([]CharacterMapping, 0, len(raw))
	for _, entry := range raw {
		srcVal, ok := entry[sourceKey]
		if !ok {
			return nil, fmt.Errorf("missing source field %q", sourceKey)
		}
		tgtVal, ok := entry[targetKey]
		if !ok {
			return nil, fmt.Errorf("missing target field %q", targetKey)
		}
		mappings = append(mappings, CharacterMapping{Source: srcVal, Target: tgtVal})
	}
	return mappings, nil
}

func EncodeMappings(mappings []CharacterMapping, sourceCode, targetCode string) ([]byte, error) {
	sourceKey, targetKey, err := schemaKeys(sourceCode, targetCode)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]string, 0, len(mappings))
	for _, m := range mappings {
		out = append(out, map[string]string{sourceKey: m.Source, targetKey: m.Target})
	}
	return json.MarshalIndent(out, "", "  ")
}

func DecodeMappings(data []byte, sourceCode, targetCode string) ([]CharacterMapping, error) {
	sourceKey, targetKey, err := schemaKeys(sourceCode, targetCode)
	if err != nil {
		return nil, err
	}
	var raw []map[string]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return fromRaw(raw, sourceKey, targetKey)
}
