package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/liamcoop/tariffs/internal/fixtures"
	"github.com/liamcoop/tariffs/tariff"
)

// loadTariffs resolves a sample tariff ID or reads a YAML file holding one
// tariff or a list of tariffs
func loadTariffs(ref string) ([]*tariff.Tariff, error) {
	for _, t := range fixtures.Tariffs() {
		if t.ID == ref {
			return []*tariff.Tariff{t}, nil
		}
	}
	if !strings.HasSuffix(ref, ".yaml") && !strings.HasSuffix(ref, ".yml") {
		return nil, fmt.Errorf("unknown sample tariff %q", ref)
	}

	data, err := os.ReadFile(ref)
	if err != nil {
		return nil, fmt.Errorf("failed to read tariff file: %w", err)
	}
	return decodeTariffs(data)
}

func decodeTariffs(data []byte) ([]*tariff.Tariff, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse tariff file: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, fmt.Errorf("tariff file is empty")
	}

	root := doc.Content[0]
	if root.Kind == yaml.SequenceNode {
		var tariffs []*tariff.Tariff
		if err := root.Decode(&tariffs); err != nil {
			return nil, fmt.Errorf("failed to decode tariffs: %w", err)
		}
		return tariffs, nil
	}

	var t tariff.Tariff
	if err := root.Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode tariff: %w", err)
	}
	return []*tariff.Tariff{&t}, nil
}
