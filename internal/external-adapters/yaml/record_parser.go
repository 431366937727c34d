package yaml

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/vulnscan/internal/domain/entities"
)

// yamlRecord represents the raw YAML structure of one record
type yamlRecord struct {
	Hash    string   `yaml:"hash"`
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Title   string   `yaml:"title"`
	CVEs    []string `yaml:"cves"`
}

// yamlRecordFile accepts either a bare list or a document with a records key
type yamlRecordFile struct {
	Records []yamlRecord `yaml:"records"`
}

// RecordParser parses vulnerability record files used to seed the local
// database without the update service. JSON files parse as well.
type RecordParser struct{}

// NewRecordParser creates a new record parser
func NewRecordParser() *RecordParser {
	return &RecordParser{}
}

// ParseFile parses a record file
func (p *RecordParser) ParseFile(filePath string) ([]entities.VulnerabilityRecord, error) {
	//nolint:gosec // G304: filePath is a user supplied import file
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	return p.Parse(data)
}

// Parse parses YAML bytes into vulnerability records
func (p *RecordParser) Parse(data []byte) ([]entities.VulnerabilityRecord, error) {
	var raw []yamlRecord

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(node.Content) == 0 {
		return []entities.VulnerabilityRecord{}, nil
	}

	switch node.Content[0].Kind {
	case yaml.SequenceNode:
		if err := node.Content[0].Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case yaml.MappingNode:
		var file yamlRecordFile
		if err := node.Content[0].Decode(&file); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		raw = file.Records
	default:
		return nil, fmt.Errorf("record file must be a list or contain a records key")
	}

	records := make([]entities.VulnerabilityRecord, 0, len(raw))
	for i, r := range raw {
		record, err := convertRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i+1, err)
		}
		records = append(records, record)
	}
	return records, nil
}

func convertRecord(r yamlRecord) (entities.VulnerabilityRecord, error) {
	record := entities.VulnerabilityRecord{
		Hash:    strings.ToLower(strings.TrimSpace(r.Hash)),
		Name:    strings.TrimSpace(r.Name),
		Version: strings.TrimSpace(r.Version),
		Title:   strings.TrimSpace(r.Title),
		CVEs:    entities.NormalizeIDs(r.CVEs),
	}

	// Validate required fields
	if record.Hash == "" && (record.Name == "" || record.Version == "") {
		return record, fmt.Errorf("record must have a hash or a name and version")
	}
	if len(record.CVEs) == 0 {
		return record, fmt.Errorf("record %s must list at least one vulnerability", record.Key())
	}
	return record, nil
}
