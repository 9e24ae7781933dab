// Package classify holds the keyword tables and pure classification
// functions behind the company, trial design and biomarker strategy domains.
package classify

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/goccy/go-yaml"
)

//go:embed tables/*.yaml
var embeddedTables embed.FS

// Table file names, shared by the embedded defaults and override directories.
const (
	CompanyFile     = "company.yaml"
	TrialDesignFile = "trial_design.yaml"
	BiomarkerFile   = "biomarker_strategy.yaml"
)

// Variation maps a lowercase pattern to its standard spelling.
type Variation struct {
	Pattern  string `yaml:"pattern"`
	Standard string `yaml:"standard"`
}

// Category is a named keyword set. Group is optional.
type Category struct {
	Name        string   `yaml:"name"`
	Group       string   `yaml:"group,omitempty"`
	Description string   `yaml:"description,omitempty"`
	Keywords    []string `yaml:"keywords"`
}

// CompanyTable drives company cleaning and drug-name extraction.
type CompanyTable struct {
	Variations   []Variation `yaml:"variations"`
	DrugPrefixes []string    `yaml:"drug_prefixes"`
	DrugPatterns []string    `yaml:"drug_patterns"`

	patterns []*regexp.Regexp
}

// TrialDesignTable drives trial design cleaning, phase inference and
// categorization.
type TrialDesignTable struct {
	Variations   []Variation `yaml:"variations"`
	PhaseDesigns []Variation `yaml:"phase_designs"`
	Categories   []Category  `yaml:"categories"`
}

// BiomarkerTable drives biomarker strategy cleaning and feature extraction.
type BiomarkerTable struct {
	Variations       []Variation `yaml:"variations"`
	Categories       []Category  `yaml:"categories"`
	Technologies     []string    `yaml:"technologies"`
	MoleculePatterns []string    `yaml:"molecule_patterns"`

	patterns []*regexp.Regexp
}

// Tables bundles every keyword table.
type Tables struct {
	Company     *CompanyTable     `yaml:"company"`
	TrialDesign *TrialDesignTable `yaml:"trial_design"`
	Biomarker   *BiomarkerTable   `yaml:"biomarker_strategy"`
}

// DefaultTables parses the embedded tables.
func DefaultTables() (*Tables, error) {
	return LoadTables("")
}

// LoadTables parses the embedded tables, replacing each one found in dir
// when dir is set. Missing files in dir keep the embedded default.
func LoadTables(dir string) (*Tables, error) {
	t := &Tables{
		Company:     &CompanyTable{},
		TrialDesign: &TrialDesignTable{},
		Biomarker:   &BiomarkerTable{},
	}

	targets := []struct {
		file string
		into interface{}
	}{
		{CompanyFile, t.Company},
		{TrialDesignFile, t.TrialDesign},
		{BiomarkerFile, t.Biomarker},
	}

	for _, target := range targets {
		data, err := readTable(dir, target.file)
		if err != nil {
			return nil, err
		}
		if err := yaml.UnmarshalWithOptions(data, target.into, yaml.Strict()); err != nil {
			return nil, fmt.Errorf("failed to parse keyword table %s: %w", target.file, err)
		}
	}

	if err := t.compile(); err != nil {
		return nil, err
	}
	return t, nil
}

func readTable(dir, file string) ([]byte, error) {
	if dir != "" {
		path := filepath.Join(dir, file)
		data, err := os.ReadFile(path)
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read keyword table %s: %w", path, err)
		}
	}

	data, err := embeddedTables.ReadFile("tables/" + file)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded keyword table %s: %w", file, err)
	}
	return data, nil
}

func (t *Tables) compile() error {
	var err error
	if t.Company.patterns, err = compileAll(t.Company.DrugPatterns); err != nil {
		return fmt.Errorf("invalid company drug pattern: %w", err)
	}
	if t.Biomarker.patterns, err = compileAll(t.Biomarker.MoleculePatterns); err != nil {
		return fmt.Errorf("invalid biomarker molecule pattern: %w", err)
	}
	return nil
}

func compileAll(exprs []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", expr, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Marshal renders the effective tables as one YAML document.
func (t *Tables) Marshal() ([]byte, error) {
	return yaml.Marshal(t)
}
