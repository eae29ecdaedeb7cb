package catalog

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type yamlCatalog struct {
	Pre        []row    `yaml:"pre_survey"`
	Post       []row    `yaml:"post_survey"`
	Objectives []string `yaml:"learning_objectives"`
}

// ReadYAML reads a catalog document with the same three tables as the
// workbook. Choice and objective cells stay semicolon-delimited.
func ReadYAML(r io.Reader) (*Catalog, error) {
	var doc yamlCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return build(doc.Pre, doc.Post, doc.Objectives)
}
