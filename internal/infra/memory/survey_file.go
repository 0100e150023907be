package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"survey-service/internal/app"
	"survey-service/internal/domain"
)

type surveyFile struct {
	Surveys []domain.Survey `yaml:"surveys"`
}

// LoadSurveyFile reads survey definitions from a YAML file and runs the
// authoring checks on each of them. Skip logic may point at any survey in
// the file.
func LoadSurveyFile(path string) (*StaticSurveyLoader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read survey file: %w", err)
	}
	return ParseSurveys(raw)
}

// ParseSurveys decodes and prepares YAML survey definitions.
func ParseSurveys(raw []byte) (*StaticSurveyLoader, error) {
	var file surveyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse survey file: %w", err)
	}
	loader := NewStaticSurveyLoader(file.Surveys...)
	for i := range file.Surveys {
		survey := file.Surveys[i]
		if err := app.PrepareSurvey(&survey, loader.Lookup); err != nil {
			return nil, fmt.Errorf("survey %s: %w", survey.ID, err)
		}
		loader.Put(survey)
	}
	return loader, nil
}
