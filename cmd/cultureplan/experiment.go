package main

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"cultureplan/internal/conditions"
	"cultureplan/internal/core"
)

// experimentFile is the YAML document accepted by "plan". The catalog
// section seeds anything the experiment references that the store lacks.
type experimentFile struct {
	Name        string                  `yaml:"name"`
	Container   string                  `yaml:"container"`
	Catalog     catalogSeed             `yaml:"catalog"`
	Definitions []conditions.Definition `yaml:"definitions"`
	Controls    []conditions.Definition `yaml:"controls"`
}

type catalogSeed struct {
	Samples     []sampleSeed     `yaml:"samples"`
	ObjectTypes []objectTypeSeed `yaml:"object_types"`
	Items       []itemSeed       `yaml:"items"`
}

type sampleSeed struct {
	Name       string            `yaml:"name"`
	Type       string            `yaml:"type"`
	Properties map[string]string `yaml:"properties"`
}

type objectTypeSeed struct {
	Name    string            `yaml:"name"`
	Rows    int               `yaml:"rows"`
	Columns int               `yaml:"columns"`
	Data    map[string]string `yaml:"data"`
}

type itemSeed struct {
	Sample     string `yaml:"sample"`
	ObjectType string `yaml:"object_type"`
	Location   string `yaml:"location"`
}

func loadExperiment(path string) (experimentFile, error) {
	var exp experimentFile
	data, err := os.ReadFile(path)
	if err != nil {
		return exp, fmt.Errorf("read experiment: %w", err)
	}
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return exp, fmt.Errorf("parse experiment %s: %w", path, err)
	}
	if exp.Container == "" {
		return exp, fmt.Errorf("experiment %s names no container", path)
	}
	return exp, nil
}

func (e experimentFile) request() core.PlanRequest {
	return core.PlanRequest{Definitions: e.Definitions, Controls: e.Controls, ContainerType: e.Container}
}

// seed registers catalog entries that do not exist yet. Items are skipped
// when the sample already holds a live item of the same container type, so
// re-running an experiment against a persistent catalog is idempotent.
func seed(ctx context.Context, svc *core.Service, c catalogSeed) (int, error) {
	var (
		haveSample = map[string]bool{}
		haveType   = map[string]bool{}
		haveItem   = map[[2]string]bool{}
	)
	err := svc.Store().View(ctx, func(view core.TransactionView) error {
		for _, s := range view.ListSamples() {
			haveSample[s.Name] = true
		}
		types := map[string]string{}
		for _, ot := range view.ListObjectTypes() {
			haveType[ot.Name] = true
			types[ot.ID] = ot.Name
		}
		samples := map[string]string{}
		for _, s := range view.ListSamples() {
			samples[s.ID] = s.Name
		}
		for _, it := range view.ListItems() {
			if !it.Deleted() {
				haveItem[[2]string{samples[it.SampleID], types[it.ObjectTypeID]}] = true
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	added := 0
	for _, s := range c.Samples {
		if haveSample[s.Name] {
			continue
		}
		if _, _, err := svc.RegisterSample(ctx, core.Sample{Name: s.Name, SampleType: s.Type, Properties: s.Properties}); err != nil {
			return added, fmt.Errorf("sample %s: %w", s.Name, err)
		}
		haveSample[s.Name] = true
		added++
	}
	for _, ot := range c.ObjectTypes {
		if haveType[ot.Name] {
			continue
		}
		if _, _, err := svc.RegisterObjectType(ctx, core.ObjectType{Name: ot.Name, Rows: ot.Rows, Columns: ot.Columns, Data: ot.Data}); err != nil {
			return added, fmt.Errorf("object type %s: %w", ot.Name, err)
		}
		haveType[ot.Name] = true
		added++
	}
	for _, it := range c.Items {
		key := [2]string{it.Sample, it.ObjectType}
		if haveItem[key] {
			continue
		}
		if _, _, err := svc.RegisterItem(ctx, it.Sample, it.ObjectType, it.Location); err != nil {
			return added, fmt.Errorf("item %s in %s: %w", it.Sample, it.ObjectType, err)
		}
		haveItem[key] = true
		added++
	}
	return added, nil
}
