// Package catalog exposes the study areas and programs offered by the university.
package catalog

import (
	"io/fs"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

var (
	// errors
	ErrAreaNotFound    = errors.New("study area not found")
	ErrProgramNotFound = errors.New("program not found")

	catalogPath = "catalog/catalog.yaml"
)

// Degree levels
const (
	DegreeBachelor = "bachelor"
	DegreeMaster   = "master"
)

type (
	Program struct {
		Slug         string   `json:"slug" yaml:"slug"`
		Name         string   `json:"name" yaml:"name"`
		Area         string   `json:"area" yaml:"-"`
		Degree       string   `json:"degree" yaml:"degree"`
		Modalities   []string `json:"modalities" yaml:"modalities"`
		StartPeriods []string `json:"start_periods" yaml:"start_periods"`
	}

	StudyArea struct {
		Slug     string    `json:"slug" yaml:"slug"`
		Name     string    `json:"name" yaml:"name"`
		Programs []Program `json:"programs,omitempty" yaml:"programs"`
	}

	Catalog struct {
		areas    []StudyArea
		byArea   map[string]int
		programs map[string]Program
	}

	// QueryFilter narrows down the programs of a study area.
	QueryFilter struct {
		Degree   string `query:"degree"`
		Modality string `query:"modality"`
	}
)

// New indexes the given study areas. Program slugs must be unique across areas.
func New(areas []StudyArea) (*Catalog, error) {
	c := &Catalog{
		areas:    make([]StudyArea, 0, len(areas)),
		byArea:   make(map[string]int, len(areas)),
		programs: make(map[string]Program),
	}
	for _, area := range areas {
		if area.Slug == "" {
			return nil, errors.New("study area without slug")
		}
		if _, ok := c.byArea[area.Slug]; ok {
			return nil, errors.Errorf("duplicate study area %q", area.Slug)
		}
		for i := range area.Programs {
			prog := &area.Programs[i]
			prog.Area = area.Slug
			if _, ok := c.programs[prog.Slug]; ok {
				return nil, errors.Errorf("duplicate program %q", prog.Slug)
			}
			c.programs[prog.Slug] = *prog
		}
		c.byArea[area.Slug] = len(c.areas)
		c.areas = append(c.areas, area)
	}
	return c, nil
}

// Load reads the catalog document at catalog/catalog.yaml in fsys.
func Load(fsys fs.FS) (*Catalog, error) {
	data, err := fs.ReadFile(fsys, catalogPath)
	if err != nil {
		return nil, errors.Wrap(err, "reading catalog")
	}
	var doc struct {
		Areas []StudyArea `yaml:"areas"`
	}
	if err = yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "decoding catalog")
	}
	return New(doc.Areas)
}

// Areas returns the study areas without their programs, sorted by name.
func (c *Catalog) Areas() []StudyArea {
	areas := make([]StudyArea, 0, len(c.areas))
	for _, a := range c.areas {
		areas = append(areas, StudyArea{Slug: a.Slug, Name: a.Name})
	}
	sort.Slice(areas, func(i, j int) bool { return areas[i].Name < areas[j].Name })
	return areas
}

func (c *Catalog) Area(slug string) (StudyArea, error) {
	idx, ok := c.byArea[slug]
	if !ok {
		return StudyArea{}, ErrAreaNotFound
	}
	return c.areas[idx], nil
}

// Programs returns the programs of a study area matching filter.
func (c *Catalog) Programs(area string, filter QueryFilter) ([]Program, error) {
	a, err := c.Area(area)
	if err != nil {
		return nil, err
	}
	progs := make([]Program, 0, len(a.Programs))
	for _, p := range a.Programs {
		if filter.Degree != "" && p.Degree != filter.Degree {
			continue
		}
		if filter.Modality != "" && !contains(p.Modalities, filter.Modality) {
			continue
		}
		progs = append(progs, p)
	}
	return progs, nil
}

func (c *Catalog) Program(slug string) (Program, error) {
	p, ok := c.programs[slug]
	if !ok {
		return Program{}, ErrProgramNotFound
	}
	return p, nil
}

// HasProgram reports whether program belongs to the study area.
func (c *Catalog) HasProgram(area, program string) bool {
	p, ok := c.programs[program]
	return ok && p.Area == area
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
