package catalog

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/trezcool/campus/fs"
)

func testCatalog(t *testing.T) *Catalog {
	c, err := New([]StudyArea{
		{Slug: "eng", Name: "Engineering", Programs: []Program{
			{Slug: "soft", Name: "Software", Degree: DegreeBachelor, Modalities: []string{"online", "on-campus"}},
			{Slug: "data", Name: "Data", Degree: DegreeMaster, Modalities: []string{"online"}},
		}},
		{Slug: "biz", Name: "Business", Programs: []Program{
			{Slug: "mba", Name: "MBA", Degree: DegreeMaster, Modalities: []string{"blended"}},
		}},
	})
	require.NoError(t, err)
	return c
}

func TestNew_Duplicates(t *testing.T) {
	_, err := New([]StudyArea{{Slug: "a"}, {Slug: "a"}})
	assert.EqualError(t, err, `duplicate study area "a"`)

	_, err = New([]StudyArea{
		{Slug: "a", Programs: []Program{{Slug: "p"}}},
		{Slug: "b", Programs: []Program{{Slug: "p"}}},
	})
	assert.EqualError(t, err, `duplicate program "p"`)

	_, err = New([]StudyArea{{Name: "No slug"}})
	assert.Error(t, err)
}

func TestCatalog_Areas(t *testing.T) {
	c := testCatalog(t)
	areas := c.Areas()
	require.Len(t, areas, 2)
	assert.Equal(t, "biz", areas[0].Slug)
	assert.Equal(t, "eng", areas[1].Slug)
	assert.Nil(t, areas[0].Programs)
}

func TestCatalog_Programs(t *testing.T) {
	c := testCatalog(t)

	tests := []struct {
		name      string
		area      string
		filter    QueryFilter
		wantSlugs []string
		wantErr   error
	}{
		{name: "unknown area", area: "lol", wantErr: ErrAreaNotFound},
		{name: "all", area: "eng", wantSlugs: []string{"soft", "data"}},
		{name: "by degree", area: "eng", filter: QueryFilter{Degree: DegreeMaster}, wantSlugs: []string{"data"}},
		{name: "by modality", area: "eng", filter: QueryFilter{Modality: "on-campus"}, wantSlugs: []string{"soft"}},
		{name: "no match", area: "biz", filter: QueryFilter{Modality: "online"}, wantSlugs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			progs, err := c.Programs(tt.area, tt.filter)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			slugs := make([]string, 0, len(progs))
			for _, p := range progs {
				assert.Equal(t, tt.area, p.Area)
				slugs = append(slugs, p.Slug)
			}
			assert.Equal(t, tt.wantSlugs, slugs)
		})
	}
}

func TestCatalog_HasProgram(t *testing.T) {
	c := testCatalog(t)
	assert.True(t, c.HasProgram("eng", "soft"))
	assert.False(t, c.HasProgram("biz", "soft"))
	assert.False(t, c.HasProgram("eng", "lol"))

	p, err := c.Program("mba")
	require.NoError(t, err)
	assert.Equal(t, "biz", p.Area)

	_, err = c.Program("lol")
	assert.Equal(t, ErrProgramNotFound, err)
}

func TestLoad(t *testing.T) {
	t.Run("embedded catalog", func(t *testing.T) {
		c, err := Load(appfs.FS)
		require.NoError(t, err)
		assert.NotEmpty(t, c.Areas())
		assert.True(t, c.HasProgram("engineering", "software-engineering"))
	})

	t.Run("invalid yaml", func(t *testing.T) {
		fsys := fstest.MapFS{catalogPath: {Data: []byte("areas: [")}}
		_, err := Load(fsys)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(fstest.MapFS{})
		assert.Error(t, err)
	})
}
