package core

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeCollection(t *testing.T, paths ...string) *PipelineFileCollection {
	t.Helper()
	c, err := NewPipelineFileCollection()
	require.NoError(t, err)
	for _, p := range paths {
		require.NoError(t, c.Add(NewPipelineFile(p)))
	}
	return c
}

func TestPipelineFileCollection_AddDuplicate(t *testing.T) {
	c := makeCollection(t, "/tmp/a.nc")

	err := c.Add(NewPipelineFile("/tmp/a.nc"))
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicatePipelineFile))
	assert.True(t, errors.Is(err, ErrSystem))
	assert.Equal(t, 1, c.Len())
}

func TestPipelineFileCollection_OrderPreserved(t *testing.T) {
	c := makeCollection(t, "/tmp/c.nc", "/tmp/a.nc", "/tmp/b.nc")

	var paths []string
	for _, pf := range c.Files() {
		paths = append(paths, pf.SrcPath())
	}
	assert.Equal(t, []string{"/tmp/c.nc", "/tmp/a.nc", "/tmp/b.nc"}, paths)

	// filters preserve insertion order
	c.Get(0).SetBool(AttrShouldStore, true)
	c.Get(2).SetBool(AttrShouldStore, true)
	filtered := c.FilterByBoolAttribute(AttrShouldStore)
	assert.Equal(t, 2, filtered.Len())
	assert.Equal(t, "/tmp/c.nc", filtered.Get(0).SrcPath())
	assert.Equal(t, "/tmp/b.nc", filtered.Get(1).SrcPath())
}

func TestPipelineFileCollection_FilterByBoolAttributesAndNot(t *testing.T) {
	c := makeCollection(t, "/tmp/a.nc", "/tmp/b.nc", "/tmp/c.nc")
	for _, pf := range c.Files() {
		pf.SetBool(AttrShouldStore, true)
	}
	c.Get(1).SetBool(AttrIsDeletion, true)

	filtered := c.FilterByBoolAttributesAndNot(AttrShouldStore, AttrIsDeletion)
	assert.Equal(t, 2, filtered.Len())
	assert.False(t, filtered.Contains("/tmp/b.nc"))
}

func TestPipelineFileCollection_FilterByAttributeRegexes(t *testing.T) {
	c := makeCollection(t, "/tmp/a.nc", "/tmp/b.csv", "/tmp/c.nc")
	c.Get(0).DestPath = "archive/2024/a.nc"
	c.Get(1).DestPath = "archive/2024/b.csv"
	c.Get(2).DestPath = "other/c.nc"

	matched, err := c.FilterByAttributeRegexes(AttrDestPath, `^archive/.*\.nc$`)
	require.NoError(t, err)
	assert.Equal(t, 1, matched.Len())
	assert.Equal(t, "archive/2024/a.nc", matched.Get(0).DestPath)

	// multiple patterns union
	matched, err = c.FilterByAttributeRegexes(AttrDestPath, `^archive/`, `^other/`)
	require.NoError(t, err)
	assert.Equal(t, 3, matched.Len())

	_, err = c.FilterByAttributeRegexes(AttrDestPath, `([`)
	assert.Error(t, err)
}

func TestPipelineFileCollection_GetSlices(t *testing.T) {
	c := makeCollection(t, "/tmp/1.nc", "/tmp/2.nc", "/tmp/3.nc", "/tmp/4.nc", "/tmp/5.nc")

	slices := c.GetSlices(2)
	require.Len(t, slices, 3)
	assert.Equal(t, 2, slices[0].Len())
	assert.Equal(t, 2, slices[1].Len())
	assert.Equal(t, 1, slices[2].Len())

	// order preserved across slices
	assert.Equal(t, "/tmp/1.nc", slices[0].Get(0).SrcPath())
	assert.Equal(t, "/tmp/5.nc", slices[2].Get(0).SrcPath())
}

func TestPipelineFileCollection_SetOperations(t *testing.T) {
	a := makeCollection(t, "/tmp/1.nc", "/tmp/2.nc")
	b := makeCollection(t, "/tmp/2.nc", "/tmp/3.nc")

	diff := a.Difference(b)
	assert.Equal(t, 1, diff.Len())
	assert.Equal(t, "/tmp/1.nc", diff.Get(0).SrcPath())

	union := a.Union(b)
	assert.Equal(t, 3, union.Len())

	assert.False(t, a.IsSubsetOf(b))
	assert.True(t, a.IsSubsetOf(union))
	assert.True(t, b.IsSubsetOf(union))
}

func TestPipelineFileCollection_SetBoolAttribute(t *testing.T) {
	c := makeCollection(t, "/tmp/1.nc", "/tmp/2.nc")
	c.SetBoolAttribute(AttrIsHarvested, true)

	for _, pf := range c.Files() {
		assert.True(t, pf.IsHarvested)
	}
}

func TestNewCollectionFromRemote(t *testing.T) {
	remote := NewRemotePipelineFileCollection(
		NewRemotePipelineFile("archive/a.nc", time.Now(), 42),
		NewRemotePipelineFile("archive/b.nc", time.Now(), 7),
	)

	c, err := NewCollectionFromRemote(remote, true)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())
	for _, pf := range c.Files() {
		assert.True(t, pf.IsDeletion)
		assert.NotEmpty(t, pf.DestPath)
	}
}
