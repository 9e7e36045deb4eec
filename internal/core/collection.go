package core

import (
	"regexp"
)

// PipelineFileCollection is an ordered sequence of PipelineFile, unique by
// source path. Ordering is insertion order and is preserved by filters and
// slicing, which slice-based harvesting relies on for reproducible runs.
type PipelineFileCollection struct {
	files []*PipelineFile
	index map[string]int
}

// NewPipelineFileCollection returns a collection seeded with the given files.
// Duplicate source paths are rejected.
func NewPipelineFileCollection(files ...*PipelineFile) (*PipelineFileCollection, error) {
	c := &PipelineFileCollection{index: make(map[string]int)}
	for _, f := range files {
		if err := c.Add(f); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// MustNewPipelineFileCollection is NewPipelineFileCollection which panics on
// duplicates, for statically known inputs.
func MustNewPipelineFileCollection(files ...*PipelineFile) *PipelineFileCollection {
	c, err := NewPipelineFileCollection(files...)
	if err != nil {
		panic(err)
	}
	return c
}

// Add appends a file to the collection. A member with the same source path
// already present is a duplicate error.
func (c *PipelineFileCollection) Add(f *PipelineFile) error {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	if _, exists := c.index[f.SrcPath()]; exists {
		return NewError(ErrDuplicatePipelineFile, "file '%s' already in collection", f.SrcPath())
	}
	c.index[f.SrcPath()] = len(c.files)
	c.files = append(c.files, f)
	return nil
}

// Update inserts every member of other, replacing existing members with the
// same source path instead of failing.
func (c *PipelineFileCollection) Update(other *PipelineFileCollection) {
	if c.index == nil {
		c.index = make(map[string]int)
	}
	for _, f := range other.files {
		if i, exists := c.index[f.SrcPath()]; exists {
			c.files[i] = f
			continue
		}
		c.index[f.SrcPath()] = len(c.files)
		c.files = append(c.files, f)
	}
}

// Len returns the number of members.
func (c *PipelineFileCollection) Len() int { return len(c.files) }

// Get returns the member at position i.
func (c *PipelineFileCollection) Get(i int) *PipelineFile { return c.files[i] }

// Files returns the members in insertion order. The returned slice is a copy;
// the members are shared.
func (c *PipelineFileCollection) Files() []*PipelineFile {
	out := make([]*PipelineFile, len(c.files))
	copy(out, c.files)
	return out
}

// Contains reports whether a member with the given source path is present.
func (c *PipelineFileCollection) Contains(srcPath string) bool {
	_, ok := c.index[srcPath]
	return ok
}

func (c *PipelineFileCollection) filter(keep func(*PipelineFile) bool) *PipelineFileCollection {
	out := &PipelineFileCollection{index: make(map[string]int)}
	for _, f := range c.files {
		if keep(f) {
			out.index[f.SrcPath()] = len(out.files)
			out.files = append(out.files, f)
		}
	}
	return out
}

// FilterByBoolAttribute returns the members for which the flag is set.
func (c *PipelineFileCollection) FilterByBoolAttribute(attr BoolAttribute) *PipelineFileCollection {
	return c.FilterByBoolAttributes(attr)
}

// FilterByBoolAttributes returns the members for which every given flag is set.
func (c *PipelineFileCollection) FilterByBoolAttributes(attrs ...BoolAttribute) *PipelineFileCollection {
	return c.filter(func(f *PipelineFile) bool {
		for _, a := range attrs {
			if !f.Bool(a) {
				return false
			}
		}
		return true
	})
}

// FilterByBoolAttributesAndNot returns the members for which attr is set and
// none of notAttrs are set.
func (c *PipelineFileCollection) FilterByBoolAttributesAndNot(attr BoolAttribute, notAttrs ...BoolAttribute) *PipelineFileCollection {
	return c.filter(func(f *PipelineFile) bool {
		if !f.Bool(attr) {
			return false
		}
		for _, a := range notAttrs {
			if f.Bool(a) {
				return false
			}
		}
		return true
	})
}

// FilterByCheckType returns the members with the given check type.
func (c *PipelineFileCollection) FilterByCheckType(ct CheckType) *PipelineFileCollection {
	return c.filter(func(f *PipelineFile) bool { return f.CheckType == ct })
}

// FilterByPublishType returns the members with the given publish type.
func (c *PipelineFileCollection) FilterByPublishType(pt PublishType) *PipelineFileCollection {
	return c.filter(func(f *PipelineFile) bool { return f.PublishType == pt })
}

// FilterByAttributeRegexes returns the members whose named string attribute
// matches at least one of the given patterns.
func (c *PipelineFileCollection) FilterByAttributeRegexes(attr StringAttribute, patterns ...string) (*PipelineFileCollection, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, re)
	}

	return c.filter(func(f *PipelineFile) bool {
		value := f.StringAttr(attr)
		for _, re := range compiled {
			if re.MatchString(value) {
				return true
			}
		}
		return false
	}), nil
}

// Difference returns the members of this collection not present in other.
func (c *PipelineFileCollection) Difference(other *PipelineFileCollection) *PipelineFileCollection {
	return c.filter(func(f *PipelineFile) bool { return !other.Contains(f.SrcPath()) })
}

// IsSubsetOf reports whether every member of this collection is present in other.
func (c *PipelineFileCollection) IsSubsetOf(other *PipelineFileCollection) bool {
	for _, f := range c.files {
		if !other.Contains(f.SrcPath()) {
			return false
		}
	}
	return true
}

// Union returns a new collection containing the members of both collections,
// with members of other replacing same-path members of this collection.
func (c *PipelineFileCollection) Union(other *PipelineFileCollection) *PipelineFileCollection {
	out := &PipelineFileCollection{index: make(map[string]int)}
	out.Update(c)
	out.Update(other)
	return out
}

// SetBoolAttribute sets the named flag on every member.
func (c *PipelineFileCollection) SetBoolAttribute(attr BoolAttribute, value bool) {
	for _, f := range c.files {
		f.SetBool(attr, value)
	}
}

// GetSlices partitions the collection into ordered slices of at most
// sliceSize members. The last slice may be shorter.
func (c *PipelineFileCollection) GetSlices(sliceSize int) []*PipelineFileCollection {
	if sliceSize < 1 {
		sliceSize = 1
	}

	var slices []*PipelineFileCollection
	for start := 0; start < len(c.files); start += sliceSize {
		end := start + sliceSize
		if end > len(c.files) {
			end = len(c.files)
		}

		s := &PipelineFileCollection{index: make(map[string]int)}
		for _, f := range c.files[start:end] {
			s.index[f.SrcPath()] = len(s.files)
			s.files = append(s.files, f)
		}
		slices = append(slices, s)
	}
	return slices
}

// AttributeList projects the named string attribute of every member, in order.
func (c *PipelineFileCollection) AttributeList(attr StringAttribute) []string {
	out := make([]string, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, f.StringAttr(attr))
	}
	return out
}

// NewCollectionFromRemote builds a PipelineFileCollection from files
// discovered in remote storage, typically to construct deletion candidates
// from a storage listing.
func NewCollectionFromRemote(remote *RemotePipelineFileCollection, areDeletions bool) (*PipelineFileCollection, error) {
	c := &PipelineFileCollection{index: make(map[string]int)}
	for _, rf := range remote.Files() {
		var pf *PipelineFile
		if areDeletions {
			pf = NewDeletionPipelineFile(rf.DestPath)
		} else {
			pf = NewPipelineFile(rf.DestPath)
			pf.DestPath = rf.DestPath
		}
		if err := c.Add(pf); err != nil {
			return nil, err
		}
	}
	return c, nil
}
