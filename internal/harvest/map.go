// Package harvest maps resolved files to external harvesting commands or
// database loads, executes them in bounded slices, and coordinates
// compensating actions with storage on partial failure.
package harvest

import (
	"oceanworks.io/datapipe/internal/core"
)

// TriggerEvent is one invocation unit for one harvester: the files it
// claimed from a slice plus optional extra command-line parameters. Events
// are immutable once constructed.
type TriggerEvent struct {
	matchedFiles *core.PipelineFileCollection
	extraParams  string
}

// NewTriggerEvent returns an event over the given matched files.
func NewTriggerEvent(matchedFiles *core.PipelineFileCollection, extraParams string) *TriggerEvent {
	return &TriggerEvent{matchedFiles: matchedFiles, extraParams: extraParams}
}

// MatchedFiles returns the files claimed by this event.
func (e *TriggerEvent) MatchedFiles() *core.PipelineFileCollection { return e.matchedFiles }

// ExtraParams returns the extra command-line parameters, if any.
func (e *TriggerEvent) ExtraParams() string { return e.extraParams }

// HarvesterMap is an ordered mapping from harvester name to the sequence of
// TriggerEvents queued for it. Iteration follows harvester insertion order,
// then event insertion order within each harvester.
type HarvesterMap struct {
	names  []string
	events map[string][]*TriggerEvent
}

// NewHarvesterMap returns an empty map.
func NewHarvesterMap() *HarvesterMap {
	return &HarvesterMap{events: make(map[string][]*TriggerEvent)}
}

// AddEvent queues an event under the given harvester.
func (m *HarvesterMap) AddEvent(harvester string, event *TriggerEvent) {
	if _, ok := m.events[harvester]; !ok {
		m.names = append(m.names, harvester)
	}
	m.events[harvester] = append(m.events[harvester], event)
}

// Harvesters returns the harvester names in insertion order.
func (m *HarvesterMap) Harvesters() []string {
	out := make([]string, len(m.names))
	copy(out, m.names)
	return out
}

// Events returns the events queued for the given harvester, in order.
func (m *HarvesterMap) Events(harvester string) []*TriggerEvent {
	out := make([]*TriggerEvent, len(m.events[harvester]))
	copy(out, m.events[harvester])
	return out
}

// Len returns the total number of events across all harvesters.
func (m *HarvesterMap) Len() int {
	n := 0
	for _, events := range m.events {
		n += len(events)
	}
	return n
}

// AllEvents returns a flattened list of all events from all harvesters.
func (m *HarvesterMap) AllEvents() []*TriggerEvent {
	var out []*TriggerEvent
	for _, name := range m.names {
		out = append(out, m.events[name]...)
	}
	return out
}

// AllPipelineFiles returns a collection containing every file from every
// event, deduplicated by source path.
func (m *HarvesterMap) AllPipelineFiles() *core.PipelineFileCollection {
	all := core.MustNewPipelineFileCollection()
	for _, event := range m.AllEvents() {
		all.Update(event.MatchedFiles())
	}
	return all
}

// Merge appends the other map's events into this one. Merge is associative:
// the result holds the union of both maps' events per harvester key.
func (m *HarvesterMap) Merge(other *HarvesterMap) {
	for _, name := range other.names {
		for _, event := range other.events[name] {
			m.AddEvent(name, event)
		}
	}
}

// SetBoolAttribute sets a flag on every file in every event.
func (m *HarvesterMap) SetBoolAttribute(attr core.BoolAttribute, value bool) {
	m.AllPipelineFiles().SetBoolAttribute(attr, value)
}

// IsCollectionSuperset reports whether every file in the given collection
// appears in at least one event in this map.
func (m *HarvesterMap) IsCollectionSuperset(files *core.PipelineFileCollection) bool {
	return files.IsSubsetOf(m.AllPipelineFiles())
}

// validateHarvesterMapping fails when any file in the collection was not
// claimed by at least one event. Partial coverage is never silently
// accepted.
func validateHarvesterMapping(files *core.PipelineFileCollection, m *HarvesterMap) error {
	if m.IsCollectionSuperset(files) {
		return nil
	}
	unmapped := files.Difference(m.AllPipelineFiles())
	var paths []string
	for _, pf := range unmapped.Files() {
		paths = append(paths, pf.SrcPath())
	}
	return core.NewError(core.ErrUnmappedFiles, "no matching harvester(s) found for: %v", paths)
}
