package dsl

import (
	"sort"
	"strings"
)

// Flow is a named, reusable ordered list of steps.
type Flow struct {
	Name   string
	Source string // Where the flow was defined: FLOWS sheet, file path
	Steps  []Step
}

// TestCase is one row of the TestCases table.
type TestCase struct {
	ID          string
	Description string
	Execute     bool
	BeforeHook  string // Flow name, optional
	StepsSheet  string
	AfterHook   string // Flow name, optional
	Tags        []string
}

// Suite is everything a loader produced from one suite source.
type Suite struct {
	Source    string
	TestCases []TestCase
	Sheets    map[string][]Step
	Flows     map[string]*Flow
}

// TestCase returns the test case with the given id.
func (s *Suite) TestCase(id string) (TestCase, bool) {
	for _, tc := range s.TestCases {
		if tc.ID == id {
			return tc, true
		}
	}
	return TestCase{}, false
}

// TestCaseIDs returns the set of test case ids.
func (s *Suite) TestCaseIDs() map[string]bool {
	ids := make(map[string]bool, len(s.TestCases))
	for _, tc := range s.TestCases {
		ids[tc.ID] = true
	}
	return ids
}

// FlowNames returns flow names in sorted order.
func (s *Suite) FlowNames() []string {
	names := make([]string, 0, len(s.Flows))
	for name := range s.Flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SortBySeq orders steps by Seq, keeping source order for equal or
// missing sequence numbers.
func SortBySeq(steps []Step) {
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Seq < steps[j].Seq
	})
}

// ParseTags splits a comma-separated Tags cell.
func ParseTags(s string) []string {
	var tags []string
	for _, part := range strings.Split(s, ",") {
		if tag := strings.TrimSpace(part); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// ShouldInclude checks if a test case passes the tag and id filters.
func ShouldInclude(tc TestCase, ids, includeTags, excludeTags []string) bool {
	if len(ids) > 0 {
		found := false
		for _, id := range ids {
			if id == tc.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}

	if len(includeTags) > 0 {
		hasTag := false
		for _, tag := range tc.Tags {
			for _, include := range includeTags {
				if tag == include {
					hasTag = true
					break
				}
			}
		}
		if !hasTag {
			return false
		}
	}

	for _, tag := range tc.Tags {
		for _, exclude := range excludeTags {
			if tag == exclude {
				return false
			}
		}
	}

	return true
}
