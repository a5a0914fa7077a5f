// Package mission parses the operator-side files of a run directory: the
// .rmf mission plan the vehicle executed and the instrument command file
// used to configure the profiler before deployment.
package mission

import (
	"bufio"
	"io"
	"os"
	"strings"
)

// Plan is a parsed run mission file. Sections appear in file order.
type Plan struct {
	// Locations are the [Location] sections: waypoints and transponders.
	Locations []Section
	// Objectives are the [Objective] sections: the mission legs.
	Objectives []Section
	// Other collects any section kind the planner writes that is neither.
	Other []Section
}

// Section is one INI section as ordered key/value pairs.
type Section struct {
	Kind string
	keys []string
	vals map[string]string
}

func newSection(kind string) *Section {
	return &Section{Kind: kind, vals: make(map[string]string)}
}

func (s *Section) set(key, val string) {
	if _, dup := s.vals[key]; !dup {
		s.keys = append(s.keys, key)
	}
	s.vals[key] = val
}

// Get returns a value by key.
func (s *Section) Get(key string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.vals[key]
	return v, ok
}

// Keys returns the keys in file order.
func (s *Section) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// ParsePlanFile reads and parses a .rmf mission file.
func ParsePlanFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParsePlan(f)
}

// ParsePlan reads an INI-style mission plan. Values carry a trailing
// planner checksum introduced by "#$!", which is stripped, as are plain
// "#" comments.
func ParsePlan(r io.Reader) (*Plan, error) {
	plan := &Plan{}
	var current *Section
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") {
			kind := strings.TrimSpace(strings.Trim(line, "[]"))
			current = newSection(kind)
			switch kind {
			case "Location":
				plan.Locations = append(plan.Locations, *current)
				current = &plan.Locations[len(plan.Locations)-1]
			case "Objective":
				plan.Objectives = append(plan.Objectives, *current)
				current = &plan.Objectives[len(plan.Objectives)-1]
			default:
				plan.Other = append(plan.Other, *current)
				current = &plan.Other[len(plan.Other)-1]
			}
			continue
		}
		if current == nil || !strings.Contains(line, "=") {
			continue
		}
		clean, _, _ := strings.Cut(line, "#$!")
		clean, _, _ = strings.Cut(clean, "#")
		key, val, found := strings.Cut(strings.TrimSpace(clean), "=")
		if !found {
			continue
		}
		current.set(strings.TrimSpace(key), strings.TrimSpace(val))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return plan, nil
}

// Command is one instrument configuration command.
type Command struct {
	Code    string
	Value   string
	Comment string
}

// ParseCommandsFile reads and parses an instrument command file.
func ParseCommandsFile(path string) ([]Command, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseCommands(f)
}

// ParseCommands parses the deployment command file: one command per
// line, either CODE=value or a letter code run directly into its digits
// (WV250), with "#" comments.
func ParseCommands(r io.Reader) ([]Command, error) {
	var out []Command
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		body, comment, _ := strings.Cut(line, "#")
		body = strings.TrimSpace(body)
		comment = strings.TrimSpace(comment)
		if body == "" {
			continue
		}
		if code, val, found := strings.Cut(body, "="); found {
			out = append(out, Command{
				Code:    strings.TrimSpace(code),
				Value:   strings.TrimSpace(val),
				Comment: comment,
			})
			continue
		}
		for i, ch := range body {
			if (ch >= '0' && ch <= '9') || ch == '-' {
				out = append(out, Command{
					Code:    body[:i],
					Value:   body[i:],
					Comment: comment,
				})
				break
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
