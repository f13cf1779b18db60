package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// DirectoryCoach is a coach the landing page offers for a chat handoff.
type DirectoryCoach struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
	UID  string `json:"uid"`
}

// CoachDirectory maps public coach ids to chat uids.
type CoachDirectory struct {
	coaches map[int]DirectoryCoach
}

func DefaultCoachDirectory() *CoachDirectory {
	return newCoachDirectory([]DirectoryCoach{
		{ID: 1, Name: "Priya Sharma", UID: "coach-priya-sharma"},
		{ID: 2, Name: "Arjun Mehta", UID: "coach-arjun-mehta"},
		{ID: 3, Name: "Shivu Agarwal", UID: "coach-shivu-agarwal"},
	})
}

func newCoachDirectory(entries []DirectoryCoach) *CoachDirectory {
	d := &CoachDirectory{coaches: make(map[int]DirectoryCoach, len(entries))}
	for _, e := range entries {
		d.coaches[e.ID] = e
	}
	return d
}

// ParseCoachDirectory reads "id:uid:name,id:uid:name". An empty string
// yields the default directory.
func ParseCoachDirectory(raw string) (*CoachDirectory, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultCoachDirectory(), nil
	}

	var entries []DirectoryCoach
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.SplitN(item, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("coach directory entry %q: want id:uid:name", item)
		}
		id, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("coach directory entry %q: bad id", item)
		}
		uid, name := strings.TrimSpace(parts[1]), strings.TrimSpace(parts[2])
		if uid == "" || name == "" {
			return nil, fmt.Errorf("coach directory entry %q: uid and name are required", item)
		}
		entries = append(entries, DirectoryCoach{ID: id, UID: uid, Name: name})
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("coach directory %q has no entries", raw)
	}
	return newCoachDirectory(entries), nil
}

func (d *CoachDirectory) Lookup(id int) (DirectoryCoach, bool) {
	c, ok := d.coaches[id]
	return c, ok
}

// List returns all coaches ordered by id.
func (d *CoachDirectory) List() []DirectoryCoach {
	out := make([]DirectoryCoach, 0, len(d.coaches))
	for _, c := range d.coaches {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
