package project

import "time"

type Project struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Admin   string    `json:"admin"`
	Origins []string  `json:"origins"`
	Active  bool      `json:"active"`
	Public  bool      `json:"public"`
	Created time.Time `json:"created"`
}

// IDs returns the ids of projects in order.
func IDs(projects []Project) []string {
	ids := make([]string, 0, len(projects))
	for _, p := range projects {
		ids = append(ids, p.ID)
	}
	return ids
}
