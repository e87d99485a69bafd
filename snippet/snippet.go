// Package snippet defines the search-result record and the
// origin-tracking, deduplicating list that merges results across peers.
package snippet

import (
	"regexp"
	"strings"
)

// Origin identifies one peer that asserted a snippet, along with that
// peer's status and score at the time.
type Origin struct {
	PID    string  `json:"pid"`
	Status string  `json:"status,omitempty"`
	Score  *float64 `json:"score,omitempty"`
}

// Link is a (description, url) pair used for both direct and service links.
type Link struct {
	Description string `json:"description,omitempty" xml:"description,attr,omitempty"`
	URL         string `json:"url" xml:",chardata"`
}

// Attribute is an arbitrary key/value pair.
type Attribute struct {
	Key   string `json:"key" xml:"key,attr"`
	Value string `json:"value" xml:"value,attr"`
}

// Preview describes a renderable preview image or media item.
type Preview struct {
	MimeType string `json:"mimetype"`
	URL      string `json:"url"`
	Width    string `json:"width,omitempty"`
	Height   string `json:"height,omitempty"`
}

// Snippet is one search-result record.
type Snippet struct {
	Origins         []Origin    `json:"origins,omitempty"`
	Location        string      `json:"location,omitempty"`
	Title           string      `json:"title,omitempty"`
	Found           string      `json:"found,omitempty"`
	Summary         string      `json:"summary,omitempty"`
	ExtendedSummary string      `json:"extended_summary,omitempty"`
	Preview         *Preview    `json:"preview,omitempty"`
	Geolocation     string      `json:"geolocation,omitempty"`
	DirectLinks     []Link      `json:"direct_links,omitempty"`
	ServiceLinks    []Link      `json:"service_links,omitempty"`
	Attributes      []Attribute `json:"attributes,omitempty"`
}

var (
	wwwRe   = regexp.MustCompile(`^http://www\.`)
	indexRe = regexp.MustCompile(`index\.html?$`)
)

// Signature is the normalized dedup key for a snippet: its location
// with "http://www." collapsed to "http://" and a trailing
// "index.htm(l)?" dropped, or its title if it has no location.
func (s *Snippet) Signature() string {
	if s.Location == "" {
		return s.Title
	}
	if !strings.Contains(s.Location, "://") {
		return s.Location
	}
	loc := wwwRe.ReplaceAllString(s.Location, "http://")
	loc = indexRe.ReplaceAllString(loc, "")
	return loc
}

// Empty reports whether s carries no title and no location — i.e. it
// exists only as a carrier for origins that returned no results.
func (s *Snippet) Empty() bool {
	return s.Title == "" && s.Location == ""
}

// AddOrigin records that pid asserted this snippet with the given
// status/score, taking the max score and preferring the new status
// unless it would regress to TODO or is a no-op.
func (s *Snippet) AddOrigin(pid string, status string, score *float64) {
	for i, o := range s.Origins {
		if o.PID != pid {
			continue
		}
		changed := false
		if higherScore(score, o.Score) {
			changed = true
		} else {
			score = o.Score
		}
		if status != "" && status != "TODO" && status != o.Status {
			changed = true
		} else {
			status = o.Status
		}
		if changed {
			s.Origins[i] = Origin{PID: pid, Status: status, Score: score}
		}
		return
	}
	s.Origins = append(s.Origins, Origin{PID: pid, Status: status, Score: score})
}

// AddOrigins records every origin in others on s.
func (s *Snippet) AddOrigins(others []Origin) {
	for _, o := range others {
		s.AddOrigin(o.PID, o.Status, o.Score)
	}
}

func higherScore(a, b *float64) bool {
	if a == nil {
		return false
	}
	if b == nil {
		return true
	}
	return *a > *b
}
