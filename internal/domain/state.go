package domain

import (
	"encoding/json"
	"time"
)

// SourceBatch is the record array fetched from one raw source. Domain is
// empty when the source carries records from several domains. Rejected
// holds array elements that did not decode as records.
type SourceBatch struct {
	Source   string                `json:"source"`
	Domain   Domain                `json:"domain,omitempty"`
	Records  []RawRecord           `json:"records"`
	Rejected []*InvalidRecordError `json:"-"`
}

// FileStatus is the outcome of resolving one source descriptor
type FileStatus struct {
	Name      string `json:"name"`
	Attempted bool   `json:"attempted"`
	Succeeded bool   `json:"succeeded"`
	Attempts  int    `json:"attempts"`
	Error     string `json:"errorMessage,omitempty"`
}

// FileStatuses keeps per-source outcomes in attempt order. It encodes as a
// JSON object keyed by source name.
type FileStatuses []FileStatus

// Get returns the status recorded for name
func (fs FileStatuses) Get(name string) (FileStatus, bool) {
	for _, s := range fs {
		if s.Name == name {
			return s, true
		}
	}
	return FileStatus{}, false
}

// Map returns the statuses keyed by source name
func (fs FileStatuses) Map() map[string]FileStatus {
	m := make(map[string]FileStatus, len(fs))
	for _, s := range fs {
		m[s.Name] = s
	}
	return m
}

func (fs FileStatuses) MarshalJSON() ([]byte, error) {
	return json.Marshal(fs.Map())
}

// Failed counts the attempted sources that did not succeed
func (fs FileStatuses) Failed() int {
	n := 0
	for _, s := range fs {
		if s.Attempted && !s.Succeeded {
			n++
		}
	}
	return n
}

// LoadState is one immutable snapshot of the pipeline output
type LoadState struct {
	CycleID     string             `json:"cycleId,omitempty"`
	IsLoading   bool               `json:"isLoading"`
	Error       *string            `json:"error"`
	Data        *AnalyticsDocument `json:"data"`
	LastUpdated *time.Time         `json:"lastUpdated"`
	FileStatus  FileStatuses       `json:"fileStatus"`
	Degraded    bool               `json:"degraded"`
	Source      string             `json:"source,omitempty"`
}

// NewLoadingState returns the initial state of a load cycle
func NewLoadingState(cycleID string) LoadState {
	return LoadState{CycleID: cycleID, IsLoading: true, FileStatus: FileStatuses{}}
}

// ErrorMessage returns the error string or "" when there is none
func (s LoadState) ErrorMessage() string {
	if s.Error == nil {
		return ""
	}
	return *s.Error
}

// Done reports whether the state is terminal
func (s LoadState) Done() bool {
	return !s.IsLoading
}
