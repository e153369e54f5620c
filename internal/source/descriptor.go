package source

import (
	"strings"

	"github.com/vburojevic/qcdash/internal/domain"
)

// Default source file names
const (
	CompleteDataFile = "complete-data.json"
	InternalFile     = "internal.json"
	ExternalFile     = "external.json"
	ProcessFile      = "process.json"
)

// Descriptor names one source in the resolution priority list. Raw
// descriptors carry the domain their records belong to; an empty Domain
// means records name their own domain.
type Descriptor struct {
	Name       string        `json:"name"`
	URL        string        `json:"url"`
	Aggregated bool          `json:"expectsAggregatedDocument"`
	Domain     domain.Domain `json:"domain,omitempty"`
}

// DefaultDescriptors returns the standard priority list: the complete
// document, then the three raw per-domain files
func DefaultDescriptors(baseURL string) []Descriptor {
	return []Descriptor{
		{Name: CompleteDataFile, URL: JoinURL(baseURL, CompleteDataFile), Aggregated: true},
		{Name: InternalFile, URL: JoinURL(baseURL, InternalFile), Domain: domain.DomainInternal},
		{Name: ExternalFile, URL: JoinURL(baseURL, ExternalFile), Domain: domain.DomainExternal},
		{Name: ProcessFile, URL: JoinURL(baseURL, ProcessFile), Domain: domain.DomainProcess},
	}
}

// JoinURL resolves name against base unless name is already absolute
func JoinURL(base, name string) string {
	if base == "" || strings.Contains(name, "://") || strings.HasPrefix(name, "/") {
		return name
	}
	return strings.TrimRight(base, "/") + "/" + name
}
