package source

import (
	"encoding/json"
	"fmt"

	embedfiles "github.com/vburojevic/qcdash"
	"github.com/vburojevic/qcdash/internal/domain"
)

// FallbackVersion is the fallback document version this build understands
const FallbackVersion = 1

// LoadFallback decodes a fallback document and checks its version. The
// analysis status is forced to the degraded label so fallback data is never
// mistaken for computed data.
func LoadFallback(data []byte) (*domain.AnalyticsDocument, error) {
	var doc domain.AnalyticsDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode fallback dataset: %w", err)
	}
	if doc.Version != FallbackVersion {
		return nil, fmt.Errorf("fallback dataset version %d not supported (want %d)", doc.Version, FallbackVersion)
	}
	doc.Overview.AnalysisStatus = domain.AnalysisDegraded
	return &doc, nil
}

// EmbeddedFallback returns the fallback dataset compiled into the binary
func EmbeddedFallback() (*domain.AnalyticsDocument, error) {
	return LoadFallback(embedfiles.FallbackJSON)
}
