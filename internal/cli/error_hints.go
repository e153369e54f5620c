package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/vburojevic/qcdash/internal/domain"
)

func hintForConfig(err error) string {
	if err == nil {
		return ""
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return "Check the --config path; `qcdash config path` shows the file that would be loaded"
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "fallback policy"):
		return "Use one of: visible, silent, disabled"
	case strings.Contains(msg, "duration"):
		return "Durations use Go syntax, e.g. 500ms, 30s, 5m"
	case strings.Contains(msg, "domain"):
		return "Domains are Internal, External or Process"
	}
	return "Run `qcdash config generate` for an annotated sample"
}

func hintForLoad(state domain.LoadState) string {
	if state.Data != nil && !state.Degraded {
		return ""
	}
	if len(state.FileStatus) == 0 {
		return ""
	}

	notFound := true
	for _, fs := range state.FileStatus {
		if fs.Succeeded {
			continue
		}
		e := strings.ToLower(fs.Error)
		if !strings.Contains(e, "404") && !strings.Contains(e, "no such file") {
			notFound = false
		}
	}
	if notFound {
		return "No source file was found; check base_url or the sources list (`qcdash sources`)"
	}
	if state.Data == nil {
		return "Sources are unreachable and the fallback is disabled; set fallback.policy to visible to serve fallback data"
	}
	return "Sources are unreachable or malformed; run with --verbose to see each attempt"
}

func hintForTransform(err error) string {
	if err == nil {
		return ""
	}

	var empty *domain.EmptyDatasetError
	if errors.As(err, &empty) {
		return "No record passed validation and filtering; use --fill-defaults or relax --where"
	}

	var malformed *domain.MalformedPayloadError
	if errors.As(err, &malformed) {
		return "Files must hold a JSON array of records or an object with a records array"
	}
	return ""
}
