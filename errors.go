package featurebank

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoSources is returned when a build finds nothing to process.
	ErrNoSources = errors.New("featurebank: no source files")

	// ErrAllSourcesFailed is returned in lenient mode when every source
	// failed extraction and there is nothing left to aggregate.
	ErrAllSourcesFailed = errors.New("featurebank: all sources failed extraction")
)

// ExtractionError reports that one source's extraction failed. The failure
// is isolated to that source; siblings are unaffected.
//
// The underlying error can be accessed via errors.Unwrap.
type ExtractionError struct {
	Source string
	cause  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %q: %v", e.Source, e.cause)
}

func (e *ExtractionError) Unwrap() error { return e.cause }

// ShapeMismatchError reports that sources disagree on a feature's dtype or
// non-leading dimensions. It invalidates the layout plan, so it is raised
// before any aggregate dataset is allocated.
type ShapeMismatchError struct {
	Feature string
	Sources []string // offending sources, first holds the reference shape
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("feature %q: dtype/shape mismatch across sources %s",
		e.Feature, strings.Join(e.Sources, ", "))
}

// MissingFeatureError reports a feature present in some sources but absent
// from others. A ragged aggregate cannot be addressed by one layout per
// feature, so partial coverage fails the whole aggregation.
type MissingFeatureError struct {
	Feature string
	Sources []string // sources missing the feature
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("feature %q missing from sources %s",
		e.Feature, strings.Join(e.Sources, ", "))
}

// DuplicateFeatureError reports an attempt to add a feature that already
// exists in a per-source store opened in append mode. Concatenating
// same-named features belongs to aggregation, not to the runner.
//
// The underlying store error can be accessed via errors.Unwrap.
type DuplicateFeatureError struct {
	Feature string
	Path    string
	cause   error
}

func (e *DuplicateFeatureError) Error() string {
	return fmt.Sprintf("feature %q already exists in %q", e.Feature, e.Path)
}

func (e *DuplicateFeatureError) Unwrap() error { return e.cause }

// IntegrationError reports a failed scatter write for one (feature, source)
// pair. It carries the target row range so just that pair can be redone.
//
// The underlying error can be accessed via errors.Unwrap.
type IntegrationError struct {
	Feature string
	Source  string
	Start   uint64
	Stop    uint64
	cause   error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("scatter of feature %q from %q into rows [%d, %d) failed: %v",
		e.Feature, e.Source, e.Start, e.Stop, e.cause)
}

func (e *IntegrationError) Unwrap() error { return e.cause }

// buildError aggregates every individual failure of a run so the caller
// sees all of them, not just the first.
type buildError struct {
	errs []error
}

func (e *buildError) Error() string {
	if len(e.errs) == 1 {
		return e.errs[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d failures:", len(e.errs))
	for _, err := range e.errs {
		sb.WriteString("\n\t")
		sb.WriteString(err.Error())
	}
	return sb.String()
}

func (e *buildError) Unwrap() []error { return e.errs }

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &buildError{errs: errs}
	}
}
