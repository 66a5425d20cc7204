package analysis

import "time"

// Skip reasons attached to files excluded from classification. A skipped
// file stays a valid resolution target; its own usage is simply unknown.
const (
	SkipParseError = "parse-error"
	SkipReadError  = "read-error"
	SkipTooLarge   = "too-large"
	SkipGenerated  = "generated"
	SkipBinary     = "binary"
)

// UnusedDependency is a declared dependency no parsed file imports.
type UnusedDependency struct {
	// Name is the package name as declared in the manifest.
	Name string `json:"name" yaml:"name"`

	// Version is the declared version range, verbatim.
	Version string `json:"version" yaml:"version"`

	// SizeBytes is the installed size under node_modules, 0 when the
	// package is not installed or its directory cannot be walked.
	SizeBytes int64 `json:"sizeBytes" yaml:"sizeBytes"`
}

// UnusedFile is a source file nothing references that references nothing.
type UnusedFile struct {
	// LastModified is the file's modification time.
	LastModified time.Time `json:"lastModifiedISO8601" yaml:"lastModifiedISO8601"`

	// Path is project-root relative, slash-separated.
	Path string `json:"path" yaml:"path"`

	// SizeBytes is the file's size.
	SizeBytes int64 `json:"sizeBytes" yaml:"sizeBytes"`
}

// SkippedFile is a discovered source file excluded from classification.
type SkippedFile struct {
	// Path is project-root relative, slash-separated.
	Path string `json:"path" yaml:"path"`

	// Reason is one of the Skip constants.
	Reason string `json:"reason" yaml:"reason"`

	// Detail carries the underlying error message, when one exists.
	Detail string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// Stats summarizes the work a single scan performed.
type Stats struct {
	// FileDurations holds per-file parse latencies for metrics export.
	FileDurations []time.Duration `json:"-" yaml:"-"`

	// FilesScanned counts files that contributed references, whether
	// parsed or served from the reference cache.
	FilesScanned int `json:"filesScanned" yaml:"filesScanned"`

	// FilesSkipped counts files excluded from classification.
	FilesSkipped int `json:"filesSkipped" yaml:"filesSkipped"`

	// ParseFailures counts skips caused by unparseable sources.
	ParseFailures int `json:"parseFailures" yaml:"parseFailures"`

	// DependenciesDeclared counts manifest entries across both sections.
	DependenciesDeclared int `json:"dependenciesDeclared" yaml:"dependenciesDeclared"`

	// BytesAnalyzed sums the sizes of all file contents read.
	BytesAnalyzed int64 `json:"bytesAnalyzed" yaml:"bytesAnalyzed"`

	// CacheHits and CacheMisses count reference-cache lookups.
	CacheHits   int64 `json:"cacheHits" yaml:"cacheHits"`
	CacheMisses int64 `json:"cacheMisses" yaml:"cacheMisses"`

	// Elapsed is the wall-clock scan duration.
	Elapsed time.Duration `json:"-" yaml:"-"`

	// ElapsedSeconds mirrors Elapsed for serialized output.
	ElapsedSeconds float64 `json:"elapsedSeconds" yaml:"elapsedSeconds"`
}

// Result is the outcome of one project analysis. Instances are built
// fresh per scan and never mutated afterwards.
type Result struct {
	// Project is the manifest's name field, empty when absent.
	Project string `json:"project,omitempty" yaml:"project,omitempty"`

	// Root is the absolute project root the scan ran against.
	Root string `json:"root" yaml:"root"`

	// UnusedDependencies lists declared dependencies never imported,
	// sorted by name.
	UnusedDependencies []UnusedDependency `json:"unusedDependencies" yaml:"unusedDependencies"`

	// UnusedFiles lists files never referenced that reference nothing,
	// sorted by path.
	UnusedFiles []UnusedFile `json:"unusedFiles" yaml:"unusedFiles"`

	// SkippedFiles lists files left unclassified, sorted by path.
	SkippedFiles []SkippedFile `json:"skippedFiles,omitempty" yaml:"skippedFiles,omitempty"`

	// Stats describes the scan itself.
	Stats Stats `json:"stats" yaml:"stats"`
}

// TotalUnusedBytes sums the sizes of everything the result flags.
func (r *Result) TotalUnusedBytes() int64 {
	var total int64

	for _, dep := range r.UnusedDependencies {
		total += dep.SizeBytes
	}

	for _, file := range r.UnusedFiles {
		total += file.SizeBytes
	}

	return total
}

// Clean reports whether the analysis found nothing to remove.
func (r *Result) Clean() bool {
	return len(r.UnusedDependencies) == 0 && len(r.UnusedFiles) == 0
}
