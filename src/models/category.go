package models

// TaxonomyEntry is one fixed spending bucket with its canonical project name and aliases.
type TaxonomyEntry struct {
	Name    string   `json:"name"`
	Project string   `json:"project"`
	Aliases []string `json:"aliases,omitempty"`
}

// KeywordRule maps free-text category fields onto a bucket. Every group in Require must have at
// least one keyword present.
type KeywordRule struct {
	Bucket  string     `json:"bucket"`
	Require [][]string `json:"require"`
}

// Taxonomy is the injected, ordered category configuration.
type Taxonomy struct {
	Version      string          `json:"version"`
	Entries      []TaxonomyEntry `json:"entries"`
	KeywordRules []KeywordRule   `json:"keyword_rules"`
}

// CategoryMatchPhase names the rule that assigned a transaction to a bucket.
type CategoryMatchPhase string

const (
	MatchExact      CategoryMatchPhase = "project_exact"
	MatchNormalized CategoryMatchPhase = "project_normalized"
	MatchSubstring  CategoryMatchPhase = "project_substring"
	MatchKeyword    CategoryMatchPhase = "category_keyword"
	MatchNone       CategoryMatchPhase = "none"
)

// CategoryMatch is the outcome of mapping one transaction.
type CategoryMatch struct {
	Bucket string             `json:"bucket"`
	Phase  CategoryMatchPhase `json:"phase"`
	On     string             `json:"on,omitempty"` // taxonomy name or keyword that matched
}

// CategoryBucket accumulates mapped spend for one taxonomy entry.
type CategoryBucket struct {
	Name         string   `json:"name"`
	Aliases      []string `json:"aliases,omitempty"`
	Count        int      `json:"count"`
	TotalHBD     float64  `json:"total_hbd"`
	TotalHIVE    float64  `json:"total_hive"`
	TotalStable  float64  `json:"total_stable"` // HBD-equivalent
	ScaledHBD    float64  `json:"scaled_hbd"`
	ScaledHIVE   float64  `json:"scaled_hive"`
	ScaledStable float64  `json:"scaled_stable"`
}

// MappingResult is the naive per-bucket summation plus the excluded remainder.
type MappingResult struct {
	Buckets          []CategoryBucket `json:"buckets"`
	GrandTotal       float64          `json:"grand_total"`  // every transaction fed to the mapper
	MappedTotal      float64          `json:"mapped_total"` // sum of bucket TotalStable
	MappedCount      int              `json:"mapped_count"`
	ExcludedTotal    float64          `json:"excluded_total"`
	ExcludedCount    int              `json:"excluded_count"`
	ExcludedProjects []string         `json:"excluded_projects"`
}

// CategoryReport is the scaled mapping. CoverageRatio is always reported alongside the figures.
// ScaleFactor divides by GrandTotal, so ScaledTotal equals AuthoritativeTotal × CoverageRatio
// rather than AuthoritativeTotal.
type CategoryReport struct {
	Period             *Period          `json:"period,omitempty"`
	Buckets            []CategoryBucket `json:"buckets"`
	AuthoritativeTotal float64          `json:"authoritative_total"`
	GrandTotal         float64          `json:"grand_total"`
	MappedTotal        float64          `json:"mapped_total"`
	ExcludedTotal      float64          `json:"excluded_total"`
	ExcludedCount      int              `json:"excluded_count"`
	ExcludedProjects   []string         `json:"excluded_projects"`
	ScaleFactor        float64          `json:"scale_factor"` // authoritative_total / grand_total, not / mapped_total
	CoverageRatio      float64          `json:"coverage_ratio"`
	ScaledTotal        float64          `json:"scaled_total"`
	ProportionsAssumed bool             `json:"proportions_assumed"` // bucket shares come from an incomplete mapping
	TaxonomyVersion    string           `json:"taxonomy_version,omitempty"`
}
