// src/processors/category_mapper.go
package processors

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/hivefund/reconciler/src/logger"
	"github.com/hivefund/reconciler/src/models"
)

// minContainmentLength keeps very short labels from matching everything by containment.
const minContainmentLength = 3

// editionYearRe matches a standalone edition year ("Hive Fest 2025").
var editionYearRe = regexp.MustCompile(`\b(19|20)\d{2}\b`)

// categoryMapperImpl implements CategoryMapper.
type categoryMapperImpl struct{}

// NewCategoryMapper creates a new instance of CategoryMapper.
func NewCategoryMapper() CategoryMapper {
	return &categoryMapperImpl{}
}

// NormalizeLabel lower-cases a label, drops standalone edition years and strips every
// non-alphanumeric character.
func NormalizeLabel(s string) string {
	s = editionYearRe.ReplaceAllString(strings.ToLower(s), " ")
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// MapToCategory returns the taxonomy entry for tx, or false when the transaction is excluded.
func (m *categoryMapperImpl) MapToCategory(tx models.Transaction, taxonomy models.Taxonomy) (string, bool) {
	match := m.Classify(tx, taxonomy)
	if match.Phase == models.MatchNone {
		return "", false
	}
	return match.Bucket, true
}

// Classify runs the two phases and reports which rule hit first.
func (m *categoryMapperImpl) Classify(tx models.Transaction, taxonomy models.Taxonomy) models.CategoryMatch {
	if project := strings.TrimSpace(tx.Project); project != "" {
		if match, ok := matchProject(project, taxonomy.Entries); ok {
			return match
		}
	}
	if match, ok := matchKeywords(tx.Category, taxonomy); ok {
		return match
	}
	return models.CategoryMatch{Phase: models.MatchNone}
}

type projectName struct {
	entry string
	name  string
	norm  string
}

func projectNames(entries []models.TaxonomyEntry) []projectName {
	var names []projectName
	for _, e := range entries {
		canonical := e.Project
		if canonical == "" {
			canonical = e.Name
		}
		for _, n := range append([]string{canonical}, e.Aliases...) {
			if strings.TrimSpace(n) == "" {
				continue
			}
			names = append(names, projectName{entry: e.Name, name: n, norm: NormalizeLabel(n)})
		}
	}
	return names
}

// matchProject tries each step across every entry before moving to the next, looser step.
func matchProject(label string, entries []models.TaxonomyEntry) (models.CategoryMatch, bool) {
	names := projectNames(entries)

	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n.name), label) {
			return models.CategoryMatch{Bucket: n.entry, Phase: models.MatchExact, On: n.name}, true
		}
	}

	norm := NormalizeLabel(label)
	if norm == "" {
		return models.CategoryMatch{}, false
	}
	for _, n := range names {
		if n.norm == norm {
			return models.CategoryMatch{Bucket: n.entry, Phase: models.MatchNormalized, On: n.name}, true
		}
	}

	if len(norm) < minContainmentLength {
		return models.CategoryMatch{}, false
	}
	for _, n := range names {
		if len(n.norm) < minContainmentLength {
			continue
		}
		if strings.Contains(norm, n.norm) || strings.Contains(n.norm, norm) {
			return models.CategoryMatch{Bucket: n.entry, Phase: models.MatchSubstring, On: n.name}, true
		}
	}
	return models.CategoryMatch{}, false
}

// matchKeywords applies the ordered keyword rules to the free-text category field.
func matchKeywords(category string, taxonomy models.Taxonomy) (models.CategoryMatch, bool) {
	text := strings.ToLower(strings.TrimSpace(category))
	if text == "" {
		return models.CategoryMatch{}, false
	}
	for _, rule := range taxonomy.KeywordRules {
		bucket, ok := entryName(taxonomy.Entries, rule.Bucket)
		if !ok || len(rule.Require) == 0 {
			continue
		}
		hit := ""
		satisfied := true
		for _, group := range rule.Require {
			found := ""
			for _, kw := range group {
				kw = strings.ToLower(strings.TrimSpace(kw))
				if kw != "" && strings.Contains(text, kw) {
					found = kw
					break
				}
			}
			if found == "" {
				satisfied = false
				break
			}
			if hit == "" {
				hit = found
			}
		}
		if satisfied {
			return models.CategoryMatch{Bucket: bucket, Phase: models.MatchKeyword, On: hit}, true
		}
	}
	return models.CategoryMatch{}, false
}

func entryName(entries []models.TaxonomyEntry, name string) (string, bool) {
	for _, e := range entries {
		if strings.EqualFold(e.Name, name) {
			return e.Name, true
		}
	}
	return "", false
}

// MapTransactions sums mapped spend per bucket in taxonomy order. Unmapped spend is excluded,
// never defaulted, and its stable-equivalent total is reported.
func (m *categoryMapperImpl) MapTransactions(txs []models.Transaction, taxonomy models.Taxonomy) models.MappingResult {
	result := models.MappingResult{
		Buckets:          make([]models.CategoryBucket, len(taxonomy.Entries)),
		ExcludedProjects: []string{},
	}
	index := make(map[string]int, len(taxonomy.Entries))
	for i, e := range taxonomy.Entries {
		result.Buckets[i] = models.CategoryBucket{Name: e.Name, Aliases: e.Aliases}
		index[e.Name] = i
	}

	excludedLabels := make(map[string]bool)
	for _, tx := range txs {
		result.GrandTotal += tx.TotalSpend
		name, ok := m.MapToCategory(tx, taxonomy)
		if !ok {
			result.ExcludedTotal += tx.TotalSpend
			result.ExcludedCount++
			label := strings.TrimSpace(tx.Project)
			if label == "" {
				label = strings.TrimSpace(tx.Category)
			}
			if label == "" {
				label = "(unlabeled)"
			}
			excludedLabels[label] = true
			continue
		}
		b := &result.Buckets[index[name]]
		b.Count++
		b.TotalHBD += tx.AmountHBD
		b.TotalHIVE += tx.AmountHIVE
		b.TotalStable += tx.TotalSpend
		result.MappedCount++
	}

	for _, b := range result.Buckets {
		result.MappedTotal += b.TotalStable
	}
	for label := range excludedLabels {
		result.ExcludedProjects = append(result.ExcludedProjects, label)
	}
	sort.Strings(result.ExcludedProjects)

	if result.ExcludedCount > 0 {
		logger.L.Info("Transactions excluded from category mapping",
			"event", "category.excluded",
			"count", result.ExcludedCount,
			"excludedTotal", result.ExcludedTotal,
			"grandTotal", result.GrandTotal,
			"labels", len(result.ExcludedProjects))
	}
	return result
}
