// ABOUTME: In-memory scored index over a project corpus loaded from JSON.
// ABOUTME: Token-overlap ranking with optional category filtering.

package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
)

// Project is one corpus record as stored in the project JSON files.
type Project struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Skills      []string `json:"skills"`
	Notes       []string `json:"notes"`
	Type        string   `json:"type,omitempty"`
}

// indexed pairs a project with its prebuilt document text and token set.
type indexed struct {
	project Project
	text    string
	tokens  map[string]struct{}
}

// Index is an in-memory Retriever over a fixed project corpus.
type Index struct {
	docs   []indexed
	logger *slog.Logger
}

// Source names a corpus file and the default type tag applied to records that
// carry none.
type Source struct {
	Path        string
	DefaultType string
}

// NewIndex loads and indexes all sources. Missing files are skipped with a
// warning so a partial corpus still serves.
func NewIndex(sources []Source, logger *slog.Logger) (*Index, error) {
	if logger == nil {
		logger = slog.Default()
	}
	idx := &Index{logger: logger.With("component", "retrieval")}

	for _, src := range sources {
		projects, err := loadProjects(src.Path, src.DefaultType)
		if err != nil {
			if os.IsNotExist(err) {
				idx.logger.Warn("corpus file missing, skipping", "path", src.Path)
				continue
			}
			return nil, err
		}
		for _, p := range projects {
			text := renderDocument(p)
			idx.docs = append(idx.docs, indexed{
				project: p,
				text:    text,
				tokens:  tokenize(text),
			})
		}
	}

	idx.logger.Info("corpus indexed", "documents", len(idx.docs))
	return idx, nil
}

// Query ranks documents by token overlap with the query and returns the topK,
// optionally filtered by type.
func (idx *Index) Query(ctx context.Context, text string, topK int, category string) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryTokens := tokenize(text)
	type scored struct {
		doc   indexed
		score float64
	}

	var candidates []scored
	for _, d := range idx.docs {
		if category != "" && d.project.Type != category {
			continue
		}
		s := overlap(queryTokens, d.tokens)
		if s > 0 {
			candidates = append(candidates, scored{doc: d, score: s})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	out := make([]Document, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, Document{
			Text: c.doc.text,
			Metadata: map[string]string{
				"name":   c.doc.project.Name,
				"type":   c.doc.project.Type,
				"skills": strings.Join(c.doc.project.Skills, ", "),
			},
		})
	}
	return out, nil
}

// Projects returns the loaded corpus, optionally filtered by type. Used by
// the agent's selection sub-dialog to enumerate choices.
func (idx *Index) Projects(category string) []Project {
	var out []Project
	for _, d := range idx.docs {
		if category != "" && d.project.Type != category {
			continue
		}
		out = append(out, d.project)
	}
	return out
}

func loadProjects(path, defaultType string) ([]Project, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var projects []Project
	if err := json.Unmarshal(data, &projects); err != nil {
		return nil, fmt.Errorf("parsing corpus %s: %w", path, err)
	}
	for i := range projects {
		if projects[i].Type == "" {
			projects[i].Type = defaultType
		}
	}
	return projects, nil
}

// renderDocument flattens a project into the text form handed to retrieval
// consumers and prompt construction.
func renderDocument(p Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\n", p.Name)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	fmt.Fprintf(&b, "Skills: %s\n", strings.Join(p.Skills, ", "))
	if len(p.Notes) > 0 {
		b.WriteString("Notes:\n- ")
		b.WriteString(strings.Join(p.Notes, "\n- "))
	}
	return strings.TrimSpace(b.String())
}

func tokenize(text string) map[string]struct{} {
	tokens := make(map[string]struct{})
	for _, f := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if len(f) < 2 {
			continue
		}
		tokens[f] = struct{}{}
	}
	return tokens
}

// overlap scores how much of the query vocabulary a document covers.
func overlap(query, doc map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	var hits int
	for tok := range query {
		if _, ok := doc[tok]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
