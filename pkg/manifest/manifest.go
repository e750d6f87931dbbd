// Package manifest reads the per-provider image manifests produced by
// the generation runs. Each provider directory holds
// manifests/run-*/manifest.csv; the newest run wins.
package manifest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Row is one generated image as recorded in manifest.csv.
type Row struct {
	Provider      string
	Model         string
	RunID         string
	CategoryID    string
	PromptID      string
	SeedLabel     int
	ImagePath     string
	PromptText    string
	HasText       bool
	ExpectedTexts string
	NoPeople      bool
	Status        string
	Width         int
	Height        int
	CompletedUTC  string
}

// Filter controls which manifest rows are kept.
type Filter struct {
	StatusOKOnly    bool
	Require1KSquare bool
}

// ReadLatest parses the newest run manifest under baseDir for the given
// provider. Rows failing the filter or pointing at a missing image file
// are dropped. A provider with no manifests yields an empty slice, not
// an error.
func ReadLatest(provider, baseDir string, filter Filter) ([]Row, error) {
	manDir := filepath.Join(baseDir, "manifests")
	entries, err := os.ReadDir(manDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read manifests dir for %s: %w", provider, err)
	}

	var runs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "run-") {
			runs = append(runs, e.Name())
		}
	}
	if len(runs) == 0 {
		return nil, nil
	}
	sort.Sort(sort.Reverse(sort.StringSlice(runs)))

	csvPath := filepath.Join(manDir, runs[0], "manifest.csv")
	f, err := os.Open(csvPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", csvPath, err)
	}
	defer func() { _ = f.Close() }()

	rows, err := parseCSV(provider, baseDir, f, filter)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", csvPath, err)
	}

	kept := rows[:0]
	for _, r := range rows {
		if _, err := os.Stat(r.ImagePath); err == nil {
			kept = append(kept, r)
		}
	}
	return kept, nil
}

func parseCSV(provider, baseDir string, r io.Reader, filter Filter) ([]Row, error) {
	rd := csv.NewReader(r)
	rd.FieldsPerRecord = -1

	header, err := rd.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	field := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return rec[i]
	}

	var rows []Row
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		status := field(rec, "status")
		if filter.StatusOKOnly && status != "ok" {
			continue
		}
		w := parseInt(field(rec, "full_w"))
		h := parseInt(field(rec, "full_h"))
		if filter.Require1KSquare && !(w == 1024 && h == 1024) {
			continue
		}

		rows = append(rows, Row{
			Provider:      provider,
			Model:         field(rec, "model"),
			RunID:         field(rec, "run_id"),
			CategoryID:    strings.TrimSpace(field(rec, "category_id")),
			PromptID:      strings.TrimSpace(field(rec, "prompt_id")),
			SeedLabel:     parseInt(field(rec, "seed")),
			ImagePath:     NormalizeImagePath(field(rec, "image_path"), baseDir),
			PromptText:    field(rec, "prompt_text"),
			HasText:       parseBool(field(rec, "has_text")),
			ExpectedTexts: field(rec, "expected_texts"),
			NoPeople:      parseBool(field(rec, "no_people")),
			Status:        status,
			Width:         w,
			Height:        h,
			CompletedUTC:  field(rec, "request_completed_utc"),
		})
	}
	return rows, nil
}

// NormalizeImagePath maps the (possibly foreign, possibly Windows)
// absolute paths recorded in manifests onto the local provider root.
// Rules, in order:
//   - a "/<provider>/" segment: take the subpath after it
//   - an "/images/" segment: take it and everything after
//   - a relative path: join to the provider root
//   - otherwise: basename under <root>/images
func NormalizeImagePath(raw, providerRoot string) string {
	s := strings.ReplaceAll(strings.TrimSpace(raw), `\`, "/")
	prov := strings.ToLower(filepath.Base(providerRoot))
	lower := strings.ToLower(s)

	if i := strings.Index(lower, "/"+prov+"/"); i != -1 {
		return filepath.Join(providerRoot, s[i+len(prov)+2:])
	}
	if i := strings.Index(lower, "/images/"); i != -1 {
		return filepath.Join(providerRoot, s[i+1:])
	}
	if !strings.HasPrefix(s, "/") {
		return filepath.Join(providerRoot, s)
	}
	return filepath.Join(providerRoot, "images", filepath.Base(s))
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "t", "yes", "y":
		return true
	}
	return false
}

func parseInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
