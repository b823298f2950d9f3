package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wiretap/wiretap/internal/episode"
	"github.com/wiretap/wiretap/internal/framebuffer"
	"github.com/wiretap/wiretap/internal/uitree"
)

// ValidationResult is the validation outcome for a single episode
// directory.
type ValidationResult struct {
	Episode string   `json:"episode"`
	Valid   bool     `json:"valid"`
	Errors  []string `json:"errors"`
}

var validateFormatFlag string

var validateCmd = &cobra.Command{
	Use:   "validate [dataset-dir]...",
	Short: "Check recorded datasets for consistency",
	Long: `Validate checks every episode under one or more dataset roots
without modifying anything.

Per episode it verifies that metadata.json parses and its actions are
well formed, that the action journal (if present) parses, and that each
step's artifacts are consistent: the screenshot decodes as a PNG and
the DFS and BFS traversal documents parse, satisfy the id invariants,
and agree on the number of nodes. Steps whose artifacts are entirely
missing are accepted as capture gaps; partially written steps are not.

Exit code 0 if all episodes are valid, 1 otherwise.

Formats:
  text   Human-readable output to stderr (default)
  json   Structured JSON to stdout

Examples:
  wiretap validate
  wiretap validate /data/episodes
  wiretap validate --format json dataset other-dataset`,
	Args: cobra.ArbitraryArgs,
	RunE: runValidate,
}

func init() { //nolint:gochecknoinits
	validateCmd.Flags().StringVar(&validateFormatFlag, "format", "text",
		"Output format: text, json")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, args []string) error {
	format := strings.ToLower(validateFormatFlag)
	switch format {
	case "text", "json":
	default:
		return fmt.Errorf("invalid format %q: valid values are text, json", validateFormatFlag)
	}

	roots := args
	if len(roots) == 0 {
		roots = []string{"dataset"}
	}

	var results []ValidationResult
	hasErrors := false
	for _, root := range roots {
		dirs, err := episodeDirs(root)
		if err != nil {
			return err
		}
		for _, dir := range dirs {
			result := validateEpisode(dir)
			results = append(results, result)
			if !result.Valid {
				hasErrors = true
			}
		}
	}

	switch format {
	case "text":
		formatValidateText(results)
	case "json":
		if err := formatValidateJSON(results); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	}

	if hasErrors {
		os.Exit(1)
	}
	return nil
}

// episodeDirs lists the episode directories under root in index order.
func episodeDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset directory: %w", err)
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), "episode_") {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	sort.Slice(dirs, func(i, j int) bool {
		return episodeIndex(dirs[i]) < episodeIndex(dirs[j])
	})
	return dirs, nil
}

// episodeIndex extracts the numeric index from an episode directory
// name, or -1 when the suffix is not a number.
func episodeIndex(dir string) int {
	idx, err := strconv.Atoi(strings.TrimPrefix(filepath.Base(dir), "episode_"))
	if err != nil {
		return -1
	}
	return idx
}

// validateEpisode checks one episode directory and collects every
// problem found rather than stopping at the first.
func validateEpisode(dir string) ValidationResult {
	meta, err := episode.ReadMetadata(filepath.Join(dir, episode.MetadataFile))
	if err != nil {
		return ValidationResult{
			Episode: dir,
			Valid:   false,
			Errors:  []string{err.Error()},
		}
	}

	var errs []string
	if idx := episodeIndex(dir); idx >= 0 && meta.EpisodeID != idx {
		errs = append(errs, fmt.Sprintf("episode_id %d does not match directory index %d", meta.EpisodeID, idx))
	}
	for i, action := range meta.Actions {
		if err := action.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("action %d: %v", i, err))
		}
	}
	if len(meta.ScreenshotWidths) != len(meta.ScreenshotHeights) {
		errs = append(errs, fmt.Sprintf("screenshot dimension lists disagree: %d widths, %d heights",
			len(meta.ScreenshotWidths), len(meta.ScreenshotHeights)))
	}
	if len(meta.ScreenshotWidths) > len(meta.Actions) {
		errs = append(errs, fmt.Sprintf("more screenshot dimensions (%d) than actions (%d)",
			len(meta.ScreenshotWidths), len(meta.Actions)))
	}

	if _, err := episode.ReadJournal(filepath.Join(dir, episode.JournalFile)); err != nil {
		errs = append(errs, fmt.Sprintf("action journal: %v", err))
	}

	for step := range meta.Actions {
		errs = append(errs, validateStep(dir, step)...)
	}

	return ValidationResult{
		Episode: dir,
		Valid:   len(errs) == 0,
		Errors:  append([]string{}, errs...),
	}
}

// validateStep checks the artifact triple of one step. A step with no
// artifacts at all is a capture gap and passes.
func validateStep(dir string, step int) []string {
	shotPath := filepath.Join(dir, framebuffer.ScreenshotFile(step))
	dfsPath := filepath.Join(dir, framebuffer.TreeFile(step, uitree.TraversalDFS))
	bfsPath := filepath.Join(dir, framebuffer.TreeFile(step, uitree.TraversalBFS))

	present := 0
	for _, path := range []string{shotPath, dfsPath, bfsPath} {
		if _, err := os.Stat(path); err == nil {
			present++
		}
	}
	if present == 0 {
		return nil
	}
	if present < 3 {
		return []string{fmt.Sprintf("step %d: partial artifacts, %d of 3 files present", step, present)}
	}

	var errs []string
	shot, err := os.ReadFile(shotPath)
	if err != nil {
		errs = append(errs, fmt.Sprintf("step %d: %v", step, err))
	} else if _, err := png.DecodeConfig(bytes.NewReader(shot)); err != nil {
		errs = append(errs, fmt.Sprintf("step %d: screenshot is not a valid PNG: %v", step, err))
	}

	dfs := loadDocument(dfsPath, uitree.TraversalDFS, step, &errs)
	bfs := loadDocument(bfsPath, uitree.TraversalBFS, step, &errs)
	if dfs != nil && bfs != nil && dfs.NodeCount() != bfs.NodeCount() {
		errs = append(errs, fmt.Sprintf("step %d: traversal documents disagree, %d nodes in DFS vs %d in BFS",
			step, dfs.NodeCount(), bfs.NodeCount()))
	}
	return errs
}

// loadDocument parses and validates one traversal document, appending
// any problems to errs.
func loadDocument(path string, want uitree.Traversal, step int, errs *[]string) *uitree.Document {
	data, err := os.ReadFile(path)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("step %d: %v", step, err))
		return nil
	}
	doc, err := uitree.ParseDocument(string(data))
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("step %d: %s document: %v", step, want, err))
		return nil
	}
	if doc.Traversal != want {
		*errs = append(*errs, fmt.Sprintf("step %d: expected %s document, found %s", step, want, doc.Traversal))
		return nil
	}
	if err := doc.Validate(); err != nil {
		*errs = append(*errs, fmt.Sprintf("step %d: %s document: %v", step, want, err))
		return nil
	}
	return doc
}

// formatValidateText writes human-readable validation results to stderr.
func formatValidateText(results []ValidationResult) {
	if len(results) == 0 {
		fmt.Fprintln(os.Stderr, "no episodes found")
		return
	}

	validCount := 0
	for _, r := range results {
		if r.Valid {
			validCount++
			fmt.Fprintf(os.Stderr, "✓ %s: valid\n", r.Episode)
		} else {
			fmt.Fprintf(os.Stderr, "✗ %s:\n", r.Episode)
			for _, e := range r.Errors {
				fmt.Fprintf(os.Stderr, "  - %s\n", e)
			}
		}
	}

	if len(results) > 1 {
		fmt.Fprintf(os.Stderr, "\nResult: %d/%d episodes valid\n", validCount, len(results))
	}
}

// formatValidateJSON writes JSON-encoded validation results to stdout.
func formatValidateJSON(results []ValidationResult) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(results)
}
