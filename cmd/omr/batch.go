package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ironsheep/omr-reader/internal/classify"
	"github.com/ironsheep/omr-reader/internal/omr"
	"github.com/ironsheep/omr-reader/internal/pipeline"
	"github.com/ironsheep/omr-reader/internal/scoring"
)

var (
	batchLayout  layoutFlags
	batchWorkers int
	batchKeyFile string
	batchExamID  string
	batchScoring string
	batchOutput  string
	batchSave    bool
)

// sheetExtensions are the image types read from a batch folder.
var sheetExtensions = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true,
	".bmp": true, ".tif": true, ".tiff": true, ".webp": true,
}

// sheetResult is the outcome for one sheet of a batch.
type sheetResult struct {
	Source         string                   `json:"source"`
	StudentAnswers []omr.StudentAnswerEntry `json:"studentAnswers,omitempty"`
	Evaluation     *scoring.Evaluation      `json:"evaluation,omitempty"`
	ResultID       string                   `json:"resultId,omitempty"`
	Error          string                   `json:"error,omitempty"`
}

var batchCmd = &cobra.Command{
	Use:   "batch <folder>",
	Short: "Read every student sheet in a folder with a pool of pipelines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if batchWorkers < 1 {
			return fmt.Errorf("--workers must be at least 1, got %d", batchWorkers)
		}
		if batchSave && (DB == nil || batchExamID == "") {
			return fmt.Errorf("--save needs --exam and a database (use --store or --db)")
		}

		files, err := listSheets(args[0])
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no sheet images in %s", args[0])
		}

		cfg, err := pipelineConfig(opts)
		if err != nil {
			return err
		}

		// One classifier serves every worker; the layout is fixed once so
		// every worker reads the same grid.
		shared := pipeline.New(cfg)
		defer shared.Close()
		if w := shared.Warning(); w != nil {
			log.Printf("Warning: %v", w)
		}
		centers, err := batchLayout.resolve(ctx, shared)
		if err != nil {
			return err
		}

		key, err := loadKey(ctx, batchKeyFile, batchExamID)
		if err != nil {
			return fmt.Errorf("failed to load answer key: %w", err)
		}
		scheme, err := loadScoring(batchScoring)
		if err != nil {
			return err
		}

		results := runBatch(ctx, cfg, shared.Classifier(), files, centers, key, scheme, batchWorkers)
		failed := 0
		for _, r := range results {
			if r.Error != "" {
				failed++
			}
		}
		fmt.Fprintf(os.Stderr, "\nRead %d sheets, %d failed.\n", len(results)-failed, failed)

		if err := writeJSON(batchOutput, results); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return nil
	},
}

func init() {
	batchLayout.register(batchCmd)
	f := batchCmd.Flags()
	f.IntVarP(&batchWorkers, "workers", "w", 4, "Number of parallel pipelines")
	f.Float64VarP(&opts.Threshold, "threshold", "t", opts.Threshold, "Minimum confidence for a bubble to count as selected")
	f.StringVarP(&batchKeyFile, "key", "k", "", "Answer key JSON file to grade against")
	f.StringVar(&batchExamID, "exam", "", "Exam id for a stored key and saved results")
	f.StringVar(&batchScoring, "scoring", "", "Marking scheme JSON file")
	f.StringVarP(&batchOutput, "output", "o", "", "Write the results here instead of stdout")
	f.BoolVar(&batchSave, "save", false, "Store every result under --exam")
	rootCmd.AddCommand(batchCmd)
}

// listSheets returns the image files directly inside dir, sorted by name.
func listSheets(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !sheetExtensions[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// runBatch reads files with n workers sharing classifier c. Results keep
// the order of files; cancelled sheets are reported as errors.
func runBatch(ctx context.Context, cfg pipeline.Config, c *classify.Classifier, files []string, centers omr.BubbleCenterMap, key []omr.AnswerKeyEntry, scheme scoring.Config, n int) []sheetResult {
	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Reading sheets"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
	)

	results := make([]sheetResult, len(files))
	tasks := make(chan int, n)
	var wg sync.WaitGroup

	for w := 0; w < n; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p := pipeline.NewWithClassifier(cfg, c)
			for i := range tasks {
				results[i] = readSheet(ctx, p, files[i], centers, key, scheme)
				bar.Add(1)
			}
		}()
	}

	for i := range files {
		if ctx.Err() != nil {
			results[i] = sheetResult{Source: files[i], Error: ctx.Err().Error()}
			continue
		}
		tasks <- i
	}
	close(tasks)
	wg.Wait()
	bar.Finish()
	return results
}

func readSheet(ctx context.Context, p *pipeline.Pipeline, path string, centers omr.BubbleCenterMap, key []omr.AnswerKeyEntry, scheme scoring.Config) sheetResult {
	r := sheetResult{Source: path}
	data, err := os.ReadFile(path)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	student, err := p.StudentAnswers(data, centers)
	if err != nil {
		r.Error = err.Error()
		return r
	}
	r.StudentAnswers = student
	if key != nil {
		r.Evaluation = scoring.Evaluate(key, student, scheme)
	}

	if batchSave {
		id, err := DB.SaveResult(ctx, batchExamID, filepath.Base(path), student, r.Evaluation)
		if err != nil {
			r.Error = fmt.Sprintf("save: %v", err)
			return r
		}
		r.ResultID = id
	}
	return r
}
