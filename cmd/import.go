package cmd

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/cases"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/config"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/descriptor"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/logger"
	"github.com/NavadeepDj/Missing-Person-Detection-sub000/internal/web/handlers"
)

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Bulk-register cases from a directory of reference photos",
	Long: `Register one case per image file in the directory. The file name
(without extension) becomes the person's name. Files that fail extraction
are reported and skipped; the import continues.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func isImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg", ".png":
		return true
	}
	return false
}

func runImport(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	dir := args[0]
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading directory %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isImageFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		fmt.Println("No image files found.")
		return nil
	}

	ctx := context.Background()
	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.Close()

	faceService := descriptor.NewServiceClient(cfg.FaceService.URL,
		time.Duration(cfg.FaceService.TimeoutSec)*time.Second)
	extractor := descriptor.NewExtractor(faceService, faceService, cfg.Matching.DescriptorLength, log)

	media, err := handlers.NewMediaStore(cfg.Media.Dir)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(files),
		progressbar.OptionSetDescription("Importing cases"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("photos"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	imported, failed := 0, 0
	for _, name := range files {
		if err := importOne(ctx, st, extractor, media, dir, name); err != nil {
			failed++
			log.Warn("import failed", zap.String("file", name), zap.Error(err))
		} else {
			imported++
		}
		bar.Add(1) //nolint:errcheck
	}

	fmt.Printf("\nImported %d cases, %d failed.\n", imported, failed)
	return nil
}

func importOne(ctx context.Context, st caseCreator, extractor *descriptor.Extractor, media *handlers.MediaStore, dir, name string) error {
	data, err := os.ReadFile(filepath.Join(dir, name)) //nolint:gosec // operator-supplied directory
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}

	result, err := extractor.Extract(ctx, img)
	if err != nil {
		return err
	}

	photoRef, err := media.SaveJPEG(data)
	if err != nil {
		return err
	}

	personName := strings.TrimSuffix(name, filepath.Ext(name))
	return st.CreateCase(ctx, cases.Case{
		ID:               uuid.NewString(),
		Name:             personName,
		Status:           cases.StatusActive,
		ReportedAt:       time.Now().UTC(),
		PhotoRef:         photoRef,
		Descriptor:       result.Descriptor,
		DescriptorOrigin: result.Origin.String(),
	})
}

// caseCreator is the slice of the store the import needs.
type caseCreator interface {
	CreateCase(ctx context.Context, c cases.Case) error
}
