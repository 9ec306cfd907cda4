package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// runRedactCommand is the entry point for the redact subcommand. It
// re-encodes every stored image in place, for upload directories that
// predate redaction on intake.
func runRedactCommand() {
	uploadPath, dryRun, backup, debug := parseRedactFlags()

	// Set up a minimal config for debug mode
	config.Debug = debug
	config.UploadPath = uploadPath

	fmt.Printf("Redacting images in: %s\n", uploadPath)
	if dryRun {
		fmt.Println("DRY RUN MODE: No files will be modified")
	}
	if backup {
		fmt.Println("BACKUP MODE: Creating .bak files before modification")
	}
	fmt.Println()

	if err := redactDirectory(uploadPath, dryRun, backup); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseRedactFlags() (uploadPath string, dryRun, backup, debug bool) {
	flag.StringVar(&uploadPath, "u", "./uploads/", "Directory of images to redact")
	flag.StringVar(&uploadPath, "upload-path", "./uploads/", "Directory of images to redact")
	flag.BoolVar(&dryRun, "n", false, "Report what would change without writing")
	flag.BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	flag.BoolVar(&backup, "b", false, "Keep a .bak copy of each original")
	flag.BoolVar(&backup, "backup", false, "Keep a .bak copy of each original")
	flag.BoolVar(&debug, "d", false, "Print every skipped file")
	flag.BoolVar(&debug, "debug", false, "Print every skipped file")
	flag.Parse()
	return
}

// redactDirectory walks a directory and re-encodes every JPEG and PNG
// in place. GIFs keep their animation and videos are exempt, so both
// are skipped, as is the derived thumbs directory.
func redactDirectory(uploadPath string, dryRun bool, backup bool) error {
	processed := 0
	skipped := 0
	errors := 0

	err := filepath.Walk(uploadPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			if info.Name() == thumbsDirName && path != uploadPath {
				return filepath.SkipDir
			}
			return nil
		}

		var contentType string
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".png":
			contentType = "image/png"
		default:
			skipped++
			if config.Debug {
				fmt.Printf("Skipping: %s\n", path)
			}
			return nil
		}

		// Read the file
		data, err := os.ReadFile(path)
		if err != nil {
			errors++
			fmt.Printf("Error reading %s: %v\n", path, err)
			return nil // Continue processing other files
		}

		redacted, err := redactImage(data, contentType)
		if err != nil {
			errors++
			fmt.Printf("Error processing %s: %v\n", path, err)
			return nil
		}

		if dryRun {
			fmt.Printf("Would redact: %s (size: %d -> %d bytes)\n", path, len(data), len(redacted))
			processed++
			return nil
		}

		// Create backup if requested
		if backup {
			backupPath := path + ".bak"
			if err := os.WriteFile(backupPath, data, info.Mode()); err != nil {
				errors++
				fmt.Printf("Error creating backup for %s: %v\n", path, err)
				return nil
			}
			if config.Debug {
				fmt.Printf("Created backup: %s\n", backupPath)
			}
		}

		// Write the redacted data back
		if err := os.WriteFile(path, redacted, info.Mode()); err != nil {
			errors++
			fmt.Printf("Error writing %s: %v\n", path, err)
			return nil
		}

		processed++
		fmt.Printf("Redacted: %s (size: %d -> %d bytes)\n", path, len(data), len(redacted))

		return nil
	})

	if err != nil {
		return fmt.Errorf("error walking directory: %w", err)
	}

	// Print summary
	fmt.Printf("\nSummary:\n")
	if dryRun {
		fmt.Printf("  Would redact: %d files\n", processed)
	} else {
		fmt.Printf("  Redacted: %d files\n", processed)
	}
	fmt.Printf("  Skipped: %d files\n", skipped)
	if errors > 0 {
		fmt.Printf("  Errors: %d\n", errors)
	}

	return nil
}
