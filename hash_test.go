package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestBuildHashDict verifies identical files collapse to one entry
// carrying a filename and a real modification time.
func TestBuildHashDict(t *testing.T) {
	tempDir := t.TempDir()
	data := encodeTestJPEG(t, 24, 24)

	file1 := filepath.Join(tempDir, "image1.jpg")
	if err := os.WriteFile(file1, data, 0644); err != nil {
		t.Fatalf("Failed to write file1: %v", err)
	}

	// Same bytes under a second name: one hash entry.
	file2 := filepath.Join(tempDir, "image2.jpg")
	if err := os.WriteFile(file2, data, 0644); err != nil {
		t.Fatalf("Failed to write file2: %v", err)
	}

	hashDict, err := buildHashDict(tempDir)
	if err != nil {
		t.Fatalf("Failed to build hash dict: %v", err)
	}

	if len(hashDict) != 1 {
		t.Errorf("Expected 1 hash entry, got %d", len(hashDict))
	}

	var entry HashEntry
	for _, v := range hashDict {
		entry = v
		break
	}
	if entry.Filename != "image1.jpg" && entry.Filename != "image2.jpg" {
		t.Errorf("Unexpected filename: %s", entry.Filename)
	}
	if entry.ModTime.IsZero() {
		t.Errorf("ModTime is zero")
	}
}

func TestBuildHashDictSkipsThumbs(t *testing.T) {
	tempDir := t.TempDir()

	if err := os.WriteFile(filepath.Join(tempDir, "photo.jpg"), encodeTestJPEG(t, 24, 24), 0644); err != nil {
		t.Fatal(err)
	}
	thumbDir := filepath.Join(tempDir, thumbsDirName)
	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(thumbDir, "photo.jpg"), encodeTestJPEG(t, 6, 6), 0644); err != nil {
		t.Fatal(err)
	}

	hashDict, err := buildHashDict(tempDir)
	if err != nil {
		t.Fatalf("Failed to build hash dict: %v", err)
	}
	if len(hashDict) != 1 {
		t.Errorf("Expected thumbs to be skipped, got %d entries", len(hashDict))
	}
}

func TestImageHashExists(t *testing.T) {
	tempDir := t.TempDir()
	data := encodeTestJPEG(t, 24, 24)

	if err := os.WriteFile(filepath.Join(tempDir, "test.jpg"), data, 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	hashDict, err := buildHashDict(tempDir)
	if err != nil {
		t.Fatalf("Failed to build hash dict: %v", err)
	}

	hash, err := computeFileHash(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Failed to compute hash: %v", err)
	}

	// Swap in the dict globally for imageHashExists to see it
	oldHashes := hashes
	hashes = hashDict
	defer func() { hashes = oldHashes }()

	entry, exists := imageHashExists(hash)
	if !exists {
		t.Fatalf("Hash should exist")
	}
	if entry.Filename != "test.jpg" {
		t.Errorf("Expected filename 'test.jpg', got '%s'", entry.Filename)
	}
	if entry.ModTime.IsZero() {
		t.Errorf("ModTime should not be zero")
	}

	if _, exists = imageHashExists("nonexistent"); exists {
		t.Errorf("Hash should not exist")
	}
}

func TestRememberHash(t *testing.T) {
	oldHashes := hashes
	hashes = nil
	defer func() { hashes = oldHashes }()

	entry := HashEntry{Filename: "abc.jpg", ModTime: time.Now()}
	rememberHash("somehash", entry)

	got, exists := imageHashExists("somehash")
	if !exists || got.Filename != "abc.jpg" {
		t.Errorf("rememberHash did not store the entry: %+v, %v", got, exists)
	}
	if hashCount() != 1 {
		t.Errorf("hashCount = %d, want 1", hashCount())
	}
}

// TestHashEntryPreservesTimestamp verifies the dict carries the file's
// modification time through unchanged.
func TestHashEntryPreservesTimestamp(t *testing.T) {
	tempDir := t.TempDir()

	testFile := filepath.Join(tempDir, "test.jpg")
	if err := os.WriteFile(testFile, []byte("test image data"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	specificTime := time.Date(2023, 1, 15, 10, 30, 0, 0, time.UTC)
	if err := os.Chtimes(testFile, specificTime, specificTime); err != nil {
		t.Fatalf("Failed to set file times: %v", err)
	}

	hashDict, err := buildHashDict(tempDir)
	if err != nil {
		t.Fatalf("Failed to build hash dict: %v", err)
	}

	var entry HashEntry
	for _, v := range hashDict {
		entry = v
		break
	}
	if !entry.ModTime.Equal(specificTime) {
		t.Errorf("Expected ModTime %s, got %s", specificTime, entry.ModTime)
	}
}

func TestComputeFileHashRewindsSeeker(t *testing.T) {
	r := bytes.NewReader([]byte("some bytes"))
	h1, err := computeFileHash(r)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := computeFileHash(r)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("hash changed after rewind: %s vs %s", h1, h2)
	}
}
