package main

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// HashEntry records a stored file for dedupe lookups.
type HashEntry struct {
	Filename string
	ModTime  time.Time
}

var hashesMu sync.Mutex

// buildHashDict hashes every file already sitting in the upload
// directory, keyed by md5, so a re-upload of the same bytes can be
// answered with the existing file. The thumbnail subdirectory is
// skipped; thumbs are derived data.
func buildHashDict(imageDir string) (map[string]HashEntry, error) {
	dict := make(map[string]HashEntry)
	err := filepath.Walk(imageDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == thumbsDirName && path != imageDir {
				return filepath.SkipDir
			}
			return nil
		}

		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()

		hash := md5.New()
		if _, err := io.Copy(hash, file); err != nil {
			return err
		}
		hashInBytes := hash.Sum(nil)[:16]
		hashString := fmt.Sprintf("%x", hashInBytes)

		dict[hashString] = HashEntry{
			Filename: info.Name(),
			ModTime:  info.ModTime(),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking the path %q: %v", imageDir, err)
	}
	return dict, nil
}

func computeFileHash(fileReader io.Reader) (string, error) {
	hash := md5.New()
	if _, err := io.Copy(hash, fileReader); err != nil {
		return "", err
	}
	hashInBytes := hash.Sum(nil)[:16]
	hashString := fmt.Sprintf("%x", hashInBytes)

	if seeker, ok := fileReader.(io.Seeker); ok {
		_, err := seeker.Seek(0, io.SeekStart)
		if err != nil {
			return "", err
		}
	}
	return hashString, nil
}

func imageHashExists(hash string) (HashEntry, bool) {
	hashesMu.Lock()
	defer hashesMu.Unlock()
	if entry, ok := hashes[hash]; ok {
		return entry, true
	}
	return HashEntry{}, false
}

func rememberHash(hash string, entry HashEntry) {
	hashesMu.Lock()
	defer hashesMu.Unlock()
	if hashes == nil {
		hashes = make(map[string]HashEntry)
	}
	hashes[hash] = entry
}

func hashCount() int {
	hashesMu.Lock()
	defer hashesMu.Unlock()
	return len(hashes)
}
