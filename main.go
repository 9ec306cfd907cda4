package main

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Bind       string `toml:"bind"`
	DataPath   string `toml:"data_path"`
	Debug      bool   `toml:"debug"`
	FFmpeg     string `toml:"ffmpeg"`
	ServePath  string `toml:"serve_path"`
	UploadPath string `toml:"upload_path"`
}

type MimeTypeHandler struct {
	mimeToExt map[string]string
	extToMime map[string]string
}

var config Config
var hashes map[string]HashEntry
var mimeTypeHandler MimeTypeHandler
var photos *photoStore

//go:embed templates
var templatesFolder embed.FS

var supportedMimeTypes = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
}

func main() {
	// Check for subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "redact":
			// Remove the subcommand from args so flag parsing works
			os.Args = append(os.Args[:1], os.Args[2:]...)
			runRedactCommand()
			return
		case "inspect":
			runInspectCommand(os.Args[2:])
			return
		}
	}

	config = GenerateConfig()
	mimeTypeHandler = *newMimeTypeHandler()

	// Create the upload directory if it doesn't exist
	if _, err := os.Stat(config.UploadPath); os.IsNotExist(err) {
		fmt.Printf("Creating upload directory at %s\n", config.UploadPath)
		os.MkdirAll(config.UploadPath, os.ModePerm)
	}

	var err error
	photos, err = newPhotoStore(config.DataPath)
	if err != nil {
		log.Fatalf("Error opening photo store: %v", err)
	}

	hashesChan := make(chan map[string]HashEntry)
	errChan := make(chan error)

	go func() {
		dict, err := buildHashDict(config.UploadPath)
		if err != nil {
			errChan <- err
			return
		}
		hashesChan <- dict
	}()

	// Create a new HTTP router
	http.HandleFunc("/livez", livezHandler)
	http.HandleFunc("/readyz", readyzHandler)
	http.HandleFunc("/t/", serveThumbnailImageHandler)
	http.HandleFunc("/upload", uploadHandler)
	http.HandleFunc("/url", urlUploadHandler)
	http.HandleFunc("/map", mapHandler)
	http.HandleFunc("/api/photos", listPhotosHandler)
	http.HandleFunc("/api/photos/", photoHandler)
	http.HandleFunc(config.ServePath, serveImageHandler)
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		filePath := path.Join("templates", r.URL.Path)
		if r.URL.Path == "/" {
			filePath = "templates/index.html"
		}
		file, err := templatesFolder.Open(filePath)
		if err != nil {
			notfoundHandler(w)
			return
		}
		defer file.Close()

		io.Copy(w, file)
	})

	if config.Debug {
		fmt.Println("Debug mode is enabled")
	}

	fmt.Printf("Server is running on http://%s\n"+
		"Serving images at %s\n"+
		"Upload path is %s\n"+
		"Photo records at %s\n",

		config.Bind, config.ServePath, config.UploadPath, config.DataPath)

	select {
	case dict := <-hashesChan:
		hashes = dict
	case err = <-errChan:
		fmt.Printf("Error: %v\n", err)
		return
	}

	if config.Debug {
		for hash, entry := range hashes {
			fmt.Printf("MD5 Hash: %s, Filename: %s\n", hash, entry.Filename)
		}
	}

	log.Fatal(http.ListenAndServe(config.Bind, nil))
}

func newMimeTypeHandler() *MimeTypeHandler {
	mimeToExt := supportedMimeTypes

	extToMime := make(map[string]string, len(mimeToExt))
	for mime, ext := range mimeToExt {
		extToMime["."+ext] = mime
		if mime == "image/jpeg" {
			extToMime[".jpeg"] = mime
		}
	}

	return &MimeTypeHandler{
		mimeToExt: mimeToExt,
		extToMime: extToMime,
	}
}

// detectContentType sniffs the upload's real type, falling back to the
// declared filename's extension for containers the sniffer does not
// know (QuickTime, notably).
func (m *MimeTypeHandler) detectContentType(data []byte, declaredName string) (string, string, error) {
	n := len(data)
	if n > 512 {
		n = 512
	}
	contentType := http.DetectContentType(data[:n])
	if ext, ok := m.mimeToExt[contentType]; ok {
		return "." + ext, contentType, nil
	}

	ext := strings.ToLower(filepath.Ext(declaredName))
	if mime, ok := m.extToMime[ext]; ok {
		return ext, mime, nil
	}

	return "", "", fmt.Errorf("unsupported type: %s", contentType)
}

func (m *MimeTypeHandler) getContentType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if mime, ok := m.extToMime[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

func randfilename(length int, extension string) string {
	letterRunes := []rune("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	randomRunes := make([]rune, length)
	seed := rand.NewSource(time.Now().UnixNano())
	rand := rand.New(seed)
	for index := range randomRunes {
		randomRunes[index] = letterRunes[rand.Intn(len(letterRunes))]
	}
	return string(randomRunes) + extension
}

func needsRedaction(contentType string) bool {
	// GIFs are stored as-is so animation survives; videos are exempt
	// and never get their container parsed.
	return contentType == "image/jpeg" || contentType == "image/png"
}

func isVideoType(contentType string) bool {
	return strings.HasPrefix(contentType, "video/")
}

func makeThumbFor(path, contentType string) error {
	if isVideoType(contentType) {
		return makeVideoThumb(path)
	}
	return makeThumb(path)
}

// processUpload runs the whole intake pipeline on one upload: dedupe by
// hash, sniff the type, extract metadata from the original bytes, store
// a redacted copy, thumbnail it, and persist the photo record. The
// redacted artifact is written before the record referencing it exists.
func processUpload(data []byte, declaredName string) (Photo, error) {
	if len(data) == 0 {
		return Photo{}, fmt.Errorf("empty upload")
	}

	hash, err := computeFileHash(bytes.NewReader(data))
	if err != nil {
		return Photo{}, err
	}
	if entry, exists := imageHashExists(hash); exists {
		if config.Debug {
			fmt.Printf("Hash %s exists: %s\n", hash, entry.Filename)
		}
		if p, ok := photos.byFilename(entry.Filename); ok {
			return p, nil
		}
		// A stored file without a record gets one now; the incoming
		// bytes still carry the EXIF the stored copy lost.
		contentType := mimeTypeHandler.getContentType(entry.Filename)
		md := extractMetadata(data, contentType, declaredName)
		p := newPhotoRecord(entry.Filename, contentType, md, entry.ModTime)
		if err := photos.add(p); err != nil {
			return Photo{}, err
		}
		return p, nil
	}

	ext, contentType, err := mimeTypeHandler.detectContentType(data, declaredName)
	if err != nil {
		return Photo{}, err
	}

	md := extractMetadata(data, contentType, declaredName)

	stored := data
	if needsRedaction(contentType) {
		stored, err = redactImage(data, contentType)
		if err != nil {
			return Photo{}, fmt.Errorf("redacting image: %w", err)
		}
	}

	genfilename := randfilename(6, ext)
	destPath := filepath.Join(config.UploadPath, genfilename)
	if err := createAndCopyFile(destPath, bytes.NewReader(stored)); err != nil {
		return Photo{}, err
	}

	if err := makeThumbFor(destPath, contentType); err != nil && config.Debug {
		fmt.Printf("No thumbnail for %s: %v\n", genfilename, err)
	}

	modTime := time.Now()
	if info, err := os.Stat(destPath); err == nil {
		modTime = info.ModTime()
	}

	p := newPhotoRecord(genfilename, contentType, md, modTime)
	if err := photos.add(p); err != nil {
		return Photo{}, err
	}
	rememberHash(hash, HashEntry{Filename: genfilename, ModTime: modTime})
	return p, nil
}

// newPhotoRecord builds a record from whatever extraction recovered,
// tagging each field with where it came from. Videos carry no EXIF, so
// their capture date falls back to the file's modification time.
func newPhotoRecord(filename, contentType string, md ExtractedMetadata, modTime time.Time) Photo {
	p := Photo{
		ID:          randfilename(8, ""),
		Filename:    filename,
		ContentType: contentType,
		Uploaded:    time.Now().UTC(),
	}
	if md.Latitude != nil && md.Longitude != nil {
		p.Latitude = md.Latitude
		p.Longitude = md.Longitude
		p.LocationSource = sourceExif
	}
	if md.Bearing != nil {
		p.Bearing = md.Bearing
		p.BearingSource = sourceExif
	}
	if md.Taken != nil {
		p.Taken = md.Taken
		p.TakenSource = sourceExif
	}
	if p.Taken == nil && isVideoType(contentType) && !modTime.IsZero() {
		t := modTime.UTC()
		p.Taken = &t
		p.TakenSource = sourceMtime
	}
	p.refreshDerived()
	return p
}

// processUploadedHeader handles a single multipart file upload
func processUploadedHeader(fileHeader *multipart.FileHeader) (Photo, error) {
	file, err := fileHeader.Open()
	if err != nil {
		return Photo{}, err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return Photo{}, err
	}
	return processUpload(data, fileHeader.Filename)
}

func uploadHandler(w http.ResponseWriter, r *http.Request) {
	err := r.ParseMultipartForm(32 << 20) // 32 MB max in-memory size
	if err != nil {
		http.Error(w, "Error parsing form", http.StatusBadRequest)
		return
	}

	// get all uploaded files
	var files []*multipart.FileHeader
	if r.MultipartForm != nil && r.MultipartForm.File != nil {
		files = r.MultipartForm.File["file"]
	}

	// fallback to single file method if no files from multipart
	if len(files) == 0 {
		file, header, err := r.FormFile("file")
		if err != nil {
			fmt.Println("Error retrieving the file:", err)
			http.Error(w, "Error retrieving the file", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, "Error reading the file", http.StatusBadRequest)
			return
		}
		p, err := processUpload(data, header.Filename)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respondWithPhoto(w, r, p)
		return
	}

	var uploaded []Photo
	for _, fileHeader := range files {
		p, err := processUploadedHeader(fileHeader)
		if err != nil {
			if config.Debug {
				fmt.Printf("Skipping file %s: %v\n", fileHeader.Filename, err)
			}
			continue // skip files that fail to process
		}
		uploaded = append(uploaded, p)
	}

	if len(uploaded) == 0 {
		http.Error(w, "No valid files uploaded", http.StatusBadRequest)
		return
	}
	if len(uploaded) == 1 {
		respondWithPhoto(w, r, uploaded[0])
		return
	}
	respondWithPhotos(w, r, uploaded)
}

func urlUploadHandler(w http.ResponseWriter, r *http.Request) {
	var requestBody map[string]string
	json.NewDecoder(r.Body).Decode(&requestBody)
	urlString := requestBody["url"]

	resp, err := http.Get(urlString)
	if err != nil {
		http.Error(w, "Error fetching the URL", http.StatusBadRequest)
		return
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "Error reading the URL", http.StatusBadRequest)
		return
	}

	p, err := processUpload(data, path.Base(resp.Request.URL.Path))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	respondWithPhoto(w, r, p)
}

func createAndCopyFile(filepath string, src io.Reader) error {
	newFile, err := os.Create(filepath)
	if err != nil {
		return fmt.Errorf("error creating the file: %w", err)
	}
	defer newFile.Close()

	if _, err = io.Copy(newFile, src); err != nil {
		return fmt.Errorf("error copying file data: %w", err)
	}

	return nil
}

func requestOrigin(r *http.Request) string {
	scheme := "http://"
	if r.TLS != nil {
		scheme = "https://"
	}
	return scheme + r.Host
}

func constructFileURL(r *http.Request, filename string) string {
	return fmt.Sprintf("%s%s%s", requestOrigin(r), config.ServePath, filename)
}

func respondWithPhoto(w http.ResponseWriter, r *http.Request, p Photo) error {
	fileURL := constructFileURL(r, p.Filename)
	acceptHeader := r.Header.Get("Accept")
	switch acceptHeader {
	case "application/json":
		w.Header().Set("Content-Type", "application/json")
		err := json.NewEncoder(w).Encode(map[string]string{
			"url": fileURL,
			"id":  p.ID,
			"map": fmt.Sprintf("%s/map?photo=%s", requestOrigin(r), p.ID),
		})
		if err != nil {
			http.Error(w, "Failed to encode JSON response", http.StatusInternalServerError)
			return err
		}
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, err := w.Write([]byte(fileURL + "\n"))
		if err != nil {
			http.Error(w, "Failed to write plain text response", http.StatusInternalServerError)
			return err
		}
	}
	return nil
}

func respondWithPhotos(w http.ResponseWriter, r *http.Request, list []Photo) error {
	acceptHeader := r.Header.Get("Accept")
	switch acceptHeader {
	case "application/json":
		type uploadResult struct {
			URL string `json:"url"`
			ID  string `json:"id"`
		}
		results := make([]uploadResult, 0, len(list))
		for _, p := range list {
			results = append(results, uploadResult{URL: constructFileURL(r, p.Filename), ID: p.ID})
		}
		w.Header().Set("Content-Type", "application/json")
		return json.NewEncoder(w).Encode(results)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, p := range list {
			if _, err := w.Write([]byte(constructFileURL(r, p.Filename) + "\n")); err != nil {
				return err
			}
		}
	}
	return nil
}
