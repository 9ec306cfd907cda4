package main

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

func notfoundHandler(w http.ResponseWriter) {
	tmpl, err := template.ParseFS(templatesFolder, "templates/404.html")
	if err != nil {
		log.Fatal(err)
	}
	tmpl.Execute(w, nil)
}

func livezHandler(w http.ResponseWriter, req *http.Request) {
	_, verbose := req.URL.Query()["verbose"]
	if !verbose {
		fmt.Fprintf(w, "200")
		return
	}
	// Print extra info if verbose is present http://foo.bar:3000/livez?verbose
	fmt.Fprintf(w, "Server is running on http://%s\n", config.Bind)
	fmt.Fprintf(w, "Serving images at %s\n", config.ServePath)
	fmt.Fprintf(w, "Upload path is %s\n", config.UploadPath)
	fmt.Fprintf(w, "%d image hashes in memory\n", hashCount())
	fmt.Fprintf(w, "%d photo records loaded\n", photos.count())
}

func readyzHandler(w http.ResponseWriter, req *http.Request) {
	fmt.Fprintf(w, "200")
}

// Serve original image
func serveImageHandler(w http.ResponseWriter, r *http.Request) {
	imageName := filepath.Base(r.URL.Path)

	if err := validateImageName(imageName, config.UploadPath); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Construct the full path to the image file.
	imagePath := filepath.Join(config.UploadPath, imageName)

	// Open the image file.
	imageFile, err := os.Open(imagePath)
	if err != nil {
		notfoundHandler(w)
		return
	}
	defer imageFile.Close()

	// Set the Content-Type header based on the file extension.
	contentType := mimeTypeHandler.getContentType(imageName)
	w.Header().Set("Content-Type", contentType)

	// Copy the file data to the response writer.
	_, err = io.Copy(w, imageFile)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

func mapHandler(w http.ResponseWriter, r *http.Request) {
	tmpl, err := template.ParseFS(templatesFolder, "templates/map.html")
	if err != nil {
		http.Error(w, "Error loading template", http.StatusInternalServerError)
		return
	}
	if err := tmpl.Execute(w, config); err != nil {
		http.Error(w, "Error rendering template", http.StatusInternalServerError)
		return
	}
}

// validateImageName checks for path traversal, empty names, and allowed extensions
func validateImageName(imageName string, uploadPath string) error {
	if imageName == "" || imageName == "." || imageName == ".." {
		return fmt.Errorf("invalid file name")
	}

	if strings.HasPrefix(imageName, ".") {
		return fmt.Errorf("invalid file name")
	}

	imagePath := filepath.Join(uploadPath, imageName)
	absImagePath, err := filepath.Abs(imagePath)
	absUploadPath, err2 := filepath.Abs(uploadPath)
	if err != nil || err2 != nil || !strings.HasPrefix(absImagePath, absUploadPath) {
		return fmt.Errorf("invalid file path")
	}

	ext := strings.ToLower(filepath.Ext(imageName))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".mp4", ".mov":
		return nil
	default:
		return fmt.Errorf("unsupported file type")
	}
}
