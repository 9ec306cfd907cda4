package main

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/nfnt/resize"
)

const (
	thumbsDirName    = "thumbs"
	thumbShrinkBy    = 4
	thumbJPEGQuality = 85
)

// makeThumb writes a quarter-size thumbnail of an uploaded image into
// the thumbs subdirectory, keyed by the same filename.
func makeThumb(imagePath string) error {
	file, err := os.Open(imagePath)
	if err != nil {
		return err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return err
	}
	return writeThumb(imagePath, img)
}

// makeVideoThumb asks ffmpeg for a representative poster frame and
// writes it as the video's thumbnail. Missing ffmpeg is an error the
// caller may ignore; uploads work without thumbnails.
func makeVideoThumb(videoPath string) error {
	ffmpeg := config.FFmpeg
	if ffmpeg == "" {
		ffmpeg = "ffmpeg"
	}
	if _, err := exec.LookPath(ffmpeg); err != nil {
		return fmt.Errorf("ffmpeg not available: %w", err)
	}

	cmd := exec.Command(ffmpeg,
		"-i", videoPath,
		"-vf", "thumbnail",
		"-frames:v", "1",
		"-f", "image2pipe",
		"-c:v", "png",
		"pipe:1")
	var buf bytes.Buffer
	cmd.Stdout = &buf
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extracting poster frame: %w", err)
	}

	img, _, err := image.Decode(&buf)
	if err != nil {
		return err
	}
	return writeThumb(videoPath, img)
}

func writeThumb(originalPath string, img image.Image) error {
	dst := shrinkImage(img, thumbShrinkBy)

	thumbDir := filepath.Join(filepath.Dir(originalPath), thumbsDirName)
	if err := os.MkdirAll(thumbDir, 0755); err != nil {
		return err
	}
	out, err := os.Create(filepath.Join(thumbDir, filepath.Base(originalPath)))
	if err != nil {
		return err
	}
	defer out.Close()

	if strings.EqualFold(filepath.Ext(originalPath), ".png") {
		return png.Encode(out, dst)
	}
	return jpeg.Encode(out, dst, &jpeg.Options{Quality: thumbJPEGQuality})
}

// shrinkImage reduces an image by the given factor, never below one
// pixel per side.
func shrinkImage(img image.Image, factor int) image.Image {
	bounds := img.Bounds()
	w := bounds.Dx() / factor
	h := bounds.Dy() / factor
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return resize.Resize(uint(w), uint(h), img, resize.Lanczos3)
}

func shrinkReader(reader io.Reader, factor int) (image.Image, string, error) {
	img, format, err := image.Decode(reader)
	if err != nil {
		return nil, "", err
	}
	return shrinkImage(img, factor), format, nil
}

// Serve thumbnail (1/4 size). Precomputed thumbs are served directly;
// anything without one gets shrunk on the fly.
func serveThumbnailImageHandler(w http.ResponseWriter, r *http.Request) {
	imageName := filepath.Base(r.URL.Path)
	if err := validateImageName(imageName, config.UploadPath); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	contentType := "image/jpeg"
	if strings.EqualFold(filepath.Ext(imageName), ".png") {
		contentType = "image/png"
	}

	thumbPath := filepath.Join(config.UploadPath, thumbsDirName, imageName)
	if thumbData, err := os.ReadFile(thumbPath); err == nil {
		w.Header().Set("Content-Type", contentType)
		w.Write(thumbData)
		return
	}

	imagePath := filepath.Join(config.UploadPath, imageName)
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		notfoundHandler(w)
		return
	}

	dst, format, err := shrinkReader(bytes.NewReader(imageData), thumbShrinkBy)
	if err != nil {
		http.Error(w, "Failed to shrink image", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if format == "png" {
		err = png.Encode(&buf, dst)
	} else {
		err = jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbJPEGQuality})
	}
	if err != nil {
		http.Error(w, "Failed to encode image", http.StatusInternalServerError)
		return
	}

	if format == "png" {
		w.Header().Set("Content-Type", "image/png")
	} else {
		w.Header().Set("Content-Type", "image/jpeg")
	}
	w.Write(buf.Bytes())
}
