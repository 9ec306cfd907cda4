package main

import (
	"fmt"
	"io"
	"os"
	"time"

	exif "github.com/dsoprea/go-exif/v3"
	exifcommon "github.com/dsoprea/go-exif/v3/common"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"
)

// runInspectCommand prints what two independent readers see in a file:
// the full segment and tag view from the EXIF libraries, and the subset
// this server actually extracts. Useful when the two disagree.
func runInspectCommand(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: photomap inspect <file>")
		os.Exit(2)
	}
	if err := inspectFile(os.Stdout, args[0]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func inspectFile(w io.Writer, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "File: %s (%d bytes)\n", path, len(data))

	printSegments(w, data)
	printExifTags(w, data)
	printExtracted(w, data, path)
	return nil
}

func printSegments(w io.Writer, data []byte) {
	jmp := jpegstructure.NewJpegMediaParser()
	intfc, err := jmp.ParseBytes(data)
	if err != nil {
		fmt.Fprintf(w, "\nNot parseable as JPEG: %v\n", err)
		return
	}
	sl, ok := intfc.(*jpegstructure.SegmentList)
	if !ok {
		return
	}

	fmt.Fprintln(w, "\nSegments:")
	for _, s := range sl.Segments() {
		fmt.Fprintf(w, "  %-8s offset=%-8d size=%d\n", s.MarkerName, s.Offset, len(s.Data))
	}
}

func printExifTags(w io.Writer, data []byte) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if err == exif.ErrNoExif {
			fmt.Fprintln(w, "\nNo EXIF data")
		} else {
			fmt.Fprintf(w, "\nEXIF search failed: %v\n", err)
		}
		return
	}

	im, err := exifcommon.NewIfdMappingWithStandard()
	if err != nil {
		fmt.Fprintf(w, "\nEXIF decode failed: %v\n", err)
		return
	}
	ti := exif.NewTagIndex()
	_, index, err := exif.Collect(im, ti, rawExif)
	if err != nil {
		fmt.Fprintf(w, "\nEXIF decode failed: %v\n", err)
		return
	}

	fmt.Fprintln(w, "\nEXIF tags:")
	cb := func(ifd *exif.Ifd, ite *exif.IfdTagEntry) error {
		value, err := ite.Value()
		if err != nil {
			fmt.Fprintf(w, "  %-14s %-28s <undecodable>\n", ite.IfdPath(), ite.TagName())
			return nil
		}
		fmt.Fprintf(w, "  %-14s %-28s %v\n", ite.IfdPath(), ite.TagName(), value)
		return nil
	}
	if err := index.RootIfd.EnumerateTagsRecursively(cb); err != nil {
		fmt.Fprintf(w, "  enumeration stopped: %v\n", err)
	}

	gpsIfd, err := exif.FindIfdFromRootIfd(index.RootIfd, "IFD/GPSInfo")
	if err == nil {
		if gi, err := gpsIfd.GpsInfo(); err == nil {
			fmt.Fprintf(w, "\nGPS decode: lat=%.6f lng=%.6f\n",
				gi.Latitude.Decimal(), gi.Longitude.Decimal())
		}
	}
}

func printExtracted(w io.Writer, data []byte, path string) {
	md := extractMetadata(data, "", path)

	fmt.Fprintln(w, "\nExtracted for records:")
	if md.Latitude != nil && md.Longitude != nil {
		fmt.Fprintf(w, "  position  %.6f, %.6f\n", *md.Latitude, *md.Longitude)
	}
	if md.Bearing != nil {
		fmt.Fprintf(w, "  bearing   %.2f (%s)\n", *md.Bearing, cardinalLabel(*md.Bearing))
	}
	if md.Taken != nil {
		fmt.Fprintf(w, "  taken     %s\n", md.Taken.Format(time.RFC3339))
	}
	if md.Latitude == nil && md.Bearing == nil && md.Taken == nil {
		fmt.Fprintln(w, "  nothing")
	}
}
