// Package pdf extracts embedded raster images from PDF documents so the
// detector can scan them for QR codes (menus and flyers are commonly shipped
// as PDFs with one photograph per page).
package pdf

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageImage is one extracted image together with the page it came from.
type PageImage struct {
	Page  int
	Image image.Image
}

// ExtractImages pulls every embedded image from the PDF, optionally limited
// to a page range like "1-5" or "1,3,7". Results are ordered by page.
func ExtractImages(filename string, pageRange string) ([]PageImage, error) {
	pages, err := parsePageRange(pageRange)
	if err != nil {
		return nil, fmt.Errorf("invalid page range %q: %w", pageRange, err)
	}

	tempDir, err := os.MkdirTemp("", "qrscanner-pdf-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(tempDir) }()

	var selected []string
	for _, p := range pages {
		selected = append(selected, strconv.Itoa(p))
	}

	if err := api.ExtractImagesFile(filename, tempDir, selected, nil); err != nil {
		return nil, fmt.Errorf("failed to extract images from PDF: %w", err)
	}

	images, err := collectExtractedImages(tempDir)
	if err != nil {
		return nil, fmt.Errorf("failed to process extracted images: %w", err)
	}
	return images, nil
}

// collectExtractedImages loads the page_<num>_... files pdfcpu wrote into the
// directory and orders them by page.
func collectExtractedImages(dir string) ([]PageImage, error) {
	var out []PageImage

	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		page, err := parsePageFromFilename(info.Name())
		if err != nil {
			return nil // not an extracted page image
		}
		img, err := loadImageFile(path)
		if err != nil {
			return nil // undecodable formats (e.g. CMYK tiff) are skipped
		}
		out = append(out, PageImage{Page: page, Image: img})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out, nil
}

func loadImageFile(path string) (image.Image, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from our own temp dir
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	return img, err
}

// parsePageFromFilename extracts the page number from pdfcpu's extract
// naming scheme (page_1_image_1.png and similar).
func parsePageFromFilename(filename string) (int, error) {
	if !strings.HasPrefix(filename, "page_") {
		return 0, errors.New("not a page file")
	}
	parts := strings.Split(filename, "_")
	if len(parts) < 2 {
		return 0, errors.New("invalid filename format")
	}
	page, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, errors.New("invalid page number")
	}
	return page, nil
}

// parsePageRange parses "1-5", "3", or "1,3,5" into page numbers. Empty
// means all pages.
func parsePageRange(pageRange string) ([]int, error) {
	if pageRange == "" {
		return nil, nil
	}
	var pages []int
	for _, part := range strings.Split(pageRange, ",") {
		token, err := parseRangeToken(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		pages = append(pages, token...)
	}
	return pages, nil
}

func parseRangeToken(part string) ([]int, error) {
	if !strings.Contains(part, "-") {
		page, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid page number: %s", part)
		}
		if page < 1 {
			return nil, fmt.Errorf("page numbers start at 1, got %d", page)
		}
		return []int{page}, nil
	}

	bounds := strings.Split(part, "-")
	if len(bounds) != 2 {
		return nil, fmt.Errorf("invalid range format: %s", part)
	}
	start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
	if err != nil {
		return nil, fmt.Errorf("invalid start page: %s", bounds[0])
	}
	end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
	if err != nil {
		return nil, fmt.Errorf("invalid end page: %s", bounds[1])
	}
	if start < 1 || end < start {
		return nil, fmt.Errorf("invalid range: %s", part)
	}
	pages := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		pages = append(pages, p)
	}
	return pages, nil
}
