package sanity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultWidths are the srcset widths used when none are given.
var DefaultWidths = []int{400, 800, 1200, 1600, 1920}

// DefaultQuality is the image quality used when none is given.
const DefaultQuality = 85

var ErrInvalidImageRef = errors.New("sanity: invalid image asset reference")

// Image is the shape of an image field in query results.
type Image struct {
	Asset struct {
		Ref string `json:"_ref"`
	} `json:"asset"`
}

// ImageAsset is a parsed asset reference of the form
// image-<id>-<width>x<height>-<format>.
type ImageAsset struct {
	ID     string
	Width  int
	Height int
	Format string
}

// ParseImageRef parses an asset reference.
//
//	ParseImageRef("image-Tb9Ew8CXIwaY6R1kjMvI0uRR-2000x3000-jpg")
func ParseImageRef(ref string) (ImageAsset, error) {
	parts := strings.Split(ref, "-")
	if len(parts) != 4 || parts[0] != "image" || parts[1] == "" {
		return ImageAsset{}, fmt.Errorf("%w: %q", ErrInvalidImageRef, ref)
	}
	ws, hs, ok := strings.Cut(parts[2], "x")
	w, werr := strconv.Atoi(ws)
	h, herr := strconv.Atoi(hs)
	if !ok || werr != nil || herr != nil || w <= 0 || h <= 0 || parts[3] == "" {
		return ImageAsset{}, fmt.Errorf("%w: %q", ErrInvalidImageRef, ref)
	}
	return ImageAsset{ID: parts[1], Width: w, Height: h, Format: parts[3]}, nil
}

// ImageURLs builds image CDN URLs for one project and dataset.
type ImageURLs struct {
	ProjectID string
	Dataset   string
	BaseURL   string // default https://cdn.sanity.io
}

// ResponsiveURL pairs a width with its URL.
type ResponsiveURL struct {
	Width int    `json:"width"`
	URL   string `json:"url"`
}

// ImageURL returns the untransformed asset URL.
func (b ImageURLs) ImageURL(ref string) (string, error) {
	a, err := ParseImageRef(ref)
	if err != nil {
		return "", err
	}
	base := b.BaseURL
	if base == "" {
		base = "https://cdn.sanity.io"
	}
	return fmt.Sprintf("%s/images/%s/%s/%s-%dx%d.%s",
		strings.TrimRight(base, "/"), b.ProjectID, b.Dataset, a.ID, a.Width, a.Height, a.Format), nil
}

// OptimizedURL returns a URL resized to width (and height when > 0) at
// quality, with the format chosen by the CDN. quality <= 0 means
// DefaultQuality.
func (b ImageURLs) OptimizedURL(ref string, width, height, quality int) (string, error) {
	u, err := b.ImageURL(ref)
	if err != nil {
		return "", err
	}
	if quality <= 0 {
		quality = DefaultQuality
	}
	q := "?w=" + strconv.Itoa(width)
	if height > 0 {
		q += "&h=" + strconv.Itoa(height)
	}
	q += "&q=" + strconv.Itoa(quality) + "&auto=format"
	return u + q, nil
}

// ResponsiveURLs returns one optimized URL per width. Nil widths means
// DefaultWidths.
func (b ImageURLs) ResponsiveURLs(ref string, widths []int, quality int) ([]ResponsiveURL, error) {
	if widths == nil {
		widths = DefaultWidths
	}
	out := make([]ResponsiveURL, 0, len(widths))
	for _, w := range widths {
		u, err := b.OptimizedURL(ref, w, 0, quality)
		if err != nil {
			return nil, err
		}
		out = append(out, ResponsiveURL{Width: w, URL: u})
	}
	return out, nil
}

// SrcSet returns an HTML srcset value: "<url> 400w, <url> 800w, ...".
func (b ImageURLs) SrcSet(ref string, widths []int, quality int) (string, error) {
	urls, err := b.ResponsiveURLs(ref, widths, quality)
	if err != nil {
		return "", err
	}
	parts := make([]string, len(urls))
	for i, u := range urls {
		parts[i] = u.URL + " " + strconv.Itoa(u.Width) + "w"
	}
	return strings.Join(parts, ", "), nil
}
