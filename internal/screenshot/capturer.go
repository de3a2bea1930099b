// Package screenshot captures element and full-page screenshots into a
// per-scan directory, under strict path discipline: every write is gated on
// a UUID-shaped scan id and confined to the configured base directory.
package screenshot

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Options controls padding and image format for a capture.
type Options struct {
	Format  proto.PageCaptureScreenshotFormat
	Padding float64 // symmetric padding added around an element's bounding box, in pixels
}

// DefaultOptions returns PNG format with no padding.
func DefaultOptions() Options {
	return Options{Format: proto.PageCaptureScreenshotFormatPng}
}

// Result is the outcome of a single capture attempt. Capture failures never
// propagate as Go errors to callers further up the pipeline: they come back
// as a Result with Error set, so one bad screenshot never aborts a scan.
type Result struct {
	Path  string
	Error string
}

// Capturer writes screenshots under BaseDir/{scanId}/....
type Capturer struct {
	BaseDir string
}

// New constructs a Capturer rooted at baseDir.
func New(baseDir string) *Capturer {
	return &Capturer{BaseDir: baseDir}
}

var ruleIDSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]`)

func sanitizeRuleID(ruleID string) string {
	cleaned := ruleIDSanitizer.ReplaceAllString(ruleID, "")
	if len(cleaned) > 100 {
		cleaned = cleaned[:100]
	}
	return cleaned
}

// resolveScanDir validates scanId as a strict UUID, then resolves
// BaseDir/scanId and verifies the resolved absolute path still lives inside
// the resolved absolute base directory, refusing otherwise (path-traversal
// defense against a crafted or corrupted scan id).
func (c *Capturer) resolveScanDir(scanID string) (string, error) {
	if _, err := uuid.Parse(scanID); err != nil {
		return "", fmt.Errorf("screenshot: scanId %q is not a valid UUID", scanID)
	}

	base, err := filepath.Abs(c.BaseDir)
	if err != nil {
		return "", fmt.Errorf("screenshot: resolve base directory: %w", err)
	}

	dir, err := filepath.Abs(filepath.Join(base, scanID))
	if err != nil {
		return "", fmt.Errorf("screenshot: resolve scan directory: %w", err)
	}

	if dir != base && !strings.HasPrefix(dir, base+string(os.PathSeparator)) {
		return "", fmt.Errorf("screenshot: resolved path %q escapes base directory %q", dir, base)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("screenshot: create scan directory: %w", err)
	}
	return dir, nil
}

func filename(scanID, ruleID string, index int, ext string) string {
	ts := time.Now().UnixMilli()
	return fmt.Sprintf("%s_%s_%d_%d.%s", scanID, sanitizeRuleID(ruleID), index, ts, ext)
}

func extFor(format proto.PageCaptureScreenshotFormat) string {
	switch format {
	case proto.PageCaptureScreenshotFormatJpeg:
		return "jpg"
	case proto.PageCaptureScreenshotFormatWebp:
		return "webp"
	default:
		return "png"
	}
}

// CaptureFullPage captures the entire scrollable page.
func (c *Capturer) CaptureFullPage(page *rod.Page, scanID string, pageIndex int, opts Options) Result {
	dir, err := c.resolveScanDir(scanID)
	if err != nil {
		return Result{Error: err.Error()}
	}

	data, err := page.Screenshot(true, &proto.PageCaptureScreenshot{Format: opts.Format})
	if err != nil {
		log.Warn().Err(err).Str("scanId", scanID).Msg("full-page screenshot capture failed")
		return Result{Error: err.Error()}
	}

	path := filepath.Join(dir, filename(scanID, "fullpage", pageIndex, extFor(opts.Format)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{Error: fmt.Sprintf("write screenshot: %v", err)}
	}
	return Result{Path: path}
}

// CaptureElement resolves selector's bounding box, scrolls it into view,
// applies symmetric padding clamped to the viewport, and writes the file.
func (c *Capturer) CaptureElement(page *rod.Page, selector, scanID, ruleID string, index int, opts Options) Result {
	dir, err := c.resolveScanDir(scanID)
	if err != nil {
		return Result{Error: err.Error()}
	}

	el, err := page.Element(selector)
	if err != nil {
		return Result{Error: fmt.Sprintf("locate element %q: %v", selector, err)}
	}

	if err := el.ScrollIntoView(); err != nil {
		log.Debug().Err(err).Str("selector", selector).Msg("scroll into view failed, capturing anyway")
	}

	shape, err := el.Shape()
	if err != nil {
		return Result{Error: fmt.Sprintf("resolve element shape: %v", err)}
	}
	box := shape.Box()

	metrics, err := proto.PageGetLayoutMetrics{}.Call(page)
	var viewportWidth, viewportHeight float64
	if err == nil && metrics != nil {
		viewportWidth = float64(metrics.CSSLayoutViewport.ClientWidth)
		viewportHeight = float64(metrics.CSSLayoutViewport.ClientHeight)
	}

	clip := clampToViewport(padBox(*box, opts.Padding), viewportWidth, viewportHeight)

	data, err := page.Screenshot(false, &proto.PageCaptureScreenshot{
		Format: opts.Format,
		Clip: &proto.PageViewport{
			X:      clip.X,
			Y:      clip.Y,
			Width:  clip.Width,
			Height: clip.Height,
			Scale:  1,
		},
	})
	if err != nil {
		log.Warn().Err(err).Str("selector", selector).Msg("element screenshot capture failed")
		return Result{Error: err.Error()}
	}

	path := filepath.Join(dir, filename(scanID, ruleID, index, extFor(opts.Format)))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Result{Error: fmt.Sprintf("write screenshot: %v", err)}
	}
	return Result{Path: path}
}

func padBox(box proto.DOMRect, padding float64) proto.DOMRect {
	return proto.DOMRect{
		X:      box.X - padding,
		Y:      box.Y - padding,
		Width:  box.Width + 2*padding,
		Height: box.Height + 2*padding,
	}
}

func clampToViewport(box proto.DOMRect, viewportWidth, viewportHeight float64) proto.DOMRect {
	x := box.X
	y := box.Y
	width := box.Width
	height := box.Height

	if x < 0 {
		width += x
		x = 0
	}
	if y < 0 {
		height += y
		y = 0
	}
	if viewportWidth > 0 && x+width > viewportWidth {
		width = viewportWidth - x
	}
	if viewportHeight > 0 && y+height > viewportHeight {
		height = viewportHeight - y
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return proto.DOMRect{X: x, Y: y, Width: width, Height: height}
}
