package main

import (
	"context"
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/kostiantynkovalchuk/DESCRIBER/internal/client"
	"github.com/kostiantynkovalchuk/DESCRIBER/internal/models"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
)

var (
	serverURL   = flag.String("server", "http://localhost:8080", "Address of the describer server")
	dataPath    = flag.String("data", filepath.Join(".", "data"), "Directory of images to describe")
	concurrency = flag.Int("concurrency", 4, "Requests in flight at once")
	maxWords    = flag.Int("words", 50, "Approximate description length in words")
	timeout     = flag.Duration("timeout", client.DefaultTimeout, "Per-request timeout")
)

var mediaTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
}

func main() {
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	files, err := findImages(*dataPath)
	if err != nil {
		log.Fatalf("scan %s: %v", *dataPath, err)
	}
	if len(files) == 0 {
		log.Fatalf("no images found in %s", *dataPath)
	}

	c := client.New(*serverURL, client.WithTimeout(*timeout))

	bar := progressbar.NewOptions(
		len(files),
		progressbar.OptionSetDescription("Describing images"),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Println() }),
	)

	var (
		mu      sync.Mutex
		results = make([]BenchResult, 0, len(files))
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(*concurrency)
	for _, file := range files {
		g.Go(func() error {
			res := benchmarkImage(ctx, c, file)

			mu.Lock()
			results = append(results, res)
			mu.Unlock()

			bar.Add(1)
			// a failed image is a data point, not a reason to stop
			return ctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("benchmark interrupted: %v", err)
	}
	bar.Finish()

	for _, res := range results {
		if res.Err != nil {
			log.Printf("ERR %s: %v", res.File, res.Err)
		}
	}

	printMarkdown(results)
}

func findImages(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if _, ok := mediaTypes[strings.ToLower(filepath.Ext(path))]; ok && !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func benchmarkImage(ctx context.Context, c *client.Client, filePath string) BenchResult {
	mediaType := mediaTypes[strings.ToLower(filepath.Ext(filePath))]
	res := BenchResult{File: filepath.Base(filePath), MediaType: mediaType}

	fileRaw, err := os.ReadFile(filePath)
	if err != nil {
		res.Err = err
		return res
	}
	res.Size = int64(len(fileRaw))

	req := models.DescribeRequest{
		Image:     base64.StdEncoding.EncodeToString(fileRaw),
		ImageType: mediaType,
		MaxWords:  models.WordCount(*maxWords),
	}

	start := time.Now()
	desc, err := c.DescribeStream(ctx, req, func(string) error {
		if res.FirstByte == 0 {
			res.FirstByte = time.Since(start)
		}
		return nil
	})
	res.Duration = time.Since(start)
	res.Words = len(strings.Fields(desc))
	res.Err = err
	return res
}

func aggregate(results []BenchResult) map[string]Agg {
	m := map[string]Agg{}
	for _, r := range results {
		a := m[r.MediaType]
		if r.Err != nil {
			a.Failed++
			m[r.MediaType] = a
			continue
		}
		a.Count++
		a.TotalBytes += r.Size
		a.Total += r.Duration
		a.FirstByte += r.FirstByte
		a.TotalWords += r.Words
		m[r.MediaType] = a
	}
	return m
}

func printMarkdown(results []BenchResult) {
	fmt.Print("\n## Benchmark Results\n\n")
	fmt.Println("| Media Type | Requests | Failed | Avg First Byte | Avg Time | Avg Words | Avg File Size |")
	fmt.Println("|------------|----------|--------|----------------|----------|-----------|---------------|")

	agg := aggregate(results)
	types := make([]string, 0, len(agg))
	for t := range agg {
		types = append(types, t)
	}
	slices.Sort(types)

	var all Agg
	for _, t := range types {
		a := agg[t]
		fmt.Println(row(t, a))
		all.Count += a.Count
		all.Failed += a.Failed
		all.Total += a.Total
		all.FirstByte += a.FirstByte
		all.TotalBytes += a.TotalBytes
		all.TotalWords += a.TotalWords
	}
	if all.Count+all.Failed > 0 {
		fmt.Println(row("**ALL**", all))
	}
}

func row(label string, a Agg) string {
	if a.Count == 0 {
		return fmt.Sprintf("| %s | 0 | %d | - | - | - | - |", label, a.Failed)
	}
	n := time.Duration(a.Count)
	return fmt.Sprintf("| %s | %d | %d | %v | %v | %d | %s |",
		label,
		a.Count,
		a.Failed,
		(a.FirstByte / n).Round(time.Millisecond),
		(a.Total / n).Round(time.Millisecond),
		a.TotalWords/a.Count,
		humanBytes(a.TotalBytes/int64(a.Count)),
	)
}

func humanBytes(size int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)
	switch {
	case size >= GB:
		return fmt.Sprintf("%.2f GB", float64(size)/GB)
	case size >= MB:
		return fmt.Sprintf("%.2f MB", float64(size)/MB)
	case size >= KB:
		return fmt.Sprintf("%.2f KB", float64(size)/KB)
	default:
		return fmt.Sprintf("%d B", size)
	}
}
