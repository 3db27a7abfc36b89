package corpus

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/sillsdev/silauto-backend/internal/platform/logger"
)

type verseRef struct {
	book    string
	chapter string
}

// VrefAnalyzer aligns corpus lines with a versification reference file
// ("GEN 1:1" per line). Without a reference file it only counts lines.
type VrefAnalyzer struct {
	vrefPath string
	log      *logger.Logger

	once    sync.Once
	refs    []verseRef
	loadErr error
}

func NewVrefAnalyzer(vrefPath string, baseLog *logger.Logger) *VrefAnalyzer {
	return &VrefAnalyzer{
		vrefPath: strings.TrimSpace(vrefPath),
		log:      baseLog.With("component", "VrefAnalyzer"),
	}
}

func (a *VrefAnalyzer) load() ([]verseRef, error) {
	a.once.Do(func() {
		if a.vrefPath == "" {
			return
		}
		f, err := os.Open(a.vrefPath)
		if err != nil {
			a.loadErr = fmt.Errorf("open vref: %w", err)
			return
		}
		defer f.Close()

		var refs []verseRef
		sc := newLineScanner(f)
		for sc.Scan() {
			refs = append(refs, parseVref(sc.Text()))
		}
		if err := sc.Err(); err != nil {
			a.loadErr = fmt.Errorf("read vref: %w", err)
			return
		}
		a.refs = refs
		a.log.Debug("vref loaded", "path", a.vrefPath, "verses", len(refs))
	})
	return a.refs, a.loadErr
}

func (a *VrefAnalyzer) Analyze(ctx context.Context, path string) (*Stats, error) {
	refs, err := a.load()
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stats := &Stats{}
	var books map[string]*bookAcc
	if len(refs) > 0 {
		books = make(map[string]*bookAcc)
		for _, r := range refs {
			if r.book == "" {
				continue
			}
			b := books[r.book]
			if b == nil {
				b = &bookAcc{chapters: map[string]bool{}}
				books[r.book] = b
			}
			b.total++
		}
	}

	sc := newLineScanner(f)
	for sc.Scan() {
		if stats.Lines%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := strings.TrimSpace(sc.Text())
		idx := stats.Lines
		stats.Lines++
		if line == "" || line == "<range>" {
			continue
		}
		stats.Verses++
		if books == nil || idx >= len(refs) || refs[idx].book == "" {
			continue
		}
		b := books[refs[idx].book]
		b.verses++
		b.chapters[refs[idx].chapter] = true
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	if books != nil {
		stats.Books = make(map[string]BookStats)
		for name, b := range books {
			if b.verses == 0 {
				continue
			}
			stats.Books[name] = BookStats{Verses: b.verses, Total: b.total, Chapters: len(b.chapters)}
		}
		stats.BookCount = len(stats.Books)
	}
	return stats, nil
}

type bookAcc struct {
	verses   int
	total    int
	chapters map[string]bool
}

func parseVref(line string) verseRef {
	book, rest, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok {
		return verseRef{book: book}
	}
	chapter, _, _ := strings.Cut(rest, ":")
	return verseRef{book: book, chapter: chapter}
}

func newLineScanner(f *os.File) *bufio.Scanner {
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	return sc
}
