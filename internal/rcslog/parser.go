package rcslog

import (
	"regexp"
	"runtime"
	"strings"
	"sync"
)

// Line markers of "cvs log" output.
const (
	rcsFilePrefix     = "RCS file:"
	workingFilePrefix = "Working file:"
	revisionPrefix    = "revision "
	datePrefix        = "date:"
	authorKey         = "author:"
	branchesPrefix    = "branches:"
	sectionRulePrefix = "===="
	revisionDelimiter = "----------------------------"
)

var (
	sectionSeparatorRegex = regexp.MustCompile(`={70,}`)
	revisionLineRegex     = regexp.MustCompile(`^revision\s+([\d.]+)`)
)

// Parser turns "cvs log" output into records. It holds no per-parse state and
// is safe for concurrent use.
type Parser struct {
	opts       Options
	classifier *PathClassifier
}

// NewParser creates a parser. Empty option fields fall back to the defaults,
// except RootPrefix which may be intentionally empty.
func NewParser(opts Options) *Parser {
	if opts.FacilityMarker == "" {
		opts.FacilityMarker = DefaultFacilityMarker
	}
	if opts.DefaultRegion == "" {
		opts.DefaultRegion = DefaultRegion
	}
	return &Parser{
		opts:       opts,
		classifier: NewPathClassifier(opts.FacilityMarker, opts.DefaultRegion),
	}
}

// Parse parses text with DefaultOptions.
func Parse(text string) []Record {
	return NewParser(DefaultOptions()).Parse(text)
}

// SplitSections splits a log dump on rules of 70 or more "=" characters,
// dropping blank sections.
func SplitSections(text string) []string {
	parts := sectionSeparatorRegex.Split(text, -1)
	sections := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		sections = append(sections, p)
	}
	return sections
}

// Parse returns one record per revision, in log order.
func (p *Parser) Parse(text string) []Record {
	var records []Record
	for _, section := range SplitSections(text) {
		records = append(records, p.ParseSection(section)...)
	}
	return records
}

// ParseConcurrent produces the same output as Parse, parsing sections on up
// to workers goroutines. workers <= 0 uses GOMAXPROCS.
func (p *Parser) ParseConcurrent(text string, workers int) []Record {
	sections := SplitSections(text)
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(sections) {
		workers = len(sections)
	}
	if workers <= 1 {
		return p.Parse(text)
	}

	results := make([][]Record, len(sections))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = p.ParseSection(sections[i])
			}
		}()
	}
	for i := range sections {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	var records []Record
	for _, r := range results {
		records = append(records, r...)
	}
	return records
}

// ParseSection parses the log of a single file. Sections without an archive
// path, a working file or at least one revision yield nil.
func (p *Parser) ParseSection(section string) []Record {
	sp := &sectionParser{}
	for _, line := range strings.Split(strings.TrimSpace(section), "\n") {
		sp.feed(strings.TrimSpace(line))
	}
	sp.closeRevision()

	if sp.rcsFile == "" || sp.workingFile == "" || len(sp.revisions) == 0 {
		return nil
	}

	records := make([]Record, 0, len(sp.revisions))
	for _, rev := range sp.revisions {
		records = append(records, p.assemble(sp.rcsFile, rev))
	}
	return records
}

func (p *Parser) assemble(rcsFile string, rev *revision) Record {
	date, clock := SplitTimestamp(rev.date)
	facility, region := p.classifier.Classify(rcsFile)

	rec := Record{
		RepositoryPath: CleanPath(rcsFile, p.opts.RootPrefix),
		FileName:       FileName(rcsFile),
		RevisionID:     rev.id,
		Author:         rev.author,
		Date:           date,
		Time:           clock,
		Message:        rev.message,
		IsStructured:   strings.HasPrefix(rev.message, "#"),
		Facility:       facility,
		Region:         region,
	}
	if rec.IsStructured {
		s := DecodeStructuredMessage(rev.message)
		rec.Category = s.Category
		rec.Minutes = s.Minutes
		rec.Comment = s.Comment
	}
	return rec
}

// revision is a revision block while its section is being parsed.
type revision struct {
	id      string
	date    string
	author  string
	lines   []string
	message string
}

// sectionParser is the line state machine for one file section.
type sectionParser struct {
	rcsFile     string
	workingFile string

	current   *revision
	inMessage bool
	revisions []*revision
}

func (sp *sectionParser) feed(line string) {
	switch {
	case strings.HasPrefix(line, rcsFilePrefix):
		sp.rcsFile = strings.TrimSpace(strings.TrimPrefix(line, rcsFilePrefix))
	case strings.HasPrefix(line, workingFilePrefix):
		sp.workingFile = strings.TrimSpace(strings.TrimPrefix(line, workingFilePrefix))
	case revisionLineRegex.MatchString(line):
		sp.closeRevision()
		sp.current = &revision{id: revisionLineRegex.FindStringSubmatch(line)[1]}
		sp.inMessage = false
	case strings.HasPrefix(line, datePrefix) && sp.current != nil:
		sp.current.date, sp.current.author = scanDateLine(line)
	case sp.current != nil && sp.acceptsMessageLine(line):
		isDelimiter := strings.HasPrefix(line, revisionDelimiter)
		if !sp.inMessage && line != "" && !isDelimiter {
			sp.inMessage = true
		}
		if sp.inMessage && line != "" && !isDelimiter {
			sp.current.lines = append(sp.current.lines, line)
		}
	}
}

// acceptsMessageLine is deliberately loose: once capture has started every
// line belongs to the message until the next revision.
func (sp *sectionParser) acceptsMessageLine(line string) bool {
	if sp.inMessage || strings.HasPrefix(line, "#") {
		return true
	}
	return line != "" &&
		!strings.HasPrefix(line, branchesPrefix) &&
		!strings.HasPrefix(line, sectionRulePrefix)
}

func (sp *sectionParser) closeRevision() {
	if sp.current == nil {
		return
	}
	sp.current.message = FinalizeMessage(sp.current.lines)
	sp.current.lines = nil
	sp.revisions = append(sp.revisions, sp.current)
	sp.current = nil
}

// scanDateLine extracts the date (up to the first ';') and the author
// (between "author:" and the next ';'). Other fields on the line are ignored.
func scanDateLine(line string) (date, author string) {
	rest := strings.TrimPrefix(line, datePrefix)
	if end := strings.Index(rest, ";"); end >= 0 {
		date = strings.TrimSpace(rest[:end])
	}

	if start := strings.Index(line, authorKey); start >= 0 {
		tail := line[start+len(authorKey):]
		if end := strings.Index(tail, ";"); end >= 0 {
			author = strings.TrimSpace(tail[:end])
		}
	}
	return date, author
}
