package hosts

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"sort"
	"strings"

	"github.com/cuemby/joyride/pkg/records"
)

// Entry is one hostname mapping read from a hosts file
type Entry struct {
	Hostname string
	IP       string
	File     string
}

// Snapshot maps hostnames to the entry that defines them
type Snapshot map[string]Entry

// Parse reads hosts-file lines of the form
//
//	ip name [alias...] [# comment]
//
// Every name and alias becomes its own Entry. Lines with an invalid address
// are skipped and reported in the returned count.
func Parse(r io.Reader, file string) ([]Entry, int, error) {
	var (
		entries []Entry
		skipped int
	)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		ip := net.ParseIP(fields[0])
		if ip == nil || len(fields) < 2 {
			skipped++
			continue
		}
		for _, name := range fields[1:] {
			entries = append(entries, Entry{
				Hostname: records.Normalize(name),
				IP:       ip.String(),
				File:     file,
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, fmt.Errorf("failed to read %s: %w", file, err)
	}
	return entries, skipped, nil
}

// ParseFile parses the hosts file at path
func ParseFile(path string) ([]Entry, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return Parse(f, path)
}

// Add records entries; a hostname already present keeps its first definition
func (s Snapshot) Add(entries ...Entry) {
	for _, e := range entries {
		if _, ok := s[e.Hostname]; !ok {
			s[e.Hostname] = e
		}
	}
}

// Diff compares two snapshots. Each result is sorted by hostname.
func Diff(old, cur Snapshot) (added, removed, modified []Entry) {
	for name, e := range cur {
		prev, ok := old[name]
		switch {
		case !ok:
			added = append(added, e)
		case prev != e:
			modified = append(modified, e)
		}
	}
	for name, e := range old {
		if _, ok := cur[name]; !ok {
			removed = append(removed, e)
		}
	}
	sortEntries(added)
	sortEntries(removed)
	sortEntries(modified)
	return added, removed, modified
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Hostname < entries[j].Hostname
	})
}
