// Package fleet provides the vehicle allow-list consumed by record
// validation. The roster is read once and is read-only for the duration of a
// batch.
package fleet

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Roster answers whether a vehicle id belongs to the known fleet.
type Roster interface {
	IsKnownVehicle(id int) bool
}

// Set is an in-memory roster.
type Set map[int]struct{}

func (s Set) IsKnownVehicle(id int) bool {
	_, ok := s[id]
	return ok
}

// IDs returns the roster's vehicle ids in ascending order.
func (s Set) IDs() []int {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// LoadFile reads a roster file with one vehicle id per line. Blank lines are
// skipped; a line that is not an integer is an error.
func LoadFile(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	set := make(Set)
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		id, err := strconv.Atoi(text)
		if err != nil {
			return nil, fmt.Errorf("roster %s line %d: %q is not a vehicle id", path, line, text)
		}
		set[id] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return set, nil
}
