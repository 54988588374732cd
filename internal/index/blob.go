package index

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Masterminds/semver/v3"
)

// crateVersionLine is one line of a registry index blob.
type crateVersionLine struct {
	Vers   string `json:"vers"`
	Yanked bool   `json:"yanked"`
}

// ParseCrateVersions parses a registry index blob (one JSON object per
// non-empty line) into the ascending, unyanked version list. A parse
// failure on any non-empty line propagates; yanked lines are skipped.
func ParseCrateVersions(blob []byte) ([]*semver.Version, error) {
	var versions []*semver.Version

	scanner := bufio.NewScanner(bytes.NewReader(blob))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var cv crateVersionLine
		if err := json.Unmarshal(line, &cv); err != nil {
			return nil, fmt.Errorf("parsing version line: %w", err)
		}
		if cv.Yanked {
			continue
		}
		v, err := semver.NewVersion(cv.Vers)
		if err != nil {
			return nil, fmt.Errorf("parsing version %q: %w", cv.Vers, err)
		}
		versions = append(versions, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading version blob: %w", err)
	}

	sort.Slice(versions, func(i, j int) bool { return versions[i].LessThan(versions[j]) })
	return versions, nil
}
