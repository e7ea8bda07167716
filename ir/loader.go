package ir

import (
	"os"
	"strings"

	"github.com/oqc-community/rasqal/rerr"
)

// Load reads path (a ".ll" or ".bc" file) and parses it into a Module.
func Load(path string) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, rerr.New(rerr.KindParseError, rerr.Location{}, "reading %s: %v", path, err)
	}
	if strings.HasSuffix(path, ".bc") {
		return ParseBitcode(data)
	}
	return ParseText(string(data))
}
