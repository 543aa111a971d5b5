package loadgen

import (
	"bufio"
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Message is the request payload consumed by the worker fleet.
type Message struct {
	Prompt     string `json:"prompt"`
	FastMode   bool   `json:"fast_mode"`
	SmallImage bool   `json:"small_image"`
}

func (m Message) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return data, nil
}

// LoadPrompts reads one prompt per non-blank line from path, trimming surrounding whitespace.
// An empty path or a missing file yields no prompts, in which case senders synthesize their own.
func LoadPrompts(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	} else if err != nil {
		return nil, errors.WithMessagef(err, "error opening prompts file %s", path)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			prompts = append(prompts, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithMessagef(err, "error reading prompts file %s", path)
	}
	return prompts, nil
}
