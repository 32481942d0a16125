package evolution

import (
	"adaptive-agent-go/internal/models"
	"fmt"
	"strconv"
	"strings"
)

// Gene is one candidate parameter set for a strategy.
type Gene struct {
	ID         string  `json:"id"`
	Strategy   string  `json:"strategy"`
	Content    string  `json:"content"` // key=value lines
	Generation int     `json:"generation"`
	Fitness    float64 `json:"fitness"`
}

// Clone returns a copy of the gene.
func (g *Gene) Clone() *Gene {
	c := *g
	return &c
}

// Params decodes the gene content back into a parameter set.
func (g *Gene) Params() models.Params {
	return DecodeParams(g.Content)
}

// NewGene renders params as a generation-0 gene.
func NewGene(id, strategy string, params models.Params, generation int) *Gene {
	return &Gene{ID: id, Strategy: strategy, Content: EncodeParams(params), Generation: generation}
}

// EncodeParams renders params as sorted key=value lines.
func EncodeParams(params models.Params) string {
	lines := make([]string, 0, len(params))
	for _, k := range params.Keys() {
		lines = append(lines, k+"="+formatValue(params[k]))
	}
	return strings.Join(lines, "\n")
}

// DecodeParams parses key=value lines. Malformed lines are skipped and later
// duplicates win. Numeric values decode as float64.
func DecodeParams(content string) models.Params {
	out := models.Params{}
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := parseLine(line)
		if !ok {
			continue
		}
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			out[key] = f
		} else {
			out[key] = value
		}
	}
	return out
}

// MergeParams overlays evolved on base. Keys missing from evolved keep their base value.
func MergeParams(base, evolved models.Params) models.Params {
	out := make(models.Params, len(base)+len(evolved))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range evolved {
		out[k] = v
	}
	return out
}

func parseLine(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", "", false
	}
	key, value, found := strings.Cut(line, "=")
	key = strings.TrimSpace(key)
	if !found || key == "" {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

func formatValue(v interface{}) string {
	switch value := v.(type) {
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case string:
		return value
	default:
		return fmt.Sprint(v)
	}
}

func splitLines(content string) []string {
	if content == "" {
		return nil
	}
	return strings.Split(content, "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}
