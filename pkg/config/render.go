package config

import (
	"regexp"
	"strings"

	"github.com/sockvisor/sockvisor/pkg/errors"
)

// Placeholders use the %(name)s form common in process-manager config files
var placeholderPattern = regexp.MustCompile(`%\(([A-Za-z0-9_]+)\)s`)

// Renderer resolves %(name)s placeholders against a fixed context map.
// Resolution happens once at load time; nothing downstream sees templates.
type Renderer struct {
	context map[string]string
}

func NewRenderer(context map[string]string) *Renderer {
	copied := make(map[string]string, len(context))
	for key, value := range context {
		copied[key] = value
	}
	return &Renderer{context: copied}
}

// With returns a derived renderer with one extra binding
func (r *Renderer) With(key, value string) *Renderer {
	next := NewRenderer(r.context)
	next.context[key] = value
	return next
}

// Render substitutes all placeholders in input. Unknown placeholders are an
// error, never silently passed through.
func (r *Renderer) Render(input string) (string, error) {
	var missing []string
	result := placeholderPattern.ReplaceAllStringFunc(input, func(match string) string {
		key := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := r.context[key]
		if !ok {
			missing = append(missing, key)
			return match
		}
		return value
	})
	if len(missing) > 0 {
		return "", errors.NewValidationError("unresolved placeholders: "+strings.Join(missing, ", "), nil).
			WithContext("input", input)
	}
	return result, nil
}

// RenderAll substitutes placeholders in every element of inputs
func (r *Renderer) RenderAll(inputs []string) ([]string, error) {
	if inputs == nil {
		return nil, nil
	}
	result := make([]string, len(inputs))
	for i, input := range inputs {
		rendered, err := r.Render(input)
		if err != nil {
			return nil, err
		}
		result[i] = rendered
	}
	return result, nil
}
