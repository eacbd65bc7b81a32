package preprocess

// Command is a single image transformation applied before storage and OCR.
// Execute receives encoded image bytes and returns encoded image bytes.
type Command interface {
	Name() string
	Execute(imageData []byte) ([]byte, error)
}

// Factory creates a command from its YAML parameters.
type Factory func(params map[string]any) (Command, error)

// GetIntParam safely extracts an int parameter from the params map
func GetIntParam(params map[string]any, key string, defaultValue int) int {
	if val, ok := params[key]; ok {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return defaultValue
}
