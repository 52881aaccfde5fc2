package recognize

import (
	"context"
	"path/filepath"
)

// MockRecognizer maps image basenames to canned text, for tests.
type MockRecognizer struct {
	// Texts maps basename to recognized text. Missing entries return
	// the Default text.
	Texts   map[string]string
	Default string
	Err     error
}

// Recognize implements Recognizer.
func (m *MockRecognizer) Recognize(_ context.Context, imagePath string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	if text, ok := m.Texts[filepath.Base(imagePath)]; ok {
		return text, nil
	}
	return m.Default, nil
}
