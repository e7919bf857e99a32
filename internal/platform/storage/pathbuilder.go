package storage

import (
	"fmt"
	"strings"
)

// InstrumentImagePath composes the object key for an instrument catalog
// image. Segments are validated so caller-supplied identifiers cannot
// traverse outside the instruments prefix.
func InstrumentImagePath(instrumentID, fileName string) (string, error) {
	id, err := validateSegment("instrumentID", instrumentID)
	if err != nil {
		return "", err
	}
	name, err := validateFileName(fileName)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("instruments/%s/%s", id, name), nil
}

func validateSegment(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: %s is required", name)
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: %s contains invalid path characters", name)
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: %s contains invalid traversal sequence", name)
	}
	return value, nil
}

func validateFileName(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("storage: fileName is required")
	}
	if strings.ContainsAny(value, "/\\") {
		return "", fmt.Errorf("storage: fileName contains invalid path characters")
	}
	if strings.Contains(value, "..") {
		return "", fmt.Errorf("storage: fileName contains invalid traversal sequence")
	}
	return value, nil
}
