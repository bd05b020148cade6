package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/tmarceau/bidscope/internal/domain/analysis"
)

// stripFences removes markdown code fences some models wrap around JSON.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func parseGeneralInfo(raw string) (domain.GeneralInfo, error) {
	var info domain.GeneralInfo
	if err := json.Unmarshal([]byte(stripFences(raw)), &info); err != nil {
		return domain.GeneralInfo{}, fmt.Errorf("decode general info: %w", err)
	}
	return info, nil
}

func parseLot(raw string) (domain.Lot, error) {
	var lot domain.Lot
	if err := json.Unmarshal([]byte(stripFences(raw)), &lot); err != nil {
		return domain.Lot{}, fmt.Errorf("decode lot: %w", err)
	}
	return lot, nil
}

// fullDocument is the shape of a single-call response: the general
// sections plus the lots the model identified itself.
type fullDocument struct {
	domain.GeneralInfo
	Lots []domain.Lot `json:"lots"`
}

func parseFullDocument(raw string) (fullDocument, error) {
	var doc fullDocument
	if err := json.Unmarshal([]byte(stripFences(raw)), &doc); err != nil {
		return fullDocument{}, fmt.Errorf("decode analysis document: %w", err)
	}
	return doc, nil
}
